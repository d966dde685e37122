package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func serve(r *gin.Engine, method, path string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func okRoute(c *gin.Context) { c.String(http.StatusOK, "ok") }

func TestRequestID_Generated(t *testing.T) {
	r := gin.New()
	r.Use(RequestID())
	r.GET("/", okRoute)

	w := serve(r, http.MethodGet, "/", nil)
	rid := w.Header().Get("X-Request-ID")
	if rid == "" {
		t.Fatal("no X-Request-ID on response")
	}
	if _, err := uuid.Parse(rid); err != nil {
		t.Fatalf("generated id %q is not a UUID: %v", rid, err)
	}
}

func TestRequestID_PropagatesInbound(t *testing.T) {
	r := gin.New()
	r.Use(RequestID())
	var seen string
	r.GET("/", func(c *gin.Context) {
		v, _ := c.Get("requestID")
		seen, _ = v.(string)
		c.Status(http.StatusOK)
	})

	w := serve(r, http.MethodGet, "/", map[string]string{"X-Request-ID": "client-supplied"})
	if got := w.Header().Get("X-Request-ID"); got != "client-supplied" {
		t.Fatalf("response id = %q", got)
	}
	if seen != "client-supplied" {
		t.Fatalf("context id = %q", seen)
	}
}

func TestRecovery_ConvertsPanicTo500(t *testing.T) {
	r := gin.New()
	r.Use(RequestID(), Recovery())
	r.GET("/boom", func(c *gin.Context) { panic("kaboom") })

	w := serve(r, http.MethodGet, "/boom", nil)
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" && ct != "application/json; charset=utf-8" {
		t.Fatalf("Content-Type = %q", ct)
	}
}

func TestSecurityHeaders_Baseline(t *testing.T) {
	r := gin.New()
	r.Use(SecurityHeaders(SecurityOptions{EnablePolicy: true}))
	r.GET("/", okRoute)

	w := serve(r, http.MethodGet, "/", nil)
	want := map[string]string{
		"X-Content-Type-Options": "nosniff",
		"X-Frame-Options":        "DENY",
		"Referrer-Policy":        "no-referrer",
		"Permissions-Policy":     "geolocation=(), microphone=(), camera=(), payment=()",
	}
	for k, v := range want {
		if got := w.Header().Get(k); got != v {
			t.Errorf("%s = %q, want %q", k, got, v)
		}
	}
	if w.Header().Get("Strict-Transport-Security") != "" {
		t.Error("HSTS emitted without opt-in")
	}
	if w.Header().Get("Cache-Control") != "" {
		t.Error("Cache-Control emitted without NoStore")
	}
}

func TestSecurityHeaders_HSTSOnlyOverHTTPS(t *testing.T) {
	r := gin.New()
	r.Use(SecurityHeaders(SecurityOptions{EnableHSTS: true, HSTSMaxAge: time.Hour}))
	r.GET("/", okRoute)

	plain := serve(r, http.MethodGet, "/", nil)
	if plain.Header().Get("Strict-Transport-Security") != "" {
		t.Fatal("HSTS emitted for plain HTTP")
	}

	forwarded := serve(r, http.MethodGet, "/", map[string]string{"X-Forwarded-Proto": "https"})
	if got := forwarded.Header().Get("Strict-Transport-Security"); got != "max-age=3600; includeSubDomains; preload" {
		t.Fatalf("HSTS = %q", got)
	}
}

func TestAdminOnly(t *testing.T) {
	const token = "owner-secret"
	r := gin.New()
	r.GET("/admin", AdminOnly(token), okRoute)

	if w := serve(r, http.MethodGet, "/admin", nil); w.Code != http.StatusForbidden {
		t.Fatalf("no token: status = %d", w.Code)
	}
	if w := serve(r, http.MethodGet, "/admin", map[string]string{"X-Admin-Token": "wrong"}); w.Code != http.StatusForbidden {
		t.Fatalf("wrong token: status = %d", w.Code)
	}
	if w := serve(r, http.MethodGet, "/admin", map[string]string{"X-Admin-Token": token}); w.Code != http.StatusOK {
		t.Fatalf("right token: status = %d", w.Code)
	}
}

func TestAdminOnly_EmptyTokenDisables(t *testing.T) {
	r := gin.New()
	r.GET("/admin", AdminOnly(""), okRoute)

	if w := serve(r, http.MethodGet, "/admin", map[string]string{"X-Admin-Token": ""}); w.Code != http.StatusForbidden {
		t.Fatalf("status = %d; empty configured token must close the route", w.Code)
	}
}

func TestIsAdmin(t *testing.T) {
	r := gin.New()
	var admin bool
	r.GET("/", func(c *gin.Context) {
		admin = IsAdmin(c, "owner-secret")
		c.Status(http.StatusOK)
	})

	serve(r, http.MethodGet, "/", map[string]string{"X-Admin-Token": "owner-secret"})
	if !admin {
		t.Fatal("valid token not recognized")
	}
	serve(r, http.MethodGet, "/", map[string]string{"X-Admin-Token": "nope"})
	if admin {
		t.Fatal("invalid token recognized")
	}
	serve(r, http.MethodGet, "/", nil)
	if admin {
		t.Fatal("missing token recognized")
	}
}

func TestRateLimiter_LimitsPerKey(t *testing.T) {
	rl := NewRateLimiter(0, 2, KeyBySessionOrIP()) // 2 tokens, no refill
	r := gin.New()
	r.Use(rl.Handler())
	r.GET("/", okRoute)

	h := map[string]string{"X-Session-ID": "s1"}
	for i := 0; i < 2; i++ {
		if w := serve(r, http.MethodGet, "/", h); w.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d", i, w.Code)
		}
	}
	w := serve(r, http.MethodGet, "/", h)
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("third request: status = %d", w.Code)
	}
	if w.Header().Get("Retry-After") == "" {
		t.Fatal("429 missing Retry-After")
	}

	// A different session has its own bucket.
	if w := serve(r, http.MethodGet, "/", map[string]string{"X-Session-ID": "s2"}); w.Code != http.StatusOK {
		t.Fatalf("other session: status = %d", w.Code)
	}
}

func TestRateLimiter_ReplayBypass(t *testing.T) {
	lookup := func(context.Context, string, string, time.Time) (bool, error) { return true, nil }
	rl := NewRateLimiter(0, 1, KeyBySessionOrIP())

	r := gin.New()
	r.Use(IdempotencyValidator(IdempotencyOptions{}, lookup), rl.Handler())
	r.POST("/", okRoute)

	h := map[string]string{"X-Session-ID": "s1", "Idempotency-Key": "k1"}
	// The bucket holds one token; replays never consume it.
	for i := 0; i < 5; i++ {
		if w := serve(r, http.MethodPost, "/", h); w.Code != http.StatusOK {
			t.Fatalf("replay %d: status = %d", i, w.Code)
		}
	}
}

func TestIdempotencyValidator_KeyStashing(t *testing.T) {
	r := gin.New()
	var key string
	var present, replay bool
	r.Use(IdempotencyValidator(IdempotencyOptions{}, nil))
	r.POST("/", func(c *gin.Context) {
		key, present = GetIdempotencyKey(c)
		replay = IsReplay(c)
		c.Status(http.StatusOK)
	})

	serve(r, http.MethodPost, "/", map[string]string{"Idempotency-Key": "op-1"})
	if !present || key != "op-1" || replay {
		t.Fatalf("key=%q present=%v replay=%v", key, present, replay)
	}

	serve(r, http.MethodPost, "/", nil)
	if present || key != "" {
		t.Fatalf("absent header stashed key=%q present=%v", key, present)
	}
}

func TestIdempotencyValidator_RejectsMalformedKeys(t *testing.T) {
	r := gin.New()
	r.Use(IdempotencyValidator(IdempotencyOptions{MaxLen: 10}, nil))
	r.POST("/", okRoute)

	cases := []string{"has space", "emoji🙂", "waytoolongforthecap"}
	for _, k := range cases {
		w := serve(r, http.MethodPost, "/", map[string]string{"Idempotency-Key": k})
		if w.Code != http.StatusBadRequest {
			t.Errorf("key %q: status = %d, want 400", k, w.Code)
		}
	}
}

func TestIdempotencyValidator_ReplayDetection(t *testing.T) {
	lookup := func(_ context.Context, sessionID, key string, _ time.Time) (bool, error) {
		return sessionID == "s1" && key == "seen", nil
	}
	r := gin.New()
	var replay, bypass bool
	r.Use(IdempotencyValidator(IdempotencyOptions{}, lookup))
	r.POST("/", func(c *gin.Context) {
		replay = IsReplay(c)
		bypass = IsRateBypass(c)
		c.Status(http.StatusOK)
	})

	serve(r, http.MethodPost, "/", map[string]string{"X-Session-ID": "s1", "Idempotency-Key": "seen"})
	if !replay || !bypass {
		t.Fatalf("known key: replay=%v bypass=%v", replay, bypass)
	}

	serve(r, http.MethodPost, "/", map[string]string{"X-Session-ID": "s1", "Idempotency-Key": "new"})
	if replay || bypass {
		t.Fatalf("fresh key: replay=%v bypass=%v", replay, bypass)
	}

	// No session header: the lookup is skipped, the key still stashed.
	serve(r, http.MethodPost, "/", map[string]string{"Idempotency-Key": "seen"})
	if replay || bypass {
		t.Fatalf("sessionless: replay=%v bypass=%v", replay, bypass)
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("abcdef", 4); got != "abcd…" {
		t.Fatalf("truncate = %q", got)
	}
	if got := truncate("abc", 4); got != "abc" {
		t.Fatalf("short input changed: %q", got)
	}
	if got := truncate("abc", 0); got != "abc" {
		t.Fatalf("max 0 truncated: %q", got)
	}
}
