// Package config provides application configuration loaded from environment
// variables with defaults and validation. It centralizes application settings
// such as server timeouts, logging, database paths, blob storage, mail,
// rate limiting, and observability.
package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

// CORSConfig defines Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string
}

// SecurityConfig defines security-related settings such as HSTS.
type SecurityConfig struct {
	EnableHSTS bool
	HSTSMaxAge time.Duration
}

// BlobConfig selects and configures the attachment store.
type BlobConfig struct {
	Backend   string // BLOB_BACKEND: "fs" or "gcs"
	Dir       string // BLOB_DIR (fs backend), local directory for uploads
	BaseURL   string // BLOB_BASE_URL (fs backend), public prefix for uploaded files
	Bucket    string // BLOB_BUCKET (gcs backend)
	CDNDomain string // BLOB_CDN_DOMAIN (gcs backend), optional CDN host
}

// MailConfig configures the SMTP notifier. Empty Host disables mail.
type MailConfig struct {
	Host     string // SMTP_HOST (e.g. "smtp.gmail.com:587"); empty = notifications off
	Username string // SMTP_USERNAME
	Password string // SMTP_PASSWORD
	From     string // SMTP_FROM
	Owner    string // OWNER_EMAIL, where visitor notifications land
	SiteName string // SITE_NAME, used in mail subjects
}

// OTELConfig defines OpenTelemetry observability settings.
type OTELConfig struct {
	Enabled     bool    // OTEL_ENABLED
	Endpoint    string  // OTEL_EXPORTER_OTLP_ENDPOINT (e.g. "otel:4317")
	Insecure    bool    // OTEL_EXPORTER_OTLP_INSECURE (true if no TLS)
	ServiceName string  // OTEL_SERVICE_NAME (e.g. "portfolio-chat-backend")
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
}

// Config holds all configuration values for the application.
type Config struct {
	// Server
	Port              string        // just the number
	ReadTimeout       time.Duration // e.g. 15s
	ReadHeaderTimeout time.Duration // e.g. 10s
	WriteTimeout      time.Duration // e.g. 20s; streaming endpoints opt out per-request
	IdleTimeout       time.Duration // e.g. 60s
	MaxHeaderBytes    int           // bytes
	GinMode           string        // debug|release|test

	// Logging / Docs
	LogLevel       string // debug|info|warn|error|fatal|panic
	LogPretty      bool   // pretty console logs in dev
	SwaggerEnabled bool   // enable Swagger UI route
	APIBasePath    string // base path for API routes

	// App
	DBPath          string        // SQLite path
	AdminToken      string        // shared secret for admin endpoints; empty disables them
	MaxContentRunes int           // message length cap
	MaxUploadBytes  int64         // per-request multipart memory/size cap
	FeedLimit       int           // live snapshot window size
	ReplyDelayMin   time.Duration // auto-reply delay lower bound (inclusive)
	ReplyDelayMax   time.Duration // auto-reply delay upper bound (exclusive)

	// Blob storage
	Blob BlobConfig

	// Mail
	Mail MailConfig

	// Rate limiting
	RateRPS   float64 // tokens per second (>= 0)
	RateBurst int     // bucket size (>= 1)

	// Web protection
	CORS     CORSConfig
	Security SecurityConfig

	// Idempotency
	IdempotencyTTL time.Duration // how long a given Idempotency-Key is valid

	// Observability
	OTEL OTELConfig
}

// MustLoad loads the configuration and panics if validation fails.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads configuration from environment variables,
// applies defaults, normalizes values, and validates the result.
func Load() (Config, error) {
	cfg := Config{
		// Server
		Port:              getenv("PORT", "8080"),
		ReadTimeout:       getdur("READ_TIMEOUT", 15*time.Second),
		ReadHeaderTimeout: getdur("READ_HEADER_TIMEOUT", 10*time.Second),
		WriteTimeout:      getdur("WRITE_TIMEOUT", 20*time.Second),
		IdleTimeout:       getdur("IDLE_TIMEOUT", 60*time.Second),
		MaxHeaderBytes:    getint("MAX_HEADER_BYTES", 1<<20),
		GinMode:           strings.ToLower(getenv("GIN_MODE", "release")),

		// Logging / Docs
		LogLevel:       strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogPretty:      getbool("LOG_PRETTY", false),
		SwaggerEnabled: getbool("SWAGGER_ENABLED", false),
		APIBasePath:    normalizeBasePath(getenv("API_BASE_PATH", "/api/v1")),

		// App
		DBPath:          getenv("DB_PATH", "chat.db"),
		AdminToken:      getenv("ADMIN_TOKEN", ""),
		MaxContentRunes: getint("MAX_CONTENT_RUNES", 4000),
		MaxUploadBytes:  int64(getint("MAX_UPLOAD_BYTES", 10<<20)),
		FeedLimit:       getint("FEED_LIMIT", 50),
		ReplyDelayMin:   getdur("REPLY_DELAY_MIN", time.Second),
		ReplyDelayMax:   getdur("REPLY_DELAY_MAX", 3*time.Second),

		// Blob storage
		Blob: BlobConfig{
			Backend:   strings.ToLower(getenv("BLOB_BACKEND", "fs")),
			Dir:       getenv("BLOB_DIR", "uploads"),
			BaseURL:   getenv("BLOB_BASE_URL", "/uploads"),
			Bucket:    getenv("BLOB_BUCKET", ""),
			CDNDomain: getenv("BLOB_CDN_DOMAIN", ""),
		},

		// Mail
		Mail: MailConfig{
			Host:     getenv("SMTP_HOST", ""),
			Username: getenv("SMTP_USERNAME", ""),
			Password: getenv("SMTP_PASSWORD", ""),
			From:     getenv("SMTP_FROM", ""),
			Owner:    getenv("OWNER_EMAIL", ""),
			SiteName: getenv("SITE_NAME", "Portfolio"),
		},

		// Rate limiting
		RateRPS:   getfloat("RATE_RPS", 5.0),
		RateBurst: getint("RATE_BURST", 10),

		// Web protection
		CORS: CORSConfig{
			AllowedOrigins: splitCSV(getenv("CORS_ALLOWED_ORIGINS", "")),
		},
		Security: SecurityConfig{
			EnableHSTS: getbool("ENABLE_HSTS", false),
			HSTSMaxAge: getdur("HSTS_MAX_AGE", 180*24*time.Hour),
		},

		// Idempotency
		IdempotencyTTL: getdur("IDEMPOTENCY_TTL", 24*time.Hour),

		// Observability (OpenTelemetry)
		OTEL: OTELConfig{
			Enabled:     getbool("OTEL_ENABLED", false),
			Endpoint:    getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    getbool("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: getenv("OTEL_SERVICE_NAME", "portfolio-chat-backend"),
			SampleRatio: getfloat("OTEL_TRACES_SAMPLER_ARG", 1.0),
		},
	}

	// --- normalization ---
	if cfg.LogLevel == "warning" {
		cfg.LogLevel = "warn"
	}
	switch cfg.GinMode {
	case "debug", "release", "test":
	default:
		cfg.GinMode = "release"
	}

	// --- validation ---
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error", "fatal", "panic":
	default:
		return cfg, errors.New("LOG_LEVEL must be one of: debug, info, warn, error, fatal, panic")
	}
	if strings.TrimSpace(cfg.Port) == "" {
		return cfg, errors.New("PORT must not be empty")
	}
	if cfg.ReadTimeout <= 0 || cfg.ReadHeaderTimeout <= 0 || cfg.WriteTimeout <= 0 || cfg.IdleTimeout <= 0 {
		return cfg, errors.New("timeouts must be positive durations")
	}
	if cfg.MaxHeaderBytes <= 0 {
		return cfg, errors.New("MAX_HEADER_BYTES must be > 0")
	}
	if strings.TrimSpace(cfg.DBPath) == "" {
		return cfg, errors.New("DB_PATH must not be empty")
	}
	if cfg.MaxContentRunes < 1 {
		return cfg, errors.New("MAX_CONTENT_RUNES must be >= 1")
	}
	if cfg.MaxUploadBytes < 1 {
		return cfg, errors.New("MAX_UPLOAD_BYTES must be >= 1")
	}
	if cfg.FeedLimit < 1 {
		return cfg, errors.New("FEED_LIMIT must be >= 1")
	}
	if cfg.ReplyDelayMin < 0 || cfg.ReplyDelayMax <= cfg.ReplyDelayMin {
		return cfg, errors.New("REPLY_DELAY_MAX must be greater than REPLY_DELAY_MIN (>= 0)")
	}
	switch cfg.Blob.Backend {
	case "fs":
		if strings.TrimSpace(cfg.Blob.Dir) == "" {
			return cfg, errors.New("BLOB_DIR must not be empty for the fs backend")
		}
	case "gcs":
		if strings.TrimSpace(cfg.Blob.Bucket) == "" {
			return cfg, errors.New("BLOB_BUCKET must not be empty for the gcs backend")
		}
	default:
		return cfg, errors.New("BLOB_BACKEND must be one of: fs, gcs")
	}
	if cfg.Mail.Host != "" {
		if strings.TrimSpace(cfg.Mail.From) == "" {
			return cfg, errors.New("SMTP_FROM must not be empty when SMTP_HOST is set")
		}
		if strings.TrimSpace(cfg.Mail.Owner) == "" {
			return cfg, errors.New("OWNER_EMAIL must not be empty when SMTP_HOST is set")
		}
	}
	if cfg.RateRPS < 0 {
		return cfg, errors.New("RATE_RPS must be >= 0")
	}
	if cfg.RateBurst < 1 {
		return cfg, errors.New("RATE_BURST must be >= 1")
	}
	if cfg.Security.HSTSMaxAge < 0 {
		return cfg, errors.New("HSTS_MAX_AGE must be >= 0")
	}
	if cfg.IdempotencyTTL <= 0 {
		return cfg, errors.New("IDEMPOTENCY_TTL must be > 0")
	}
	if cfg.OTEL.SampleRatio < 0 || cfg.OTEL.SampleRatio > 1 {
		return cfg, errors.New("OTEL_TRACES_SAMPLER_ARG must be in [0,1]")
	}

	return cfg, nil
}

// ---- helpers (no external deps) ----

func getenv(k, def string) string {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		return v
	}
	return def
}

func getfloat(k string, def float64) float64 {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getint(k string, def int) int {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "yes", "y", "on":
			return true
		case "0", "false", "no", "n", "off":
			return false
		}
	}
	return def
}

func getdur(k string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		t := strings.TrimSpace(p)
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

// normalizeBasePath ensures leading '/' and strips trailing '/' (except root).
func normalizeBasePath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if len(p) > 1 && strings.HasSuffix(p, "/") {
		p = strings.TrimRight(p, "/")
	}
	return p
}
