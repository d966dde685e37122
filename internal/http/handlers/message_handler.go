// Message HTTP handlers.
//
// This file exposes REST endpoints for the chat message pipeline:
//   - POST /messages   (append a visitor/admin message; triggers the auto-reply)
//   - GET  /messages   (list the recent messages of a session)
//
// Handlers are transport-thin:
//   - validate & normalize inputs (including newline and length constraints)
//   - decode both JSON and multipart payloads (multipart carries attachments)
//   - delegate to application services (MessageService)
//   - implement conditional responses (ETag) and idempotency semantics
//
// Idempotency:
// If the client supplies an Idempotency-Key header and a previous successful
// result exists for (session, key), the handler returns that recorded
// message and sets `Idempotency-Replayed: true`.
package handlers

import (
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/skumar-dev/portfolio-chat-backend/internal/domain"
	"github.com/skumar-dev/portfolio-chat-backend/internal/http/middleware"
	"github.com/skumar-dev/portfolio-chat-backend/internal/repo"
	"github.com/skumar-dev/portfolio-chat-backend/internal/services"
	"github.com/skumar-dev/portfolio-chat-backend/internal/storage"
	"github.com/skumar-dev/portfolio-chat-backend/internal/utils"
)

//
// Service interfaces
//

// MessageSender appends a message to the chat log and runs its side effects
// (attachment upload, owner notification, deferred auto-reply).
//
// Implementations should be safe for concurrent use and must honor the
// provided context for cancellation and timeouts.
type MessageSender interface {
	Send(ctx context.Context, content, sender string, opts *services.SendOptions) (*domain.ChatMessage, error)
}

// ContactNotifier delivers a contact-form submission to the portfolio owner.
type ContactNotifier interface {
	ContactForm(ctx context.Context, name, email, message string) error
}

//
// Handler wiring
//

// Options carries the static handler configuration injected by the router.
type Options struct {
	AdminToken     string        // shared secret for owner endpoints; empty disables them
	IdempotencyTTL time.Duration // validity window for Idempotency-Key replays
	MaxUploadBytes int64         // multipart memory cap
	FeedLimit      int           // snapshot window for GET /messages and the stream
}

// Handlers groups HTTP endpoints for messages, conversations, the live feed,
// and the contact form. It depends on abstract service interfaces to keep
// transport concerns separate from business logic; the *gorm.DB handle is
// used only for read paths (ETag stats, idempotency lookups, listings).
type Handlers struct {
	db      *gorm.DB
	msgSvc  MessageSender
	feed    *services.MessageFeed
	contact ContactNotifier // nil when mail is not configured
	opts    Options
}

// New constructs and returns a Handlers instance bound to the given
// dependencies. contact may be nil; POST /contact then responds 503.
func New(db *gorm.DB, msgSvc MessageSender, feed *services.MessageFeed, contact ContactNotifier, opts Options) *Handlers {
	if opts.FeedLimit <= 0 {
		opts.FeedLimit = services.DefaultFeedLimit
	}
	if opts.IdempotencyTTL <= 0 {
		opts.IdempotencyTTL = 24 * time.Hour
	}
	return &Handlers{db: db, msgSvc: msgSvc, feed: feed, contact: contact, opts: opts}
}

// isAdmin reports whether the request carries the configured owner token.
func (h *Handlers) isAdmin(c *gin.Context) bool {
	return middleware.IsAdmin(c, h.opts.AdminToken)
}

//
// DTOs
//

// postMetadata mirrors the metadata object the frontend widget sends.
type postMetadata struct {
	SessionID string `json:"sessionId"`
	UserAgent string `json:"userAgent"`
}

// PostMessageRequest is the JSON payload for sending a chat message.
//
// Content is normalized by the handler (line endings and excessive blank
// lines) before being passed to the service layer. The service also enforces
// a maximum rune count. SessionID may arrive top-level or nested under
// metadata; the top-level value wins.
type PostMessageRequest struct {
	// Content is the message body. It must be non-empty.
	Content string `json:"content" binding:"required,min=1" example:"Hi! I'd like to talk about building a web app."`
	// Email optionally identifies the visitor across sessions.
	Email string `json:"email" example:"visitor@example.com"`
	// SessionID groups messages of one browsing session; generated when absent.
	SessionID string `json:"sessionId" example:"session_1756500000000_k3f9a81xq"`
	// Metadata is the widget's metadata envelope (sessionId/userAgent).
	Metadata *postMetadata `json:"metadata"`
}

// PostMessageResponse is the JSON envelope for a newly created message.
type PostMessageResponse struct {
	// Message is the persisted row, including the server-assigned ID,
	// timestamp, and any uploaded attachment descriptors.
	Message *domain.ChatMessage `json:"message"`
}

// ListMessagesResponse contains the recent messages of a session, oldest
// first, plus the total number of rows stored for it.
type ListMessagesResponse struct {
	Messages []domain.ChatMessage `json:"messages"`
	Total    int64                `json:"total"`
}

//
// Helpers
//

// nlCollapseRE collapses runs of 3+ newlines to two, preserving paragraphs.
var nlCollapseRE = regexp.MustCompile(`\n{3,}`)

// sanitizeContent normalizes user text for consistent downstream behavior:
//   - converts CRLF/CR to LF,
//   - collapses runs of 3+ LFs to exactly two (paragraph separation),
//   - trims surrounding whitespace.
func sanitizeContent(raw string) string {
	s := strings.ReplaceAll(raw, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	s = nlCollapseRE.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

// discoverMaxContentRunes inspects the concrete MessageService for a
// configured length limit. If unavailable, it returns a conservative fallback.
func discoverMaxContentRunes(msgSvc MessageSender) int {
	const fallback = 4000
	if ms, ok := msgSvc.(*services.MessageService); ok {
		if ms.MaxContentRunes > 0 {
			return ms.MaxContentRunes
		}
	}
	return fallback
}

// sessionFrom resolves the session id for a request: explicit body value
// first, then the metadata envelope, then the X-Session-ID header.
func sessionFrom(c *gin.Context, body, meta string) string {
	if s := strings.TrimSpace(body); s != "" {
		return s
	}
	if s := strings.TrimSpace(meta); s != "" {
		return s
	}
	return strings.TrimSpace(c.GetHeader("X-Session-ID"))
}

// filesFrom converts multipart file headers into storage upload descriptors.
// Files are opened lazily-adjacent: all opens happen here so a broken part
// fails the request before any blob is written.
func filesFrom(headers []*multipart.FileHeader) ([]storage.File, func(), error) {
	files := make([]storage.File, 0, len(headers))
	closers := make([]func() error, 0, len(headers))
	closeAll := func() {
		for _, cl := range closers {
			_ = cl()
		}
	}
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			closeAll()
			return nil, nil, err
		}
		closers = append(closers, f.Close)
		files = append(files, storage.File{
			Name:        fh.Filename,
			Size:        fh.Size,
			ContentType: fh.Header.Get("Content-Type"),
			Content:     f,
		})
	}
	return files, closeAll, nil
}

//
// Handlers
//

// PostMessage godoc
// @ID          postMessage
// @Summary     Send a chat message
// @Description Appends a message to the chat log. Visitor messages trigger an owner
// @Description notification and a deferred auto-reply. Accepts application/json or
// @Description multipart/form-data (fields: content, email, sessionId; files: attachments).
// @Description Supports idempotency via the Idempotency-Key header (same key → same result).
// @Tags        Messages
// @Accept      json
// @Accept      mpfd
// @Produce     json
//
// @Param       X-Session-ID     header  string  false "Chat session ID (alternative to body field)"
// @Param       X-Admin-Token    header  string  false "Owner token; marks the message as an admin reply"
// @Param       Idempotency-Key  header  string  false "Idempotency key for safe retries (UUID recommended)"
// @Param       body             body    handlers.PostMessageRequest  true  "Message payload"
//
// @Success     201  {object}  handlers.PostMessageResponse  "Persisted message"
// @Failure     400  {object}  handlers.ErrorResponse        "Bad request"
// @Failure     500  {object}  handlers.ErrorResponse        "Internal error"
// @Router      /messages [post]
func (h *Handlers) PostMessage(c *gin.Context) {
	ctx := c.Request.Context()

	var (
		content   string
		email     string
		sessionID string
		userAgent string
		files     []storage.File
	)

	if strings.HasPrefix(c.ContentType(), "multipart/form-data") {
		if err := c.Request.ParseMultipartForm(h.opts.MaxUploadBytes); err != nil {
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid multipart payload")
			return
		}
		form := c.Request.MultipartForm
		content = c.PostForm("content")
		email = strings.TrimSpace(c.PostForm("email"))
		sessionID = sessionFrom(c, c.PostForm("sessionId"), c.PostForm("session_id"))

		headers := form.File["attachments"]
		if len(headers) == 0 {
			headers = form.File["files"]
		}
		var closeAll func()
		var err error
		files, closeAll, err = filesFrom(headers)
		if err != nil {
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "unreadable attachment")
			return
		}
		defer closeAll()
	} else {
		var req PostMessageRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "content required")
			return
		}
		content = req.Content
		email = strings.TrimSpace(req.Email)
		var metaSID string
		if req.Metadata != nil {
			metaSID = req.Metadata.SessionID
			userAgent = req.Metadata.UserAgent
		}
		sessionID = sessionFrom(c, req.SessionID, metaSID)
	}

	if userAgent == "" {
		userAgent = c.Request.UserAgent()
	}

	// Sanitize + early size cap to fail fast at the edge.
	content = sanitizeContent(content)
	maxRunes := discoverMaxContentRunes(h.msgSvc)
	if maxRunes > 0 && utf8.RuneCountInString(content) > maxRunes {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, fmt.Sprintf("content too long: max %d runes", maxRunes))
		return
	}
	if content == "" && len(files) == 0 {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "content required")
		return
	}

	// Owner token flips the sender; everyone else writes as a visitor.
	sender := domain.SenderVisitor
	if h.isAdmin(c) {
		sender = domain.SenderAdmin
	}

	// Idempotency (replay path) – read validated key if present.
	idemKey, _ := middleware.GetIdempotencyKey(c)
	if idemKey != "" && sessionID != "" && h.db != nil {
		if rec, err := repo.GetIdempotency(ctx, h.db, sessionID, idemKey, time.Now().UTC()); err == nil && rec != nil {
			if prev, err2 := repo.GetMessage(ctx, h.db, rec.MessageID); err2 == nil {
				c.Header("Idempotency-Replayed", "true")
				ok(c, http.StatusCreated, PostMessageResponse{Message: prev})
				return
			}
		}
	}

	m, err := h.msgSvc.Send(ctx, content, sender, &services.SendOptions{
		Email:       email,
		Attachments: files,
		SessionID:   sessionID,
		UserAgent:   userAgent,
	})
	if err != nil {
		switch {
		case errors.Is(err, services.ErrTooLong):
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, fmt.Sprintf("content too long: max %d runes", maxRunes))
		case errors.Is(err, services.ErrInvalidSender):
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid sender")
		case errors.Is(err, services.ErrUploadFailed):
			fail(c, http.StatusInternalServerError, ErrCodeUploadFailed, "attachment upload failed")
		default:
			fail(c, http.StatusInternalServerError, ErrCodeSendFailed, err.Error())
		}
		return
	}

	// Idempotency (store path) – best effort.
	if idemKey != "" && h.db != nil {
		_, _ = repo.CreateIdempotency(ctx, h.db, m.Metadata.SessionID, idemKey, m.ID, http.StatusCreated, h.opts.IdempotencyTTL)
	}

	ok(c, http.StatusCreated, PostMessageResponse{Message: m})
}

// ListMessages godoc
// @ID          listMessages
// @Summary     List recent messages
// @Description Returns the most recent messages of a session in ascending timestamp
// @Description order, capped at the configured window. With a valid X-Admin-Token and
// @Description no session filter, returns the recent messages of every session.
// @Tags        Messages
// @Produce     json
//
// @Param       session_id  query   string  false "Session to list (required without admin token)"
// @Param       limit       query   int     false "Window size"  minimum(1) maximum(200)
// @Param       X-Admin-Token  header string false "Owner token for the cross-session listing"
//
// @Success     200  {object} handlers.ListMessagesResponse
// @Success     304  "Not modified (ETag match)"
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /messages [get]
func (h *Handlers) ListMessages(c *gin.Context) {
	ctx := c.Request.Context()

	sessionID := strings.TrimSpace(c.Query("session_id"))
	if sessionID == "" {
		sessionID = strings.TrimSpace(c.Query("sessionId"))
	}
	if sessionID == "" {
		sessionID = strings.TrimSpace(c.GetHeader("X-Session-ID"))
	}
	if sessionID == "" && !h.isAdmin(c) {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "session_id required")
		return
	}

	// ETag pre-check (best effort). Status changes bump UpdatedAt, so marking
	// messages read invalidates the tag like an append does.
	if h.db != nil {
		count, maxTS, err := repo.MessagesStats(ctx, h.db, sessionID)
		if err == nil {
			var ts int64
			if maxTS != nil {
				ts = maxTS.Unix()
			}
			etag := fmt.Sprintf(`W/"messages:%s:%d:%d"`, sessionID, count, ts)
			c.Header("ETag", etag)
			if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
				c.Status(http.StatusNotModified)
				return
			}
		}
	}

	limit := utils.AtoiDefault(c.Query("limit"), h.opts.FeedLimit)
	if limit < 1 {
		limit = 1
	}
	if limit > 200 {
		limit = 200
	}

	items, err := repo.ListMessages(ctx, h.db, sessionID, limit)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}
	total, err := repo.CountMessages(ctx, h.db, sessionID)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}

	ok(c, http.StatusOK, ListMessagesResponse{Messages: items, Total: total})
}
