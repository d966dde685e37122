// Live message feed over Server-Sent Events.
//
// This file exposes GET /messages/stream, a long-lived subscription that
// pushes a full snapshot of the recent message window whenever the chat log
// changes. Full snapshots (rather than deltas) keep the client trivially
// correct: render what arrived, no merge logic, no missed-update repair.
//
// The owner's dashboard connects with mark_read=true so visitor messages are
// advanced to "read" as each snapshot is delivered; that flag is gated behind
// the admin token.
package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/skumar-dev/portfolio-chat-backend/internal/domain"
)

// heartbeatInterval is how often a comment line is written to keep
// intermediaries from reaping an idle stream.
const heartbeatInterval = 15 * time.Second

// StreamMessages godoc
// @ID          streamMessages
// @Summary     Subscribe to live message snapshots
// @Description Opens a Server-Sent Events stream. An initial snapshot of the recent
// @Description message window is sent immediately; further snapshots follow whenever
// @Description the log changes. mark_read=true (admin only) advances delivered
// @Description visitor messages to "read".
// @Tags        Messages
// @Produce     text/event-stream
//
// @Param       session_id    query   string  false "Session to follow (required without admin token)"
// @Param       mark_read     query   bool    false "Mark delivered visitor messages as read (admin only)"
// @Param       X-Admin-Token header  string  false "Owner token"
//
// @Success     200  "SSE stream of snapshot events"
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     403  {object} handlers.ErrorResponse "mark_read without admin token"
// @Router      /messages/stream [get]
func (h *Handlers) StreamMessages(c *gin.Context) {
	sessionID := strings.TrimSpace(c.Query("session_id"))
	if sessionID == "" {
		sessionID = strings.TrimSpace(c.GetHeader("X-Session-ID"))
	}
	admin := h.isAdmin(c)
	if sessionID == "" && !admin {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "session_id required")
		return
	}

	markRead := false
	switch strings.ToLower(c.Query("mark_read")) {
	case "1", "true", "yes":
		markRead = true
	}
	if markRead && !admin {
		fail(c, http.StatusForbidden, ErrCodeForbidden, "mark_read requires the admin token")
		return
	}

	w := c.Writer
	header := w.Header()
	header.Set("Content-Type", "text/event-stream")
	header.Set("Cache-Control", "no-cache")
	header.Set("Connection", "keep-alive")
	header.Set("X-Accel-Buffering", "no") // disable proxy buffering
	w.WriteHeader(http.StatusOK)
	w.Flush()

	// Lift the server write deadline for this response; streams outlive the
	// configured WriteTimeout. Best effort: not every writer supports it.
	rc := http.NewResponseController(w)
	_ = rc.SetWriteDeadline(time.Time{})

	// Bridge the feed callback into this request's goroutine. The feed
	// delivers snapshots sequentially per subscriber, so a blocking send
	// here only backpressures this subscriber; `done` unblocks the feed
	// when the client goes away mid-delivery.
	snapshots := make(chan []domain.ChatMessage, 1)
	done := make(chan struct{})
	unsubscribe := h.feed.Subscribe(func(ms []domain.ChatMessage) {
		select {
		case snapshots <- ms:
		case <-done:
		}
	}, markRead, sessionID)
	defer unsubscribe()
	defer close(done)

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	ctx := c.Request.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case ms := <-snapshots:
			payload, err := json.Marshal(ms)
			if err != nil {
				return
			}
			if _, err := fmt.Fprintf(w, "event: snapshot\ndata: %s\n\n", payload); err != nil {
				return
			}
			w.Flush()
		case <-heartbeat.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
			w.Flush()
		}
	}
}
