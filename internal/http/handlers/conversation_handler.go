// Conversation HTTP handlers.
//
// This file exposes the owner's dashboard listing: every stored message
// grouped per visitor, summarized with unread counts and last activity.
// The endpoint is gated behind the admin token at the router level.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/skumar-dev/portfolio-chat-backend/internal/repo"
	"github.com/skumar-dev/portfolio-chat-backend/internal/services"
)

// ListConversationsResponse wraps the per-visitor conversation summaries,
// ordered by most recent activity.
type ListConversationsResponse struct {
	Conversations []services.ConversationSummary `json:"conversations"`
}

// ListConversations godoc
// @ID          listConversations
// @Summary     List conversations grouped by visitor
// @Description Groups all stored messages by visitor email (empty emails fall into
// @Description the "anonymous" bucket) and returns one summary per visitor with
// @Description unread count and last activity, most recent first. Admin only.
// @Tags        Conversations
// @Produce     json
//
// @Param       X-Admin-Token  header  string  true  "Owner token"
//
// @Success     200  {object} handlers.ListConversationsResponse
// @Failure     403  {object} handlers.ErrorResponse "Missing or wrong admin token"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /conversations [get]
func (h *Handlers) ListConversations(c *gin.Context) {
	ctx := c.Request.Context()

	// Unbounded fetch: the dashboard needs every visitor represented, not
	// just those inside the live window.
	messages, err := repo.ListMessages(ctx, h.db, "", 0)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}

	summaries := services.SummarizeConversations(messages)
	ok(c, http.StatusOK, ListConversationsResponse{Conversations: summaries})
}
