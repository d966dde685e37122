// Contact form HTTP handler.
//
// POST /contact is the portfolio's classic contact form: no chat session, no
// persistence, just validated input relayed to the owner by email with an
// automatic acknowledgement back to the sender.
package handlers

import (
	"net/http"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/gin-gonic/gin"

	"github.com/skumar-dev/portfolio-chat-backend/internal/http/middleware"
)

// emailShapeRE is a permissive sanity check, not RFC validation; the mail
// relay is the real arbiter of deliverability.
var emailShapeRE = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// ContactRequest is the JSON payload of a contact-form submission.
type ContactRequest struct {
	Name    string `json:"name"    binding:"required,min=1,max=200" example:"Ada Lovelace"`
	Email   string `json:"email"   binding:"required"               example:"ada@example.com"`
	Message string `json:"message" binding:"required,min=1"         example:"I'd like to discuss a contract."`
}

// ContactResponse acknowledges a queued submission.
type ContactResponse struct {
	Status string `json:"status" example:"sent"`
}

// maxContactMessageRunes caps the free-text body; anything longer belongs in
// an attachment through the chat endpoint.
const maxContactMessageRunes = 10000

// Contact godoc
// @ID          contact
// @Summary     Submit the contact form
// @Description Validates the submission and emails it to the portfolio owner; the
// @Description sender receives an automatic acknowledgement. Returns 503 when no
// @Description mail relay is configured.
// @Tags        Contact
// @Accept      json
// @Produce     json
//
// @Param       body  body  handlers.ContactRequest  true  "Contact form payload"
//
// @Success     200  {object} handlers.ContactResponse
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     500  {object} handlers.ErrorResponse "Delivery failed"
// @Failure     503  {object} handlers.ErrorResponse "Mail not configured"
// @Router      /contact [post]
func (h *Handlers) Contact(c *gin.Context) {
	if h.contact == nil {
		fail(c, http.StatusServiceUnavailable, ErrCodeContactFailed, "contact form is not available")
		return
	}

	var req ContactRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "name, email and message are required")
		return
	}

	name := strings.TrimSpace(req.Name)
	email := strings.TrimSpace(req.Email)
	message := strings.TrimSpace(req.Message)
	if name == "" || message == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "name, email and message are required")
		return
	}
	if !emailShapeRE.MatchString(email) {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid email address")
		return
	}
	if utf8.RuneCountInString(message) > maxContactMessageRunes {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "message too long")
		return
	}

	if err := h.contact.ContactForm(c.Request.Context(), name, email, message); err != nil {
		lg := middleware.LoggerFrom(c)
		lg.Error().Err(err).Msg("contact form delivery failed")
		fail(c, http.StatusInternalServerError, ErrCodeContactFailed, "could not deliver your message")
		return
	}

	ok(c, http.StatusOK, ContactResponse{Status: "sent"})
}
