// Package services – MessageService
//
// This file implements MessageService, the application-level component that
// owns the write path of the chat pipeline. It uploads attachments, resolves
// session identity, persists the message, and conditionally schedules the
// deferred bot reply produced by the responder table.
//
// The deferred reply is fire-and-forget: Send returns the triggering
// message as soon as it is persisted, and a failure of the later bot write
// is logged, never surfaced — the original caller is long gone by then.
//
// Observability: public methods are OpenTelemetry-instrumented; spans carry
// the sender and session identifiers.
package services

import (
	"context"
	"fmt"
	"math/rand"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/skumar-dev/portfolio-chat-backend/internal/domain"
	"github.com/skumar-dev/portfolio-chat-backend/internal/observability"
	"github.com/skumar-dev/portfolio-chat-backend/internal/repo"
	"github.com/skumar-dev/portfolio-chat-backend/internal/responder"
	"github.com/skumar-dev/portfolio-chat-backend/internal/storage"

	// OpenTelemetry
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Notifier is the external email collaborator. Calls are best-effort and
// non-blocking from the sender's point of view; failures never affect
// message persistence.
type Notifier interface {
	VisitorMessage(ctx context.Context, m *domain.ChatMessage) error
}

// SendOptions carries the optional inputs of a send.
type SendOptions struct {
	// Email associates the message with a visitor identity when provided.
	Email string
	// Attachments are raw files uploaded before the message is persisted.
	Attachments []storage.File
	// IsAutoReply marks content written through the auto-reply path; such
	// sends never schedule a bot reply and get the AutoReplyPrefix marker.
	IsAutoReply bool
	// SessionID groups messages of one browsing session. When empty a fresh
	// identifier is synthesized.
	SessionID string
	// Context tags which assistant flow produced a bot message.
	Context string
	// UserAgent is a best-effort client descriptor, informational only.
	UserAgent string
}

// MessageService coordinates attachment upload, message persistence, and
// deferred bot replies.
type MessageService struct {
	DB       *gorm.DB
	Uploader *storage.Uploader
	Feed     *MessageFeed // optional; notified after every write
	Notifier Notifier     // optional; called for visitor messages

	// Deferred-reply delay window. Zero values default to [1s, 3s).
	ReplyDelayMin time.Duration
	ReplyDelayMax time.Duration

	// MaxContentRunes caps content length when > 0.
	MaxContentRunes int
}

// Send validates, uploads attachments, persists one ChatMessage, and — for
// visitor messages outside the auto-reply path — schedules the bot reply.
// The returned message is the one persisted here, never the bot reply.
func (s *MessageService) Send(ctx context.Context, content, sender string, opts *SendOptions) (*domain.ChatMessage, error) {
	tr := otel.Tracer("services/MessageService")
	ctx, span := tr.Start(ctx, "Send",
		trace.WithAttributes(attribute.String("message.sender", sender)),
	)
	defer span.End()

	if opts == nil {
		opts = &SendOptions{}
	}
	if !domain.ValidSender(sender) {
		return nil, ErrInvalidSender
	}
	if s.MaxContentRunes > 0 && utf8.RuneCountInString(content) > s.MaxContentRunes {
		return nil, ErrTooLong
	}

	// Upload every attachment first; a single failure aborts the send so no
	// message ever references a partial attachment set.
	var attachments []domain.ChatAttachment
	if len(opts.Attachments) > 0 {
		if s.Uploader == nil {
			return nil, fmt.Errorf("%w: no uploader configured", ErrUploadFailed)
		}
		uploaded, err := s.Uploader.UploadAll(ctx, opts.Attachments)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrUploadFailed, err)
		}
		attachments = uploaded
	}

	sessionID := opts.SessionID
	if sessionID == "" {
		sessionID = NewSessionID()
	}
	span.SetAttributes(attribute.String("chat.session_id", sessionID))

	if opts.IsAutoReply {
		content = domain.AutoReplyPrefix + content
	}

	msg := &domain.ChatMessage{
		Content: content,
		Sender:  sender,
		Email:   strings.TrimSpace(opts.Email),
		Status:  domain.StatusSent,
		IsBot:   sender == domain.SenderBot,
		Context: opts.Context,
		Metadata: domain.MessageMetadata{
			SessionID: sessionID,
			UserAgent: opts.UserAgent,
		},
	}
	if len(attachments) > 0 {
		msg.Attachments = attachments
	}

	persisted, err := repo.CreateMessage(ctx, s.DB, msg)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPersistFailed, err)
	}
	observability.MessagesCreated.WithLabelValues(persisted.Sender).Inc()
	for _, a := range attachments {
		observability.AttachmentBytes.Add(float64(a.Size))
	}
	s.notifyFeed()

	if sender == domain.SenderVisitor {
		s.notifyOwner(persisted)
		if !opts.IsAutoReply {
			s.scheduleBotReply(persisted)
		}
	}

	return persisted, nil
}

// notifyFeed wakes live subscribers after a store write.
func (s *MessageService) notifyFeed() {
	if s.Feed != nil {
		s.Feed.Notify()
	}
}

// notifyOwner hands the "new visitor message" event to the email notifier.
// Fire-and-forget: the goroutine logs failures and nothing else.
func (s *MessageService) notifyOwner(m *domain.ChatMessage) {
	if s.Notifier == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := s.Notifier.VisitorMessage(ctx, m); err != nil {
			log.Warn().
				Err(err).
				Str("message_id", m.ID).
				Str("session_id", m.Metadata.SessionID).
				Msg("visitor message notification failed")
		}
	}()
}

// scheduleBotReply arms a timer that writes the responder's reply to the
// store after a randomized delay. The scheduling call never blocks and never
// fails the caller; a failed deferred write is logged only.
func (s *MessageService) scheduleBotReply(origin *domain.ChatMessage) {
	reply, topic := responder.RespondWithTopic(origin.Content)

	time.AfterFunc(s.replyDelay(), func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		bot := &domain.ChatMessage{
			Content: reply,
			Sender:  domain.SenderBot,
			Email:   origin.Email,
			Status:  domain.StatusSent,
			IsBot:   true,
			Context: topic,
			Metadata: domain.MessageMetadata{
				SessionID: origin.Metadata.SessionID,
			},
		}
		if _, err := repo.CreateMessage(ctx, s.DB, bot); err != nil {
			log.Error().
				Err(err).
				Str("session_id", origin.Metadata.SessionID).
				Str("origin_id", origin.ID).
				Msg("deferred bot reply failed")
			return
		}
		observability.MessagesCreated.WithLabelValues(domain.SenderBot).Inc()
		observability.AutoReplies.WithLabelValues(topic).Inc()
		s.notifyFeed()
	})
}

// replyDelay picks a duration in [ReplyDelayMin, ReplyDelayMax), defaulting
// to [1s, 3s) when unconfigured.
func (s *MessageService) replyDelay() time.Duration {
	min, max := s.ReplyDelayMin, s.ReplyDelayMax
	if min <= 0 && max <= 0 {
		min, max = time.Second, 3*time.Second
	}
	if max <= min {
		return min
	}
	return min + time.Duration(rand.Int63n(int64(max-min)))
}

// sessionAlphabet matches the widget's client-side generator: the random
// suffix is drawn from lower-case base36.
const sessionAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

// NewSessionID synthesizes a session identifier in the canonical
// "session_<millisecond-timestamp>_<9-char-alnum>" format. Consumers treat
// the result as an opaque string; the format is a uniqueness heuristic, not
// a parsed structure.
func NewSessionID() string {
	suffix := make([]byte, 9)
	for i := range suffix {
		suffix[i] = sessionAlphabet[rand.Intn(len(sessionAlphabet))]
	}
	return "session_" + strconv.FormatInt(time.Now().UnixMilli(), 10) + "_" + string(suffix)
}
