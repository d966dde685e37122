package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite" // pure-Go SQLite (no CGO)
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/skumar-dev/portfolio-chat-backend/internal/domain"
	"github.com/skumar-dev/portfolio-chat-backend/internal/repo"
	"github.com/skumar-dev/portfolio-chat-backend/internal/storage"
)

// test DB helper
func newSvcDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), fmt.Sprintf("svc_%d.db", time.Now().UnixNano()))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	if err := db.AutoMigrate(&domain.ChatMessage{}, &domain.Idempotency{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

// fastSvc returns a service with a tight reply window so deferred-reply
// tests finish quickly.
func fastSvc(db *gorm.DB) *MessageService {
	return &MessageService{
		DB:            db,
		ReplyDelayMin: 5 * time.Millisecond,
		ReplyDelayMax: 15 * time.Millisecond,
	}
}

// waitForMessages polls until the session holds want messages or the
// deadline passes, returning the final listing either way.
func waitForMessages(t *testing.T, db *gorm.DB, sessionID string, want int) []domain.ChatMessage {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for {
		got, err := repo.ListMessages(context.Background(), db, sessionID, 0)
		if err != nil {
			t.Fatalf("ListMessages: %v", err)
		}
		if len(got) >= want || time.Now().After(deadline) {
			return got
		}
		time.Sleep(10 * time.Millisecond)
	}
}

type memStore struct{ puts int }

func (m *memStore) Put(_ context.Context, key, _ string, r io.Reader) (string, error) {
	if _, err := io.Copy(io.Discard, r); err != nil {
		return "", err
	}
	m.puts++
	return "https://blobs.example.com/" + key, nil
}

type failStore struct{}

func (failStore) Put(context.Context, string, string, io.Reader) (string, error) {
	return "", errors.New("store down")
}

type captureNotifier struct{ got chan *domain.ChatMessage }

func (n *captureNotifier) VisitorMessage(_ context.Context, m *domain.ChatMessage) error {
	n.got <- m
	return nil
}

func TestSend_InvalidSender(t *testing.T) {
	s := fastSvc(newSvcDB(t))
	if _, err := s.Send(context.Background(), "hi", "ghost", nil); !errors.Is(err, ErrInvalidSender) {
		t.Fatalf("err = %v, want ErrInvalidSender", err)
	}
}

func TestSend_TooLong(t *testing.T) {
	s := fastSvc(newSvcDB(t))
	s.MaxContentRunes = 5
	if _, err := s.Send(context.Background(), "abcdef", domain.SenderVisitor, nil); !errors.Is(err, ErrTooLong) {
		t.Fatalf("err = %v, want ErrTooLong", err)
	}
	// Rune count, not byte count: five multi-byte runes fit.
	if _, err := s.Send(context.Background(), "ööööö", domain.SenderAdmin, nil); err != nil {
		t.Fatalf("five runes rejected: %v", err)
	}
}

func TestSend_GeneratesCanonicalSessionID(t *testing.T) {
	db := newSvcDB(t)
	s := fastSvc(db)

	m, err := s.Send(context.Background(), "hello", domain.SenderAdmin, nil)
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	re := regexp.MustCompile(`^session_\d{13}_[a-z0-9]{9}$`)
	if !re.MatchString(m.Metadata.SessionID) {
		t.Fatalf("session id %q does not match canonical format", m.Metadata.SessionID)
	}
}

func TestSend_VisitorGetsDeferredBotReply(t *testing.T) {
	db := newSvcDB(t)
	s := fastSvc(db)

	origin, err := s.Send(context.Background(), "I need a REST api", domain.SenderVisitor, &SendOptions{
		Email:     "v@example.com",
		SessionID: "s-reply",
	})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}

	msgs := waitForMessages(t, db, "s-reply", 2)
	if len(msgs) != 2 {
		t.Fatalf("expected origin + bot reply, got %d messages", len(msgs))
	}
	bot := msgs[1]
	if bot.Sender != domain.SenderBot || !bot.IsBot {
		t.Fatalf("second message is not a bot reply: %+v", bot)
	}
	if bot.Context != "backend" {
		t.Fatalf("bot context = %q, want backend", bot.Context)
	}
	if bot.Email != origin.Email || bot.Metadata.SessionID != origin.Metadata.SessionID {
		t.Fatalf("bot reply not tied to origin: %+v", bot)
	}
	if !bot.Timestamp.After(origin.Timestamp) && !bot.Timestamp.Equal(origin.Timestamp) {
		t.Fatalf("bot reply ordered before origin")
	}
}

func TestSend_AdminGetsNoBotReply(t *testing.T) {
	db := newSvcDB(t)
	s := fastSvc(db)

	if _, err := s.Send(context.Background(), "admin note", domain.SenderAdmin, &SendOptions{SessionID: "s-admin"}); err != nil {
		t.Fatalf("Send: %v", err)
	}
	time.Sleep(100 * time.Millisecond)
	msgs := waitForMessages(t, db, "s-admin", 1)
	if len(msgs) != 1 {
		t.Fatalf("admin message triggered %d extra messages", len(msgs)-1)
	}
}

func TestSend_AutoReplyPrefixedAndNotAnswered(t *testing.T) {
	db := newSvcDB(t)
	s := fastSvc(db)

	m, err := s.Send(context.Background(), "thanks for your message", domain.SenderVisitor, &SendOptions{
		SessionID:   "s-auto",
		IsAutoReply: true,
	})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if !strings.HasPrefix(m.Content, domain.AutoReplyPrefix) {
		t.Fatalf("auto-reply content not prefixed: %q", m.Content)
	}

	// The auto-reply path must never schedule another bot reply.
	time.Sleep(100 * time.Millisecond)
	msgs := waitForMessages(t, db, "s-auto", 1)
	if len(msgs) != 1 {
		t.Fatalf("auto-reply cascaded into %d messages", len(msgs))
	}
}

func TestSend_UploadsAttachments(t *testing.T) {
	db := newSvcDB(t)
	store := &memStore{}
	s := fastSvc(db)
	s.Uploader = &storage.Uploader{Store: store}

	m, err := s.Send(context.Background(), "see attached", domain.SenderAdmin, &SendOptions{
		SessionID: "s-att",
		Attachments: []storage.File{
			{Name: "diagram.png", Size: 10, ContentType: "image/png", Content: strings.NewReader("0123456789")},
			{Name: "cv.pdf", Size: 4, ContentType: "application/pdf", Content: strings.NewReader("%PDF")},
		},
	})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if store.puts != 2 || len(m.Attachments) != 2 {
		t.Fatalf("puts=%d attachments=%d", store.puts, len(m.Attachments))
	}
	if m.Attachments[0].Type != domain.AttachmentImage || m.Attachments[1].Type != domain.AttachmentPDF {
		t.Fatalf("attachment types wrong: %+v", m.Attachments)
	}

	// Read back through GORM to confirm the JSON column roundtrips.
	got, err := repo.GetMessage(context.Background(), db, m.ID)
	if err != nil {
		t.Fatalf("GetMessage: %v", err)
	}
	if len(got.Attachments) != 2 || got.Attachments[1].Name != "cv.pdf" {
		t.Fatalf("attachments did not roundtrip: %+v", got.Attachments)
	}
}

func TestSend_UploadFailureAbortsPersist(t *testing.T) {
	db := newSvcDB(t)
	s := fastSvc(db)
	s.Uploader = &storage.Uploader{Store: failStore{}}

	_, err := s.Send(context.Background(), "doomed", domain.SenderVisitor, &SendOptions{
		SessionID:   "s-fail",
		Attachments: []storage.File{{Name: "x", ContentType: "image/png", Content: strings.NewReader("x")}},
	})
	if !errors.Is(err, ErrUploadFailed) {
		t.Fatalf("err = %v, want ErrUploadFailed", err)
	}
	if msgs := waitForMessages(t, db, "s-fail", 0); len(msgs) != 0 {
		t.Fatalf("message persisted despite upload failure: %v", msgs)
	}
}

func TestSend_NotifiesOwnerForVisitorOnly(t *testing.T) {
	db := newSvcDB(t)
	n := &captureNotifier{got: make(chan *domain.ChatMessage, 2)}
	s := fastSvc(db)
	s.Notifier = n

	if _, err := s.Send(context.Background(), "hello there", domain.SenderVisitor, &SendOptions{SessionID: "s-n"}); err != nil {
		t.Fatalf("Send visitor: %v", err)
	}
	select {
	case m := <-n.got:
		if m.Content != "hello there" {
			t.Fatalf("notified with wrong message: %+v", m)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("owner was not notified for visitor message")
	}

	if _, err := s.Send(context.Background(), "reply", domain.SenderAdmin, &SendOptions{SessionID: "s-n"}); err != nil {
		t.Fatalf("Send admin: %v", err)
	}
	select {
	case m := <-n.got:
		t.Fatalf("owner notified for admin message: %+v", m)
	case <-time.After(150 * time.Millisecond):
	}
}

func TestReplyDelay_Bounds(t *testing.T) {
	s := &MessageService{ReplyDelayMin: 40 * time.Millisecond, ReplyDelayMax: 60 * time.Millisecond}
	for i := 0; i < 200; i++ {
		d := s.replyDelay()
		if d < 40*time.Millisecond || d >= 60*time.Millisecond {
			t.Fatalf("delay %v outside [40ms, 60ms)", d)
		}
	}

	// Unconfigured service falls back to the production window.
	def := &MessageService{}
	for i := 0; i < 50; i++ {
		d := def.replyDelay()
		if d < time.Second || d >= 3*time.Second {
			t.Fatalf("default delay %v outside [1s, 3s)", d)
		}
	}
}

func TestNewSessionID_FormatAndUniqueness(t *testing.T) {
	re := regexp.MustCompile(`^session_\d{13}_[a-z0-9]{9}$`)
	seen := make(map[string]struct{})
	for i := 0; i < 100; i++ {
		id := NewSessionID()
		if !re.MatchString(id) {
			t.Fatalf("bad session id: %q", id)
		}
		if _, dup := seen[id]; dup {
			t.Fatalf("duplicate session id: %q", id)
		}
		seen[id] = struct{}{}
	}
}
