package repo

import (
	"context"
	"testing"
	"time"

	"github.com/skumar-dev/portfolio-chat-backend/internal/domain"
)

func TestMessagesStats_Empty(t *testing.T) {
	db := newMsgRepoDB(t, &domain.ChatMessage{})

	count, maxTS, err := MessagesStats(context.Background(), db, "s1")
	if err != nil {
		t.Fatalf("MessagesStats: %v", err)
	}
	if count != 0 || maxTS != nil {
		t.Fatalf("empty stats = (%d, %v)", count, maxTS)
	}
}

func TestMessagesStats_ChangesWhenStatusChanges(t *testing.T) {
	db := newMsgRepoDB(t, &domain.ChatMessage{})
	ctx := context.Background()

	m, err := CreateMessage(ctx, db, &domain.ChatMessage{
		Content:  "hi",
		Sender:   domain.SenderVisitor,
		Metadata: domain.MessageMetadata{SessionID: "s1"},
	})
	if err != nil {
		t.Fatalf("CreateMessage: %v", err)
	}

	count, before, err := MessagesStats(ctx, db, "s1")
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if count != 1 || before == nil {
		t.Fatalf("stats = (%d, %v)", count, before)
	}

	// A read-marking pass must move the high-water mark so ETags roll over.
	time.Sleep(1100 * time.Millisecond) // UpdatedAt has second resolution in the ETag
	if _, err := MarkMessagesRead(ctx, db, []string{m.ID}); err != nil {
		t.Fatalf("MarkMessagesRead: %v", err)
	}
	_, after, err := MessagesStats(ctx, db, "s1")
	if err != nil {
		t.Fatalf("stats after: %v", err)
	}
	if after == nil || !after.After(*before) {
		t.Fatalf("UpdatedAt did not advance: before=%v after=%v", before, after)
	}
}

func TestUnreadCount(t *testing.T) {
	db := newMsgRepoDB(t, &domain.ChatMessage{})
	ctx := context.Background()

	ts := time.Now().UTC()
	seedMessage(t, db, "u1", "s1", domain.SenderVisitor, "a", ts, domain.StatusSent)
	seedMessage(t, db, "u2", "s1", domain.SenderVisitor, "b", ts, domain.StatusRead)
	seedMessage(t, db, "u3", "s1", domain.SenderBot, "c", ts, domain.StatusSent)
	seedMessage(t, db, "u4", "s2", domain.SenderVisitor, "d", ts, domain.StatusSent)

	if n, err := UnreadCount(ctx, db, "s1"); err != nil || n != 1 {
		t.Fatalf("UnreadCount(s1) = %d, %v", n, err)
	}
	if n, err := UnreadCount(ctx, db, ""); err != nil || n != 2 {
		t.Fatalf("UnreadCount(all) = %d, %v", n, err)
	}
}
