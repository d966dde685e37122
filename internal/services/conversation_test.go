package services

import (
	"testing"
	"time"

	"github.com/skumar-dev/portfolio-chat-backend/internal/domain"
)

func msgAt(email, sender, content, status string, ts time.Time) domain.ChatMessage {
	return domain.ChatMessage{
		Content:   content,
		Sender:    sender,
		Email:     email,
		Status:    status,
		Timestamp: ts,
	}
}

func TestGroupByVisitor(t *testing.T) {
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	msgs := []domain.ChatMessage{
		msgAt("a@example.com", domain.SenderVisitor, "a1", domain.StatusSent, base),
		msgAt("", domain.SenderVisitor, "anon1", domain.StatusSent, base.Add(time.Minute)),
		msgAt("a@example.com", domain.SenderBot, "a2", domain.StatusSent, base.Add(2*time.Minute)),
		msgAt("", domain.SenderVisitor, "anon2", domain.StatusSent, base.Add(3*time.Minute)),
	}

	grouped := GroupByVisitor(msgs)
	if len(grouped) != 2 {
		t.Fatalf("got %d groups, want 2", len(grouped))
	}
	if got := grouped["a@example.com"]; len(got) != 2 || got[0].Content != "a1" || got[1].Content != "a2" {
		t.Fatalf("a@example.com group wrong: %+v", got)
	}
	anon := grouped[AnonymousKey]
	if len(anon) != 2 || anon[0].Content != "anon1" || anon[1].Content != "anon2" {
		t.Fatalf("anonymous group wrong or reordered: %+v", anon)
	}
}

func TestGroupByVisitor_Empty(t *testing.T) {
	if got := GroupByVisitor(nil); len(got) != 0 {
		t.Fatalf("nil input produced %d groups", len(got))
	}
}

func TestSummarizeConversations(t *testing.T) {
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	msgs := []domain.ChatMessage{
		msgAt("old@example.com", domain.SenderVisitor, "long ago", domain.StatusRead, base),
		msgAt("", domain.SenderVisitor, "anon asks", domain.StatusSent, base.Add(time.Minute)),
		msgAt("busy@example.com", domain.SenderVisitor, "q1", domain.StatusSent, base.Add(2*time.Minute)),
		msgAt("busy@example.com", domain.SenderBot, "bot answer", domain.StatusSent, base.Add(3*time.Minute)),
		msgAt("busy@example.com", domain.SenderVisitor, "q2", domain.StatusDelivered, base.Add(4*time.Minute)),
	}

	rows := SummarizeConversations(msgs)
	if len(rows) != 3 {
		t.Fatalf("got %d rows, want 3", len(rows))
	}

	// Most recent activity first.
	if rows[0].Visitor != "busy@example.com" || rows[1].Visitor != AnonymousKey || rows[2].Visitor != "old@example.com" {
		t.Fatalf("row order wrong: %s, %s, %s", rows[0].Visitor, rows[1].Visitor, rows[2].Visitor)
	}

	busy := rows[0]
	if busy.Messages != 3 || busy.Unread != 2 {
		t.Fatalf("busy row: messages=%d unread=%d", busy.Messages, busy.Unread)
	}
	if busy.LastContent != "q2" || busy.LastSender != domain.SenderVisitor {
		t.Fatalf("busy preview wrong: %q from %s", busy.LastContent, busy.LastSender)
	}
	if !busy.LastActivity.Equal(base.Add(4 * time.Minute)) {
		t.Fatalf("busy last activity = %v", busy.LastActivity)
	}

	// Read visitor messages carry no unread badge; bot rows never do.
	if rows[2].Unread != 0 {
		t.Fatalf("old row unread = %d", rows[2].Unread)
	}
}

func TestSummarizeConversations_TieBreakOnVisitor(t *testing.T) {
	ts := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	msgs := []domain.ChatMessage{
		msgAt("b@example.com", domain.SenderVisitor, "b", domain.StatusSent, ts),
		msgAt("a@example.com", domain.SenderVisitor, "a", domain.StatusSent, ts),
	}
	rows := SummarizeConversations(msgs)
	if len(rows) != 2 || rows[0].Visitor != "a@example.com" || rows[1].Visitor != "b@example.com" {
		t.Fatalf("tie-break order wrong: %+v", rows)
	}
}
