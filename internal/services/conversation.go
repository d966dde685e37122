// Package services – conversation grouping
//
// Pure derived view for the admin dashboard: the flat snapshot from the
// feed is grouped by visitor identity. Nothing here touches the store; the
// grouping is recomputed on every snapshot.
package services

import (
	"sort"
	"time"

	"github.com/skumar-dev/portfolio-chat-backend/internal/domain"
)

// AnonymousKey buckets messages that carry no visitor email.
const AnonymousKey = "anonymous"

// GroupByVisitor groups messages by the sender's email, with empty emails
// collected under AnonymousKey. Input ordering (the store's timestamp
// order) is preserved within each group.
func GroupByVisitor(messages []domain.ChatMessage) map[string][]domain.ChatMessage {
	out := make(map[string][]domain.ChatMessage)
	for _, m := range messages {
		key := m.Email
		if key == "" {
			key = AnonymousKey
		}
		out[key] = append(out[key], m)
	}
	return out
}

// ConversationSummary is one row of the admin conversation list.
type ConversationSummary struct {
	Visitor      string    `json:"visitor"`
	Messages     int       `json:"messages"`
	Unread       int       `json:"unread"`
	LastContent  string    `json:"last_content"`
	LastSender   string    `json:"last_sender"`
	LastActivity time.Time `json:"last_activity"`
}

// SummarizeConversations derives the dashboard's conversation list from a
// snapshot: one row per visitor key with unread badge count and a preview
// of the latest message. Rows are ordered by most recent activity, visitor
// key as a deterministic tie-break.
func SummarizeConversations(messages []domain.ChatMessage) []ConversationSummary {
	grouped := GroupByVisitor(messages)
	out := make([]ConversationSummary, 0, len(grouped))
	for visitor, msgs := range grouped {
		last := msgs[len(msgs)-1]
		row := ConversationSummary{
			Visitor:      visitor,
			Messages:     len(msgs),
			LastContent:  last.Content,
			LastSender:   last.Sender,
			LastActivity: last.Timestamp,
		}
		for _, m := range msgs {
			if m.Sender == domain.SenderVisitor && m.Status != domain.StatusRead {
				row.Unread++
			}
		}
		out = append(out, row)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].LastActivity.Equal(out[j].LastActivity) {
			return out[i].LastActivity.After(out[j].LastActivity)
		}
		return out[i].Visitor < out[j].Visitor
	})
	return out
}
