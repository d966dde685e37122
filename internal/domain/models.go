// Package domain defines the persistence models for the chat message
// pipeline. These types are mapped with GORM and form the core data layer
// of the portfolio backend.
package domain

import (
	"time"

	"gorm.io/datatypes"
)

// Sender values. A message's sender is set once at creation and never changes.
const (
	SenderVisitor = "visitor"
	SenderAdmin   = "admin"
	SenderBot     = "bot"
)

// Delivery status values. Status only ever moves forward
// (sent → delivered → read); "delivered" is reserved and currently unused.
const (
	StatusSent      = "sent"
	StatusDelivered = "delivered"
	StatusRead      = "read"
)

// Attachment type classifications derived from the MIME type at upload time.
const (
	AttachmentImage = "image"
	AttachmentPDF   = "pdf"
	AttachmentOther = "other"
)

// AutoReplyPrefix marks message content written through the auto-reply path.
const AutoReplyPrefix = "[Auto-Reply] "

// ChatAttachment describes one uploaded file referenced by a message. All
// four fields are populated before the owning message is persisted; the URL
// must be fetchable by an unauthenticated client.
type ChatAttachment struct {
	Name string `json:"name"`
	URL  string `json:"url"`
	Type string `json:"type"`
	Size int64  `json:"size"`
}

// MessageMetadata carries session-scoped context stored alongside a message.
// SessionID groups the messages of one anonymous browsing session; UserAgent
// is informational only.
type MessageMetadata struct {
	SessionID string `json:"sessionId"           gorm:"column:meta_session_id;type:varchar(64);index:idx_session_msgs,priority:1"`
	UserAgent string `json:"userAgent,omitempty" gorm:"column:meta_user_agent;type:varchar(512)"`
}

// ChatMessage is one appended entry in the chat log. Rows are immutable once
// created except for Status, which the admin-side subscription advances to
// "read". Timestamp is assigned server-side on insert and is the sole
// ordering authority.
//
// Fields:
//   - ID: stable UUID primary key (char(36)).
//   - Content: text body; prefixed with AutoReplyPrefix on the auto-reply path.
//   - Sender: one of visitor/admin/bot (enforced by DB constraint).
//   - Timestamp: server-assigned creation time (UTC), indexed for ordering.
//   - Email: optional visitor identity; empty rows group under "anonymous".
//   - Status: sent/delivered/read, forward-only.
//   - Attachments: JSON-encoded list of ChatAttachment descriptors.
//   - Metadata: embedded session id / user agent.
//   - IsBot / Context: tags identifying automatic-assistant messages and
//     which assistant flow produced them.
type ChatMessage struct {
	ID          string                              `json:"id"        gorm:"type:char(36);primaryKey"`
	Content     string                              `json:"content"   gorm:"type:text;not null"`
	Sender      string                              `json:"sender"    gorm:"type:varchar(16);not null;check:sender IN ('visitor','admin','bot')"`
	Timestamp   time.Time                           `json:"timestamp" gorm:"not null;index:idx_session_msgs,priority:2;index"`
	Email       string                              `json:"email,omitempty" gorm:"type:varchar(255);index"`
	Status      string                              `json:"status"    gorm:"type:varchar(16);not null;default:'sent';check:status IN ('sent','delivered','read')"`
	Attachments datatypes.JSONSlice[ChatAttachment] `json:"attachments,omitempty"`
	Metadata    MessageMetadata                     `json:"metadata"  gorm:"embedded"`
	IsBot       bool                                `json:"isBot"     gorm:"not null;default:false"`
	Context     string                              `json:"context,omitempty" gorm:"type:varchar(64)"`
	UpdatedAt   time.Time                           `json:"-"`
}

// TableName returns the database table name for ChatMessage.
func (ChatMessage) TableName() string { return "chat_messages" }

// statusRank orders the delivery states for forward-only transitions.
var statusRank = map[string]int{
	StatusSent:      0,
	StatusDelivered: 1,
	StatusRead:      2,
}

// StatusAdvances reports whether moving from → to is a legal forward
// transition. Equal states are not an advance (re-marking is a no-op).
func StatusAdvances(from, to string) bool {
	f, okF := statusRank[from]
	t, okT := statusRank[to]
	return okF && okT && t > f
}

// ValidSender reports whether s is one of the three known sender values.
func ValidSender(s string) bool {
	switch s {
	case SenderVisitor, SenderAdmin, SenderBot:
		return true
	}
	return false
}
