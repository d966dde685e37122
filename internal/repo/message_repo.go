// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the ChatMessage
// model.
//
// The chat log is append-only: rows are inserted exactly once and never
// deleted here; the single permitted mutation is the forward-only status
// update performed by MarkMessagesRead. Ordering is always
// (Timestamp ASC, ID ASC) so concurrent writers with equal timestamps still
// produce a deterministic sequence.
//
// Error semantics:
//   - When a message is not found, functions return gorm.ErrRecordNotFound
//     (also exported here as ErrNotFound for convenience).
//   - On DB errors (constraint violations, connectivity issues, etc.),
//     the raw gorm error is propagated.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/skumar-dev/portfolio-chat-backend/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// CreateMessage inserts a new chat message row. The ID and Timestamp are
// assigned here (UUID, server clock in UTC) so client clocks never influence
// ordering; Status defaults to "sent" when unset.
//
// On success, it returns the persisted message. On failure, it returns a DB error.
func CreateMessage(ctx context.Context, db *gorm.DB, m *domain.ChatMessage) (*domain.ChatMessage, error) {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	m.Timestamp = time.Now().UTC()
	if m.Status == "" {
		m.Status = domain.StatusSent
	}
	if err := db.WithContext(ctx).Create(m).Error; err != nil {
		return nil, err
	}
	return m, nil
}

// ListMessages returns up to limit of the most recent messages, delivered in
// ascending timestamp order. When sessionID is non-empty the result is
// restricted to that session. A limit <= 0 disables the cap.
//
// The cap applies to the newest rows: with 80 stored messages and limit 50,
// the oldest 30 are dropped and the remaining 50 come back oldest-first.
func ListMessages(ctx context.Context, db *gorm.DB, sessionID string, limit int) ([]domain.ChatMessage, error) {
	var out []domain.ChatMessage
	q := db.WithContext(ctx).Order("timestamp DESC, id DESC")
	if sessionID != "" {
		q = q.Where("meta_session_id = ?", sessionID)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	// Fetched newest-first to apply the cap; reverse to ascending for delivery.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

// MarkMessagesRead advances the given messages to status "read". Only rows
// authored by a visitor and not already read are touched, which makes the
// call idempotent: re-marking an already-read message affects zero rows and
// is not an error. It returns the number of rows actually updated.
func MarkMessagesRead(ctx context.Context, db *gorm.DB, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res := db.WithContext(ctx).
		Model(&domain.ChatMessage{}).
		Where("id IN ? AND sender = ? AND status <> ?", ids, domain.SenderVisitor, domain.StatusRead).
		Update("status", domain.StatusRead)
	return res.RowsAffected, res.Error
}

// GetMessage fetches a message by ID, or ErrNotFound if missing.
func GetMessage(ctx context.Context, db *gorm.DB, id string) (*domain.ChatMessage, error) {
	var m domain.ChatMessage
	if err := db.WithContext(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		return nil, err
	}
	return &m, nil
}

// CountMessages uses a raw COUNT so a missing table surfaces as an error.
// An empty sessionID counts every message.
func CountMessages(ctx context.Context, db *gorm.DB, sessionID string) (int64, error) {
	var total int64
	var err error
	if sessionID != "" {
		err = db.WithContext(ctx).
			Raw("SELECT COUNT(*) FROM chat_messages WHERE meta_session_id = ?", sessionID).
			Scan(&total).Error
	} else {
		err = db.WithContext(ctx).
			Raw("SELECT COUNT(*) FROM chat_messages").
			Scan(&total).Error
	}
	return total, err
}
