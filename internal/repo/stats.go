// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides small aggregate/statistics queries used
// primarily for conditional responses (e.g., ETag generation) in the HTTP
// layer. Each function is context-aware and safe to call from services or
// handlers.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/skumar-dev/portfolio-chat-backend/internal/domain"
)

// MessagesStats returns aggregate metadata for the chat log, optionally
// scoped to one session: the total number of rows and the maximum UpdatedAt
// timestamp among those rows. Status updates bump UpdatedAt, so a read-marking
// pass invalidates the derived ETag just like a new message does.
//
// When there are no matching rows, count is 0 and maxUpdatedAt is nil.
func MessagesStats(ctx context.Context, db *gorm.DB, sessionID string) (count int64, maxUpdatedAt *time.Time, err error) {
	q := db.WithContext(ctx).Model(&domain.ChatMessage{})
	if sessionID != "" {
		q = q.Where("meta_session_id = ?", sessionID)
	}

	// Count
	if err = q.Count(&count).Error; err != nil {
		return 0, nil, err
	}
	if count == 0 {
		return 0, nil, nil
	}

	// Get latest updated_at (avoid MAX() -> TEXT in SQLite)
	var row struct {
		UpdatedAt time.Time
	}
	if err = q.Select("updated_at").Order("updated_at DESC").Limit(1).Scan(&row).Error; err != nil {
		return 0, nil, err
	}
	return count, &row.UpdatedAt, nil
}

// UnreadCount returns the number of visitor messages that have not been
// marked read yet, optionally scoped to one session. Used by the admin
// dashboard badge.
func UnreadCount(ctx context.Context, db *gorm.DB, sessionID string) (int64, error) {
	q := db.WithContext(ctx).
		Model(&domain.ChatMessage{}).
		Where("sender = ? AND status <> ?", domain.SenderVisitor, domain.StatusRead)
	if sessionID != "" {
		q = q.Where("meta_session_id = ?", sessionID)
	}
	var total int64
	err := q.Count(&total).Error
	return total, err
}
