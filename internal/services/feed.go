// Package services – MessageFeed
//
// This file implements the live view over the message store. Writers call
// Notify after every store change; each subscriber then re-queries the
// store and receives the full ordered snapshot (never a diff), capped at
// the most recent messages and optionally filtered to one session.
//
// Admin-side subscriptions may enable read-marking: every visitor message
// in a delivered snapshot that is not yet read is advanced to "read" as a
// side effect. The repository update touches only unread visitor rows, so
// the follow-up notification triggered by the marking converges after one
// extra round instead of looping.
package services

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/skumar-dev/portfolio-chat-backend/internal/domain"
	"github.com/skumar-dev/portfolio-chat-backend/internal/observability"
	"github.com/skumar-dev/portfolio-chat-backend/internal/repo"
)

// DefaultFeedLimit caps snapshots at the most recent 50 messages.
const DefaultFeedLimit = 50

// SnapshotFunc receives the full ordered result set of a live query at one
// point in time. It is invoked from the subscriber's own goroutine; slow
// callbacks delay only their own subscription.
type SnapshotFunc func(messages []domain.ChatMessage)

// MessageFeed fans out store-change notifications to live subscribers.
// The zero value is not usable; construct with NewMessageFeed.
type MessageFeed struct {
	db    *gorm.DB
	limit int

	mu     sync.Mutex
	nextID int
	subs   map[int]*feedSub
}

type feedSub struct {
	onChange   SnapshotFunc
	markAsRead bool
	sessionID  string

	// kick is buffered with capacity 1 so bursts of notifications coalesce
	// into a single re-query.
	kick chan struct{}
	stop chan struct{}
}

// NewMessageFeed creates a feed over db. A limit <= 0 falls back to
// DefaultFeedLimit.
func NewMessageFeed(db *gorm.DB, limit int) *MessageFeed {
	if limit <= 0 {
		limit = DefaultFeedLimit
	}
	return &MessageFeed{
		db:    db,
		limit: limit,
		subs:  make(map[int]*feedSub),
	}
}

// Subscribe registers a live query. onChange fires once with the initial
// snapshot and again after every subsequent store change. When sessionID is
// non-empty the snapshots contain only that session's messages. With
// markAsRead, delivered visitor messages are advanced to "read" exactly
// once each.
//
// The returned function cancels the subscription; it is safe to call more
// than once. Cancelling does not stop in-flight writes, including a bot
// reply scheduled before cancellation.
func (f *MessageFeed) Subscribe(onChange SnapshotFunc, markAsRead bool, sessionID string) (unsubscribe func()) {
	sub := &feedSub{
		onChange:   onChange,
		markAsRead: markAsRead,
		sessionID:  sessionID,
		kick:       make(chan struct{}, 1),
		stop:       make(chan struct{}),
	}

	f.mu.Lock()
	id := f.nextID
	f.nextID++
	f.subs[id] = sub
	f.mu.Unlock()
	observability.FeedSubscribers.Inc()

	go f.run(sub)

	var once sync.Once
	return func() {
		once.Do(func() {
			f.mu.Lock()
			delete(f.subs, id)
			f.mu.Unlock()
			observability.FeedSubscribers.Dec()
			close(sub.stop)
		})
	}
}

// Notify wakes every subscriber to re-query the store. It never blocks:
// a subscriber that already has a pending wake-up is skipped.
func (f *MessageFeed) Notify() {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, sub := range f.subs {
		select {
		case sub.kick <- struct{}{}:
		default:
		}
	}
}

// run delivers the initial snapshot, then one snapshot per coalesced
// notification until the subscription is cancelled.
func (f *MessageFeed) run(sub *feedSub) {
	f.deliver(sub)
	for {
		select {
		case <-sub.stop:
			return
		case <-sub.kick:
			select {
			case <-sub.stop:
				return
			default:
			}
			f.deliver(sub)
		}
	}
}

// deliver queries the current snapshot, hands it to the callback, and
// applies the read-marking side effect. Query failures are logged and the
// snapshot skipped; the live query picks up again on the next notification
// (reconnection is the store client's concern, not ours).
func (f *MessageFeed) deliver(sub *feedSub) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	snapshot, err := repo.ListMessages(ctx, f.db, sub.sessionID, f.limit)
	if err != nil {
		log.Error().
			Err(err).
			Str("session_id", sub.sessionID).
			Msg("feed snapshot query failed")
		return
	}
	sub.onChange(snapshot)

	if !sub.markAsRead {
		return
	}
	var unread []string
	for _, m := range snapshot {
		if m.Sender == domain.SenderVisitor && m.Status != domain.StatusRead {
			unread = append(unread, m.ID)
		}
	}
	if len(unread) == 0 {
		return
	}
	n, err := repo.MarkMessagesRead(ctx, f.db, unread)
	if err != nil {
		log.Error().
			Err(err).
			Str("session_id", sub.sessionID).
			Msg("read marking failed")
		return
	}
	if n > 0 {
		// Statuses changed under every open snapshot; fan out once more.
		f.Notify()
	}
}
