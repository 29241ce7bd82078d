package store

import (
	"context"

	"github.com/careerlink/notifications/internal/model"
)

// ListQuery describes one page fetch. Channels must already be sanitized
// through model.VisibleChannels by the caller.
type ListQuery struct {
	UserID   string
	Limit    int
	Before   *model.Cursor
	Channels []model.Channel
}

// NotificationStore defines the DB operations for notification rows.
type NotificationStore interface {
	// Create persists a new row and fills in its created_at.
	Create(ctx context.Context, n *model.Notification) error
	// List returns up to Limit rows strictly ordered by
	// (created_at DESC, id DESC), strictly older than Before when set.
	List(ctx context.Context, q ListQuery) ([]model.Notification, error)
	// CountUnread counts unread rows under the same channel predicate as List.
	CountUnread(ctx context.Context, userID string, channels []model.Channel) (int, error)
	// MarkRead transitions one owned row to read. The returned flag is false
	// when the row was already read (a no-op success).
	MarkRead(ctx context.Context, userID, id string) (*model.Notification, bool, error)
	// MarkAllRead transitions every unread row on the given channels and
	// returns the rows that actually changed.
	MarkAllRead(ctx context.Context, userID string, channels []model.Channel) ([]model.Notification, error)
	// MarkManyRead transitions the given owned rows in one statement and
	// returns the rows that actually changed.
	MarkManyRead(ctx context.Context, userID string, ids []string) ([]model.Notification, error)
	// PendingDispatch claims up to limit rows awaiting email delivery whose
	// send_after is due. A claimed row is invisible to other fetchers until
	// its claim lease expires or is released.
	PendingDispatch(ctx context.Context, limit int) ([]model.Notification, error)
	// ReleaseDispatch returns a claimed row to pending without recording an
	// outcome, for attempts that never reached the provider.
	ReleaseDispatch(ctx context.Context, id string) error
	// MarkDispatched records a terminal delivery outcome. The returned flag
	// is false when the row had already left pending; terminal states are
	// never overwritten.
	MarkDispatched(ctx context.Context, id string, status model.SendStatus, reason string) (*model.Notification, bool, error)
	Ping(ctx context.Context) error
}
