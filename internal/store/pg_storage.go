package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	appErr "github.com/careerlink/notifications/internal/errors"
	"github.com/careerlink/notifications/internal/model"
)

const notificationColumns = `id, user_id, title, message, notification_type,
	related_id, url, channel, is_read, send_status, error_reason, send_after,
	created_at`

type postgresStore struct {
	db *sqlx.DB
}

// NewPostgresStore wraps an existing connection pool.
func NewPostgresStore(db *sqlx.DB) NotificationStore {
	return &postgresStore{db: db}
}

func (s *postgresStore) Create(ctx context.Context, n *model.Notification) error {
	if n == nil {
		return fmt.Errorf("notification cannot be nil")
	}
	query := `INSERT INTO notifications
		(id, user_id, title, message, notification_type, related_id, url,
		 channel, is_read, send_status, send_after)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, FALSE, $9, $10)
		RETURNING created_at`

	row := s.db.QueryRowxContext(ctx, query,
		n.ID, n.UserID, n.Title, n.Message, n.Type, n.RelatedID, n.URL,
		n.Channel, n.SendStatus, n.SendAfter)
	return row.Scan(&n.CreatedAt)
}

func (s *postgresStore) List(ctx context.Context, q ListQuery) ([]model.Notification, error) {
	notifs := []model.Notification{}
	channels := pq.Array(model.ChannelStrings(q.Channels))

	if q.Before != nil {
		// Composite row comparison keeps the keyset strict: only rows below
		// the (created_at, id) boundary, so chained pages never overlap.
		query := fmt.Sprintf(`SELECT %s FROM notifications
			WHERE user_id = $1 AND channel = ANY($2)
			  AND (created_at, id) < ($3, $4)
			ORDER BY created_at DESC, id DESC
			LIMIT $5`, notificationColumns)
		err := s.db.SelectContext(ctx, &notifs, query,
			q.UserID, channels, q.Before.CreatedAt, q.Before.ID, q.Limit)
		if err != nil {
			return nil, err
		}
		return notifs, nil
	}

	query := fmt.Sprintf(`SELECT %s FROM notifications
		WHERE user_id = $1 AND channel = ANY($2)
		ORDER BY created_at DESC, id DESC
		LIMIT $3`, notificationColumns)
	if err := s.db.SelectContext(ctx, &notifs, query, q.UserID, channels, q.Limit); err != nil {
		return nil, err
	}
	return notifs, nil
}

func (s *postgresStore) CountUnread(ctx context.Context, userID string, channels []model.Channel) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM notifications
		WHERE user_id = $1 AND is_read = FALSE AND channel = ANY($2)`
	err := s.db.GetContext(ctx, &count, query, userID, pq.Array(model.ChannelStrings(channels)))
	if err != nil {
		return 0, err
	}
	return count, nil
}

func (s *postgresStore) MarkRead(ctx context.Context, userID, id string) (*model.Notification, bool, error) {
	// is_read only ever moves false -> true, so concurrent writers commute
	// and the guarded update needs no locking.
	query := fmt.Sprintf(`UPDATE notifications SET is_read = TRUE
		WHERE id = $1 AND user_id = $2 AND is_read = FALSE
		RETURNING %s`, notificationColumns)

	var n model.Notification
	err := s.db.GetContext(ctx, &n, query, id, userID)
	if err == nil {
		return &n, true, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, false, err
	}

	// Nothing transitioned: either the row is already read (no-op success)
	// or it does not exist for this caller (fails closed for foreign rows).
	getQuery := fmt.Sprintf(`SELECT %s FROM notifications
		WHERE id = $1 AND user_id = $2`, notificationColumns)
	if err := s.db.GetContext(ctx, &n, getQuery, id, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, appErr.NewNotFound("notification %s", id)
		}
		return nil, false, err
	}
	return &n, false, nil
}

func (s *postgresStore) MarkAllRead(ctx context.Context, userID string, channels []model.Channel) ([]model.Notification, error) {
	query := fmt.Sprintf(`UPDATE notifications SET is_read = TRUE
		WHERE user_id = $1 AND is_read = FALSE AND channel = ANY($2)
		RETURNING %s`, notificationColumns)

	notifs := []model.Notification{}
	err := s.db.SelectContext(ctx, &notifs, query, userID, pq.Array(model.ChannelStrings(channels)))
	if err != nil {
		return nil, err
	}
	return notifs, nil
}

func (s *postgresStore) MarkManyRead(ctx context.Context, userID string, ids []string) ([]model.Notification, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	// One statement for the whole batch: either every unread row in it
	// transitions or none does.
	query := fmt.Sprintf(`UPDATE notifications SET is_read = TRUE
		WHERE user_id = $1 AND is_read = FALSE AND id = ANY($2)
		RETURNING %s`, notificationColumns)

	notifs := []model.Notification{}
	if err := s.db.SelectContext(ctx, &notifs, query, userID, pq.Array(ids)); err != nil {
		return nil, err
	}
	return notifs, nil
}

// dispatchClaimLease bounds how long a claim holds a row. A worker that dies
// mid-send leaves its rows reclaimable after the lease expires.
const dispatchClaimLease = 5 * time.Minute

func (s *postgresStore) PendingDispatch(ctx context.Context, limit int) ([]model.Notification, error) {
	// The fetch is the claim: claimed_at is stamped before any attempt, so a
	// send outlasting the ticker interval is never re-fetched by the next
	// tick. SKIP LOCKED keeps concurrent fetchers off each other's rows.
	now := time.Now()
	query := fmt.Sprintf(`UPDATE notifications
		SET claimed_at = $1
		WHERE id IN (
			SELECT id FROM notifications
			WHERE send_status = $2
			  AND (claimed_at IS NULL OR claimed_at < $3)
			  AND channel IN ($4, $5)
			  AND (send_after IS NULL OR send_after <= $1)
			ORDER BY created_at
			LIMIT $6
			FOR UPDATE SKIP LOCKED)
		RETURNING %s`, notificationColumns)

	notifs := []model.Notification{}
	err := s.db.SelectContext(ctx, &notifs, query,
		now, model.SendPending, now.Add(-dispatchClaimLease),
		model.ChannelEmail, model.ChannelBoth, limit)
	if err != nil {
		return nil, err
	}
	return notifs, nil
}

func (s *postgresStore) ReleaseDispatch(ctx context.Context, id string) error {
	// Only still-pending claims are released; terminal rows are left alone.
	query := `UPDATE notifications SET claimed_at = NULL
		WHERE id = $1 AND send_status = $2`
	_, err := s.db.ExecContext(ctx, query, id, model.SendPending)
	return err
}

func (s *postgresStore) MarkDispatched(ctx context.Context, id string, status model.SendStatus, reason string) (*model.Notification, bool, error) {
	// The send_status guard makes terminal states sticky: once a row is sent
	// or failed, a racing second outcome is dropped.
	query := fmt.Sprintf(`UPDATE notifications
		SET send_status = $1, error_reason = $2, claimed_at = NULL
		WHERE id = $3 AND send_status = $4
		RETURNING %s`, notificationColumns)

	var n model.Notification
	err := s.db.GetContext(ctx, &n, query, status, reason, id, model.SendPending)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return &n, true, nil
}

func (s *postgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
