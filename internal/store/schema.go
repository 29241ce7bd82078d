package store

import "github.com/jmoiron/sqlx"

// schema creates the notifications relation and its two required access
// paths: keyset pagination per user and the unread badge count.
const schema = `
CREATE TABLE IF NOT EXISTS notifications (
	id                TEXT PRIMARY KEY,
	user_id           TEXT NOT NULL,
	title             TEXT NOT NULL,
	message           TEXT NOT NULL,
	notification_type TEXT NOT NULL DEFAULT '',
	related_id        TEXT NOT NULL DEFAULT '',
	url               TEXT NOT NULL DEFAULT '',
	channel           TEXT NOT NULL DEFAULT 'in_app'
		CHECK (channel IN ('in_app', 'email', 'both')),
	is_read           BOOLEAN NOT NULL DEFAULT FALSE,
	send_status       TEXT NOT NULL DEFAULT 'pending'
		CHECK (send_status IN ('pending', 'sent', 'failed')),
	error_reason      TEXT NOT NULL DEFAULT '',
	send_after        TIMESTAMPTZ,
	claimed_at        TIMESTAMPTZ,
	created_at        TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_notifications_user_created
	ON notifications (user_id, created_at DESC, id DESC);

CREATE INDEX IF NOT EXISTS idx_notifications_user_unread
	ON notifications (user_id, is_read);

CREATE INDEX IF NOT EXISTS idx_notifications_dispatch
	ON notifications (send_status, channel)
	WHERE send_status = 'pending' AND channel IN ('email', 'both');
`

// InitSchema applies the schema. It is idempotent and safe to run on every
// startup.
func InitSchema(db *sqlx.DB) error {
	_, err := db.Exec(schema)
	return err
}
