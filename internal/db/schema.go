package db

import (
	"database/sql"
	"fmt"
)

// schema is the full database schema. Timestamps are fixed-width UTC text so
// they compare correctly as strings.
const schema = `
CREATE TABLE IF NOT EXISTS items (
    id             TEXT PRIMARY KEY,
    title          TEXT NOT NULL,
    description    TEXT NOT NULL DEFAULT '',
    status         TEXT NOT NULL CHECK (status IN ('lost', 'found')),
    category       TEXT NOT NULL DEFAULT '',
    location       TEXT NOT NULL DEFAULT '',
    image_url      TEXT NOT NULL DEFAULT '',
    image          BLOB,
    image_mime     TEXT,
    created_at     TEXT NOT NULL,
    reported_by    TEXT NOT NULL,
    reporter_name  TEXT NOT NULL DEFAULT '',
    reporter_email TEXT NOT NULL DEFAULT '',
    claimed        INTEGER NOT NULL DEFAULT 0,
    claimed_by     TEXT NOT NULL DEFAULT '',
    approved       INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_items_status_created
    ON items(status, created_at);

CREATE TABLE IF NOT EXISTS claims (
    id             TEXT PRIMARY KEY,
    item_id        TEXT NOT NULL,
    item_title     TEXT NOT NULL DEFAULT '',
    claimed_by     TEXT NOT NULL,
    message        TEXT NOT NULL,
    status         TEXT NOT NULL DEFAULT 'pending' CHECK (status IN ('pending', 'approved', 'rejected', 'received')),
    meetup_address TEXT NOT NULL DEFAULT '',
    created_at     TEXT NOT NULL,
    decided_at     TEXT,
    received_at    TEXT
);

CREATE INDEX IF NOT EXISTS idx_claims_item
    ON claims(item_id, created_at);

CREATE TABLE IF NOT EXISTS notifications (
    id             TEXT PRIMARY KEY,
    user_id        TEXT NOT NULL,
    type           TEXT NOT NULL,
    item_id        TEXT NOT NULL DEFAULT '',
    item_title     TEXT NOT NULL DEFAULT '',
    message        TEXT NOT NULL,
    meetup_address TEXT NOT NULL DEFAULT '',
    read           INTEGER NOT NULL DEFAULT 0,
    created_at     TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_notifications_user
    ON notifications(user_id, created_at);

CREATE TABLE IF NOT EXISTS settings (
    key   TEXT PRIMARY KEY,
    value TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS revoked_tokens (
    token_key  TEXT PRIMARY KEY,
    expires_at TEXT NOT NULL
);
`

// EnsureSchema creates all tables and indexes if they don't already exist,
// then applies pending migrations.
func EnsureSchema(db *sql.DB) error {
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}
	return Migrate(db)
}
