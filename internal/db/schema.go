package db

import (
	"database/sql"
	"fmt"
)

// schema is the full database schema.
const schema = `
CREATE TABLE IF NOT EXISTS users (
    id            INTEGER PRIMARY KEY,
    username      TEXT NOT NULL,
    password_hash TEXT NOT NULL,
    role          TEXT NOT NULL DEFAULT 'staff' CHECK (role IN ('admin', 'staff')),
    created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    deleted_at    DATETIME
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_users_username_active
    ON users(username) WHERE deleted_at IS NULL;

CREATE TABLE IF NOT EXISTS revoked_tokens (
    jti        TEXT PRIMARY KEY,
    expires_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS settings (
    key   TEXT PRIMARY KEY,
    value TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS phones (
    id             INTEGER PRIMARY KEY,
    model_name     TEXT NOT NULL COLLATE NOCASE CHECK (model_name <> ''),
    brand          TEXT NOT NULL COLLATE NOCASE CHECK (brand <> ''),
    condition      TEXT NOT NULL CHECK (condition IN ('New', 'Excellent', 'Good', 'Fair', 'As New', 'Usable', 'Scrap')),
    storage        TEXT NOT NULL DEFAULT '' COLLATE NOCASE,
    color          TEXT NOT NULL DEFAULT '' COLLATE NOCASE,
    base_price     TEXT NOT NULL CHECK (CAST(base_price AS REAL) >= 0),
    stock_quantity INTEGER NOT NULL DEFAULT 0 CHECK (stock_quantity >= 0),
    discontinued   INTEGER NOT NULL DEFAULT 0,
    tags           TEXT NOT NULL DEFAULT '',
    image          BLOB,
    image_mime     TEXT,
    created_at     DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at     DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

-- Identity key used by bulk import upserts.
CREATE UNIQUE INDEX IF NOT EXISTS idx_phones_identity
    ON phones(brand, model_name, storage, color);

-- phone_id is deliberately not a foreign key: log entries outlive deleted phones.
CREATE TABLE IF NOT EXISTS listing_logs (
    id              INTEGER PRIMARY KEY,
    attempt_id      TEXT NOT NULL,
    phone_id        INTEGER NOT NULL,
    platform        TEXT NOT NULL CHECK (platform IN ('X', 'Y', 'Z')),
    success         INTEGER NOT NULL,
    attempted_price TEXT,
    fee             TEXT,
    message         TEXT NOT NULL CHECK (message <> ''),
    listed_by       TEXT,
    created_at      DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_listing_logs_phone ON listing_logs(phone_id);

CREATE TRIGGER IF NOT EXISTS listing_logs_no_update
    BEFORE UPDATE ON listing_logs
BEGIN
    SELECT RAISE(ABORT, 'listing_logs is append-only');
END;

CREATE TRIGGER IF NOT EXISTS listing_logs_no_delete
    BEFORE DELETE ON listing_logs
BEGIN
    SELECT RAISE(ABORT, 'listing_logs is append-only');
END;
`

// migrations is a list of SQL statements applied in order after schema creation.
// Each migration must be idempotent. Append new migrations at the end.
var migrations = []string{
	// Migration 1: speed up the scheduled purge of expired revocations.
	`CREATE INDEX IF NOT EXISTS idx_revoked_tokens_expires ON revoked_tokens(expires_at)`,
	// Migration 2: audit queries filter by platform.
	`CREATE INDEX IF NOT EXISTS idx_listing_logs_platform ON listing_logs(platform)`,
}

// EnsureSchema creates all tables and indexes if they don't already exist,
// then applies migrations.
func EnsureSchema(db *sql.DB) error {
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}

	for i, m := range migrations {
		if _, err := db.Exec(m); err != nil {
			return fmt.Errorf("running migration %d: %w", i+1, err)
		}
	}

	return nil
}
