// Package audit stores the append-only history of listing attempts.
package audit

import (
	"context"
	"database/sql"

	"github.com/erazemk/prodaja/internal/model"
	"github.com/erazemk/prodaja/internal/store"
)

// Log records listing attempts. Entries can only be appended; List returns
// them newest first.
type Log interface {
	// Append stores e and fills in its ID and, when unset, its creation time.
	Append(ctx context.Context, e *model.ListingLogEntry) error
	List(ctx context.Context, filter model.ListingFilter) ([]model.ListingLogEntry, error)
}

// SQLite keeps the log in the listing_logs table of the main database.
type SQLite struct {
	db *sql.DB
}

// NewSQLite returns a Log backed by db.
func NewSQLite(db *sql.DB) *SQLite {
	return &SQLite{db: db}
}

// Append stores e.
func (l *SQLite) Append(ctx context.Context, e *model.ListingLogEntry) error {
	return store.AppendListingLog(ctx, l.db, e)
}

// List returns entries matching filter, newest first.
func (l *SQLite) List(ctx context.Context, filter model.ListingFilter) ([]model.ListingLogEntry, error) {
	return store.ListListingLogs(ctx, l.db, filter)
}
