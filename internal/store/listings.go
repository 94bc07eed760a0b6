package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/erazemk/prodaja/internal/model"
)

// AppendListingLog records a listing attempt and fills in the entry's ID and,
// when unset, its creation time. Timestamps are stored in UTC.
func AppendListingLog(ctx context.Context, db *sql.DB, e *model.ListingLogEntry) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	e.CreatedAt = e.CreatedAt.UTC()

	var listedBy sql.NullString
	if e.ListedBy != "" {
		listedBy = sql.NullString{String: e.ListedBy, Valid: true}
	}

	result, err := db.ExecContext(ctx,
		`INSERT INTO listing_logs (attempt_id, phone_id, platform, success, attempted_price,
		                           fee, message, listed_by, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.AttemptID, e.PhoneID, string(e.Platform), e.Success, e.AttemptedPrice,
		e.Fee, e.Message, listedBy, e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("appending listing log: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("getting listing log id: %w", err)
	}
	e.ID = id
	return nil
}

// ListListingLogs returns listing log entries newest first.
func ListListingLogs(ctx context.Context, db *sql.DB, filter model.ListingFilter) ([]model.ListingLogEntry, error) {
	query := `SELECT id, attempt_id, phone_id, platform, success, attempted_price, fee,
	                 message, listed_by, created_at
	          FROM listing_logs
	          WHERE 1=1`
	var args []any

	if filter.PhoneID > 0 {
		query += ` AND phone_id = ?`
		args = append(args, filter.PhoneID)
	}
	if filter.Platform != "" {
		query += ` AND platform = ?`
		args = append(args, string(filter.Platform))
	}
	if filter.Success != nil {
		query += ` AND success = ?`
		args = append(args, *filter.Success)
	}

	query += ` ORDER BY id DESC LIMIT ?`
	args = append(args, filter.EffectiveLimit())

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing listing logs: %w", err)
	}
	defer rows.Close()

	var entries []model.ListingLogEntry
	for rows.Next() {
		var e model.ListingLogEntry
		var platform string
		var listedBy sql.NullString
		if err := rows.Scan(&e.ID, &e.AttemptID, &e.PhoneID, &platform, &e.Success,
			&e.AttemptedPrice, &e.Fee, &e.Message, &listedBy, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning listing log: %w", err)
		}
		e.Platform = model.Platform(platform)
		e.ListedBy = listedBy.String
		e.CreatedAt = e.CreatedAt.UTC()
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
