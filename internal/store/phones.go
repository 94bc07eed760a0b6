package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/erazemk/prodaja/internal/model"
)

// ErrDuplicate is returned when a phone with the same brand, model, storage
// and color already exists.
var ErrDuplicate = errors.New("phone already exists")

const phoneColumns = `id, model_name, brand, condition, storage, color, base_price,
	stock_quantity, discontinued, tags, image_mime, created_at, updated_at`

// PhoneFilter narrows ListPhones. Zero values match everything.
type PhoneFilter struct {
	// Query matches a substring of the model name or brand.
	Query     string
	Condition model.Condition
}

// CreatePhone inserts a new phone.
func CreatePhone(ctx context.Context, db *sql.DB, p model.Phone) (*model.Phone, error) {
	result, err := db.ExecContext(ctx,
		`INSERT INTO phones (model_name, brand, condition, storage, color, base_price,
		                     stock_quantity, discontinued, tags)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ModelName, p.Brand, string(p.Condition), p.Storage, p.Color, p.BasePrice.String(),
		p.StockQuantity, p.Discontinued, joinTags(p.Tags),
	)
	if isUniqueViolation(err) {
		return nil, ErrDuplicate
	}
	if err != nil {
		return nil, fmt.Errorf("creating phone: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting phone id: %w", err)
	}

	return GetPhone(ctx, db, id)
}

// GetPhone returns a phone by ID, or nil if it does not exist.
func GetPhone(ctx context.Context, db *sql.DB, id int64) (*model.Phone, error) {
	p, err := scanPhone(db.QueryRowContext(ctx,
		`SELECT `+phoneColumns+` FROM phones WHERE id = ?`, id,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting phone: %w", err)
	}
	return p, nil
}

// ListPhones returns phones ordered by brand and model name.
func ListPhones(ctx context.Context, db *sql.DB, filter PhoneFilter) ([]model.Phone, error) {
	query := `SELECT ` + phoneColumns + ` FROM phones WHERE 1=1`
	var args []any

	if q := strings.TrimSpace(filter.Query); q != "" {
		query += ` AND (model_name LIKE ? OR brand LIKE ?)`
		like := "%" + q + "%"
		args = append(args, like, like)
	}
	if filter.Condition != "" {
		query += ` AND condition = ?`
		args = append(args, string(filter.Condition))
	}

	query += ` ORDER BY brand, model_name, id`

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing phones: %w", err)
	}
	defer rows.Close()

	var phones []model.Phone
	for rows.Next() {
		p, err := scanPhone(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning phone: %w", err)
		}
		phones = append(phones, *p)
	}
	return phones, rows.Err()
}

// UpdatePhone overwrites every editable attribute of an existing phone.
func UpdatePhone(ctx context.Context, db *sql.DB, p model.Phone) error {
	result, err := db.ExecContext(ctx,
		`UPDATE phones SET model_name = ?, brand = ?, condition = ?, storage = ?, color = ?,
		        base_price = ?, stock_quantity = ?, discontinued = ?, tags = ?,
		        updated_at = CURRENT_TIMESTAMP
		 WHERE id = ?`,
		p.ModelName, p.Brand, string(p.Condition), p.Storage, p.Color, p.BasePrice.String(),
		p.StockQuantity, p.Discontinued, joinTags(p.Tags), p.ID,
	)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("updating phone: %w", err)
	}
	return requireAffected(result)
}

// UpsertPhone creates a phone or, when one with the same identity key
// (brand, model name, storage, color; case-insensitive) exists, overwrites
// its condition, price, stock, discontinued flag and tags. The lookup and
// the write share one transaction.
func UpsertPhone(ctx context.Context, db *sql.DB, p model.Phone) (*model.Phone, bool, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var id int64
	err = tx.QueryRowContext(ctx,
		`SELECT id FROM phones WHERE brand = ? AND model_name = ? AND storage = ? AND color = ?`,
		p.Brand, p.ModelName, p.Storage, p.Color,
	).Scan(&id)

	created := false
	switch {
	case err == sql.ErrNoRows:
		result, err := tx.ExecContext(ctx,
			`INSERT INTO phones (model_name, brand, condition, storage, color, base_price,
			                     stock_quantity, discontinued, tags)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			p.ModelName, p.Brand, string(p.Condition), p.Storage, p.Color, p.BasePrice.String(),
			p.StockQuantity, p.Discontinued, joinTags(p.Tags),
		)
		if err != nil {
			return nil, false, fmt.Errorf("inserting phone: %w", err)
		}
		if id, err = result.LastInsertId(); err != nil {
			return nil, false, fmt.Errorf("getting phone id: %w", err)
		}
		created = true
	case err != nil:
		return nil, false, fmt.Errorf("looking up phone identity: %w", err)
	default:
		_, err = tx.ExecContext(ctx,
			`UPDATE phones SET condition = ?, base_price = ?, stock_quantity = ?,
			        discontinued = ?, tags = ?, updated_at = CURRENT_TIMESTAMP
			 WHERE id = ?`,
			string(p.Condition), p.BasePrice.String(), p.StockQuantity,
			p.Discontinued, joinTags(p.Tags), id,
		)
		if err != nil {
			return nil, false, fmt.Errorf("updating phone: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, false, fmt.Errorf("committing phone upsert: %w", err)
	}

	saved, err := GetPhone(ctx, db, id)
	if err != nil {
		return nil, false, err
	}
	return saved, created, nil
}

// DeletePhone permanently removes a phone. Listing log entries that
// reference it are kept.
func DeletePhone(ctx context.Context, db *sql.DB, id int64) error {
	result, err := db.ExecContext(ctx, `DELETE FROM phones WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting phone: %w", err)
	}
	return requireAffected(result)
}

// SetPhoneImage sets a phone's photo.
func SetPhoneImage(ctx context.Context, db *sql.DB, id int64, image []byte, mime string) error {
	result, err := db.ExecContext(ctx,
		`UPDATE phones SET image = ?, image_mime = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		image, mime, id,
	)
	if err != nil {
		return fmt.Errorf("setting phone image: %w", err)
	}
	return requireAffected(result)
}

// GetPhoneImage returns a phone's photo and MIME type. Data is nil when the
// phone has no photo.
func GetPhoneImage(ctx context.Context, db *sql.DB, id int64) ([]byte, string, error) {
	var image []byte
	var mime sql.NullString
	err := db.QueryRowContext(ctx,
		`SELECT image, image_mime FROM phones WHERE id = ?`, id,
	).Scan(&image, &mime)
	if err == sql.ErrNoRows {
		return nil, "", nil
	}
	if err != nil {
		return nil, "", fmt.Errorf("getting phone image: %w", err)
	}
	return image, mime.String, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPhone(row rowScanner) (*model.Phone, error) {
	var p model.Phone
	var condition, tags string
	var imageMime sql.NullString
	err := row.Scan(&p.ID, &p.ModelName, &p.Brand, &condition, &p.Storage, &p.Color, &p.BasePrice,
		&p.StockQuantity, &p.Discontinued, &tags, &imageMime, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	p.Condition = model.Condition(condition)
	p.Tags = model.ParseTags(tags)
	p.ImageMime = imageMime.String
	return &p, nil
}

func joinTags(tags []string) string {
	return strings.Join(model.NormalizeTags(tags), ",")
}

func requireAffected(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking affected rows: %w", err)
	}
	if n == 0 {
		return model.ErrNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
