package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/erazemk/prodaja/internal/model"
)

var (
	// ErrUsernameTaken is returned when an active account already uses the
	// username.
	ErrUsernameTaken = errors.New("username already exists")

	// ErrLastAdmin is returned when a change would leave no active admin.
	ErrLastAdmin = fmt.Errorf("%w: cannot remove the last admin", model.ErrValidation)
)

const userColumns = `id, username, password_hash, role, created_at, deleted_at`

// otherAdminExists holds when an active admin other than the row being
// changed remains.
const otherAdminExists = `EXISTS (SELECT 1 FROM users o
	WHERE o.role = 'admin' AND o.deleted_at IS NULL AND o.id <> users.id)`

// CreateUser adds an admin or staff account.
func CreateUser(ctx context.Context, db *sql.DB, username, passwordHash, role string) (*model.User, error) {
	if !model.ValidRole(role) {
		return nil, fmt.Errorf("%w: unknown role %q", model.ErrValidation, role)
	}

	result, err := db.ExecContext(ctx,
		`INSERT INTO users (username, password_hash, role) VALUES (?, ?, ?)`,
		username, passwordHash, role,
	)
	if isUniqueViolation(err) {
		return nil, ErrUsernameTaken
	}
	if err != nil {
		return nil, fmt.Errorf("creating user: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting user id: %w", err)
	}
	return GetUser(ctx, db, id)
}

// GetUser returns an account by ID, deleted or not, or nil if there is none.
func GetUser(ctx context.Context, db *sql.DB, id int64) (*model.User, error) {
	u, err := scanUser(db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ?`, id,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting user: %w", err)
	}
	return u, nil
}

// GetUserByUsername returns the active account with the username, or the
// most recently deleted one so that login can report it as disabled.
func GetUserByUsername(ctx context.Context, db *sql.DB, username string) (*model.User, error) {
	u, err := scanUser(db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE username = ?
		 ORDER BY deleted_at IS NOT NULL, id DESC LIMIT 1`, username,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting user by username: %w", err)
	}
	return u, nil
}

// ListUsers returns the active accounts, admins first.
func ListUsers(ctx context.Context, db *sql.DB) ([]model.User, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE deleted_at IS NULL
		 ORDER BY role = 'admin' DESC, id`,
	)
	if err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}
	defer rows.Close()

	users := []model.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning user: %w", err)
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

// SetUserRole changes an active account's role. Demoting the only active
// admin fails with ErrLastAdmin; the check and the update are one statement.
func SetUserRole(ctx context.Context, db *sql.DB, id int64, role string) error {
	if !model.ValidRole(role) {
		return fmt.Errorf("%w: unknown role %q", model.ErrValidation, role)
	}

	result, err := db.ExecContext(ctx,
		`UPDATE users SET role = ?
		 WHERE id = ? AND deleted_at IS NULL
		   AND (? = 'admin' OR role <> 'admin' OR `+otherAdminExists+`)`,
		role, id, role,
	)
	if err != nil {
		return fmt.Errorf("setting user role: %w", err)
	}
	return explainUnchanged(ctx, db, id, result)
}

// UpdateUserPassword replaces an active account's password hash.
func UpdateUserPassword(ctx context.Context, db *sql.DB, id int64, passwordHash string) error {
	result, err := db.ExecContext(ctx,
		`UPDATE users SET password_hash = ? WHERE id = ? AND deleted_at IS NULL`,
		passwordHash, id,
	)
	if err != nil {
		return fmt.Errorf("updating user password: %w", err)
	}
	return requireAffected(result)
}

// DeleteUser soft-deletes an account so its username can be reused. Deleting
// the only active admin fails with ErrLastAdmin.
func DeleteUser(ctx context.Context, db *sql.DB, id int64) error {
	result, err := db.ExecContext(ctx,
		`UPDATE users SET deleted_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND deleted_at IS NULL
		   AND (role <> 'admin' OR `+otherAdminExists+`)`,
		id,
	)
	if err != nil {
		return fmt.Errorf("deleting user: %w", err)
	}
	return explainUnchanged(ctx, db, id, result)
}

// explainUnchanged tells a missing account apart from a refused admin change
// when an update touched no row.
func explainUnchanged(ctx context.Context, db *sql.DB, id int64, result sql.Result) error {
	if err := requireAffected(result); !errors.Is(err, model.ErrNotFound) {
		return err
	}
	u, err := GetUser(ctx, db, id)
	if err != nil {
		return err
	}
	if u == nil || u.DeletedAt != nil {
		return model.ErrNotFound
	}
	return ErrLastAdmin
}

func scanUser(row rowScanner) (*model.User, error) {
	var u model.User
	if err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.Role, &u.CreatedAt, &u.DeletedAt); err != nil {
		return nil, err
	}
	return &u, nil
}
