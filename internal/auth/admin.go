package auth

import (
	"errors"

	"github.com/erazemk/prodaja/internal/model"
)

// ErrNotAdmin is returned when an operation requires the admin capability
// and the caller does not hold it.
var ErrNotAdmin = errors.New("admin capability required")

// Admin is proof that the caller was verified as an administrator. The zero
// value grants nothing; values are minted only by AdminFromClaims and
// AdminFromUser, once, at the edge of the system.
type Admin struct {
	UserID   int64
	Username string
	verified bool
}

// AdminFromClaims mints the capability from verified token claims.
func AdminFromClaims(c *Claims) (Admin, error) {
	if c == nil || c.Role != model.RoleAdmin {
		return Admin{}, ErrNotAdmin
	}
	return Admin{UserID: c.UserID, Username: c.Username, verified: true}, nil
}

// AdminFromUser mints the capability for a user loaded from the store, as
// the command-line tools do after checking credentials locally.
func AdminFromUser(u *model.User) (Admin, error) {
	if u == nil || u.DeletedAt != nil || u.Role != model.RoleAdmin {
		return Admin{}, ErrNotAdmin
	}
	return Admin{UserID: u.ID, Username: u.Username, verified: true}, nil
}

// Check returns ErrNotAdmin unless a was minted by this package.
func (a Admin) Check() error {
	if !a.verified {
		return ErrNotAdmin
	}
	return nil
}
