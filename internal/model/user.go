package model

import (
	"errors"
	"time"
)

// User represents an operator account.
type User struct {
	ID           int64      `json:"id"`
	Username     string     `json:"username"`
	PasswordHash string     `json:"-"`
	Role         string     `json:"role"`
	CreatedAt    time.Time  `json:"created_at"`
	DeletedAt    *time.Time `json:"deleted_at,omitempty"`
}

// Roles.
const (
	RoleAdmin = "admin"
	RoleStaff = "staff"
)

// MinPasswordLength is the shortest password accepted for an account.
const MinPasswordLength = 8

// RoleAtLeast checks if role meets or exceeds the minimum required role.
func RoleAtLeast(role, minimum string) bool {
	levels := map[string]int{
		RoleAdmin: 2,
		RoleStaff: 1,
	}
	r, ok := levels[role]
	m, okMin := levels[minimum]
	return ok && okMin && r >= m
}

// ValidRole reports whether role is a known role.
func ValidRole(role string) bool {
	return role == RoleAdmin || role == RoleStaff
}

// ValidatePassword checks password strength requirements.
func ValidatePassword(password string) error {
	if len(password) < MinPasswordLength {
		return errors.New("password must be at least 8 characters")
	}
	return nil
}
