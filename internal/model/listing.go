package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// ListingLogEntry records the outcome of one listing attempt. Entries are
// immutable once appended.
type ListingLogEntry struct {
	ID             int64               `json:"id"`
	AttemptID      string              `json:"attempt_id"`
	PhoneID        int64               `json:"phone_id"`
	Platform       Platform            `json:"platform"`
	Success        bool                `json:"success"`
	AttemptedPrice decimal.NullDecimal `json:"attempted_price"`
	Fee            decimal.NullDecimal `json:"fee"`
	Message        string              `json:"message"`
	ListedBy       string              `json:"listed_by,omitempty"`
	CreatedAt      time.Time           `json:"created_at"`
}

// ListingFilter narrows an audit log query. Zero values match everything.
type ListingFilter struct {
	PhoneID  int64
	Platform Platform
	Success  *bool
	Limit    int
}

// Listing log query limits.
const (
	DefaultListingLimit = 200
	MaxListingLimit     = 200
)

// EffectiveLimit returns the row limit to apply for f.
func (f ListingFilter) EffectiveLimit() int {
	if f.Limit <= 0 || f.Limit > MaxListingLimit {
		return DefaultListingLimit
	}
	return f.Limit
}
