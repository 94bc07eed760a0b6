// Package pricing derives marketplace sale prices from a phone's base price.
package pricing

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/erazemk/prodaja/internal/model"
)

// FeeSchedule is a marketplace's commission: Rate*base + Flat.
type FeeSchedule struct {
	Rate decimal.Decimal
	Flat decimal.Decimal
}

// Fee returns the commission charged on base.
func (f FeeSchedule) Fee(base decimal.Decimal) decimal.Decimal {
	return f.Rate.Mul(base).Add(f.Flat)
}

// DefaultFees returns the standard commission of every platform.
func DefaultFees() map[model.Platform]FeeSchedule {
	return map[model.Platform]FeeSchedule{
		model.PlatformX: {Rate: decimal.RequireFromString("0.10")},
		model.PlatformY: {Rate: decimal.RequireFromString("0.08"), Flat: decimal.RequireFromString("2.00")},
		model.PlatformZ: {Rate: decimal.RequireFromString("0.12")},
	}
}

// Quote is a resolved price for one platform.
type Quote struct {
	Price decimal.Decimal `json:"price"`
	// Fee is nil when the price is an operator override.
	Fee      *decimal.Decimal `json:"fee"`
	Override bool             `json:"override"`
}

// Resolver computes platform prices. It holds no mutable state and is safe
// for concurrent use.
type Resolver struct {
	fees map[model.Platform]FeeSchedule
}

// NewResolver returns a Resolver using fees. Platforms missing from fees use
// their default schedule.
func NewResolver(fees map[model.Platform]FeeSchedule) *Resolver {
	merged := DefaultFees()
	for p, f := range fees {
		merged[p] = f
	}
	return &Resolver{fees: merged}
}

// Resolve returns the sale price of an item with the given base price on
// platform. A non-empty override is returned verbatim with no fee applied.
// An override that is not a non-negative decimal fails with
// model.ErrInvalidOverride.
func (r *Resolver) Resolve(base decimal.Decimal, platform model.Platform, override *string) (Quote, error) {
	if !platform.Valid() {
		return Quote{}, fmt.Errorf("%w: unknown platform %q", model.ErrValidation, platform)
	}

	if override != nil && strings.TrimSpace(*override) != "" {
		price, err := ParseOverride(*override)
		if err != nil {
			return Quote{}, err
		}
		return Quote{Price: price, Override: true}, nil
	}

	if err := model.CheckAmount(base); err != nil {
		return Quote{}, fmt.Errorf("%w: base price %w", model.ErrValidation, err)
	}

	fee := r.fees[platform].Fee(base)
	price := base.Sub(fee)
	if price.IsNegative() {
		price = decimal.Zero
	}
	// Both halves round independently, half-up to the cent.
	price = price.Round(2)
	fee = fee.Round(2)

	return Quote{Price: price, Fee: &fee}, nil
}

// ParseOverride parses an operator-supplied price.
func ParseOverride(s string) (decimal.Decimal, error) {
	price, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("%w: %q is not a number", model.ErrInvalidOverride, s)
	}
	if err := model.CheckAmount(price); err != nil {
		return decimal.Decimal{}, fmt.Errorf("%w: %s %w", model.ErrInvalidOverride, strings.TrimSpace(s), err)
	}
	return price, nil
}
