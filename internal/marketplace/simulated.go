package marketplace

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/erazemk/prodaja/internal/model"
	"github.com/erazemk/prodaja/internal/pricing"
)

var (
	usableFloor = decimal.NewFromInt(20)
	marginFloor = decimal.NewFromInt(5)
	cheapBase   = decimal.NewFromInt(50)
)

// Simulated is an in-process stand-in for a platform's listing API. It
// accepts or rejects submissions using the platform's published listing
// rules and never fails in transport unless its latency outlives the
// caller's context.
type Simulated struct {
	platform model.Platform
	resolver *pricing.Resolver
	// Latency delays every answer.
	Latency time.Duration
}

// NewSimulated returns a simulated client for platform. Fees are computed
// with resolver.
func NewSimulated(platform model.Platform, resolver *pricing.Resolver) *Simulated {
	return &Simulated{platform: platform, resolver: resolver}
}

// NewSimulatedRegistry returns a registry with a simulated client for every
// platform.
func NewSimulatedRegistry(resolver *pricing.Resolver) *Registry {
	r := NewRegistry()
	for _, p := range model.Platforms {
		r.Register(p, NewSimulated(p, resolver))
	}
	return r
}

// Submit applies the platform's listing rules to s.
func (c *Simulated) Submit(ctx context.Context, s Submission) (Outcome, error) {
	if c.Latency > 0 {
		timer := time.NewTimer(c.Latency)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return Outcome{}, fmt.Errorf("%w: %w", model.ErrTransportFailure, ctx.Err())
		case <-timer.C:
		}
	}

	base := s.Phone.BasePrice
	var fee *decimal.Decimal
	if q, err := c.resolver.Resolve(base, c.platform, nil); err == nil {
		fee = q.Fee
	}

	label := s.Label
	if label == "" {
		label = pricing.ConditionLabel(s.Phone.Condition, c.platform)
	}

	reject := func(msg string) (Outcome, error) {
		return Outcome{Accepted: false, Fee: fee, Message: msg}, nil
	}

	if c.platform == model.PlatformY && strings.Contains(strings.ToLower(label), "usable") && base.LessThan(usableFloor) {
		return reject("platform Y rejects very low-priced 'Usable' items")
	}
	if s.Price.LessThan(marginFloor) && base.LessThan(cheapBase) {
		return reject(fmt.Sprintf("fees too high on platform %s, margin %s", c.platform, s.Price.StringFixed(2)))
	}
	if s.Phone.Discontinued || s.Phone.TagsMention("discontinued") {
		return reject(fmt.Sprintf("phone marked discontinued, platform %s refused listing", c.platform))
	}

	msg := fmt.Sprintf("listed on platform %s as '%s' at %s", c.platform, label, s.Price.StringFixed(2))
	if fee != nil {
		msg += fmt.Sprintf(" (fee %s)", fee.StringFixed(2))
	}
	return Outcome{Accepted: true, Fee: fee, Message: msg}, nil
}
