// Package marketplace submits listings to external sales platforms.
package marketplace

import (
	"context"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/erazemk/prodaja/internal/model"
)

// Submission is one listing request sent to a platform.
type Submission struct {
	// AttemptID identifies the listing attempt. Platforms use it to
	// deduplicate retried requests.
	AttemptID string
	Phone     model.Phone
	Platform  model.Platform
	Price     decimal.Decimal
	// Label is the platform's name for the phone's condition.
	Label string
}

// Outcome is a platform's answer to a submission. A rejected submission is
// an Outcome with Accepted false, not an error.
type Outcome struct {
	Accepted bool
	// Fee is the commission the platform will charge, when it reports one.
	Fee     *decimal.Decimal
	Message string
}

// Client submits listings to one platform. Submit returns an error only
// when the platform could not be reached or answered unintelligibly; such
// errors wrap model.ErrTransportFailure.
type Client interface {
	Submit(ctx context.Context, s Submission) (Outcome, error)
}

// Registry maps each platform to its client.
type Registry struct {
	clients map[model.Platform]Client
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{clients: make(map[model.Platform]Client)}
}

// Register sets the client for platform, replacing any previous one.
func (r *Registry) Register(platform model.Platform, c Client) {
	r.clients[platform] = c
}

// Client returns the client for platform.
func (r *Registry) Client(platform model.Platform) (Client, error) {
	c, ok := r.clients[platform]
	if !ok {
		return nil, fmt.Errorf("%w: no marketplace client for platform %q", model.ErrValidation, platform)
	}
	return c, nil
}

// Platforms returns the registered platforms in order.
func (r *Registry) Platforms() []model.Platform {
	platforms := make([]model.Platform, 0, len(r.clients))
	for p := range r.clients {
		platforms = append(platforms, p)
	}
	sort.Slice(platforms, func(i, j int) bool { return platforms[i] < platforms[j] })
	return platforms
}
