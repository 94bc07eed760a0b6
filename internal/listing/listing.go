// Package listing runs listing attempts against external marketplaces.
//
// An attempt moves through stock check, price resolution and submission.
// Every attempt that reaches the stock check ends with exactly one audit
// log entry, whatever its outcome.
package listing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/erazemk/prodaja/internal/audit"
	"github.com/erazemk/prodaja/internal/auth"
	"github.com/erazemk/prodaja/internal/marketplace"
	"github.com/erazemk/prodaja/internal/model"
	"github.com/erazemk/prodaja/internal/pricing"
)

// DefaultTimeout bounds a marketplace submission when none is configured.
const DefaultTimeout = 10 * time.Second

// Outcome classifies how an attempt ended.
type Outcome string

// Outcomes.
const (
	OutcomeListed          Outcome = "listed"
	OutcomeNotFound        Outcome = "not_found"
	OutcomeOutOfStock      Outcome = "out_of_stock"
	OutcomeInvalidOverride Outcome = "invalid_override"
	OutcomeRejected        Outcome = "rejected"
	OutcomeUnavailable     Outcome = "unavailable"
)

// Messages recorded for failures the orchestrator detects itself.
const (
	msgNotFound   = "item not found"
	msgOutOfStock = "out of stock"
)

// Request asks for one phone to be listed on one platform.
type Request struct {
	PhoneID  int64
	Platform model.Platform
	// Override, when non-empty, replaces the computed price for this
	// attempt only.
	Override *string
}

// Result describes a finished attempt.
type Result struct {
	AttemptID string           `json:"attempt_id"`
	Outcome   Outcome          `json:"outcome"`
	Success   bool             `json:"success"`
	Message   string           `json:"message"`
	Price     *decimal.Decimal `json:"price"`
	Fee       *decimal.Decimal `json:"fee"`
	Override  bool             `json:"override"`
	LogID     int64            `json:"log_id"`
}

// Err returns the error kind matching the outcome, or nil for a listing.
func (r Result) Err() error {
	switch r.Outcome {
	case OutcomeListed:
		return nil
	case OutcomeNotFound:
		return model.ErrNotFound
	case OutcomeOutOfStock:
		return model.ErrOutOfStock
	case OutcomeInvalidOverride:
		return model.ErrInvalidOverride
	case OutcomeRejected:
		return model.ErrMarketplaceRejected
	default:
		return model.ErrTransportFailure
	}
}

// Inventory is the part of the phone store the orchestrator uses.
type Inventory interface {
	// GetPhone returns nil when the phone does not exist.
	GetPhone(ctx context.Context, id int64) (*model.Phone, error)
	// ReserveStock atomically takes one unit, failing with
	// model.ErrOutOfStock when none is left.
	ReserveStock(ctx context.Context, id int64) (int, error)
	ReleaseStock(ctx context.Context, id int64) (int, error)
}

// Marketplaces resolves the client for a platform.
type Marketplaces interface {
	Client(platform model.Platform) (marketplace.Client, error)
}

// Options tune an Orchestrator.
type Options struct {
	// Timeout bounds each marketplace submission. Defaults to DefaultTimeout.
	Timeout time.Duration
	Logger  *zap.Logger
}

// Orchestrator executes listing attempts. It is safe for concurrent use.
type Orchestrator struct {
	inventory    Inventory
	resolver     *pricing.Resolver
	marketplaces Marketplaces
	log          audit.Log
	timeout      time.Duration
	logger       *zap.Logger
}

// New returns an Orchestrator.
func New(inventory Inventory, resolver *pricing.Resolver, marketplaces Marketplaces, log audit.Log, opts Options) *Orchestrator {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Orchestrator{
		inventory:    inventory,
		resolver:     resolver,
		marketplaces: marketplaces,
		log:          log,
		timeout:      opts.Timeout,
		logger:       opts.Logger,
	}
}

// attempt carries the state of one Execute call.
type attempt struct {
	req   Request
	admin auth.Admin
	id    string
	quote *pricing.Quote
}

// Execute runs one listing attempt.
//
// Failures of the attempt itself (missing phone, no stock, bad override,
// marketplace rejection or outage) are reported in the Result with a nil
// error. The returned error is non-nil only when the caller lacks the admin
// capability, the request is malformed, the caller cancelled before
// submission, or the store or audit log failed.
//
// Cancelling ctx after the submission has been sent has no effect: the
// attempt completes and is logged.
func (o *Orchestrator) Execute(ctx context.Context, admin auth.Admin, req Request) (Result, error) {
	if err := admin.Check(); err != nil {
		return Result{}, err
	}
	if !req.Platform.Valid() {
		return Result{}, fmt.Errorf("%w: unknown platform %q", model.ErrValidation, req.Platform)
	}
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	a := &attempt{req: req, admin: admin, id: uuid.NewString()}

	phone, err := o.inventory.GetPhone(ctx, req.PhoneID)
	if err != nil {
		if ctx.Err() != nil {
			return Result{}, ctx.Err()
		}
		return o.fail(ctx, a, fmt.Errorf("loading phone %d: %w", req.PhoneID, err))
	}
	if phone == nil {
		return o.finish(ctx, a, OutcomeNotFound, msgNotFound, nil)
	}
	if phone.StockQuantity <= 0 {
		return o.finish(ctx, a, OutcomeOutOfStock, msgOutOfStock, nil)
	}

	quote, err := o.resolver.Resolve(phone.BasePrice, req.Platform, req.Override)
	if errors.Is(err, model.ErrValidation) {
		return o.finish(ctx, a, OutcomeInvalidOverride, err.Error(), nil)
	}
	if err != nil {
		return o.fail(ctx, a, fmt.Errorf("resolving price: %w", err))
	}
	a.quote = &quote

	client, err := o.marketplaces.Client(req.Platform)
	if err != nil {
		return o.finish(ctx, a, OutcomeUnavailable, "temporarily unavailable, retry: "+err.Error(), nil)
	}

	// Last point at which the caller can back out without leaving a trace.
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	ctx = context.WithoutCancel(ctx)

	if _, err := o.inventory.ReserveStock(ctx, phone.ID); err != nil {
		switch {
		case errors.Is(err, model.ErrOutOfStock):
			return o.finish(ctx, a, OutcomeOutOfStock, msgOutOfStock, nil)
		case errors.Is(err, model.ErrNotFound):
			return o.finish(ctx, a, OutcomeNotFound, msgNotFound, nil)
		default:
			return o.fail(ctx, a, fmt.Errorf("reserving stock: %w", err))
		}
	}

	outcome, submitErr := o.submit(ctx, client, marketplace.Submission{
		AttemptID: a.id,
		Phone:     *phone,
		Platform:  req.Platform,
		Price:     quote.Price,
		Label:     pricing.ConditionLabel(phone.Condition, req.Platform),
	})

	var kind Outcome
	var msg string
	switch {
	case submitErr != nil:
		kind, msg = OutcomeUnavailable, o.unavailableMessage(submitErr)
	case !outcome.Accepted:
		reason := outcome.Message
		if reason == "" {
			reason = "no reason given"
		}
		kind, msg = OutcomeRejected, "rejected by marketplace: "+reason
	default:
		kind, msg = OutcomeListed, outcome.Message
		if msg == "" {
			msg = fmt.Sprintf("listed on platform %s at %s", req.Platform, quote.Price.StringFixed(2))
		}
	}

	var releaseErr error
	if kind != OutcomeListed {
		if _, err := o.inventory.ReleaseStock(ctx, phone.ID); err != nil {
			releaseErr = fmt.Errorf("releasing reserved stock of phone %d: %w", phone.ID, err)
			o.logger.Error("stock reservation leaked",
				zap.String("attempt_id", a.id),
				zap.Int64("phone_id", phone.ID),
				zap.Error(err),
			)
		}
	}

	res, err := o.finish(ctx, a, kind, msg, outcome.Fee)
	if err == nil {
		err = releaseErr
	}
	return res, err
}

func (o *Orchestrator) submit(ctx context.Context, client marketplace.Client, s marketplace.Submission) (marketplace.Outcome, error) {
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	outcome, err := client.Submit(ctx, s)
	if err == nil && ctx.Err() != nil {
		// An answer that arrives after the deadline is not trusted.
		err = ctx.Err()
	}
	return outcome, err
}

func (o *Orchestrator) unavailableMessage(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Sprintf("temporarily unavailable, retry: marketplace timed out after %s", o.timeout)
	}
	return "temporarily unavailable, retry: " + err.Error()
}

// finish appends the audit entry for a terminal outcome.
func (o *Orchestrator) finish(ctx context.Context, a *attempt, kind Outcome, msg string, fee *decimal.Decimal) (Result, error) {
	res := Result{
		AttemptID: a.id,
		Outcome:   kind,
		Success:   kind == OutcomeListed,
		Message:   msg,
		Fee:       fee,
	}
	entry := &model.ListingLogEntry{
		AttemptID: a.id,
		PhoneID:   a.req.PhoneID,
		Platform:  a.req.Platform,
		Success:   res.Success,
		Message:   msg,
		ListedBy:  a.admin.Username,
	}
	if a.quote != nil {
		price := a.quote.Price
		res.Price = &price
		res.Override = a.quote.Override
		entry.AttemptedPrice = decimal.NewNullDecimal(price)
	}
	if fee != nil {
		entry.Fee = decimal.NewNullDecimal(*fee)
	}

	if err := o.log.Append(context.WithoutCancel(ctx), entry); err != nil {
		o.logger.Error("recording listing attempt failed",
			zap.String("attempt_id", a.id),
			zap.String("outcome", string(kind)),
			zap.Error(err),
		)
		return res, fmt.Errorf("recording listing attempt: %w", err)
	}
	res.LogID = entry.ID

	fields := []zap.Field{
		zap.String("attempt_id", a.id),
		zap.Int64("phone_id", a.req.PhoneID),
		zap.String("platform", string(a.req.Platform)),
		zap.String("outcome", string(kind)),
		zap.String("admin", a.admin.Username),
	}
	if res.Price != nil {
		fields = append(fields, zap.Stringer("price", res.Price))
	}
	if res.Success {
		o.logger.Info("listing attempt succeeded", fields...)
	} else {
		o.logger.Warn("listing attempt failed", append(fields, zap.String("message", msg))...)
	}

	return res, nil
}

// fail records an infrastructure failure on a best-effort basis and returns
// cause.
func (o *Orchestrator) fail(ctx context.Context, a *attempt, cause error) (Result, error) {
	o.logger.Error("listing attempt aborted",
		zap.String("attempt_id", a.id),
		zap.Int64("phone_id", a.req.PhoneID),
		zap.Error(cause),
	)
	res, err := o.finish(ctx, a, OutcomeUnavailable, "internal error: "+cause.Error(), nil)
	if err != nil {
		return res, errors.Join(cause, err)
	}
	return res, cause
}
