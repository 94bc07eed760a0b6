// Package importer applies bulk inventory updates from tabular sources. One
// bad row never aborts the batch: it is reported and the rest are applied.
package importer

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sort"
	"strconv"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/erazemk/prodaja/internal/auth"
	"github.com/erazemk/prodaja/internal/model"
)

// Recognised columns.
const (
	ColModelName     = "model_name"
	ColBrand         = "brand"
	ColCondition     = "condition"
	ColStorage       = "storage"
	ColColor         = "color"
	ColBasePrice     = "base_price"
	ColStockQuantity = "stock_quantity"
	ColTags          = "tags"
	ColDiscontinued  = "discontinued"
)

// RawRow maps column names to cell values. Unknown columns are ignored and
// missing ones read as empty.
type RawRow map[string]string

// readErrorKey marks a row the source could not parse. normalizeColumn drops
// NUL bytes, so it never collides with a column.
const readErrorKey = "\x00read_error"

// RowError reports why a row was skipped. Row is 1-based.
type RowError struct {
	Row     int    `json:"row"`
	Message string `json:"message"`
}

// Result summarises an import.
type Result struct {
	Success      bool       `json:"success"`
	SuccessCount int        `json:"success_count"`
	Created      int        `json:"created"`
	Updated      int        `json:"updated"`
	Errors       []RowError `json:"errors"`
}

// Inventory is the store the processor writes to.
type Inventory interface {
	// UpsertPhone creates p, or updates the phone with the same identity key,
	// in one atomic step. The bool reports whether a phone was created.
	UpsertPhone(ctx context.Context, p model.Phone) (*model.Phone, bool, error)
}

// Processor validates and applies rows.
type Processor struct {
	inventory Inventory
	logger    *zap.Logger
	workers   int
}

// NewProcessor returns a Processor writing to inventory.
func NewProcessor(inventory Inventory, logger *zap.Logger) *Processor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Processor{
		inventory: inventory,
		logger:    logger,
		workers:   runtime.GOMAXPROCS(0),
	}
}

// Import validates every row and upserts the valid ones in row order.
// Validation failures become entries in Result.Errors. A store failure stops
// the batch; the partial result is returned with the error.
func (p *Processor) Import(ctx context.Context, admin auth.Admin, rows []RawRow) (Result, error) {
	if err := admin.Check(); err != nil {
		return Result{}, err
	}

	phones := make([]model.Phone, len(rows))
	problems := make([]string, len(rows))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)
	for i, row := range rows {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			phone, err := ParseRow(row)
			if err != nil {
				problems[i] = err.Error()
				return nil
			}
			phones[i] = phone
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Result{}, fmt.Errorf("validating rows: %w", err)
	}

	result := Result{Errors: []RowError{}}
	for i := range rows {
		if problems[i] != "" {
			result.Errors = append(result.Errors, RowError{Row: i + 1, Message: problems[i]})
			continue
		}

		_, created, err := p.inventory.UpsertPhone(ctx, phones[i])
		if err != nil {
			p.logger.Error("import aborted",
				zap.String("admin", admin.Username),
				zap.Int("row", i+1),
				zap.Error(err),
			)
			result.finish()
			return result, fmt.Errorf("applying row %d: %w", i+1, err)
		}

		result.SuccessCount++
		if created {
			result.Created++
		} else {
			result.Updated++
		}
	}
	result.finish()

	p.logger.Info("import finished",
		zap.String("admin", admin.Username),
		zap.Int("rows", len(rows)),
		zap.Int("applied", result.SuccessCount),
		zap.Int("created", result.Created),
		zap.Int("updated", result.Updated),
		zap.Int("rejected", len(result.Errors)),
	)

	return result, nil
}

func (r *Result) finish() {
	sort.SliceStable(r.Errors, func(i, j int) bool { return r.Errors[i].Row < r.Errors[j].Row })
	r.Success = len(r.Errors) == 0
}

// phoneRow holds the sanitized cells of one row.
type phoneRow struct {
	ModelName     string `json:"model_name"`
	Brand         string `json:"brand"`
	Condition     string `json:"condition"`
	Storage       string `json:"storage"`
	Color         string `json:"color"`
	BasePrice     string `json:"base_price"`
	StockQuantity string `json:"stock_quantity"`
	Tags          string `json:"tags"`
}

func (r *phoneRow) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.ModelName,
			validation.Required.Error("model name is required"),
			validation.RuneLength(0, 200).Error("model name must be at most 200 characters")),
		validation.Field(&r.Brand,
			validation.Required.Error("brand is required"),
			validation.RuneLength(0, 100).Error("brand must be at most 100 characters")),
		validation.Field(&r.Condition,
			validation.Required.Error("condition is required"),
			validation.By(validCondition)),
		validation.Field(&r.Storage,
			validation.RuneLength(0, 50).Error("storage must be at most 50 characters")),
		validation.Field(&r.Color,
			validation.RuneLength(0, 50).Error("color must be at most 50 characters")),
		validation.Field(&r.BasePrice,
			validation.Required.Error("base price is required"),
			validation.By(nonNegativeDecimal)),
		validation.Field(&r.StockQuantity,
			validation.Required.Error("stock quantity is required"),
			validation.By(nonNegativeInt)),
		validation.Field(&r.Tags,
			validation.RuneLength(0, 300).Error("tags must be at most 300 characters")),
	)
}

func validCondition(value any) error {
	if _, err := model.ParseCondition(value.(string)); err != nil {
		return fmt.Errorf("condition %q is not one of New, Excellent, Good, Fair, As New, Usable, Scrap", value)
	}
	return nil
}

func nonNegativeDecimal(value any) error {
	d, err := decimal.NewFromString(value.(string))
	if err != nil {
		return fmt.Errorf("base price %q is not a number", value)
	}
	if err := model.CheckAmount(d); err != nil {
		return fmt.Errorf("base price %w", err)
	}
	return nil
}

func nonNegativeInt(value any) error {
	n, err := strconv.Atoi(value.(string))
	if err != nil {
		return fmt.Errorf("stock quantity %q is not a whole number", value)
	}
	if n < 0 {
		return errors.New("stock quantity cannot be negative")
	}
	return nil
}

// ParseRow validates a raw row and converts it to a phone. Errors wrap
// model.ErrValidation and name every offending field.
func ParseRow(raw RawRow) (model.Phone, error) {
	if msg, ok := raw[readErrorKey]; ok {
		return model.Phone{}, fmt.Errorf("%w: unreadable row: %s", model.ErrValidation, msg)
	}

	row := phoneRow{
		ModelName:     cell(raw, ColModelName),
		Brand:         cell(raw, ColBrand),
		Condition:     cell(raw, ColCondition),
		Storage:       cell(raw, ColStorage),
		Color:         cell(raw, ColColor),
		BasePrice:     cell(raw, ColBasePrice),
		StockQuantity: cell(raw, ColStockQuantity),
		Tags:          cell(raw, ColTags),
	}
	if err := row.Validate(); err != nil {
		return model.Phone{}, fmt.Errorf("%w: %s", model.ErrValidation, describe(err))
	}

	condition, _ := model.ParseCondition(row.Condition)
	price, _ := decimal.NewFromString(row.BasePrice)
	stock, _ := strconv.Atoi(row.StockQuantity)

	return model.Phone{
		ModelName:     row.ModelName,
		Brand:         row.Brand,
		Condition:     condition,
		Storage:       row.Storage,
		Color:         row.Color,
		BasePrice:     price,
		StockQuantity: stock,
		Discontinued:  truthy(cell(raw, ColDiscontinued)),
		Tags:          model.ParseTags(row.Tags),
	}, nil
}

// describe flattens ozzo field errors into one message, ordered by column.
func describe(err error) string {
	var fields validation.Errors
	if !errors.As(err, &fields) {
		return err.Error()
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	msgs := make([]string, 0, len(keys))
	for _, k := range keys {
		msgs = append(msgs, fields[k].Error())
	}
	return strings.Join(msgs, "; ")
}

// cell returns the sanitized value of column key. Header names match
// case-insensitively.
func cell(raw RawRow, key string) string {
	if v, ok := raw[key]; ok {
		return sanitize(v)
	}
	for k, v := range raw {
		if strings.EqualFold(strings.TrimSpace(k), key) {
			return sanitize(v)
		}
	}
	return ""
}

var unsafeChars = strings.NewReplacer("<", "", ">", "", `"`, "", "'", "", ";", "", `\`, "")

// sanitize strips markup and quoting characters and surrounding space.
func sanitize(s string) string {
	return strings.TrimSpace(unsafeChars.Replace(s))
}

func truthy(s string) bool {
	switch strings.ToLower(s) {
	case "true", "1", "yes":
		return true
	}
	return false
}
