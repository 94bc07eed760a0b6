package model

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Phone is a catalogued device held in stock.
type Phone struct {
	ID            int64           `json:"id"`
	ModelName     string          `json:"model_name"`
	Brand         string          `json:"brand"`
	Condition     Condition       `json:"condition"`
	Storage       string          `json:"storage,omitempty"`
	Color         string          `json:"color,omitempty"`
	BasePrice     decimal.Decimal `json:"base_price"`
	StockQuantity int             `json:"stock_quantity"`
	Discontinued  bool            `json:"discontinued"`
	Tags          []string        `json:"tags"`
	ImageMime     string          `json:"image_mime,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// TagsMention reports whether any tag contains word, ignoring case. Tags
// such as "discontinued-2023" count as a mention of "discontinued".
func (p *Phone) TagsMention(word string) bool {
	word = strings.ToLower(word)
	for _, t := range p.Tags {
		if strings.Contains(strings.ToLower(t), word) {
			return true
		}
	}
	return false
}

// Condition grades the physical state of a phone.
type Condition string

// Conditions.
const (
	ConditionNew       Condition = "New"
	ConditionExcellent Condition = "Excellent"
	ConditionGood      Condition = "Good"
	ConditionFair      Condition = "Fair"
	ConditionAsNew     Condition = "As New"
	ConditionUsable    Condition = "Usable"
	ConditionScrap     Condition = "Scrap"
)

// Conditions lists every valid condition in display order.
var Conditions = []Condition{
	ConditionNew,
	ConditionExcellent,
	ConditionGood,
	ConditionFair,
	ConditionAsNew,
	ConditionUsable,
	ConditionScrap,
}

// ParseCondition maps user input to a Condition. Matching ignores case and
// spaces, so "AsNew", "as new" and "As New" are the same value.
func ParseCondition(s string) (Condition, error) {
	key := strings.ToLower(strings.ReplaceAll(strings.TrimSpace(s), " ", ""))
	for _, c := range Conditions {
		if key != "" && key == strings.ToLower(strings.ReplaceAll(string(c), " ", "")) {
			return c, nil
		}
	}
	return "", fmt.Errorf("%w: unknown condition %q", ErrValidation, s)
}

// Valid reports whether c is one of the known conditions.
func (c Condition) Valid() bool {
	return slices.Contains(Conditions, c)
}

// Platform identifies an external marketplace by its short code.
type Platform string

// Platforms.
const (
	PlatformX Platform = "X"
	PlatformY Platform = "Y"
	PlatformZ Platform = "Z"
)

// Platforms lists every supported marketplace.
var Platforms = []Platform{PlatformX, PlatformY, PlatformZ}

// ParsePlatform maps a short code to a Platform.
func ParsePlatform(s string) (Platform, error) {
	p := Platform(strings.ToUpper(strings.TrimSpace(s)))
	if !p.Valid() {
		return "", fmt.Errorf("%w: unknown platform %q", ErrValidation, s)
	}
	return p, nil
}

// Valid reports whether p is a supported marketplace.
func (p Platform) Valid() bool {
	return slices.Contains(Platforms, p)
}

// ParseTags splits a comma-separated list into a normalized tag set:
// entries are trimmed, empty entries dropped, duplicates removed and the
// result sorted.
func ParseTags(s string) []string {
	return NormalizeTags(strings.Split(s, ","))
}

// NormalizeTags trims, de-duplicates (case-insensitively) and sorts tags.
func NormalizeTags(tags []string) []string {
	seen := make(map[string]bool, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" || seen[strings.ToLower(t)] {
			continue
		}
		seen[strings.ToLower(t)] = true
		out = append(out, t)
	}
	slices.Sort(out)
	return out
}

// Bounds on money amounts.
const MaxAmountScale int32 = 8

var MaxAmount = decimal.New(1, 9)

// CheckAmount reports whether d is a usable money amount: not negative, at
// most MaxAmountScale decimal places and below MaxAmount.
func CheckAmount(d decimal.Decimal) error {
	if d.IsNegative() {
		return errors.New("cannot be negative")
	}
	// The exponent is bounded before any rescaling: 1e200000000 expands to
	// hundreds of megabytes.
	if e := d.Exponent(); e > MaxAmount.Exponent() {
		return fmt.Errorf("must be less than %s", MaxAmount)
	} else if e < -2*MaxAmountScale {
		return fmt.Errorf("must have at most %d decimal places", MaxAmountScale)
	}
	if !d.Equal(d.Truncate(MaxAmountScale)) {
		return fmt.Errorf("must have at most %d decimal places", MaxAmountScale)
	}
	if d.GreaterThanOrEqual(MaxAmount) {
		return fmt.Errorf("must be less than %s", MaxAmount)
	}
	return nil
}
