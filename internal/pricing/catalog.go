package pricing

import (
	"github.com/shopspring/decimal"

	"github.com/erazemk/prodaja/internal/model"
)

// PlatformPrice is a phone's computed price on one platform.
type PlatformPrice struct {
	Platform model.Platform  `json:"platform"`
	Label    string          `json:"label"`
	Price    decimal.Decimal `json:"price"`
	Fee      decimal.Decimal `json:"fee"`
}

// CatalogEntry pairs a phone with its price on every platform.
type CatalogEntry struct {
	Phone  model.Phone     `json:"phone"`
	Prices []PlatformPrice `json:"prices"`
}

// Catalog prices every phone on every platform, without overrides. Phones
// whose base price cannot be priced are listed with no prices.
func (r *Resolver) Catalog(phones []model.Phone) []CatalogEntry {
	entries := make([]CatalogEntry, 0, len(phones))
	for _, p := range phones {
		entry := CatalogEntry{Phone: p, Prices: make([]PlatformPrice, 0, len(model.Platforms))}
		for _, platform := range model.Platforms {
			q, err := r.Resolve(p.BasePrice, platform, nil)
			if err != nil {
				continue
			}
			entry.Prices = append(entry.Prices, PlatformPrice{
				Platform: platform,
				Label:    ConditionLabel(p.Condition, platform),
				Price:    q.Price,
				Fee:      *q.Fee,
			})
		}
		entries = append(entries, entry)
	}
	return entries
}
