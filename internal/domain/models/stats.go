package models

import "github.com/shopspring/decimal"

// StatsSummary is derived per request from the price points of one symbol.
//
// OldestPrice and NewestPrice are the prices at the minimum and maximum
// timestamp; they are independent of MinPrice and MaxPrice.
//
// swagger:model StatsSummary
type StatsSummary struct {
	Symbol      string
	OldestPrice decimal.Decimal
	NewestPrice decimal.Decimal
	MinPrice    decimal.Decimal
	MaxPrice    decimal.Decimal
}

// PriceRange is the min/max price of one symbol over some time window, as
// returned by the store.
type PriceRange struct {
	Symbol   string
	MinPrice decimal.Decimal
	MaxPrice decimal.Decimal
}

// NormalizedRange is (max-min)/min for one symbol.
type NormalizedRange struct {
	Symbol string
	Value  decimal.Decimal
}

// NormalizedRangeOf computes (max-min)/min rounded half-up to PriceScale places.
// It is zero whenever min <= 0.
func NormalizedRangeOf(min, max decimal.Decimal) decimal.Decimal {
	if !min.IsPositive() {
		return decimal.Zero
	}
	return max.Sub(min).DivRound(min, PriceScale)
}

// Normalize turns a store range into its normalized form.
func (r PriceRange) Normalize() NormalizedRange {
	return NormalizedRange{Symbol: r.Symbol, Value: NormalizedRangeOf(r.MinPrice, r.MaxPrice)}
}
