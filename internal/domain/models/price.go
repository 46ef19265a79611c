package models

import "github.com/shopspring/decimal"

// PriceScale is the number of fractional digits every stored price carries.
const PriceScale = 8

// Symbol is a tracked asset ticker (e.g. "BTC").
//
// Symbols are created implicitly the first time an imported line references them
// and are only removed by a full truncate.
type Symbol struct {
	ID     int64  `json:"id"`
	Symbol string `json:"symbol" example:"BTC"`
}

// PricePoint is a single observed price.
//
// (Symbol, Timestamp) is unique; a later upsert with the same key replaces Price.
// Timestamp is epoch milliseconds.
type PricePoint struct {
	Symbol    string
	Timestamp int64
	Price     decimal.Decimal
}

// RoundPrice coerces a price to PriceScale fractional digits, rounding half away
// from zero (half-up on magnitude).
func RoundPrice(p decimal.Decimal) decimal.Decimal {
	return p.Round(PriceScale)
}
