package dto

import (
	"encoding/json"

	"github.com/guttosm/cryptopulse/internal/domain/models"
	"github.com/shopspring/decimal"
)

// StatsResponse is returned by GET /api/v1/symbols/{symbol}/stats.
//
// Prices are JSON numbers with exactly 8 fractional digits.
type StatsResponse struct {
	Symbol      string      `json:"symbol" example:"BTC"`
	OldestPrice json.Number `json:"oldestPrice" swaggertype:"number" example:"46813.21000000"`
	NewestPrice json.Number `json:"newestPrice" swaggertype:"number" example:"38415.79000000"`
	MinPrice    json.Number `json:"minPrice" swaggertype:"number" example:"33276.59000000"`
	MaxPrice    json.Number `json:"maxPrice" swaggertype:"number" example:"47722.66000000"`
}

// NormalizedRangeResponse is one {symbol, normalizedRange} pair.
type NormalizedRangeResponse struct {
	Symbol          string      `json:"symbol" example:"ETH"`
	NormalizedRange json.Number `json:"normalizedRange" swaggertype:"number" example:"0.64133818"`
}

// NewStatsResponse maps a StatsSummary onto its wire form.
func NewStatsResponse(s *models.StatsSummary) StatsResponse {
	return StatsResponse{
		Symbol:      s.Symbol,
		OldestPrice: fixed(s.OldestPrice),
		NewestPrice: fixed(s.NewestPrice),
		MinPrice:    fixed(s.MinPrice),
		MaxPrice:    fixed(s.MaxPrice),
	}
}

// NewNormalizedRangeResponse maps a NormalizedRange onto its wire form.
func NewNormalizedRangeResponse(r models.NormalizedRange) NormalizedRangeResponse {
	return NormalizedRangeResponse{Symbol: r.Symbol, NormalizedRange: fixed(r.Value)}
}

// NewNormalizedRangeList maps a slice, preserving order.
func NewNormalizedRangeList(rs []models.NormalizedRange) []NormalizedRangeResponse {
	out := make([]NormalizedRangeResponse, 0, len(rs))
	for _, r := range rs {
		out = append(out, NewNormalizedRangeResponse(r))
	}
	return out
}

func fixed(d decimal.Decimal) json.Number {
	return json.Number(d.StringFixed(models.PriceScale))
}
