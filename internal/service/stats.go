package service

import (
	"context"
	"slices"
	"time"

	"github.com/guttosm/cryptopulse/internal/domain/errs"
	"github.com/guttosm/cryptopulse/internal/domain/models"
	"github.com/guttosm/cryptopulse/internal/logger"
	"github.com/guttosm/cryptopulse/internal/storage"
	"github.com/rs/zerolog"
)

// StatsService computes per-symbol statistics and normalized ranges.
//
// Nothing is cached: every call re-reads the store. Errors are errs.ErrNotFound
// when there is no data to aggregate, errs.ErrStore otherwise.
type StatsService interface {
	ListSymbols(ctx context.Context) ([]string, error)
	StatsFor(ctx context.Context, symbol string) (*models.StatsSummary, error)
	NormalizedRanges(ctx context.Context) ([]models.NormalizedRange, error)
	HighestNormalizedRangeForDate(ctx context.Context, date time.Time) (*models.NormalizedRange, error)
}

type statsService struct {
	repo storage.PriceRepository
	loc  *time.Location
	log  zerolog.Logger
}

// NewStatsService builds a StatsService. Calendar days are resolved in loc;
// a nil loc means time.Local.
func NewStatsService(repo storage.PriceRepository, loc *time.Location) StatsService {
	if loc == nil {
		loc = time.Local
	}
	return &statsService{repo: repo, loc: loc, log: logger.Component("stats")}
}

func (s *statsService) ListSymbols(ctx context.Context) ([]string, error) {
	symbols, err := s.repo.ListSymbols(ctx)
	if err != nil {
		return nil, err
	}
	if len(symbols) == 0 {
		return nil, errs.NotFound("no supported cryptos found")
	}
	s.log.Debug().Int("count", len(symbols)).Msg("symbols listed")
	return symbols, nil
}

func (s *statsService) StatsFor(ctx context.Context, symbol string) (*models.StatsSummary, error) {
	stats, err := s.repo.StatsBySymbol(ctx, symbol)
	if err != nil {
		return nil, err
	}
	if stats == nil {
		return nil, errs.NotFound("no price data found for crypto: %s", symbol)
	}
	s.log.Debug().
		Str("symbol", symbol).
		Str("oldest", stats.OldestPrice.String()).
		Str("newest", stats.NewestPrice.String()).
		Str("min", stats.MinPrice.String()).
		Str("max", stats.MaxPrice.String()).
		Msg("stats computed")
	return stats, nil
}

// NormalizedRanges returns one entry per symbol sorted by value descending.
// Equal values keep the store's symbol order (ascending symbol).
func (s *statsService) NormalizedRanges(ctx context.Context) ([]models.NormalizedRange, error) {
	ranges, err := s.repo.PriceRanges(ctx)
	if err != nil {
		return nil, err
	}
	if len(ranges) == 0 {
		return nil, errs.NotFound("no crypto data found")
	}

	out := make([]models.NormalizedRange, 0, len(ranges))
	for _, r := range ranges {
		out = append(out, r.Normalize())
	}
	slices.SortStableFunc(out, func(a, b models.NormalizedRange) int {
		return b.Value.Cmp(a.Value)
	})
	return out, nil
}

// HighestNormalizedRangeForDate picks the symbol with the largest normalized
// range among price points inside date's calendar day. Ties go to the
// lexicographically smallest symbol.
func (s *statsService) HighestNormalizedRangeForDate(ctx context.Context, date time.Time) (*models.NormalizedRange, error) {
	from, to := dayBounds(date, s.loc)
	ranges, err := s.repo.PriceRangesBetween(ctx, from, to)
	if err != nil {
		return nil, err
	}
	day := date.Format(time.DateOnly)
	if len(ranges) == 0 {
		return nil, errs.NotFound("no crypto data found for the given date: %s", day)
	}

	var best *models.NormalizedRange
	for _, r := range ranges {
		nr := r.Normalize()
		if best == nil || nr.Value.GreaterThan(best.Value) {
			best = &nr
		}
	}
	// unreachable while ranges is non-empty; kept as a guard
	if best == nil {
		return nil, errs.NotFound("no crypto data with a valid normalized range found for the given date: %s", day)
	}

	s.log.Debug().Str("date", day).Str("symbol", best.Symbol).Str("normalized_range", best.Value.String()).Msg("highest normalized range")
	return best, nil
}
