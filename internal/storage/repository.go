package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/guttosm/cryptopulse/internal/domain/errs"
	"github.com/guttosm/cryptopulse/internal/domain/models"
	pq "github.com/lib/pq"
	"github.com/shopspring/decimal"
)

// PriceRepository defines contract for price store operations.
//
// Every driver failure is returned wrapped as errs.ErrStore, except data
// exceptions on a single row (numeric overflow, over-long symbol) which come back
// as errs.ErrInvalidInput.
type PriceRepository interface {
	EnsureSymbol(ctx context.Context, symbol string) (int64, error)
	UpsertPrice(ctx context.Context, symbolID int64, timestamp int64, price decimal.Decimal) error
	ListSymbols(ctx context.Context) ([]string, error)
	StatsBySymbol(ctx context.Context, symbol string) (*models.StatsSummary, error)
	PriceRanges(ctx context.Context) ([]models.PriceRange, error)
	PriceRangesBetween(ctx context.Context, fromMillis, toMillis int64) ([]models.PriceRange, error)
	Truncate(ctx context.Context) error
}

type priceRepository struct {
	db *sql.DB
}

func NewPriceRepository(db *sql.DB) PriceRepository {
	return &priceRepository{db: db}
}

// EnsureSymbol returns the id of symbol, creating the row if it does not exist.
// Concurrent callers for the same symbol always observe the same id.
func (r *priceRepository) EnsureSymbol(ctx context.Context, symbol string) (int64, error) {
	var id int64
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO symbols (symbol)
		VALUES ($1)
		ON CONFLICT (symbol) DO UPDATE SET symbol = EXCLUDED.symbol
		RETURNING id
	`, symbol).Scan(&id)
	if err != nil {
		return 0, classify("ensure symbol", err)
	}
	return id, nil
}

// UpsertPrice inserts the price for (timestamp, symbolID) or replaces the
// existing one.
func (r *priceRepository) UpsertPrice(ctx context.Context, symbolID int64, timestamp int64, price decimal.Decimal) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO price_points (timestamp, price, symbol_id)
		VALUES ($1, $2, $3)
		ON CONFLICT (timestamp, symbol_id)
		DO UPDATE SET price = EXCLUDED.price
	`, timestamp, price, symbolID)
	return classify("upsert price", err)
}

// ListSymbols returns every known symbol in insertion order.
func (r *priceRepository) ListSymbols(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT symbol FROM symbols ORDER BY id`)
	if err != nil {
		return nil, errs.Store("list symbols", err)
	}
	defer func() { _ = rows.Close() }()

	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, errs.Store("scan symbol", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.Store("list symbols", err)
	}
	return out, nil
}

// StatsBySymbol returns min/max price and the prices at the oldest and newest
// timestamp for symbol. It returns nil, nil when the symbol has no price points.
func (r *priceRepository) StatsBySymbol(ctx context.Context, symbol string) (*models.StatsSummary, error) {
	var s models.StatsSummary
	err := r.db.QueryRowContext(ctx, `
		SELECT
			s.symbol,
			MIN(p.price) AS min_price,
			MAX(p.price) AS max_price,
			(SELECT p1.price FROM price_points p1 WHERE p1.symbol_id = s.id ORDER BY p1.timestamp ASC LIMIT 1) AS oldest_price,
			(SELECT p2.price FROM price_points p2 WHERE p2.symbol_id = s.id ORDER BY p2.timestamp DESC LIMIT 1) AS newest_price
		FROM symbols s
		JOIN price_points p ON p.symbol_id = s.id
		WHERE s.symbol = $1
		GROUP BY s.id, s.symbol
	`, symbol).Scan(&s.Symbol, &s.MinPrice, &s.MaxPrice, &s.OldestPrice, &s.NewestPrice)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errs.Store("stats by symbol", err)
	}
	return &s, nil
}

// PriceRanges returns the all-time min/max price per symbol, ordered by symbol
// bytewise regardless of the database collation.
func (r *priceRepository) PriceRanges(ctx context.Context) ([]models.PriceRange, error) {
	return r.queryRanges(ctx, "")
}

// PriceRangesBetween returns min/max price per symbol restricted to
// fromMillis <= timestamp <= toMillis, ordered by symbol.
func (r *priceRepository) PriceRangesBetween(ctx context.Context, fromMillis, toMillis int64) ([]models.PriceRange, error) {
	return r.queryRanges(ctx, "WHERE p.timestamp BETWEEN $1 AND $2", fromMillis, toMillis)
}

func (r *priceRepository) queryRanges(ctx context.Context, where string, args ...any) ([]models.PriceRange, error) {
	query := fmt.Sprintf(`
		SELECT s.symbol, MIN(p.price) AS min_price, MAX(p.price) AS max_price
		FROM price_points p
		JOIN symbols s ON s.id = p.symbol_id
		%s
		GROUP BY s.symbol
		ORDER BY s.symbol COLLATE "C"
	`, where)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errs.Store("price ranges", err)
	}
	defer func() { _ = rows.Close() }()

	var out []models.PriceRange
	for rows.Next() {
		var pr models.PriceRange
		if err := rows.Scan(&pr.Symbol, &pr.MinPrice, &pr.MaxPrice); err != nil {
			return nil, errs.Store("scan price range", err)
		}
		out = append(out, pr)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.Store("price ranges", err)
	}
	return out, nil
}

// Truncate removes every price point and symbol in one statement.
func (r *priceRepository) Truncate(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `TRUNCATE TABLE price_points, symbols RESTART IDENTITY`)
	return errs.Store("truncate", err)
}

// classify maps Postgres data exceptions (SQLSTATE class 22) to ErrInvalidInput
// and everything else to ErrStore.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code.Class() == "22" {
		return errs.InvalidInput("%s: %s", op, pqErr.Message)
	}
	return errs.Store(op, err)
}
