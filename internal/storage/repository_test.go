package storage

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/guttosm/cryptopulse/internal/domain/errs"
	pq "github.com/lib/pq"
	"github.com/shopspring/decimal"
)

type dummyErr struct{}

func (dummyErr) Error() string { return "dummy" }

func newMockRepo(t *testing.T) (*priceRepository, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	repo := &priceRepository{db: db}
	cleanup := func() { _ = db.Close() }
	return repo, mock, cleanup
}

func TestNewPriceRepository_Construct(t *testing.T) {
	db, _, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	defer func() { _ = db.Close() }()
	if NewPriceRepository(db) == nil {
		t.Fatalf("expected non-nil repository")
	}
}

func TestEnsureSymbol_SQLMock(t *testing.T) {
	repo, mock, done := newMockRepo(t)
	defer done()

	mock.ExpectQuery(`INSERT INTO symbols \(symbol\)\s+VALUES \(\$1\)\s+ON CONFLICT \(symbol\)`).
		WithArgs("BTC").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(7)))

	id, err := repo.EnsureSymbol(context.Background(), "BTC")
	if err != nil || id != 7 {
		t.Fatalf("EnsureSymbol: id=%d err=%v", id, err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestUpsertPrice_SQLMock(t *testing.T) {
	price := decimal.RequireFromString("100.00000000")

	cases := []struct {
		name    string
		dbErr   error
		wantErr error
	}{
		{name: "ok"},
		{name: "numeric overflow is invalid input", dbErr: &pq.Error{Code: "22003", Message: "numeric field overflow"}, wantErr: errs.ErrInvalidInput},
		{name: "connection failure is store failure", dbErr: dummyErr{}, wantErr: errs.ErrStore},
		{name: "constraint failure is store failure", dbErr: &pq.Error{Code: "23503", Message: "fk"}, wantErr: errs.ErrStore},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			repo, mock, done := newMockRepo(t)
			defer done()

			exp := mock.ExpectExec(`INSERT INTO price_points \(timestamp, price, symbol_id\)[\s\S]+ON CONFLICT \(timestamp, symbol_id\)[\s\S]+DO UPDATE SET price = EXCLUDED.price`).
				WithArgs(int64(1700000000000), price, int64(3))
			if tc.dbErr != nil {
				exp.WillReturnError(tc.dbErr)
			} else {
				exp.WillReturnResult(sqlmock.NewResult(1, 1))
			}

			err := repo.UpsertPrice(context.Background(), 3, 1700000000000, price)
			if tc.wantErr == nil && err != nil {
				t.Fatalf("unexpected err: %v", err)
			}
			if tc.wantErr != nil && !errors.Is(err, tc.wantErr) {
				t.Fatalf("want %v, got %v", tc.wantErr, err)
			}
			if err := mock.ExpectationsWereMet(); err != nil {
				t.Fatalf("unmet expectations: %v", err)
			}
		})
	}
}

func TestListSymbols_SQLMock(t *testing.T) {
	repo, mock, done := newMockRepo(t)
	defer done()

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT symbol FROM symbols ORDER BY id`)).
		WillReturnRows(sqlmock.NewRows([]string{"symbol"}).AddRow("BTC").AddRow("ETH").AddRow("DOGE"))

	got, err := repo.ListSymbols(context.Background())
	if err != nil {
		t.Fatalf("ListSymbols: %v", err)
	}
	if len(got) != 3 || got[0] != "BTC" || got[1] != "ETH" || got[2] != "DOGE" {
		t.Fatalf("unexpected symbols %v", got)
	}

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT symbol FROM symbols ORDER BY id`)).WillReturnError(dummyErr{})
	if _, err := repo.ListSymbols(context.Background()); !errors.Is(err, errs.ErrStore) {
		t.Fatalf("expected store error, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestStatsBySymbol_SQLMock(t *testing.T) {
	statsRegex := `SELECT\s+s\.symbol,\s+MIN\(p\.price\) AS min_price,\s+MAX\(p\.price\) AS max_price,[\s\S]+ORDER BY p1\.timestamp ASC LIMIT 1\) AS oldest_price,[\s\S]+ORDER BY p2\.timestamp DESC LIMIT 1\) AS newest_price`

	t.Run("found", func(t *testing.T) {
		repo, mock, done := newMockRepo(t)
		defer done()
		mock.ExpectQuery(statsRegex).WithArgs("BTC").WillReturnRows(
			sqlmock.NewRows([]string{"symbol", "min_price", "max_price", "oldest_price", "newest_price"}).
				AddRow("BTC", "90.00000000", "150.00000000", "100.00000000", "90.00000000"))

		s, err := repo.StatsBySymbol(context.Background(), "BTC")
		if err != nil || s == nil {
			t.Fatalf("unexpected s=%+v err=%v", s, err)
		}
		if s.Symbol != "BTC" || !s.OldestPrice.Equal(decimal.NewFromInt(100)) || !s.NewestPrice.Equal(decimal.NewFromInt(90)) ||
			!s.MinPrice.Equal(decimal.NewFromInt(90)) || !s.MaxPrice.Equal(decimal.NewFromInt(150)) {
			t.Fatalf("unexpected stats %+v", s)
		}
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Fatalf("unmet expectations: %v", err)
		}
	})

	t.Run("no rows", func(t *testing.T) {
		repo, mock, done := newMockRepo(t)
		defer done()
		mock.ExpectQuery(statsRegex).WithArgs("NOPE").
			WillReturnRows(sqlmock.NewRows([]string{"symbol", "min_price", "max_price", "oldest_price", "newest_price"}))

		s, err := repo.StatsBySymbol(context.Background(), "NOPE")
		if err != nil || s != nil {
			t.Fatalf("want nil,nil got s=%+v err=%v", s, err)
		}
	})

	t.Run("db error", func(t *testing.T) {
		repo, mock, done := newMockRepo(t)
		defer done()
		mock.ExpectQuery(statsRegex).WithArgs("BTC").WillReturnError(dummyErr{})

		if _, err := repo.StatsBySymbol(context.Background(), "BTC"); !errors.Is(err, errs.ErrStore) {
			t.Fatalf("expected store error, got %v", err)
		}
	})
}

func TestPriceRanges_SQLMock(t *testing.T) {
	rangesRegex := `SELECT s\.symbol, MIN\(p\.price\) AS min_price, MAX\(p\.price\) AS max_price\s+FROM price_points p\s+JOIN symbols s ON s\.id = p\.symbol_id\s+%s\s*GROUP BY s\.symbol\s+ORDER BY s\.symbol COLLATE "C"`
	cols := []string{"symbol", "min_price", "max_price"}

	cases := []struct {
		name  string
		where string
		call  func(r *priceRepository) (int, error)
		args  []driver.Value
	}{
		{
			name:  "all time",
			where: "",
			call: func(r *priceRepository) (int, error) {
				out, err := r.PriceRanges(context.Background())
				return len(out), err
			},
		},
		{
			name:  "windowed",
			where: `WHERE p\.timestamp BETWEEN \$1 AND \$2`,
			call: func(r *priceRepository) (int, error) {
				out, err := r.PriceRangesBetween(context.Background(), 100, 200)
				return len(out), err
			},
			args: []driver.Value{int64(100), int64(200)},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			repo, mock, done := newMockRepo(t)
			defer done()

			q := mock.ExpectQuery(fmt.Sprintf(rangesRegex, tc.where))
			if len(tc.args) > 0 {
				q.WithArgs(tc.args...)
			}
			q.WillReturnRows(sqlmock.NewRows(cols).AddRow("BTC", "90", "150").AddRow("ETH", "0", "10"))

			n, err := tc.call(repo)
			if err != nil || n != 2 {
				t.Fatalf("n=%d err=%v", n, err)
			}
			if err := mock.ExpectationsWereMet(); err != nil {
				t.Fatalf("unmet expectations: %v", err)
			}
		})
	}
}

func TestTruncate_SQLMock(t *testing.T) {
	repo, mock, done := newMockRepo(t)
	defer done()

	mock.ExpectExec(regexp.QuoteMeta(`TRUNCATE TABLE price_points, symbols RESTART IDENTITY`)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	if err := repo.Truncate(context.Background()); err != nil {
		t.Fatalf("Truncate: %v", err)
	}

	mock.ExpectExec(regexp.QuoteMeta(`TRUNCATE TABLE`)).WillReturnError(dummyErr{})
	if err := repo.Truncate(context.Background()); !errors.Is(err, errs.ErrStore) {
		t.Fatalf("expected store error, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
