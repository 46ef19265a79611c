package ingestion

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/guttosm/cryptopulse/internal/domain/errs"
	"github.com/guttosm/cryptopulse/internal/domain/models"
	"github.com/shopspring/decimal"
)

type pointKey struct {
	id int64
	ts int64
}

// memRepo is an in-memory PriceRepository keyed the same way as the SQL schema.
type memRepo struct {
	ids     map[string]int64
	points  map[pointKey]decimal.Decimal
	ensures int
	upserts int
	failAt  int // fail the n-th upsert (1-based) with failErr
	failErr error
}

func newMemRepo() *memRepo {
	return &memRepo{ids: map[string]int64{}, points: map[pointKey]decimal.Decimal{}}
}

func (m *memRepo) EnsureSymbol(_ context.Context, symbol string) (int64, error) {
	m.ensures++
	if id, ok := m.ids[symbol]; ok {
		return id, nil
	}
	id := int64(len(m.ids) + 1)
	m.ids[symbol] = id
	return id, nil
}

func (m *memRepo) UpsertPrice(_ context.Context, symbolID, ts int64, price decimal.Decimal) error {
	m.upserts++
	if m.failAt > 0 && m.upserts == m.failAt {
		return m.failErr
	}
	m.points[pointKey{symbolID, ts}] = price
	return nil
}

func (m *memRepo) ListSymbols(context.Context) ([]string, error) { return nil, nil }
func (m *memRepo) StatsBySymbol(context.Context, string) (*models.StatsSummary, error) {
	return nil, nil
}
func (m *memRepo) PriceRanges(context.Context) ([]models.PriceRange, error) { return nil, nil }
func (m *memRepo) PriceRangesBetween(context.Context, int64, int64) ([]models.PriceRange, error) {
	return nil, nil
}
func (m *memRepo) Truncate(context.Context) error { return nil }

func (m *memRepo) price(t *testing.T, symbol string, ts int64) string {
	t.Helper()
	id, ok := m.ids[symbol]
	if !ok {
		t.Fatalf("symbol %s not stored", symbol)
	}
	p, ok := m.points[pointKey{id, ts}]
	if !ok {
		t.Fatalf("no price for %s@%d", symbol, ts)
	}
	return p.StringFixed(models.PriceScale)
}

func TestImport_TableDriven(t *testing.T) {
	cases := []struct {
		name     string
		content  string
		accepted int
		skipped  int
	}{
		{name: "three valid lines", content: "1700000000000,BTC,100.00000000\n1700003600000,BTC,150.00000000\n1700007200000,BTC,90.00000000\n", accepted: 3},
		{name: "header skipped silently", content: "timestamp,symbol,price\n1,BTC,1\n", accepted: 1},
		{name: "header is case-insensitive", content: " TimeStamp ,symbol,price\n1,BTC,1\n", accepted: 1},
		{name: "malformed line between valid ones", content: "1,BTC,1\nnot-a-number,BTC,2\n3,BTC,3\n", accepted: 2, skipped: 1},
		{name: "too few fields", content: "1,BTC\n", skipped: 1},
		{name: "empty symbol", content: "1,  ,5\n", skipped: 1},
		{name: "invalid price", content: "1,BTC,abc\n", skipped: 1},
		{name: "extreme price exponent", content: "1,BTC,1e-1000000000\n2,BTC,2\n", accepted: 1, skipped: 1},
		{name: "blank lines ignored", content: "\n1,BTC,1\n   \n\n", accepted: 1},
		{name: "crlf line endings", content: "timestamp,symbol,price\r\n1,BTC,1\r\n2,ETH,2\r\n", accepted: 2},
		{name: "extra fields ignored", content: "1,BTC,1,extra\n", accepted: 1},
		{name: "empty stream", content: ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res, err := NewImporter(newMemRepo()).Import(context.Background(), strings.NewReader(tc.content))
			if err != nil {
				t.Fatalf("Import: %v", err)
			}
			if res.Accepted != tc.accepted || res.Skipped != tc.skipped {
				t.Fatalf("got %+v, want accepted=%d skipped=%d", res, tc.accepted, tc.skipped)
			}
		})
	}
}

func TestImport_StoresRoundedTrimmedValues(t *testing.T) {
	repo := newMemRepo()
	in := "1, BTC ,0.123456785\n2,ETH,-0.123456785\n3,DOGE,7\n"
	if _, err := NewImporter(repo).Import(context.Background(), strings.NewReader(in)); err != nil {
		t.Fatalf("Import: %v", err)
	}
	if got := repo.price(t, "BTC", 1); got != "0.12345679" {
		t.Fatalf("BTC price %s", got)
	}
	if got := repo.price(t, "ETH", 2); got != "-0.12345679" {
		t.Fatalf("ETH price %s", got)
	}
	if got := repo.price(t, "DOGE", 3); got != "7.00000000" {
		t.Fatalf("DOGE price %s", got)
	}
}

func TestImport_SymbolsAreCaseSensitive(t *testing.T) {
	repo := newMemRepo()
	if _, err := NewImporter(repo).Import(context.Background(), strings.NewReader("1,btc,1\n1,BTC,2\n")); err != nil {
		t.Fatalf("Import: %v", err)
	}
	if len(repo.ids) != 2 {
		t.Fatalf("expected 2 symbols, got %v", repo.ids)
	}
}

func TestImport_ResolvesEachSymbolOnce(t *testing.T) {
	repo := newMemRepo()
	in := "1,BTC,1\n2,BTC,2\n3,ETH,3\n4,BTC,4\n"
	if _, err := NewImporter(repo).Import(context.Background(), strings.NewReader(in)); err != nil {
		t.Fatalf("Import: %v", err)
	}
	if repo.ensures != 2 {
		t.Fatalf("expected 2 symbol lookups, got %d", repo.ensures)
	}
}

func TestImport_IsIdempotent(t *testing.T) {
	repo := newMemRepo()
	imp := NewImporter(repo)
	in := "timestamp,symbol,price\n1,BTC,100\n2,BTC,150\n1,ETH,10\n"

	if _, err := imp.Import(context.Background(), strings.NewReader(in)); err != nil {
		t.Fatalf("first import: %v", err)
	}
	first := fmt.Sprint(repo.points)
	if _, err := imp.Import(context.Background(), strings.NewReader(in)); err != nil {
		t.Fatalf("second import: %v", err)
	}
	if got := fmt.Sprint(repo.points); got != first || len(repo.points) != 3 {
		t.Fatalf("state changed on re-import:\n%s\n%s", first, got)
	}
}

func TestImport_LaterLineReplacesPrice(t *testing.T) {
	repo := newMemRepo()
	if _, err := NewImporter(repo).Import(context.Background(), strings.NewReader("1,BTC,100\n1,BTC,101\n")); err != nil {
		t.Fatalf("Import: %v", err)
	}
	if got := repo.price(t, "BTC", 1); got != "101.00000000" || len(repo.points) != 1 {
		t.Fatalf("price=%s points=%d", got, len(repo.points))
	}
}

func TestImport_RowRejectedByStoreIsSkipped(t *testing.T) {
	repo := newMemRepo()
	repo.failAt = 2
	repo.failErr = errs.InvalidInput("upsert price: numeric field overflow")

	res, err := NewImporter(repo).Import(context.Background(), strings.NewReader("1,BTC,1\n2,BTC,1e30\n3,BTC,3\n"))
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if res.Accepted != 2 || res.Skipped != 1 {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestImport_StoreFailureAbortsKeepingEarlierLines(t *testing.T) {
	repo := newMemRepo()
	repo.failAt = 2
	repo.failErr = errs.Store("upsert price", errors.New("connection reset"))

	res, err := NewImporter(repo).Import(context.Background(), strings.NewReader("1,BTC,1\n2,BTC,2\n3,BTC,3\n"))
	if !errors.Is(err, errs.ErrStore) {
		t.Fatalf("expected store error, got %v", err)
	}
	if !strings.Contains(err.Error(), "line 2") {
		t.Fatalf("error should name the line: %v", err)
	}
	if res.Accepted != 1 || len(repo.points) != 1 {
		t.Fatalf("expected the first line to stay applied, res=%+v points=%d", res, len(repo.points))
	}
}

func TestImport_LineTooLongIsInvalidInput(t *testing.T) {
	long := "1,BTC," + strings.Repeat("9", maxLineBytes) + "\n"
	res, err := NewImporter(newMemRepo()).Import(context.Background(), strings.NewReader("1,BTC,1\n"+long))
	if !errors.Is(err, errs.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
	if res.Accepted != 1 {
		t.Fatalf("expected first line applied, got %+v", res)
	}
}

type failingReader struct{ after io.Reader }

func (f *failingReader) Read(p []byte) (int, error) {
	if f.after != nil {
		n, err := f.after.Read(p)
		if err == io.EOF {
			f.after = nil
			return n, nil
		}
		return n, err
	}
	return 0, errors.New("disk gone")
}

func TestImport_ReadFailureIsFatal(t *testing.T) {
	_, err := NewImporter(newMemRepo()).Import(context.Background(), &failingReader{after: strings.NewReader("1,BTC,1\n")})
	if !errors.Is(err, errs.ErrStore) || errs.HTTPStatus(err) != 500 {
		t.Fatalf("expected 500-class error, got %v", err)
	}
}

func TestImport_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res, err := NewImporter(newMemRepo()).Import(ctx, strings.NewReader("1,BTC,1\n"))
	if !errors.Is(err, context.Canceled) || res.Accepted != 0 {
		t.Fatalf("res=%+v err=%v", res, err)
	}
}

func TestParseLine(t *testing.T) {
	cases := []struct {
		line    string
		wantErr bool
		header  bool
		ts      int64
		symbol  string
		price   string
	}{
		{line: "1700000000000,BTC,46813.21", ts: 1700000000000, symbol: "BTC", price: "46813.21"},
		{line: "-5, ETH ,0.000000005", ts: -5, symbol: "ETH", price: "0.00000001"},
		{line: "TIMESTAMP,x,y", header: true},
		{line: "1.5,BTC,1", wantErr: true},
		{line: "99999999999999999999,BTC,1", wantErr: true},
		{line: "1,BTC,", wantErr: true},
		{line: "", wantErr: true},
		{line: "1,BTC,1e-1000000000", wantErr: true},
		{line: "1,BTC,1e1000000", wantErr: true},
		{line: "1,BTC,1e-65", wantErr: true},
		{line: "1,BTC,1.5e3", ts: 1, symbol: "BTC", price: "1500"},
		{line: "1,BTC,1e-64", ts: 1, symbol: "BTC", price: "0"},
	}
	for _, tc := range cases {
		t.Run(tc.line, func(t *testing.T) {
			rec, err := parseLine(tc.line)
			if tc.header {
				if !errors.Is(err, errHeader) {
					t.Fatalf("expected header, got %v", err)
				}
				return
			}
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %+v", rec)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected err: %v", err)
			}
			if rec.timestamp != tc.ts || rec.symbol != tc.symbol || !rec.price.Equal(decimal.RequireFromString(tc.price)) {
				t.Fatalf("unexpected record %+v", rec)
			}
		})
	}
}
