package ingestion

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/guttosm/cryptopulse/internal/domain/errs"
	"github.com/guttosm/cryptopulse/internal/domain/models"
	"github.com/guttosm/cryptopulse/internal/logger"
	"github.com/guttosm/cryptopulse/internal/metrics"
	"github.com/guttosm/cryptopulse/internal/storage"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const (
	// maxLineBytes bounds a single CSV line; longer lines fail the whole stream.
	maxLineBytes = 1 << 20
	// logLineBytes bounds how much of a skipped line is echoed to the log.
	logLineBytes = 120
	headerField  = "timestamp"

	// bounds on the decimal exponent of a price; NUMERIC(20,8) holds nothing
	// outside them
	minPriceExponent = -64
	maxPriceExponent = 32
)

// Result reports how many data lines one Import call applied or skipped.
// Header and blank lines are in neither count.
type Result struct {
	Accepted int `json:"accepted"`
	Skipped  int `json:"skipped"`
}

// Add accumulates o into r.
func (r *Result) Add(o Result) {
	r.Accepted += o.Accepted
	r.Skipped += o.Skipped
}

// Importer streams "timestamp,symbol,price" lines into the price store.
//
// Malformed lines are logged and skipped. The stream is aborted only by a read
// failure, a line over maxLineBytes, a store failure or ctx cancellation; lines
// applied before that stay applied.
type Importer struct {
	repo storage.PriceRepository
	log  zerolog.Logger
}

func NewImporter(repo storage.PriceRepository) *Importer {
	return &Importer{repo: repo, log: logger.Component("importer")}
}

type record struct {
	timestamp int64
	symbol    string
	price     decimal.Decimal
}

// Import reads r to EOF, upserting every valid line.
//
// Returns:
//   - Result: accepted/skipped line counts (also valid alongside an error).
//   - error:  errs.ErrInvalidInput for an over-long line, errs.ErrStore for store
//     or read failures, or ctx.Err().
func (im *Importer) Import(ctx context.Context, r io.Reader) (Result, error) {
	var res Result
	ids := make(map[string]int64)

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	lineNumber := 0
	for sc.Scan() {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		lineNumber++

		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		if lineNumber == 1 {
			line = strings.TrimPrefix(line, "\ufeff")
		}

		rec, err := parseLine(line)
		if errors.Is(err, errHeader) {
			continue
		}
		if err != nil {
			im.skip(&res, lineNumber, line, err)
			continue
		}

		err = im.apply(ctx, ids, rec)
		if errors.Is(err, errs.ErrInvalidInput) {
			im.skip(&res, lineNumber, line, err)
			continue
		}
		if err != nil {
			return res, fmt.Errorf("line %d: %w", lineNumber, err)
		}

		res.Accepted++
		metrics.ImportLines.WithLabelValues(metrics.ResultAccepted).Inc()
		im.log.Debug().Int("line", lineNumber).Str("symbol", rec.symbol).Int64("timestamp", rec.timestamp).Str("price", rec.price.String()).Msg("price upserted")
	}

	if err := sc.Err(); err != nil {
		if errors.Is(err, bufio.ErrTooLong) {
			return res, errs.InvalidInput("line %d exceeds %d bytes", lineNumber+1, maxLineBytes)
		}
		return res, errs.Store("read csv stream", err)
	}
	return res, nil
}

// apply resolves the symbol id (cached for the duration of one Import) and
// upserts the price.
func (im *Importer) apply(ctx context.Context, ids map[string]int64, rec record) error {
	id, ok := ids[rec.symbol]
	if !ok {
		var err error
		id, err = im.repo.EnsureSymbol(ctx, rec.symbol)
		if err != nil {
			return err
		}
		ids[rec.symbol] = id
	}
	return im.repo.UpsertPrice(ctx, id, rec.timestamp, rec.price)
}

func (im *Importer) skip(res *Result, lineNumber int, line string, reason error) {
	res.Skipped++
	metrics.ImportLines.WithLabelValues(metrics.ResultSkipped).Inc()
	if len(line) > logLineBytes {
		line = line[:logLineBytes] + "..."
	}
	im.log.Warn().Int("line", lineNumber).Str("raw", line).Err(reason).Msg("csv line skipped")
}

var errHeader = errors.New("header line")

// parseLine splits one comma-delimited line into a record. Fields past the
// third are ignored.
func parseLine(line string) (record, error) {
	var rec record
	cols := strings.Split(line, ",")
	first := strings.TrimSpace(cols[0])
	if strings.EqualFold(first, headerField) {
		return rec, errHeader
	}
	if len(cols) < 3 {
		return rec, fmt.Errorf("expected 3 fields, got %d", len(cols))
	}

	ts, err := strconv.ParseInt(first, 10, 64)
	if err != nil {
		return rec, fmt.Errorf("invalid timestamp %q", first)
	}
	rec.timestamp = ts

	rec.symbol = strings.TrimSpace(cols[1])
	if rec.symbol == "" {
		return rec, errors.New("empty symbol")
	}

	p := strings.TrimSpace(cols[2])
	price, err := decimal.NewFromString(p)
	if err != nil {
		return rec, fmt.Errorf("invalid price %q", p)
	}
	// rounding rescales the coefficient by 10^|exp|, so huge exponents must
	// be rejected before they reach RoundPrice
	if exp := price.Exponent(); exp < minPriceExponent || exp > maxPriceExponent {
		return rec, fmt.Errorf("price exponent %d out of range", exp)
	}
	rec.price = models.RoundPrice(price)
	return rec, nil
}
