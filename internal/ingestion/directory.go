package ingestion

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/guttosm/cryptopulse/internal/logger"
)

const filePattern = "*.csv"

// StreamImporter is the subset of *Importer used by ImportDirectory.
type StreamImporter interface {
	Import(ctx context.Context, r io.Reader) (Result, error)
}

// openFile is an indirection so tests can inject read failures.
var openFile = func(path string) (io.ReadCloser, error) {
	return os.Open(path)
}

// ImportDirectory imports every *.csv file in dir.
//
// Parameters:
//   - dir:      directory scanned (non-recursive); files are taken in lexicographic order.
//   - imp:      importer applied to each file.
//   - parallel: number of files imported concurrently; values < 1 mean 1.
//
// Behavior:
//   - A missing or empty directory is not an error; it yields a zero Result.
//   - Files run in order when parallel == 1. With more workers, start order is
//     still lexicographic but two files holding the same (timestamp, symbol)
//     may apply in either order.
//   - The first file that fails cancels the rest and its error is returned.
//
// Returns:
//   - Result: counts summed over the files that completed.
//   - error:  first failure, wrapped with the file name.
func ImportDirectory(ctx context.Context, dir string, imp StreamImporter, parallel int) (Result, error) {
	var total Result

	if _, err := os.Stat(dir); os.IsNotExist(err) {
		logger.L().Warn().Str("dir", dir).Msg("import directory not found, nothing to import")
		return total, nil
	}

	files, err := filepath.Glob(filepath.Join(dir, filePattern))
	if err != nil {
		return total, fmt.Errorf("list %s: %w", dir, err)
	}
	sort.Strings(files)
	if len(files) == 0 {
		logger.L().Info().Str("dir", dir).Msg("no csv files to import")
		return total, nil
	}

	if parallel < 1 {
		parallel = 1
	}
	logger.L().Info().Int("files", len(files)).Str("dir", dir).Int("max_parallel", parallel).Msg("import start")

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(parallel)

	for i, file := range files {
		g.Go(func() error {
			start := time.Now()
			base := filepath.Base(file)

			res, err := importFile(gctx, file, imp)

			mu.Lock()
			total.Add(res)
			mu.Unlock()

			if err != nil {
				logger.L().Error().Str("file", base).Dur("elapsed", time.Since(start)).Err(err).Msg("file failed")
				return fmt.Errorf("file %s: %w", base, err)
			}
			logger.L().Info().
				Int("idx", i+1).
				Int("total", len(files)).
				Str("file", base).
				Int("accepted", res.Accepted).
				Int("skipped", res.Skipped).
				Dur("elapsed", time.Since(start)).
				Msg("file done")
			return nil
		})
	}

	err = g.Wait()
	logger.L().Info().Int("accepted", total.Accepted).Int("skipped", total.Skipped).Bool("ok", err == nil).Msg("import finished")
	return total, err
}

func importFile(ctx context.Context, path string, imp StreamImporter) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	f, err := openFile(path)
	if err != nil {
		return Result{}, fmt.Errorf("open: %w", err)
	}
	defer func() { _ = f.Close() }()
	return imp.Import(ctx, f)
}
