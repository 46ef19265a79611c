package app

import (
	"context"
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/guttosm/cryptopulse/config"
	"github.com/guttosm/cryptopulse/internal/api"
	"github.com/guttosm/cryptopulse/internal/ingestion"
	"github.com/guttosm/cryptopulse/internal/logger"
	"github.com/guttosm/cryptopulse/internal/ratelimit"
	"github.com/guttosm/cryptopulse/internal/service"
	"github.com/guttosm/cryptopulse/internal/storage"
)

// InitializeApp sets up all application dependencies and returns
// a fully configured Gin router, a cleanup function for graceful shutdown,
// and any error encountered during initialization.
//
// Responsibilities:
//   - Connects to PostgreSQL and applies migrations.
//   - Builds the repository, importer, stats service and rate limiter.
//   - Imports IMPORT_DIR when IMPORT_ON_STARTUP is set, before any route is served.
//   - Configures the Gin router and registers health and readiness probes.
//   - Provides a cleanup function to close resources (e.g., DB connection).
//
// Returns:
//   - *gin.Engine: the configured Gin HTTP router.
//   - func(): cleanup function to be executed on shutdown.
//   - error: any initialization error that occurred.
func InitializeApp(ctx context.Context) (*gin.Engine, func(), error) {
	cfg := config.AppConfig

	db, err := openStore(cfg)
	if err != nil {
		return nil, nil, err
	}

	repo := storage.NewPriceRepository(db)
	importer := ingestion.NewImporter(repo)

	if cfg.Import.OnStartup {
		res, err := ingestion.ImportDirectory(ctx, cfg.Import.Dir, importer, cfg.Import.Parallel)
		if err != nil {
			_ = db.Close()
			return nil, nil, fmt.Errorf("startup import: %w", err)
		}
		logger.L().Info().Str("dir", cfg.Import.Dir).Int("accepted", res.Accepted).Int("skipped", res.Skipped).Msg("startup import done")
	}

	stats := service.NewStatsService(repo, cfg.Location)
	limiter := ratelimit.New(cfg.RateLimit)

	handler := api.NewHandler(stats, importer)
	router := api.NewRouter(handler, limiter, cfg.Server.TrustedProxies)

	api.NewHealthHandler(db.PingContext).Register(router)

	cleanup := func() {
		_ = db.Close()
	}

	return router, cleanup, nil
}

// RunImport imports every *.csv in dir into the configured store and exits.
func RunImport(ctx context.Context, dir string) (ingestion.Result, error) {
	cfg := config.AppConfig

	db, err := openStore(cfg)
	if err != nil {
		return ingestion.Result{}, err
	}
	defer func() { _ = db.Close() }()

	return ingestion.ImportDirectory(ctx, dir, ingestion.NewImporter(storage.NewPriceRepository(db)), cfg.Import.Parallel)
}

// RunTruncate removes every price point and symbol from the configured store.
func RunTruncate(ctx context.Context) error {
	db, err := openStore(config.AppConfig)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	return storage.NewPriceRepository(db).Truncate(ctx)
}
