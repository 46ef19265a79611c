package main

//
//  @title           cryptopulse API
//  @version         1.0
//  @description     Crypto price import, statistics and normalized range service.
//  @termsOfService  https://github.com/guttosm/cryptopulse
//  @contact.name    API Support
//  @contact.url     https://github.com/guttosm/cryptopulse
//  @contact.email   support@example.com
//  @license.name    MIT
//  @license.url     https://opensource.org/licenses/MIT
//  @host            localhost:8080
//  @BasePath        /
//  @schemes         http
//
//  @tag.name        symbols
//  @tag.description Supported cryptos and per-symbol price stats
//
//  @tag.name        normalized-range
//  @tag.description (max-min)/min rankings, all-time and per day
//
//  @tag.name        import
//  @tag.description CSV price upload
//
//  @tag.name        health
//  @tag.description Liveness and readiness probes

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/guttosm/cryptopulse/config"
	_ "github.com/guttosm/cryptopulse/docs" // swagger docs
	"github.com/guttosm/cryptopulse/internal/app"
	"github.com/guttosm/cryptopulse/internal/logger"
)

const (
	modeAPI      = "api"
	modeImport   = "import"
	modeTruncate = "truncate"
)

// indirections so tests can run the one-shot modes without a database
var (
	runImport   = app.RunImport
	runTruncate = app.RunTruncate
)

// startServer initializes and starts the HTTP server in a separate goroutine.
//
// Parameters:
//   - router (http.Handler): The HTTP router (Gin Engine) configured with all routes.
//   - port (string): The port where the server will listen for incoming requests.
//
// Returns:
//   - *http.Server: The initialized HTTP server instance.
func startServer(router http.Handler, port string) *http.Server {
	server := &http.Server{
		Addr:              ":" + port,
		Handler:           router,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.L().Info().Str("port", port).Msg("server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.L().Fatal().Err(err).Msg("server failed to start")
		}
	}()

	return server
}

// gracefulShutdown gracefully terminates the HTTP server and cleans up resources
// when an OS interrupt signal (SIGINT, SIGTERM) is received.
//
// Parameters:
//   - ctx (context.Context): A context with timeout for graceful shutdown.
//   - server (*http.Server): The HTTP server instance to shut down.
//   - cleanup (func()): Cleanup callback to release resources (e.g., DB connections).
func gracefulShutdown(ctx context.Context, server *http.Server, cleanup func()) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	<-quit
	logger.L().Info().Msg("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.L().Fatal().Err(err).Msg("server forced to shutdown")
	}

	cleanup()
	logger.L().Info().Msg("server exited gracefully")
}

// runOneShot executes the import or truncate mode and returns when it is done.
// SIGINT/SIGTERM cancel the run.
func runOneShot(ctx context.Context, mode, dir string) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch mode {
	case modeImport:
		start := time.Now()
		res, err := runImport(ctx, dir)
		if err != nil {
			return fmt.Errorf("import failed: %w", err)
		}
		logger.L().Info().
			Str("dir", dir).
			Int("accepted", res.Accepted).
			Int("skipped", res.Skipped).
			Dur("elapsed", time.Since(start)).
			Msg("import completed successfully")
		return nil

	case modeTruncate:
		if err := runTruncate(ctx); err != nil {
			return fmt.Errorf("truncate failed: %w", err)
		}
		logger.L().Info().Msg("price store truncated")
		return nil

	default:
		return fmt.Errorf("unknown mode %q (want %s, %s or %s)", mode, modeAPI, modeImport, modeTruncate)
	}
}

// main is the entry point of the cryptopulse application.
//
// Modes (selected via --mode flag):
//   - api:      Starts the REST API. IMPORT_DIR is loaded first when IMPORT_ON_STARTUP is true.
//   - import:   Imports every *.csv file of --dir and exits.
//   - truncate: Deletes all price points and symbols and exits.
//
// Flags:
//   - --mode: Execution mode. Default: "api".
//   - --dir:  Directory containing .csv files for import mode. Defaults to IMPORT_DIR.
//   - --port: Port for the API server. Defaults to value from config (SERVER_PORT).
func main() {
	ctx := context.Background()

	// Load configuration from environment or .env file
	config.LoadConfig()

	// Initialize JSON logger
	logger.Init()

	// Parse CLI flags (override config defaults if provided)
	mode := flag.String("mode", modeAPI, "Mode: api, import or truncate")
	dir := flag.String("dir", config.AppConfig.Import.Dir, "Directory with .csv files (import mode)")
	port := flag.String("port", config.AppConfig.Server.Port, "Port for API mode")
	flag.Parse()

	if *mode != modeAPI {
		logger.L().Info().Str("mode", *mode).Msg("running")
		if err := runOneShot(ctx, *mode, *dir); err != nil {
			logger.L().Fatal().Err(err).Str("mode", *mode).Msg("run failed")
		}
		return
	}

	logger.L().Info().Msg("starting API server")

	router, cleanup, err := app.InitializeApp(ctx)
	if err != nil {
		logger.L().Fatal().Err(err).Msg("app init error")
	}

	server := startServer(router, *port)
	gracefulShutdown(ctx, server, cleanup)
}
