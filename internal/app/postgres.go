package app

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/guttosm/cryptopulse/config"
	migrations "github.com/guttosm/cryptopulse/db"
	"github.com/guttosm/cryptopulse/internal/logger"
	goose "github.com/pressly/goose/v3"

	_ "github.com/lib/pq" // PostgreSQL driver for database/sql
)

const (
	pingTimeout     = 5 * time.Second
	maxOpenConns    = 20
	maxIdleConns    = 5
	connMaxLifetime = 30 * time.Minute
)

// sqlOpener is an indirection for unit testing; defaults to sql.Open
var sqlOpener = sql.Open

// InitPostgres opens the price store connection pool described by cfg.Postgres
// and pings it before returning.
//
// Example usage:
//
//	db, err := app.InitPostgres(config.AppConfig)
//	if err != nil {
//	    log.Fatalf("❌ failed to connect: %v", err)
//	}
//	defer db.Close()
func InitPostgres(cfg config.Config) (*sql.DB, error) {
	db, err := sqlOpener("postgres", cfg.Postgres.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}
	db.SetMaxOpenConns(maxOpenConns)
	db.SetMaxIdleConns(maxIdleConns)
	db.SetConnMaxLifetime(connMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	return db, nil
}

// postgresOpener is an indirection used by InitializeApp; overridden in tests to avoid real connections.
var postgresOpener = InitPostgres

// migrator applies the embedded schema migrations; overridden in tests.
var migrator = func(db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}
	return goose.Up(db, migrations.Dir)
}

// Migrate brings the price store schema (symbols, price_points) up to date.
// It is safe to run on every start.
func Migrate(db *sql.DB) error {
	start := time.Now()
	if err := migrator(db); err != nil {
		return fmt.Errorf("failed to migrate: %w", err)
	}
	logger.L().Info().Dur("elapsed", time.Since(start)).Msg("schema up to date")
	return nil
}

// openStore connects and migrates; the caller owns the returned pool.
func openStore(cfg config.Config) (*sql.DB, error) {
	db, err := postgresOpener(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize postgres: %w", err)
	}
	if err := Migrate(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}
