package config

import (
	"fmt"
	"log"
	"net"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds the full application configuration loaded from environment variables or .env file.
//
// It is composed of smaller structs that represent different concerns of the system:
// server settings, Postgres connection details, the per-client rate limiter and the
// CSV import pipeline.
//
// Example ENV equivalent:
//
//	SERVER_PORT=8080
//	TRUSTED_PROXIES=10.0.0.0/8
//	POSTGRES_HOST=localhost
//	POSTGRES_DB=cryptopulse
//	RATE_LIMIT_CAPACITY=20
//	RATE_LIMIT_WINDOW=60s
//	IMPORT_DIR=./data/csv
//	TIMEZONE=Europe/Sofia
type Config struct {
	Server    ServerConfig    // HTTP server configuration
	Postgres  PostgresConfig  // PostgreSQL connection settings
	RateLimit RateLimitConfig // Per-client token bucket settings
	Import    ImportConfig    // CSV import settings
	Location  *time.Location  // Zone used to resolve calendar days
}

// ServerConfig holds HTTP server settings such as the port to listen on.
type ServerConfig struct {
	Port string // The TCP port the HTTP server will listen on (e.g., "8080")

	// TrustedProxies lists the IPs or CIDRs whose X-Forwarded-For / X-Real-IP
	// headers are honored when resolving the client address. Empty means the
	// TCP peer address is always the client identity.
	TrustedProxies []string
}

// PostgresConfig defines connection details for PostgreSQL.
//
// Fields:
//   - Host: hostname of the database server.
//   - Port: port number of the database server (default 5432).
//   - User: username for authentication.
//   - Password: password for authentication.
//   - DBName: target database name.
//   - SSLMode: SSL mode (e.g., "disable", "require").
//   - URL: computed DSN used by database/sql to connect.
type PostgresConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
	URL      string
}

// RateLimitConfig configures the token bucket kept for every client identity.
//
// Capacity tokens are refilled linearly over Window. At most MaxClients buckets
// are retained; a bucket idle for IdleTTL is evicted.
type RateLimitConfig struct {
	Capacity   int
	Window     time.Duration
	MaxClients int
	IdleTTL    time.Duration
}

// ImportConfig controls the CSV files loaded at startup or in import mode.
type ImportConfig struct {
	Dir       string // directory scanned for *.csv
	OnStartup bool   // load Dir before the API starts serving
	Parallel  int    // files imported concurrently
}

// AppConfig is the globally accessible configuration instance.
//
// It is populated once via LoadConfig() and handed to app.InitializeApp.
var AppConfig Config

// LoadConfig initializes the global AppConfig by reading from .env file
// or directly from environment variables.
//
// Precedence (from lowest to highest):
//  1. Defaults set in this function.
//  2. Values from .env file (if present).
//  3. Environment variables.
//
// Fatal exit:
//   - If required variables are missing or TIMEZONE is unknown, the app terminates
//     with a descriptive log message.
func LoadConfig() {
	// Default values
	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("TRUSTED_PROXIES", "")

	viper.SetDefault("POSTGRES_HOST", "localhost")
	viper.SetDefault("POSTGRES_PORT", 5432)
	viper.SetDefault("POSTGRES_USER", "postgres")
	viper.SetDefault("POSTGRES_PASSWORD", "postgres")
	viper.SetDefault("POSTGRES_DB", "cryptopulse")
	viper.SetDefault("POSTGRES_SSLMODE", "disable")

	viper.SetDefault("RATE_LIMIT_CAPACITY", 20)
	viper.SetDefault("RATE_LIMIT_WINDOW", "60s")
	viper.SetDefault("RATE_LIMIT_MAX_CLIENTS", 10000)
	viper.SetDefault("RATE_LIMIT_IDLE_TTL", "10m")

	viper.SetDefault("IMPORT_DIR", "./data/csv")
	viper.SetDefault("IMPORT_ON_STARTUP", true)
	viper.SetDefault("IMPORT_PARALLEL", 1)

	viper.SetDefault("TIMEZONE", "Local")

	// Optionally read from .env if present (common in local dev)
	viper.SetConfigFile(".env")
	_ = viper.ReadInConfig() // ignore error if no .env

	// Read environment variables automatically
	viper.AutomaticEnv()

	AppConfig = Config{
		Server: ServerConfig{
			Port:           viper.GetString("SERVER_PORT"),
			TrustedProxies: splitList(viper.GetString("TRUSTED_PROXIES")),
		},
		Postgres: PostgresConfig{
			Host:     viper.GetString("POSTGRES_HOST"),
			Port:     viper.GetInt("POSTGRES_PORT"),
			User:     viper.GetString("POSTGRES_USER"),
			Password: viper.GetString("POSTGRES_PASSWORD"),
			DBName:   viper.GetString("POSTGRES_DB"),
			SSLMode:  viper.GetString("POSTGRES_SSLMODE"),
		},
		RateLimit: RateLimitConfig{
			Capacity:   viper.GetInt("RATE_LIMIT_CAPACITY"),
			Window:     viper.GetDuration("RATE_LIMIT_WINDOW"),
			MaxClients: viper.GetInt("RATE_LIMIT_MAX_CLIENTS"),
			IdleTTL:    viper.GetDuration("RATE_LIMIT_IDLE_TTL"),
		},
		Import: ImportConfig{
			Dir:       viper.GetString("IMPORT_DIR"),
			OnStartup: viper.GetBool("IMPORT_ON_STARTUP"),
			Parallel:  viper.GetInt("IMPORT_PARALLEL"),
		},
	}

	AppConfig.Postgres.URL = AppConfig.Postgres.DSN()

	loc, err := time.LoadLocation(viper.GetString("TIMEZONE"))
	if err != nil {
		log.Fatalf("invalid TIMEZONE %q: %v", viper.GetString("TIMEZONE"), err)
	}
	AppConfig.Location = loc

	// Validate critical fields
	validateConfig()
}

// DSN builds the postgres:// connection string used by database/sql.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		p.User,
		p.Password,
		p.Host,
		p.Port,
		p.DBName,
		p.SSLMode,
	)
}

// missingFields reports the names of required settings that are unset or invalid.
func (c Config) missingFields() []string {
	var missing []string

	if c.Server.Port == "" {
		missing = append(missing, "SERVER_PORT")
	}
	if c.Postgres.Host == "" {
		missing = append(missing, "POSTGRES_HOST")
	}
	if c.Postgres.Port == 0 {
		missing = append(missing, "POSTGRES_PORT")
	}
	if c.Postgres.User == "" {
		missing = append(missing, "POSTGRES_USER")
	}
	if c.Postgres.Password == "" {
		missing = append(missing, "POSTGRES_PASSWORD")
	}
	if c.Postgres.DBName == "" {
		missing = append(missing, "POSTGRES_DB")
	}
	if c.RateLimit.Capacity <= 0 {
		missing = append(missing, "RATE_LIMIT_CAPACITY")
	}
	if c.RateLimit.Window <= 0 {
		missing = append(missing, "RATE_LIMIT_WINDOW")
	}
	if c.RateLimit.MaxClients <= 0 {
		missing = append(missing, "RATE_LIMIT_MAX_CLIENTS")
	}
	for _, p := range c.Server.TrustedProxies {
		if !validProxy(p) {
			missing = append(missing, "TRUSTED_PROXIES")
			break
		}
	}
	return missing
}

// splitList parses a comma-separated env value, dropping blanks.
func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func validProxy(p string) bool {
	if strings.Contains(p, "/") {
		_, _, err := net.ParseCIDR(p)
		return err == nil
	}
	return net.ParseIP(p) != nil
}

// validateConfig terminates the application when required settings are missing.
func validateConfig() {
	if missing := AppConfig.missingFields(); len(missing) > 0 {
		log.Fatalf("❌ Missing required environment variables: %v\n", missing)
	}
}
