// Package config provides centralized configuration management for the importer.
// It loads configuration from environment variables with sensible defaults and
// validates all settings on startup to fail fast on misconfiguration.
package config

import (
	"net"
	"strconv"
	"time"
)

// Config holds all application configuration.
// All settings can be configured via environment variables.
type Config struct {
	Import   ImportConfig
	Server   ServerConfig
	Database DatabaseConfig
	Upload   UploadConfig
	Security SecurityConfig
	Logging  LoggingConfig
}

// ImportConfig holds the import pipeline settings shared by the CLI and server.
type ImportConfig struct {
	// InputFile is the export read by the CLI (default: "Logbook - Log.csv")
	InputFile string `env:"IMPORT_INPUT_FILE" default:"Logbook - Log.csv"`

	// CredentialsFile is the JSON credential file (default: service-account-key.json)
	CredentialsFile string `env:"IMPORT_CREDENTIALS_FILE" envAlt:"GOOGLE_APPLICATION_CREDENTIALS" default:"service-account-key.json"`

	// BatchSize is the number of sessions written per commit (default: 500, max 500)
	BatchSize int `env:"IMPORT_BATCH_SIZE" default:"500"`

	// Workers is the number of rows resolved concurrently (default: 1)
	Workers int `env:"IMPORT_WORKERS" default:"1"`

	// CacheSize is the number of memoized reference lookups per run (default: 1024)
	CacheSize int `env:"IMPORT_CACHE_SIZE" default:"1024"`

	// SourceTag is stored as the imported-from provenance (default: csv)
	SourceTag string `env:"IMPORT_SOURCE_TAG" default:"csv"`

	// TimeZone is the IANA zone for dates without an offset (default: Local)
	TimeZone string `env:"IMPORT_TIME_ZONE" default:"Local"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on (default: 8080)
	Port int `env:"SERVER_PORT" default:"8080"`

	// ReadTimeout is the maximum duration for reading request body (default: 30s)
	ReadTimeout time.Duration `env:"SERVER_READ_TIMEOUT" default:"30s"`

	// WriteTimeout is the maximum duration for writing the response (default: 2m)
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"2m"`

	// IdleTimeout is the keep-alive timeout (default: 60s)
	IdleTimeout time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown (default: 30s)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	// URL overrides the database_url from the credentials file.
	// Supports both DATABASE_URL and DB_URL env vars for compatibility
	URL string `env:"DATABASE_URL" envAlt:"DB_URL"`

	// MaxConns is the maximum number of connections in the pool (default: 10)
	MaxConns int `env:"DB_MAX_CONNS" default:"10"`

	// MinConns is the minimum number of connections to keep open (default: 1)
	MinConns int `env:"DB_MIN_CONNS" default:"1"`

	// MaxConnLifetime is the maximum lifetime of a connection (default: 1h)
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`

	// MaxConnIdleTime is the maximum idle time before a connection is closed (default: 30m)
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" default:"30m"`
}

// UploadConfig holds HTTP import limits.
type UploadConfig struct {
	// MaxFileSize is the maximum accepted export size in bytes (default: 100MB)
	MaxFileSize int64 `env:"UPLOAD_MAX_FILE_SIZE" default:"104857600"`

	// MaxConcurrent is the maximum number of parallel imports (default: 2)
	MaxConcurrent int `env:"UPLOAD_MAX_CONCURRENT" default:"2"`

	// MaxWaitTime is how long to wait for an import slot (default: 10s)
	MaxWaitTime time.Duration `env:"UPLOAD_MAX_WAIT_TIME" default:"10s"`

	// Timeout is the maximum duration for a single import (default: 90s).
	// It must stay below SERVER_WRITE_TIMEOUT so the client still gets the
	// response.
	Timeout time.Duration `env:"UPLOAD_TIMEOUT" default:"90s"`
}

// SecurityConfig holds security-related settings.
type SecurityConfig struct {
	// RequireAPIKey enables X-API-Key authentication on /api routes (default: false)
	RequireAPIKey bool `env:"REQUIRE_API_KEY" default:"false"`

	// APIKeys is a comma-separated list of accepted keys
	APIKeys []string `env:"API_KEYS"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`
}

// Location resolves TimeZone. "Local" and "" map to time.Local.
func (c *ImportConfig) Location() (*time.Location, error) {
	if c.TimeZone == "" || c.TimeZone == "Local" {
		return time.Local, nil
	}
	return time.LoadLocation(c.TimeZone)
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}
