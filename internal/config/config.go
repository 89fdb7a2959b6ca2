// Package config provides centralized configuration management for the application.
// It loads configuration from environment variables with sensible defaults and
// validates all settings on startup to fail fast on misconfiguration.
package config

import (
	"net"
	"strconv"
	"time"

	"github.com/JonMunkholm/lifetable/internal/core"
)

// Config holds all application configuration.
// All settings can be configured via environment variables.
type Config struct {
	Pipeline PipelineConfig
	Paths    PathsConfig
	Fetch    FetchConfig
	Database DatabaseConfig
	Server   ServerConfig
	Run      RunConfig
	Logging  LoggingConfig
}

// PipelineConfig holds the engine settings for a run.
type PipelineConfig struct {
	// MinAge is the first age of the grid (default: 0)
	MinAge int `env:"LT_MIN_AGE" default:"0"`

	// MaxAge is the last age of the grid, inclusive (default: 110)
	MaxAge int `env:"LT_MAX_AGE" default:"110"`

	// IncludeEdgeData keeps open-ended age bins such as 110+ (default: false)
	IncludeEdgeData bool `env:"LT_INCLUDE_EDGE_DATA" default:"false"`

	// StandardiseLx rescales survivorship so lx(min age) = 1 (default: true)
	StandardiseLx bool `env:"LT_STANDARDISE_LX" default:"true"`

	// LxTolerance is how far a sample's lx(0) may sit from 1.0 unchanged (default: 0.01)
	LxTolerance float64 `env:"LT_LX_TOLERANCE" default:"0.01"`

	// SampleYear is the year assigned to undated population samples (default: 1980)
	SampleYear int `env:"LT_SAMPLE_YEAR" default:"1980"`
}

// PathsConfig holds filesystem locations.
type PathsConfig struct {
	// OutputDir holds one data{i} directory per run (default: output)
	OutputDir string `env:"OUTPUT_DIR" default:"output"`

	// DownloadDir is where raw source files live (default: data/raw)
	DownloadDir string `env:"DOWNLOAD_DIR" default:"data/raw"`

	// SourcesFile is the YAML source descriptor file; built-in defaults apply when absent
	SourcesFile string `env:"SOURCES_FILE" default:"sources.yaml"`
}

// FetchConfig holds download settings.
type FetchConfig struct {
	// Enabled downloads sources before each run (default: false)
	Enabled bool `env:"FETCH_ENABLED" default:"false"`

	// Email and Password are the HMD/HFD account credentials
	Email    string `env:"HMD_EMAIL"`
	Password string `env:"HMD_PASSWORD"`

	// Timeout bounds each HTTP request (default: 60s)
	Timeout time.Duration `env:"FETCH_TIMEOUT" default:"60s"`
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	// URL is the PostgreSQL connection string. Persistence is disabled when empty.
	// Supports both DATABASE_URL and DB_URL env vars for compatibility
	URL string `env:"DATABASE_URL" envAlt:"DB_URL"`

	// MaxConns is the maximum number of connections in the pool (default: 4)
	MaxConns int `env:"DB_MAX_CONNS" default:"4"`

	// MinConns is the minimum number of connections to keep open (default: 0)
	MinConns int `env:"DB_MIN_CONNS" default:"0"`

	// MaxConnLifetime is the maximum lifetime of a connection (default: 1h)
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`

	// MaxConnIdleTime is the maximum idle time before a connection is closed (default: 30m)
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" default:"30m"`
}

// Enabled reports whether a database is configured.
func (c *DatabaseConfig) Enabled() bool {
	return c.URL != ""
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on (default: 8080)
	Port int `env:"SERVER_PORT" default:"8080"`

	// ReadTimeout is the maximum duration for reading request body (default: 15s)
	ReadTimeout time.Duration `env:"SERVER_READ_TIMEOUT" default:"15s"`

	// WriteTimeout is the maximum duration for writing response (default: 0 for large artifacts)
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"0s"`

	// IdleTimeout is the keep-alive timeout (default: 60s)
	IdleTimeout time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown (default: 30s)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// RequestTimeout is the middleware timeout for requests (default: 60s)
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"60s"`

	// TrustedProxies lists proxy CIDRs whose X-Real-IP/X-Forwarded-For are honoured
	TrustedProxies []string `env:"SERVER_TRUSTED_PROXIES"`

	// APIKeys, when set, are required in X-API-Key to start or cancel runs
	APIKeys []string `env:"SERVER_API_KEYS"`
}

// RequireAPIKey reports whether mutating endpoints need an API key.
func (c *ServerConfig) RequireAPIKey() bool {
	return len(c.APIKeys) > 0
}

// RunConfig holds settings for asynchronous runs started by the server.
type RunConfig struct {
	// MaxConcurrent is the maximum number of parallel runs (default: 1)
	MaxConcurrent int `env:"RUN_MAX_CONCURRENT" default:"1"`

	// MaxWaitTime is how long to wait for a run slot (default: 5s)
	MaxWaitTime time.Duration `env:"RUN_MAX_WAIT_TIME" default:"5s"`

	// Timeout is the maximum duration of one run (default: 30m)
	Timeout time.Duration `env:"RUN_TIMEOUT" default:"30m"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`
}

// Engine returns the immutable engine settings for one run.
func (c *Config) Engine() core.Settings {
	return core.Settings{
		Ages:            core.AgeRange{Min: c.Pipeline.MinAge, Max: c.Pipeline.MaxAge},
		IncludeEdgeData: c.Pipeline.IncludeEdgeData,
		StandardiseLx:   c.Pipeline.StandardiseLx,
		LxTolerance:     c.Pipeline.LxTolerance,
		SampleYear:      c.Pipeline.SampleYear,
	}
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}
