// Package config provides centralized configuration for the grades service and CLI.
// Values come from an optional YAML file and the process environment, with
// defaults declared on the struct tags. Everything is validated on startup so
// a misconfigured process fails before it accepts traffic.
package config

import (
	"net"
	"net/url"
	"strconv"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Upload     UploadConfig
	Rate       RateLimitConfig
	Security   SecurityConfig
	Validation ValidationConfig
	Report     ReportConfig
	Archive    ArchiveConfig
	Metrics    MetricsConfig
	Logging    LoggingConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`
	Port int    `env:"SERVER_PORT" default:"8000"`

	ReadTimeout  time.Duration `env:"SERVER_READ_TIMEOUT" default:"15s"`
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"60s"`
	IdleTimeout  time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout bounds graceful shutdown, including draining in-flight uploads.
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envAlt:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// RequestTimeout is the router-level timeout. Keep it above UPLOAD_TIMEOUT.
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"3m"`
}

// DatabaseConfig selects and configures the storage backend.
type DatabaseConfig struct {
	// Driver is "postgres" or "sqlite".
	Driver string `env:"STORAGE_DRIVER" default:"postgres"`

	// URL is a full PostgreSQL DSN. When empty, DSN() builds one from the parts below.
	URL string `env:"DATABASE_URL" envAlt:"DB_URL"`

	Host     string `env:"DB_HOST"`
	Port     int    `env:"DB_PORT" default:"5432"`
	Name     string `env:"DB_NAME"`
	User     string `env:"DB_USER"`
	Password string `env:"DB_PASSWORD"`
	SSLMode  string `env:"DB_SSLMODE" default:"disable"`

	MaxConns        int           `env:"DB_MAX_CONNS" envAlt:"DB_POOL_MAX_SIZE" default:"5"`
	MinConns        int           `env:"DB_MIN_CONNS" envAlt:"DB_POOL_MIN_SIZE" default:"1"`
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" default:"30m"`

	// EnsureSchema applies the embedded CREATE TABLE IF NOT EXISTS statements on start.
	EnsureSchema bool `env:"DB_ENSURE_SCHEMA" default:"false"`

	SQLitePath string `env:"SQLITE_PATH" default:"grades.db"`
}

// UploadConfig holds CSV ingestion settings.
type UploadConfig struct {
	// MaxFileSize is the multipart body limit in bytes (default: 10MiB)
	MaxFileSize int64 `env:"UPLOAD_MAX_SIZE" envAlt:"UPLOAD_MAX_FILE_SIZE" default:"10485760"`

	MaxConcurrent int           `env:"UPLOAD_MAX_CONCURRENT" default:"4"`
	MaxWaitTime   time.Duration `env:"UPLOAD_MAX_WAIT_TIME" default:"10s"`
	Timeout       time.Duration `env:"UPLOAD_TIMEOUT" default:"2m"`
}

// RateLimitConfig holds per-IP request limits.
type RateLimitConfig struct {
	Enabled           bool `env:"RATE_LIMIT_ENABLED" default:"true"`
	RequestsPerMinute int  `env:"RATE_LIMIT_REQUESTS_PER_MINUTE" default:"100"`
	UploadLimit       int  `env:"RATE_LIMIT_UPLOAD" default:"10"`
}

// SecurityConfig holds proxy trust and cross-origin settings.
type SecurityConfig struct {
	// TrustedProxies is a comma-separated list of proxy CIDRs whose
	// X-Forwarded-For / X-Real-IP headers are honoured.
	TrustedProxies []string `env:"TRUSTED_PROXIES"`

	// AllowedOrigins enables CORS for the listed origins ("*" for any).
	// Empty disables CORS handling.
	AllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS"`
}

// ValidationConfig overrides the field validators.
type ValidationConfig struct {
	DateLayout   string `env:"GRADES_DATE_LAYOUT" default:"02.01.2006"`
	GroupPattern string `env:"GRADES_GROUP_PATTERN" default:"(?i)^\\d{3}[А-ЯЁ]$"`
}

// ReportConfig holds the thresholds used when a report request omits ?n=.
type ReportConfig struct {
	MoreThanDefault int `env:"REPORT_MORE_THAN_DEFAULT" default:"3"`
	LessThanDefault int `env:"REPORT_LESS_THAN_DEFAULT" default:"5"`
}

// ArchiveConfig configures the raw upload archive. An empty bucket disables it.
type ArchiveConfig struct {
	Bucket          string `env:"ARCHIVE_S3_BUCKET"`
	Region          string `env:"ARCHIVE_S3_REGION" default:"us-east-1"`
	Endpoint        string `env:"ARCHIVE_S3_ENDPOINT"`
	PathStyle       bool   `env:"ARCHIVE_S3_PATH_STYLE" default:"false"`
	Prefix          string `env:"ARCHIVE_S3_PREFIX" default:"uploads"`
	AccessKeyID     string `env:"ARCHIVE_S3_ACCESS_KEY_ID"`
	SecretAccessKey string `env:"ARCHIVE_S3_SECRET_ACCESS_KEY"`
}

// Enabled reports whether uploads should be archived.
func (c ArchiveConfig) Enabled() bool {
	return c.Bucket != ""
}

// MetricsConfig holds Prometheus settings.
type MetricsConfig struct {
	Enabled   bool   `env:"METRICS_ENABLED" default:"true"`
	Namespace string `env:"METRICS_NAMESPACE" default:"grades"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// DSN returns the PostgreSQL connection string: URL when set, otherwise one
// assembled from the DB_* parts. Returns "" when neither is configured.
func (c *DatabaseConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	if c.Host == "" || c.Name == "" {
		return ""
	}

	u := url.URL{
		Scheme: "postgres",
		Host:   net.JoinHostPort(c.Host, strconv.Itoa(c.Port)),
		Path:   "/" + c.Name,
	}
	switch {
	case c.User != "" && c.Password != "":
		u.User = url.UserPassword(c.User, c.Password)
	case c.User != "":
		u.User = url.User(c.User)
	}
	if c.SSLMode != "" {
		u.RawQuery = url.Values{"sslmode": {c.SSLMode}}.Encode()
	}
	return u.String()
}
