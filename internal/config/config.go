// Package config loads xltable settings from environment variables.
// Command-line flags override the loaded values.
package config

import (
	"net"
	"strconv"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Extract  ExtractConfig
	Output   OutputConfig
	Database DatabaseConfig
	Server   ServerConfig
	Logging  LoggingConfig
}

// ExtractConfig holds the defaults of an extraction run.
type ExtractConfig struct {
	// Table is the display name of the table to extract
	Table string `env:"XLTABLE_TABLE"`

	// MappingFile is the path of the YAML mapping declarations
	MappingFile string `env:"XLTABLE_MAPPING_FILE"`

	// Verbose enables informational diagnostics (default: false)
	Verbose bool `env:"XLTABLE_VERBOSE" default:"false"`

	// Connection is a connection string whose Data Source names the input file
	Connection string `env:"XLTABLE_CONNECTION"`
}

// OutputConfig holds record sink settings.
type OutputConfig struct {
	// Format is the sink: jsonl, csv or postgres (default: jsonl)
	Format string `env:"OUTPUT_FORMAT" default:"jsonl"`

	// Encoding is the CSV character encoding (default: utf-8)
	Encoding string `env:"OUTPUT_ENCODING" default:"utf-8"`

	// BatchSize is the number of records per database copy (default: 500)
	BatchSize int `env:"OUTPUT_BATCH_SIZE" default:"500"`
}

// DatabaseConfig holds the PostgreSQL sink settings.
type DatabaseConfig struct {
	// URL is the PostgreSQL connection string, required for the postgres format.
	// Supports both DATABASE_URL and DB_URL.
	URL string `env:"DATABASE_URL" envAlt:"DB_URL"`

	// Table is the destination table, optionally schema qualified
	Table string `env:"DB_TABLE"`

	// Columns declares the destination columns as name:type pairs. When
	// empty they are read from the database catalog.
	Columns string `env:"DB_COLUMNS"`

	// MaxConns is the maximum number of pooled connections (default: 4)
	MaxConns int `env:"DB_MAX_CONNS" default:"4"`

	// MinConns is the minimum number of pooled connections (default: 0)
	MinConns int `env:"DB_MIN_CONNS" default:"0"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on (default: 8080)
	Port int `env:"SERVER_PORT" default:"8080"`

	// ReadTimeout is the maximum duration for reading a request (default: 30s)
	ReadTimeout time.Duration `env:"SERVER_READ_TIMEOUT" default:"30s"`

	// ShutdownTimeout bounds graceful shutdown (default: 15s)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"15s"`

	// MaxUploadSize is the largest accepted workbook in bytes (default: 32MB)
	MaxUploadSize int64 `env:"SERVER_MAX_UPLOAD_SIZE" default:"33554432"`
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
