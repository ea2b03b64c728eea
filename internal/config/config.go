// Package config provides centralized configuration management for barcodereport.
// It loads configuration from environment variables with sensible defaults and
// validates all settings on startup to fail fast on misconfiguration.
package config

import (
	"strconv"
	"time"
)

// Config holds all application configuration.
// All settings can be configured via environment variables.
type Config struct {
	Report   ReportConfig
	Layout   LayoutConfig
	Barcode  BarcodeConfig
	Server   ServerConfig
	Database DatabaseConfig
	Logging  LoggingConfig
}

// ReportConfig holds the pipeline inputs and run settings.
type ReportConfig struct {
	// InputPath is the delimited text file to read (default: input.txt)
	InputPath string `env:"REPORT_INPUT" default:"input.txt"`

	// OutputPath is where the PDF is written (default: barcode_report.pdf)
	OutputPath string `env:"REPORT_OUTPUT" default:"barcode_report.pdf"`

	// Title is rendered once at the top of the first page
	Title string `env:"REPORT_TITLE" default:"Barcode Report"`

	// ArtifactDir holds transient barcode images; empty means the OS temp dir
	ArtifactDir string `env:"REPORT_ARTIFACT_DIR"`

	// Workers is the number of fields encoded in parallel within a row (default: 1)
	Workers int `env:"REPORT_WORKERS" default:"1"`
}

// LayoutConfig holds page geometry. Lengths are in PDF points (1/72 inch).
type LayoutConfig struct {
	// PageSize is A4 or Letter (default: A4)
	PageSize string `env:"LAYOUT_PAGE_SIZE" default:"A4"`

	// ColumnWidth is the width of every table column (default: 2.7in)
	ColumnWidth float64 `env:"LAYOUT_COLUMN_WIDTH" default:"194.4"`

	// ImageWidth and ImageHeight bound each barcode image (default: 2.5in x 0.7in)
	ImageWidth  float64 `env:"LAYOUT_IMAGE_WIDTH" default:"180"`
	ImageHeight float64 `env:"LAYOUT_IMAGE_HEIGHT" default:"50.4"`

	// LabelFontSize is the font size of the label tier (default: 8)
	LabelFontSize float64 `env:"LAYOUT_LABEL_FONT_SIZE" default:"8"`

	// RowGap is the vertical space after each row block (default: 20)
	RowGap float64 `env:"LAYOUT_ROW_GAP" default:"20"`
}

// BarcodeConfig holds symbol rendering settings.
type BarcodeConfig struct {
	// ModuleWidth is the pixel width of one bar module (default: 2)
	ModuleWidth int `env:"BARCODE_MODULE_WIDTH" default:"2"`

	// BarHeight is the pixel height of the rendered bars (default: 100)
	BarHeight int `env:"BARCODE_BAR_HEIGHT" default:"100"`
}

// ServerConfig holds HTTP server settings for the serve command.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on (default: 8080)
	Port int `env:"SERVER_PORT" default:"8080"`

	// ReadTimeout is the maximum duration for reading request body (default: 15s)
	ReadTimeout time.Duration `env:"SERVER_READ_TIMEOUT" default:"15s"`

	// WriteTimeout is the maximum duration for writing the PDF (default: 60s)
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"60s"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown (default: 30s)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// MaxFileSize is the maximum accepted upload size in bytes (default: 10MB)
	MaxFileSize int64 `env:"SERVER_MAX_FILE_SIZE" default:"10485760"`

	// MaxConcurrent is the maximum number of reports rendered at once (default: 4)
	MaxConcurrent int `env:"SERVER_MAX_CONCURRENT" default:"4"`

	// MaxWaitTime is how long a request waits for a render slot (default: 10s)
	MaxWaitTime time.Duration `env:"SERVER_MAX_WAIT_TIME" default:"10s"`
}

// DatabaseConfig holds the optional run-history database settings.
type DatabaseConfig struct {
	// URL is the PostgreSQL connection string; empty disables run history.
	// Supports both DATABASE_URL and DB_URL env vars for compatibility
	URL string `env:"DATABASE_URL" envAlt:"DB_URL"`

	// MaxConns is the maximum number of connections in the pool (default: 4)
	MaxConns int `env:"DB_MAX_CONNS" default:"4"`
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
	return c.Host + ":" + strconv.Itoa(c.Port)
}

// HistoryEnabled reports whether a run-history database is configured.
func (c *DatabaseConfig) HistoryEnabled() bool {
	return c.URL != ""
}
