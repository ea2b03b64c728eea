package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"
)

var durationType = reflect.TypeOf(time.Duration(0))

// Load reads configuration from environment variables.
// It applies defaults for unset values and validates the result.
func Load() (*Config, error) {
	cfg := &Config{}

	if err := loadStruct(reflect.ValueOf(cfg).Elem()); err != nil {
		return nil, fmt.Errorf("config load: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// loadStruct recursively populates struct fields from environment variables.
func loadStruct(v reflect.Value) error {
	t := v.Type()

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		fieldVal := v.Field(i)

		if !fieldVal.CanSet() {
			continue
		}

		if field.Type.Kind() == reflect.Struct {
			if err := loadStruct(fieldVal); err != nil {
				return err
			}
			continue
		}

		envName := field.Tag.Get("env")
		if envName == "" {
			continue
		}

		value, ok := lookup(envName, field.Tag.Get("envAlt"))
		if !ok {
			if field.Tag.Get("required") == "true" {
				return fmt.Errorf("required environment variable %s is not set", envName)
			}
			value = field.Tag.Get("default")
		}

		if value == "" {
			continue
		}

		if err := setField(fieldVal, value); err != nil {
			return fmt.Errorf("invalid value for %s=%q: %w", envName, value, err)
		}
	}

	return nil
}

// lookup returns the first non-empty value among the primary and alternate names.
func lookup(primary, alt string) (string, bool) {
	if v := os.Getenv(primary); v != "" {
		return v, true
	}
	if alt != "" {
		if v := os.Getenv(alt); v != "" {
			return v, true
		}
	}
	return "", false
}

// setField sets a reflect.Value from a string based on its type.
func setField(field reflect.Value, value string) error {
	if field.Type() == durationType {
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration: %w", err)
		}
		field.SetInt(int64(d))
		return nil
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(value)

	case reflect.Int, reflect.Int64:
		i, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid integer: %w", err)
		}
		field.SetInt(i)

	case reflect.Float64:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid number: %w", err)
		}
		field.SetFloat(f)

	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean: %w", err)
		}
		field.SetBool(b)

	default:
		return fmt.Errorf("unsupported field type: %s", field.Kind())
	}

	return nil
}

// Validate checks that the configuration is valid.
// Returns an error describing all validation failures.
func (c *Config) Validate() error {
	var errs []string

	if strings.TrimSpace(c.Report.OutputPath) == "" {
		errs = append(errs, "REPORT_OUTPUT must not be empty")
	}
	if c.Report.Workers <= 0 {
		errs = append(errs, "REPORT_WORKERS must be positive")
	}

	switch strings.ToLower(c.Layout.PageSize) {
	case "a4", "letter":
	default:
		errs = append(errs, fmt.Sprintf("LAYOUT_PAGE_SIZE (%q) must be one of: A4, Letter", c.Layout.PageSize))
	}
	if c.Layout.ColumnWidth <= 0 {
		errs = append(errs, "LAYOUT_COLUMN_WIDTH must be positive")
	}
	if c.Layout.ImageWidth <= 0 || c.Layout.ImageHeight <= 0 {
		errs = append(errs, "LAYOUT_IMAGE_WIDTH and LAYOUT_IMAGE_HEIGHT must be positive")
	}
	if c.Layout.ImageWidth > c.Layout.ColumnWidth {
		errs = append(errs, fmt.Sprintf("LAYOUT_IMAGE_WIDTH (%.1f) must not exceed LAYOUT_COLUMN_WIDTH (%.1f)",
			c.Layout.ImageWidth, c.Layout.ColumnWidth))
	}
	if c.Layout.LabelFontSize <= 0 {
		errs = append(errs, "LAYOUT_LABEL_FONT_SIZE must be positive")
	}
	if c.Layout.RowGap < 0 {
		errs = append(errs, "LAYOUT_ROW_GAP must be non-negative")
	}

	if c.Barcode.ModuleWidth <= 0 {
		errs = append(errs, "BARCODE_MODULE_WIDTH must be positive")
	}
	if c.Barcode.BarHeight <= 0 {
		errs = append(errs, "BARCODE_BAR_HEIGHT must be positive")
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("SERVER_PORT (%d) must be 1-65535", c.Server.Port))
	}
	if c.Server.ShutdownTimeout <= 0 {
		errs = append(errs, "SERVER_SHUTDOWN_TIMEOUT must be positive")
	}
	if c.Server.MaxFileSize <= 0 {
		errs = append(errs, "SERVER_MAX_FILE_SIZE must be positive")
	}
	if c.Server.MaxConcurrent <= 0 {
		errs = append(errs, "SERVER_MAX_CONCURRENT must be positive")
	}
	if c.Server.MaxWaitTime <= 0 {
		errs = append(errs, "SERVER_MAX_WAIT_TIME must be positive")
	}

	if c.Database.HistoryEnabled() && c.Database.MaxConns <= 0 {
		errs = append(errs, "DB_MAX_CONNS must be positive")
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, fmt.Sprintf("LOG_LEVEL (%q) must be one of: debug, info, warn, error", c.Logging.Level))
	}

	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[strings.ToLower(c.Logging.Format)] {
		errs = append(errs, fmt.Sprintf("LOG_FORMAT (%q) must be one of: text, json", c.Logging.Format))
	}

	if len(errs) > 0 {
		return fmt.Errorf("validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}

// String returns a safe string representation of the config for logging.
// The database URL is masked.
func (c *Config) String() string {
	var b strings.Builder
	b.WriteString("Config{")
	fmt.Fprintf(&b, "Report: {Input: %q, Output: %q, Workers: %d}, ",
		c.Report.InputPath, c.Report.OutputPath, c.Report.Workers)
	fmt.Fprintf(&b, "Layout: {PageSize: %q, ColumnWidth: %.1f}, ", c.Layout.PageSize, c.Layout.ColumnWidth)
	fmt.Fprintf(&b, "Server: {Host: %q, Port: %d}, ", c.Server.Host, c.Server.Port)
	if c.Database.HistoryEnabled() {
		b.WriteString("Database: {URL: [MASKED]}, ")
	} else {
		b.WriteString("Database: {disabled}, ")
	}
	fmt.Fprintf(&b, "Logging: {Level: %q, Format: %q}", c.Logging.Level, c.Logging.Format)
	b.WriteString("}")
	return b.String()
}
