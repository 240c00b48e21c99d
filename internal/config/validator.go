package config

import (
	"fmt"
	"slices"
	"strings"
)

// ValidationError represents a single validation failure
type ValidationError struct {
	Field   string // The config field path (e.g., "sampler.interval_ms")
	Value   any    // The invalid value
	Message string // Human-readable error description
}

// Error implements the error interface for ValidationError
func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface for ValidationErrors
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e)))
	for i, err := range e {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// ValidLogLevels returns the list of valid log levels
func ValidLogLevels() []string {
	return []string{"debug", "info", "warn", "error"}
}

// ValidThemes returns the list of built-in color themes
func ValidThemes() []string {
	return []string{"default", "monokai", "dracula", "nord"}
}

// IsValidTheme checks if the given theme name is a built-in theme
func IsValidTheme(theme string) bool {
	return slices.Contains(ValidThemes(), theme)
}

// IsValidLogLevel checks if the given level is a valid log level
func IsValidLogLevel(level string) bool {
	return slices.Contains(ValidLogLevels(), level)
}

// Bounds for sampler settings.
const (
	minIntervalMs = 50
	maxIntervalMs = 60 * 60 * 1000
	maxWorkers    = 256
	maxLogSizeMB  = 1000 // 1GB
)

// Validate checks the Config for invalid values and returns all validation errors found
func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	errors = append(errors, c.validateSampler()...)
	errors = append(errors, c.validateTUI()...)
	errors = append(errors, c.validateLogging()...)

	return errors
}

// validateSampler validates the SamplerConfig
func (c *Config) validateSampler() []ValidationError {
	var errors []ValidationError

	if c.Sampler.IntervalMs < minIntervalMs || c.Sampler.IntervalMs > maxIntervalMs {
		errors = append(errors, ValidationError{
			Field:   "sampler.interval_ms",
			Value:   c.Sampler.IntervalMs,
			Message: fmt.Sprintf("must be between %d and %d", minIntervalMs, maxIntervalMs),
		})
	}

	if c.Sampler.IdleTimeoutS <= 0 {
		errors = append(errors, ValidationError{
			Field:   "sampler.idle_timeout_s",
			Value:   c.Sampler.IdleTimeoutS,
			Message: "must be positive",
		})
	}

	if c.Sampler.Workers < 1 || c.Sampler.Workers > maxWorkers {
		errors = append(errors, ValidationError{
			Field:   "sampler.workers",
			Value:   c.Sampler.Workers,
			Message: fmt.Sprintf("must be between 1 and %d", maxWorkers),
		})
	}

	return errors
}

// validateTUI validates the TUIConfig
func (c *Config) validateTUI() []ValidationError {
	var errors []ValidationError

	if !IsValidTheme(c.TUI.Theme) {
		errors = append(errors, ValidationError{
			Field:   "tui.theme",
			Value:   c.TUI.Theme,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidThemes(), ", ")),
		})
	}

	if c.TUI.ExpandDepth < 0 {
		errors = append(errors, ValidationError{
			Field:   "tui.expand_depth",
			Value:   c.TUI.ExpandDepth,
			Message: "must be non-negative",
		})
	}

	return errors
}

// validateLogging validates the LoggingConfig
func (c *Config) validateLogging() []ValidationError {
	var errors []ValidationError

	if c.Logging.Level != "" && !IsValidLogLevel(c.Logging.Level) {
		errors = append(errors, ValidationError{
			Field:   "logging.level",
			Value:   c.Logging.Level,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidLogLevels(), ", ")),
		})
	}

	if c.Logging.MaxSizeMB <= 0 {
		errors = append(errors, ValidationError{
			Field:   "logging.max_size_mb",
			Value:   c.Logging.MaxSizeMB,
			Message: "must be positive",
		})
	}

	if c.Logging.MaxSizeMB > maxLogSizeMB {
		errors = append(errors, ValidationError{
			Field:   "logging.max_size_mb",
			Value:   c.Logging.MaxSizeMB,
			Message: fmt.Sprintf("exceeds maximum of %dMB", maxLogSizeMB),
		})
	}

	if c.Logging.MaxBackups < 0 {
		errors = append(errors, ValidationError{
			Field:   "logging.max_backups",
			Value:   c.Logging.MaxBackups,
			Message: "must be non-negative",
		})
	}

	if strings.ContainsRune(c.Logging.Dir, '\x00') {
		errors = append(errors, ValidationError{
			Field:   "logging.dir",
			Value:   c.Logging.Dir,
			Message: "path contains invalid null character",
		})
	}

	return errors
}
