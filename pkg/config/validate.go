package config

import (
	"fmt"
	"net"
	"strings"

	"github.com/robfig/cron/v3"
)

// FieldError represents a validation error for a specific configuration field.
type FieldError struct {
	// Field is the dotted path to the configuration field (e.g., "engines.pool.max_size").
	Field string

	// Message is a human-readable error message.
	Message string
}

// Error returns the error message for this field error.
func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError represents one or more validation errors in a configuration.
// It implements the error interface and provides access to all field errors.
type ValidationError struct {
	// Errors contains all validation errors found in the configuration.
	Errors []FieldError
}

// Error returns a formatted string containing all validation errors.
func (e ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "configuration validation failed"
	}
	if len(e.Errors) == 1 {
		return fmt.Sprintf("configuration validation failed: %s", e.Errors[0].Error())
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("configuration validation failed with %d errors:\n", len(e.Errors)))
	for _, err := range e.Errors {
		sb.WriteString(fmt.Sprintf("  - %s\n", err.Error()))
	}
	return sb.String()
}

// knownEngines mirrors engine.Names. It is duplicated here so that config
// has no dependency on the engine packages.
var knownEngines = map[string]bool{
	"token_counter":   true,
	"rate_limiter":    true,
	"connection_pool": true,
}

// Validate validates the entire configuration and returns a ValidationError
// if any validation rules fail. It returns nil if the configuration is valid.
// All validation errors are collected and returned together.
func Validate(cfg *Config) error {
	var errs []FieldError

	errs = append(errs, validateAccel(&cfg.Accel)...)
	errs = append(errs, validateEngines(&cfg.Engines)...)
	errs = append(errs, validateDiagnostics(&cfg.Diagnostics)...)
	errs = append(errs, validateMaintenance(&cfg.Maintenance)...)
	errs = append(errs, validateStorage(&cfg.Storage)...)
	errs = append(errs, validateServer(&cfg.Server)...)
	errs = append(errs, validateTelemetry(&cfg.Telemetry)...)

	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}

	return nil
}

// validateAccel validates facade configuration.
func validateAccel(cfg *AccelConfig) []FieldError {
	var errs []FieldError

	for i, name := range cfg.RequiredEngines {
		if !knownEngines[name] {
			errs = append(errs, FieldError{
				Field:   fmt.Sprintf("accel.required_engines[%d]", i),
				Message: fmt.Sprintf("unknown engine %q: must be 'token_counter', 'rate_limiter', or 'connection_pool'", name),
			})
		}
	}

	return errs
}

// validateEngines validates per-engine configuration.
func validateEngines(cfg *EnginesConfig) []FieldError {
	var errs []FieldError

	// Token counter
	if cfg.Tokens.CacheSize < 1 {
		errs = append(errs, FieldError{
			Field:   "engines.tokens.cache_size",
			Message: "cache size must be at least 1",
		})
	}
	for model, ratio := range cfg.Tokens.Models {
		if ratio <= 0 {
			errs = append(errs, FieldError{
				Field:   fmt.Sprintf("engines.tokens.models.%s", model),
				Message: fmt.Sprintf("characters per token must be positive, got %v", ratio),
			})
		}
	}

	// Rate limiter
	shards := cfg.RateLimit.Shards
	if shards < 1 || shards&(shards-1) != 0 {
		errs = append(errs, FieldError{
			Field:   "engines.rate_limit.shards",
			Message: fmt.Sprintf("shards must be a positive power of two, got %d", shards),
		})
	}
	if cfg.RateLimit.SweepEvery < 1 {
		errs = append(errs, FieldError{
			Field:   "engines.rate_limit.sweep_every",
			Message: "sweep interval must be at least 1 operation",
		})
	}

	// Connection pool
	pool := &cfg.Pool
	if pool.MaxSize < 1 {
		errs = append(errs, FieldError{
			Field:   "engines.pool.max_size",
			Message: "max size must be at least 1",
		})
	}
	validPolicies := map[string]bool{"wait": true, "fail_fast": true}
	if !validPolicies[pool.Policy] {
		errs = append(errs, FieldError{
			Field:   "engines.pool.policy",
			Message: fmt.Sprintf("invalid policy %q: must be 'wait' or 'fail_fast'", pool.Policy),
		})
	}
	if pool.WaitTimeout < 0 {
		errs = append(errs, FieldError{
			Field:   "engines.pool.wait_timeout",
			Message: "wait timeout must not be negative",
		})
	}
	if pool.IdleTimeout <= 0 {
		errs = append(errs, FieldError{
			Field:   "engines.pool.idle_timeout",
			Message: "idle timeout must be positive",
		})
	}
	if pool.ReapInterval <= 0 {
		errs = append(errs, FieldError{
			Field:   "engines.pool.reap_interval",
			Message: "reap interval must be positive",
		})
	}
	if pool.DialTimeout <= 0 {
		errs = append(errs, FieldError{
			Field:   "engines.pool.dial_timeout",
			Message: "dial timeout must be positive",
		})
	}
	if pool.DialRate < 0 {
		errs = append(errs, FieldError{
			Field:   "engines.pool.dial_rate",
			Message: "dial rate must not be negative",
		})
	}
	if pool.DialRate > 0 && pool.DialBurst < 1 {
		errs = append(errs, FieldError{
			Field:   "engines.pool.dial_burst",
			Message: "dial burst must be at least 1 when dial rate is set",
		})
	}

	return errs
}

// validateDiagnostics validates diagnostics configuration.
func validateDiagnostics(cfg *DiagnosticsConfig) []FieldError {
	var errs []FieldError

	if cfg.CheckTimeout <= 0 {
		errs = append(errs, FieldError{
			Field:   "diagnostics.check_timeout",
			Message: "check timeout must be positive",
		})
	}
	if cfg.MaxOperations < 1 {
		errs = append(errs, FieldError{
			Field:   "diagnostics.max_operations",
			Message: "max operations must be at least 1",
		})
	}

	return errs
}

// validateMaintenance validates the cron schedules of background jobs.
func validateMaintenance(cfg *MaintenanceConfig) []FieldError {
	var errs []FieldError

	schedules := []struct {
		field string
		spec  string
	}{
		{"maintenance.sweep_schedule", cfg.SweepSchedule},
		{"maintenance.reap_schedule", cfg.ReapSchedule},
		{"maintenance.snapshot_schedule", cfg.SnapshotSchedule},
	}
	for _, s := range schedules {
		if s.spec == "" {
			continue
		}
		if _, err := cron.ParseStandard(s.spec); err != nil {
			errs = append(errs, FieldError{
				Field:   s.field,
				Message: fmt.Sprintf("invalid cron schedule %q: %v", s.spec, err),
			})
		}
	}

	return errs
}

// validateStorage validates snapshot storage configuration.
func validateStorage(cfg *StorageConfig) []FieldError {
	var errs []FieldError

	switch cfg.Backend {
	case "memory":
	case "sqlite":
		if cfg.SQLite.Path == "" {
			errs = append(errs, FieldError{
				Field:   "storage.sqlite.path",
				Message: "path is required for the sqlite backend",
			})
		}
	default:
		errs = append(errs, FieldError{
			Field:   "storage.backend",
			Message: fmt.Sprintf("invalid backend %q: must be 'memory' or 'sqlite'", cfg.Backend),
		})
	}
	if cfg.Retention < 0 {
		errs = append(errs, FieldError{
			Field:   "storage.retention",
			Message: "retention must not be negative",
		})
	}

	return errs
}

// validateServer validates diagnostics server configuration.
func validateServer(cfg *ServerConfig) []FieldError {
	var errs []FieldError

	if cfg.ListenAddress == "" {
		errs = append(errs, FieldError{
			Field:   "server.listen_address",
			Message: "listen address is required",
		})
	} else if _, _, err := net.SplitHostPort(cfg.ListenAddress); err != nil {
		errs = append(errs, FieldError{
			Field:   "server.listen_address",
			Message: fmt.Sprintf("invalid listen address %q: %v", cfg.ListenAddress, err),
		})
	}
	if cfg.ShutdownTimeout <= 0 {
		errs = append(errs, FieldError{
			Field:   "server.shutdown_timeout",
			Message: "shutdown timeout must be positive",
		})
	}

	return errs
}

// validateTelemetry validates telemetry configuration.
func validateTelemetry(cfg *TelemetryConfig) []FieldError {
	var errs []FieldError

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[cfg.Logging.Level] {
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.level",
			Message: fmt.Sprintf("invalid logging level %q: must be 'debug', 'info', 'warn', or 'error'", cfg.Logging.Level),
		})
	}

	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[cfg.Logging.Format] {
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.format",
			Message: fmt.Sprintf("invalid logging format %q: must be 'json' or 'text'", cfg.Logging.Format),
		})
	}

	if cfg.Metrics.Enabled && cfg.Metrics.Path == "" {
		errs = append(errs, FieldError{
			Field:   "telemetry.metrics.path",
			Message: "metrics path is required when metrics are enabled",
		})
	}
	for i := 1; i < len(cfg.Metrics.DurationBuckets); i++ {
		if cfg.Metrics.DurationBuckets[i] <= cfg.Metrics.DurationBuckets[i-1] {
			errs = append(errs, FieldError{
				Field:   "telemetry.metrics.duration_buckets",
				Message: "buckets must be in increasing order",
			})
			break
		}
	}

	if cfg.Tracing.Enabled && cfg.Tracing.Endpoint == "" {
		errs = append(errs, FieldError{
			Field:   "telemetry.tracing.endpoint",
			Message: "tracing endpoint is required when tracing is enabled",
		})
	}
	validSamplers := map[string]bool{"always": true, "never": true, "ratio": true}
	if !validSamplers[cfg.Tracing.Sampler] {
		errs = append(errs, FieldError{
			Field:   "telemetry.tracing.sampler",
			Message: fmt.Sprintf("invalid sampler %q: must be 'always', 'never', or 'ratio'", cfg.Tracing.Sampler),
		})
	}
	if cfg.Tracing.SampleRatio < 0 || cfg.Tracing.SampleRatio > 1.0 {
		errs = append(errs, FieldError{
			Field:   "telemetry.tracing.sample_ratio",
			Message: "sample ratio must be between 0.0 and 1.0",
		})
	}

	return errs
}
