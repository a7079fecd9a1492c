package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// LoadConfig loads configuration from a YAML file at the specified path.
// The file is decoded over Default, so omitted fields keep their defaults.
// The configuration is not modified by environment variables; use
// LoadConfigWithEnvOverrides for that functionality.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Parse decodes YAML data over Default and applies remaining defaults.
// It does not validate.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	ApplyDefaults(cfg)
	return cfg, nil
}

// LoadConfigWithEnvOverrides loads configuration from a YAML file and applies
// environment variable overrides. Environment variables follow the naming
// convention TURBINE_SECTION_FIELD (e.g., TURBINE_POOL_MAX_SIZE).
// Environment variables always take precedence over file-based configuration.
//
// An empty path loads defaults only.
//
// The loading sequence is:
// 1. Load YAML from file over defaults
// 2. Apply environment variable overrides
// 3. Validate final configuration
func LoadConfigWithEnvOverrides(path string) (*Config, error) {
	var cfg *Config
	if path == "" {
		cfg = Default()
	} else {
		loaded, err := LoadConfig(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	applyEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed after environment overrides: %w", err)
	}

	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables use the format TURBINE_SECTION_FIELD.
// Unparseable values are ignored.
func applyEnvOverrides(cfg *Config) {
	// Accel overrides
	envBool("TURBINE_ACCEL_AUTO_APPLY", &cfg.Accel.AutoApply)
	if val := os.Getenv("TURBINE_ACCEL_REQUIRED_ENGINES"); val != "" {
		cfg.Accel.RequiredEngines = splitList(val)
	}

	// Engine overrides
	envInt("TURBINE_TOKENS_CACHE_SIZE", &cfg.Engines.Tokens.CacheSize)
	envInt("TURBINE_RATE_LIMIT_SHARDS", &cfg.Engines.RateLimit.Shards)
	envInt("TURBINE_RATE_LIMIT_SWEEP_EVERY", &cfg.Engines.RateLimit.SweepEvery)
	envInt("TURBINE_POOL_MAX_SIZE", &cfg.Engines.Pool.MaxSize)
	envString("TURBINE_POOL_POLICY", &cfg.Engines.Pool.Policy)
	envDuration("TURBINE_POOL_WAIT_TIMEOUT", &cfg.Engines.Pool.WaitTimeout)
	envDuration("TURBINE_POOL_IDLE_TIMEOUT", &cfg.Engines.Pool.IdleTimeout)
	envDuration("TURBINE_POOL_REAP_INTERVAL", &cfg.Engines.Pool.ReapInterval)
	envDuration("TURBINE_POOL_DIAL_TIMEOUT", &cfg.Engines.Pool.DialTimeout)
	envFloat("TURBINE_POOL_DIAL_RATE", &cfg.Engines.Pool.DialRate)
	envInt("TURBINE_POOL_DIAL_BURST", &cfg.Engines.Pool.DialBurst)

	// Feature overrides. Individual flags use TURBINE_FEATURE_<NAME> and are
	// read by the feature registry.
	envString("TURBINE_FEATURES_FILE", &cfg.Features.File)
	envBool("TURBINE_FEATURES_WATCH", &cfg.Features.Watch)

	// Diagnostics overrides
	envDuration("TURBINE_DIAGNOSTICS_CHECK_TIMEOUT", &cfg.Diagnostics.CheckTimeout)
	envInt("TURBINE_DIAGNOSTICS_MAX_OPERATIONS", &cfg.Diagnostics.MaxOperations)

	// Maintenance overrides
	envBool("TURBINE_MAINTENANCE_ENABLED", &cfg.Maintenance.Enabled)
	envString("TURBINE_MAINTENANCE_SWEEP_SCHEDULE", &cfg.Maintenance.SweepSchedule)
	envString("TURBINE_MAINTENANCE_REAP_SCHEDULE", &cfg.Maintenance.ReapSchedule)
	envString("TURBINE_MAINTENANCE_SNAPSHOT_SCHEDULE", &cfg.Maintenance.SnapshotSchedule)

	// Storage overrides
	envString("TURBINE_STORAGE_BACKEND", &cfg.Storage.Backend)
	envString("TURBINE_STORAGE_SQLITE_PATH", &cfg.Storage.SQLite.Path)
	envDuration("TURBINE_STORAGE_RETENTION", &cfg.Storage.Retention)

	// Server overrides
	envString("TURBINE_SERVER_LISTEN_ADDRESS", &cfg.Server.ListenAddress)
	envDuration("TURBINE_SERVER_READ_TIMEOUT", &cfg.Server.ReadTimeout)
	envDuration("TURBINE_SERVER_WRITE_TIMEOUT", &cfg.Server.WriteTimeout)
	envDuration("TURBINE_SERVER_SHUTDOWN_TIMEOUT", &cfg.Server.ShutdownTimeout)

	// Telemetry overrides
	envString("TURBINE_TELEMETRY_LOGGING_LEVEL", &cfg.Telemetry.Logging.Level)
	envString("TURBINE_TELEMETRY_LOGGING_FORMAT", &cfg.Telemetry.Logging.Format)
	envBool("TURBINE_TELEMETRY_METRICS_ENABLED", &cfg.Telemetry.Metrics.Enabled)
	envBool("TURBINE_TELEMETRY_TRACING_ENABLED", &cfg.Telemetry.Tracing.Enabled)
	envString("TURBINE_TELEMETRY_TRACING_ENDPOINT", &cfg.Telemetry.Tracing.Endpoint)
	envFloat("TURBINE_TELEMETRY_TRACING_SAMPLE_RATIO", &cfg.Telemetry.Tracing.SampleRatio)
}

func envString(name string, dst *string) {
	if val := os.Getenv(name); val != "" {
		*dst = val
	}
}

func envBool(name string, dst *bool) {
	if val := os.Getenv(name); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			*dst = b
		}
	}
}

func envInt(name string, dst *int) {
	if val := os.Getenv(name); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			*dst = n
		}
	}
}

func envFloat(name string, dst *float64) {
	if val := os.Getenv(name); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			*dst = f
		}
	}
}

func envDuration(name string, dst *time.Duration) {
	if val := os.Getenv(name); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			*dst = d
		}
	}
}

func splitList(val string) []string {
	var out []string
	for _, part := range strings.Split(val, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
