package config

import "time"

// Config is the root configuration structure for turbine.
// It contains the engine settings, feature flags, diagnostics, maintenance,
// storage, the diagnostics HTTP server and telemetry.
type Config struct {
	// Accel contains facade and substitution settings.
	Accel AccelConfig `yaml:"accel"`

	// Engines contains per-engine configuration.
	Engines EnginesConfig `yaml:"engines"`

	// Features contains feature flag configuration.
	Features FeaturesConfig `yaml:"features"`

	// Diagnostics contains health and performance reporting configuration.
	Diagnostics DiagnosticsConfig `yaml:"diagnostics"`

	// Maintenance contains the cron schedules for background sweeps.
	Maintenance MaintenanceConfig `yaml:"maintenance"`

	// Storage contains performance snapshot persistence configuration.
	Storage StorageConfig `yaml:"storage"`

	// Server contains the diagnostics HTTP server configuration.
	Server ServerConfig `yaml:"server"`

	// Telemetry contains logging, metrics and tracing configuration.
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// AccelConfig contains facade and substitution settings.
type AccelConfig struct {
	// AutoApply applies acceleration when the runtime is constructed.
	// Default: false
	AutoApply bool `yaml:"auto_apply"`

	// RequiredEngines lists the engines that must load for the facade to
	// report itself available. Empty means at least one engine.
	// Options: "token_counter", "rate_limiter", "connection_pool"
	// Default: []
	RequiredEngines []string `yaml:"required_engines"`
}

// EnginesConfig contains per-engine configuration.
type EnginesConfig struct {
	// Tokens configures the token counter.
	Tokens TokensConfig `yaml:"tokens"`

	// RateLimit configures the rate limiter.
	RateLimit RateLimitConfig `yaml:"rate_limit"`

	// Pool configures the connection pool.
	Pool PoolConfig `yaml:"pool"`
}

// TokensConfig contains token counter configuration.
type TokensConfig struct {
	// CacheSize is the maximum number of memoized (text, model) results.
	// Default: 1000
	CacheSize int `yaml:"cache_size"`

	// Models contains model-specific characters-per-token ratios.
	// Keys are matched exactly, then by longest prefix, then "default".
	Models map[string]float64 `yaml:"models"`
}

// RateLimitConfig contains rate limiter configuration.
type RateLimitConfig struct {
	// Shards is the number of key shards. Must be a power of two.
	// Default: 32
	Shards int `yaml:"shards"`

	// SweepEvery is the number of operations on a shard between lazy
	// sweeps of stale keys.
	// Default: 1024
	SweepEvery int `yaml:"sweep_every"`
}

// PoolConfig contains connection pool configuration.
type PoolConfig struct {
	// MaxSize bounds in-use plus idle connections per endpoint.
	// Default: 10
	MaxSize int `yaml:"max_size"`

	// Policy is the behaviour when an endpoint is saturated.
	// Options: "wait", "fail_fast"
	// Default: "wait"
	Policy string `yaml:"policy"`

	// WaitTimeout bounds how long a checkout waits for a free slot
	// under the "wait" policy.
	// Default: 5s
	WaitTimeout time.Duration `yaml:"wait_timeout"`

	// IdleTimeout is how long an idle connection is kept before it is closed.
	// Default: 90s
	IdleTimeout time.Duration `yaml:"idle_timeout"`

	// ReapInterval is how often idle connections are reaped.
	// Default: 30s
	ReapInterval time.Duration `yaml:"reap_interval"`

	// DialTimeout bounds establishing a new connection.
	// Default: 10s
	DialTimeout time.Duration `yaml:"dial_timeout"`

	// DialRate limits new connections per second across the pool (0 = unlimited).
	// Default: 0
	DialRate float64 `yaml:"dial_rate"`

	// DialBurst is the burst allowed above DialRate.
	// Default: 1
	DialBurst int `yaml:"dial_burst"`
}

// FeaturesConfig contains feature flag configuration.
type FeaturesConfig struct {
	// File is an optional YAML file with a "features" mapping.
	File string `yaml:"file"`

	// Watch reloads File when it changes.
	// Default: false
	Watch bool `yaml:"watch"`

	// Flags sets flag values directly. File and environment values win.
	Flags map[string]bool `yaml:"flags"`
}

// DiagnosticsConfig contains health and performance reporting configuration.
type DiagnosticsConfig struct {
	// CheckTimeout bounds each engine health check.
	// Default: 2s
	CheckTimeout time.Duration `yaml:"check_timeout"`

	// MaxOperations caps distinct (component, operation) pairs tracked.
	// Default: 1000
	MaxOperations int `yaml:"max_operations"`
}

// MaintenanceConfig contains cron schedules for background sweeps.
// Empty schedules disable the corresponding job.
type MaintenanceConfig struct {
	// Enabled starts the maintenance scheduler.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// SweepSchedule evicts stale rate limiter keys.
	// Default: "@every 1m"
	SweepSchedule string `yaml:"sweep_schedule"`

	// ReapSchedule closes expired idle pool connections.
	// Default: "@every 30s"
	ReapSchedule string `yaml:"reap_schedule"`

	// SnapshotSchedule persists performance stats.
	// Default: "" (disabled)
	SnapshotSchedule string `yaml:"snapshot_schedule"`
}

// StorageConfig contains performance snapshot persistence configuration.
type StorageConfig struct {
	// Backend selects the snapshot store.
	// Options: "memory", "sqlite"
	// Default: "memory"
	Backend string `yaml:"backend"`

	// SQLite configures the SQLite backend.
	SQLite SQLiteConfig `yaml:"sqlite"`

	// Retention is how long snapshots are kept.
	// Default: 168h (7 days)
	Retention time.Duration `yaml:"retention"`
}

// SQLiteConfig contains SQLite backend configuration.
type SQLiteConfig struct {
	// Path is the database file path.
	// Default: "data/turbine.db"
	Path string `yaml:"path"`

	// BusyTimeout is how long to wait on a locked database.
	// Default: 5s
	BusyTimeout time.Duration `yaml:"busy_timeout"`
}

// ServerConfig contains the diagnostics HTTP server configuration.
type ServerConfig struct {
	// ListenAddress is the address and port to listen on.
	// Default: "127.0.0.1:9464"
	ListenAddress string `yaml:"listen_address"`

	// ReadTimeout is the maximum duration for reading a request.
	// Default: 10s
	ReadTimeout time.Duration `yaml:"read_timeout"`

	// WriteTimeout is the maximum duration for writing a response.
	// Default: 10s
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// IdleTimeout is the keep-alive idle timeout.
	// Default: 60s
	IdleTimeout time.Duration `yaml:"idle_timeout"`

	// ShutdownTimeout bounds graceful shutdown.
	// Default: 10s
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// TelemetryConfig contains observability configuration.
type TelemetryConfig struct {
	// Logging contains logging configuration.
	Logging LoggingConfig `yaml:"logging"`

	// Metrics contains metrics collection configuration.
	Metrics MetricsConfig `yaml:"metrics"`

	// Tracing contains distributed tracing configuration.
	Tracing TracingConfig `yaml:"tracing"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	// Level is the minimum log level to emit.
	// Options: "debug", "info", "warn", "error"
	// Default: "info"
	Level string `yaml:"level"`

	// Format controls the log output format.
	// Options: "json", "text"
	// Default: "json"
	Format string `yaml:"format"`

	// AddSource includes file and line number in log entries.
	// Default: false
	AddSource bool `yaml:"add_source"`

	// RedactKeys masks credential-like rate limit keys in logs.
	// Default: true
	RedactKeys bool `yaml:"redact_keys"`
}

// MetricsConfig contains metrics collection configuration.
type MetricsConfig struct {
	// Enabled controls whether metrics collection is active.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// Path is the HTTP path for the Prometheus metrics endpoint.
	// Default: "/metrics"
	Path string `yaml:"path"`

	// Namespace is the metric name prefix.
	// Default: "turbine"
	Namespace string `yaml:"namespace"`

	// Subsystem is the metric subsystem name.
	// Default: "accel"
	Subsystem string `yaml:"subsystem"`

	// DurationBuckets defines histogram buckets for recorded operation
	// durations in seconds.
	// Default: [0.00001, 0.0001, 0.001, 0.01, 0.1, 1]
	DurationBuckets []float64 `yaml:"duration_buckets"`
}

// TracingConfig contains distributed tracing configuration.
type TracingConfig struct {
	// Enabled controls whether distributed tracing is active.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// Sampler determines the sampling strategy.
	// Options: "always", "never", "ratio"
	// Default: "ratio"
	Sampler string `yaml:"sampler"`

	// SampleRatio is the fraction of traces to sample (0.0 to 1.0).
	// Default: 0.1
	SampleRatio float64 `yaml:"sample_ratio"`

	// Endpoint is the OTLP gRPC collector endpoint.
	// Example: "localhost:4317"
	Endpoint string `yaml:"endpoint"`

	// Insecure disables TLS for the OTLP connection.
	// Default: true
	Insecure bool `yaml:"insecure"`

	// ServiceName is the service name in traces.
	// Default: "turbine"
	ServiceName string `yaml:"service_name"`
}
