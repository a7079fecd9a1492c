package config

import "time"

// Default values for configuration fields.
const (
	// Token counter defaults
	DefaultTokenCacheSize = 1000
	DefaultTokenRatio     = 4.0

	// Rate limiter defaults
	DefaultRateLimitShards     = 32
	DefaultRateLimitSweepEvery = 1024

	// Connection pool defaults
	DefaultPoolMaxSize      = 10
	DefaultPoolPolicy       = "wait"
	DefaultPoolWaitTimeout  = 5 * time.Second
	DefaultPoolIdleTimeout  = 90 * time.Second
	DefaultPoolReapInterval = 30 * time.Second
	DefaultPoolDialTimeout  = 10 * time.Second
	DefaultPoolDialBurst    = 1

	// Diagnostics defaults
	DefaultCheckTimeout  = 2 * time.Second
	DefaultMaxOperations = 1000

	// Maintenance defaults
	DefaultMaintenanceEnabled = true
	DefaultSweepSchedule      = "@every 1m"
	DefaultReapSchedule       = "@every 30s"

	// Storage defaults
	DefaultStorageBackend    = "memory"
	DefaultSQLitePath        = "data/turbine.db"
	DefaultSQLiteBusyTimeout = 5 * time.Second
	DefaultStorageRetention  = 168 * time.Hour

	// Server defaults
	DefaultListenAddress   = "127.0.0.1:9464"
	DefaultReadTimeout     = 10 * time.Second
	DefaultWriteTimeout    = 10 * time.Second
	DefaultIdleTimeout     = 60 * time.Second
	DefaultShutdownTimeout = 10 * time.Second

	// Telemetry defaults
	DefaultLogLevel           = "info"
	DefaultLogFormat          = "json"
	DefaultLogRedactKeys      = true
	DefaultMetricsEnabled     = true
	DefaultMetricsPath        = "/metrics"
	DefaultMetricsNamespace   = "turbine"
	DefaultMetricsSubsystem   = "accel"
	DefaultTracingEnabled     = false
	DefaultTracingSampler     = "ratio"
	DefaultTracingSampleRatio = 0.1
	DefaultTracingInsecure    = true
	DefaultTracingServiceName = "turbine"
)

// DefaultDurationBuckets are the histogram buckets, in seconds, for recorded
// operation durations. Engine calls are in the microsecond range.
var DefaultDurationBuckets = []float64{0.00001, 0.0001, 0.001, 0.01, 0.1, 1}

// Default returns a fully populated configuration.
// Boolean fields whose default is true are only set here, so file loading
// decodes YAML over the result of Default rather than over a zero Config.
func Default() *Config {
	cfg := &Config{}
	cfg.Maintenance.Enabled = DefaultMaintenanceEnabled
	cfg.Telemetry.Logging.RedactKeys = DefaultLogRedactKeys
	cfg.Telemetry.Metrics.Enabled = DefaultMetricsEnabled
	cfg.Telemetry.Tracing.Enabled = DefaultTracingEnabled
	cfg.Telemetry.Tracing.Insecure = DefaultTracingInsecure
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults applies default values to a Config struct.
// It sets defaults for any fields that have zero values.
// This function is idempotent and safe to call multiple times.
func ApplyDefaults(cfg *Config) {
	// Token counter defaults
	if cfg.Engines.Tokens.CacheSize == 0 {
		cfg.Engines.Tokens.CacheSize = DefaultTokenCacheSize
	}
	if cfg.Engines.Tokens.Models == nil {
		cfg.Engines.Tokens.Models = map[string]float64{"default": DefaultTokenRatio}
	}

	// Rate limiter defaults
	if cfg.Engines.RateLimit.Shards == 0 {
		cfg.Engines.RateLimit.Shards = DefaultRateLimitShards
	}
	if cfg.Engines.RateLimit.SweepEvery == 0 {
		cfg.Engines.RateLimit.SweepEvery = DefaultRateLimitSweepEvery
	}

	// Connection pool defaults
	pool := &cfg.Engines.Pool
	if pool.MaxSize == 0 {
		pool.MaxSize = DefaultPoolMaxSize
	}
	if pool.Policy == "" {
		pool.Policy = DefaultPoolPolicy
	}
	if pool.WaitTimeout == 0 {
		pool.WaitTimeout = DefaultPoolWaitTimeout
	}
	if pool.IdleTimeout == 0 {
		pool.IdleTimeout = DefaultPoolIdleTimeout
	}
	if pool.ReapInterval == 0 {
		pool.ReapInterval = DefaultPoolReapInterval
	}
	if pool.DialTimeout == 0 {
		pool.DialTimeout = DefaultPoolDialTimeout
	}
	if pool.DialBurst == 0 {
		pool.DialBurst = DefaultPoolDialBurst
	}

	// Feature defaults
	if cfg.Features.Flags == nil {
		cfg.Features.Flags = map[string]bool{}
	}

	// Diagnostics defaults
	if cfg.Diagnostics.CheckTimeout == 0 {
		cfg.Diagnostics.CheckTimeout = DefaultCheckTimeout
	}
	if cfg.Diagnostics.MaxOperations == 0 {
		cfg.Diagnostics.MaxOperations = DefaultMaxOperations
	}

	// Maintenance defaults
	if cfg.Maintenance.SweepSchedule == "" {
		cfg.Maintenance.SweepSchedule = DefaultSweepSchedule
	}
	if cfg.Maintenance.ReapSchedule == "" {
		cfg.Maintenance.ReapSchedule = DefaultReapSchedule
	}

	// Storage defaults
	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = DefaultStorageBackend
	}
	if cfg.Storage.SQLite.Path == "" {
		cfg.Storage.SQLite.Path = DefaultSQLitePath
	}
	if cfg.Storage.SQLite.BusyTimeout == 0 {
		cfg.Storage.SQLite.BusyTimeout = DefaultSQLiteBusyTimeout
	}
	if cfg.Storage.Retention == 0 {
		cfg.Storage.Retention = DefaultStorageRetention
	}

	// Server defaults
	if cfg.Server.ListenAddress == "" {
		cfg.Server.ListenAddress = DefaultListenAddress
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = DefaultReadTimeout
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = DefaultWriteTimeout
	}
	if cfg.Server.IdleTimeout == 0 {
		cfg.Server.IdleTimeout = DefaultIdleTimeout
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = DefaultShutdownTimeout
	}

	// Telemetry defaults
	logging := &cfg.Telemetry.Logging
	if logging.Level == "" {
		logging.Level = DefaultLogLevel
	}
	if logging.Format == "" {
		logging.Format = DefaultLogFormat
	}

	metrics := &cfg.Telemetry.Metrics
	if metrics.Path == "" {
		metrics.Path = DefaultMetricsPath
	}
	if metrics.Namespace == "" {
		metrics.Namespace = DefaultMetricsNamespace
	}
	if metrics.Subsystem == "" {
		metrics.Subsystem = DefaultMetricsSubsystem
	}
	if len(metrics.DurationBuckets) == 0 {
		metrics.DurationBuckets = append([]float64(nil), DefaultDurationBuckets...)
	}

	tracing := &cfg.Telemetry.Tracing
	if tracing.Sampler == "" {
		tracing.Sampler = DefaultTracingSampler
	}
	if tracing.SampleRatio == 0 {
		tracing.SampleRatio = DefaultTracingSampleRatio
	}
	if tracing.ServiceName == "" {
		tracing.ServiceName = DefaultTracingServiceName
	}
}
