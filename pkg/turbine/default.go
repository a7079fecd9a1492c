package turbine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"fastllm-hq/turbine/pkg/config"
	"fastllm-hq/turbine/pkg/diagnostics"
	"fastllm-hq/turbine/pkg/engine/pool"
)

var (
	defaultOnce    sync.Once
	defaultMu      sync.RWMutex
	defaultRuntime *Runtime
)

// Default returns the process-wide runtime, building it on first use from
// the global configuration, or the defaults when none was initialized. If
// the global configuration fails validation the defaults are used and the
// error is logged. Default panics if even the defaults cannot be built.
func Default() *Runtime {
	defaultOnce.Do(func() {
		r := buildDefault(config.GetOrDefault(), New)

		defaultMu.Lock()
		defaultRuntime = r
		defaultMu.Unlock()
	})

	defaultMu.RLock()
	defer defaultMu.RUnlock()
	return defaultRuntime
}

func buildDefault(cfg *config.Config, build func(*config.Config, ...Option) (*Runtime, error)) *Runtime {
	r, err := build(cfg)
	if err == nil {
		return r
	}
	slog.Error("invalid turbine configuration, using defaults", "error", err)
	r, err = build(config.Default())
	if err != nil {
		panic(fmt.Sprintf("turbine: cannot build default runtime: %v", err))
	}
	return r
}

// SetDefault replaces the process-wide runtime and returns the previous
// one, which the caller is responsible for closing. It is intended for
// tests and for hosts that build their runtime explicitly.
func SetDefault(r *Runtime) *Runtime {
	defaultOnce.Do(func() {})

	defaultMu.Lock()
	defer defaultMu.Unlock()
	prev := defaultRuntime
	defaultRuntime = r
	return prev
}

// CountTokens counts tokens with the default runtime.
func CountTokens(text, model string) (int, error) {
	return Default().CountTokens(text, model)
}

// CheckRateLimit checks a rate limit with the default runtime.
func CheckRateLimit(key string, limit, windowSeconds int) (bool, error) {
	return Default().CheckRateLimit(key, limit, windowSeconds)
}

// ConnectionPoolHealthCheck reports the default runtime's pool state.
func ConnectionPoolHealthCheck() pool.Report {
	return Default().ConnectionPoolHealthCheck()
}

// IsAvailable reports whether acceleration is available in the default
// runtime.
func IsAvailable() bool {
	return Default().IsAvailable()
}

// ApplyAcceleration binds the default runtime's engines.
func ApplyAcceleration(ctx context.Context) bool {
	return Default().ApplyAcceleration(ctx)
}

// RemoveAcceleration restores the default runtime's host call sites.
func RemoveAcceleration(ctx context.Context) {
	Default().RemoveAcceleration(ctx)
}

// HealthCheck returns the default runtime's health report.
func HealthCheck(ctx context.Context) diagnostics.HealthReport {
	return Default().HealthCheck(ctx)
}

// GetPerformanceStats returns the default runtime's operation timings.
func GetPerformanceStats() diagnostics.PerformanceStats {
	return Default().GetPerformanceStats()
}

// RecordPerformance records an operation timing in the default runtime.
func RecordPerformance(component, operation string, durationMs float64, success bool) {
	Default().RecordPerformance(component, operation, durationMs, success)
}

// GetFeatureStatus returns the default runtime's feature flags.
func GetFeatureStatus() map[string]bool {
	return Default().GetFeatureStatus()
}

// IsEnabled reports whether a flag is enabled in the default runtime.
func IsEnabled(name string) bool {
	return Default().IsEnabled(name)
}
