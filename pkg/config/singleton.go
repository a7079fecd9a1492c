package config

import (
	"fmt"
	"sync/atomic"
)

// global is the process-wide configuration read by turbine.Default and the
// turbine command.
var global atomic.Pointer[Config]

// ReloadConfig loads path with environment overrides and replaces the
// process-wide configuration. On error the current configuration is kept.
// An empty path uses Default and the environment.
func ReloadConfig(path string) error {
	cfg, err := LoadConfigWithEnvOverrides(path)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	global.Store(cfg)
	return nil
}

// GetConfig returns the process-wide configuration, or nil before the first
// successful ReloadConfig or SetConfig.
func GetConfig() *Config {
	return global.Load()
}

// SetConfig replaces the process-wide configuration without validating it.
// Callers that adjust a loaded configuration, such as applying command-line
// overrides, install the result with SetConfig.
func SetConfig(cfg *Config) {
	global.Store(cfg)
}

// GetOrDefault returns the process-wide configuration, or a fresh Default
// when none has been loaded.
func GetOrDefault() *Config {
	if cfg := GetConfig(); cfg != nil {
		return cfg
	}
	return Default()
}
