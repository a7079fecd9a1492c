package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	return path
}

func TestLoadConfig_ValidFile(t *testing.T) {
	path := writeConfig(t, `
accel:
  auto_apply: true
  required_engines: [token_counter, rate_limiter]
engines:
  tokens:
    cache_size: 64
    models:
      claude: 3.5
  pool:
    max_size: 4
    policy: fail_fast
    wait_timeout: "250ms"
telemetry:
  logging:
    level: "debug"
    format: "text"
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if !cfg.Accel.AutoApply {
		t.Error("expected auto_apply to be true")
	}
	if len(cfg.Accel.RequiredEngines) != 2 {
		t.Errorf("expected 2 required engines, got %v", cfg.Accel.RequiredEngines)
	}
	if cfg.Engines.Tokens.CacheSize != 64 {
		t.Errorf("expected cache size 64, got %d", cfg.Engines.Tokens.CacheSize)
	}
	if cfg.Engines.Tokens.Models["claude"] != 3.5 {
		t.Errorf("expected claude ratio 3.5, got %v", cfg.Engines.Tokens.Models["claude"])
	}
	if cfg.Engines.Tokens.Models["default"] != DefaultTokenRatio {
		t.Errorf("expected default ratio to survive file decode, got %v", cfg.Engines.Tokens.Models["default"])
	}
	if cfg.Engines.Pool.Policy != "fail_fast" {
		t.Errorf("expected policy fail_fast, got %q", cfg.Engines.Pool.Policy)
	}
	if cfg.Engines.Pool.WaitTimeout != 250*time.Millisecond {
		t.Errorf("expected wait timeout 250ms, got %v", cfg.Engines.Pool.WaitTimeout)
	}
	if cfg.Telemetry.Logging.Level != "debug" {
		t.Errorf("expected level debug, got %q", cfg.Telemetry.Logging.Level)
	}
}

func TestLoadConfig_KeepsTrueDefaults(t *testing.T) {
	path := writeConfig(t, "engines:\n  pool:\n    max_size: 2\n")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	if !cfg.Maintenance.Enabled {
		t.Error("expected maintenance to stay enabled when omitted")
	}
	if !cfg.Telemetry.Metrics.Enabled {
		t.Error("expected metrics to stay enabled when omitted")
	}
	if !cfg.Telemetry.Logging.RedactKeys {
		t.Error("expected key redaction to stay enabled when omitted")
	}
}

func TestLoadConfig_ExplicitFalse(t *testing.T) {
	path := writeConfig(t, "maintenance:\n  enabled: false\n")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	if cfg.Maintenance.Enabled {
		t.Error("expected explicit false to override default")
	}
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil {
		t.Fatal("expected error for missing file")
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected os.ErrNotExist in chain, got %v", err)
	}
}

func TestLoadConfig_InvalidYAML(t *testing.T) {
	path := writeConfig(t, "engines: [unclosed\n")

	_, err := LoadConfig(path)
	if err == nil {
		t.Fatal("expected parse error")
	}
	if !strings.Contains(err.Error(), "failed to parse") {
		t.Errorf("expected parse error message, got %v", err)
	}
}

func TestLoadConfig_InvalidValues(t *testing.T) {
	path := writeConfig(t, "engines:\n  pool:\n    policy: sometimes\n")

	_, err := LoadConfig(path)
	if err == nil {
		t.Fatal("expected validation error")
	}
	var verr ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %T", err)
	}
	if verr.Errors[0].Field != "engines.pool.policy" {
		t.Errorf("expected engines.pool.policy error, got %s", verr.Errors[0].Field)
	}
}

func TestLoadConfigWithEnvOverrides(t *testing.T) {
	path := writeConfig(t, "engines:\n  pool:\n    max_size: 4\n")

	t.Setenv("TURBINE_POOL_MAX_SIZE", "12")
	t.Setenv("TURBINE_POOL_WAIT_TIMEOUT", "3s")
	t.Setenv("TURBINE_ACCEL_REQUIRED_ENGINES", "rate_limiter, connection_pool")
	t.Setenv("TURBINE_MAINTENANCE_ENABLED", "false")
	t.Setenv("TURBINE_TOKENS_CACHE_SIZE", "not-a-number")

	cfg, err := LoadConfigWithEnvOverrides(path)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Engines.Pool.MaxSize != 12 {
		t.Errorf("expected max size 12 from env, got %d", cfg.Engines.Pool.MaxSize)
	}
	if cfg.Engines.Pool.WaitTimeout != 3*time.Second {
		t.Errorf("expected wait timeout 3s from env, got %v", cfg.Engines.Pool.WaitTimeout)
	}
	if got := cfg.Accel.RequiredEngines; len(got) != 2 || got[0] != "rate_limiter" || got[1] != "connection_pool" {
		t.Errorf("unexpected required engines %v", got)
	}
	if cfg.Maintenance.Enabled {
		t.Error("expected maintenance disabled from env")
	}
	if cfg.Engines.Tokens.CacheSize != DefaultTokenCacheSize {
		t.Errorf("expected unparseable env value to be ignored, got %d", cfg.Engines.Tokens.CacheSize)
	}
}

func TestLoadConfigWithEnvOverrides_EmptyPath(t *testing.T) {
	t.Setenv("TURBINE_POOL_POLICY", "fail_fast")

	cfg, err := LoadConfigWithEnvOverrides("")
	if err != nil {
		t.Fatalf("failed to load defaults: %v", err)
	}
	if cfg.Engines.Pool.Policy != "fail_fast" {
		t.Errorf("expected policy from env, got %q", cfg.Engines.Pool.Policy)
	}
}

func TestLoadConfigWithEnvOverrides_InvalidOverride(t *testing.T) {
	t.Setenv("TURBINE_STORAGE_BACKEND", "postgres")

	_, err := LoadConfigWithEnvOverrides("")
	if err == nil {
		t.Fatal("expected validation error after override")
	}
	if !strings.Contains(err.Error(), "after environment overrides") {
		t.Errorf("unexpected error: %v", err)
	}
}
