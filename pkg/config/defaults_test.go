package config

import (
	"reflect"
	"testing"
)

func TestApplyDefaults(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	if cfg.Engines.Tokens.CacheSize != DefaultTokenCacheSize {
		t.Errorf("expected cache size %d, got %d", DefaultTokenCacheSize, cfg.Engines.Tokens.CacheSize)
	}
	if cfg.Engines.Tokens.Models["default"] != DefaultTokenRatio {
		t.Errorf("expected default ratio %v, got %v", DefaultTokenRatio, cfg.Engines.Tokens.Models["default"])
	}
	if cfg.Engines.Pool.Policy != DefaultPoolPolicy {
		t.Errorf("expected policy %q, got %q", DefaultPoolPolicy, cfg.Engines.Pool.Policy)
	}
	if cfg.Server.ListenAddress != DefaultListenAddress {
		t.Errorf("expected listen address %q, got %q", DefaultListenAddress, cfg.Server.ListenAddress)
	}
	if cfg.Telemetry.Tracing.ServiceName != DefaultTracingServiceName {
		t.Errorf("expected service name %q, got %q", DefaultTracingServiceName, cfg.Telemetry.Tracing.ServiceName)
	}
}

func TestApplyDefaults_PreservesValues(t *testing.T) {
	cfg := &Config{}
	cfg.Engines.Pool.MaxSize = 3
	cfg.Engines.Tokens.Models = map[string]float64{"gpt": 3}
	ApplyDefaults(cfg)

	if cfg.Engines.Pool.MaxSize != 3 {
		t.Errorf("expected max size to be preserved, got %d", cfg.Engines.Pool.MaxSize)
	}
	if _, ok := cfg.Engines.Tokens.Models["default"]; ok {
		t.Error("expected explicit model table to be left alone")
	}
}

func TestApplyDefaults_Idempotent(t *testing.T) {
	first := Default()
	second := Default()
	ApplyDefaults(second)

	if !reflect.DeepEqual(first, second) {
		t.Error("ApplyDefaults should be idempotent")
	}
}
