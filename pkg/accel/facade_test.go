package accel

import (
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"fastllm-hq/turbine/pkg/config"
	"fastllm-hq/turbine/pkg/engine"
	"fastllm-hq/turbine/pkg/engine/tokens"
)

type flags map[string]bool

func (f flags) IsEnabled(name string) bool {
	v, ok := f[name]
	return !ok || v
}

func quietLogger() Option {
	return WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestLoad_AllEngines(t *testing.T) {
	f := Load(config.Default(), nil, quietLogger())
	defer f.Close()

	if !f.IsAvailable() {
		t.Fatalf("expected acceleration available, got %q", f.Unavailable())
	}
	for _, c := range f.Capabilities() {
		if !c.Loaded {
			t.Errorf("expected %s loaded, reason %q", c.Name, c.Reason)
		}
	}
	if _, err := f.TokenCounter(); err != nil {
		t.Error(err)
	}
	if _, err := f.RateLimiter(); err != nil {
		t.Error(err)
	}
	if _, err := f.Pool(); err != nil {
		t.Error(err)
	}
	if f.Unavailable() != "" {
		t.Error("expected empty unavailability reason")
	}
}

func TestLoad_FlagDisablesEngine(t *testing.T) {
	f := Load(config.Default(), flags{engine.RateLimiter: false}, quietLogger())
	defer f.Close()

	c, ok := f.Capability(engine.RateLimiter)
	if !ok || c.Loaded {
		t.Fatalf("expected rate limiter not loaded, got %+v", c)
	}
	if !strings.Contains(c.Reason, "feature flag") {
		t.Errorf("unexpected reason %q", c.Reason)
	}

	_, err := f.RateLimiter()
	if !errors.Is(err, engine.ErrUnavailable) {
		t.Errorf("expected ErrUnavailable, got %v", err)
	}
	if !f.IsAvailable() {
		t.Error("expected facade available with remaining engines")
	}
}

func TestLoad_InvalidConfigIsolated(t *testing.T) {
	cfg := config.Default()
	cfg.Engines.Tokens.CacheSize = -1

	f := Load(cfg, nil, quietLogger())
	defer f.Close()

	c, _ := f.Capability(engine.TokenCounter)
	if c.Loaded || !strings.Contains(c.Reason, "invalid configuration") {
		t.Errorf("expected configuration failure, got %+v", c)
	}
	if c, _ := f.Capability(engine.RateLimiter); !c.Loaded {
		t.Error("expected sibling engine to load")
	}
}

func TestLoad_PanicIsolated(t *testing.T) {
	f := Load(config.Default(), nil, quietLogger(),
		WithBuilder(engine.ConnectionPool, func() (engine.Engine, error) {
			panic("socket table exhausted")
		}))
	defer f.Close()

	c, _ := f.Capability(engine.ConnectionPool)
	if c.Loaded || !strings.Contains(c.Reason, "panicked") {
		t.Errorf("expected panic to be recorded, got %+v", c)
	}
	if _, err := f.Engine(engine.ConnectionPool); !errors.Is(err, engine.ErrUnavailable) {
		t.Errorf("expected ErrUnavailable, got %v", err)
	}
	if _, err := f.Engine(engine.TokenCounter); err != nil {
		t.Errorf("expected token counter loaded, got %v", err)
	}
}

func TestLoad_WrongEngineType(t *testing.T) {
	f := Load(config.Default(), nil, quietLogger(),
		WithBuilder(engine.TokenCounter, func() (engine.Engine, error) {
			return Load(config.Default(), flags{
				engine.TokenCounter:   false,
				engine.ConnectionPool: false,
			}, quietLogger()).limiter, nil
		}))
	defer f.Close()

	if c, _ := f.Capability(engine.TokenCounter); c.Loaded {
		t.Error("expected mismatched engine type to be rejected")
	}
}

func TestLoad_TypedNilEngineRejected(t *testing.T) {
	f := Load(config.Default(), nil, quietLogger(),
		WithBuilder(engine.TokenCounter, func() (engine.Engine, error) {
			var c *tokens.Counter
			return c, nil
		}))
	defer f.Close()

	c, _ := f.Capability(engine.TokenCounter)
	if c.Loaded || !strings.Contains(c.Reason, "no engine") {
		t.Errorf("expected typed nil counter rejected, got %+v", c)
	}
	if _, err := f.TokenCounter(); !errors.Is(err, engine.ErrUnavailable) {
		t.Errorf("expected ErrUnavailable, got %v", err)
	}
	if c, _ := f.Capability(engine.RateLimiter); !c.Loaded {
		t.Error("expected other engines unaffected")
	}
}

func TestIsAvailable_Required(t *testing.T) {
	cfg := config.Default()
	cfg.Accel.RequiredEngines = []string{engine.TokenCounter, engine.ConnectionPool}

	f := Load(cfg, flags{engine.ConnectionPool: false}, quietLogger())
	defer f.Close()

	if f.IsAvailable() {
		t.Error("expected unavailable when a required engine is missing")
	}
	if reason := f.Unavailable(); !strings.Contains(reason, engine.ConnectionPool) {
		t.Errorf("expected reason to name the missing engine, got %q", reason)
	}
}

func TestIsAvailable_NoneLoaded(t *testing.T) {
	f := Load(config.Default(), flags{
		engine.TokenCounter:   false,
		engine.RateLimiter:    false,
		engine.ConnectionPool: false,
	}, quietLogger())

	if f.IsAvailable() {
		t.Error("expected unavailable with no engines")
	}
	if f.Unavailable() != "no acceleration engines loaded" {
		t.Errorf("unexpected reason %q", f.Unavailable())
	}
	if err := f.Close(); err != nil {
		t.Errorf("Close with no pool failed: %v", err)
	}
}

func TestCapabilities_IsCopy(t *testing.T) {
	f := Load(config.Default(), nil, quietLogger())
	defer f.Close()

	caps := f.Capabilities()
	caps[0].Loaded = false

	if c, _ := f.Capability(caps[0].Name); !c.Loaded {
		t.Error("mutating Capabilities result must not affect the facade")
	}
	if len(caps) != len(engine.Names) {
		t.Errorf("expected %d capabilities, got %d", len(engine.Names), len(caps))
	}
}

func TestEngine_Unknown(t *testing.T) {
	f := Load(config.Default(), nil, quietLogger())
	defer f.Close()

	if _, err := f.Engine("gpu_sampler"); !errors.Is(err, engine.ErrUnavailable) {
		t.Errorf("expected ErrUnavailable for unknown engine, got %v", err)
	}
}

func TestClose_Idempotent(t *testing.T) {
	f := Load(config.Default(), nil, quietLogger())

	if err := f.Close(); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Errorf("second Close returned %v", err)
	}
}
