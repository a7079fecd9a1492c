package turbine

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"fastllm-hq/turbine/pkg/config"
	"fastllm-hq/turbine/pkg/engine"
	"fastllm-hq/turbine/pkg/features"
	"fastllm-hq/turbine/pkg/substitution"
)

type stubConn struct{ closed atomic.Bool }

func (c *stubConn) Alive() bool  { return !c.closed.Load() }
func (c *stubConn) Close() error { c.closed.Store(true); return nil }

type countingDialer struct{ dials atomic.Int32 }

func (d *countingDialer) Dial(ctx context.Context, endpoint string) (engine.Conn, error) {
	d.dials.Add(1)
	return &stubConn{}, nil
}

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

func newRuntime(t *testing.T, cfg *config.Config, opts ...Option) *Runtime {
	t.Helper()
	opts = append([]Option{WithLogger(quiet), WithDialer(&countingDialer{})}, opts...)
	r, err := New(cfg, opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { r.Close() })
	return r
}

func TestNew_InvalidConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Engines.Pool.Policy = "retry"

	_, err := New(cfg, WithLogger(quiet))

	var verr config.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestNew_MissingFeatureFile(t *testing.T) {
	cfg := config.Default()
	cfg.Features.File = filepath.Join(t.TempDir(), "missing.yaml")

	if _, err := New(cfg, WithLogger(quiet)); err == nil {
		t.Error("expected error for missing feature file")
	}
}

func TestNew_FeatureFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "features.yaml")
	if err := os.WriteFile(path, []byte("features:\n  connection_pool: false\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg := config.Default()
	cfg.Features.File = path

	r := newRuntime(t, cfg)

	if r.IsEnabled(features.ConnectionPool) {
		t.Error("expected connection_pool disabled by file")
	}
	if c, _ := r.Facade().Capability(engine.ConnectionPool); c.Loaded {
		t.Error("expected pool not loaded")
	}
	report := r.ConnectionPoolHealthCheck()
	if report.Healthy || report.Error == "" {
		t.Errorf("expected unhealthy pool report with reason, got %+v", report)
	}
}

func TestAutoApply(t *testing.T) {
	cfg := config.Default()
	cfg.Accel.AutoApply = true

	r := newRuntime(t, cfg)

	if r.Controller().State() != substitution.Applied {
		t.Error("expected acceleration applied at construction")
	}
	if len(r.Bindings()) != len(engine.Names) {
		t.Errorf("expected %d bindings, got %d", len(engine.Names), len(r.Bindings()))
	}
}

func TestAutoApply_Unavailable(t *testing.T) {
	cfg := config.Default()
	cfg.Accel.AutoApply = true
	cfg.Features.Flags = map[string]bool{
		features.TokenCounter:   false,
		features.RateLimiter:    false,
		features.ConnectionPool: false,
	}

	r := newRuntime(t, cfg)

	if r.IsAvailable() {
		t.Error("expected acceleration unavailable")
	}
	if r.Controller().State() != substitution.Unapplied {
		t.Error("expected host defaults to stay in place")
	}
	if n, err := r.CountTokens("still works", "gpt-4"); err != nil || n == 0 {
		t.Errorf("expected default counter to serve, got %d, %v", n, err)
	}
}

func TestCountTokens_ParityAcrossApply(t *testing.T) {
	r := newRuntime(t, nil)
	inputs := []string{"", "The quick brown fox.", "λ-calculus, 1+1=2", "   spaced   out   "}

	before := make([]int, len(inputs))
	for i, in := range inputs {
		n, err := r.CountTokens(in, "claude-3")
		if err != nil {
			t.Fatal(err)
		}
		before[i] = n
	}
	if before[0] != 0 {
		t.Errorf("CountTokens(\"\") = %d, want 0", before[0])
	}

	if !r.ApplyAcceleration(context.Background()) {
		t.Fatal("expected apply to succeed")
	}
	for i, in := range inputs {
		for j := 0; j < 2; j++ {
			if n, _ := r.CountTokens(in, "claude-3"); n != before[i] {
				t.Errorf("accelerated CountTokens(%q) = %d, want %d", in, n, before[i])
			}
		}
	}
}

func TestCheckRateLimit_Boundary(t *testing.T) {
	for _, accelerated := range []bool{false, true} {
		r := newRuntime(t, nil)
		if accelerated {
			r.ApplyAcceleration(context.Background())
		}

		const limit = 5
		for i := 0; i < limit; i++ {
			ok, err := r.CheckRateLimit("tenant-a", limit, 60)
			if err != nil || !ok {
				t.Fatalf("accelerated=%v call %d: got %v, %v", accelerated, i, ok, err)
			}
		}
		if ok, _ := r.CheckRateLimit("tenant-a", limit, 60); ok {
			t.Errorf("accelerated=%v: call %d should be rejected", accelerated, limit+1)
		}
		if ok, _ := r.CheckRateLimit("tenant-b", limit, 60); !ok {
			t.Errorf("accelerated=%v: independent key should be admitted", accelerated)
		}
	}
}

func TestCheckRateLimit_ConcurrentExactlyLimit(t *testing.T) {
	r := newRuntime(t, nil)
	r.ApplyAcceleration(context.Background())

	const limit = 50
	var admitted atomic.Int32
	var wg sync.WaitGroup
	for g := 0; g < 10; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 20; i++ {
				if ok, _ := r.CheckRateLimit("shared", limit, 60); ok {
					admitted.Add(1)
				}
			}
		}()
	}
	wg.Wait()

	if admitted.Load() != limit {
		t.Errorf("admitted %d, want exactly %d", admitted.Load(), limit)
	}
}

func TestCheckout_ThroughPoolReuses(t *testing.T) {
	d := &countingDialer{}
	r := newRuntime(t, nil, WithDialer(d))
	r.ApplyAcceleration(context.Background())

	for i := 0; i < 3; i++ {
		h, err := r.Checkout(context.Background(), "db:5432")
		if err != nil {
			t.Fatal(err)
		}
		h.Release()
	}

	if d.dials.Load() != 1 {
		t.Errorf("expected pooled connection reuse, dialed %d times", d.dials.Load())
	}
	report := r.ConnectionPoolHealthCheck()
	if !report.Healthy || report.TotalIdle != 1 {
		t.Errorf("unexpected pool report %+v", report)
	}
}

func TestPerformanceRecordedThroughAdapters(t *testing.T) {
	r := newRuntime(t, nil)
	r.ApplyAcceleration(context.Background())

	r.CountTokens("hello world", "gpt-4")
	r.CountTokens("hello world", "gpt-4")

	stats := r.GetPerformanceStats()
	s := stats.Operations[engine.TokenCounter][substitution.OpCountTokens]
	if s.Count != 2 || s.SuccessRate != 1 {
		t.Errorf("unexpected stats %+v", s)
	}
}

func TestHealthCheck_IncludesBindings(t *testing.T) {
	r := newRuntime(t, nil)
	r.ApplyAcceleration(context.Background())

	report := r.HealthCheck(context.Background())
	if !report.OverallHealthy {
		t.Errorf("expected healthy, got %+v", report)
	}
	if len(report.Bindings) != 3 {
		t.Errorf("expected 3 bindings in report, got %d", len(report.Bindings))
	}
}

func TestGetFeatureStatus(t *testing.T) {
	cfg := config.Default()
	cfg.Features.Flags = map[string]bool{features.PerformanceTracking: false}
	r := newRuntime(t, cfg)

	status := r.GetFeatureStatus()
	if status[features.PerformanceTracking] {
		t.Error("expected performance_tracking disabled")
	}
	if !status[features.Substitution] {
		t.Error("expected substitution enabled")
	}
	if r.IsEnabled("no_such_flag") {
		t.Error("expected unknown flag disabled")
	}
}

func TestClose_RestoresHost(t *testing.T) {
	r, err := New(nil, WithLogger(quiet), WithDialer(&countingDialer{}))
	if err != nil {
		t.Fatal(err)
	}
	defaults := r.Host().Tokens.Default()
	r.ApplyAcceleration(context.Background())

	if err := r.Close(); err != nil {
		t.Fatal(err)
	}
	if r.Host().Tokens.Get() != defaults {
		t.Error("expected Close to restore host defaults")
	}
	if err := r.Close(); err != nil {
		t.Errorf("second Close returned %v", err)
	}
}

func TestDefaultFunctions(t *testing.T) {
	r := newRuntime(t, nil)
	prev := SetDefault(r)
	t.Cleanup(func() { SetDefault(prev) })

	if Default() != r {
		t.Fatal("expected SetDefault to install runtime")
	}
	if !IsAvailable() {
		t.Error("expected acceleration available")
	}
	if !ApplyAcceleration(context.Background()) {
		t.Error("expected apply to succeed")
	}
	if n, err := CountTokens("", "gpt-4"); err != nil || n != 0 {
		t.Errorf("CountTokens(\"\") = %d, %v", n, err)
	}
	if ok, err := CheckRateLimit("k", 1, 1); err != nil || !ok {
		t.Errorf("CheckRateLimit = %v, %v", ok, err)
	}
	RecordPerformance("custom", "op", 1, true)
	if GetPerformanceStats().Operations["custom"]["op"].Count != 1 {
		t.Error("expected recorded custom operation")
	}
	if !HealthCheck(context.Background()).OverallHealthy {
		t.Error("expected healthy")
	}
	if !ConnectionPoolHealthCheck().Healthy {
		t.Error("expected healthy pool")
	}
	if !IsEnabled(features.Substitution) || len(GetFeatureStatus()) == 0 {
		t.Error("expected feature status")
	}
	RemoveAcceleration(context.Background())
	if r.Controller().State() != substitution.Unapplied {
		t.Error("expected acceleration removed")
	}
}

func TestBuildDefault_FallsBackToDefaults(t *testing.T) {
	bad := config.Default()
	bad.Engines.Pool.Policy = "retry"

	var built []*config.Config
	r := buildDefault(bad, func(cfg *config.Config, opts ...Option) (*Runtime, error) {
		built = append(built, cfg)
		return New(cfg, append(opts, WithLogger(quiet), WithDialer(&countingDialer{}))...)
	})
	t.Cleanup(func() { r.Close() })

	if r == nil || len(built) != 2 {
		t.Fatalf("expected a fallback runtime after 2 builds, got %v after %d", r, len(built))
	}
	if r.Config().Engines.Pool.Policy == "retry" {
		t.Error("expected the fallback to use default configuration")
	}
}

func TestBuildDefault_PanicsWhenDefaultsFail(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic when no runtime can be built")
		}
	}()
	buildDefault(config.Default(), func(*config.Config, ...Option) (*Runtime, error) {
		return nil, errors.New("boom")
	})
}
