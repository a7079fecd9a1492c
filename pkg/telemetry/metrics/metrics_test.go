package metrics

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"fastllm-hq/turbine/pkg/config"
	"fastllm-hq/turbine/pkg/engine/pool"
	"fastllm-hq/turbine/pkg/engine/ratelimit"
	"fastllm-hq/turbine/pkg/engine/tokens"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func testConfig() *config.MetricsConfig {
	return &config.MetricsConfig{
		Enabled:         true,
		Namespace:       "test",
		Subsystem:       "accel",
		DurationBuckets: []float64{0.001, 0.01, 0.1},
	}
}

func TestCollector_NewCollector(t *testing.T) {
	registry := prometheus.NewRegistry()
	collector := NewCollector(&config.MetricsConfig{Enabled: true}, registry)

	if collector.Registry() != registry {
		t.Error("collector registry not set correctly")
	}
	if collector.config.Namespace != config.DefaultMetricsNamespace {
		t.Errorf("expected default namespace, got %q", collector.config.Namespace)
	}
	if len(collector.config.DurationBuckets) == 0 {
		t.Error("expected default buckets")
	}
}

func TestCollector_DoesNotModifyConfig(t *testing.T) {
	buckets := []float64{0.5, 1}
	cfg := &config.MetricsConfig{Enabled: true, DurationBuckets: buckets}

	collector := NewCollector(cfg, nil)

	if cfg.Namespace != "" || cfg.Subsystem != "" {
		t.Errorf("caller config was modified: %+v", cfg)
	}
	collector.config.DurationBuckets[0] = 9
	if buckets[0] != 0.5 {
		t.Error("collector shares the caller's bucket slice")
	}
}

func TestCollector_RecordOperation(t *testing.T) {
	collector := NewCollector(testConfig(), nil)

	collector.RecordOperation("rate_limiter", "check_rate_limit", time.Millisecond, true)
	collector.RecordOperation("rate_limiter", "check_rate_limit", time.Millisecond, true)
	collector.RecordOperation("rate_limiter", "check_rate_limit", time.Millisecond, false)

	ok := collector.operations.operationsTotal.WithLabelValues("rate_limiter", "check_rate_limit", "success")
	if got := testutil.ToFloat64(ok); got != 2 {
		t.Errorf("expected 2 successes, got %v", got)
	}
	failed := collector.operations.operationsTotal.WithLabelValues("rate_limiter", "check_rate_limit", "error")
	if got := testutil.ToFloat64(failed); got != 1 {
		t.Errorf("expected 1 error, got %v", got)
	}
}

func TestCollector_CardinalityOverflow(t *testing.T) {
	collector := NewCollector(testConfig(), nil)

	for i := 0; i < MaxOperationLabels+5; i++ {
		collector.RecordOperation("token_counter", fmt.Sprintf("op_%d", i), time.Microsecond, true)
	}

	other := collector.operations.operationsTotal.WithLabelValues("token_counter", "other", "success")
	if got := testutil.ToFloat64(other); got != 5 {
		t.Errorf("expected 5 operations folded into other, got %v", got)
	}
}

func TestCollector_Disabled(t *testing.T) {
	cfg := testConfig()
	cfg.Enabled = false
	collector := NewCollector(cfg, nil)

	collector.RecordOperation("pool", "checkout", time.Millisecond, true)
	collector.SetFeature("substitution", true)
	collector.RegisterEngines(Sources{Tokens: func() tokens.Stats { return tokens.Stats{} }})

	if n := testutil.CollectAndCount(collector.operations.operationsTotal); n != 0 {
		t.Errorf("expected no series when disabled, got %d", n)
	}
	if collector.Enabled() {
		t.Error("expected Enabled() to be false")
	}
}

func TestCollector_StateGauges(t *testing.T) {
	collector := NewCollector(testConfig(), nil)

	collector.SetSubstitutionActive("count_tokens", true)
	collector.SetFeature("rate_limiter", false)
	collector.SetComponentHealth("connection_pool", true)

	if got := testutil.ToFloat64(collector.state.siteActive.WithLabelValues("count_tokens")); got != 1 {
		t.Errorf("expected site active, got %v", got)
	}
	if got := testutil.ToFloat64(collector.state.featureEnabled.WithLabelValues("rate_limiter")); got != 0 {
		t.Errorf("expected feature disabled, got %v", got)
	}
	if got := testutil.ToFloat64(collector.state.componentHealthy.WithLabelValues("connection_pool")); got != 1 {
		t.Errorf("expected component healthy, got %v", got)
	}

	collector.SetSubstitutionActive("count_tokens", false)
	if got := testutil.ToFloat64(collector.state.siteActive.WithLabelValues("count_tokens")); got != 0 {
		t.Errorf("expected site inactive, got %v", got)
	}
}

func TestCollector_RegisterEngines(t *testing.T) {
	collector := NewCollector(testConfig(), nil)

	src := Sources{
		Tokens:     func() tokens.Stats { return tokens.Stats{Hits: 7, Size: 3} },
		RateLimit:  func() ratelimit.Stats { return ratelimit.Stats{Admitted: 4, Keys: 2} },
		Pool:       func() pool.Stats { return pool.Stats{Checkouts: 9} },
		PoolReport: func() pool.Report { return pool.Report{TotalInUse: 1, TotalIdle: 2} },
	}
	collector.RegisterEngines(src)
	collector.RegisterEngines(src) // second call is ignored

	expected := `
# HELP test_accel_tokens_cache_hits_total Token count cache hits
# TYPE test_accel_tokens_cache_hits_total counter
test_accel_tokens_cache_hits_total 7
# HELP test_accel_ratelimit_keys Rate limit keys currently tracked
# TYPE test_accel_ratelimit_keys gauge
test_accel_ratelimit_keys 2
# HELP test_accel_pool_idle Idle pooled connections
# TYPE test_accel_pool_idle gauge
test_accel_pool_idle 2
`
	err := testutil.GatherAndCompare(collector.Registry(), strings.NewReader(expected),
		"test_accel_tokens_cache_hits_total", "test_accel_ratelimit_keys", "test_accel_pool_idle")
	if err != nil {
		t.Error(err)
	}
}

func TestCollector_RegisterEngines_Partial(t *testing.T) {
	collector := NewCollector(testConfig(), nil)
	collector.RegisterEngines(Sources{
		RateLimit: func() ratelimit.Stats { return ratelimit.Stats{Rejected: 1} },
	})

	families, err := collector.Registry().Gather()
	if err != nil {
		t.Fatal(err)
	}
	for _, f := range families {
		if strings.Contains(f.GetName(), "tokens_cache") || strings.Contains(f.GetName(), "pool_") {
			t.Errorf("unexpected metric for unloaded engine: %s", f.GetName())
		}
	}
}

func TestCollector_Handler(t *testing.T) {
	collector := NewCollector(testConfig(), nil)
	collector.RecordOperation("token_counter", "count_tokens", time.Microsecond, true)

	rec := httptest.NewRecorder()
	collector.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "test_accel_operations_total") {
		t.Error("expected operations metric in output")
	}
}

func TestCardinalityLimiter(t *testing.T) {
	cl := NewCardinalityLimiter(2)

	if !cl.Allow("a") || !cl.Allow("b") {
		t.Fatal("expected first two label sets to be allowed")
	}
	if cl.Allow("c") {
		t.Error("expected third label set to be rejected")
	}
	if !cl.Allow("a") {
		t.Error("expected existing label set to be allowed")
	}
	if cl.Count() != 2 {
		t.Errorf("expected count 2, got %d", cl.Count())
	}

	cl.Reset()
	if cl.Count() != 0 || !cl.Allow("c") {
		t.Error("expected Reset to clear label sets")
	}
}

func TestCollector_HandlerCountsScrapes(t *testing.T) {
	collector := NewCollector(testConfig(), nil)

	// Separate Handler calls share one instrumented handler.
	for i := 0; i < 2; i++ {
		collector.Handler().ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/metrics", nil))
	}

	rec := httptest.NewRecorder()
	collector.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if !strings.Contains(rec.Body.String(), `promhttp_metric_handler_requests_total{code="200"} 2`) {
		t.Errorf("expected two prior scrapes counted, got:\n%s", rec.Body.String())
	}
}

func TestCollector_HandlerDisabled(t *testing.T) {
	cfg := testConfig()
	cfg.Enabled = false
	collector := NewCollector(cfg, nil)

	rec := httptest.NewRecorder()
	collector.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}
