package tokens

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"fastllm-hq/turbine/pkg/engine"
)

func newCounter(t *testing.T, capacity int) *Counter {
	t.Helper()
	c, err := New(Config{Capacity: capacity, Models: map[string]float64{"default": 4}})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return c
}

func TestCountTokens_Heuristic(t *testing.T) {
	c := newCounter(t, 16)

	tests := []struct {
		name string
		text string
		want int
	}{
		{"empty", "", 0},
		{"whitespace only", "   \n\t", 0},
		{"short word", "hi", 1},
		{"exact ratio", "abcd", 1},
		{"word over ratio", "hello", 2},
		{"two words", "hello world", 4},
		{"punctuation", "hello, world!", 6},
		{"digits", "12345678", 2},
		{"cjk", "你好世界", 4},
		{"mixed", "go 語", 2},
		{"symbols", "$%&", 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := c.CountTokens(tt.text, "any-model")
			if err != nil {
				t.Fatalf("CountTokens(%q) error: %v", tt.text, err)
			}
			if got != tt.want {
				t.Errorf("CountTokens(%q) = %d, want %d", tt.text, got, tt.want)
			}
		})
	}
}

func TestCountTokens_Deterministic(t *testing.T) {
	c := newCounter(t, 4)
	text := "The quick brown fox jumps over the lazy dog."

	first, err := c.CountTokens(text, "m")
	if err != nil {
		t.Fatalf("CountTokens error: %v", err)
	}
	for i := 0; i < 10; i++ {
		got, _ := c.CountTokens(text, "m")
		if got != first {
			t.Fatalf("iteration %d: got %d, want %d", i, got, first)
		}
	}
	est, _ := c.Estimate(text, "m")
	if est != first {
		t.Errorf("Estimate = %d, cached = %d", est, first)
	}
}

func TestCountTokens_InvalidUTF8(t *testing.T) {
	c := newCounter(t, 4)

	_, err := c.CountTokens("bad \xff text", "m")
	if !errors.Is(err, engine.ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument, got %v", err)
	}

	_, err = c.CountTokens("ok", "\xfe")
	if !errors.Is(err, engine.ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument for model, got %v", err)
	}
}

func TestNew_InvalidCapacity(t *testing.T) {
	_, err := New(Config{Capacity: 0})
	if !errors.Is(err, engine.ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument, got %v", err)
	}
}

func TestCache_HitsAndMisses(t *testing.T) {
	c := newCounter(t, 4)

	c.CountTokens("alpha", "m")
	c.CountTokens("alpha", "m")
	c.CountTokens("alpha", "other")

	s := c.Stats()
	if s.Hits != 1 {
		t.Errorf("expected 1 hit, got %d", s.Hits)
	}
	if s.Misses != 2 {
		t.Errorf("expected 2 misses, got %d", s.Misses)
	}
	if s.Size != 2 {
		t.Errorf("expected 2 entries, got %d", s.Size)
	}
}

func TestCache_EvictsLeastRecentlyUsed(t *testing.T) {
	const capacity = 3
	c := newCounter(t, capacity)

	c.CountTokens("one", "m")
	c.CountTokens("two", "m")
	c.CountTokens("three", "m")

	// Touch "one" so "two" becomes least recently used.
	c.CountTokens("one", "m")
	c.CountTokens("four", "m")

	s := c.Stats()
	if s.Size != capacity {
		t.Fatalf("expected size %d, got %d", capacity, s.Size)
	}
	if s.Evictions != 1 {
		t.Errorf("expected 1 eviction, got %d", s.Evictions)
	}

	hitsBefore := c.Stats().Hits
	c.CountTokens("one", "m")
	if c.Stats().Hits != hitsBefore+1 {
		t.Error("expected recently used entry to survive eviction")
	}

	missesBefore := c.Stats().Misses
	c.CountTokens("two", "m")
	if c.Stats().Misses != missesBefore+1 {
		t.Error("expected least recently used entry to be evicted")
	}
}

func TestCache_BoundedUnderConcurrency(t *testing.T) {
	const capacity = 32
	c := newCounter(t, capacity)

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				text := fmt.Sprintf("goroutine %d text %d", g, i%100)
				got, err := c.CountTokens(text, "m")
				if err != nil {
					t.Errorf("CountTokens error: %v", err)
					return
				}
				want, _ := c.Estimate(text, "m")
				if got != want {
					t.Errorf("CountTokens(%q) = %d, want %d", text, got, want)
					return
				}
			}
		}(g)
	}
	wg.Wait()

	if s := c.Stats(); s.Size > capacity {
		t.Errorf("cache size %d exceeds capacity %d", s.Size, capacity)
	}
}

func TestPurge(t *testing.T) {
	c := newCounter(t, 4)
	c.CountTokens("alpha", "m")
	c.Purge()

	if s := c.Stats(); s.Size != 0 {
		t.Errorf("expected empty cache after purge, got %d", s.Size)
	}
}

func TestHealthCheck(t *testing.T) {
	c := newCounter(t, 4)
	if err := c.HealthCheck(context.Background()); err != nil {
		t.Errorf("expected healthy counter, got %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := c.HealthCheck(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestHealthCheck_LeavesCacheUntouched(t *testing.T) {
	c := newCounter(t, 2)
	c.CountTokens("first entry", "gpt-4")
	c.CountTokens("second entry", "gpt-4")
	before := c.Stats()

	for i := 0; i < 3; i++ {
		if err := c.HealthCheck(context.Background()); err != nil {
			t.Fatalf("HealthCheck: %v", err)
		}
	}

	if after := c.Stats(); after != before {
		t.Errorf("health check changed stats: before %+v, after %+v", before, after)
	}
	c.CountTokens("first entry", "gpt-4")
	c.CountTokens("second entry", "gpt-4")
	if s := c.Stats(); s.Hits != before.Hits+2 || s.Evictions != before.Evictions {
		t.Errorf("expected both entries still cached, got %+v", s)
	}
}

func BenchmarkCountTokens_Cached(b *testing.B) {
	c, _ := New(Config{Capacity: 1000})
	text := "The quick brown fox jumps over the lazy dog."
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		c.CountTokens(text, "m")
	}
}

func BenchmarkEstimate(b *testing.B) {
	c, _ := New(Config{Capacity: 1000})
	text := "The quick brown fox jumps over the lazy dog."
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		c.Estimate(text, "m")
	}
}
