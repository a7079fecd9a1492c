package tokens

import (
	"context"
	"fmt"
	"sync"
	"unicode/utf8"

	"github.com/cespare/xxhash/v2"
	"github.com/golang/groupcache/lru"

	"fastllm-hq/turbine/pkg/engine"
)

const (
	opCount  = "count_tokens"
	opHealth = "health_check"
	opNew    = "new"

	healthSample = "The quick brown fox, 42 times: 快速的狐狸!"
)

// Config contains token counter configuration.
type Config struct {
	// Capacity is the maximum number of memoized results. Must be positive.
	Capacity int

	// Models maps model names or prefixes to characters-per-token ratios.
	Models map[string]float64
}

// Stats is a point-in-time view of the cache.
type Stats struct {
	Size      int    `json:"size"`
	Capacity  int    `json:"capacity"`
	Hits      uint64 `json:"hits"`
	Misses    uint64 `json:"misses"`
	Evictions uint64 `json:"evictions"`
}

// cacheKey identifies a (text, model) pair without retaining the text.
type cacheKey struct {
	sum    uint64
	length int
	model  string
}

// Counter counts tokens with a bounded LRU cache in front of the heuristic.
//
// Counter is safe for concurrent use. The cache is guarded by a single
// mutex; the heuristic itself runs outside the lock.
type Counter struct {
	ratios   *Ratios
	capacity int

	mu        sync.Mutex
	cache     *lru.Cache
	hits      uint64
	misses    uint64
	evictions uint64
}

// New creates a token counter.
// It returns an InvalidArgument error if the capacity is not positive.
func New(cfg Config) (*Counter, error) {
	if cfg.Capacity < 1 {
		return nil, engine.InvalidArgument(engine.TokenCounter, opNew,
			fmt.Sprintf("capacity must be positive, got %d", cfg.Capacity))
	}

	c := &Counter{
		ratios:   NewRatios(cfg.Models),
		capacity: cfg.Capacity,
	}
	c.cache = c.newCache()
	return c, nil
}

func (c *Counter) newCache() *lru.Cache {
	cache := lru.New(c.capacity)
	cache.OnEvicted = func(lru.Key, interface{}) {
		c.evictions++
	}
	return cache
}

// Name returns the component name.
func (c *Counter) Name() string {
	return engine.TokenCounter
}

// CountTokens returns the approximate token count of text for model.
// Identical inputs always produce identical results; repeated inputs are
// served from the cache.
func (c *Counter) CountTokens(text, model string) (int, error) {
	if err := validate(text, model); err != nil {
		return 0, err
	}
	if text == "" {
		return 0, nil
	}

	key := cacheKey{sum: xxhash.Sum64String(text), length: len(text), model: model}

	c.mu.Lock()
	if v, ok := c.cache.Get(key); ok {
		c.hits++
		c.mu.Unlock()
		return v.(int), nil
	}
	c.misses++
	c.mu.Unlock()

	n := count(text, c.ratios.For(model))

	c.mu.Lock()
	c.cache.Add(key, n)
	c.mu.Unlock()

	return n, nil
}

// Estimate runs the heuristic without touching the cache.
func (c *Counter) Estimate(text, model string) (int, error) {
	return c.ratios.Estimate(text, model)
}

// Stats returns cache statistics.
func (c *Counter) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		Size:      c.cache.Len(),
		Capacity:  c.capacity,
		Hits:      c.hits,
		Misses:    c.misses,
		Evictions: c.evictions,
	}
}

// Purge empties the cache. Statistics are kept.
func (c *Counter) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache = c.newCache()
}

// HealthCheck verifies the cache bound and that the heuristic answers a
// sample string. It neither inserts into the cache nor changes statistics;
// if the sample string happens to be cached, the cached value must match.
func (c *Counter) HealthCheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if s := c.Stats(); s.Size > s.Capacity {
		return engine.Unhealthy(engine.TokenCounter, opHealth,
			fmt.Sprintf("cache size %d exceeds capacity %d", s.Size, s.Capacity))
	}

	direct, err := c.Estimate(healthSample, "")
	if err != nil {
		return err
	}
	if direct <= 0 {
		return engine.Unhealthy(engine.TokenCounter, opHealth,
			fmt.Sprintf("sample string counted as %d tokens", direct))
	}

	key := cacheKey{sum: xxhash.Sum64String(healthSample), length: len(healthSample)}
	c.mu.Lock()
	v, ok := c.cache.Get(key)
	c.mu.Unlock()
	if ok && v.(int) != direct {
		return engine.Unhealthy(engine.TokenCounter, opHealth,
			fmt.Sprintf("cached count %d differs from computed count %d", v.(int), direct))
	}
	return nil
}

func validate(text, model string) error {
	if !utf8.ValidString(text) {
		return engine.InvalidArgument(engine.TokenCounter, opCount, "text is not valid UTF-8")
	}
	if !utf8.ValidString(model) {
		return engine.InvalidArgument(engine.TokenCounter, opCount, "model is not valid UTF-8")
	}
	return nil
}
