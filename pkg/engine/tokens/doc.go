// Package tokens provides the accelerated token counter.
//
// # Heuristic
//
// Counts are a deterministic approximation, not a model vocabulary:
//
//   - whitespace counts 0
//   - a run of n letters or digits counts ceil(n / ratio)
//   - each Han, Hiragana, Katakana or Hangul character counts 1
//   - every other character (punctuation, symbols) counts 1
//
// The ratio is the model's characters-per-token value from the configured
// table (exact match, longest prefix, the "default" key, then 4.0).
//
// # Caching
//
// Results are memoized in a bounded LRU keyed by the xxhash of the text, its
// byte length and the model. The cache never exceeds its capacity; inserting
// into a full cache evicts the least recently used entry.
//
//	counter, err := tokens.New(tokens.Config{Capacity: 1000})
//	n, err := counter.CountTokens("Hello, world!", "claude-3")
//
// Estimate runs the same heuristic without the cache and is the reference
// the cached path must agree with.
package tokens
