package host

import "sync/atomic"

// Site is a swappable strategy slot. Reads are lock-free; a swap is a
// single atomic store, so concurrent callers observe either the old or the
// new strategy and never a partial state.
type Site[T any] struct {
	name string
	def  T
	cur  atomic.Pointer[T]
}

// NewSite creates a site bound to its default strategy.
func NewSite[T any](name string, def T) *Site[T] {
	s := &Site[T]{name: name, def: def}
	s.cur.Store(&def)
	return s
}

// Name returns the site name used in binding records.
func (s *Site[T]) Name() string {
	return s.name
}

// Get returns the current strategy.
func (s *Site[T]) Get() T {
	return *s.cur.Load()
}

// Swap installs next and returns the strategy it replaced.
func (s *Site[T]) Swap(next T) T {
	return *s.cur.Swap(&next)
}

// Default returns the unaccelerated strategy the site was created with.
func (s *Site[T]) Default() T {
	return s.def
}

// Reset reinstalls the default strategy.
func (s *Site[T]) Reset() {
	def := s.def
	s.cur.Store(&def)
}
