package storage

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryBackend keeps snapshots in a map. All data is lost when the
// process exits.
type MemoryBackend struct {
	mu        sync.RWMutex
	snapshots map[string]*Snapshot
	closed    bool
}

// NewMemoryBackend creates an empty in-memory backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		snapshots: make(map[string]*Snapshot),
	}
}

// Save implements Backend.
func (m *MemoryBackend) Save(ctx context.Context, snap *Snapshot) error {
	if err := validate(snap); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}

	// Copy to avoid mutation through the caller's pointer.
	cp := *snap
	m.snapshots[snap.ID] = &cp
	return nil
}

// Get implements Backend.
func (m *MemoryBackend) Get(ctx context.Context, id string) (*Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrClosed
	}

	snap, ok := m.snapshots[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *snap
	return &cp, nil
}

// List implements Backend.
func (m *MemoryBackend) List(ctx context.Context, limit int) ([]*Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrClosed
	}

	out := make([]*Snapshot, 0, len(m.snapshots))
	for _, snap := range m.snapshots {
		cp := *snap
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].TakenAt.After(out[j].TakenAt)
	})

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Cleanup implements Backend.
func (m *MemoryBackend) Cleanup(ctx context.Context, olderThan time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return 0, ErrClosed
	}

	deleted := 0
	for id, snap := range m.snapshots {
		if snap.TakenAt.Before(olderThan) {
			delete(m.snapshots, id)
			deleted++
		}
	}
	return deleted, nil
}

// Close implements Backend. It is safe to call more than once.
func (m *MemoryBackend) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	m.snapshots = nil
	return nil
}
