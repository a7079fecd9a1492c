package storage

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"fastllm-hq/turbine/pkg/diagnostics"
)

var (
	// ErrNotFound is returned by Get for an unknown snapshot ID.
	ErrNotFound = errors.New("snapshot not found")

	// ErrInvalidSnapshot is returned by Save for a nil snapshot or one
	// without an ID.
	ErrInvalidSnapshot = errors.New("invalid snapshot")

	// ErrClosed is returned by MemoryBackend operations after Close.
	ErrClosed = errors.New("storage closed")
)

// Backend persists performance snapshots.
// Implementations must be safe for concurrent use.
type Backend interface {
	// Save stores a snapshot. Saving an existing ID replaces it.
	Save(ctx context.Context, snap *Snapshot) error

	// Get returns the snapshot with the given ID, or ErrNotFound.
	Get(ctx context.Context, id string) (*Snapshot, error)

	// List returns up to limit snapshots, newest first. A limit of zero
	// or less returns every snapshot.
	List(ctx context.Context, limit int) ([]*Snapshot, error)

	// Cleanup removes snapshots taken before olderThan and returns how
	// many were removed.
	Cleanup(ctx context.Context, olderThan time.Time) (int, error)

	// Close releases any resources held by the backend.
	Close() error
}

// Snapshot is a point-in-time copy of the performance stats.
type Snapshot struct {
	// ID uniquely identifies the snapshot.
	ID string `json:"id"`

	// TakenAt is when the stats were read.
	TakenAt time.Time `json:"taken_at"`

	// Stats are the aggregated operation timings at TakenAt.
	Stats diagnostics.PerformanceStats `json:"stats"`
}

// NewSnapshot wraps stats in a snapshot with a fresh ID.
func NewSnapshot(stats diagnostics.PerformanceStats, takenAt time.Time) *Snapshot {
	return &Snapshot{
		ID:      uuid.NewString(),
		TakenAt: takenAt,
		Stats:   stats,
	}
}

func validate(snap *Snapshot) error {
	if snap == nil || snap.ID == "" {
		return ErrInvalidSnapshot
	}
	return nil
}
