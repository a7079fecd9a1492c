package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"fastllm-hq/turbine/pkg/config"
	"fastllm-hq/turbine/pkg/diagnostics"
)

func backends(t *testing.T) map[string]Backend {
	t.Helper()

	sqlite, err := NewSQLiteBackend(SQLiteBackendConfig{
		Path: filepath.Join(t.TempDir(), "nested", "snapshots.db"),
	})
	if err != nil {
		t.Fatalf("NewSQLiteBackend: %v", err)
	}

	b := map[string]Backend{
		"memory": NewMemoryBackend(),
		"sqlite": sqlite,
	}
	t.Cleanup(func() {
		for _, backend := range b {
			backend.Close()
		}
	})
	return b
}

func sampleStats() diagnostics.PerformanceStats {
	return diagnostics.PerformanceStats{
		AccelerationAvailable: true,
		Operations: map[string]map[string]diagnostics.OperationStats{
			"token_counter": {
				"count_tokens": {Count: 10, AvgDurationMs: 0.25, SuccessRate: 1},
			},
		},
	}
}

func TestBackend_SaveGet(t *testing.T) {
	ctx := context.Background()
	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			taken := time.Unix(1_700_000_000, 123_000_000)
			snap := NewSnapshot(sampleStats(), taken)

			if err := b.Save(ctx, snap); err != nil {
				t.Fatalf("Save: %v", err)
			}

			got, err := b.Get(ctx, snap.ID)
			if err != nil {
				t.Fatalf("Get: %v", err)
			}
			if !got.TakenAt.Equal(taken) {
				t.Errorf("TakenAt = %v, want %v", got.TakenAt, taken)
			}
			op := got.Stats.Operations["token_counter"]["count_tokens"]
			if op.Count != 10 || op.AvgDurationMs != 0.25 {
				t.Errorf("unexpected stats %+v", op)
			}
		})
	}
}

func TestBackend_GetMissing(t *testing.T) {
	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			if _, err := b.Get(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
				t.Errorf("expected ErrNotFound, got %v", err)
			}
		})
	}
}

func TestBackend_SaveInvalid(t *testing.T) {
	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			if err := b.Save(context.Background(), nil); !errors.Is(err, ErrInvalidSnapshot) {
				t.Errorf("expected ErrInvalidSnapshot for nil, got %v", err)
			}
			if err := b.Save(context.Background(), &Snapshot{}); !errors.Is(err, ErrInvalidSnapshot) {
				t.Errorf("expected ErrInvalidSnapshot for empty ID, got %v", err)
			}
		})
	}
}

func TestBackend_ListNewestFirst(t *testing.T) {
	ctx := context.Background()
	base := time.Unix(1_700_000_000, 0)

	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			for i := 0; i < 5; i++ {
				if err := b.Save(ctx, NewSnapshot(sampleStats(), base.Add(time.Duration(i)*time.Minute))); err != nil {
					t.Fatal(err)
				}
			}

			all, err := b.List(ctx, 0)
			if err != nil {
				t.Fatal(err)
			}
			if len(all) != 5 {
				t.Fatalf("expected 5 snapshots, got %d", len(all))
			}
			for i := 1; i < len(all); i++ {
				if all[i].TakenAt.After(all[i-1].TakenAt) {
					t.Errorf("snapshots not newest first at %d", i)
				}
			}

			limited, err := b.List(ctx, 2)
			if err != nil {
				t.Fatal(err)
			}
			if len(limited) != 2 || !limited[0].TakenAt.Equal(base.Add(4*time.Minute)) {
				t.Errorf("unexpected limited list %v", limited)
			}
		})
	}
}

func TestBackend_Cleanup(t *testing.T) {
	ctx := context.Background()
	now := time.Unix(1_700_000_000, 0)

	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			old := NewSnapshot(sampleStats(), now.Add(-48*time.Hour))
			recent := NewSnapshot(sampleStats(), now.Add(-time.Hour))
			b.Save(ctx, old)
			b.Save(ctx, recent)

			deleted, err := b.Cleanup(ctx, now.Add(-24*time.Hour))
			if err != nil {
				t.Fatal(err)
			}
			if deleted != 1 {
				t.Errorf("expected 1 deleted, got %d", deleted)
			}
			if _, err := b.Get(ctx, old.ID); !errors.Is(err, ErrNotFound) {
				t.Error("expected old snapshot removed")
			}
			if _, err := b.Get(ctx, recent.ID); err != nil {
				t.Errorf("expected recent snapshot kept, got %v", err)
			}
		})
	}
}

func TestBackend_CloseIdempotent(t *testing.T) {
	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			if err := b.Close(); err != nil {
				t.Fatal(err)
			}
			if err := b.Close(); err != nil {
				t.Errorf("second Close returned %v", err)
			}
		})
	}
}

func TestMemoryBackend_ClosedRejects(t *testing.T) {
	b := NewMemoryBackend()
	b.Close()

	if err := b.Save(context.Background(), NewSnapshot(sampleStats(), time.Now())); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}
}

func TestSQLiteBackend_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snapshots.db")
	ctx := context.Background()

	first, err := NewSQLiteBackend(SQLiteBackendConfig{Path: path})
	if err != nil {
		t.Fatal(err)
	}
	snap := NewSnapshot(sampleStats(), time.Now())
	if err := first.Save(ctx, snap); err != nil {
		t.Fatal(err)
	}
	first.Close()

	second, err := NewSQLiteBackend(SQLiteBackendConfig{Path: path})
	if err != nil {
		t.Fatal(err)
	}
	defer second.Close()

	if _, err := second.Get(ctx, snap.ID); err != nil {
		t.Errorf("expected snapshot to survive reopen, got %v", err)
	}
}

func TestOpen(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.StorageConfig
		wantErr bool
	}{
		{name: "default", cfg: config.StorageConfig{}},
		{name: "memory", cfg: config.StorageConfig{Backend: "memory"}},
		{name: "sqlite", cfg: config.StorageConfig{
			Backend: "sqlite",
			SQLite:  config.SQLiteConfig{Path: filepath.Join(t.TempDir(), "open.db")},
		}},
		{name: "sqlite without path", cfg: config.StorageConfig{Backend: "sqlite"}, wantErr: true},
		{name: "unknown", cfg: config.StorageConfig{Backend: "redis"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := Open(tt.cfg)
			if tt.wantErr {
				if err == nil {
					t.Error("expected error")
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			b.Close()
		})
	}
}
