package maintenance

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"fastllm-hq/turbine/pkg/config"
	"fastllm-hq/turbine/pkg/diagnostics"
	"fastllm-hq/turbine/pkg/storage"
)

type countingSweeper struct{ calls atomic.Int32 }

func (s *countingSweeper) Sweep(now time.Time) int {
	s.calls.Add(1)
	return 3
}

type countingReaper struct{ calls atomic.Int32 }

func (r *countingReaper) Reap(now time.Time) int {
	r.calls.Add(1)
	return 1
}

type fixedStats struct{}

func (fixedStats) GetPerformanceStats() diagnostics.PerformanceStats {
	return diagnostics.PerformanceStats{
		AccelerationAvailable: true,
		Operations: map[string]map[string]diagnostics.OperationStats{
			"rate_limiter": {"check_rate_limit": {Count: 1, SuccessRate: 1}},
		},
	}
}

func TestRunSweepAndReap(t *testing.T) {
	sw, rp := &countingSweeper{}, &countingReaper{}
	s := New(config.MaintenanceConfig{}, Jobs{Sweeper: sw, Reaper: rp})

	if n := s.RunSweep(); n != 3 {
		t.Errorf("RunSweep = %d, want 3", n)
	}
	if n := s.RunReap(); n != 1 {
		t.Errorf("RunReap = %d, want 1", n)
	}
}

func TestRunWithoutTargets(t *testing.T) {
	s := New(config.MaintenanceConfig{}, Jobs{})

	if s.RunSweep() != 0 || s.RunReap() != 0 {
		t.Error("expected jobs without targets to do nothing")
	}
	if err := s.RunSnapshot(context.Background()); err != nil {
		t.Errorf("expected nil, got %v", err)
	}
}

func TestRunSnapshot_Retention(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryBackend()
	defer store.Close()

	now := time.Unix(1_700_000_000, 0)
	old := storage.NewSnapshot(diagnostics.PerformanceStats{}, now.Add(-10*24*time.Hour))
	store.Save(ctx, old)

	s := New(config.MaintenanceConfig{}, Jobs{
		Stats:     fixedStats{},
		Store:     store,
		Retention: 7 * 24 * time.Hour,
	})
	s.now = func() time.Time { return now }

	if err := s.RunSnapshot(ctx); err != nil {
		t.Fatal(err)
	}

	snaps, err := store.List(ctx, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(snaps) != 1 {
		t.Fatalf("expected only the new snapshot, got %d", len(snaps))
	}
	if !snaps[0].TakenAt.Equal(now) {
		t.Errorf("unexpected snapshot time %v", snaps[0].TakenAt)
	}
	if _, err := store.Get(ctx, old.ID); !errors.Is(err, storage.ErrNotFound) {
		t.Error("expected expired snapshot removed")
	}
}

func TestStart_Disabled(t *testing.T) {
	s := New(config.MaintenanceConfig{Enabled: false, SweepSchedule: "@every 1s"},
		Jobs{Sweeper: &countingSweeper{}})

	if err := s.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	if s.IsRunning() {
		t.Error("expected disabled scheduler not to run")
	}
}

func TestStart_InvalidSchedule(t *testing.T) {
	s := New(config.MaintenanceConfig{Enabled: true, SweepSchedule: "every second"},
		Jobs{Sweeper: &countingSweeper{}})

	if err := s.Start(context.Background()); err == nil {
		t.Error("expected error for invalid schedule")
	}
	if s.IsRunning() {
		t.Error("expected scheduler not running after failed start")
	}
}

func TestStart_RunsJobs(t *testing.T) {
	sw := &countingSweeper{}
	s := New(config.MaintenanceConfig{
		Enabled:       true,
		SweepSchedule: "@every 1s",
		ReapSchedule:  "@every 1h",
	}, Jobs{Sweeper: sw})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := s.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer s.Stop()

	entries := s.Entries()
	// The reaper has no target, so only the sweep is scheduled.
	if len(entries) != 1 || entries[0].Name != JobSweep {
		t.Fatalf("unexpected entries %+v", entries)
	}

	deadline := time.After(3 * time.Second)
	for sw.calls.Load() == 0 {
		select {
		case <-deadline:
			t.Fatal("sweep job did not run")
		case <-time.After(50 * time.Millisecond):
		}
	}
}

func TestStop_OnContextCancel(t *testing.T) {
	s := New(config.MaintenanceConfig{Enabled: true, ReapSchedule: "@every 1h"},
		Jobs{Reaper: &countingReaper{}})

	ctx, cancel := context.WithCancel(context.Background())
	if err := s.Start(ctx); err != nil {
		t.Fatal(err)
	}
	cancel()

	deadline := time.Now().Add(2 * time.Second)
	for s.IsRunning() && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if s.IsRunning() {
		t.Error("expected scheduler to stop after context cancel")
	}
}
