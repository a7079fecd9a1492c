package maintenance

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"fastllm-hq/turbine/pkg/config"
	"fastllm-hq/turbine/pkg/diagnostics"
	"fastllm-hq/turbine/pkg/storage"
)

// Job names.
const (
	JobSweep    = "sweep"
	JobReap     = "reap"
	JobSnapshot = "snapshot"
)

// Sweeper evicts idle rate limiter keys.
type Sweeper interface {
	Sweep(now time.Time) int
}

// Reaper closes expired idle connections.
type Reaper interface {
	Reap(now time.Time) int
}

// StatsSource provides the performance stats to snapshot.
type StatsSource interface {
	GetPerformanceStats() diagnostics.PerformanceStats
}

// Jobs holds the targets of the scheduled jobs. A nil target disables its
// job.
type Jobs struct {
	Sweeper Sweeper
	Reaper  Reaper

	// Stats and Store must both be set for snapshots to run.
	Stats StatsSource
	Store storage.Backend

	// Retention removes snapshots older than this after each snapshot.
	// Zero keeps every snapshot.
	Retention time.Duration
}

// Entry describes one scheduled job.
type Entry struct {
	Name     string    `json:"name"`
	Schedule string    `json:"schedule"`
	Next     time.Time `json:"next"`
}

// Scheduler runs the maintenance jobs on their cron schedules.
type Scheduler struct {
	config config.MaintenanceConfig
	jobs   Jobs
	logger *slog.Logger
	now    func() time.Time

	mu      sync.Mutex
	cron    *cron.Cron
	entries map[string]cron.EntryID
	specs   map[string]string
	running bool
}

// New creates a scheduler. Nothing runs until Start.
func New(cfg config.MaintenanceConfig, jobs Jobs) *Scheduler {
	return &Scheduler{
		config: cfg,
		jobs:   jobs,
		logger: slog.Default().With("component", "maintenance"),
		now:    time.Now,
	}
}

// Start registers every job with a target and a schedule and starts the
// cron runner. Overlapping runs of the same job are skipped. The
// scheduler stops when ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil
	}
	if !s.config.Enabled {
		s.logger.Info("maintenance disabled, skipping scheduler")
		return nil
	}

	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	entries := make(map[string]cron.EntryID)
	specs := make(map[string]string)

	add := func(name, spec string, run func()) error {
		if spec == "" {
			return nil
		}
		id, err := c.AddFunc(spec, run)
		if err != nil {
			return fmt.Errorf("invalid cron schedule %q for %s: %w", spec, name, err)
		}
		entries[name] = id
		specs[name] = spec
		return nil
	}

	if s.jobs.Sweeper != nil {
		if err := add(JobSweep, s.config.SweepSchedule, func() { s.RunSweep() }); err != nil {
			return err
		}
	}
	if s.jobs.Reaper != nil {
		if err := add(JobReap, s.config.ReapSchedule, func() { s.RunReap() }); err != nil {
			return err
		}
	}
	if s.jobs.Stats != nil && s.jobs.Store != nil {
		err := add(JobSnapshot, s.config.SnapshotSchedule, func() {
			if err := s.RunSnapshot(ctx); err != nil {
				s.logger.Error("scheduled snapshot failed", "error", err)
			}
		})
		if err != nil {
			return err
		}
	}

	if len(entries) == 0 {
		s.logger.Info("no maintenance jobs configured")
		return nil
	}

	c.Start()
	s.cron = c
	s.entries = entries
	s.specs = specs
	s.running = true

	s.logger.Info("maintenance scheduler started", "jobs", len(entries))

	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	return nil
}

// Stop stops the scheduler and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}
	<-s.cron.Stop().Done()
	s.running = false
	s.logger.Info("maintenance scheduler stopped")
}

// IsRunning reports whether the scheduler is running.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Entries lists the scheduled jobs and their next run time.
func (s *Scheduler) Entries() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cron == nil {
		return nil
	}

	out := make([]Entry, 0, len(s.entries))
	for _, name := range []string{JobSweep, JobReap, JobSnapshot} {
		id, ok := s.entries[name]
		if !ok {
			continue
		}
		out = append(out, Entry{
			Name:     name,
			Schedule: s.specs[name],
			Next:     s.cron.Entry(id).Next,
		})
	}
	return out
}

// RunSweep evicts idle rate limiter keys now.
func (s *Scheduler) RunSweep() int {
	if s.jobs.Sweeper == nil {
		return 0
	}
	n := s.jobs.Sweeper.Sweep(s.now())
	if n > 0 {
		s.logger.Debug("swept idle rate limit keys", "evicted", n)
	}
	return n
}

// RunReap closes expired idle connections now.
func (s *Scheduler) RunReap() int {
	if s.jobs.Reaper == nil {
		return 0
	}
	n := s.jobs.Reaper.Reap(s.now())
	if n > 0 {
		s.logger.Debug("reaped idle connections", "closed", n)
	}
	return n
}

// RunSnapshot saves the current performance stats and then removes
// snapshots past retention.
func (s *Scheduler) RunSnapshot(ctx context.Context) error {
	if s.jobs.Stats == nil || s.jobs.Store == nil {
		return nil
	}

	now := s.now()
	snap := storage.NewSnapshot(s.jobs.Stats.GetPerformanceStats(), now)
	if err := s.jobs.Store.Save(ctx, snap); err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}

	if s.jobs.Retention > 0 {
		deleted, err := s.jobs.Store.Cleanup(ctx, now.Add(-s.jobs.Retention))
		if err != nil {
			return fmt.Errorf("failed to clean up snapshots: %w", err)
		}
		if deleted > 0 {
			s.logger.Debug("removed expired snapshots", "deleted", deleted)
		}
	}

	s.logger.Debug("performance snapshot saved", "id", snap.ID)
	return nil
}
