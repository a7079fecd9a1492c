package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"fastllm-hq/turbine/pkg/cli"
	"fastllm-hq/turbine/pkg/config"
	"fastllm-hq/turbine/pkg/maintenance"
	"fastllm-hq/turbine/pkg/server"
	"fastllm-hq/turbine/pkg/storage"
	"fastllm-hq/turbine/pkg/telemetry/logging"
	"fastllm-hq/turbine/pkg/telemetry/tracing"
	"fastllm-hq/turbine/pkg/turbine"
)

var serveFlags struct {
	listenAddress string
	apply         bool
	dryRun        bool
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the engines and serve diagnostics over HTTP",
	Long: `Load the engines, optionally apply acceleration, and serve health, stats,
feature flags, snapshots and Prometheus metrics until interrupted.

Background maintenance sweeps idle rate limiter keys, reaps expired pool
connections and persists performance snapshots on the configured
schedules. The feature file is reloaded on change when features.watch is
set, and on SIGHUP.

Examples:
  # Start with default config
  turbine serve

  # Apply acceleration and listen on all interfaces
  turbine serve --apply --listen 0.0.0.0:9464

  # Validate config without starting
  turbine serve --dry-run`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVarP(&serveFlags.listenAddress, "listen", "l", "", "override listen address")
	serveCmd.Flags().BoolVar(&serveFlags.apply, "apply", false, "apply acceleration at startup (in addition to accel.auto_apply)")
	serveCmd.Flags().BoolVar(&serveFlags.dryRun, "dry-run", false, "validate config without starting")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := config.GetConfig()
	if serveFlags.listenAddress != "" {
		cfg.Server.ListenAddress = serveFlags.listenAddress
	}

	if serveFlags.dryRun {
		if err := config.Validate(cfg); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "✓ Configuration valid")
		return nil
	}

	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := cli.SetupSignalHandler(parent)
	defer stop()

	tracer, err := tracing.New(&cfg.Telemetry.Tracing, tracing.WithVersion(Version))
	if err != nil {
		return cli.NewCommandError("serve", err)
	}
	defer tracer.Shutdown(context.Background())

	rt, err := newRuntime(turbine.WithTracer(tracer))
	if err != nil {
		return err
	}
	defer rt.Close()

	if serveFlags.apply && !rt.ApplyAcceleration(ctx) {
		slog.Warn("acceleration not applied, serving host defaults", "reason", rt.Facade().Unavailable())
	}

	store, err := storage.Open(cfg.Storage)
	if err != nil {
		return cli.NewCommandError("serve", err)
	}
	defer store.Close()

	sched := maintenance.New(cfg.Maintenance, maintenanceJobs(rt, store, cfg))
	if err := sched.Start(ctx); err != nil {
		return cli.NewCommandError("serve", err)
	}
	defer sched.Stop()

	go func() {
		if err := rt.WatchFeatures(ctx); err != nil {
			slog.Error("feature file watcher stopped", "error", err)
		}
	}()
	go reloadOnHUP(ctx, rt)

	deps := server.Deps{
		Checker:     rt.Diagnostics().Checker(),
		Diagnostics: rt.Diagnostics(),
		Features:    rt.Features(),
		Snapshots:   store,
		Tracer:      tracer,
		Version:     Version,
		Commit:      GitCommit,
		BuildTime:   BuildDate,
	}
	if cfg.Telemetry.Metrics.Enabled {
		deps.Metrics = rt.Metrics()
		deps.MetricsPath = cfg.Telemetry.Metrics.Path
	}
	srv := server.New(&cfg.Server, deps)

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Turbine v%s\n", Version)
	fmt.Fprintf(out, "✓ Acceleration available: %t\n", rt.IsAvailable())
	fmt.Fprintf(out, "✓ Bound sites: %d\n", len(rt.Bindings()))
	fmt.Fprintf(out, "✓ Snapshot storage: %s\n", cfg.Storage.Backend)
	fmt.Fprintf(out, "✓ Listening on %s\n", cfg.Server.ListenAddress)
	fmt.Fprintln(out, "\nPress Ctrl+C to stop")

	if err := srv.Start(ctx); err != nil {
		return cli.NewCommandError("serve", err)
	}

	fmt.Fprintln(out, "✓ Server stopped")
	return nil
}

// maintenanceJobs wires the loaded engines into the scheduler. Engines that
// did not load leave their job unscheduled.
func maintenanceJobs(rt *turbine.Runtime, store storage.Backend, cfg *config.Config) maintenance.Jobs {
	jobs := maintenance.Jobs{
		Stats:     rt.Diagnostics(),
		Store:     store,
		Retention: cfg.Storage.Retention,
	}
	if l, err := rt.Facade().RateLimiter(); err == nil {
		jobs.Sweeper = l
	}
	if p, err := rt.Facade().Pool(); err == nil {
		jobs.Reaper = p
	}
	return jobs
}

// reloadOnHUP re-reads the configuration and feature file on SIGHUP. Only
// the log level takes effect from the new configuration, and only when
// --log-level was not given. The runtime keeps the configuration it was
// built with.
func reloadOnHUP(ctx context.Context, rt *turbine.Runtime) {
	hup, stop := cli.ReloadSignals()
	defer stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-hup:
			reload(ctx, rt)
		}
	}
}

func reload(ctx context.Context, rt *turbine.Runtime) {
	ctx = logging.WithOperation(ctx, "reload")

	if err := config.ReloadConfig(cfgFile); err != nil {
		slog.ErrorContext(ctx, "configuration reload failed", "error", err)
	} else if logLevel == "" && appLogger != nil {
		level := config.GetConfig().Telemetry.Logging.Level
		if lvl, err := logging.ParseLevel(level); err == nil {
			appLogger.SetLevel(lvl)
			slog.InfoContext(ctx, "log level reloaded", "level", level)
		}
	}

	path := rt.Config().Features.File
	if path == "" {
		return
	}
	if err := rt.Features().Load(path); err != nil {
		slog.ErrorContext(ctx, "feature reload failed", "error", err)
		return
	}
	// Refreshes the feature gauges.
	rt.GetFeatureStatus()
}
