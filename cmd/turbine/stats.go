package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"fastllm-hq/turbine/pkg/cli"
	"fastllm-hq/turbine/pkg/config"
	"fastllm-hq/turbine/pkg/diagnostics"
	"fastllm-hq/turbine/pkg/storage"
	"fastllm-hq/turbine/pkg/telemetry/tracing"
)

var statsFlags struct {
	server  string
	timeout time.Duration
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show recorded operation timings",
	Long: `Show per-operation call counts, average durations and success rates.

With --server the stats are read from a running "turbine serve". Otherwise
the newest persisted snapshot is shown.

Examples:
  # From a running server
  turbine stats --server 127.0.0.1:9464

  # From the snapshot database
  turbine stats --config turbine.yaml`,
	RunE: runStats,
}

func init() {
	rootCmd.AddCommand(statsCmd)
	statsCmd.Flags().StringVar(&statsFlags.server, "server", "", "address of a running turbine serve")
	statsCmd.Flags().DurationVar(&statsFlags.timeout, "timeout", 5*time.Second, "request timeout for --server")
}

func runStats(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	cfg := config.GetConfig()

	var stats diagnostics.PerformanceStats
	var err error
	if statsFlags.server != "" {
		tracer, terr := tracing.New(&cfg.Telemetry.Tracing, tracing.WithVersion(Version))
		if terr != nil {
			return cli.NewCommandError("stats", terr)
		}
		defer tracer.Shutdown(context.Background())

		spanCtx, span := tracer.Start(ctx, "stats.fetch")
		stats, err = fetchStats(spanCtx, statsFlags.server, statsFlags.timeout)
		tracing.SetStatus(span, err)
		span.End()
	} else {
		stats, err = latestSnapshot(ctx, cfg.Storage)
	}
	if err != nil {
		return cli.NewCommandError("stats", err)
	}

	if !textOutput() {
		return render(cmd, stats)
	}
	if err := render(cmd, statsTable(stats)); err != nil {
		return err
	}
	if stats.Error != "" {
		fmt.Fprintf(cmd.OutOrStdout(), "\n%s\n", stats.Error)
	}
	return nil
}

func fetchStats(ctx context.Context, addr string, timeout time.Duration) (diagnostics.PerformanceStats, error) {
	var stats diagnostics.PerformanceStats

	url := addr
	if !strings.Contains(url, "://") {
		url = "http://" + url
	}
	url = strings.TrimSuffix(url, "/") + "/stats"

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return stats, err
	}
	tracing.Inject(ctx, req.Header)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return stats, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return stats, fmt.Errorf("%s returned %s", url, resp.Status)
	}
	if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
		return stats, fmt.Errorf("failed to decode stats: %w", err)
	}
	return stats, nil
}

func latestSnapshot(ctx context.Context, cfg config.StorageConfig) (diagnostics.PerformanceStats, error) {
	store, err := storage.Open(cfg)
	if err != nil {
		return diagnostics.PerformanceStats{}, err
	}
	defer store.Close()

	snaps, err := store.List(ctx, 1)
	if err != nil {
		return diagnostics.PerformanceStats{}, err
	}
	if len(snaps) == 0 {
		return diagnostics.PerformanceStats{}, fmt.Errorf("no snapshots in %s storage", cfg.Backend)
	}
	return snaps[0].Stats, nil
}

func statsTable(stats diagnostics.PerformanceStats) *cli.Table {
	t := &cli.Table{Headers: []string{"COMPONENT", "OPERATION", "COUNT", "AVG", "SUCCESS"}}

	components := make([]string, 0, len(stats.Operations))
	for c := range stats.Operations {
		components = append(components, c)
	}
	sort.Strings(components)

	for _, c := range components {
		ops := make([]string, 0, len(stats.Operations[c]))
		for op := range stats.Operations[c] {
			ops = append(ops, op)
		}
		sort.Strings(ops)
		for _, op := range ops {
			s := stats.Operations[c][op]
			t.Append(c, op, s.Count, fmt.Sprintf("%.4fms", s.AvgDurationMs), fmt.Sprintf("%.1f%%", s.SuccessRate*100))
		}
	}
	return t
}
