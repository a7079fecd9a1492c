package main

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"fastllm-hq/turbine/pkg/cli"
	"fastllm-hq/turbine/pkg/turbine"
)

const benchSentence = "The quick brown fox jumps over the lazy dog. "

// Bench modes.
const (
	modeDefault     = "default"
	modeAccelerated = "accelerated"
	modeBoth        = "both"
)

var benchFlags struct {
	tokenIterations int
	rateIterations  int
	repeat          int
	model           string
	limit           int
	window          int
	mode            string
	progress        bool
}

var benchCmd = &cobra.Command{
	Use:   "bench",
	Short: "Measure token counting and rate limiting throughput",
	Long: `Measure token counting and rate limiting throughput through the host call
sites, with the host defaults, with acceleration applied, or both.

Token counting repeats one sample text; rate limiting checks a distinct key
per call. Both modes must report the same token count for the sample.

Examples:
  # Compare both modes
  turbine bench

  # Accelerated only, larger sample, JSON results
  turbine bench --mode accelerated --repeat 1000 --output json`,
	RunE: runBench,
}

func init() {
	rootCmd.AddCommand(benchCmd)

	benchCmd.Flags().IntVar(&benchFlags.tokenIterations, "token-iterations", 1000, "token counting calls per mode")
	benchCmd.Flags().IntVar(&benchFlags.rateIterations, "rate-iterations", 10000, "rate limit checks per mode")
	benchCmd.Flags().IntVar(&benchFlags.repeat, "repeat", 100, "times the sample sentence is repeated")
	benchCmd.Flags().StringVar(&benchFlags.model, "model", "gpt-3.5-turbo", "model passed to the token counter")
	benchCmd.Flags().IntVar(&benchFlags.limit, "limit", 100, "rate limit per key")
	benchCmd.Flags().IntVar(&benchFlags.window, "window", 60, "rate limit window in seconds")
	benchCmd.Flags().StringVar(&benchFlags.mode, "mode", modeBoth, "default, accelerated or both")
	benchCmd.Flags().BoolVar(&benchFlags.progress, "progress", true, "show progress on stderr")
}

// benchResult is the outcome of one operation in one mode.
type benchResult struct {
	Mode       string  `json:"mode" yaml:"mode"`
	Operation  string  `json:"operation" yaml:"operation"`
	Iterations int     `json:"iterations" yaml:"iterations"`
	Errors     int     `json:"errors" yaml:"errors"`
	Seconds    float64 `json:"seconds" yaml:"seconds"`
	OpsPerSec  float64 `json:"ops_per_sec" yaml:"ops_per_sec"`
	P50Ms      float64 `json:"p50_ms" yaml:"p50_ms"`
	P95Ms      float64 `json:"p95_ms" yaml:"p95_ms"`
	P99Ms      float64 `json:"p99_ms" yaml:"p99_ms"`
	MaxMs      float64 `json:"max_ms" yaml:"max_ms"`

	// Tokens is the sample's token count, for token counting only.
	Tokens int `json:"tokens,omitempty" yaml:"tokens,omitempty"`

	// Skipped explains why the mode did not run.
	Skipped string `json:"skipped,omitempty" yaml:"skipped,omitempty"`
}

func runBench(cmd *cobra.Command, args []string) error {
	var modes []string
	switch benchFlags.mode {
	case modeDefault, modeAccelerated:
		modes = []string{benchFlags.mode}
	case modeBoth:
		modes = []string{modeDefault, modeAccelerated}
	default:
		return cli.NewConfigError("mode", fmt.Sprintf("unknown mode %q: must be default, accelerated or both", benchFlags.mode))
	}
	if benchFlags.tokenIterations < 0 || benchFlags.rateIterations < 0 || benchFlags.repeat < 0 {
		return cli.NewConfigError("iterations", "iterations and repeat must not be negative")
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	var progress io.Writer
	if benchFlags.progress {
		progress = cmd.ErrOrStderr()
	}

	var results []benchResult
	for _, mode := range modes {
		rs, err := benchMode(ctx, mode, progress)
		if err != nil {
			return cli.NewCommandError("bench", err)
		}
		results = append(results, rs...)
	}

	if err := checkParity(results); err != nil {
		return cli.NewCommandError("bench", err)
	}

	if !textOutput() {
		return render(cmd, results)
	}
	return render(cmd, benchTable(results))
}

func benchMode(ctx context.Context, mode string, progress io.Writer) ([]benchResult, error) {
	rt, err := newRuntime()
	if err != nil {
		return nil, err
	}
	defer rt.Close()

	if mode == modeAccelerated {
		if !rt.ApplyAcceleration(ctx) {
			reason := rt.Facade().Unavailable()
			if reason == "" {
				reason = "no engine could be bound"
			}
			return []benchResult{
				{Mode: mode, Operation: "count_tokens", Skipped: reason},
				{Mode: mode, Operation: "check_rate_limit", Skipped: reason},
			}, nil
		}
	} else {
		rt.RemoveAcceleration(ctx)
	}

	return []benchResult{
		benchTokens(rt, mode, progress),
		benchRateLimit(rt, mode, progress),
	}, nil
}

func benchTokens(rt *turbine.Runtime, mode string, progress io.Writer) benchResult {
	text := strings.Repeat(benchSentence, benchFlags.repeat)
	res := benchResult{Mode: mode, Operation: "count_tokens", Iterations: benchFlags.tokenIterations}

	res.Tokens, _ = rt.CountTokens(text, benchFlags.model)
	res.measure(progress, func(i int) error {
		_, err := rt.CountTokens(text, benchFlags.model)
		return err
	})
	return res
}

func benchRateLimit(rt *turbine.Runtime, mode string, progress io.Writer) benchResult {
	res := benchResult{Mode: mode, Operation: "check_rate_limit", Iterations: benchFlags.rateIterations}
	res.measure(progress, func(i int) error {
		_, err := rt.CheckRateLimit(fmt.Sprintf("user_%d", i), benchFlags.limit, benchFlags.window)
		return err
	})
	return res
}

// measure calls op Iterations times and fills in the timing fields.
func (r *benchResult) measure(progress io.Writer, op func(i int) error) {
	var bar cli.ProgressReporter
	if progress != nil && r.Iterations > 0 {
		bar = cli.NewLabeledProgress(progress, r.Mode+" "+r.Operation)
		bar.Start(int64(r.Iterations))
	}

	latencies := make([]time.Duration, 0, r.Iterations)
	start := time.Now()
	for i := 0; i < r.Iterations; i++ {
		callStart := time.Now()
		if err := op(i); err != nil {
			r.Errors++
		}
		latencies = append(latencies, time.Since(callStart))
		if bar != nil {
			bar.Update(int64(i + 1))
		}
	}
	elapsed := time.Since(start)
	if bar != nil {
		bar.Finish()
	}

	r.Seconds = elapsed.Seconds()
	if r.Seconds > 0 {
		r.OpsPerSec = float64(r.Iterations) / r.Seconds
	}
	p50, p95, p99, max := calculatePercentiles(latencies)
	r.P50Ms, r.P95Ms, r.P99Ms, r.MaxMs = ms(p50), ms(p95), ms(p99), ms(max)
}

func calculatePercentiles(latencies []time.Duration) (p50, p95, p99, max time.Duration) {
	if len(latencies) == 0 {
		return
	}

	sorted := make([]time.Duration, len(latencies))
	copy(sorted, latencies)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	n := len(sorted)
	p50 = sorted[n/2]
	p95 = sorted[int(float64(n)*0.95)]
	p99 = sorted[int(float64(n)*0.99)]
	max = sorted[n-1]
	return
}

func ms(d time.Duration) float64 {
	return float64(d.Nanoseconds()) / 1e6
}

// checkParity fails when the modes disagree on the sample's token count.
func checkParity(results []benchResult) error {
	counts := map[int][]string{}
	for _, r := range results {
		if r.Operation == "count_tokens" && r.Skipped == "" {
			counts[r.Tokens] = append(counts[r.Tokens], r.Mode)
		}
	}
	if len(counts) > 1 {
		return fmt.Errorf("token counts differ between modes: %v", counts)
	}
	return nil
}

func benchTable(results []benchResult) *cli.Table {
	t := &cli.Table{Headers: []string{"MODE", "OPERATION", "ITERATIONS", "OPS/S", "P50", "P95", "P99", "MAX", "ERRORS"}}
	for _, r := range results {
		if r.Skipped != "" {
			t.Append(r.Mode, r.Operation, "skipped: "+r.Skipped, "", "", "", "", "", "")
			continue
		}
		t.Append(r.Mode, r.Operation, r.Iterations,
			fmt.Sprintf("%.0f", r.OpsPerSec),
			fmt.Sprintf("%.4fms", r.P50Ms),
			fmt.Sprintf("%.4fms", r.P95Ms),
			fmt.Sprintf("%.4fms", r.P99Ms),
			fmt.Sprintf("%.4fms", r.MaxMs),
			r.Errors)
	}
	return t
}
