package main

import (
	"context"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"fastllm-hq/turbine/pkg/cli"
	"fastllm-hq/turbine/pkg/diagnostics"
)

var healthFlags struct {
	apply bool
}

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Report engine and facade health",
	Long: `Load the engines from the configuration, check each one and print the
health report.

The command exits with status 3 when the report is not overall healthy.

Examples:
  # Human-readable report
  turbine health

  # Report with the host sites bound, as JSON
  turbine health --apply --output json`,
	RunE: runHealth,
}

func init() {
	rootCmd.AddCommand(healthCmd)
	healthCmd.Flags().BoolVar(&healthFlags.apply, "apply", false, "apply acceleration before probing")
}

func runHealth(cmd *cobra.Command, args []string) error {
	rt, err := newRuntime()
	if err != nil {
		return err
	}
	defer rt.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if healthFlags.apply {
		rt.ApplyAcceleration(ctx)
	}

	report := rt.HealthCheck(ctx)
	if textOutput() {
		err = render(cmd, healthTable(report))
		if err == nil && report.Error != "" {
			fmt.Fprintf(cmd.OutOrStdout(), "\n%s\n", report.Error)
		}
	} else {
		err = render(cmd, report)
	}
	if err != nil {
		return err
	}

	if !report.OverallHealthy {
		return cli.NewCommandError("health", cli.ErrUnhealthy)
	}
	return nil
}

func healthTable(report diagnostics.HealthReport) *cli.Table {
	names := make([]string, 0, len(report.Components))
	for name := range report.Components {
		names = append(names, name)
	}
	sort.Strings(names)

	t := &cli.Table{Headers: []string{"COMPONENT", "LOADED", "HEALTHY", "LATENCY", "ERROR"}}
	for _, name := range names {
		c := report.Components[name]
		t.Append(name, c.Loaded, c.Healthy, fmt.Sprintf("%.3fms", c.LatencyMs), c.Error)
	}
	return t
}
