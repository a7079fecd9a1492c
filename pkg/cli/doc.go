/*
Package cli provides command-line helpers for the turbine command.

Output Formatting:

Command results are rendered as text, JSON or YAML:

	formatter := cli.NewFormatter(cli.FormatJSON)
	if err := formatter.FormatTo(os.Stdout, report); err != nil {
		return err
	}

Text output renders a Table as aligned columns and anything else with %v.

Benchmark Progress:

	progress := cli.NewProgressReporter(os.Stderr)
	progress.Start(iterations)
	for i := int64(1); i <= iterations; i++ {
		progress.Update(i)
	}
	progress.Finish()

Exit Codes:

ExitCode maps a command error to the process exit status: configuration
errors exit with 2 and unhealthy reports with 3.

Signal Handling:

	ctx, stop := cli.SetupSignalHandler(context.Background())
	defer stop()
*/
package cli
