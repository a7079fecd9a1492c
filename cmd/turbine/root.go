package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"fastllm-hq/turbine/pkg/cli"
	"fastllm-hq/turbine/pkg/config"
	"fastllm-hq/turbine/pkg/telemetry/logging"
	"fastllm-hq/turbine/pkg/turbine"
)

var (
	// Global flags
	cfgFile   string
	logLevel  string
	outputFmt string

	// appLogger is the process logger installed by setup.
	appLogger *logging.Logger
)

var rootCmd = &cobra.Command{
	Use:   "turbine",
	Short: "Turbine - drop-in acceleration for token counting, rate limiting and pooling",
	Long: `Turbine swaps the host's token counting, rate limiting and connection
handling for faster engines with identical results, and reports on them.

Engines that fail to load are skipped and the host keeps its own behaviour.
Every engine can be switched off with a feature flag.`,
	Version:           Version,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
}

// Execute runs the root command and exits with a status derived from the
// returned error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.ExitCode(err))
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path (defaults and TURBINE_* environment when empty)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVarP(&outputFmt, "output", "o", "text", "output format: text, json, yaml")
}

// setup loads the configuration and installs the process logger before any
// subcommand runs.
func setup(cmd *cobra.Command, args []string) error {
	if _, err := cli.ParseFormat(outputFmt); err != nil {
		return err
	}

	// Every invocation reads the file named by --config, including repeated
	// ones in the same process.
	cfg, err := config.LoadConfigWithEnvOverrides(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if logLevel != "" {
		cfg.Telemetry.Logging.Level = logLevel
	}

	logger, err := logging.New(logging.FromConfig(cfg.Telemetry.Logging, cmd.ErrOrStderr()))
	if err != nil {
		return cli.NewConfigError("telemetry.logging", err.Error())
	}
	config.SetConfig(cfg)
	logger.SetDefault()
	appLogger = logger
	return nil
}

// newRuntime builds a runtime from the loaded configuration.
func newRuntime(opts ...turbine.Option) (*turbine.Runtime, error) {
	opts = append([]turbine.Option{turbine.WithLogger(slog.Default())}, opts...)
	return turbine.New(config.GetConfig(), opts...)
}

// render writes v to the command's output in the selected format.
func render(cmd *cobra.Command, v interface{}) error {
	format, err := cli.ParseFormat(outputFmt)
	if err != nil {
		return err
	}
	return cli.NewFormatter(format).FormatTo(cmd.OutOrStdout(), v)
}

// textOutput reports whether the human-readable format is selected.
func textOutput() bool {
	format, _ := cli.ParseFormat(outputFmt)
	return format == cli.FormatText
}
