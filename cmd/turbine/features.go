package main

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"fastllm-hq/turbine/pkg/cli"
	"fastllm-hq/turbine/pkg/config"
	"fastllm-hq/turbine/pkg/features"
)

var featuresCmd = &cobra.Command{
	Use:   "features",
	Short: "List and change feature flags",
	Long: `List the effective feature flags or change one in the feature file.

Effective values combine, in increasing precedence, the built-in defaults,
features.flags in the configuration, the feature file and
TURBINE_FEATURE_<NAME> environment variables.`,
}

var featuresListCmd = &cobra.Command{
	Use:   "list",
	Short: "List effective feature flags",
	Args:  cobra.NoArgs,
	RunE:  runFeaturesList,
}

var featuresSetCmd = &cobra.Command{
	Use:   "set NAME true|false",
	Short: "Set a flag in the feature file",
	Long: `Set a flag in the feature file named by features.file.

A running "turbine serve" with features.watch enabled picks the change up
without a restart.

Examples:
  turbine features set connection_pool false`,
	Args: cobra.ExactArgs(2),
	RunE: runFeaturesSet,
}

func init() {
	rootCmd.AddCommand(featuresCmd)
	featuresCmd.AddCommand(featuresListCmd)
	featuresCmd.AddCommand(featuresSetCmd)
}

func loadRegistry(cfg *config.Config) (*features.Registry, error) {
	r := features.New(cfg.Features.Flags)
	if cfg.Features.File != "" {
		if err := r.Load(cfg.Features.File); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func runFeaturesList(cmd *cobra.Command, args []string) error {
	r, err := loadRegistry(config.GetConfig())
	if err != nil {
		return cli.NewCommandError("features list", err)
	}

	status := r.Status()
	if !textOutput() {
		return render(cmd, status)
	}

	names := make([]string, 0, len(status))
	for name := range status {
		names = append(names, name)
	}
	sort.Strings(names)

	t := &cli.Table{Headers: []string{"FEATURE", "ENABLED"}}
	for _, name := range names {
		t.Append(name, status[name])
	}
	return render(cmd, t)
}

func runFeaturesSet(cmd *cobra.Command, args []string) error {
	path := config.GetConfig().Features.File
	if path == "" {
		return cli.NewConfigError("features.file", "no feature file configured")
	}

	enabled, err := strconv.ParseBool(args[1])
	if err != nil {
		return cli.NewConfigError(args[0], fmt.Sprintf("invalid value %q: must be true or false", args[1]))
	}

	flags, err := features.LoadFile(path)
	if err != nil {
		return cli.NewCommandError("features set", err)
	}
	name := strings.ToLower(strings.TrimSpace(args[0]))
	flags[name] = enabled

	if err := features.SaveFile(path, flags); err != nil {
		return cli.NewCommandError("features set", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "✓ %s=%t written to %s\n", name, enabled, path)
	return nil
}
