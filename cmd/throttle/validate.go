package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"mercator-hq/throttle/pkg/cli"
	"mercator-hq/throttle/pkg/config"
	"mercator-hq/throttle/pkg/limits"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a configuration file",
	Long: `Load and validate a configuration file, including environment overrides,
and print every limit with its bucket size and refill interval.

Examples:
  throttle validate --config throttle.yaml
  throttle validate --config throttle.yaml --output json`,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	format, err := cli.ParseOutputFormat(outputFormat)
	if err != nil {
		return err
	}

	cfg, err := config.LoadConfigWithEnvOverrides(cfgFile)
	if err != nil {
		return cli.NewConfigError(cfgFile, err)
	}

	specs, err := limits.SpecsFromConfig(cfg.Limiters)
	if err != nil {
		return cli.NewConfigError(cfgFile, err)
	}

	table := &cli.Table{Headers: []string{"LIMITER", "LIMIT", "BURST", "REFILL"}}
	for _, spec := range specs {
		for _, l := range spec.Limits {
			table.Append(spec.ID, l.Description(), strconv.FormatInt(l.Burst(), 10), l.RefillInterval().String())
		}
	}

	out := cmd.OutOrStdout()
	if format == cli.FormatText {
		fmt.Fprintf(out, "✓ %s is valid (%d limiters, storage: %s)\n\n", cfgFile, len(specs), cfg.Storage.Backend)
	}
	return cli.NewFormatter(format).FormatTo(out, table)
}
