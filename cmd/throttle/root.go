package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"mercator-hq/throttle/pkg/cli"
)

var (
	// Global flags
	cfgFile      string
	outputFormat string
)

var rootCmd = &cobra.Command{
	Use:   "throttle",
	Short: "Throttle - serialized multi-limit rate limiter",
	Long: `Throttle runs named rate limiters, each enforcing an ordered list of
token-bucket limits, and serves them over HTTP.

A hit is admitted only if every limit has a token; a rejected hit reports
the first exhausted limit and consumes nothing. An ask projects how long a
caller should wait before n more hits.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(cli.ExitCode(err))
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "throttle.yaml", "config file path")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "text", "output format: text, json, csv")
}
