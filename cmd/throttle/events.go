package main

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"mercator-hq/throttle/pkg/cli"
	"mercator-hq/throttle/pkg/config"
	"mercator-hq/throttle/pkg/limits/storage"
)

var eventsFlags struct {
	limiter  string
	rejected bool
	since    time.Duration
	limit    int
	counts   bool
}

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Query the decision event log",
	Long: `Read recorded decisions from the configured storage backend.

Only persistent backends (sqlite, redis) can be queried from a separate
process; the memory backend lives inside the running server.

Examples:
  # Last 100 decisions
  throttle events

  # Rejections for one limiter in the past hour
  throttle events --limiter api --rejected --since 1h

  # Aggregate counts
  throttle events --limiter api --counts --output json`,
	RunE: runEvents,
}

func init() {
	rootCmd.AddCommand(eventsCmd)

	eventsCmd.Flags().StringVar(&eventsFlags.limiter, "limiter", "", "only this limiter")
	eventsCmd.Flags().BoolVar(&eventsFlags.rejected, "rejected", false, "only rejected hits")
	eventsCmd.Flags().DurationVar(&eventsFlags.since, "since", 0, "only events newer than this (e.g. 1h)")
	eventsCmd.Flags().IntVarP(&eventsFlags.limit, "limit", "n", storage.DefaultQueryLimit, "maximum events")
	eventsCmd.Flags().BoolVar(&eventsFlags.counts, "counts", false, "print aggregate counts instead of events (requires --limiter)")
}

func runEvents(cmd *cobra.Command, args []string) error {
	format, err := cli.ParseOutputFormat(outputFormat)
	if err != nil {
		return err
	}

	cfg, err := config.LoadConfigWithEnvOverrides(cfgFile)
	if err != nil {
		return cli.NewConfigError(cfgFile, err)
	}
	switch cfg.Storage.Backend {
	case "sqlite", "redis":
	default:
		return cli.NewCommandError("events", fmt.Errorf("storage backend %q cannot be queried offline; use sqlite or redis", cfg.Storage.Backend))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	backend, err := storage.Open(ctx, cfg.Storage)
	if err != nil {
		return cli.NewCommandError("events", err)
	}
	defer backend.Close()

	var table *cli.Table
	if eventsFlags.counts {
		if eventsFlags.limiter == "" {
			return fmt.Errorf("--counts requires --limiter")
		}
		table, err = countsTable(ctx, backend, eventsFlags.limiter)
	} else {
		filter := storage.Filter{
			Limiter:      eventsFlags.limiter,
			RejectedOnly: eventsFlags.rejected,
			Limit:        eventsFlags.limit,
		}
		if eventsFlags.since > 0 {
			filter.Since = time.Now().Add(-eventsFlags.since)
		}
		table, err = eventsTable(ctx, backend, filter)
	}
	if err != nil {
		return cli.NewCommandError("events", err)
	}

	return cli.NewFormatter(format).FormatTo(cmd.OutOrStdout(), table)
}

func eventsTable(ctx context.Context, backend storage.Backend, filter storage.Filter) (*cli.Table, error) {
	events, err := backend.Query(ctx, filter)
	if err != nil {
		return nil, err
	}

	table := &cli.Table{Headers: []string{"TIME", "LIMITER", "OP", "ALLOWED", "LIMIT", "N", "WAIT"}}
	for _, e := range events {
		n, wait := "", ""
		if e.Op == "ask" {
			n = strconv.FormatInt(e.N, 10)
			wait = e.Wait.String()
		}
		table.Append(
			e.At.UTC().Format(time.RFC3339Nano),
			e.Limiter,
			e.Op,
			strconv.FormatBool(e.Allowed),
			e.Limit,
			n,
			wait,
		)
	}
	return table, nil
}

func countsTable(ctx context.Context, backend storage.Backend, limiter string) (*cli.Table, error) {
	counts, err := backend.Counts(ctx, limiter)
	if err != nil {
		return nil, err
	}

	table := &cli.Table{Headers: []string{"LIMITER", "ALLOWED", "REJECTED", "ASKS"}}
	table.Append(
		limiter,
		strconv.FormatInt(counts.Allowed, 10),
		strconv.FormatInt(counts.Rejected, 10),
		strconv.FormatInt(counts.Asks, 10),
	)
	return table, nil
}
