package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"mercator-hq/throttle/pkg/cli"
	"mercator-hq/throttle/pkg/limits/ratelimit"
)

var benchFlags struct {
	limits       []string
	rps          float64
	burst        int
	workers      int
	duration     time.Duration
	hitTimeout   time.Duration
	showProgress bool
}

var benchCmd = &cobra.Command{
	Use:   "bench",
	Short: "Offer paced load to an in-process limiter",
	Long: `Start a limiter from --limit rules and offer it load from --workers
goroutines for --duration, paced at --rps in total. Prints how many hits
were offered, admitted, and rejected.

With --rps 0 the workers hit the limiter as fast as it replies, which
measures the limiter's own throughput.

Examples:
  # 200 req/s offered against 50/s and 1000/min
  throttle bench --limit 50/s --limit 1000/m --rps 200 --duration 10s

  # Unpaced throughput with 8 workers
  throttle bench --limit 1000000/s --rps 0 --workers 8`,
	RunE: runBenchCmd,
}

func init() {
	rootCmd.AddCommand(benchCmd)

	benchCmd.Flags().StringArrayVarP(&benchFlags.limits, "limit", "l", []string{"10/s"}, "limit rule, repeatable (e.g. 10/s, 100/hour)")
	benchCmd.Flags().Float64Var(&benchFlags.rps, "rps", 100, "offered requests per second across all workers (0 = unpaced)")
	benchCmd.Flags().IntVar(&benchFlags.burst, "burst", 1, "pacer burst")
	benchCmd.Flags().IntVarP(&benchFlags.workers, "workers", "w", 4, "concurrent workers")
	benchCmd.Flags().DurationVarP(&benchFlags.duration, "duration", "d", 5*time.Second, "test duration")
	benchCmd.Flags().DurationVar(&benchFlags.hitTimeout, "hit-timeout", time.Second, "per-hit timeout")
	benchCmd.Flags().BoolVar(&benchFlags.showProgress, "progress", true, "show live progress on stderr")
}

// benchOptions configures runLoad.
type benchOptions struct {
	RPS        float64
	Burst      int
	Workers    int
	Duration   time.Duration
	HitTimeout time.Duration
	Progress   cli.ProgressReporter
}

// benchResult summarizes a load run.
type benchResult struct {
	Offered  int64
	Admitted int64
	Rejected int64
	Errors   int64
	Elapsed  time.Duration
}

func runBenchCmd(cmd *cobra.Command, args []string) error {
	format, err := cli.ParseOutputFormat(outputFormat)
	if err != nil {
		return err
	}
	if benchFlags.workers < 1 {
		return fmt.Errorf("--workers must be at least 1")
	}
	if benchFlags.duration <= 0 {
		return fmt.Errorf("--duration must be positive")
	}

	rules, err := ratelimit.ParseLimits(benchFlags.limits)
	if err != nil {
		return err
	}
	limiter, err := ratelimit.New(rules, ratelimit.WithName("bench"))
	if err != nil {
		return cli.NewCommandError("bench", err)
	}
	defer limiter.Stop()

	ctx, stop := cli.SetupSignalHandler()
	defer stop()

	opts := benchOptions{
		RPS:        benchFlags.rps,
		Burst:      benchFlags.burst,
		Workers:    benchFlags.workers,
		Duration:   benchFlags.duration,
		HitTimeout: benchFlags.hitTimeout,
	}
	if benchFlags.showProgress && format == cli.FormatText {
		opts.Progress = cli.NewProgressReporter(cmd.ErrOrStderr())
	}

	out := cmd.OutOrStdout()
	if format == cli.FormatText {
		fmt.Fprintf(out, "Limits:   %s\n", describeLimits(rules))
		fmt.Fprintf(out, "Offered:  %s across %d workers for %s\n\n", describeRate(opts.RPS), opts.Workers, opts.Duration)
	}

	result := runLoad(ctx, limiter, opts)
	return printBenchResult(out, format, result)
}

// runLoad offers paced hits to h until opts.Duration elapses or ctx is
// cancelled.
func runLoad(ctx context.Context, h *ratelimit.Limiter, opts benchOptions) benchResult {
	limit := rate.Inf
	if opts.RPS > 0 {
		limit = rate.Limit(opts.RPS)
	}
	burst := max(opts.Burst, 1)
	pacer := rate.NewLimiter(limit, burst)

	hitTimeout := opts.HitTimeout
	if hitTimeout <= 0 {
		hitTimeout = time.Second
	}

	ctx, cancel := context.WithTimeout(ctx, opts.Duration)
	defer cancel()

	var offered, admitted, rejected, failed atomic.Int64

	if opts.Progress != nil {
		expected := int64(math.Round(opts.RPS * opts.Duration.Seconds()))
		opts.Progress.Start(expected)
		stopProgress := make(chan struct{})
		progressDone := make(chan struct{})
		go func() {
			defer close(progressDone)
			ticker := time.NewTicker(100 * time.Millisecond)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					opts.Progress.Update(offered.Load(), admitted.Load())
				case <-stopProgress:
					return
				}
			}
		}()
		defer func() {
			close(stopProgress)
			<-progressDone
			opts.Progress.Update(offered.Load(), admitted.Load())
			opts.Progress.Finish()
		}()
	}

	start := time.Now()
	var wg sync.WaitGroup
	for i := 0; i < max(opts.Workers, 1); i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				if err := pacer.Wait(ctx); err != nil {
					return
				}
				if ctx.Err() != nil {
					return
				}

				offered.Add(1)
				err := ratelimit.HitTimeout(h, hitTimeout)
				switch {
				case err == nil:
					admitted.Add(1)
				case errors.Is(err, ratelimit.ErrLimited):
					rejected.Add(1)
				default:
					failed.Add(1)
				}
			}
		}()
	}
	wg.Wait()

	return benchResult{
		Offered:  offered.Load(),
		Admitted: admitted.Load(),
		Rejected: rejected.Load(),
		Errors:   failed.Load(),
		Elapsed:  time.Since(start),
	}
}

func printBenchResult(w io.Writer, format cli.OutputFormat, r benchResult) error {
	admitRate := 0.0
	if secs := r.Elapsed.Seconds(); secs > 0 {
		admitRate = float64(r.Admitted) / secs
	}

	table := &cli.Table{Headers: []string{"OFFERED", "ADMITTED", "REJECTED", "ERRORS", "ELAPSED", "ADMITTED_PER_SEC"}}
	table.Append(
		strconv.FormatInt(r.Offered, 10),
		strconv.FormatInt(r.Admitted, 10),
		strconv.FormatInt(r.Rejected, 10),
		strconv.FormatInt(r.Errors, 10),
		r.Elapsed.Round(time.Millisecond).String(),
		strconv.FormatFloat(admitRate, 'f', 1, 64),
	)
	return cli.NewFormatter(format).FormatTo(w, table)
}

func describeLimits(rules []ratelimit.Limit) string {
	s := ""
	for i, l := range rules {
		if i > 0 {
			s += ", "
		}
		s += l.Description()
	}
	return s
}

func describeRate(rps float64) string {
	if rps <= 0 {
		return "unpaced"
	}
	return strconv.FormatFloat(rps, 'f', -1, 64) + " req/s"
}
