package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/KanavDutta/tokenfence/core"
	"github.com/KanavDutta/tokenfence/pkg/tokenfence"
	"github.com/KanavDutta/tokenfence/throttle"
)

var demoFlags struct {
	rate     int64
	interval string
	calls    int
	pace     float64
	work     time.Duration
}

var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "Run paced calls through a limiter and print every window",
	Long: `Run a stream of calls through a single limiter and print each call's
outcome and every finished window's stat.

Examples:
  # 50 calls at 25/s against 10 tokens per second
  tokenfence demo --rate 10 --interval second --calls 50 --pace 25

  # Simulate 20ms of work per granted call
  tokenfence demo --rate 5 --interval 500ms --calls 20 --pace 20 --work 20ms`,
	RunE: func(cmd *cobra.Command, args []string) error {
		logger, err := newLogger(cmd.ErrOrStderr(), logLevel, logFormat)
		if err != nil {
			return err
		}
		return runDemo(cmd.Context(), cmd.OutOrStdout(), logger)
	},
}

func init() {
	rootCmd.AddCommand(demoCmd)

	demoCmd.Flags().Int64Var(&demoFlags.rate, "rate", 10, "tokens per interval")
	demoCmd.Flags().StringVar(&demoFlags.interval, "interval", string(core.Second), "interval (second, minute, hour, day, milliseconds or a duration)")
	demoCmd.Flags().IntVar(&demoFlags.calls, "calls", 50, "number of calls to make")
	demoCmd.Flags().Float64Var(&demoFlags.pace, "pace", 25, "calls per second")
	demoCmd.Flags().DurationVar(&demoFlags.work, "work", 0, "simulated work per granted call")
}

func runDemo(ctx context.Context, out io.Writer, logger *slog.Logger) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if demoFlags.pace <= 0 {
		return fmt.Errorf("pace must be positive, got %v", demoFlags.pace)
	}

	limiter, err := tokenfence.New(demoFlags.rate, core.Interval(demoFlags.interval),
		tokenfence.WithLogger(logger),
		tokenfence.WithStatCallback(func(s tokenfence.Stat) {
			fmt.Fprintf(out, "window: accepted=%d incoming=%d average_time_ms=%d limit=%d\n",
				s.Accepted, s.Incoming, s.AverageTimeMs, s.Limit)
		}),
	)
	if err != nil {
		return err
	}

	th, err := throttle.New(limiter,
		throttle.WithName("demo"),
		throttle.WithLogger(func() *slog.Logger { return logger }),
	)
	if err != nil {
		return err
	}

	pacer := rate.NewLimiter(rate.Limit(demoFlags.pace), 1)

	var granted, throttled int
	for i := 1; i <= demoFlags.calls; i++ {
		if err := pacer.Wait(ctx); err != nil {
			return err
		}

		err := th.Do(ctx, func(context.Context) error {
			if demoFlags.work > 0 {
				time.Sleep(demoFlags.work)
			}
			return nil
		})

		switch {
		case err == nil:
			granted++
			fmt.Fprintf(out, "call %d: granted\n", i)
		case errors.Is(err, throttle.ErrThrottled):
			throttled++
			fmt.Fprintf(out, "call %d: throttled\n", i)
		default:
			return err
		}
	}

	fmt.Fprintf(out, "done: granted=%d throttled=%d\n", granted, throttled)
	return nil
}
