package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/flowline-dev/flowline/internal/config"
	"github.com/flowline-dev/flowline/pkg/engine"
	"github.com/flowline-dev/flowline/pkg/events"
	"github.com/flowline-dev/flowline/pkg/logging"
	"github.com/flowline-dev/flowline/pkg/metrics"
	"github.com/flowline-dev/flowline/pkg/pipeline"
)

type runOptions struct {
	strategy  string
	steps     int
	failAt    int
	stepDelay time.Duration
	parallel  int
	timeout   time.Duration
}

func newRunCmd(root *rootFlags) *cobra.Command {
	opts := runOptions{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a synthetic pipeline to exercise an execution strategy",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDemo(cmd, root, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.strategy, "strategy", "s", "sequential", "Execution strategy: sequential, parallel, conditional or hybrid")
	cmd.Flags().IntVarP(&opts.steps, "steps", "n", 4, "Number of synthetic steps")
	cmd.Flags().IntVar(&opts.failAt, "fail-at", 0, "1-based index of a step that fails (0 disables)")
	cmd.Flags().DurationVar(&opts.stepDelay, "step-delay", 100*time.Millisecond, "Simulated work per step")
	cmd.Flags().IntVarP(&opts.parallel, "parallel", "p", 0, "Concurrency bound for parallel phases (0 = core count)")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", 0, "Global run deadline (0 = none)")

	return cmd
}

func runDemo(cmd *cobra.Command, root *rootFlags, opts runOptions) error {
	runtimeOpts := config.Defaults()
	if root.configPath != "" {
		loaded, err := config.Load(root.configPath)
		if err != nil {
			return err
		}
		runtimeOpts = *loaded
	}
	if root.logLevel != "" {
		runtimeOpts.LogLevel = root.logLevel
	}
	if opts.parallel == 0 && runtimeOpts.MaxParallel > 0 {
		opts.parallel = runtimeOpts.MaxParallel
	}
	if opts.timeout == 0 && runtimeOpts.TimeoutSeconds > 0 {
		opts.timeout = time.Duration(runtimeOpts.TimeoutSeconds) * time.Second
	}

	strategy := pipeline.Strategy(opts.strategy)
	if !strategy.Valid() {
		return fmt.Errorf("unknown strategy %q", opts.strategy)
	}

	logger, err := logging.New(logging.Options{
		Level:         runtimeOpts.LogLevel,
		HumanReadable: runtimeOpts.HumanReadable,
		Writer:        cmd.ErrOrStderr(),
		Component:     "shell",
	})
	if err != nil {
		return err
	}

	collector := metrics.NewPrometheusCollector()
	publisher := events.NewSyncPublisher(logger)

	p, err := buildDemoPipeline(strategy, opts, logger, publisher, collector)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	result, err := p.Execute(ctx, "payload-0")
	if result == nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "run %s: %s in %s (executed=%d skipped=%d failed=%d)\n",
		result.RunID, result.State, result.Duration.Round(time.Millisecond),
		result.ExecutedSteps, result.SkippedSteps, result.FailedSteps)
	for _, step := range result.StepResults {
		line := fmt.Sprintf("  %-12s %-8s %8s", step.Step, step.Outcome, step.Duration.Round(time.Millisecond))
		if step.Retries > 0 {
			line += fmt.Sprintf(" retries=%d", step.Retries)
		}
		if step.Error != nil {
			line += fmt.Sprintf(" error=%s", step.Error.Code)
		}
		fmt.Fprintln(out, line)
	}
	if result.Error != nil {
		fmt.Fprintf(out, "error: %v\n", result.Error)
	}
	return err
}

func buildDemoPipeline(strategy pipeline.Strategy, opts runOptions, logger *logging.Logger, publisher *events.SyncPublisher, collector *metrics.PrometheusCollector) (*engine.Pipeline, error) {
	builder := engine.NewBuilder("demo").
		WithDescription("synthetic pipeline for strategy experiments").
		WithStrategy(strategy).
		WithMaxParallel(opts.parallel).
		WithTimeout(opts.timeout).
		WithMetadata("origin", "flowline run").
		WithLogger(logger).
		WithEvents(publisher).
		WithMetrics(collector)

	for i := 1; i <= opts.steps; i++ {
		index := i
		handler := pipeline.HandlerFunc(func(ctx context.Context, ec *pipeline.ExecutionContext) (pipeline.Outcome, error) {
			select {
			case <-time.After(opts.stepDelay):
			case <-ctx.Done():
				return pipeline.OutcomeFailed, ctx.Err()
			}
			if index == opts.failAt {
				return pipeline.OutcomeFailed, fmt.Errorf("step %d failed as requested", index)
			}
			ec.SetPayload(fmt.Sprintf("payload-%d", index))
			return pipeline.OutcomeSuccess, nil
		})

		name := fmt.Sprintf("step-%d", index)
		switch {
		case strategy == pipeline.StrategyConditional && index%2 == 0:
			// Even steps are gated off so the demo shows skip accounting.
			builder.AddConditional(name, handler, func(*pipeline.ExecutionContext) bool { return false })
		case strategy == pipeline.StrategyParallel || (strategy == pipeline.StrategyHybrid && index <= opts.steps/2):
			builder.AddParallel(name, handler, nil)
		default:
			builder.Add(name, handler)
		}
	}

	return builder.Build()
}
