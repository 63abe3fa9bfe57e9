package engine

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/flowline-dev/flowline/pkg/logging"
	"github.com/flowline-dev/flowline/pkg/pipeline"
	"github.com/flowline-dev/flowline/pkg/ports"
)

// defaultBackoffUnit is the linear back-off base: the runner sleeps
// backoffUnit × retryCount between attempts.
const defaultBackoffUnit = time.Second

// stepState wraps a step definition with the per-instance re-entrancy
// guard. Guards are never shared across pipeline clones.
type stepState struct {
	spec      pipeline.Step
	executing atomic.Bool
}

// Runner executes a single step invocation: skip/re-entrancy checks,
// validation, lifecycle hooks, per-step timeout composition, and the retry
// loop that translates handler outcomes and errors into a StepResult.
type Runner struct {
	logger      ports.Logger
	backoffUnit time.Duration
}

// RunnerOption configures a runner instance.
type RunnerOption func(*Runner)

// WithRunnerLogger injects a logger into the runner.
func WithRunnerLogger(logger ports.Logger) RunnerOption {
	return func(r *Runner) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithRunnerBackoffUnit overrides the linear back-off base. Intended for
// embedders with much faster (or slower) retry budgets than the 1s default.
func WithRunnerBackoffUnit(unit time.Duration) RunnerOption {
	return func(r *Runner) {
		if unit > 0 {
			r.backoffUnit = unit
		}
	}
}

// NewRunner constructs a step runner.
func NewRunner(opts ...RunnerOption) *Runner {
	r := &Runner{
		logger:      logging.NewNoOpLogger(),
		backoffUnit: defaultBackoffUnit,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// run performs one step invocation against the supplied context. The
// returned DomainError is non-nil only on the cancellation/timeout path,
// which the pipeline maps to the Cancelled terminal state; every other
// failure is carried inside the StepResult.
func (r *Runner) run(ctx context.Context, st *stepState, ec *pipeline.ExecutionContext) (pipeline.StepResult, *pipeline.DomainError) {
	spec := st.spec
	result := pipeline.StepResult{
		Step:      spec.Name,
		StartedAt: time.Now(),
		Input:     ec.Payload(),
	}

	if !spec.Enabled {
		result.Outcome = pipeline.OutcomeSkip
		result.Output = ec.Payload()
		return result, nil
	}

	if !st.executing.CompareAndSwap(false, true) {
		result.Outcome = pipeline.OutcomeFailed
		result.Error = pipeline.NewStateError("step is already executing", map[string]interface{}{"step": spec.Name})
		return result, nil
	}
	defer st.executing.Store(false)

	ec.SetRetryCount(0)
	start := time.Now()
	finalize := func(outcome pipeline.Outcome, derr *pipeline.DomainError) pipeline.StepResult {
		result.Outcome = outcome
		result.Error = derr
		result.Duration = time.Since(start)
		result.Retries = ec.RetryCount()
		result.Output = ec.Payload()
		return result
	}

	ok, err := spec.Handler.Validate(ctx, ec)
	if err != nil {
		ec.SetError(err)
		return finalize(pipeline.OutcomeFailed, pipeline.NewError(pipeline.ErrCodeValidation, "step validation failed", err, map[string]interface{}{"step": spec.Name})), nil
	}
	if !ok {
		return finalize(pipeline.OutcomeFailed, pipeline.NewValidationError("step validation rejected", map[string]interface{}{"step": spec.Name})), nil
	}

	if err := spec.Handler.BeforeExecute(ctx, ec); err != nil {
		r.logger.Warn(ctx, "before-execute hook failed", "step", spec.Name, "error", err)
	}

	// AfterExecute runs with the final outcome even when the run context is
	// already dead, hence the detached hook context.
	finalOutcome := pipeline.OutcomeFailed
	defer func() {
		hookCtx := context.WithoutCancel(ctx)
		if err := spec.Handler.AfterExecute(hookCtx, ec, finalOutcome); err != nil {
			r.logger.Warn(ctx, "after-execute hook failed", "step", spec.Name, "error", err)
		}
	}()

	// The child deadline is naturally capped by the pipeline-level context,
	// so min(remaining global timeout, step timeout) applies.
	execCtx := ctx
	if spec.Timeout > 0 {
		var cancel context.CancelFunc
		execCtx, cancel = context.WithTimeout(ctx, spec.Timeout)
		defer cancel()
	}

	for {
		outcome, err := spec.Handler.Execute(execCtx, ec)
		if err != nil {
			if derr := cancellationError(execCtx, err); derr != nil {
				return finalize(pipeline.OutcomeFailed, derr.WithContext(map[string]interface{}{"step": spec.Name})), derr
			}
			ec.SetError(err)
			if !spec.Handler.OnError(ctx, ec, err) {
				return finalize(pipeline.OutcomeFailed, pipeline.NewExecutionError(spec.Name, err)), nil
			}
			r.logger.Debug(ctx, "on-error hook requested retry", "step", spec.Name, "error", err)
			outcome = pipeline.OutcomeRetry
		}

		if outcome != pipeline.OutcomeRetry {
			if !outcome.Valid() {
				return finalize(pipeline.OutcomeFailed, pipeline.NewError(pipeline.ErrCodeInternal, "handler returned unknown outcome", nil, map[string]interface{}{"step": spec.Name, "outcome": string(outcome)})), nil
			}
			finalOutcome = outcome
			return finalize(outcome, nil), nil
		}

		if ec.RetryCount() >= spec.MaxRetries {
			return finalize(pipeline.OutcomeFailed, pipeline.NewError(pipeline.ErrCodeExecution, "retry budget exhausted", ec.LastError(), map[string]interface{}{"step": spec.Name, "retries": ec.RetryCount()})), nil
		}
		ec.SetRetryCount(ec.RetryCount() + 1)
		backoff := time.Duration(ec.RetryCount()) * r.backoffUnit
		r.logger.Debug(ctx, "retrying step", "step", spec.Name, "attempt", ec.RetryCount()+1, "backoff", backoff)

		timer := time.NewTimer(backoff)
		select {
		case <-timer.C:
		case <-execCtx.Done():
			timer.Stop()
			derr := cancellationError(execCtx, execCtx.Err())
			return finalize(pipeline.OutcomeFailed, derr.WithContext(map[string]interface{}{"step": spec.Name})), derr
		}
	}
}

// cancellationError classifies an error as a timeout or cancellation. It
// returns nil for ordinary step failures so they stay retryable.
func cancellationError(ctx context.Context, err error) *pipeline.DomainError {
	switch {
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded):
		return pipeline.NewTimeoutError("deadline exceeded", err)
	case errors.Is(err, context.Canceled) || errors.Is(ctx.Err(), context.Canceled):
		return pipeline.NewCancelledError("execution cancelled", err)
	}
	return nil
}
