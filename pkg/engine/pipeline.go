package engine

import (
	"context"
	"sync"
	"time"

	"github.com/flowline-dev/flowline/pkg/logging"
	"github.com/flowline-dev/flowline/pkg/pipeline"
	"github.com/flowline-dev/flowline/pkg/ports"
)

// Pipeline owns an ordered list of steps and executes them under the
// configured strategy. A Pipeline refuses to start a second concurrent run;
// re-execution after a terminal state is permitted. The run-state flag is
// the only lock-protected shared field; step handlers and the execution
// context are not otherwise guarded by the engine.
type Pipeline struct {
	name        string
	description string
	settings    pipeline.Settings
	metadata    map[string]interface{}
	steps       []*stepState

	runner  *Runner
	logger  ports.Logger
	events  ports.EventPublisher
	metrics ports.MetricsCollector

	mu        sync.Mutex
	state     pipeline.RunState
	cancelRun context.CancelFunc
}

// Name returns the pipeline identifier.
func (p *Pipeline) Name() string { return p.name }

// Description returns the human-readable description.
func (p *Pipeline) Description() string { return p.description }

// Settings returns a copy of the effective execution settings.
func (p *Pipeline) Settings() pipeline.Settings { return p.settings.Clone() }

// State returns the current run state.
func (p *Pipeline) State() pipeline.RunState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Metadata returns a copy of the construction-time metadata.
func (p *Pipeline) Metadata() map[string]interface{} {
	meta := make(map[string]interface{}, len(p.metadata))
	for k, v := range p.metadata {
		meta[k] = v
	}
	return meta
}

// StepNames returns the step names in declaration order.
func (p *Pipeline) StepNames() []string {
	names := make([]string, len(p.steps))
	for i, st := range p.steps {
		names[i] = st.spec.Name
	}
	return names
}

// Execute runs the pipeline against a fresh execution context carrying the
// supplied payload.
func (p *Pipeline) Execute(ctx context.Context, payload interface{}) (*pipeline.ExecutionResult, error) {
	return p.ExecuteContext(ctx, pipeline.NewExecutionContext(payload))
}

// ExecuteContext runs the pipeline against a caller-supplied execution
// context. The returned result is always non-nil once a run has started;
// a non-nil error accompanies failed and cancelled terminal states, and a
// re-entrant call returns an INVALID_STATE error without touching run
// state.
func (p *Pipeline) ExecuteContext(ctx context.Context, ec *pipeline.ExecutionContext) (*pipeline.ExecutionResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if ec == nil {
		ec = pipeline.NewExecutionContext(nil)
	}

	p.mu.Lock()
	if p.state == pipeline.StateRunning {
		p.mu.Unlock()
		return nil, pipeline.NewStateError("pipeline is already running", map[string]interface{}{"pipeline": p.name})
	}
	p.state = pipeline.StateRunning
	runCtx, cancel := context.WithCancel(ctx)
	p.cancelRun = cancel
	p.mu.Unlock()
	defer cancel()

	// The global deadline and any caller-supplied cancellation compose into
	// one linked context: either source aborts the run.
	if p.settings.Timeout > 0 {
		var timeoutCancel context.CancelFunc
		runCtx, timeoutCancel = context.WithTimeout(runCtx, p.settings.Timeout)
		defer timeoutCancel()
	}
	runCtx = ports.WithCorrelationID(runCtx, ec.RunID())

	ec.SetTotalSteps(len(p.steps))
	start := time.Now()

	p.logger.Info(runCtx, "pipeline started",
		"pipeline", p.name,
		"strategy", p.settings.Strategy,
		"steps", len(p.steps),
	)
	p.publishEvent(runCtx, ports.EventPipelineStarted, map[string]interface{}{
		"pipeline": p.name,
		"run_id":   ec.RunID(),
		"strategy": string(p.settings.Strategy),
		"steps":    len(p.steps),
	})
	p.setGauge(runCtx, "flowline_pipeline_active_runs", 1)

	var results []pipeline.StepResult
	var derr *pipeline.DomainError
	switch p.settings.Strategy {
	case pipeline.StrategyParallel:
		results, derr = p.runParallel(runCtx, ec, p.steps)
	case pipeline.StrategyConditional:
		results, derr = p.runSequential(runCtx, ec, p.steps, true)
	case pipeline.StrategyHybrid:
		results, derr = p.runHybrid(runCtx, ec)
	default:
		results, derr = p.runSequential(runCtx, ec, p.steps, false)
	}

	state := pipeline.StateCompleted
	if derr != nil {
		switch derr.Code {
		case pipeline.ErrCodeCancelled, pipeline.ErrCodeTimeout:
			state = pipeline.StateCancelled
		default:
			state = pipeline.StateFailed
		}
	}

	result := &pipeline.ExecutionResult{
		RunID:       ec.RunID(),
		Pipeline:    p.name,
		Success:     state == pipeline.StateCompleted,
		State:       state,
		Payload:     ec.Payload(),
		Duration:    time.Since(start),
		StepResults: results,
		Error:       derr,
		Context:     ec,
	}
	result.Summarize()

	p.mu.Lock()
	p.state = state
	p.cancelRun = nil
	p.mu.Unlock()

	p.setGauge(runCtx, "flowline_pipeline_active_runs", 0)
	p.incCounter(runCtx, "flowline_pipeline_executions_total", map[string]string{
		"pipeline": p.name,
		"status":   string(state),
	})
	p.observeHistogram(runCtx, "flowline_pipeline_execution_duration_seconds", result.Duration.Seconds(), map[string]string{
		"pipeline": p.name,
	})

	switch state {
	case pipeline.StateCompleted:
		p.logger.Info(runCtx, "pipeline completed",
			"pipeline", p.name,
			"duration_ms", result.Duration.Milliseconds(),
			"executed", result.ExecutedSteps,
			"skipped", result.SkippedSteps,
		)
		p.publishEvent(runCtx, ports.EventPipelineCompleted, map[string]interface{}{
			"pipeline": p.name,
			"run_id":   ec.RunID(),
			"duration": result.Duration,
			"executed": result.ExecutedSteps,
			"skipped":  result.SkippedSteps,
		})
		return result, nil
	case pipeline.StateCancelled:
		p.logger.Warn(runCtx, "pipeline cancelled", "pipeline", p.name, "error", derr)
		p.publishEvent(runCtx, ports.EventPipelineCancelled, map[string]interface{}{
			"pipeline": p.name,
			"run_id":   ec.RunID(),
			"error":    derr,
		})
	default:
		p.logger.Error(runCtx, "pipeline failed", "pipeline", p.name, "error", derr)
		p.publishEvent(runCtx, ports.EventPipelineFailed, map[string]interface{}{
			"pipeline": p.name,
			"run_id":   ec.RunID(),
			"error":    derr,
			"failed":   result.FailedSteps,
		})
	}
	return result, derr
}

// Cancel signals the current run's cancellation. It is safe to call from
// any goroutine, before or after completion, and is idempotent.
func (p *Pipeline) Cancel() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancelRun != nil {
		p.cancelRun()
	}
}

// Validate runs each step's Validate against a throwaway context before any
// execution begins. The first failing step fails validation for the whole
// pipeline.
func (p *Pipeline) Validate(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ec := pipeline.NewExecutionContext(nil)
	for _, st := range p.steps {
		ok, err := st.spec.Handler.Validate(ctx, ec)
		if err != nil {
			return pipeline.NewError(pipeline.ErrCodeValidation, "step validation failed", err, map[string]interface{}{"step": st.spec.Name})
		}
		if !ok {
			return pipeline.NewValidationError("step validation rejected", map[string]interface{}{"step": st.spec.Name})
		}
	}
	return nil
}

// Clone returns an independent copy of the pipeline in the Idle state.
// Step definitions are copied and receive fresh re-entrancy guards; the
// ambient collaborators (logger, events, metrics) are shared.
func (p *Pipeline) Clone() *Pipeline {
	steps := make([]*stepState, len(p.steps))
	for i, st := range p.steps {
		steps[i] = &stepState{spec: st.spec.Clone()}
	}
	return &Pipeline{
		name:        p.name,
		description: p.description,
		settings:    p.settings.Clone(),
		metadata:    p.Metadata(),
		steps:       steps,
		runner:      p.runner,
		logger:      p.logger,
		events:      p.events,
		metrics:     p.metrics,
		state:       pipeline.StateIdle,
	}
}

type pipelineEvent struct {
	eventType string
	payload   interface{}
}

func (e pipelineEvent) EventType() string    { return e.eventType }
func (e pipelineEvent) Payload() interface{} { return e.payload }

func (p *Pipeline) publishEvent(ctx context.Context, eventType string, payload map[string]interface{}) {
	if p.events == nil {
		return
	}
	if err := p.events.Publish(ctx, pipelineEvent{eventType: eventType, payload: payload}); err != nil {
		p.logger.Warn(ctx, "failed to publish pipeline event", "event_type", eventType, "error", err)
	}
}

func (p *Pipeline) publishStepEvent(ctx context.Context, eventType, step string, extra map[string]interface{}) {
	if p.events == nil {
		return
	}
	payload := map[string]interface{}{
		"pipeline": p.name,
		"step":     step,
	}
	for k, v := range extra {
		payload[k] = v
	}
	p.publishEvent(ctx, eventType, payload)
}

func (p *Pipeline) recordStepMetrics(ctx context.Context, res pipeline.StepResult) {
	p.incCounter(ctx, "flowline_step_executions_total", map[string]string{
		"step":    res.Step,
		"outcome": string(res.Outcome),
	})
	p.observeHistogram(ctx, "flowline_step_execution_duration_seconds", res.Duration.Seconds(), map[string]string{
		"step": res.Step,
	})
}

func (p *Pipeline) incCounter(ctx context.Context, name string, labels map[string]string) {
	if p.metrics != nil {
		p.metrics.IncCounter(ctx, name, labels)
	}
}

func (p *Pipeline) setGauge(ctx context.Context, name string, value float64) {
	if p.metrics != nil {
		p.metrics.SetGauge(ctx, name, value, map[string]string{"pipeline": p.name})
	}
}

func (p *Pipeline) observeHistogram(ctx context.Context, name string, value float64, labels map[string]string) {
	if p.metrics != nil {
		p.metrics.ObserveHistogram(ctx, name, value, labels)
	}
}

// defaultLogger keeps construction sites terse.
func defaultLogger(logger ports.Logger) ports.Logger {
	if logger == nil {
		return logging.NewNoOpLogger()
	}
	return logger
}
