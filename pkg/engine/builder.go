package engine

import (
	"time"

	"github.com/flowline-dev/flowline/pkg/pipeline"
	"github.com/flowline-dev/flowline/pkg/ports"
)

// Builder assembles an immutable Pipeline: steps (optionally wrapped with a
// conditional predicate or a parallel-dependency tag), strategy, global
// timeout, concurrency cap, metadata and ambient collaborators. It never
// executes anything and has no concurrency concerns of its own; it is a
// distinct, shorter-lived object than the Pipeline it produces.
type Builder struct {
	name        string
	description string
	settings    pipeline.Settings
	metadata    map[string]interface{}
	steps       []pipeline.Step

	logger      ports.Logger
	events      ports.EventPublisher
	metrics     ports.MetricsCollector
	runnerOpts  []RunnerOption
	firstErr    error
}

// StepOption tunes a step definition at assembly time.
type StepOption func(*pipeline.Step)

// WithStepDescription sets the step description.
func WithStepDescription(description string) StepOption {
	return func(s *pipeline.Step) { s.Description = description }
}

// WithStepPriority sets the informational priority.
func WithStepPriority(priority int) StepOption {
	return func(s *pipeline.Step) { s.Priority = priority }
}

// WithStepRetries sets the retry budget.
func WithStepRetries(maxRetries int) StepOption {
	return func(s *pipeline.Step) { s.MaxRetries = maxRetries }
}

// WithStepTimeout sets the per-step timeout; zero means none.
func WithStepTimeout(timeout time.Duration) StepOption {
	return func(s *pipeline.Step) { s.Timeout = timeout }
}

// StepDisabled marks the step so the runner skips it without counting a
// failure.
func StepDisabled() StepOption {
	return func(s *pipeline.Step) { s.Enabled = false }
}

// NewBuilder starts assembly of a named pipeline.
func NewBuilder(name string) *Builder {
	return &Builder{
		name:     name,
		metadata: make(map[string]interface{}),
	}
}

// WithDescription sets the pipeline description.
func (b *Builder) WithDescription(description string) *Builder {
	b.description = description
	return b
}

// WithStrategy selects the dispatch algorithm for every run of the built
// pipeline.
func (b *Builder) WithStrategy(strategy pipeline.Strategy) *Builder {
	b.settings.Strategy = strategy
	return b
}

// WithTimeout sets the global run deadline; zero means none.
func (b *Builder) WithTimeout(timeout time.Duration) *Builder {
	b.settings.Timeout = timeout
	return b
}

// WithMaxParallel bounds concurrency under the Parallel and Hybrid
// strategies; zero or less falls back to the host's core count.
func (b *Builder) WithMaxParallel(maxParallel int) *Builder {
	b.settings.MaxParallel = maxParallel
	return b
}

// WithMetadata attaches arbitrary construction-time metadata.
func (b *Builder) WithMetadata(key string, value interface{}) *Builder {
	b.metadata[key] = value
	return b
}

// WithLogger injects a structured logger.
func (b *Builder) WithLogger(logger ports.Logger) *Builder {
	b.logger = logger
	return b
}

// WithEvents injects the lifecycle event publisher.
func (b *Builder) WithEvents(events ports.EventPublisher) *Builder {
	b.events = events
	return b
}

// WithMetrics injects the metrics collector.
func (b *Builder) WithMetrics(metrics ports.MetricsCollector) *Builder {
	b.metrics = metrics
	return b
}

// WithRunnerOptions forwards options to the step runner, e.g. a custom
// back-off unit.
func (b *Builder) WithRunnerOptions(opts ...RunnerOption) *Builder {
	b.runnerOpts = append(b.runnerOpts, opts...)
	return b
}

// Add appends a plain sequential step.
func (b *Builder) Add(name string, handler pipeline.Handler, opts ...StepOption) *Builder {
	return b.AddStep(newStep(name, pipeline.KindPlain, handler, opts...))
}

// AddConditional appends a step gated by the supplied predicate under the
// Conditional strategy.
func (b *Builder) AddConditional(name string, handler pipeline.Handler, predicate pipeline.Predicate, opts ...StepOption) *Builder {
	step := newStep(name, pipeline.KindConditional, handler, opts...)
	step.Predicate = predicate
	return b.AddStep(step)
}

// AddParallel appends a step eligible for the parallel phase, carrying the
// declared dependency-name set.
func (b *Builder) AddParallel(name string, handler pipeline.Handler, dependsOn []string, opts ...StepOption) *Builder {
	step := newStep(name, pipeline.KindParallel, handler, opts...)
	step.DependsOn = append([]string(nil), dependsOn...)
	return b.AddStep(step)
}

// AddStep appends a fully specified step definition.
func (b *Builder) AddStep(step pipeline.Step) *Builder {
	if b.firstErr == nil {
		if err := step.Validate(); err != nil {
			b.firstErr = err
			return b
		}
	}
	b.steps = append(b.steps, step)
	return b
}

// Build validates the assembled definition and produces an immutable
// Pipeline in the Idle state.
func (b *Builder) Build() (*Pipeline, error) {
	if b.firstErr != nil {
		return nil, b.firstErr
	}
	if b.name == "" {
		return nil, pipeline.NewValidationError("pipeline name is required", nil)
	}
	if len(b.steps) == 0 {
		return nil, pipeline.NewValidationError("pipeline requires at least one step", map[string]interface{}{"pipeline": b.name})
	}
	if err := b.settings.Validate(); err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(b.steps))
	for _, step := range b.steps {
		if _, ok := seen[step.Name]; ok {
			return nil, pipeline.NewDuplicateError(step.Name)
		}
		seen[step.Name] = struct{}{}
	}
	for _, step := range b.steps {
		for _, dep := range step.DependsOn {
			if _, ok := seen[dep]; !ok {
				return nil, pipeline.NewValidationError("dependency not found", map[string]interface{}{"step": step.Name, "missing_dependency": dep})
			}
		}
	}

	logger := defaultLogger(b.logger)
	runnerOpts := append([]RunnerOption{WithRunnerLogger(logger)}, b.runnerOpts...)

	steps := make([]*stepState, len(b.steps))
	for i, step := range b.steps {
		steps[i] = &stepState{spec: step.Clone()}
	}

	metadata := make(map[string]interface{}, len(b.metadata))
	for k, v := range b.metadata {
		metadata[k] = v
	}

	return &Pipeline{
		name:        b.name,
		description: b.description,
		settings:    b.settings.ApplyDefaults(),
		metadata:    metadata,
		steps:       steps,
		runner:      NewRunner(runnerOpts...),
		logger:      logger,
		events:      b.events,
		metrics:     b.metrics,
		state:       pipeline.StateIdle,
	}, nil
}

func newStep(name string, kind pipeline.StepKind, handler pipeline.Handler, opts ...StepOption) pipeline.Step {
	step := pipeline.Step{
		Name:    name,
		Kind:    kind,
		Enabled: true,
		Handler: handler,
	}
	for _, opt := range opts {
		opt(&step)
	}
	return step
}
