package pipeline

import (
	"context"
	"regexp"
	"sort"
	"time"
)

var stepNamePattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// StepKind enumerates the closed set of step variants. Strategy code
// switches on the kind exhaustively instead of type-testing.
type StepKind string

const (
	// KindPlain is a sequential-only unit of work.
	KindPlain StepKind = "plain"
	// KindConditional adds a predicate gating execution under the
	// Conditional strategy.
	KindConditional StepKind = "conditional"
	// KindParallel marks the step as eligible for the parallel phase of
	// the Parallel and Hybrid strategies and carries a declared
	// dependency-name set.
	KindParallel StepKind = "parallel"
)

// Predicate decides whether a conditional step runs. It is evaluated by the
// Conditional strategy before the runner is invoked.
type Predicate func(ec *ExecutionContext) bool

// Handler is the contract a step implementation supplies to the engine.
//
// Execute is the required core. Validate rejects preconditions before any
// side effect. BeforeExecute and AfterExecute are best-effort lifecycle
// hooks: their errors are logged, never fatal. OnError may convert a thrown
// error into a retry by returning true.
type Handler interface {
	Validate(ctx context.Context, ec *ExecutionContext) (bool, error)
	BeforeExecute(ctx context.Context, ec *ExecutionContext) error
	Execute(ctx context.Context, ec *ExecutionContext) (Outcome, error)
	AfterExecute(ctx context.Context, ec *ExecutionContext, outcome Outcome) error
	OnError(ctx context.Context, ec *ExecutionContext, err error) bool
}

// Step represents a single named unit of work in a pipeline. The Kind field
// plus the capability-specific Predicate/DependsOn fields form a closed
// tagged variant over {plain, conditional, parallel}.
type Step struct {
	Name        string
	Description string
	Priority    int
	MaxRetries  int
	Timeout     time.Duration
	Enabled     bool
	Kind        StepKind
	Predicate   Predicate
	DependsOn   []string
	Handler     Handler
}

// Validate ensures the step satisfies all variant invariants.
func (s Step) Validate() error {
	if s.Name == "" {
		return NewValidationError("step name is required", nil)
	}
	if !stepNamePattern.MatchString(s.Name) {
		return NewValidationError("step name must match ^[a-zA-Z0-9_-]+$", map[string]interface{}{"step": s.Name})
	}
	if s.Handler == nil {
		return NewValidationError("step handler is required", map[string]interface{}{"step": s.Name})
	}
	if s.MaxRetries < 0 {
		return NewValidationError("max retries must be non-negative", map[string]interface{}{"step": s.Name})
	}
	if s.Timeout < 0 {
		return NewValidationError("timeout must be non-negative", map[string]interface{}{"step": s.Name})
	}

	switch s.Kind {
	case KindPlain:
		if s.Predicate != nil {
			return NewValidationError("plain step cannot carry a predicate", map[string]interface{}{"step": s.Name})
		}
		if len(s.DependsOn) > 0 {
			return NewValidationError("plain step cannot declare dependencies", map[string]interface{}{"step": s.Name})
		}
	case KindConditional:
		if s.Predicate == nil {
			return NewValidationError("conditional step requires a predicate", map[string]interface{}{"step": s.Name})
		}
		if len(s.DependsOn) > 0 {
			return NewValidationError("conditional step cannot declare dependencies", map[string]interface{}{"step": s.Name})
		}
	case KindParallel:
		if s.Predicate != nil {
			return NewValidationError("parallel step cannot carry a predicate", map[string]interface{}{"step": s.Name})
		}
		for _, dep := range s.DependsOn {
			if dep == s.Name {
				return NewValidationError("step cannot depend on itself", map[string]interface{}{"step": s.Name})
			}
		}
	default:
		return NewValidationError("unknown step kind", map[string]interface{}{"step": s.Name, "kind": string(s.Kind)})
	}

	return nil
}

// HasDependency returns true if the step declares the provided name.
func (s Step) HasDependency(name string) bool {
	for _, dep := range s.DependsOn {
		if dep == name {
			return true
		}
	}
	return false
}

// SortedDependencies returns a sorted copy of the declared dependency set.
func (s Step) SortedDependencies() []string {
	deps := append([]string(nil), s.DependsOn...)
	sort.Strings(deps)
	return deps
}

// Clone returns a defensive copy of the step definition. The handler and
// predicate are shared by reference.
func (s Step) Clone() Step {
	clone := s
	clone.DependsOn = append([]string(nil), s.DependsOn...)
	return clone
}

// BaseHandler provides no-op lifecycle hooks so implementations only need
// to supply Execute. Embed it and override what you need.
type BaseHandler struct{}

// Validate accepts the step unconditionally.
func (BaseHandler) Validate(context.Context, *ExecutionContext) (bool, error) { return true, nil }

// BeforeExecute does nothing.
func (BaseHandler) BeforeExecute(context.Context, *ExecutionContext) error { return nil }

// AfterExecute does nothing.
func (BaseHandler) AfterExecute(context.Context, *ExecutionContext, Outcome) error { return nil }

// OnError declines to retry.
func (BaseHandler) OnError(context.Context, *ExecutionContext, error) bool { return false }

// HandlerFunc adapts a bare execute function into a Handler with default
// lifecycle hooks.
type HandlerFunc func(ctx context.Context, ec *ExecutionContext) (Outcome, error)

// Validate accepts the step unconditionally.
func (HandlerFunc) Validate(context.Context, *ExecutionContext) (bool, error) { return true, nil }

// BeforeExecute does nothing.
func (HandlerFunc) BeforeExecute(context.Context, *ExecutionContext) error { return nil }

// Execute invokes the wrapped function.
func (f HandlerFunc) Execute(ctx context.Context, ec *ExecutionContext) (Outcome, error) {
	return f(ctx, ec)
}

// AfterExecute does nothing.
func (HandlerFunc) AfterExecute(context.Context, *ExecutionContext, Outcome) error { return nil }

// OnError declines to retry.
func (HandlerFunc) OnError(context.Context, *ExecutionContext, error) bool { return false }
