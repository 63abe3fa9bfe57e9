package pipeline

import "time"

// RunState is the lifecycle state of a pipeline run.
type RunState string

const (
	StateIdle      RunState = "idle"
	StateRunning   RunState = "running"
	StateCompleted RunState = "completed"
	StateCancelled RunState = "cancelled"
	StateFailed    RunState = "failed"
)

// Terminal reports whether the state ends a run.
func (s RunState) Terminal() bool {
	switch s {
	case StateCompleted, StateCancelled, StateFailed:
		return true
	}
	return false
}

func (s RunState) String() string {
	return string(s)
}

// StepResult captures the outcome of one step invocation. It is immutable
// once produced.
type StepResult struct {
	Step      string
	Outcome   Outcome
	Duration  time.Duration
	Retries   int
	Input     interface{}
	Output    interface{}
	Error     *DomainError
	StartedAt time.Time
}

// IsSuccess returns true when the step completed successfully, including an
// early Stop, which ends the run without being an error.
func (r StepResult) IsSuccess() bool {
	return r.Outcome == OutcomeSuccess || r.Outcome == OutcomeStop
}

// IsFailure returns true when the step failed.
func (r StepResult) IsFailure() bool {
	return r.Outcome == OutcomeFailed
}

// IsSkipped returns true when the step was skipped.
func (r StepResult) IsSkipped() bool {
	return r.Outcome == OutcomeSkip
}

// ExecutionResult aggregates a whole run. It is created once per Execute
// call and not mutated afterward; it always carries enough detail to
// reconstruct what happened without consulting logs.
type ExecutionResult struct {
	RunID    string
	Pipeline string
	Success  bool
	State    RunState
	Payload  interface{}
	Duration time.Duration

	ExecutedSteps int
	SkippedSteps  int
	FailedSteps   int

	StepResults []StepResult
	Error       *DomainError
	Context     *ExecutionContext
}

// Summarize fills the per-outcome counters from the step results.
// executed + skipped + failed equals the number of steps visited.
func (r *ExecutionResult) Summarize() {
	r.ExecutedSteps = 0
	r.SkippedSteps = 0
	r.FailedSteps = 0
	for _, step := range r.StepResults {
		switch {
		case step.IsSkipped():
			r.SkippedSteps++
		case step.IsFailure():
			r.FailedSteps++
		default:
			r.ExecutedSteps++
		}
	}
}
