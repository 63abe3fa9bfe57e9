package engine

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/flowline-dev/flowline/pkg/pipeline"
	"github.com/flowline-dev/flowline/pkg/ports"
)

// runSequential iterates steps in declaration order. With gate set (the
// Conditional strategy) conditional steps whose predicate evaluates false
// are recorded as Skip without invoking the runner. A Failed outcome aborts
// the run, Stop ends it early as a success, Skip continues; the combined
// cancellation is checked at every step boundary.
func (p *Pipeline) runSequential(ctx context.Context, ec *pipeline.ExecutionContext, steps []*stepState, gate bool) ([]pipeline.StepResult, *pipeline.DomainError) {
	results := make([]pipeline.StepResult, 0, len(steps))

	for i, st := range steps {
		if err := ctx.Err(); err != nil {
			return results, cancellationError(ctx, err)
		}
		ec.SetStepIndex(i)

		if gate && st.spec.Kind == pipeline.KindConditional && !st.spec.Predicate(ec) {
			res := pipeline.StepResult{
				Step:      st.spec.Name,
				Outcome:   pipeline.OutcomeSkip,
				StartedAt: time.Now(),
				Input:     ec.Payload(),
				Output:    ec.Payload(),
			}
			results = append(results, res)
			p.logger.Debug(ctx, "step gated off by predicate", "step", st.spec.Name)
			p.publishStepEvent(ctx, ports.EventStepSkipped, st.spec.Name, map[string]interface{}{"reason": "predicate"})
			continue
		}

		p.publishStepEvent(ctx, ports.EventStepStarted, st.spec.Name, nil)
		res, derr := p.runner.run(ctx, st, ec)
		results = append(results, res)
		p.recordStepMetrics(ctx, res)

		if derr != nil {
			p.publishStepEvent(ctx, ports.EventStepFailed, st.spec.Name, map[string]interface{}{"error": derr})
			return results, derr
		}

		switch res.Outcome {
		case pipeline.OutcomeFailed:
			p.publishStepEvent(ctx, ports.EventStepFailed, st.spec.Name, map[string]interface{}{"error": res.Error})
			failure := res.Error
			if failure == nil {
				failure = pipeline.NewExecutionError(st.spec.Name, nil)
			}
			return results, failure
		case pipeline.OutcomeSkip:
			p.publishStepEvent(ctx, ports.EventStepSkipped, st.spec.Name, nil)
		case pipeline.OutcomeStop:
			p.publishStepEvent(ctx, ports.EventStepCompleted, st.spec.Name, map[string]interface{}{"stopped": true})
			p.logger.Info(ctx, "step requested early stop", "step", st.spec.Name)
			return results, nil
		default:
			p.publishStepEvent(ctx, ports.EventStepCompleted, st.spec.Name, map[string]interface{}{"duration": res.Duration})
		}
	}

	return results, nil
}

// runParallel dispatches every step concurrently, bounded by a weighted
// semaphore sized to MaxParallel. Each branch runs against its own context
// clone. One branch's failure does not cancel in-flight siblings: failures
// are observed only at fan-in, trading prompt abort for deterministic side
// effects. Results are collected in declaration order regardless of
// completion order.
func (p *Pipeline) runParallel(ctx context.Context, ec *pipeline.ExecutionContext, steps []*stepState) ([]pipeline.StepResult, *pipeline.DomainError) {
	results := make([]pipeline.StepResult, len(steps))
	aborts := make([]*pipeline.DomainError, len(steps))

	sem := semaphore.NewWeighted(int64(p.settings.MaxParallel))
	var wg sync.WaitGroup

	for i, st := range steps {
		branch := ec.Clone()
		wg.Add(1)
		go func(index int, st *stepState, branch *pipeline.ExecutionContext) {
			defer wg.Done()

			// A branch that never acquires the semaphore was never
			// dispatched: it records Skip, not Failed, so failure counts
			// only cover steps that actually started.
			if err := sem.Acquire(ctx, 1); err != nil {
				derr := cancellationError(ctx, err)
				aborts[index] = derr
				results[index] = pipeline.StepResult{
					Step:      st.spec.Name,
					Outcome:   pipeline.OutcomeSkip,
					StartedAt: time.Now(),
					Input:     branch.Payload(),
					Output:    branch.Payload(),
					Error:     derr.WithContext(map[string]interface{}{"step": st.spec.Name}),
				}
				return
			}
			defer sem.Release(1)

			p.publishStepEvent(ctx, ports.EventStepStarted, st.spec.Name, nil)
			res, derr := p.runner.run(ctx, st, branch)
			results[index] = res
			aborts[index] = derr
			p.recordStepMetrics(ctx, res)

			switch {
			case derr != nil || res.IsFailure():
				p.publishStepEvent(ctx, ports.EventStepFailed, st.spec.Name, map[string]interface{}{"error": res.Error})
			case res.IsSkipped():
				p.publishStepEvent(ctx, ports.EventStepSkipped, st.spec.Name, nil)
			default:
				p.publishStepEvent(ctx, ports.EventStepCompleted, st.spec.Name, map[string]interface{}{"duration": res.Duration})
			}
		}(i, st, branch)
	}

	wg.Wait()

	var failure *pipeline.DomainError
	for i := range results {
		if aborts[i] != nil {
			// Cancellation/timeout dominates: the run terminates Cancelled.
			return results, aborts[i]
		}
		if failure == nil && results[i].IsFailure() {
			failure = results[i].Error
			if failure == nil {
				failure = pipeline.NewExecutionError(results[i].Step, nil)
			}
		}
	}
	return results, failure
}

// runHybrid partitions steps into the parallel-kind subset and the
// remainder: the subset runs first under the parallel algorithm, then the
// remainder runs sequentially against a fresh context clone. Results are
// concatenated in {parallel-phase order, then sequential-phase order}. The
// sequential clone's final payload is written back so the run's result
// reflects it.
func (p *Pipeline) runHybrid(ctx context.Context, ec *pipeline.ExecutionContext) ([]pipeline.StepResult, *pipeline.DomainError) {
	var parallelSteps, sequentialSteps []*stepState
	for _, st := range p.steps {
		if st.spec.Kind == pipeline.KindParallel {
			parallelSteps = append(parallelSteps, st)
		} else {
			sequentialSteps = append(sequentialSteps, st)
		}
	}

	results, derr := p.runParallel(ctx, ec, parallelSteps)
	if derr != nil {
		return results, derr
	}

	phaseCtx := ec.Clone()
	seqResults, derr := p.runSequential(ctx, phaseCtx, sequentialSteps, false)
	ec.SetPayload(phaseCtx.Payload())
	return append(results, seqResults...), derr
}
