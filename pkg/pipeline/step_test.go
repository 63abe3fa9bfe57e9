package pipeline

import (
	"context"
	"errors"
	"testing"
)

func passingHandler() Handler {
	return HandlerFunc(func(context.Context, *ExecutionContext) (Outcome, error) {
		return OutcomeSuccess, nil
	})
}

func TestStepValidate(t *testing.T) {
	truthy := func(*ExecutionContext) bool { return true }

	tests := []struct {
		name    string
		step    Step
		wantErr bool
	}{
		{
			name: "valid plain step",
			step: Step{Name: "install_packages", Kind: KindPlain, Enabled: true, Handler: passingHandler()},
		},
		{
			name: "valid conditional step",
			step: Step{Name: "maybe-run", Kind: KindConditional, Handler: passingHandler(), Predicate: truthy},
		},
		{
			name: "valid parallel step",
			step: Step{Name: "fetch", Kind: KindParallel, Handler: passingHandler(), DependsOn: []string{"setup"}},
		},
		{
			name:    "missing name",
			step:    Step{Kind: KindPlain, Handler: passingHandler()},
			wantErr: true,
		},
		{
			name:    "invalid name pattern",
			step:    Step{Name: "bad name", Kind: KindPlain, Handler: passingHandler()},
			wantErr: true,
		},
		{
			name:    "missing handler",
			step:    Step{Name: "orphan", Kind: KindPlain},
			wantErr: true,
		},
		{
			name:    "negative retries",
			step:    Step{Name: "retry", Kind: KindPlain, Handler: passingHandler(), MaxRetries: -1},
			wantErr: true,
		},
		{
			name:    "negative timeout",
			step:    Step{Name: "slow", Kind: KindPlain, Handler: passingHandler(), Timeout: -1},
			wantErr: true,
		},
		{
			name:    "plain step with predicate",
			step:    Step{Name: "plain", Kind: KindPlain, Handler: passingHandler(), Predicate: truthy},
			wantErr: true,
		},
		{
			name:    "plain step with dependencies",
			step:    Step{Name: "plain", Kind: KindPlain, Handler: passingHandler(), DependsOn: []string{"x"}},
			wantErr: true,
		},
		{
			name:    "conditional without predicate",
			step:    Step{Name: "gated", Kind: KindConditional, Handler: passingHandler()},
			wantErr: true,
		},
		{
			name:    "conditional with dependencies",
			step:    Step{Name: "gated", Kind: KindConditional, Handler: passingHandler(), Predicate: truthy, DependsOn: []string{"x"}},
			wantErr: true,
		},
		{
			name:    "parallel with predicate",
			step:    Step{Name: "fanout", Kind: KindParallel, Handler: passingHandler(), Predicate: truthy},
			wantErr: true,
		},
		{
			name:    "self dependency",
			step:    Step{Name: "loop", Kind: KindParallel, Handler: passingHandler(), DependsOn: []string{"loop"}},
			wantErr: true,
		},
		{
			name:    "unknown kind",
			step:    Step{Name: "mystery", Kind: StepKind("weird"), Handler: passingHandler()},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		err := tt.step.Validate()
		if (err != nil) != tt.wantErr {
			t.Fatalf("%s: Validate() error = %v, wantErr %v", tt.name, err, tt.wantErr)
		}
		if !tt.wantErr {
			continue
		}
		var domainErr *DomainError
		if !errors.As(err, &domainErr) {
			t.Fatalf("%s: expected DomainError, got %T", tt.name, err)
		}
		if domainErr.Code != ErrCodeValidation {
			t.Fatalf("%s: expected VALIDATION_ERROR, got %s", tt.name, domainErr.Code)
		}
	}
}

func TestStepHasDependency(t *testing.T) {
	step := Step{Name: "a", Kind: KindParallel, DependsOn: []string{"b", "c"}}
	if !step.HasDependency("b") {
		t.Fatal("expected dependency b")
	}
	if step.HasDependency("d") {
		t.Fatal("unexpected dependency d")
	}
}

func TestStepSortedDependencies(t *testing.T) {
	step := Step{Name: "a", Kind: KindParallel, DependsOn: []string{"c", "a0", "b"}}
	got := step.SortedDependencies()
	want := []string{"a0", "b", "c"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
	if &got[0] == &step.DependsOn[0] {
		t.Fatal("expected a copy, not the backing slice")
	}
}

func TestStepClone(t *testing.T) {
	step := Step{Name: "a", Kind: KindParallel, Handler: passingHandler(), DependsOn: []string{"b"}}
	clone := step.Clone()
	clone.DependsOn[0] = "mutated"
	if step.DependsOn[0] != "b" {
		t.Fatal("expected the clone's dependency slice to be independent")
	}
}

func TestBaseHandlerDefaults(t *testing.T) {
	var h BaseHandler
	ctx := context.Background()
	ec := NewExecutionContext(nil)

	ok, err := h.Validate(ctx, ec)
	if !ok || err != nil {
		t.Fatalf("expected validation to pass, got %v %v", ok, err)
	}
	if err := h.BeforeExecute(ctx, ec); err != nil {
		t.Fatalf("unexpected before-execute error: %v", err)
	}
	if err := h.AfterExecute(ctx, ec, OutcomeSuccess); err != nil {
		t.Fatalf("unexpected after-execute error: %v", err)
	}
	if h.OnError(ctx, ec, errors.New("boom")) {
		t.Fatal("expected the default on-error to decline retry")
	}
}

func TestHandlerFuncExecute(t *testing.T) {
	called := false
	fn := HandlerFunc(func(context.Context, *ExecutionContext) (Outcome, error) {
		called = true
		return OutcomeStop, nil
	})

	outcome, err := fn.Execute(context.Background(), NewExecutionContext(nil))
	if err != nil || outcome != OutcomeStop || !called {
		t.Fatalf("expected wrapped function to run, got %v %v", outcome, err)
	}
}
