package pipeline

import (
	"errors"
	"fmt"
	"testing"
)

func TestDomainErrorError(t *testing.T) {
	cause := errors.New("boom")
	err := NewError(ErrCodeExecution, "step execution failed", cause, nil)
	want := "EXECUTION_ERROR: step execution failed: boom"
	if err.Error() != want {
		t.Fatalf("expected %q, got %q", want, err.Error())
	}

	noCause := NewValidationError("bad input", nil)
	want = "VALIDATION_ERROR: bad input"
	if noCause.Error() != want {
		t.Fatalf("expected %q, got %q", want, noCause.Error())
	}
}

func TestDomainErrorUnwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := NewExecutionError("deploy", cause)
	if !errors.Is(err, cause) {
		t.Fatal("expected errors.Is to reach the cause")
	}
}

func TestDomainErrorIs(t *testing.T) {
	a := NewTimeoutError("deadline exceeded", nil)
	b := NewTimeoutError("deadline exceeded", errors.New("ctx"))
	if !errors.Is(a, b) {
		t.Fatal("expected matching code and message to compare equal")
	}
	c := NewCancelledError("deadline exceeded", nil)
	if errors.Is(a, c) {
		t.Fatal("expected different codes to compare unequal")
	}
}

func TestDomainErrorWithContext(t *testing.T) {
	base := NewError(ErrCodeTimeout, "deadline exceeded", nil, map[string]interface{}{"pipeline": "demo"})
	enriched := base.WithContext(map[string]interface{}{"step": "fetch"})

	if enriched == base {
		t.Fatal("expected WithContext to clone")
	}
	if enriched.Context["pipeline"] != "demo" || enriched.Context["step"] != "fetch" {
		t.Fatalf("expected merged context, got %v", enriched.Context)
	}
	if _, ok := base.Context["step"]; ok {
		t.Fatal("expected original context to be untouched")
	}
}

func TestAsDomainError(t *testing.T) {
	if AsDomainError(nil) != nil {
		t.Fatal("expected nil for nil error")
	}

	derr := NewStateError("already running", nil)
	wrapped := fmt.Errorf("outer: %w", derr)
	if got := AsDomainError(wrapped); got.Code != ErrCodeState {
		t.Fatalf("expected INVALID_STATE through wrapping, got %s", got.Code)
	}

	plain := errors.New("plain failure")
	got := AsDomainError(plain)
	if got.Code != ErrCodeExecution {
		t.Fatalf("expected EXECUTION_ERROR for unknown errors, got %s", got.Code)
	}
	if !errors.Is(got, plain) {
		t.Fatal("expected the original error to stay reachable")
	}
}
