package pipeline

// Outcome is the closed set of results a step invocation can produce.
// Retry is internal to the runner's retry loop and never escapes it.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailed  Outcome = "failed"
	OutcomeSkip    Outcome = "skip"
	OutcomeRetry   Outcome = "retry"
	OutcomeStop    Outcome = "stop"
)

// Terminal reports whether the outcome ends the invocation. Every outcome
// except Retry is terminal for that invocation.
func (o Outcome) Terminal() bool {
	return o != OutcomeRetry
}

// Valid reports whether the value belongs to the closed enum.
func (o Outcome) Valid() bool {
	switch o {
	case OutcomeSuccess, OutcomeFailed, OutcomeSkip, OutcomeRetry, OutcomeStop:
		return true
	}
	return false
}

func (o Outcome) String() string {
	return string(o)
}
