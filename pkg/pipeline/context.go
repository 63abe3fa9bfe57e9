package pipeline

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// ExecutionContext is the mutable payload/metadata carrier passed through a
// run. Accessors are safe for concurrent use; cancellation is the
// context.Context threaded through every engine call, so clones observe the
// same cancellation by construction.
//
// Under parallel execution each branch receives its own Clone: the metadata
// map is deep-copied, the payload is shared by reference. Payload sharing is
// intentional: callers whose steps mutate a shared payload concurrently own
// their synchronization.
type ExecutionContext struct {
	mu sync.RWMutex

	runID     string
	payload   interface{}
	metadata  map[string]interface{}
	startTime time.Time

	stepIndex  int
	totalSteps int
	retryCount int

	lastErr error
}

// NewExecutionContext creates a context carrying the initial payload.
func NewExecutionContext(payload interface{}) *ExecutionContext {
	return &ExecutionContext{
		runID:     uuid.NewString(),
		payload:   payload,
		metadata:  make(map[string]interface{}),
		startTime: time.Now(),
	}
}

// RunID returns the identifier assigned at creation. Clones retain it so
// per-branch results correlate back to one run.
func (ec *ExecutionContext) RunID() string {
	ec.mu.RLock()
	defer ec.mu.RUnlock()
	return ec.runID
}

// SetPayload replaces the data flowing between steps.
func (ec *ExecutionContext) SetPayload(payload interface{}) {
	ec.mu.Lock()
	defer ec.mu.Unlock()
	ec.payload = payload
}

// Payload returns the current payload.
func (ec *ExecutionContext) Payload() interface{} {
	ec.mu.RLock()
	defer ec.mu.RUnlock()
	return ec.payload
}

// SetMetadata stores a key/value pair for cross-step signaling.
func (ec *ExecutionContext) SetMetadata(key string, value interface{}) {
	ec.mu.Lock()
	defer ec.mu.Unlock()
	ec.metadata[key] = value
}

// Metadata returns the raw value stored under key.
func (ec *ExecutionContext) Metadata(key string) (interface{}, bool) {
	ec.mu.RLock()
	defer ec.mu.RUnlock()
	value, ok := ec.metadata[key]
	return value, ok
}

// MetadataKeys returns the stored keys in unspecified order.
func (ec *ExecutionContext) MetadataKeys() []string {
	ec.mu.RLock()
	defer ec.mu.RUnlock()
	keys := make([]string, 0, len(ec.metadata))
	for key := range ec.metadata {
		keys = append(keys, key)
	}
	return keys
}

// MetadataValue returns the value stored under key converted to T. It
// returns the zero value and false on a missing key or a type mismatch,
// never panicking.
func MetadataValue[T any](ec *ExecutionContext, key string) (T, bool) {
	var zero T
	raw, ok := ec.Metadata(key)
	if !ok {
		return zero, false
	}
	value, ok := raw.(T)
	if !ok {
		return zero, false
	}
	return value, true
}

// SetError records the last error observed during the run.
func (ec *ExecutionContext) SetError(err error) {
	ec.mu.Lock()
	defer ec.mu.Unlock()
	ec.lastErr = err
}

// LastError returns the most recently recorded error, if any.
func (ec *ExecutionContext) LastError() error {
	ec.mu.RLock()
	defer ec.mu.RUnlock()
	return ec.lastErr
}

// HasError reports whether an error has been recorded.
func (ec *ExecutionContext) HasError() bool {
	return ec.LastError() != nil
}

// SetStepIndex records the index of the step currently executing. The
// engine keeps it monotonically non-decreasing within one sequential run.
func (ec *ExecutionContext) SetStepIndex(index int) {
	ec.mu.Lock()
	defer ec.mu.Unlock()
	ec.stepIndex = index
}

// StepIndex returns the index of the step currently executing.
func (ec *ExecutionContext) StepIndex() int {
	ec.mu.RLock()
	defer ec.mu.RUnlock()
	return ec.stepIndex
}

// SetTotalSteps records the number of steps in the run.
func (ec *ExecutionContext) SetTotalSteps(total int) {
	ec.mu.Lock()
	defer ec.mu.Unlock()
	ec.totalSteps = total
}

// TotalSteps returns the number of steps in the run.
func (ec *ExecutionContext) TotalSteps() int {
	ec.mu.RLock()
	defer ec.mu.RUnlock()
	return ec.totalSteps
}

// SetRetryCount records the retry counter managed by the step runner.
func (ec *ExecutionContext) SetRetryCount(count int) {
	ec.mu.Lock()
	defer ec.mu.Unlock()
	ec.retryCount = count
}

// RetryCount returns the retry counter.
func (ec *ExecutionContext) RetryCount() int {
	ec.mu.RLock()
	defer ec.mu.RUnlock()
	return ec.retryCount
}

// StartTime returns when the context was created.
func (ec *ExecutionContext) StartTime() time.Time {
	ec.mu.RLock()
	defer ec.mu.RUnlock()
	return ec.startTime
}

// Elapsed returns the time since the context was created.
func (ec *ExecutionContext) Elapsed() time.Duration {
	return time.Since(ec.StartTime())
}

// Clone returns a copy for an isolated parallel branch: metadata is
// deep-copied, the payload reference and run identity are shared.
func (ec *ExecutionContext) Clone() *ExecutionContext {
	ec.mu.RLock()
	defer ec.mu.RUnlock()

	metadata := make(map[string]interface{}, len(ec.metadata))
	for k, v := range ec.metadata {
		metadata[k] = v
	}

	return &ExecutionContext{
		runID:      ec.runID,
		payload:    ec.payload,
		metadata:   metadata,
		startTime:  ec.startTime,
		stepIndex:  ec.stepIndex,
		totalSteps: ec.totalSteps,
		retryCount: ec.retryCount,
		lastErr:    ec.lastErr,
	}
}
