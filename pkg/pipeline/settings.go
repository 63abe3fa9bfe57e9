package pipeline

import (
	"runtime"
	"time"
)

// Strategy selects the dispatch algorithm for a run. It is fixed for the
// run's lifetime.
type Strategy string

const (
	StrategySequential  Strategy = "sequential"
	StrategyParallel    Strategy = "parallel"
	StrategyConditional Strategy = "conditional"
	StrategyHybrid      Strategy = "hybrid"
)

var validStrategies = []Strategy{
	StrategySequential,
	StrategyParallel,
	StrategyConditional,
	StrategyHybrid,
}

// Valid reports whether the strategy belongs to the closed set.
func (s Strategy) Valid() bool {
	for _, candidate := range validStrategies {
		if candidate == s {
			return true
		}
	}
	return false
}

func (s Strategy) String() string {
	return string(s)
}

// Settings captures global execution parameters for a pipeline.
type Settings struct {
	Strategy    Strategy
	MaxParallel int
	Timeout     time.Duration
}

// Clone returns a copy of settings to avoid accidental mutations.
func (s Settings) Clone() Settings {
	return Settings{
		Strategy:    s.Strategy,
		MaxParallel: s.MaxParallel,
		Timeout:     s.Timeout,
	}
}

// ApplyDefaults ensures settings remain within supported ranges. The
// parallelism bound defaults to the host's core count.
func (s Settings) ApplyDefaults() Settings {
	clone := s.Clone()
	if clone.Strategy == "" {
		clone.Strategy = StrategySequential
	}
	if clone.MaxParallel <= 0 {
		clone.MaxParallel = runtime.NumCPU()
	}
	return clone
}

// Validate ensures the settings satisfy all invariants.
func (s Settings) Validate() error {
	if s.Strategy != "" && !s.Strategy.Valid() {
		return NewValidationError("unknown execution strategy", map[string]interface{}{"strategy": string(s.Strategy)})
	}
	if s.MaxParallel < 0 {
		return NewValidationError("max parallel must be non-negative", nil)
	}
	if s.Timeout < 0 {
		return NewValidationError("timeout must be non-negative", nil)
	}
	return nil
}
