package pipeline

import (
	"testing"
	"time"
)

func TestStrategyValid(t *testing.T) {
	for _, s := range []Strategy{StrategySequential, StrategyParallel, StrategyConditional, StrategyHybrid} {
		if !s.Valid() {
			t.Fatalf("expected %s to be valid", s)
		}
	}
	if Strategy("random").Valid() {
		t.Fatal("expected unknown strategy to be invalid")
	}
}

func TestSettingsApplyDefaults(t *testing.T) {
	defaults := Settings{}.ApplyDefaults()
	if defaults.Strategy != StrategySequential {
		t.Fatalf("expected sequential default, got %s", defaults.Strategy)
	}
	if defaults.MaxParallel <= 0 {
		t.Fatalf("expected a positive parallelism bound, got %d", defaults.MaxParallel)
	}

	explicit := Settings{Strategy: StrategyParallel, MaxParallel: 2, Timeout: time.Minute}.ApplyDefaults()
	if explicit.Strategy != StrategyParallel || explicit.MaxParallel != 2 || explicit.Timeout != time.Minute {
		t.Fatalf("expected explicit settings to survive, got %+v", explicit)
	}
}

func TestSettingsValidate(t *testing.T) {
	tests := []struct {
		name     string
		settings Settings
		wantErr  bool
	}{
		{name: "empty settings", settings: Settings{}},
		{name: "valid strategy", settings: Settings{Strategy: StrategyHybrid, MaxParallel: 4}},
		{name: "unknown strategy", settings: Settings{Strategy: Strategy("wat")}, wantErr: true},
		{name: "negative parallelism", settings: Settings{MaxParallel: -1}, wantErr: true},
		{name: "negative timeout", settings: Settings{Timeout: -time.Second}, wantErr: true},
	}

	for _, tt := range tests {
		err := tt.settings.Validate()
		if (err != nil) != tt.wantErr {
			t.Fatalf("%s: Validate() error = %v, wantErr %v", tt.name, err, tt.wantErr)
		}
	}
}

func TestSettingsClone(t *testing.T) {
	original := Settings{Strategy: StrategyParallel, MaxParallel: 8, Timeout: time.Second}
	clone := original.Clone()
	clone.MaxParallel = 1
	if original.MaxParallel != 8 {
		t.Fatal("expected the clone to be independent")
	}
}
