package simulation

import (
	"errors"
	"fmt"
)

// Engine error classes. Use errors.Is against these; the concrete types carry
// the details.
var (
	ErrInvalidScenario  = errors.New("invalid scenario")
	ErrEvaluatorFailure = errors.New("kpi evaluator failure")
	ErrCancelled        = errors.New("simulation cancelled")
)

// ScenarioError names the scenario field that violated an invariant
type ScenarioError struct {
	Field  string
	Reason string
}

func (e *ScenarioError) Error() string {
	return fmt.Sprintf("invalid scenario: %s: %s", e.Field, e.Reason)
}

// Unwrap makes errors.Is(err, ErrInvalidScenario) hold
func (e *ScenarioError) Unwrap() error { return ErrInvalidScenario }

// EvaluatorError reports the run whose KPI evaluation failed
type EvaluatorError struct {
	RunIndex int
	Err      error
}

func (e *EvaluatorError) Error() string {
	return fmt.Sprintf("kpi evaluator failed at run %d: %v", e.RunIndex, e.Err)
}

// Is matches ErrEvaluatorFailure
func (e *EvaluatorError) Is(target error) bool { return target == ErrEvaluatorFailure }

// Unwrap returns the evaluator's own error
func (e *EvaluatorError) Unwrap() error { return e.Err }

// CancelledError reports how far a cancelled simulation got
type CancelledError struct {
	CompletedRuns int
	TotalRuns     int
	Cause         error
}

func (e *CancelledError) Error() string {
	return fmt.Sprintf("simulation cancelled after %d of %d runs: %v", e.CompletedRuns, e.TotalRuns, e.Cause)
}

// Is matches ErrCancelled
func (e *CancelledError) Is(target error) bool { return target == ErrCancelled }

// Unwrap returns the context error that caused cancellation
func (e *CancelledError) Unwrap() error { return e.Cause }
