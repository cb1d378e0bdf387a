package simulation

import (
	"github.com/yourusername/scenario-risk/internal/models"
)

// Evaluator computes the KPI for one run's sampled values.
//
// Implementations must be deterministic and free of side effects. The engine
// calls Evaluate exactly once per run and may reuse the values map between
// calls, so implementations must not retain it.
type Evaluator interface {
	Evaluate(values map[string]float64, scenario *models.ScenarioConfig) (float64, error)
}

// EvaluatorFunc adapts a function to Evaluator
type EvaluatorFunc func(values map[string]float64, scenario *models.ScenarioConfig) (float64, error)

// Evaluate implements Evaluator
func (f EvaluatorFunc) Evaluate(values map[string]float64, scenario *models.ScenarioConfig) (float64, error) {
	return f(values, scenario)
}
