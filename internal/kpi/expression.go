package kpi

import (
	"fmt"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/yourusername/scenario-risk/internal/models"
	"github.com/yourusername/scenario-risk/internal/simulation"
)

// expressionEvaluator runs a formula compiled once against the scenario's
// variable ids, e.g. "(revenue - cost) * fx".
type expressionEvaluator struct {
	source  string
	program *vm.Program
}

func newExpression(spec models.KPISpec, scenario *models.ScenarioConfig) (simulation.Evaluator, error) {
	if spec.Expression == "" {
		return nil, &simulation.ScenarioError{Field: "kpi.expression", Reason: "is required for expression kpi"}
	}
	env := make(map[string]float64, len(scenario.Variables))
	for _, v := range scenario.Variables {
		env[v.ID] = 0
	}
	program, err := expr.Compile(spec.Expression, expr.Env(env), expr.AsFloat64())
	if err != nil {
		return nil, &simulation.ScenarioError{Field: "kpi.expression", Reason: err.Error()}
	}
	return &expressionEvaluator{source: spec.Expression, program: program}, nil
}

// Evaluate implements simulation.Evaluator
func (e *expressionEvaluator) Evaluate(values map[string]float64, _ *models.ScenarioConfig) (float64, error) {
	out, err := expr.Run(e.program, values)
	if err != nil {
		return 0, fmt.Errorf("expression %q: %w", e.source, err)
	}
	v, ok := out.(float64)
	if !ok {
		return 0, fmt.Errorf("expression %q returned %T, want float64", e.source, out)
	}
	return v, nil
}
