package kpi

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/scenario-risk/internal/models"
	"github.com/yourusername/scenario-risk/internal/simulation"
)

func scenarioWithKPI(spec models.KPISpec) *models.ScenarioConfig {
	return &models.ScenarioConfig{
		Runs:       2000,
		Volatility: 1,
		Variables: []models.ScenarioVariable{
			{ID: "revenue", Distribution: models.Triangular{Min: 80, MostLikely: 120, Max: 180}},
			{ID: "cost", Distribution: models.Normal{Mean: 60, StdDev: 5}},
		},
		KPI: spec,
	}
}

func evaluate(t *testing.T, spec models.KPISpec, values map[string]float64) float64 {
	t.Helper()
	s := scenarioWithKPI(spec)
	ev, err := NewRegistry().Build(s)
	require.NoError(t, err)
	v, err := ev.Evaluate(values, s)
	require.NoError(t, err)
	return v
}

func TestBuiltinKPIs(t *testing.T) {
	values := map[string]float64{"revenue": 150, "cost": 70}

	assert.Equal(t, 220.0, evaluate(t, models.KPISpec{}, values))
	assert.Equal(t, 220.0, evaluate(t, models.KPISpec{Type: TypeSum}, values))
	assert.Equal(t, 80.0, evaluate(t, models.KPISpec{
		Type:    TypeWeightedSum,
		Weights: map[string]float64{"revenue": 1, "cost": -1},
	}, values))
	assert.Equal(t, 40.0, evaluate(t, models.KPISpec{
		Type:       TypeExpression,
		Expression: "(revenue - cost) / 2",
	}, values))
	assert.Equal(t, 70.0, evaluate(t, models.KPISpec{
		Type:       TypeExpression,
		Expression: "min(revenue, cost)",
	}, values))
}

func TestBuildRejectsBadSpecs(t *testing.T) {
	tests := []struct {
		name  string
		spec  models.KPISpec
		field string
	}{
		{name: "unknown type", spec: models.KPISpec{Type: "npv"}, field: "kpi.type"},
		{name: "weights missing", spec: models.KPISpec{Type: TypeWeightedSum}, field: "kpi.weights"},
		{name: "weight on unknown variable", spec: models.KPISpec{Type: TypeWeightedSum, Weights: map[string]float64{"price": 1}}, field: "kpi.weights.price"},
		{name: "empty expression", spec: models.KPISpec{Type: TypeExpression}, field: "kpi.expression"},
		{name: "unknown identifier", spec: models.KPISpec{Type: TypeExpression, Expression: "revenue - price"}, field: "kpi.expression"},
		{name: "syntax error", spec: models.KPISpec{Type: TypeExpression, Expression: "revenue -"}, field: "kpi.expression"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRegistry().Build(scenarioWithKPI(tt.spec))
			var serr *simulation.ScenarioError
			require.True(t, errors.As(err, &serr), "got %v", err)
			assert.Equal(t, tt.field, serr.Field)
			assert.ErrorIs(t, err, simulation.ErrInvalidScenario)
		})
	}
}

func TestRegisterCustomType(t *testing.T) {
	r := NewRegistry()
	margin := func(_ models.KPISpec, _ *models.ScenarioConfig) (simulation.Evaluator, error) {
		return simulation.EvaluatorFunc(func(v map[string]float64, _ *models.ScenarioConfig) (float64, error) {
			return (v["revenue"] - v["cost"]) / v["revenue"], nil
		}), nil
	}
	require.NoError(t, r.Register("margin", margin))
	assert.Error(t, r.Register("margin", margin))
	assert.Error(t, r.Register(TypeSum, margin))
	assert.Contains(t, r.Types(), "margin")

	s := scenarioWithKPI(models.KPISpec{Type: "margin"})
	ev, err := r.Build(s)
	require.NoError(t, err)
	v, err := ev.Evaluate(map[string]float64{"revenue": 200, "cost": 50}, s)
	require.NoError(t, err)
	assert.Equal(t, 0.75, v)
}

func TestExpressionDivisionByZeroIsFailure(t *testing.T) {
	s := scenarioWithKPI(models.KPISpec{Type: TypeExpression, Expression: "revenue / (cost - cost)"})
	ev, err := NewRegistry().Build(s)
	require.NoError(t, err)

	engine, err := simulation.NewEngine(simulation.DefaultConfig(), nil)
	require.NoError(t, err)
	_, err = engine.Run(context.Background(), s, ev, 1)
	assert.ErrorIs(t, err, simulation.ErrEvaluatorFailure)
}

func TestExpressionKPIDrivesEngine(t *testing.T) {
	s := scenarioWithKPI(models.KPISpec{Type: TypeExpression, Expression: "revenue - cost"})
	ev, err := NewRegistry().Build(s)
	require.NoError(t, err)

	engine, err := simulation.NewEngine(simulation.DefaultConfig(), nil)
	require.NoError(t, err)
	r, err := engine.Run(context.Background(), s, ev, 1)
	require.NoError(t, err)
	assert.InDelta(t, (80.0+120+180)/3-60, r.Mean, 1.5)
	assert.False(t, math.IsNaN(r.StdDev))
	assert.Equal(t, "revenue", r.Tornado[0].VariableID)
}
