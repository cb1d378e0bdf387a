// Package kpi builds KPI evaluators from a scenario's KPI selector.
package kpi

import (
	"fmt"
	"sort"
	"sync"

	"github.com/yourusername/scenario-risk/internal/models"
	"github.com/yourusername/scenario-risk/internal/simulation"
)

// Built-in KPI types
const (
	TypeSum         = "sum"
	TypeWeightedSum = "weighted_sum"
	TypeExpression  = "expression"
)

// Factory builds an evaluator for one scenario. It runs once per
// simulation, so expensive preparation belongs here rather than in Evaluate.
type Factory func(spec models.KPISpec, scenario *models.ScenarioConfig) (simulation.Evaluator, error)

// Registry maps KPI type names to factories
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry creates a registry with the built-in KPI types
func NewRegistry() *Registry {
	r := &Registry{factories: make(map[string]Factory)}
	r.factories[TypeSum] = newSum
	r.factories[TypeWeightedSum] = newWeightedSum
	r.factories[TypeExpression] = newExpression
	return r
}

// Register adds a custom KPI type
func (r *Registry) Register(name string, factory Factory) error {
	if name == "" || factory == nil {
		return fmt.Errorf("kpi type name and factory are required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.factories[name]; exists {
		return fmt.Errorf("kpi type %q already registered", name)
	}
	r.factories[name] = factory
	return nil
}

// Types returns the registered type names, sorted
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Build returns the evaluator for the scenario's KPI. An empty type selects
// sum. Unknown types and bad parameters are scenario errors.
func (r *Registry) Build(scenario *models.ScenarioConfig) (simulation.Evaluator, error) {
	spec := scenario.KPI
	if spec.Type == "" {
		spec.Type = TypeSum
	}
	r.mu.RLock()
	factory, ok := r.factories[spec.Type]
	r.mu.RUnlock()
	if !ok {
		return nil, &simulation.ScenarioError{
			Field:  "kpi.type",
			Reason: fmt.Sprintf("unknown kpi type %q (known: %v)", spec.Type, r.Types()),
		}
	}
	return factory(spec, scenario)
}

// newSum adds variables in declaration order; map order would make the
// floating-point sum vary between runs
func newSum(_ models.KPISpec, scenario *models.ScenarioConfig) (simulation.Evaluator, error) {
	ids := scenario.VariableIDs()
	return simulation.EvaluatorFunc(func(values map[string]float64, _ *models.ScenarioConfig) (float64, error) {
		total := 0.0
		for _, id := range ids {
			total += values[id]
		}
		return total, nil
	}), nil
}

func newWeightedSum(spec models.KPISpec, scenario *models.ScenarioConfig) (simulation.Evaluator, error) {
	if len(spec.Weights) == 0 {
		return nil, &simulation.ScenarioError{Field: "kpi.weights", Reason: "is required for weighted_sum"}
	}
	known := make(map[string]bool, len(scenario.Variables))
	for _, v := range scenario.Variables {
		known[v.ID] = true
	}
	ids := make([]string, 0, len(spec.Weights))
	for id := range spec.Weights {
		if !known[id] {
			return nil, &simulation.ScenarioError{Field: "kpi.weights." + id, Reason: "does not name a variable"}
		}
		ids = append(ids, id)
	}
	sort.Strings(ids)
	weights := make([]float64, len(ids))
	for i, id := range ids {
		weights[i] = spec.Weights[id]
	}
	return simulation.EvaluatorFunc(func(values map[string]float64, _ *models.ScenarioConfig) (float64, error) {
		total := 0.0
		for i, id := range ids {
			total += weights[i] * values[id]
		}
		return total, nil
	}), nil
}
