// Package scenario reads scenario definitions from YAML or JSON documents.
package scenario

import (
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/yourusername/scenario-risk/internal/models"
	"github.com/yourusername/scenario-risk/internal/simulation"
)

// scenarioNamespace derives stable ids for scenarios that do not declare one
var scenarioNamespace = uuid.MustParse("0b5c1d4e-4f0e-4a55-9a7c-8c1e6f2d3b90")

// Spec is the document form of a scenario
type Spec struct {
	ID                string         `yaml:"id,omitempty" json:"id,omitempty"`
	Name              string         `yaml:"name" json:"name"`
	TimeHorizonMonths int            `yaml:"timeHorizonMonths,omitempty" json:"timeHorizonMonths,omitempty"`
	Runs              int            `yaml:"runs" json:"runs"`
	Volatility        float64        `yaml:"volatility,omitempty" json:"volatility,omitempty"`
	CorrelationMode   string         `yaml:"correlationMode,omitempty" json:"correlationMode,omitempty"`
	Correlation       [][]float64    `yaml:"correlation,omitempty" json:"correlation,omitempty"`
	Variables         []VariableSpec `yaml:"variables" json:"variables"`
	KPI               KPISpec        `yaml:"kpi,omitempty" json:"kpi,omitempty"`
}

// VariableSpec is one variable with its distribution parameters by name
type VariableSpec struct {
	ID           string             `yaml:"id" json:"id"`
	Name         string             `yaml:"name,omitempty" json:"name,omitempty"`
	Unit         string             `yaml:"unit,omitempty" json:"unit,omitempty"`
	Distribution string             `yaml:"distribution" json:"distribution"`
	Params       map[string]float64 `yaml:"params" json:"params"`
}

// KPISpec selects the KPI
type KPISpec struct {
	Type       string             `yaml:"type,omitempty" json:"type,omitempty"`
	Expression string             `yaml:"expression,omitempty" json:"expression,omitempty"`
	Weights    map[string]float64 `yaml:"weights,omitempty" json:"weights,omitempty"`
}

var (
	requiredParams = map[models.DistributionKind][]string{
		models.KindTriangular: {"min", "mostLikely", "max"},
		models.KindPERT:       {"min", "mostLikely", "max"},
		models.KindNormal:     {"mean", "stdDev"},
		models.KindLogNormal:  {"mean", "stdDev"},
	}
	optionalParams = map[models.DistributionKind][]string{
		models.KindPERT: {"lambda"},
	}
)

// ToConfig converts the document into a scenario. Missing or unexpected
// distribution parameters are rejected; numeric invariants are left to
// simulation.ValidateScenario.
func (s *Spec) ToConfig() (*models.ScenarioConfig, error) {
	id := uuid.NewSHA1(scenarioNamespace, []byte(s.Name))
	if s.ID != "" {
		parsed, err := uuid.Parse(s.ID)
		if err != nil {
			return nil, &simulation.ScenarioError{Field: "id", Reason: fmt.Sprintf("invalid uuid: %v", err)}
		}
		id = parsed
	}

	volatility := s.Volatility
	if volatility == 0 {
		volatility = 1
	}
	mode := models.CorrelationMode(s.CorrelationMode)
	if mode == "" {
		mode = models.CorrelationNone
		if len(s.Correlation) > 0 {
			mode = models.CorrelationPearson
		}
	}

	cfg := &models.ScenarioConfig{
		ID:                id,
		Name:              s.Name,
		TimeHorizonMonths: s.TimeHorizonMonths,
		Runs:              s.Runs,
		Volatility:        volatility,
		CorrelationMode:   mode,
		Correlation:       s.Correlation,
		Variables:         make([]models.ScenarioVariable, len(s.Variables)),
		KPI: models.KPISpec{
			Type:       s.KPI.Type,
			Expression: s.KPI.Expression,
			Weights:    s.KPI.Weights,
		},
	}
	for i, v := range s.Variables {
		dist, err := buildDistribution(i, v)
		if err != nil {
			return nil, err
		}
		cfg.Variables[i] = models.ScenarioVariable{ID: v.ID, Name: v.Name, Unit: v.Unit, Distribution: dist}
	}
	return cfg, nil
}

func requireParam(i int, params map[string]float64, name string) (float64, error) {
	v, ok := params[name]
	if !ok {
		return 0, &simulation.ScenarioError{
			Field:  fmt.Sprintf("variables[%d].params.%s", i, name),
			Reason: "is required",
		}
	}
	return v, nil
}

func buildDistribution(i int, v VariableSpec) (models.Distribution, error) {
	kind := models.DistributionKind(strings.ToLower(v.Distribution))
	required, ok := requiredParams[kind]
	if !ok {
		return nil, &simulation.ScenarioError{
			Field:  fmt.Sprintf("variables[%d].distribution", i),
			Reason: fmt.Sprintf("unknown distribution %q", v.Distribution),
		}
	}

	allowed := make(map[string]bool)
	for _, p := range required {
		allowed[p] = true
	}
	for _, p := range optionalParams[kind] {
		allowed[p] = true
	}
	unexpected := make([]string, 0)
	for p := range v.Params {
		if !allowed[p] {
			unexpected = append(unexpected, p)
		}
	}
	if len(unexpected) > 0 {
		sort.Strings(unexpected)
		return nil, &simulation.ScenarioError{
			Field:  fmt.Sprintf("variables[%d].params.%s", i, unexpected[0]),
			Reason: fmt.Sprintf("is not a parameter of %s", kind),
		}
	}

	values := make(map[string]float64, len(required))
	for _, p := range required {
		val, err := requireParam(i, v.Params, p)
		if err != nil {
			return nil, err
		}
		values[p] = val
	}

	switch kind {
	case models.KindTriangular:
		return models.Triangular{Min: values["min"], MostLikely: values["mostLikely"], Max: values["max"]}, nil
	case models.KindPERT:
		return models.PERT{Min: values["min"], MostLikely: values["mostLikely"], Max: values["max"], Lambda: v.Params["lambda"]}, nil
	case models.KindNormal:
		return models.Normal{Mean: values["mean"], StdDev: values["stdDev"]}, nil
	default:
		return models.LogNormal{Mean: values["mean"], StdDev: values["stdDev"]}, nil
	}
}

// FromConfig converts a scenario back to its document form
func FromConfig(cfg *models.ScenarioConfig) *Spec {
	s := &Spec{
		ID:                cfg.ID.String(),
		Name:              cfg.Name,
		TimeHorizonMonths: cfg.TimeHorizonMonths,
		Runs:              cfg.Runs,
		Volatility:        cfg.Volatility,
		CorrelationMode:   string(cfg.CorrelationMode),
		Correlation:       cfg.Correlation,
		Variables:         make([]VariableSpec, len(cfg.Variables)),
		KPI: KPISpec{
			Type:       cfg.KPI.Type,
			Expression: cfg.KPI.Expression,
			Weights:    cfg.KPI.Weights,
		},
	}
	for i, v := range cfg.Variables {
		vs := VariableSpec{ID: v.ID, Name: v.Name, Unit: v.Unit}
		switch d := v.Distribution.(type) {
		case models.Triangular:
			vs.Distribution = string(models.KindTriangular)
			vs.Params = map[string]float64{"min": d.Min, "mostLikely": d.MostLikely, "max": d.Max}
		case models.PERT:
			vs.Distribution = string(models.KindPERT)
			vs.Params = map[string]float64{"min": d.Min, "mostLikely": d.MostLikely, "max": d.Max}
			if d.Lambda != 0 {
				vs.Params["lambda"] = d.Lambda
			}
		case models.Normal:
			vs.Distribution = string(models.KindNormal)
			vs.Params = map[string]float64{"mean": d.Mean, "stdDev": d.StdDev}
		case models.LogNormal:
			vs.Distribution = string(models.KindLogNormal)
			vs.Params = map[string]float64{"mean": d.Mean, "stdDev": d.StdDev}
		}
		s.Variables[i] = vs
	}
	return s
}
