package models

import (
	"fmt"
	"math"

	"github.com/google/uuid"
)

// DistributionKind names the probability distribution of a scenario variable
type DistributionKind string

// Supported distribution kinds
const (
	KindTriangular DistributionKind = "triangular"
	KindPERT       DistributionKind = "pert"
	KindNormal     DistributionKind = "normal"
	KindLogNormal  DistributionKind = "lognormal"
)

// DefaultPERTLambda is the shape weight given to the most likely value
const DefaultPERTLambda = 4.0

// CorrelationMode selects how the correlation matrix is interpreted
type CorrelationMode string

// Supported correlation modes
const (
	CorrelationNone     CorrelationMode = "none"
	CorrelationPearson  CorrelationMode = "pearson"
	CorrelationSpearman CorrelationMode = "spearman"
)

// Distribution is the closed set of distributions a variable may declare.
// Only the variants in this package implement it.
type Distribution interface {
	Kind() DistributionKind
	// Validate reports the first parameter invariant violation as a
	// ParamError naming the offending parameter.
	Validate() error
	isDistribution()
}

// ParamError reports an invalid distribution parameter
type ParamError struct {
	Param  string
	Reason string
}

func (e *ParamError) Error() string {
	return fmt.Sprintf("%s %s", e.Param, e.Reason)
}

// Triangular is a three-point estimate with linear density
type Triangular struct {
	Min        float64 `json:"min" yaml:"min"`
	MostLikely float64 `json:"mostLikely" yaml:"mostLikely"`
	Max        float64 `json:"max" yaml:"max"`
}

// Kind implements Distribution
func (Triangular) Kind() DistributionKind { return KindTriangular }

// Validate implements Distribution
func (t Triangular) Validate() error {
	return validateThreePoint(t.Min, t.MostLikely, t.Max)
}

func (Triangular) isDistribution() {}

// PERT is a Beta-based three-point estimate weighting the mode by Lambda
type PERT struct {
	Min        float64 `json:"min" yaml:"min"`
	MostLikely float64 `json:"mostLikely" yaml:"mostLikely"`
	Max        float64 `json:"max" yaml:"max"`
	Lambda     float64 `json:"lambda,omitempty" yaml:"lambda,omitempty"`
}

// Kind implements Distribution
func (PERT) Kind() DistributionKind { return KindPERT }

// Validate implements Distribution
func (p PERT) Validate() error {
	if err := validateThreePoint(p.Min, p.MostLikely, p.Max); err != nil {
		return err
	}
	if !isFinite(p.Lambda) || p.Lambda < 0 {
		return &ParamError{Param: "lambda", Reason: "must be a finite value > 0 (0 selects the default)"}
	}
	return nil
}

// ShapeLambda returns Lambda, or DefaultPERTLambda when unset
func (p PERT) ShapeLambda() float64 {
	if p.Lambda == 0 {
		return DefaultPERTLambda
	}
	return p.Lambda
}

// Mean returns the PERT mean (min + lambda*mode + max) / (lambda + 2)
func (p PERT) Mean() float64 {
	l := p.ShapeLambda()
	return (p.Min + l*p.MostLikely + p.Max) / (l + 2)
}

func (PERT) isDistribution() {}

// Normal is a Gaussian distribution
type Normal struct {
	Mean   float64 `json:"mean" yaml:"mean"`
	StdDev float64 `json:"stdDev" yaml:"stdDev"`
}

// Kind implements Distribution
func (Normal) Kind() DistributionKind { return KindNormal }

// Validate implements Distribution
func (n Normal) Validate() error {
	return validateMeanStdDev(n.Mean, n.StdDev)
}

func (Normal) isDistribution() {}

// LogNormal is a log-normal distribution. Mean and StdDev are the parameters
// of the underlying normal in log space.
type LogNormal struct {
	Mean   float64 `json:"mean" yaml:"mean"`
	StdDev float64 `json:"stdDev" yaml:"stdDev"`
}

// Kind implements Distribution
func (LogNormal) Kind() DistributionKind { return KindLogNormal }

// Validate implements Distribution
func (l LogNormal) Validate() error {
	return validateMeanStdDev(l.Mean, l.StdDev)
}

func (LogNormal) isDistribution() {}

func validateThreePoint(min, mode, max float64) error {
	switch {
	case !isFinite(min):
		return &ParamError{Param: "min", Reason: "must be finite"}
	case !isFinite(mode):
		return &ParamError{Param: "mostLikely", Reason: "must be finite"}
	case !isFinite(max):
		return &ParamError{Param: "max", Reason: "must be finite"}
	case min > max:
		return &ParamError{Param: "min", Reason: fmt.Sprintf("(%g) must be <= max (%g)", min, max)}
	case mode < min:
		return &ParamError{Param: "mostLikely", Reason: fmt.Sprintf("(%g) must be >= min (%g)", mode, min)}
	case mode > max:
		return &ParamError{Param: "mostLikely", Reason: fmt.Sprintf("(%g) must be <= max (%g)", mode, max)}
	}
	return nil
}

func validateMeanStdDev(mean, stdDev float64) error {
	switch {
	case !isFinite(mean):
		return &ParamError{Param: "mean", Reason: "must be finite"}
	case !isFinite(stdDev):
		return &ParamError{Param: "stdDev", Reason: "must be finite"}
	case stdDev < 0:
		return &ParamError{Param: "stdDev", Reason: fmt.Sprintf("(%g) must be >= 0", stdDev)}
	}
	return nil
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// ScenarioVariable is one uncertain input of a scenario
type ScenarioVariable struct {
	ID           string       `json:"id" validate:"required,max=64"`
	Name         string       `json:"name" validate:"max=255"`
	Unit         string       `json:"unit,omitempty" validate:"max=32"`
	Distribution Distribution `json:"distribution" validate:"required"`
}

// KPISpec selects the KPI evaluated for every run
type KPISpec struct {
	Type       string             `json:"type"`
	Expression string             `json:"expression,omitempty"`
	Weights    map[string]float64 `json:"weights,omitempty"`
}

// ScenarioConfig is a complete scenario definition. The engine treats it as
// read-only input.
type ScenarioConfig struct {
	ID                uuid.UUID          `json:"id"`
	Name              string             `json:"name" validate:"max=255"`
	TimeHorizonMonths int                `json:"timeHorizonMonths" validate:"gte=0"`
	Runs              int                `json:"runs" validate:"required,gt=0"`
	Volatility        float64            `json:"volatility" validate:"required,gt=0"`
	CorrelationMode   CorrelationMode    `json:"correlationMode" validate:"omitempty,oneof=none pearson spearman"`
	Correlation       [][]float64        `json:"correlation,omitempty"`
	Variables         []ScenarioVariable `json:"variables" validate:"required,min=1,dive"`
	KPI               KPISpec            `json:"kpi"`
}

// Clone returns a deep copy. Distribution variants are value types, so
// copying the variable slice is enough for them.
func (s *ScenarioConfig) Clone() *ScenarioConfig {
	if s == nil {
		return nil
	}
	c := *s
	c.Variables = append([]ScenarioVariable(nil), s.Variables...)
	if s.Correlation != nil {
		c.Correlation = make([][]float64, len(s.Correlation))
		for i, row := range s.Correlation {
			c.Correlation[i] = append([]float64(nil), row...)
		}
	}
	if s.KPI.Weights != nil {
		c.KPI.Weights = make(map[string]float64, len(s.KPI.Weights))
		for k, v := range s.KPI.Weights {
			c.KPI.Weights[k] = v
		}
	}
	return &c
}

// Correlated reports whether the scenario requests correlated sampling
func (s *ScenarioConfig) Correlated() bool {
	return s.CorrelationMode != "" && s.CorrelationMode != CorrelationNone && len(s.Correlation) > 0
}

// VariableIDs returns variable ids in declaration order
func (s *ScenarioConfig) VariableIDs() []string {
	ids := make([]string, len(s.Variables))
	for i, v := range s.Variables {
		ids[i] = v.ID
	}
	return ids
}

// SimulationRun is a single Monte Carlo iteration
type SimulationRun struct {
	Index  int                `json:"index"`
	Values map[string]float64 `json:"values"`
	KPI    float64            `json:"kpi"`
}
