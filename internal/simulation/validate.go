package simulation

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/yourusername/scenario-risk/internal/models"
)

var (
	scenarioValidator     *validator.Validate
	scenarioValidatorOnce sync.Once
)

// structValidator returns a validator that reports fields by their json names
func structValidator() *validator.Validate {
	scenarioValidatorOnce.Do(func() {
		v := validator.New()
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" || name == "" {
				return fld.Name
			}
			return name
		})
		scenarioValidator = v
	})
	return scenarioValidator
}

// ValidateScenario checks every scenario invariant against the engine
// configuration. It draws no random numbers. The first violation is
// returned as a *ScenarioError naming the field.
func ValidateScenario(scenario *models.ScenarioConfig, cfg Config) error {
	if scenario == nil {
		return &ScenarioError{Field: "scenario", Reason: "is required"}
	}
	cfg = cfg.withDefaults()

	if err := structValidator().Struct(scenario); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return fieldError(verrs[0])
		}
		return &ScenarioError{Field: "scenario", Reason: err.Error()}
	}

	if scenario.Runs < cfg.MinRuns || scenario.Runs > cfg.MaxRuns {
		return &ScenarioError{
			Field:  "runs",
			Reason: fmt.Sprintf("(%d) must be within [%d, %d]", scenario.Runs, cfg.MinRuns, cfg.MaxRuns),
		}
	}

	if math.IsInf(scenario.Volatility, 0) {
		return &ScenarioError{Field: "volatility", Reason: "must be finite"}
	}

	seen := make(map[string]int, len(scenario.Variables))
	for i, v := range scenario.Variables {
		if prev, ok := seen[v.ID]; ok {
			return &ScenarioError{
				Field:  fmt.Sprintf("variables[%d].id", i),
				Reason: fmt.Sprintf("duplicates variables[%d].id %q", prev, v.ID),
			}
		}
		seen[v.ID] = i

		if err := v.Distribution.Validate(); err != nil {
			var perr *models.ParamError
			if errors.As(err, &perr) {
				return &ScenarioError{
					Field:  fmt.Sprintf("variables[%d].distribution.%s", i, perr.Param),
					Reason: perr.Reason,
				}
			}
			return &ScenarioError{Field: fmt.Sprintf("variables[%d].distribution", i), Reason: err.Error()}
		}
	}

	if scenario.CorrelationMode != "" && scenario.CorrelationMode != models.CorrelationNone && len(scenario.Correlation) > 0 {
		if _, err := newCorrelator(scenario.Correlation, scenario.CorrelationMode, len(scenario.Variables)); err != nil {
			return err
		}
	}
	return nil
}

// fieldError converts a validator error into a ScenarioError. The namespace
// is rooted at the struct name, which is dropped.
func fieldError(fe validator.FieldError) *ScenarioError {
	field := fe.Namespace()
	if i := strings.Index(field, "."); i >= 0 {
		field = field[i+1:]
	}
	var reason string
	switch fe.Tag() {
	case "required":
		reason = "is required"
	case "gt":
		reason = fmt.Sprintf("(%v) must be greater than %s", fe.Value(), fe.Param())
	case "gte":
		reason = fmt.Sprintf("(%v) must be >= %s", fe.Value(), fe.Param())
	case "min":
		reason = fmt.Sprintf("must contain at least %s item(s)", fe.Param())
	case "max":
		reason = fmt.Sprintf("must be at most %s characters", fe.Param())
	case "oneof":
		reason = fmt.Sprintf("(%v) must be one of [%s]", fe.Value(), fe.Param())
	default:
		reason = fmt.Sprintf("failed %q validation", fe.Tag())
	}
	return &ScenarioError{Field: field, Reason: reason}
}
