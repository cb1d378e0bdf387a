package config

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/robfig/cron/v3"

	"github.com/yourusername/scenario-risk/internal/simulation"
)

// CustomValidator wraps the validator with custom validation rules
type CustomValidator struct {
	validator *validator.Validate
}

// NewValidator creates a new validator with custom validation functions
func NewValidator() *CustomValidator {
	v := validator.New()

	// Registration only fails for empty tags or nil functions
	_ = v.RegisterValidation("environment", validateEnvironment)
	_ = v.RegisterValidation("loglevel", validateLogLevel)
	_ = v.RegisterValidation("rngalgorithm", validateRNGAlgorithm)
	_ = v.RegisterValidation("retention", validateRetention)
	_ = v.RegisterValidation("cronspec", validateCronSpec)

	return &CustomValidator{validator: v}
}

// Validate validates the entire configuration
func Validate(cfg *Config) error {
	return NewValidator().Validate(cfg)
}

// Validate validates the configuration using registered validation rules
func (cv *CustomValidator) Validate(cfg *Config) error {
	if err := cv.validator.Struct(cfg); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) {
			return formatValidationErrors(validationErrors)
		}
		return fmt.Errorf("validation failed: %w", err)
	}

	return validateCrossField(cfg)
}

func validateEnvironment(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case "development", "staging", "production":
		return true
	default:
		return false
	}
}

func validateLogLevel(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case "debug", "info", "warn", "error":
		return true
	default:
		return false
	}
}

func validateRNGAlgorithm(fl validator.FieldLevel) bool {
	_, err := simulation.FactoryFor(simulation.Algorithm(fl.Field().String()))
	return err == nil
}

func validateRetention(fl validator.FieldLevel) bool {
	switch simulation.RetentionMode(fl.Field().String()) {
	case simulation.RetentionFull, simulation.RetentionReservoir:
		return true
	default:
		return false
	}
}

func validateCronSpec(fl validator.FieldLevel) bool {
	_, err := cron.ParseStandard(fl.Field().String())
	return err == nil
}

// validateCrossField performs cross-field validations
func validateCrossField(cfg *Config) error {
	engine := cfg.Engine
	if engine.MinRuns > engine.MaxRuns {
		return fmt.Errorf("engine min_runs (%d) cannot exceed max_runs (%d)", engine.MinRuns, engine.MaxRuns)
	}

	if engine.Retention.Mode == string(simulation.RetentionReservoir) && engine.Retention.ReservoirSize <= 0 {
		return fmt.Errorf("engine retention.reservoir_size must be positive in reservoir mode")
	}

	if r := engine.HistogramRange; len(r) == 2 {
		if math.IsNaN(r[0]) || math.IsNaN(r[1]) || math.IsInf(r[0], 0) || math.IsInf(r[1], 0) || r[0] >= r[1] {
			return fmt.Errorf("engine histogram_range must be finite with lo < hi")
		}
	}

	if cfg.Database.Enabled {
		var missing []string
		if cfg.Database.Host == "" {
			missing = append(missing, "host")
		}
		if cfg.Database.Name == "" {
			missing = append(missing, "name")
		}
		if cfg.Database.User == "" {
			missing = append(missing, "user")
		}
		if len(missing) > 0 {
			return fmt.Errorf("database enabled but missing: %s", strings.Join(missing, ", "))
		}
		if cfg.Database.MaxIdleConnections > cfg.Database.MaxConnections {
			return fmt.Errorf("max_idle_connections cannot exceed max_connections")
		}
	}

	if cfg.Scheduler.Enabled {
		if len(cfg.Scheduler.Jobs) == 0 {
			return fmt.Errorf("scheduler enabled but no jobs configured")
		}
		seen := make(map[string]bool, len(cfg.Scheduler.Jobs))
		for _, job := range cfg.Scheduler.Jobs {
			if seen[job.Name] {
				return fmt.Errorf("duplicate scheduler job name %q", job.Name)
			}
			seen[job.Name] = true
			if job.Persist && !cfg.Database.Enabled {
				return fmt.Errorf("scheduler job %q persists results but database is disabled", job.Name)
			}
		}
	}

	if cfg.Cache.Enabled && cfg.Cache.MaxEntries <= 0 {
		return fmt.Errorf("cache enabled but max_entries is not positive")
	}

	return ValidateEnvironment(cfg)
}

// formatValidationErrors formats validation errors into a readable string
func formatValidationErrors(validationErrors validator.ValidationErrors) error {
	var b strings.Builder
	for _, fieldError := range validationErrors {
		field := fieldError.Namespace()
		tag := fieldError.Tag()
		value := fieldError.Value()

		switch tag {
		case "required", "required_if":
			fmt.Fprintf(&b, "- Field '%s' is required\n", field)
		case "min", "max", "len":
			fmt.Fprintf(&b, "- Field '%s' validation failed: %s constraint violated\n", field, tag)
		case "gt", "gte", "lt", "lte":
			fmt.Fprintf(&b, "- Field '%s' validation failed: numeric constraint %s violated\n", field, tag)
		case "environment":
			fmt.Fprintf(&b, "- Field '%s' must be one of: development, staging, production\n", field)
		case "loglevel":
			fmt.Fprintf(&b, "- Field '%s' must be one of: debug, info, warn, error\n", field)
		case "rngalgorithm":
			fmt.Fprintf(&b, "- Field '%s' must be one of: mulberry32, xorshift128, got '%v'\n", field, value)
		case "retention":
			fmt.Fprintf(&b, "- Field '%s' must be one of: full, reservoir, got '%v'\n", field, value)
		case "cronspec":
			fmt.Fprintf(&b, "- Field '%s' is not a valid cron schedule: '%v'\n", field, value)
		case "oneof":
			fmt.Fprintf(&b, "- Field '%s' has invalid value '%v'\n", field, value)
		default:
			fmt.Fprintf(&b, "- Field '%s' failed validation: %s\n", field, tag)
		}
	}
	return fmt.Errorf("configuration validation failed:\n%s", b.String())
}

// ValidateEnvironment validates environment-specific requirements
func ValidateEnvironment(cfg *Config) error {
	if cfg.IsProduction() {
		if cfg.Database.Enabled && cfg.Database.SSLMode == "disable" {
			return fmt.Errorf("production environment requires database SSL mode to be 'require' or 'verify-full'")
		}
		if cfg.App.LogLevel == "debug" {
			return fmt.Errorf("debug logging should be disabled in production")
		}
	}
	return nil
}
