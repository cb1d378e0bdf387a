package simulation

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/scenario-risk/internal/models"
)

func TestValidateScenarioAcceptsValid(t *testing.T) {
	assert.NoError(t, ValidateScenario(launchScenario(1000), DefaultConfig()))
}

func TestValidateScenarioFields(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*models.ScenarioConfig)
		field  string
	}{
		{name: "nil variable id", field: "variables[0].id", mutate: func(s *models.ScenarioConfig) {
			s.Variables[0].ID = ""
		}},
		{name: "mode below min", field: "variables[1].distribution.mostLikely", mutate: func(s *models.ScenarioConfig) {
			s.Variables[1].Distribution = models.PERT{Min: 10, MostLikely: 5, Max: 20}
		}},
		{name: "negative lambda", field: "variables[1].distribution.lambda", mutate: func(s *models.ScenarioConfig) {
			s.Variables[1].Distribution = models.PERT{Min: 10, MostLikely: 15, Max: 20, Lambda: -1}
		}},
		{name: "infinite mean", field: "variables[2].distribution.mean", mutate: func(s *models.ScenarioConfig) {
			s.Variables[2].Distribution = models.LogNormal{Mean: math.Inf(1), StdDev: 1}
		}},
		{name: "unknown correlation mode", field: "correlationMode", mutate: func(s *models.ScenarioConfig) {
			s.CorrelationMode = "kendall"
		}},
		{name: "negative horizon", field: "timeHorizonMonths", mutate: func(s *models.ScenarioConfig) {
			s.TimeHorizonMonths = -1
		}},
		{name: "infinite volatility", field: "volatility", mutate: func(s *models.ScenarioConfig) {
			s.Volatility = math.Inf(1)
		}},
		{name: "matrix size", field: "correlation", mutate: func(s *models.ScenarioConfig) {
			s.Correlation = [][]float64{{1, 0}, {0, 1}}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := launchScenario(1000)
			tt.mutate(s)
			err := ValidateScenario(s, DefaultConfig())
			var serr *ScenarioError
			require.True(t, errors.As(err, &serr), "got %v", err)
			assert.Equal(t, tt.field, serr.Field)
		})
	}
}

func TestValidateScenarioIgnoresMatrixWhenUncorrelated(t *testing.T) {
	s := launchScenario(1000)
	s.CorrelationMode = models.CorrelationNone
	s.Correlation = [][]float64{{1, 2}, {3, 1}}
	assert.NoError(t, ValidateScenario(s, DefaultConfig()))
}

func TestValidateScenarioRunBounds(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MinRuns = 1000
	cfg.MaxRuns = 50000

	s := launchScenario(999)
	err := ValidateScenario(s, cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "[1000, 50000]")

	s.Runs = 50000
	assert.NoError(t, ValidateScenario(s, cfg))
}

func TestValidateScenarioNil(t *testing.T) {
	assert.ErrorIs(t, ValidateScenario(nil, DefaultConfig()), ErrInvalidScenario)
}

func TestConfigValidate(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())

	cfg := DefaultConfig()
	cfg.Retention.Mode = "sketch"
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.HistogramRange = &[2]float64{5, 5}
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.ChunkSize = -1
	assert.Error(t, cfg.Validate())
}
