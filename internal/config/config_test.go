package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/scenario-risk/internal/simulation"
)

const (
	validConfigPath       = "testdata/valid_config.yaml"
	nonexistentConfigPath = "testdata/nonexistent_config.yaml"
	testDBPassword        = "TEST_DB_PASSWORD"
)

func loadValid(t *testing.T) *Config {
	t.Helper()
	cfg, err := Load(validConfigPath)
	require.NoError(t, err)
	require.NotNil(t, cfg)
	return cfg
}

func TestLoadConfigSuccess(t *testing.T) {
	cfg := loadValid(t)

	assert.Equal(t, "scenario-risk", cfg.App.Name)
	assert.Equal(t, "development", cfg.App.Environment)
	assert.Equal(t, "mulberry32", cfg.Engine.Algorithm)
	assert.Equal(t, 5000, cfg.Engine.ChunkSize)
	assert.Equal(t, "reservoir", cfg.Engine.Retention.Mode)
	assert.Equal(t, 10000, cfg.Engine.Retention.ReservoirSize)
	assert.Equal(t, "localhost", cfg.Database.Host)
	assert.Equal(t, 5432, cfg.Database.Port)
	require.Len(t, cfg.Scheduler.Jobs, 1)
	assert.Equal(t, "0 2 * * *", cfg.Scheduler.Jobs[0].Schedule)
}

func TestLoadConfigFileNotFound(t *testing.T) {
	_, err := Load(nonexistentConfigPath)
	assert.Error(t, err)
}

func TestLoadConfigEnvironmentOverride(t *testing.T) {
	t.Setenv("RISKSIM_APP_NAME", "test-app")
	t.Setenv("RISKSIM_ENGINE_CHUNK_SIZE", "250")

	cfg := loadValid(t)
	assert.Equal(t, "test-app", cfg.App.Name)
	assert.Equal(t, 250, cfg.Engine.ChunkSize)
}

func TestLoadConfigExpandsPlaceholders(t *testing.T) {
	t.Setenv(testDBPassword, "expanded_secret_value")

	cfg := loadValid(t)
	assert.Equal(t, "expanded_secret_value", cfg.Database.Password)
}

func TestLoadConfigMissingPlaceholderIsEmpty(t *testing.T) {
	os.Unsetenv(testDBPassword)

	cfg := loadValid(t)
	assert.Empty(t, cfg.Database.Password)
}

func TestLoadWithDefaultsWithoutFile(t *testing.T) {
	cfg, err := LoadWithDefaults(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "mulberry32", cfg.Engine.Algorithm)
	assert.Equal(t, 10000, cfg.Engine.Retention.ReservoirSize)
	assert.Equal(t, ":8080", cfg.Server.HTTPAddress)
	assert.False(t, cfg.Database.Enabled)
	require.NoError(t, Validate(cfg))
}

func TestReloadFromEnv(t *testing.T) {
	cfg, err := LoadWithDefaults(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	t.Setenv("RISKSIM_CONFIG_PATH", validConfigPath)
	require.NoError(t, ReloadFromEnv(cfg))
	assert.True(t, cfg.Database.Enabled)
}

func TestValidateSuccess(t *testing.T) {
	assert.NoError(t, Validate(loadValid(t)))
}

func TestValidateRejections(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(*Config)
		contains string
	}{
		{
			name:     "invalid environment",
			mutate:   func(c *Config) { c.App.Environment = "invalid" },
			contains: "development, staging, production",
		},
		{
			name:     "invalid log level",
			mutate:   func(c *Config) { c.App.LogLevel = "trace" },
			contains: "debug, info, warn, error",
		},
		{
			name:     "unknown algorithm",
			mutate:   func(c *Config) { c.Engine.Algorithm = "lcg" },
			contains: "mulberry32, xorshift128",
		},
		{
			name:     "unknown retention",
			mutate:   func(c *Config) { c.Engine.Retention.Mode = "sampled" },
			contains: "full, reservoir",
		},
		{
			name:     "bad cron",
			mutate:   func(c *Config) { c.Scheduler.Jobs[0].Schedule = "every night" },
			contains: "cron",
		},
		{
			name:     "min runs above max",
			mutate:   func(c *Config) { c.Engine.MinRuns = 2000000 },
			contains: "min_runs",
		},
		{
			name:     "reservoir without size",
			mutate:   func(c *Config) { c.Engine.Retention.ReservoirSize = 0 },
			contains: "reservoir_size",
		},
		{
			name:     "inverted histogram range",
			mutate:   func(c *Config) { c.Engine.HistogramRange = []float64{10, -10} },
			contains: "histogram_range",
		},
		{
			name:     "database without host",
			mutate:   func(c *Config) { c.Database.Host = "" },
			contains: "host",
		},
		{
			name:     "scheduler without jobs",
			mutate:   func(c *Config) { c.Scheduler.Jobs = nil },
			contains: "no jobs",
		},
		{
			name: "persisting job without database",
			mutate: func(c *Config) {
				c.Database.Enabled = false
			},
			contains: "database is disabled",
		},
		{
			name: "production without ssl",
			mutate: func(c *Config) {
				c.App.Environment = "production"
			},
			contains: "SSL",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := loadValid(t)
			tt.mutate(cfg)
			err := Validate(cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.contains)
		})
	}
}

func TestValidateFullRetentionIgnoresReservoirSize(t *testing.T) {
	cfg := loadValid(t)
	cfg.Engine.Retention.Mode = "full"
	cfg.Engine.Retention.ReservoirSize = 0
	assert.NoError(t, Validate(cfg))
}

func TestToSimulationConfig(t *testing.T) {
	cfg := loadValid(t)
	cfg.Engine.HistogramRange = []float64{-5, 5}

	sim := cfg.Engine.ToSimulationConfig()
	assert.Equal(t, simulation.AlgorithmMulberry32, sim.Algorithm)
	assert.Equal(t, int64(42), sim.DefaultSeed)
	assert.Equal(t, simulation.RetentionReservoir, sim.Retention.Mode)
	assert.Equal(t, 10, sim.Retention.KeepRuns)
	require.NotNil(t, sim.HistogramRange)
	assert.Equal(t, [2]float64{-5, 5}, *sim.HistogramRange)
	assert.NoError(t, sim.Validate())
}

func TestGetDatabaseDSN(t *testing.T) {
	cfg := loadValid(t)
	cfg.Database.Password = "pw"
	assert.Equal(t, "postgres://risk:pw@localhost:5432/scenario_risk?sslmode=disable", cfg.GetDatabaseDSN())
}

func TestParseSecretData(t *testing.T) {
	secrets, err := parseSecretData(&secretsmanager.GetSecretValueOutput{
		SecretString: aws.String(`{"database_password":"s3cret"}`),
	})
	require.NoError(t, err)

	cfg := loadValid(t)
	cfg.Database.Password = "old"
	overlaySecretsOnConfig(cfg, secrets)
	assert.Equal(t, "s3cret", cfg.Database.Password)
	assert.Equal(t, "risk", cfg.Database.User)

	_, err = parseSecretData(&secretsmanager.GetSecretValueOutput{})
	assert.ErrorIs(t, err, errNoSecretDataFound)

	_, err = parseSecretData(&secretsmanager.GetSecretValueOutput{SecretBinary: []byte("{")})
	assert.Error(t, err)
}
