// Package config provides configuration management for the risk simulation service.
package config

import (
	"fmt"

	"github.com/yourusername/scenario-risk/internal/simulation"
)

// Config represents the complete application configuration
type Config struct {
	App            AppConfig            `mapstructure:"app" validate:"required"`
	Engine         EngineConfig         `mapstructure:"engine" validate:"required"`
	Database       DatabaseConfig       `mapstructure:"database"`
	Cache          CacheConfig          `mapstructure:"cache"`
	Metrics        MetricsConfig        `mapstructure:"metrics"`
	Server         ServerConfig         `mapstructure:"server" validate:"required"`
	Scheduler      SchedulerConfig      `mapstructure:"scheduler"`
	ScenarioSource ScenarioSourceConfig `mapstructure:"scenario_source"`
	Secrets        SecretsConfig        `mapstructure:"secrets"`
}

// AppConfig represents application-level configuration
type AppConfig struct {
	Name        string `mapstructure:"name" validate:"required"`
	Environment string `mapstructure:"environment" validate:"required,environment"`
	LogLevel    string `mapstructure:"log_level" validate:"required,loglevel"`
}

// EngineConfig represents Monte Carlo engine settings
type EngineConfig struct {
	Algorithm       string          `mapstructure:"algorithm" validate:"required,rngalgorithm"`
	DefaultSeed     int64           `mapstructure:"default_seed"`
	ChunkSize       int             `mapstructure:"chunk_size" validate:"required,gt=0"`
	MinRuns         int             `mapstructure:"min_runs" validate:"required,gt=0"`
	MaxRuns         int             `mapstructure:"max_runs" validate:"required,gt=0"`
	Retention       RetentionConfig `mapstructure:"retention" validate:"required"`
	HistogramBins   int             `mapstructure:"histogram_bins" validate:"required,gt=0"`
	HistogramWarmup int             `mapstructure:"histogram_warmup" validate:"required,gt=0"`
	// HistogramRange is optional; when set it must hold [lo, hi].
	HistogramRange []float64 `mapstructure:"histogram_range" validate:"omitempty,len=2"`
}

// RetentionConfig represents KPI sample retention
type RetentionConfig struct {
	Mode          string `mapstructure:"mode" validate:"required,retention"`
	ReservoirSize int    `mapstructure:"reservoir_size" validate:"gte=0"`
	KeepRuns      int    `mapstructure:"keep_runs" validate:"gte=0"`
}

// DatabaseConfig represents database connection configuration
type DatabaseConfig struct {
	Enabled            bool   `mapstructure:"enabled"`
	Host               string `mapstructure:"host"`
	Port               int    `mapstructure:"port" validate:"omitempty,min=1,max=65535"`
	Name               string `mapstructure:"name"`
	User               string `mapstructure:"user"`
	Password           string `mapstructure:"password"`
	SSLMode            string `mapstructure:"ssl_mode" validate:"omitempty,oneof=disable require verify-full"`
	MaxConnections     int    `mapstructure:"max_connections" validate:"gte=0"`
	MaxIdleConnections int    `mapstructure:"max_idle_connections" validate:"gte=0"`
}

// CacheConfig represents the in-memory result cache
type CacheConfig struct {
	Enabled                bool `mapstructure:"enabled"`
	TTLSeconds             int  `mapstructure:"ttl_seconds" validate:"gte=0"`
	CleanupIntervalSeconds int  `mapstructure:"cleanup_interval_seconds" validate:"gte=0"`
	MaxEntries             int  `mapstructure:"max_entries" validate:"gte=0"`
}

// MetricsConfig represents metrics and monitoring configuration
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path" validate:"required_if=Enabled true"`
}

// ServerConfig represents the HTTP, websocket and gRPC surfaces
type ServerConfig struct {
	HTTPAddress              string  `mapstructure:"http_address" validate:"required"`
	GRPCAddress              string  `mapstructure:"grpc_address"`
	ReadTimeoutSeconds       int     `mapstructure:"read_timeout_seconds" validate:"gte=0"`
	WriteTimeoutSeconds      int     `mapstructure:"write_timeout_seconds" validate:"gte=0"`
	RateLimitPerSecond       float64 `mapstructure:"rate_limit_per_second" validate:"gt=0"`
	RateLimitBurst           int     `mapstructure:"rate_limit_burst" validate:"gt=0"`
	MaxConcurrentSimulations int     `mapstructure:"max_concurrent_simulations" validate:"gt=0"`
}

// SchedulerConfig represents scheduled re-simulation jobs
type SchedulerConfig struct {
	Enabled bool                 `mapstructure:"enabled"`
	Jobs    []ScheduledJobConfig `mapstructure:"jobs" validate:"dive"`
}

// ScheduledJobConfig represents a single cron job
type ScheduledJobConfig struct {
	Name     string `mapstructure:"name" validate:"required"`
	Schedule string `mapstructure:"schedule" validate:"required,cronspec"`
	Source   string `mapstructure:"source" validate:"required"`
	Seed     int64  `mapstructure:"seed"`
	Persist  bool   `mapstructure:"persist"`
}

// ScenarioSourceConfig represents remote scenario fetching
type ScenarioSourceConfig struct {
	TimeoutSeconds          int     `mapstructure:"timeout_seconds" validate:"gte=0"`
	MaxRetries              int     `mapstructure:"max_retries" validate:"gte=0"`
	RateLimitPerSecond      float64 `mapstructure:"rate_limit_per_second" validate:"gte=0"`
	CircuitBreakerThreshold int     `mapstructure:"circuit_breaker_threshold" validate:"gte=0"`
	CircuitBreakerCooldown  int     `mapstructure:"circuit_breaker_cooldown_seconds" validate:"gte=0"`
}

// SecretsConfig locates the AWS Secrets Manager overlay
type SecretsConfig struct {
	AWSRegion  string `mapstructure:"aws_region"`
	SecretName string `mapstructure:"secret_name"`
}

// IsDevelopment checks if the application is running in development mode
func (c *Config) IsDevelopment() bool {
	return c.App.Environment == "development"
}

// IsStaging checks if the application is running in staging mode
func (c *Config) IsStaging() bool {
	return c.App.Environment == "staging"
}

// IsProduction checks if the application is running in production mode
func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

// GetDatabaseDSN returns a PostgreSQL DSN string
func (c *Config) GetDatabaseDSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Name,
		c.Database.SSLMode,
	)
}

// ToSimulationConfig converts engine settings into the engine's own config
func (e EngineConfig) ToSimulationConfig() simulation.Config {
	cfg := simulation.Config{
		Algorithm:   simulation.Algorithm(e.Algorithm),
		DefaultSeed: e.DefaultSeed,
		ChunkSize:   e.ChunkSize,
		MinRuns:     e.MinRuns,
		MaxRuns:     e.MaxRuns,
		Retention: simulation.Retention{
			Mode:          simulation.RetentionMode(e.Retention.Mode),
			ReservoirSize: e.Retention.ReservoirSize,
			KeepRuns:      e.Retention.KeepRuns,
		},
		HistogramBins:   e.HistogramBins,
		HistogramWarmup: e.HistogramWarmup,
	}
	if len(e.HistogramRange) == 2 {
		cfg.HistogramRange = &[2]float64{e.HistogramRange[0], e.HistogramRange[1]}
	}
	return cfg
}
