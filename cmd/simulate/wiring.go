package main

import (
	"context"
	"fmt"
	"time"

	"github.com/yourusername/scenario-risk/internal/cache"
	"github.com/yourusername/scenario-risk/internal/database"
	"github.com/yourusername/scenario-risk/internal/kpi"
	"github.com/yourusername/scenario-risk/internal/repository"
	"github.com/yourusername/scenario-risk/internal/scenario"
	"github.com/yourusername/scenario-risk/internal/service"
	"github.com/yourusername/scenario-risk/internal/simulation"
)

// components holds everything a command may need to shut down
type components struct {
	service *service.SimulationService
	db      *database.DB
	fetcher *scenario.Fetcher
}

func (c *components) Close() {
	if c.fetcher != nil {
		_ = c.fetcher.Close()
	}
	if c.db != nil {
		c.db.Close()
	}
}

func fetcherConfig() scenario.FetcherConfig {
	fc := scenario.DefaultFetcherConfig()
	src := cfg.ScenarioSource
	if src.TimeoutSeconds > 0 {
		fc.Timeout = time.Duration(src.TimeoutSeconds) * time.Second
	}
	if src.MaxRetries > 0 {
		fc.MaxRetries = src.MaxRetries
	}
	if src.RateLimitPerSecond > 0 {
		fc.RateLimit = src.RateLimitPerSecond
	}
	if src.CircuitBreakerThreshold > 0 {
		fc.CircuitBreakerMax = src.CircuitBreakerThreshold
	}
	if src.CircuitBreakerCooldown > 0 {
		fc.CircuitBreakerCooldown = time.Duration(src.CircuitBreakerCooldown) * time.Second
	}
	return fc
}

// buildComponents wires the simulation service from configuration. The
// database is opened only when it is enabled and the caller needs it.
func buildComponents(ctx context.Context, needDB bool, progress simulation.ProgressFunc) (*components, error) {
	engine, err := newEngine()
	if err != nil {
		return nil, fmt.Errorf("failed to create engine: %w", err)
	}

	c := &components{fetcher: scenario.NewFetcher(fetcherConfig(), appLog)}
	opts := []service.Option{
		service.WithFetcher(c.fetcher),
		service.WithMaxConcurrent(cfg.Server.MaxConcurrentSimulations),
	}
	if progress != nil {
		opts = append(opts, service.WithProgress(progress))
	}
	if cfg.Cache.Enabled {
		opts = append(opts, service.WithCache(cache.NewResultCache(
			time.Duration(cfg.Cache.TTLSeconds)*time.Second,
			time.Duration(cfg.Cache.CleanupIntervalSeconds)*time.Second,
			cfg.Cache.MaxEntries,
		)))
	}

	if needDB && cfg.Database.Enabled {
		db, err := database.Initialize(ctx, cfg, appLog)
		if err != nil {
			c.Close()
			return nil, fmt.Errorf("failed to initialize database: %w", err)
		}
		c.db = db

		repos, err := repository.NewRepositories(db)
		if err != nil {
			c.Close()
			return nil, fmt.Errorf("failed to initialize repositories: %w", err)
		}
		opts = append(opts, service.WithRepository(repos.SimulationResult))
	}

	c.service = service.NewSimulationService(engine, kpi.NewRegistry(), appLog, opts...)
	return c, nil
}
