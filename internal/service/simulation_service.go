// Package service orchestrates scenario simulation, caching and persistence.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/yourusername/scenario-risk/internal/cache"
	"github.com/yourusername/scenario-risk/internal/kpi"
	applogger "github.com/yourusername/scenario-risk/internal/logger"
	"github.com/yourusername/scenario-risk/internal/metrics"
	"github.com/yourusername/scenario-risk/internal/models"
	"github.com/yourusername/scenario-risk/internal/repository"
	"github.com/yourusername/scenario-risk/internal/scenario"
	"github.com/yourusername/scenario-risk/internal/simulation"
)

const defaultMaxConcurrent = 4

// ErrPersistenceDisabled is returned for storage lookups without a repository
var ErrPersistenceDisabled = errors.New("result persistence is disabled")

// Request describes one simulation
type Request struct {
	Scenario *models.ScenarioConfig
	// Seed overrides the engine default seed when non-nil.
	Seed    *int64
	Persist bool
}

// Response carries a result and where it came from
type Response struct {
	// ResultID is set when the result was persisted.
	ResultID uuid.UUID          `json:"resultId,omitempty"`
	Result   *simulation.Result `json:"result"`
	Cached   bool               `json:"cached"`
}

// Option configures a SimulationService
type Option func(*SimulationService)

// WithCache enables the fingerprint-keyed result cache
func WithCache(c *cache.ResultCache) Option {
	return func(s *SimulationService) {
		s.cache = c
	}
}

// WithRepository enables persistence
func WithRepository(repo repository.SimulationResultRepository) Option {
	return func(s *SimulationService) {
		s.repo = repo
	}
}

// WithFetcher enables loading scenarios from http(s) URLs
func WithFetcher(f *scenario.Fetcher) Option {
	return func(s *SimulationService) {
		s.fetcher = f
	}
}

// WithProgress observes chunk progress of every simulation the service runs
func WithProgress(fn simulation.ProgressFunc) Option {
	return func(s *SimulationService) {
		s.progress = fn
	}
}

// WithMaxConcurrent bounds SimulateBatch parallelism
func WithMaxConcurrent(n int) Option {
	return func(s *SimulationService) {
		if n > 0 {
			s.maxConcurrent = n
		}
	}
}

// SimulationService runs scenarios through the engine
type SimulationService struct {
	engine        *simulation.Engine
	registry      *kpi.Registry
	cache         *cache.ResultCache
	repo          repository.SimulationResultRepository
	fetcher       *scenario.Fetcher
	progress      simulation.ProgressFunc
	audit         *applogger.AuditLogger
	logger        *logrus.Logger
	maxConcurrent int
}

// NewSimulationService creates a new simulation service
func NewSimulationService(
	engine *simulation.Engine,
	registry *kpi.Registry,
	logger *logrus.Logger,
	opts ...Option,
) *SimulationService {
	if registry == nil {
		registry = kpi.NewRegistry()
	}
	s := &SimulationService{
		engine:        engine,
		registry:      registry,
		audit:         applogger.NewAuditLogger(logger),
		logger:        logger,
		maxConcurrent: defaultMaxConcurrent,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Engine returns the underlying engine
func (s *SimulationService) Engine() *simulation.Engine {
	return s.engine
}

// PersistenceEnabled reports whether results can be stored
func (s *SimulationService) PersistenceEnabled() bool {
	return s.repo != nil
}

// Simulate validates, fingerprints and runs one scenario. A cached result
// for the same fingerprint is returned without running.
func (s *SimulationService) Simulate(ctx context.Context, req Request) (*Response, error) {
	if err := s.engine.Validate(req.Scenario); err != nil {
		s.recordRejection(err)
		return nil, err
	}

	seed := s.engine.Config().DefaultSeed
	if req.Seed != nil {
		seed = *req.Seed
	}

	fingerprint, err := simulation.Fingerprint(req.Scenario, seed, s.engine.Config())
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if result, ok := s.cache.Get(fingerprint); ok {
			s.logger.WithFields(logrus.Fields{
				"scenario_id": req.Scenario.ID,
				"fingerprint": fingerprint,
			}).Debug("Serving cached simulation result")
			metrics.SimulationsTotal.WithLabelValues(metrics.StatusCached).Inc()
			resp := &Response{Result: result, Cached: true}
			if req.Persist {
				if err := s.persist(ctx, resp); err != nil {
					return nil, err
				}
			}
			return resp, nil
		}
	}

	evaluator, err := s.registry.Build(req.Scenario)
	if err != nil {
		s.recordRejection(err)
		return nil, err
	}

	sim, err := s.engine.NewSimulation(req.Scenario, evaluator, seed)
	if err != nil {
		s.recordRejection(err)
		return nil, err
	}
	if s.progress != nil {
		sim.OnProgress(s.progress)
	}

	algorithm := string(s.engine.Config().Algorithm)
	metrics.RecordSimulationStarted(req.Scenario.Runs)
	start := time.Now()
	result, runErr := sim.Run(ctx)
	elapsed := time.Since(start).Seconds()

	switch sim.State() {
	case simulation.StateCompleted:
		metrics.RecordSimulationFinished(algorithm, metrics.StatusCompleted, result.RunCount, elapsed)
	case simulation.StateCancelled:
		metrics.RecordSimulationFinished(algorithm, metrics.StatusCancelled, sim.CompletedRuns(), elapsed)
	default:
		metrics.RecordSimulationFinished(algorithm, metrics.StatusFailed, sim.CompletedRuns(), elapsed)
	}
	if runErr != nil {
		return nil, runErr
	}

	metrics.RecordResult(result.ScenarioID.String(), result.Mean, result.Percentiles.P5, flagStrings(result.Flags))

	if s.cache != nil {
		s.cache.Set(result)
	}

	resp := &Response{Result: result}
	if req.Persist {
		if err := s.persist(ctx, resp); err != nil {
			return nil, err
		}
	}
	return resp, nil
}

// SimulateBatch runs independent scenarios concurrently. Responses keep the
// request order. The first failure cancels the remaining simulations.
func (s *SimulationService) SimulateBatch(ctx context.Context, reqs []Request) ([]*Response, error) {
	responses := make([]*Response, len(reqs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.maxConcurrent)
	for i := range reqs {
		i := i
		g.Go(func() error {
			resp, err := s.Simulate(gctx, reqs[i])
			if err != nil {
				return fmt.Errorf("scenario %d: %w", i, err)
			}
			responses[i] = resp
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return responses, nil
}

// LoadScenario reads a scenario from a file path or an http(s) URL
func (s *SimulationService) LoadScenario(ctx context.Context, source string) (*models.ScenarioConfig, error) {
	var (
		cfg *models.ScenarioConfig
		err error
	)
	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		if s.fetcher == nil {
			return nil, fmt.Errorf("remote scenario sources are not configured")
		}
		cfg, err = s.fetcher.Fetch(ctx, source)
	} else {
		cfg, err = scenario.LoadFile(source)
	}
	if err != nil {
		return nil, err
	}

	s.audit.LogScenarioLoaded(cfg.ID.String(), cfg.Name, source, len(cfg.Variables))
	return cfg, nil
}

// GetResult loads a persisted result
func (s *SimulationService) GetResult(ctx context.Context, id uuid.UUID) (*simulation.Result, error) {
	if s.repo == nil {
		return nil, ErrPersistenceDisabled
	}
	record, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return simulation.FromRecord(record)
}

// History lists persisted result summaries for a scenario, newest first
func (s *SimulationService) History(ctx context.Context, scenarioID uuid.UUID, limit int) ([]*models.SimulationRecord, error) {
	if s.repo == nil {
		return nil, ErrPersistenceDisabled
	}
	return s.repo.GetByScenarioID(ctx, scenarioID, limit)
}

// Latest lists the most recent persisted result summaries across scenarios
func (s *SimulationService) Latest(ctx context.Context, limit int) ([]*models.SimulationRecord, error) {
	if s.repo == nil {
		return nil, ErrPersistenceDisabled
	}
	return s.repo.GetLatest(ctx, limit)
}

// DeleteResult removes a persisted result
func (s *SimulationService) DeleteResult(ctx context.Context, id uuid.UUID) error {
	if s.repo == nil {
		return ErrPersistenceDisabled
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.WithField("result_id", id).Info("Deleted simulation result")
	return nil
}

// CacheStats describes the result cache
type CacheStats struct {
	Enabled  bool    `json:"enabled"`
	Entries  int     `json:"entries"`
	Hits     uint64  `json:"hits"`
	Misses   uint64  `json:"misses"`
	HitRatio float64 `json:"hitRatio"`
}

// CacheStats reports result cache usage
func (s *SimulationService) CacheStats() CacheStats {
	if s.cache == nil {
		return CacheStats{}
	}
	hits, misses, ratio := s.cache.Stats()
	return CacheStats{Enabled: true, Entries: s.cache.ItemCount(), Hits: hits, Misses: misses, HitRatio: ratio}
}

// InvalidateScenario drops every cached result of a scenario and returns
// how many were removed
func (s *SimulationService) InvalidateScenario(scenarioID uuid.UUID) int {
	if s.cache == nil {
		return 0
	}
	removed := s.cache.Invalidate(scenarioID)
	s.logger.WithFields(logrus.Fields{"scenario_id": scenarioID, "removed": removed}).Info("Invalidated cached results")
	return removed
}

// ClearCache drops every cached result
func (s *SimulationService) ClearCache() {
	if s.cache != nil {
		s.cache.Clear()
		s.logger.Info("Cleared result cache")
	}
}

func (s *SimulationService) persist(ctx context.Context, resp *Response) error {
	if s.repo == nil {
		return ErrPersistenceDisabled
	}

	// Results are deterministic per fingerprint, so an existing record is reused.
	existing, err := s.repo.GetByFingerprint(ctx, resp.Result.Fingerprint)
	switch {
	case err == nil:
		resp.ResultID = existing.ID
		return nil
	case !errors.Is(err, models.ErrNotFound):
		metrics.RecordResultPersisted("failure")
		return fmt.Errorf("failed to look up stored result: %w", err)
	}

	id := uuid.New()
	record, err := simulation.ToRecord(id, resp.Result)
	if err != nil {
		metrics.RecordResultPersisted("failure")
		return err
	}
	if err := s.repo.Save(ctx, record); err != nil {
		metrics.RecordResultPersisted("failure")
		s.logger.WithError(err).WithField("scenario_id", resp.Result.ScenarioID).Error("Failed to persist simulation result")
		return fmt.Errorf("failed to persist result: %w", err)
	}

	metrics.RecordResultPersisted("success")
	s.audit.LogResultPersisted(id.String(), record.ScenarioID.String(), record.Fingerprint, record.RunCount, time.Now())
	resp.ResultID = id
	return nil
}

func (s *SimulationService) recordRejection(err error) {
	var serr *simulation.ScenarioError
	if errors.As(err, &serr) {
		metrics.RecordScenarioRejected(serr.Field)
	}
}

func flagStrings(flags []simulation.NumericFlag) []string {
	out := make([]string, len(flags))
	for i, f := range flags {
		out[i] = string(f)
	}
	return out
}
