package simulation

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	applogger "github.com/yourusername/scenario-risk/internal/logger"
	"github.com/yourusername/scenario-risk/internal/models"
)

// State is a simulation lifecycle state
type State string

// Simulation states. Running moves to exactly one terminal state.
const (
	StateIdle      State = "idle"
	StateRunning   State = "running"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
	StateCancelled State = "cancelled"
)

// Progress is reported at every chunk boundary
type Progress struct {
	ScenarioID    uuid.UUID `json:"scenarioId"`
	CompletedRuns int       `json:"completedRuns"`
	TotalRuns     int       `json:"totalRuns"`
}

// Fraction returns completed/total
func (p Progress) Fraction() float64 {
	if p.TotalRuns == 0 {
		return 0
	}
	return float64(p.CompletedRuns) / float64(p.TotalRuns)
}

// ProgressFunc receives chunk-boundary progress. It runs on the simulation's
// goroutine and should return quickly.
type ProgressFunc func(Progress)

// Option configures an Engine
type Option func(*Engine)

// WithRNGFactory overrides generator construction. The configured algorithm
// is still recorded in results.
func WithRNGFactory(factory RNGFactory) Option {
	return func(e *Engine) {
		e.rngFactory = factory
	}
}

// WithProgress registers a progress callback for every simulation the
// engine creates
func WithProgress(fn ProgressFunc) Option {
	return func(e *Engine) {
		e.progress = fn
	}
}

// Engine creates simulations from validated scenarios. It holds no
// per-simulation state and is safe for concurrent use.
type Engine struct {
	config     Config
	logger     *logrus.Logger
	simLogger  *applogger.SimulationLogger
	rngFactory RNGFactory
	progress   ProgressFunc
}

// NewEngine creates a new simulation engine
func NewEngine(cfg Config, logger *logrus.Logger, opts ...Option) (*Engine, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid engine config: %w", err)
	}
	if logger == nil {
		logger = logrus.New()
	}
	factory, err := FactoryFor(cfg.Algorithm)
	if err != nil {
		return nil, err
	}
	e := &Engine{
		config:     cfg,
		logger:     logger,
		simLogger:  applogger.NewSimulationLogger(logger),
		rngFactory: factory,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Config returns the engine configuration
func (e *Engine) Config() Config {
	return e.config
}

// Validate checks a scenario against the engine's run bounds
func (e *Engine) Validate(scenario *models.ScenarioConfig) error {
	return ValidateScenario(scenario, e.config)
}

// NewSimulation validates the scenario and prepares an idle simulation. An
// invalid scenario is rejected here, before any generator exists. The
// simulation keeps its own copy, so later edits to scenario have no effect.
func (e *Engine) NewSimulation(scenario *models.ScenarioConfig, evaluator Evaluator, seed int64) (*Simulation, error) {
	scenario = scenario.Clone()
	if err := e.Validate(scenario); err != nil {
		var serr *ScenarioError
		if errors.As(err, &serr) && scenario != nil {
			e.simLogger.LogScenarioRejected(scenario.ID.String(), serr.Field, serr.Reason)
		}
		return nil, err
	}
	if evaluator == nil {
		return nil, fmt.Errorf("kpi evaluator is required")
	}
	fp, err := Fingerprint(scenario, seed, e.config)
	if err != nil {
		return nil, err
	}
	return &Simulation{
		engine:      e,
		scenario:    scenario,
		evaluator:   evaluator,
		seed:        seed,
		fingerprint: fp,
		state:       StateIdle,
		progress:    e.progress,
	}, nil
}

// Run is NewSimulation followed by Simulation.Run
func (e *Engine) Run(ctx context.Context, scenario *models.ScenarioConfig, evaluator Evaluator, seed int64) (*Result, error) {
	sim, err := e.NewSimulation(scenario, evaluator, seed)
	if err != nil {
		return nil, err
	}
	return sim.Run(ctx)
}

// Simulation is one scenario's run. It owns its generator and aggregator.
type Simulation struct {
	engine      *Engine
	scenario    *models.ScenarioConfig
	evaluator   Evaluator
	seed        int64
	fingerprint string

	mu        sync.Mutex
	state     State
	completed int
	err       error
	progress  ProgressFunc
	extra     []ProgressFunc
}

// OnProgress adds a progress callback. Call before Run.
func (s *Simulation) OnProgress(fn ProgressFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.extra = append(s.extra, fn)
}

// State returns the current lifecycle state
func (s *Simulation) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// CompletedRuns returns how many runs have been aggregated
func (s *Simulation) CompletedRuns() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.completed
}

// Err returns the failure or cancellation error, if any
func (s *Simulation) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Fingerprint returns the deterministic identity of this simulation's inputs
func (s *Simulation) Fingerprint() string {
	return s.fingerprint
}

// Run executes runs 0..N-1 in order, in chunks. Context cancellation is
// observed only between chunks. A simulation runs at most once.
func (s *Simulation) Run(ctx context.Context) (*Result, error) {
	s.mu.Lock()
	if s.state != StateIdle {
		state := s.state
		s.mu.Unlock()
		return nil, fmt.Errorf("simulation already %s", state)
	}
	s.state = StateRunning
	s.mu.Unlock()

	cfg := s.engine.config
	scenarioID := s.scenario.ID.String()
	total := s.scenario.Runs
	started := time.Now()

	s.engine.simLogger.LogSimulationStarted(scenarioID, s.scenario.Name, string(cfg.Algorithm), s.seed, total, len(s.scenario.Variables))

	sampler, err := NewSampler(s.scenario, s.engine.rngFactory(s.seed))
	if err != nil {
		s.finish(StateFailed, err)
		return nil, err
	}

	ids := s.scenario.VariableIDs()
	agg := NewAggregator(cfg, ids, s.seed)
	values := make([]float64, len(ids))
	named := make(map[string]float64, len(ids))

	for chunkStart := 0; chunkStart < total; chunkStart += cfg.ChunkSize {
		if ctxErr := ctx.Err(); ctxErr != nil {
			cerr := &CancelledError{CompletedRuns: chunkStart, TotalRuns: total, Cause: ctxErr}
			s.finish(StateCancelled, cerr)
			s.engine.simLogger.LogSimulationCancelled(scenarioID, chunkStart, total)
			return nil, cerr
		}

		chunkEnd := min(chunkStart+cfg.ChunkSize, total)
		for i := chunkStart; i < chunkEnd; i++ {
			sampler.Draw(values)
			for j, id := range ids {
				named[id] = values[j]
			}
			kpi, evalErr := s.evaluator.Evaluate(named, s.scenario)
			if evalErr == nil && (math.IsNaN(kpi) || math.IsInf(kpi, 0)) {
				evalErr = fmt.Errorf("non-finite kpi value %v", kpi)
			}
			if evalErr != nil {
				eerr := &EvaluatorError{RunIndex: i, Err: evalErr}
				s.finish(StateFailed, eerr)
				s.engine.simLogger.LogSimulationFailed(scenarioID, i, evalErr)
				return nil, eerr
			}
			agg.Add(i, values, kpi)
		}

		s.mu.Lock()
		s.completed = chunkEnd
		s.mu.Unlock()
		s.report(Progress{ScenarioID: s.scenario.ID, CompletedRuns: chunkEnd, TotalRuns: total})
		s.engine.simLogger.LogChunkCompleted(scenarioID, chunkEnd, total)
	}

	result := assemble(agg, resultMeta{
		scenario:    s.scenario,
		algorithm:   cfg.Algorithm,
		seed:        s.seed,
		fingerprint: s.fingerprint,
	})
	result.CreatedAt = time.Now().UTC()
	result.Elapsed = time.Since(started)

	s.finish(StateCompleted, nil)

	flags := make([]string, len(result.Flags))
	for i, f := range result.Flags {
		flags[i] = string(f)
	}
	s.engine.simLogger.LogSimulationCompleted(scenarioID, result.RunCount, result.Mean, result.Percentiles.P50, flags, float64(result.Elapsed.Microseconds())/1000)
	return result, nil
}

func (s *Simulation) report(p Progress) {
	s.mu.Lock()
	callbacks := append([]ProgressFunc{s.progress}, s.extra...)
	s.mu.Unlock()
	for _, fn := range callbacks {
		if fn != nil {
			fn(p)
		}
	}
}

func (s *Simulation) finish(state State, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = state
	s.err = err
}

type fingerprintInput struct {
	Scenario        *models.ScenarioConfig    `json:"scenario"`
	Kinds           []models.DistributionKind `json:"kinds"`
	Seed            int64                     `json:"seed"`
	Algorithm       Algorithm                 `json:"algorithm"`
	Retention       Retention                 `json:"retention"`
	HistogramBins   int                       `json:"histogramBins"`
	HistogramWarmup int                       `json:"histogramWarmup"`
	HistogramRange  *[2]float64               `json:"histogramRange,omitempty"`
}

// Fingerprint hashes everything that determines a result: the scenario,
// seed, algorithm and the retention and histogram settings. Chunk size is
// excluded because it does not change results.
func Fingerprint(scenario *models.ScenarioConfig, seed int64, cfg Config) (string, error) {
	cfg = cfg.withDefaults()
	in := fingerprintInput{
		Scenario:        scenario,
		Kinds:           make([]models.DistributionKind, len(scenario.Variables)),
		Seed:            seed,
		Algorithm:       cfg.Algorithm,
		Retention:       cfg.Retention,
		HistogramBins:   cfg.HistogramBins,
		HistogramWarmup: cfg.HistogramWarmup,
		HistogramRange:  cfg.HistogramRange,
	}
	for i, v := range scenario.Variables {
		in.Kinds[i] = v.Distribution.Kind()
	}
	payload, err := json.Marshal(in)
	if err != nil {
		return "", fmt.Errorf("failed to encode fingerprint input: %w", err)
	}
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:]), nil
}
