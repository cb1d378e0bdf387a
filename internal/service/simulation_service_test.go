package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/scenario-risk/internal/cache"
	"github.com/yourusername/scenario-risk/internal/kpi"
	"github.com/yourusername/scenario-risk/internal/logger"
	"github.com/yourusername/scenario-risk/internal/models"
	"github.com/yourusername/scenario-risk/internal/simulation"
)

type memoryRepository struct {
	mu      sync.Mutex
	records map[uuid.UUID]*models.SimulationRecord
	failure error
}

func newMemoryRepository() *memoryRepository {
	return &memoryRepository{records: make(map[uuid.UUID]*models.SimulationRecord)}
}

func (m *memoryRepository) Save(_ context.Context, record *models.SimulationRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failure != nil {
		return m.failure
	}
	m.records[record.ID] = record
	return nil
}

func (m *memoryRepository) GetByID(_ context.Context, id uuid.UUID) (*models.SimulationRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.records[id]; ok {
		return r, nil
	}
	return nil, models.ErrNotFound
}

func (m *memoryRepository) newest(keep func(*models.SimulationRecord) bool, limit int) []*models.SimulationRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.SimulationRecord
	for _, r := range m.records {
		if keep(r) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (m *memoryRepository) GetByScenarioID(_ context.Context, scenarioID uuid.UUID, limit int) ([]*models.SimulationRecord, error) {
	return m.newest(func(r *models.SimulationRecord) bool { return r.ScenarioID == scenarioID }, limit), nil
}

func (m *memoryRepository) GetByFingerprint(_ context.Context, fingerprint string) (*models.SimulationRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.records {
		if r.Fingerprint == fingerprint {
			return r, nil
		}
	}
	return nil, models.ErrNotFound
}

func (m *memoryRepository) GetLatest(_ context.Context, limit int) ([]*models.SimulationRecord, error) {
	return m.newest(func(*models.SimulationRecord) bool { return true }, limit), nil
}

func (m *memoryRepository) Delete(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.records[id]; !ok {
		return models.ErrNotFound
	}
	delete(m.records, id)
	return nil
}

func launch(runs int) *models.ScenarioConfig {
	return &models.ScenarioConfig{
		ID:         uuid.MustParse("2d7e3c61-5b0f-4c1a-8a0e-6f8f5a9f1c22"),
		Name:       "Launch",
		Runs:       runs,
		Volatility: 1,
		Variables: []models.ScenarioVariable{
			{ID: "revenue", Distribution: models.Triangular{Min: 80, MostLikely: 120, Max: 180}},
			{ID: "cost", Distribution: models.PERT{Min: 40, MostLikely: 60, Max: 110}},
		},
		KPI: models.KPISpec{Type: kpi.TypeExpression, Expression: "revenue - cost"},
	}
}

func newService(t *testing.T, opts ...Option) *SimulationService {
	t.Helper()
	log := logger.NewDiscardLogger()
	engine, err := simulation.NewEngine(simulation.DefaultConfig(), log)
	require.NoError(t, err)
	return NewSimulationService(engine, kpi.NewRegistry(), log, opts...)
}

func seed(v int64) *int64 { return &v }

func TestSimulateRunsScenario(t *testing.T) {
	svc := newService(t)

	resp, err := svc.Simulate(context.Background(), Request{Scenario: launch(5000), Seed: seed(7)})
	require.NoError(t, err)
	assert.False(t, resp.Cached)
	assert.Equal(t, uuid.Nil, resp.ResultID)
	assert.Equal(t, 5000, resp.Result.RunCount)
	assert.Equal(t, int64(7), resp.Result.Seed)
	assert.InDelta(t, (80.0+120+180)/3-models.PERT{Min: 40, MostLikely: 60, Max: 110}.Mean(), resp.Result.Mean, 1.5)
}

func TestSimulateUsesDefaultSeed(t *testing.T) {
	svc := newService(t)

	resp, err := svc.Simulate(context.Background(), Request{Scenario: launch(100)})
	require.NoError(t, err)
	assert.Equal(t, svc.Engine().Config().DefaultSeed, resp.Result.Seed)
}

func TestSimulateServesCachedResult(t *testing.T) {
	rc := cache.NewResultCache(time.Hour, 0, 10)
	svc := newService(t, WithCache(rc))

	first, err := svc.Simulate(context.Background(), Request{Scenario: launch(2000), Seed: seed(1)})
	require.NoError(t, err)
	second, err := svc.Simulate(context.Background(), Request{Scenario: launch(2000), Seed: seed(1)})
	require.NoError(t, err)

	assert.False(t, first.Cached)
	assert.True(t, second.Cached)
	assert.Same(t, first.Result, second.Result)

	other, err := svc.Simulate(context.Background(), Request{Scenario: launch(2000), Seed: seed(2)})
	require.NoError(t, err)
	assert.False(t, other.Cached)
}

func TestSimulateRejectsInvalidScenario(t *testing.T) {
	svc := newService(t)
	bad := launch(100)
	bad.Variables[0].Distribution = models.Triangular{Min: 10, MostLikely: 5, Max: 20}

	_, err := svc.Simulate(context.Background(), Request{Scenario: bad})
	require.Error(t, err)
	assert.ErrorIs(t, err, simulation.ErrInvalidScenario)

	var serr *simulation.ScenarioError
	require.True(t, errors.As(err, &serr))
	assert.Equal(t, "variables[0].distribution.mostLikely", serr.Field)
}

func TestSimulateRejectsUnknownKPIType(t *testing.T) {
	svc := newService(t)
	bad := launch(100)
	bad.KPI = models.KPISpec{Type: "npv"}

	_, err := svc.Simulate(context.Background(), Request{Scenario: bad})
	var serr *simulation.ScenarioError
	require.True(t, errors.As(err, &serr))
	assert.Equal(t, "kpi.type", serr.Field)
}

func TestSimulateCancelled(t *testing.T) {
	svc := newService(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.Simulate(ctx, Request{Scenario: launch(20000)})
	assert.ErrorIs(t, err, simulation.ErrCancelled)
}

func TestSimulatePersists(t *testing.T) {
	repo := newMemoryRepository()
	svc := newService(t, WithRepository(repo))
	require.True(t, svc.PersistenceEnabled())

	resp, err := svc.Simulate(context.Background(), Request{Scenario: launch(1000), Seed: seed(3), Persist: true})
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, resp.ResultID)

	stored, err := svc.GetResult(context.Background(), resp.ResultID)
	require.NoError(t, err)
	assert.Equal(t, resp.Result.Percentiles, stored.Percentiles)
	assert.Equal(t, resp.Result.Fingerprint, stored.Fingerprint)

	history, err := svc.History(context.Background(), resp.Result.ScenarioID, 10)
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestSimulatePersistFailure(t *testing.T) {
	repo := newMemoryRepository()
	repo.failure = errors.New("disk full")
	svc := newService(t, WithRepository(repo))

	_, err := svc.Simulate(context.Background(), Request{Scenario: launch(100), Persist: true})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
}

func TestSimulatePersistReusesStoredResult(t *testing.T) {
	repo := newMemoryRepository()
	svc := newService(t, WithRepository(repo))

	first, err := svc.Simulate(context.Background(), Request{Scenario: launch(1000), Seed: seed(3), Persist: true})
	require.NoError(t, err)
	second, err := svc.Simulate(context.Background(), Request{Scenario: launch(1000), Seed: seed(3), Persist: true})
	require.NoError(t, err)
	assert.Equal(t, first.ResultID, second.ResultID)

	third, err := svc.Simulate(context.Background(), Request{Scenario: launch(1000), Seed: seed(4), Persist: true})
	require.NoError(t, err)
	assert.NotEqual(t, first.ResultID, third.ResultID)

	latest, err := svc.Latest(context.Background(), 10)
	require.NoError(t, err)
	assert.Len(t, latest, 2)

	latest, err = svc.Latest(context.Background(), 1)
	require.NoError(t, err)
	assert.Len(t, latest, 1)
}

func TestDeleteResult(t *testing.T) {
	repo := newMemoryRepository()
	svc := newService(t, WithRepository(repo))

	resp, err := svc.Simulate(context.Background(), Request{Scenario: launch(500), Persist: true})
	require.NoError(t, err)

	require.NoError(t, svc.DeleteResult(context.Background(), resp.ResultID))
	_, err = svc.GetResult(context.Background(), resp.ResultID)
	assert.ErrorIs(t, err, models.ErrNotFound)
	assert.ErrorIs(t, svc.DeleteResult(context.Background(), resp.ResultID), models.ErrNotFound)

	latest, err := svc.Latest(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, latest)
}

func TestCacheManagement(t *testing.T) {
	svc := newService(t, WithCache(cache.NewResultCache(time.Hour, 0, 10)))
	ctx := context.Background()

	_, err := svc.Simulate(ctx, Request{Scenario: launch(500), Seed: seed(1)})
	require.NoError(t, err)
	_, err = svc.Simulate(ctx, Request{Scenario: launch(500), Seed: seed(2)})
	require.NoError(t, err)
	_, err = svc.Simulate(ctx, Request{Scenario: launch(500), Seed: seed(1)})
	require.NoError(t, err)

	stats := svc.CacheStats()
	assert.True(t, stats.Enabled)
	assert.Equal(t, 2, stats.Entries)
	assert.Equal(t, uint64(1), stats.Hits)
	assert.Equal(t, uint64(2), stats.Misses)

	assert.Equal(t, 0, svc.InvalidateScenario(uuid.New()))
	assert.Equal(t, 2, svc.InvalidateScenario(launch(500).ID))
	assert.Equal(t, 0, svc.CacheStats().Entries)

	_, err = svc.Simulate(ctx, Request{Scenario: launch(500), Seed: seed(1)})
	require.NoError(t, err)
	svc.ClearCache()
	assert.Equal(t, CacheStats{Enabled: true}, svc.CacheStats())

	assert.Equal(t, CacheStats{}, newService(t).CacheStats())
}

func TestPersistenceDisabled(t *testing.T) {
	svc := newService(t)

	_, err := svc.Simulate(context.Background(), Request{Scenario: launch(100), Persist: true})
	assert.ErrorIs(t, err, ErrPersistenceDisabled)

	_, err = svc.GetResult(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrPersistenceDisabled)

	_, err = svc.Latest(context.Background(), 5)
	assert.ErrorIs(t, err, ErrPersistenceDisabled)
	assert.ErrorIs(t, svc.DeleteResult(context.Background(), uuid.New()), ErrPersistenceDisabled)
}

func TestSimulateBatchMatchesSequential(t *testing.T) {
	svc := newService(t, WithMaxConcurrent(3))

	reqs := make([]Request, 6)
	for i := range reqs {
		reqs[i] = Request{Scenario: launch(3000), Seed: seed(int64(i))}
	}
	batch, err := svc.SimulateBatch(context.Background(), reqs)
	require.NoError(t, err)
	require.Len(t, batch, len(reqs))

	for i, req := range reqs {
		single, err := svc.Simulate(context.Background(), req)
		require.NoError(t, err)
		assert.Equal(t, single.Result.Percentiles, batch[i].Result.Percentiles, "request %d", i)
		assert.Equal(t, single.Result.Mean, batch[i].Result.Mean, "request %d", i)
	}
}

func TestSimulateBatchFailsFast(t *testing.T) {
	svc := newService(t)
	bad := launch(100)
	bad.Runs = 0

	_, err := svc.SimulateBatch(context.Background(), []Request{
		{Scenario: launch(100)},
		{Scenario: bad},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scenario 1")
	assert.ErrorIs(t, err, simulation.ErrInvalidScenario)
}

func TestSimulateReportsProgress(t *testing.T) {
	var mu sync.Mutex
	var seen []simulation.Progress
	svc := newService(t, WithProgress(func(p simulation.Progress) {
		mu.Lock()
		seen = append(seen, p)
		mu.Unlock()
	}))

	_, err := svc.Simulate(context.Background(), Request{Scenario: launch(12000)})
	require.NoError(t, err)
	require.NotEmpty(t, seen)
	assert.Equal(t, 12000, seen[len(seen)-1].CompletedRuns)
}

func TestLoadScenarioFromFile(t *testing.T) {
	svc := newService(t)
	path := filepath.Join(t.TempDir(), "scenario.yaml")
	doc := `
name: Loaded
runs: 500
variables:
  - id: demand
    distribution: normal
    params: {mean: 100, stdDev: 10}
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))

	cfg, err := svc.LoadScenario(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "Loaded", cfg.Name)
	assert.Len(t, cfg.Variables, 1)

	_, err = svc.LoadScenario(context.Background(), "https://example.invalid/scenario.yaml")
	assert.Error(t, err)
}
