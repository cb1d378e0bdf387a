package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/yourusername/scenario-risk/internal/database"
	"github.com/yourusername/scenario-risk/internal/models"
)

const (
	errScanSimulationResult = "failed to scan simulation result: %w"
	uniqueViolation         = "23505"
	defaultListLimit        = 50

	selectSimulationResult = `
		SELECT id, scenario_id, scenario_name, fingerprint, algorithm, seed, run_count,
			mean, std_dev, p5, p50, p95, percentile_method, flags, full_results,
			elapsed_ms, created_at
		FROM simulation_results`
)

// PostgresSimulationResultRepository implements SimulationResultRepository for PostgreSQL
type PostgresSimulationResultRepository struct {
	db *database.DB
}

// NewPostgresSimulationResultRepository creates a new simulation result repository
func NewPostgresSimulationResultRepository(db *database.DB) SimulationResultRepository {
	return &PostgresSimulationResultRepository{db: db}
}

// Save inserts a simulation result
func (r *PostgresSimulationResultRepository) Save(ctx context.Context, record *models.SimulationRecord) error {
	query := `
		INSERT INTO simulation_results (
			id, scenario_id, scenario_name, fingerprint, algorithm, seed, run_count,
			mean, std_dev, p5, p50, p95, percentile_method, flags, full_results,
			elapsed_ms, created_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)
	`

	flags := record.Flags
	if flags == nil {
		flags = []string{}
	}

	_, err := r.db.Exec(ctx, query,
		record.ID, record.ScenarioID, record.ScenarioName, record.Fingerprint, record.Algorithm,
		record.Seed, record.RunCount, record.Mean, record.StdDev, record.P5, record.P50, record.P95,
		record.PercentileMethod, flags, record.FullResults, record.ElapsedMs, record.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return models.ErrDuplicateKey
		}
		return fmt.Errorf("failed to save simulation result: %w", err)
	}
	return nil
}

// GetByID retrieves a simulation result by ID
func (r *PostgresSimulationResultRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.SimulationRecord, error) {
	row := r.db.QueryRow(ctx, selectSimulationResult+` WHERE id = $1`, id)
	record, err := scanRecord(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf(errScanSimulationResult, err)
	}
	return record, nil
}

// GetByFingerprint retrieves the newest result stored for a fingerprint
func (r *PostgresSimulationResultRepository) GetByFingerprint(ctx context.Context, fingerprint string) (*models.SimulationRecord, error) {
	row := r.db.QueryRow(ctx, selectSimulationResult+` WHERE fingerprint = $1 ORDER BY created_at DESC LIMIT 1`, fingerprint)
	record, err := scanRecord(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf(errScanSimulationResult, err)
	}
	return record, nil
}

// GetByScenarioID retrieves results for a scenario, newest first
func (r *PostgresSimulationResultRepository) GetByScenarioID(ctx context.Context, scenarioID uuid.UUID, limit int) ([]*models.SimulationRecord, error) {
	rows, err := r.db.Query(ctx, selectSimulationResult+` WHERE scenario_id = $1 ORDER BY created_at DESC LIMIT $2`, scenarioID, normalizeLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to query simulation results: %w", err)
	}
	return collectRecords(rows)
}

// GetLatest retrieves the most recent results across scenarios
func (r *PostgresSimulationResultRepository) GetLatest(ctx context.Context, limit int) ([]*models.SimulationRecord, error) {
	rows, err := r.db.Query(ctx, selectSimulationResult+` ORDER BY created_at DESC LIMIT $1`, normalizeLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to query latest simulation results: %w", err)
	}
	return collectRecords(rows)
}

// Delete removes a simulation result
func (r *PostgresSimulationResultRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM simulation_results WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete simulation result: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return defaultListLimit
	}
	return limit
}

func scanRecord(row pgx.Row) (*models.SimulationRecord, error) {
	record := &models.SimulationRecord{}
	err := row.Scan(
		&record.ID, &record.ScenarioID, &record.ScenarioName, &record.Fingerprint, &record.Algorithm,
		&record.Seed, &record.RunCount, &record.Mean, &record.StdDev, &record.P5, &record.P50, &record.P95,
		&record.PercentileMethod, &record.Flags, &record.FullResults, &record.ElapsedMs, &record.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return record, nil
}

func collectRecords(rows pgx.Rows) ([]*models.SimulationRecord, error) {
	defer rows.Close()

	var records []*models.SimulationRecord
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf(errScanSimulationResult, err)
		}
		records = append(records, record)
	}
	return records, rows.Err()
}
