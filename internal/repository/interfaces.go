package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/yourusername/scenario-risk/internal/models"
)

// SimulationResultRepository defines the interface for simulation result storage
type SimulationResultRepository interface {
	Save(ctx context.Context, record *models.SimulationRecord) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.SimulationRecord, error)
	GetByScenarioID(ctx context.Context, scenarioID uuid.UUID, limit int) ([]*models.SimulationRecord, error)
	GetByFingerprint(ctx context.Context, fingerprint string) (*models.SimulationRecord, error)
	GetLatest(ctx context.Context, limit int) ([]*models.SimulationRecord, error)
	Delete(ctx context.Context, id uuid.UUID) error
}
