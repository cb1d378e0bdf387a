// Package repository persists simulation results.
package repository

import (
	"fmt"

	"github.com/yourusername/scenario-risk/internal/database"
)

// Repositories holds all repository implementations
type Repositories struct {
	SimulationResult SimulationResultRepository
}

// NewRepositories creates and returns all repository implementations
func NewRepositories(db *database.DB) (*Repositories, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}

	return &Repositories{
		SimulationResult: NewPostgresSimulationResultRepository(db),
	}, nil
}
