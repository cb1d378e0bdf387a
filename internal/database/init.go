package database

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/yourusername/scenario-risk/internal/config"
	"github.com/yourusername/scenario-risk/migrations"
)

// Initialize creates a database connection pool and applies the schema
func Initialize(ctx context.Context, cfg *config.Config, logger *logrus.Logger) (*DB, error) {
	db, err := NewDB(ctx, &cfg.Database)
	if err != nil {
		return nil, err
	}

	if err := db.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}

	var count int64
	if err := db.QueryRow(ctx, "SELECT COUNT(*) FROM simulation_results").Scan(&count); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to verify simulation_results table: %w", err)
	}

	logger.WithFields(logrus.Fields{
		"host":           cfg.Database.Host,
		"database":       cfg.Database.Name,
		"stored_results": count,
	}).Info("Database initialized")

	return db, nil
}

// Migrate applies the embedded up migrations. Every statement is idempotent.
func (db *DB) Migrate(ctx context.Context) error {
	statements, err := migrations.Up()
	if err != nil {
		return fmt.Errorf("failed to read migrations: %w", err)
	}

	return db.WithTransaction(ctx, func(txCtx context.Context) error {
		for i, stmt := range statements {
			if _, err := db.Exec(txCtx, stmt); err != nil {
				return fmt.Errorf("failed to apply migration %d: %w", i+1, err)
			}
		}
		return nil
	})
}
