package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// SimulationRecord represents a persisted simulation result summary
type SimulationRecord struct {
	ID               uuid.UUID       `db:"id" json:"id"`
	ScenarioID       uuid.UUID       `db:"scenario_id" json:"scenario_id"`
	ScenarioName     string          `db:"scenario_name" json:"scenario_name"`
	Fingerprint      string          `db:"fingerprint" json:"fingerprint"`
	Algorithm        string          `db:"algorithm" json:"algorithm"`
	Seed             int64           `db:"seed" json:"seed"`
	RunCount         int             `db:"run_count" json:"run_count"`
	Mean             float64         `db:"mean" json:"mean"`
	StdDev           float64         `db:"std_dev" json:"std_dev"`
	P5               float64         `db:"p5" json:"p5"`
	P50              float64         `db:"p50" json:"p50"`
	P95              float64         `db:"p95" json:"p95"`
	PercentileMethod string          `db:"percentile_method" json:"percentile_method"`
	Flags            []string        `db:"flags" json:"flags"`
	FullResults      json.RawMessage `db:"full_results" json:"full_results"`
	ElapsedMs        int64           `db:"elapsed_ms" json:"elapsed_ms"`
	CreatedAt        time.Time       `db:"created_at" json:"created_at"`
}
