package simulation

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/yourusername/scenario-risk/internal/models"
)

// ToRecord converts a result to its persisted summary form. The full result
// is embedded as JSON.
func ToRecord(id uuid.UUID, result *Result) (*models.SimulationRecord, error) {
	payload, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal result: %w", err)
	}
	flags := make([]string, len(result.Flags))
	for i, f := range result.Flags {
		flags[i] = string(f)
	}
	return &models.SimulationRecord{
		ID:               id,
		ScenarioID:       result.ScenarioID,
		ScenarioName:     result.ScenarioName,
		Fingerprint:      result.Fingerprint,
		Algorithm:        string(result.Algorithm),
		Seed:             result.Seed,
		RunCount:         result.RunCount,
		Mean:             result.Mean,
		StdDev:           result.StdDev,
		P5:               result.Percentiles.P5,
		P50:              result.Percentiles.P50,
		P95:              result.Percentiles.P95,
		PercentileMethod: result.Retention.Method,
		Flags:            flags,
		FullResults:      payload,
		ElapsedMs:        result.Elapsed.Milliseconds(),
		CreatedAt:        result.CreatedAt,
	}, nil
}

// FromRecord restores the full result embedded in a record
func FromRecord(record *models.SimulationRecord) (*Result, error) {
	if len(record.FullResults) == 0 {
		return nil, fmt.Errorf("record %s has no embedded result", record.ID)
	}
	var result Result
	if err := json.Unmarshal(record.FullResults, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal result: %w", err)
	}
	return &result, nil
}

// ExportToJSON writes a result to a JSON file
func ExportToJSON(result *Result, outputPath string) error {
	if outputPath == "" {
		return fmt.Errorf("output path is required")
	}
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}
	return os.WriteFile(outputPath, data, 0o644)
}
