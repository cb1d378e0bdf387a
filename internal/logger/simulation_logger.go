// Package logger provides simulation-specific logging.
package logger

import (
	"github.com/sirupsen/logrus"
)

// SimulationLogger provides dedicated logging for simulation runs.
type SimulationLogger struct {
	*logrus.Entry
}

// NewSimulationLogger creates a new simulation logger.
func NewSimulationLogger(baseLogger *logrus.Logger) *SimulationLogger {
	return &SimulationLogger{
		Entry: baseLogger.WithField("component", "simulation"),
	}
}

// LogSimulationStarted logs the start of a simulation.
func (sl *SimulationLogger) LogSimulationStarted(scenarioID, scenarioName, algorithm string, seed int64, runs, variables int) {
	sl.WithFields(logrus.Fields{
		"scenario_id":   scenarioID,
		"scenario_name": scenarioName,
		"algorithm":     algorithm,
		"seed":          seed,
		"runs":          runs,
		"variables":     variables,
	}).Info("Simulation started")
}

// LogChunkCompleted logs progress at a chunk boundary.
func (sl *SimulationLogger) LogChunkCompleted(scenarioID string, completedRuns, totalRuns int) {
	sl.WithFields(logrus.Fields{
		"scenario_id":    scenarioID,
		"completed_runs": completedRuns,
		"total_runs":     totalRuns,
	}).Debug("Simulation chunk completed")
}

// LogSimulationCompleted logs a finished simulation.
func (sl *SimulationLogger) LogSimulationCompleted(scenarioID string, runs int, mean, p50 float64, flags []string, durationMs float64) {
	sl.WithFields(logrus.Fields{
		"scenario_id": scenarioID,
		"runs":        runs,
		"mean":        mean,
		"p50":         p50,
		"flags":       flags,
		"duration_ms": durationMs,
	}).Info("Simulation completed")
}

// LogSimulationFailed logs an evaluator failure.
func (sl *SimulationLogger) LogSimulationFailed(scenarioID string, runIndex int, err error) {
	sl.WithFields(logrus.Fields{
		"scenario_id": scenarioID,
		"run_index":   runIndex,
		"error":       err.Error(),
	}).Error("Simulation failed")
}

// LogSimulationCancelled logs a cancellation at a chunk boundary.
func (sl *SimulationLogger) LogSimulationCancelled(scenarioID string, completedRuns, totalRuns int) {
	sl.WithFields(logrus.Fields{
		"scenario_id":    scenarioID,
		"completed_runs": completedRuns,
		"total_runs":     totalRuns,
	}).Warn("Simulation cancelled")
}

// LogScenarioRejected logs a scenario that failed validation.
func (sl *SimulationLogger) LogScenarioRejected(scenarioID, field, reason string) {
	sl.WithFields(logrus.Fields{
		"scenario_id": scenarioID,
		"field":       field,
		"reason":      reason,
	}).Warn("Scenario rejected")
}
