// Package logger provides audit logging.
package logger

import (
	"time"

	"github.com/sirupsen/logrus"
)

// AuditLogger provides dedicated audit trail logging.
type AuditLogger struct {
	*logrus.Entry
}

// NewAuditLogger creates a new audit logger.
func NewAuditLogger(baseLogger *logrus.Logger) *AuditLogger {
	return &AuditLogger{
		Entry: baseLogger.WithField("component", "audit"),
	}
}

// LogResultPersisted logs a stored simulation result.
func (al *AuditLogger) LogResultPersisted(resultID, scenarioID, fingerprint string, runs int, timestamp time.Time) {
	al.WithFields(logrus.Fields{
		"result_id":   resultID,
		"scenario_id": scenarioID,
		"fingerprint": fingerprint,
		"runs":        runs,
		"timestamp":   timestamp.Unix(),
	}).Info("Simulation result persisted")
}

// LogScheduledRun logs a scheduler-triggered simulation.
func (al *AuditLogger) LogScheduledRun(jobName, source string, seed int64, success bool) {
	al.WithFields(logrus.Fields{
		"job_name": jobName,
		"source":   source,
		"seed":     seed,
		"success":  success,
	}).Info("Scheduled simulation executed")
}

// LogScenarioLoaded logs where a scenario definition came from.
func (al *AuditLogger) LogScenarioLoaded(scenarioID, scenarioName, source string, variables int) {
	al.WithFields(logrus.Fields{
		"scenario_id":   scenarioID,
		"scenario_name": scenarioName,
		"source":        source,
		"variables":     variables,
	}).Info("Scenario loaded")
}
