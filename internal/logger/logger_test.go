package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestLogger() (*logrus.Logger, *bytes.Buffer) {
	log := logrus.New()
	buf := &bytes.Buffer{}
	log.SetOutput(buf)
	log.SetFormatter(&logrus.JSONFormatter{})
	log.SetLevel(logrus.DebugLevel)
	return log, buf
}

func parseLogOutput(buf *bytes.Buffer) map[string]interface{} {
	var logEntry map[string]interface{}
	err := json.Unmarshal(buf.Bytes(), &logEntry)
	if err != nil {
		return nil
	}
	return logEntry
}

func TestNewLoggerLevel(t *testing.T) {
	log := NewLogger("debug")
	assert.Equal(t, logrus.DebugLevel, log.GetLevel())

	log = NewLogger("not-a-level")
	assert.Equal(t, logrus.InfoLevel, log.GetLevel())
}

func TestSimulationLoggerStarted(t *testing.T) {
	log, buf := setupTestLogger()
	simLogger := NewSimulationLogger(log)

	simLogger.LogSimulationStarted("scenario_001", "Launch", "mulberry32", 42, 10000, 3)

	logEntry := parseLogOutput(buf)
	require.NotNil(t, logEntry)
	assert.Equal(t, "scenario_001", logEntry["scenario_id"])
	assert.Equal(t, "simulation", logEntry["component"])
	assert.Equal(t, float64(10000), logEntry["runs"])
}

func TestSimulationLoggerChunkIsDebug(t *testing.T) {
	log, buf := setupTestLogger()
	log.SetLevel(logrus.InfoLevel)
	simLogger := NewSimulationLogger(log)

	simLogger.LogChunkCompleted("scenario_001", 5000, 10000)

	assert.Empty(t, buf.String())
}

func TestSimulationLoggerFailed(t *testing.T) {
	log, buf := setupTestLogger()
	simLogger := NewSimulationLogger(log)

	simLogger.LogSimulationFailed("scenario_001", 17, errors.New("boom"))

	logEntry := parseLogOutput(buf)
	require.NotNil(t, logEntry)
	assert.Equal(t, float64(17), logEntry["run_index"])
	assert.Equal(t, "boom", logEntry["error"])
	assert.Equal(t, "error", logEntry["level"])
}

func TestSimulationLoggerCancelled(t *testing.T) {
	log, buf := setupTestLogger()
	simLogger := NewSimulationLogger(log)

	simLogger.LogSimulationCancelled("scenario_001", 5000, 20000)

	logEntry := parseLogOutput(buf)
	require.NotNil(t, logEntry)
	assert.Equal(t, float64(5000), logEntry["completed_runs"])
	assert.Equal(t, "warning", logEntry["level"])
}

func TestAuditLoggerResultPersisted(t *testing.T) {
	log, buf := setupTestLogger()
	auditLogger := NewAuditLogger(log)

	auditLogger.LogResultPersisted(
		"result_123",
		"scenario_001",
		"abc123",
		10000,
		time.Date(2024, 2, 3, 12, 0, 0, 0, time.UTC),
	)

	logEntry := parseLogOutput(buf)
	require.NotNil(t, logEntry)
	assert.Equal(t, "result_123", logEntry["result_id"])
	assert.Equal(t, "audit", logEntry["component"])
}

func TestAuditLoggerScheduledRun(t *testing.T) {
	log, buf := setupTestLogger()
	auditLogger := NewAuditLogger(log)

	auditLogger.LogScheduledRun("nightly", "scenarios/launch.yaml", 7, true)

	logEntry := parseLogOutput(buf)
	require.NotNil(t, logEntry)
	assert.Equal(t, "nightly", logEntry["job_name"])
	assert.Equal(t, true, logEntry["success"])
}

func TestLoggerJSONFormat(t *testing.T) {
	log, buf := setupTestLogger()
	simLogger := NewSimulationLogger(log)

	simLogger.LogSimulationCompleted("scenario_001", 10000, 12.5, 12.1, []string{"cv_undefined"}, 35.2)

	// Verify output is valid JSON
	var logEntry map[string]interface{}
	err := json.Unmarshal(buf.Bytes(), &logEntry)
	assert.NoError(t, err)
	assert.NotEmpty(t, logEntry)
}

func BenchmarkSimulationLoggerChunk(b *testing.B) {
	log := logrus.New()
	log.SetOutput(&bytes.Buffer{})
	log.SetLevel(logrus.DebugLevel)
	simLogger := NewSimulationLogger(log)

	for i := 0; i < b.N; i++ {
		simLogger.LogChunkCompleted("scenario_001", i, b.N)
	}
}
