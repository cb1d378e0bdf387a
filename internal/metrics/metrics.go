// Package metrics provides the centralized Prometheus registry for the simulation service.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "scenario_risk"

// Global registry instance
var (
	registry *prometheus.Registry
	once     sync.Once
)

// Counter metrics
var (
	SimulationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "simulations_total",
		Help:      "Total number of simulations by status",
	}, []string{"status"})
	SimulationRunsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "simulation_runs_total",
		Help:      "Total number of Monte Carlo runs evaluated",
	})
	ScenariosRejectedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "scenarios_rejected_total",
		Help:      "Total number of scenarios rejected by validation, by field",
	}, []string{"field"})
	NumericFlagsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "numeric_flags_total",
		Help:      "Total number of numeric degeneracy flags raised in results",
	}, []string{"flag"})
)

// Gauge metrics
var (
	ActiveSimulations = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "active_simulations",
		Help:      "Number of simulations currently running",
	})
	LastResultMean = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "last_result_mean",
		Help:      "KPI mean of the most recent result per scenario",
	}, []string{"scenario_id"})
	LastResultP5 = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "last_result_p5",
		Help:      "KPI 5th percentile of the most recent result per scenario",
	}, []string{"scenario_id"})
)

// Histogram metrics
var (
	SimulationDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "simulation_duration_seconds",
		Help:      "Duration of simulations in seconds by algorithm",
		Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60, 300},
	}, []string{"algorithm"})
	SimulationRunCount = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "simulation_run_count",
		Help:      "Requested run count per simulation",
		Buckets:   prometheus.ExponentialBuckets(100, 10, 5),
	})
)

// InitRegistry initializes the global Prometheus registry.
func InitRegistry() *prometheus.Registry {
	once.Do(func() {
		registry = prometheus.NewRegistry()

		registry.MustRegister(SimulationsTotal)
		registry.MustRegister(SimulationRunsTotal)
		registry.MustRegister(ScenariosRejectedTotal)
		registry.MustRegister(NumericFlagsTotal)

		registry.MustRegister(ActiveSimulations)
		registry.MustRegister(LastResultMean)
		registry.MustRegister(LastResultP5)

		registry.MustRegister(SimulationDuration)
		registry.MustRegister(SimulationRunCount)

		registry.MustRegister(CacheHitsTotal)
		registry.MustRegister(CacheMissesTotal)
		registry.MustRegister(ResultsPersistedTotal)
		registry.MustRegister(ScheduledRunsTotal)
		registry.MustRegister(ScenarioFetchesTotal)
		registry.MustRegister(APIRequestsTotal)
		registry.MustRegister(ProgressSubscribers)
	})
	return registry
}

// GetRegistry returns the global Prometheus registry.
func GetRegistry() *prometheus.Registry {
	return InitRegistry()
}

// Handler returns the Prometheus HTTP handler.
func Handler() http.Handler {
	return promhttp.HandlerFor(GetRegistry(), promhttp.HandlerOpts{})
}

// Simulation statuses
const (
	StatusCompleted = "completed"
	StatusFailed    = "failed"
	StatusCancelled = "cancelled"
	StatusRejected  = "rejected"
	StatusCached    = "cached"
)

// RecordSimulationStarted marks a simulation as running.
func RecordSimulationStarted(runs int) {
	ActiveSimulations.Inc()
	SimulationRunCount.Observe(float64(runs))
}

// RecordSimulationFinished records a finished simulation of any status.
func RecordSimulationFinished(algorithm, status string, completedRuns int, durationSeconds float64) {
	ActiveSimulations.Dec()
	SimulationsTotal.WithLabelValues(status).Inc()
	SimulationRunsTotal.Add(float64(completedRuns))
	SimulationDuration.WithLabelValues(algorithm).Observe(durationSeconds)
}

// RecordScenarioRejected records a validation rejection.
func RecordScenarioRejected(field string) {
	SimulationsTotal.WithLabelValues(StatusRejected).Inc()
	ScenariosRejectedTotal.WithLabelValues(field).Inc()
}

// RecordResult publishes headline statistics of a completed result.
func RecordResult(scenarioID string, mean, p5 float64, flags []string) {
	LastResultMean.WithLabelValues(scenarioID).Set(mean)
	LastResultP5.WithLabelValues(scenarioID).Set(p5)
	for _, flag := range flags {
		NumericFlagsTotal.WithLabelValues(flag).Inc()
	}
}
