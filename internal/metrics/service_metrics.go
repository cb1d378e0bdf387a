package metrics

import "github.com/prometheus/client_golang/prometheus"

// Supporting service counters
var (
	CacheHitsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "result_cache_hits_total",
		Help:      "Total number of result cache hits",
	})
	CacheMissesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "result_cache_misses_total",
		Help:      "Total number of result cache misses",
	})
	ResultsPersistedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "results_persisted_total",
		Help:      "Total number of results written to the database by status",
	}, []string{"status"})
	ScheduledRunsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "scheduled_runs_total",
		Help:      "Total number of scheduled simulation runs by job and status",
	}, []string{"job", "status"})
	ScenarioFetchesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "scenario_fetches_total",
		Help:      "Total number of remote scenario fetches by status",
	}, []string{"status"})
	APIRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "api_requests_total",
		Help:      "Total number of API requests by route and code",
	}, []string{"route", "code"})
)

// ProgressSubscribers counts connected progress stream clients.
var ProgressSubscribers = prometheus.NewGauge(prometheus.GaugeOpts{
	Namespace: namespace,
	Name:      "progress_subscribers",
	Help:      "Number of connected progress websocket clients",
})

// RecordCacheLookup records a result cache hit or miss.
func RecordCacheLookup(hit bool) {
	if hit {
		CacheHitsTotal.Inc()
		return
	}
	CacheMissesTotal.Inc()
}

// RecordResultPersisted records a persistence attempt.
// status should be one of: "success", "failure"
func RecordResultPersisted(status string) {
	ResultsPersistedTotal.WithLabelValues(status).Inc()
}

// RecordScheduledRun records a cron-triggered simulation.
func RecordScheduledRun(job, status string) {
	ScheduledRunsTotal.WithLabelValues(job, status).Inc()
}

// RecordScenarioFetch records a remote scenario fetch.
func RecordScenarioFetch(status string) {
	ScenarioFetchesTotal.WithLabelValues(status).Inc()
}

// RecordAPIRequest records a handled API request.
func RecordAPIRequest(route, code string) {
	APIRequestsTotal.WithLabelValues(route, code).Inc()
}
