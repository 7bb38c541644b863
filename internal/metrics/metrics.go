// Package metrics exposes Prometheus collectors for the tts client.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "ttsclient"

var (
	// connectAttemptsTotal counts connect attempts per backend.
	connectAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connect_attempts_total",
			Help:      "Total number of backend connect attempts",
		},
		[]string{"backend", "status"}, // status: success, error
	)

	// connectionState is 1 for the current lifecycle state of each backend.
	connectionState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connection_state",
			Help:      "Current connection lifecycle state per backend",
		},
		[]string{"backend", "state"},
	)

	// eventsDispatchedTotal counts notifications delivered through the dispatch worker.
	eventsDispatchedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_dispatched_total",
			Help:      "Total number of backend notifications dispatched to listeners",
		},
		[]string{"backend", "kind"},
	)

	// backendErrorsTotal counts backend operations that reported failure.
	backendErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "backend_errors_total",
			Help:      "Total number of failed backend operations",
		},
		[]string{"backend", "operation"},
	)

	// duplicateSpeechIDsTotal counts speak requests whose client id was already tracked.
	duplicateSpeechIDsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "duplicate_speech_ids_total",
			Help:      "Total number of speak requests reusing an outstanding client speech id",
		},
		[]string{"backend"},
	)

	// trackedSpeeches is the number of correlated speeches awaiting a terminal event.
	trackedSpeeches = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "tracked_speeches",
			Help:      "Number of speeches waiting for a terminal notification",
		},
		[]string{"backend"},
	)
)

var allMetrics = []prometheus.Collector{
	connectAttemptsTotal,
	connectionState,
	eventsDispatchedTotal,
	backendErrorsTotal,
	duplicateSpeechIDsTotal,
	trackedSpeeches,
}

// ConnectAttempt records one connect attempt.
func ConnectAttempt(backend string, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	connectAttemptsTotal.WithLabelValues(backend, status).Inc()
}

// SetConnectionState marks state as the current lifecycle state of backend.
func SetConnectionState(backend string, state string, all []string) {
	for _, s := range all {
		value := 0.0
		if s == state {
			value = 1
		}
		connectionState.WithLabelValues(backend, s).Set(value)
	}
}

// EventDispatched records a notification handed to listeners.
func EventDispatched(backend, kind string) {
	eventsDispatchedTotal.WithLabelValues(backend, kind).Inc()
}

// BackendError records a failed backend operation.
func BackendError(backend, operation string) {
	backendErrorsTotal.WithLabelValues(backend, operation).Inc()
}

// DuplicateSpeechID records a speak request with a reused client id.
func DuplicateSpeechID(backend string) {
	duplicateSpeechIDsTotal.WithLabelValues(backend).Inc()
}

// SetTrackedSpeeches reports how many speeches backend is waiting on.
func SetTrackedSpeeches(backend string, n int) {
	trackedSpeeches.WithLabelValues(backend).Set(float64(n))
}
