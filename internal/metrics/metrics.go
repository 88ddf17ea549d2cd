package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	mutations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "frontdesk",
			Name:      "mutations_total",
			Help:      "Mutating operations by name.",
		},
		[]string{"op"},
	)

	guardRejections = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "frontdesk",
			Name:      "guard_rejections_total",
			Help:      "Lifecycle guard rejections by operation.",
		},
		[]string{"op"},
	)

	remoteWriteFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "frontdesk",
			Name:      "remote_write_failures_total",
			Help:      "Remote store writes that failed after an optimistic local apply.",
		},
		[]string{"op"},
	)

	reconciliations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "frontdesk",
			Name:      "reconciliations_total",
			Help:      "Reconciliation fetches by result (applied, dropped, failed).",
		},
		[]string{"result"},
	)

	eventsPublished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "frontdesk",
			Name:      "events_published_total",
			Help:      "Domain events published by type.",
		},
		[]string{"type"},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "frontdesk",
			Name:      "http_requests_total",
			Help:      "HTTP requests by endpoint.",
		},
		[]string{"endpoint"},
	)

	revenue = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "frontdesk",
			Name:      "revenue_total",
			Help:      "Running sum of paid invoice totals.",
		},
	)
)

// Register registers Prometheus metrics. Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			mutations,
			guardRejections,
			remoteWriteFailures,
			reconciliations,
			eventsPublished,
			httpRequests,
			revenue,
		)
	})
}

// IncMutation counts one mutating operation.
func IncMutation(op string) {
	mutations.WithLabelValues(op).Inc()
}

// IncGuardRejection counts one guard rejection.
func IncGuardRejection(op string) {
	guardRejections.WithLabelValues(op).Inc()
}

// IncRemoteWriteFailure counts one failed remote write.
func IncRemoteWriteFailure(op string) {
	remoteWriteFailures.WithLabelValues(op).Inc()
}

// IncReconciliation counts one reconciliation outcome.
func IncReconciliation(result string) {
	reconciliations.WithLabelValues(result).Inc()
}

// IncEvent counts one published domain event.
func IncEvent(eventType string) {
	eventsPublished.WithLabelValues(eventType).Inc()
}

// IncHTTP increments the counter for an endpoint label.
func IncHTTP(endpoint string) {
	httpRequests.WithLabelValues(endpoint).Inc()
}

// SetRevenue records the current revenue aggregate.
func SetRevenue(total float64) {
	revenue.Set(total)
}
