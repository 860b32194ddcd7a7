// Package metrics holds the Prometheus collectors shared by the API and admin binaries.
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hanko_http_requests_total",
		Help: "Total number of HTTP requests grouped by method, route and status.",
	}, []string{"method", "route", "status"})
	httpLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "hanko_http_request_duration_seconds",
		Help:    "HTTP request latency grouped by method and route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})
	orderCreations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hanko_order_create_total",
		Help: "Order creation attempts grouped by outcome (created, replayed, conflict, rejected, error).",
	}, []string{"outcome"})
	webhookEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hanko_payment_webhook_events_total",
		Help: "Payment webhook deliveries grouped by event type and result.",
	}, []string{"event_type", "result"})
	adminMutations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hanko_admin_mutations_total",
		Help: "Admin console mutations grouped by kind and result.",
	}, []string{"kind", "result"})
	snapshotReloads = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hanko_admin_snapshot_reloads_total",
		Help: "Admin snapshot reloads grouped by result.",
	}, []string{"result"})
)

// Handler exposes the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

func ObserveHTTP(method, route string, status int, seconds float64) {
	httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	httpLatency.WithLabelValues(method, route).Observe(seconds)
}

func OrderCreation(outcome string) {
	orderCreations.WithLabelValues(outcome).Inc()
}

func WebhookEvent(eventType, result string) {
	if eventType == "" {
		eventType = "unknown"
	}
	webhookEvents.WithLabelValues(eventType, result).Inc()
}

func AdminMutation(kind string, err error) {
	adminMutations.WithLabelValues(kind, result(err)).Inc()
}

func SnapshotReload(err error) {
	snapshotReloads.WithLabelValues(result(err)).Inc()
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
