// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "versionwatch"

var (
	// Registry is the registry served by Handler.
	Registry = prometheus.NewRegistry()

	// FSEventsTotal counts filesystem notifications by outcome
	// (file, store, directory, ignored).
	FSEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fs_events_total",
			Help:      "Total number of filesystem notifications received.",
		},
		[]string{"outcome"},
	)

	// WatchRefreshTotal counts watch engine refreshes by result
	// (unchanged, rebuilt).
	WatchRefreshTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "watch_refresh_total",
			Help:      "Total number of watch set refreshes.",
		},
		[]string{"result"},
	)

	// WatchedDirectories is the size of the current watch set.
	WatchedDirectories = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "watched_directories",
			Help:      "Number of directories currently watched.",
		},
	)

	// ResolveTotal counts version resolutions by strategy and result.
	ResolveTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "resolve_total",
			Help:      "Total number of file version resolutions.",
		},
		[]string{"strategy", "result"},
	)

	// PublishTotal counts broker publishes by result (sent, failed, skipped).
	PublishTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "publish_total",
			Help:      "Total number of version publishes.",
		},
		[]string{"result"},
	)

	// BrokerConnected is 1 while the broker connection is up.
	BrokerConnected = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "broker_connected",
			Help:      "Whether the MQTT broker connection is established.",
		},
	)

	// BrokerErrorsTotal counts connection errors by class (transient, fatal).
	BrokerErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "broker_errors_total",
			Help:      "Total number of MQTT connection errors.",
		},
		[]string{"class"},
	)

	// BrokerReconnectsTotal counts connection managers built by Refresh.
	BrokerReconnectsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "broker_reconnects_total",
			Help:      "Total number of broker reconnects triggered by configuration changes.",
		},
	)

	// HTTPRequestsTotal counts admin API requests by method, route
	// pattern and status code.
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of admin API requests.",
		},
		[]string{"method", "route", "status"},
	)

	// HTTPRequestDuration observes admin API latency by route pattern.
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Admin API request latency.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"route"},
	)

	// DebounceSupersededTotal counts debounced actions replaced before running.
	DebounceSupersededTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "debounce_superseded_total",
			Help:      "Total number of change events coalesced by the debouncer.",
		},
	)
)

func init() {
	Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		FSEventsTotal,
		WatchRefreshTotal,
		WatchedDirectories,
		ResolveTotal,
		PublishTotal,
		BrokerConnected,
		BrokerErrorsTotal,
		BrokerReconnectsTotal,
		DebounceSupersededTotal,
		HTTPRequestsTotal,
		HTTPRequestDuration,
	)
}

// Handler serves Registry in the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{Registry: Registry})
}
