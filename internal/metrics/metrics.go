// Package metrics defines the Prometheus collectors exported by minerwatch.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Check outcomes used as the "result" label of ChecksTotal.
const (
	ResultOK                  = "ok"
	ResultUnsupportedProvider = "unsupported_provider"
	ResultFetchError          = "fetch_error"
	ResultMalformedResponse   = "malformed_response"
	ResultError               = "error"
)

// Metrics groups the collectors of one minerwatch process.
type Metrics struct {
	ChecksTotal   *prometheus.CounterVec
	EventsTotal   *prometheus.CounterVec
	FetchDuration *prometheus.HistogramVec
	Healthy       *prometheus.GaugeVec
	LastEventTime *prometheus.GaugeVec
}

// New creates the collectors and registers them with reg. A nil reg creates
// unregistered collectors, which is convenient in tests.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		ChecksTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "minerwatch_checks_total",
			Help: "Total number of monitor ticks, by outcome",
		}, []string{"monitor", "result"}),
		EventsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "minerwatch_events_total",
			Help: "Total number of events emitted, by kind",
		}, []string{"monitor", "kind"}),
		FetchDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "minerwatch_fetch_duration_seconds",
			Help:    "Duration of pool status requests",
			Buckets: prometheus.DefBuckets,
		}, []string{"monitor"}),
		Healthy: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "minerwatch_monitor_healthy",
			Help: "1 if the monitor is considered working, 0 otherwise",
		}, []string{"monitor"}),
		LastEventTime: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "minerwatch_last_event_timestamp_seconds",
			Help: "Unix time of the last event emitted by the monitor",
		}, []string{"monitor"}),
	}
}
