// Package metrics holds the Prometheus collectors shared by the ledger, the bot
// adapters and the HTTP layer.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	CheckIns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rollcall_checkins_total",
			Help: "Check-in events by outcome",
		},
		[]string{"outcome"},
	)
	SnapshotWrites = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rollcall_snapshot_writes_total",
			Help: "Write-through snapshot writes by document and result",
		},
		[]string{"document", "result"},
	)
	Rotations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rollcall_rotation_total",
			Help: "Content rotation requests by result",
		},
		[]string{"result"},
	)
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rollcall_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"path", "method", "status"},
	)
	HTTPDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "rollcall_http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path", "method"},
	)
	TransportErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rollcall_transport_errors_total",
			Help: "Failed calls to the messaging transport",
		},
		[]string{"call"},
	)
)

var registerOnce sync.Once

// Init registers all collectors with the default registry. Safe to call more than once.
func Init() {
	registerOnce.Do(func() {
		prometheus.MustRegister(CheckIns, SnapshotWrites, Rotations, HTTPRequests, HTTPDuration, TransportErrors)
	})
}
