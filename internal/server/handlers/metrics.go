package handlers

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the service counters.
type Metrics struct {
	SnapshotReads  *prometheus.CounterVec
	SnapshotWrites *prometheus.CounterVec
	Notifications  *prometheus.CounterVec
}

// NewMetrics registers the counters with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)

	return &Metrics{
		SnapshotReads: f.NewCounterVec(prometheus.CounterOpts{
			Name: "promptvault_snapshot_reads_total",
			Help: "Snapshot reads by result",
		}, []string{"result"}),

		// kind: primary or suggestion
		SnapshotWrites: f.NewCounterVec(prometheus.CounterOpts{
			Name: "promptvault_snapshot_writes_total",
			Help: "Snapshot writes by kind and result",
		}, []string{"kind", "result"}),

		Notifications: f.NewCounterVec(prometheus.CounterOpts{
			Name: "promptvault_notifications_total",
			Help: "Admin notifications by result",
		}, []string{"result"}),
	}
}
