package replica

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	commitsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "flowsync_commits_total",
		Help: "Total number of local commits per replica",
	}, []string{"replica"})

	syncExportsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "flowsync_sync_exports_total",
		Help: "Total number of incremental exports delivered between replicas",
	}, []string{"from", "to", "trigger"})

	syncBytesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "flowsync_sync_bytes_total",
		Help: "Total bytes of incremental exports delivered between replicas",
	}, []string{"from", "to"})

	syncFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "flowsync_sync_failures_total",
		Help: "Number of exports that failed to encode or import",
	}, []string{"from", "to"})

	historyLength = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "flowsync_history_length",
		Help: "Number of recorded frontiers in each replica's history",
	}, []string{"replica"})

	outboxDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "flowsync_outbox_depth",
		Help: "Number of deferred sync tasks waiting to run",
	})

	connectedGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "flowsync_connected",
		Help: "1 when the replicas exchange changes, 0 while partitioned",
	})
)
