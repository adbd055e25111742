package syncer

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/proxsync/proxsync/pkg/applier"
)

var (
	// Counter for sync runs by outcome
	syncRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "proxsync_sync_runs_total",
			Help: "Total number of connection sync runs",
		},
		[]string{"cluster", "result"},
	)

	// Histogram for the wall time of one connection sync
	syncDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "proxsync_sync_duration_seconds",
			Help:    "Time taken to sync one connection",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"cluster"},
	)

	// Counter for applied record operations
	syncOperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "proxsync_sync_operations_total",
			Help: "Total number of records created, updated or deleted by the sync",
		},
		[]string{"cluster", "type", "operation"},
	)

	// Counter for per-item apply errors
	syncItemErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "proxsync_sync_item_errors_total",
			Help: "Total number of records that failed to apply",
		},
		[]string{"cluster", "type"},
	)

	// Gauge for warnings of the last run
	syncWarnings = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "proxsync_sync_warnings",
			Help: "Number of warnings reported by the last sync of a cluster",
		},
		[]string{"cluster"},
	)

	// Gauge for the completion time of the last successful run
	syncLastSuccess = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "proxsync_sync_last_success_timestamp_seconds",
			Help: "Unix time of the last successful sync of a cluster",
		},
		[]string{"cluster"},
	)
)

func init() {
	prometheus.MustRegister(
		syncRunsTotal,
		syncDuration,
		syncOperationsTotal,
		syncItemErrorsTotal,
		syncWarnings,
		syncLastSuccess,
	)
}

// recordRun records the outcome of one connection sync
func recordRun(cluster string, err error, seconds float64) {
	result := "success"
	if err != nil {
		result = "failure"
	}
	syncRunsTotal.WithLabelValues(cluster, result).Inc()
	syncDuration.WithLabelValues(cluster).Observe(seconds)
}

// recordBatch records the applied operations of one entity type
func recordBatch(cluster, entity string, r *applier.Result) {
	if r == nil {
		return
	}
	syncOperationsTotal.WithLabelValues(cluster, entity, "create").Add(float64(len(r.Created)))
	syncOperationsTotal.WithLabelValues(cluster, entity, "update").Add(float64(len(r.Updated)))
	syncOperationsTotal.WithLabelValues(cluster, entity, "delete").Add(float64(len(r.Deleted)))
	syncItemErrorsTotal.WithLabelValues(cluster, entity).Add(float64(len(r.Errors)))
}

// recordResult records the completed run summary
func recordResult(res *Result, finished float64) {
	recordBatch(res.Cluster, "tag", res.Tags)
	recordBatch(res.Cluster, "node", res.Nodes)
	recordBatch(res.Cluster, "virtual_machine", res.VirtualMachines)
	recordBatch(res.Cluster, "vm_interface", res.VMInterfaces)
	syncWarnings.WithLabelValues(res.Cluster).Set(float64(len(res.Warnings())))
	syncLastSuccess.WithLabelValues(res.Cluster).Set(finished)
}
