// Package telemetry exposes the pipeline's Prometheus metrics.
package telemetry

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	once sync.Once

	JobsStarted        = prometheus.NewCounter(prometheus.CounterOpts{Name: "intake_jobs_started_total", Help: "Batch jobs started"})
	JobsCompleted      = prometheus.NewCounter(prometheus.CounterOpts{Name: "intake_jobs_completed_total", Help: "Batch jobs that reached Completed"})
	JobsFailed         = prometheus.NewCounter(prometheus.CounterOpts{Name: "intake_jobs_failed_total", Help: "Batch jobs that reached Failed, cancellations included"})
	FilesProcessed     = prometheus.NewCounter(prometheus.CounterOpts{Name: "intake_files_processed_total", Help: "Files processed successfully"})
	FilesFailed        = prometheus.NewCounter(prometheus.CounterOpts{Name: "intake_files_failed_total", Help: "Files with a failed outcome"})
	FilesInFlight      = prometheus.NewGauge(prometheus.GaugeOpts{Name: "intake_files_inflight", Help: "Files currently in the pipeline"})
	ReviewRouted       = prometheus.NewCounter(prometheus.CounterOpts{Name: "intake_review_routed_total", Help: "Documents routed to manual review"})
	FileDuration       = prometheus.NewHistogram(prometheus.HistogramOpts{Name: "intake_file_duration_seconds", Help: "Per-file pipeline duration", Buckets: prometheus.DefBuckets})
	DocumentsByType    = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "intake_documents_total", Help: "Processed documents by classified type"}, []string{"type"})
	CleanupDeletedJobs = prometheus.NewCounter(prometheus.CounterOpts{Name: "intake_cleanup_deleted_jobs_total", Help: "Jobs removed by retention cleanup"})
)

// Handler exposes the /metrics HTTP handler with a singleton registry.
func Handler() http.Handler {
	once.Do(func() {
		prometheus.MustRegister(
			JobsStarted,
			JobsCompleted,
			JobsFailed,
			FilesProcessed,
			FilesFailed,
			FilesInFlight,
			ReviewRouted,
			FileDuration,
			DocumentsByType,
			CleanupDeletedJobs,
		)
	})
	return promhttp.Handler()
}
