package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(clipJobsProcessedTotal, clipJobDurationSeconds, clipSegmentsProducedTotal, workerQueueDepth)
}

var clipJobsProcessedTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "clip_jobs_processed_total",
		Help: "Total number of clip jobs driven to a terminal state, labeled by status.",
	},
	[]string{"status"}, // 'completed', 'failed'
)

var clipJobDurationSeconds = prometheus.NewHistogram(
	prometheus.HistogramOpts{
		Name:    "clip_job_duration_seconds",
		Help:    "Wall time from pipeline start to terminal state.",
		Buckets: prometheus.ExponentialBuckets(1, 2, 12),
	},
)

var clipSegmentsProducedTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "clip_segments_produced_total",
		Help: "Total number of segments transcoded and published.",
	},
)

var workerQueueDepth = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Name: "clip_worker_queue_depth",
		Help: "Number of jobs waiting in the worker backlog.",
	},
)

func IncJobProcessed(status string, took time.Duration) {
	clipJobsProcessedTotal.WithLabelValues(status).Inc()
	clipJobDurationSeconds.Observe(took.Seconds())
}

func IncSegmentProduced() { clipSegmentsProducedTotal.Inc() }

func SetQueueDepth(n int) { workerQueueDepth.Set(float64(n)) }
