package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(sweptJobsTotal, sweepDeleteFailuresTotal) }

var sweptJobsTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "retention_jobs_swept_total",
		Help: "Completed jobs deleted by the retention sweeper.",
	},
)

var sweepDeleteFailuresTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "retention_artifact_delete_failures_total",
		Help: "Artifact deletions that failed during sweeps; the blobs are orphaned.",
	},
)

func AddJobsSwept(n int)           { sweptJobsTotal.Add(float64(n)) }
func AddSweepDeleteFailures(n int) { sweepDeleteFailuresTotal.Add(float64(n)) }
