// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	WorkerJobsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_completed_total",
			Help: "Total number of jobs completed by worker",
		},
		[]string{"task_type"},
	)

	WorkerJobsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_failed_total",
			Help: "Total number of jobs failed by worker",
		},
		[]string{"task_type", "error_code"},
	)

	WorkerJobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "worker_job_duration_seconds",
			Help: "Duration of job processing in seconds",
		},
		[]string{"task_type"},
	)

	DecksGenerated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "deck_generated_total",
			Help: "Total number of decks generated, by strategy and cache outcome",
		},
		[]string{"strategy", "source"},
	)

	DeckCandidatesRetrieved = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "deck_candidate_pool_size",
			Help:    "Size of the candidate pool fetched per generation",
			Buckets: []float64{0, 10, 25, 50, 100, 200, 300},
		},
	)

	DeckDiversityRejections = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "deck_diversity_rejections_total",
			Help: "Candidates dropped by the diversity pass",
		},
	)
)
