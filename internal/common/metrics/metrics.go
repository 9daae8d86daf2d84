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
			Help: "Total number of workflow jobs completed by worker",
		},
		[]string{"task_type"},
	)

	WorkerJobsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_failed_total",
			Help: "Total number of workflow jobs failed by worker",
		},
		[]string{"task_type", "error_code"},
	)

	WorkerJobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "worker_job_duration_seconds",
			Help: "Duration of workflow job processing in seconds",
		},
		[]string{"task_type"},
	)

	AnalysisJobsSubmitted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "analysis_jobs_submitted_total",
			Help: "Analysis jobs accepted by the job store",
		},
	)

	AnalysisJobsFinished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "analysis_jobs_finished_total",
			Help: "Analysis jobs that reached a terminal status",
		},
		[]string{"status"},
	)

	AnalysisUnits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "analysis_work_units_total",
			Help: "Work units processed by the job runner",
		},
		[]string{"outcome"},
	)

	AnalysisUnitDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "analysis_work_unit_duration_seconds",
			Help:    "Duration of a single work unit analysis",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 9),
		},
	)

	AnalysisQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "analysis_queue_depth",
			Help: "Jobs waiting for a runner worker",
		},
	)

	JobsEvicted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "analysis_jobs_evicted_total",
			Help: "Terminal jobs removed by the eviction schedule",
		},
	)

	RescoredPairs = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "matching_pairs_rescored_total",
			Help: "Opportunity/seeker pairs rescored",
		},
		[]string{"trigger", "outcome"},
	)

	RescoreTriggersDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "matching_triggers_dropped_total",
			Help: "Rescore triggers dropped because the queue was full",
		},
		[]string{"trigger"},
	)

	EmbeddingFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "matching_embedding_failures_total",
			Help: "Embedding calls that left an entity without a vector",
		},
	)

	FeedBuilds = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "feed_builds_total",
			Help: "Feeds built",
		},
	)

	FeedExposureFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feed_exposure_failures_total",
			Help: "Exposure updates that failed or were dropped",
		},
		[]string{"reason"},
	)

	NotificationsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_sent_total",
			Help: "Analysis notifications by channel and outcome",
		},
		[]string{"channel", "outcome"},
	)
)
