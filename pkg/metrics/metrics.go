package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	JobsInQueue = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "crawl_jobs_in_queue",
			Help: "Current number of job ids waiting in the run queue.",
		},
	)

	JobRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crawl_job_runs_total",
			Help: "Total number of job runs by content type and outcome.",
		},
		[]string{"type", "outcome"}, // outcome: pending_review, duplicate, failed, conflict
	)

	JobRunDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "crawl_job_run_duration_seconds",
			Help:    "Duration of job runs from claim to persisted outcome.",
			Buckets: []float64{0.1, 0.5, 1, 5, 10, 15, 30, 60, 120},
		},
		[]string{"type"},
	)

	FetchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fetch_duration_seconds",
			Help:    "Duration of successful page fetches.",
			Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 15, 30, 60},
		},
		[]string{"host"},
	)

	FetchErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fetch_errors_total",
			Help: "Total number of failed page fetches by kind.",
		},
		[]string{"kind"},
	)

	StaleJobsReaped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "crawl_jobs_reaped_total",
			Help: "Total number of processing jobs failed by the stale-run reaper.",
		},
	)
)
