package scheduler

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Ads reaching a terminal status, partitioned by status
	adsProcessedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hermes_ads_processed_total",
			Help: "Total number of ads processed, partitioned by terminal status",
		},
		[]string{"status"},
	)

	// Platform attempts partitioned by platform and outcome (success, failed, skipped)
	platformAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hermes_platform_attempts_total",
			Help: "Total number of platform publish attempts, partitioned by platform and outcome",
		},
		[]string{"platform", "outcome"},
	)

	// Batch run duration in seconds
	runDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "hermes_publish_run_duration_seconds",
			Help:    "Publish run latencies in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Ads reclaimed from a stale processing state
	adsReclaimedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "hermes_ads_reclaimed_total",
			Help: "Total number of ads reclaimed from a stale processing status",
		},
	)
)

const (
	outcomeSuccess = "success"
	outcomeFailed  = "failed"
	outcomeSkipped = "skipped"
)
