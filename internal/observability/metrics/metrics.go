// Package metrics exposes the counters and histograms surfaced at /metrics
// (SPEC_FULL.md Part D.4): per-cycle duration, per-sub-task outcome, and
// rate-limiter wait time.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CycleDuration tracks the wall-clock time of one full scheduler cycle.
	CycleDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "bilisync_cycle_duration_seconds",
		Help:    "Duration of one full refresh/enrich/download cycle across all enabled sources",
		Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
	})

	// CycleTotal counts completed cycles by outcome (ok, risk_control, error).
	CycleTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bilisync_cycle_total",
		Help: "Total number of scheduler cycles by outcome",
	}, []string{"outcome"})

	// SubTaskTotal counts ordered sub-task outcomes within the download
	// stage, keyed by sub-task slot name and result (success, failed).
	SubTaskTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bilisync_subtask_total",
		Help: "Total number of download sub-task executions by slot and result",
	}, []string{"subtask", "result"})

	// RateLimiterWait tracks how long a request blocked on the bilibili
	// client's token bucket before being sent.
	RateLimiterWait = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "bilisync_ratelimiter_wait_seconds",
		Help:    "Time spent waiting for a token bucket slot before issuing a bilibili API request",
		Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
	})

	// VideosDownloaded counts videos that reached the Completed status bit.
	VideosDownloaded = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bilisync_videos_downloaded_total",
		Help: "Total number of videos whose download status reached completed",
	}, []string{"source_kind"})
)

// ObserveCycle records a completed cycle's duration and outcome label.
func ObserveCycle(duration time.Duration, outcome string) {
	CycleDuration.Observe(duration.Seconds())
	CycleTotal.WithLabelValues(outcome).Inc()
}

// IncSubTask records one ordered sub-task's outcome.
func IncSubTask(subtask string, success bool) {
	result := "success"
	if !success {
		result = "failed"
	}
	SubTaskTotal.WithLabelValues(subtask, result).Inc()
}

// ObserveRateLimiterWait records how long a caller blocked on the token bucket.
func ObserveRateLimiterWait(d time.Duration) {
	RateLimiterWait.Observe(d.Seconds())
}

// IncVideoDownloaded records a video reaching the completed download status.
func IncVideoDownloaded(sourceKind string) {
	VideosDownloaded.WithLabelValues(sourceKind).Inc()
}
