package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	stageRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "voicectl",
			Subsystem: "bootstrap",
			Name:      "stage_runs_total",
			Help:      "Bootstrap stage completions by outcome.",
		},
		[]string{"stage", "status"},
	)
	stageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "voicectl",
			Subsystem: "bootstrap",
			Name:      "stage_duration_seconds",
			Help:      "Bootstrap stage duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"stage", "status"},
	)
	assetDownloads = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "voicectl",
			Subsystem: "assets",
			Name:      "downloads_total",
			Help:      "Asset sync outcomes per asset.",
		},
		[]string{"status"},
	)
	assetBytes = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "voicectl",
			Subsystem: "assets",
			Name:      "download_bytes_total",
			Help:      "Bytes fetched by the asset syncer.",
		},
	)
	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "voicectl",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests.",
		},
		[]string{"worker", "method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "voicectl",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"worker", "method", "path", "status"},
	)
	skillInvocations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "voicectl",
			Subsystem: "skills",
			Name:      "invocations_total",
			Help:      "Skill invocations by operation and outcome.",
		},
		[]string{"skill", "op", "status"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			stageRuns,
			stageDuration,
			assetDownloads,
			assetBytes,
			httpRequests,
			httpDuration,
			skillInvocations,
		)
	})
}

func RecordStage(stage, status string, duration time.Duration) {
	RegisterMetrics()
	stageRuns.WithLabelValues(stage, status).Inc()
	stageDuration.WithLabelValues(stage, status).Observe(duration.Seconds())
}

func RecordAssetDownload(status string, bytes int64) {
	RegisterMetrics()
	assetDownloads.WithLabelValues(status).Inc()
	if bytes > 0 {
		assetBytes.Add(float64(bytes))
	}
}

func RecordHTTPRequest(worker, method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(worker, method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(worker, method, path, statusLabel).Observe(duration.Seconds())
}

func RecordSkillInvocation(skill, op, status string) {
	RegisterMetrics()
	skillInvocations.WithLabelValues(skill, op, status).Inc()
}
