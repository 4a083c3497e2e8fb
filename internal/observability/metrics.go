package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	framesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "macslog",
			Name:      "frames_total",
			Help:      "Decoded MACS frames by start-of-frame type.",
		},
		[]string{"type"},
	)
	framingErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "macslog",
			Name:      "framing_errors_total",
			Help:      "Frames dropped after a matched start-of-frame marker.",
		},
		[]string{"reason"},
	)
	discardedBytes = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "macslog",
			Name:      "discarded_bytes_total",
			Help:      "Bytes skipped while scanning for a start-of-frame marker.",
		},
	)
	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "macslog",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total status endpoint requests.",
		},
		[]string{"method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "macslog",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Status endpoint request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(framesTotal, framingErrors, discardedBytes, httpRequests, httpDuration)
	})
}

func RecordFrame(frameType string) {
	RegisterMetrics()
	framesTotal.WithLabelValues(frameType).Inc()
}

func RecordFramingError(reason string) {
	RegisterMetrics()
	framingErrors.WithLabelValues(reason).Inc()
}

func RecordDiscarded(n int) {
	RegisterMetrics()
	discardedBytes.Add(float64(n))
}

func RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(method, path, statusLabel).Observe(duration.Seconds())
}
