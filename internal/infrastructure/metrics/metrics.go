package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/madgic/madgic-chat/internal/domain/chat"
	"github.com/madgic/madgic-chat/internal/domain/transcript"
)

var (
	// TurnsTotal counts settled turns by outcome.
	TurnsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "madgic",
			Subsystem: "chat",
			Name:      "turns_total",
			Help:      "Total number of settled chat turns",
		},
		[]string{"mode", "stream_mode", "outcome"},
	)

	TurnDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "madgic",
			Subsystem: "chat",
			Name:      "turn_duration_seconds",
			Help:      "Time from submission to settle",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300},
		},
		[]string{"mode", "stream_mode"},
	)

	StreamEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "madgic",
			Subsystem: "chat",
			Name:      "stream_events_total",
			Help:      "SSE events received from the backend",
		},
		[]string{"event"},
	)

	RejectedPayloadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "madgic",
			Subsystem: "chat",
			Name:      "rejected_payloads_total",
			Help:      "Event payloads skipped because they could not be decoded",
		},
		[]string{"reason"},
	)

	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "madgic",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "madgic",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 30},
		},
		[]string{"method", "endpoint"},
	)

	QueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "madgic",
			Subsystem: "worker",
			Name:      "queue_depth",
			Help:      "Turns waiting for a worker",
		},
	)

	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "madgic",
			Subsystem: "archive",
			Name:      "db_query_duration_seconds",
			Help:      "Conversation archive query duration in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5},
		},
		[]string{"query_type"},
	)
)

// RecordRequest records an HTTP request.
func RecordRequest(method, endpoint, status string, durationSec float64) {
	RequestsTotal.WithLabelValues(method, endpoint, status).Inc()
	RequestDuration.WithLabelValues(method, endpoint).Observe(durationSec)
}

// SetQueueDepth sets the number of queued turns.
func SetQueueDepth(depth int) {
	QueueDepth.Set(float64(depth))
}

// RecordDBQuery records an archive query.
func RecordDBQuery(queryType string, started time.Time) {
	DBQueryDuration.WithLabelValues(queryType).Observe(time.Since(started).Seconds())
}

// Recorder reports chat turns to Prometheus.
type Recorder struct{}

// NewRecorder returns the Prometheus-backed turn recorder.
func NewRecorder() *Recorder { return &Recorder{} }

func (Recorder) TurnFinished(mode transcript.Mode, streamMode transcript.StreamMode, outcome string, elapsed time.Duration) {
	TurnsTotal.WithLabelValues(string(mode), string(streamMode), outcome).Inc()
	TurnDuration.WithLabelValues(string(mode), string(streamMode)).Observe(elapsed.Seconds())
}

func (Recorder) EventReceived(event string) {
	StreamEventsTotal.WithLabelValues(event).Inc()
}

func (Recorder) PayloadRejected(reason string) {
	RejectedPayloadsTotal.WithLabelValues(reason).Inc()
}

var _ chat.Recorder = (*Recorder)(nil)
