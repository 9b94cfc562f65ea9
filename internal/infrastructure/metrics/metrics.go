package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "jan",
			Subsystem: "chat_api",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "jan",
			Subsystem: "chat_api",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5},
		},
		[]string{"method", "endpoint", "status"},
	)

	ConversationsCreatedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "jan",
			Subsystem: "chat_api",
			Name:      "conversations_created_total",
			Help:      "Total conversations created",
		},
	)

	GenerationCommandsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "jan",
			Subsystem: "chat_api",
			Name:      "generation_commands_total",
			Help:      "Commands handled by generation entities",
		},
		[]string{"command", "outcome"},
	)

	GenerationDeliveryFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "jan",
			Subsystem: "chat_api",
			Name:      "generation_delivery_failures_total",
			Help:      "Commands that could not be delivered to a generation entity",
		},
		[]string{"reason"},
	)

	GenerationEntitiesActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "jan",
			Subsystem: "chat_api",
			Name:      "generation_entities_active",
			Help:      "Generation entities currently alive on this node",
		},
	)

	ActiveStreams = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "jan",
			Subsystem: "chat_api",
			Name:      "active_streams",
			Help:      "Model streams currently running",
		},
	)

	StreamsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "jan",
			Subsystem: "chat_api",
			Name:      "streams_total",
			Help:      "Model streams by terminal outcome",
		},
		[]string{"outcome"},
	)

	StreamDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "jan",
			Subsystem: "chat_api",
			Name:      "stream_duration_seconds",
			Help:      "Wall time from stream start to its terminal outcome",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120},
		},
		[]string{"outcome"},
	)

	ChunksWrittenTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "jan",
			Subsystem: "chat_api",
			Name:      "inflight_chunks_written_total",
			Help:      "Inflight chunks persisted while streaming",
		},
	)

	TokensTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "jan",
			Subsystem: "chat_api",
			Name:      "tokens_total",
			Help:      "Tokens reported by the model",
		},
		[]string{"type"},
	)

	SweeperRepairsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "jan",
			Subsystem: "chat_api",
			Name:      "sweeper_repairs_total",
			Help:      "Orphaned state repaired by the sweeper",
		},
		[]string{"kind", "status"},
	)
)

// RecordRequest records an HTTP request with all relevant labels
func RecordRequest(method, endpoint, status string, durationSec float64) {
	RequestsTotal.WithLabelValues(method, endpoint, status).Inc()
	RequestDuration.WithLabelValues(method, endpoint, status).Observe(durationSec)
}

func RecordGenerationCommand(command string, err error) {
	GenerationCommandsTotal.WithLabelValues(command, outcome(err)).Inc()
}

func RecordDeliveryFailure(reason string) {
	GenerationDeliveryFailuresTotal.WithLabelValues(reason).Inc()
}

// RecordStream records a finished stream and its token usage.
func RecordStream(result string, durationSec float64, promptTokens, completionTokens int) {
	StreamsTotal.WithLabelValues(result).Inc()
	StreamDuration.WithLabelValues(result).Observe(durationSec)
	if promptTokens > 0 {
		TokensTotal.WithLabelValues("prompt").Add(float64(promptTokens))
	}
	if completionTokens > 0 {
		TokensTotal.WithLabelValues("completion").Add(float64(completionTokens))
	}
}

func RecordSweeperRepair(kind string, err error) {
	SweeperRepairsTotal.WithLabelValues(kind, outcome(err)).Inc()
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
