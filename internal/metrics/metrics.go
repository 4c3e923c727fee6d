// In file: internal/metrics/metrics.go
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Notion assistant metrics
var (
	// Conversation turns by final loop state (done / failed) and failure reason
	TurnsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "notion_assistant",
			Subsystem: "loop",
			Name:      "turns_total",
			Help:      "User turns handled, by final state and failure reason",
		},
		[]string{"state", "reason"},
	)

	// Tool rounds used per user turn
	RoundsPerTurn = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "notion_assistant",
			Subsystem: "loop",
			Name:      "rounds_per_turn",
			Help:      "Tool rounds executed per user turn",
			Buckets:   []float64{0, 1, 2, 3, 4, 5, 8},
		},
	)

	// Model call latency
	ModelDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "notion_assistant",
			Subsystem: "llm",
			Name:      "request_duration_seconds",
			Help:      "Language model request duration in seconds",
			Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"provider", "status"},
	)

	// Tool dispatches by tool and outcome
	ToolCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "notion_assistant",
			Subsystem: "tools",
			Name:      "calls_total",
			Help:      "Tool dispatches, by tool and outcome",
		},
		[]string{"tool", "outcome"},
	)

	// Tool execution latency
	ToolDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "notion_assistant",
			Subsystem: "tools",
			Name:      "duration_seconds",
			Help:      "Tool execution duration in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		},
		[]string{"tool"},
	)

	// Memory operations by operation and status
	MemoryOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "notion_assistant",
			Subsystem: "memory",
			Name:      "operations_total",
			Help:      "Memory service operations, by operation and status",
		},
		[]string{"operation", "status"},
	)
)

// Handler exposes the default registry for scraping.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordTurn records the end of a user turn.
func RecordTurn(state, reason string, rounds int) {
	TurnsTotal.WithLabelValues(state, reason).Inc()
	RoundsPerTurn.Observe(float64(rounds))
}

// RecordModelCall records one model request.
func RecordModelCall(provider, status string, durationSec float64) {
	ModelDuration.WithLabelValues(provider, status).Observe(durationSec)
}

// RecordToolCall records one tool dispatch
func RecordToolCall(tool, outcome string, durationSec float64) {
	ToolCallsTotal.WithLabelValues(tool, outcome).Inc()
	ToolDuration.WithLabelValues(tool).Observe(durationSec)
}

// RecordMemory records a memory service operation
func RecordMemory(operation, status string) {
	MemoryOperationsTotal.WithLabelValues(operation, status).Inc()
}
