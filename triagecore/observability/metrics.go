// Package observability provides Prometheus metrics instrumentation for the triage core.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// =============================================================================
// PIPELINE METRICS
// =============================================================================

var (
	pipelineExecutionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "triage_pipeline_executions_total",
			Help: "Total number of triage pipeline executions",
		},
		[]string{"status"}, // status: success, error
	)

	pipelineDurationSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "triage_pipeline_duration_seconds",
			Help:    "Triage pipeline execution duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
	)
)

// =============================================================================
// STAGE METRICS
// =============================================================================

var (
	stageExecutionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "triage_stage_executions_total",
			Help: "Total number of workflow stage executions",
		},
		[]string{"stage", "status"}, // status: success, error
	)

	stageDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "triage_stage_duration_seconds",
			Help:    "Workflow stage execution duration in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10},
		},
		[]string{"stage"},
	)
)

// =============================================================================
// LLM METRICS
// =============================================================================

var (
	llmCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "triage_llm_calls_total",
			Help: "Total number of text generation calls",
		},
		[]string{"model", "status"}, // status: success, error
	)

	llmDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "triage_llm_duration_seconds",
			Help:    "Text generation call duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"model"},
	)
)

// =============================================================================
// LEDGER METRICS
// =============================================================================

var (
	ledgerOpsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "triage_ledger_ops_total",
			Help: "Total history ledger operations",
		},
		[]string{"op", "status"}, // op: load, append, clear; status: success, error, recovered
	)
)

// =============================================================================
// PUBLIC API
// =============================================================================

// RecordPipelineExecution records pipeline execution metrics.
// This should be called after pipeline execution completes.
func RecordPipelineExecution(status string, durationMS int) {
	pipelineExecutionsTotal.WithLabelValues(status).Inc()
	pipelineDurationSeconds.Observe(float64(durationMS) / 1000.0)
}

// RecordStageExecution records workflow stage execution metrics.
// This should be called after stage processing completes.
func RecordStageExecution(stage string, status string, durationMS int) {
	stageExecutionsTotal.WithLabelValues(stage, status).Inc()
	stageDurationSeconds.WithLabelValues(stage).Observe(float64(durationMS) / 1000.0)
}

// RecordLLMCall records text generation call metrics.
// This should be called after generation completes.
func RecordLLMCall(model string, status string, durationMS int) {
	llmCallsTotal.WithLabelValues(model, status).Inc()
	llmDurationSeconds.WithLabelValues(model).Observe(float64(durationMS) / 1000.0)
}

// RecordLedgerOp records a history ledger operation.
func RecordLedgerOp(op string, status string) {
	ledgerOpsTotal.WithLabelValues(op, status).Inc()
}
