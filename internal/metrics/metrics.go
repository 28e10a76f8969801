// Package metrics holds the Prometheus collectors for the invoice pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// DocumentsTotal counts processed documents by terminal outcome.
	DocumentsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "invoice_documents_total",
			Help: "Documents processed, by outcome",
		},
		[]string{"outcome"},
	)

	// ExtractionFailuresTotal counts documents skipped during extraction, by stage.
	ExtractionFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "invoice_extraction_failures_total",
			Help: "Extraction failures, by stage (unsupported, ocr, llm, parse)",
		},
		[]string{"stage"},
	)

	// MissingFieldsTotal counts required fields reported missing by validation.
	MissingFieldsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "invoice_missing_fields_total",
			Help: "Required invoice fields reported missing",
		},
		[]string{"field"},
	)

	// ToolCallsTotal counts dispatcher tool invocations.
	ToolCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "invoice_tool_calls_total",
			Help: "Agent tool calls, by tool and status",
		},
		[]string{"tool", "status"},
	)

	// OCRDuration observes OCR wall time per document.
	OCRDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "invoice_ocr_duration_seconds",
			Help:    "OCR duration per document in seconds",
			Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60, 120},
		},
	)

	// LLMDuration observes language-model completion latency.
	LLMDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "invoice_llm_duration_seconds",
			Help:    "Language-model completion latency in seconds",
			Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300},
		},
	)
)
