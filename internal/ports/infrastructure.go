package ports

import (
	"context"
	"time"

	"github.com/ahrav/go-triage/internal/domain"
)

// SimilaritySearcher finds catalog entities semantically similar to a
// piece of case text. It is the caller-side boundary to the external
// similarity service; the engine itself only consumes its results.
type SimilaritySearcher interface {
	// Search returns up to k matches ordered by descending similarity.
	// Scores are in [0, 1]. Implementations respect ctx cancellation.
	Search(ctx context.Context, text string, k int) ([]domain.SimilarityMatch, error)
}

// MetricsCollector defines the interface for collecting operational metrics.
// Implementations should integrate with observability platforms like
// Prometheus, OpenTelemetry, or custom monitoring solutions.
type MetricsCollector interface {
	// RecordLatency records the execution time of an operation.
	// The labels map provides additional context for the metric.
	RecordLatency(operation string, duration time.Duration, labels map[string]string)

	// RecordCounter increments a counter metric.
	// This is useful for tracking events like band outcomes or abstentions.
	RecordCounter(metric string, value float64, labels map[string]string)

	// RecordGauge sets the current value of a gauge metric.
	RecordGauge(metric string, value float64, labels map[string]string)

	// RecordHistogram records a value in a histogram.
	// This is useful for tracking distributions like winning ratios.
	RecordHistogram(metric string, value float64, labels map[string]string)
}

// Metric names emitted by the engine and the similarity layer.
const (
	MetricEvaluationLatency   = "evaluation_latency"
	MetricClassifications     = "classifications_total"
	MetricResolutions         = "resolutions_total"
	MetricDetectorAbstentions = "detector_abstentions_total"
	MetricEvidenceRecords     = "evidence_records"
	MetricWinningRatio        = "winning_ratio"
	MetricEmbeddingLatency    = "embedding_latency"
	MetricEmbeddingRequests   = "embedding_requests_total"
	MetricEmbeddingInputs     = "embedding_inputs_total"
	MetricSemanticLookups     = "semantic_lookups_total"
)

// NoopMetrics discards every metric. It is the default collector when
// none is configured.
type NoopMetrics struct{}

// RecordLatency implements MetricsCollector.
func (NoopMetrics) RecordLatency(string, time.Duration, map[string]string) {}

// RecordCounter implements MetricsCollector.
func (NoopMetrics) RecordCounter(string, float64, map[string]string) {}

// RecordGauge implements MetricsCollector.
func (NoopMetrics) RecordGauge(string, float64, map[string]string) {}

// RecordHistogram implements MetricsCollector.
func (NoopMetrics) RecordHistogram(string, float64, map[string]string) {}

var _ MetricsCollector = NoopMetrics{}
