// Package middleware provides cross-cutting concerns for the triage engine.
package middleware

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/ahrav/go-triage/internal/ports"
)

const namespace = "casetriage"

// PrometheusMetrics implements ports.MetricsCollector using Prometheus.
// Known metric names map to dedicated vectors; anything else falls back to
// the generic operation, gauge, and histogram vectors.
type PrometheusMetrics struct {
	classifications   *prometheus.CounterVec
	resolutions       *prometheus.CounterVec
	abstentions       *prometheus.CounterVec
	semanticLookups   *prometheus.CounterVec
	embeddingRequests *prometheus.CounterVec
	evidenceRecords   *prometheus.GaugeVec
	winningRatio      prometheus.Histogram
	latency           *prometheus.HistogramVec
	operationCounter  *prometheus.CounterVec
	systemGauges      *prometheus.GaugeVec
	values            *prometheus.HistogramVec
}

// NewPrometheusMetrics creates the collector and registers its metrics
// with reg. A nil reg uses the global default registerer.
func NewPrometheusMetrics(reg prometheus.Registerer) *PrometheusMetrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &PrometheusMetrics{
		classifications: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      ports.MetricClassifications,
				Help:      "Classification results by outcome and confidence band.",
			},
			[]string{"code_defect", "confidence"},
		),
		resolutions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      ports.MetricResolutions,
				Help:      "Entity resolution results by confidence band.",
			},
			[]string{"confidence", "resolved"},
		),
		abstentions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      ports.MetricDetectorAbstentions,
				Help:      "Detector calls that failed or panicked and were skipped.",
			},
			[]string{"detector", "source"},
		),
		semanticLookups: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      ports.MetricSemanticLookups,
				Help:      "Time-budgeted similarity lookups by outcome.",
			},
			[]string{"status"},
		),
		embeddingRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      ports.MetricEmbeddingRequests,
				Help:      "Embedding provider requests by provider, model, and status.",
			},
			[]string{"provider", "model", "status"},
		),
		evidenceRecords: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      ports.MetricEvidenceRecords,
				Help:      "Evidence records in the most recent evaluation, by vote.",
			},
			[]string{"vote"},
		),
		winningRatio: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      ports.MetricWinningRatio,
				Help:      "Winning share of meaningful vote weight per classification.",
				Buckets:   []float64{0.5, 0.6, 0.67, 0.8, 0.9, 1},
			},
		),
		latency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "operation_duration_seconds",
				Help:      "Duration of engine and embedding operations.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"operation", "component"},
		),
		operationCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "operations_total",
				Help:      "Counters without a dedicated metric.",
			},
			[]string{"metric", "component"},
		),
		systemGauges: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "system_state",
				Help:      "Gauges without a dedicated metric.",
			},
			[]string{"metric", "component"},
		),
		values: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "observed_values",
				Help:      "Histograms without a dedicated metric.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"metric", "component"},
		),
	}
}

// RecordLatency implements ports.MetricsCollector.
func (pm *PrometheusMetrics) RecordLatency(
	operation string,
	duration time.Duration,
	labels map[string]string,
) {
	pm.latency.WithLabelValues(operation, component(labels)).Observe(duration.Seconds())
}

// RecordCounter implements ports.MetricsCollector.
func (pm *PrometheusMetrics) RecordCounter(
	metric string, value float64, labels map[string]string,
) {
	if value < 0 {
		return
	}

	switch metric {
	case ports.MetricClassifications:
		pm.classifications.WithLabelValues(labels["code_defect"], labels["confidence"]).Add(value)
	case ports.MetricResolutions:
		pm.resolutions.WithLabelValues(labels["confidence"], labels["resolved"]).Add(value)
	case ports.MetricDetectorAbstentions:
		pm.abstentions.WithLabelValues(labels["detector"], labels["source"]).Add(value)
	case ports.MetricSemanticLookups:
		pm.semanticLookups.WithLabelValues(labels["status"]).Add(value)
	case ports.MetricEmbeddingRequests:
		pm.embeddingRequests.WithLabelValues(labels["provider"], labels["model"], labels["status"]).Add(value)
	default:
		pm.operationCounter.WithLabelValues(metric, component(labels)).Add(value)
	}
}

// RecordGauge implements ports.MetricsCollector.
func (pm *PrometheusMetrics) RecordGauge(
	metric string, value float64, labels map[string]string,
) {
	switch metric {
	case ports.MetricEvidenceRecords:
		pm.evidenceRecords.WithLabelValues(labels["vote"]).Set(value)
	default:
		pm.systemGauges.WithLabelValues(metric, component(labels)).Set(value)
	}
}

// RecordHistogram implements ports.MetricsCollector.
func (pm *PrometheusMetrics) RecordHistogram(
	metric string, value float64, labels map[string]string,
) {
	switch metric {
	case ports.MetricWinningRatio:
		pm.winningRatio.Observe(value)
	default:
		pm.values.WithLabelValues(metric, component(labels)).Observe(value)
	}
}

func component(labels map[string]string) string {
	if c := labels["component"]; c != "" {
		return c
	}
	return "unknown"
}

var _ ports.MetricsCollector = (*PrometheusMetrics)(nil)
