package middleware

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/ahrav/go-triage/internal/ports"
)

var _ DetectorObserver = (*OTelDetectorObserver)(nil)

// OTelDetectorObserver records detector calls as events on the caller's
// span and reports latency and abstentions to a metrics collector.
type OTelDetectorObserver struct {
	metrics ports.MetricsCollector
}

// NewOTelDetectorObserver creates an observer. A nil collector discards
// metrics.
func NewOTelDetectorObserver(metrics ports.MetricsCollector) *OTelDetectorObserver {
	if metrics == nil {
		metrics = ports.NoopMetrics{}
	}
	return &OTelDetectorObserver{metrics: metrics}
}

// Observe implements DetectorObserver.
func (o *OTelDetectorObserver) Observe(
	ctx context.Context,
	detector ports.Detector,
	produced int,
	elapsed time.Duration,
	err error,
) {
	labels := map[string]string{
		"component": "detector",
		"detector":  detector.Name(),
		"source":    detector.Source().String(),
	}
	o.metrics.RecordLatency("detector_call", elapsed, labels)

	span := trace.SpanFromContext(ctx)
	attrs := []attribute.KeyValue{
		attribute.String("detector.name", detector.Name()),
		attribute.String("detector.source", detector.Source().String()),
	}

	if err != nil {
		attrs = append(attrs,
			attribute.String("error", err.Error()),
			attribute.Bool("panicked", errors.Is(err, ports.ErrDetectorPanicked)),
		)
		span.AddEvent("detector.abstained", trace.WithAttributes(attrs...))
		o.metrics.RecordCounter(ports.MetricDetectorAbstentions, 1, labels)
		return
	}

	attrs = append(attrs, attribute.Int("detector.produced", produced))
	span.AddEvent("detector.completed", trace.WithAttributes(attrs...))
}
