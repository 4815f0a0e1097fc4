package similarity

import (
	"context"
	"errors"
	"time"

	"github.com/ahrav/go-triage/internal/ports"
)

// metricsEmbedder reports request latency and outcome.
type metricsEmbedder struct {
	next      Embedder
	provider  string
	collector ports.MetricsCollector
}

// MetricsMiddleware records latency and a request count for every
// request, labeled by provider, model, and status.
func MetricsMiddleware(provider string, collector ports.MetricsCollector) Middleware {
	if collector == nil {
		collector = ports.NoopMetrics{}
	}
	return func(next Embedder) Embedder {
		return &metricsEmbedder{next: next, provider: provider, collector: collector}
	}
}

// Embed forwards the request and records its outcome.
func (m *metricsEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	start := time.Now()
	vectors, err := m.next.Embed(ctx, texts)

	labels := map[string]string{
		"provider": m.provider,
		"model":    m.next.Model(),
		"status":   requestStatus(err),
	}
	m.collector.RecordLatency(ports.MetricEmbeddingLatency, time.Since(start), labels)
	m.collector.RecordCounter(ports.MetricEmbeddingRequests, 1, labels)
	if err == nil {
		m.collector.RecordCounter(ports.MetricEmbeddingInputs, float64(len(texts)), labels)
	}
	return vectors, err
}

// Model returns the model name from the wrapped embedder.
func (m *metricsEmbedder) Model() string { return m.next.Model() }

func requestStatus(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrCircuitOpen):
		return "circuit_open"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return "error"
	}
}
