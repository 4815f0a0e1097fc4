package similarity

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// tracedEmbedder records a span per request.
type tracedEmbedder struct {
	next        Embedder
	serviceName string
	tracer      trace.Tracer
}

// TracingMiddleware opens an "embedding.request" span around each request.
func TracingMiddleware(serviceName string) Middleware {
	tracer := otel.Tracer("similarity")
	return func(next Embedder) Embedder {
		return &tracedEmbedder{next: next, serviceName: serviceName, tracer: tracer}
	}
}

// Embed forwards the request inside a span.
func (t *tracedEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	ctx, span := t.tracer.Start(ctx, "embedding.request",
		trace.WithAttributes(
			attribute.String("service.name", t.serviceName),
			attribute.String("embedding.model", t.next.Model()),
			attribute.Int("embedding.inputs", len(texts)),
		),
	)
	defer span.End()

	vectors, err := t.next.Embed(ctx, texts)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return vectors, err
	}

	if len(vectors) > 0 {
		span.SetAttributes(attribute.Int("embedding.dimensions", len(vectors[0])))
	}
	return vectors, nil
}

// Model returns the model name from the wrapped embedder.
func (t *tracedEmbedder) Model() string { return t.next.Model() }
