package similarity

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/ahrav/go-triage/internal/ports"
)

func retryableErr() error {
	return NewProviderError("test", ErrorTypeServerError, 503, "unavailable", nil)
}

func permanentErr() error {
	return NewProviderError("test", ErrorTypeAuthentication, 401, "bad key", nil)
}

func TestChain_Order(t *testing.T) {
	var order []string
	tag := func(name string) Middleware {
		return func(next Embedder) Embedder {
			return embedderFunc{model: next.Model(), fn: func(ctx context.Context, texts []string) ([][]float32, error) {
				order = append(order, name)
				return next.Embed(ctx, texts)
			}}
		}
	}

	e := Chain(NewMockEmbedder(), tag("outer"), tag("inner"))
	_, err := e.Embed(context.Background(), []string{"x"})
	require.NoError(t, err)
	assert.Equal(t, []string{"outer", "inner"}, order)
	assert.Equal(t, "mock-embedding", e.Model())
}

func TestRetryMiddleware(t *testing.T) {
	tests := []struct {
		name      string
		errs      []error
		wantErr   bool
		wantCalls int
	}{
		{name: "succeeds_first_try", wantCalls: 1},
		{name: "recovers_after_transient", errs: []error{retryableErr(), retryableErr()}, wantCalls: 3},
		{name: "gives_up_after_max", errs: []error{retryableErr(), retryableErr(), retryableErr(), retryableErr()}, wantErr: true, wantCalls: 3},
		{name: "stops_on_permanent", errs: []error{permanentErr()}, wantErr: true, wantCalls: 1},
		{name: "stops_on_open_circuit", errs: []error{ErrCircuitOpen}, wantErr: true, wantCalls: 1},
		{name: "stops_on_plain_error", errs: []error{errors.New("boom")}, wantErr: true, wantCalls: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := NewMockEmbedder()
			mock.Errors = tt.errs

			e := RetryMiddleware(2, time.Millisecond, 5*time.Millisecond)(mock)
			_, err := e.Embed(context.Background(), []string{"x"})

			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tt.wantCalls, mock.Calls())
		})
	}
}

func TestRetryMiddleware_ContextCanceledDuringBackoff(t *testing.T) {
	mock := NewMockEmbedder()
	mock.Errors = []error{retryableErr(), retryableErr()}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	e := RetryMiddleware(5, time.Second, time.Second)(mock)
	_, err := e.Embed(ctx, []string{"x"})
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1, mock.Calls())
}

func TestRetryMiddleware_DelayBounds(t *testing.T) {
	r := &retryEmbedder{baseDelay: 100 * time.Millisecond, maxDelay: 500 * time.Millisecond}

	for attempt := range 10 {
		d := r.delay(attempt)
		assert.Positive(t, d)
		assert.LessOrEqual(t, d, 500*time.Millisecond)
	}
	d := r.delay(0)
	assert.GreaterOrEqual(t, d, 75*time.Millisecond)
	assert.LessOrEqual(t, d, 125*time.Millisecond)
}

func TestCircuitBreaker_Transitions(t *testing.T) {
	now := time.Unix(0, 0)
	cb := NewCircuitBreaker(2, time.Minute)
	cb.now = func() time.Time { return now }

	fail := func() error { return errors.New("boom") }
	ok := func() error { return nil }

	require.Error(t, cb.Call(fail))
	assert.Equal(t, StateClosed, cb.State())
	require.Error(t, cb.Call(fail))
	assert.Equal(t, StateOpen, cb.State())

	assert.ErrorIs(t, cb.Call(ok), ErrCircuitOpen)

	now = now.Add(time.Minute)
	require.Error(t, cb.Call(fail), "failed probe reopens the circuit")
	assert.Equal(t, StateOpen, cb.State())

	now = now.Add(time.Minute)
	require.NoError(t, cb.Call(ok))
	assert.Equal(t, StateClosed, cb.State())
}

func TestCircuitBreaker_IgnoresCancellation(t *testing.T) {
	cb := NewCircuitBreaker(1, time.Minute)
	for range 3 {
		_ = cb.Call(func() error { return context.Canceled })
	}
	assert.Equal(t, StateClosed, cb.State())
}

func TestCircuitBreakerMiddleware_FailsFast(t *testing.T) {
	mock := NewMockEmbedder()
	mock.Errors = []error{retryableErr(), retryableErr()}

	e := CircuitBreakerMiddleware(2, time.Hour)(mock)
	for range 2 {
		_, err := e.Embed(context.Background(), []string{"x"})
		require.Error(t, err)
	}

	_, err := e.Embed(context.Background(), []string{"x"})
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.Equal(t, 2, mock.Calls(), "open circuit must not reach the provider")
}

func TestTimeoutMiddleware(t *testing.T) {
	var deadline time.Time
	var hasDeadline bool
	probe := embedderFunc{model: "m", fn: func(ctx context.Context, texts []string) ([][]float32, error) {
		deadline, hasDeadline = ctx.Deadline()
		return nil, nil
	}}

	_, err := TimeoutMiddleware(time.Second)(probe).Embed(context.Background(), nil)
	require.NoError(t, err)
	assert.True(t, hasDeadline)
	assert.WithinDuration(t, time.Now().Add(time.Second), deadline, 500*time.Millisecond)

	_, err = TimeoutMiddleware(0)(probe).Embed(context.Background(), nil)
	require.NoError(t, err)
	assert.False(t, hasDeadline)
}

func TestRateLimitMiddleware(t *testing.T) {
	mock := NewMockEmbedder()
	e := RateLimitMiddleware(rate.Limit(1), 1)(mock)

	_, err := e.Embed(context.Background(), []string{"x"})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = e.Embed(ctx, []string{"x"})
	require.Error(t, err, "second request must wait past the deadline")
	assert.Contains(t, err.Error(), "rate limit")
	assert.Equal(t, 1, mock.Calls())
}

func TestTracingMiddleware_PassesThrough(t *testing.T) {
	mock := NewMockEmbedder()
	mock.Errors = []error{permanentErr()}
	e := TracingMiddleware("test")(mock)

	_, err := e.Embed(context.Background(), []string{"x"})
	require.Error(t, err)

	vectors, err := e.Embed(context.Background(), []string{"x"})
	require.NoError(t, err)
	assert.Len(t, vectors, 1)
	assert.Equal(t, "mock-embedding", e.Model())
}

type recordingCollector struct {
	mu       sync.Mutex
	counters map[string][]map[string]string
	latency  int
}

func newRecordingCollector() *recordingCollector {
	return &recordingCollector{counters: map[string][]map[string]string{}}
}

func (c *recordingCollector) RecordLatency(string, time.Duration, map[string]string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.latency++
}

func (c *recordingCollector) RecordCounter(metric string, _ float64, labels map[string]string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counters[metric] = append(c.counters[metric], labels)
}

func (c *recordingCollector) RecordGauge(string, float64, map[string]string)     {}
func (c *recordingCollector) RecordHistogram(string, float64, map[string]string) {}

func TestMetricsMiddleware(t *testing.T) {
	collector := newRecordingCollector()
	mock := NewMockEmbedder()
	mock.Errors = []error{ErrCircuitOpen}
	e := MetricsMiddleware("openai", collector)(mock)

	_, err := e.Embed(context.Background(), []string{"x"})
	require.Error(t, err)
	_, err = e.Embed(context.Background(), []string{"x", "y"})
	require.NoError(t, err)

	requests := collector.counters[ports.MetricEmbeddingRequests]
	require.Len(t, requests, 2)
	assert.Equal(t, "circuit_open", requests[0]["status"])
	assert.Equal(t, "success", requests[1]["status"])
	assert.Equal(t, "openai", requests[1]["provider"])
	assert.Equal(t, "mock-embedding", requests[1]["model"])
	assert.Len(t, collector.counters[ports.MetricEmbeddingInputs], 1)
	assert.Equal(t, 2, collector.latency)
}

func TestRequestStatus(t *testing.T) {
	assert.Equal(t, "success", requestStatus(nil))
	assert.Equal(t, "timeout", requestStatus(context.DeadlineExceeded))
	assert.Equal(t, "canceled", requestStatus(context.Canceled))
	assert.Equal(t, "error", requestStatus(errors.New("x")))
}

// embedderFunc adapts a function to Embedder.
type embedderFunc struct {
	model string
	fn    func(context.Context, []string) ([][]float32, error)
}

func (f embedderFunc) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	return f.fn(ctx, texts)
}

func (f embedderFunc) Model() string { return f.model }
