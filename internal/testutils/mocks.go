package testutils

import (
	"context"
	"maps"
	"sync"
	"time"

	"github.com/ahrav/go-triage/internal/domain"
	"github.com/ahrav/go-triage/internal/ports"
)

var (
	_ ports.SimilaritySearcher = (*MockSearcher)(nil)
	_ ports.MetricsCollector   = (*RecordingMetrics)(nil)
	_ ports.EvidenceDetector   = (*StubEvidenceDetector)(nil)
	_ ports.CandidateDetector  = (*StubCandidateDetector)(nil)
)

// MockSearcher returns canned matches after an optional delay.
type MockSearcher struct {
	Matches []domain.SimilarityMatch
	Err     error

	// Delay is waited before answering. When IgnoreContext is false the
	// wait ends early on cancellation.
	Delay         time.Duration
	IgnoreContext bool

	mu    sync.Mutex
	calls int
	texts []string
}

// Search implements ports.SimilaritySearcher.
func (m *MockSearcher) Search(ctx context.Context, text string, k int) ([]domain.SimilarityMatch, error) {
	m.mu.Lock()
	m.calls++
	m.texts = append(m.texts, text)
	m.mu.Unlock()

	if m.Delay > 0 {
		if m.IgnoreContext {
			time.Sleep(m.Delay)
		} else {
			select {
			case <-time.After(m.Delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}
	if m.Err != nil {
		return nil, m.Err
	}

	out := m.Matches
	if k < len(out) {
		out = out[:k]
	}
	return append([]domain.SimilarityMatch(nil), out...), nil
}

// Calls returns the number of Search calls.
func (m *MockSearcher) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Texts returns the texts searched for, in call order.
func (m *MockSearcher) Texts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.texts...)
}

// MetricRecord is one call made to RecordingMetrics.
type MetricRecord struct {
	Kind   string
	Name   string
	Value  float64
	Labels map[string]string
}

// RecordingMetrics stores every metric call for later assertions.
type RecordingMetrics struct {
	mu      sync.Mutex
	records []MetricRecord
}

func (r *RecordingMetrics) add(kind, name string, v float64, labels map[string]string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, MetricRecord{Kind: kind, Name: name, Value: v, Labels: maps.Clone(labels)})
}

// RecordLatency implements ports.MetricsCollector.
func (r *RecordingMetrics) RecordLatency(op string, d time.Duration, labels map[string]string) {
	r.add("latency", op, d.Seconds(), labels)
}

// RecordCounter implements ports.MetricsCollector.
func (r *RecordingMetrics) RecordCounter(name string, v float64, labels map[string]string) {
	r.add("counter", name, v, labels)
}

// RecordGauge implements ports.MetricsCollector.
func (r *RecordingMetrics) RecordGauge(name string, v float64, labels map[string]string) {
	r.add("gauge", name, v, labels)
}

// RecordHistogram implements ports.MetricsCollector.
func (r *RecordingMetrics) RecordHistogram(name string, v float64, labels map[string]string) {
	r.add("histogram", name, v, labels)
}

// Named returns the records for name in call order.
func (r *RecordingMetrics) Named(name string) []MetricRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []MetricRecord
	for _, rec := range r.records {
		if rec.Name == name {
			out = append(out, rec)
		}
	}
	return out
}

// Sum adds the values recorded for name.
func (r *RecordingMetrics) Sum(name string) float64 {
	total := 0.0
	for _, rec := range r.Named(name) {
		total += rec.Value
	}
	return total
}

// StubEvidenceDetector returns fixed evidence, an error, or panics.
type StubEvidenceDetector struct {
	ID       string
	From     domain.DetectorSource
	Evidence []domain.Evidence
	Err      error
	Panic    any
}

// Name implements ports.Detector.
func (s *StubEvidenceDetector) Name() string { return s.ID }

// Source implements ports.Detector.
func (s *StubEvidenceDetector) Source() domain.DetectorSource { return s.From }

// Detect implements ports.EvidenceDetector.
func (s *StubEvidenceDetector) Detect(context.Context, domain.Input) ([]domain.Evidence, error) {
	if s.Panic != nil {
		panic(s.Panic)
	}
	if s.Err != nil {
		return nil, s.Err
	}
	return append([]domain.Evidence(nil), s.Evidence...), nil
}

// StubCandidateDetector returns fixed contributions, an error, or panics.
type StubCandidateDetector struct {
	ID            string
	From          domain.DetectorSource
	Contributions []domain.Contribution
	Err           error
	Panic         any
}

// Name implements ports.Detector.
func (s *StubCandidateDetector) Name() string { return s.ID }

// Source implements ports.Detector.
func (s *StubCandidateDetector) Source() domain.DetectorSource { return s.From }

// Contribute implements ports.CandidateDetector.
func (s *StubCandidateDetector) Contribute(context.Context, domain.Input) ([]domain.Contribution, error) {
	if s.Panic != nil {
		panic(s.Panic)
	}
	if s.Err != nil {
		return nil, s.Err
	}
	return append([]domain.Contribution(nil), s.Contributions...), nil
}
