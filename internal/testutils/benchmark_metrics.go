package testutils

import (
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/ahrav/go-triage/internal/domain"
)

// BenchmarkMetrics scores engine output against labeled cases.
// It is safe for concurrent use.
type BenchmarkMetrics struct {
	mu sync.RWMutex

	// Confusion matrix for the code-defect question.
	TruePositives  int
	FalsePositives int
	TrueNegatives  int
	FalseNegatives int

	// Entity resolution outcomes, counted only for cases naming an entity.
	ResolutionHits   int
	ResolutionMisses int

	// byConfidence tracks correct/total per classification confidence.
	byConfidence map[domain.Confidence]*tally
	byDomain     map[string]*tally

	latencies []time.Duration
}

type tally struct {
	correct int
	total   int
}

func (t *tally) rate() float64 {
	if t == nil || t.total == 0 {
		return 0
	}
	return float64(t.correct) / float64(t.total)
}

// NewBenchmarkMetrics creates an empty scorer.
func NewBenchmarkMetrics() *BenchmarkMetrics {
	return &BenchmarkMetrics{
		byConfidence: make(map[domain.Confidence]*tally),
		byDomain:     make(map[string]*tally),
	}
}

// Record scores one evaluation of a labeled case.
func (m *BenchmarkMetrics) Record(c LabeledCase, got domain.Evaluation, latency time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	predicted := got.Classification.IsCodeDefect
	switch {
	case c.CodeDefect && predicted:
		m.TruePositives++
	case c.CodeDefect && !predicted:
		m.FalseNegatives++
	case !c.CodeDefect && predicted:
		m.FalsePositives++
	default:
		m.TrueNegatives++
	}
	correct := c.CodeDefect == predicted

	bump(m.byConfidence, got.Classification.Confidence, correct)
	d := c.Domain
	if d == "" {
		d = "unspecified"
	}
	bump(m.byDomain, d, correct)

	if c.Entity != "" {
		best := got.Resolution.BestCandidate
		if best != nil && strings.EqualFold(best.Name, c.Entity) {
			m.ResolutionHits++
		} else {
			m.ResolutionMisses++
		}
	}

	m.latencies = append(m.latencies, latency)
}

func bump[K comparable](m map[K]*tally, key K, correct bool) {
	t, ok := m[key]
	if !ok {
		t = &tally{}
		m[key] = t
	}
	t.total++
	if correct {
		t.correct++
	}
}

// Total returns the number of recorded evaluations.
func (m *BenchmarkMetrics) Total() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.total()
}

func (m *BenchmarkMetrics) total() int {
	return m.TruePositives + m.FalsePositives + m.TrueNegatives + m.FalseNegatives
}

// Accuracy returns the share of correct classifications.
func (m *BenchmarkMetrics) Accuracy() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if n := m.total(); n > 0 {
		return float64(m.TruePositives+m.TrueNegatives) / float64(n)
	}
	return 0
}

// Precision returns TP / (TP + FP) for the code-defect class.
func (m *BenchmarkMetrics) Precision() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return ratio(m.TruePositives, m.TruePositives+m.FalsePositives)
}

// Recall returns TP / (TP + FN) for the code-defect class.
func (m *BenchmarkMetrics) Recall() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return ratio(m.TruePositives, m.TruePositives+m.FalseNegatives)
}

// F1 returns the harmonic mean of precision and recall.
func (m *BenchmarkMetrics) F1() float64 {
	p, r := m.Precision(), m.Recall()
	if p+r == 0 {
		return 0
	}
	return 2 * p * r / (p + r)
}

// ResolutionRate returns the share of entity-labeled cases whose best
// candidate matched the label.
func (m *BenchmarkMetrics) ResolutionRate() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return ratio(m.ResolutionHits, m.ResolutionHits+m.ResolutionMisses)
}

// AccuracyByConfidence returns classification accuracy per band.
// Bands with no evaluations are omitted.
func (m *BenchmarkMetrics) AccuracyByConfidence() map[domain.Confidence]float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[domain.Confidence]float64, len(m.byConfidence))
	for k, t := range m.byConfidence {
		out[k] = t.rate()
	}
	return out
}

// LatencyPercentile returns the pth percentile latency, 0 to 100.
func (m *BenchmarkMetrics) LatencyPercentile(p float64) time.Duration {
	m.mu.RLock()
	sorted := slices.Clone(m.latencies)
	m.mu.RUnlock()

	if len(sorted) == 0 {
		return 0
	}
	slices.Sort(sorted)
	i := int(float64(len(sorted)) * p / 100)
	if i >= len(sorted) {
		i = len(sorted) - 1
	}
	return sorted[i]
}

func ratio(num, den int) float64 {
	if den == 0 {
		return 0
	}
	return float64(num) / float64(den)
}

// GenerateReport creates a human-readable report of the metrics.
func (m *BenchmarkMetrics) GenerateReport() string {
	var b strings.Builder
	b.WriteString("=== Triage Benchmark Report ===\n\n")

	fmt.Fprintf(&b, "Classification:\n")
	fmt.Fprintf(&b, "  Accuracy:  %.2f%%\n", m.Accuracy()*100)
	fmt.Fprintf(&b, "  Precision: %.2f%%\n", m.Precision()*100)
	fmt.Fprintf(&b, "  Recall:    %.2f%%\n", m.Recall()*100)
	fmt.Fprintf(&b, "  F1:        %.3f\n\n", m.F1())

	fmt.Fprintf(&b, "Resolution:\n")
	fmt.Fprintf(&b, "  Best candidate matched: %.2f%%\n\n", m.ResolutionRate()*100)

	byConf := m.AccuracyByConfidence()
	if len(byConf) > 0 {
		b.WriteString("Accuracy by Confidence:\n")
		for _, c := range []domain.Confidence{
			domain.ConfidenceHigh, domain.ConfidenceMedium, domain.ConfidenceLow,
			domain.ConfidenceVeryLow, domain.ConfidenceUnknown,
		} {
			if acc, ok := byConf[c]; ok {
				fmt.Fprintf(&b, "  %s: %.2f%%\n", c, acc*100)
			}
		}
		b.WriteString("\n")
	}

	m.mu.RLock()
	domains := make([]string, 0, len(m.byDomain))
	for d := range m.byDomain {
		domains = append(domains, d)
	}
	slices.Sort(domains)
	if len(domains) > 0 {
		b.WriteString("Accuracy by Domain:\n")
		for _, d := range domains {
			fmt.Fprintf(&b, "  %s: %.2f%%\n", d, m.byDomain[d].rate()*100)
		}
		b.WriteString("\n")
	}
	total := m.total()
	m.mu.RUnlock()

	fmt.Fprintf(&b, "Latency:\n")
	fmt.Fprintf(&b, "  P50: %v\n", m.LatencyPercentile(50))
	fmt.Fprintf(&b, "  P95: %v\n\n", m.LatencyPercentile(95))

	fmt.Fprintf(&b, "Summary:\n")
	fmt.Fprintf(&b, "  Total Evaluations: %d\n", total)

	return b.String()
}
