package middleware

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-triage/internal/ports"
)

// sample is one gathered series: its labels and value.
type sample struct {
	labels map[string]string
	value  float64
	count  uint64
}

func newTestMetrics(t *testing.T) (*PrometheusMetrics, *prometheus.Registry) {
	t.Helper()
	reg := prometheus.NewRegistry()
	return NewPrometheusMetrics(reg), reg
}

func gather(t *testing.T, reg *prometheus.Registry, name string) []sample {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)

	for _, mf := range families {
		if mf.GetName() != namespace+"_"+name {
			continue
		}
		var out []sample
		for _, m := range mf.GetMetric() {
			s := sample{labels: map[string]string{}}
			for _, lp := range m.GetLabel() {
				s.labels[lp.GetName()] = lp.GetValue()
			}
			switch {
			case m.GetCounter() != nil:
				s.value = m.GetCounter().GetValue()
			case m.GetGauge() != nil:
				s.value = m.GetGauge().GetValue()
			case m.GetHistogram() != nil:
				s.value = m.GetHistogram().GetSampleSum()
				s.count = m.GetHistogram().GetSampleCount()
			}
			out = append(out, s)
		}
		return out
	}
	return nil
}

func TestNewPrometheusMetrics(t *testing.T) {
	pm, _ := newTestMetrics(t)
	require.NotNil(t, pm)

	var _ ports.MetricsCollector = pm

	reg := prometheus.NewRegistry()
	NewPrometheusMetrics(reg)
	assert.Panics(t, func() { NewPrometheusMetrics(reg) }, "duplicate registration on one registry")
}

func TestPrometheusMetrics_RecordCounter(t *testing.T) {
	tests := []struct {
		name   string
		metric string
		labels map[string]string
		series string
		want   map[string]string
	}{
		{
			name:   "classification",
			metric: ports.MetricClassifications,
			labels: map[string]string{"code_defect": "true", "confidence": "HIGH"},
			series: ports.MetricClassifications,
			want:   map[string]string{"code_defect": "true", "confidence": "HIGH"},
		},
		{
			name:   "resolution",
			metric: ports.MetricResolutions,
			labels: map[string]string{"confidence": "LOW", "resolved": "false"},
			series: ports.MetricResolutions,
			want:   map[string]string{"confidence": "LOW", "resolved": "false"},
		},
		{
			name:   "abstention",
			metric: ports.MetricDetectorAbstentions,
			labels: map[string]string{"detector": "pattern", "source": "PATTERN"},
			series: ports.MetricDetectorAbstentions,
			want:   map[string]string{"detector": "pattern", "source": "PATTERN"},
		},
		{
			name:   "embedding_request",
			metric: ports.MetricEmbeddingRequests,
			labels: map[string]string{"provider": "openai", "model": "m", "status": "success"},
			series: ports.MetricEmbeddingRequests,
			want:   map[string]string{"provider": "openai", "model": "m", "status": "success"},
		},
		{
			name:   "unknown_metric_falls_back",
			metric: "custom_total",
			labels: nil,
			series: "operations_total",
			want:   map[string]string{"metric": "custom_total", "component": "unknown"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pm, reg := newTestMetrics(t)
			pm.RecordCounter(tt.metric, 2, tt.labels)
			pm.RecordCounter(tt.metric, 1, tt.labels)

			samples := gather(t, reg, tt.series)
			require.Len(t, samples, 1)
			assert.Equal(t, tt.want, samples[0].labels)
			assert.Equal(t, 3.0, samples[0].value)
		})
	}
}

func TestPrometheusMetrics_NegativeCounterIgnored(t *testing.T) {
	pm, reg := newTestMetrics(t)
	assert.NotPanics(t, func() {
		pm.RecordCounter(ports.MetricClassifications, -1, map[string]string{"code_defect": "true", "confidence": "LOW"})
	})
	assert.Empty(t, gather(t, reg, ports.MetricClassifications))
}

func TestPrometheusMetrics_RecordGauge(t *testing.T) {
	pm, reg := newTestMetrics(t)

	pm.RecordGauge(ports.MetricEvidenceRecords, 4, map[string]string{"vote": "CODE_DEFECT"})
	pm.RecordGauge(ports.MetricEvidenceRecords, 2, map[string]string{"vote": "CODE_DEFECT"})
	pm.RecordGauge("catalog_entities", 12, map[string]string{"component": "catalog"})

	evidence := gather(t, reg, ports.MetricEvidenceRecords)
	require.Len(t, evidence, 1)
	assert.Equal(t, 2.0, evidence[0].value)

	system := gather(t, reg, "system_state")
	require.Len(t, system, 1)
	assert.Equal(t, map[string]string{"metric": "catalog_entities", "component": "catalog"}, system[0].labels)
	assert.Equal(t, 12.0, system[0].value)
}

func TestPrometheusMetrics_RecordHistogramAndLatency(t *testing.T) {
	pm, reg := newTestMetrics(t)

	pm.RecordHistogram(ports.MetricWinningRatio, 0.75, nil)
	pm.RecordHistogram(ports.MetricWinningRatio, 1, nil)
	pm.RecordHistogram("contributions_per_case", 3, map[string]string{"component": "engine"})
	pm.RecordLatency(ports.MetricEvaluationLatency, 250*time.Millisecond, map[string]string{"component": "engine"})

	ratio := gather(t, reg, ports.MetricWinningRatio)
	require.Len(t, ratio, 1)
	assert.Equal(t, uint64(2), ratio[0].count)
	assert.InDelta(t, 1.75, ratio[0].value, 1e-9)

	values := gather(t, reg, "observed_values")
	require.Len(t, values, 1)
	assert.Equal(t, "contributions_per_case", values[0].labels["metric"])

	latency := gather(t, reg, "operation_duration_seconds")
	require.Len(t, latency, 1)
	assert.Equal(t, map[string]string{"operation": ports.MetricEvaluationLatency, "component": "engine"}, latency[0].labels)
	assert.InDelta(t, 0.25, latency[0].value, 1e-9)
}
