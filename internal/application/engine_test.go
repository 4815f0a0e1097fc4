package application

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-triage/infrastructure/aggregation"
	"github.com/ahrav/go-triage/internal/domain"
	"github.com/ahrav/go-triage/internal/ports"
	"github.com/ahrav/go-triage/internal/testutils"
)

func newDefaultEngine(t *testing.T, opts ...EngineOption) *Engine {
	t.Helper()
	cfg := DefaultEngineConfig()
	engine, err := NewEngineFromConfig(&cfg, testutils.NewCatalog(), opts...)
	require.NoError(t, err)
	return engine
}

func newStubEngine(t *testing.T, dets []ports.Detector, opts ...EngineOption) *Engine {
	t.Helper()
	aggregator, err := aggregation.NewVoteAggregator(aggregation.DefaultBandingConfig())
	require.NoError(t, err)
	resolver, err := aggregation.NewCandidateResolver(aggregation.DefaultResolutionBandingConfig())
	require.NoError(t, err)
	engine, err := NewEngine(aggregator, resolver, dets, opts...)
	require.NoError(t, err)
	return engine
}

func sources(evidence []domain.Evidence) []domain.DetectorSource {
	out := make([]domain.DetectorSource, len(evidence))
	for i, e := range evidence {
		out[i] = e.Source
	}
	return out
}

func TestEngine_StrongCodeSignal(t *testing.T) {
	c, r := newDefaultEngine(t).Evaluate(context.Background(), testutils.StrongCodeInput())

	assert.True(t, c.IsCodeDefect)
	assert.Equal(t, domain.ConfidenceHigh, c.Confidence)
	assert.InDelta(t, 3.0, c.VoteTally.CodeDefectVotes, 1e-9)
	assert.Zero(t, c.VoteTally.NotCodeDefectVotes)
	assert.Equal(t, "Code/Application Defect", c.SuggestedIssueType)
	assert.Equal(t,
		[]domain.DetectorSource{domain.SourcePattern, domain.SourceCategory, domain.SourceCategory, domain.SourceHistorical},
		sources(c.EvidenceTrail))

	require.NotNil(t, r.BestCandidate)
	assert.Equal(t, "InvoiceService", r.BestCandidate.Name)
	assert.Equal(t, "billing/InvoiceService.java", r.BestCandidate.FilePath)
	assert.Equal(t, domain.ConfidenceMedium, r.Confidence)
	assert.Equal(t, []domain.DetectorSource{domain.SourceIndex}, r.ContributingMethods)
}

func TestEngine_TwoCodeSignalsStayBelowHigh(t *testing.T) {
	in := testutils.StrongCodeInput()
	in.History = nil

	c, r := newDefaultEngine(t).Evaluate(context.Background(), in)

	assert.True(t, c.IsCodeDefect)
	assert.Equal(t, domain.ConfidenceLow, c.Confidence, "ratio 1.0 over 2 meaningful votes is capped at LOW")
	assert.InDelta(t, 2.0, c.VoteTally.CodeDefectVotes, 1e-9)
	assert.Zero(t, c.VoteTally.NotCodeDefectVotes)
	assert.InDelta(t, 2.0, c.VoteTally.Meaningful(), 1e-9)
	assert.Equal(t,
		[]domain.DetectorSource{domain.SourcePattern, domain.SourceCategory, domain.SourceCategory},
		sources(c.EvidenceTrail))

	require.NotNil(t, r.BestCandidate)
	assert.Equal(t, "InvoiceService", r.BestCandidate.Name)
}

func TestEngine_CustomerOverride(t *testing.T) {
	tests := []struct {
		name           string
		description    string
		wantConfidence domain.Confidence
	}{
		{
			name:           "no other signal",
			description:    "Partner feed rejected every record since Monday",
			wantConfidence: domain.ConfidenceLow,
		},
		{
			name:           "despite code fingerprints",
			description:    "NullPointerException at com.vendor.sdk.Client.send",
			wantConfidence: domain.ConfidenceVeryLow,
		},
	}

	engine := newDefaultEngine(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := testutils.CustomerOverrideInput()
			in.Case.Description = tt.description

			c, _ := engine.Evaluate(context.Background(), in)

			assert.False(t, c.IsCodeDefect)
			assert.Equal(t, tt.wantConfidence, c.Confidence)
			assert.Equal(t, "Third-Party Issue", c.SuggestedIssueType)

			var override []domain.Evidence
			for _, e := range c.EvidenceTrail {
				if e.Source == domain.SourceCategory {
					override = append(override, e)
				}
			}
			require.Len(t, override, 1)
			assert.Equal(t, domain.NotCodeDefect, override[0].Vote)
			assert.InDelta(t, 1.0, override[0].Weight, 1e-9)
		})
	}
}

func TestEngine_ResolutionTieBreak(t *testing.T) {
	cfg := DefaultEngineConfig()
	cfg.Detectors = []DetectorSpec{{
		Type:   DetectorTypeSemantic,
		Params: map[string]any{"damping": 1.0},
	}}
	engine, err := NewEngineFromConfig(&cfg, testutils.NewCatalog())
	require.NoError(t, err)

	in := domain.Input{
		Case: domain.Case{Description: "address check blocks checkout"},
		Semantic: []domain.SimilarityMatch{
			{Name: "ValidateAddress", Score: 0.8},
			{Name: "CreateOrder", Score: 0.8},
		},
	}
	c, r := engine.Evaluate(context.Background(), in)

	require.NotNil(t, r.BestCandidate)
	assert.Equal(t, "CreateOrder", r.BestCandidate.Name)
	assert.InDelta(t, 0.8, r.BestCandidate.TotalScore, 1e-9)
	assert.Equal(t, domain.ConfidenceMedium, r.Confidence)
	require.Len(t, r.AllCandidates, 2)
	assert.Equal(t, "ValidateAddress", r.AllCandidates[1].Name)

	assert.Equal(t, domain.ConfidenceUnknown, c.Confidence)
	assert.Empty(t, c.EvidenceTrail)
}

func TestEngine_DiversityDrivenHigh(t *testing.T) {
	_, r := newDefaultEngine(t).Evaluate(context.Background(), testutils.DiversityInput())

	require.NotNil(t, r.BestCandidate)
	assert.Equal(t, "CreateOrder", r.BestCandidate.Name)
	assert.Less(t, r.BestCandidate.TotalScore, 1.5)
	assert.Equal(t, 2, r.BestCandidate.Methods())
	assert.Equal(t, domain.ConfidenceHigh, r.Confidence)
	assert.Equal(t, []domain.DetectorSource{domain.SourceIndex, domain.SourceSemantic}, r.ContributingMethods)
}

func TestEngine_SemanticAbsent(t *testing.T) {
	engine := newDefaultEngine(t)

	for name, matches := range map[string][]domain.SimilarityMatch{
		"nil":   nil,
		"empty": {},
	} {
		t.Run(name, func(t *testing.T) {
			in := testutils.DiversityInput()
			in.Semantic = matches

			_, r := engine.Evaluate(context.Background(), in)

			require.NotNil(t, r.BestCandidate)
			assert.Equal(t, "CreateOrder", r.BestCandidate.Name)
			assert.Equal(t, domain.ConfidenceMedium, r.Confidence)
			assert.Equal(t, []domain.DetectorSource{domain.SourceIndex}, r.ContributingMethods)
		})
	}
}

func TestEngine_EmptyInput(t *testing.T) {
	c, r := newDefaultEngine(t).Evaluate(context.Background(), domain.Input{})

	assert.False(t, c.IsCodeDefect)
	assert.Equal(t, domain.ConfidenceUnknown, c.Confidence)
	assert.Equal(t, "Configuration/Data Issue", c.SuggestedIssueType)
	require.Len(t, c.EvidenceTrail, 1)
	assert.Equal(t, domain.Inconclusive, c.EvidenceTrail[0].Vote)
	assert.Equal(t, 1, c.VoteTally.InconclusiveVotes)

	assert.Nil(t, r.BestCandidate)
	assert.Equal(t, domain.ConfidenceLow, r.Confidence)
	assert.NotNil(t, r.AllCandidates)
	assert.Empty(t, r.AllCandidates)
	assert.Empty(t, r.ContributingMethods)
}

func TestEngine_ConfigurationLean(t *testing.T) {
	c, _ := newDefaultEngine(t).Evaluate(context.Background(), testutils.ConfigurationInput())

	assert.False(t, c.IsCodeDefect)
	assert.Equal(t, domain.ConfidenceLow, c.Confidence)
	assert.InDelta(t, 2.0, c.VoteTally.NotCodeDefectVotes, 1e-9)
	assert.Equal(t, "Configuration", c.SuggestedIssueType)
}

func TestEngine_DeterministicAndPure(t *testing.T) {
	engine := newDefaultEngine(t)
	in := testutils.StrongCodeInput()
	in.Semantic = []domain.SimilarityMatch{{Name: "InvoiceService", Score: 0.9}}
	snapshot := testutils.StrongCodeInput()
	snapshot.Semantic = []domain.SimilarityMatch{{Name: "InvoiceService", Score: 0.9}}

	c1, r1 := engine.Evaluate(context.Background(), in)
	c2, r2 := engine.Evaluate(context.Background(), in)

	if diff := cmp.Diff(c1, c2); diff != "" {
		t.Errorf("classification differs between runs (-first +second):\n%s", diff)
	}
	if diff := cmp.Diff(r1, r2); diff != "" {
		t.Errorf("resolution differs between runs (-first +second):\n%s", diff)
	}
	if diff := cmp.Diff(snapshot, in); diff != "" {
		t.Errorf("input was mutated (-want +got):\n%s", diff)
	}

	r1.BestCandidate.Contributions[domain.SourceIndex] = 99
	assert.NotEqual(t, 99.0, r1.AllCandidates[0].Contributions[domain.SourceIndex])
}

func TestEngine_AbstainingDetectors(t *testing.T) {
	metrics := &testutils.RecordingMetrics{}
	dets := []ports.Detector{
		&testutils.StubEvidenceDetector{ID: "boom", From: domain.SourcePattern, Panic: "index out of range"},
		&testutils.StubEvidenceDetector{ID: "down", From: domain.SourceHistorical, Err: errors.New("unavailable")},
		&testutils.StubEvidenceDetector{
			ID:   "foreign",
			From: domain.SourceCategory,
			Evidence: []domain.Evidence{{
				Source: domain.SourcePattern, Vote: domain.CodeDefect, Weight: 1,
			}},
		},
		&testutils.StubEvidenceDetector{
			ID:   "category",
			From: domain.SourceCategory,
			Evidence: []domain.Evidence{{
				Source: domain.SourceCategory, Vote: domain.NotCodeDefect, Weight: 1, Tokens: []string{"Data"},
			}},
		},
		&testutils.StubCandidateDetector{ID: "crash", From: domain.SourceIndex, Panic: errors.New("nil map")},
		&testutils.StubCandidateDetector{
			ID:            "negative",
			From:          domain.SourceSemantic,
			Contributions: []domain.Contribution{{Name: "CreateOrder", Source: domain.SourceSemantic, Score: -1}},
		},
	}

	engine := newStubEngine(t, dets, WithMetrics(metrics))
	c, r := engine.Evaluate(context.Background(), domain.Input{})

	require.Len(t, c.EvidenceTrail, 1)
	assert.Equal(t, domain.NotCodeDefect, c.EvidenceTrail[0].Vote)
	assert.False(t, c.IsCodeDefect)
	assert.Equal(t, "Data", c.SuggestedIssueType)
	assert.Nil(t, r.BestCandidate)

	abstentions := metrics.Named(ports.MetricDetectorAbstentions)
	require.Len(t, abstentions, 5)
	var names []string
	for _, a := range abstentions {
		names = append(names, a.Labels["detector"])
	}
	assert.ElementsMatch(t, []string{"boom", "down", "foreign", "crash", "negative"}, names)
}

func TestEngine_EvaluationOrderFollowsSource(t *testing.T) {
	dets := []ports.Detector{
		&testutils.StubCandidateDetector{ID: "semantic", From: domain.SourceSemantic},
		&testutils.StubEvidenceDetector{
			ID:       "historical",
			From:     domain.SourceHistorical,
			Evidence: []domain.Evidence{{Source: domain.SourceHistorical, Vote: domain.CodeDefect, Weight: 1}},
		},
		&testutils.StubEvidenceDetector{
			ID:       "pattern",
			From:     domain.SourcePattern,
			Evidence: []domain.Evidence{{Source: domain.SourcePattern, Vote: domain.CodeDefect, Weight: 1}},
		},
		&testutils.StubCandidateDetector{ID: "index", From: domain.SourceIndex},
	}

	engine := newStubEngine(t, dets)
	evidence, candidates := engine.Detectors()
	assert.Equal(t, []string{"pattern", "historical"}, evidence)
	assert.Equal(t, []string{"index", "semantic"}, candidates)

	c, _ := engine.Evaluate(context.Background(), domain.Input{})
	assert.Equal(t, []domain.DetectorSource{domain.SourcePattern, domain.SourceHistorical}, sources(c.EvidenceTrail))
}

func TestEngine_RecordsMetrics(t *testing.T) {
	metrics := &testutils.RecordingMetrics{}
	engine := newDefaultEngine(t, WithMetrics(metrics))

	engine.Evaluate(context.Background(), testutils.StrongCodeInput())

	classifications := metrics.Named(ports.MetricClassifications)
	require.Len(t, classifications, 1)
	assert.Equal(t, map[string]string{"code_defect": "true", "confidence": "HIGH"}, classifications[0].Labels)

	resolutions := metrics.Named(ports.MetricResolutions)
	require.Len(t, resolutions, 1)
	assert.Equal(t, map[string]string{"confidence": "MEDIUM", "resolved": "true"}, resolutions[0].Labels)

	gauges := map[string]float64{}
	for _, g := range metrics.Named(ports.MetricEvidenceRecords) {
		gauges[g.Labels["vote"]] = g.Value
	}
	assert.Equal(t, map[string]float64{"CODE_DEFECT": 3, "NOT_CODE_DEFECT": 1, "INCONCLUSIVE": 0}, gauges)

	ratios := metrics.Named(ports.MetricWinningRatio)
	require.Len(t, ratios, 1)
	assert.InDelta(t, 1.0, ratios[0].Value, 1e-9)

	assert.Len(t, metrics.Named(ports.MetricEvaluationLatency), 1)
	assert.Len(t, metrics.Named("detector_call"), 6)
	assert.Empty(t, metrics.Named(ports.MetricDetectorAbstentions))
}

type nameOnly struct{}

func (nameOnly) Name() string                  { return "inert" }
func (nameOnly) Source() domain.DetectorSource { return domain.SourcePattern }

func TestNewEngine_Errors(t *testing.T) {
	aggregator, err := aggregation.NewVoteAggregator(aggregation.DefaultBandingConfig())
	require.NoError(t, err)
	resolver, err := aggregation.NewCandidateResolver(aggregation.DefaultResolutionBandingConfig())
	require.NoError(t, err)

	_, err = NewEngine(nil, resolver, nil)
	assert.ErrorIs(t, err, domain.ErrInvalidConfiguration)

	_, err = NewEngine(aggregator, resolver, []ports.Detector{nameOnly{}})
	assert.ErrorIs(t, err, domain.ErrInvalidConfiguration)
	assert.ErrorContains(t, err, `"inert"`)

	_, err = NewEngine(aggregator, resolver, []ports.Detector{nil})
	assert.ErrorIs(t, err, domain.ErrInvalidConfiguration)
}

func TestNewEngineFromConfig_Errors(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*EngineConfig)
		wantKey string
	}{
		{
			name: "invalid pattern",
			mutate: func(cfg *EngineConfig) {
				cfg.Detectors[0].Params = map[string]any{"patterns": []any{"(unclosed"}}
			},
			wantKey: "detectors[0]",
		},
		{
			name:    "invalid banding",
			mutate:  func(cfg *EngineConfig) { cfg.Banding.HighRatio = 2 },
			wantKey: "banding",
		},
		{
			name:    "invalid resolution",
			mutate:  func(cfg *EngineConfig) { cfg.Resolution.HighMethods = 0 },
			wantKey: "resolution",
		},
		{
			name:    "unknown type",
			mutate:  func(cfg *EngineConfig) { cfg.Detectors[4].Type = "oracle" },
			wantKey: "detectors[4]",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultEngineConfig()
			tt.mutate(&cfg)

			engine, err := NewEngineFromConfig(&cfg, testutils.NewCatalog())
			require.Error(t, err)
			assert.Nil(t, engine)

			var cerr *ports.ConfigError
			require.ErrorAs(t, err, &cerr)
			assert.Equal(t, tt.wantKey, cerr.ConfigKey)
		})
	}

	_, err := NewEngineFromConfig(nil, nil)
	assert.ErrorIs(t, err, domain.ErrInvalidConfiguration)
}

func TestEngine_HistoricalMentionsAreOptIn(t *testing.T) {
	in := domain.Input{
		Case:    domain.Case{Description: "CreateOrder fails intermittently"},
		History: []domain.HistoricalCase{{ID: "CASE-7", ResolutionText: "Reran the CreateOrder job"}},
	}

	withMentions := DefaultEngineConfig()
	for i, d := range withMentions.Detectors {
		if d.Type == DetectorTypeHistorical {
			withMentions.Detectors[i].Params = map[string]any{"entity_weight": 0.3}
		}
	}
	optedIn, err := NewEngineFromConfig(&withMentions, testutils.NewCatalog())
	require.NoError(t, err)

	tests := []struct {
		name        string
		engine      *Engine
		wantScore   float64
		wantMethods []domain.DetectorSource
		wantConf    domain.Confidence
	}{
		{
			name:        "default config ignores mentions",
			engine:      newDefaultEngine(t),
			wantScore:   0.85,
			wantMethods: []domain.DetectorSource{domain.SourceIndex},
			wantConf:    domain.ConfidenceMedium,
		},
		{
			name:        "configured entity weight adds a method",
			engine:      optedIn,
			wantScore:   1.15,
			wantMethods: []domain.DetectorSource{domain.SourceHistorical, domain.SourceIndex},
			wantConf:    domain.ConfidenceHigh,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, r := tt.engine.Evaluate(context.Background(), in)

			require.NotNil(t, r.BestCandidate)
			assert.Equal(t, "CreateOrder", r.BestCandidate.Name)
			assert.InDelta(t, tt.wantScore, r.BestCandidate.TotalScore, 1e-9)
			assert.Equal(t, tt.wantMethods, r.ContributingMethods)
			assert.Equal(t, tt.wantConf, r.Confidence)
		})
	}
}
