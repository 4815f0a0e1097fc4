// Package application assembles detectors, the vote aggregator, and the
// candidate resolver into the case triage engine, and provides the
// configuration, batch, and semantic lookup plumbing around it.
package application

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/ahrav/go-triage/infrastructure/aggregation"
	"github.com/ahrav/go-triage/infrastructure/catalog"
	"github.com/ahrav/go-triage/infrastructure/middleware"
	"github.com/ahrav/go-triage/internal/domain"
	"github.com/ahrav/go-triage/internal/logging"
	"github.com/ahrav/go-triage/internal/ports"
)

// Engine is the decision assembler. It runs every detector over one case,
// then aggregates the votes and resolves the candidates.
//
// An Engine holds only read-only state after construction and is safe for
// concurrent use. Evaluate performs no I/O and starts no goroutines.
type Engine struct {
	evidence   []ports.EvidenceDetector
	candidates []ports.CandidateDetector
	aggregator ports.VoteAggregator
	resolver   ports.CandidateResolver
	metrics    ports.MetricsCollector
	logger     *slog.Logger
	tracer     trace.Tracer
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithMetrics reports evaluation and detector metrics to collector.
func WithMetrics(collector ports.MetricsCollector) EngineOption {
	return func(e *Engine) {
		if collector != nil {
			e.metrics = collector
		}
	}
}

// WithLogger replaces the engine logger.
func WithLogger(logger *slog.Logger) EngineOption {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// NewEngine builds an engine from detectors. Each detector must implement
// ports.EvidenceDetector, ports.CandidateDetector, or both. Detectors run
// in source order (PATTERN, CATEGORY, HISTORICAL, INDEX, SEMANTIC), with
// ties kept in the order given.
func NewEngine(
	aggregator ports.VoteAggregator,
	resolver ports.CandidateResolver,
	dets []ports.Detector,
	opts ...EngineOption,
) (*Engine, error) {
	if aggregator == nil || resolver == nil {
		return nil, fmt.Errorf("%w: aggregator and resolver are required", domain.ErrInvalidConfiguration)
	}

	e := &Engine{
		aggregator: aggregator,
		resolver:   resolver,
		metrics:    ports.NoopMetrics{},
		logger:     logging.New("engine"),
		tracer:     otel.Tracer("engine"),
	}
	for _, opt := range opts {
		opt(e)
	}

	ordered := slices.Clone(dets)
	slices.SortStableFunc(ordered, func(a, b ports.Detector) int {
		return cmp.Compare(a.Source(), b.Source())
	})

	observer := middleware.NewOTelDetectorObserver(e.metrics)
	for i, d := range ordered {
		if d == nil {
			return nil, fmt.Errorf("%w: detector %d is nil", domain.ErrInvalidConfiguration, i)
		}
		ed, isEvidence := d.(ports.EvidenceDetector)
		cd, isCandidate := d.(ports.CandidateDetector)
		if !isEvidence && !isCandidate {
			return nil, fmt.Errorf("%w: detector %q produces neither evidence nor candidates",
				domain.ErrInvalidConfiguration, d.Name())
		}
		if isEvidence {
			e.evidence = append(e.evidence, middleware.GuardEvidence(ed, observer))
		}
		if isCandidate {
			e.candidates = append(e.candidates, middleware.GuardCandidate(cd, observer))
		}
	}

	return e, nil
}

// NewEngineFromConfig builds every detector named in cfg through a
// DefaultDetectorRegistry over cat, plus the aggregator and resolver.
func NewEngineFromConfig(cfg *EngineConfig, cat *catalog.Catalog, opts ...EngineOption) (*Engine, error) {
	return NewEngineFromRegistry(cfg, NewDefaultDetectorRegistry(cat), opts...)
}

// NewEngineFromRegistry is NewEngineFromConfig with a caller-supplied
// registry.
func NewEngineFromRegistry(cfg *EngineConfig, registry ports.DetectorRegistry, opts ...EngineOption) (*Engine, error) {
	if cfg == nil {
		return nil, fmt.Errorf("%w: engine configuration is nil", domain.ErrInvalidConfiguration)
	}

	aggregator, err := aggregation.NewVoteAggregator(cfg.Banding)
	if err != nil {
		return nil, ports.NewConfigError("banding", err)
	}
	resolver, err := aggregation.NewCandidateResolver(cfg.Resolution)
	if err != nil {
		return nil, ports.NewConfigError("resolution", err)
	}

	dets := make([]ports.Detector, 0, len(cfg.Detectors))
	for i, spec := range cfg.Detectors {
		d, err := registry.CreateDetector(spec.Type, spec.InstanceName(), spec.Params)
		if err != nil {
			return nil, ports.NewConfigError(fmt.Sprintf("detectors[%d]", i), err)
		}
		dets = append(dets, d)
	}

	return NewEngine(aggregator, resolver, dets, opts...)
}

// Evaluate classifies the case and resolves its most likely entity.
// It never fails: a detector that returns an error or panics abstains,
// and the remaining detectors decide.
func (e *Engine) Evaluate(ctx context.Context, in domain.Input) (domain.ClassificationResult, domain.ResolutionResult) {
	start := time.Now()
	ctx, span := e.tracer.Start(ctx, "Engine.Evaluate",
		trace.WithAttributes(
			attribute.Int("case.tiers", len(in.Case.CategoryTiers)),
			attribute.Int("case.history", len(in.History)),
			attribute.Bool("case.semantic_available", in.Semantic != nil),
		),
	)
	defer span.End()

	var evidence []domain.Evidence
	abstained := 0
	for _, d := range e.evidence {
		records, err := d.Detect(ctx, in)
		if err != nil {
			e.abstain(ctx, span, d, err)
			abstained++
			continue
		}
		evidence = append(evidence, records...)
	}

	var contributions []domain.Contribution
	for _, d := range e.candidates {
		contribs, err := d.Contribute(ctx, in)
		if err != nil {
			e.abstain(ctx, span, d, err)
			abstained++
			continue
		}
		contributions = append(contributions, contribs...)
	}

	classification := e.aggregator.Aggregate(evidence)
	resolution := e.resolver.Resolve(contributions)

	span.SetAttributes(
		attribute.Bool("result.code_defect", classification.IsCodeDefect),
		attribute.String("result.classification_confidence", classification.Confidence.String()),
		attribute.String("result.resolution_confidence", resolution.Confidence.String()),
		attribute.Int("result.evidence", len(classification.EvidenceTrail)),
		attribute.Int("result.candidates", len(resolution.AllCandidates)),
		attribute.Int("result.abstentions", abstained),
	)

	e.record(classification, resolution, time.Since(start))

	e.logger.DebugContext(ctx, "case evaluated",
		slog.Bool("code_defect", classification.IsCodeDefect),
		slog.String("confidence", classification.Confidence.String()),
		slog.String("issue_type", classification.SuggestedIssueType),
		slog.String("best_candidate", bestName(resolution)),
		slog.String("resolution_confidence", resolution.Confidence.String()),
		slog.Int("evidence", len(evidence)),
		slog.Int("abstentions", abstained),
	)

	return classification, resolution
}

func (e *Engine) abstain(ctx context.Context, span trace.Span, d ports.Detector, err error) {
	span.RecordError(err, trace.WithAttributes(attribute.String("detector.name", d.Name())))
	e.logger.WarnContext(ctx, "detector abstained",
		slog.String("detector", d.Name()),
		slog.String("source", d.Source().String()),
		slog.Any("error", err),
	)
}

func (e *Engine) record(c domain.ClassificationResult, r domain.ResolutionResult, elapsed time.Duration) {
	e.metrics.RecordLatency(ports.MetricEvaluationLatency, elapsed, map[string]string{"component": "engine"})

	e.metrics.RecordCounter(ports.MetricClassifications, 1, map[string]string{
		"code_defect": strconv.FormatBool(c.IsCodeDefect),
		"confidence":  c.Confidence.String(),
	})
	e.metrics.RecordCounter(ports.MetricResolutions, 1, map[string]string{
		"confidence": r.Confidence.String(),
		"resolved":   strconv.FormatBool(r.BestCandidate != nil),
	})

	counts := map[domain.Vote]int{}
	for _, ev := range c.EvidenceTrail {
		counts[ev.Vote]++
	}
	for _, v := range []domain.Vote{domain.CodeDefect, domain.NotCodeDefect, domain.Inconclusive} {
		e.metrics.RecordGauge(ports.MetricEvidenceRecords, float64(counts[v]), map[string]string{"vote": v.String()})
	}

	if meaningful := c.VoteTally.Meaningful(); meaningful > 0 {
		winning := max(c.VoteTally.CodeDefectVotes, c.VoteTally.NotCodeDefectVotes)
		e.metrics.RecordHistogram(ports.MetricWinningRatio, winning/meaningful, nil)
	}
}

// Detectors returns the names of the evidence and candidate detectors in
// evaluation order.
func (e *Engine) Detectors() (evidence, candidates []string) {
	for _, d := range e.evidence {
		evidence = append(evidence, d.Name())
	}
	for _, d := range e.candidates {
		candidates = append(candidates, d.Name())
	}
	return evidence, candidates
}

func bestName(r domain.ResolutionResult) string {
	if r.BestCandidate == nil {
		return ""
	}
	return r.BestCandidate.Name
}
