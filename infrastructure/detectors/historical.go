package detectors

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/ahrav/go-triage/internal/domain"
	"github.com/ahrav/go-triage/internal/ports"
)

var (
	_ ports.EvidenceDetector  = (*HistoricalDetector)(nil)
	_ ports.CandidateDetector = (*HistoricalDetector)(nil)
)

// ErrMissingPatternDetector is returned when a historical detector is
// created without the pattern detector it delegates to.
var ErrMissingPatternDetector = errors.New("historical detector requires a pattern detector")

// HistoricalDetector re-applies the pattern scan to the resolution text
// of each similar past case. Resolutions that read like code fixes are a
// proxy for this case's root cause class.
//
// When an index detector is supplied, entities named in past resolutions
// also contribute a small score to entity resolution.
type HistoricalDetector struct {
	name    string
	config  HistoricalConfig
	pattern *PatternDetector
	index   *IndexDetector
	tracer  trace.Tracer
}

// HistoricalConfig controls the historical detector.
type HistoricalConfig struct {
	// EntityWeight is contributed once per distinct catalog entity named
	// in any past resolution. Zero disables the contribution. Default: 0.
	EntityWeight float64 `yaml:"entity_weight" json:"entity_weight" validate:"min=0,max=1"`
}

// DefaultHistoricalConfig returns the production historical configuration.
func DefaultHistoricalConfig() HistoricalConfig { return DefaultConfig().Historical }

// NewHistoricalDetector creates a historical detector that delegates to
// pattern. index may be nil, which disables entity contributions.
func NewHistoricalDetector(
	name string,
	config HistoricalConfig,
	pattern *PatternDetector,
	index *IndexDetector,
) (*HistoricalDetector, error) {
	if name == "" {
		return nil, ErrEmptyDetectorName
	}
	if pattern == nil {
		return nil, ErrMissingPatternDetector
	}

	if err := validate.Struct(config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &HistoricalDetector{
		name:    name,
		config:  config,
		pattern: pattern,
		index:   index,
		tracer:  otel.Tracer("historical-detector"),
	}, nil
}

// Name returns the unique identifier for this detector instance.
func (d *HistoricalDetector) Name() string { return d.name }

// Source returns domain.SourceHistorical.
func (d *HistoricalDetector) Source() domain.DetectorSource { return domain.SourceHistorical }

// Scan returns exactly one HISTORICAL record per past case, in input
// order. The note is prefixed with the case ID.
func (d *HistoricalDetector) Scan(history []domain.HistoricalCase) []domain.Evidence {
	if len(history) == 0 {
		return nil
	}

	evidence := make([]domain.Evidence, len(history))
	for i, hc := range history {
		evidence[i] = d.pattern.evidence(domain.SourceHistorical, fmt.Sprintf("case %s: ", hc.ID), hc.ResolutionText)
	}
	return evidence
}

// Mentions returns one HISTORICAL contribution per distinct catalog
// entity named across the past resolutions.
func (d *HistoricalDetector) Mentions(history []domain.HistoricalCase) []domain.Contribution {
	if d.index == nil || d.config.EntityWeight == 0 {
		return nil
	}

	var contributions []domain.Contribution
	seen := make(map[string]struct{})
	for _, hc := range history {
		for _, e := range d.index.Entities(hc.ResolutionText) {
			if _, dup := seen[e.Name]; dup {
				continue
			}
			seen[e.Name] = struct{}{}
			contributions = append(contributions, domain.Contribution{
				Name:     e.Name,
				FilePath: e.FilePath,
				Source:   domain.SourceHistorical,
				Score:    d.config.EntityWeight,
			})
		}
	}
	return contributions
}

// Detect scans the similar historical cases.
func (d *HistoricalDetector) Detect(ctx context.Context, in domain.Input) ([]domain.Evidence, error) {
	_, span := d.tracer.Start(ctx, "HistoricalDetector.Detect",
		trace.WithAttributes(
			attribute.String("detector.source", d.Source().String()),
			attribute.String("detector.id", d.name),
			attribute.Int("input.history", len(in.History)),
		),
	)
	defer span.End()

	evidence := d.Scan(in.History)
	span.SetAttributes(attribute.Int("evidence.count", len(evidence)))

	return evidence, nil
}

// Contribute reports entities named in past resolutions.
func (d *HistoricalDetector) Contribute(ctx context.Context, in domain.Input) ([]domain.Contribution, error) {
	_, span := d.tracer.Start(ctx, "HistoricalDetector.Contribute",
		trace.WithAttributes(
			attribute.String("detector.source", d.Source().String()),
			attribute.String("detector.id", d.name),
			attribute.Int("input.history", len(in.History)),
		),
	)
	defer span.End()

	contributions := d.Mentions(in.History)
	span.SetAttributes(attribute.Int("contributions.count", len(contributions)))

	return contributions, nil
}
