package detectors

import (
	"context"
	"fmt"
	"math"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/ahrav/go-triage/infrastructure/catalog"
	"github.com/ahrav/go-triage/internal/domain"
	"github.com/ahrav/go-triage/internal/ports"
)

var _ ports.CandidateDetector = (*SemanticDetector)(nil)

// SemanticDetector converts an externally computed similarity ranking
// into SEMANTIC candidate contributions. It performs no search itself;
// the caller resolves the ranking before evaluation.
type SemanticDetector struct {
	name    string
	config  SemanticConfig
	catalog *catalog.Catalog
	tracer  trace.Tracer
}

// SemanticConfig controls how similarity scores become contributions.
type SemanticConfig struct {
	// Floor discards matches scoring below it. Default: 0.5.
	Floor float64 `yaml:"floor" json:"floor" validate:"min=0,max=1"`

	// Damping scales surviving scores. Default: 0.75.
	Damping float64 `yaml:"damping" json:"damping" validate:"gt=0,max=1"`
}

// DefaultSemanticConfig returns the production semantic configuration.
func DefaultSemanticConfig() SemanticConfig { return DefaultConfig().Semantic }

// NewSemanticDetector creates a semantic detector. cat supplies canonical
// names and file paths for known entities and may be nil.
func NewSemanticDetector(name string, config SemanticConfig, cat *catalog.Catalog) (*SemanticDetector, error) {
	if name == "" {
		return nil, ErrEmptyDetectorName
	}

	if err := validate.Struct(config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &SemanticDetector{
		name:    name,
		config:  config,
		catalog: cat,
		tracer:  otel.Tracer("semantic-detector"),
	}, nil
}

// Name returns the unique identifier for this detector instance.
func (d *SemanticDetector) Name() string { return d.name }

// Source returns domain.SourceSemantic.
func (d *SemanticDetector) Source() domain.DetectorSource { return domain.SourceSemantic }

// Convert keeps the best score per name among matches at or above the
// floor and contributes score*Damping for each, in order of first
// appearance. Scores above 1 are clamped; NaN scores and blank names are
// discarded. Names known to the catalog take its spelling and file path.
func (d *SemanticDetector) Convert(matches []domain.SimilarityMatch) []domain.Contribution {
	var contributions []domain.Contribution
	index := make(map[string]int)
	for _, m := range matches {
		name := strings.TrimSpace(m.Name)
		if name == "" || math.IsNaN(m.Score) || m.Score < d.config.Floor {
			continue
		}

		score := math.Min(m.Score, 1) * d.config.Damping
		c := domain.Contribution{Name: name, Source: domain.SourceSemantic, Score: score}
		if e, ok := d.catalog.Lookup(name); ok {
			c.Name, c.FilePath = e.Name, e.FilePath
		}

		if i, ok := index[c.Name]; ok {
			if score > contributions[i].Score {
				contributions[i].Score = score
			}
			continue
		}
		index[c.Name] = len(contributions)
		contributions = append(contributions, c)
	}
	return contributions
}

// Contribute converts the caller-supplied ranking. A nil ranking means the
// search was unavailable and yields nothing.
func (d *SemanticDetector) Contribute(ctx context.Context, in domain.Input) ([]domain.Contribution, error) {
	_, span := d.tracer.Start(ctx, "SemanticDetector.Detect",
		trace.WithAttributes(
			attribute.String("detector.source", d.Source().String()),
			attribute.String("detector.id", d.name),
			attribute.Bool("input.semantic_available", in.Semantic != nil),
			attribute.Int("input.matches", len(in.Semantic)),
		),
	)
	defer span.End()

	contributions := d.Convert(in.Semantic)
	span.SetAttributes(attribute.Int("contributions.count", len(contributions)))

	return contributions, nil
}
