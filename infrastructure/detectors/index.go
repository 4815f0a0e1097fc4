package detectors

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/ahrav/go-triage/infrastructure/catalog"
	"github.com/ahrav/go-triage/internal/domain"
	"github.com/ahrav/go-triage/internal/ports"
)

var _ ports.CandidateDetector = (*IndexDetector)(nil)

// camelCase matches identifiers with at least two capitalized humps,
// such as CreateOrder or InvoiceServiceImpl.
var camelCase = regexp.MustCompile(`[A-Z][a-z0-9]+(?:[A-Z][a-z0-9]*)+`)

// IndexDetector resolves literal CamelCase identifiers in case text
// against the known-entity catalog. A hit is strong but single-sourced,
// so it only contributes to entity resolution and never votes.
type IndexDetector struct {
	name    string
	config  IndexConfig
	catalog *catalog.Catalog
	tracer  trace.Tracer
}

// IndexConfig controls exact index lookups.
type IndexConfig struct {
	// Weight is the contribution per resolved entity. Default: 0.85.
	Weight float64 `yaml:"weight" json:"weight" validate:"gt=0,max=1"`

	// StripSuffixes are trailing identifier parts removed, repeatedly,
	// when the full token is not in the catalog.
	StripSuffixes []string `yaml:"strip_suffixes" json:"strip_suffixes" validate:"dive,required"`
}

// DefaultIndexConfig returns the production index configuration.
func DefaultIndexConfig() IndexConfig { return DefaultConfig().Index }

// NewIndexDetector creates an index detector over cat. A nil catalog is
// allowed and resolves nothing.
func NewIndexDetector(name string, config IndexConfig, cat *catalog.Catalog) (*IndexDetector, error) {
	if name == "" {
		return nil, ErrEmptyDetectorName
	}

	if err := validate.Struct(config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &IndexDetector{
		name:    name,
		config:  config,
		catalog: cat,
		tracer:  otel.Tracer("index-detector"),
	}, nil
}

// Name returns the unique identifier for this detector instance.
func (d *IndexDetector) Name() string { return d.name }

// Source returns domain.SourceIndex.
func (d *IndexDetector) Source() domain.DetectorSource { return domain.SourceIndex }

// Entities returns the distinct catalog entities named in text, in order
// of first mention.
func (d *IndexDetector) Entities(text string) []domain.Entity {
	if d.catalog.Len() == 0 {
		return nil
	}

	var found []domain.Entity
	seen := make(map[string]struct{})
	for _, token := range camelCase.FindAllString(clip(text), -1) {
		entity, ok := d.resolve(token)
		if !ok {
			continue
		}
		if _, dup := seen[entity.Name]; dup {
			continue
		}
		seen[entity.Name] = struct{}{}
		found = append(found, entity)
	}
	return found
}

// resolve looks token up as-is, then with configured suffixes stripped
// one at a time from the end until nothing more can be removed.
func (d *IndexDetector) resolve(token string) (domain.Entity, bool) {
	for {
		if entity, ok := d.catalog.Lookup(token); ok {
			return entity, true
		}
		stripped := false
		for _, suffix := range d.config.StripSuffixes {
			if len(token) > len(suffix) && strings.HasSuffix(token, suffix) {
				token = strings.TrimSuffix(token, suffix)
				stripped = true
				break
			}
		}
		if !stripped {
			return domain.Entity{}, false
		}
	}
}

// Match returns one INDEX contribution per distinct entity named in text.
func (d *IndexDetector) Match(text string) []domain.Contribution {
	entities := d.Entities(text)
	if len(entities) == 0 {
		return nil
	}

	contributions := make([]domain.Contribution, len(entities))
	for i, e := range entities {
		contributions[i] = domain.Contribution{
			Name:     e.Name,
			FilePath: e.FilePath,
			Source:   domain.SourceIndex,
			Score:    d.config.Weight,
		}
	}
	return contributions
}

// Contribute matches identifiers in the case description and notes.
func (d *IndexDetector) Contribute(ctx context.Context, in domain.Input) ([]domain.Contribution, error) {
	_, span := d.tracer.Start(ctx, "IndexDetector.Detect",
		trace.WithAttributes(
			attribute.String("detector.source", d.Source().String()),
			attribute.String("detector.id", d.name),
			attribute.Int("catalog.size", d.catalog.Len()),
		),
	)
	defer span.End()

	contributions := d.Match(in.Case.Text())
	span.SetAttributes(attribute.Int("contributions.count", len(contributions)))

	return contributions, nil
}
