package detectors

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/ahrav/go-triage/internal/domain"
	"github.com/ahrav/go-triage/internal/ports"
)

var _ ports.EvidenceDetector = (*PatternDetector)(nil)

// maxNoteSamples bounds how many matched fragments are quoted in a note.
const maxNoteSamples = 3

// PatternDetector scans free text for code-level fingerprints: exception
// class names, stack frames, build and restart commands. It counts every
// match of every pattern and votes CODE_DEFECT only once the count reaches
// MinMatches, since a single hit on a generic word is too weak to vote.
//
// Concurrency: PatternDetector is stateless after construction and safe
// for concurrent use. Compiled regular expressions are safe to share.
type PatternDetector struct {
	// name is the unique identifier for this detector instance.
	name string
	// config contains the validated configuration parameters.
	config PatternConfig
	// patterns are compiled once from config.Patterns, in order.
	patterns []*regexp.Regexp
	// tracer is the OpenTelemetry tracer for observability.
	tracer trace.Tracer
}

// PatternConfig controls which fingerprints count and how the match count
// maps to a vote weight.
type PatternConfig struct {
	// Patterns are ordered RE2 expressions tagged as code-indicative.
	Patterns []string `yaml:"patterns" json:"patterns" validate:"required,min=1,dive,required,regexp"`

	// MinMatches is the smallest match count that votes. Default: 2.
	MinMatches int `yaml:"min_matches" json:"min_matches" validate:"min=1"`

	// Saturation is the match count at which the weight reaches 1.0.
	// Weight is min(1, count/Saturation). Default: 2.
	Saturation float64 `yaml:"saturation" json:"saturation" validate:"gt=0"`
}

// DefaultPatternConfig returns the production pattern configuration.
func DefaultPatternConfig() PatternConfig { return DefaultConfig().Pattern }

// NewPatternDetector compiles the configured patterns and returns a ready
// detector. Returns ErrEmptyDetectorName if name is empty, or a validation
// error if any pattern fails to compile.
func NewPatternDetector(name string, config PatternConfig) (*PatternDetector, error) {
	if name == "" {
		return nil, ErrEmptyDetectorName
	}

	if err := validate.Struct(config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	patterns := make([]*regexp.Regexp, len(config.Patterns))
	for i, p := range config.Patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("pattern %d: %w", i, err)
		}
		patterns[i] = re
	}

	return &PatternDetector{
		name:     name,
		config:   config,
		patterns: patterns,
		tracer:   otel.Tracer("pattern-detector"),
	}, nil
}

// Name returns the unique identifier for this detector instance.
func (d *PatternDetector) Name() string { return d.name }

// Source returns domain.SourcePattern.
func (d *PatternDetector) Source() domain.DetectorSource { return domain.SourcePattern }

// Count returns the total number of pattern matches in text.
func (d *PatternDetector) Count(text string) int {
	count, _ := d.match(text)
	return count
}

// match counts matches and collects up to maxNoteSamples matched fragments.
func (d *PatternDetector) match(text string) (int, []string) {
	text = clip(text)
	if strings.TrimSpace(text) == "" {
		return 0, nil
	}

	count := 0
	var samples []string
	for _, re := range d.patterns {
		for _, loc := range re.FindAllStringIndex(text, -1) {
			count++
			if len(samples) < maxNoteSamples {
				samples = append(samples, text[loc[0]:loc[1]])
			}
		}
	}
	return count, samples
}

// Scan returns exactly one evidence record for text: a CODE_DEFECT vote
// with weight min(1, count/Saturation) when at least MinMatches patterns
// matched, otherwise a zero-weight INCONCLUSIVE record. It never fails.
func (d *PatternDetector) Scan(text string) []domain.Evidence {
	return []domain.Evidence{d.evidence(domain.SourcePattern, "", text)}
}

// evidence builds the single record for text, tagged with source and an
// optional note prefix. The historical detector reuses it.
func (d *PatternDetector) evidence(source domain.DetectorSource, prefix, text string) domain.Evidence {
	count, samples := d.match(text)

	if count < d.config.MinMatches {
		note := fmt.Sprintf("%d code fingerprint(s) matched; below voting minimum of %d", count, d.config.MinMatches)
		return domain.NewInconclusive(source, prefix+note)
	}

	weight := float64(count) / d.config.Saturation
	if weight > 1 {
		weight = 1
	}

	quoted := make([]string, len(samples))
	for i, s := range samples {
		quoted[i] = fmt.Sprintf("%q", s)
	}

	return domain.Evidence{
		Source: source,
		Vote:   domain.CodeDefect,
		Weight: weight,
		Note:   fmt.Sprintf("%s%d code fingerprint(s) matched: %s", prefix, count, strings.Join(quoted, ", ")),
	}
}

// Detect scans the case description and notes.
func (d *PatternDetector) Detect(ctx context.Context, in domain.Input) ([]domain.Evidence, error) {
	_, span := d.tracer.Start(ctx, "PatternDetector.Detect",
		trace.WithAttributes(
			attribute.String("detector.source", d.Source().String()),
			attribute.String("detector.id", d.name),
			attribute.Int("config.patterns", len(d.patterns)),
		),
	)
	defer span.End()

	evidence := d.Scan(in.Case.Text())

	span.SetAttributes(
		attribute.String("evidence.vote", evidence[0].Vote.String()),
		attribute.Float64("evidence.weight", evidence[0].Weight),
	)

	return evidence, nil
}
