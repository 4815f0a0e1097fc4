package detectors

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/ahrav/go-triage/internal/domain"
	"github.com/ahrav/go-triage/internal/ports"
)

var _ ports.EvidenceDetector = (*CategoryDetector)(nil)

// tokenClass is the vocabulary a category token was matched to.
type tokenClass uint8

const (
	unclassified tokenClass = iota
	codeClass
	nonCodeClass
)

// vocabTerm is a normalized vocabulary entry.
type vocabTerm struct {
	text  string
	runes int
	class tokenClass
}

// CategoryDetector turns categorization tiers into fractional votes.
// Each tier such as "Code | Data" is split into tokens, every token is
// classified against the code and non-code vocabularies, and the tier
// emits a CODE_DEFECT record weighted c/(c+n) alongside a NOT_CODE_DEFECT
// record weighted n/(c+n). Mixed tiers therefore support both sides
// without double counting.
//
// A token naming a third-party or customer issue overrides the split and
// yields a single NOT_CODE_DEFECT record of weight 1.0 for its tier.
//
// Concurrency: CategoryDetector is immutable after construction and safe
// for concurrent use.
type CategoryDetector struct {
	name    string
	config  CategoryConfig
	exact   map[string]tokenClass
	terms   []vocabTerm
	markers []string
	tracer  trace.Tracer
}

// CategoryConfig holds the vocabularies and matching parameters.
type CategoryConfig struct {
	// Delimiter separates the parts of a multi-part tier. Default: "|".
	Delimiter string `yaml:"delimiter" json:"delimiter" validate:"required"`

	// CodeTerms are tokens that indicate an application code root cause.
	CodeTerms []string `yaml:"code_terms" json:"code_terms" validate:"required,min=1,dive,required"`

	// NonCodeTerms are tokens that indicate configuration, data, or
	// environment root causes.
	NonCodeTerms []string `yaml:"non_code_terms" json:"non_code_terms" validate:"required,min=1,dive,required"`

	// OverrideMarkers short-circuit a tier to a full NOT_CODE_DEFECT vote.
	OverrideMarkers []string `yaml:"override_markers" json:"override_markers" validate:"dive,required"`

	// FuzzyThreshold is the minimum Levenshtein similarity for the typo
	// fallback. Zero disables fuzzy matching. Default: 0.85.
	FuzzyThreshold float64 `yaml:"fuzzy_threshold" json:"fuzzy_threshold" validate:"min=0,max=1"`
}

// DefaultCategoryConfig returns the production vocabularies.
func DefaultCategoryConfig() CategoryConfig { return DefaultConfig().Category }

// NewCategoryDetector normalizes the vocabularies and returns a ready
// detector. A term that normalizes to the same text in both vocabularies
// is rejected with ErrOverlappingVocabulary.
func NewCategoryDetector(name string, config CategoryConfig) (*CategoryDetector, error) {
	if name == "" {
		return nil, ErrEmptyDetectorName
	}

	if err := validate.Struct(config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	d := &CategoryDetector{
		name:   name,
		config: config,
		exact:  make(map[string]tokenClass, len(config.CodeTerms)+len(config.NonCodeTerms)),
		tracer: otel.Tracer("category-detector"),
	}

	add := func(terms []string, class tokenClass) error {
		for _, raw := range terms {
			term := normalize(raw)
			if term == "" {
				return fmt.Errorf("vocabulary term %q has no letters or digits: %w", raw, domain.ErrInvalidConfiguration)
			}
			if prev, ok := d.exact[term]; ok {
				if prev != class {
					return fmt.Errorf("%w: %q", ErrOverlappingVocabulary, raw)
				}
				continue
			}
			d.exact[term] = class
			d.terms = append(d.terms, vocabTerm{text: term, runes: utf8.RuneCountInString(term), class: class})
		}
		return nil
	}
	if err := add(config.CodeTerms, codeClass); err != nil {
		return nil, err
	}
	if err := add(config.NonCodeTerms, nonCodeClass); err != nil {
		return nil, err
	}

	for _, raw := range config.OverrideMarkers {
		if marker := normalize(raw); marker != "" {
			d.markers = append(d.markers, marker)
		}
	}

	return d, nil
}

// Name returns the unique identifier for this detector instance.
func (d *CategoryDetector) Name() string { return d.name }

// Source returns domain.SourceCategory.
func (d *CategoryDetector) Source() domain.DetectorSource { return domain.SourceCategory }

// Classify scores every tier independently. Tiers with no recognized
// token produce no evidence; every other tier produces either one
// override record or exactly two fractional records in CODE_DEFECT,
// NOT_CODE_DEFECT order.
func (d *CategoryDetector) Classify(tiers []string) []domain.Evidence {
	var evidence []domain.Evidence
	for i, tier := range tiers {
		evidence = append(evidence, d.classifyTier(i+1, tier)...)
	}
	return evidence
}

func (d *CategoryDetector) classifyTier(position int, tier string) []domain.Evidence {
	tokens := d.split(tier)
	if len(tokens) == 0 {
		return nil
	}

	for _, tok := range tokens {
		if d.isOverride(tok.norm) {
			return []domain.Evidence{{
				Source: domain.SourceCategory,
				Vote:   domain.NotCodeDefect,
				Weight: 1.0,
				Note:   fmt.Sprintf("tier %d: override marker %q", position, tok.raw),
				Tokens: []string{tok.raw},
			}}
		}
	}

	var codeTokens, nonCodeTokens []string
	for _, tok := range tokens {
		switch d.classify(tok.norm) {
		case codeClass:
			codeTokens = append(codeTokens, tok.raw)
		case nonCodeClass:
			nonCodeTokens = append(nonCodeTokens, tok.raw)
		}
	}

	c, n := len(codeTokens), len(nonCodeTokens)
	if c+n == 0 {
		return nil
	}

	total := float64(c + n)
	note := fmt.Sprintf("tier %d: %d code, %d non-code of %d token(s)", position, c, n, len(tokens))
	return []domain.Evidence{
		{
			Source: domain.SourceCategory,
			Vote:   domain.CodeDefect,
			Weight: float64(c) / total,
			Note:   note,
			Tokens: codeTokens,
		},
		{
			Source: domain.SourceCategory,
			Vote:   domain.NotCodeDefect,
			Weight: float64(n) / total,
			Note:   note,
			Tokens: nonCodeTokens,
		},
	}
}

type categoryToken struct {
	raw  string
	norm string
}

// split breaks a tier on the delimiter and drops parts that carry no
// letters or digits.
func (d *CategoryDetector) split(tier string) []categoryToken {
	parts := strings.Split(clip(tier), d.config.Delimiter)
	tokens := make([]categoryToken, 0, len(parts))
	for _, part := range parts {
		raw := strings.TrimSpace(part)
		norm := normalize(raw)
		if norm == "" {
			continue
		}
		tokens = append(tokens, categoryToken{raw: raw, norm: norm})
	}
	return tokens
}

func (d *CategoryDetector) isOverride(token string) bool {
	for _, marker := range d.markers {
		if containsWord(token, marker) {
			return true
		}
	}
	return false
}

// classify resolves a normalized token by exact match, then whole-word
// containment, then fuzzy similarity.
func (d *CategoryDetector) classify(token string) tokenClass {
	if class, ok := d.exact[token]; ok {
		return class
	}

	bestLen := 0
	best := unclassified
	for _, term := range d.terms {
		if !containsWord(token, term.text) {
			continue
		}
		switch {
		case term.runes > bestLen:
			bestLen, best = term.runes, term.class
		case term.runes == bestLen && term.class != best:
			best = unclassified
		}
	}
	if bestLen > 0 {
		return best
	}

	if d.config.FuzzyThreshold <= 0 {
		return unclassified
	}

	bestSim := 0.0
	best = unclassified
	for _, term := range d.terms {
		sim := similarity(token, term.text)
		if sim < d.config.FuzzyThreshold {
			continue
		}
		switch {
		case sim > bestSim:
			bestSim, best = sim, term.class
		case sim == bestSim && term.class != best:
			best = unclassified
		}
	}
	return best
}

// similarity returns 1 - distance/maxRunes for two strings.
func similarity(a, b string) float64 {
	if a == b {
		return 1.0
	}
	maxLen := utf8.RuneCountInString(a)
	if n := utf8.RuneCountInString(b); n > maxLen {
		maxLen = n
	}
	if maxLen == 0 {
		return 1.0
	}
	sim := 1.0 - float64(levenshtein.ComputeDistance(a, b))/float64(maxLen)
	if sim < 0 {
		return 0
	}
	return sim
}

// Detect classifies the case's category tiers.
func (d *CategoryDetector) Detect(ctx context.Context, in domain.Input) ([]domain.Evidence, error) {
	_, span := d.tracer.Start(ctx, "CategoryDetector.Detect",
		trace.WithAttributes(
			attribute.String("detector.source", d.Source().String()),
			attribute.String("detector.id", d.name),
			attribute.Int("input.tiers", len(in.Case.CategoryTiers)),
		),
	)
	defer span.End()

	evidence := d.Classify(in.Case.CategoryTiers)
	span.SetAttributes(attribute.Int("evidence.count", len(evidence)))

	return evidence, nil
}
