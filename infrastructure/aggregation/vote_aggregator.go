// Package aggregation combines detector output into the two engine
// decisions: a weighted binary vote on the root cause class and a ranked
// resolution of the implicated code entity. Both are pure, total, and
// deterministic.
package aggregation

import (
	"fmt"

	"github.com/go-playground/validator/v10"
	"golang.org/x/text/cases"

	"github.com/ahrav/go-triage/internal/domain"
	"github.com/ahrav/go-triage/internal/ports"
)

var _ ports.VoteAggregator = (*VoteAggregator)(nil)

// Package-level validator instance for configuration validation.
var validate = validator.New()

// epsilon absorbs float rounding at band thresholds and score ties.
const epsilon = 1e-9

// BandingConfig maps a winning ratio and a voter weight to a confidence
// band. The defaults are empirically chosen and kept for compatibility
// with existing triage output.
type BandingConfig struct {
	// HighRatio and MinVoters gate HIGH. Defaults: 0.8 and 3.
	HighRatio float64 `yaml:"high_ratio" json:"high_ratio" validate:"gt=0,lte=1,gtefield=MediumRatio"`

	// MediumRatio and MinVoters gate MEDIUM. Default: 0.67.
	MediumRatio float64 `yaml:"medium_ratio" json:"medium_ratio" validate:"gt=0,lte=1,gtefield=LowRatio"`

	// LowRatio alone is enough for LOW. Default: 0.6.
	LowRatio float64 `yaml:"low_ratio" json:"low_ratio" validate:"gt=0,lte=1,gtefield=BroadRatio"`

	// BroadRatio with BroadVoters also yields LOW. Default: 0.5.
	BroadRatio float64 `yaml:"broad_ratio" json:"broad_ratio" validate:"gt=0,lte=1"`

	// MinVoters is the meaningful weight required for HIGH and MEDIUM.
	MinVoters float64 `yaml:"min_voters" json:"min_voters" validate:"gt=0"`

	// BroadVoters is the meaningful weight that lets BroadRatio count.
	BroadVoters float64 `yaml:"broad_voters" json:"broad_voters" validate:"gt=0"`

	// CodeIssueType is suggested whenever the case is a code defect.
	CodeIssueType string `yaml:"code_issue_type" json:"code_issue_type" validate:"required"`

	// DefaultIssueType is suggested when no non-code token was observed.
	DefaultIssueType string `yaml:"default_issue_type" json:"default_issue_type" validate:"required"`
}

// DefaultBandingConfig returns the production classification bands.
func DefaultBandingConfig() BandingConfig {
	return BandingConfig{
		HighRatio:        0.8,
		MediumRatio:      0.67,
		LowRatio:         0.6,
		BroadRatio:       0.5,
		MinVoters:        3,
		BroadVoters:      4,
		CodeIssueType:    "Code/Application Defect",
		DefaultIssueType: "Configuration/Data Issue",
	}
}

// Validate checks the configuration.
func (c BandingConfig) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("banding configuration validation failed: %w", err)
	}
	return nil
}

// VoteAggregator tallies evidence into a ClassificationResult.
type VoteAggregator struct {
	config BandingConfig
}

// NewVoteAggregator returns an aggregator using config.
func NewVoteAggregator(config BandingConfig) (*VoteAggregator, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &VoteAggregator{config: config}, nil
}

// Aggregate sums weights per vote and bands the winning side. Inconclusive
// records are counted and their weight tracked, but they never enter the
// ratio. With no meaningful weight the result is UNKNOWN and not a code
// defect; an exact tie is also not a code defect.
func (a *VoteAggregator) Aggregate(evidence []domain.Evidence) domain.ClassificationResult {
	var tally domain.VoteTally
	for _, ev := range evidence {
		switch ev.Vote {
		case domain.CodeDefect:
			tally.CodeDefectVotes += ev.Weight
		case domain.NotCodeDefect:
			tally.NotCodeDefectVotes += ev.Weight
		default:
			tally.InconclusiveVotes++
			tally.InconclusiveWeight += ev.Weight
		}
	}

	trail := make([]domain.Evidence, len(evidence))
	copy(trail, evidence)

	result := domain.ClassificationResult{
		Confidence:    domain.ConfidenceUnknown,
		VoteTally:     tally,
		EvidenceTrail: trail,
	}

	meaningful := tally.Meaningful()
	if meaningful > 0 {
		result.IsCodeDefect = tally.CodeDefectVotes > tally.NotCodeDefectVotes
		winning := max(tally.CodeDefectVotes, tally.NotCodeDefectVotes)
		result.Confidence = a.Band(winning/meaningful, meaningful)
	}

	if result.IsCodeDefect {
		result.SuggestedIssueType = a.config.CodeIssueType
	} else {
		result.SuggestedIssueType = a.suggestIssueType(evidence)
	}

	return result
}

// Band maps a winning ratio and meaningful weight to a confidence band.
// It is monotonic in both arguments.
func (a *VoteAggregator) Band(ratio, meaningful float64) domain.Confidence {
	c := a.config
	switch {
	case atLeast(ratio, c.HighRatio) && atLeast(meaningful, c.MinVoters):
		return domain.ConfidenceHigh
	case atLeast(ratio, c.MediumRatio) && atLeast(meaningful, c.MinVoters):
		return domain.ConfidenceMedium
	case atLeast(ratio, c.LowRatio) || (atLeast(ratio, c.BroadRatio) && atLeast(meaningful, c.BroadVoters)):
		return domain.ConfidenceLow
	default:
		return domain.ConfidenceVeryLow
	}
}

func atLeast(v, threshold float64) bool { return v+epsilon >= threshold }

// suggestIssueType returns the most frequent token behind positive
// non-code category votes. Tokens are counted case-insensitively and
// reported with their first spelling; ties go to the token seen first.
func (a *VoteAggregator) suggestIssueType(evidence []domain.Evidence) string {
	type tokenCount struct {
		spelling string
		count    int
	}

	fold := cases.Fold()
	var counts []tokenCount
	index := make(map[string]int)
	for _, ev := range evidence {
		if ev.Source != domain.SourceCategory || ev.Vote != domain.NotCodeDefect || ev.Weight <= 0 {
			continue
		}
		for _, tok := range ev.Tokens {
			key := fold.String(tok)
			if i, ok := index[key]; ok {
				counts[i].count++
				continue
			}
			index[key] = len(counts)
			counts = append(counts, tokenCount{spelling: tok, count: 1})
		}
	}

	best := -1
	for i, tc := range counts {
		if best < 0 || tc.count > counts[best].count {
			best = i
		}
	}
	if best < 0 {
		return a.config.DefaultIssueType
	}
	return counts[best].spelling
}
