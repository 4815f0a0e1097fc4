package aggregation

import (
	"cmp"
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/ahrav/go-triage/internal/domain"
	"github.com/ahrav/go-triage/internal/ports"
)

var _ ports.CandidateResolver = (*CandidateResolver)(nil)

// ResolutionBandingConfig maps the best candidate's score and method
// diversity to a confidence band.
type ResolutionBandingConfig struct {
	// HighScore alone yields HIGH. Default: 1.5.
	HighScore float64 `yaml:"high_score" json:"high_score" validate:"gt=0,gtefield=MediumScore"`

	// HighMethods distinct sources alone yield HIGH. Default: 2.
	HighMethods int `yaml:"high_methods" json:"high_methods" validate:"min=1"`

	// MediumScore yields MEDIUM. Default: 0.7.
	MediumScore float64 `yaml:"medium_score" json:"medium_score" validate:"gt=0"`
}

// DefaultResolutionBandingConfig returns the production resolution bands.
func DefaultResolutionBandingConfig() ResolutionBandingConfig {
	return ResolutionBandingConfig{
		HighScore:   1.5,
		HighMethods: 2,
		MediumScore: 0.7,
	}
}

// Validate checks the configuration.
func (c ResolutionBandingConfig) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("resolution banding configuration validation failed: %w", err)
	}
	return nil
}

// CandidateResolver groups contributions into ranked candidates.
type CandidateResolver struct {
	config ResolutionBandingConfig
}

// NewCandidateResolver returns a resolver using config.
func NewCandidateResolver(config ResolutionBandingConfig) (*CandidateResolver, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &CandidateResolver{config: config}, nil
}

// Resolve groups contributions by exact name, sums their scores, and
// ranks candidates by descending total with ascending name as the tie
// break. Contributions with a blank name are ignored. A candidate's file
// path is the first non-empty one offered.
func (r *CandidateResolver) Resolve(contributions []domain.Contribution) domain.ResolutionResult {
	var candidates []domain.Candidate
	index := make(map[string]int)
	for _, c := range contributions {
		if strings.TrimSpace(c.Name) == "" {
			continue
		}
		i, ok := index[c.Name]
		if !ok {
			i = len(candidates)
			index[c.Name] = i
			candidates = append(candidates, domain.Candidate{
				Name:          c.Name,
				Contributions: make(map[domain.DetectorSource]float64),
			})
		}
		cand := &candidates[i]
		cand.Contributions[c.Source] += c.Score
		if cand.FilePath == "" {
			cand.FilePath = c.FilePath
		}
	}

	methods := make(map[domain.DetectorSource]struct{})
	for i := range candidates {
		// Summing in source order keeps TotalScore independent of input order.
		total := 0.0
		for _, src := range domain.AllSources() {
			v := candidates[i].Contributions[src]
			total += v
			if v > 0 {
				methods[src] = struct{}{}
			}
		}
		candidates[i].TotalScore = total
	}

	slices.SortFunc(candidates, compareCandidates)

	result := domain.ResolutionResult{
		Confidence:          domain.ConfidenceLow,
		AllCandidates:       candidates,
		ContributingMethods: make([]domain.DetectorSource, 0, len(methods)),
	}
	if result.AllCandidates == nil {
		result.AllCandidates = []domain.Candidate{}
	}
	for _, src := range domain.AllSources() {
		if _, ok := methods[src]; ok {
			result.ContributingMethods = append(result.ContributingMethods, src)
		}
	}

	if len(candidates) > 0 {
		best := candidates[0].Clone()
		result.BestCandidate = &best
		result.Confidence = r.Band(best.TotalScore, best.Methods())
	}

	return result
}

// Band maps a candidate score and method count to a confidence band.
func (r *CandidateResolver) Band(score float64, methods int) domain.Confidence {
	switch {
	case atLeast(score, r.config.HighScore) || methods >= r.config.HighMethods:
		return domain.ConfidenceHigh
	case atLeast(score, r.config.MediumScore):
		return domain.ConfidenceMedium
	default:
		return domain.ConfidenceLow
	}
}

// compareCandidates orders by descending score, then ascending name.
// Scores are compared on an epsilon grid so the order stays total.
func compareCandidates(a, b domain.Candidate) int {
	if c := cmp.Compare(scoreKey(b.TotalScore), scoreKey(a.TotalScore)); c != 0 {
		return c
	}
	return strings.Compare(a.Name, b.Name)
}

func scoreKey(score float64) int64 {
	return int64(math.Round(score / epsilon))
}
