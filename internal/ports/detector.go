// Package ports defines the core interfaces that form the contract between
// the domain/application layers and the infrastructure layer.
// These interfaces enable dependency inversion and make the system testable.
package ports

import (
	"context"

	"github.com/ahrav/go-triage/internal/domain"
)

// Detector is the capability shared by every signal source.
// Detectors are pure: they never mutate their input, hold no per-call
// state, and are safe for concurrent use.
type Detector interface {
	// Name returns a unique identifier used for logging and metrics.
	Name() string

	// Source identifies the detector family in evidence and candidates.
	Source() domain.DetectorSource
}

// EvidenceDetector votes on the binary code-defect question.
type EvidenceDetector interface {
	Detector

	// Detect inspects the input and returns zero or more evidence records.
	// Missing or empty input is never an error; it yields no evidence or
	// zero-weight inconclusive evidence. A returned error means the
	// detector abstains for this evaluation.
	//
	// The context carries tracing only; detectors perform no I/O.
	Detect(ctx context.Context, in domain.Input) ([]domain.Evidence, error)
}

// CandidateDetector contributes to entity resolution.
type CandidateDetector interface {
	Detector

	// Contribute returns per-candidate contributions found in the input.
	// A returned error means the detector abstains for this evaluation.
	Contribute(ctx context.Context, in domain.Input) ([]domain.Contribution, error)
}

// VoteAggregator combines evidence into the binary classification.
// Implementations must be total: every input, including an empty slice,
// yields a result.
type VoteAggregator interface {
	Aggregate(evidence []domain.Evidence) domain.ClassificationResult
}

// CandidateResolver ranks candidate entities.
// Implementations must be total and deterministic.
type CandidateResolver interface {
	Resolve(contributions []domain.Contribution) domain.ResolutionResult
}

// DetectorFactory builds a detector from a decoded parameter map.
// The returned value implements EvidenceDetector, CandidateDetector, or both.
type DetectorFactory func(name string, params map[string]any) (Detector, error)

// DetectorRegistry resolves detector types to factories.
type DetectorRegistry interface {
	// CreateDetector builds a detector of detectorType.
	CreateDetector(detectorType, name string, params map[string]any) (Detector, error)

	// RegisterDetectorFactory adds or replaces the factory for detectorType.
	RegisterDetectorFactory(detectorType string, factory DetectorFactory) error

	// GetSupportedTypes lists registered detector types in sorted order.
	GetSupportedTypes() []string
}
