package middleware

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/ahrav/go-triage/internal/domain"
	"github.com/ahrav/go-triage/internal/ports"
)

// DetectorObserver provides observability hooks for guarded detector calls.
// Implementations must be safe for concurrent use.
type DetectorObserver interface {
	// Observe is called once per detector call with the number of records
	// produced. A non-nil err means the detector abstained.
	Observe(ctx context.Context, detector ports.Detector, produced int, elapsed time.Duration, err error)
}

var (
	_ ports.EvidenceDetector  = (*GuardedEvidenceDetector)(nil)
	_ ports.CandidateDetector = (*GuardedCandidateDetector)(nil)
)

// GuardedEvidenceDetector turns a detector's panic or contract violation
// into a *ports.DetectorError so a single faulty detector only removes its
// own evidence from an evaluation.
type GuardedEvidenceDetector struct {
	next     ports.EvidenceDetector
	observer DetectorObserver
}

// GuardEvidence wraps next. The observer may be nil.
func GuardEvidence(next ports.EvidenceDetector, observer DetectorObserver) *GuardedEvidenceDetector {
	if next == nil {
		panic("detector guard: next detector is required")
	}
	return &GuardedEvidenceDetector{next: next, observer: observer}
}

// Name returns the wrapped detector's name.
func (g *GuardedEvidenceDetector) Name() string { return g.next.Name() }

// Source returns the wrapped detector's source.
func (g *GuardedEvidenceDetector) Source() domain.DetectorSource { return g.next.Source() }

// Detect runs the wrapped detector. On any failure it returns nil evidence
// and a *ports.DetectorError.
func (g *GuardedEvidenceDetector) Detect(ctx context.Context, in domain.Input) (evidence []domain.Evidence, err error) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			evidence, err = nil, fmt.Errorf("%w: %v", ports.ErrDetectorPanicked, r)
		}
		if err != nil {
			evidence, err = nil, detectorError(g.next, err)
		}
		if g.observer != nil {
			g.observer.Observe(ctx, g.next, len(evidence), time.Since(start), err)
		}
	}()

	evidence, err = g.next.Detect(ctx, in)
	if err != nil {
		return nil, err
	}
	for i, e := range evidence {
		if e.Source != g.next.Source() {
			return nil, fmt.Errorf("record %d: source %s does not match detector source %s", i, e.Source, g.next.Source())
		}
		if verr := e.Validate(); verr != nil {
			return nil, fmt.Errorf("record %d: %w", i, verr)
		}
	}
	return evidence, nil
}

// GuardedCandidateDetector is the candidate counterpart of
// GuardedEvidenceDetector.
type GuardedCandidateDetector struct {
	next     ports.CandidateDetector
	observer DetectorObserver
}

// GuardCandidate wraps next. The observer may be nil.
func GuardCandidate(next ports.CandidateDetector, observer DetectorObserver) *GuardedCandidateDetector {
	if next == nil {
		panic("detector guard: next detector is required")
	}
	return &GuardedCandidateDetector{next: next, observer: observer}
}

// Name returns the wrapped detector's name.
func (g *GuardedCandidateDetector) Name() string { return g.next.Name() }

// Source returns the wrapped detector's source.
func (g *GuardedCandidateDetector) Source() domain.DetectorSource { return g.next.Source() }

// Contribute runs the wrapped detector. On any failure it returns no
// contributions and a *ports.DetectorError.
func (g *GuardedCandidateDetector) Contribute(ctx context.Context, in domain.Input) (contributions []domain.Contribution, err error) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			contributions, err = nil, fmt.Errorf("%w: %v", ports.ErrDetectorPanicked, r)
		}
		if err != nil {
			contributions, err = nil, detectorError(g.next, err)
		}
		if g.observer != nil {
			g.observer.Observe(ctx, g.next, len(contributions), time.Since(start), err)
		}
	}()

	contributions, err = g.next.Contribute(ctx, in)
	if err != nil {
		return nil, err
	}
	for i, c := range contributions {
		if math.IsNaN(c.Score) || math.IsInf(c.Score, 0) || c.Score < 0 {
			return nil, fmt.Errorf("contribution %d (%s): %w: %v", i, c.Name, domain.ErrNegativeWeight, c.Score)
		}
	}
	return contributions, nil
}

func detectorError(d ports.Detector, err error) error {
	var de *ports.DetectorError
	if errors.As(err, &de) {
		return err
	}
	return ports.NewDetectorError(d.Name(), d.Source(), err)
}
