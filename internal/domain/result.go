package domain

// VoteTally summarizes the binary vote.
type VoteTally struct {
	// CodeDefectVotes is the summed weight of code-defect evidence.
	CodeDefectVotes float64 `json:"code_defect_votes"`

	// NotCodeDefectVotes is the summed weight of non-code evidence.
	NotCodeDefectVotes float64 `json:"not_code_defect_votes"`

	// InconclusiveVotes counts inconclusive records.
	InconclusiveVotes int `json:"inconclusive_votes"`

	// InconclusiveWeight is the summed weight of inconclusive records.
	// It is excluded from the winning ratio.
	InconclusiveWeight float64 `json:"inconclusive_weight"`
}

// Meaningful returns the weight that participates in the winning ratio.
func (t VoteTally) Meaningful() float64 { return t.CodeDefectVotes + t.NotCodeDefectVotes }

// ClassificationResult is the binary code-defect decision for one case.
type ClassificationResult struct {
	// IsCodeDefect is true only when code-defect weight strictly exceeds
	// non-code weight.
	IsCodeDefect bool `json:"is_code_defect"`

	// Confidence is the band of whichever side won.
	Confidence Confidence `json:"confidence"`

	// VoteTally holds the weighted totals behind the decision.
	VoteTally VoteTally `json:"vote_tally"`

	// EvidenceTrail lists every record in detector order.
	EvidenceTrail []Evidence `json:"evidence_trail"`

	// SuggestedIssueType names the likely issue family.
	SuggestedIssueType string `json:"suggested_issue_type"`
}

// ResolutionResult is the ranked entity resolution for one case.
type ResolutionResult struct {
	// BestCandidate is the top-ranked candidate, or nil when none exist.
	BestCandidate *Candidate `json:"best_candidate"`

	// Confidence is the band of BestCandidate.
	Confidence Confidence `json:"confidence"`

	// AllCandidates is ordered by descending total score, then name.
	AllCandidates []Candidate `json:"all_candidates"`

	// ContributingMethods is the sorted set of sources that contributed
	// to any candidate. A skipped detector is simply absent.
	ContributingMethods []DetectorSource `json:"contributing_methods"`
}

// Evaluation pairs both results for batch callers.
type Evaluation struct {
	Classification ClassificationResult `json:"classification"`
	Resolution     ResolutionResult     `json:"resolution"`
}
