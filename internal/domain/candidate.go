package domain

// Contribution is one detector's support for a candidate entity.
type Contribution struct {
	// Name is the resolved display name of the entity.
	Name string `json:"name"`

	// FilePath is the entity location when the detector knows it.
	FilePath string `json:"file_path,omitempty"`

	// Source identifies the contributing detector.
	Source DetectorSource `json:"source"`

	// Score is the confidence contribution, never negative.
	Score float64 `json:"score"`
}

// Candidate is a proposed entity name with its tallied contributions.
// TotalScore always equals the sum of Contributions.
type Candidate struct {
	// Name is the display name shared by all grouped contributions.
	Name string `json:"name"`

	// FilePath is the first non-empty path offered by a contribution.
	FilePath string `json:"file_path,omitempty"`

	// Contributions maps each contributing source to its summed score.
	Contributions map[DetectorSource]float64 `json:"contributions"`

	// TotalScore is the sum of all contributions.
	TotalScore float64 `json:"total_score"`
}

// Methods returns the number of distinct sources that contributed a
// positive score.
func (c Candidate) Methods() int {
	n := 0
	for _, v := range c.Contributions {
		if v > 0 {
			n++
		}
	}
	return n
}

// Clone returns a deep copy of the candidate.
func (c Candidate) Clone() Candidate {
	contributions := make(map[DetectorSource]float64, len(c.Contributions))
	for k, v := range c.Contributions {
		contributions[k] = v
	}
	c.Contributions = contributions
	return c
}
