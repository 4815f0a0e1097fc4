package domain

import "strings"

// Case is the support ticket under evaluation. It is created by the
// ingestion collaborator and never mutated by the engine.
type Case struct {
	// Description is the free-text problem statement.
	Description string `json:"description" yaml:"description"`

	// Notes holds investigation or work notes attached to the case.
	Notes string `json:"notes" yaml:"notes"`

	// CategoryTiers are the ordered categorization fields (T1, T2, T3...).
	// Each tier may be a "|"-delimited multi-part string.
	CategoryTiers []string `json:"category_tiers" yaml:"category_tiers"`

	// Priority is carried for callers and audit output only.
	Priority string `json:"priority" yaml:"priority"`
}

// Text returns the searchable free text of the case: description and
// notes joined by a newline, with empty parts omitted.
func (c Case) Text() string {
	parts := make([]string, 0, 2)
	if s := strings.TrimSpace(c.Description); s != "" {
		parts = append(parts, s)
	}
	if s := strings.TrimSpace(c.Notes); s != "" {
		parts = append(parts, s)
	}
	return strings.Join(parts, "\n")
}

// HistoricalCase is one similar, previously resolved ticket.
type HistoricalCase struct {
	// ID identifies the prior ticket in the source system.
	ID string `json:"id" yaml:"id"`

	// ResolutionText is the resolution or workaround recorded on close.
	ResolutionText string `json:"resolution_text" yaml:"resolution_text"`

	// CategoryTiers are the prior ticket's categorization fields.
	CategoryTiers []string `json:"category_tiers" yaml:"category_tiers"`
}

// SimilarityMatch is one entry returned by the external similarity search.
type SimilarityMatch struct {
	// Name is the candidate entity display name.
	Name string `json:"name" yaml:"name"`

	// Score is the similarity in [0, 1].
	Score float64 `json:"score" yaml:"score"`
}

// Input bundles everything a single evaluation inspects.
type Input struct {
	// Case is the ticket under evaluation.
	Case Case `json:"case" yaml:"case"`

	// History is ordered most-similar first.
	History []HistoricalCase `json:"history" yaml:"history"`

	// Semantic holds the similarity search result. A nil slice means the
	// search was unavailable and the semantic detector is skipped.
	Semantic []SimilarityMatch `json:"semantic,omitempty" yaml:"semantic,omitempty"`
}

// Entity is one row of the known-entity catalog.
type Entity struct {
	// Name is the display name of the activity or class.
	Name string `json:"name" yaml:"name" validate:"required"`

	// FilePath locates the entity in the code base.
	FilePath string `json:"file_path" yaml:"file_path"`

	// Description is free text used to build semantic embeddings.
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
}
