// Package domain contains pure, dependency-free domain models and types
// for the case triage engine.
package domain

import (
	"fmt"
)

// Vote is the position an Evidence record takes on the binary
// code-defect question.
type Vote uint8

// Supported votes. The zero value is Inconclusive so that an unset vote
// never counts toward either side.
const (
	// Inconclusive records a signal that was inspected but is too weak to
	// support either side.
	Inconclusive Vote = iota
	// CodeDefect supports a root cause in application code.
	CodeDefect
	// NotCodeDefect supports a root cause in configuration, data, or a
	// third party.
	NotCodeDefect
)

var voteNames = [...]string{
	Inconclusive:  "INCONCLUSIVE",
	CodeDefect:    "CODE_DEFECT",
	NotCodeDefect: "NOT_CODE_DEFECT",
}

// String returns the wire name of the vote.
func (v Vote) String() string {
	if int(v) < len(voteNames) {
		return voteNames[v]
	}
	return fmt.Sprintf("Vote(%d)", uint8(v))
}

// Valid reports whether v is one of the declared votes.
func (v Vote) Valid() bool { return int(v) < len(voteNames) }

// MarshalText implements encoding.TextMarshaler.
func (v Vote) MarshalText() ([]byte, error) {
	if !v.Valid() {
		return nil, fmt.Errorf("%w: vote %d", ErrUnknownEnum, uint8(v))
	}
	return []byte(voteNames[v]), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (v *Vote) UnmarshalText(text []byte) error {
	for i, name := range voteNames {
		if name == string(text) {
			*v = Vote(i)
			return nil
		}
	}
	return fmt.Errorf("%w: vote %q", ErrUnknownEnum, text)
}

// DetectorSource identifies which detector produced a signal.
type DetectorSource uint8

// Supported detector sources.
const (
	// SourcePattern is the regex fingerprint scan over the case text.
	SourcePattern DetectorSource = iota
	// SourceCategory is the categorization-tier weight scorer.
	SourceCategory
	// SourceHistorical is the pattern scan over similar resolved cases.
	SourceHistorical
	// SourceIndex is the exact known-entity index lookup.
	SourceIndex
	// SourceSemantic is the externally supplied similarity search.
	SourceSemantic
)

var sourceNames = [...]string{
	SourcePattern:    "PATTERN",
	SourceCategory:   "CATEGORY",
	SourceHistorical: "HISTORICAL",
	SourceIndex:      "INDEX",
	SourceSemantic:   "SEMANTIC",
}

// AllSources lists every detector source in declaration order.
func AllSources() []DetectorSource {
	return []DetectorSource{SourcePattern, SourceCategory, SourceHistorical, SourceIndex, SourceSemantic}
}

// String returns the wire name of the source.
func (s DetectorSource) String() string {
	if int(s) < len(sourceNames) {
		return sourceNames[s]
	}
	return fmt.Sprintf("DetectorSource(%d)", uint8(s))
}

// Valid reports whether s is one of the declared sources.
func (s DetectorSource) Valid() bool { return int(s) < len(sourceNames) }

// MarshalText implements encoding.TextMarshaler. It also makes
// DetectorSource usable as a JSON object key.
func (s DetectorSource) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("%w: detector source %d", ErrUnknownEnum, uint8(s))
	}
	return []byte(sourceNames[s]), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *DetectorSource) UnmarshalText(text []byte) error {
	for i, name := range sourceNames {
		if name == string(text) {
			*s = DetectorSource(i)
			return nil
		}
	}
	return fmt.Errorf("%w: detector source %q", ErrUnknownEnum, text)
}

// Evidence is one atomic weak signal emitted by a detector.
// Weights are summed by the aggregator and never re-normalized, so each
// record's weight reflects only its own contribution.
type Evidence struct {
	// Source identifies the detector that produced this record.
	Source DetectorSource `json:"source"`

	// Vote is the side this record supports.
	Vote Vote `json:"vote"`

	// Weight is the strength of the vote, 0.0 to 1.0. Split category
	// votes carry fractional weights.
	Weight float64 `json:"weight"`

	// Note is a human-readable justification for audit trails only.
	Note string `json:"note"`

	// Tokens lists the raw category tokens that backed a category vote.
	// It feeds the suggested issue type and is never used for voting.
	Tokens []string `json:"tokens,omitempty"`
}

// NewInconclusive returns a zero-weight inconclusive record for source.
func NewInconclusive(source DetectorSource, note string) Evidence {
	return Evidence{Source: source, Vote: Inconclusive, Weight: 0, Note: note}
}
