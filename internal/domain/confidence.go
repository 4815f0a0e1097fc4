package domain

import "fmt"

// Confidence is an ordered qualitative band derived from agreement and
// voter-count thresholds. Later constants rank higher, so bands can be
// compared with the usual operators.
type Confidence uint8

// Supported confidence bands, lowest first.
const (
	// ConfidenceUnknown means no meaningful signal was observed.
	ConfidenceUnknown Confidence = iota
	// ConfidenceVeryLow means signals exist but barely lean either way.
	ConfidenceVeryLow
	// ConfidenceLow means a weak lean or a thin sample.
	ConfidenceLow
	// ConfidenceMedium means clear agreement with corroborating breadth.
	ConfidenceMedium
	// ConfidenceHigh means strong agreement with corroborating breadth.
	ConfidenceHigh
)

var confidenceNames = [...]string{
	ConfidenceUnknown: "UNKNOWN",
	ConfidenceVeryLow: "VERY_LOW",
	ConfidenceLow:     "LOW",
	ConfidenceMedium:  "MEDIUM",
	ConfidenceHigh:    "HIGH",
}

// String returns the wire name of the band.
func (c Confidence) String() string {
	if int(c) < len(confidenceNames) {
		return confidenceNames[c]
	}
	return fmt.Sprintf("Confidence(%d)", uint8(c))
}

// MarshalText implements encoding.TextMarshaler.
func (c Confidence) MarshalText() ([]byte, error) {
	if int(c) >= len(confidenceNames) {
		return nil, fmt.Errorf("%w: confidence %d", ErrUnknownEnum, uint8(c))
	}
	return []byte(confidenceNames[c]), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *Confidence) UnmarshalText(text []byte) error {
	for i, name := range confidenceNames {
		if name == string(text) {
			*c = Confidence(i)
			return nil
		}
	}
	return fmt.Errorf("%w: confidence %q", ErrUnknownEnum, text)
}
