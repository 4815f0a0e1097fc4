// Package detectors provides the independent weak-signal detectors that
// feed the case triage engine. Every detector is constructed from an
// injectable configuration, holds only read-only state afterwards, and is
// safe for concurrent use.
package detectors

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"unicode"

	"github.com/go-playground/validator/v10"
	"golang.org/x/text/cases"
	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// MaxTextLength caps how many bytes of a single text field are scanned.
// Longer input is scanned up to the cap rather than rejected.
const MaxTextLength = 1 << 20

// Common errors returned by detector constructors.
var (
	// ErrEmptyDetectorName is returned when a detector is created without a name.
	ErrEmptyDetectorName = errors.New("detector name cannot be empty")

	// ErrOverlappingVocabulary is returned when a term is both code and non-code.
	ErrOverlappingVocabulary = errors.New("term appears in both code and non-code vocabularies")
)

// Package-level validator instance for configuration validation.
var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	if err := RegisterValidations(v); err != nil {
		panic(fmt.Sprintf("register detector validations: %v", err))
	}
	return v
}

// RegisterValidations adds the custom tags used by detector configs to v:
//   - regexp: the string compiles as a Go regular expression.
func RegisterValidations(v *validator.Validate) error {
	if err := v.RegisterValidation("regexp", validateRegexp); err != nil {
		return fmt.Errorf("failed to register regexp validator: %w", err)
	}
	return nil
}

func validateRegexp(fl validator.FieldLevel) bool {
	_, err := regexp.Compile(fl.Field().String())
	return err == nil
}

// Config groups the configuration of every detector.
type Config struct {
	Pattern    PatternConfig    `yaml:"pattern" json:"pattern"`
	Category   CategoryConfig   `yaml:"category" json:"category"`
	Historical HistoricalConfig `yaml:"historical" json:"historical"`
	Index      IndexConfig      `yaml:"index" json:"index"`
	Semantic   SemanticConfig   `yaml:"semantic" json:"semantic"`
}

var defaultConfig = sync.OnceValue(func() Config {
	var cfg Config
	decoder := yaml.NewDecoder(bytes.NewReader(defaultsYAML))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		panic(fmt.Sprintf("load detectors defaults.yaml: %v", err))
	}
	return cfg
})

// DefaultConfig returns the production vocabularies, patterns, and
// weights. Each call returns an independent copy.
func DefaultConfig() Config {
	cfg := defaultConfig()
	cfg.Pattern.Patterns = append([]string(nil), cfg.Pattern.Patterns...)
	cfg.Category.CodeTerms = append([]string(nil), cfg.Category.CodeTerms...)
	cfg.Category.NonCodeTerms = append([]string(nil), cfg.Category.NonCodeTerms...)
	cfg.Category.OverrideMarkers = append([]string(nil), cfg.Category.OverrideMarkers...)
	cfg.Index.StripSuffixes = append([]string(nil), cfg.Index.StripSuffixes...)
	return cfg
}

// normalize folds case and collapses every run of non-alphanumeric runes
// into a single space, so "Third-Party  Issue" and "third party issue"
// compare equal.
func normalize(s string) string {
	folded := cases.Fold().String(s)
	return strings.Join(strings.FieldsFunc(folded, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}), " ")
}

// containsWord reports whether term occurs in text on word boundaries.
// Both arguments must already be normalized.
func containsWord(text, term string) bool {
	if term == "" {
		return false
	}
	return text == term ||
		strings.HasPrefix(text, term+" ") ||
		strings.HasSuffix(text, " "+term) ||
		strings.Contains(text, " "+term+" ")
}

// clip bounds text to MaxTextLength bytes.
func clip(text string) string {
	if len(text) > MaxTextLength {
		return text[:MaxTextLength]
	}
	return text
}
