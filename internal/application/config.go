package application

import (
	"bytes"
	_ "embed"
	"fmt"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ahrav/go-triage/infrastructure/aggregation"
)

//go:embed default_engine.yaml
var defaultEngineYAML []byte

// EngineConfig is the complete, declarative description of an engine:
// which detectors run with which parameters, how votes and candidates are
// banded, and how the caller-side semantic lookup is bounded.
type EngineConfig struct {
	// Version is the configuration schema version (semver).
	Version string `yaml:"version" json:"version" validate:"required,semver"`

	// Detectors lists the detectors to build. Evidence appears in the
	// trail in detector source order, not list order.
	Detectors []DetectorSpec `yaml:"detectors" json:"detectors" validate:"required,min=1,dive"`

	// Banding tunes the classification confidence bands.
	Banding aggregation.BandingConfig `yaml:"banding" json:"banding"`

	// Resolution tunes the resolution confidence bands.
	Resolution aggregation.ResolutionBandingConfig `yaml:"resolution" json:"resolution"`

	// SemanticLookup bounds the caller-side similarity search.
	SemanticLookup SemanticLookupConfig `yaml:"semantic_lookup" json:"semantic_lookup"`
}

// DetectorSpec names one detector instance.
type DetectorSpec struct {
	// Type selects the factory in the detector registry.
	Type string `yaml:"type" json:"type" validate:"required,detectortype"`

	// Name identifies the instance in logs and metrics. Defaults to Type.
	Name string `yaml:"name,omitempty" json:"name,omitempty" validate:"omitempty,max=100"`

	// Params overlay the detector's defaults. Unknown keys are rejected
	// when the detector is built.
	Params map[string]any `yaml:"params,omitempty" json:"params,omitempty"`
}

// InstanceName returns Name, or Type when Name is empty.
func (s DetectorSpec) InstanceName() string {
	if s.Name != "" {
		return s.Name
	}
	return s.Type
}

// SemanticLookupConfig bounds the similarity search made before evaluation.
type SemanticLookupConfig struct {
	// TopK is the number of matches requested.
	TopK int `yaml:"top_k" json:"top_k" validate:"min=1,max=100"`

	// Budget caps how long the search may take before it is treated as
	// unavailable.
	Budget time.Duration `yaml:"budget" json:"budget" validate:"gt=0,max=1m"`
}

var defaultEngineConfig = sync.OnceValue(func() EngineConfig {
	var cfg EngineConfig
	decoder := yaml.NewDecoder(bytes.NewReader(defaultEngineYAML))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		panic(fmt.Sprintf("load default_engine.yaml: %v", err))
	}
	cfg.Banding = aggregation.DefaultBandingConfig()
	cfg.Resolution = aggregation.DefaultResolutionBandingConfig()
	return cfg
})

// DefaultEngineConfig returns the production engine: every detector with
// default parameters and the default bands. Each call returns an
// independent copy.
func DefaultEngineConfig() EngineConfig {
	cfg := defaultEngineConfig()
	specs := make([]DetectorSpec, len(cfg.Detectors))
	for i, s := range cfg.Detectors {
		specs[i] = DetectorSpec{Type: s.Type, Name: s.Name}
	}
	cfg.Detectors = specs
	return cfg
}
