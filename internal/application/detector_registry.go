package application

import (
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/ahrav/go-triage/infrastructure/catalog"
	"github.com/ahrav/go-triage/infrastructure/detectors"
	"github.com/ahrav/go-triage/internal/ports"
)

// Built-in detector types.
const (
	DetectorTypePattern    = "pattern"
	DetectorTypeCategory   = "category"
	DetectorTypeHistorical = "historical"
	DetectorTypeIndex      = "index"
	DetectorTypeSemantic   = "semantic"
)

// BuiltinDetectorTypes lists the types every DefaultDetectorRegistry
// supports, in evaluation order.
func BuiltinDetectorTypes() []string {
	return []string{
		DetectorTypePattern,
		DetectorTypeCategory,
		DetectorTypeHistorical,
		DetectorTypeIndex,
		DetectorTypeSemantic,
	}
}

var _ ports.DetectorRegistry = (*DefaultDetectorRegistry)(nil)

// DefaultDetectorRegistry creates detectors by type. Detectors that need
// the known-entity catalog receive the one the registry was built with.
type DefaultDetectorRegistry struct {
	mu        sync.RWMutex
	factories map[string]ports.DetectorFactory
	catalog   *catalog.Catalog
}

// NewDefaultDetectorRegistry creates a registry with the built-in types
// registered. cat may be nil, in which case the index-backed detectors
// resolve nothing.
func NewDefaultDetectorRegistry(cat *catalog.Catalog) *DefaultDetectorRegistry {
	r := &DefaultDetectorRegistry{
		factories: make(map[string]ports.DetectorFactory),
		catalog:   cat,
	}
	r.registerBuiltinFactories()
	return r
}

func (r *DefaultDetectorRegistry) registerBuiltinFactories() {
	cat := r.catalog

	r.factories[DetectorTypePattern] = func(name string, params map[string]any) (ports.Detector, error) {
		return asDetector(detectors.CreatePatternDetector(name, params))
	}

	r.factories[DetectorTypeCategory] = func(name string, params map[string]any) (ports.Detector, error) {
		return asDetector(detectors.CreateCategoryDetector(name, params))
	}

	r.factories[DetectorTypeIndex] = func(name string, params map[string]any) (ports.Detector, error) {
		return asDetector(detectors.CreateIndexDetector(name, params, cat))
	}

	r.factories[DetectorTypeSemantic] = func(name string, params map[string]any) (ports.Detector, error) {
		return asDetector(detectors.CreateSemanticDetector(name, params, cat))
	}

	// The historical detector embeds its own pattern scan and entity index.
	// Their parameters nest under "pattern" and "index".
	r.factories[DetectorTypeHistorical] = func(name string, params map[string]any) (ports.Detector, error) {
		own := maps.Clone(params)
		patternParams, err := nestedParams(own, DetectorTypePattern)
		if err != nil {
			return nil, err
		}
		indexParams, err := nestedParams(own, DetectorTypeIndex)
		if err != nil {
			return nil, err
		}

		pattern, err := detectors.CreatePatternDetector(name+"/pattern", patternParams)
		if err != nil {
			return nil, fmt.Errorf("pattern: %w", err)
		}
		index, err := detectors.CreateIndexDetector(name+"/index", indexParams, cat)
		if err != nil {
			return nil, fmt.Errorf("index: %w", err)
		}
		return asDetector(detectors.CreateHistoricalDetector(name, own, pattern, index))
	}
}

// asDetector keeps a typed nil pointer out of the returned interface.
func asDetector[T ports.Detector](d T, err error) (ports.Detector, error) {
	if err != nil {
		return nil, err
	}
	return d, nil
}

// nestedParams removes key from params and returns it as a parameter map.
func nestedParams(params map[string]any, key string) (map[string]any, error) {
	raw, ok := params[key]
	if !ok {
		return nil, nil
	}
	delete(params, key)

	switch v := raw.(type) {
	case nil:
		return nil, nil
	case map[string]any:
		return v, nil
	default:
		return nil, fmt.Errorf("parameter %q must be a mapping, got %T", key, raw)
	}
}

// CreateDetector builds a detector of detectorType named name.
func (r *DefaultDetectorRegistry) CreateDetector(
	detectorType string,
	name string,
	params map[string]any,
) (ports.Detector, error) {
	r.mu.RLock()
	factory, exists := r.factories[detectorType]
	r.mu.RUnlock()

	if !exists {
		return nil, fmt.Errorf("unsupported detector type: %s", detectorType)
	}
	if name == "" {
		return nil, detectors.ErrEmptyDetectorName
	}

	d, err := factory(name, params)
	if err != nil {
		return nil, fmt.Errorf("failed to create detector %s of type %s: %w", name, detectorType, err)
	}
	return d, nil
}

// RegisterDetectorFactory adds or replaces the factory for detectorType.
func (r *DefaultDetectorRegistry) RegisterDetectorFactory(
	detectorType string,
	factory ports.DetectorFactory,
) error {
	if detectorType == "" {
		return fmt.Errorf("detector type cannot be empty")
	}
	if factory == nil {
		return fmt.Errorf("factory function cannot be nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.factories[detectorType] = factory
	return nil
}

// GetSupportedTypes returns every registered type in sorted order.
func (r *DefaultDetectorRegistry) GetSupportedTypes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return slices.Sorted(maps.Keys(r.factories))
}

// Catalog returns the catalog injected into index-backed detectors.
func (r *DefaultDetectorRegistry) Catalog() *catalog.Catalog { return r.catalog }
