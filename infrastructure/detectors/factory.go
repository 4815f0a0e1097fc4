package detectors

import (
	"bytes"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/ahrav/go-triage/infrastructure/catalog"
)

// decodeParams overlays params onto cfg. The map is re-encoded as YAML and
// decoded with KnownFields so a misspelled key fails instead of being
// silently ignored. Keys absent from params keep their value in cfg.
func decodeParams(params map[string]any, cfg any) error {
	if len(params) == 0 {
		return nil
	}

	data, err := yaml.Marshal(params)
	if err != nil {
		return fmt.Errorf("failed to encode parameters: %w", err)
	}

	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(cfg); err != nil {
		return fmt.Errorf("failed to decode parameters (check for typos): %w", err)
	}
	return nil
}

// CreatePatternDetector builds a PatternDetector from defaults overlaid
// with params.
func CreatePatternDetector(id string, params map[string]any) (*PatternDetector, error) {
	cfg := DefaultPatternConfig()
	if err := decodeParams(params, &cfg); err != nil {
		return nil, err
	}
	return NewPatternDetector(id, cfg)
}

// CreateCategoryDetector builds a CategoryDetector from defaults overlaid
// with params.
func CreateCategoryDetector(id string, params map[string]any) (*CategoryDetector, error) {
	cfg := DefaultCategoryConfig()
	if err := decodeParams(params, &cfg); err != nil {
		return nil, err
	}
	return NewCategoryDetector(id, cfg)
}

// CreateIndexDetector builds an IndexDetector over cat.
func CreateIndexDetector(id string, params map[string]any, cat *catalog.Catalog) (*IndexDetector, error) {
	cfg := DefaultIndexConfig()
	if err := decodeParams(params, &cfg); err != nil {
		return nil, err
	}
	return NewIndexDetector(id, cfg, cat)
}

// CreateHistoricalDetector builds a HistoricalDetector that shares the
// given pattern and index detectors.
func CreateHistoricalDetector(
	id string,
	params map[string]any,
	pattern *PatternDetector,
	index *IndexDetector,
) (*HistoricalDetector, error) {
	cfg := DefaultHistoricalConfig()
	if err := decodeParams(params, &cfg); err != nil {
		return nil, err
	}
	return NewHistoricalDetector(id, cfg, pattern, index)
}

// CreateSemanticDetector builds a SemanticDetector over cat.
func CreateSemanticDetector(id string, params map[string]any, cat *catalog.Catalog) (*SemanticDetector, error) {
	cfg := DefaultSemanticConfig()
	if err := decodeParams(params, &cfg); err != nil {
		return nil, err
	}
	return NewSemanticDetector(id, cfg, cat)
}
