package application

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/go-playground/validator/v10"
	"golang.org/x/sync/singleflight"
	"gopkg.in/yaml.v3"

	"github.com/ahrav/go-triage/internal/ports"
)

// ConfigLoader parses, validates, and caches engine configurations.
// Documents that normalize to the same configuration share one cache
// entry, and concurrent loads of the same document are parsed once.
type ConfigLoader struct {
	validator *validator.Validate

	// cache maps the SHA-256 of the normalized document to its config.
	// Cached configs MUST NOT be mutated.
	cache   map[string]*EngineConfig
	cacheMu sync.RWMutex

	sf singleflight.Group
}

// NewConfigLoader creates a loader with the engine validators registered.
func NewConfigLoader() (*ConfigLoader, error) {
	v := validator.New()
	if err := RegisterEngineValidators(v); err != nil {
		return nil, fmt.Errorf("failed to register validators: %w", err)
	}

	return &ConfigLoader{
		validator: v,
		cache:     make(map[string]*EngineConfig),
	}, nil
}

// Load parses data as a YAML document overlaid on DefaultEngineConfig.
// Keys absent from the document keep their default; a detectors list
// replaces the default list entirely. An empty document yields the
// defaults.
//
// The returned config is shared with the cache and must not be mutated.
func (cl *ConfigLoader) Load(ctx context.Context, data []byte) (*EngineConfig, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	cfg, err := parseEngineConfig(data)
	if err != nil {
		return nil, ports.NewConfigError("engine", err)
	}

	hash, err := configHash(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to calculate hash: %w", err)
	}

	v, err, _ := cl.sf.Do(hash, func() (any, error) {
		if cached, ok := cl.cached(hash); ok {
			return cached, nil
		}

		if err := ValidateEngineConfig(cl.validator, cfg); err != nil {
			return nil, ports.NewConfigError("engine", fmt.Errorf("%w: %w", errInvalidConfig, err))
		}

		cl.store(hash, cfg)
		return cfg, nil
	})
	if err != nil {
		return nil, err
	}

	return v.(*EngineConfig), nil
}

// LoadFile reads and loads the YAML document at path.
func (cl *ConfigLoader) LoadFile(ctx context.Context, path string) (*EngineConfig, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("failed to read engine config: %w", err)
	}
	return cl.Load(ctx, data)
}

// LoadReader reads r fully and loads it.
func (cl *ConfigLoader) LoadReader(ctx context.Context, r io.Reader) (*EngineConfig, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read engine config: %w", err)
	}
	return cl.Load(ctx, data)
}

// CacheSize returns the number of cached configurations.
func (cl *ConfigLoader) CacheSize() int {
	cl.cacheMu.RLock()
	defer cl.cacheMu.RUnlock()
	return len(cl.cache)
}

// ClearCache drops every cached configuration.
func (cl *ConfigLoader) ClearCache() {
	cl.cacheMu.Lock()
	defer cl.cacheMu.Unlock()
	cl.cache = make(map[string]*EngineConfig)
}

func (cl *ConfigLoader) cached(hash string) (*EngineConfig, bool) {
	cl.cacheMu.RLock()
	defer cl.cacheMu.RUnlock()
	cfg, ok := cl.cache[hash]
	return cfg, ok
}

func (cl *ConfigLoader) store(hash string, cfg *EngineConfig) {
	cl.cacheMu.Lock()
	defer cl.cacheMu.Unlock()
	cl.cache[hash] = cfg
}

var errInvalidConfig = errors.New("invalid engine configuration")

// parseEngineConfig decodes data strictly over the defaults.
func parseEngineConfig(data []byte) (*EngineConfig, error) {
	cfg := DefaultEngineConfig()

	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("YAML decode failed: %w", err)
	}
	return &cfg, nil
}

// configHash hashes the re-encoded config so formatting and key order in
// the source document do not matter.
func configHash(cfg *EngineConfig) (string, error) {
	var buf bytes.Buffer
	encoder := yaml.NewEncoder(&buf)
	encoder.SetIndent(2)
	if err := encoder.Encode(cfg); err != nil {
		return "", fmt.Errorf("failed to encode config for hashing: %w", err)
	}
	if err := encoder.Close(); err != nil {
		return "", fmt.Errorf("failed to encode config for hashing: %w", err)
	}

	sum := sha256.Sum256(buf.Bytes())
	return hex.EncodeToString(sum[:]), nil
}
