package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/time/rate"
	"gopkg.in/yaml.v3"

	"github.com/ahrav/go-triage/infrastructure/catalog"
	"github.com/ahrav/go-triage/infrastructure/similarity"
	"github.com/ahrav/go-triage/internal/application"
	"github.com/ahrav/go-triage/internal/domain"
)

// Circuit breaker and retry settings for the embedding provider.
const (
	embedMaxFailures = 5
	embedCooldown    = 30 * time.Second
	embedMaxRetries  = 2
	embedBaseDelay   = 200 * time.Millisecond
	embedMaxDelay    = 2 * time.Second
)

// loadConfig loads --config, or the built-in defaults when unset.
func (s *session) loadConfig(ctx context.Context) (*application.EngineConfig, error) {
	loader, err := application.NewConfigLoader()
	if err != nil {
		return nil, err
	}
	if s.opts.configPath == "" {
		return loader.Load(ctx, nil)
	}
	return loader.LoadFile(ctx, s.opts.configPath)
}

// loadCatalog loads --catalog, or an empty catalog when unset.
func (s *session) loadCatalog() (*catalog.Catalog, error) {
	if s.opts.catalogPath == "" {
		return catalog.New(nil)
	}
	return catalog.LoadFile(s.opts.catalogPath)
}

// pipeline is everything a subcommand needs to evaluate cases.
type pipeline struct {
	config *application.EngineConfig
	engine *application.Engine
	lookup *application.SemanticLookup
}

func (s *session) buildPipeline(ctx context.Context) (*pipeline, error) {
	cfg, err := s.loadConfig(ctx)
	if err != nil {
		return nil, err
	}
	cat, err := s.loadCatalog()
	if err != nil {
		return nil, err
	}

	engine, err := application.NewEngineFromConfig(cfg, cat,
		application.WithMetrics(s.metrics),
		application.WithLogger(s.logger.With("component", "engine")),
	)
	if err != nil {
		return nil, err
	}

	p := &pipeline{config: cfg, engine: engine}
	if s.opts.provider == "" {
		return p, nil
	}

	searcher, err := s.buildSearcher(ctx, cat)
	if err != nil {
		return nil, err
	}
	p.lookup = application.NewSemanticLookup(searcher, cfg.SemanticLookup, s.metrics)
	return p, nil
}

// enrich fills in semantic matches when a provider is configured and the
// input does not already carry them.
func (p *pipeline) enrich(ctx context.Context, in domain.Input) domain.Input {
	if p.lookup == nil {
		return in
	}
	return p.lookup.Enrich(ctx, in)
}

func (s *session) buildSearcher(ctx context.Context, cat *catalog.Catalog) (*similarity.CatalogSearcher, error) {
	embedder, err := s.buildEmbedder()
	if err != nil {
		return nil, err
	}

	searcher := similarity.NewCatalogSearcher(embedder, cat)
	start := time.Now()
	if err := searcher.Index(ctx); err != nil {
		return nil, fmt.Errorf("index catalog: %w", err)
	}
	s.logger.Info("catalog indexed",
		"entities", cat.Len(),
		"model", embedder.Model(),
		"elapsed", time.Since(start))
	return searcher, nil
}

func (s *session) buildEmbedder() (similarity.Embedder, error) {
	keyEnv := s.opts.apiKeyEnv
	if keyEnv == "" {
		keyEnv = defaultKeyEnv(s.opts.provider)
	}
	apiKey := os.Getenv(keyEnv)
	if apiKey == "" {
		return nil, fmt.Errorf("%s is not set\n\nExport the %s API key:\n  export %s=<key>\n\nor name another variable with --api-key-env",
			keyEnv, s.opts.provider, keyEnv)
	}

	return similarity.NewEmbedder(s.opts.provider, similarity.ClientConfig{
		APIKey:  apiKey,
		Model:   s.opts.model,
		BaseURL: s.opts.baseURL,
		Timeout: s.opts.embedLimit,
		Middleware: []similarity.Middleware{
			similarity.TracingMiddleware("casetriage"),
			similarity.MetricsMiddleware(s.opts.provider, s.metrics),
			similarity.CircuitBreakerMiddleware(embedMaxFailures, embedCooldown),
			similarity.RetryMiddleware(embedMaxRetries, embedBaseDelay, embedMaxDelay),
			similarity.RateLimitMiddleware(rate.Limit(s.opts.rateLimit), max(1, int(s.opts.rateLimit))),
			similarity.TimeoutMiddleware(s.opts.embedLimit),
		},
	})
}

func defaultKeyEnv(provider string) string {
	switch provider {
	case "google":
		return "GEMINI_API_KEY"
	default:
		return "OPENAI_API_KEY"
	}
}

// readInput opens path, or stdin for "-".
func readInput(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return data, nil
}

// decodeStrict decodes a YAML (or JSON) document into out, rejecting
// unknown keys.
func decodeStrict(data []byte, out any) error {
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("input is empty")
		}
		return fmt.Errorf("decode input: %w", err)
	}
	return nil
}

func writeJSON(w io.Writer, v any, pretty bool) error {
	enc := json.NewEncoder(w)
	if pretty {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(v)
}
