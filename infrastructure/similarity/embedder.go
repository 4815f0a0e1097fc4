// Package similarity implements the caller-side semantic search that feeds
// the SEMANTIC detector. Text is embedded through a pluggable provider
// (OpenAI or Google Gemini) wrapped in middleware for rate limiting,
// timeouts, retries, circuit breaking, metrics, and tracing, and the
// resulting vectors are ranked by cosine similarity against an indexed
// catalog.
//
// Basic usage:
//
//	embedder, err := similarity.NewEmbedder("openai", similarity.ClientConfig{
//	    APIKey: os.Getenv("OPENAI_API_KEY"),
//	    Model:  "text-embedding-3-small",
//	    Middleware: []similarity.Middleware{
//	        similarity.TracingMiddleware("casetriage"),
//	        similarity.RateLimitMiddleware(5, 10),
//	        similarity.TimeoutMiddleware(2 * time.Second),
//	    },
//	})
//	searcher := similarity.NewCatalogSearcher(embedder, cat)
//	err = searcher.Index(ctx)
//	matches, err := searcher.Search(ctx, c.Text(), 5)
package similarity

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// Embedder turns text into dense vectors. Implementations return exactly
// one vector per input text, in input order.
type Embedder interface {
	// Embed returns one embedding per text.
	Embed(ctx context.Context, texts []string) ([][]float32, error)

	// Model returns the configured embedding model name.
	Model() string
}

// ClientConfig holds the options for creating an embedder.
type ClientConfig struct {
	// APIKey authenticates requests to the provider.
	APIKey string

	// Model specifies the embedding model. Each provider has a default.
	Model string

	// BaseURL overrides the provider endpoint. Leave empty for the default.
	BaseURL string

	// Timeout bounds each HTTP request. Zero means the provider default.
	Timeout time.Duration

	// Middleware is applied in order; the first entry is outermost.
	Middleware []Middleware
}

// Middleware wraps an Embedder to add cross-cutting behavior.
type Middleware func(Embedder) Embedder

// ProviderFactory creates an Embedder from configuration.
type ProviderFactory func(ClientConfig) (Embedder, error)

var (
	factoriesMu       sync.RWMutex
	providerFactories = map[string]ProviderFactory{}
)

// RegisterProviderFactory registers a provider under providerType,
// replacing any previous registration.
func RegisterProviderFactory(providerType string, factory ProviderFactory) {
	factoriesMu.Lock()
	defer factoriesMu.Unlock()
	providerFactories[providerType] = factory
}

// Providers lists registered provider types in sorted order.
func Providers() []string {
	factoriesMu.RLock()
	defer factoriesMu.RUnlock()

	types := make([]string, 0, len(providerFactories))
	for t := range providerFactories {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// NewEmbedder creates an embedder for providerType and wraps it with the
// configured middleware.
func NewEmbedder(providerType string, config ClientConfig) (Embedder, error) {
	factoriesMu.RLock()
	factory, ok := providerFactories[providerType]
	factoriesMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown provider: %s", providerType)
	}

	core, err := factory(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create provider: %w", err)
	}

	return Chain(core, config.Middleware...), nil
}

// Chain wraps core with middleware so that the first entry is outermost.
func Chain(core Embedder, middleware ...Middleware) Embedder {
	for i := len(middleware) - 1; i >= 0; i-- {
		core = middleware[i](core)
	}
	return core
}
