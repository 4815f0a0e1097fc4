package similarity

import (
	"cmp"
	"context"
	"fmt"
	"math"
	"slices"
	"strings"
	"sync"

	"github.com/ahrav/go-triage/infrastructure/catalog"
	"github.com/ahrav/go-triage/internal/domain"
	"github.com/ahrav/go-triage/internal/ports"
)

// DefaultBatchSize is the number of catalog entries embedded per request
// while indexing.
const DefaultBatchSize = 64

var _ ports.SimilaritySearcher = (*CatalogSearcher)(nil)

type indexedEntity struct {
	name   string
	vector []float64
}

// CatalogSearcher ranks catalog entities by cosine similarity to a query.
// Index must succeed before Search is called; afterwards the searcher is
// safe for concurrent use and may be re-indexed at any time.
type CatalogSearcher struct {
	embedder  Embedder
	catalog   *catalog.Catalog
	batchSize int

	mu      sync.RWMutex
	entries []indexedEntity
}

// SearcherOption configures a CatalogSearcher.
type SearcherOption func(*CatalogSearcher)

// WithBatchSize sets how many entities are embedded per indexing request.
func WithBatchSize(n int) SearcherOption {
	return func(s *CatalogSearcher) {
		if n > 0 {
			s.batchSize = n
		}
	}
}

// NewCatalogSearcher creates a searcher over cat using embedder.
func NewCatalogSearcher(embedder Embedder, cat *catalog.Catalog, opts ...SearcherOption) *CatalogSearcher {
	s := &CatalogSearcher{
		embedder:  embedder,
		catalog:   cat,
		batchSize: DefaultBatchSize,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Index embeds every catalog entity. An entity is represented by its name
// followed by its description, when present. The previous index is kept
// if embedding fails.
func (s *CatalogSearcher) Index(ctx context.Context) error {
	if s.catalog == nil {
		return s.searchError("index", fmt.Errorf("%w: catalog is nil", domain.ErrInvalidConfiguration))
	}

	entities := s.catalog.Entities()
	entries := make([]indexedEntity, 0, len(entities))

	for chunk := range slices.Chunk(entities, s.batchSize) {
		texts := make([]string, len(chunk))
		for i, e := range chunk {
			texts[i] = entityText(e)
		}

		vectors, err := s.embedder.Embed(ctx, texts)
		if err != nil {
			return s.searchError("index", err)
		}
		if len(vectors) != len(chunk) {
			return s.searchError("index", fmt.Errorf("%w: got %d, want %d", ErrEmbeddingCount, len(vectors), len(chunk)))
		}

		for i, e := range chunk {
			entries = append(entries, indexedEntity{name: e.Name, vector: unit(vectors[i])})
		}
	}

	if len(entries) > 0 {
		dim := len(entries[0].vector)
		for _, e := range entries[1:] {
			if len(e.vector) != dim {
				return s.searchError("index", fmt.Errorf("%w: %q has %d dimensions, want %d",
					ErrDimensionMismatch, e.name, len(e.vector), dim))
			}
		}
	}

	s.mu.Lock()
	s.entries = entries
	s.mu.Unlock()
	return nil
}

// Indexed reports whether Index has completed successfully.
func (s *CatalogSearcher) Indexed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.entries != nil
}

// Search embeds text and returns up to k entities ordered by descending
// similarity, ties broken by ascending name. Scores are clamped to [0, 1].
// Blank text or a non-positive k yields no matches.
func (s *CatalogSearcher) Search(ctx context.Context, text string, k int) ([]domain.SimilarityMatch, error) {
	s.mu.RLock()
	entries := s.entries
	s.mu.RUnlock()

	if entries == nil {
		return nil, s.searchError("search", ErrNotIndexed)
	}
	if k <= 0 || strings.TrimSpace(text) == "" || len(entries) == 0 {
		return nil, nil
	}

	vectors, err := s.embedder.Embed(ctx, []string{text})
	if err != nil {
		return nil, s.searchError("search", err)
	}
	if len(vectors) != 1 {
		return nil, s.searchError("search", fmt.Errorf("%w: got %d, want 1", ErrEmbeddingCount, len(vectors)))
	}

	query := unit(vectors[0])
	if len(query) != len(entries[0].vector) {
		return nil, s.searchError("search", fmt.Errorf("%w: query has %d dimensions, index has %d",
			ErrDimensionMismatch, len(query), len(entries[0].vector)))
	}

	matches := make([]domain.SimilarityMatch, len(entries))
	for i, e := range entries {
		matches[i] = domain.SimilarityMatch{Name: e.name, Score: clamp01(dot(query, e.vector))}
	}

	slices.SortFunc(matches, func(a, b domain.SimilarityMatch) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		return strings.Compare(a.Name, b.Name)
	})

	if len(matches) > k {
		matches = matches[:k]
	}
	return matches, nil
}

func (s *CatalogSearcher) searchError(operation string, err error) error {
	return ports.NewSearchError(s.embedder.Model(), operation, err)
}

func entityText(e domain.Entity) string {
	if d := strings.TrimSpace(e.Description); d != "" {
		return e.Name + ": " + d
	}
	return e.Name
}

// unit returns v scaled to length one. A zero vector stays zero.
func unit(v []float32) []float64 {
	out := make([]float64, len(v))
	var norm float64
	for i, x := range v {
		out[i] = float64(x)
		norm += out[i] * out[i]
	}
	if norm == 0 {
		return out
	}
	norm = math.Sqrt(norm)
	for i := range out {
		out[i] /= norm
	}
	return out
}

func dot(a, b []float64) float64 {
	var sum float64
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}

func clamp01(x float64) float64 {
	switch {
	case math.IsNaN(x) || x < 0:
		return 0
	case x > 1:
		return 1
	default:
		return x
	}
}
