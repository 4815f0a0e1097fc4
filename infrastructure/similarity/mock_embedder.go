package similarity

import (
	"context"
	"sync"
)

// MockEmbedder is a configurable Embedder for tests. Vectors are looked
// up by exact text; unknown texts get DefaultVector.
type MockEmbedder struct {
	mu sync.Mutex

	// Vectors maps input text to the embedding returned for it.
	Vectors map[string][]float32

	// DefaultVector is returned for texts missing from Vectors.
	DefaultVector []float32

	// Errors are returned in order, one per call, before succeeding.
	Errors []error

	// ModelName is returned by Model.
	ModelName string

	// Tracking
	CallCount int
	Inputs    [][]string
}

// NewMockEmbedder creates a mock that embeds every text as the unit
// vector along the first axis.
func NewMockEmbedder() *MockEmbedder {
	return &MockEmbedder{
		Vectors:       map[string][]float32{},
		DefaultVector: []float32{1, 0, 0},
		ModelName:     "mock-embedding",
	}
}

// Embed implements Embedder.
func (m *MockEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.CallCount++
	m.Inputs = append(m.Inputs, append([]string(nil), texts...))

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(m.Errors) > 0 {
		err := m.Errors[0]
		m.Errors = m.Errors[1:]
		if err != nil {
			return nil, err
		}
	}

	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, ok := m.Vectors[t]
		if !ok {
			v = m.DefaultVector
		}
		out[i] = append([]float32(nil), v...)
	}
	return out, nil
}

// Model implements Embedder.
func (m *MockEmbedder) Model() string { return m.ModelName }

// Calls returns the number of Embed invocations.
func (m *MockEmbedder) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.CallCount
}
