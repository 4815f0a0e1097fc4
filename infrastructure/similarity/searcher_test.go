package similarity

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-triage/infrastructure/catalog"
	"github.com/ahrav/go-triage/internal/domain"
	"github.com/ahrav/go-triage/internal/ports"
)

func searchCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	cat, err := catalog.New([]domain.Entity{
		{Name: "CreateOrder", FilePath: "orders/create.go", Description: "creates customer orders"},
		{Name: "ValidateAddress", Description: "checks shipping addresses"},
		{Name: "Invoice"},
	})
	require.NoError(t, err)
	return cat
}

func searchEmbedder() *MockEmbedder {
	m := NewMockEmbedder()
	m.Vectors = map[string][]float32{
		"CreateOrder: creates customer orders":       {1, 0, 0},
		"ValidateAddress: checks shipping addresses": {0, 1, 0},
		"Invoice":                                    {0, 0, 2},
		"order failed at checkout":                   {3, 4, 0},
		"nothing like anything":                      {-1, -1, -1},
		"tie between order and invoice":              {1, 0, 1},
	}
	return m
}

func TestCatalogSearcher_Search(t *testing.T) {
	mock := searchEmbedder()
	s := NewCatalogSearcher(mock, searchCatalog(t))
	require.NoError(t, s.Index(context.Background()))
	assert.True(t, s.Indexed())

	tests := []struct {
		name  string
		text  string
		k     int
		want  []string
		score []float64
	}{
		{
			name:  "ranked_by_cosine",
			text:  "order failed at checkout",
			k:     3,
			want:  []string{"ValidateAddress", "CreateOrder", "Invoice"},
			score: []float64{0.8, 0.6, 0},
		},
		{
			name:  "truncated_to_k",
			text:  "order failed at checkout",
			k:     1,
			want:  []string{"ValidateAddress"},
			score: []float64{0.8},
		},
		{
			name:  "negative_similarity_clamped",
			text:  "nothing like anything",
			k:     3,
			want:  []string{"CreateOrder", "Invoice", "ValidateAddress"},
			score: []float64{0, 0, 0},
		},
		{
			name: "ties_by_name",
			text: "tie between order and invoice",
			k:    2,
			want: []string{"CreateOrder", "Invoice"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			matches, err := s.Search(context.Background(), tt.text, tt.k)
			require.NoError(t, err)
			require.Len(t, matches, len(tt.want))
			for i, m := range matches {
				assert.Equal(t, tt.want[i], m.Name)
				assert.GreaterOrEqual(t, m.Score, 0.0)
				assert.LessOrEqual(t, m.Score, 1.0)
				if tt.score != nil {
					assert.InDelta(t, tt.score[i], m.Score, 1e-6)
				}
			}
		})
	}
}

func TestCatalogSearcher_EmptyQueries(t *testing.T) {
	mock := searchEmbedder()
	s := NewCatalogSearcher(mock, searchCatalog(t))
	require.NoError(t, s.Index(context.Background()))
	calls := mock.Calls()

	for _, tc := range []struct {
		text string
		k    int
	}{{"   ", 3}, {"order failed at checkout", 0}} {
		matches, err := s.Search(context.Background(), tc.text, tc.k)
		require.NoError(t, err)
		assert.Empty(t, matches)
	}
	assert.Equal(t, calls, mock.Calls())
}

func TestCatalogSearcher_NotIndexed(t *testing.T) {
	s := NewCatalogSearcher(searchEmbedder(), searchCatalog(t))
	assert.False(t, s.Indexed())

	_, err := s.Search(context.Background(), "order failed", 3)
	require.ErrorIs(t, err, ErrNotIndexed)

	var se *ports.SearchError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "search", se.Operation)
	assert.Equal(t, "mock-embedding", se.Provider)
}

func TestCatalogSearcher_IndexBatches(t *testing.T) {
	mock := searchEmbedder()
	s := NewCatalogSearcher(mock, searchCatalog(t), WithBatchSize(2))
	require.NoError(t, s.Index(context.Background()))

	require.Len(t, mock.Inputs, 2)
	assert.Len(t, mock.Inputs[0], 2)
	assert.Len(t, mock.Inputs[1], 1)
}

func TestCatalogSearcher_Errors(t *testing.T) {
	t.Run("index_failure_keeps_previous", func(t *testing.T) {
		mock := searchEmbedder()
		s := NewCatalogSearcher(mock, searchCatalog(t))
		require.NoError(t, s.Index(context.Background()))

		mock.Errors = []error{retryableErr()}
		err := s.Index(context.Background())
		require.Error(t, err)

		var se *ports.SearchError
		require.ErrorAs(t, err, &se)
		assert.True(t, se.IsRetryable())
		assert.True(t, s.Indexed())
	})

	t.Run("dimension_mismatch", func(t *testing.T) {
		mock := searchEmbedder()
		mock.Vectors["short query"] = []float32{1, 0}
		s := NewCatalogSearcher(mock, searchCatalog(t))
		require.NoError(t, s.Index(context.Background()))

		_, err := s.Search(context.Background(), "short query", 2)
		assert.ErrorIs(t, err, ErrDimensionMismatch)
	})

	t.Run("nil_catalog", func(t *testing.T) {
		s := NewCatalogSearcher(searchEmbedder(), nil)
		assert.ErrorIs(t, s.Index(context.Background()), domain.ErrInvalidConfiguration)
	})

	t.Run("canceled_context", func(t *testing.T) {
		s := NewCatalogSearcher(searchEmbedder(), searchCatalog(t))
		require.NoError(t, s.Index(context.Background()))

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := s.Search(ctx, "order failed at checkout", 3)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestUnit_ZeroVector(t *testing.T) {
	assert.Equal(t, []float64{0, 0}, unit([]float32{0, 0}))
	assert.InDelta(t, 1.0, dot(unit([]float32{3, 4}), unit([]float32{3, 4})), 1e-9)
}
