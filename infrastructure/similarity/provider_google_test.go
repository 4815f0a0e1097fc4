package similarity

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"
	"google.golang.org/genai"

	"github.com/ahrav/go-triage/internal/ports"
)

func TestNewGoogleProvider(t *testing.T) {
	_, err := newGoogleProvider(ClientConfig{})
	assert.ErrorIs(t, err, ErrEmptyAPIKey)

	embedder, err := newGoogleProvider(ClientConfig{APIKey: "test-key"})
	require.NoError(t, err)
	assert.Equal(t, GoogleDefaultModel, embedder.Model())

	embedder, err = newGoogleProvider(ClientConfig{APIKey: "test-key", Model: "gemini-embedding-001"})
	require.NoError(t, err)
	assert.Equal(t, "gemini-embedding-001", embedder.Model())
}

func TestGoogleProvider_EmbedEmptyInput(t *testing.T) {
	embedder, err := newGoogleProvider(ClientConfig{APIKey: "test-key"})
	require.NoError(t, err)

	vectors, err := embedder.Embed(context.Background(), []string{})
	require.NoError(t, err)
	assert.Nil(t, vectors)
}

func TestGoogleProvider_HandleError(t *testing.T) {
	p := &googleProvider{errorClassifier: &ErrorClassifier{Provider: "google"}}

	tests := []struct {
		name     string
		err      error
		wantType ErrorType
		sentinel error
	}{
		{
			name:     "googleapi_rate_limit",
			err:      &googleapi.Error{Code: http.StatusTooManyRequests, Message: "quota"},
			wantType: ErrorTypeRateLimit,
			sentinel: ports.ErrRateLimited,
		},
		{
			name:     "googleapi_forbidden",
			err:      &googleapi.Error{Code: http.StatusForbidden},
			wantType: ErrorTypeAuthentication,
			sentinel: ports.ErrAuthenticationFailed,
		},
		{
			name:     "genai_server_error",
			err:      genai.APIError{Code: http.StatusServiceUnavailable, Message: "overloaded"},
			wantType: ErrorTypeServerError,
			sentinel: ports.ErrServiceUnavailable,
		},
		{
			name:     "deadline",
			err:      context.DeadlineExceeded,
			wantType: ErrorTypeTimeout,
			sentinel: ports.ErrTimeout,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := p.handleError(tt.err)

			var pe *ProviderError
			require.ErrorAs(t, err, &pe)
			assert.Equal(t, tt.wantType, pe.Type)
			assert.ErrorIs(t, err, tt.sentinel)
		})
	}

	var pe *ProviderError
	require.ErrorAs(t, p.handleError(errors.New("socket closed")), &pe)
	assert.Equal(t, ErrorTypeUnknown, pe.Type)
}
