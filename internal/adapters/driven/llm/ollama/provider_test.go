package ollama

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MaceGrim/ruhroh/internal/core/ports/driven"
)

func testProvider(t *testing.T, handler http.Handler) *Provider {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return New(Config{BaseURL: server.URL})
}

// TestProvider_Complete tests a non-streamed chat round trip
func TestProvider_Complete(t *testing.T) {
	provider := testProvider(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)

		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.False(t, req.Stream)
		assert.Equal(t, DefaultModel, req.Model)

		fmt.Fprint(w, `{"message":{"role":"assistant","content":"hi there"},"done":true}`)
	}))

	out, err := provider.Complete(context.Background(), driven.CompletionRequest{
		Messages: []driven.ChatMessage{{Role: "user", Content: "hello"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "hi there", out)
}

// TestProvider_CompleteStream tests newline-delimited JSON streaming
func TestProvider_CompleteStream(t *testing.T) {
	provider := testProvider(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, `{"message":{"role":"assistant","content":"Hel"},"done":false}`)
		fmt.Fprintln(w, `{"message":{"role":"assistant","content":"lo"},"done":false}`)
		fmt.Fprintln(w, `{"message":{"role":"assistant","content":""},"done":true}`)
	}))

	var tokens []string
	full, err := provider.CompleteStream(context.Background(), driven.CompletionRequest{
		Messages: []driven.ChatMessage{{Role: "user", Content: "hello"}},
	}, func(token string) error {
		tokens = append(tokens, token)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "Hello", full)
	assert.Equal(t, []string{"Hel", "lo"}, tokens)
}

// TestProvider_Embed tests the embeddings round trip
func TestProvider_Embed(t *testing.T) {
	provider := testProvider(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/embeddings", r.URL.Path)

		var req embeddingRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, DefaultEmbeddingModel, req.Model)

		fmt.Fprint(w, `{"embedding":[0.5,-1.0]}`)
	}))

	embedding, err := provider.Embed(context.Background(), "some text")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.5, -1.0}, embedding)
}

// TestProvider_Complete_ServerError tests provider error mapping
func TestProvider_Complete_ServerError(t *testing.T) {
	provider := testProvider(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))

	_, err := provider.Complete(context.Background(), driven.CompletionRequest{
		Messages: []driven.ChatMessage{{Role: "user", Content: "hello"}},
	})
	var pe *driven.ProviderError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, http.StatusNotFound, pe.StatusCode)
	assert.False(t, pe.Transient())
}
