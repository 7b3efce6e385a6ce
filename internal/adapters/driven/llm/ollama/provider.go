// Package ollama provides an LLM provider adapter using Ollama, for
// fully local deployments.
package ollama

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/MaceGrim/ruhroh/internal/core/ports/driven"
)

// Ensure Provider implements the interface.
var _ driven.LLMProvider = (*Provider)(nil)

// Default configuration values.
const (
	DefaultBaseURL        = "http://localhost:11434"
	DefaultModel          = "llama3.2"
	DefaultEmbeddingModel = "nomic-embed-text"
	DefaultTimeout        = 120 * time.Second
)

// Config holds configuration for the Ollama provider.
type Config struct {
	// BaseURL is the Ollama API base URL (default: http://localhost:11434).
	BaseURL string

	// Model is the chat model to use (default: llama3.2).
	Model string

	// EmbeddingModel is the embedding model to use
	// (default: nomic-embed-text).
	EmbeddingModel string

	// Timeout is the request timeout (default: 120s).
	Timeout time.Duration
}

// Provider implements chat completion, streaming and embeddings against
// a local Ollama instance.
type Provider struct {
	client         *http.Client
	streamClient   *http.Client
	baseURL        string
	model          string
	embeddingModel string
}

// chatRequest is the Ollama /api/chat request format.
type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
	Options  *options      `json:"options,omitempty"`
}

// chatMessage is the Ollama chat message format.
type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// options holds generation parameters.
type options struct {
	NumPredict  int     `json:"num_predict,omitempty"`
	Temperature float64 `json:"temperature,omitempty"`
}

// chatResponse is one Ollama /api/chat response object. Streamed
// responses deliver one object per line.
type chatResponse struct {
	Message chatMessage `json:"message"`
	Done    bool        `json:"done"`
	Error   string      `json:"error,omitempty"`
}

// embeddingRequest is the Ollama /api/embeddings request format.
type embeddingRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

// embeddingResponse is the Ollama /api/embeddings response format.
type embeddingResponse struct {
	Embedding []float64 `json:"embedding"`
	Error     string    `json:"error,omitempty"`
}

// New creates a new Ollama provider.
func New(cfg Config) *Provider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.EmbeddingModel == "" {
		cfg.EmbeddingModel = DefaultEmbeddingModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}

	return &Provider{
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
		streamClient:   &http.Client{},
		baseURL:        cfg.BaseURL,
		model:          cfg.Model,
		embeddingModel: cfg.EmbeddingModel,
	}
}

// Complete produces a full chat completion.
func (p *Provider) Complete(ctx context.Context, req driven.CompletionRequest) (string, error) {
	body, err := p.post(ctx, p.client, "/api/chat", p.chatRequest(req, false))
	if err != nil {
		return "", err
	}
	defer body.Close()

	var chatResp chatResponse
	if err := json.NewDecoder(body).Decode(&chatResp); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if chatResp.Error != "" {
		return "", &driven.ProviderError{Message: "ollama: " + chatResp.Error}
	}
	return chatResp.Message.Content, nil
}

// CompleteStream produces a chat completion delivered incrementally.
// Ollama streams newline-delimited JSON objects rather than SSE.
func (p *Provider) CompleteStream(ctx context.Context, req driven.CompletionRequest, onToken func(string) error) (string, error) {
	body, err := p.post(ctx, p.streamClient, "/api/chat", p.chatRequest(req, true))
	if err != nil {
		return "", err
	}
	defer body.Close()

	var full strings.Builder
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var chunk chatResponse
		if err := json.Unmarshal([]byte(line), &chunk); err != nil {
			return "", fmt.Errorf("decode stream chunk: %w", err)
		}
		if chunk.Error != "" {
			return "", &driven.ProviderError{Message: "ollama: " + chunk.Error}
		}
		if chunk.Message.Content != "" {
			full.WriteString(chunk.Message.Content)
			if err := onToken(chunk.Message.Content); err != nil {
				return "", err
			}
		}
		if chunk.Done {
			break
		}
	}
	if err := scanner.Err(); err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", &driven.ProviderError{Message: fmt.Sprintf("ollama: stream interrupted: %v", err)}
	}
	return full.String(), nil
}

// Embed generates a vector embedding for the given text.
func (p *Provider) Embed(ctx context.Context, text string) ([]float32, error) {
	body, err := p.post(ctx, p.client, "/api/embeddings", embeddingRequest{
		Model:  p.embeddingModel,
		Prompt: text,
	})
	if err != nil {
		return nil, err
	}
	defer body.Close()

	var embedResp embeddingResponse
	if err := json.NewDecoder(body).Decode(&embedResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if embedResp.Error != "" {
		return nil, &driven.ProviderError{Message: "ollama: " + embedResp.Error}
	}
	if len(embedResp.Embedding) == 0 {
		return nil, fmt.Errorf("ollama: no embedding returned")
	}

	embedding := make([]float32, len(embedResp.Embedding))
	for i, v := range embedResp.Embedding {
		embedding[i] = float32(v)
	}
	return embedding, nil
}

func (p *Provider) chatRequest(req driven.CompletionRequest, stream bool) chatRequest {
	messages := make([]chatMessage, len(req.Messages))
	for i, m := range req.Messages {
		messages[i] = chatMessage{Role: m.Role, Content: m.Content}
	}
	out := chatRequest{
		Model:    p.model,
		Messages: messages,
		Stream:   stream,
	}
	if req.MaxTokens > 0 || req.Temperature > 0 {
		out.Options = &options{
			NumPredict:  req.MaxTokens,
			Temperature: req.Temperature,
		}
	}
	return out
}

// post sends a JSON request and returns the response body after mapping
// HTTP-level failures to ProviderError.
func (p *Provider) post(ctx context.Context, client *http.Client, path string, payload any) (io.ReadCloser, error) {
	jsonBody, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+path, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &driven.ProviderError{Message: fmt.Sprintf("ollama: %v", err)}
	}

	if resp.StatusCode != http.StatusOK {
		raw, readErr := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		msg := strings.TrimSpace(string(raw))
		if readErr != nil || msg == "" {
			msg = resp.Status
		}
		return nil, &driven.ProviderError{StatusCode: resp.StatusCode, Message: "ollama: " + msg}
	}
	return resp.Body, nil
}

// ModelName returns the name of the chat model being used.
func (p *Provider) ModelName() string {
	return p.model
}

// Ping validates Ollama is reachable.
func (p *Provider) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/api/tags", http.NoBody)
	if err != nil {
		return fmt.Errorf("ollama: failed to create ping request: %w", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("ollama: ping failed (is Ollama running?): %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ollama: API returned status %d", resp.StatusCode)
	}
	return nil
}

// Close releases resources.
func (p *Provider) Close() error {
	return nil
}
