// Package openai implements llmc.Provider for OpenAI-compatible chat-completions endpoints.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/longkey1/sectutor/internal/llmc"
	"github.com/longkey1/sectutor/internal/llmc/stream"
)

const (
	ProviderName   = "openai"
	DefaultBaseURL = "https://api.openai.com/v1"
	DefaultModel   = "gpt-4o-mini"
)

// ChatCompletionRequest represents the request body for the chat completions endpoint
type ChatCompletionRequest struct {
	Model            string        `json:"model"`
	Messages         []ChatMessage `json:"messages"`
	Temperature      float64       `json:"temperature"`
	MaxTokens        int           `json:"max_tokens"`
	TopP             float64       `json:"top_p"`
	FrequencyPenalty float64       `json:"frequency_penalty"`
	PresencePenalty  float64       `json:"presence_penalty"`
	Stream           bool          `json:"stream"`
}

// ChatMessage represents a message in the wire format
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatCompletionChunk represents one streamed data frame
type ChatCompletionChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
}

// ChatCompletionResponse represents a non-streamed response
type ChatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *APIError `json:"error,omitempty"`
}

// APIError represents an error in the API response
type APIError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}


// Config defines the configuration interface for OpenAI provider
type Config interface {
	GetModel() string
	GetBaseURL(provider string) (string, error)
	GetToken(provider string) (string, error)
	Sampling() llmc.Sampling
}

// Provider implements the llmc.Provider interface for OpenAI
type Provider struct {
	model    string
	baseURL  string
	token    string
	sampling llmc.Sampling
	client   *http.Client
	logger   *slog.Logger
}

// Option configures a Provider.
type Option func(*Provider)

// WithHTTPClient sets the client used for every request.
func WithHTTPClient(client *http.Client) Option {
	return func(p *Provider) {
		if client != nil {
			p.client = client
		}
	}
}

// WithLogger sets the logger passed down to stream sessions.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Provider) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// NewProvider creates a new OpenAI provider instance.
// Model, endpoint, token and sampling are fixed for the provider's lifetime.
func NewProvider(config Config, opts ...Option) (*Provider, error) {
	_, modelName, err := llmc.ParseModelString(config.GetModel())
	if err != nil {
		return nil, fmt.Errorf("invalid model format: %w", err)
	}
	baseURL, err := config.GetBaseURL(ProviderName)
	if err != nil {
		return nil, fmt.Errorf("failed to get base URL: %w", err)
	}
	token, err := config.GetToken(ProviderName)
	if err != nil {
		return nil, fmt.Errorf("failed to get token: %w", err)
	}
	sampling := config.Sampling()
	if err := sampling.Validate(); err != nil {
		return nil, err
	}

	p := &Provider{
		model:    modelName,
		baseURL:  baseURL,
		token:    token,
		sampling: sampling,
		client:   http.DefaultClient,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Name returns the provider identifier
func (p *Provider) Name() string {
	return ProviderName
}

// Stream sends messages and streams the answer, calling onDelta per delta.
func (p *Provider) Stream(ctx context.Context, messages []llmc.Message, onDelta llmc.DeltaFunc) (string, error) {
	body, err := p.requestBody(messages, true)
	if err != nil {
		return "", err
	}

	session := stream.New(p.transport(body, true), ExtractDelta, stream.WithLogger(p.logger))
	text, err := session.Start(ctx, onDelta)
	if err != nil {
		return text, fmt.Errorf("%s: %w", ProviderName, err)
	}
	return text, nil
}

// Complete sends messages and waits for the whole answer.
func (p *Provider) Complete(ctx context.Context, messages []llmc.Message) (string, error) {
	body, err := p.requestBody(messages, false)
	if err != nil {
		return "", err
	}

	resp, err := p.transport(body, false).Open(ctx)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", fmt.Errorf("%s: %w", ProviderName, llmc.ContextError(ctxErr))
		}
		return "", fmt.Errorf("%s: %w", ProviderName, err)
	}
	defer resp.Close()

	data, err := io.ReadAll(resp)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", fmt.Errorf("%s: %w", ProviderName, llmc.ContextError(ctxErr))
		}
		return "", fmt.Errorf("%s: %w", ProviderName, &llmc.TransportError{Reason: "error reading response", Err: err})
	}

	var result ChatCompletionResponse
	if err := json.Unmarshal(data, &result); err != nil {
		return "", fmt.Errorf("%s: %w: %v", ProviderName, llmc.ErrMalformedResponse, err)
	}
	if result.Error != nil {
		return "", fmt.Errorf("%s: %w: API error [%s]: %s", ProviderName, llmc.ErrMalformedResponse, result.Error.Type, result.Error.Message)
	}
	if len(result.Choices) == 0 || result.Choices[0].Message.Content == "" {
		return "", fmt.Errorf("%s: %w: no content in response", ProviderName, llmc.ErrMalformedResponse)
	}
	return result.Choices[0].Message.Content, nil
}

// ExtractDelta returns choices[0].delta.content from a streamed frame payload,
// or "" when the payload is not valid JSON or carries no content.
func ExtractDelta(payload string) string {
	var chunk ChatCompletionChunk
	if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
		return ""
	}
	if len(chunk.Choices) == 0 {
		return ""
	}
	return chunk.Choices[0].Delta.Content
}

func (p *Provider) requestBody(messages []llmc.Message, streamed bool) ([]byte, error) {
	msgs, err := llmc.Sanitize(messages)
	if err != nil {
		return nil, err
	}

	wire := make([]ChatMessage, 0, len(msgs))
	for _, m := range msgs {
		wire = append(wire, ChatMessage{Role: string(m.Role), Content: m.Content})
	}

	reqBody := ChatCompletionRequest{
		Model:            p.model,
		Messages:         wire,
		Temperature:      p.sampling.Temperature,
		MaxTokens:        p.sampling.MaxTokens,
		TopP:             p.sampling.TopP,
		FrequencyPenalty: p.sampling.FrequencyPenalty,
		PresencePenalty:  p.sampling.PresencePenalty,
		Stream:           streamed,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("error marshaling request: %w", err)
	}
	return jsonData, nil
}

func (p *Provider) transport(body []byte, streamed bool) stream.Transport {
	return stream.HTTPTransport(p.client, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/chat/completions", bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+p.token)
		if streamed {
			req.Header.Set("Accept", "text/event-stream")
		}
		return req, nil
	})
}
