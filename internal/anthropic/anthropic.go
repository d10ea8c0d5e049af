// Package anthropic implements llmc.Provider for the Anthropic Messages API.
package anthropic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/longkey1/sectutor/internal/llmc"
	"github.com/longkey1/sectutor/internal/llmc/sse"
	"github.com/longkey1/sectutor/internal/llmc/stream"
)

const (
	ProviderName     = "anthropic"
	DefaultBaseURL   = "https://api.anthropic.com/v1"
	DefaultModel     = "claude-sonnet-4-20250514"
	AnthropicVersion = "2023-06-01"
)

// MessagesAPIRequest represents the request body for Anthropic's Messages API
type MessagesAPIRequest struct {
	Model       string         `json:"model"`
	MaxTokens   int            `json:"max_tokens"`
	System      string         `json:"system,omitempty"` // System prompt (optional)
	Messages    []MessageInput `json:"messages"`
	Temperature float64        `json:"temperature"`
	TopP        float64        `json:"top_p"`
	Stream      bool           `json:"stream,omitempty"`
}

// MessageInput represents a message in the conversation
type MessageInput struct {
	Role    string    `json:"role"`    // "user" or "assistant"
	Content []Content `json:"content"` // Array of content blocks
}

// Content represents a content block
type Content struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// MessagesAPIResponse represents a non-streamed response from the Messages API
type MessagesAPIResponse struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	Role       string    `json:"role"`
	Content    []Content `json:"content"`
	StopReason string    `json:"stop_reason"`
	Error      *APIError `json:"error,omitempty"`
}

// StreamEvent represents the data payload of one streamed event
type StreamEvent struct {
	Type  string `json:"type"`
	Delta struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"delta"`
	Error *APIError `json:"error,omitempty"`
}

// APIError represents an error in the API response
type APIError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func (e *APIError) String() string {
	if e.Type == "" {
		return e.Message
	}
	return e.Type + ": " + e.Message
}

// Config defines the configuration interface for Anthropic provider
type Config interface {
	GetModel() string
	GetBaseURL(provider string) (string, error)
	GetToken(provider string) (string, error)
	Sampling() llmc.Sampling
}

// Provider implements the llmc.Provider interface for Anthropic
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

// NewProvider creates a new Anthropic provider instance
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

// Stream sends messages and streams the answer.
// The Messages API has no end-of-stream sentinel; the exchange completes when
// the server closes the connection after message_stop. An error event fails
// the exchange and keeps the text delivered before it.
func (p *Provider) Stream(ctx context.Context, messages []llmc.Message, onDelta llmc.DeltaFunc) (string, error) {
	body, err := p.requestBody(messages, true)
	if err != nil {
		return "", err
	}

	session := stream.New(p.transport(body, true), ExtractDelta,
		stream.WithLogger(p.logger),
		stream.WithDecoderOptions(sse.WithSentinel("")),
		stream.WithErrorDetector(StreamError),
	)
	text, err := session.Start(ctx, onDelta)
	if err != nil {
		return text, fmt.Errorf("%s: %w", ProviderName, err)
	}
	return text, nil
}

// Complete sends messages to Anthropic's Messages API and returns the response
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

	var result MessagesAPIResponse
	if err := json.Unmarshal(data, &result); err != nil {
		return "", fmt.Errorf("%s: %w: %v", ProviderName, llmc.ErrMalformedResponse, err)
	}
	if result.Error != nil {
		return "", fmt.Errorf("%s: %w: API error [%s]: %s", ProviderName, llmc.ErrMalformedResponse, result.Error.Type, result.Error.Message)
	}

	// Extract text from content blocks
	var textBlocks []string
	for _, content := range result.Content {
		if content.Type == "text" && content.Text != "" {
			textBlocks = append(textBlocks, content.Text)
		}
	}
	if len(textBlocks) == 0 {
		return "", fmt.Errorf("%s: %w: no text content found (id=%s)", ProviderName, llmc.ErrMalformedResponse, result.ID)
	}
	return strings.Join(textBlocks, "\n"), nil
}

// ExtractDelta returns the text of a content_block_delta/text_delta event payload,
// or "" for every other event and for payloads that are not valid JSON.
func ExtractDelta(payload string) string {
	var event StreamEvent
	if err := json.Unmarshal([]byte(payload), &event); err != nil {
		return ""
	}
	if event.Type != "content_block_delta" || event.Delta.Type != "text_delta" {
		return ""
	}
	return event.Delta.Text
}

// StreamError returns a *llmc.TransportError for an error event payload, such
// as an overloaded_error sent after the response has started, and nil otherwise.
func StreamError(payload string) error {
	var event StreamEvent
	if err := json.Unmarshal([]byte(payload), &event); err != nil || event.Type != "error" {
		return nil
	}
	reason := "error event"
	if event.Error != nil {
		reason = event.Error.String()
	}
	return &llmc.TransportError{Reason: reason}
}

// requestBody hoists system messages into the system field, since the
// Messages API only accepts user and assistant turns.
func (p *Provider) requestBody(messages []llmc.Message, streamed bool) ([]byte, error) {
	msgs, err := llmc.Sanitize(messages)
	if err != nil {
		return nil, err
	}

	var system []string
	inputMessages := make([]MessageInput, 0, len(msgs))
	for _, msg := range msgs {
		if msg.Role == llmc.RoleSystem {
			system = append(system, msg.Content)
			continue
		}
		inputMessages = append(inputMessages, MessageInput{
			Role:    string(msg.Role),
			Content: []Content{{Type: "text", Text: msg.Content}},
		})
	}
	if len(inputMessages) == 0 {
		return nil, llmc.ErrEmptyConversation
	}

	reqBody := MessagesAPIRequest{
		Model:       p.model,
		MaxTokens:   p.sampling.MaxTokens,
		System:      strings.Join(system, "\n\n"),
		Messages:    inputMessages,
		Temperature: p.sampling.Temperature,
		TopP:        p.sampling.TopP,
		Stream:      streamed,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("error marshaling request: %w", err)
	}
	return jsonData, nil
}

func (p *Provider) transport(body []byte, streamed bool) stream.Transport {
	return stream.HTTPTransport(p.client, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/messages", bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("x-api-key", p.token)
		req.Header.Set("anthropic-version", AnthropicVersion)
		if streamed {
			req.Header.Set("Accept", "text/event-stream")
		}
		return req, nil
	})
}
