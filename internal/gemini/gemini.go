// Package gemini implements llmc.Provider on the Google Gen AI SDK.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"net/http"
	"strings"

	"github.com/longkey1/sectutor/internal/llmc"
	"google.golang.org/genai"
)

const (
	ProviderName   = "gemini"
	DefaultBaseURL = "https://generativelanguage.googleapis.com"
	DefaultModel   = "gemini-2.5-flash"
)

// Config defines the configuration interface for Gemini provider
type Config interface {
	GetModel() string
	GetBaseURL(provider string) (string, error)
	GetToken(provider string) (string, error)
	Sampling() llmc.Sampling
}

// modelsClient is the subset of genai.Models used here.
type modelsClient interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
	GenerateContentStream(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) iter.Seq2[*genai.GenerateContentResponse, error]
}

var newClient = func(ctx context.Context, cfg *genai.ClientConfig) (*genai.Client, error) {
	return genai.NewClient(ctx, cfg)
}

// Provider implements the llmc.Provider interface for Gemini
type Provider struct {
	models   modelsClient
	model    string
	sampling llmc.Sampling
	client   *http.Client
	logger   *slog.Logger
}

// Option configures a Provider.
type Option func(*Provider)

// WithHTTPClient sets the HTTP client handed to the SDK.
func WithHTTPClient(client *http.Client) Option {
	return func(p *Provider) {
		if client != nil {
			p.client = client
		}
	}
}

// WithLogger sets the logger used for debug tracing.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Provider) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// NewProvider creates a new Gemini provider instance
func NewProvider(ctx context.Context, config Config, opts ...Option) (*Provider, error) {
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
		sampling: sampling,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}

	client, err := newClient(ctx, &genai.ClientConfig{
		APIKey:      token,
		Backend:     genai.BackendGeminiAPI,
		HTTPClient:  p.client,
		HTTPOptions: genai.HTTPOptions{BaseURL: baseURL + "/"},
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	p.models = client.Models

	p.logger.Debug("gemini_provider_ready", "model", modelName)
	return p, nil
}

// Name returns the provider identifier
func (p *Provider) Name() string {
	return ProviderName
}

// Stream sends messages and streams the answer. Each streamed response's
// visible text is one delta.
func (p *Provider) Stream(ctx context.Context, messages []llmc.Message, onDelta llmc.DeltaFunc) (string, error) {
	contents, config, err := p.buildRequest(messages)
	if err != nil {
		return "", err
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return p.interrupted("", ctxErr)
	}

	var text strings.Builder
	for resp, err := range p.models.GenerateContentStream(ctx, p.model, contents, config) {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return p.interrupted(text.String(), ctxErr)
		}
		if err != nil {
			p.logger.Debug("stream_failed", "provider", ProviderName, "error", err, "partial_chars", text.Len())
			return text.String(), fmt.Errorf("%s: %w", ProviderName, &llmc.TransportError{Err: err})
		}
		delta := extractVisibleText(resp)
		if delta == "" {
			continue
		}
		text.WriteString(delta)
		if onDelta != nil {
			onDelta(delta)
		}
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		return p.interrupted(text.String(), ctxErr)
	}
	if text.Len() == 0 {
		return "", fmt.Errorf("%s: %w", ProviderName, llmc.ErrEmptyResponse)
	}
	return text.String(), nil
}

// Complete sends messages and waits for the whole answer.
func (p *Provider) Complete(ctx context.Context, messages []llmc.Message) (string, error) {
	contents, config, err := p.buildRequest(messages)
	if err != nil {
		return "", err
	}

	resp, err := p.models.GenerateContent(ctx, p.model, contents, config)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return p.interrupted("", ctxErr)
		}
		return "", fmt.Errorf("%s: %w", ProviderName, &llmc.TransportError{Err: err})
	}

	text := extractVisibleText(resp)
	if text == "" {
		return "", fmt.Errorf("%s: %w: no text in response", ProviderName, llmc.ErrMalformedResponse)
	}
	return text, nil
}

// interrupted maps a finished ctx to the provider error. Text already
// delivered is kept on a timeout and dropped on cancellation.
func (p *Provider) interrupted(partial string, cause error) (string, error) {
	err := fmt.Errorf("%s: %w", ProviderName, llmc.ContextError(cause))
	if errors.Is(err, llmc.ErrCancelled) {
		return "", err
	}
	return partial, err
}

// buildRequest maps assistant turns to the model role and folds system
// messages into the system instruction.
func (p *Provider) buildRequest(messages []llmc.Message) ([]*genai.Content, *genai.GenerateContentConfig, error) {
	msgs, err := llmc.Sanitize(messages)
	if err != nil {
		return nil, nil, err
	}

	var system []string
	contents := make([]*genai.Content, 0, len(msgs))
	for _, msg := range msgs {
		switch msg.Role {
		case llmc.RoleSystem:
			system = append(system, msg.Content)
		case llmc.RoleAssistant:
			contents = append(contents, &genai.Content{
				Role:  genai.RoleModel,
				Parts: []*genai.Part{{Text: msg.Content}},
			})
		default:
			contents = append(contents, &genai.Content{
				Role:  genai.RoleUser,
				Parts: []*genai.Part{{Text: msg.Content}},
			})
		}
	}
	if len(contents) == 0 {
		return nil, nil, llmc.ErrEmptyConversation
	}

	config := &genai.GenerateContentConfig{
		Temperature:      genai.Ptr(float32(p.sampling.Temperature)),
		TopP:             genai.Ptr(float32(p.sampling.TopP)),
		MaxOutputTokens:  int32(p.sampling.MaxTokens),
		FrequencyPenalty: genai.Ptr(float32(p.sampling.FrequencyPenalty)),
		PresencePenalty:  genai.Ptr(float32(p.sampling.PresencePenalty)),
	}
	if len(system) > 0 {
		config.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: strings.Join(system, "\n\n")}},
		}
	}
	return contents, config, nil
}

func extractVisibleText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0] == nil || resp.Candidates[0].Content == nil {
		return ""
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part == nil || part.Thought || part.Text == "" {
			continue
		}
		sb.WriteString(part.Text)
	}
	return sb.String()
}
