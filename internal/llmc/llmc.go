// Package llmc provides the core abstractions for the chat-completion client.
// This package defines the Provider interface that all LLM provider implementations
// (openai, anthropic, gemini) must implement, along with the message model,
// the conversation assembler and the error taxonomy shared by them.
package llmc

import (
	"context"
	"fmt"
	"strings"
)

// DeltaFunc receives incremental answer text in arrival order.
type DeltaFunc func(delta string)

// Sampling holds the generation parameters sent with every request.
// A provider fixes these at construction time; they are not tunable per call.
type Sampling struct {
	Temperature      float64
	MaxTokens        int
	TopP             float64
	FrequencyPenalty float64
	PresencePenalty  float64
}

// DefaultSampling returns the sampling configuration used when none is configured.
func DefaultSampling() Sampling {
	return Sampling{
		Temperature:      0.7,
		MaxTokens:        1000,
		TopP:             1,
		FrequencyPenalty: 0,
		PresencePenalty:  0,
	}
}

// Validate checks that the sampling values are inside the ranges accepted upstream.
func (s Sampling) Validate() error {
	if s.Temperature < 0 || s.Temperature > 2 {
		return fmt.Errorf("temperature must be in [0, 2], got %g", s.Temperature)
	}
	if s.MaxTokens <= 0 {
		return fmt.Errorf("max_tokens must be positive, got %d", s.MaxTokens)
	}
	if s.TopP <= 0 || s.TopP > 1 {
		return fmt.Errorf("top_p must be in (0, 1], got %g", s.TopP)
	}
	if s.FrequencyPenalty < -2 || s.FrequencyPenalty > 2 {
		return fmt.Errorf("frequency_penalty must be in [-2, 2], got %g", s.FrequencyPenalty)
	}
	if s.PresencePenalty < -2 || s.PresencePenalty > 2 {
		return fmt.Errorf("presence_penalty must be in [-2, 2], got %g", s.PresencePenalty)
	}
	return nil
}

// Provider defines the interface for LLM providers.
//
// Example usage:
//
//	provider, _ := openai.NewProvider(cfg)
//	messages, _ := llmc.Assemble(llmc.DefaultDomainContext, history, "What is phishing?")
//	answer, err := provider.Stream(ctx, messages, func(delta string) {
//		fmt.Print(delta)
//	})
type Provider interface {
	// Stream sends the assembled messages and requests a streamed answer.
	// onDelta is called synchronously for each non-empty delta, in arrival order.
	// Cancelling ctx aborts the exchange and yields an error wrapping ErrCancelled.
	// An expired deadline yields a *TransportError with the partial text instead.
	Stream(ctx context.Context, messages []Message, onDelta DeltaFunc) (string, error)

	// Complete sends the assembled messages and waits for the whole answer.
	Complete(ctx context.Context, messages []Message) (string, error)

	// Name returns the provider identifier used in model strings.
	Name() string
}

// ParseModelString parses a model string in "provider:model" format.
// Returns (provider, model, error).
//
// Example:
//
//	provider, model, err := ParseModelString("openai:gpt-4o-mini")
//	// provider = "openai", model = "gpt-4o-mini"
func ParseModelString(modelStr string) (string, string, error) {
	parts := strings.SplitN(modelStr, ":", 2)
	if len(parts) != 2 {
		return "", "", fmt.Errorf("invalid model format: %s (expected format: provider:model, e.g., openai:gpt-4o-mini)", modelStr)
	}

	provider := strings.TrimSpace(parts[0])
	model := strings.TrimSpace(parts[1])

	if provider == "" || model == "" {
		return "", "", fmt.Errorf("provider and model cannot be empty")
	}

	return provider, model, nil
}

// FormatModelString formats provider and model into "provider:model" format.
func FormatModelString(provider, model string) string {
	return fmt.Sprintf("%s:%s", provider, model)
}
