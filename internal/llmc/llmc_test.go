package llmc_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/longkey1/sectutor/internal/llmc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseModelString(t *testing.T) {
	tests := []struct {
		name         string
		input        string
		wantProvider string
		wantModel    string
		wantErr      bool
	}{
		{
			name:         "valid openai model",
			input:        "openai:gpt-4o-mini",
			wantProvider: "openai",
			wantModel:    "gpt-4o-mini",
		},
		{
			name:         "valid gemini model",
			input:        "gemini:gemini-2.0-flash",
			wantProvider: "gemini",
			wantModel:    "gemini-2.0-flash",
		},
		{
			name:         "model with colon",
			input:        "openai:o1:2024-12-17",
			wantProvider: "openai",
			wantModel:    "o1:2024-12-17",
		},
		{
			name:         "with whitespace",
			input:        " anthropic : claude-3-5-haiku-latest ",
			wantProvider: "anthropic",
			wantModel:    "claude-3-5-haiku-latest",
		},
		{name: "missing colon", input: "openai-gpt-4", wantErr: true},
		{name: "empty provider", input: ":gpt-4", wantErr: true},
		{name: "empty model", input: "openai:", wantErr: true},
		{name: "empty string", input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider, model, err := llmc.ParseModelString(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantProvider, provider)
			assert.Equal(t, tt.wantModel, model)
			assert.Equal(t, fmt.Sprintf("%s:%s", provider, model), llmc.FormatModelString(provider, model))
		})
	}
}

func TestSamplingValidate(t *testing.T) {
	assert.NoError(t, llmc.DefaultSampling().Validate())

	tests := []struct {
		name   string
		modify func(*llmc.Sampling)
	}{
		{"temperature too high", func(s *llmc.Sampling) { s.Temperature = 2.5 }},
		{"negative temperature", func(s *llmc.Sampling) { s.Temperature = -0.1 }},
		{"zero max tokens", func(s *llmc.Sampling) { s.MaxTokens = 0 }},
		{"zero top_p", func(s *llmc.Sampling) { s.TopP = 0 }},
		{"frequency penalty out of range", func(s *llmc.Sampling) { s.FrequencyPenalty = 3 }},
		{"presence penalty out of range", func(s *llmc.Sampling) { s.PresencePenalty = -3 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := llmc.DefaultSampling()
			tt.modify(&s)
			assert.Error(t, s.Validate())
		})
	}
}

func TestTransportError(t *testing.T) {
	cause := errors.New("connection reset by peer")
	err := fmt.Errorf("openai: %w", &llmc.TransportError{StatusCode: 502, Reason: "bad gateway", Err: cause})

	assert.ErrorIs(t, err, llmc.ErrTransport)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "HTTP 502")
	assert.Contains(t, err.Error(), "bad gateway")

	var te *llmc.TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, 502, te.StatusCode)
}

func TestIsRecoverable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"transport", &llmc.TransportError{StatusCode: 500}, true},
		{"malformed", fmt.Errorf("openai: %w", llmc.ErrMalformedResponse), true},
		{"empty response", llmc.ErrEmptyResponse, true},
		{"cancelled", fmt.Errorf("%w: %w", llmc.ErrCancelled, context.Canceled), false},
		{"context cancelled", llmc.ContextError(context.Canceled), false},
		{"context deadline", llmc.ContextError(context.DeadlineExceeded), true},
		{"invalid input", llmc.ErrInvalidInput, false},
		{"empty conversation", llmc.ErrEmptyConversation, false},
		{"unrelated", errors.New("boom"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, llmc.IsRecoverable(tt.err))
		})
	}
}

func TestContextError(t *testing.T) {
	tests := []struct {
		name          string
		cause         error
		wantTransport bool
	}{
		{"canceled", context.Canceled, false},
		{"deadline exceeded", context.DeadlineExceeded, true},
		{"wrapped deadline", fmt.Errorf("read body: %w", context.DeadlineExceeded), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := llmc.ContextError(tt.cause)
			assert.ErrorIs(t, err, tt.cause)
			assert.Equal(t, tt.wantTransport, errors.Is(err, llmc.ErrTransport))
			assert.Equal(t, !tt.wantTransport, errors.Is(err, llmc.ErrCancelled))
			if tt.wantTransport {
				var te *llmc.TransportError
				require.ErrorAs(t, err, &te)
				assert.Equal(t, "timeout", te.Reason)
			}
		})
	}
}
