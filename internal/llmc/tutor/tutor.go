// Package tutor answers one user turn at a time against a provider and
// substitutes a canned answer when the provider cannot be reached.
package tutor

import (
	"context"
	"log/slog"
	"strings"

	"github.com/longkey1/sectutor/internal/llmc"
	"github.com/longkey1/sectutor/internal/llmc/conversation"
	"github.com/longkey1/sectutor/internal/llmc/fallback"
)

// Answer is the outcome of one turn.
type Answer struct {
	// Text is the provider's answer, or the fallback answer when Fallback is set.
	Text string
	// Fallback reports that the provider failed and Text came from the fallback responder.
	Fallback bool
	// Partial holds text already delivered to the caller before the provider failed.
	Partial string
	// Cause is the provider error that triggered the fallback.
	Cause error
}

// Tutor sends user turns with the domain context and the prior history.
type Tutor struct {
	provider      llmc.Provider
	domainContext string
	streaming     bool
	logger        *slog.Logger
}

// Option configures a Tutor.
type Option func(*Tutor)

// WithDomainContext replaces the built-in system guidance.
func WithDomainContext(domainContext string) Option {
	return func(t *Tutor) { t.domainContext = domainContext }
}

// WithStreaming selects streamed (true) or whole-answer (false) requests.
func WithStreaming(streaming bool) Option {
	return func(t *Tutor) { t.streaming = streaming }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(t *Tutor) {
		if logger != nil {
			t.logger = logger
		}
	}
}

// New creates a streaming Tutor using llmc.DefaultDomainContext.
func New(provider llmc.Provider, opts ...Option) *Tutor {
	t := &Tutor{
		provider:      provider,
		domainContext: llmc.DefaultDomainContext,
		streaming:     true,
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Ask sends question after the history of conv, which may be nil.
//
// onDelta receives answer text as it arrives. Without streaming it is called
// once with the whole answer. On success the question and answer are appended
// to conv. Recoverable provider failures yield a fallback Answer and a nil
// error; conv is left untouched in that case. An expired deadline on ctx is
// such a failure. Invalid input and cancellation are returned as errors.
func (t *Tutor) Ask(ctx context.Context, conv *conversation.Conversation, question string, onDelta llmc.DeltaFunc) (*Answer, error) {
	var history []llmc.Message
	if conv != nil {
		history = conv.Messages
	}

	messages, err := llmc.Assemble(t.domainContext, history, question)
	if err != nil {
		return nil, err
	}

	t.logger.Debug("tutor_ask",
		"provider", t.provider.Name(),
		"messages", len(messages),
		"streaming", t.streaming)

	var text string
	if t.streaming {
		text, err = t.provider.Stream(ctx, messages, onDelta)
	} else {
		text, err = t.provider.Complete(ctx, messages)
		if err == nil && onDelta != nil {
			onDelta(text)
		}
	}

	if err != nil {
		if !llmc.IsRecoverable(err) {
			return nil, err
		}
		t.logger.Warn("tutor_fallback", "provider", t.provider.Name(), "error", err)
		return &Answer{
			Text:     fallback.Respond(question),
			Fallback: true,
			Partial:  text,
			Cause:    err,
		}, nil
	}

	if conv != nil {
		conv.AddExchange(strings.TrimSpace(question), text)
	}
	return &Answer{Text: text}, nil
}
