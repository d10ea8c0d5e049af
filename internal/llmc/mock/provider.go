// Package mock provides test doubles for llmc interfaces using function fields.
package mock

import (
	"context"

	"github.com/longkey1/sectutor/internal/llmc"
)

var _ llmc.Provider = (*Provider)(nil)

// Provider is a test double for llmc.Provider.
// Set the function fields for the methods you need.
type Provider struct {
	StreamFn   func(ctx context.Context, messages []llmc.Message, onDelta llmc.DeltaFunc) (string, error)
	CompleteFn func(ctx context.Context, messages []llmc.Message) (string, error)
	NameFn     func() string
}

// Stream delegates to StreamFn.
func (p *Provider) Stream(ctx context.Context, messages []llmc.Message, onDelta llmc.DeltaFunc) (string, error) {
	return p.StreamFn(ctx, messages, onDelta)
}

// Complete delegates to CompleteFn.
func (p *Provider) Complete(ctx context.Context, messages []llmc.Message) (string, error) {
	return p.CompleteFn(ctx, messages)
}

// Name delegates to NameFn, or returns "mock" when it is unset.
func (p *Provider) Name() string {
	if p.NameFn == nil {
		return "mock"
	}
	return p.NameFn()
}
