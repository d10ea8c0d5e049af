package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/longkey1/sectutor/internal/anthropic"
	"github.com/longkey1/sectutor/internal/gemini"
	"github.com/longkey1/sectutor/internal/llmc"
	"github.com/longkey1/sectutor/internal/llmc/config"
	"github.com/longkey1/sectutor/internal/openai"
)

// newProvider creates a new provider instance based on the configuration
func newProvider(ctx context.Context, cfg *config.Config, logger *slog.Logger) (llmc.Provider, error) {
	providerName, err := cfg.GetProvider()
	if err != nil {
		return nil, err
	}
	client := newHTTPClient(cfg.RequestTimeout())

	switch providerName {
	case openai.ProviderName:
		return openai.NewProvider(cfg, openai.WithHTTPClient(client), openai.WithLogger(logger))
	case anthropic.ProviderName:
		return anthropic.NewProvider(cfg, anthropic.WithHTTPClient(client), anthropic.WithLogger(logger))
	case gemini.ProviderName:
		return gemini.NewProvider(ctx, cfg, gemini.WithHTTPClient(client), gemini.WithLogger(logger))
	default:
		return nil, fmt.Errorf("unsupported provider: %s (supported: openai, anthropic, gemini)", providerName)
	}
}

// newHTTPClient bounds the wait for response headers only, so a streamed
// answer may keep flowing for as long as the server sends it.
func newHTTPClient(headerTimeout time.Duration) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.ResponseHeaderTimeout = headerTimeout
	return &http.Client{Transport: transport}
}
