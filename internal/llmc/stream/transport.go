package stream

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/longkey1/sectutor/internal/llmc"
)

// maxErrorBody caps how much of a failed response body is kept as the reason.
const maxErrorBody = 4096

// Transport opens one request/response exchange and returns the response body.
// Implementations report failures as *llmc.TransportError where they can.
type Transport interface {
	Open(ctx context.Context) (io.ReadCloser, error)
}

// TransportFunc adapts a function to the Transport interface.
type TransportFunc func(ctx context.Context) (io.ReadCloser, error)

// Open calls f(ctx).
func (f TransportFunc) Open(ctx context.Context) (io.ReadCloser, error) {
	return f(ctx)
}

// RequestFunc builds the outbound HTTP request bound to ctx.
type RequestFunc func(ctx context.Context) (*http.Request, error)

// HTTPTransport returns a Transport that sends the request built by newRequest
// with client and accepts only 2xx responses.
func HTTPTransport(client *http.Client, newRequest RequestFunc) Transport {
	if client == nil {
		client = http.DefaultClient
	}
	return TransportFunc(func(ctx context.Context) (io.ReadCloser, error) {
		req, err := newRequest(ctx)
		if err != nil {
			return nil, fmt.Errorf("error creating request: %w", err)
		}

		resp, err := client.Do(req)
		if err != nil {
			return nil, &llmc.TransportError{Reason: "error sending request", Err: err}
		}

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			defer resp.Body.Close()
			body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
			reason := strings.TrimSpace(string(body))
			if reason == "" {
				reason = http.StatusText(resp.StatusCode)
			}
			return nil, &llmc.TransportError{StatusCode: resp.StatusCode, Reason: reason}
		}

		return resp.Body, nil
	})
}
