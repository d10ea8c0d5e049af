// Package stream drives one streamed completion exchange from request to result.
package stream

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync/atomic"

	"github.com/longkey1/sectutor/internal/llmc"
	"github.com/longkey1/sectutor/internal/llmc/sse"
)

const defaultChunkSize = 8 * 1024

// State is the lifecycle position of a Session.
type State int32

const (
	StateIdle       State = iota // Before Start.
	StateRequesting              // Request issued, no response byte yet.
	StateStreaming               // Receiving chunks.
	StateCompleted               // Answer assembled.
	StateFailed                  // Transport failure, timeout or empty answer.
	StateCancelled               // Caller cancelled the context.
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRequesting:
		return "requesting"
	case StateStreaming:
		return "streaming"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	case StateCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Terminal reports whether no transition can leave s.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed || s == StateCancelled
}

// Extractor maps one data frame payload to the text it contributes.
// It returns "" for payloads that carry no text or cannot be parsed.
type Extractor func(payload string) string

// ErrorDetector reports a non-nil error for a data frame payload that
// announces the upstream exchange failed.
type ErrorDetector func(payload string) error

// Session runs a single streamed exchange. It must not be started twice.
type Session struct {
	transport   Transport
	extract     Extractor
	detectError ErrorDetector
	decoderOpts []sse.Option
	chunkSize   int
	logger      *slog.Logger

	state   atomic.Int32
	started atomic.Bool
}

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the logger used for debug tracing.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Session) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithChunkSize sets the read buffer size used against the response body.
func WithChunkSize(n int) Option {
	return func(s *Session) {
		if n > 0 {
			s.chunkSize = n
		}
	}
}

// WithDecoderOptions configures the frame decoder created for the exchange.
func WithDecoderOptions(opts ...sse.Option) Option {
	return func(s *Session) { s.decoderOpts = append(s.decoderOpts, opts...) }
}

// WithErrorDetector fails the exchange with a *llmc.TransportError on the
// first frame detect rejects. Text delivered before it is kept.
func WithErrorDetector(detect ErrorDetector) Option {
	return func(s *Session) { s.detectError = detect }
}

// New creates an idle Session reading frames from transport.
func New(transport Transport, extract Extractor, opts ...Option) *Session {
	s := &Session{
		transport: transport,
		extract:   extract,
		chunkSize: defaultChunkSize,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// State returns the current lifecycle state. It is safe to call concurrently with Start.
func (s *Session) State() State {
	return State(s.state.Load())
}

// Start issues the request and consumes the response until the end-of-stream
// frame, end of body, a transport failure, or cancellation of ctx.
//
// onDelta is invoked synchronously for every non-empty delta in arrival order.
// The returned text is the concatenation of all deltas when the session
// completes. On failure the partially accumulated text is returned together
// with the error, since those deltas have already been delivered. An expired
// deadline on ctx is such a failure and yields a timeout *llmc.TransportError.
// On cancellation the text is discarded and the error wraps llmc.ErrCancelled.
func (s *Session) Start(ctx context.Context, onDelta llmc.DeltaFunc) (string, error) {
	if !s.started.CompareAndSwap(false, true) {
		return "", llmc.ErrSessionStarted
	}
	s.setState(StateRequesting)

	if err := ctx.Err(); err != nil {
		return s.interrupted("", err)
	}

	body, err := s.transport.Open(ctx)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return s.interrupted("", ctxErr)
		}
		return s.failed("", toTransportError(err))
	}
	defer body.Close()

	done := make(chan struct{})
	defer close(done)
	results := pump(body, s.chunkSize, done)

	decoder := sse.NewDecoder(s.decoderOpts...)
	var text strings.Builder

	for {
		select {
		case <-ctx.Done():
			body.Close()
			return s.interrupted(text.String(), ctx.Err())

		case res, ok := <-results:
			if !ok {
				if pending := decoder.Pending(); pending != "" {
					s.logger.Debug("stream_partial_record_dropped", "bytes", len(pending))
				}
				return s.finish(text.String(), false)
			}
			if ctxErr := ctx.Err(); ctxErr != nil {
				body.Close()
				return s.interrupted(text.String(), ctxErr)
			}
			if res.err != nil {
				return s.failed(text.String(), toTransportError(res.err))
			}

			if s.State() == StateRequesting {
				s.setState(StateStreaming)
			}

			for _, frame := range decoder.Feed(res.chunk) {
				if frame.Kind == sse.FrameDone {
					return s.finish(text.String(), true)
				}
				if s.detectError != nil {
					if err := s.detectError(frame.Payload); err != nil {
						return s.failed(text.String(), toTransportError(err))
					}
				}
				delta := s.extract(frame.Payload)
				if delta == "" {
					s.logger.Debug("stream_frame_skipped", "payload_bytes", len(frame.Payload))
					continue
				}
				if ctxErr := ctx.Err(); ctxErr != nil {
					body.Close()
					return s.interrupted(text.String(), ctxErr)
				}
				text.WriteString(delta)
				if onDelta != nil {
					onDelta(delta)
				}
			}
		}
	}
}

func (s *Session) finish(text string, sawSentinel bool) (string, error) {
	if text == "" {
		return s.failed("", llmc.ErrEmptyResponse)
	}
	if !sawSentinel {
		s.logger.Debug("stream_closed_without_sentinel", "chars", len(text))
	}
	s.setState(StateCompleted)
	return text, nil
}

func (s *Session) failed(partial string, err error) (string, error) {
	s.setState(StateFailed)
	s.logger.Debug("stream_failed", "error", err, "partial_chars", len(partial))
	return partial, err
}

// interrupted ends the exchange once ctx is done. A deadline fails the
// session and keeps the delivered text; a cancellation discards it.
func (s *Session) interrupted(partial string, cause error) (string, error) {
	err := llmc.ContextError(cause)
	if errors.Is(err, llmc.ErrTransport) {
		return s.failed(partial, err)
	}
	s.setState(StateCancelled)
	s.logger.Debug("stream_cancelled", "cause", cause)
	return "", err
}

func (s *Session) setState(state State) {
	s.state.Store(int32(state))
}

func toTransportError(err error) error {
	var te *llmc.TransportError
	if errors.As(err, &te) {
		return err
	}
	return &llmc.TransportError{Err: err}
}

type readResult struct {
	chunk []byte
	err   error
}

// pump reads body on its own goroutine and delivers raw chunks until EOF,
// a read error, or done is closed. The channel is closed on exit.
func pump(body io.Reader, size int, done <-chan struct{}) <-chan readResult {
	out := make(chan readResult)
	go func() {
		defer close(out)
		buf := make([]byte, size)
		for {
			n, err := body.Read(buf)
			if n > 0 {
				chunk := make([]byte, n)
				copy(chunk, buf[:n])
				select {
				case out <- readResult{chunk: chunk}:
				case <-done:
					return
				}
			}
			if err != nil {
				if errors.Is(err, io.EOF) {
					return
				}
				select {
				case out <- readResult{err: err}:
				case <-done:
				}
				return
			}
		}
	}()
	return out
}
