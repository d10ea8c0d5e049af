package gemini

import (
	"context"
	"errors"
	"iter"
	"log/slog"
	"testing"
	"time"

	"github.com/longkey1/sectutor/internal/llmc"
	"github.com/longkey1/sectutor/internal/llmc/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

type stubModelsClient struct {
	gotModel    string
	gotContents []*genai.Content
	gotConfig   *genai.GenerateContentConfig

	response  *genai.GenerateContentResponse
	err       error
	streamSeq iter.Seq2[*genai.GenerateContentResponse, error]
}

func (s *stubModelsClient) GenerateContent(ctx context.Context, model string, contents []*genai.Content, cfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	s.gotModel, s.gotContents, s.gotConfig = model, contents, cfg
	return s.response, s.err
}

func (s *stubModelsClient) GenerateContentStream(ctx context.Context, model string, contents []*genai.Content, cfg *genai.GenerateContentConfig) iter.Seq2[*genai.GenerateContentResponse, error] {
	s.gotModel, s.gotContents, s.gotConfig = model, contents, cfg
	if s.streamSeq != nil {
		return s.streamSeq
	}
	return func(yield func(*genai.GenerateContentResponse, error) bool) {}
}

func textResponse(parts ...*genai.Part) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{Content: &genai.Content{Role: genai.RoleModel, Parts: parts}}},
	}
}

func seqOf(items ...any) iter.Seq2[*genai.GenerateContentResponse, error] {
	return func(yield func(*genai.GenerateContentResponse, error) bool) {
		for _, it := range items {
			var ok bool
			switch v := it.(type) {
			case error:
				ok = yield(nil, v)
			case *genai.GenerateContentResponse:
				ok = yield(v, nil)
			}
			if !ok {
				return
			}
		}
	}
}

func newTestProvider(stub *stubModelsClient) *Provider {
	return &Provider{
		models:   stub,
		model:    "gemini-test",
		sampling: llmc.DefaultSampling(),
		logger:   slog.Default(),
	}
}

func TestProvider_Stream(t *testing.T) {
	stub := &stubModelsClient{streamSeq: seqOf(
		textResponse(&genai.Part{Text: "Phishing "}),
		textResponse(&genai.Part{Text: "planning...", Thought: true}),
		textResponse(&genai.Part{Text: "is a scam."}),
	)}
	p := newTestProvider(stub)

	messages, err := llmc.Assemble("Security tutor context.", []llmc.Message{
		{Role: llmc.RoleUser, Content: "hi"},
		{Role: llmc.RoleAssistant, Content: "hello"},
	}, "What is phishing?")
	require.NoError(t, err)

	var deltas []string
	text, err := p.Stream(context.Background(), messages, func(d string) { deltas = append(deltas, d) })
	require.NoError(t, err)
	assert.Equal(t, "Phishing is a scam.", text)
	assert.Equal(t, []string{"Phishing ", "is a scam."}, deltas)

	assert.Equal(t, "gemini-test", stub.gotModel)
	require.Len(t, stub.gotContents, 3)
	assert.Equal(t, genai.RoleUser, stub.gotContents[0].Role)
	assert.Equal(t, genai.RoleModel, stub.gotContents[1].Role)
	assert.Equal(t, "What is phishing?", stub.gotContents[2].Parts[0].Text)

	require.NotNil(t, stub.gotConfig.SystemInstruction)
	assert.Equal(t, "Security tutor context.", stub.gotConfig.SystemInstruction.Parts[0].Text)
	assert.Equal(t, int32(1000), stub.gotConfig.MaxOutputTokens)
	require.NotNil(t, stub.gotConfig.Temperature)
	assert.InDelta(t, 0.7, float64(*stub.gotConfig.Temperature), 0.0001)
}

func TestProvider_StreamFailures(t *testing.T) {
	user := []llmc.Message{{Role: llmc.RoleUser, Content: "x"}}

	t.Run("empty", func(t *testing.T) {
		p := newTestProvider(&stubModelsClient{streamSeq: seqOf(textResponse())})
		_, err := p.Stream(context.Background(), user, nil)
		assert.ErrorIs(t, err, llmc.ErrEmptyResponse)
	})

	t.Run("error mid-stream keeps partial text", func(t *testing.T) {
		cause := errors.New("stream reset")
		p := newTestProvider(&stubModelsClient{streamSeq: seqOf(textResponse(&genai.Part{Text: "half"}), cause)})
		text, err := p.Stream(context.Background(), user, nil)
		assert.Equal(t, "half", text)
		assert.ErrorIs(t, err, llmc.ErrTransport)
		assert.ErrorIs(t, err, cause)
		assert.True(t, llmc.IsRecoverable(err))
	})

	t.Run("cancel halts delivery", func(t *testing.T) {
		p := newTestProvider(&stubModelsClient{streamSeq: seqOf(
			textResponse(&genai.Part{Text: "one"}),
			textResponse(&genai.Part{Text: "two"}),
		)})
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		var deltas []string
		text, err := p.Stream(ctx, user, func(d string) {
			deltas = append(deltas, d)
			cancel()
		})
		assert.Empty(t, text)
		assert.ErrorIs(t, err, llmc.ErrCancelled)
		assert.Equal(t, []string{"one"}, deltas)
	})

	t.Run("deadline keeps partial text", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()
		stalled := func(yield func(*genai.GenerateContentResponse, error) bool) {
			if !yield(textResponse(&genai.Part{Text: "one"}), nil) {
				return
			}
			<-ctx.Done()
			yield(nil, ctx.Err())
		}
		p := newTestProvider(&stubModelsClient{streamSeq: stalled})

		text, err := p.Stream(ctx, user, nil)
		assert.Equal(t, "one", text)
		assert.ErrorIs(t, err, llmc.ErrTransport)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
		assert.True(t, llmc.IsRecoverable(err))
	})

	t.Run("only system messages", func(t *testing.T) {
		p := newTestProvider(&stubModelsClient{})
		_, err := p.Stream(context.Background(), []llmc.Message{{Role: llmc.RoleSystem, Content: "ctx"}}, nil)
		assert.ErrorIs(t, err, llmc.ErrEmptyConversation)
	})
}

func TestProvider_Complete(t *testing.T) {
	user := []llmc.Message{{Role: llmc.RoleUser, Content: "vpn?"}}

	p := newTestProvider(&stubModelsClient{response: textResponse(&genai.Part{Text: "A VPN encrypts traffic."})})
	got, err := p.Complete(context.Background(), user)
	require.NoError(t, err)
	assert.Equal(t, "A VPN encrypts traffic.", got)

	p = newTestProvider(&stubModelsClient{response: &genai.GenerateContentResponse{}})
	_, err = p.Complete(context.Background(), user)
	assert.ErrorIs(t, err, llmc.ErrMalformedResponse)

	p = newTestProvider(&stubModelsClient{err: errors.New("quota exceeded")})
	_, err = p.Complete(context.Background(), user)
	assert.ErrorIs(t, err, llmc.ErrTransport)

	expired, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()
	p = newTestProvider(&stubModelsClient{err: context.DeadlineExceeded})
	_, err = p.Complete(expired, user)
	assert.ErrorIs(t, err, llmc.ErrTransport)
	assert.True(t, llmc.IsRecoverable(err))

	cancelled, cancelNow := context.WithCancel(context.Background())
	cancelNow()
	p = newTestProvider(&stubModelsClient{err: context.Canceled})
	_, err = p.Complete(cancelled, user)
	assert.ErrorIs(t, err, llmc.ErrCancelled)
	assert.False(t, llmc.IsRecoverable(err))
}

func TestNewProvider(t *testing.T) {
	cfg := config.NewDefaultConfig("prompts")
	cfg.Model = "gemini:gemini-2.5-flash"
	cfg.GeminiToken = "g-test"

	p, err := NewProvider(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, "gemini", p.Name())
	assert.Equal(t, "gemini-2.5-flash", p.model)

	cfg.GeminiToken = ""
	_, err = NewProvider(context.Background(), cfg)
	assert.ErrorContains(t, err, "failed to get token")
}
