package anthropic_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/longkey1/sectutor/internal/anthropic"
	"github.com/longkey1/sectutor/internal/llmc"
	"github.com/longkey1/sectutor/internal/llmc/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const streamBody = "event: message_start\n" +
	`data: {"type":"message_start","message":{"id":"msg_1","role":"assistant"}}` + "\n\n" +
	"event: content_block_start\n" +
	`data: {"type":"content_block_start","index":0,"content_block":{"type":"text","text":""}}` + "\n\n" +
	"event: ping\n" +
	`data: {"type":"ping"}` + "\n\n" +
	"event: content_block_delta\n" +
	`data: {"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"Phishing "}}` + "\n\n" +
	"event: content_block_delta\n" +
	`data: {"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"is a scam."}}` + "\n\n" +
	"event: content_block_stop\n" +
	`data: {"type":"content_block_stop","index":0}` + "\n\n" +
	"event: message_stop\n" +
	`data: {"type":"message_stop"}` + "\n\n"

func newProvider(t *testing.T, url string) *anthropic.Provider {
	t.Helper()
	cfg := config.NewDefaultConfig("prompts")
	cfg.Model = "anthropic:claude-sonnet-4"
	cfg.AnthropicBaseURL = url
	cfg.AnthropicToken = "ak-test"
	p, err := anthropic.NewProvider(cfg)
	require.NoError(t, err)
	return p
}

func TestExtractDelta(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    string
	}{
		{name: "text delta", payload: `{"type":"content_block_delta","delta":{"type":"text_delta","text":"Hi"}}`, want: "Hi"},
		{name: "json delta", payload: `{"type":"content_block_delta","delta":{"type":"input_json_delta","partial_json":"{"}}`, want: ""},
		{name: "message stop", payload: `{"type":"message_stop"}`, want: ""},
		{name: "error event", payload: `{"type":"error","error":{"type":"overloaded_error"}}`, want: ""},
		{name: "not json", payload: `{"type":`, want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, anthropic.ExtractDelta(tt.payload))
		})
	}
}

func TestStreamError(t *testing.T) {
	tests := []struct {
		name       string
		payload    string
		wantReason string
	}{
		{name: "overloaded", payload: `{"type":"error","error":{"type":"overloaded_error","message":"Overloaded"}}`, wantReason: "overloaded_error: Overloaded"},
		{name: "message only", payload: `{"type":"error","error":{"message":"boom"}}`, wantReason: "boom"},
		{name: "no details", payload: `{"type":"error"}`, wantReason: "error event"},
		{name: "text delta", payload: `{"type":"content_block_delta","delta":{"type":"text_delta","text":"Hi"}}`},
		{name: "ping", payload: `{"type":"ping"}`},
		{name: "not json", payload: `{"type":"err`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := anthropic.StreamError(tt.payload)
			if tt.wantReason == "" {
				assert.NoError(t, err)
				return
			}
			var te *llmc.TransportError
			require.ErrorAs(t, err, &te)
			assert.Equal(t, tt.wantReason, te.Reason)
			assert.True(t, llmc.IsRecoverable(err))
		})
	}
}

func TestProvider_Stream(t *testing.T) {
	var got anthropic.MessagesAPIRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/messages", r.URL.Path)
		assert.Equal(t, "ak-test", r.Header.Get("x-api-key"))
		assert.Equal(t, anthropic.AnthropicVersion, r.Header.Get("anthropic-version"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = io.WriteString(w, streamBody)
	}))
	defer srv.Close()

	messages, err := llmc.Assemble("Be a security tutor.", []llmc.Message{
		{Role: llmc.RoleUser, Content: "hello"},
		{Role: llmc.RoleAssistant, Content: "Hi! Ask me anything."},
	}, "What is phishing?")
	require.NoError(t, err)

	var deltas []string
	text, err := newProvider(t, srv.URL).Stream(context.Background(), messages, func(d string) {
		deltas = append(deltas, d)
	})
	require.NoError(t, err)
	assert.Equal(t, "Phishing is a scam.", text)
	assert.Equal(t, []string{"Phishing ", "is a scam."}, deltas)

	assert.Equal(t, "claude-sonnet-4", got.Model)
	assert.Equal(t, "Be a security tutor.", got.System)
	assert.True(t, got.Stream)
	assert.Equal(t, 1000, got.MaxTokens)
	require.Len(t, got.Messages, 3)
	assert.Equal(t, "user", got.Messages[0].Role)
	assert.Equal(t, "assistant", got.Messages[1].Role)
	assert.Equal(t, "What is phishing?", got.Messages[2].Content[0].Text)
}

func TestProvider_StreamErrors(t *testing.T) {
	t.Run("overloaded", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(529)
			_, _ = io.WriteString(w, `{"type":"error","error":{"type":"overloaded_error","message":"Overloaded"}}`)
		}))
		defer srv.Close()

		_, err := newProvider(t, srv.URL).Stream(context.Background(), []llmc.Message{{Role: llmc.RoleUser, Content: "x"}}, nil)
		var te *llmc.TransportError
		require.ErrorAs(t, err, &te)
		assert.Equal(t, 529, te.StatusCode)
	})

	t.Run("only system messages", func(t *testing.T) {
		_, err := newProvider(t, "http://127.0.0.1:0").Stream(context.Background(), []llmc.Message{{Role: llmc.RoleSystem, Content: "ctx"}}, nil)
		assert.ErrorIs(t, err, llmc.ErrEmptyConversation)
	})

	t.Run("error event mid-stream", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/event-stream")
			_, _ = io.WriteString(w, "event: content_block_delta\n"+
				`data: {"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"Malware is "}}`+"\n\n"+
				"event: error\n"+
				`data: {"type":"error","error":{"type":"overloaded_error","message":"Overloaded"}}`+"\n\n")
		}))
		defer srv.Close()

		var deltas []string
		text, err := newProvider(t, srv.URL).Stream(context.Background(), []llmc.Message{{Role: llmc.RoleUser, Content: "malware?"}}, func(d string) {
			deltas = append(deltas, d)
		})
		var te *llmc.TransportError
		require.ErrorAs(t, err, &te)
		assert.Equal(t, "overloaded_error: Overloaded", te.Reason)
		assert.True(t, llmc.IsRecoverable(err))
		assert.Equal(t, "Malware is ", text)
		assert.Equal(t, []string{"Malware is "}, deltas)
	})

	t.Run("[DONE] is not an end marker", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = io.WriteString(w, `data: [DONE]`+"\n\n"+
				`data: {"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"still here"}}`+"\n\n")
		}))
		defer srv.Close()

		text, err := newProvider(t, srv.URL).Stream(context.Background(), []llmc.Message{{Role: llmc.RoleUser, Content: "x"}}, nil)
		require.NoError(t, err)
		assert.Equal(t, "still here", text)
	})

	t.Run("no text events", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = io.WriteString(w, `data: {"type":"message_start"}`+"\n\n"+`data: {"type":"message_stop"}`+"\n\n")
		}))
		defer srv.Close()

		_, err := newProvider(t, srv.URL).Stream(context.Background(), []llmc.Message{{Role: llmc.RoleUser, Content: "x"}}, nil)
		assert.ErrorIs(t, err, llmc.ErrEmptyResponse)
	})
}

func TestProvider_Complete(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		want    string
		wantErr error
	}{
		{
			name: "text blocks",
			body: `{"id":"msg_1","content":[{"type":"text","text":"Enable MFA."},{"type":"text","text":"Use a password manager."}]}`,
			want: "Enable MFA.\nUse a password manager.",
		},
		{
			name:    "no text",
			body:    `{"id":"msg_2","content":[]}`,
			wantErr: llmc.ErrMalformedResponse,
		},
		{
			name:    "api error",
			body:    `{"error":{"type":"invalid_request_error","message":"bad"}}`,
			wantErr: llmc.ErrMalformedResponse,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_, _ = io.WriteString(w, tt.body)
			}))
			defer srv.Close()

			got, err := newProvider(t, srv.URL).Complete(context.Background(), []llmc.Message{{Role: llmc.RoleUser, Content: "tips?"}})
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestProvider_CompleteDeadline(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-release:
		}
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	_, err := newProvider(t, srv.URL).Complete(ctx, []llmc.Message{{Role: llmc.RoleUser, Content: "tips?"}})
	assert.ErrorIs(t, err, llmc.ErrTransport)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.True(t, llmc.IsRecoverable(err))
}
