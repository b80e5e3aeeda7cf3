package completion

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/folio-assist/backend/internal/config"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return NewClient(config.WidgetConfig{
		Endpoint:   srv.URL + "/v1/chat/completions",
		Model:      "gpt-3.5-turbo",
		Credential: config.Secret("sk-test"),
		Timeout:    5 * time.Second,
	})
}

func TestCompleteSendsWireFormat(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		body, err := io.ReadAll(r.Body)
		assert.NoError(t, err)
		assert.JSONEq(t, `{"model":"gpt-3.5-turbo","messages":[{"role":"user","content":"hello"}]}`, string(body))

		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"role": "assistant", "content": "  Hi there\n"}},
			},
		})
	})

	got, err := client.Complete(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, "  Hi there\n", got)
}

func TestCompleteFailures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		status    int
		body      string
		malformed bool
	}{
		{name: "unauthorized", status: http.StatusUnauthorized, body: `{"error":{"message":"bad key"}}`},
		{name: "server error", status: http.StatusBadGateway, body: `upstream down`},
		{name: "not json", status: http.StatusOK, body: `<html>`, malformed: true},
		{name: "missing choices", status: http.StatusOK, body: `{"choices":[]}`, malformed: true},
		{name: "null content", status: http.StatusOK, body: `{"choices":[{"message":{"role":"assistant","content":null}}]}`, malformed: true},
		{name: "no message", status: http.StatusOK, body: `{"choices":[{}]}`, malformed: true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			})

			_, err := client.Complete(context.Background(), "hello")
			require.Error(t, err)
			assert.NotContains(t, err.Error(), "sk-test")

			if tt.malformed {
				assert.ErrorIs(t, err, ErrMalformedResponse)
				return
			}
			var statusErr *StatusError
			require.True(t, errors.As(err, &statusErr))
			assert.Equal(t, tt.status, statusErr.Code)
		})
	}
}

func TestCompleteTransportError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.NotFoundHandler())
	endpoint := srv.URL
	srv.Close()

	client := NewClient(config.WidgetConfig{Endpoint: endpoint, Model: "m", Credential: config.Secret("sk-test")})
	_, err := client.Complete(context.Background(), "hello")
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "sk-test")
}

func TestGenerateMapsSchemaMessages(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var req Request
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		if assert.Len(t, req.Messages, 1) {
			assert.Equal(t, "user", req.Messages[0].Role)
			assert.Equal(t, "ping", req.Messages[0].Content)
		}
		_, _ = io.WriteString(w, `{"choices":[{"message":{"role":"assistant","content":"pong"}}]}`)
	})

	msg, err := client.Generate(context.Background(), []*schema.Message{schema.UserMessage("ping")})
	require.NoError(t, err)
	assert.Equal(t, schema.Assistant, msg.Role)
	assert.Equal(t, "pong", msg.Content)

	stream, err := client.Stream(context.Background(), []*schema.Message{schema.UserMessage("ping")})
	require.NoError(t, err)
	defer stream.Close()
	chunk, err := stream.Recv()
	require.NoError(t, err)
	assert.Equal(t, "pong", chunk.Content)
	_, err = stream.Recv()
	assert.ErrorIs(t, err, io.EOF)
}
