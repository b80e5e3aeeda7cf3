package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompleteCommandPrintsReply(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{{"message": map[string]any{"role": "assistant", "content": "  hi there  "}}},
		})
	}))
	defer upstream.Close()

	t.Setenv("COMPLETION_ENDPOINT", upstream.URL)
	t.Setenv("COMPLETION_API_KEY", "sk-test")
	t.Setenv("LOG_LEVEL", "error")

	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"complete", "hello"})

	require.NoError(t, cmd.Execute())
	assert.Equal(t, "hi there\n", out.String())
}

func TestCompleteCommandPrintsFallbackOnFailure(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer upstream.Close()

	t.Setenv("COMPLETION_ENDPOINT", upstream.URL)
	t.Setenv("COMPLETION_API_KEY", "sk-test")
	t.Setenv("LOG_LEVEL", "error")

	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"complete", "hello"})

	require.Error(t, cmd.Execute())
	assert.Contains(t, out.String(), "SORRY!")
	assert.NotContains(t, out.String(), "sk-test")
}
