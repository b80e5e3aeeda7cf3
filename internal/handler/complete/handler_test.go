package complete

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/folio-assist/backend/internal/widget"
)

func setupRouter(completer widget.Completer) *chi.Mux {
	r := chi.NewRouter()
	New(completer, "").RegisterRoutes(r)
	return r
}

func post(r http.Handler, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/complete", bytes.NewReader([]byte(body)))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	return resp
}

func TestCompleteSuccess(t *testing.T) {
	var got string
	r := setupRouter(widget.CompleterFunc(func(_ context.Context, text string) (string, error) {
		got = text
		return "\n Hi there \n", nil
	}))

	resp := post(r, `{"text":"  hello  "}`)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	if got != "hello" {
		t.Fatalf("expected trimmed text forwarded, got %q", got)
	}

	var body Response
	if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Text != "Hi there" || body.Error {
		t.Fatalf("unexpected body %+v", body)
	}
}

func TestCompleteFailureReturnsFallback(t *testing.T) {
	r := setupRouter(widget.CompleterFunc(func(context.Context, string) (string, error) {
		return "", errors.New("status 401: invalid api key sk-abc")
	}))

	resp := post(r, `{"text":"hello"}`)
	if resp.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", resp.Code)
	}

	var body Response
	if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !body.Error || body.Text != widget.DefaultSettings().FallbackText {
		t.Fatalf("unexpected body %+v", body)
	}
	if bytes.Contains(resp.Body.Bytes(), []byte("sk-abc")) {
		t.Fatal("transport error details leaked to the client")
	}
}

func TestCompleteRejectsBlankText(t *testing.T) {
	called := false
	r := setupRouter(widget.CompleterFunc(func(context.Context, string) (string, error) {
		called = true
		return "", nil
	}))

	for _, body := range []string{`{"text":"   "}`, `{}`, `not json`} {
		if resp := post(r, body); resp.Code != http.StatusBadRequest {
			t.Fatalf("body %s: expected 400, got %d", body, resp.Code)
		}
	}
	if called {
		t.Fatal("blank input must not reach the completion service")
	}
}
