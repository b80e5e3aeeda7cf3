package handler

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	chatService "github.com/zhouzirui/folio-assist/backend/internal/service/chat"
	"github.com/zhouzirui/folio-assist/backend/internal/widget"
)

func TestRouterMountsAPI(t *testing.T) {
	echo := widget.CompleterFunc(func(_ context.Context, text string) (string, error) { return text, nil })
	chatSvc := chatService.NewService(chatService.NewWidgetFactory(echo, widget.DefaultSettings()))
	r := NewRouter(chatSvc, echo, RouterConfig{})

	for _, tc := range []struct {
		method, path, body string
		want               int
	}{
		{http.MethodGet, "/healthz", "", http.StatusOK},
		{http.MethodPost, "/api/session", "", http.StatusCreated},
		{http.MethodPost, "/api/complete", `{"text":"hi"}`, http.StatusOK},
		{http.MethodGet, "/api/session/missing/transcript", "", http.StatusNotFound},
	} {
		req := httptest.NewRequest(tc.method, tc.path, bytes.NewReader([]byte(tc.body)))
		resp := httptest.NewRecorder()
		r.ServeHTTP(resp, req)
		if resp.Code != tc.want {
			t.Fatalf("%s %s: expected %d, got %d", tc.method, tc.path, tc.want, resp.Code)
		}
	}
}

func TestRouterWithoutCompleter(t *testing.T) {
	chatSvc := chatService.NewService(chatService.NewWidgetFactory(nil, widget.DefaultSettings()))
	r := NewRouter(chatSvc, nil, RouterConfig{})

	req := httptest.NewRequest(http.MethodPost, "/api/complete", bytes.NewReader([]byte(`{"text":"hi"}`)))
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	if resp.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", resp.Code)
	}
}
