package complete

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/zhouzirui/folio-assist/backend/internal/widget"
	"github.com/zhouzirui/folio-assist/backend/pkg/utils"
)

// Handler is the stateless server-side proxy to the completion service. The
// browser sends text only; the credential stays on the server.
type Handler struct {
	completer widget.Completer
	fallback  string
}

// New creates the proxy handler.
func New(completer widget.Completer, fallback string) *Handler {
	if fallback == "" {
		fallback = widget.DefaultSettings().FallbackText
	}
	return &Handler{completer: completer, fallback: fallback}
}

// RegisterRoutes 注册代理路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/complete", h.handleComplete)
}

// Response is the proxy reply. Error marks the fallback text for styling.
type Response struct {
	Text  string `json:"text"`
	Error bool   `json:"error"`
}

func (h *Handler) handleComplete(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Text string `json:"text"`
	}
	if err := utils.DecodeJSON(r, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	text := strings.TrimSpace(payload.Text)
	if text == "" {
		utils.RespondError(w, http.StatusBadRequest, "text is required")
		return
	}

	reply, err := h.completer.Complete(r.Context(), text)
	if err != nil {
		log.Warn().Err(err).Msg("[complete] completion failed, returning fallback")
		utils.RespondJSON(w, http.StatusBadGateway, Response{Text: h.fallback, Error: true})
		return
	}

	utils.RespondJSON(w, http.StatusOK, Response{Text: strings.TrimSpace(reply)})
}
