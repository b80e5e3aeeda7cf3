package stream

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	chatService "github.com/zhouzirui/folio-assist/backend/internal/service/chat"
	"github.com/zhouzirui/folio-assist/backend/internal/widget"
	"github.com/zhouzirui/folio-assist/backend/pkg/utils"
)

const defaultKeepAlive = 15 * time.Second

// Handler pushes widget events to the browser via Server-Sent Events.
type Handler struct {
	chatSvc   *chatService.Service
	keepAlive time.Duration
}

// New creates a new stream handler
func New(chatSvc *chatService.Service) *Handler {
	return &Handler{chatSvc: chatSvc, keepAlive: defaultKeepAlive}
}

// RegisterRoutes 注册事件流路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/session/{sessionID}/events", h.handleEvents)
}

// handleEvents opens with a snapshot of the transcript, then relays every
// widget event until the client goes away.
func (h *Handler) handleEvents(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	wg, err := h.chatSvc.Widget(r.Context(), sessionID)
	if err != nil {
		utils.RespondError(w, http.StatusNotFound, err.Error())
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		utils.RespondError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	events, unsubscribe := wg.Subscribe(0)
	defer unsubscribe()

	utils.SetupSSEHeaders(w)
	w.WriteHeader(http.StatusOK)

	if err := utils.SendSSEEvent(w, flusher, "snapshot", map[string]any{
		"sessionId": sessionID,
		"entries":   wg.Transcript(),
		"visible":   wg.Visible(),
		"input":     wg.InputState(),
	}); err != nil {
		return
	}

	ctx := r.Context()
	log.Debug().Str("session", sessionID).Msg("[sse] stream opened")

	ticker := time.NewTicker(h.keepAlive)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Debug().Str("session", sessionID).Msg("[sse] stream closed by client")
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if err := sendEvent(w, flusher, ev); err != nil {
				log.Debug().Err(err).Str("session", sessionID).Msg("[sse] write failed")
				return
			}
		case <-ticker.C:
			if err := utils.SendSSEComment(w, flusher, "keep-alive"); err != nil {
				return
			}
		}
	}
}

func sendEvent(w http.ResponseWriter, flusher http.Flusher, ev widget.Event) error {
	return utils.SendSSEEvent(w, flusher, string(ev.Type), ev)
}
