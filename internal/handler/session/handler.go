package session

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	chatService "github.com/zhouzirui/folio-assist/backend/internal/service/chat"
	"github.com/zhouzirui/folio-assist/backend/internal/widget"
	"github.com/zhouzirui/folio-assist/backend/pkg/utils"
)

// Handler 聊天组件会话的HTTP处理器
type Handler struct {
	chatSvc *chatService.Service
}

// New 创建会话处理器
func New(chatSvc *chatService.Service) *Handler {
	return &Handler{chatSvc: chatSvc}
}

// RegisterRoutes 注册会话相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/session", h.handleCreateSession)
	r.Get("/session/{sessionID}", h.handleGetSession)
	r.Delete("/session/{sessionID}", h.handleCloseSession)
	r.Get("/session/{sessionID}/transcript", h.handleTranscript)
	r.Post("/session/{sessionID}/messages", h.handleSubmit)
	r.Post("/session/{sessionID}/input", h.handleInput)
	r.Post("/session/{sessionID}/keydown", h.handleKeyDown)
	r.Post("/session/{sessionID}/toggle", h.handleToggle)
}

type sessionView struct {
	ID        string            `json:"id"`
	CreatedAt time.Time         `json:"createdAt"`
	Visible   bool              `json:"visible"`
	Settings  widget.Settings   `json:"settings"`
	Input     widget.InputState `json:"input"`
}

// handleCreateSession 创建会话
func (h *Handler) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	session, err := h.chatSvc.CreateSession(r.Context())
	if errors.Is(err, chatService.ErrServiceClosed) {
		utils.RespondError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	if err != nil {
		utils.RespondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	wg, err := h.chatSvc.Widget(r.Context(), session.ID)
	if err != nil {
		respondLookupError(w, err)
		return
	}

	utils.RespondJSON(w, http.StatusCreated, sessionView{
		ID:        session.ID,
		CreatedAt: session.CreatedAt,
		Visible:   wg.Visible(),
		Settings:  wg.Settings(),
		Input:     wg.InputState(),
	})
}

func (h *Handler) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	session, err := h.chatSvc.GetSession(r.Context(), sessionID)
	if err != nil {
		respondLookupError(w, err)
		return
	}
	wg, err := h.chatSvc.Widget(r.Context(), sessionID)
	if err != nil {
		respondLookupError(w, err)
		return
	}

	utils.RespondJSON(w, http.StatusOK, sessionView{
		ID:        session.ID,
		CreatedAt: session.CreatedAt,
		Visible:   wg.Visible(),
		Settings:  wg.Settings(),
		Input:     wg.InputState(),
	})
}

func (h *Handler) handleCloseSession(w http.ResponseWriter, r *http.Request) {
	if err := h.chatSvc.CloseSession(r.Context(), chi.URLParam(r, "sessionID")); err != nil {
		respondLookupError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleTranscript(w http.ResponseWriter, r *http.Request) {
	wg, err := h.chatSvc.Widget(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		respondLookupError(w, err)
		return
	}

	utils.RespondJSON(w, http.StatusOK, map[string]any{
		"entries": wg.Transcript(),
		"turns":   wg.Turns(),
	})
}

// handleSubmit 提交一条用户消息
func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	wg, err := h.chatSvc.Widget(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		respondLookupError(w, err)
		return
	}

	var payload struct {
		Text string `json:"text"`
	}
	if err := utils.DecodeJSON(r, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	turn, ok := wg.Submit(r.Context(), payload.Text)
	if !ok {
		utils.RespondJSON(w, http.StatusOK, map[string]any{"accepted": false})
		return
	}

	response := map[string]any{
		"accepted": true,
		"turn":     turn,
	}
	if entry, found := wg.Entry(turn.OutgoingID); found {
		response["entry"] = entry
	}
	utils.RespondJSON(w, http.StatusAccepted, response)
}

func (h *Handler) handleInput(w http.ResponseWriter, r *http.Request) {
	wg, err := h.chatSvc.Widget(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		respondLookupError(w, err)
		return
	}

	var payload struct {
		Value        string `json:"value"`
		ScrollHeight int    `json:"scrollHeight"`
	}
	if err := utils.DecodeJSON(r, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	utils.RespondJSON(w, http.StatusOK, wg.Input(payload.Value, payload.ScrollHeight))
}

func (h *Handler) handleKeyDown(w http.ResponseWriter, r *http.Request) {
	wg, err := h.chatSvc.Widget(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		respondLookupError(w, err)
		return
	}

	var payload struct {
		widget.KeyEvent
		Value        *string `json:"value,omitempty"`
		ScrollHeight int     `json:"scrollHeight"`
	}
	if err := utils.DecodeJSON(r, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if payload.Value != nil {
		wg.Input(*payload.Value, payload.ScrollHeight)
	}

	result := wg.KeyDown(r.Context(), payload.KeyEvent)
	status := http.StatusOK
	if result.Accepted {
		status = http.StatusAccepted
	}
	utils.RespondJSON(w, status, result)
}

func (h *Handler) handleToggle(w http.ResponseWriter, r *http.Request) {
	wg, err := h.chatSvc.Widget(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		respondLookupError(w, err)
		return
	}

	var payload struct {
		Visible *bool `json:"visible"`
	}
	if err := utils.DecodeJSON(r, &payload); err != nil && !errors.Is(err, io.EOF) {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	switch {
	case payload.Visible == nil:
		wg.Toggle()
	case *payload.Visible:
		wg.Show()
	default:
		wg.Close()
	}

	utils.RespondJSON(w, http.StatusOK, map[string]bool{"visible": wg.Visible()})
}

func respondLookupError(w http.ResponseWriter, err error) {
	if errors.Is(err, chatService.ErrSessionNotFound) {
		utils.RespondError(w, http.StatusNotFound, err.Error())
		return
	}
	log.Error().Err(err).Msg("[session] lookup failed")
	utils.RespondError(w, http.StatusInternalServerError, "internal error")
}
