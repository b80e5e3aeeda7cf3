package socket

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	chatservice "github.com/zhouzirui/folio-assist/backend/internal/service/chat"
	"github.com/zhouzirui/folio-assist/backend/internal/widget"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	maxMessage = 64 << 10
)

// Handler WebSocket聊天组件处理器
type Handler struct {
	chatSvc  *chatservice.Service
	upgrader websocket.Upgrader
}

// New 创建WebSocket处理器. checkOrigin may be nil to accept any origin.
func New(chatSvc *chatservice.Service, checkOrigin func(r *http.Request) bool) *Handler {
	if checkOrigin == nil {
		checkOrigin = func(r *http.Request) bool { return true }
	}
	return &Handler{
		chatSvc: chatSvc,
		upgrader: websocket.Upgrader{
			CheckOrigin:     checkOrigin,
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// RegisterRoutes 注册WebSocket路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/session/{sessionID}/ws", h.handleWebSocket)
}

type inboundMessage struct {
	Type          string `json:"type"`
	Text          string `json:"text,omitempty"`
	Value         string `json:"value,omitempty"`
	ScrollHeight  int    `json:"scrollHeight,omitempty"`
	Key           string `json:"key,omitempty"`
	ShiftKey      bool   `json:"shiftKey,omitempty"`
	ViewportWidth int    `json:"viewportWidth,omitempty"`
	Visible       *bool  `json:"visible,omitempty"`
}

type outgoingMessage struct {
	Type      string      `json:"type"`
	SessionID string      `json:"sessionId,omitempty"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp int64       `json:"timestamp"`
}

// handleWebSocket 处理WebSocket连接
func (h *Handler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	wg, err := h.chatSvc.Widget(r.Context(), sessionID)
	if err != nil {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Str("session", sessionID).Msg("[ws] upgrade failed")
		return
	}
	defer conn.Close()

	events, unsubscribe := wg.Subscribe(0)
	defer unsubscribe()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	outbound := make(chan outgoingMessage, 16)
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		h.writeLoop(ctx, conn, sessionID, events, outbound)
	}()

	outbound <- newMessage("snapshot", sessionID, map[string]any{
		"entries":  wg.Transcript(),
		"visible":  wg.Visible(),
		"input":    wg.InputState(),
		"settings": wg.Settings(),
	})

	log.Debug().Str("session", sessionID).Msg("[ws] connection opened")
	h.readLoop(r.Context(), conn, wg, sessionID, outbound, writerDone)

	cancel()
	<-writerDone
	log.Debug().Str("session", sessionID).Msg("[ws] connection closed")
}

func (h *Handler) readLoop(ctx context.Context, conn *websocket.Conn, wg *widget.Widget, sessionID string, outbound chan<- outgoingMessage, writerDone <-chan struct{}) {
	conn.SetReadLimit(maxMessage)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Debug().Err(err).Str("session", sessionID).Msg("[ws] read failed")
			}
			return
		}

		var msg inboundMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			msg = inboundMessage{Type: "invalid"}
		}

		reply, ok := h.dispatch(ctx, wg, sessionID, msg)
		if !ok {
			continue
		}
		select {
		case outbound <- reply:
		case <-writerDone:
			return
		}
	}
}

// dispatch applies one inbound message. Widget state changes reach the client
// through the event subscription; the direct reply only acknowledges.
func (h *Handler) dispatch(ctx context.Context, wg *widget.Widget, sessionID string, msg inboundMessage) (outgoingMessage, bool) {
	switch msg.Type {
	case "submit":
		turn, accepted := wg.Submit(ctx, msg.Text)
		data := map[string]any{"accepted": accepted}
		if accepted {
			data["turn"] = turn
		}
		return newMessage("submitted", sessionID, data), true
	case "input":
		wg.Input(msg.Value, msg.ScrollHeight)
		return outgoingMessage{}, false
	case "keydown":
		result := wg.KeyDown(ctx, widget.KeyEvent{
			Key:           msg.Key,
			Shift:         msg.ShiftKey,
			ViewportWidth: msg.ViewportWidth,
		})
		return newMessage("key", sessionID, result), true
	case "toggle":
		switch {
		case msg.Visible == nil:
			wg.Toggle()
		case *msg.Visible:
			wg.Show()
		default:
			wg.Close()
		}
		return outgoingMessage{}, false
	case "ping":
		return newMessage("pong", sessionID, nil), true
	default:
		return newMessage("error", sessionID, map[string]string{"error": "unsupported message type"}), true
	}
}

func (h *Handler) writeLoop(ctx context.Context, conn *websocket.Conn, sessionID string, events <-chan widget.Event, outbound <-chan outgoingMessage) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		var err error
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
			return
		case ev, ok := <-events:
			if !ok {
				// Session closed: end the connection so the read loop returns too.
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "session closed"), time.Now().Add(writeWait))
				_ = conn.Close()
				return
			}
			err = writeJSON(conn, newMessage(string(ev.Type), sessionID, ev))
		case msg := <-outbound:
			err = writeJSON(conn, msg)
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			err = conn.WriteMessage(websocket.PingMessage, nil)
		}
		if err != nil {
			if !errors.Is(err, websocket.ErrCloseSent) {
				log.Debug().Err(err).Str("session", sessionID).Msg("[ws] write failed")
			}
			_ = conn.Close()
			return
		}
	}
}

func writeJSON(conn *websocket.Conn, msg outgoingMessage) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(msg)
}

func newMessage(kind, sessionID string, data interface{}) outgoingMessage {
	return outgoingMessage{
		Type:      kind,
		SessionID: sessionID,
		Data:      data,
		Timestamp: time.Now().UnixMilli(),
	}
}
