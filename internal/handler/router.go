package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"github.com/zhouzirui/folio-assist/backend/internal/handler/complete"
	"github.com/zhouzirui/folio-assist/backend/internal/handler/session"
	"github.com/zhouzirui/folio-assist/backend/internal/handler/socket"
	"github.com/zhouzirui/folio-assist/backend/internal/handler/stream"
	middlewarePkg "github.com/zhouzirui/folio-assist/backend/internal/middleware"
	chatService "github.com/zhouzirui/folio-assist/backend/internal/service/chat"
	"github.com/zhouzirui/folio-assist/backend/internal/widget"
	"github.com/zhouzirui/folio-assist/backend/pkg/utils"
)

// RouterConfig carries what the router needs besides the services.
type RouterConfig struct {
	AllowedOrigins []string
	FallbackText   string
}

// NewRouter wires HTTP routes to core services. completer may be nil when no
// provider is configured; the stateless proxy is then not mounted.
func NewRouter(chatSvc *chatService.Service, completer widget.Completer, cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middlewarePkg.RequestLogger(&log.Logger))
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS(cfg.AllowedOrigins))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		utils.RespondJSON(w, http.StatusOK, map[string]any{
			"status":   "ok",
			"sessions": chatSvc.Len(),
		})
	})

	r.Route("/api", func(api chi.Router) {
		session.New(chatSvc).RegisterRoutes(api)
		stream.New(chatSvc).RegisterRoutes(api)
		socket.New(chatSvc, middlewarePkg.OriginAllowed(cfg.AllowedOrigins)).RegisterRoutes(api)

		if completer != nil {
			complete.New(completer, cfg.FallbackText).RegisterRoutes(api)
		} else {
			api.Post("/complete", func(w http.ResponseWriter, r *http.Request) {
				utils.RespondError(w, http.StatusServiceUnavailable, "completion service unavailable")
			})
		}
	})

	return r
}
