package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/zhouzirui/folio-assist/backend/internal/config"
	"github.com/zhouzirui/folio-assist/backend/internal/handler"
	"github.com/zhouzirui/folio-assist/backend/internal/service/ai"
	"github.com/zhouzirui/folio-assist/backend/internal/service/chat"
	"github.com/zhouzirui/folio-assist/backend/internal/widget"
)

const (
	shutdownTimeout = 10 * time.Second
	drainTimeout    = 30 * time.Second
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg)
		},
	}
}

func serve(ctx context.Context, cfg *config.Config) error {
	var completer widget.Completer
	aiService, err := ai.NewService(ctx, cfg)
	if err != nil {
		// Widgets still run and answer every turn with the fallback text.
		log.Warn().Err(err).Msg("[ai] completion provider unavailable")
	} else {
		completer = aiService
		log.Info().Str("provider", aiService.Provider()).Msg("[ai] completion provider ready")
	}

	settings := cfg.Settings.WidgetSettings()
	chatService := chat.NewService(chat.NewWidgetFactory(completer, settings))

	router := handler.NewRouter(chatService, completer, handler.RouterConfig{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		FallbackText:   settings.FallbackText,
	})

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	ln, err := net.Listen("tcp", srv.Addr)
	if err != nil {
		return err
	}
	return runServer(ctx, srv, ln, chatService, drainTimeout)
}

// runServer serves on ln until ctx is done. Shutdown first ends every
// request context and session so long-lived streams and websockets return,
// then waits for in-flight turns on a budget of its own.
func runServer(ctx context.Context, srv *http.Server, ln net.Listener, chatService *chat.Service, drain time.Duration) error {
	baseCtx, cancelBase := context.WithCancel(context.WithoutCancel(ctx))
	defer cancelBase()
	srv.BaseContext = func(net.Listener) context.Context { return baseCtx }
	srv.RegisterOnShutdown(func() {
		cancelBase()
		chatService.CloseAll()
	})

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info().Str("addr", ln.Addr().String()).Msg("[server] listening")
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("[server] shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		err := srv.Shutdown(shutdownCtx)

		drainCtx, cancelDrain := context.WithTimeout(context.Background(), drain)
		defer cancelDrain()
		if drainErr := chatService.Shutdown(drainCtx); drainErr != nil {
			log.Warn().Err(drainErr).Msg("[server] in-flight turns did not settle before shutdown")
		}
		return err
	})

	return g.Wait()
}
