package middleware

import (
	"net/http"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

// RequestLogger writes one access log line per request through logger. A
// pointer is taken so the router follows later changes to the global logger.
func RequestLogger(logger *zerolog.Logger) func(http.Handler) http.Handler {
	return chimiddleware.RequestLogger(&requestFormatter{logger: logger})
}

type requestFormatter struct {
	logger *zerolog.Logger
}

func (f *requestFormatter) NewLogEntry(r *http.Request) chimiddleware.LogEntry {
	return &requestEntry{
		logger: f.logger.With().
			Str("request_id", chimiddleware.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("remote", r.RemoteAddr).
			Logger(),
	}
}

type requestEntry struct {
	logger zerolog.Logger
}

func (e *requestEntry) Write(status, bytes int, _ http.Header, elapsed time.Duration, _ interface{}) {
	var event *zerolog.Event
	switch {
	case status >= http.StatusInternalServerError:
		event = e.logger.Error()
	case status >= http.StatusBadRequest:
		event = e.logger.Warn()
	default:
		event = e.logger.Info()
	}
	event.Int("status", status).Int("bytes", bytes).Dur("elapsed", elapsed).Msg("[http] request")
}

func (e *requestEntry) Panic(v interface{}, stack []byte) {
	e.logger.Error().Interface("panic", v).Bytes("stack", stack).Msg("[http] panic")
}
