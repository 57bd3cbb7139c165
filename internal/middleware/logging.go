package middleware

import (
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
)

const RequestIDHeader = "X-Request-Id"

// RequestLogger attaches logger to the request context, assigns a request id,
// and writes one access line per request.
func RequestLogger(logger zerolog.Logger) func(http.Handler) http.Handler {
	attach := hlog.NewHandler(logger)
	requestID := hlog.RequestIDHandler("request_id", RequestIDHeader)
	access := hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
		var ev *zerolog.Event
		switch {
		case status >= 500:
			ev = hlog.FromRequest(r).Error()
		case status >= 400:
			ev = hlog.FromRequest(r).Warn()
		default:
			ev = hlog.FromRequest(r).Info()
		}
		ev.Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", status).
			Int("size", size).
			Dur("duration", duration).
			Msg("request")
	})

	return func(next http.Handler) http.Handler {
		return attach(requestID(access(next)))
	}
}
