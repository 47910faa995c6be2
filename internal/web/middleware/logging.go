// Package middleware provides HTTP middleware for the grid server.
package middleware

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/JonMunkholm/gridkit/internal/logging"
)

// Logger logs one structured entry per request, tagged with chi's request
// ID. 5xx responses log at error level and 4xx at warn.
//
// Fields: method, path, route (the matched chi pattern), grid, status,
// duration_ms, ip (RemoteAddr after TrustedRealIP), bytes.
func Logger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		level := slog.LevelInfo
		switch {
		case status >= 500:
			level = slog.LevelError
		case status >= 400:
			level = slog.LevelWarn
		}

		attrs := []any{
			"method", r.Method,
			"path", r.URL.Path,
			"status", status,
			"duration_ms", time.Since(start).Milliseconds(),
			"ip", r.RemoteAddr,
			"bytes", ww.BytesWritten(),
		}
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				attrs = append(attrs, "route", pattern)
			}
			if key := rctx.URLParam("gridKey"); key != "" {
				attrs = append(attrs, "grid", key)
			}
		}
		logging.FromContext(r.Context()).Log(r.Context(), level, "request", attrs...)
	})
}
