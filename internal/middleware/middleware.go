package middleware

import (
	"log/slog"
	"net/http"
	"time"
)

type Link func(http.Handler) http.Handler

func Attach(handler http.Handler, middlewares ...Link) http.Handler {
	m := handler
	for i := len(middlewares) - 1; i >= 0; i-- {
		m = middlewares[i](m)
	}
	return m
}

func Logging(logger *slog.Logger) Link {
	return func(handler http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			handler.ServeHTTP(w, r)

			logger.Info("", slog.String("method", r.Method), slog.String("path", r.URL.EscapedPath()), slog.Duration("dur", time.Since(start)))
		})
	}
}
