package httpapi

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dmitrymomot/credkit/core"
	"github.com/dmitrymomot/credkit/pkg/logger"
	"github.com/dmitrymomot/credkit/pkg/metrics"
)

// observe records status and latency per route pattern, so path
// parameters never become label values.
func observe(rec metrics.Recorder, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			route := "unmatched"
			if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
				route = rctx.RoutePattern()
			}
			elapsed := time.Since(start)

			rec.ObserveHTTP(r.Method, route, status, elapsed)
			log.DebugContext(r.Context(), "request served",
				logger.Component("http"),
				slog.String("method", r.Method),
				slog.String("route", route),
				slog.Int("status", status),
				logger.Duration(elapsed),
			)
		})
	}
}

// recoverer turns a handler panic into a generic 500.
func recoverer(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rvr := recover()
				if rvr == nil {
					return
				}
				if rvr == http.ErrAbortHandler {
					panic(rvr)
				}
				log.ErrorContext(r.Context(), "handler panic",
					logger.Component("http"),
					logger.Error(fmt.Errorf("%v", rvr)),
				)
				_ = core.WriteError(w, core.Internal(nil))
			}()
			next.ServeHTTP(w, r)
		})
	}
}
