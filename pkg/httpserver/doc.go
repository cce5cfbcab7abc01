// Package httpserver provides a lightweight wrapper around net/http that adds
// graceful shutdown, configurable server timeouts, health-check handlers, and
// structured logging via slog.
//
// Run blocks until the context is cancelled, Shutdown is called, or an
// interrupt/TERM signal is received, and then shuts the server down using
// http.Server.Shutdown with a configurable deadline. Start hooks run once the
// listener is bound; stop hooks run after shutdown completes.
//
// # Usage
//
//	r := chi.NewRouter()
//	r.Get("/healthz", httpserver.HealthCheckHandler(log))
//	r.Get("/readyz", httpserver.HealthCheckHandler(log,
//		httpserver.Check{Name: "postgres", Fn: pg.Healthcheck(pool)},
//	))
//
//	srv := httpserver.NewFromConfig(cfg, httpserver.WithLogger(log))
//	if err := srv.Run(ctx, r); err != nil {
//		log.Error("server stopped", logger.Error(err))
//	}
//
// # Errors
//
// Run wraps listen and serve errors with ErrStart, while Shutdown wraps
// underlying shutdown errors with ErrShutdown.
package httpserver
