// Package httpapi exposes the account and resume services over JSON/HTTP.
package httpapi

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/dmitrymomot/credkit/core"
	"github.com/dmitrymomot/credkit/pkg/httpserver"
	"github.com/dmitrymomot/credkit/pkg/jwt"
	"github.com/dmitrymomot/credkit/pkg/metrics"
	"github.com/dmitrymomot/credkit/pkg/ratelimiter"
	"github.com/dmitrymomot/credkit/pkg/requestid"
	"github.com/dmitrymomot/credkit/svc/account"
	"github.com/dmitrymomot/credkit/svc/resume"
)

// ErrMissingDependency is returned by New when a required service is nil.
var ErrMissingDependency = errors.New("httpapi: missing dependency")

// Config holds transport settings.
type Config struct {
	// TrustProxy keys rate limits by the proxy-reported client address.
	TrustProxy bool `env:"HTTP_TRUST_PROXY" envDefault:"false"`
	// AuthLimit throttles unauthenticated credential endpoints per client.
	AuthLimit ratelimiter.Config `envPrefix:"AUTH_"`
}

// Deps are the collaborators of the router.
type Deps struct {
	Accounts *account.Service
	Resumes  *resume.Service
	Tokens   *jwt.Service

	// Limits stores rate limit buckets. Nil disables throttling.
	Limits ratelimiter.Store
	// Metrics receives per-request observations. Nil means metrics.Noop.
	Metrics metrics.Recorder
	// Gatherer backs GET /metrics. Nil leaves the endpoint unmounted.
	Gatherer prometheus.Gatherer
	// Checks back GET /readyz.
	Checks []httpserver.Check
	Log    *slog.Logger
}

// New builds the HTTP handler.
func New(deps Deps, cfg Config) (http.Handler, error) {
	if deps.Accounts == nil || deps.Resumes == nil || deps.Tokens == nil {
		return nil, ErrMissingDependency
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.Noop{}
	}
	if deps.Log == nil {
		deps.Log = slog.New(slog.DiscardHandler)
	}

	throttle, err := authThrottle(deps.Limits, cfg)
	if err != nil {
		return nil, err
	}

	h := &handler{
		accounts: deps.Accounts,
		resumes:  deps.Resumes,
		log:      deps.Log,
	}

	authenticate := jwt.MiddlewareWithConfig(jwt.MiddlewareConfig{
		Service:      deps.Tokens,
		Kind:         jwt.KindAccess,
		ErrorHandler: writeAuthError,
	})
	optionalAuth := jwt.MiddlewareWithConfig(jwt.MiddlewareConfig{
		Service:      deps.Tokens,
		Kind:         jwt.KindAccess,
		ErrorHandler: writeAuthError,
		Optional:     true,
	})

	r := chi.NewRouter()
	r.Use(requestid.Middleware)
	r.Use(recoverer(deps.Log))
	r.Use(observe(deps.Metrics, deps.Log))
	r.Use(middleware.NoCache)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		_ = core.WriteError(w, core.ErrNotFound)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		_ = core.WriteJSON(w, http.StatusMethodNotAllowed, core.JSONResponse{
			Error: &core.ErrorDetail{Code: "method_not_allowed", Message: "Method not allowed."},
		})
	})

	r.Get("/healthz", httpserver.HealthCheckHandler(deps.Log))
	r.Get("/readyz", httpserver.HealthCheckHandler(deps.Log, deps.Checks...))
	if deps.Gatherer != nil {
		r.Handle("/metrics", metrics.Handler(deps.Gatherer))
	}

	r.Route("/auth", func(r chi.Router) {
		// Credential entry points.
		r.Group(func(r chi.Router) {
			r.Use(throttle)
			r.Post("/register", h.register)
			r.Post("/verify-otp", h.verifyOTP)
			r.Post("/resend-otp", h.resendOTP)
			r.Post("/login", h.login)
			r.Post("/login-totp", h.loginTOTP)
			r.Post("/refresh", h.refresh)
			r.Post("/password-reset", h.requestPasswordReset)
			r.Post("/password-reset/confirm", h.confirmPasswordReset)
		})

		r.Group(func(r chi.Router) {
			r.Use(authenticate)
			r.Get("/me", h.me)
			r.With(throttle).Delete("/me", h.deleteAccount)
			r.Post("/totp/enable", h.enableTOTP)
			r.With(throttle).Post("/totp/verify", h.verifyTOTP)
			r.With(throttle).Post("/totp/disable", h.disableTOTP)
		})
	})

	r.Route("/resume", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(authenticate)
			r.Post("/upload", h.upload)
			r.Get("/list", h.listDocuments)
			r.Delete("/{resume_id}", h.deleteDocument)
			r.Patch("/{resume_id}/visibility", h.setVisibility)
		})

		r.Group(func(r chi.Router) {
			r.Use(optionalAuth)
			r.Get("/download/{resume_id}", h.download)
			r.Get("/{resume_id}", h.document)
		})
	})

	return r, nil
}

func authThrottle(store ratelimiter.Store, cfg Config) (func(http.Handler) http.Handler, error) {
	if store == nil {
		return func(next http.Handler) http.Handler { return next }, nil
	}

	bucket, err := ratelimiter.NewBucket(store, cfg.AuthLimit)
	if err != nil {
		return nil, err
	}

	key := ratelimiter.ClientIP
	if cfg.TrustProxy {
		key = ratelimiter.ForwardedClientIP
	}

	return ratelimiter.Middleware(bucket, key,
		ratelimiter.WithPrefix("auth"),
		ratelimiter.WithLimitHandler(func(w http.ResponseWriter, _ *http.Request, _ error) {
			_ = core.WriteError(w, core.ErrTooManyRequests)
		}),
		ratelimiter.WithErrorHandler(func(w http.ResponseWriter, _ *http.Request, err error) {
			_ = core.WriteError(w, core.Internal(err))
		}),
	), nil
}

func writeAuthError(w http.ResponseWriter, _ *http.Request, _ error) {
	w.Header().Set("WWW-Authenticate", "Bearer")
	_ = core.WriteError(w, core.ErrInvalidToken)
}
