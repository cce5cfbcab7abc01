package httpapi

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/dmitrymomot/credkit/binder"
	"github.com/dmitrymomot/credkit/core"
	"github.com/dmitrymomot/credkit/pkg/jwt"
	"github.com/dmitrymomot/credkit/pkg/logger"
	"github.com/dmitrymomot/credkit/svc/account"
	"github.com/dmitrymomot/credkit/svc/resume"
)

type handler struct {
	accounts *account.Service
	resumes  *resume.Service
	log      *slog.Logger
}

// bind decodes a JSON body and renders the failure itself. It reports
// whether the handler should continue.
func (h *handler) bind(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := binder.JSON(w, r, v, 0); err != nil {
		h.fail(w, r, bindError(err))
		return false
	}
	return true
}

func bindError(err error) error {
	switch {
	case errors.Is(err, binder.ErrTooLarge):
		return core.ErrPayloadTooLarge.Wrap(err)
	case errors.Is(err, binder.ErrMissingFile):
		return core.ValidationError{"file": {"file is required"}}
	default:
		return core.ErrBadRequest.Wrap(err)
	}
}

// fail renders err. Internal failures are logged with their cause; the
// client only sees the public part.
func (h *handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	if core.KindOf(err) == core.KindInternal {
		h.log.ErrorContext(r.Context(), "request failed",
			logger.Component("http"),
			logger.Error(err),
		)
	}
	_ = core.WriteError(w, err)
}

func (h *handler) ok(w http.ResponseWriter, status int, body core.JSONResponse) {
	_ = core.WriteJSON(w, status, body)
}

// principal returns the authenticated caller, or nil for anonymous requests.
func principal(r *http.Request) *resume.Principal {
	claims, ok := jwt.ClaimsFromContext(r.Context())
	if !ok || claims.Subject == "" {
		return nil
	}
	return &resume.Principal{UserID: claims.Subject, Role: account.Role(claims.Role)}
}

func subject(r *http.Request) string {
	if p := principal(r); p != nil {
		return p.UserID
	}
	return ""
}
