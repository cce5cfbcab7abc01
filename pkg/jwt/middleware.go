package jwt

import (
	"net/http"
	"strings"
)

// TokenExtractorFunc extracts a token from a request.
type TokenExtractorFunc func(r *http.Request) (string, error)

// ErrorHandlerFunc renders an authentication failure.
type ErrorHandlerFunc func(w http.ResponseWriter, r *http.Request, err error)

// MiddlewareConfig configures Authenticate.
type MiddlewareConfig struct {
	Service      *Service
	Kind         Kind               // Expected token kind, access by default
	Extractor    TokenExtractorFunc // Bearer header by default
	ErrorHandler ErrorHandlerFunc   // Plain 401 by default
	Optional     bool               // Pass requests without a token through unauthenticated
}

// Authenticate rejects requests without a valid token of the given kind.
func Authenticate(service *Service, kind Kind) func(next http.Handler) http.Handler {
	return MiddlewareWithConfig(MiddlewareConfig{Service: service, Kind: kind})
}

// OptionalAuthenticate verifies a token when one is present. Requests without
// a token pass through; requests with an invalid token are rejected.
func OptionalAuthenticate(service *Service, kind Kind) func(next http.Handler) http.Handler {
	return MiddlewareWithConfig(MiddlewareConfig{Service: service, Kind: kind, Optional: true})
}

// MiddlewareWithConfig builds the middleware from cfg.
func MiddlewareWithConfig(cfg MiddlewareConfig) func(next http.Handler) http.Handler {
	if cfg.Kind == "" {
		cfg.Kind = KindAccess
	}
	if cfg.Extractor == nil {
		cfg.Extractor = BearerTokenExtractor
	}
	if cfg.ErrorHandler == nil {
		cfg.ErrorHandler = defaultErrorHandler
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, err := cfg.Extractor(r)
			if err != nil {
				if cfg.Optional {
					next.ServeHTTP(w, r)
					return
				}
				cfg.ErrorHandler(w, r, ErrInvalidToken)
				return
			}

			claims, err := cfg.Service.Verify(raw, cfg.Kind)
			if err != nil {
				cfg.ErrorHandler(w, r, err)
				return
			}

			ctx := SetToken(r.Context(), raw)
			ctx = SetClaims(ctx, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func defaultErrorHandler(w http.ResponseWriter, _ *http.Request, err error) {
	w.Header().Set("WWW-Authenticate", "Bearer")
	http.Error(w, err.Error(), http.StatusUnauthorized)
}

// BearerTokenExtractor reads "Authorization: Bearer <token>".
func BearerTokenExtractor(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
		return "", ErrInvalidToken
	}
	return token, nil
}

// CookieTokenExtractor reads the token from the named cookie.
func CookieTokenExtractor(name string) TokenExtractorFunc {
	return func(r *http.Request) (string, error) {
		c, err := r.Cookie(name)
		if err != nil || c.Value == "" {
			return "", ErrInvalidToken
		}
		return c.Value, nil
	}
}
