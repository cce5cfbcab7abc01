package ratelimiter

import (
	"hash/fnv"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// maxKeyLength bounds store keys; longer composites are hashed.
const maxKeyLength = 64

// KeyFunc derives the bucket key from a request. An empty key skips limiting.
type KeyFunc func(r *http.Request) string

// ErrorHandlerFunc renders a rejected or failed request.
type ErrorHandlerFunc func(w http.ResponseWriter, r *http.Request, err error)

// MiddlewareOption configures Middleware.
type MiddlewareOption func(*middlewareConfig)

type middlewareConfig struct {
	prefix   string
	onLimit  ErrorHandlerFunc
	onError  ErrorHandlerFunc
	failOpen bool
	now      func() time.Time
}

// WithPrefix namespaces keys so several buckets can share one store.
func WithPrefix(prefix string) MiddlewareOption {
	return func(c *middlewareConfig) { c.prefix = prefix }
}

// WithLimitHandler renders the 429 response. The error is ErrLimited.
func WithLimitHandler(fn ErrorHandlerFunc) MiddlewareOption {
	return func(c *middlewareConfig) {
		if fn != nil {
			c.onLimit = fn
		}
	}
}

// WithErrorHandler renders store failures when the middleware fails closed.
func WithErrorHandler(fn ErrorHandlerFunc) MiddlewareOption {
	return func(c *middlewareConfig) {
		if fn != nil {
			c.onError = fn
		}
	}
}

// WithFailOpen lets requests through when the store is unavailable.
func WithFailOpen(open bool) MiddlewareOption {
	return func(c *middlewareConfig) { c.failOpen = open }
}

// Middleware limits requests per key.
func Middleware(b *Bucket, keyFunc KeyFunc, opts ...MiddlewareOption) func(http.Handler) http.Handler {
	cfg := &middlewareConfig{
		onLimit: func(w http.ResponseWriter, _ *http.Request, _ error) {
			http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
		},
		onError: func(w http.ResponseWriter, _ *http.Request, _ error) {
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		},
		now: time.Now,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := keyFunc(r)
			if key == "" {
				next.ServeHTTP(w, r)
				return
			}
			if cfg.prefix != "" {
				key = cfg.prefix + ":" + key
			}

			res, err := b.Allow(r.Context(), key)
			if err != nil {
				if cfg.failOpen {
					next.ServeHTTP(w, r)
					return
				}
				cfg.onError(w, r, err)
				return
			}

			h := w.Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(res.Limit))
			h.Set("X-RateLimit-Remaining", strconv.Itoa(max(res.Remaining, 0)))
			h.Set("X-RateLimit-Reset", strconv.FormatInt(res.ResetAt.Unix(), 10))

			if !res.Allowed() {
				secs := int(res.RetryAfter(cfg.now()).Round(time.Second) / time.Second)
				h.Set("Retry-After", strconv.Itoa(max(secs, 1)))
				cfg.onLimit(w, r, ErrLimited)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// Composite joins the non-empty keys of several functions.
func Composite(fns ...KeyFunc) KeyFunc {
	return func(r *http.Request) string {
		parts := make([]string, 0, len(fns))
		for _, fn := range fns {
			if k := fn(r); k != "" {
				parts = append(parts, k)
			}
		}
		if len(parts) == 0 {
			return ""
		}

		key := strings.Join(parts, ":")
		if len(key) > maxKeyLength {
			h := fnv.New64a()
			_, _ = h.Write([]byte(key))
			return strconv.FormatUint(h.Sum64(), 36)
		}
		return key
	}
}

// ClientIP keys by the peer address. Use it when the service is exposed
// directly; proxy headers are ignored because clients can forge them.
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return parseIP(r.RemoteAddr)
	}
	return parseIP(host)
}

// ForwardedClientIP keys by the address a trusted reverse proxy reports,
// checking CF-Connecting-IP, DO-Connecting-IP, the first valid
// X-Forwarded-For entry and X-Real-IP before falling back to ClientIP.
func ForwardedClientIP(r *http.Request) string {
	for _, name := range []string{"CF-Connecting-IP", "DO-Connecting-IP"} {
		if ip := parseIP(r.Header.Get(name)); ip != "" {
			return ip
		}
	}
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		for part := range strings.SplitSeq(fwd, ",") {
			if ip := parseIP(part); ip != "" {
				return ip
			}
		}
	}
	if ip := parseIP(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	return ClientIP(r)
}

func parseIP(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	ip := net.ParseIP(s)
	if ip == nil {
		return ""
	}
	return ip.String()
}
