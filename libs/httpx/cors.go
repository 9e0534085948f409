package httpx

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

// CORSPolicy describes the headers emitted for cross-origin callers (the
// embeddable booking widget runs on customer sites).
type CORSPolicy struct {
	AllowedOrigins []string
	AllowedMethods []string
	AllowedHeaders []string
	MaxAge         time.Duration
}

// WithCORS is a no-op when no origins are configured.
func WithCORS(p CORSPolicy) Middleware {
	if len(p.AllowedOrigins) == 0 {
		return func(next http.Handler) http.Handler { return next }
	}

	allowAll := false
	origins := map[string]bool{}
	for _, o := range p.AllowedOrigins {
		o = strings.TrimSpace(o)
		if o == "*" {
			allowAll = true
		} else if o != "" {
			origins[o] = true
		}
	}
	methods := strings.Join(p.AllowedMethods, ", ")
	headers := strings.Join(p.AllowedHeaders, ", ")
	maxAge := strconv.Itoa(int(p.MaxAge.Seconds()))

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin == "" || (!allowAll && !origins[origin]) {
				next.ServeHTTP(w, r)
				return
			}
			if allowAll {
				w.Header().Set("Access-Control-Allow-Origin", "*")
			} else {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Add("Vary", "Origin")
			}
			if r.Method == http.MethodOptions {
				if methods != "" {
					w.Header().Set("Access-Control-Allow-Methods", methods)
				}
				if headers != "" {
					w.Header().Set("Access-Control-Allow-Headers", headers)
				}
				if p.MaxAge > 0 {
					w.Header().Set("Access-Control-Max-Age", maxAge)
				}
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
