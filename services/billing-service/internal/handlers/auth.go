package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/slotsync/slotsync/libs/auth"
	"github.com/slotsync/slotsync/libs/httpx"
)

type ctxKey int

const ctxKeyClaims ctxKey = iota

func claimsFromContext(ctx context.Context) *auth.Claims {
	c, _ := ctx.Value(ctxKeyClaims).(*auth.Claims)
	return c
}

func isAdmin(c *auth.Claims) bool {
	return c != nil && c.Role == "admin"
}

// RequireAuth verifies the bearer token and stores the claims on the
// request context. Webhook endpoints stay outside this middleware, their
// auth is the provider signature.
func RequireAuth(secret string, logger *slog.Logger) httpx.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := strings.TrimSpace(r.Header.Get("Authorization"))
			token, ok := strings.CutPrefix(raw, "Bearer ")
			if !ok || token == "" {
				http.Error(w, "missing bearer token", http.StatusUnauthorized)
				return
			}
			claims, err := auth.ParseAndVerifyHS256(token, secret)
			if err != nil {
				logger.Debug("token rejected", "err", err)
				http.Error(w, "invalid token", http.StatusUnauthorized)
				return
			}
			ctx := context.WithValue(r.Context(), ctxKeyClaims, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
