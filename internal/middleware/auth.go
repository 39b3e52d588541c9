package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"flashdetail/pkg/logging/logging"
)

// HasToken reports whether r carries token as its bearer credential. An empty
// token never matches.
func HasToken(r *http.Request, token string) bool {
	if token == "" {
		return false
	}
	got, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	return ok && subtle.ConstantTimeCompare([]byte(strings.TrimSpace(got)), []byte(token)) == 1
}

// RequireToken guards a route group with a bearer token. An empty token
// rejects every request.
func RequireToken(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !HasToken(r, token) {
				logging.L(r.Context()).Warn("admin request rejected",
					zap.Bool("had_token", r.Header.Get("Authorization") != ""),
					zap.Bool("configured", token != ""),
				)
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
