package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/semgrep-mcp/semgrep-mcp/internal/auth"
)

type contextKey string

const tokenContextKey contextKey = "verified-token"

// TokenVerifier validates a bearer token, returning nil for any invalid
// token. Satisfied by *auth.Verifier.
type TokenVerifier interface {
	Verify(token string) *auth.VerifiedToken
}

// BearerAuth authenticates requests with a token verifier. A nil
// verifier disables auth entirely (stdio deployments and local use).
type BearerAuth struct {
	verifier TokenVerifier
}

// NewBearerAuth creates the bearer-token middleware.
func NewBearerAuth(verifier TokenVerifier) *BearerAuth {
	return &BearerAuth{verifier: verifier}
}

// Handler rejects requests without a valid bearer token. Health and
// version endpoints stay public. The failure response never explains why
// the token was rejected.
func (a *BearerAuth) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if a.verifier == nil || isPublicPath(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		header := r.Header.Get("Authorization")
		tokenString, ok := strings.CutPrefix(header, "Bearer ")
		if !ok {
			unauthorized(w)
			return
		}

		token := a.verifier.Verify(tokenString)
		if token == nil {
			unauthorized(w)
			return
		}

		ctx := context.WithValue(r.Context(), tokenContextKey, token)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// TokenFromContext returns the verified token stored by the middleware,
// or nil for unauthenticated requests.
func TokenFromContext(ctx context.Context) *auth.VerifiedToken {
	token, _ := ctx.Value(tokenContextKey).(*auth.VerifiedToken)
	return token
}

func isPublicPath(path string) bool {
	return path == "/health" || path == "/version"
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", `Bearer realm="semgrep-mcp"`)
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]string{
		"error":   "authentication_failed",
		"message": "A valid bearer token is required.",
	})
}
