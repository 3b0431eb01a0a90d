package auth

import (
	"fmt"
	"net/http"
	"strings"

	"moneyboard/internal/auth"
	"moneyboard/internal/core"
)

// TokenValidator resolves a bearer token to the owner id it was issued for.
type TokenValidator interface {
	Validate(token string) (string, error)
}

// Middleware requires an "Authorization: Bearer <jwt>" header and stores
// the token's subject as the request principal. Failures go to onError
// wrapped in core.ErrNotAuthenticated.
func Middleware(v TokenValidator, onError func(http.ResponseWriter, *http.Request, error)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, err := bearerToken(r)
			if err != nil {
				onError(w, r, err)
				return
			}
			owner, err := v.Validate(token)
			if err != nil {
				onError(w, r, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(auth.WithPrincipal(r.Context(), owner)))
		})
	}
}

func bearerToken(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", fmt.Errorf("missing authorization header: %w", core.ErrNotAuthenticated)
	}
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return "", fmt.Errorf("invalid authorization header format: %w", core.ErrNotAuthenticated)
	}
	return strings.TrimSpace(token), nil
}
