package auth

import (
	"net/http"
	"strings"

	"github.com/meridian-aid/meridian-aid/internal/platform/httpx"
	"github.com/meridian-aid/meridian-aid/internal/shared"
)

// Middleware verifies the bearer token and attaches the principal to
// the request context. Requests without a token pass through
// unauthenticated; route-level guards decide what that means.
func Middleware(issuer *TokenIssuer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				next.ServeHTTP(w, r)
				return
			}
			if !strings.HasPrefix(header, "Bearer ") {
				httpx.RespondError(w, httpx.ErrUnauthorized)
				return
			}
			claims, err := issuer.ParseAccessToken(strings.TrimPrefix(header, "Bearer "))
			if err != nil {
				httpx.RespondError(w, httpx.ErrUnauthorized)
				return
			}
			principal := &shared.Principal{
				ID:    claims.UserID,
				Email: claims.Email,
				Roles: claims.Roles,
			}
			next.ServeHTTP(w, r.WithContext(shared.ContextWithPrincipal(r.Context(), principal)))
		})
	}
}
