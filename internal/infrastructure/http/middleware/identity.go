package middleware

import (
	"net/http"

	"github.com/gavelworks/auction-settlement-service/internal/application/auth"
)

// NewIdentityMiddleware resolves the caller from the X-User-ID and
// X-User-Role headers set by the authenticating proxy. Requests without the
// headers pass through anonymously; handlers that need a caller reject them
// with 401 via auth.FromContext.
func NewIdentityMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID := r.Header.Get("X-User-ID")
			role := r.Header.Get("X-User-Role")

			if userID != "" && auth.ValidRole(role) {
				ctx := auth.WithIdentity(r.Context(), auth.Identity{
					ID:   userID,
					Role: auth.Role(role),
				})
				r = r.WithContext(ctx)
			}

			next.ServeHTTP(w, r)
		})
	}
}
