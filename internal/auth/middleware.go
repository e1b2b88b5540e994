package auth

import (
	"net/http"
	"strings"

	"github.com/karibapp/karib/internal/api"
	"github.com/karibapp/karib/internal/middleware"
)

// Optional returns a middleware that resolves a Bearer token into a user ID
// on the request context when present and valid. Requests without a token,
// or with an invalid one, proceed anonymously: the API serves unauthenticated
// users at the base radius tier.
func Optional(svc *JWTService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				next.ServeHTTP(w, r)
				return
			}

			claims, err := svc.ValidateToken(token)
			if err != nil || claims.Type != TokenTypeAccess {
				next.ServeHTTP(w, r)
				return
			}

			ctx := middleware.SetUserID(r.Context(), claims.Subject)
			// The logging middleware captured the pre-auth context; hand the
			// derived one back so its user_id field is populated.
			middleware.UpdateResponseContext(w, ctx)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Required returns a middleware that rejects requests lacking a valid access
// token with 401. Used for endpoints that mutate state, like place submission.
func Required(svc *JWTService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				unauthorized(w, r, "missing bearer token")
				return
			}

			claims, err := svc.ValidateToken(token)
			if err != nil || claims.Type != TokenTypeAccess {
				unauthorized(w, r, "invalid or expired token")
				return
			}

			ctx := middleware.SetUserID(r.Context(), claims.Subject)
			middleware.UpdateResponseContext(w, ctx)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	return header[len(prefix):], true
}

func unauthorized(w http.ResponseWriter, r *http.Request, message string) {
	api.WriteError(w, r.Context(), http.StatusUnauthorized, api.ErrCodeAuthFailed, message)
}
