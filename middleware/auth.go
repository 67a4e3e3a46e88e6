package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/matzeds/cookbook/auth"
	"github.com/matzeds/cookbook/common"
)

// RequireAuth validates the bearer token and attaches the principal to
// the request context.
func RequireAuth(tokens *auth.Tokens) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := bearerToken(r)
			if raw == "" {
				unauthorized(w, "Not authenticated")
				return
			}

			claims, err := tokens.ParseAccess(raw)
			if err != nil {
				if errors.Is(err, auth.ErrExpiredToken) {
					unauthorized(w, "Expired token")
					return
				}
				unauthorized(w, "Invalid token")
				return
			}

			user := auth.CurrentUser{
				ID:          claims.Subject,
				Scopes:      claims.Scopes,
				Permissions: auth.PermissionList(claims.Scopes),
			}
			next.ServeHTTP(w, r.WithContext(auth.WithCurrentUser(r.Context(), user)))
		})
	}
}

// RequirePermissions guards a route group with a permission bitmask.
// Must run after RequireAuth.
func RequirePermissions(permissions ...auth.Permission) func(http.Handler) http.Handler {
	required := auth.PermissionBitmask(permissions)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, ok := auth.UserFromContext(r.Context())
			if !ok {
				unauthorized(w, "Not authenticated")
				return
			}
			if !auth.HasPermissions(user.Scopes, required) {
				unauthorized(w, "Not enough permissions")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

func unauthorized(w http.ResponseWriter, detail string) {
	w.Header().Set("WWW-Authenticate", "Bearer")
	common.RespondError(w, http.StatusUnauthorized, detail)
}
