package middleware

import (
	"net/http"

	"github.com/good-yellow-bee/sitecraft/internal/models"
)

// RequireRole returns middleware that requires one of the given roles.
// Admin always passes.
func RequireRole(allowedRoles ...models.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userRole := GetRole(r.Context())
			if userRole == "" {
				jsonForbidden(w, "access denied")
				return
			}
			if userRole == models.RoleAdmin {
				next.ServeHTTP(w, r)
				return
			}
			for _, role := range allowedRoles {
				if userRole == role {
					next.ServeHTTP(w, r)
					return
				}
			}
			jsonForbidden(w, "access denied")
		})
	}
}

// RequireAdmin is shorthand for RequireRole(RoleAdmin).
func RequireAdmin(next http.Handler) http.Handler {
	return RequireRole(models.RoleAdmin)(next)
}

// RequireCanWrite allows editors and admins. Viewers may read their projects
// but not change them.
func RequireCanWrite(next http.Handler) http.Handler {
	return RequireRole(models.RoleEditor)(next)
}

// WriteMethods applies mw only to non-GET/HEAD requests.
func WriteMethods(mw func(http.Handler) http.Handler) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		guarded := mw(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodGet || r.Method == http.MethodHead {
				next.ServeHTTP(w, r)
				return
			}
			guarded.ServeHTTP(w, r)
		})
	}
}
