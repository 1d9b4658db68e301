package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/good-yellow-bee/sitecraft/internal/api/auth"
	"github.com/good-yellow-bee/sitecraft/internal/models"
)

// UserIDHeader carries the caller's user id next to the bearer token.
const UserIDHeader = "User-Id"

// Context keys for storing user information.
type contextKey string

const (
	userIDKey contextKey = "user_id"
	emailKey  contextKey = "email"
	roleKey   contextKey = "role"
	claimsKey contextKey = "claims"
)

func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
	})
}

func jsonUnauthorized(w http.ResponseWriter) {
	writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "invalid or expired token")
}

func jsonForbidden(w http.ResponseWriter, message string) {
	writeError(w, http.StatusForbidden, "FORBIDDEN", message)
}

// bearerToken extracts the token from an "Authorization: Bearer" header.
func bearerToken(r *http.Request) (string, bool) {
	parts := strings.SplitN(r.Header.Get("Authorization"), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	return token, token != ""
}

// JWTAuth returns middleware that validates bearer tokens. When the request
// also names a user in the User-Id header it must match the token, otherwise
// the request is rejected with 403.
func JWTAuth(jwtService *auth.JWTService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			log := zerolog.Ctx(r.Context())

			token, ok := bearerToken(r)
			if !ok {
				jsonUnauthorized(w)
				return
			}

			claims, err := jwtService.ValidateToken(token)
			if err != nil {
				log.Debug().Err(err).Str("remote", r.RemoteAddr).Msg("jwt auth failed")
				jsonUnauthorized(w)
				return
			}

			if headerID := r.Header.Get(UserIDHeader); headerID != "" && headerID != claims.UserID {
				log.Warn().
					Str("token_user", claims.UserID).
					Str("header_user", headerID).
					Msg("user id header does not match token")
				jsonForbidden(w, "user id does not match credentials")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
		})
	}
}

// WithClaims stores the authenticated identity in ctx.
func WithClaims(ctx context.Context, claims *auth.Claims) context.Context {
	ctx = context.WithValue(ctx, userIDKey, claims.UserID)
	ctx = context.WithValue(ctx, emailKey, claims.Email())
	ctx = context.WithValue(ctx, roleKey, claims.Role)
	ctx = context.WithValue(ctx, claimsKey, claims)
	return ctx
}

// GetUserID returns the user ID from context.
func GetUserID(ctx context.Context) string {
	s, _ := ctx.Value(userIDKey).(string)
	return s
}

// GetEmail returns the signed-in user's email from context.
func GetEmail(ctx context.Context) string {
	s, _ := ctx.Value(emailKey).(string)
	return s
}

// GetRole returns the user role from context.
func GetRole(ctx context.Context) models.Role {
	r, _ := ctx.Value(roleKey).(models.Role)
	return r
}

// GetClaims returns the JWT claims from context.
func GetClaims(ctx context.Context) *auth.Claims {
	c, _ := ctx.Value(claimsKey).(*auth.Claims)
	return c
}
