package middleware

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/good-yellow-bee/sitecraft/internal/models"
)

const projectKey contextKey = "project"

// ProjectFinder loads a project by id, returning (nil, nil) when it does not exist.
type ProjectFinder interface {
	GetByID(ctx context.Context, id string) (*models.Project, error)
}

// CanAccessProject reports whether the user owns the project or is an admin.
func CanAccessProject(userID string, role models.Role, project *models.Project) bool {
	if project == nil {
		return false
	}
	return role == models.RoleAdmin || project.UserID == userID
}

// ProjectAccess loads the project named by the {id} URL parameter and stores
// it in the context. Unknown projects and projects owned by someone else both
// return 404 so ids cannot be probed.
func ProjectAccess(projects ProjectFinder) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			id := chi.URLParam(r, "id")
			if id == "" {
				writeError(w, http.StatusBadRequest, "BAD_REQUEST", "project id required")
				return
			}

			project, err := projects.GetByID(ctx, id)
			if err != nil {
				zerolog.Ctx(ctx).Error().Err(err).Str("project_id", id).Msg("load project")
				writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
				return
			}
			if !CanAccessProject(GetUserID(ctx), GetRole(ctx), project) {
				writeError(w, http.StatusNotFound, "NOT_FOUND", "project not found")
				return
			}

			next.ServeHTTP(w, r.WithContext(context.WithValue(ctx, projectKey, project)))
		})
	}
}

// GetProject returns the project loaded by ProjectAccess.
func GetProject(ctx context.Context) *models.Project {
	p, _ := ctx.Value(projectKey).(*models.Project)
	return p
}
