package users

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/good-yellow-bee/sitecraft/internal/api/auth"
	"github.com/good-yellow-bee/sitecraft/internal/api/middleware"
	"github.com/good-yellow-bee/sitecraft/internal/models"
	"github.com/good-yellow-bee/sitecraft/internal/storage"
)

// Response helpers (local to avoid import cycle)

type errorResponse struct {
	Error errorBody `json:"error"`
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type dataResponse struct {
	Data any `json:"data"`
}

// Error codes
const (
	errCodeBadRequest       = "BAD_REQUEST"
	errCodeValidationFailed = "VALIDATION_FAILED"
	errCodeNotFound         = "NOT_FOUND"
	errCodeInternalError    = "INTERNAL_ERROR"
)

func jsonError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(errorResponse{Error: errorBody{Code: code, Message: message}})
}

func jsonOK(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(dataResponse{Data: data})
}

func jsonNoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

func internalError(w http.ResponseWriter, r *http.Request, err error, msg string) {
	zerolog.Ctx(r.Context()).Error().Err(err).Msg(msg)
	jsonError(w, http.StatusInternalServerError, errCodeInternalError, "internal server error")
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 64<<10)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		jsonError(w, http.StatusBadRequest, errCodeBadRequest, "invalid request body")
		return false
	}
	return true
}

// UserResponse is a user without sensitive fields.
type UserResponse struct {
	ID        string      `json:"id"`
	Name      string      `json:"name"`
	Email     string      `json:"email"`
	Role      models.Role `json:"role"`
	CreatedAt time.Time   `json:"createdAt"`
	UpdatedAt time.Time   `json:"updatedAt"`
}

func userToResponse(u *models.User) *UserResponse {
	return &UserResponse{
		ID:        u.ID,
		Name:      u.Name,
		Email:     u.Email,
		Role:      u.Role,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

// UpdateProfileRequest is the request body for editing the caller's profile.
type UpdateProfileRequest struct {
	Name string `json:"name"`
}

// ChangePasswordRequest is the request body for changing password.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

// UpdateRoleRequest is the request body for an admin role change.
type UpdateRoleRequest struct {
	Role string `json:"role"`
}

// Handler handles user endpoints.
type Handler struct {
	storage    storage.Storage
	password   auth.PasswordPolicy
	bcryptCost int
	now        func() time.Time
}

// NewHandler creates a new user handler. bcryptCost of 0 uses the bcrypt default.
func NewHandler(store storage.Storage, policy auth.PasswordPolicy, bcryptCost int) *Handler {
	if policy.MinLength == 0 {
		policy = auth.DefaultPasswordPolicy
	}
	return &Handler{storage: store, password: policy, bcryptCost: bcryptCost, now: time.Now}
}

// currentUser loads the authenticated user, writing an error response when
// that is not possible.
func (h *Handler) currentUser(w http.ResponseWriter, r *http.Request) *models.User {
	user, err := h.storage.Users().GetByID(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		internalError(w, r, err, "get current user")
		return nil
	}
	if user == nil {
		jsonError(w, http.StatusNotFound, errCodeNotFound, "user not found")
		return nil
	}
	return user
}

// GetCurrentUser returns the current authenticated user.
func (h *Handler) GetCurrentUser(w http.ResponseWriter, r *http.Request) {
	if user := h.currentUser(w, r); user != nil {
		jsonOK(w, userToResponse(user))
	}
}

// UpdateCurrentUser changes the caller's display name.
func (h *Handler) UpdateCurrentUser(w http.ResponseWriter, r *http.Request) {
	var req UpdateProfileRequest
	if !decode(w, r, &req) {
		return
	}
	if err := ValidateName(req.Name); err != nil {
		jsonError(w, http.StatusBadRequest, errCodeValidationFailed, err.Error())
		return
	}

	user := h.currentUser(w, r)
	if user == nil {
		return
	}
	user.Name = strings.TrimSpace(req.Name)
	user.UpdatedAt = h.now()

	if err := h.storage.Users().Update(r.Context(), user); err != nil {
		internalError(w, r, err, "update profile")
		return
	}
	jsonOK(w, userToResponse(user))
}

// ChangePassword changes the caller's password and revokes their refresh
// tokens so other sessions must sign in again.
func (h *Handler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	var req ChangePasswordRequest
	if !decode(w, r, &req) {
		return
	}
	if req.CurrentPassword == "" {
		jsonError(w, http.StatusBadRequest, errCodeValidationFailed, "currentPassword is required")
		return
	}
	if err := h.password.FirstError(req.NewPassword); err != nil {
		jsonError(w, http.StatusBadRequest, errCodeValidationFailed, err.Error())
		return
	}

	ctx := r.Context()
	user := h.currentUser(w, r)
	if user == nil {
		return
	}
	if !auth.CheckPassword(user.PasswordHash, req.CurrentPassword) {
		jsonError(w, http.StatusBadRequest, errCodeValidationFailed, "current password is incorrect")
		return
	}

	hash, err := auth.HashPassword(req.NewPassword, h.bcryptCost)
	if err != nil {
		internalError(w, r, err, "change password")
		return
	}
	user.PasswordHash = hash
	user.UpdatedAt = h.now()

	if err := h.storage.Users().Update(ctx, user); err != nil {
		internalError(w, r, err, "change password")
		return
	}

	// The password is already changed; a revoke failure only leaves old sessions alive.
	if err := h.storage.Tokens().RevokeAllForUser(ctx, user.ID); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("user_id", user.ID).Msg("revoke tokens after password change")
	}

	zerolog.Ctx(ctx).Info().Str("user_id", user.ID).Msg("password changed")
	jsonNoContent(w)
}

// SessionResponse is one signed-in client of the current user. ID is the
// token family, which stays the same across refreshes.
type SessionResponse struct {
	ID          string    `json:"id"`
	Client      string    `json:"client"`
	RefreshedAt time.Time `json:"refreshedAt"`
	ExpiresAt   time.Time `json:"expiresAt"`
}

// ListSessions returns the clients holding a live refresh token.
func (h *Handler) ListSessions(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	tokens, err := h.storage.Tokens().ListActiveByUser(r.Context(), userID)
	if err != nil {
		internalError(w, r, err, "list sessions")
		return
	}

	resp := make([]SessionResponse, len(tokens))
	for i, t := range tokens {
		resp[i] = SessionResponse{
			ID:          t.FamilyID,
			Client:      t.Client,
			RefreshedAt: t.CreatedAt,
			ExpiresAt:   t.ExpiresAt,
		}
	}
	jsonOK(w, resp)
}

// RevokeSession signs one client out by revoking its token family.
func (h *Handler) RevokeSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)
	familyID := chi.URLParam(r, "id")

	tokens, err := h.storage.Tokens().ListActiveByUser(ctx, userID)
	if err != nil {
		internalError(w, r, err, "revoke session")
		return
	}
	owned := false
	for _, t := range tokens {
		if t.FamilyID == familyID {
			owned = true
			break
		}
	}
	if !owned {
		jsonError(w, http.StatusNotFound, errCodeNotFound, "session not found")
		return
	}

	if _, err := h.storage.Tokens().RevokeFamily(ctx, familyID); err != nil {
		internalError(w, r, err, "revoke session")
		return
	}
	zerolog.Ctx(ctx).Info().Str("user_id", userID).Str("family_id", familyID).Msg("session revoked")
	jsonNoContent(w)
}

// List returns all users (admin only).
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	users, err := h.storage.Users().List(r.Context())
	if err != nil {
		internalError(w, r, err, "list users")
		return
	}

	resp := make([]*UserResponse, len(users))
	for i, u := range users {
		resp[i] = userToResponse(u)
	}
	jsonOK(w, resp)
}

// UpdateRole changes another user's role (admin only).
func (h *Handler) UpdateRole(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")

	var req UpdateRoleRequest
	if !decode(w, r, &req) {
		return
	}
	role, err := ValidateRole(req.Role)
	if err != nil {
		jsonError(w, http.StatusBadRequest, errCodeValidationFailed, err.Error())
		return
	}

	ctx := r.Context()
	if userID == middleware.GetUserID(ctx) && role != models.RoleAdmin {
		jsonError(w, http.StatusBadRequest, errCodeBadRequest, "cannot change own role")
		return
	}

	user, err := h.storage.Users().GetByID(ctx, userID)
	if err != nil {
		internalError(w, r, err, "update role: get user")
		return
	}
	if user == nil {
		jsonError(w, http.StatusNotFound, errCodeNotFound, "user not found")
		return
	}

	user.Role = role
	user.UpdatedAt = h.now()
	if err := h.storage.Users().Update(ctx, user); err != nil {
		internalError(w, r, err, "update role")
		return
	}

	zerolog.Ctx(ctx).Info().Str("user_id", user.ID).Str("role", string(role)).Msg("user role changed")
	jsonOK(w, userToResponse(user))
}

// Delete deletes a user and their projects (admin only).
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")
	ctx := r.Context()

	if userID == middleware.GetUserID(ctx) {
		jsonError(w, http.StatusBadRequest, errCodeBadRequest, "cannot delete own account")
		return
	}

	user, err := h.storage.Users().GetByID(ctx, userID)
	if err != nil {
		internalError(w, r, err, "delete user: get user")
		return
	}
	if user == nil {
		jsonError(w, http.StatusNotFound, errCodeNotFound, "user not found")
		return
	}

	if err := h.storage.Users().Delete(ctx, userID); err != nil {
		internalError(w, r, err, "delete user")
		return
	}

	zerolog.Ctx(ctx).Info().Str("user_id", user.ID).Msg("user deleted")
	jsonNoContent(w)
}

// Routes returns the /api/users subtree. Callers must authenticate first.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()

	r.Get("/me", h.GetCurrentUser)
	r.Put("/me", h.UpdateCurrentUser)
	r.Put("/me/password", h.ChangePassword)
	r.Get("/me/sessions", h.ListSessions)
	r.Delete("/me/sessions/{id}", h.RevokeSession)

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAdmin)
		r.Get("/", h.List)
		r.Put("/{id}/role", h.UpdateRole)
		r.Delete("/{id}", h.Delete)
	})
	return r
}
