package auth

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/good-yellow-bee/sitecraft/internal/metrics"
	"github.com/good-yellow-bee/sitecraft/internal/models"
	"github.com/good-yellow-bee/sitecraft/internal/storage"
	"github.com/good-yellow-bee/sitecraft/pkg/logger"
)

const maxBodyBytes = 64 << 10

// Settings tunes account creation and token issuing.
type Settings struct {
	RefreshTTL time.Duration
	Password   PasswordPolicy
	// BcryptCost of 0 uses bcrypt.DefaultCost.
	BcryptCost int
}

// Handler handles authentication endpoints.
type Handler struct {
	storage        storage.Storage
	jwtService     *JWTService
	tokenService   *TokenService
	lockoutTracker *LockoutTracker
	password       PasswordPolicy
	bcryptCost     int
	log            zerolog.Logger
}

// NewHandler creates a new auth handler.
func NewHandler(store storage.Storage, jwt *JWTService, lockout *LockoutTracker, settings Settings) *Handler {
	policy := settings.Password
	if policy.MinLength == 0 {
		policy = DefaultPasswordPolicy
	}
	return &Handler{
		storage:        store,
		jwtService:     jwt,
		tokenService:   NewTokenService(store, settings.RefreshTTL),
		lockoutTracker: lockout,
		password:       policy,
		bcryptCost:     settings.BcryptCost,
		log:            logger.With("auth"),
	}
}

// Tokens exposes the refresh token service for scheduled cleanup.
func (h *Handler) Tokens() *TokenService {
	return h.tokenService
}

// Response helpers (local to avoid import cycle with api package)

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

func jsonError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(errorResponse{Error: errorBody{Code: code, Message: message}}); err != nil {
		logger.Error().Err(err).Msg("json encode error")
	}
}

func jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(dataResponse{Data: data}); err != nil {
		logger.Error().Err(err).Msg("json encode error")
	}
}

func jsonNoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		jsonError(w, http.StatusBadRequest, errCodeBadRequest, "invalid request body")
		return false
	}
	return true
}

// Error codes
const (
	errCodeBadRequest       = "BAD_REQUEST"
	errCodeValidationFailed = "VALIDATION_FAILED"
	errCodeUnauthorized     = "UNAUTHORIZED"
	errCodeConflict         = "CONFLICT"
	errCodeAccountLocked    = "ACCOUNT_LOCKED"
	errCodeInternalError    = "INTERNAL_ERROR"
)

// SignupRequest is the request body for account creation.
type SignupRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SigninRequest is the request body for sign-in.
type SigninRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RefreshRequest is the request body for token refresh and logout.
type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// TokenResponse is returned on successful sign-in and refresh.
type TokenResponse struct {
	Token        string `json:"token"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    int    `json:"expiresIn"`
	TokenType    string `json:"tokenType"`
}

// NormalizeEmail trims and lowercases an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidateEmail checks that email is a bare address.
func ValidateEmail(email string) bool {
	addr, err := mail.ParseAddress(email)
	return err == nil && addr.Address == email && addr.Name == ""
}

// Signup creates an account. The first account on a fresh server is an admin.
func (h *Handler) Signup(w http.ResponseWriter, r *http.Request) {
	var req SignupRequest
	if !decode(w, r, &req) {
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	req.Email = NormalizeEmail(req.Email)

	if req.Name == "" || req.Email == "" || req.Password == "" {
		jsonError(w, http.StatusBadRequest, errCodeBadRequest, "name, email and password required")
		return
	}
	if len(req.Name) > 100 {
		jsonError(w, http.StatusBadRequest, errCodeValidationFailed, "name must be at most 100 characters")
		return
	}
	if !ValidateEmail(req.Email) {
		jsonError(w, http.StatusBadRequest, errCodeValidationFailed, "invalid email address")
		return
	}
	if err := h.password.FirstError(req.Password); err != nil {
		jsonError(w, http.StatusBadRequest, errCodeValidationFailed, err.Error())
		return
	}

	ctx := r.Context()
	existing, err := h.storage.Users().GetByEmail(ctx, req.Email)
	if err != nil {
		h.log.Error().Err(err).Msg("signup: get user")
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, "internal server error")
		return
	}
	if existing != nil {
		jsonError(w, http.StatusConflict, errCodeConflict, "email already registered")
		return
	}

	count, err := h.storage.Users().Count(ctx)
	if err != nil {
		h.log.Error().Err(err).Msg("signup: count users")
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, "internal server error")
		return
	}
	role := models.RoleEditor
	if count == 0 {
		role = models.RoleAdmin
	}

	hash, err := HashPassword(req.Password, h.bcryptCost)
	if err != nil {
		h.log.Error().Err(err).Msg("signup: hash password")
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, "internal server error")
		return
	}

	user := models.NewUser(req.Name, req.Email, role)
	user.ID = uuid.New().String()
	user.PasswordHash = hash

	if err := h.storage.Users().Create(ctx, user); err != nil {
		h.log.Error().Err(err).Msg("signup: create user")
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, "internal server error")
		return
	}

	metrics.SignupsTotal.Inc()
	h.log.Info().Str("user_id", user.ID).Str("role", string(role)).Msg("signup success")

	jsonResponse(w, http.StatusCreated, user)
}

// Signin exchanges email and password for an access and refresh token.
func (h *Handler) Signin(w http.ResponseWriter, r *http.Request) {
	var req SigninRequest
	if !decode(w, r, &req) {
		return
	}

	req.Email = NormalizeEmail(req.Email)
	if req.Email == "" || req.Password == "" {
		jsonError(w, http.StatusBadRequest, errCodeBadRequest, "email and password required")
		return
	}

	if h.lockoutTracker.IsLocked(req.Email) {
		metrics.AuthAttemptsTotal.WithLabelValues("locked").Inc()
		h.log.Warn().
			Str("email", req.Email).
			Dur("remaining", h.lockoutTracker.RemainingLockoutTime(req.Email)).
			Msg("signin blocked: account locked")
		jsonError(w, http.StatusTooManyRequests, errCodeAccountLocked, "account temporarily locked due to too many failed attempts")
		return
	}

	ctx := r.Context()
	user, err := h.storage.Users().GetByEmail(ctx, req.Email)
	if err != nil {
		h.log.Error().Err(err).Msg("signin: get user")
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, "internal server error")
		return
	}
	if user == nil || !CheckPassword(user.PasswordHash, req.Password) {
		h.lockoutTracker.RecordFailure(req.Email)
		metrics.AuthAttemptsTotal.WithLabelValues("failure").Inc()
		h.log.Info().Str("email", req.Email).Msg("signin failed")
		jsonError(w, http.StatusUnauthorized, errCodeUnauthorized, "invalid credentials")
		return
	}

	h.lockoutTracker.ClearFailures(req.Email)

	resp, ok := h.issueTokens(w, r, user)
	if !ok {
		return
	}
	metrics.AuthAttemptsTotal.WithLabelValues("success").Inc()
	h.log.Info().Str("user_id", user.ID).Msg("signin success")

	jsonResponse(w, http.StatusOK, resp)
}

func (h *Handler) issueTokens(w http.ResponseWriter, r *http.Request, user *models.User) (*TokenResponse, bool) {
	accessToken, err := h.jwtService.GenerateToken(user)
	if err != nil {
		h.log.Error().Err(err).Msg("generate access token")
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, "internal server error")
		return nil, false
	}

	refreshToken, err := h.tokenService.CreateRefreshToken(r.Context(), user.ID, r.UserAgent())
	if err != nil {
		h.log.Error().Err(err).Msg("generate refresh token")
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, "internal server error")
		return nil, false
	}

	metrics.AuthTokensIssued.WithLabelValues("access").Inc()
	metrics.AuthTokensIssued.WithLabelValues("refresh").Inc()

	return &TokenResponse{
		Token:        accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    h.jwtService.TTLSeconds(),
		TokenType:    "Bearer",
	}, true
}

// Refresh exchanges a refresh token for its successor and a new access
// token. Presenting an already exchanged token revokes its whole family.
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if !decode(w, r, &req) {
		return
	}
	if req.RefreshToken == "" {
		jsonError(w, http.StatusBadRequest, errCodeBadRequest, "refreshToken required")
		return
	}

	user, newRefreshToken, err := h.tokenService.Rotate(r.Context(), req.RefreshToken, r.UserAgent())
	if errors.Is(err, ErrInvalidRefreshToken) {
		h.log.Info().Err(err).Msg("refresh failed")
		jsonError(w, http.StatusUnauthorized, errCodeUnauthorized, "invalid or expired token")
		return
	}
	if err != nil {
		h.log.Error().Err(err).Msg("refresh: rotate refresh token")
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, "internal server error")
		return
	}

	accessToken, err := h.jwtService.GenerateToken(user)
	if err != nil {
		h.log.Error().Err(err).Msg("refresh: generate access token")
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, "internal server error")
		return
	}

	metrics.AuthTokensIssued.WithLabelValues("access").Inc()
	metrics.AuthTokensIssued.WithLabelValues("refresh").Inc()
	h.log.Debug().Str("user_id", user.ID).Msg("token refresh success")

	jsonResponse(w, http.StatusOK, &TokenResponse{
		Token:        accessToken,
		RefreshToken: newRefreshToken,
		ExpiresIn:    h.jwtService.TTLSeconds(),
		TokenType:    "Bearer",
	})
}

// Logout revokes a refresh token. Revoking an unknown token still succeeds.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if !decode(w, r, &req) {
		return
	}
	if req.RefreshToken == "" {
		jsonError(w, http.StatusBadRequest, errCodeBadRequest, "refreshToken required")
		return
	}

	if err := h.tokenService.RevokeRefreshToken(r.Context(), req.RefreshToken); err != nil {
		h.log.Debug().Err(err).Msg("logout: revoke token")
	}

	jsonNoContent(w)
}
