package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/good-yellow-bee/sitecraft/internal/metrics"
	"github.com/good-yellow-bee/sitecraft/internal/models"
	"github.com/good-yellow-bee/sitecraft/internal/storage"
	"github.com/good-yellow-bee/sitecraft/pkg/logger"
)

var (
	// ErrInvalidRefreshToken covers unknown, expired, and revoked refresh tokens.
	ErrInvalidRefreshToken = errors.New("invalid or expired refresh token")
	// ErrRefreshTokenReused is returned when a token that was already
	// exchanged is presented again. The whole family is revoked.
	ErrRefreshTokenReused = fmt.Errorf("%w: token reused", ErrInvalidRefreshToken)
)

// TokenService issues and rotates refresh tokens. Every sign-in starts a
// family held by one client; each refresh retires the presented token and
// hands out its successor.
type TokenService struct {
	storage storage.Storage
	ttl     time.Duration
}

// NewTokenService creates a new token service.
func NewTokenService(store storage.Storage, ttl time.Duration) *TokenService {
	return &TokenService{
		storage: store,
		ttl:     ttl,
	}
}

// CreateRefreshToken starts a token family for userID signed in from client
// and returns the plaintext. Only its hash is persisted.
func (s *TokenService) CreateRefreshToken(ctx context.Context, userID, client string) (string, error) {
	token, plainToken, err := models.NewRefreshToken(uuid.NewString(), userID, client, s.ttl)
	if err != nil {
		return "", fmt.Errorf("generate refresh token: %w", err)
	}
	if err := s.storage.Tokens().Create(ctx, token); err != nil {
		return "", fmt.Errorf("store refresh token: %w", err)
	}
	return plainToken, nil
}

// Rotate exchanges plainToken for its successor and returns the owning user
// with the new plaintext. A token that was already exchanged revokes its
// family and fails with ErrRefreshTokenReused.
func (s *TokenService) Rotate(ctx context.Context, plainToken, client string) (*models.User, string, error) {
	token, err := s.storage.Tokens().GetByTokenHash(ctx, models.HashToken(plainToken))
	if err != nil {
		return nil, "", fmt.Errorf("lookup refresh token: %w", err)
	}
	if token == nil {
		return nil, "", ErrInvalidRefreshToken
	}
	if token.Rotated() {
		return nil, "", s.revokeReused(ctx, token)
	}
	if !token.IsValid() {
		return nil, "", ErrInvalidRefreshToken
	}

	user, err := s.storage.Users().GetByID(ctx, token.UserID)
	if err != nil {
		return nil, "", fmt.Errorf("get user: %w", err)
	}
	if user == nil {
		return nil, "", ErrInvalidRefreshToken
	}

	next, plainNext, err := token.Successor(uuid.NewString(), client, s.ttl)
	if err != nil {
		return nil, "", fmt.Errorf("generate refresh token: %w", err)
	}
	if err := s.storage.Tokens().Rotate(ctx, token.ID, next); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			// A concurrent refresh retired it first.
			return nil, "", s.revokeReused(ctx, token)
		}
		return nil, "", fmt.Errorf("rotate refresh token: %w", err)
	}
	return user, plainNext, nil
}

func (s *TokenService) revokeReused(ctx context.Context, token *models.RefreshToken) error {
	metrics.RefreshTokenReuse.Inc()
	n, err := s.storage.Tokens().RevokeFamily(ctx, token.FamilyID)
	if err != nil {
		logger.Error().Err(err).Str("family_id", token.FamilyID).Msg("revoke reused token family")
	}
	logger.Warn().
		Str("user_id", token.UserID).
		Str("family_id", token.FamilyID).
		Str("client", token.Client).
		Int64("revoked", n).
		Msg("rotated refresh token presented again")
	return ErrRefreshTokenReused
}

// RevokeRefreshToken revokes a refresh token.
func (s *TokenService) RevokeRefreshToken(ctx context.Context, plainToken string) error {
	return s.storage.Tokens().RevokeByTokenHash(ctx, models.HashToken(plainToken))
}

// CleanupExpiredTokens removes expired tokens from storage.
func (s *TokenService) CleanupExpiredTokens(ctx context.Context) (int64, error) {
	n, err := s.storage.Tokens().DeleteExpired(ctx)
	if err != nil {
		return 0, fmt.Errorf("delete expired tokens: %w", err)
	}
	return n, nil
}
