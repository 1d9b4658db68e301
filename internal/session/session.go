// Package session holds the signed-in user's credential and decoded identity
// for the CLI, persisted between invocations.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/good-yellow-bee/sitecraft/internal/api/auth"
	"github.com/good-yellow-bee/sitecraft/internal/models"
)

// ErrNoSession is returned when nobody is signed in.
var ErrNoSession = errors.New("not signed in")

// Identity is the user described by the access token.
type Identity struct {
	UserID    string      `json:"id"`
	Email     string      `json:"email"`
	Name      string      `json:"name"`
	Role      models.Role `json:"role"`
	ExpiresAt time.Time   `json:"expiresAt"`
}

// Session is one signed-in credential.
type Session struct {
	Server       string    `json:"server"`
	AccessToken  string    `json:"token"`
	RefreshToken string    `json:"refreshToken,omitempty"`
	User         Identity  `json:"user"`
	CreatedAt    time.Time `json:"createdAt"`
}

// New builds a session from a freshly issued token pair. The access token's
// claims are decoded without verification; the server remains the authority.
func New(server, accessToken, refreshToken string) (*Session, error) {
	id, err := DecodeIdentity(accessToken)
	if err != nil {
		return nil, err
	}
	return &Session{
		Server:       server,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		User:         id,
		CreatedAt:    time.Now(),
	}, nil
}

// DecodeIdentity reads the identity claims of an access token.
func DecodeIdentity(token string) (Identity, error) {
	claims := &auth.Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return Identity{}, fmt.Errorf("decode token: %w", err)
	}
	if claims.UserID == "" {
		return Identity{}, errors.New("decode token: missing user id")
	}
	id := Identity{
		UserID: claims.UserID,
		Email:  claims.Email(),
		Name:   claims.Name,
		Role:   claims.Role,
	}
	if claims.ExpiresAt != nil {
		id.ExpiresAt = claims.ExpiresAt.Time
	}
	return id, nil
}

// UserID returns the signed-in user's id, or "" for a nil session.
func (s *Session) UserID() string {
	if s == nil {
		return ""
	}
	return s.User.UserID
}

// Token returns the access token, or "" for a nil session.
func (s *Session) Token() string {
	if s == nil {
		return ""
	}
	return s.AccessToken
}

// Identity returns the decoded identity.
func (s *Session) Identity() Identity {
	if s == nil {
		return Identity{}
	}
	return s.User
}

// Expired reports whether the access token has expired at now.
func (s *Session) Expired(now time.Time) bool {
	if s == nil {
		return true
	}
	return !s.User.ExpiresAt.IsZero() && !now.Before(s.User.ExpiresAt)
}

type contextKey struct{}

// NewContext returns a copy of ctx carrying s.
func NewContext(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, contextKey{}, s)
}

// FromContext returns the session stored by NewContext.
func FromContext(ctx context.Context) (*Session, bool) {
	s, ok := ctx.Value(contextKey{}).(*Session)
	return s, ok && s != nil
}
