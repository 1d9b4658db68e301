// Package storage provides database storage interfaces and implementations.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/good-yellow-bee/sitecraft/internal/models"
)

// ErrNotFound is returned by writes that target a missing row.
var ErrNotFound = errors.New("not found")

// Storage is the main interface for database operations.
type Storage interface {
	// Open initializes the database connection.
	Open() error
	// Close closes the database connection.
	Close() error
	// Migrate runs database migrations.
	Migrate() error
	// Ping checks the database connection.
	Ping(ctx context.Context) error

	// Repository accessors
	Users() UserRepository
	Projects() ProjectRepository
	Tokens() TokenRepository
}

// UserRepository defines operations for user management.
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	Update(ctx context.Context, user *models.User) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]*models.User, error)
	Count(ctx context.Context) (int64, error)
}

// ProjectRepository defines operations for site projects and their
// draft/published config slots.
type ProjectRepository interface {
	Create(ctx context.Context, project *models.Project) error
	GetByID(ctx context.Context, id string) (*models.Project, error)
	GetBySlug(ctx context.Context, slug string) (*models.Project, error)
	Update(ctx context.Context, project *models.Project) error
	Delete(ctx context.Context, id string) error
	ListByUser(ctx context.Context, userID string) ([]*models.Project, error)
	SlugExists(ctx context.Context, slug string) (bool, error)
	// SaveDraft replaces the draft slot and returns the new draft revision.
	SaveDraft(ctx context.Context, id, config string, at time.Time) (int64, error)
	// Publish writes config into both the draft and the published slot.
	Publish(ctx context.Context, id, config, liveURL string, at time.Time) error
}

// TokenRepository stores refresh token families.
type TokenRepository interface {
	Create(ctx context.Context, token *models.RefreshToken) error
	// GetByTokenHash returns nil, nil for an unknown hash.
	GetByTokenHash(ctx context.Context, tokenHash string) (*models.RefreshToken, error)
	// Rotate retires the live token oldID in favour of next in one
	// transaction. It returns ErrNotFound when oldID was already retired.
	Rotate(ctx context.Context, oldID string, next *models.RefreshToken) error
	RevokeByTokenHash(ctx context.Context, tokenHash string) error
	// RevokeFamily revokes every live token descended from one sign-in.
	RevokeFamily(ctx context.Context, familyID string) (int64, error)
	RevokeAllForUser(ctx context.Context, userID string) error
	// ListActiveByUser returns the user's live tokens, newest first.
	ListActiveByUser(ctx context.Context, userID string) ([]*models.RefreshToken, error)
	DeleteExpired(ctx context.Context) (int64, error)
}
