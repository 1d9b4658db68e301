package models

import (
	"time"
)

// Project is one editable site. Draft and published configs are independent
// snapshots of the site config document, stored as canonical JSON text.
type Project struct {
	ID              string     `json:"id"`
	UserID          string     `json:"userId"`
	Name            string     `json:"name"`
	Description     string     `json:"description,omitempty"`
	Slug            string     `json:"slug"`
	DraftConfig     string     `json:"draftConfig,omitempty"`
	DraftUpdatedAt  *time.Time `json:"draftUpdatedAt,omitempty"`
	DraftRevision   int64      `json:"draftRevision"`
	PublishedConfig string     `json:"publishedConfig,omitempty"`
	PublishedAt     *time.Time `json:"publishedAt,omitempty"`
	LiveURL         string     `json:"liveUrl,omitempty"`
	CreatedAt       time.Time  `json:"createdAt"`
	UpdatedAt       time.Time  `json:"updatedAt"`
}

// NewProject creates a new Project with initialized timestamps.
func NewProject(userID, name, description string) *Project {
	now := time.Now()
	return &Project{
		UserID:      userID,
		Name:        name,
		Description: description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// IsPublished reports whether the project has ever been published.
func (p *Project) IsPublished() bool {
	return p.PublishedAt != nil
}

// HasUnpublishedChanges reports whether the draft differs from the live snapshot.
func (p *Project) HasUnpublishedChanges() bool {
	if p.DraftConfig == "" {
		return false
	}
	return p.DraftConfig != p.PublishedConfig
}

// PublishResult is returned by a successful publish.
type PublishResult struct {
	Message string `json:"message"`
	LiveURL string `json:"liveUrl"`
}
