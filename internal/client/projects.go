package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/good-yellow-bee/sitecraft/internal/editor"
	"github.com/good-yellow-bee/sitecraft/internal/models"
	"github.com/good-yellow-bee/sitecraft/internal/siteconfig"
)

var _ editor.Backend = (*Client)(nil)

// Project is a project as listed by the server.
type Project struct {
	models.Project
	Published             bool `json:"published"`
	HasUnpublishedChanges bool `json:"hasUnpublishedChanges"`
}

// StoredConfig is one config slot of a project.
type StoredConfig struct {
	ProjectID string          `json:"projectId"`
	Raw       json.RawMessage `json:"config"`
	Revision  int64           `json:"revision"`
	UpdatedAt *time.Time      `json:"updatedAt"`
	LiveURL   string          `json:"liveUrl"`
}

// Config parses the stored document. An empty slot yields the default config.
func (s *StoredConfig) Config() (*siteconfig.SiteConfig, error) {
	if len(s.Raw) == 0 || string(s.Raw) == "null" {
		return siteconfig.Default(), nil
	}
	return siteconfig.Parse(s.Raw)
}

func projectPath(id string, parts ...string) string {
	p := "/api/projects/" + url.PathEscape(id)
	for _, part := range parts {
		p += "/" + part
	}
	return p
}

// ListProjects returns the caller's projects.
func (c *Client) ListProjects(ctx context.Context) ([]*Project, error) {
	var projects []*Project
	if err := c.do(ctx, request{method: http.MethodGet, path: "/api/projects", auth: true}, &projects); err != nil {
		return nil, err
	}
	return projects, nil
}

// CreateProject creates a project; the server picks the slug.
func (c *Client) CreateProject(ctx context.Context, name, description string) (*Project, error) {
	var p Project
	err := c.do(ctx, request{
		method: http.MethodPost,
		path:   "/api/projects",
		body:   map[string]string{"name": name, "description": description},
		auth:   true,
	}, &p)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// Project returns one project with its publish flags.
func (c *Client) Project(ctx context.Context, id string) (*Project, error) {
	var p Project
	if err := c.do(ctx, request{method: http.MethodGet, path: projectPath(id), auth: true}, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// GetProject implements editor.Backend.
func (c *Client) GetProject(ctx context.Context, id string) (*models.Project, error) {
	p, err := c.Project(ctx, id)
	if err != nil {
		return nil, err
	}
	return &p.Project, nil
}

// UpdateProject renames or re-describes a project. Nil fields are left unchanged.
func (c *Client) UpdateProject(ctx context.Context, id string, name, description *string) (*Project, error) {
	body := map[string]*string{}
	if name != nil {
		body["name"] = name
	}
	if description != nil {
		body["description"] = description
	}
	var p Project
	if err := c.do(ctx, request{method: http.MethodPut, path: projectPath(id), body: body, auth: true}, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// DeleteProject deletes a project and takes its live site down.
func (c *Client) DeleteProject(ctx context.Context, id string) error {
	return c.do(ctx, request{method: http.MethodDelete, path: projectPath(id), auth: true}, nil)
}

// Draft returns the stored draft slot.
func (c *Client) Draft(ctx context.Context, id string) (*StoredConfig, error) {
	var cfg StoredConfig
	if err := c.do(ctx, request{method: http.MethodGet, path: projectPath(id, "draft"), auth: true}, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Published returns the live config slot.
func (c *Client) Published(ctx context.Context, id string) (*StoredConfig, error) {
	var cfg StoredConfig
	if err := c.do(ctx, request{method: http.MethodGet, path: projectPath(id, "published"), auth: true}, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// SaveDraft implements editor.Backend.
func (c *Client) SaveDraft(ctx context.Context, id string, cfg *siteconfig.SiteConfig) error {
	_, err := c.SaveDraftRevision(ctx, id, cfg)
	return err
}

// SaveDraftRevision stores cfg as the draft and returns the stored slot.
func (c *Client) SaveDraftRevision(ctx context.Context, id string, cfg *siteconfig.SiteConfig) (*StoredConfig, error) {
	body, err := cfg.Encode()
	if err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}
	var stored StoredConfig
	err = c.do(ctx, request{method: http.MethodPost, path: projectPath(id, "draft"), body: body, auth: true}, &stored)
	if err != nil {
		return nil, err
	}
	return &stored, nil
}

// Publish implements editor.Backend.
func (c *Client) Publish(ctx context.Context, id string, cfg *siteconfig.SiteConfig) (*models.PublishResult, error) {
	body, err := cfg.Encode()
	if err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}
	var result models.PublishResult
	err = c.do(ctx, request{method: http.MethodPost, path: projectPath(id, "publish"), body: body, auth: true}, &result)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// Preview returns the server-rendered HTML of the draft.
func (c *Client) Preview(ctx context.Context, id string) ([]byte, error) {
	resp, err := c.send(ctx, request{method: http.MethodGet, path: projectPath(id, "preview"), auth: true, accept: "text/html"})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	page, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read preview: %w", err)
	}
	return page, nil
}
