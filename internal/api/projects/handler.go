// Package projects serves the project, draft, and publish endpoints.
package projects

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/good-yellow-bee/sitecraft/internal/api/middleware"
	"github.com/good-yellow-bee/sitecraft/internal/metrics"
	"github.com/good-yellow-bee/sitecraft/internal/models"
	"github.com/good-yellow-bee/sitecraft/internal/preview"
	"github.com/good-yellow-bee/sitecraft/internal/sitecache"
	"github.com/good-yellow-bee/sitecraft/internal/siteconfig"
	"github.com/good-yellow-bee/sitecraft/internal/storage"
)

// MaxConfigBytes bounds a draft or publish body.
const MaxConfigBytes = 1 << 20

// PublishedMessage is returned by a successful publish.
const PublishedMessage = "Site published successfully"

// maxSlugAttempts bounds the -2, -3 ... suffix search.
const maxSlugAttempts = 100

// Response helpers
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

const (
	errCodeBadRequest       = "BAD_REQUEST"
	errCodeValidationFailed = "VALIDATION_FAILED"
	errCodeNotFound         = "NOT_FOUND"
	errCodeConflict         = "CONFLICT"
	errCodeTooLarge         = "PAYLOAD_TOO_LARGE"
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

func jsonCreated(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(dataResponse{Data: data})
}

func jsonNoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

func internalError(w http.ResponseWriter, r *http.Request, err error, msg string) {
	zerolog.Ctx(r.Context()).Error().Err(err).Msg(msg)
	jsonError(w, http.StatusInternalServerError, errCodeInternalError, "internal server error")
}

// ProjectResponse is a project plus its derived publish state.
type ProjectResponse struct {
	*models.Project
	Published             bool `json:"published"`
	HasUnpublishedChanges bool `json:"hasUnpublishedChanges"`
}

func projectToResponse(p *models.Project) *ProjectResponse {
	return &ProjectResponse{
		Project:               p,
		Published:             p.IsPublished(),
		HasUnpublishedChanges: p.HasUnpublishedChanges(),
	}
}

// ConfigResponse carries one stored config slot. Config is null when the slot is empty.
type ConfigResponse struct {
	ProjectID string          `json:"projectId"`
	Config    json.RawMessage `json:"config"`
	Revision  int64           `json:"revision,omitempty"`
	UpdatedAt *time.Time      `json:"updatedAt,omitempty"`
	LiveURL   string          `json:"liveUrl,omitempty"`
}

// Request types
type CreateRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type UpdateRequest struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
}

// Handler serves /api/projects.
type Handler struct {
	storage       storage.Storage
	cache         sitecache.Cache
	publicBaseURL string
	now           func() time.Time
}

// NewHandler creates a projects handler. publicBaseURL prefixes live site
// URLs; cache may be nil.
func NewHandler(store storage.Storage, cache sitecache.Cache, publicBaseURL string) *Handler {
	if cache == nil {
		cache = sitecache.Nop{}
	}
	return &Handler{
		storage:       store,
		cache:         cache,
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
		now:           time.Now,
	}
}

// LiveURL returns the public address of a published site.
func (h *Handler) LiveURL(slug string) string {
	return h.publicBaseURL + "/sites/" + slug
}

// List returns the caller's projects.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	projects, err := h.storage.Projects().ListByUser(ctx, middleware.GetUserID(ctx))
	if err != nil {
		internalError(w, r, err, "list projects")
		return
	}

	resp := make([]*ProjectResponse, len(projects))
	for i, p := range projects {
		resp[i] = projectToResponse(p)
	}
	jsonOK(w, resp)
}

// Create creates a project owned by the caller with a unique slug.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateRequest
	r.Body = http.MaxBytesReader(w, r.Body, 64<<10)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, http.StatusBadRequest, errCodeBadRequest, "invalid request body")
		return
	}

	if err := ValidateName(req.Name); err != nil {
		jsonError(w, http.StatusBadRequest, errCodeValidationFailed, err.Error())
		return
	}
	req.Description = strings.TrimSpace(req.Description)
	if err := ValidateDescription(req.Description); err != nil {
		jsonError(w, http.StatusBadRequest, errCodeValidationFailed, err.Error())
		return
	}

	ctx := r.Context()
	slug, err := h.uniqueSlug(r, Slugify(req.Name))
	if err != nil {
		internalError(w, r, err, "generate slug")
		return
	}
	if slug == "" {
		jsonError(w, http.StatusConflict, errCodeConflict, "could not find a free address for this name")
		return
	}

	project := models.NewProject(middleware.GetUserID(ctx), strings.TrimSpace(req.Name), req.Description)
	project.ID = uuid.New().String()
	project.Slug = slug

	if err := h.storage.Projects().Create(ctx, project); err != nil {
		internalError(w, r, err, "create project")
		return
	}

	metrics.ProjectsCreatedTotal.Inc()
	zerolog.Ctx(ctx).Info().Str("project_id", project.ID).Str("slug", slug).Msg("project created")
	jsonCreated(w, projectToResponse(project))
}

// uniqueSlug returns base or the first free base-N. An empty result means
// every candidate was taken.
func (h *Handler) uniqueSlug(r *http.Request, base string) (string, error) {
	for n := 1; n <= maxSlugAttempts; n++ {
		candidate := slugCandidate(base, n)
		exists, err := h.storage.Projects().SlugExists(r.Context(), candidate)
		if err != nil {
			return "", err
		}
		if !exists {
			return candidate, nil
		}
	}
	return "", nil
}

// Get returns one project.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	jsonOK(w, projectToResponse(middleware.GetProject(r.Context())))
}

// Update renames or re-describes a project. The slug never changes.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	var req UpdateRequest
	r.Body = http.MaxBytesReader(w, r.Body, 64<<10)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, http.StatusBadRequest, errCodeBadRequest, "invalid request body")
		return
	}

	ctx := r.Context()
	project := *middleware.GetProject(ctx)

	if req.Name != nil {
		if err := ValidateName(*req.Name); err != nil {
			jsonError(w, http.StatusBadRequest, errCodeValidationFailed, err.Error())
			return
		}
		project.Name = strings.TrimSpace(*req.Name)
	}
	if req.Description != nil {
		desc := strings.TrimSpace(*req.Description)
		if err := ValidateDescription(desc); err != nil {
			jsonError(w, http.StatusBadRequest, errCodeValidationFailed, err.Error())
			return
		}
		project.Description = desc
	}
	project.UpdatedAt = h.now()

	if err := h.storage.Projects().Update(ctx, &project); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			jsonError(w, http.StatusNotFound, errCodeNotFound, "project not found")
			return
		}
		internalError(w, r, err, "update project")
		return
	}
	jsonOK(w, projectToResponse(&project))
}

// Delete removes a project and drops its live site from the cache.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	project := middleware.GetProject(ctx)

	if err := h.storage.Projects().Delete(ctx, project.ID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			jsonError(w, http.StatusNotFound, errCodeNotFound, "project not found")
			return
		}
		internalError(w, r, err, "delete project")
		return
	}
	h.invalidate(r, project.Slug)

	zerolog.Ctx(ctx).Info().Str("project_id", project.ID).Msg("project deleted")
	jsonNoContent(w)
}

// readConfig reads a config body of any supported shape, migrates it, and
// validates it. On failure it writes the error response and returns nil.
func (h *Handler) readConfig(w http.ResponseWriter, r *http.Request, op string) (*siteconfig.SiteConfig, []byte) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxConfigBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			jsonError(w, http.StatusRequestEntityTooLarge, errCodeTooLarge, "config exceeds 1 MiB")
			return nil, nil
		}
		jsonError(w, http.StatusBadRequest, errCodeBadRequest, "invalid request body")
		return nil, nil
	}

	cfg, from, err := siteconfig.ParseVersion(body)
	if err != nil {
		h.recordInvalid(op)
		jsonError(w, http.StatusBadRequest, errCodeValidationFailed, err.Error())
		return nil, nil
	}
	if from < siteconfig.CurrentVersion {
		metrics.ConfigMigrationsTotal.WithLabelValues(versionLabel(from)).Inc()
	}
	if err := cfg.Validate(); err != nil {
		h.recordInvalid(op)
		jsonError(w, http.StatusBadRequest, errCodeValidationFailed, err.Error())
		return nil, nil
	}

	encoded, err := cfg.Encode()
	if err != nil {
		internalError(w, r, err, "encode config")
		return nil, nil
	}
	return cfg, encoded
}

func (h *Handler) recordInvalid(op string) {
	switch op {
	case "draft":
		metrics.DraftSavesTotal.WithLabelValues("invalid").Inc()
	case "publish":
		metrics.PublishesTotal.WithLabelValues("invalid").Inc()
	}
}

func versionLabel(v int) string {
	return "v" + strconv.Itoa(v)
}

// SaveDraft replaces the project's draft with the request body.
func (h *Handler) SaveDraft(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	project := middleware.GetProject(ctx)

	cfg, encoded := h.readConfig(w, r, "draft")
	if cfg == nil {
		return
	}

	at := h.now().UTC()
	rev, err := h.storage.Projects().SaveDraft(ctx, project.ID, string(encoded), at)
	if err != nil {
		metrics.DraftSavesTotal.WithLabelValues("error").Inc()
		if errors.Is(err, storage.ErrNotFound) {
			jsonError(w, http.StatusNotFound, errCodeNotFound, "project not found")
			return
		}
		internalError(w, r, err, "save draft")
		return
	}

	metrics.DraftSavesTotal.WithLabelValues("success").Inc()
	zerolog.Ctx(ctx).Debug().Str("project_id", project.ID).Int64("revision", rev).Msg("draft saved")
	jsonOK(w, &ConfigResponse{
		ProjectID: project.ID,
		Config:    encoded,
		Revision:  rev,
		UpdatedAt: &at,
	})
}

// GetDraft returns the stored draft.
func (h *Handler) GetDraft(w http.ResponseWriter, r *http.Request) {
	project := middleware.GetProject(r.Context())
	jsonOK(w, &ConfigResponse{
		ProjectID: project.ID,
		Config:    rawOrNull(project.DraftConfig),
		Revision:  project.DraftRevision,
		UpdatedAt: project.DraftUpdatedAt,
	})
}

// Publish stores the request body as both the draft and the live config and
// returns the live URL.
func (h *Handler) Publish(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	project := middleware.GetProject(ctx)

	cfg, encoded := h.readConfig(w, r, "publish")
	if cfg == nil {
		return
	}

	liveURL := h.LiveURL(project.Slug)
	if err := h.storage.Projects().Publish(ctx, project.ID, string(encoded), liveURL, h.now().UTC()); err != nil {
		metrics.PublishesTotal.WithLabelValues("error").Inc()
		if errors.Is(err, storage.ErrNotFound) {
			jsonError(w, http.StatusNotFound, errCodeNotFound, "project not found")
			return
		}
		internalError(w, r, err, "publish project")
		return
	}
	h.invalidate(r, project.Slug)

	metrics.PublishesTotal.WithLabelValues("success").Inc()
	zerolog.Ctx(ctx).Info().Str("project_id", project.ID).Str("live_url", liveURL).Msg("site published")
	jsonOK(w, &models.PublishResult{
		Message: PublishedMessage,
		LiveURL: liveURL,
	})
}

// GetPublished returns the live config.
func (h *Handler) GetPublished(w http.ResponseWriter, r *http.Request) {
	project := middleware.GetProject(r.Context())
	if !project.IsPublished() {
		jsonError(w, http.StatusNotFound, errCodeNotFound, "project has not been published")
		return
	}
	jsonOK(w, &ConfigResponse{
		ProjectID: project.ID,
		Config:    rawOrNull(project.PublishedConfig),
		UpdatedAt: project.PublishedAt,
		LiveURL:   project.LiveURL,
	})
}

// Preview renders the draft as HTML. A missing or unreadable draft renders
// the default config.
func (h *Handler) Preview(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	project := middleware.GetProject(ctx)

	cfg := siteconfig.Default()
	if project.DraftConfig != "" {
		loaded, err := siteconfig.Load(project.DraftConfig)
		if err != nil {
			zerolog.Ctx(ctx).Error().Err(err).Str("project_id", project.ID).Msg("stored draft unreadable, previewing defaults")
		} else {
			cfg = loaded
		}
	}

	page, err := preview.RenderPage(ctx, project.Name, cfg)
	if err != nil {
		internalError(w, r, err, "render preview")
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	w.Write(page)
}

func (h *Handler) invalidate(r *http.Request, slug string) {
	if err := h.cache.Delete(r.Context(), sitecache.SiteKey(slug)); err != nil {
		metrics.SiteCacheErrors.WithLabelValues(h.cache.Backend(), "delete").Inc()
		zerolog.Ctx(r.Context()).Warn().Err(err).Str("slug", slug).Msg("invalidate site cache")
	}
}

func rawOrNull(s string) json.RawMessage {
	if s == "" {
		return json.RawMessage("null")
	}
	return json.RawMessage(s)
}

// Routes returns the /api/projects subtree. Callers must authenticate first.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.WriteMethods(middleware.RequireCanWrite))

	r.Get("/", h.List)
	r.Post("/", h.Create)

	r.Route("/{id}", func(r chi.Router) {
		r.Use(middleware.ProjectAccess(h.storage.Projects()))
		r.Get("/", h.Get)
		r.Put("/", h.Update)
		r.Delete("/", h.Delete)
		r.Get("/draft", h.GetDraft)
		r.Post("/draft", h.SaveDraft)
		r.Post("/publish", h.Publish)
		r.Get("/published", h.GetPublished)
		r.Get("/preview", h.Preview)
	})
	return r
}
