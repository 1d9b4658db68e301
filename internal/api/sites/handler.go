// Package sites serves published sites at /sites/{slug}.
package sites

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/good-yellow-bee/sitecraft/internal/metrics"
	"github.com/good-yellow-bee/sitecraft/internal/preview"
	"github.com/good-yellow-bee/sitecraft/internal/sitecache"
	"github.com/good-yellow-bee/sitecraft/internal/siteconfig"
	"github.com/good-yellow-bee/sitecraft/internal/storage"
)

// CacheHeader reports whether a page came from the site cache.
const CacheHeader = "X-Site-Cache"

var errNotPublished = errors.New("site not published")

// Handler renders published configs and caches the resulting pages.
type Handler struct {
	projects storage.ProjectRepository
	cache    sitecache.Cache
	group    singleflight.Group
}

// NewHandler creates a live site handler. cache may be nil.
func NewHandler(projects storage.ProjectRepository, cache sitecache.Cache) *Handler {
	if cache == nil {
		cache = sitecache.Nop{}
	}
	return &Handler{projects: projects, cache: cache}
}

// Serve writes the published page for {slug}.
func (h *Handler) Serve(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	slug := chi.URLParam(r, "slug")
	key := sitecache.SiteKey(slug)
	backend := h.cache.Backend()

	page, err := h.cache.Get(ctx, key)
	switch {
	case err == nil:
		metrics.SiteCacheHits.WithLabelValues(backend).Inc()
		writePage(w, page, "HIT")
		return
	case !errors.Is(err, sitecache.ErrMiss):
		metrics.SiteCacheErrors.WithLabelValues(backend, "get").Inc()
		zerolog.Ctx(ctx).Warn().Err(err).Str("slug", slug).Msg("site cache read failed")
	}
	metrics.SiteCacheMisses.WithLabelValues(backend).Inc()

	v, err, _ := h.group.Do(slug, func() (any, error) {
		return h.render(ctx, slug)
	})
	if errors.Is(err, errNotPublished) {
		notFound(w)
		return
	}
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Str("slug", slug).Msg("render live site")
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	writePage(w, v.([]byte), "MISS")
}

func (h *Handler) render(ctx context.Context, slug string) ([]byte, error) {
	project, err := h.projects.GetBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	if project == nil || !project.IsPublished() {
		return nil, errNotPublished
	}

	cfg, err := siteconfig.Load(project.PublishedConfig)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Str("slug", slug).Msg("published config unreadable, serving defaults")
		cfg = siteconfig.Default()
	}

	page, err := preview.RenderPage(ctx, project.Name, cfg)
	if err != nil {
		return nil, err
	}

	if err := h.cache.Set(ctx, sitecache.SiteKey(slug), page); err != nil {
		metrics.SiteCacheErrors.WithLabelValues(h.cache.Backend(), "set").Inc()
		zerolog.Ctx(ctx).Warn().Err(err).Str("slug", slug).Msg("site cache write failed")
	}
	return page, nil
}

func writePage(w http.ResponseWriter, page []byte, cacheStatus string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "public, max-age=60")
	w.Header().Set(CacheHeader, cacheStatus)
	w.WriteHeader(http.StatusOK)
	w.Write(page)
}

func notFound(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusNotFound)
	w.Write([]byte(`<!DOCTYPE html><html lang="en"><head><meta charset="utf-8"><title>Not found</title></head><body><h1>Site not found</h1></body></html>`))
}
