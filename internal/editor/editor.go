// Package editor holds an editing session for one project: the in-memory
// site config, debounced draft auto-save, publish, and preview subscribers.
//
// All backend writes of a session go through one write lock. A publish
// cancels the pending auto-save, waits for an in-flight save to finish and
// then sends the latest config, so a draft write can never land after the
// publish that superseded it.
package editor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/good-yellow-bee/sitecraft/internal/models"
	"github.com/good-yellow-bee/sitecraft/internal/siteconfig"
)

// DefaultSaveDelay is the quiescence window before a draft is auto-saved.
const DefaultSaveDelay = 2 * time.Second

var (
	// ErrPublishInProgress is returned when Publish is called while another
	// publish of the same session is running.
	ErrPublishInProgress = errors.New("publish already in progress")
	// ErrClosed is returned for edits after Close.
	ErrClosed = errors.New("editor closed")
	// ErrItemNotFound is returned when an edit names a missing nav item or button.
	ErrItemNotFound = errors.New("item not found")
)

// Operation names passed to Options.OnError.
const (
	OpSave    = "save"
	OpPublish = "publish"
)

// Backend is the remote side of a session.
type Backend interface {
	GetProject(ctx context.Context, id string) (*models.Project, error)
	SaveDraft(ctx context.Context, id string, cfg *siteconfig.SiteConfig) error
	Publish(ctx context.Context, id string, cfg *siteconfig.SiteConfig) (*models.PublishResult, error)
}

// Options configures an Editor.
type Options struct {
	// SaveDelay is the auto-save quiescence window.
	SaveDelay time.Duration

	// RequestTimeout bounds auto-save requests, which have no caller context.
	RequestTimeout time.Duration

	Logger *zerolog.Logger

	// OnSaved is called after every successful draft save, including the
	// draft write of a successful publish.
	OnSaved func(State)

	// OnError is called when a background auto-save fails.
	OnError func(op string, err error)
}

func (o *Options) setDefaults() {
	if o.SaveDelay == 0 {
		o.SaveDelay = DefaultSaveDelay
	}
	if o.RequestTimeout == 0 {
		o.RequestTimeout = 10 * time.Second
	}
}

// State is a snapshot of the session status flags.
type State struct {
	Published             bool
	HasUnpublishedChanges bool
	Saving                bool
	Publishing            bool
	PendingSave           bool
	LastError             error
	LiveURL               string
	Saves                 int64
	FailedSaves           int64
}

// Editor is an editing session for one project.
type Editor struct {
	backend   Backend
	projectID string
	opts      Options
	log       zerolog.Logger
	debounce  *Debouncer

	// writeMu serializes SaveDraft and Publish calls.
	writeMu sync.Mutex

	mu          sync.Mutex
	project     *models.Project
	config      *siteconfig.SiteConfig
	published   bool
	unpublished bool
	saving      bool
	publishing  bool
	lastErr     error
	liveURL     string
	editSeq     uint64
	savedSeq    uint64
	closed      bool
	subscribers []func(*siteconfig.SiteConfig)

	// notifyMu orders subscriber calls; notifiedSeq is the newest edit delivered.
	notifyMu    sync.Mutex
	notifiedSeq uint64

	saves       atomic.Int64
	failedSaves atomic.Int64
}

// Open loads the project and its draft. Duplicate ids and extra buttons in
// the stored draft are repaired; a draft that still cannot be parsed or
// validated is logged and replaced by the default config.
func Open(ctx context.Context, backend Backend, projectID string, opts Options) (*Editor, error) {
	opts.setDefaults()

	logger := zerolog.Nop()
	if opts.Logger != nil {
		logger = *opts.Logger
	}

	project, err := backend.GetProject(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("load project: %w", err)
	}

	e := &Editor{
		backend:     backend,
		projectID:   projectID,
		opts:        opts,
		log:         logger.With().Str("project_id", projectID).Logger(),
		project:     project,
		published:   project.IsPublished(),
		unpublished: project.IsPublished() && project.HasUnpublishedChanges(),
		liveURL:     project.LiveURL,
	}
	e.config = e.loadDraft(project.DraftConfig)
	e.debounce = NewDebouncer(opts.SaveDelay, e.autoSave)
	return e, nil
}

func (e *Editor) loadDraft(raw string) *siteconfig.SiteConfig {
	if strings.TrimSpace(raw) == "" {
		return siteconfig.Default()
	}
	cfg, err := siteconfig.Load(raw)
	if err != nil {
		e.log.Error().Err(err).Msg("failed to parse draft config, using defaults")
		return siteconfig.Default()
	}
	for _, note := range cfg.Repair() {
		e.log.Warn().Str("change", note).Msg("repaired stored draft")
	}
	if err := cfg.Validate(); err != nil {
		e.log.Error().Err(err).Msg("stored draft is invalid, using defaults")
		return siteconfig.Default()
	}
	return cfg
}

// ProjectID returns the id of the edited project.
func (e *Editor) ProjectID() string {
	return e.projectID
}

// ProjectName returns the name of the edited project.
func (e *Editor) ProjectName() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.project.Name
}

// Config returns a copy of the current config.
func (e *Editor) Config() *siteconfig.SiteConfig {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.config.Clone()
}

// State returns the current status flags.
func (e *Editor) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stateLocked()
}

func (e *Editor) stateLocked() State {
	return State{
		Published:             e.published,
		HasUnpublishedChanges: e.unpublished,
		Saving:                e.saving,
		Publishing:            e.publishing,
		PendingSave:           e.editSeq != e.savedSeq,
		LastError:             e.lastErr,
		LiveURL:               e.liveURL,
		Saves:                 e.saves.Load(),
		FailedSaves:           e.failedSaves.Load(),
	}
}

// Subscribe registers fn to receive new configs in edit order. fn is called
// with a copy, must not block and must not edit the session. A config older
// than one already delivered is skipped.
func (e *Editor) Subscribe(fn func(*siteconfig.SiteConfig)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.subscribers = append(e.subscribers, fn)
}

// Update applies fn to a copy of the config. When fn succeeds and the result
// validates, the copy becomes current, subscribers are notified and the
// auto-save countdown restarts.
func (e *Editor) Update(fn func(*siteconfig.SiteConfig) error) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return ErrClosed
	}
	next := e.config.Clone()
	if err := fn(next); err != nil {
		e.mu.Unlock()
		return err
	}
	next.Normalize()
	if err := next.Validate(); err != nil {
		e.mu.Unlock()
		return fmt.Errorf("invalid config: %w", err)
	}
	e.config = next
	e.editSeq++
	seq := e.editSeq
	subs := append([]func(*siteconfig.SiteConfig){}, e.subscribers...)
	e.mu.Unlock()

	e.debounce.Trigger()
	e.notify(seq, next, subs)
	return nil
}

func (e *Editor) notify(seq uint64, cfg *siteconfig.SiteConfig, subs []func(*siteconfig.SiteConfig)) {
	e.notifyMu.Lock()
	defer e.notifyMu.Unlock()
	if seq <= e.notifiedSeq {
		return
	}
	e.notifiedSeq = seq
	for _, sub := range subs {
		sub(cfg.Clone())
	}
}

// ReplaceConfig swaps in cfg as the whole document.
func (e *Editor) ReplaceConfig(cfg *siteconfig.SiteConfig) error {
	return e.Update(func(c *siteconfig.SiteConfig) error {
		*c = *cfg.Clone()
		return nil
	})
}

// AddHeroButton appends a hero button; a third button fails with
// siteconfig.ErrTooManyButtons and leaves the config unchanged.
func (e *Editor) AddHeroButton(text, link string) (siteconfig.HeroButton, error) {
	var added siteconfig.HeroButton
	err := e.Update(func(c *siteconfig.SiteConfig) error {
		b, err := c.Hero.AddButton(text, link)
		added = b
		return err
	})
	return added, err
}

// RemoveHeroButton deletes a hero button.
func (e *Editor) RemoveHeroButton(id string) error {
	return e.Update(func(c *siteconfig.SiteConfig) error {
		if !c.Hero.RemoveButton(id) {
			return fmt.Errorf("button %q: %w", id, ErrItemNotFound)
		}
		return nil
	})
}

// UpdateHeroButton applies fn to a hero button. The button keeps its id.
func (e *Editor) UpdateHeroButton(id string, fn func(*siteconfig.HeroButton)) error {
	return e.Update(func(c *siteconfig.SiteConfig) error {
		if !c.Hero.UpdateButton(id, fn) {
			return fmt.Errorf("button %q: %w", id, ErrItemNotFound)
		}
		return nil
	})
}

// AddNavItem appends a navigation link.
func (e *Editor) AddNavItem(title, link string, align siteconfig.Alignment) (siteconfig.NavItem, error) {
	var added siteconfig.NavItem
	err := e.Update(func(c *siteconfig.SiteConfig) error {
		added = c.Navbar.AddNavItem(title, link, align)
		return nil
	})
	return added, err
}

// UpdateNavItem applies fn to a navigation link. The link keeps its id.
func (e *Editor) UpdateNavItem(id string, fn func(*siteconfig.NavItem)) error {
	return e.Update(func(c *siteconfig.SiteConfig) error {
		if !c.Navbar.UpdateNavItem(id, fn) {
			return fmt.Errorf("nav item %q: %w", id, ErrItemNotFound)
		}
		return nil
	})
}

// RemoveNavItem deletes a navigation link.
func (e *Editor) RemoveNavItem(id string) error {
	return e.Update(func(c *siteconfig.SiteConfig) error {
		if !c.Navbar.RemoveNavItem(id) {
			return fmt.Errorf("nav item %q: %w", id, ErrItemNotFound)
		}
		return nil
	})
}

// MoveNavItem moves a navigation link one place up (-1) or down (1).
func (e *Editor) MoveNavItem(id string, delta int) error {
	return e.Update(func(c *siteconfig.SiteConfig) error {
		if !c.Navbar.MoveNavItem(id, delta) {
			return fmt.Errorf("move nav item %q by %d: %w", id, delta, ErrItemNotFound)
		}
		return nil
	})
}

// Flush saves pending edits now instead of waiting for the countdown.
func (e *Editor) Flush(ctx context.Context) error {
	e.debounce.Cancel()
	return e.save(ctx)
}

// Publish sends the latest config to the publish endpoint. On success the
// session is marked published and the unpublished-changes flag is cleared;
// on failure both flags are left as they were and the error is returned.
func (e *Editor) Publish(ctx context.Context) (*models.PublishResult, error) {
	e.mu.Lock()
	if e.publishing {
		e.mu.Unlock()
		return nil, ErrPublishInProgress
	}
	e.publishing = true
	e.mu.Unlock()

	pending := e.debounce.Cancel()

	e.writeMu.Lock()
	e.mu.Lock()
	cfg := e.config.Clone()
	seq := e.editSeq
	e.mu.Unlock()

	res, err := e.backend.Publish(ctx, e.projectID, cfg)
	e.writeMu.Unlock()

	e.mu.Lock()
	e.publishing = false
	if err != nil {
		e.lastErr = err
		rearm := pending || e.editSeq != e.savedSeq
		e.mu.Unlock()
		if rearm {
			e.debounce.Trigger()
		}
		e.log.Error().Err(err).Msg("publish failed")
		return nil, fmt.Errorf("publish: %w", err)
	}

	e.published = true
	e.savedSeq = seq
	// Edits made while the request was in flight are not live yet.
	e.unpublished = e.editSeq != seq
	e.lastErr = nil
	if res != nil && res.LiveURL != "" {
		e.liveURL = res.LiveURL
	}
	// The publish request also wrote the draft slot.
	e.saves.Add(1)
	state := e.stateLocked()
	e.mu.Unlock()

	e.log.Info().Str("live_url", state.LiveURL).Msg("site published")
	if e.opts.OnSaved != nil {
		e.opts.OnSaved(state)
	}
	return res, nil
}

// Close stops the countdown and saves pending edits.
func (e *Editor) Close(ctx context.Context) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	e.mu.Unlock()

	e.debounce.Stop()
	return e.save(ctx)
}

func (e *Editor) autoSave() {
	ctx, cancel := context.WithTimeout(context.Background(), e.opts.RequestTimeout)
	defer cancel()

	if err := e.save(ctx); err != nil {
		e.log.Error().Err(err).Msg("auto-save failed")
		if e.opts.OnError != nil {
			e.opts.OnError(OpSave, err)
		}
	}
}

// save writes the current config as the draft when it has unsaved edits.
func (e *Editor) save(ctx context.Context) error {
	e.writeMu.Lock()
	defer e.writeMu.Unlock()

	e.mu.Lock()
	if e.editSeq == e.savedSeq {
		e.mu.Unlock()
		return nil
	}
	cfg := e.config.Clone()
	seq := e.editSeq
	e.saving = true
	e.mu.Unlock()

	err := e.backend.SaveDraft(ctx, e.projectID, cfg)

	e.mu.Lock()
	e.saving = false
	if err != nil {
		e.lastErr = err
		e.mu.Unlock()
		e.failedSaves.Add(1)
		return fmt.Errorf("save draft: %w", err)
	}
	e.savedSeq = seq
	e.unpublished = true
	e.lastErr = nil
	e.saves.Add(1)
	state := e.stateLocked()
	e.mu.Unlock()

	e.log.Debug().Uint64("seq", seq).Msg("draft saved")
	if e.opts.OnSaved != nil {
		e.opts.OnSaved(state)
	}
	return nil
}
