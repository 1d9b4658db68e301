package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/good-yellow-bee/sitecraft/internal/api"
	"github.com/good-yellow-bee/sitecraft/internal/editor"
	"github.com/good-yellow-bee/sitecraft/internal/session"
	"github.com/good-yellow-bee/sitecraft/internal/sitecache"
	"github.com/good-yellow-bee/sitecraft/internal/siteconfig"
	"github.com/good-yellow-bee/sitecraft/internal/storage"
)

const testPassword = "Password123"

// startServer runs the real API on a temp-dir database.
func startServer(t *testing.T) *httptest.Server {
	t.Helper()

	store := storage.NewSQLiteStorage(filepath.Join(t.TempDir(), "client.db"))
	if err := store.Open(); err != nil {
		t.Fatalf("open storage: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	if err := store.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	srv, err := api.New(&api.Config{
		JWTSecret:        []byte("client-test-secret"),
		PublicBaseURL:    "https://sites.test",
		RateLimitPerIP:   10000,
		RateLimitPerUser: 10000,
		BcryptCost:       bcrypt.MinCost,
	}, store, sitecache.NewMemory(time.Minute, 0))
	if err != nil {
		t.Fatalf("create api server: %v", err)
	}
	t.Cleanup(srv.Close)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func newClient(t *testing.T, baseURL string) (*Client, *session.Store) {
	t.Helper()
	store := session.NewStore(filepath.Join(t.TempDir(), "session.json"))
	return New(baseURL, store, Options{Timeout: 5 * time.Second}), store
}

func signedIn(t *testing.T, c *Client, email string) *session.Session {
	t.Helper()
	ctx := context.Background()
	if _, err := c.Signup(ctx, "Test User", email, testPassword); err != nil {
		t.Fatalf("Signup() error = %v", err)
	}
	sess, err := c.Signin(ctx, email, testPassword)
	if err != nil {
		t.Fatalf("Signin() error = %v", err)
	}
	return sess
}

func TestSigninStoresSession(t *testing.T) {
	ts := startServer(t)
	c, store := newClient(t, ts.URL)
	ctx := context.Background()

	sess := signedIn(t, c, "ada@example.com")
	if sess.Identity().Email != "ada@example.com" {
		t.Errorf("identity email = %q", sess.Identity().Email)
	}

	stored, err := store.Get()
	if err != nil {
		t.Fatalf("store.Get() error = %v", err)
	}
	if stored.UserID() != sess.UserID() || stored.Server != ts.URL {
		t.Errorf("stored session = %+v", stored)
	}

	me, err := c.Me(ctx)
	if err != nil {
		t.Fatalf("Me() error = %v", err)
	}
	if me.ID != sess.UserID() {
		t.Errorf("Me().ID = %q, want %q", me.ID, sess.UserID())
	}

	refreshed, err := c.Refresh(ctx)
	if err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if refreshed.RefreshToken == sess.RefreshToken {
		t.Error("refresh token not rotated")
	}

	if err := c.Logout(ctx); err != nil {
		t.Fatalf("Logout() error = %v", err)
	}
	if _, err := store.Get(); !errors.Is(err, session.ErrNoSession) {
		t.Errorf("session after logout: %v", err)
	}
	if _, err := c.Me(ctx); !errors.Is(err, session.ErrNoSession) {
		t.Errorf("Me() after logout error = %v, want ErrNoSession", err)
	}
}

func TestSigninWrongPassword(t *testing.T) {
	ts := startServer(t)
	c, _ := newClient(t, ts.URL)
	ctx := context.Background()

	if _, err := c.Signup(ctx, "Ada", "ada@example.com", testPassword); err != nil {
		t.Fatalf("Signup() error = %v", err)
	}
	_, err := c.Signin(ctx, "ada@example.com", "WrongPass1")
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusUnauthorized {
		t.Errorf("Signin() error = %v, want 401 APIError", err)
	}
}

func TestProjectLifecycle(t *testing.T) {
	ts := startServer(t)
	c, _ := newClient(t, ts.URL)
	ctx := context.Background()
	signedIn(t, c, "ada@example.com")

	p, err := c.CreateProject(ctx, "Portfolio", "my work")
	if err != nil {
		t.Fatalf("CreateProject() error = %v", err)
	}
	if p.Slug != "portfolio" {
		t.Errorf("slug = %q", p.Slug)
	}

	draft, err := c.Draft(ctx, p.ID)
	if err != nil {
		t.Fatalf("Draft() error = %v", err)
	}
	cfg, err := draft.Config()
	if err != nil || cfg.Navbar.BrandName != "My Site" {
		t.Errorf("empty draft Config() = %+v, %v; want defaults", cfg, err)
	}

	cfg.Navbar.BrandName = "Portfolio"
	stored, err := c.SaveDraftRevision(ctx, p.ID, cfg)
	if err != nil {
		t.Fatalf("SaveDraftRevision() error = %v", err)
	}
	if stored.Revision != 1 {
		t.Errorf("revision = %d, want 1", stored.Revision)
	}

	page, err := c.Preview(ctx, p.ID)
	if err != nil {
		t.Fatalf("Preview() error = %v", err)
	}
	if !strings.Contains(string(page), "Portfolio") {
		t.Error("preview missing saved brand name")
	}

	if _, err := c.Published(ctx, p.ID); !IsNotFound(err) {
		t.Errorf("Published() before publish error = %v, want 404", err)
	}

	result, err := c.Publish(ctx, p.ID, cfg)
	if err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	if result.LiveURL != "https://sites.test/sites/portfolio" {
		t.Errorf("LiveURL = %q", result.LiveURL)
	}

	got, err := c.Project(ctx, p.ID)
	if err != nil {
		t.Fatalf("Project() error = %v", err)
	}
	if !got.Published || got.HasUnpublishedChanges {
		t.Errorf("after publish: published=%v changes=%v", got.Published, got.HasUnpublishedChanges)
	}

	name := "Renamed"
	if _, err := c.UpdateProject(ctx, p.ID, &name, nil); err != nil {
		t.Fatalf("UpdateProject() error = %v", err)
	}
	list, err := c.ListProjects(ctx)
	if err != nil || len(list) != 1 || list[0].Name != "Renamed" {
		t.Errorf("ListProjects() = %v, %v", list, err)
	}

	if err := c.DeleteProject(ctx, p.ID); err != nil {
		t.Fatalf("DeleteProject() error = %v", err)
	}
	if _, err := c.Project(ctx, p.ID); !IsNotFound(err) {
		t.Errorf("Project() after delete error = %v, want 404", err)
	}
}

func TestEditorOverClient(t *testing.T) {
	ts := startServer(t)
	c, _ := newClient(t, ts.URL)
	ctx := context.Background()
	signedIn(t, c, "ada@example.com")

	p, err := c.CreateProject(ctx, "Shop", "")
	if err != nil {
		t.Fatalf("CreateProject() error = %v", err)
	}

	ed, err := editor.Open(ctx, c, p.ID, editor.Options{SaveDelay: 10 * time.Millisecond})
	if err != nil {
		t.Fatalf("editor.Open() error = %v", err)
	}
	if _, err := ed.AddHeroButton("Buy", "/buy"); err != nil {
		t.Fatalf("AddHeroButton() error = %v", err)
	}
	if err := ed.Close(ctx); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	draft, err := c.Draft(ctx, p.ID)
	if err != nil {
		t.Fatalf("Draft() error = %v", err)
	}
	cfg, err := draft.Config()
	if err != nil {
		t.Fatalf("Config() error = %v", err)
	}
	if len(cfg.Hero.Buttons) != 1 || cfg.Hero.Buttons[0].Text != "Buy" {
		t.Errorf("saved buttons = %+v", cfg.Hero.Buttons)
	}
	if cfg.Version != siteconfig.CurrentVersion {
		t.Errorf("stored version = %d", cfg.Version)
	}
}

func TestUnauthorizedClearsSession(t *testing.T) {
	for _, status := range []int{http.StatusUnauthorized, http.StatusForbidden} {
		t.Run(http.StatusText(status), func(t *testing.T) {
			var gotAuth, gotUser string
			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotAuth = r.Header.Get("Authorization")
				gotUser = r.Header.Get(UserIDHeader)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(status)
				w.Write([]byte(`{"error":{"code":"UNAUTHORIZED","message":"invalid token"}}`))
			}))
			defer ts.Close()

			c, store := newClient(t, ts.URL)
			if err := store.Save(&session.Session{AccessToken: "stale", User: session.Identity{UserID: "u1"}}); err != nil {
				t.Fatalf("Save() error = %v", err)
			}

			_, err := c.ListProjects(context.Background())
			if !errors.Is(err, ErrUnauthorized) {
				t.Fatalf("ListProjects() error = %v, want ErrUnauthorized", err)
			}
			if gotAuth != "Bearer stale" || gotUser != "u1" {
				t.Errorf("headers = %q / %q", gotAuth, gotUser)
			}
			if _, err := store.Get(); !errors.Is(err, session.ErrNoSession) {
				t.Errorf("session not cleared: %v", err)
			}
		})
	}
}

func TestAPIErrorDecoded(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":{"code":"VALIDATION_FAILED","message":"hero: maximum 2 buttons allowed"}}`))
	}))
	defer ts.Close()

	c, store := newClient(t, ts.URL)
	store.Save(&session.Session{AccessToken: "tok", User: session.Identity{UserID: "u1"}})

	err := c.SaveDraft(context.Background(), "p1", siteconfig.Default())
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("SaveDraft() error = %v, want APIError", err)
	}
	if apiErr.Code != "VALIDATION_FAILED" || !strings.Contains(apiErr.Error(), "maximum 2 buttons") {
		t.Errorf("APIError = %+v", apiErr)
	}
	if _, err := store.Get(); err != nil {
		t.Error("validation error should keep the session")
	}
}

func TestSessionFromContext(t *testing.T) {
	var gotAuth string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte(`{"data":[]}`))
	}))
	defer ts.Close()

	c := New(ts.URL, nil, Options{})
	ctx := session.NewContext(context.Background(), &session.Session{AccessToken: "ctx-token", User: session.Identity{UserID: "u"}})
	if _, err := c.ListProjects(ctx); err != nil {
		t.Fatalf("ListProjects() error = %v", err)
	}
	if gotAuth != "Bearer ctx-token" {
		t.Errorf("Authorization = %q", gotAuth)
	}

	if _, err := c.ListProjects(context.Background()); !errors.Is(err, session.ErrNoSession) {
		t.Errorf("no session error = %v", err)
	}
}

func TestServerErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer ts.Close()

	c, store := newClient(t, ts.URL)
	store.Save(&session.Session{AccessToken: "tok", User: session.Identity{UserID: "u1"}})

	err := c.SaveDraft(context.Background(), "p1", siteconfig.Default())
	if !IsStatus(err, http.StatusServiceUnavailable) {
		t.Fatalf("SaveDraft() error = %v, want 503", err)
	}
	if calls.Load() != 1 {
		t.Errorf("request sent %d times, want 1", calls.Load())
	}
}

func TestSessionsListAndRevoke(t *testing.T) {
	ts := startServer(t)
	ctx := context.Background()

	laptopStore := session.NewStore(filepath.Join(t.TempDir(), "laptop.json"))
	laptop := New(ts.URL, laptopStore, Options{UserAgent: "sitectl/laptop"})
	signedIn(t, laptop, "ada@example.com")

	ci, ciStore := newClient(t, ts.URL)
	if _, err := ci.Signin(ctx, "ada@example.com", testPassword); err != nil {
		t.Fatalf("Signin() error = %v", err)
	}

	list, err := laptop.Sessions(ctx)
	if err != nil {
		t.Fatalf("Sessions() error = %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("Sessions() = %+v, want 2", list)
	}
	var ciID string
	for _, s := range list {
		switch {
		case s.Client == "sitectl/laptop":
		case strings.HasPrefix(s.Client, "sitecraft-client/"):
			ciID = s.ID
		default:
			t.Errorf("unexpected client %q", s.Client)
		}
	}
	if ciID == "" {
		t.Fatal("default client session not listed")
	}

	if err := laptop.RevokeSession(ctx, ciID); err != nil {
		t.Fatalf("RevokeSession() error = %v", err)
	}
	if _, err := ci.Refresh(ctx); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("Refresh() after revoke error = %v, want ErrUnauthorized", err)
	}
	if sess, _ := ciStore.Get(); sess != nil {
		t.Error("revoked client kept its session")
	}
	if _, err := laptop.Refresh(ctx); err != nil {
		t.Errorf("laptop Refresh() error = %v", err)
	}
	if err := laptop.RevokeSession(ctx, ciID); !IsNotFound(err) {
		t.Errorf("second RevokeSession() error = %v, want not found", err)
	}
}
