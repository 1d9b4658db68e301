package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/good-yellow-bee/sitecraft/internal/api/middleware"
	"github.com/good-yellow-bee/sitecraft/internal/sitecache"
	"github.com/good-yellow-bee/sitecraft/internal/storage"
)

const testPassword = "TestPassword123"

// testServer creates a server on a temp-dir SQLite database and an in-memory site cache.
func testServer(t testing.TB) (*Server, storage.Storage) {
	t.Helper()

	store := storage.NewSQLiteStorage(filepath.Join(t.TempDir(), "api.db"))
	if err := store.Open(); err != nil {
		t.Fatalf("open storage: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	if err := store.Migrate(); err != nil {
		t.Fatalf("migrate storage: %v", err)
	}

	cfg := &Config{
		Address:          ":0",
		PublicBaseURL:    "https://sitecraft.test",
		JWTSecret:        []byte("test-jwt-secret-32-bytes-long!!"),
		AccessTokenTTL:   15 * time.Minute,
		RefreshTokenTTL:  24 * time.Hour,
		RateLimitPerIP:   10000,
		RateLimitPerUser: 10000,
		LockoutThreshold: 5,
		LockoutDuration:  30 * time.Minute,
		BcryptCost:       bcrypt.MinCost,
	}

	srv, err := New(cfg, store, sitecache.NewMemory(time.Minute, 100))
	if err != nil {
		t.Fatalf("create server: %v", err)
	}
	t.Cleanup(srv.Close)
	return srv, store
}

type session struct {
	token  string
	userID string
}

func request(t testing.TB, srv *Server, method, path, body string, s *session) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	if s != nil {
		req.Header.Set("Authorization", "Bearer "+s.token)
		req.Header.Set(middleware.UserIDHeader, s.userID)
	}
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeData(t testing.TB, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	var resp struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if err := json.Unmarshal(resp.Data, v); err != nil {
		t.Fatalf("decode data: %v", err)
	}
}

// signupAndSignin registers an account and returns a signed-in session.
func signupAndSignin(t testing.TB, srv *Server, name, email string) *session {
	t.Helper()

	rec := request(t, srv, "POST", "/api/auth/signup",
		`{"name":"`+name+`","email":"`+email+`","password":"`+testPassword+`"}`, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("signup status = %d: %s", rec.Code, rec.Body.String())
	}
	var user struct {
		ID string `json:"id"`
	}
	decodeData(t, rec, &user)

	rec = request(t, srv, "POST", "/api/auth/signin",
		`{"email":"`+email+`","password":"`+testPassword+`"}`, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("signin status = %d: %s", rec.Code, rec.Body.String())
	}
	var tokens struct {
		Token string `json:"token"`
	}
	decodeData(t, rec, &tokens)
	return &session{token: tokens.Token, userID: user.ID}
}

func TestHealthEndpoints(t *testing.T) {
	srv, _ := testServer(t)

	for _, path := range []string{"/health", "/health/live", "/health/ready"} {
		rec := request(t, srv, "GET", path, "", nil)
		if rec.Code != http.StatusOK {
			t.Errorf("%s status = %d, want 200: %s", path, rec.Code, rec.Body.String())
		}
	}
}

func TestUnknownRoute(t *testing.T) {
	srv, _ := testServer(t)

	rec := request(t, srv, "GET", "/api/nothing-here", "", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	var resp Response
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Error == nil || resp.Error.Code != ErrCodeNotFound {
		t.Errorf("error = %+v, want NOT_FOUND", resp.Error)
	}
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	srv, _ := testServer(t)

	for _, path := range []string{"/api/users/me", "/api/projects"} {
		rec := request(t, srv, "GET", path, "", nil)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("%s status = %d, want 401", path, rec.Code)
		}
	}
}

func TestUserIDHeaderMismatch(t *testing.T) {
	srv, _ := testServer(t)
	s := signupAndSignin(t, srv, "Ada", "ada@example.com")

	forged := &session{token: s.token, userID: "someone-else"}
	rec := request(t, srv, "GET", "/api/users/me", "", forged)
	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", rec.Code)
	}
}

func TestSecurityHeaders(t *testing.T) {
	srv, _ := testServer(t)

	rec := request(t, srv, "GET", "/api/users/me", "", nil)
	if got := rec.Header().Get("X-Frame-Options"); got != "DENY" {
		t.Errorf("X-Frame-Options = %q, want DENY", got)
	}
	if rec.Header().Get(middleware.RequestIDHeader) == "" {
		t.Error("missing request id header")
	}
}

// TestEditPublishServe walks one site from creation to the live page.
func TestEditPublishServe(t *testing.T) {
	srv, _ := testServer(t)
	s := signupAndSignin(t, srv, "Ada", "ada@example.com")

	rec := request(t, srv, "GET", "/api/users/me", "", s)
	var me struct {
		Role string `json:"role"`
	}
	decodeData(t, rec, &me)
	if me.Role != "admin" {
		t.Errorf("first account role = %q, want admin", me.Role)
	}

	rec = request(t, srv, "POST", "/api/projects", `{"name":"Ada's Bakery"}`, s)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d: %s", rec.Code, rec.Body.String())
	}
	var project struct {
		ID   string `json:"id"`
		Slug string `json:"slug"`
	}
	decodeData(t, rec, &project)
	if project.Slug != "ada-s-bakery" {
		t.Errorf("slug = %q, want ada-s-bakery", project.Slug)
	}
	base := "/api/projects/" + project.ID

	// Live site does not exist until the first publish.
	if rec := request(t, srv, "GET", "/sites/"+project.Slug, "", nil); rec.Code != http.StatusNotFound {
		t.Errorf("unpublished site status = %d, want 404", rec.Code)
	}

	legacyDraft := `{"navbar":{"brandName":"Ada's","sticky":true,"menuItems":[]},"hero":{"heading":"Fresh bread","buttonText":"Order","buttonLink":"/order"}}`
	rec = request(t, srv, "POST", base+"/draft", legacyDraft, s)
	if rec.Code != http.StatusOK {
		t.Fatalf("save draft status = %d: %s", rec.Code, rec.Body.String())
	}

	rec = request(t, srv, "GET", base, "", s)
	var state struct {
		Published             bool `json:"published"`
		HasUnpublishedChanges bool `json:"hasUnpublishedChanges"`
	}
	decodeData(t, rec, &state)
	if state.Published || !state.HasUnpublishedChanges {
		t.Errorf("after draft: %+v, want unpublished with changes", state)
	}

	rec = request(t, srv, "POST", base+"/publish", `{"version":2,"navbar":{"brandName":"Ada's"},"hero":{"heading":"Fresh bread"}}`, s)
	if rec.Code != http.StatusOK {
		t.Fatalf("publish status = %d: %s", rec.Code, rec.Body.String())
	}
	var result struct {
		Message string `json:"message"`
		LiveURL string `json:"liveUrl"`
	}
	decodeData(t, rec, &result)
	if result.LiveURL != "https://sitecraft.test/sites/ada-s-bakery" {
		t.Errorf("liveUrl = %q", result.LiveURL)
	}

	rec = request(t, srv, "GET", base, "", s)
	decodeData(t, rec, &state)
	if !state.Published || state.HasUnpublishedChanges {
		t.Errorf("after publish: %+v, want published without changes", state)
	}

	rec = request(t, srv, "GET", "/sites/"+project.Slug, "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("live site status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Fresh bread") {
		t.Error("live site missing published heading")
	}
	if got := rec.Header().Get("X-Frame-Options"); got != "SAMEORIGIN" {
		t.Errorf("live site X-Frame-Options = %q, want SAMEORIGIN", got)
	}

	// A second account cannot see the first account's project.
	other := signupAndSignin(t, srv, "Bob", "bob@example.com")
	if rec := request(t, srv, "GET", base, "", other); rec.Code != http.StatusNotFound {
		t.Errorf("other user status = %d, want 404", rec.Code)
	}
}
