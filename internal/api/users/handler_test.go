package users

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/good-yellow-bee/sitecraft/internal/api/auth"
	"github.com/good-yellow-bee/sitecraft/internal/api/middleware"
	"github.com/good-yellow-bee/sitecraft/internal/models"
	"github.com/good-yellow-bee/sitecraft/internal/storage"
)

const testPassword = "Secret123"

func setupTestDB(t *testing.T) storage.Storage {
	t.Helper()
	store := storage.NewSQLiteStorage(filepath.Join(t.TempDir(), "users.db"))
	if err := store.Open(); err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	if err := store.Migrate(); err != nil {
		t.Fatalf("migrate database: %v", err)
	}
	return store
}

func createUser(t *testing.T, store storage.Storage, email string, role models.Role) *models.User {
	t.Helper()
	hash, err := auth.HashPassword(testPassword, bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	user := models.NewUser("User "+email, email, role)
	user.ID = uuid.New().String()
	user.PasswordHash = hash
	if err := store.Users().Create(context.Background(), user); err != nil {
		t.Fatalf("create user: %v", err)
	}
	return user
}

func serve(t *testing.T, h *Handler, method, path, body string, as *models.User) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	claims := &auth.Claims{UserID: as.ID, Role: as.Role}
	claims.Subject = as.Email
	req = req.WithContext(middleware.WithClaims(req.Context(), claims))
	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, req)
	return rec
}

func decodeData(t *testing.T, rec *httptest.ResponseRecorder, v any) {
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

func TestGetCurrentUser(t *testing.T) {
	store := setupTestDB(t)
	h := NewHandler(store, auth.PasswordPolicy{}, bcrypt.MinCost)
	user := createUser(t, store, "me@example.com", models.RoleEditor)

	rec := serve(t, h, "GET", "/me", "", user)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "password") {
		t.Error("response exposes password hash")
	}
	var got UserResponse
	decodeData(t, rec, &got)
	if got.ID != user.ID || got.Email != "me@example.com" || got.Role != models.RoleEditor {
		t.Errorf("GetCurrentUser() = %+v", got)
	}

	ghost := &models.User{ID: "gone", Role: models.RoleEditor}
	if rec := serve(t, h, "GET", "/me", "", ghost); rec.Code != http.StatusNotFound {
		t.Errorf("deleted user status = %d, want 404", rec.Code)
	}
}

func TestUpdateCurrentUser(t *testing.T) {
	store := setupTestDB(t)
	h := NewHandler(store, auth.PasswordPolicy{}, bcrypt.MinCost)
	user := createUser(t, store, "me@example.com", models.RoleEditor)

	rec := serve(t, h, "PUT", "/me", `{"name": "  Grace Hopper "}`, user)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body: %s", rec.Code, rec.Body.String())
	}
	got, _ := store.Users().GetByID(context.Background(), user.ID)
	if got.Name != "Grace Hopper" {
		t.Errorf("Name = %q", got.Name)
	}

	if rec := serve(t, h, "PUT", "/me", `{"name": ""}`, user); rec.Code != http.StatusBadRequest {
		t.Errorf("empty name status = %d, want 400", rec.Code)
	}
}

func TestChangePassword(t *testing.T) {
	store := setupTestDB(t)
	h := NewHandler(store, auth.PasswordPolicy{}, bcrypt.MinCost)
	user := createUser(t, store, "me@example.com", models.RoleEditor)
	ctx := context.Background()

	token, plain, _ := models.NewRefreshToken("tok-1", user.ID, "sitectl/test", time.Hour)
	if err := store.Tokens().Create(ctx, token); err != nil {
		t.Fatalf("create token: %v", err)
	}

	tests := []struct {
		name       string
		body       string
		wantStatus int
	}{
		{"missing current", `{"newPassword": "NewSecret1"}`, http.StatusBadRequest},
		{"weak new", `{"currentPassword": "Secret123", "newPassword": "short"}`, http.StatusBadRequest},
		{"wrong current", `{"currentPassword": "Nope12345", "newPassword": "NewSecret1"}`, http.StatusBadRequest},
		{"ok", `{"currentPassword": "Secret123", "newPassword": "NewSecret1"}`, http.StatusNoContent},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := serve(t, h, "PUT", "/me/password", tc.body, user)
			if rec.Code != tc.wantStatus {
				t.Errorf("status = %d, want %d: %s", rec.Code, tc.wantStatus, rec.Body.String())
			}
		})
	}

	got, _ := store.Users().GetByID(ctx, user.ID)
	if !auth.CheckPassword(got.PasswordHash, "NewSecret1") {
		t.Error("new password not stored")
	}
	stored, _ := store.Tokens().GetByTokenHash(ctx, models.HashToken(plain))
	if stored.IsValid() {
		t.Error("refresh token still valid after password change")
	}
}

func TestAdminRoutes(t *testing.T) {
	store := setupTestDB(t)
	h := NewHandler(store, auth.PasswordPolicy{}, bcrypt.MinCost)
	admin := createUser(t, store, "admin@example.com", models.RoleAdmin)
	editor := createUser(t, store, "editor@example.com", models.RoleEditor)

	if rec := serve(t, h, "GET", "/", "", editor); rec.Code != http.StatusForbidden {
		t.Errorf("editor list status = %d, want 403", rec.Code)
	}

	rec := serve(t, h, "GET", "/", "", admin)
	var list []*UserResponse
	decodeData(t, rec, &list)
	if len(list) != 2 {
		t.Errorf("List() = %d users, want 2", len(list))
	}

	rec = serve(t, h, "PUT", "/"+editor.ID+"/role", `{"role": "viewer"}`, admin)
	if rec.Code != http.StatusOK {
		t.Fatalf("role change status = %d: %s", rec.Code, rec.Body.String())
	}
	got, _ := store.Users().GetByID(context.Background(), editor.ID)
	if got.Role != models.RoleViewer {
		t.Errorf("Role = %q, want viewer", got.Role)
	}

	if rec := serve(t, h, "PUT", "/"+editor.ID+"/role", `{"role": "owner"}`, admin); rec.Code != http.StatusBadRequest {
		t.Errorf("bad role status = %d, want 400", rec.Code)
	}
	if rec := serve(t, h, "PUT", "/"+admin.ID+"/role", `{"role": "editor"}`, admin); rec.Code != http.StatusBadRequest {
		t.Errorf("self demotion status = %d, want 400", rec.Code)
	}
	if rec := serve(t, h, "DELETE", "/"+admin.ID, "", admin); rec.Code != http.StatusBadRequest {
		t.Errorf("self delete status = %d, want 400", rec.Code)
	}
	if rec := serve(t, h, "DELETE", "/"+editor.ID, "", admin); rec.Code != http.StatusNoContent {
		t.Errorf("delete status = %d, want 204", rec.Code)
	}
	if rec := serve(t, h, "DELETE", "/"+editor.ID, "", admin); rec.Code != http.StatusNotFound {
		t.Errorf("second delete status = %d, want 404", rec.Code)
	}
}

func TestValidateRole(t *testing.T) {
	for _, in := range []string{"admin", " Editor ", "VIEWER"} {
		if _, err := ValidateRole(in); err != nil {
			t.Errorf("ValidateRole(%q) error = %v", in, err)
		}
	}
	if _, err := ValidateRole("operator"); err == nil {
		t.Error("ValidateRole(operator) should fail")
	}
}

func TestSessions(t *testing.T) {
	store := setupTestDB(t)
	h := NewHandler(store, auth.PasswordPolicy{}, bcrypt.MinCost)
	user := createUser(t, store, "me@example.com", models.RoleEditor)
	other := createUser(t, store, "other@example.com", models.RoleEditor)
	ctx := context.Background()

	laptop, _, _ := models.NewRefreshToken("laptop", user.ID, "sitectl/1.0 (linux/amd64)", time.Hour)
	ci, _, _ := models.NewRefreshToken("ci", user.ID, "sitectl/1.0 (darwin/arm64)", time.Hour)
	theirs, _, _ := models.NewRefreshToken("theirs", other.ID, "sitectl/1.0", time.Hour)
	for _, tok := range []*models.RefreshToken{laptop, ci, theirs} {
		if err := store.Tokens().Create(ctx, tok); err != nil {
			t.Fatalf("create token: %v", err)
		}
	}

	rec := serve(t, h, "GET", "/me/sessions", "", user)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body: %s", rec.Code, rec.Body.String())
	}
	var sessions []SessionResponse
	decodeData(t, rec, &sessions)
	if len(sessions) != 2 {
		t.Fatalf("sessions = %+v, want 2", sessions)
	}

	if rec := serve(t, h, "DELETE", "/me/sessions/theirs", "", user); rec.Code != http.StatusNotFound {
		t.Errorf("revoke another user's session status = %d, want 404", rec.Code)
	}
	if rec := serve(t, h, "DELETE", "/me/sessions/ci", "", user); rec.Code != http.StatusNoContent {
		t.Fatalf("revoke status = %d, body: %s", rec.Code, rec.Body.String())
	}

	rec = serve(t, h, "GET", "/me/sessions", "", user)
	decodeData(t, rec, &sessions)
	if len(sessions) != 1 || sessions[0].ID != "laptop" || sessions[0].Client != "sitectl/1.0 (linux/amd64)" {
		t.Errorf("sessions after revoke = %+v", sessions)
	}
	if left, _ := store.Tokens().ListActiveByUser(ctx, other.ID); len(left) != 1 {
		t.Error("other user's session revoked")
	}
}
