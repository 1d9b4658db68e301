package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/good-yellow-bee/sitecraft/internal/api/auth"
	"github.com/good-yellow-bee/sitecraft/internal/models"
)

var testSecret = []byte("test-secret-key-32-bytes-long!!")

func testToken(t *testing.T, svc *auth.JWTService) (*models.User, string) {
	t.Helper()
	user := &models.User{
		ID:    "user-123",
		Name:  "Ada",
		Email: "ada@example.com",
		Role:  models.RoleEditor,
	}
	token, err := svc.GenerateToken(user)
	if err != nil {
		t.Fatalf("failed to generate token: %v", err)
	}
	return user, token
}

func TestJWTAuth_ValidToken(t *testing.T) {
	jwtService := auth.NewJWTService(testSecret, 15*time.Minute)
	user, token := testToken(t, jwtService)

	var gotUserID, gotEmail string
	var gotRole models.Role
	var gotClaims *auth.Claims
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUserID = GetUserID(r.Context())
		gotEmail = GetEmail(r.Context())
		gotRole = GetRole(r.Context())
		gotClaims = GetClaims(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest("GET", "/test", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	JWTAuth(jwtService)(handler).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if gotUserID != user.ID {
		t.Errorf("UserID = %q, want %q", gotUserID, user.ID)
	}
	if gotEmail != user.Email {
		t.Errorf("Email = %q, want %q", gotEmail, user.Email)
	}
	if gotRole != user.Role {
		t.Errorf("Role = %q, want %q", gotRole, user.Role)
	}
	if gotClaims == nil || gotClaims.Name != user.Name {
		t.Errorf("Claims = %+v", gotClaims)
	}
}

func TestJWTAuth_UserIDHeader(t *testing.T) {
	jwtService := auth.NewJWTService(testSecret, 15*time.Minute)
	user, token := testToken(t, jwtService)

	tests := []struct {
		name     string
		header   string
		wantCode int
	}{
		{"matching", user.ID, http.StatusOK},
		{"absent", "", http.StatusOK},
		{"mismatch", "someone-else", http.StatusForbidden},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/test", nil)
			req.Header.Set("Authorization", "Bearer "+token)
			if tc.header != "" {
				req.Header.Set(UserIDHeader, tc.header)
			}
			rec := httptest.NewRecorder()
			JWTAuth(jwtService)(http.HandlerFunc(okHandler)).ServeHTTP(rec, req)

			if rec.Code != tc.wantCode {
				t.Errorf("status = %d, want %d", rec.Code, tc.wantCode)
			}
		})
	}
}

func TestJWTAuth_MissingToken(t *testing.T) {
	jwtService := auth.NewJWTService(testSecret, 15*time.Minute)

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler should not be called")
	})

	rec := httptest.NewRecorder()
	JWTAuth(jwtService)(handler).ServeHTTP(rec, httptest.NewRequest("GET", "/test", nil))

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}

func TestJWTAuth_InvalidToken(t *testing.T) {
	jwtService := auth.NewJWTService(testSecret, 15*time.Minute)

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler should not be called")
	})
	wrapped := JWTAuth(jwtService)(handler)

	tests := []struct {
		name   string
		header string
	}{
		{"invalid format", "NotBearer token"},
		{"invalid token", "Bearer invalid-token"},
		{"empty bearer", "Bearer "},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/test", nil)
			req.Header.Set("Authorization", tc.header)
			rec := httptest.NewRecorder()
			wrapped.ServeHTTP(rec, req)

			if rec.Code != http.StatusUnauthorized {
				t.Errorf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
			}
		})
	}
}

func TestJWTAuth_OtherSecret(t *testing.T) {
	_, token := testToken(t, auth.NewJWTService([]byte("another-secret-32-bytes-long!!!"), time.Minute))

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler should not be called")
	})

	req := httptest.NewRequest("GET", "/test", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	JWTAuth(auth.NewJWTService(testSecret, time.Minute))(handler).ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}

func TestContextHelpers_Empty(t *testing.T) {
	ctx := httptest.NewRequest("GET", "/test", nil).Context()

	if got := GetUserID(ctx); got != "" {
		t.Errorf("GetUserID() = %q, want empty", got)
	}
	if got := GetEmail(ctx); got != "" {
		t.Errorf("GetEmail() = %q, want empty", got)
	}
	if got := GetRole(ctx); got != "" {
		t.Errorf("GetRole() = %q, want empty", got)
	}
	if got := GetClaims(ctx); got != nil {
		t.Errorf("GetClaims() = %v, want nil", got)
	}
	if got := GetProject(ctx); got != nil {
		t.Errorf("GetProject() = %v, want nil", got)
	}
}
