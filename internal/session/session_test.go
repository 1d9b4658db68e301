package session

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/good-yellow-bee/sitecraft/internal/api/auth"
	"github.com/good-yellow-bee/sitecraft/internal/models"
)

func issueToken(t *testing.T) string {
	t.Helper()
	svc := auth.NewJWTService([]byte("session-test-secret"), time.Hour)
	token, err := svc.GenerateToken(&models.User{
		ID:    "user-42",
		Name:  "Ada",
		Email: "ada@example.com",
		Role:  models.RoleEditor,
	})
	if err != nil {
		t.Fatalf("GenerateToken() error = %v", err)
	}
	return token
}

func TestNew_DecodesIdentity(t *testing.T) {
	sess, err := New("http://localhost:8080", issueToken(t), "refresh")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	id := sess.Identity()
	if id.UserID != "user-42" || id.Email != "ada@example.com" || id.Name != "Ada" || id.Role != models.RoleEditor {
		t.Errorf("Identity() = %+v", id)
	}
	if sess.UserID() != "user-42" {
		t.Errorf("UserID() = %q", sess.UserID())
	}
	if id.ExpiresAt.IsZero() {
		t.Error("ExpiresAt not decoded")
	}
	if sess.Expired(time.Now()) {
		t.Error("fresh session reported expired")
	}
	if !sess.Expired(time.Now().Add(2 * time.Hour)) {
		t.Error("session not expired after token lifetime")
	}
}

func TestNew_RejectsGarbage(t *testing.T) {
	if _, err := New("", "not-a-jwt", ""); err == nil {
		t.Error("New() with garbage token should fail")
	}
}

func TestNilSessionAccessors(t *testing.T) {
	var s *Session
	if s.UserID() != "" || s.Token() != "" || s.Identity().UserID != "" {
		t.Error("nil session accessors should return zero values")
	}
	if !s.Expired(time.Now()) {
		t.Error("nil session should be expired")
	}
}

func TestStore_SaveLoadClear(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "session.json")
	store := NewStore(path)

	if _, err := store.Get(); !errors.Is(err, ErrNoSession) {
		t.Fatalf("Get() on empty store error = %v, want ErrNoSession", err)
	}

	sess, err := New("http://localhost:8080", issueToken(t), "refresh")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := store.Save(sess); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat session file: %v", err)
	}
	if runtime.GOOS != "windows" && info.Mode().Perm() != 0o600 {
		t.Errorf("mode = %v, want 0600", info.Mode().Perm())
	}

	// A fresh store reads what the first one wrote.
	got, err := NewStore(path).Get()
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Token() != sess.Token() || got.UserID() != "user-42" || got.Server != "http://localhost:8080" {
		t.Errorf("loaded session = %+v", got)
	}

	if err := store.Clear(); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("session file still exists after Clear")
	}
	if _, err := store.Get(); !errors.Is(err, ErrNoSession) {
		t.Errorf("Get() after Clear error = %v, want ErrNoSession", err)
	}
	if err := store.Clear(); err != nil {
		t.Errorf("second Clear() error = %v", err)
	}
}

func TestStore_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := NewStore(path).Get(); err == nil || errors.Is(err, ErrNoSession) {
		t.Errorf("Get() error = %v, want parse error", err)
	}
}

func TestContext(t *testing.T) {
	if _, ok := FromContext(context.Background()); ok {
		t.Error("FromContext() on empty context = ok")
	}

	sess := &Session{AccessToken: "tok", User: Identity{UserID: "u1"}}
	got, ok := FromContext(NewContext(context.Background(), sess))
	if !ok || got.UserID() != "u1" {
		t.Errorf("FromContext() = %+v, %v", got, ok)
	}
}
