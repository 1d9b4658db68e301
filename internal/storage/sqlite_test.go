package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/good-yellow-bee/sitecraft/internal/models"
)

func setupTestDB(t *testing.T) (*SQLiteStorage, func()) {
	t.Helper()

	tmpDir, err := os.MkdirTemp("", "sitecraft-test-*")
	if err != nil {
		t.Fatalf("create temp dir: %v", err)
	}

	store := NewSQLiteStorage(filepath.Join(tmpDir, "test.db"))
	if err := store.Open(); err != nil {
		os.RemoveAll(tmpDir)
		t.Fatalf("open database: %v", err)
	}

	if err := store.Migrate(); err != nil {
		store.Close()
		os.RemoveAll(tmpDir)
		t.Fatalf("migrate database: %v", err)
	}

	cleanup := func() {
		store.Close()
		os.RemoveAll(tmpDir)
	}

	return store, cleanup
}

func createUser(t *testing.T, store *SQLiteStorage, email string) *models.User {
	t.Helper()
	user := models.NewUser("Test User", email, models.RoleEditor)
	user.ID = uuid.New().String()
	user.PasswordHash = "hash"
	if err := store.Users().Create(context.Background(), user); err != nil {
		t.Fatalf("create user: %v", err)
	}
	return user
}

func createProject(t *testing.T, store *SQLiteStorage, userID, slug string) *models.Project {
	t.Helper()
	project := models.NewProject(userID, "Site "+slug, "desc")
	project.ID = uuid.New().String()
	project.Slug = slug
	if err := store.Projects().Create(context.Background(), project); err != nil {
		t.Fatalf("create project: %v", err)
	}
	return project
}

func TestSQLiteStorage_OpenClose(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()

	if store.db == nil {
		t.Fatal("database should be open")
	}
	if err := store.Ping(context.Background()); err != nil {
		t.Errorf("Ping() error = %v", err)
	}
}

func TestSQLiteStorage_OpenRequiresPath(t *testing.T) {
	if err := NewSQLiteStorage("").Open(); err == nil {
		t.Error("Open() with empty path should fail")
	}
}

func TestSQLiteStorage_Migrate(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	tables := []string{"users", "projects", "refresh_tokens", "schema_migrations"}
	for _, table := range tables {
		var count int
		err := store.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&count)
		if err != nil {
			t.Errorf("table %s should exist: %v", table, err)
		}
	}

	// Re-running is a no-op.
	if err := store.Migrate(); err != nil {
		t.Fatalf("second Migrate() error = %v", err)
	}
	var version int
	if err := store.db.QueryRowContext(ctx, "SELECT MAX(version) FROM schema_migrations").Scan(&version); err != nil {
		t.Fatalf("read version: %v", err)
	}
	if version != len(migrations) {
		t.Errorf("schema version = %d, want %d", version, len(migrations))
	}
}

func TestUserRepository_CRUD(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	user := createUser(t, store, "ada@example.com")

	got, err := store.Users().GetByID(ctx, user.ID)
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if got == nil || got.Email != user.Email || got.Name != user.Name {
		t.Fatalf("GetByID() = %+v, want %+v", got, user)
	}

	byEmail, err := store.Users().GetByEmail(ctx, "ada@example.com")
	if err != nil || byEmail == nil {
		t.Fatalf("GetByEmail() = %v, %v", byEmail, err)
	}

	missing, err := store.Users().GetByEmail(ctx, "nobody@example.com")
	if err != nil || missing != nil {
		t.Errorf("GetByEmail(missing) = %v, %v; want nil, nil", missing, err)
	}

	user.Name = "Ada Lovelace"
	user.UpdatedAt = time.Now()
	if err := store.Users().Update(ctx, user); err != nil {
		t.Fatalf("update user: %v", err)
	}
	got, _ = store.Users().GetByID(ctx, user.ID)
	if got.Name != "Ada Lovelace" {
		t.Errorf("Name = %q, want %q", got.Name, "Ada Lovelace")
	}

	count, err := store.Users().Count(ctx)
	if err != nil || count != 1 {
		t.Errorf("Count() = %d, %v; want 1", count, err)
	}

	dup := models.NewUser("Dup", "ada@example.com", models.RoleEditor)
	dup.ID = uuid.New().String()
	dup.PasswordHash = "x"
	if err := store.Users().Create(ctx, dup); err == nil {
		t.Error("duplicate email should fail")
	}

	if err := store.Users().Delete(ctx, user.ID); err != nil {
		t.Fatalf("delete user: %v", err)
	}
	if err := store.Users().Delete(ctx, user.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("second delete error = %v, want ErrNotFound", err)
	}
}

func TestProjectRepository_CRUD(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	owner := createUser(t, store, "owner@example.com")
	other := createUser(t, store, "other@example.com")
	project := createProject(t, store, owner.ID, "my-site")
	createProject(t, store, other.ID, "their-site")

	got, err := store.Projects().GetByID(ctx, project.ID)
	if err != nil || got == nil {
		t.Fatalf("GetByID() = %v, %v", got, err)
	}
	if got.Slug != "my-site" || got.UserID != owner.ID || got.Description != "desc" {
		t.Errorf("project = %+v", got)
	}
	if got.DraftUpdatedAt != nil || got.PublishedAt != nil {
		t.Error("new project should have no draft or publish timestamps")
	}

	bySlug, err := store.Projects().GetBySlug(ctx, "my-site")
	if err != nil || bySlug == nil || bySlug.ID != project.ID {
		t.Errorf("GetBySlug() = %v, %v", bySlug, err)
	}

	exists, err := store.Projects().SlugExists(ctx, "my-site")
	if err != nil || !exists {
		t.Errorf("SlugExists(my-site) = %v, %v", exists, err)
	}
	exists, _ = store.Projects().SlugExists(ctx, "free-slug")
	if exists {
		t.Error("SlugExists(free-slug) = true")
	}

	list, err := store.Projects().ListByUser(ctx, owner.ID)
	if err != nil {
		t.Fatalf("ListByUser() error = %v", err)
	}
	if len(list) != 1 || list[0].ID != project.ID {
		t.Errorf("ListByUser() = %d projects, want only the owner's", len(list))
	}

	project.Name = "Renamed"
	project.UpdatedAt = time.Now()
	if err := store.Projects().Update(ctx, project); err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	got, _ = store.Projects().GetByID(ctx, project.ID)
	if got.Name != "Renamed" {
		t.Errorf("Name = %q, want Renamed", got.Name)
	}

	if err := store.Projects().Delete(ctx, project.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	got, err = store.Projects().GetByID(ctx, project.ID)
	if err != nil || got != nil {
		t.Errorf("GetByID(deleted) = %v, %v; want nil, nil", got, err)
	}
}

func TestProjectRepository_DraftAndPublish(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	owner := createUser(t, store, "owner@example.com")
	project := createProject(t, store, owner.ID, "site")

	rev, err := store.Projects().SaveDraft(ctx, project.ID, `{"version":2}`, time.Now())
	if err != nil {
		t.Fatalf("SaveDraft() error = %v", err)
	}
	if rev != 1 {
		t.Errorf("revision = %d, want 1", rev)
	}
	rev, _ = store.Projects().SaveDraft(ctx, project.ID, `{"version":2,"x":1}`, time.Now())
	if rev != 2 {
		t.Errorf("revision = %d, want 2", rev)
	}

	got, _ := store.Projects().GetByID(ctx, project.ID)
	if got.DraftConfig != `{"version":2,"x":1}` || got.DraftUpdatedAt == nil {
		t.Errorf("draft = %q at %v", got.DraftConfig, got.DraftUpdatedAt)
	}
	if got.IsPublished() {
		t.Error("project published before Publish")
	}

	if err := store.Projects().Publish(ctx, project.ID, `{"version":2,"p":1}`, "http://x/sites/site", time.Now()); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	got, _ = store.Projects().GetByID(ctx, project.ID)
	if !got.IsPublished() {
		t.Error("IsPublished() = false after Publish")
	}
	if got.PublishedConfig != `{"version":2,"p":1}` || got.DraftConfig != got.PublishedConfig {
		t.Errorf("draft = %q, published = %q; want both set to the published config", got.DraftConfig, got.PublishedConfig)
	}
	if got.LiveURL != "http://x/sites/site" {
		t.Errorf("LiveURL = %q", got.LiveURL)
	}
	if got.HasUnpublishedChanges() {
		t.Error("HasUnpublishedChanges() = true right after publish")
	}

	if _, err := store.Projects().SaveDraft(ctx, "missing", "{}", time.Now()); !errors.Is(err, ErrNotFound) {
		t.Errorf("SaveDraft(missing) error = %v, want ErrNotFound", err)
	}
	if err := store.Projects().Publish(ctx, "missing", "{}", "", time.Now()); !errors.Is(err, ErrNotFound) {
		t.Errorf("Publish(missing) error = %v, want ErrNotFound", err)
	}
}

func TestTokenRepository_Rotate(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	user := createUser(t, store, "t@example.com")

	first, plain, err := models.NewRefreshToken("first", user.ID, "sitectl/1.0", time.Hour)
	if err != nil {
		t.Fatalf("NewRefreshToken() error = %v", err)
	}
	if err := store.Tokens().Create(ctx, first); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	got, err := store.Tokens().GetByTokenHash(ctx, models.HashToken(plain))
	if err != nil || got == nil {
		t.Fatalf("GetByTokenHash() = %v, %v", got, err)
	}
	if !got.IsValid() || got.FamilyID != "first" || got.Client != "sitectl/1.0" {
		t.Errorf("stored token = %+v", got)
	}

	second, plain2, _ := got.Successor("second", "sitectl/1.1", time.Hour)
	if err := store.Tokens().Rotate(ctx, got.ID, second); err != nil {
		t.Fatalf("Rotate() error = %v", err)
	}

	old, _ := store.Tokens().GetByTokenHash(ctx, models.HashToken(plain))
	if old.IsValid() || !old.Rotated() || old.ReplacedBy != "second" || old.LastUsedAt == nil {
		t.Errorf("retired token = %+v", old)
	}
	next, _ := store.Tokens().GetByTokenHash(ctx, models.HashToken(plain2))
	if next == nil || !next.IsValid() || next.FamilyID != "first" || next.Client != "sitectl/1.1" {
		t.Errorf("successor = %+v", next)
	}

	third, _, _ := old.Successor("third", "x", time.Hour)
	if err := store.Tokens().Rotate(ctx, old.ID, third); !errors.Is(err, ErrNotFound) {
		t.Errorf("Rotate(retired) error = %v, want ErrNotFound", err)
	}
	if ghost, _ := store.Tokens().GetByTokenHash(ctx, third.TokenHash); ghost != nil {
		t.Error("failed rotation left a successor behind")
	}

	n, err := store.Tokens().RevokeFamily(ctx, "first")
	if err != nil || n != 1 {
		t.Errorf("RevokeFamily() = %d, %v; want 1", n, err)
	}
	active, _ := store.Tokens().ListActiveByUser(ctx, user.ID)
	if len(active) != 0 {
		t.Errorf("active tokens after family revoke = %d", len(active))
	}
}

func TestTokenRepository_RevokeAndExpire(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	user := createUser(t, store, "t@example.com")

	live, plain, _ := models.NewRefreshToken("live", user.ID, "", time.Hour)
	other, _, _ := models.NewRefreshToken("other", user.ID, "sitectl", time.Hour)
	expired, _, _ := models.NewRefreshToken("expired", user.ID, "sitectl", -time.Hour)
	for _, tok := range []*models.RefreshToken{live, other, expired} {
		if err := store.Tokens().Create(ctx, tok); err != nil {
			t.Fatalf("Create(%s) error = %v", tok.ID, err)
		}
	}

	active, err := store.Tokens().ListActiveByUser(ctx, user.ID)
	if err != nil || len(active) != 2 {
		t.Fatalf("ListActiveByUser() = %d, %v; want 2", len(active), err)
	}
	if active[0].Client == "" {
		t.Error("empty client label stored")
	}

	if err := store.Tokens().RevokeByTokenHash(ctx, models.HashToken(plain)); err != nil {
		t.Fatalf("RevokeByTokenHash() error = %v", err)
	}
	got, _ := store.Tokens().GetByTokenHash(ctx, models.HashToken(plain))
	if got.IsValid() || got.RevokedAt == nil || got.Rotated() {
		t.Errorf("revoked token = %+v", got)
	}

	if err := store.Tokens().RevokeAllForUser(ctx, user.ID); err != nil {
		t.Fatalf("RevokeAllForUser() error = %v", err)
	}
	if active, _ := store.Tokens().ListActiveByUser(ctx, user.ID); len(active) != 0 {
		t.Errorf("active tokens after RevokeAllForUser = %d", len(active))
	}

	n, err := store.Tokens().DeleteExpired(ctx)
	if err != nil || n != 1 {
		t.Errorf("DeleteExpired() = %d, %v; want 1", n, err)
	}
}

func TestForeignKeyConstraints(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	user := createUser(t, store, "fk@example.com")
	project := createProject(t, store, user.ID, "fk-site")

	if err := store.Users().Delete(ctx, user.ID); err != nil {
		t.Fatalf("delete user: %v", err)
	}

	got, err := store.Projects().GetByID(ctx, project.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got != nil {
		t.Error("project should be removed with its owner")
	}
}
