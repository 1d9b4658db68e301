package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/good-yellow-bee/sitecraft/internal/models"
)

type sqliteProjectRepo struct {
	db *sql.DB
}

const projectColumns = `id, user_id, name, description, slug,
	draft_config, draft_updated_at, draft_revision,
	published_config, published_at, live_url,
	created_at, updated_at`

func scanProject(row interface{ Scan(...any) error }) (*models.Project, error) {
	project := &models.Project{}
	var (
		description     sql.NullString
		draftConfig     sql.NullString
		draftUpdatedAt  sql.NullTime
		publishedConfig sql.NullString
		publishedAt     sql.NullTime
		liveURL         sql.NullString
	)
	err := row.Scan(
		&project.ID, &project.UserID, &project.Name, &description, &project.Slug,
		&draftConfig, &draftUpdatedAt, &project.DraftRevision,
		&publishedConfig, &publishedAt, &liveURL,
		&project.CreatedAt, &project.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	project.Description = description.String
	project.DraftConfig = draftConfig.String
	project.PublishedConfig = publishedConfig.String
	project.LiveURL = liveURL.String
	if draftUpdatedAt.Valid {
		t := draftUpdatedAt.Time
		project.DraftUpdatedAt = &t
	}
	if publishedAt.Valid {
		t := publishedAt.Time
		project.PublishedAt = &t
	}
	return project, nil
}

func (r *sqliteProjectRepo) Create(ctx context.Context, project *models.Project) error {
	query := `
		INSERT INTO projects (id, user_id, name, description, slug, draft_config, draft_updated_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	var draftAt any
	if project.DraftUpdatedAt != nil {
		draftAt = project.DraftUpdatedAt.UTC()
	}
	_, err := r.db.ExecContext(ctx, query,
		project.ID, project.UserID, project.Name, project.Description, project.Slug,
		nullString(project.DraftConfig), draftAt,
		project.CreatedAt.UTC(), project.UpdatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert project: %w", err)
	}
	return nil
}

func (r *sqliteProjectRepo) GetByID(ctx context.Context, id string) (*models.Project, error) {
	query := `SELECT ` + projectColumns + ` FROM projects WHERE id = ?`
	project, err := scanProject(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		//nolint:nilnil
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get project by id: %w", err)
	}
	return project, nil
}

func (r *sqliteProjectRepo) GetBySlug(ctx context.Context, slug string) (*models.Project, error) {
	query := `SELECT ` + projectColumns + ` FROM projects WHERE slug = ?`
	project, err := scanProject(r.db.QueryRowContext(ctx, query, slug))
	if err == sql.ErrNoRows {
		//nolint:nilnil
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get project by slug: %w", err)
	}
	return project, nil
}

func (r *sqliteProjectRepo) Update(ctx context.Context, project *models.Project) error {
	query := `
		UPDATE projects SET name = ?, description = ?, updated_at = ?
		WHERE id = ?
	`
	result, err := r.db.ExecContext(ctx, query,
		project.Name, project.Description, project.UpdatedAt.UTC(),
		project.ID,
	)
	if err != nil {
		return fmt.Errorf("update project: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("project %s: %w", project.ID, ErrNotFound)
	}
	return nil
}

func (r *sqliteProjectRepo) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM projects WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete project: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("project %s: %w", id, ErrNotFound)
	}
	return nil
}

func (r *sqliteProjectRepo) ListByUser(ctx context.Context, userID string) ([]*models.Project, error) {
	query := `SELECT ` + projectColumns + ` FROM projects WHERE user_id = ? ORDER BY updated_at DESC, name`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()

	var projects []*models.Project
	for rows.Next() {
		project, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		projects = append(projects, project)
	}
	return projects, rows.Err()
}

func (r *sqliteProjectRepo) SlugExists(ctx context.Context, slug string) (bool, error) {
	var n int
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM projects WHERE slug = ?", slug).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("check slug: %w", err)
	}
	return n > 0, nil
}

func (r *sqliteProjectRepo) SaveDraft(ctx context.Context, id, config string, at time.Time) (int64, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin save draft: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `
		UPDATE projects
		SET draft_config = ?, draft_updated_at = ?, draft_revision = draft_revision + 1, updated_at = ?
		WHERE id = ?
	`, config, at.UTC(), at.UTC(), id)
	if err != nil {
		return 0, fmt.Errorf("save draft: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return 0, fmt.Errorf("project %s: %w", id, ErrNotFound)
	}

	var rev int64
	if err := tx.QueryRowContext(ctx, "SELECT draft_revision FROM projects WHERE id = ?", id).Scan(&rev); err != nil {
		return 0, fmt.Errorf("read draft revision: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit save draft: %w", err)
	}
	return rev, nil
}

func (r *sqliteProjectRepo) Publish(ctx context.Context, id, config, liveURL string, at time.Time) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE projects
		SET draft_config = ?, draft_updated_at = ?, draft_revision = draft_revision + 1,
			published_config = ?, published_at = ?, live_url = ?, updated_at = ?
		WHERE id = ?
	`, config, at.UTC(), config, at.UTC(), liveURL, at.UTC(), id)
	if err != nil {
		return fmt.Errorf("publish project: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("project %s: %w", id, ErrNotFound)
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
