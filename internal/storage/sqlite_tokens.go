package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/good-yellow-bee/sitecraft/internal/models"
)

type sqliteTokenRepo struct {
	db *sql.DB
}

const tokenColumns = `id, user_id, family_id, token_hash, client,
	expires_at, created_at, last_used_at, revoked_at, replaced_by`

func scanToken(row interface{ Scan(...any) error }) (*models.RefreshToken, error) {
	token := &models.RefreshToken{}
	var (
		lastUsedAt sql.NullTime
		revokedAt  sql.NullTime
		replacedBy sql.NullString
	)
	err := row.Scan(
		&token.ID, &token.UserID, &token.FamilyID, &token.TokenHash, &token.Client,
		&token.ExpiresAt, &token.CreatedAt, &lastUsedAt, &revokedAt, &replacedBy,
	)
	if err != nil {
		return nil, err
	}
	if lastUsedAt.Valid {
		t := lastUsedAt.Time
		token.LastUsedAt = &t
	}
	if revokedAt.Valid {
		t := revokedAt.Time
		token.RevokedAt = &t
	}
	token.ReplacedBy = replacedBy.String
	return token, nil
}

func insertToken(ctx context.Context, exec interface {
	ExecContext(context.Context, string, ...any) (sql.Result, error)
}, token *models.RefreshToken) error {
	if token.ID == "" {
		token.ID = uuid.New().String()
	}
	if token.FamilyID == "" {
		token.FamilyID = token.ID
	}
	_, err := exec.ExecContext(ctx, `
		INSERT INTO refresh_tokens (id, user_id, family_id, token_hash, client, expires_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, token.ID, token.UserID, token.FamilyID, token.TokenHash, models.ClientLabel(token.Client),
		token.ExpiresAt.UTC(), token.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("insert refresh token: %w", err)
	}
	return nil
}

func (r *sqliteTokenRepo) Create(ctx context.Context, token *models.RefreshToken) error {
	return insertToken(ctx, r.db, token)
}

func (r *sqliteTokenRepo) GetByTokenHash(ctx context.Context, tokenHash string) (*models.RefreshToken, error) {
	query := `SELECT ` + tokenColumns + ` FROM refresh_tokens WHERE token_hash = ?`
	token, err := scanToken(r.db.QueryRowContext(ctx, query, tokenHash))
	if err == sql.ErrNoRows {
		//nolint:nilnil
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get refresh token: %w", err)
	}
	return token, nil
}

func (r *sqliteTokenRepo) Rotate(ctx context.Context, oldID string, next *models.RefreshToken) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin rotate: %w", err)
	}
	defer tx.Rollback()

	if next.ID == "" {
		next.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	result, err := tx.ExecContext(ctx, `
		UPDATE refresh_tokens
		SET revoked_at = ?, last_used_at = ?, replaced_by = ?
		WHERE id = ? AND revoked_at IS NULL
	`, now, now, next.ID, oldID)
	if err != nil {
		return fmt.Errorf("retire refresh token: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return fmt.Errorf("live token %s: %w", oldID, ErrNotFound)
	}

	if err := insertToken(ctx, tx, next); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit rotate: %w", err)
	}
	return nil
}

func (r *sqliteTokenRepo) RevokeByTokenHash(ctx context.Context, tokenHash string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE refresh_tokens SET revoked_at = ?
		WHERE token_hash = ? AND revoked_at IS NULL
	`, time.Now().UTC(), tokenHash)
	if err != nil {
		return fmt.Errorf("revoke refresh token: %w", err)
	}
	return nil
}

func (r *sqliteTokenRepo) RevokeFamily(ctx context.Context, familyID string) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE refresh_tokens SET revoked_at = ?
		WHERE family_id = ? AND revoked_at IS NULL
	`, time.Now().UTC(), familyID)
	if err != nil {
		return 0, fmt.Errorf("revoke token family: %w", err)
	}
	return result.RowsAffected()
}

func (r *sqliteTokenRepo) RevokeAllForUser(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE refresh_tokens SET revoked_at = ?
		WHERE user_id = ? AND revoked_at IS NULL
	`, time.Now().UTC(), userID)
	if err != nil {
		return fmt.Errorf("revoke tokens for user: %w", err)
	}
	return nil
}

func (r *sqliteTokenRepo) ListActiveByUser(ctx context.Context, userID string) ([]*models.RefreshToken, error) {
	query := `SELECT ` + tokenColumns + ` FROM refresh_tokens
		WHERE user_id = ? AND revoked_at IS NULL AND expires_at > ?
		ORDER BY created_at DESC`
	rows, err := r.db.QueryContext(ctx, query, userID, time.Now().UTC())
	if err != nil {
		return nil, fmt.Errorf("list refresh tokens: %w", err)
	}
	defer rows.Close()

	var tokens []*models.RefreshToken
	for rows.Next() {
		token, err := scanToken(rows)
		if err != nil {
			return nil, fmt.Errorf("scan refresh token: %w", err)
		}
		tokens = append(tokens, token)
	}
	return tokens, rows.Err()
}

// DeleteExpired removes expired tokens. Rotated tokens stay until they expire
// so that a replayed one can still be recognised.
func (r *sqliteTokenRepo) DeleteExpired(ctx context.Context) (int64, error) {
	result, err := r.db.ExecContext(ctx, "DELETE FROM refresh_tokens WHERE expires_at < ?", time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("delete expired tokens: %w", err)
	}
	return result.RowsAffected()
}
