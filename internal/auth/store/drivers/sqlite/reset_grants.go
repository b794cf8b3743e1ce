package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/innkeep/authcore/internal/auth/domain"
)

type resetGrantsRepo struct {
	db dbtx
}

func (r *resetGrantsRepo) Create(ctx context.Context, g domain.PasswordResetGrant) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO reset_grants (id, identity_id, token_hash, expires_at, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		g.ID, g.IdentityID, g.TokenHash, g.ExpiresAt, g.CreatedAt)
	return err
}

func (r *resetGrantsRepo) GetActiveByTokenHash(
	ctx context.Context,
	hash string,
	asOf time.Time,
) (domain.PasswordResetGrant, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, identity_id, token_hash, expires_at, used_at, created_at
		FROM reset_grants
		WHERE token_hash = ? AND used_at IS NULL AND expires_at > ?`,
		hash, asOf)

	var (
		g    domain.PasswordResetGrant
		used sql.NullTime
	)
	if err := row.Scan(&g.ID, &g.IdentityID, &g.TokenHash, &g.ExpiresAt, &used, &g.CreatedAt); err != nil {
		return domain.PasswordResetGrant{}, mapNotFound(err)
	}
	g.UsedAt = mapNullTimePtr(used)
	return g, nil
}

func (r *resetGrantsRepo) MarkUsed(ctx context.Context, id string, at time.Time) error {
	return execExpectingRow(ctx, r.db, `
		UPDATE reset_grants SET used_at = ? WHERE id = ? AND used_at IS NULL`,
		at, id)
}

func (r *resetGrantsRepo) DeleteExpired(ctx context.Context, asOf time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM reset_grants WHERE expires_at <= ?`, asOf)
	return err
}
