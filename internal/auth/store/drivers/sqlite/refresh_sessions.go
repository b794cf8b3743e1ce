package sqlite

import (
	"context"
	"time"

	"github.com/innkeep/authcore/internal/auth/domain"
)

type refreshSessionsRepo struct {
	db dbtx
}

func (r *refreshSessionsRepo) Create(ctx context.Context, s domain.RefreshSession) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO refresh_sessions (id, identity_id, token_hash, expires_at, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		s.ID, s.IdentityID, s.TokenHash, s.ExpiresAt, s.CreatedAt)
	return err
}

func (r *refreshSessionsRepo) GetByTokenHash(ctx context.Context, hash string) (domain.RefreshSession, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, identity_id, token_hash, expires_at, created_at
		FROM refresh_sessions WHERE token_hash = ?`, hash)

	var s domain.RefreshSession
	if err := row.Scan(&s.ID, &s.IdentityID, &s.TokenHash, &s.ExpiresAt, &s.CreatedAt); err != nil {
		return domain.RefreshSession{}, mapNotFound(err)
	}
	return s, nil
}

func (r *refreshSessionsRepo) Consume(ctx context.Context, hash string) error {
	return execExpectingRow(ctx, r.db,
		`DELETE FROM refresh_sessions WHERE token_hash = ?`, hash)
}

func (r *refreshSessionsRepo) DeleteAllForIdentity(ctx context.Context, identityID string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM refresh_sessions WHERE identity_id = ?`, identityID)
	return err
}

func (r *refreshSessionsRepo) Prune(ctx context.Context, identityID string, keep int) error {
	_, err := r.db.ExecContext(ctx, `
		DELETE FROM refresh_sessions
		WHERE identity_id = ? AND id NOT IN (
			SELECT id FROM refresh_sessions
			WHERE identity_id = ?
			ORDER BY created_at DESC, id DESC
			LIMIT ?
		)`,
		identityID, identityID, keep)
	return err
}

func (r *refreshSessionsRepo) DeleteExpired(ctx context.Context, asOf time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM refresh_sessions WHERE expires_at <= ?`, asOf)
	return err
}
