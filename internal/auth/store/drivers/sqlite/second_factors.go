package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/innkeep/authcore/internal/auth/domain"
)

type secondFactorsRepo struct {
	db dbtx
}

func (r *secondFactorsRepo) Get(ctx context.Context, identityID string) (domain.SecondFactorConfig, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT identity_id, secret, enabled_at, created_at
		FROM second_factors WHERE identity_id = ?`, identityID)

	var (
		c       domain.SecondFactorConfig
		enabled sql.NullTime
	)
	if err := row.Scan(&c.IdentityID, &c.Secret, &enabled, &c.CreatedAt); err != nil {
		return domain.SecondFactorConfig{}, mapNotFound(err)
	}
	c.EnabledAt = mapNullTimePtr(enabled)
	return c, nil
}

func (r *secondFactorsRepo) Upsert(ctx context.Context, c domain.SecondFactorConfig) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO second_factors (identity_id, secret, enabled_at, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (identity_id) DO UPDATE SET
			secret = excluded.secret,
			enabled_at = excluded.enabled_at,
			created_at = excluded.created_at`,
		c.IdentityID, c.Secret, mapOptionalTime(c.EnabledAt), c.CreatedAt)
	return err
}

func (r *secondFactorsRepo) Enable(ctx context.Context, identityID string, at time.Time) error {
	return execExpectingRow(ctx, r.db, `
		UPDATE second_factors SET enabled_at = ? WHERE identity_id = ?`,
		at, identityID)
}

func (r *secondFactorsRepo) Delete(ctx context.Context, identityID string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM second_factors WHERE identity_id = ?`, identityID)
	return err
}
