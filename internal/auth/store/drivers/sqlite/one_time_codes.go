package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/innkeep/authcore/internal/auth/domain"
)

type oneTimeCodesRepo struct {
	db dbtx
}

func (r *oneTimeCodesRepo) Create(ctx context.Context, c domain.OneTimeCode) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO one_time_codes (id, email, purpose, code_hash, expires_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		c.ID, domain.NormalizeEmail(c.Email), string(c.Purpose), c.CodeHash,
		c.ExpiresAt, c.CreatedAt)
	return err
}

func (r *oneTimeCodesRepo) GetLatestActive(
	ctx context.Context,
	email string,
	purpose domain.CodePurpose,
	asOf time.Time,
) (domain.OneTimeCode, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, email, purpose, code_hash, expires_at, used_at, created_at
		FROM one_time_codes
		WHERE email = ? COLLATE NOCASE AND purpose = ? AND used_at IS NULL AND expires_at > ?
		ORDER BY created_at DESC, id DESC
		LIMIT 1`,
		domain.NormalizeEmail(email), string(purpose), asOf)

	var (
		c    domain.OneTimeCode
		purp string
		used sql.NullTime
	)
	if err := row.Scan(&c.ID, &c.Email, &purp, &c.CodeHash, &c.ExpiresAt, &used, &c.CreatedAt); err != nil {
		return domain.OneTimeCode{}, mapNotFound(err)
	}
	c.Purpose = domain.CodePurpose(purp)
	c.UsedAt = mapNullTimePtr(used)
	return c, nil
}

func (r *oneTimeCodesRepo) MarkUsed(ctx context.Context, id string, at time.Time) error {
	return execExpectingRow(ctx, r.db, `
		UPDATE one_time_codes SET used_at = ? WHERE id = ? AND used_at IS NULL`,
		at, id)
}

func (r *oneTimeCodesRepo) DeleteExpired(ctx context.Context, asOf time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM one_time_codes WHERE expires_at <= ?`, asOf)
	return err
}
