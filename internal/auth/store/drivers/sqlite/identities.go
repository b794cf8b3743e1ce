package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/innkeep/authcore/internal/auth/domain"
	"github.com/innkeep/authcore/internal/auth/store"

	sqlitelib "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

type identitiesRepo struct {
	db dbtx
}

const identityColumns = `id, tenant_id, email, role, password_hash, phone, active,
	must_change_password, last_login_at, last_revalidated_at, created_at, updated_at`

func (r *identitiesRepo) GetByID(ctx context.Context, id string) (domain.Identity, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+identityColumns+` FROM identities WHERE id = ?`, id)
	return scanIdentity(row)
}

func (r *identitiesRepo) GetByEmail(ctx context.Context, email string) (domain.Identity, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+identityColumns+` FROM identities WHERE email = ? COLLATE NOCASE`,
		domain.NormalizeEmail(email))
	return scanIdentity(row)
}

func (r *identitiesRepo) Create(ctx context.Context, i domain.Identity) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO identities (
			id, tenant_id, email, role, password_hash, phone, active,
			must_change_password, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		i.ID, i.TenantID, domain.NormalizeEmail(i.Email), i.Role, i.PasswordHash,
		mapOptionalString(i.Phone), i.Active, i.MustChangePassword,
		i.CreatedAt, i.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return store.ErrAlreadyExists
	}
	return err
}

func (r *identitiesRepo) UpdatePasswordHash(ctx context.Context, identityID, newHash string) error {
	return execExpectingRow(ctx, r.db, `
		UPDATE identities
		SET password_hash = ?, must_change_password = 0, updated_at = ?
		WHERE id = ?`,
		newHash, time.Now().UTC(), identityID)
}

func (r *identitiesRepo) SetMustChangePassword(ctx context.Context, identityID string, v bool) error {
	return execExpectingRow(ctx, r.db, `
		UPDATE identities SET must_change_password = ?, updated_at = ? WHERE id = ?`,
		v, time.Now().UTC(), identityID)
}

func (r *identitiesRepo) SetActive(ctx context.Context, identityID string, active bool) error {
	return execExpectingRow(ctx, r.db, `
		UPDATE identities SET active = ?, updated_at = ? WHERE id = ?`,
		active, time.Now().UTC(), identityID)
}

func (r *identitiesRepo) UpdateLastLogin(ctx context.Context, identityID string, at time.Time) error {
	return execExpectingRow(ctx, r.db, `
		UPDATE identities SET last_login_at = ?, updated_at = ? WHERE id = ?`,
		at, at, identityID)
}

func (r *identitiesRepo) UpdateLastRevalidated(ctx context.Context, identityID string, at time.Time) error {
	return execExpectingRow(ctx, r.db, `
		UPDATE identities SET last_revalidated_at = ?, updated_at = ? WHERE id = ?`,
		at, at, identityID)
}

func scanIdentity(row *sql.Row) (domain.Identity, error) {
	var (
		i               domain.Identity
		phone           sql.NullString
		lastLogin       sql.NullTime
		lastRevalidated sql.NullTime
	)
	err := row.Scan(
		&i.ID, &i.TenantID, &i.Email, &i.Role, &i.PasswordHash, &phone,
		&i.Active, &i.MustChangePassword, &lastLogin, &lastRevalidated,
		&i.CreatedAt, &i.UpdatedAt,
	)
	if err != nil {
		return domain.Identity{}, mapNotFound(err)
	}
	i.Phone = mapNullStringPtr(phone)
	i.LastLoginAt = mapNullTimePtr(lastLogin)
	i.LastRevalidatedAt = mapNullTimePtr(lastRevalidated)
	return i, nil
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var se *sqlitelib.Error
	if !errors.As(err, &se) {
		return false
	}
	return se.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE ||
		se.Code() == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
}
