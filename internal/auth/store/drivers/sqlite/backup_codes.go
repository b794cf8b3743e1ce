package sqlite

import (
	"context"
	"time"
)

type backupCodesRepo struct {
	db dbtx
}

func (r *backupCodesRepo) Create(ctx context.Context, identityID, codeHash string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO backup_codes (identity_id, code_hash, created_at)
		VALUES (?, ?, ?)`,
		identityID, codeHash, time.Now().UTC())
	return err
}

func (r *backupCodesRepo) Exists(ctx context.Context, identityID, codeHash string) (bool, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(1) FROM backup_codes
		WHERE identity_id = ? AND code_hash = ?`,
		identityID, codeHash).Scan(&n)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *backupCodesRepo) Delete(ctx context.Context, identityID, codeHash string) error {
	return execExpectingRow(ctx, r.db, `
		DELETE FROM backup_codes WHERE identity_id = ? AND code_hash = ?`,
		identityID, codeHash)
}

func (r *backupCodesRepo) DeleteAll(ctx context.Context, identityID string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM backup_codes WHERE identity_id = ?`, identityID)
	return err
}

func (r *backupCodesRepo) Count(ctx context.Context, identityID string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM backup_codes WHERE identity_id = ?`, identityID).Scan(&n)
	return n, err
}
