package sqlite

import (
	"context"
	"database/sql"

	"github.com/innkeep/authcore/internal/auth/store"
)

type txStore struct {
	tx *sql.Tx
}

func newTx(tx *sql.Tx) *txStore {
	return &txStore{tx: tx}
}

func (t *txStore) Commit() error   { return t.tx.Commit() }
func (t *txStore) Rollback() error { return t.tx.Rollback() }

func (t *txStore) Close() error { return nil } // outer DB stays open

func (t *txStore) Ping(ctx context.Context) error { return nil }

func (t *txStore) Tx(ctx context.Context) (store.Tx, error) {
	// Nested transactions are not supported.
	return nil, sql.ErrTxDone
}

func (t *txStore) WithTx(ctx context.Context, fn func(tx store.Tx) error) error {
	return sql.ErrTxDone
}

func (t *txStore) ApplyMigrations() error { return nil } // migrations run before any tx

func (t *txStore) Identities() store.Identities           { return &identitiesRepo{db: t.tx} }
func (t *txStore) SecondFactors() store.SecondFactors     { return &secondFactorsRepo{db: t.tx} }
func (t *txStore) BackupCodes() store.BackupCodes         { return &backupCodesRepo{db: t.tx} }
func (t *txStore) OneTimeCodes() store.OneTimeCodes       { return &oneTimeCodesRepo{db: t.tx} }
func (t *txStore) RefreshSessions() store.RefreshSessions { return &refreshSessionsRepo{db: t.tx} }
func (t *txStore) ResetGrants() store.ResetGrants         { return &resetGrantsRepo{db: t.tx} }
