package store

import (
	"context"
	"errors"
	"time"

	"github.com/innkeep/authcore/internal/auth/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
)

// Store is the root data access interface. Concrete drivers (sqlite today)
// implement this. Sub-repositories keep concerns tidy and let transactional
// code use exactly the same repository surface.
type Store interface {
	Identities() Identities
	SecondFactors() SecondFactors
	BackupCodes() BackupCodes
	OneTimeCodes() OneTimeCodes
	RefreshSessions() RefreshSessions
	ResetGrants() ResetGrants

	ApplyMigrations() error

	// Tx starts a read/write transaction. The caller MUST Commit or Rollback.
	Tx(ctx context.Context) (Tx, error)

	// WithTx runs fn inside a transaction, committing on nil and rolling back
	// on error. Every orchestrator operation with more than one write goes
	// through here so a crash can never leave a partially applied state.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	Close() error
	Ping(ctx context.Context) error
}

// Tx is a transaction-scoped Store with Commit/Rollback.
type Tx interface {
	Store
	Commit() error
	Rollback() error
}

type Identities interface {
	GetByID(ctx context.Context, id string) (domain.Identity, error)

	// GetByEmail resolves by the normalized, case-insensitive email key.
	GetByEmail(ctx context.Context, email string) (domain.Identity, error)

	Create(ctx context.Context, i domain.Identity) error

	// UpdatePasswordHash stores a new hash and clears must_change_password.
	UpdatePasswordHash(ctx context.Context, identityID, newHash string) error

	SetMustChangePassword(ctx context.Context, identityID string, v bool) error

	// SetActive soft-activates or soft-deactivates; identities referenced by
	// audit history are never deleted.
	SetActive(ctx context.Context, identityID string, active bool) error

	UpdateLastLogin(ctx context.Context, identityID string, at time.Time) error
	UpdateLastRevalidated(ctx context.Context, identityID string, at time.Time) error
}

type SecondFactors interface {
	// Get returns the config for an identity, ErrNotFound when never enrolled.
	Get(ctx context.Context, identityID string) (domain.SecondFactorConfig, error)

	// Upsert writes a fresh, not-yet-enabled config, replacing any previous
	// enrollment attempt.
	Upsert(ctx context.Context, c domain.SecondFactorConfig) error

	// Enable activates the config after a successful verification.
	Enable(ctx context.Context, identityID string, at time.Time) error

	Delete(ctx context.Context, identityID string) error
}

type BackupCodes interface {
	Create(ctx context.Context, identityID, codeHash string) error

	// Exists reports whether the hash is in the identity's live set.
	Exists(ctx context.Context, identityID, codeHash string) (bool, error)

	// Delete consumes a single code after use.
	Delete(ctx context.Context, identityID, codeHash string) error

	DeleteAll(ctx context.Context, identityID string) error
	Count(ctx context.Context, identityID string) (int, error)
}

type OneTimeCodes interface {
	Create(ctx context.Context, c domain.OneTimeCode) error

	// GetLatestActive returns the most recent unused, unexpired code for
	// (email, purpose) as of the given instant, or ErrNotFound.
	GetLatestActive(ctx context.Context, email string, purpose domain.CodePurpose, asOf time.Time) (domain.OneTimeCode, error)

	// MarkUsed consumes the code. Returns ErrNotFound when the code was
	// already used, so double consumption fails loudly.
	MarkUsed(ctx context.Context, id string, at time.Time) error

	DeleteExpired(ctx context.Context, asOf time.Time) error
}

type RefreshSessions interface {
	Create(ctx context.Context, s domain.RefreshSession) error
	GetByTokenHash(ctx context.Context, hash string) (domain.RefreshSession, error)

	// Consume deletes the session by token hash, returning ErrNotFound when
	// no row was deleted. Concurrent redeems of the same token serialize on
	// this delete: exactly one caller wins.
	Consume(ctx context.Context, hash string) error

	// DeleteAllForIdentity is the "log out everywhere" primitive.
	DeleteAllForIdentity(ctx context.Context, identityID string) error

	// Prune keeps only the `keep` most recent sessions for an identity.
	Prune(ctx context.Context, identityID string, keep int) error

	DeleteExpired(ctx context.Context, asOf time.Time) error
}

type ResetGrants interface {
	Create(ctx context.Context, g domain.PasswordResetGrant) error

	// GetActiveByTokenHash returns the unused, unexpired grant for the hash
	// as of the given instant, or ErrNotFound.
	GetActiveByTokenHash(ctx context.Context, hash string, asOf time.Time) (domain.PasswordResetGrant, error)

	// MarkUsed consumes the grant; ErrNotFound when already used.
	MarkUsed(ctx context.Context, id string, at time.Time) error

	DeleteExpired(ctx context.Context, asOf time.Time) error
}
