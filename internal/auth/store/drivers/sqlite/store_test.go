package sqlite

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/innkeep/authcore/internal/auth/domain"
	"github.com/innkeep/authcore/internal/auth/store"
	"github.com/innkeep/authcore/pkg/idx"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	st, err := NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.ApplyMigrations())
	return st
}

func seedIdentity(t *testing.T, st *Store, email string) domain.Identity {
	t.Helper()
	now := time.Now().UTC()
	id := domain.Identity{
		ID:           idx.New().String(),
		TenantID:     "tenant-1",
		Email:        email,
		PasswordHash: "$argon2id$v=19$m=1,t=1,p=1$c2FsdA$aGFzaA",
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	require.NoError(t, st.Identities().Create(context.Background(), id))
	return id
}

func TestIdentityEmailUniqueAndCaseInsensitive(t *testing.T) {
	t.Parallel()
	st := newTestStore(t)
	ctx := context.Background()

	seedIdentity(t, st, "a@x.com")

	dup := seedIdentityValue("A@X.com")
	require.ErrorIs(t, st.Identities().Create(ctx, dup), store.ErrAlreadyExists)

	got, err := st.Identities().GetByEmail(ctx, "A@X.COM")
	require.NoError(t, err)
	require.Equal(t, "a@x.com", got.Email)
}

func seedIdentityValue(email string) domain.Identity {
	now := time.Now().UTC()
	return domain.Identity{
		ID:           idx.New().String(),
		TenantID:     "tenant-1",
		Email:        email,
		PasswordHash: "hash",
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func TestRefreshSessionConsumeIsExactlyOnce(t *testing.T) {
	t.Parallel()
	st := newTestStore(t)
	ctx := context.Background()

	id := seedIdentity(t, st, "a@x.com")
	now := time.Now().UTC()

	require.NoError(t, st.RefreshSessions().Create(ctx, domain.RefreshSession{
		ID:         idx.New().String(),
		IdentityID: id.ID,
		TokenHash:  "hash-1",
		ExpiresAt:  now.Add(time.Hour),
		CreatedAt:  now,
	}))

	require.NoError(t, st.RefreshSessions().Consume(ctx, "hash-1"))
	require.ErrorIs(t, st.RefreshSessions().Consume(ctx, "hash-1"), store.ErrNotFound)
}

func TestRefreshSessionPrune(t *testing.T) {
	t.Parallel()
	st := newTestStore(t)
	ctx := context.Background()

	id := seedIdentity(t, st, "a@x.com")
	base := time.Now().UTC()

	for i := range 8 {
		require.NoError(t, st.RefreshSessions().Create(ctx, domain.RefreshSession{
			ID:         idx.New().String(),
			IdentityID: id.ID,
			TokenHash:  fmt.Sprintf("hash-%d", i),
			ExpiresAt:  base.Add(time.Hour),
			CreatedAt:  base.Add(time.Duration(i) * time.Second),
		}))
	}

	require.NoError(t, st.RefreshSessions().Prune(ctx, id.ID, 5))

	// Oldest three culled, newest five kept.
	for i := range 3 {
		_, err := st.RefreshSessions().GetByTokenHash(ctx, fmt.Sprintf("hash-%d", i))
		require.ErrorIs(t, err, store.ErrNotFound)
	}
	for i := 3; i < 8; i++ {
		_, err := st.RefreshSessions().GetByTokenHash(ctx, fmt.Sprintf("hash-%d", i))
		require.NoError(t, err)
	}
}

func TestOneTimeCodeMarkUsedIsExactlyOnce(t *testing.T) {
	t.Parallel()
	st := newTestStore(t)
	ctx := context.Background()

	now := time.Now().UTC()
	code := domain.OneTimeCode{
		ID:        idx.New().String(),
		Email:     "a@x.com",
		Purpose:   domain.PurposeLogin,
		CodeHash:  "code-hash",
		ExpiresAt: now.Add(10 * time.Minute),
		CreatedAt: now,
	}
	require.NoError(t, st.OneTimeCodes().Create(ctx, code))

	require.NoError(t, st.OneTimeCodes().MarkUsed(ctx, code.ID, now))
	require.ErrorIs(t, st.OneTimeCodes().MarkUsed(ctx, code.ID, now), store.ErrNotFound)

	// Used codes disappear from the active lookup.
	_, err := st.OneTimeCodes().GetLatestActive(ctx, "a@x.com", domain.PurposeLogin, now)
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestWithTxRollsBackOnError(t *testing.T) {
	t.Parallel()
	st := newTestStore(t)
	ctx := context.Background()

	boom := errors.New("boom")
	err := st.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.Identities().Create(ctx, seedIdentityValue("tx@x.com")); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	_, err = st.Identities().GetByEmail(ctx, "tx@x.com")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestResetGrantActiveLookup(t *testing.T) {
	t.Parallel()
	st := newTestStore(t)
	ctx := context.Background()

	id := seedIdentity(t, st, "a@x.com")
	now := time.Now().UTC()

	grant := domain.PasswordResetGrant{
		ID:         idx.New().String(),
		IdentityID: id.ID,
		TokenHash:  "grant-hash",
		ExpiresAt:  now.Add(time.Hour),
		CreatedAt:  now,
	}
	require.NoError(t, st.ResetGrants().Create(ctx, grant))

	got, err := st.ResetGrants().GetActiveByTokenHash(ctx, "grant-hash", now)
	require.NoError(t, err)
	require.Equal(t, grant.ID, got.ID)

	// Expired view.
	_, err = st.ResetGrants().GetActiveByTokenHash(ctx, "grant-hash", now.Add(2*time.Hour))
	require.ErrorIs(t, err, store.ErrNotFound)

	// Used grants vanish from the active lookup.
	require.NoError(t, st.ResetGrants().MarkUsed(ctx, grant.ID, now))
	_, err = st.ResetGrants().GetActiveByTokenHash(ctx, "grant-hash", now)
	require.ErrorIs(t, err, store.ErrNotFound)
	require.ErrorIs(t, st.ResetGrants().MarkUsed(ctx, grant.ID, now), store.ErrNotFound)
}
