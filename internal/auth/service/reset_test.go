package service

import (
	"context"
	"testing"
	"time"

	"github.com/innkeep/authcore/internal/auth/domain"
	"github.com/stretchr/testify/require"
)

func TestPasswordResetFullFlow(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	ctx := context.Background()

	id := env.createIdentity(t, domain.NewIdentity{Email: "a@x.com", Password: "old-password-1"})

	// A live session that must die when the reset completes.
	session := loginFor(t, env, "a@x.com", "old-password-1")

	require.NoError(t, env.Reset.RequestReset(ctx, "a@x.com"))
	possession := env.Mail.lastResetToken(t)

	require.NoError(t, env.Reset.RequestResetCode(ctx, possession))
	code := env.Mail.lastCode(t)

	require.NoError(t, env.Reset.CompleteReset(ctx, possession, code, "new-password-1"))

	// Old password dead, new one live.
	_, err := env.Login.Login(ctx, domain.LoginInput{Email: "a@x.com", Password: "old-password-1"})
	require.ErrorIs(t, err, ErrInvalidCredentials)

	res, err := env.Login.Login(ctx, domain.LoginInput{Email: "a@x.com", Password: "new-password-1"})
	require.NoError(t, err)
	require.NotNil(t, res.Tokens)

	// Every pre-reset refresh session was revoked.
	_, err = env.Tokens.RefreshAccessToken(ctx, session.RefreshToken)
	require.ErrorIs(t, err, ErrInvalidRefreshToken)

	// The grant is single-use: it cannot start another code round.
	require.ErrorIs(t, env.Reset.RequestResetCode(ctx, possession), ErrInvalidOrExpiredGrant)

	// must_change_password is cleared by the reset.
	got, err := env.Store.Identities().GetByID(ctx, id.ID)
	require.NoError(t, err)
	require.False(t, got.MustChangePassword)
}

func TestCompleteResetRequiresBothProofs(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	ctx := context.Background()

	env.createIdentity(t, domain.NewIdentity{Email: "a@x.com", Password: "old-password-1"})

	t.Run("valid grant without a code", func(t *testing.T) {
		require.NoError(t, env.Reset.RequestReset(ctx, "a@x.com"))
		possession := env.Mail.lastResetToken(t)

		err := env.Reset.CompleteReset(ctx, possession, "123456", "new-password-1")
		require.ErrorIs(t, err, ErrInvalidOrExpiredCode)

		// Nothing was consumed by the failed attempt: the same grant can
		// still run the flow to completion.
		require.NoError(t, env.Reset.RequestResetCode(ctx, possession))
	})

	t.Run("valid code with an expired grant", func(t *testing.T) {
		env.Reset.GrantTTL = 5 * time.Minute
		defer func() { env.Reset.GrantTTL = 0 }()

		require.NoError(t, env.Reset.RequestReset(ctx, "a@x.com"))
		possession := env.Mail.lastResetToken(t)

		require.NoError(t, env.Reset.RequestResetCode(ctx, possession))
		code := env.Mail.lastCode(t)

		// Grant dies at +5m while the code (10m) is still fresh.
		env.Clock.Advance(6 * time.Minute)

		err := env.Reset.CompleteReset(ctx, possession, code, "new-password-1")
		require.ErrorIs(t, err, ErrInvalidOrExpiredGrant)
	})

	// After both failures the old password still works: no partial change.
	res, err := env.Login.Login(ctx, domain.LoginInput{Email: "a@x.com", Password: "old-password-1"})
	require.NoError(t, err)
	require.NotNil(t, res.Tokens)
}

func TestCompleteResetWrongCodeRollsBack(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	ctx := context.Background()

	env.createIdentity(t, domain.NewIdentity{Email: "a@x.com", Password: "old-password-1"})
	session := loginFor(t, env, "a@x.com", "old-password-1")

	require.NoError(t, env.Reset.RequestReset(ctx, "a@x.com"))
	possession := env.Mail.lastResetToken(t)
	require.NoError(t, env.Reset.RequestResetCode(ctx, possession))
	realCode := env.Mail.lastCode(t)

	wrong := "000000"
	if wrong == realCode {
		wrong = "000001"
	}
	require.ErrorIs(t, env.Reset.CompleteReset(ctx, possession, wrong, "new-password-1"), ErrInvalidOrExpiredCode)

	// The failed attempt changed nothing: session alive, grant and code
	// still valid, reset still completable.
	_, err := env.Tokens.RefreshAccessToken(ctx, session.RefreshToken)
	require.NoError(t, err)

	require.NoError(t, env.Reset.CompleteReset(ctx, possession, realCode, "new-password-1"))
}

func TestRequestResetUnknownEmailIsSilent(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	require.NoError(t, env.Reset.RequestReset(context.Background(), "nobody@x.com"))
	require.Zero(t, env.Mail.count())
}

func TestRequestResetCodeRejectsBogusToken(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	err := env.Reset.RequestResetCode(context.Background(), "not-a-real-token")
	require.ErrorIs(t, err, ErrInvalidOrExpiredGrant)
}
