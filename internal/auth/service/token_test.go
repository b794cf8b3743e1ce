package service

import (
	"context"
	"testing"
	"time"

	"github.com/innkeep/authcore/internal/auth/domain"
	"github.com/innkeep/authcore/internal/auth/store"
	"github.com/innkeep/authcore/pkg/cryptox"
	"github.com/innkeep/authcore/pkg/idx"
	"github.com/innkeep/authcore/pkg/jwtx"
	"github.com/stretchr/testify/require"
)

func loginFor(t *testing.T, env *testEnv, email, password string) *domain.TokenPair {
	t.Helper()
	res, err := env.Login.Login(context.Background(), domain.LoginInput{Email: email, Password: password})
	require.NoError(t, err)
	require.NotNil(t, res.Tokens)
	return res.Tokens
}

func TestRefreshRotationIsSingleUse(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	ctx := context.Background()

	env.createIdentity(t, domain.NewIdentity{Email: "a@x.com", Password: "P@ssw0rd1"})
	r1 := loginFor(t, env, "a@x.com", "P@ssw0rd1").RefreshToken

	env.Clock.Advance(time.Minute)

	// R1 redeems exactly once.
	pair2, err := env.Tokens.RefreshAccessToken(ctx, r1)
	require.NoError(t, err)
	require.NotEmpty(t, pair2.AccessToken)
	require.NotEqual(t, r1, pair2.RefreshToken)

	_, err = env.Tokens.RefreshAccessToken(ctx, r1)
	require.ErrorIs(t, err, ErrInvalidRefreshToken)

	// The successor works.
	pair3, err := env.Tokens.RefreshAccessToken(ctx, pair2.RefreshToken)
	require.NoError(t, err)
	require.NotEmpty(t, pair3.RefreshToken)
}

func TestRefreshRejectsMalformedAndWrongUseTokens(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	ctx := context.Background()

	env.createIdentity(t, domain.NewIdentity{Email: "a@x.com", Password: "P@ssw0rd1"})
	pair := loginFor(t, env, "a@x.com", "P@ssw0rd1")

	_, err := env.Tokens.RefreshAccessToken(ctx, "garbage")
	require.ErrorIs(t, err, ErrInvalidRefreshToken)

	// A valid access token is still not a refresh token.
	_, err = env.Tokens.RefreshAccessToken(ctx, pair.AccessToken)
	require.ErrorIs(t, err, ErrInvalidRefreshToken)
}

func TestRefreshExpiredStoredSession(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	ctx := context.Background()

	id := env.createIdentity(t, domain.NewIdentity{Email: "a@x.com", Password: "P@ssw0rd1"})
	now := env.Clock.Now()

	// A signed token that outlives its stored row: signature still valid,
	// stored expiry already passed.
	sid := idx.New().String()
	tok, err := env.Tokens.Signer.Sign(jwtx.NewRefreshClaims(id.ID, sid, testIssuer, time.Hour, now))
	require.NoError(t, err)
	require.NoError(t, env.Store.RefreshSessions().Create(ctx, domain.RefreshSession{
		ID:         sid,
		IdentityID: id.ID,
		TokenHash:  cryptox.FingerprintToken(tok),
		ExpiresAt:  now.Add(-time.Minute),
		CreatedAt:  now.Add(-time.Hour),
	}))

	_, err = env.Tokens.RefreshAccessToken(ctx, tok)
	require.ErrorIs(t, err, ErrRefreshTokenExpired)

	// The dead row was cleaned up on the way out.
	_, err = env.Store.RefreshSessions().GetByTokenHash(ctx, cryptox.FingerprintToken(tok))
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestRefreshInactiveAccount(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	ctx := context.Background()

	id := env.createIdentity(t, domain.NewIdentity{Email: "a@x.com", Password: "P@ssw0rd1"})
	pair := loginFor(t, env, "a@x.com", "P@ssw0rd1")

	require.NoError(t, env.Store.Identities().SetActive(ctx, id.ID, false))

	_, err := env.Tokens.RefreshAccessToken(ctx, pair.RefreshToken)
	require.ErrorIs(t, err, ErrAccountDisabled)
}

func TestSessionPruneKeepsMostRecent(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	ctx := context.Background()

	env.Tokens.MaxSessions = 5
	env.createIdentity(t, domain.NewIdentity{Email: "a@x.com", Password: "P@ssw0rd1"})

	var refreshTokens []string
	for range 7 {
		refreshTokens = append(refreshTokens, loginFor(t, env, "a@x.com", "P@ssw0rd1").RefreshToken)
		env.Clock.Advance(time.Minute)
	}

	// The two oldest sessions were pruned at issuance time.
	for _, tok := range refreshTokens[:2] {
		_, err := env.Tokens.RefreshAccessToken(ctx, tok)
		require.ErrorIs(t, err, ErrInvalidRefreshToken)
	}

	// The most recent one still works.
	_, err := env.Tokens.RefreshAccessToken(ctx, refreshTokens[6])
	require.NoError(t, err)
}

func TestLogoutConsumesSingleSession(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	ctx := context.Background()

	env.createIdentity(t, domain.NewIdentity{Email: "a@x.com", Password: "P@ssw0rd1"})
	first := loginFor(t, env, "a@x.com", "P@ssw0rd1")
	env.Clock.Advance(time.Minute)
	second := loginFor(t, env, "a@x.com", "P@ssw0rd1")

	require.NoError(t, env.Tokens.Logout(ctx, first.RefreshToken))

	_, err := env.Tokens.RefreshAccessToken(ctx, first.RefreshToken)
	require.ErrorIs(t, err, ErrInvalidRefreshToken)

	// Other sessions are untouched.
	_, err = env.Tokens.RefreshAccessToken(ctx, second.RefreshToken)
	require.NoError(t, err)

	// Logging out twice fails cleanly.
	require.ErrorIs(t, env.Tokens.Logout(ctx, first.RefreshToken), ErrInvalidRefreshToken)
}

func TestRevokeAllSessions(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	ctx := context.Background()

	id := env.createIdentity(t, domain.NewIdentity{Email: "a@x.com", Password: "P@ssw0rd1"})
	first := loginFor(t, env, "a@x.com", "P@ssw0rd1")
	env.Clock.Advance(time.Minute)
	second := loginFor(t, env, "a@x.com", "P@ssw0rd1")

	require.NoError(t, env.Tokens.RevokeAllSessions(ctx, id.ID))

	for _, tok := range []string{first.RefreshToken, second.RefreshToken} {
		_, err := env.Tokens.RefreshAccessToken(ctx, tok)
		require.ErrorIs(t, err, ErrInvalidRefreshToken)
	}
}

func TestTrustedDeviceMatches(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	ctx := context.Background()

	a := env.createIdentity(t, domain.NewIdentity{Email: "a@x.com", Password: "P@ssw0rd1"})
	b := env.createIdentity(t, domain.NewIdentity{Email: "b@x.com", Password: "P@ssw0rd1"})

	tok, err := env.Tokens.MintTrustedDeviceToken(ctx, a, env.Clock.Now())
	require.NoError(t, err)

	require.True(t, env.Tokens.TrustedDeviceMatches(tok, a))
	require.False(t, env.Tokens.TrustedDeviceMatches(tok, b), "cross-identity use must fail")
	require.False(t, env.Tokens.TrustedDeviceMatches("garbage", a))

	// Expired after its 30-day lifetime.
	env.Clock.Advance(31 * 24 * time.Hour)
	require.False(t, env.Tokens.TrustedDeviceMatches(tok, a))
}
