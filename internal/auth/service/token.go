package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/innkeep/authcore/internal/auth/audit"
	"github.com/innkeep/authcore/internal/auth/domain"
	"github.com/innkeep/authcore/internal/auth/store"
	"github.com/innkeep/authcore/pkg/cryptox"
	"github.com/innkeep/authcore/pkg/idx"
	"github.com/innkeep/authcore/pkg/jwtx"
	"github.com/innkeep/authcore/pkg/slogx"
)

// Default token lifetimes. Overridable through configuration.
const (
	DefaultAccessTTL        = 15 * time.Minute
	DefaultRefreshTTL       = 7 * 24 * time.Hour
	DefaultTrustedDeviceTTL = 30 * 24 * time.Hour

	// DefaultMaxSessions caps retained refresh sessions per identity; pruning
	// happens inline on every issuance, not in a background job.
	DefaultMaxSessions = 5
)

// TokenService mints access, refresh, and trusted-device tokens and owns the
// refresh-session lifecycle: issue, rotate-on-use, revoke, prune.
type TokenService struct {
	Store    store.Store
	Signer   *jwtx.Signer
	Verifier *jwtx.Verifier
	Issuer   string
	Audit    *audit.Recorder

	AccessTTL        time.Duration
	RefreshTTL       time.Duration
	TrustedDeviceTTL time.Duration
	MaxSessions      int

	// Now overrides the clock, nil means time.Now UTC.
	Now func() time.Time
}

func (s *TokenService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
}

// IssuePair signs a new access token and a new refresh token for the
// identity, persists the refresh session, and prunes old sessions. st is the
// store the caller is operating on, usually a transaction, so that issuance
// is atomic with whatever triggered it.
func (s *TokenService) IssuePair(ctx context.Context, st store.Store, id domain.Identity, now time.Time) (*domain.TokenPair, error) {
	access, err := s.Signer.Sign(jwtx.NewAccessClaims(
		id.ID, id.Email, id.Role, id.TenantID, s.Issuer, s.AccessTTL, now,
	))
	if err != nil {
		return nil, fmt.Errorf("sign access token: %w", err)
	}

	sid := idx.New().String()
	refresh, err := s.Signer.Sign(jwtx.NewRefreshClaims(id.ID, sid, s.Issuer, s.RefreshTTL, now))
	if err != nil {
		return nil, fmt.Errorf("sign refresh token: %w", err)
	}

	session := domain.RefreshSession{
		ID:         sid,
		IdentityID: id.ID,
		TokenHash:  cryptox.FingerprintToken(refresh),
		ExpiresAt:  now.Add(s.RefreshTTL),
		CreatedAt:  now,
	}
	if err := st.RefreshSessions().Create(ctx, session); err != nil {
		return nil, fmt.Errorf("store refresh session: %w", err)
	}

	// Pruning is best-effort hygiene; a failure must not void the issuance.
	if err := st.RefreshSessions().Prune(ctx, id.ID, s.maxSessions()); err != nil {
		slogx.FromContext(ctx).Warn("refresh session prune failed",
			"identity_id", id.ID, "error", err)
	}

	return &domain.TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "Bearer",
		ExpiresIn:    s.AccessTTL,
	}, nil
}

// RefreshAccessToken redeems a refresh token for a new pair. Tokens are
// single-use: the stored session is deleted before its successor is created,
// inside one transaction, so a replayed token always misses.
func (s *TokenService) RefreshAccessToken(ctx context.Context, refreshToken string) (*domain.TokenPair, error) {
	now := s.now()

	if _, err := s.Verifier.Verify(refreshToken, jwtx.UseRefresh); err != nil {
		return nil, ErrInvalidRefreshToken
	}

	fp := cryptox.FingerprintToken(refreshToken)
	session, err := s.Store.RefreshSessions().GetByTokenHash(ctx, fp)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrInvalidRefreshToken
		}
		return nil, err
	}

	if now.After(session.ExpiresAt) {
		// The stored row outlived its welcome; clean it up on the way out.
		_ = s.Store.RefreshSessions().Consume(ctx, fp)
		return nil, ErrRefreshTokenExpired
	}

	id, err := s.Store.Identities().GetByID(ctx, session.IdentityID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrInvalidRefreshToken
		}
		return nil, err
	}
	if !id.Active {
		return nil, ErrAccountDisabled
	}

	var pair *domain.TokenPair
	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		// Compare-and-delete: exactly one concurrent redeem of the same
		// token finds the row; the rest fail here.
		if err := tx.RefreshSessions().Consume(ctx, fp); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrInvalidRefreshToken
			}
			return err
		}

		p, err := s.IssuePair(ctx, tx, id, now)
		if err != nil {
			return err
		}
		pair = p
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.Audit.Record(ctx, id.ID, audit.ActionRefresh, map[string]any{"session_id": session.ID})

	return pair, nil
}

// Logout consumes a single refresh session. The access token, being
// stateless, simply runs out its short lifetime.
func (s *TokenService) Logout(ctx context.Context, refreshToken string) error {
	if _, err := s.Verifier.Verify(refreshToken, jwtx.UseRefresh); err != nil {
		return ErrInvalidRefreshToken
	}

	fp := cryptox.FingerprintToken(refreshToken)
	session, err := s.Store.RefreshSessions().GetByTokenHash(ctx, fp)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrInvalidRefreshToken
		}
		return err
	}

	if err := s.Store.RefreshSessions().Consume(ctx, fp); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrInvalidRefreshToken
		}
		return err
	}

	s.Audit.Record(ctx, session.IdentityID, audit.ActionLogout, nil)
	return nil
}

// RevokeAllSessions deletes every refresh session for the identity: the
// "log out everywhere" primitive used by password reset and deactivation.
func (s *TokenService) RevokeAllSessions(ctx context.Context, identityID string) error {
	return s.Store.RefreshSessions().DeleteAllForIdentity(ctx, identityID)
}

// MintTrustedDeviceToken issues a long-lived, stateless bypass credential.
// It cannot be revoked individually before expiry; the TTL bounds exposure.
func (s *TokenService) MintTrustedDeviceToken(ctx context.Context, id domain.Identity, now time.Time) (string, error) {
	tok, err := s.Signer.Sign(jwtx.NewTrustedDeviceClaims(
		id.ID, id.Email, s.Issuer, s.trustedDeviceTTL(), now,
	))
	if err != nil {
		return "", fmt.Errorf("sign trusted-device token: %w", err)
	}

	s.Audit.Record(ctx, id.ID, audit.ActionTrustedDeviceMinted, nil)
	return tok, nil
}

// TrustedDeviceMatches reports whether the token is a valid trusted-device
// credential for exactly this identity. Wrong scope, wrong subject, bad
// signature, and expiry all fail the same way: the device is not trusted.
func (s *TokenService) TrustedDeviceMatches(token string, id domain.Identity) bool {
	claims, err := s.Verifier.Verify(token, jwtx.UseTrustedDevice)
	if err != nil {
		return false
	}
	return claims.Subject == id.ID && domain.NormalizeEmail(claims.Email) == id.Email
}

func (s *TokenService) maxSessions() int {
	if s.MaxSessions > 0 {
		return s.MaxSessions
	}
	return DefaultMaxSessions
}

func (s *TokenService) trustedDeviceTTL() time.Duration {
	if s.TrustedDeviceTTL > 0 {
		return s.TrustedDeviceTTL
	}
	return DefaultTrustedDeviceTTL
}
