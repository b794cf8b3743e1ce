package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/innkeep/authcore/internal/auth/audit"
	"github.com/innkeep/authcore/internal/auth/domain"
	"github.com/innkeep/authcore/internal/auth/notify"
	"github.com/innkeep/authcore/internal/auth/store"
	"github.com/innkeep/authcore/pkg/cryptox"
	"github.com/innkeep/authcore/pkg/idx"
	"github.com/innkeep/authcore/pkg/slogx"
)

// DefaultGrantTTL is the validity window of a reset possession token.
const DefaultGrantTTL = 60 * time.Minute

// ResetService runs the two-factor password reset flow. A leaked reset link
// alone is never enough: completing the reset requires both the mailed
// possession token and a freshly issued PASSWORD_RESET code.
type ResetService struct {
	Store      store.Store
	OTP        *OTPService
	Dispatcher *notify.Dispatcher
	Audit      *audit.Recorder

	// ResetLinkBase is prefixed to the possession token in the reset email,
	// e.g. "https://app.example.com/reset-password".
	ResetLinkBase string

	GrantTTL time.Duration

	Now func() time.Time
}

func (s *ResetService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
}

func (s *ResetService) grantTTL() time.Duration {
	if s.GrantTTL > 0 {
		return s.GrantTTL
	}
	return DefaultGrantTTL
}

// RequestReset starts the flow. It always returns nil for well-formed input
// so the endpoint cannot be used to discover which emails exist; work only
// happens when the identity is real and active.
func (s *ResetService) RequestReset(ctx context.Context, email string) error {
	email = domain.NormalizeEmail(email)
	now := s.now()
	l := slogx.FromContext(ctx)

	id, err := s.Store.Identities().GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			l.Info("password reset requested for unknown email")
			return nil
		}
		return err
	}
	if !id.Active {
		l.Info("password reset requested for inactive identity", "identity_id", id.ID)
		return nil
	}

	token, err := cryptox.GenerateToken(cryptox.TokenSize256)
	if err != nil {
		return err
	}

	if err := s.Store.ResetGrants().Create(ctx, domain.PasswordResetGrant{
		ID:         idx.New().String(),
		IdentityID: id.ID,
		TokenHash:  cryptox.FingerprintToken(token),
		ExpiresAt:  now.Add(s.grantTTL()),
		CreatedAt:  now,
	}); err != nil {
		return fmt.Errorf("store reset grant: %w", err)
	}

	link := fmt.Sprintf("%s?token=%s", s.ResetLinkBase, token)
	body := fmt.Sprintf(
		"A password reset was requested for your account. Follow the link below "+
			"to continue. The link expires in %d minutes.\n\n%s\n\n"+
			"If you did not request this, you can ignore this email.",
		int(s.grantTTL().Minutes()), link)

	if err := s.Dispatcher.SendEmail(ctx, email, "Reset your password", "", body); err != nil {
		// The grant is live either way; email is retried out of band.
		l.Warn("reset link email delivery failed", "identity_id", id.ID, "error", err)
	}

	s.Audit.Record(ctx, id.ID, audit.ActionResetRequested, nil)
	return nil
}

// RequestResetCode issues the second reset factor: a PASSWORD_RESET code sent
// to the grant owner's email. The grant must still be live, which proves the
// caller holds the mailed link before any code goes out.
func (s *ResetService) RequestResetCode(ctx context.Context, possessionToken string) error {
	now := s.now()

	grant, err := s.Store.ResetGrants().GetActiveByTokenHash(
		ctx, cryptox.FingerprintToken(possessionToken), now)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrInvalidOrExpiredGrant
		}
		return err
	}

	id, err := s.Store.Identities().GetByID(ctx, grant.IdentityID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrInvalidOrExpiredGrant
		}
		return err
	}

	return s.OTP.IssueCode(ctx, id.Email, domain.PurposePasswordReset, domain.ChannelEmail)
}

// CompleteReset changes the password once both proofs check out. Everything
// is one transaction: new hash stored, must_change_password cleared, grant
// and code consumed, and every refresh session revoked. Any failure rolls
// the whole thing back, so a partial credential change cannot happen.
func (s *ResetService) CompleteReset(ctx context.Context, possessionToken, otpCode, newPassword string) error {
	now := s.now()

	newHash, err := cryptox.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("hash new password: %w", err)
	}

	var identityID string
	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		grant, err := tx.ResetGrants().GetActiveByTokenHash(
			ctx, cryptox.FingerprintToken(possessionToken), now)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrInvalidOrExpiredGrant
			}
			return err
		}

		id, err := tx.Identities().GetByID(ctx, grant.IdentityID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrInvalidOrExpiredGrant
			}
			return err
		}

		if err := consumeOneTimeCode(ctx, tx, id.Email, domain.PurposePasswordReset, otpCode, now); err != nil {
			return err
		}

		if err := tx.ResetGrants().MarkUsed(ctx, grant.ID, now); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrInvalidOrExpiredGrant
			}
			return err
		}

		// UpdatePasswordHash also clears must_change_password.
		if err := tx.Identities().UpdatePasswordHash(ctx, id.ID, newHash); err != nil {
			return err
		}

		// Force logout everywhere: a reset means the old password may have
		// been compromised, so no pre-reset session survives.
		if err := tx.RefreshSessions().DeleteAllForIdentity(ctx, id.ID); err != nil {
			return err
		}

		identityID = id.ID
		return nil
	})
	if err != nil {
		return err
	}

	s.Audit.Record(ctx, identityID, audit.ActionResetCompleted, nil)
	return nil
}
