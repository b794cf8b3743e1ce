package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/innkeep/authcore/internal/auth/domain"
	"github.com/innkeep/authcore/internal/auth/notify"
	"github.com/innkeep/authcore/internal/auth/store"
	"github.com/innkeep/authcore/pkg/cryptox"
	"github.com/innkeep/authcore/pkg/idx"
	"github.com/innkeep/authcore/pkg/slogx"
)

const (
	// DefaultCodeTTL is the validity window for one-time codes.
	DefaultCodeTTL = 10 * time.Minute

	codeDigits = 6
)

// OTPService generates, stores, delivers, and verifies short numeric codes
// scoped by (subject, purpose).
type OTPService struct {
	Store      store.Store
	Dispatcher *notify.Dispatcher
	Limiter    *IssueLimiter // nil disables throttling
	CodeTTL    time.Duration

	Now func() time.Time
}

func (s *OTPService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
}

func (s *OTPService) codeTTL() time.Duration {
	if s.CodeTTL > 0 {
		return s.CodeTTL
	}
	return DefaultCodeTTL
}

// IssueCode generates a fresh code for (subject, purpose), stores its hash,
// and delivers it out of band. Email delivery is always attempted and is
// best-effort; when channel is SMS the code additionally goes to the
// identity's phone, and SMS problems are surfaced to the caller rather than
// silently degraded. An unknown subject returns nil so the endpoint cannot
// be used to probe which emails exist.
func (s *OTPService) IssueCode(ctx context.Context, subject string, purpose domain.CodePurpose, channel domain.Channel) error {
	subject = domain.NormalizeEmail(subject)
	now := s.now()
	l := slogx.FromContext(ctx)

	if s.Limiter != nil && !s.Limiter.Allow(subject+"|"+string(purpose)) {
		return ErrTooManyRequests
	}

	id, err := s.Store.Identities().GetByEmail(ctx, subject)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			l.Info("one-time code requested for unknown subject", "purpose", purpose)
			return nil
		}
		return err
	}
	if !id.Active {
		l.Info("one-time code requested for inactive identity", "identity_id", id.ID)
		return nil
	}

	// SMS preconditions are checked before anything is stored so a failed
	// request leaves no live code behind.
	if channel == domain.ChannelSMS && id.Phone == nil {
		return ErrSMSUnavailable
	}

	code, err := cryptox.GenerateNumericCode(codeDigits)
	if err != nil {
		return err
	}

	if err := s.Store.OneTimeCodes().Create(ctx, domain.OneTimeCode{
		ID:        idx.New().String(),
		Email:     subject,
		Purpose:   purpose,
		CodeHash:  cryptox.FingerprintToken(code),
		ExpiresAt: now.Add(s.codeTTL()),
		CreatedAt: now,
	}); err != nil {
		return fmt.Errorf("store one-time code: %w", err)
	}

	emailSubject, body := codeMessage(purpose, code, s.codeTTL())
	if err := s.Dispatcher.SendEmail(ctx, subject, emailSubject, "", body); err != nil {
		// Email is retried out of band; the code stays valid.
		l.Warn("one-time code email delivery failed", "identity_id", id.ID, "error", err)
	}

	if channel == domain.ChannelSMS {
		if err := s.Dispatcher.SendSMS(ctx, *id.Phone, body); err != nil {
			if errors.Is(err, notify.ErrNoSMSSender) {
				return ErrSMSUnavailable
			}
			return fmt.Errorf("%w: %w", ErrSMSDeliveryFailed, err)
		}
	}

	return nil
}

// VerifyCode checks a candidate against the latest live code for
// (subject, purpose), consumes it on success, and returns the identity it
// belongs to.
func (s *OTPService) VerifyCode(ctx context.Context, subject string, purpose domain.CodePurpose, candidate string) (domain.Identity, error) {
	subject = domain.NormalizeEmail(subject)
	now := s.now()

	var id domain.Identity
	err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := consumeOneTimeCode(ctx, tx, subject, purpose, candidate, now); err != nil {
			return err
		}

		got, err := tx.Identities().GetByEmail(ctx, subject)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrInvalidOrExpiredCode
			}
			return err
		}
		id = got
		return nil
	})
	if err != nil {
		return domain.Identity{}, err
	}

	return id, nil
}

// consumeOneTimeCode validates and consumes a code inside the caller's
// transaction. The purpose scoping lives in the lookup: a live LOGIN code is
// invisible to a PASSWORD_RESET verification.
func consumeOneTimeCode(
	ctx context.Context,
	st store.Store,
	subject string,
	purpose domain.CodePurpose,
	candidate string,
	now time.Time,
) error {
	code, err := st.OneTimeCodes().GetLatestActive(ctx, subject, purpose, now)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrInvalidOrExpiredCode
		}
		return err
	}

	if !cryptox.ConstantTimeEqual(cryptox.FingerprintToken(candidate), code.CodeHash) {
		return ErrInvalidOrExpiredCode
	}

	if err := st.OneTimeCodes().MarkUsed(ctx, code.ID, now); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// Lost a race against a concurrent verification.
			return ErrInvalidOrExpiredCode
		}
		return err
	}

	return nil
}

func codeMessage(purpose domain.CodePurpose, code string, ttl time.Duration) (subject, body string) {
	switch purpose {
	case domain.PurposeLogin:
		subject = "Your sign-in code"
	case domain.PurposeRevalidation:
		subject = "Confirm it's still you"
	case domain.PurposePasswordReset:
		subject = "Your password reset code"
	}
	body = fmt.Sprintf("Your verification code is %s. It expires in %d minutes.",
		code, int(ttl.Minutes()))
	return subject, body
}
