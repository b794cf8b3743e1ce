package service

import (
	"context"
	"errors"
	"time"

	"github.com/innkeep/authcore/internal/auth/audit"
	"github.com/innkeep/authcore/internal/auth/domain"
	"github.com/innkeep/authcore/internal/auth/store"
	"github.com/innkeep/authcore/pkg/cryptox"
	"github.com/innkeep/authcore/pkg/slogx"
	"github.com/pquerna/otp/totp"
)

// DefaultRevalidationWindow is how long a login may rely on a previous
// identity proof before a fresh out-of-band code is demanded.
const DefaultRevalidationWindow = 7 * 24 * time.Hour

// LoginService drives the login state machine. A single call either returns
// tokens, returns a required-next-step flag so the same endpoint can run a
// multi-round challenge, or rejects with a deliberately vague error.
type LoginService struct {
	Store  store.Store
	Tokens *TokenService
	OTP    *OTPService
	Audit  *audit.Recorder

	RevalidationWindow time.Duration

	Now func() time.Time
}

func (s *LoginService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
}

func (s *LoginService) revalidationWindow() time.Duration {
	if s.RevalidationWindow > 0 {
		return s.RevalidationWindow
	}
	return DefaultRevalidationWindow
}

// Login runs the full state machine: resolve identity, check password,
// forced-password-change short-circuit, second factor, trusted device,
// revalidation window, and finally token issuance.
func (s *LoginService) Login(ctx context.Context, in domain.LoginInput) (domain.LoginResult, error) {
	now := s.now()

	id, err := s.resolveByPassword(ctx, in.Email, in.Password)
	if err != nil {
		return domain.LoginResult{}, err
	}

	// The caller still gets a session so it can perform the change, but
	// nothing past this point runs until the password is rotated.
	if id.MustChangePassword {
		pair, err := s.issueSession(ctx, id, now)
		if err != nil {
			return domain.LoginResult{}, err
		}
		s.Audit.Record(ctx, id.ID, audit.ActionPasswordChangeForced, nil)
		return domain.LoginResult{
			Identity:               id.Summary(),
			Tokens:                 pair,
			RequiresPasswordChange: true,
		}, nil
	}

	sf, err := s.Store.SecondFactors().Get(ctx, id.ID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return domain.LoginResult{}, err
	}
	if err == nil && sf.Enabled() {
		if in.TwoFactorCode == "" {
			// A query, not a state advance: no tokens are issued and the
			// caller is told what to supply on the next round.
			return domain.LoginResult{
				Identity:          id.Summary(),
				RequiresTwoFactor: true,
			}, nil
		}
		if !totp.Validate(in.TwoFactorCode, sf.Secret) {
			return domain.LoginResult{}, ErrInvalidTwoFactorCode
		}
	}

	trusted := in.TrustedDeviceToken != "" &&
		s.Tokens.TrustedDeviceMatches(in.TrustedDeviceToken, id)

	if !trusted && now.Sub(id.RevalidationBaseline()) > s.revalidationWindow() {
		return domain.LoginResult{
			Identity:                id.Summary(),
			RequiresOTPRevalidation: true,
		}, nil
	}

	pair, err := s.issueSession(ctx, id, now)
	if err != nil {
		return domain.LoginResult{}, err
	}

	s.Audit.Record(ctx, id.ID, audit.ActionLogin, map[string]any{"trusted_device": trusted})

	return domain.LoginResult{Identity: id.Summary(), Tokens: pair}, nil
}

// LoginWithBackupCode authenticates with password plus a single-use recovery
// code instead of a TOTP code. The backup code is the second factor, so this
// counts as a second-factor success for revalidation purposes.
func (s *LoginService) LoginWithBackupCode(ctx context.Context, email, password, code string) (domain.LoginResult, error) {
	now := s.now()

	id, err := s.resolveByPassword(ctx, email, password)
	if err != nil {
		return domain.LoginResult{}, err
	}

	n, err := s.Store.BackupCodes().Count(ctx, id.ID)
	if err != nil {
		return domain.LoginResult{}, err
	}
	if n == 0 {
		return domain.LoginResult{}, ErrBackupCodeExhausted
	}

	hash := cryptox.FingerprintToken(code)
	ok, err := s.Store.BackupCodes().Exists(ctx, id.ID, hash)
	if err != nil {
		return domain.LoginResult{}, err
	}
	if !ok {
		return domain.LoginResult{}, ErrBackupCodeNoMatch
	}

	var pair *domain.TokenPair
	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		// Consume exactly this code; a replay finds nothing to delete.
		if err := tx.BackupCodes().Delete(ctx, id.ID, hash); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrBackupCodeNoMatch
			}
			return err
		}

		p, err := s.Tokens.IssuePair(ctx, tx, id, now)
		if err != nil {
			return err
		}
		if err := tx.Identities().UpdateLastLogin(ctx, id.ID, now); err != nil {
			return err
		}
		if err := tx.Identities().UpdateLastRevalidated(ctx, id.ID, now); err != nil {
			return err
		}
		pair = p
		return nil
	})
	if err != nil {
		return domain.LoginResult{}, err
	}

	s.Audit.Record(ctx, id.ID, audit.ActionLoginBackupCode, map[string]any{"remaining": n - 1})

	return domain.LoginResult{
		Identity:               id.Summary(),
		Tokens:                 pair,
		RequiresPasswordChange: id.MustChangePassword,
	}, nil
}

// RequestLoginCode issues a LOGIN-purpose one-time code to the subject.
func (s *LoginService) RequestLoginCode(ctx context.Context, email string, channel domain.Channel) error {
	return s.OTP.IssueCode(ctx, email, domain.PurposeLogin, channel)
}

// LoginWithCode completes an email-code login. The code proves control of
// the mailbox, which stands in for the password factor.
func (s *LoginService) LoginWithCode(ctx context.Context, email, code string) (domain.LoginResult, error) {
	now := s.now()

	id, err := s.OTP.VerifyCode(ctx, email, domain.PurposeLogin, code)
	if err != nil {
		return domain.LoginResult{}, err
	}
	if !id.Active {
		return domain.LoginResult{}, ErrInvalidCredentials
	}

	pair, err := s.issueSession(ctx, id, now)
	if err != nil {
		return domain.LoginResult{}, err
	}

	s.Audit.Record(ctx, id.ID, audit.ActionLoginCode, nil)

	return domain.LoginResult{
		Identity:               id.Summary(),
		Tokens:                 pair,
		RequiresPasswordChange: id.MustChangePassword,
	}, nil
}

// RequestRevalidationCode issues an ACCESS_REVALIDATION code.
func (s *LoginService) RequestRevalidationCode(ctx context.Context, email string, channel domain.Channel) error {
	return s.OTP.IssueCode(ctx, email, domain.PurposeRevalidation, channel)
}

// CompleteRevalidation verifies an ACCESS_REVALIDATION code and stamps the
// identity as freshly re-proven. When rememberDevice is set, a trusted-device
// token is minted so this device skips the next revalidation rounds.
func (s *LoginService) CompleteRevalidation(ctx context.Context, email, code string, rememberDevice bool) (string, error) {
	now := s.now()

	id, err := s.OTP.VerifyCode(ctx, email, domain.PurposeRevalidation, code)
	if err != nil {
		return "", err
	}
	if !id.Active {
		return "", ErrInvalidCredentials
	}

	if err := s.Store.Identities().UpdateLastRevalidated(ctx, id.ID, now); err != nil {
		return "", err
	}

	s.Audit.Record(ctx, id.ID, audit.ActionRevalidation, map[string]any{"remember_device": rememberDevice})

	if !rememberDevice {
		return "", nil
	}

	return s.Tokens.MintTrustedDeviceToken(ctx, id, now)
}

// resolveByPassword finds an identity by email and verifies the password.
// Unknown email, inactive account, and wrong password are indistinguishable
// to the caller so the endpoint cannot be used to enumerate accounts.
func (s *LoginService) resolveByPassword(ctx context.Context, email, password string) (domain.Identity, error) {
	id, err := s.Store.Identities().GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Identity{}, ErrInvalidCredentials
		}
		return domain.Identity{}, err
	}
	if !id.Active {
		return domain.Identity{}, ErrInvalidCredentials
	}
	if err := cryptox.VerifyPassword(password, id.PasswordHash); err != nil {
		if !errors.Is(err, cryptox.ErrPasswordMismatch) {
			slogx.FromContext(ctx).Error("password hash verification failed",
				"identity_id", id.ID, "error", err)
		}
		return domain.Identity{}, ErrInvalidCredentials
	}
	return id, nil
}

// issueSession creates tokens and stamps the login timestamp in one
// transaction.
func (s *LoginService) issueSession(ctx context.Context, id domain.Identity, now time.Time) (*domain.TokenPair, error) {
	var pair *domain.TokenPair
	err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		p, err := s.Tokens.IssuePair(ctx, tx, id, now)
		if err != nil {
			return err
		}
		if err := tx.Identities().UpdateLastLogin(ctx, id.ID, now); err != nil {
			return err
		}
		pair = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return pair, nil
}
