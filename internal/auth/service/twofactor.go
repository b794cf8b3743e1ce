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
	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

const (
	backupCodeCount = 10
	backupCodeBytes = cryptox.TokenSize128
)

// TwoFactorService owns the TOTP enrollment lifecycle. Enrollment is a
// two-phase commit: Enroll stores a disabled secret, Activate turns it on
// only after the identity proves a valid code, so a half-finished setup can
// never lock anyone out.
type TwoFactorService struct {
	Store  store.Store
	Issuer string
	Audit  *audit.Recorder

	Now func() time.Time
}

func (s *TwoFactorService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
}

// Enroll generates a TOTP secret for the identity and returns the otpauth
// material for QR rendering. The second factor is NOT yet enforced; the
// caller must follow up with Activate. Re-enrolling before activation
// replaces the pending secret.
func (s *TwoFactorService) Enroll(ctx context.Context, identityID string) (domain.TwoFactorEnrollment, error) {
	id, err := s.Store.Identities().GetByID(ctx, identityID)
	if err != nil {
		return domain.TwoFactorEnrollment{}, err
	}

	existing, err := s.Store.SecondFactors().Get(ctx, identityID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return domain.TwoFactorEnrollment{}, err
	}
	if err == nil && existing.Enabled() {
		return domain.TwoFactorEnrollment{}, ErrTwoFactorAlreadyEnabled
	}

	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      s.Issuer,
		AccountName: id.Email,
		Period:      30,
		Digits:      otp.DigitsSix,
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		return domain.TwoFactorEnrollment{}, fmt.Errorf("generate TOTP key: %w", err)
	}

	if err := s.Store.SecondFactors().Upsert(ctx, domain.SecondFactorConfig{
		IdentityID: identityID,
		Secret:     key.Secret(),
		CreatedAt:  s.now(),
	}); err != nil {
		return domain.TwoFactorEnrollment{}, fmt.Errorf("store TOTP secret: %w", err)
	}

	return domain.TwoFactorEnrollment{
		Secret:  key.Secret(),
		URL:     key.URL(),
		Issuer:  s.Issuer,
		Account: id.Email,
	}, nil
}

// Activate verifies a first TOTP code against the pending secret, enables
// the second factor, and generates the backup-code set. The plaintext codes
// are returned exactly once; only their hashes are stored.
func (s *TwoFactorService) Activate(ctx context.Context, identityID, code string) ([]string, error) {
	cfg, err := s.Store.SecondFactors().Get(ctx, identityID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrTwoFactorNotEnrolled
		}
		return nil, err
	}
	if cfg.Enabled() {
		return nil, ErrTwoFactorAlreadyEnabled
	}

	if !totp.Validate(code, cfg.Secret) {
		return nil, ErrInvalidTwoFactorCode
	}

	codes, err := generateBackupCodes()
	if err != nil {
		return nil, err
	}

	now := s.now()
	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		for _, c := range codes {
			if err := tx.BackupCodes().Create(ctx, identityID, cryptox.FingerprintToken(c)); err != nil {
				return fmt.Errorf("store backup code: %w", err)
			}
		}
		return tx.SecondFactors().Enable(ctx, identityID, now)
	})
	if err != nil {
		return nil, err
	}

	s.Audit.Record(ctx, identityID, audit.ActionTwoFactorEnabled, nil)
	return codes, nil
}

// RegenerateBackupCodes replaces the whole backup set after a TOTP proof.
// Old codes die immediately, used or not.
func (s *TwoFactorService) RegenerateBackupCodes(ctx context.Context, identityID, code string) ([]string, error) {
	if err := s.verifyEnabled(ctx, identityID, code); err != nil {
		return nil, err
	}

	codes, err := generateBackupCodes()
	if err != nil {
		return nil, err
	}

	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.BackupCodes().DeleteAll(ctx, identityID); err != nil {
			return err
		}
		for _, c := range codes {
			if err := tx.BackupCodes().Create(ctx, identityID, cryptox.FingerprintToken(c)); err != nil {
				return fmt.Errorf("store backup code: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return codes, nil
}

// Disable removes the second factor and its backup codes after a TOTP proof.
func (s *TwoFactorService) Disable(ctx context.Context, identityID, code string) error {
	if err := s.verifyEnabled(ctx, identityID, code); err != nil {
		return err
	}

	err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.BackupCodes().DeleteAll(ctx, identityID); err != nil {
			return err
		}
		return tx.SecondFactors().Delete(ctx, identityID)
	})
	if err != nil {
		return err
	}

	s.Audit.Record(ctx, identityID, audit.ActionTwoFactorDisabled, nil)
	return nil
}

// verifyEnabled checks that the second factor is active and the given TOTP
// code is valid for it.
func (s *TwoFactorService) verifyEnabled(ctx context.Context, identityID, code string) error {
	cfg, err := s.Store.SecondFactors().Get(ctx, identityID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrTwoFactorNotEnabled
		}
		return err
	}
	if !cfg.Enabled() {
		return ErrTwoFactorNotEnabled
	}
	if !totp.Validate(code, cfg.Secret) {
		return ErrInvalidTwoFactorCode
	}
	return nil
}

func generateBackupCodes() ([]string, error) {
	codes := make([]string, backupCodeCount)
	for i := range codes {
		c, err := cryptox.GenerateToken(backupCodeBytes)
		if err != nil {
			return nil, fmt.Errorf("generate backup code: %w", err)
		}
		codes[i] = c
	}
	return codes, nil
}
