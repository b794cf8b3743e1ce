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
)

var (
	ErrEmailTaken      = errors.New("email_taken")
	ErrPasswordTooWeak = errors.New("password_too_weak")
)

// minPasswordLength is a floor, not a policy engine; real complexity rules
// live with the caller.
const minPasswordLength = 8

// IdentityService is the minimal credential administration surface: create,
// deactivate, and authenticated password change. Each mutation takes an
// explicit per-operation input so unrelated fields can never be overwritten
// by accident.
type IdentityService struct {
	Store store.Store
	Audit *audit.Recorder

	Now func() time.Time
}

func (s *IdentityService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
}

// Create registers a new identity with a hashed password.
func (s *IdentityService) Create(ctx context.Context, in domain.NewIdentity) (domain.Identity, error) {
	if len(in.Password) < minPasswordLength {
		return domain.Identity{}, ErrPasswordTooWeak
	}

	hash, err := cryptox.HashPassword(in.Password)
	if err != nil {
		return domain.Identity{}, fmt.Errorf("hash password: %w", err)
	}

	now := s.now()
	id := domain.Identity{
		ID:                 idx.New().String(),
		TenantID:           in.TenantID,
		Email:              domain.NormalizeEmail(in.Email),
		Role:               in.Role,
		PasswordHash:       hash,
		Phone:              in.Phone,
		Active:             true,
		MustChangePassword: in.MustChangePassword,
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	if err := s.Store.Identities().Create(ctx, id); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return domain.Identity{}, ErrEmailTaken
		}
		return domain.Identity{}, err
	}

	s.Audit.Record(ctx, id.ID, audit.ActionIdentityCreated, map[string]any{"tenant_id": id.TenantID})
	return id, nil
}

// Deactivate soft-disables the identity and revokes every refresh session.
// The row stays because audit history references it.
func (s *IdentityService) Deactivate(ctx context.Context, identityID string) error {
	err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.Identities().SetActive(ctx, identityID, false); err != nil {
			return err
		}
		return tx.RefreshSessions().DeleteAllForIdentity(ctx, identityID)
	})
	if err != nil {
		return err
	}

	s.Audit.Record(ctx, identityID, audit.ActionIdentityDeactivated, nil)
	return nil
}

// ChangePassword rotates the password after proving the current one. The
// change clears must_change_password and revokes every refresh session, so
// all devices have to log in with the new password.
func (s *IdentityService) ChangePassword(ctx context.Context, identityID, current, newPassword string) error {
	if len(newPassword) < minPasswordLength {
		return ErrPasswordTooWeak
	}

	id, err := s.Store.Identities().GetByID(ctx, identityID)
	if err != nil {
		return err
	}
	if !id.Active {
		return ErrAccountDisabled
	}
	if err := cryptox.VerifyPassword(current, id.PasswordHash); err != nil {
		return ErrInvalidCredentials
	}

	hash, err := cryptox.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.Identities().UpdatePasswordHash(ctx, identityID, hash); err != nil {
			return err
		}
		return tx.RefreshSessions().DeleteAllForIdentity(ctx, identityID)
	})
	if err != nil {
		return err
	}

	s.Audit.Record(ctx, identityID, audit.ActionPasswordChanged, nil)
	return nil
}
