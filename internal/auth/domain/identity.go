package domain

import (
	"strings"
	"time"
)

// Identity is a staff member's credential record. Identities are owned by a
// tenant and are never deleted while audit history references them; Active
// is flipped off instead.
type Identity struct {
	ID                 string
	TenantID           string
	Email              string // normalized lowercase, unique
	Role               string
	PasswordHash       string // argon2id PHC string
	Phone              *string
	Active             bool
	MustChangePassword bool
	LastLoginAt        *time.Time
	LastRevalidatedAt  *time.Time
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// NewIdentity is the explicit input for creating an identity. Only the fields
// listed here may be set at creation time.
type NewIdentity struct {
	TenantID           string
	Email              string
	Role               string
	Password           string
	Phone              *string
	MustChangePassword bool
}

// IdentitySummary is the caller-facing identity shape returned on login.
type IdentitySummary struct {
	ID       string `json:"id"`
	TenantID string `json:"tenant_id"`
	Email    string `json:"email"`
	Role     string `json:"role"`
}

// Summary projects the identity to its caller-facing shape.
func (i Identity) Summary() IdentitySummary {
	return IdentitySummary{
		ID:       i.ID,
		TenantID: i.TenantID,
		Email:    i.Email,
		Role:     i.Role,
	}
}

// RevalidationBaseline is the most recent moment the identity proved itself
// through a full login or an access revalidation. Account creation seeds the
// baseline so brand-new identities are not immediately challenged.
func (i Identity) RevalidationBaseline() time.Time {
	t := i.CreatedAt
	if i.LastLoginAt != nil && i.LastLoginAt.After(t) {
		t = *i.LastLoginAt
	}
	if i.LastRevalidatedAt != nil && i.LastRevalidatedAt.After(t) {
		t = *i.LastRevalidatedAt
	}
	return t
}

// NormalizeEmail canonicalizes an email for use as a lookup key.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
