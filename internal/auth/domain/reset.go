package domain

import "time"

// PasswordResetGrant is the possession proof of the two-factor reset flow.
// Holding the grant token alone is not enough to change a password; a freshly
// issued PASSWORD_RESET code is also required.
type PasswordResetGrant struct {
	ID         string
	IdentityID string
	TokenHash  string // SHA-256 fingerprint of the mailed possession token
	ExpiresAt  time.Time
	UsedAt     *time.Time
	CreatedAt  time.Time
}
