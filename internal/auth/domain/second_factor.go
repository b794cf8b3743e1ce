package domain

import "time"

// SecondFactorConfig holds an identity's TOTP enrollment. It exists from the
// moment setup is requested; EnabledAt stays nil until the identity proves a
// first valid code.
type SecondFactorConfig struct {
	IdentityID string
	Secret     string // base32 TOTP secret
	EnabledAt  *time.Time
	CreatedAt  time.Time
}

// Enabled reports whether the second factor is active for logins.
func (c SecondFactorConfig) Enabled() bool {
	return c.EnabledAt != nil
}

// TwoFactorEnrollment is returned from a setup request so the caller can
// render the otpauth URL as a QR code.
type TwoFactorEnrollment struct {
	Secret  string `json:"secret"`
	URL     string `json:"url"` // otpauth:// URL
	Issuer  string `json:"issuer"`
	Account string `json:"account"`
}
