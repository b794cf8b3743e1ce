package domain

// LoginInput carries everything the login state machine may need in a single
// round. Optional fields are empty when the caller has nothing to present.
type LoginInput struct {
	Email              string
	Password           string
	TwoFactorCode      string
	TrustedDeviceToken string
}

// LoginResult is one of the five outcome shapes of login. Exactly one of the
// Requires* flags is set, or none when Tokens is populated and login is
// complete. RequiresPasswordChange is special: tokens are still issued so the
// caller has a session to perform the change with.
type LoginResult struct {
	Identity IdentitySummary `json:"identity"`
	Tokens   *TokenPair      `json:"tokens,omitempty"`

	RequiresPasswordChange  bool `json:"requires_password_change,omitempty"`
	RequiresTwoFactor       bool `json:"requires_two_factor,omitempty"`
	RequiresOTPRevalidation bool `json:"requires_otp_revalidation,omitempty"`
}
