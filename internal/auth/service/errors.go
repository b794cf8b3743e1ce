package service

import "errors"

// Security rejections are sentinel errors so the transport boundary can map
// them onto caller-facing messages. Paths that an attacker can probe (login,
// OTP, reset) share deliberately undistinguishing messages: a missing account
// and a wrong password both surface as invalid_credentials.
var (
	ErrInvalidCredentials    = errors.New("invalid_credentials")
	ErrInvalidTwoFactorCode  = errors.New("invalid_2fa_code")
	ErrInvalidOrExpiredCode  = errors.New("invalid_or_expired_code")
	ErrInvalidOrExpiredGrant = errors.New("invalid_or_expired_grant")
	ErrInvalidRefreshToken   = errors.New("invalid_refresh_token")
	ErrRefreshTokenExpired   = errors.New("refresh_token_expired")
	ErrAccountDisabled       = errors.New("account_disabled")
	ErrBackupCodeNoMatch     = errors.New("backup_code_no_match")
	ErrBackupCodeExhausted   = errors.New("backup_code_exhausted")
	ErrSMSUnavailable        = errors.New("sms_unavailable")
	ErrSMSDeliveryFailed     = errors.New("sms_delivery_failed")
	ErrTooManyRequests       = errors.New("too_many_requests")

	ErrTwoFactorNotEnrolled    = errors.New("2fa_not_enrolled")
	ErrTwoFactorNotEnabled     = errors.New("2fa_not_enabled")
	ErrTwoFactorAlreadyEnabled = errors.New("2fa_already_enabled")
)
