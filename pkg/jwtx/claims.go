package jwtx

import (
	"crypto/rand"
	"encoding/base64"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Token use values. Every token this package signs carries exactly one,
// and verification must check it: an access token presented where a refresh
// token is expected is rejected even though the signature is valid.
const (
	UseAccess        = "access"
	UseRefresh       = "refresh"
	UseTrustedDevice = "trusted_device"
)

// Claims are the signed claims shared by access, refresh, and trusted-device
// tokens. Additive changes only, to keep old tokens parseable.
type Claims struct {
	jwt.RegisteredClaims

	// TokenUse discriminates access / refresh / trusted_device tokens.
	TokenUse string `json:"use,omitempty"`

	// SID is the refresh-session identifier, set on refresh tokens only.
	SID string `json:"sid,omitempty"`

	// Identity attributes carried on access and trusted-device tokens.
	Email    string `json:"email,omitempty"`
	Role     string `json:"role,omitempty"`
	TenantID string `json:"tid,omitempty"`
}

// NewAccessClaims builds claims for a short-lived stateless access token.
func NewAccessClaims(subject, email, role, tenantID, issuer string, ttl time.Duration, now time.Time) Claims {
	return Claims{
		RegisteredClaims: registered(subject, issuer, ttl, now),
		TokenUse:         UseAccess,
		Email:            email,
		Role:             role,
		TenantID:         tenantID,
	}
}

// NewRefreshClaims builds claims for a store-backed refresh token. The sid
// ties the signed token to its persisted session row.
func NewRefreshClaims(subject, sid, issuer string, ttl time.Duration, now time.Time) Claims {
	return Claims{
		RegisteredClaims: registered(subject, issuer, ttl, now),
		TokenUse:         UseRefresh,
		SID:              sid,
	}
}

// NewTrustedDeviceClaims builds claims for a long-lived trusted-device token.
// These are never persisted; validity is signature, expiry, and use alone.
func NewTrustedDeviceClaims(subject, email, issuer string, ttl time.Duration, now time.Time) Claims {
	return Claims{
		RegisteredClaims: registered(subject, issuer, ttl, now),
		TokenUse:         UseTrustedDevice,
		Email:            email,
	}
}

func registered(subject, issuer string, ttl time.Duration, now time.Time) jwt.RegisteredClaims {
	return jwt.RegisteredClaims{
		Issuer:    issuer,
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		ID:        newJTI(),
	}
}

// newJTI returns a URL-safe random identifier for the "jti" claim.
func newJTI() string {
	var b [20]byte
	_, _ = rand.Read(b[:])
	return base64.RawURLEncoding.EncodeToString(b[:])
}
