package domain

import "time"

// RefreshSession is the persisted side of a refresh token. One row per issued
// token; the row is deleted the moment the token is redeemed, which is what
// makes refresh tokens single-use.
type RefreshSession struct {
	ID         string
	IdentityID string
	TokenHash  string // SHA-256 fingerprint of the signed token
	ExpiresAt  time.Time
	CreatedAt  time.Time
}

// TokenPair is what a successful login or refresh returns.
type TokenPair struct {
	AccessToken  string        `json:"access_token"`
	RefreshToken string        `json:"refresh_token"`
	TokenType    string        `json:"token_type,omitempty"` // "Bearer"
	ExpiresIn    time.Duration `json:"expires_in"`
}
