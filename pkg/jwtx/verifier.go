package jwtx

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrInvalidToken covers malformed tokens, bad signatures, expiry, and
	// issuer mismatches. Callers treat all of these identically.
	ErrInvalidToken = errors.New("jwtx: invalid token")

	// ErrWrongUse is returned when a structurally valid token carries the
	// wrong "use" claim for the operation.
	ErrWrongUse = errors.New("jwtx: wrong token use")
)

// Verifier validates EdDSA tokens against a single public key and issuer.
type Verifier struct {
	kid    string
	pub    ed25519.PublicKey
	issuer string

	// Now overrides the verification clock. Nil means time.Now.
	Now func() time.Time
}

// NewVerifier builds a Verifier from the signer's public material.
func NewVerifier(s *Signer, issuer string) *Verifier {
	return &Verifier{kid: s.KID(), pub: s.Public(), issuer: issuer}
}

// Verify parses the token, checks signature, expiry, issuer, and that the
// token carries the expected use claim.
func (v *Verifier) Verify(tokenStr, expectedUse string) (*Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodEdDSA.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}
	if v.Now != nil {
		opts = append(opts, jwt.WithTimeFunc(v.Now))
	}

	parser := jwt.NewParser(opts...)
	token, err := parser.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (any, error) {
		kid, _ := t.Header["kid"].(string)
		if kid != v.kid {
			return nil, fmt.Errorf("jwtx: unknown kid %q", kid)
		}
		return v.pub, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}

	if claims.TokenUse != expectedUse {
		return nil, ErrWrongUse
	}

	return claims, nil
}
