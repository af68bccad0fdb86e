package auth

import (
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// MinSecretLength is the HMAC-SHA-512 key size in bytes.
const MinSecretLength = 64

// jwtSegments is the number of dot-separated parts in a compact JWS.
const jwtSegments = 3

// TokenCodec signs and verifies bearer credentials with HS512.
// It holds no per-token state and is safe for concurrent use.
type TokenCodec struct {
	now func() time.Time
}

// NewTokenCodec returns a codec using the wall clock.
func NewTokenCodec() *TokenCodec {
	return &TokenCodec{now: time.Now}
}

// Encode binds the claim's identity as subject and its expiry as exp, and
// returns the compact signed token. exp has whole-second precision, so a
// fractional expiry is rounded up to the next second.
func (c *TokenCodec) Encode(claim BearerClaim, secret []byte) (string, error) {
	if len(secret) < MinSecretLength {
		return "", fmt.Errorf("%w: %d bytes, need %d", ErrWeakKey, len(secret), MinSecretLength)
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS512, jwt.RegisteredClaims{
		Subject:   claim.Identity,
		IssuedAt:  jwt.NewNumericDate(c.now()),
		ExpiresAt: jwt.NewNumericDate(ceilSecond(claim.ExpiresAt)),
	})
	signed, err := token.SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("signing bearer token: %w", err)
	}
	return signed, nil
}

// Decode verifies the token's signature against secret, then its expiry,
// and returns the claim. Errors wrap ErrMalformedToken, ErrSignatureInvalid
// or ErrTokenExpired.
func (c *TokenCodec) Decode(token string, secret []byte) (BearerClaim, error) {
	parts := strings.Split(token, ".")
	if len(parts) != jwtSegments || parts[0] == "" || parts[1] == "" || parts[2] == "" {
		return BearerClaim{}, ErrMalformedToken
	}

	// Signature first, so any altered byte reports as a signature failure
	// rather than whatever the damaged payload happens to decode to.
	sig, err := base64.RawURLEncoding.Strict().DecodeString(parts[2])
	if err != nil {
		return BearerClaim{}, ErrSignatureInvalid
	}
	if err := jwt.SigningMethodHS512.Verify(parts[0]+"."+parts[1], sig, secret); err != nil {
		return BearerClaim{}, ErrSignatureInvalid
	}

	var claims jwt.RegisteredClaims
	_, err = jwt.ParseWithClaims(token, &claims, func(_ *jwt.Token) (any, error) {
		return secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS512.Alg()}),
		jwt.WithoutClaimsValidation(),
	)
	if err != nil {
		return BearerClaim{}, fmt.Errorf("%w: %w", ErrMalformedToken, err)
	}

	if claims.ExpiresAt == nil {
		return BearerClaim{}, fmt.Errorf("%w: missing exp", ErrMalformedToken)
	}
	if claims.Subject == "" {
		return BearerClaim{}, fmt.Errorf("%w: missing subject", ErrMalformedToken)
	}
	// Valid up to and including the expiry instant.
	if c.now().After(claims.ExpiresAt.Time) {
		return BearerClaim{}, ErrTokenExpired
	}

	return BearerClaim{
		Identity:  claims.Subject,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

func ceilSecond(t time.Time) time.Time {
	if down := t.Truncate(time.Second); down.Before(t) {
		return down.Add(time.Second)
	}
	return t
}
