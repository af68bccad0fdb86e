package auth

import (
	"errors"
	"net/mail"
	"strings"
	"time"
)

// maxEmailLength is the maximum accepted email address length (RFC 5321).
const maxEmailLength = 254

// NormaliseEmail lowercases and trims an email address for storage and lookup.
func NormaliseEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// IsValidEmail checks that an address parses as a bare RFC 5322 address.
func IsValidEmail(email string) bool {
	if email == "" || len(email) > maxEmailLength {
		return false
	}
	addr, err := mail.ParseAddress(email)
	return err == nil && addr.Address == email
}

// User represents a resident or manager account.
type User struct {
	ID             string    `json:"id"`
	Email          string    `json:"email"`
	DisplayName    string    `json:"display_name"`
	PasswordHash   string    `json:"-"` // never serialised
	EmailConfirmed bool      `json:"email_confirmed"`
	IsActive       bool      `json:"is_active"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// BearerClaim is the payload carried by a bearer credential.
// Identity is never empty on a claim returned by TokenCodec.Decode.
type BearerClaim struct {
	Identity  string
	ExpiresAt time.Time
}

// TokenType distinguishes the out-of-band flows a security token can gate.
type TokenType string

const (
	// TokenTypeEmailConfirm gates confirmation of a newly registered address.
	TokenTypeEmailConfirm TokenType = "EMAIL_CONFIRM"

	// TokenTypePasswordReset gates setting a new password without the old one.
	TokenTypePasswordReset TokenType = "PASSWORD_RESET"
)

// IsValid reports whether t is a known token type.
func (t TokenType) IsValid() bool {
	return t == TokenTypeEmailConfirm || t == TokenTypePasswordReset
}

// SecurityToken is a single-use, time-bounded opaque value mailed to a user.
//
// Value is only populated on tokens returned by the manager at creation and
// by value lookup. The store keeps a SHA-256 hash, never the raw value.
type SecurityToken struct {
	ID        string    `json:"id"`
	Type      TokenType `json:"token_type"`
	Value     string    `json:"-"` // never serialised
	OwnerID   string    `json:"owner_id"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
	Used      bool      `json:"used"`
}

// Expired reports whether the token is past its expiry at now.
// A token is still usable at exactly its expiry instant.
func (t *SecurityToken) Expired(now time.Time) bool {
	return now.After(t.ExpiresAt)
}

// Bearer credential errors. Callers treat any of these as unauthenticated.
var (
	ErrWeakKey          = errors.New("signing key too short")
	ErrMalformedToken   = errors.New("malformed token")
	ErrSignatureInvalid = errors.New("token signature invalid")
)

// Sentinel errors shared by bearer credentials and security tokens.
var (
	ErrTokenExpired = errors.New("token has expired")
)

// Security token lifecycle errors.
var (
	ErrTokenAlreadyUsed  = errors.New("token has already been used")
	ErrTokenNotFound     = errors.New("token not found")
	ErrTokenTypeMismatch = errors.New("token type mismatch")
)

// Account errors.
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserNotFound       = errors.New("user not found")
	ErrUserInactive       = errors.New("user account is inactive")
	ErrEmailExists        = errors.New("email already registered")
	ErrEmailUnconfirmed   = errors.New("email address not confirmed")
)
