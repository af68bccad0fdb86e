package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// tokenValueBytes is the entropy of a security token value (256 bits).
const tokenValueBytes = 32

// SecurityTokenStore persists security tokens.
type SecurityTokenStore interface {
	// Save inserts the token, or updates its used flag and expiry if a
	// token with the same ID already exists.
	Save(ctx context.Context, token *SecurityToken) error

	// FindByValue resolves a presented value. Returns ErrTokenNotFound
	// when no stored token matches.
	FindByValue(ctx context.Context, value string) (*SecurityToken, error)

	// MarkUsed flips the used flag from false to true in a single
	// conditional update. Returns ErrTokenAlreadyUsed if the flag was
	// already set and ErrTokenNotFound if the ID is unknown.
	MarkUsed(ctx context.Context, id string) error
}

// TokenLifetimes holds the TTL applied to each token type at creation.
type TokenLifetimes struct {
	EmailConfirm  time.Duration
	PasswordReset time.Duration
}

// SecurityTokenManager issues and consumes single-use security tokens.
type SecurityTokenManager struct {
	store     SecurityTokenStore
	lifetimes TokenLifetimes
	now       func() time.Time
}

// NewSecurityTokenManager creates a manager backed by store.
func NewSecurityTokenManager(store SecurityTokenStore, lifetimes TokenLifetimes) *SecurityTokenManager {
	return &SecurityTokenManager{
		store:     store,
		lifetimes: lifetimes,
		now:       time.Now,
	}
}

// CreateEmailConfirmToken issues a token confirming ownerID's email address.
func (m *SecurityTokenManager) CreateEmailConfirmToken(ctx context.Context, ownerID string) (*SecurityToken, error) {
	return m.create(ctx, ownerID, TokenTypeEmailConfirm, m.lifetimes.EmailConfirm)
}

// CreatePasswordResetToken issues a token allowing ownerID to set a new password.
func (m *SecurityTokenManager) CreatePasswordResetToken(ctx context.Context, ownerID string) (*SecurityToken, error) {
	return m.create(ctx, ownerID, TokenTypePasswordReset, m.lifetimes.PasswordReset)
}

func (m *SecurityTokenManager) create(ctx context.Context, ownerID string, typ TokenType, ttl time.Duration) (*SecurityToken, error) {
	if ttl <= 0 {
		return nil, fmt.Errorf("%s token lifetime must be positive", typ)
	}

	value, err := generateTokenValue()
	if err != nil {
		return nil, err
	}

	// Stored timestamps have second precision.
	now := m.now().UTC().Truncate(time.Second)
	token := &SecurityToken{
		ID:        "st-" + uuid.NewString(),
		Type:      typ,
		Value:     value,
		OwnerID:   ownerID,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}

	if err := m.store.Save(ctx, token); err != nil {
		return nil, fmt.Errorf("saving %s token: %w", typ, err)
	}
	return token, nil
}

// UseToken consumes token. Expiry is checked before the used flag, so an
// expired token reports ErrTokenExpired whether or not it was used. On
// success token.Used is true. On failure token is left unmodified.
func (m *SecurityTokenManager) UseToken(ctx context.Context, token *SecurityToken) (*SecurityToken, error) {
	if token.Expired(m.now()) {
		return nil, ErrTokenExpired
	}
	if token.Used {
		return nil, ErrTokenAlreadyUsed
	}

	if err := m.store.MarkUsed(ctx, token.ID); err != nil {
		return nil, err
	}

	token.Used = true
	return token, nil
}

// generateTokenValue returns a hex-encoded random value from crypto/rand.
func generateTokenValue() (string, error) {
	b := make([]byte, tokenValueBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generating token value: %w", err)
	}
	return hex.EncodeToString(b), nil
}
