package account

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nerrad567/communities-core/internal/audit"
	"github.com/nerrad567/communities-core/internal/auth"
	"github.com/nerrad567/communities-core/internal/infrastructure/logging"
)

// ErrInvalidEmail is returned when a registration address does not parse.
var ErrInvalidEmail = errors.New("invalid email address")

// Token lifecycle event names.
const (
	EventIssued   = "issued"
	EventConsumed = "consumed"
	EventRejected = "rejected"
)

// TokenIssuer is the part of auth.SecurityTokenManager the workflows use.
type TokenIssuer interface {
	CreateEmailConfirmToken(ctx context.Context, ownerID string) (*auth.SecurityToken, error)
	CreatePasswordResetToken(ctx context.Context, ownerID string) (*auth.SecurityToken, error)
	UseToken(ctx context.Context, token *auth.SecurityToken) (*auth.SecurityToken, error)
}

// TokenLookup resolves presented token values and clears stale tokens.
type TokenLookup interface {
	FindByValue(ctx context.Context, value string) (*auth.SecurityToken, error)
	DeleteForOwner(ctx context.Context, ownerID string, typ auth.TokenType) (int64, error)
}

// Mailer delivers token links to account owners.
type Mailer interface {
	SendEmailConfirmation(ctx context.Context, to, token string) error
	SendPasswordReset(ctx context.Context, to, token string) error
}

// EventPublisher announces token lifecycle events. Payloads never include
// the token value.
type EventPublisher interface {
	PublishTokenEvent(tokenType, event, tokenID, ownerID string) error
}

// TokenMetrics counts token lifecycle events.
type TokenMetrics interface {
	RecordTokenEvent(tokenType, event string)
}

// AuditRecorder records account actions. audit.Writer implements it.
type AuditRecorder interface {
	Record(action, entityType, entityID, userID string, details map[string]any)
}

// BearerSettings configures access tokens issued at login.
type BearerSettings struct {
	Codec  *auth.TokenCodec
	Secret []byte
	TTL    time.Duration
}

// Deps holds the collaborators of a Service. Events, Metrics and Audit may be nil.
type Deps struct {
	Users   auth.UserRepository
	Tokens  TokenIssuer
	Lookup  TokenLookup
	Mailer  Mailer
	Events  EventPublisher
	Metrics TokenMetrics
	Audit   AuditRecorder
	Bearer  BearerSettings
	Logger  *logging.Logger
}

// Service runs the account workflows.
type Service struct {
	users   auth.UserRepository
	tokens  TokenIssuer
	lookup  TokenLookup
	mailer  Mailer
	events  EventPublisher
	metrics TokenMetrics
	audit   AuditRecorder
	bearer  BearerSettings
	logger  *logging.Logger
	now     func() time.Time
}

// NewService creates an account service.
func NewService(deps Deps) *Service {
	return &Service{
		users:   deps.Users,
		tokens:  deps.Tokens,
		lookup:  deps.Lookup,
		mailer:  deps.Mailer,
		events:  deps.Events,
		metrics: deps.Metrics,
		audit:   deps.Audit,
		bearer:  deps.Bearer,
		logger:  deps.Logger,
		now:     time.Now,
	}
}

// AccessToken is a bearer credential issued at login.
type AccessToken struct {
	Token     string    `json:"access_token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Register creates an unconfirmed account and mails a confirmation link.
// A mail failure is logged and does not undo the registration; the owner
// can ask for the link again with ResendConfirmation.
func (s *Service) Register(ctx context.Context, email, displayName, password string) (*auth.User, error) {
	email = auth.NormaliseEmail(email)
	if !auth.IsValidEmail(email) {
		return nil, ErrInvalidEmail
	}
	if err := auth.ValidatePassword(password); err != nil {
		return nil, err
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	user := &auth.User{
		Email:        email,
		DisplayName:  strings.TrimSpace(displayName),
		PasswordHash: hash,
		IsActive:     true,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}

	s.record(audit.ActionRegister, user.ID)
	s.sendConfirmation(ctx, user)
	return user, nil
}

// ResendConfirmation mails a fresh confirmation link. Unknown and already
// confirmed addresses succeed silently so callers cannot probe accounts.
func (s *Service) ResendConfirmation(ctx context.Context, email string) error {
	user, err := s.users.GetByEmail(ctx, email)
	if errors.Is(err, auth.ErrUserNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if user.EmailConfirmed || !user.IsActive {
		return nil
	}

	if _, err := s.lookup.DeleteForOwner(ctx, user.ID, auth.TokenTypeEmailConfirm); err != nil {
		return err
	}
	s.sendConfirmation(ctx, user)
	return nil
}

func (s *Service) sendConfirmation(ctx context.Context, user *auth.User) {
	tok, err := s.tokens.CreateEmailConfirmToken(ctx, user.ID)
	if err != nil {
		s.logger.Error("issuing email confirmation token", "user_id", user.ID, "error", err)
		return
	}
	s.announce(tok, EventIssued)

	if err := s.mailer.SendEmailConfirmation(ctx, user.Email, tok.Value); err != nil {
		s.logger.Warn("sending confirmation email", "user_id", user.ID, "error", err)
	}
}

// ConfirmEmail redeems an email confirmation token and marks its owner's
// address confirmed.
func (s *Service) ConfirmEmail(ctx context.Context, value string) error {
	tok, err := s.redeem(ctx, value, auth.TokenTypeEmailConfirm)
	if err != nil {
		return err
	}
	if err := s.users.ConfirmEmail(ctx, tok.OwnerID); err != nil {
		return err
	}
	s.record(audit.ActionConfirmEmail, tok.OwnerID)
	return nil
}

// Login checks credentials and issues a bearer credential. Unknown email
// and wrong password both report ErrInvalidCredentials.
func (s *Service) Login(ctx context.Context, email, password string) (*AccessToken, *auth.User, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if errors.Is(err, auth.ErrUserNotFound) {
		return nil, nil, auth.ErrInvalidCredentials
	}
	if err != nil {
		return nil, nil, err
	}

	ok, err := auth.VerifyPassword(password, user.PasswordHash)
	if err != nil {
		return nil, nil, fmt.Errorf("verifying password: %w", err)
	}
	if !ok {
		return nil, nil, auth.ErrInvalidCredentials
	}
	if !user.IsActive {
		return nil, nil, auth.ErrUserInactive
	}
	if !user.EmailConfirmed {
		return nil, nil, auth.ErrEmailUnconfirmed
	}

	// Whole seconds, so the reported expiry matches the encoded exp.
	expiresAt := s.now().UTC().Truncate(time.Second).Add(s.bearer.TTL)
	token, err := s.bearer.Codec.Encode(auth.BearerClaim{Identity: user.ID, ExpiresAt: expiresAt}, s.bearer.Secret)
	if err != nil {
		return nil, nil, fmt.Errorf("issuing access token: %w", err)
	}

	s.record(audit.ActionLogin, user.ID)
	return &AccessToken{Token: token, ExpiresAt: expiresAt}, user, nil
}

// RequestPasswordReset mails a reset link, replacing any outstanding one.
// Unknown and inactive addresses succeed silently.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) error {
	user, err := s.users.GetByEmail(ctx, email)
	if errors.Is(err, auth.ErrUserNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if !user.IsActive {
		return nil
	}

	if _, err := s.lookup.DeleteForOwner(ctx, user.ID, auth.TokenTypePasswordReset); err != nil {
		return err
	}

	tok, err := s.tokens.CreatePasswordResetToken(ctx, user.ID)
	if err != nil {
		return err
	}
	s.announce(tok, EventIssued)

	if err := s.mailer.SendPasswordReset(ctx, user.Email, tok.Value); err != nil {
		return fmt.Errorf("sending password reset email: %w", err)
	}
	return nil
}

// ResetPassword redeems a password reset token and sets the new password.
// The password is checked first so a weak choice does not burn the token.
func (s *Service) ResetPassword(ctx context.Context, value, newPassword string) error {
	if err := auth.ValidatePassword(newPassword); err != nil {
		return err
	}

	hash, err := auth.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("hashing password: %w", err)
	}

	tok, err := s.redeem(ctx, value, auth.TokenTypePasswordReset)
	if err != nil {
		return err
	}
	if err := s.users.UpdatePassword(ctx, tok.OwnerID, hash); err != nil {
		return err
	}
	s.record(audit.ActionPasswordReset, tok.OwnerID)
	return nil
}

// Profile returns the account for an authenticated identity.
func (s *Service) Profile(ctx context.Context, identity string) (*auth.User, error) {
	return s.users.GetByID(ctx, identity)
}

// redeem resolves value, checks its type, and consumes it.
func (s *Service) redeem(ctx context.Context, value string, typ auth.TokenType) (*auth.SecurityToken, error) {
	if value == "" {
		return nil, auth.ErrTokenNotFound
	}

	tok, err := s.lookup.FindByValue(ctx, value)
	if err != nil {
		return nil, err
	}
	if tok.Type != typ {
		s.reject(tok, auth.ErrTokenTypeMismatch)
		return nil, auth.ErrTokenTypeMismatch
	}

	used, err := s.tokens.UseToken(ctx, tok)
	if err != nil {
		s.reject(tok, err)
		return nil, err
	}

	s.announce(used, EventConsumed)
	return used, nil
}

// record audits an action a user took on their own account.
func (s *Service) record(action, userID string) {
	if s.audit != nil {
		s.audit.Record(action, audit.EntityUser, userID, userID, nil)
	}
}

func (s *Service) reject(tok *auth.SecurityToken, reason error) {
	s.logger.Debug("security token rejected",
		"token_id", tok.ID, "token_type", string(tok.Type), "reason", reason)
	s.announce(tok, EventRejected)
}

// announce publishes and counts a token event. Publish failures are logged
// and never fail the workflow.
func (s *Service) announce(tok *auth.SecurityToken, event string) {
	if s.metrics != nil {
		s.metrics.RecordTokenEvent(string(tok.Type), event)
	}
	if s.events == nil {
		return
	}
	if err := s.events.PublishTokenEvent(string(tok.Type), event, tok.ID, tok.OwnerID); err != nil {
		s.logger.Warn("publishing token event", "token_id", tok.ID, "event", event, "error", err)
	}
}
