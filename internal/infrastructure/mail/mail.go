package mail

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"gopkg.in/gomail.v2"

	"github.com/nerrad567/communities-core/internal/infrastructure/config"
)

// ErrNoRecipient is returned when a message has no recipient address.
var ErrNoRecipient = errors.New("mail: no recipient specified")

// Email is an outbound message before MIME encoding.
type Email struct {
	To       string
	Subject  string
	Body     string
	HTMLBody string
}

// dialer is the part of gomail.Dialer used to deliver messages.
type dialer interface {
	DialAndSend(m ...*gomail.Message) error
}

// SMTPSender delivers account emails over SMTP.
type SMTPSender struct {
	dialer     dialer
	from       string
	confirmURL string
	resetURL   string
}

// NewSMTPSender creates a sender from the mail config section.
func NewSMTPSender(cfg config.MailConfig) *SMTPSender {
	return &SMTPSender{
		dialer:     gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		from:       cfg.From,
		confirmURL: cfg.ConfirmURL,
		resetURL:   cfg.ResetURL,
	}
}

// SendEmailConfirmation mails the confirmation link for a new account.
func (s *SMTPSender) SendEmailConfirmation(ctx context.Context, to, token string) error {
	link, err := tokenLink(s.confirmURL, token)
	if err != nil {
		return err
	}
	return s.Send(ctx, confirmationEmail(to, link))
}

// SendPasswordReset mails the password reset link.
func (s *SMTPSender) SendPasswordReset(ctx context.Context, to, token string) error {
	link, err := tokenLink(s.resetURL, token)
	if err != nil {
		return err
	}
	return s.Send(ctx, passwordResetEmail(to, link))
}

// Send delivers a single email. gomail has no cancellation, so ctx is only
// checked before dialling.
func (s *SMTPSender) Send(ctx context.Context, email Email) error {
	if email.To == "" {
		return ErrNoRecipient
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("mail: %w", err)
	}

	if err := s.dialer.DialAndSend(s.message(email)); err != nil {
		return fmt.Errorf("mail: sending to %s: %w", email.To, err)
	}
	return nil
}

func (s *SMTPSender) message(email Email) *gomail.Message {
	msg := gomail.NewMessage()
	msg.SetHeader("From", s.from)
	msg.SetHeader("To", email.To)
	msg.SetHeader("Subject", email.Subject)

	if email.HTMLBody != "" {
		msg.SetBody("text/html", email.HTMLBody)
		if email.Body != "" {
			msg.AddAlternative("text/plain", email.Body)
		}
	} else {
		msg.SetBody("text/plain", email.Body)
	}
	return msg
}

// tokenLink appends token as the "token" query parameter of base.
func tokenLink(base, token string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("mail: parsing link base %q: %w", base, err)
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
