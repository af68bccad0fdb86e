package mail

import (
	"context"

	"github.com/nerrad567/communities-core/internal/infrastructure/logging"
)

// LogSender stands in for SMTP when mail is disabled. It records that a
// message would have been sent, without the token.
type LogSender struct {
	logger *logging.Logger
}

// NewLogSender creates a sender that only logs.
func NewLogSender(logger *logging.Logger) *LogSender {
	return &LogSender{logger: logger}
}

// SendEmailConfirmation logs the skipped confirmation email.
func (s *LogSender) SendEmailConfirmation(_ context.Context, to, _ string) error {
	s.logger.Info("mail disabled, confirmation email not sent", "to", to)
	return nil
}

// SendPasswordReset logs the skipped reset email.
func (s *LogSender) SendPasswordReset(_ context.Context, to, _ string) error {
	s.logger.Info("mail disabled, password reset email not sent", "to", to)
	return nil
}
