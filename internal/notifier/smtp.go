package notifier

import (
	"context"
	"fmt"
	"log/slog"
	"net/smtp"
	"strings"

	"github.com/agrc/honeycomb/internal/errs"
)

// SMTPConfig configures the email notification channel.
type SMTPConfig struct {
	Server      string
	Port        string
	From        string
	To          []string
	SendEmails  bool
}

// SMTPNotifier sends milestone notifications over SMTP, matching the
// original messaging module: missing server/port config or a disabled
// sendEmails flag is a logged no-op, never an error.
type SMTPNotifier struct {
	cfg    SMTPConfig
	logger *slog.Logger
}

// NewSMTPNotifier returns a Notifier backed by cfg.
func NewSMTPNotifier(cfg SMTPConfig, logger *slog.Logger) *SMTPNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &SMTPNotifier{cfg: cfg, logger: logger}
}

func (n *SMTPNotifier) Notify(ctx context.Context, subject, body string) error {
	if n.cfg.Server == "" || n.cfg.Port == "" {
		n.logger.Warn("required environment variables for sending emails do not exist, no email sent")
		return nil
	}

	if !n.cfg.SendEmails {
		n.logger.Info("sendEmails is false, no email sent", "subject", subject)
		return nil
	}

	addr := fmt.Sprintf("%s:%s", n.cfg.Server, n.cfg.Port)
	msg := fmt.Sprintf("Subject: %s\r\nFrom: %s\r\nTo: %s\r\n\r\n%s\r\n",
		subject, n.cfg.From, strings.Join(n.cfg.To, ","), body)

	if err := smtp.SendMail(addr, nil, n.cfg.From, n.cfg.To, []byte(msg)); err != nil {
		wrapped := &errs.NotificationError{Cause: err}
		n.logger.Warn("failed to send notification email", "error", wrapped)
		return wrapped
	}

	return nil
}
