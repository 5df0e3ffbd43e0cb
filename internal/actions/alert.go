package actions

import (
	"context"
	"fmt"

	"selestial_backend/platform/config"
	"selestial_backend/platform/logger"

	gomail "github.com/wneessen/go-mail"
)

// Mailer delivers internal alert emails over SMTP.
type Mailer struct {
	client    *gomail.Client
	fromEmail string
	fromName  string
	log       *logger.Logger
}

// NewMailer builds an SMTP mailer from config. Returns nil when SMTP is not
// configured; callers treat a nil mailer as "alerts go to the timeline only".
func NewMailer(cfg config.AlertEmailConfig, log *logger.Logger) (*Mailer, error) {
	if !cfg.GetEmailEnabled() {
		return nil, nil
	}

	client, err := gomail.NewClient(cfg.GetSMTPHost(),
		gomail.WithPort(cfg.GetSMTPPort()),
		gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
		gomail.WithUsername(cfg.GetSMTPUsername()),
		gomail.WithPassword(cfg.GetSMTPPassword()),
		gomail.WithTLSPortPolicy(gomail.TLSOpportunistic),
	)
	if err != nil {
		return nil, fmt.Errorf("create smtp client: %w", err)
	}

	return &Mailer{
		client:    client,
		fromEmail: cfg.GetEmailFromAddress(),
		fromName:  cfg.GetEmailFromName(),
		log:       log,
	}, nil
}

// SendAlert emails a plain-text alert to the organization's alert address.
func (m *Mailer) SendAlert(ctx context.Context, toEmail, subject, body string) error {
	msg := gomail.NewMsg()
	if err := msg.FromFormat(m.fromName, m.fromEmail); err != nil {
		return fmt.Errorf("set from address: %w", err)
	}
	if err := msg.To(toEmail); err != nil {
		return fmt.Errorf("set to address: %w", err)
	}
	msg.Subject(subject)
	msg.SetBodyString(gomail.TypeTextPlain, body)

	if err := m.client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("send alert email: %w", err)
	}
	return nil
}
