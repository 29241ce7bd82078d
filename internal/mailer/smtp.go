// Package mailer sends email-channel notifications through the configured
// SMTP provider.
package mailer

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/wneessen/go-mail"

	"github.com/careerlink/notifications/internal/config"
	"github.com/careerlink/notifications/internal/model"
)

type SMTPMailer struct {
	client *mail.Client
	from   string
	log    *slog.Logger
}

func NewSMTPMailer(cfg config.SMTPConfig, log *slog.Logger) (*SMTPMailer, error) {
	opts := []mail.Option{
		mail.WithPort(cfg.Port),
		mail.WithTLSPolicy(mail.TLSOpportunistic),
	}
	if cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.Username),
			mail.WithPassword(cfg.Password),
		)
	}

	client, err := mail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create smtp client: %w", err)
	}
	return &SMTPMailer{client: client, from: cfg.From, log: log}, nil
}

// Send delivers one notification as a plain-text mail. The returned error is
// the provider's, unwrapped, so dispatch can record it verbatim.
func (m *SMTPMailer) Send(ctx context.Context, to string, n *model.Notification) error {
	msg := mail.NewMsg()
	if err := msg.From(m.from); err != nil {
		return err
	}
	if err := msg.To(to); err != nil {
		return err
	}
	msg.Subject(n.Title)
	body := n.Message
	if n.URL != "" {
		body += "\n\n" + n.URL
	}
	msg.SetBodyString(mail.TypeTextPlain, body)

	m.log.Debug("sending mail", slog.String("notification_id", n.ID))
	return m.client.DialAndSendWithContext(ctx, msg)
}
