package email

import (
	"context"
	"fmt"

	"skillswap/internal/config"
	"skillswap/internal/middleware"

	"github.com/wneessen/go-mail"
)

// Message is a rendered email ready to send.
type Message struct {
	To      string
	Subject string
	HTML    string
	Text    string
}

// Sender delivers rendered messages.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// NewSender returns an SMTP sender when credentials are configured and a
// logging sender otherwise.
func NewSender(cfg *config.Config) (Sender, error) {
	if !cfg.SMTPConfigured() {
		middleware.Logger.Warn("email not configured, set SMTP_USER and SMTP_PASS to send mail")
		return LogSender{}, nil
	}
	return NewSMTPSender(cfg)
}

// SMTPSender sends through an authenticated SMTP relay.
type SMTPSender struct {
	client *mail.Client
	from   string
}

// NewSMTPSender builds the go-mail client from config.
func NewSMTPSender(cfg *config.Config) (*SMTPSender, error) {
	client, err := mail.NewClient(cfg.SMTPHost,
		mail.WithPort(cfg.SMTPPort),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(cfg.SMTPUser),
		mail.WithPassword(cfg.SMTPPass),
		mail.WithTLSPolicy(mail.TLSOpportunistic),
	)
	if err != nil {
		return nil, fmt.Errorf("create smtp client: %w", err)
	}
	return &SMTPSender{client: client, from: cfg.SMTPFrom}, nil
}

// Send implements Sender.
func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	m := mail.NewMsg()
	if err := m.FromFormat("SkillSwap Platform", s.from); err != nil {
		return fmt.Errorf("invalid from address: %w", err)
	}
	if err := m.To(msg.To); err != nil {
		return fmt.Errorf("invalid recipient %q: %w", msg.To, err)
	}
	m.Subject(msg.Subject)
	m.SetBodyString(mail.TypeTextHTML, msg.HTML)
	text := msg.Text
	if text == "" {
		text = PlainText(msg.HTML)
	}
	m.AddAlternativeString(mail.TypeTextPlain, text)

	if err := s.client.DialAndSendWithContext(ctx, m); err != nil {
		return fmt.Errorf("send mail: %w", err)
	}
	return nil
}

// Verify dials the relay and authenticates without sending.
func (s *SMTPSender) Verify(ctx context.Context) error {
	if err := s.client.DialWithContext(ctx); err != nil {
		return fmt.Errorf("dial smtp: %w", err)
	}
	return s.client.Close()
}

// LogSender records what would have been sent.
type LogSender struct{}

// Send implements Sender.
func (LogSender) Send(ctx context.Context, msg Message) error {
	middleware.Logger.InfoContext(ctx, "email would be sent", "to", msg.To, "subject", msg.Subject)
	return nil
}
