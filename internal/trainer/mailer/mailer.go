// Package mailer delivers simulation emails over SMTP and watches the
// sender mailbox for delivery failures.
package mailer

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/smtp"
	"strings"
	"time"

	"github.com/emersion/go-message/mail"
	"github.com/rs/zerolog"

	"securityvibe.com/trainer/internal/trainer/generator"
)

// Sender delivers a simulation email. The caller only needs the outcome to
// decide whether a training record gets appended.
type Sender interface {
	Send(ctx context.Context, to, subject, htmlBody, trackingLink string) error
}

// Config holds SMTP settings.
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Host: "localhost",
		Port: 587,
	}
}

// SMTPSender sends email via SMTP with PLAIN auth.
type SMTPSender struct {
	cfg    Config
	logger zerolog.Logger
}

// NewSMTPSender creates a new SMTP sender.
func NewSMTPSender(cfg Config, logger zerolog.Logger) *SMTPSender {
	return &SMTPSender{
		cfg:    cfg,
		logger: logger.With().Str("component", "mailer").Logger(),
	}
}

// Send substitutes the tracking link into the body, wraps it in a MIME
// message, and delivers it.
func (s *SMTPSender) Send(ctx context.Context, to, subject, htmlBody, trackingLink string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	from := s.cfg.From
	if from == "" {
		from = s.cfg.Username
	}

	body := InjectTrackingLink(htmlBody, trackingLink)

	msg, err := BuildMessage(from, to, subject, body)
	if err != nil {
		return fmt.Errorf("failed to build message: %w", err)
	}

	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)

	var auth smtp.Auth
	if s.cfg.Username != "" && s.cfg.Password != "" {
		auth = smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
	}

	if err := smtp.SendMail(addr, auth, from, []string{to}, msg); err != nil {
		return fmt.Errorf("SMTP send failed: %w", err)
	}

	s.logger.Info().Str("recipient", to).Str("subject", subject).Msg("Simulation email sent")
	return nil
}

// InjectTrackingLink replaces the tracking-link placeholder in the body.
// When the generated body carries no placeholder, a call-to-action footer
// with the link is appended instead, so every email tracks.
func InjectTrackingLink(htmlBody, trackingLink string) string {
	if strings.Contains(htmlBody, generator.TrackingLinkPlaceholder) {
		return strings.ReplaceAll(htmlBody, generator.TrackingLinkPlaceholder, trackingLink)
	}

	return htmlBody + fmt.Sprintf(`
<br><br>
<hr>
<p>To verify your account or take action, please click the link below:</p>
<a href="%s">Secure Action Link</a>`, trackingLink)
}

// BuildMessage assembles an RFC 5322 message with a single HTML part.
func BuildMessage(from, to, subject, htmlBody string) ([]byte, error) {
	var buf bytes.Buffer

	var h mail.Header
	h.SetDate(time.Now())
	h.SetAddressList("From", []*mail.Address{{Address: from}})
	h.SetAddressList("To", []*mail.Address{{Address: to}})
	h.SetSubject(subject)
	h.SetContentType("text/html", map[string]string{"charset": "utf-8"})

	w, err := mail.CreateSingleInlineWriter(&buf, h)
	if err != nil {
		return nil, fmt.Errorf("failed to create mail writer: %w", err)
	}

	if _, err := io.WriteString(w, htmlBody); err != nil {
		w.Close()
		return nil, fmt.Errorf("failed to write body: %w", err)
	}

	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize message: %w", err)
	}

	return buf.Bytes(), nil
}
