// Package mailer delivers simulation emails over SMTP and watches the
// sender mailbox for delivery failures.
package mailer

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"github.com/emersion/go-message/mail"
	"github.com/rs/zerolog"

	"securityvibe.com/trainer/internal/trainer/storage"
)

// BounceConfig holds IMAP settings for the bounce monitor.
type BounceConfig struct {
	Enabled      bool
	Server       string
	Port         int
	Username     string
	Password     string
	UseTLS       bool
	Mailbox      string
	PollInterval time.Duration
}

// DefaultBounceConfig returns sensible defaults.
func DefaultBounceConfig() BounceConfig {
	return BounceConfig{
		Enabled:      false,
		UseTLS:       true,
		Mailbox:      "INBOX",
		PollInterval: 5 * time.Minute,
	}
}

// BounceMonitor periodically sweeps the sender mailbox for delivery-status
// notifications and records them as bounce events. Bounces are reporting
// data only; training records are never touched.
type BounceMonitor struct {
	cfg    BounceConfig
	db     *storage.DB
	logger zerolog.Logger
	stopCh chan struct{}
}

// NewBounceMonitor creates a new bounce monitor.
func NewBounceMonitor(cfg BounceConfig, db *storage.DB, logger zerolog.Logger) *BounceMonitor {
	if cfg.Mailbox == "" {
		cfg.Mailbox = "INBOX"
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultBounceConfig().PollInterval
	}

	return &BounceMonitor{
		cfg:    cfg,
		db:     db,
		logger: logger.With().Str("component", "bounce_monitor").Logger(),
		stopCh: make(chan struct{}),
	}
}

// Start launches the periodic sweep in the background.
func (m *BounceMonitor) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(m.cfg.PollInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-m.stopCh:
				return
			case <-ticker.C:
				count, err := m.Sweep(ctx)
				if err != nil {
					m.logger.Warn().Err(err).Msg("Bounce sweep failed")
				} else if count > 0 {
					m.logger.Info().Int("count", count).Msg("Bounce sweep complete")
				}
			}
		}
	}()

	m.logger.Info().Dur("poll_interval", m.cfg.PollInterval).Msg("Bounce monitor started")
}

// Stop terminates the background sweep.
func (m *BounceMonitor) Stop() {
	close(m.stopCh)
}

// Sweep connects to the mailbox, inspects unseen messages, and records
// every delivery-status notification found. Returns the number of bounces
// recorded.
func (m *BounceMonitor) Sweep(ctx context.Context) (int, error) {
	port := m.cfg.Port
	if port == 0 {
		if m.cfg.UseTLS {
			port = 993
		} else {
			port = 143
		}
	}

	addr := fmt.Sprintf("%s:%d", m.cfg.Server, port)

	var c *client.Client
	var err error
	if m.cfg.UseTLS {
		c, err = client.DialTLS(addr, &tls.Config{ServerName: m.cfg.Server})
	} else {
		c, err = client.Dial(addr)
	}
	if err != nil {
		return 0, fmt.Errorf("IMAP dial failed: %w", err)
	}
	defer c.Logout()

	if m.cfg.Username != "" {
		if err := c.Login(m.cfg.Username, m.cfg.Password); err != nil {
			return 0, fmt.Errorf("IMAP login failed: %w", err)
		}
	}

	mbox, err := c.Select(m.cfg.Mailbox, false)
	if err != nil {
		return 0, fmt.Errorf("select mailbox failed: %w", err)
	}
	if mbox.Messages == 0 {
		return 0, nil
	}

	criteria := imap.NewSearchCriteria()
	criteria.WithoutFlags = []string{imap.SeenFlag}

	seqNums, err := c.Search(criteria)
	if err != nil {
		return 0, fmt.Errorf("search failed: %w", err)
	}
	if len(seqNums) == 0 {
		return 0, nil
	}

	seqset := new(imap.SeqSet)
	seqset.AddNum(seqNums...)

	section := &imap.BodySectionName{}
	messages := make(chan *imap.Message, len(seqNums))
	done := make(chan error, 1)

	go func() {
		done <- c.Fetch(seqset, []imap.FetchItem{
			imap.FetchEnvelope,
			section.FetchItem(),
		}, messages)
	}()

	recorded := 0
	for msg := range messages {
		if msg.Envelope == nil {
			continue
		}

		var from string
		if len(msg.Envelope.From) > 0 {
			from = msg.Envelope.From[0].Address()
		}

		if !IsBounceNotification(from, msg.Envelope.Subject) {
			continue
		}

		bodyText := readMessageText(msg.GetBody(section), m.logger)
		recipient := ExtractFailedRecipient(bodyText, m.cfg.Username)
		if recipient == "" {
			recipient = "unknown"
		}

		event := &storage.BounceEvent{
			Recipient: recipient,
			Subject:   msg.Envelope.Subject,
			Reason:    firstLine(bodyText),
		}
		if err := m.db.RecordBounce(ctx, event); err != nil {
			m.logger.Warn().Err(err).Str("recipient", recipient).Msg("Failed to record bounce")
			continue
		}
		recorded++
	}

	if err := <-done; err != nil {
		return recorded, fmt.Errorf("fetch failed: %w", err)
	}

	return recorded, nil
}

// bounceSenders and bounceSubjects classify delivery-status notifications.
var (
	bounceSenders  = []string{"mailer-daemon", "postmaster"}
	bounceSubjects = []string{"undeliver", "delivery status", "returned to sender", "delivery failure", "failure notice"}
)

// IsBounceNotification reports whether a message looks like a delivery
// failure notification.
func IsBounceNotification(from, subject string) bool {
	from = strings.ToLower(from)
	for _, s := range bounceSenders {
		if strings.Contains(from, s) {
			return true
		}
	}

	subject = strings.ToLower(subject)
	for _, s := range bounceSubjects {
		if strings.Contains(subject, s) {
			return true
		}
	}

	return false
}

var emailPattern = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)

// ExtractFailedRecipient finds the failed recipient address in a bounce
// body, skipping the sender's own address.
func ExtractFailedRecipient(bodyText, self string) string {
	for _, match := range emailPattern.FindAllString(bodyText, -1) {
		if !strings.EqualFold(match, self) {
			return match
		}
	}
	return ""
}

// readMessageText extracts the plain-text parts of a message body.
func readMessageText(r io.Reader, logger zerolog.Logger) string {
	if r == nil {
		return ""
	}

	mr, err := mail.CreateReader(r)
	if err != nil {
		logger.Debug().Err(err).Msg("Failed to parse bounce message")
		return ""
	}

	var text strings.Builder
	for {
		p, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			break
		}

		if h, ok := p.Header.(*mail.InlineHeader); ok {
			contentType, _, _ := h.ContentType()
			if strings.HasPrefix(contentType, "text/") {
				body, _ := io.ReadAll(p.Body)
				text.Write(body)
				text.WriteString("\n")
			}
		}
	}

	return text.String()
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	if len(s) > 200 {
		s = s[:200]
	}
	return strings.TrimSpace(s)
}
