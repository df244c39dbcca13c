package notify

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/pulsehq/insight-engine/internal/config"
	"github.com/pulsehq/insight-engine/internal/database/models"
)

// MailChannel delivers notifications over SMTP.
type MailChannel struct {
	cfg    config.SMTPConfig
	logger *logrus.Logger
	send   func(addr string, auth smtp.Auth, from string, to []string, msg []byte) error
}

// NewMailChannel creates an SMTP mail channel from configuration.
func NewMailChannel(cfg config.SMTPConfig, logger *logrus.Logger) *MailChannel {
	return &MailChannel{cfg: cfg, logger: logger, send: smtp.SendMail}
}

func (c *MailChannel) Type() models.ChannelType {
	return models.ChannelMail
}

// Send delivers a single message to the target address. The subject and
// body arrive fully rendered; this channel only wraps them in MIME headers.
func (c *MailChannel) Send(ctx context.Context, target, subject, body string) error {
	if c.cfg.Host == "" {
		return fmt.Errorf("mail channel not configured")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	addr := fmt.Sprintf("%s:%d", c.cfg.Host, c.cfg.Port)
	var auth smtp.Auth
	if c.cfg.Username != "" {
		auth = smtp.PlainAuth("", c.cfg.Username, c.cfg.Password, c.cfg.Host)
	}

	var msg strings.Builder
	fmt.Fprintf(&msg, "From: %s\r\n", c.cfg.From)
	fmt.Fprintf(&msg, "To: %s\r\n", target)
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/plain; charset=\"utf-8\"\r\n")
	msg.WriteString("\r\n")
	msg.WriteString(body)

	if err := c.send(addr, auth, c.cfg.From, []string{target}, []byte(msg.String())); err != nil {
		return fmt.Errorf("failed to send mail to %s: %w", target, err)
	}

	c.logger.WithFields(logrus.Fields{
		"channel": "mail",
		"target":  target,
	}).Debug("Mail notification delivered")
	return nil
}
