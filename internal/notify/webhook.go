package notify

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/pulsehq/insight-engine/internal/config"
	"github.com/pulsehq/insight-engine/internal/database/models"
)

// WebhookChannel POSTs notifications as JSON to an arbitrary HTTP endpoint
// given by the recipient target. When a shared secret is configured every
// request carries an HMAC-SHA256 signature of the body so receivers can
// verify origin.
type WebhookChannel struct {
	cfg    config.WebhookConfig
	client *http.Client
	logger *logrus.Logger
}

// NewWebhookChannel creates a webhook channel from configuration.
func NewWebhookChannel(cfg config.WebhookConfig, logger *logrus.Logger) *WebhookChannel {
	return &WebhookChannel{
		cfg:    cfg,
		client: &http.Client{Timeout: 10 * time.Second},
		logger: logger,
	}
}

func (c *WebhookChannel) Type() models.ChannelType {
	return models.ChannelWebhook
}

type webhookPayload struct {
	Subject   string    `json:"subject"`
	Body      string    `json:"body"`
	Timestamp time.Time `json:"timestamp"`
	Source    string    `json:"source"`
}

// Send POSTs the notification to the target URL.
func (c *WebhookChannel) Send(ctx context.Context, target, subject, body string) error {
	if target == "" {
		return fmt.Errorf("webhook target URL is empty")
	}

	payload := webhookPayload{
		Subject:   subject,
		Body:      body,
		Timestamp: time.Now().UTC(),
		Source:    "insight-engine",
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to create webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.Secret != "" {
		req.Header.Set("X-Signature-256", "sha256="+signBody(c.cfg.Secret, data))
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to post webhook to %s: %w", target, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("webhook %s returned status %d: %s", target, resp.StatusCode, string(snippet))
	}

	c.logger.WithFields(logrus.Fields{
		"channel": "webhook",
		"target":  target,
	}).Debug("Webhook notification delivered")
	return nil
}

func signBody(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
