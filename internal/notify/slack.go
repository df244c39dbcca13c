package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/pulsehq/insight-engine/internal/config"
	"github.com/pulsehq/insight-engine/internal/database/models"
)

// ChatChannel posts notifications to a Slack-compatible incoming webhook.
type ChatChannel struct {
	cfg    config.SlackConfig
	client *http.Client
	logger *logrus.Logger
}

// NewChatChannel creates a chat channel from configuration.
func NewChatChannel(cfg config.SlackConfig, logger *logrus.Logger) *ChatChannel {
	return &ChatChannel{
		cfg:    cfg,
		client: &http.Client{Timeout: 10 * time.Second},
		logger: logger,
	}
}

func (c *ChatChannel) Type() models.ChannelType {
	return models.ChannelChat
}

type slackAttachment struct {
	Title  string `json:"title"`
	Text   string `json:"text"`
	Footer string `json:"footer,omitempty"`
	Ts     int64  `json:"ts"`
}

type slackPayload struct {
	Channel     string            `json:"channel,omitempty"`
	Attachments []slackAttachment `json:"attachments"`
}

// Send posts the rendered message to the webhook. A non-empty target
// overrides the configured default channel.
func (c *ChatChannel) Send(ctx context.Context, target, subject, body string) error {
	if c.cfg.WebhookURL == "" {
		return fmt.Errorf("chat channel not configured")
	}

	channel := target
	if channel == "" {
		channel = c.cfg.Channel
	}
	payload := slackPayload{
		Channel: channel,
		Attachments: []slackAttachment{{
			Title:  subject,
			Text:   body,
			Footer: "insight-engine",
			Ts:     time.Now().Unix(),
		}},
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal chat payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.WebhookURL, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to create chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to post chat notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("chat webhook returned status %d: %s", resp.StatusCode, string(snippet))
	}

	c.logger.WithFields(logrus.Fields{
		"channel": "chat",
		"target":  channel,
	}).Debug("Chat notification delivered")
	return nil
}
