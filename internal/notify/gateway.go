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

// GatewayChannel delivers SMS and push notifications through an external
// HTTP gateway. Both channel types speak the same wire format, so one
// implementation serves both with a different type tag and endpoint.
type GatewayChannel struct {
	channelType models.ChannelType
	cfg         config.GatewayConfig
	client      *http.Client
	logger      *logrus.Logger
}

// NewSMSChannel creates a gateway channel for SMS delivery.
func NewSMSChannel(cfg config.GatewayConfig, logger *logrus.Logger) *GatewayChannel {
	return newGatewayChannel(models.ChannelSMS, cfg, logger)
}

// NewPushChannel creates a gateway channel for push delivery.
func NewPushChannel(cfg config.GatewayConfig, logger *logrus.Logger) *GatewayChannel {
	return newGatewayChannel(models.ChannelPush, cfg, logger)
}

func newGatewayChannel(channelType models.ChannelType, cfg config.GatewayConfig, logger *logrus.Logger) *GatewayChannel {
	return &GatewayChannel{
		channelType: channelType,
		cfg:         cfg,
		client:      &http.Client{Timeout: 10 * time.Second},
		logger:      logger,
	}
}

func (c *GatewayChannel) Type() models.ChannelType {
	return c.channelType
}

type gatewayPayload struct {
	To      string `json:"to"`
	Title   string `json:"title,omitempty"`
	Message string `json:"message"`
}

// Send POSTs the notification to the configured gateway endpoint.
func (c *GatewayChannel) Send(ctx context.Context, target, subject, body string) error {
	if c.cfg.URL == "" {
		return fmt.Errorf("%s channel not configured", c.channelType)
	}

	payload := gatewayPayload{To: target, Title: subject, Message: body}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal %s payload: %w", c.channelType, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.URL, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to create %s request: %w", c.channelType, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to post %s notification: %w", c.channelType, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s gateway returned status %d: %s", c.channelType, resp.StatusCode, string(snippet))
	}

	c.logger.WithFields(logrus.Fields{
		"channel": string(c.channelType),
		"target":  target,
	}).Debug("Gateway notification delivered")
	return nil
}
