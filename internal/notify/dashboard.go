package notify

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/pulsehq/insight-engine/internal/database/models"
	"github.com/pulsehq/insight-engine/internal/websocket"
)

// DashboardChannel pushes notifications to connected dashboard clients
// over the WebSocket hub. Delivery is fire-and-forget: a dashboard with
// no connected clients is not an error.
type DashboardChannel struct {
	hub    *websocket.Hub
	logger *logrus.Logger
}

// NewDashboardChannel creates a dashboard channel backed by the hub.
func NewDashboardChannel(hub *websocket.Hub, logger *logrus.Logger) *DashboardChannel {
	return &DashboardChannel{hub: hub, logger: logger}
}

func (c *DashboardChannel) Type() models.ChannelType {
	return models.ChannelDashboard
}

// Send broadcasts the notification to subscribed clients. The target
// selects the topic; empty target reaches every client.
func (c *DashboardChannel) Send(ctx context.Context, target, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c.hub.Broadcast(websocket.Message{
		Type:  "notification",
		Topic: target,
		Data: map[string]interface{}{
			"subject": subject,
			"body":    body,
		},
	})
	return nil
}
