// Package notify implements the transport channels that deliver fully
// rendered notifications. The engine hands each channel a target address
// plus rendered subject and body; channels report success or failure and
// never leak back into message construction.
package notify

import (
	"context"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/pulsehq/insight-engine/internal/database/models"
)

// Channel delivers one rendered notification to one target address.
// Implementations must be safe for concurrent use.
type Channel interface {
	Type() models.ChannelType
	Send(ctx context.Context, target, subject, body string) error
}

// Registry holds the configured channel implementations by type.
type Registry struct {
	mu       sync.RWMutex
	channels map[models.ChannelType]Channel
	logger   *logrus.Logger
}

// NewRegistry creates an empty channel registry.
func NewRegistry(logger *logrus.Logger) *Registry {
	return &Registry{
		channels: make(map[models.ChannelType]Channel),
		logger:   logger,
	}
}

// Register adds a channel, replacing any previous one of the same type.
func (r *Registry) Register(channel Channel) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.channels[channel.Type()] = channel
}

// Get returns the channel for a type.
func (r *Registry) Get(channelType models.ChannelType) (Channel, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	channel, ok := r.channels[channelType]
	if !ok {
		return nil, fmt.Errorf("no channel registered for type %q", channelType)
	}
	return channel, nil
}
