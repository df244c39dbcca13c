package handlers

import (
	"github.com/sirupsen/logrus"

	"github.com/pulsehq/insight-engine/internal/config"
	"github.com/pulsehq/insight-engine/internal/core/scheduler"
	"github.com/pulsehq/insight-engine/internal/database"
	"github.com/pulsehq/insight-engine/internal/websocket"
)

// Handlers holds all HTTP handlers and their dependencies
type Handlers struct {
	cfg       *config.Config
	repos     *database.Repositories
	log       *logrus.Logger
	wsHub     *websocket.Hub
	scheduler *scheduler.Scheduler
}

// NewHandlers creates a new handlers instance
func NewHandlers(cfg *config.Config, repos *database.Repositories, logger *logrus.Logger, wsHub *websocket.Hub, sched *scheduler.Scheduler) *Handlers {
	return &Handlers{
		cfg:       cfg,
		repos:     repos,
		log:       logger,
		wsHub:     wsHub,
		scheduler: sched,
	}
}
