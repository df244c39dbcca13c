package handlers

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/pulsehq/insight-engine/pkg/utils"
	"github.com/pulsehq/insight-engine/pkg/version"
)

// Health returns the health status of the service
func (h *Handlers) Health(c *gin.Context) {
	stats := h.scheduler.Stats()

	health := gin.H{
		"status":            "healthy",
		"timestamp":         time.Now().Format(time.RFC3339),
		"service":           "insight-engine",
		"version":           version.GetVersion(),
		"scheduler_running": stats.Running,
		"connected_clients": h.wsHub.GetClientCount(),
	}
	if stats.LastTick != nil {
		health["last_tick"] = stats.LastTick.Format(time.RFC3339)
	}

	utils.SendSuccess(c, health)
}
