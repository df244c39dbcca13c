package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/pulsehq/insight-engine/pkg/utils"
)

// GetStats returns scheduler and dashboard hub statistics
func (h *Handlers) GetStats(c *gin.Context) {
	utils.SendSuccess(c, gin.H{
		"scheduler": h.scheduler.Stats(),
		"websocket": h.wsHub.GetStats(),
	})
}
