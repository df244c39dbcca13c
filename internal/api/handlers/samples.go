package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/pulsehq/insight-engine/pkg/utils"
)

type sampleRequest struct {
	Metric    string     `json:"metric" binding:"required"`
	Value     float64    `json:"value"`
	Timestamp *time.Time `json:"timestamp"`
}

// IngestSamples accepts a batch of raw metric samples for the local sample
// store. External pipelines push here; the engine only ever reads aggregates.
func (h *Handlers) IngestSamples(c *gin.Context) {
	var samples []sampleRequest
	if err := c.ShouldBindJSON(&samples); err != nil {
		utils.SendError(c, http.StatusBadRequest, "Invalid samples payload: "+err.Error())
		return
	}
	if len(samples) == 0 {
		utils.SendError(c, http.StatusBadRequest, "No samples provided")
		return
	}

	now := time.Now()
	for _, sample := range samples {
		ts := now
		if sample.Timestamp != nil {
			ts = *sample.Timestamp
		}
		if err := h.repos.Metric.Insert(c.Request.Context(), sample.Metric, ts, sample.Value); err != nil {
			h.log.WithError(err).WithField("metric", sample.Metric).Error("Failed to insert metric sample")
			utils.SendError(c, http.StatusInternalServerError, "Failed to insert metric sample")
			return
		}
	}

	utils.SendSuccess(c, gin.H{"inserted": len(samples)})
}
