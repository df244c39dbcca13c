package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/pulsehq/insight-engine/pkg/utils"
)

// GetReports lists generated reports, optionally filtered by template.
func (h *Handlers) GetReports(c *gin.Context) {
	limit := 50
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			utils.SendError(c, http.StatusBadRequest, "Invalid limit")
			return
		}
		limit = parsed
	}

	reports, err := h.repos.Report.List(c.Request.Context(), c.Query("template_id"), limit)
	if err != nil {
		h.log.WithError(err).Error("Failed to list generated reports")
		utils.SendError(c, http.StatusInternalServerError, "Failed to list generated reports")
		return
	}
	utils.SendSuccessWithMeta(c, reports, gin.H{"count": len(reports), "limit": limit})
}

// GetReport returns one generated report by ID
func (h *Handlers) GetReport(c *gin.Context) {
	report, err := h.repos.Report.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		utils.SendError(c, http.StatusNotFound, "Report not found")
		return
	}
	utils.SendSuccess(c, report)
}
