package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/pulsehq/insight-engine/internal/core/reporting"
	"github.com/pulsehq/insight-engine/internal/core/scheduler"
	"github.com/pulsehq/insight-engine/internal/database/models"
	"github.com/pulsehq/insight-engine/pkg/utils"
)

// GetTemplates returns all report templates
func (h *Handlers) GetTemplates(c *gin.Context) {
	templates, err := h.repos.Template.GetAll(c.Request.Context())
	if err != nil {
		h.log.WithError(err).Error("Failed to list report templates")
		utils.SendError(c, http.StatusInternalServerError, "Failed to list report templates")
		return
	}
	utils.SendSuccess(c, templates)
}

// GetTemplate returns one report template by ID
func (h *Handlers) GetTemplate(c *gin.Context) {
	template, err := h.repos.Template.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		utils.SendError(c, http.StatusNotFound, "Report template not found")
		return
	}
	utils.SendSuccess(c, template)
}

// SaveTemplate creates or updates a report template. The next generation
// time is recomputed from the schedule whenever it is absent.
func (h *Handlers) SaveTemplate(c *gin.Context) {
	var template models.ReportTemplate
	if err := c.ShouldBindJSON(&template); err != nil {
		utils.SendError(c, http.StatusBadRequest, "Invalid template payload: "+err.Error())
		return
	}
	if template.ID == "" || template.Name == "" {
		utils.SendError(c, http.StatusBadRequest, "Template id and name are required")
		return
	}

	now := time.Now()
	if template.CreatedAt.IsZero() {
		template.CreatedAt = now
	}
	template.UpdatedAt = now

	if template.NextGeneration == nil && template.Frequency != models.FrequencyOnDemand {
		from := now
		if template.LastGenerated != nil {
			from = *template.LastGenerated
		}
		next, err := reporting.NextRun(template.Frequency, template.Schedule, from)
		if err != nil {
			utils.SendError(c, http.StatusBadRequest, "Invalid schedule: "+err.Error())
			return
		}
		if !next.IsZero() {
			template.NextGeneration = &next
		}
	}

	if err := h.repos.Template.Upsert(c.Request.Context(), &template); err != nil {
		h.log.WithError(err).Error("Failed to save report template")
		utils.SendError(c, http.StatusInternalServerError, "Failed to save report template")
		return
	}
	utils.SendSuccess(c, template)
}

// SetTemplateActive flips a template's active flag. Deactivation is the
// supported removal path; templates referenced by reports are never deleted.
func (h *Handlers) SetTemplateActive(c *gin.Context) {
	var body struct {
		Active bool `json:"active"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		utils.SendError(c, http.StatusBadRequest, "Invalid payload: "+err.Error())
		return
	}

	if err := h.repos.Template.SetActive(c.Request.Context(), c.Param("id"), body.Active); err != nil {
		h.log.WithError(err).Error("Failed to update template active flag")
		utils.SendError(c, http.StatusInternalServerError, "Failed to update template")
		return
	}
	utils.SendSuccess(c, gin.H{"id": c.Param("id"), "active": body.Active})
}

// GenerateReport triggers an on-demand generation run for a template.
func (h *Handlers) GenerateReport(c *gin.Context) {
	report, err := h.scheduler.TriggerReport(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.log.WithError(err).WithField("template_id", c.Param("id")).Error("On-demand generation failed")
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, scheduler.ErrTemplateNotFound):
			status = http.StatusNotFound
		case errors.Is(err, scheduler.ErrTemplateInactive):
			status = http.StatusBadRequest
		case errors.Is(err, scheduler.ErrGenerationInFlight):
			status = http.StatusConflict
		}
		utils.SendError(c, status, err.Error())
		return
	}
	utils.SendSuccess(c, report)
}
