package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/pulsehq/insight-engine/internal/core/render"
	"github.com/pulsehq/insight-engine/internal/database/models"
	"github.com/pulsehq/insight-engine/pkg/utils"
)

// GetNotificationTemplates returns all notification templates
func (h *Handlers) GetNotificationTemplates(c *gin.Context) {
	templates, err := h.repos.NotificationTemplate.GetAll(c.Request.Context())
	if err != nil {
		h.log.WithError(err).Error("Failed to list notification templates")
		utils.SendError(c, http.StatusInternalServerError, "Failed to list notification templates")
		return
	}
	utils.SendSuccess(c, templates)
}

// SaveNotificationTemplate creates or updates a notification template.
// The declared variable list is refreshed from the subject and body so it
// always reflects what the template actually references.
func (h *Handlers) SaveNotificationTemplate(c *gin.Context) {
	var template models.NotificationTemplate
	if err := c.ShouldBindJSON(&template); err != nil {
		utils.SendError(c, http.StatusBadRequest, "Invalid template payload: "+err.Error())
		return
	}
	if template.ID == "" || template.ChannelType == "" {
		utils.SendError(c, http.StatusBadRequest, "Template id and channel_type are required")
		return
	}

	template.Variables = append(render.Variables(template.Subject), render.Variables(template.Body)...)

	now := time.Now()
	if template.CreatedAt.IsZero() {
		template.CreatedAt = now
	}
	template.UpdatedAt = now

	if err := h.repos.NotificationTemplate.Upsert(c.Request.Context(), &template); err != nil {
		h.log.WithError(err).Error("Failed to save notification template")
		utils.SendError(c, http.StatusInternalServerError, "Failed to save notification template")
		return
	}
	utils.SendSuccess(c, template)
}
