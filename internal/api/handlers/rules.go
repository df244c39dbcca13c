package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/pulsehq/insight-engine/internal/database/models"
	"github.com/pulsehq/insight-engine/pkg/utils"
)

// GetRules returns all alert rules
func (h *Handlers) GetRules(c *gin.Context) {
	rules, err := h.repos.Rule.GetAll(c.Request.Context())
	if err != nil {
		h.log.WithError(err).Error("Failed to list alert rules")
		utils.SendError(c, http.StatusInternalServerError, "Failed to list alert rules")
		return
	}
	utils.SendSuccess(c, rules)
}

// GetRule returns one alert rule by ID
func (h *Handlers) GetRule(c *gin.Context) {
	rule, err := h.repos.Rule.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		utils.SendError(c, http.StatusNotFound, "Alert rule not found")
		return
	}
	utils.SendSuccess(c, rule)
}

// SaveRule creates or updates an alert rule
func (h *Handlers) SaveRule(c *gin.Context) {
	var rule models.AlertRule
	if err := c.ShouldBindJSON(&rule); err != nil {
		utils.SendError(c, http.StatusBadRequest, "Invalid rule payload: "+err.Error())
		return
	}
	if rule.ID == "" || rule.Name == "" || rule.Metric == "" {
		utils.SendError(c, http.StatusBadRequest, "Rule id, name and metric are required")
		return
	}
	if rule.Condition.Operator == models.OperatorBetween || rule.Condition.Operator == models.OperatorOutsideRange {
		if rule.Condition.UpperThreshold == nil {
			utils.SendError(c, http.StatusBadRequest, "Operator requires an upper threshold")
			return
		}
	}
	if rule.Condition.Basis == "" {
		rule.Condition.Basis = models.BasisCurrent
	}

	now := time.Now()
	if rule.CreatedAt.IsZero() {
		rule.CreatedAt = now
	}
	rule.UpdatedAt = now

	if err := h.repos.Rule.Upsert(c.Request.Context(), &rule); err != nil {
		h.log.WithError(err).Error("Failed to save alert rule")
		utils.SendError(c, http.StatusInternalServerError, "Failed to save alert rule")
		return
	}
	utils.SendSuccess(c, rule)
}

// SetRuleActive flips a rule's active flag
func (h *Handlers) SetRuleActive(c *gin.Context) {
	var body struct {
		Active bool `json:"active"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		utils.SendError(c, http.StatusBadRequest, "Invalid payload: "+err.Error())
		return
	}

	if err := h.repos.Rule.SetActive(c.Request.Context(), c.Param("id"), body.Active); err != nil {
		h.log.WithError(err).Error("Failed to update rule active flag")
		utils.SendError(c, http.StatusInternalServerError, "Failed to update rule")
		return
	}
	utils.SendSuccess(c, gin.H{"id": c.Param("id"), "active": body.Active})
}

// GetFirings lists alert firings, optionally filtered by rule.
func (h *Handlers) GetFirings(c *gin.Context) {
	limit := 50
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			utils.SendError(c, http.StatusBadRequest, "Invalid limit")
			return
		}
		limit = parsed
	}

	firings, err := h.repos.Firing.List(c.Request.Context(), c.Query("rule_id"), limit)
	if err != nil {
		h.log.WithError(err).Error("Failed to list alert firings")
		utils.SendError(c, http.StatusInternalServerError, "Failed to list alert firings")
		return
	}
	utils.SendSuccessWithMeta(c, firings, gin.H{"count": len(firings), "limit": limit})
}
