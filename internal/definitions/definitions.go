// Package definitions loads declarative report template, alert rule, and
// notification template definitions from a YAML file and reconciles them
// into the database at startup. Definitions are upserted by ID, so editing
// the file and restarting is the supported way to change configuration
// without the API.
package definitions

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/pulsehq/insight-engine/internal/core/reporting"
	"github.com/pulsehq/insight-engine/internal/database/models"
	"github.com/pulsehq/insight-engine/internal/database/repositories"
)

// File is the top-level YAML document.
type File struct {
	ReportTemplates       []ReportTemplateDef       `yaml:"report_templates"`
	AlertRules            []AlertRuleDef            `yaml:"alert_rules"`
	NotificationTemplates []NotificationTemplateDef `yaml:"notification_templates"`
}

// ReportTemplateDef mirrors models.ReportTemplate in YAML form.
type ReportTemplateDef struct {
	ID          string `yaml:"id"`
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Type        string `yaml:"type"`
	Frequency   string `yaml:"frequency"`
	Schedule    struct {
		Time       string `yaml:"time"`
		DayOfWeek  *int   `yaml:"day_of_week"`
		DayOfMonth *int   `yaml:"day_of_month"`
		Timezone   string `yaml:"timezone"`
	} `yaml:"schedule"`
	Recipients []struct {
		Address string `yaml:"address"`
		Name    string `yaml:"name"`
		Role    string `yaml:"role"`
		Mode    string `yaml:"mode"`
	} `yaml:"recipients"`
	Sources []string `yaml:"sources"`
	Metrics []struct {
		Metric      string `yaml:"metric"`
		DisplayName string `yaml:"display_name"`
		Format      string `yaml:"format"`
		Aggregation string `yaml:"aggregation"`
		Comparison  string `yaml:"comparison"`
	} `yaml:"metrics"`
	Visualizations []map[string]interface{} `yaml:"visualizations"`
	Filters        map[string]string        `yaml:"filters"`
	ExportFormats  []string                 `yaml:"export_formats"`
	IsActive       *bool                    `yaml:"is_active"`
}

// AlertRuleDef mirrors models.AlertRule in YAML form.
type AlertRuleDef struct {
	ID        string `yaml:"id"`
	Name      string `yaml:"name"`
	Metric    string `yaml:"metric"`
	Condition struct {
		Operator       string   `yaml:"operator"`
		Threshold      float64  `yaml:"threshold"`
		UpperThreshold *float64 `yaml:"upper_threshold"`
		Basis          string   `yaml:"basis"`
	} `yaml:"condition"`
	Severity string `yaml:"severity"`
	Channels []struct {
		Type       string `yaml:"type"`
		Target     string `yaml:"target"`
		TemplateID string `yaml:"template_id"`
	} `yaml:"channels"`
	Limit struct {
		MaxPerHour      int `yaml:"max_per_hour"`
		MaxPerDay       int `yaml:"max_per_day"`
		CooldownMinutes int `yaml:"cooldown_minutes"`
	} `yaml:"limit"`
	BusinessHoursOnly bool  `yaml:"business_hours_only"`
	IsActive          *bool `yaml:"is_active"`
}

// NotificationTemplateDef mirrors models.NotificationTemplate in YAML form.
type NotificationTemplateDef struct {
	ID               string   `yaml:"id"`
	ChannelType      string   `yaml:"channel_type"`
	Subject          string   `yaml:"subject"`
	Body             string   `yaml:"body"`
	Variables        []string `yaml:"variables"`
	Color            string   `yaml:"color"`
	Icon             string   `yaml:"icon"`
	UseRecipientName bool     `yaml:"use_recipient_name"`
	UseRecipientRole bool     `yaml:"use_recipient_role"`
	UseBranding      bool     `yaml:"use_branding"`
}

// Load parses the definitions file. A missing file is not an error; it
// just means there is nothing to reconcile.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &File{}, nil
		}
		return nil, fmt.Errorf("failed to read definitions file: %w", err)
	}

	var file File
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse definitions file: %w", err)
	}
	return &file, nil
}

// Repos holds the repositories Apply reconciles into.
type Repos struct {
	Templates             repositories.TemplateRepository
	Rules                 repositories.RuleRepository
	NotificationTemplates repositories.NotificationTemplateRepository
}

// Apply upserts every definition into the database. Templates without a
// next generation time get one computed from their schedule so the first
// sweep can pick them up.
func Apply(ctx context.Context, file *File, repos Repos, logger *logrus.Logger) error {
	now := time.Now()

	for _, def := range file.NotificationTemplates {
		template := def.toModel(now)
		if err := repos.NotificationTemplates.Upsert(ctx, template); err != nil {
			return fmt.Errorf("failed to upsert notification template %s: %w", def.ID, err)
		}
	}

	for _, def := range file.ReportTemplates {
		existing, err := repos.Templates.GetByID(ctx, def.ID)
		if err != nil {
			logger.WithField("template_id", def.ID).Debug("Template not yet persisted, creating")
		}

		template := def.toModel(now)
		if existing != nil {
			template.LastGenerated = existing.LastGenerated
			template.NextGeneration = existing.NextGeneration
			template.CreatedAt = existing.CreatedAt
		}
		if template.NextGeneration == nil && template.Frequency != models.FrequencyOnDemand {
			from := now
			if template.LastGenerated != nil {
				from = *template.LastGenerated
			}
			next, err := reporting.NextRun(template.Frequency, template.Schedule, from)
			if err != nil {
				return fmt.Errorf("invalid schedule for template %s: %w", def.ID, err)
			}
			if !next.IsZero() {
				template.NextGeneration = &next
			}
		}
		if err := repos.Templates.Upsert(ctx, template); err != nil {
			return fmt.Errorf("failed to upsert report template %s: %w", def.ID, err)
		}
	}

	for _, def := range file.AlertRules {
		existing, err := repos.Rules.GetByID(ctx, def.ID)
		if err != nil {
			logger.WithField("rule_id", def.ID).Debug("Rule not yet persisted, creating")
		}

		rule := def.toModel(now)
		if existing != nil {
			rule.LastTriggered = existing.LastTriggered
			rule.TriggerCount = existing.TriggerCount
			rule.CreatedAt = existing.CreatedAt
		}
		if err := repos.Rules.Upsert(ctx, rule); err != nil {
			return fmt.Errorf("failed to upsert alert rule %s: %w", def.ID, err)
		}
	}

	logger.WithFields(logrus.Fields{
		"report_templates":       len(file.ReportTemplates),
		"alert_rules":            len(file.AlertRules),
		"notification_templates": len(file.NotificationTemplates),
	}).Info("Definitions reconciled")

	return nil
}

func (d ReportTemplateDef) toModel(now time.Time) *models.ReportTemplate {
	template := &models.ReportTemplate{
		ID:          d.ID,
		Name:        d.Name,
		Description: d.Description,
		Type:        models.ReportType(d.Type),
		Frequency:   models.Frequency(d.Frequency),
		Schedule: models.Schedule{
			Time:       d.Schedule.Time,
			DayOfWeek:  d.Schedule.DayOfWeek,
			DayOfMonth: d.Schedule.DayOfMonth,
			Timezone:   d.Schedule.Timezone,
		},
		Sources:       d.Sources,
		Filters:       d.Filters,
		ExportFormats: d.ExportFormats,
		IsActive:      d.IsActive == nil || *d.IsActive,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	for _, r := range d.Recipients {
		template.Recipients = append(template.Recipients, models.Recipient{
			Address: r.Address,
			Name:    r.Name,
			Role:    r.Role,
			Mode:    models.DeliveryMode(r.Mode),
		})
	}
	for _, m := range d.Metrics {
		spec := models.MetricSpec{
			Metric:      m.Metric,
			DisplayName: m.DisplayName,
			Format:      models.OutputFormat(m.Format),
			Aggregation: models.Aggregation(m.Aggregation),
		}
		if m.Comparison != "" {
			spec.Comparison = models.ComparisonPeriod(m.Comparison)
		}
		template.Metrics = append(template.Metrics, spec)
	}
	for _, v := range d.Visualizations {
		template.Visualizations = append(template.Visualizations, models.Visualization(v))
	}
	return template
}

func (d AlertRuleDef) toModel(now time.Time) *models.AlertRule {
	rule := &models.AlertRule{
		ID:     d.ID,
		Name:   d.Name,
		Metric: d.Metric,
		Condition: models.Condition{
			Operator:       models.Operator(d.Condition.Operator),
			Threshold:      d.Condition.Threshold,
			UpperThreshold: d.Condition.UpperThreshold,
			Basis:          models.ComparisonBasis(d.Condition.Basis),
		},
		Severity: models.Severity(d.Severity),
		Limit: models.FrequencyLimit{
			MaxPerHour:      d.Limit.MaxPerHour,
			MaxPerDay:       d.Limit.MaxPerDay,
			CooldownMinutes: d.Limit.CooldownMinutes,
		},
		BusinessHoursOnly: d.BusinessHoursOnly,
		IsActive:          d.IsActive == nil || *d.IsActive,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if rule.Condition.Basis == "" {
		rule.Condition.Basis = models.BasisCurrent
	}
	for _, c := range d.Channels {
		rule.Channels = append(rule.Channels, models.NotificationChannel{
			Type:       models.ChannelType(c.Type),
			Target:     c.Target,
			TemplateID: c.TemplateID,
		})
	}
	return rule
}

func (d NotificationTemplateDef) toModel(now time.Time) *models.NotificationTemplate {
	return &models.NotificationTemplate{
		ID:               d.ID,
		ChannelType:      models.ChannelType(d.ChannelType),
		Subject:          d.Subject,
		Body:             d.Body,
		Variables:        d.Variables,
		Color:            d.Color,
		Icon:             d.Icon,
		UseRecipientName: d.UseRecipientName,
		UseRecipientRole: d.UseRecipientRole,
		UseBranding:      d.UseBranding,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}
