package definitions

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pulsehq/insight-engine/internal/database/models"
)

const sampleDefinitions = `
report_templates:
  - id: weekly-summary
    name: Weekly Summary
    description: Key numbers for the week
    type: executive_summary
    frequency: weekly
    schedule:
      time: "07:00"
      day_of_week: 1
      timezone: UTC
    recipients:
      - address: ops@example.com
        name: Ops
        role: Operations
        mode: both
    metrics:
      - metric: revenue
        display_name: Revenue
        format: currency
        aggregation: sum
        comparison: previous_period
    export_formats: [csv, html]
  - id: manual-audit
    name: Manual Audit
    frequency: on_demand
    is_active: false

alert_rules:
  - id: error-spike
    name: Error Spike
    metric: error_rate
    condition:
      operator: greater_than
      threshold: 5
    severity: critical
    channels:
      - type: chat
        target: "#ops"
    limit:
      max_per_hour: 2
      cooldown_minutes: 15
    business_hours_only: true

notification_templates:
  - id: chat-default
    channel_type: chat
    subject: "Alert: {{rule_name}}"
    body: "{{metric_name}} is {{current_value}}"
    use_branding: true
`

type memTemplateRepo struct {
	byID map[string]*models.ReportTemplate
}

func (r *memTemplateRepo) GetAll(ctx context.Context) ([]*models.ReportTemplate, error) {
	return nil, nil
}
func (r *memTemplateRepo) GetActive(ctx context.Context) ([]*models.ReportTemplate, error) {
	return nil, nil
}
func (r *memTemplateRepo) GetByID(ctx context.Context, id string) (*models.ReportTemplate, error) {
	if t, ok := r.byID[id]; ok {
		return t, nil
	}
	return nil, fmt.Errorf("template %s not found", id)
}
func (r *memTemplateRepo) Upsert(ctx context.Context, template *models.ReportTemplate) error {
	r.byID[template.ID] = template
	return nil
}
func (r *memTemplateRepo) SetActive(ctx context.Context, id string, active bool) error { return nil }
func (r *memTemplateRepo) MarkGenerated(ctx context.Context, id string, generatedAt time.Time, next *time.Time) error {
	return nil
}

type memRuleRepo struct {
	byID map[string]*models.AlertRule
}

func (r *memRuleRepo) GetAll(ctx context.Context) ([]*models.AlertRule, error)    { return nil, nil }
func (r *memRuleRepo) GetActive(ctx context.Context) ([]*models.AlertRule, error) { return nil, nil }
func (r *memRuleRepo) GetByID(ctx context.Context, id string) (*models.AlertRule, error) {
	if rule, ok := r.byID[id]; ok {
		return rule, nil
	}
	return nil, fmt.Errorf("rule %s not found", id)
}
func (r *memRuleRepo) Upsert(ctx context.Context, rule *models.AlertRule) error {
	r.byID[rule.ID] = rule
	return nil
}
func (r *memRuleRepo) SetActive(ctx context.Context, id string, active bool) error { return nil }
func (r *memRuleRepo) RecordTrigger(ctx context.Context, id string, at time.Time) error {
	return nil
}

type memNotifRepo struct {
	byID map[string]*models.NotificationTemplate
}

func (r *memNotifRepo) GetAll(ctx context.Context) ([]*models.NotificationTemplate, error) {
	return nil, nil
}
func (r *memNotifRepo) GetByID(ctx context.Context, id string) (*models.NotificationTemplate, error) {
	if t, ok := r.byID[id]; ok {
		return t, nil
	}
	return nil, fmt.Errorf("notification template %s not found", id)
}
func (r *memNotifRepo) Upsert(ctx context.Context, template *models.NotificationTemplate) error {
	r.byID[template.ID] = template
	return nil
}

func newRepos() (Repos, *memTemplateRepo, *memRuleRepo, *memNotifRepo) {
	templates := &memTemplateRepo{byID: make(map[string]*models.ReportTemplate)}
	rules := &memRuleRepo{byID: make(map[string]*models.AlertRule)}
	notifs := &memNotifRepo{byID: make(map[string]*models.NotificationTemplate)}
	return Repos{
		Templates:             templates,
		Rules:                 rules,
		NotificationTemplates: notifs,
	}, templates, rules, notifs
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

func writeDefinitions(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "definitions.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_ParsesFullDocument(t *testing.T) {
	file, err := Load(writeDefinitions(t, sampleDefinitions))
	require.NoError(t, err)

	require.Len(t, file.ReportTemplates, 2)
	weekly := file.ReportTemplates[0]
	assert.Equal(t, "weekly-summary", weekly.ID)
	assert.Equal(t, "weekly", weekly.Frequency)
	require.NotNil(t, weekly.Schedule.DayOfWeek)
	assert.Equal(t, 1, *weekly.Schedule.DayOfWeek)
	assert.Equal(t, []string{"csv", "html"}, weekly.ExportFormats)
	require.Len(t, weekly.Metrics, 1)
	assert.Equal(t, "previous_period", weekly.Metrics[0].Comparison)

	require.Len(t, file.AlertRules, 1)
	rule := file.AlertRules[0]
	assert.Equal(t, "greater_than", rule.Condition.Operator)
	assert.Equal(t, 2, rule.Limit.MaxPerHour)
	assert.True(t, rule.BusinessHoursOnly)

	require.Len(t, file.NotificationTemplates, 1)
	assert.True(t, file.NotificationTemplates[0].UseBranding)
}

func TestLoad_MissingFileIsEmpty(t *testing.T) {
	file, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Empty(t, file.ReportTemplates)
	assert.Empty(t, file.AlertRules)
	assert.Empty(t, file.NotificationTemplates)
}

func TestLoad_MalformedYAML(t *testing.T) {
	_, err := Load(writeDefinitions(t, "report_templates: [broken"))
	assert.Error(t, err)
}

func TestApply_CreatesAllDefinitions(t *testing.T) {
	file, err := Load(writeDefinitions(t, sampleDefinitions))
	require.NoError(t, err)

	repos, templates, rules, notifs := newRepos()
	require.NoError(t, Apply(context.Background(), file, repos, quietLogger()))

	weekly := templates.byID["weekly-summary"]
	require.NotNil(t, weekly)
	assert.True(t, weekly.IsActive)
	assert.Equal(t, models.FrequencyWeekly, weekly.Frequency)
	require.NotNil(t, weekly.NextGeneration, "scheduled template gets a first next_generation")
	assert.Equal(t, time.Monday, weekly.NextGeneration.Weekday())
	assert.Equal(t, models.ComparisonPrevious, weekly.Metrics[0].Comparison)

	manual := templates.byID["manual-audit"]
	require.NotNil(t, manual)
	assert.False(t, manual.IsActive)
	assert.Nil(t, manual.NextGeneration, "on-demand templates are never auto-scheduled")

	rule := rules.byID["error-spike"]
	require.NotNil(t, rule)
	assert.Equal(t, models.BasisCurrent, rule.Condition.Basis, "basis defaults to current")
	assert.Equal(t, models.SeverityCritical, rule.Severity)

	assert.NotNil(t, notifs.byID["chat-default"])
}

func TestApply_PreservesRuntimeState(t *testing.T) {
	file, err := Load(writeDefinitions(t, sampleDefinitions))
	require.NoError(t, err)

	repos, templates, rules, _ := newRepos()

	lastGen := time.Date(2026, 3, 2, 7, 0, 0, 0, time.UTC)
	nextGen := time.Date(2026, 3, 9, 7, 0, 0, 0, time.UTC)
	created := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	templates.byID["weekly-summary"] = &models.ReportTemplate{
		ID:             "weekly-summary",
		LastGenerated:  &lastGen,
		NextGeneration: &nextGen,
		CreatedAt:      created,
	}

	lastTriggered := time.Date(2026, 3, 8, 12, 0, 0, 0, time.UTC)
	rules.byID["error-spike"] = &models.AlertRule{
		ID:            "error-spike",
		LastTriggered: &lastTriggered,
		TriggerCount:  7,
		CreatedAt:     created,
	}

	require.NoError(t, Apply(context.Background(), file, repos, quietLogger()))

	weekly := templates.byID["weekly-summary"]
	require.NotNil(t, weekly.LastGenerated)
	assert.Equal(t, lastGen, *weekly.LastGenerated)
	require.NotNil(t, weekly.NextGeneration)
	assert.Equal(t, nextGen, *weekly.NextGeneration)
	assert.Equal(t, created, weekly.CreatedAt)
	assert.Equal(t, "Weekly Summary", weekly.Name, "declarative fields still refresh")

	rule := rules.byID["error-spike"]
	require.NotNil(t, rule.LastTriggered)
	assert.Equal(t, lastTriggered, *rule.LastTriggered)
	assert.Equal(t, int64(7), rule.TriggerCount)
}

func TestApply_InvalidScheduleFails(t *testing.T) {
	file := &File{ReportTemplates: []ReportTemplateDef{{
		ID:        "bad",
		Name:      "Bad",
		Frequency: "weekly",
	}}}
	file.ReportTemplates[0].Schedule.Time = "25:99"

	repos, _, _, _ := newRepos()
	err := Apply(context.Background(), file, repos, quietLogger())
	assert.Error(t, err)
}
