package repositories

import (
	"context"
	"time"

	"github.com/pulsehq/insight-engine/internal/database/models"
)

// TemplateRepository manages report template persistence.
type TemplateRepository interface {
	GetAll(ctx context.Context) ([]*models.ReportTemplate, error)
	GetActive(ctx context.Context) ([]*models.ReportTemplate, error)
	GetByID(ctx context.Context, id string) (*models.ReportTemplate, error)
	Upsert(ctx context.Context, template *models.ReportTemplate) error
	SetActive(ctx context.Context, id string, active bool) error
	// MarkGenerated records the bookkeeping update after a completed
	// generation run: last_generated and next_generation move together.
	// Failed runs never call it, which keeps the template due for retry.
	MarkGenerated(ctx context.Context, id string, generatedAt time.Time, next *time.Time) error
}

// RuleRepository manages alert rule persistence.
type RuleRepository interface {
	GetAll(ctx context.Context) ([]*models.AlertRule, error)
	GetActive(ctx context.Context) ([]*models.AlertRule, error)
	GetByID(ctx context.Context, id string) (*models.AlertRule, error)
	Upsert(ctx context.Context, rule *models.AlertRule) error
	SetActive(ctx context.Context, id string, active bool) error
	// RecordTrigger increments trigger_count and sets last_triggered. Called
	// once per admitted firing regardless of channel outcomes.
	RecordTrigger(ctx context.Context, id string, at time.Time) error
}

// NotificationTemplateRepository manages notification templates.
type NotificationTemplateRepository interface {
	GetAll(ctx context.Context) ([]*models.NotificationTemplate, error)
	GetByID(ctx context.Context, id string) (*models.NotificationTemplate, error)
	Upsert(ctx context.Context, template *models.NotificationTemplate) error
}

// ReportRepository manages the append-only generated report audit trail.
type ReportRepository interface {
	// Create inserts a report in the generating state.
	Create(ctx context.Context, report *models.GeneratedReport) error
	// Finalize applies the single transition out of the generating state.
	Finalize(ctx context.Context, report *models.GeneratedReport) error
	GetByID(ctx context.Context, id string) (*models.GeneratedReport, error)
	List(ctx context.Context, templateID string, limit int) ([]*models.GeneratedReport, error)
	// FindByPeriod returns the most recent report for a (template, period
	// start) pair, or nil when none exists. Backs idempotent generation.
	FindByPeriod(ctx context.Context, templateID string, periodStart time.Time) (*models.GeneratedReport, error)
}

// FiringRepository manages the append-only alert firing audit trail.
type FiringRepository interface {
	Create(ctx context.Context, firing *models.AlertFiring) error
	List(ctx context.Context, ruleID string, limit int) ([]*models.AlertFiring, error)
}

// MetricRepository aggregates raw metric samples. It backs the default
// metric data source implementation.
type MetricRepository interface {
	Aggregate(ctx context.Context, metric string, agg models.Aggregation, start, end time.Time) (float64, error)
	Insert(ctx context.Context, metric string, ts time.Time, value float64) error
}
