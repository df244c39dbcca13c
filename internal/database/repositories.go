package database

import (
	"github.com/jmoiron/sqlx"

	"github.com/pulsehq/insight-engine/internal/database/repositories"
	"github.com/pulsehq/insight-engine/internal/database/sqlite"
)

// Repositories holds all repository instances
type Repositories struct {
	Template             repositories.TemplateRepository
	Rule                 repositories.RuleRepository
	NotificationTemplate repositories.NotificationTemplateRepository
	Report               repositories.ReportRepository
	Firing               repositories.FiringRepository
	Metric               repositories.MetricRepository
}

// NewRepositories creates all repository instances
func NewRepositories(db *sqlx.DB) *Repositories {
	return &Repositories{
		Template:             sqlite.NewTemplateRepository(db),
		Rule:                 sqlite.NewRuleRepository(db),
		NotificationTemplate: sqlite.NewNotificationTemplateRepository(db),
		Report:               sqlite.NewReportRepository(db),
		Firing:               sqlite.NewFiringRepository(db),
		Metric:               sqlite.NewMetricRepository(db),
	}
}
