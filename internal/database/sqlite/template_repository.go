package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/pulsehq/insight-engine/internal/database/models"
	"github.com/pulsehq/insight-engine/internal/database/repositories"
)

// TemplateRepository implements repositories.TemplateRepository
type TemplateRepository struct {
	db *sqlx.DB
}

// NewTemplateRepository creates a new TemplateRepository
func NewTemplateRepository(db *sqlx.DB) repositories.TemplateRepository {
	return &TemplateRepository{db: db}
}

const templateColumns = `id, name, description, report_type, frequency, schedule,
	recipients, sources, metrics, visualizations, filters, export_formats,
	is_active, last_generated, next_generation, created_at, updated_at`

func (r *TemplateRepository) GetAll(ctx context.Context) ([]*models.ReportTemplate, error) {
	query := fmt.Sprintf(`SELECT %s FROM report_templates ORDER BY name`, templateColumns)
	return r.queryTemplates(ctx, query)
}

func (r *TemplateRepository) GetActive(ctx context.Context) ([]*models.ReportTemplate, error) {
	query := fmt.Sprintf(`SELECT %s FROM report_templates WHERE is_active = 1 ORDER BY name`, templateColumns)
	return r.queryTemplates(ctx, query)
}

func (r *TemplateRepository) GetByID(ctx context.Context, id string) (*models.ReportTemplate, error) {
	query := fmt.Sprintf(`SELECT %s FROM report_templates WHERE id = ?`, templateColumns)
	row := r.db.QueryRowContext(ctx, query, id)
	template, err := scanTemplate(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("report template %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get report template: %w", err)
	}
	return template, nil
}

func (r *TemplateRepository) Upsert(ctx context.Context, template *models.ReportTemplate) error {
	now := time.Now().UTC()
	if template.CreatedAt.IsZero() {
		template.CreatedAt = now
	}
	template.UpdatedAt = now

	scheduleJSON, _ := json.Marshal(template.Schedule)
	recipientsJSON, _ := json.Marshal(template.Recipients)
	sourcesJSON, _ := json.Marshal(template.Sources)
	metricsJSON, _ := json.Marshal(template.Metrics)
	visualizationsJSON, _ := json.Marshal(template.Visualizations)
	filtersJSON, _ := json.Marshal(template.Filters)
	formatsJSON, _ := json.Marshal(template.ExportFormats)

	query := `
		INSERT INTO report_templates (
			id, name, description, report_type, frequency, schedule, recipients,
			sources, metrics, visualizations, filters, export_formats, is_active,
			last_generated, next_generation, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			report_type = excluded.report_type,
			frequency = excluded.frequency,
			schedule = excluded.schedule,
			recipients = excluded.recipients,
			sources = excluded.sources,
			metrics = excluded.metrics,
			visualizations = excluded.visualizations,
			filters = excluded.filters,
			export_formats = excluded.export_formats,
			is_active = excluded.is_active,
			next_generation = excluded.next_generation,
			updated_at = excluded.updated_at`

	_, err := r.db.ExecContext(ctx, query,
		template.ID, template.Name, template.Description, template.Type,
		template.Frequency, scheduleJSON, recipientsJSON, sourcesJSON,
		metricsJSON, visualizationsJSON, filtersJSON, formatsJSON,
		template.IsActive, template.LastGenerated, template.NextGeneration,
		template.CreatedAt, template.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert report template: %w", err)
	}
	return nil
}

func (r *TemplateRepository) SetActive(ctx context.Context, id string, active bool) error {
	query := `UPDATE report_templates SET is_active = ?, updated_at = ? WHERE id = ?`
	result, err := r.db.ExecContext(ctx, query, active, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to update report template: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("report template %s not found", id)
	}
	return nil
}

func (r *TemplateRepository) MarkGenerated(ctx context.Context, id string, generatedAt time.Time, next *time.Time) error {
	query := `
		UPDATE report_templates
		SET last_generated = ?, next_generation = ?, updated_at = ?
		WHERE id = ?`
	result, err := r.db.ExecContext(ctx, query, generatedAt, next, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to mark template generated: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("report template %s not found", id)
	}
	return nil
}

func (r *TemplateRepository) queryTemplates(ctx context.Context, query string, args ...interface{}) ([]*models.ReportTemplate, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query report templates: %w", err)
	}
	defer rows.Close()

	var templates []*models.ReportTemplate
	for rows.Next() {
		template, err := scanTemplate(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan report template: %w", err)
		}
		templates = append(templates, template)
	}
	return templates, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTemplate(row rowScanner) (*models.ReportTemplate, error) {
	template := &models.ReportTemplate{}
	var scheduleJSON, recipientsJSON, sourcesJSON, metricsJSON []byte
	var visualizationsJSON, filtersJSON, formatsJSON []byte
	var lastGenerated, nextGeneration sql.NullTime

	err := row.Scan(
		&template.ID, &template.Name, &template.Description, &template.Type,
		&template.Frequency, &scheduleJSON, &recipientsJSON, &sourcesJSON,
		&metricsJSON, &visualizationsJSON, &filtersJSON, &formatsJSON,
		&template.IsActive, &lastGenerated, &nextGeneration,
		&template.CreatedAt, &template.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	json.Unmarshal(scheduleJSON, &template.Schedule)
	json.Unmarshal(recipientsJSON, &template.Recipients)
	json.Unmarshal(sourcesJSON, &template.Sources)
	json.Unmarshal(metricsJSON, &template.Metrics)
	json.Unmarshal(visualizationsJSON, &template.Visualizations)
	json.Unmarshal(filtersJSON, &template.Filters)
	json.Unmarshal(formatsJSON, &template.ExportFormats)

	if lastGenerated.Valid {
		t := lastGenerated.Time
		template.LastGenerated = &t
	}
	if nextGeneration.Valid {
		t := nextGeneration.Time
		template.NextGeneration = &t
	}
	return template, nil
}
