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

// ReportRepository implements repositories.ReportRepository
type ReportRepository struct {
	db *sqlx.DB
}

// NewReportRepository creates a new ReportRepository
func NewReportRepository(db *sqlx.DB) repositories.ReportRepository {
	return &ReportRepository{db: db}
}

const reportColumns = `id, template_id, generated_at, period_start, period_end,
	status, artifacts, summary, deliveries, duration_ms, size_bytes, error`

func (r *ReportRepository) Create(ctx context.Context, report *models.GeneratedReport) error {
	if report.Status != models.ReportStatusGenerating {
		return fmt.Errorf("new report must be in generating state, got %s", report.Status)
	}

	artifactsJSON, _ := json.Marshal(report.Artifacts)
	summaryJSON, _ := json.Marshal(report.Summary)
	deliveriesJSON, _ := json.Marshal(report.Deliveries)

	query := `
		INSERT INTO generated_reports (
			id, template_id, generated_at, period_start, period_end, status,
			artifacts, summary, deliveries, duration_ms, size_bytes, error
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, query,
		report.ID, report.TemplateID, report.GeneratedAt, report.PeriodStart,
		report.PeriodEnd, report.Status, artifactsJSON, summaryJSON,
		deliveriesJSON, report.DurationMS, report.SizeBytes, report.Error,
	)
	if err != nil {
		return fmt.Errorf("failed to create generated report: %w", err)
	}
	return nil
}

// Finalize applies the single generating -> terminal transition. The WHERE
// clause guards the append-only invariant: a report already in a terminal
// state is never rewritten.
func (r *ReportRepository) Finalize(ctx context.Context, report *models.GeneratedReport) error {
	if !report.Status.Terminal() {
		return fmt.Errorf("finalize requires a terminal status, got %s", report.Status)
	}

	artifactsJSON, _ := json.Marshal(report.Artifacts)
	summaryJSON, _ := json.Marshal(report.Summary)
	deliveriesJSON, _ := json.Marshal(report.Deliveries)

	query := `
		UPDATE generated_reports
		SET status = ?, artifacts = ?, summary = ?, deliveries = ?,
			duration_ms = ?, size_bytes = ?, error = ?
		WHERE id = ? AND status = ?`

	result, err := r.db.ExecContext(ctx, query,
		report.Status, artifactsJSON, summaryJSON, deliveriesJSON,
		report.DurationMS, report.SizeBytes, report.Error,
		report.ID, models.ReportStatusGenerating,
	)
	if err != nil {
		return fmt.Errorf("failed to finalize generated report: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("report %s is not in generating state", report.ID)
	}
	return nil
}

func (r *ReportRepository) GetByID(ctx context.Context, id string) (*models.GeneratedReport, error) {
	query := fmt.Sprintf(`SELECT %s FROM generated_reports WHERE id = ?`, reportColumns)
	row := r.db.QueryRowContext(ctx, query, id)
	report, err := scanReport(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("generated report %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get generated report: %w", err)
	}
	return report, nil
}

func (r *ReportRepository) List(ctx context.Context, templateID string, limit int) ([]*models.GeneratedReport, error) {
	if limit <= 0 {
		limit = 50
	}

	query := fmt.Sprintf(`SELECT %s FROM generated_reports`, reportColumns)
	args := []interface{}{}
	if templateID != "" {
		query += ` WHERE template_id = ?`
		args = append(args, templateID)
	}
	query += ` ORDER BY generated_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query generated reports: %w", err)
	}
	defer rows.Close()

	var reports []*models.GeneratedReport
	for rows.Next() {
		report, err := scanReport(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan generated report: %w", err)
		}
		reports = append(reports, report)
	}
	return reports, rows.Err()
}

func (r *ReportRepository) FindByPeriod(ctx context.Context, templateID string, periodStart time.Time) (*models.GeneratedReport, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM generated_reports
		WHERE template_id = ? AND period_start = ?
		ORDER BY generated_at DESC LIMIT 1`, reportColumns)

	row := r.db.QueryRowContext(ctx, query, templateID, periodStart)
	report, err := scanReport(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find report by period: %w", err)
	}
	return report, nil
}

func scanReport(row rowScanner) (*models.GeneratedReport, error) {
	report := &models.GeneratedReport{}
	var artifactsJSON, summaryJSON, deliveriesJSON []byte

	err := row.Scan(
		&report.ID, &report.TemplateID, &report.GeneratedAt,
		&report.PeriodStart, &report.PeriodEnd, &report.Status,
		&artifactsJSON, &summaryJSON, &deliveriesJSON,
		&report.DurationMS, &report.SizeBytes, &report.Error,
	)
	if err != nil {
		return nil, err
	}

	json.Unmarshal(artifactsJSON, &report.Artifacts)
	json.Unmarshal(summaryJSON, &report.Summary)
	json.Unmarshal(deliveriesJSON, &report.Deliveries)
	return report, nil
}
