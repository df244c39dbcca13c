package reporting

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/pulsehq/insight-engine/internal/database/models"
	"github.com/pulsehq/insight-engine/internal/database/repositories"
	"github.com/pulsehq/insight-engine/internal/datasource"
	"github.com/pulsehq/insight-engine/internal/export"
	"github.com/pulsehq/insight-engine/internal/metrics"
	"github.com/pulsehq/insight-engine/internal/notify"
	"github.com/pulsehq/insight-engine/internal/websocket"
)

// Generator materializes report templates into generated report records.
// A single Generate call owns the full lifecycle of one run: period
// resolution, metric snapshot, artifact export, recipient delivery, and
// the one allowed finalize transition.
type Generator struct {
	templates repositories.TemplateRepository
	reports   repositories.ReportRepository
	source    datasource.Source
	exports   *export.Registry
	channels  *notify.Registry
	hub       *websocket.Hub
	logger    *logrus.Logger
	now       func() time.Time
}

// NewGenerator wires a report generator.
func NewGenerator(
	templates repositories.TemplateRepository,
	reports repositories.ReportRepository,
	source datasource.Source,
	exports *export.Registry,
	channels *notify.Registry,
	hub *websocket.Hub,
	logger *logrus.Logger,
) *Generator {
	return &Generator{
		templates: templates,
		reports:   reports,
		source:    source,
		exports:   exports,
		channels:  channels,
		hub:       hub,
		logger:    logger,
		now:       time.Now,
	}
}

// Generate runs one generation for a template. When a completed report
// already covers the same period it is returned as-is and no new work
// happens; a failed or abandoned prior run does not block a fresh attempt,
// which appends a new record rather than touching the old one.
func (g *Generator) Generate(ctx context.Context, template *models.ReportTemplate) (*models.GeneratedReport, error) {
	startedAt := g.now()
	periodStart, periodEnd := periodFor(template, startedAt)

	log := g.logger.WithFields(logrus.Fields{
		"template_id":  template.ID,
		"template":     template.Name,
		"period_start": periodStart.Format(time.RFC3339),
		"period_end":   periodEnd.Format(time.RFC3339),
	})

	existing, err := g.reports.FindByPeriod(ctx, template.ID, periodStart)
	if err != nil {
		return nil, fmt.Errorf("failed to check for existing report: %w", err)
	}
	if existing != nil && existing.Status == models.ReportStatusCompleted {
		log.WithField("report_id", existing.ID).Info("Period already has a completed report, skipping")
		return existing, nil
	}

	report := &models.GeneratedReport{
		ID:          uuid.New().String(),
		TemplateID:  template.ID,
		GeneratedAt: startedAt,
		PeriodStart: periodStart,
		PeriodEnd:   periodEnd,
		Status:      models.ReportStatusGenerating,
	}
	if err := g.reports.Create(ctx, report); err != nil {
		return nil, fmt.Errorf("failed to create report record: %w", err)
	}

	report.Summary = g.collectMetrics(ctx, template, periodStart, periodEnd, log)

	if err := ctx.Err(); err != nil {
		report.Status = models.ReportStatusCancelled
		report.Error = err.Error()
		g.finish(report, template, startedAt, log)
		return report, fmt.Errorf("generation cancelled: %w", err)
	}

	g.renderArtifacts(ctx, report, template, log)

	if report.Status != models.ReportStatusFailed {
		report.Status = models.ReportStatusCompleted
		report.Deliveries = g.deliver(ctx, report, template, log)
	}

	g.finish(report, template, startedAt, log)

	if report.Status == models.ReportStatusFailed {
		return report, fmt.Errorf("report generation failed: %s", report.Error)
	}
	return report, nil
}

// collectMetrics computes the metric snapshot. An unavailable metric marks
// the summary partial instead of failing the run; a missing baseline only
// drops that metric's delta.
func (g *Generator) collectMetrics(ctx context.Context, template *models.ReportTemplate, start, end time.Time, log *logrus.Entry) models.ReportSummary {
	summary := models.ReportSummary{
		Values: make([]models.MetricValue, 0, len(template.Metrics)),
	}

	for _, spec := range template.Metrics {
		value := models.MetricValue{
			Metric:      spec.Metric,
			DisplayName: spec.DisplayName,
			Format:      spec.Format,
		}

		current, err := g.source.GetValue(ctx, spec.Metric, spec.Aggregation, start, end)
		if err != nil {
			log.WithError(err).WithField("metric", spec.Metric).Warn("Metric value unavailable")
			value.Unavailable = true
			summary.PartialData = true
			summary.Values = append(summary.Values, value)
			continue
		}
		value.Value = current

		if spec.Comparison != "" && spec.Comparison != models.ComparisonNone {
			baseStart, baseEnd := baselineWindow(spec.Comparison, start, end)
			baseline, err := g.source.GetValue(ctx, spec.Metric, spec.Aggregation, baseStart, baseEnd)
			if err != nil {
				log.WithError(err).WithField("metric", spec.Metric).Debug("Baseline unavailable, omitting delta")
			} else {
				delta := &models.MetricDelta{
					Baseline: baseline,
					Absolute: current - baseline,
				}
				if baseline != 0 {
					delta.Percent = (current - baseline) / baseline * 100
				}
				value.Delta = delta
			}
		}

		summary.Values = append(summary.Values, value)
	}

	return summary
}

// renderArtifacts produces one artifact per requested export format.
// Individual format failures are tolerated; the run fails only when every
// requested format fails.
func (g *Generator) renderArtifacts(ctx context.Context, report *models.GeneratedReport, template *models.ReportTemplate, log *logrus.Entry) {
	if len(template.ExportFormats) == 0 {
		return
	}

	report.Artifacts = make(map[string]string, len(template.ExportFormats))
	var failures []string

	for _, format := range template.ExportFormats {
		path, size, err := g.exports.Render(ctx, format, report, template)
		if err != nil {
			log.WithError(err).WithField("format", format).Error("Export format failed")
			failures = append(failures, fmt.Sprintf("%s: %v", format, err))
			continue
		}
		report.Artifacts[format] = path
		report.SizeBytes += size
	}

	if len(failures) == len(template.ExportFormats) {
		report.Status = models.ReportStatusFailed
		report.Error = "all export formats failed: " + strings.Join(failures, "; ")
	}
}

// deliver sends the report to each recipient according to its delivery
// mode. A recipient in both mode yields one record per leg, so a failed
// mail send never hides a successful dashboard broadcast. Failures are
// recorded per leg and never change the report's terminal status.
func (g *Generator) deliver(ctx context.Context, report *models.GeneratedReport, template *models.ReportTemplate, log *logrus.Entry) []models.DeliveryRecord {
	if len(template.Recipients) == 0 {
		g.broadcast(report, template)
		return nil
	}

	subject, body := g.composeMessage(report, template)
	records := make([]models.DeliveryRecord, 0, len(template.Recipients))
	dashboardNotified := false

	for _, recipient := range template.Recipients {
		if recipient.Mode == models.DeliveryModeChannel || recipient.Mode == models.DeliveryModeBoth {
			record := models.DeliveryRecord{
				Address: recipient.Address,
				Mode:    models.DeliveryModeChannel,
			}
			if err := g.sendMail(ctx, recipient, subject, body); err != nil {
				log.WithError(err).WithField("recipient", recipient.Address).Error("Report delivery failed")
				record.Error = err.Error()
				metrics.DeliveriesTotal.WithLabelValues(string(models.ChannelMail), "failure").Inc()
			} else {
				record.Delivered = true
				metrics.DeliveriesTotal.WithLabelValues(string(models.ChannelMail), "success").Inc()
			}
			records = append(records, record)
		}

		if recipient.Mode == models.DeliveryModeDashboard || recipient.Mode == models.DeliveryModeBoth {
			if !dashboardNotified {
				g.broadcast(report, template)
				dashboardNotified = true
			}
			records = append(records, models.DeliveryRecord{
				Address:   recipient.Address,
				Mode:      models.DeliveryModeDashboard,
				Delivered: true,
			})
		}
	}

	if !dashboardNotified {
		g.broadcast(report, template)
	}
	return records
}

func (g *Generator) sendMail(ctx context.Context, recipient models.Recipient, subject, body string) error {
	channel, err := g.channels.Get(models.ChannelMail)
	if err != nil {
		return err
	}
	return channel.Send(ctx, recipient.Address, subject, body)
}

func (g *Generator) broadcast(report *models.GeneratedReport, template *models.ReportTemplate) {
	if g.hub == nil {
		return
	}
	g.hub.Broadcast(websocket.ReportGeneratedMessage(report.ID, template.ID, template.Name, string(report.Status)))
}

// composeMessage builds the plain-text recipient message from the summary.
func (g *Generator) composeMessage(report *models.GeneratedReport, template *models.ReportTemplate) (string, string) {
	subject := fmt.Sprintf("%s: %s to %s",
		template.Name,
		report.PeriodStart.Format("2006-01-02"),
		report.PeriodEnd.Format("2006-01-02"),
	)

	var body strings.Builder
	fmt.Fprintf(&body, "%s\n", template.Name)
	if template.Description != "" {
		fmt.Fprintf(&body, "%s\n", template.Description)
	}
	fmt.Fprintf(&body, "Period: %s to %s\n\n",
		report.PeriodStart.Format(time.RFC3339),
		report.PeriodEnd.Format(time.RFC3339),
	)

	for _, value := range report.Summary.Values {
		if value.Unavailable {
			fmt.Fprintf(&body, "%s: unavailable\n", value.DisplayName)
			continue
		}
		fmt.Fprintf(&body, "%s: %s", value.DisplayName, formatMetric(value))
		if value.Delta != nil {
			fmt.Fprintf(&body, " (%+.1f%% vs baseline)", value.Delta.Percent)
		}
		body.WriteString("\n")
	}
	if report.Summary.PartialData {
		body.WriteString("\nNote: some metric sources were unavailable for this period.\n")
	}

	return subject, body.String()
}

func formatMetric(value models.MetricValue) string {
	switch value.Format {
	case models.FormatCurrency:
		return fmt.Sprintf("$%.2f", value.Value)
	case models.FormatPercentage:
		return fmt.Sprintf("%.1f%%", value.Value)
	case models.FormatText:
		return value.Text
	default:
		return fmt.Sprintf("%.2f", value.Value)
	}
}

// finish finalizes the report record and, for a completed run, advances the
// template's schedule bookkeeping. A failed or cancelled run leaves
// last_generated and next_generation untouched so the template stays due and
// the next sweep re-attempts the same period.
func (g *Generator) finish(report *models.GeneratedReport, template *models.ReportTemplate, startedAt time.Time, log *logrus.Entry) {
	report.DurationMS = g.now().Sub(startedAt).Milliseconds()

	// Finalization uses a fresh context so a timed-out run still lands its
	// terminal state in the audit trail.
	finalizeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := g.reports.Finalize(finalizeCtx, report); err != nil {
		log.WithError(err).Error("Failed to finalize report record")
	}

	if report.Status == models.ReportStatusCompleted {
		var next *time.Time
		if nextRun, err := NextRun(template.Frequency, template.Schedule, startedAt); err != nil {
			log.WithError(err).Error("Failed to compute next generation time")
		} else if !nextRun.IsZero() {
			next = &nextRun
		}
		if err := g.templates.MarkGenerated(finalizeCtx, template.ID, startedAt, next); err != nil {
			log.WithError(err).Error("Failed to update template generation bookkeeping")
		}
	}

	metrics.GenerationDuration.Observe(float64(report.DurationMS) / 1000)
	switch report.Status {
	case models.ReportStatusCompleted:
		metrics.ReportsGenerated.Inc()
		log.WithFields(logrus.Fields{
			"report_id":   report.ID,
			"duration_ms": report.DurationMS,
			"size_bytes":  report.SizeBytes,
			"partial":     report.Summary.PartialData,
		}).Info("Report generated")
	default:
		metrics.GenerationFailures.Inc()
		log.WithFields(logrus.Fields{
			"report_id": report.ID,
			"status":    report.Status,
			"error":     report.Error,
		}).Error("Report generation did not complete")
	}
}
