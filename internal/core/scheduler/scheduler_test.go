package scheduler

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pulsehq/insight-engine/internal/core/alerting"
	"github.com/pulsehq/insight-engine/internal/core/reporting"
	"github.com/pulsehq/insight-engine/internal/database/models"
	"github.com/pulsehq/insight-engine/internal/export"
	"github.com/pulsehq/insight-engine/internal/notify"
)

type stubTemplateRepo struct {
	mu        sync.Mutex
	templates map[string]*models.ReportTemplate
	failList  bool
}

func (r *stubTemplateRepo) GetAll(ctx context.Context) ([]*models.ReportTemplate, error) {
	return r.GetActive(ctx)
}

func (r *stubTemplateRepo) GetActive(ctx context.Context) ([]*models.ReportTemplate, error) {
	if r.failList {
		return nil, fmt.Errorf("database unavailable")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.ReportTemplate
	for _, t := range r.templates {
		if t.IsActive {
			out = append(out, t)
		}
	}
	return out, nil
}

func (r *stubTemplateRepo) GetByID(ctx context.Context, id string) (*models.ReportTemplate, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.templates[id]
	if !ok {
		return nil, fmt.Errorf("template %s not found", id)
	}
	return t, nil
}

func (r *stubTemplateRepo) Upsert(ctx context.Context, template *models.ReportTemplate) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.templates[template.ID] = template
	return nil
}

func (r *stubTemplateRepo) SetActive(ctx context.Context, id string, active bool) error { return nil }

func (r *stubTemplateRepo) MarkGenerated(ctx context.Context, id string, generatedAt time.Time, next *time.Time) error {
	return nil
}

type stubReportRepo struct {
	mu      sync.Mutex
	created int
	block   chan struct{}
}

func (r *stubReportRepo) Create(ctx context.Context, report *models.GeneratedReport) error {
	r.mu.Lock()
	r.created++
	r.mu.Unlock()
	if r.block != nil {
		<-r.block
	}
	return nil
}

func (r *stubReportRepo) Finalize(ctx context.Context, report *models.GeneratedReport) error {
	return nil
}

func (r *stubReportRepo) GetByID(ctx context.Context, id string) (*models.GeneratedReport, error) {
	return nil, fmt.Errorf("not found")
}

func (r *stubReportRepo) List(ctx context.Context, templateID string, limit int) ([]*models.GeneratedReport, error) {
	return nil, nil
}

func (r *stubReportRepo) FindByPeriod(ctx context.Context, templateID string, periodStart time.Time) (*models.GeneratedReport, error) {
	return nil, nil
}

func (r *stubReportRepo) createdCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.created
}

type stubRuleRepo struct{}

func (r *stubRuleRepo) GetAll(ctx context.Context) ([]*models.AlertRule, error)    { return nil, nil }
func (r *stubRuleRepo) GetActive(ctx context.Context) ([]*models.AlertRule, error) { return nil, nil }
func (r *stubRuleRepo) GetByID(ctx context.Context, id string) (*models.AlertRule, error) {
	return nil, fmt.Errorf("not found")
}
func (r *stubRuleRepo) Upsert(ctx context.Context, rule *models.AlertRule) error       { return nil }
func (r *stubRuleRepo) SetActive(ctx context.Context, id string, active bool) error    { return nil }
func (r *stubRuleRepo) RecordTrigger(ctx context.Context, id string, at time.Time) error {
	return nil
}

type stubNotifRepo struct{}

func (r *stubNotifRepo) GetAll(ctx context.Context) ([]*models.NotificationTemplate, error) {
	return nil, nil
}
func (r *stubNotifRepo) GetByID(ctx context.Context, id string) (*models.NotificationTemplate, error) {
	return nil, fmt.Errorf("not found")
}
func (r *stubNotifRepo) Upsert(ctx context.Context, template *models.NotificationTemplate) error {
	return nil
}

type stubFiringRepo struct{}

func (r *stubFiringRepo) Create(ctx context.Context, firing *models.AlertFiring) error { return nil }
func (r *stubFiringRepo) List(ctx context.Context, ruleID string, limit int) ([]*models.AlertFiring, error) {
	return nil, nil
}

type stubSource struct{}

func (s *stubSource) GetValue(ctx context.Context, metric string, agg models.Aggregation, start, end time.Time) (float64, error) {
	return 1, nil
}

func silentLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

func newTestScheduler(templates *stubTemplateRepo, reports *stubReportRepo) *Scheduler {
	logger := silentLogger()
	generator := reporting.NewGenerator(
		templates, reports, &stubSource{},
		export.NewRegistry(logger), notify.NewRegistry(logger), nil, logger,
	)
	engine := alerting.NewEngine(
		&stubRuleRepo{}, &stubNotifRepo{}, &stubFiringRepo{},
		&stubSource{}, alerting.NewLimiter(), notify.NewRegistry(logger), nil, logger,
		alerting.EngineOptions{EvaluationWindow: time.Hour, DispatchTimeout: time.Second, MaxConcurrent: 2},
	)
	return New(templates, generator, engine, logger, Options{
		TickInterval:             time.Minute,
		ReportTimeout:            5 * time.Second,
		MaxConcurrentGenerations: 2,
	})
}

func dueTemplate(id string, next time.Time) *models.ReportTemplate {
	return &models.ReportTemplate{
		ID:             id,
		Name:           id,
		Frequency:      models.FrequencyDaily,
		Schedule:       models.Schedule{Time: "07:00", Timezone: "UTC"},
		IsActive:       true,
		NextGeneration: &next,
	}
}

func TestDue(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	s := newTestScheduler(&stubTemplateRepo{templates: map[string]*models.ReportTemplate{}}, &stubReportRepo{})

	past := now.Add(-time.Minute)
	future := now.Add(time.Minute)

	assert.True(t, s.due(dueTemplate("a", past), now))
	assert.True(t, s.due(dueTemplate("b", now), now))
	assert.False(t, s.due(dueTemplate("c", future), now))

	noNext := dueTemplate("d", past)
	noNext.NextGeneration = nil
	assert.False(t, s.due(noNext, now))

	onDemand := dueTemplate("e", past)
	onDemand.Frequency = models.FrequencyOnDemand
	assert.False(t, s.due(onDemand, now))
}

func TestReportSweep_GeneratesDueTemplates(t *testing.T) {
	now := time.Now()
	past := now.Add(-time.Minute)
	future := now.Add(time.Hour)

	templates := &stubTemplateRepo{templates: map[string]*models.ReportTemplate{
		"due-1":   dueTemplate("due-1", past),
		"due-2":   dueTemplate("due-2", past),
		"not-due": dueTemplate("not-due", future),
	}}
	reports := &stubReportRepo{}
	s := newTestScheduler(templates, reports)

	s.reportSweep(context.Background())

	assert.Equal(t, 2, reports.createdCount())
}

func TestReportSweep_SkipsWhenListingFails(t *testing.T) {
	templates := &stubTemplateRepo{failList: true}
	reports := &stubReportRepo{}
	s := newTestScheduler(templates, reports)

	s.reportSweep(context.Background())

	stats := s.Stats()
	assert.Equal(t, int64(1), stats.TicksSkipped)
	assert.NotEmpty(t, stats.LastError)
	assert.Zero(t, reports.createdCount())
}

func TestTriggerReport_OnDemand(t *testing.T) {
	templates := &stubTemplateRepo{templates: map[string]*models.ReportTemplate{
		"tpl": {
			ID:        "tpl",
			Name:      "On Demand",
			Frequency: models.FrequencyOnDemand,
			IsActive:  true,
		},
	}}
	reports := &stubReportRepo{}
	s := newTestScheduler(templates, reports)

	report, err := s.TriggerReport(context.Background(), "tpl")
	require.NoError(t, err)
	assert.Equal(t, models.ReportStatusCompleted, report.Status)
	assert.Equal(t, 1, reports.createdCount())
}

func TestTriggerReport_InactiveTemplate(t *testing.T) {
	templates := &stubTemplateRepo{templates: map[string]*models.ReportTemplate{
		"tpl": {ID: "tpl", Frequency: models.FrequencyOnDemand},
	}}
	s := newTestScheduler(templates, &stubReportRepo{})

	_, err := s.TriggerReport(context.Background(), "tpl")
	assert.ErrorIs(t, err, ErrTemplateInactive)
}

func TestTriggerReport_UnknownTemplate(t *testing.T) {
	s := newTestScheduler(&stubTemplateRepo{templates: map[string]*models.ReportTemplate{}}, &stubReportRepo{})

	_, err := s.TriggerReport(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrTemplateNotFound)
}

func TestTriggerReport_ExclusivityToken(t *testing.T) {
	block := make(chan struct{})
	templates := &stubTemplateRepo{templates: map[string]*models.ReportTemplate{
		"tpl": {
			ID:        "tpl",
			Name:      "Slow",
			Frequency: models.FrequencyOnDemand,
			IsActive:  true,
		},
	}}
	reports := &stubReportRepo{block: block}
	s := newTestScheduler(templates, reports)

	started := make(chan struct{})
	done := make(chan struct{})
	go func() {
		close(started)
		s.TriggerReport(context.Background(), "tpl")
		close(done)
	}()
	<-started

	// Wait for the first run to take the token and park in Create.
	require.Eventually(t, func() bool {
		return reports.createdCount() == 1
	}, time.Second, 5*time.Millisecond)

	_, err := s.TriggerReport(context.Background(), "tpl")
	assert.ErrorIs(t, err, ErrGenerationInFlight)

	close(block)
	<-done

	// Token released; a new run is allowed.
	_, err = s.TriggerReport(context.Background(), "tpl")
	assert.NoError(t, err)
}

func TestStats_Snapshot(t *testing.T) {
	s := newTestScheduler(&stubTemplateRepo{templates: map[string]*models.ReportTemplate{}}, &stubReportRepo{})

	stats := s.Stats()
	assert.False(t, stats.Running)
	assert.Zero(t, stats.TicksTotal)
}
