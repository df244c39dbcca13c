package handlers

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pulsehq/insight-engine/internal/core/reporting"
	"github.com/pulsehq/insight-engine/internal/core/scheduler"
	"github.com/pulsehq/insight-engine/internal/database/models"
	"github.com/pulsehq/insight-engine/internal/export"
	"github.com/pulsehq/insight-engine/internal/notify"
)

type fixedTemplateRepo struct {
	templates map[string]*models.ReportTemplate
}

func (r *fixedTemplateRepo) GetAll(ctx context.Context) ([]*models.ReportTemplate, error) {
	return nil, nil
}

func (r *fixedTemplateRepo) GetActive(ctx context.Context) ([]*models.ReportTemplate, error) {
	return nil, nil
}

func (r *fixedTemplateRepo) GetByID(ctx context.Context, id string) (*models.ReportTemplate, error) {
	t, ok := r.templates[id]
	if !ok {
		return nil, fmt.Errorf("template %s not found", id)
	}
	return t, nil
}

func (r *fixedTemplateRepo) Upsert(ctx context.Context, template *models.ReportTemplate) error {
	return nil
}

func (r *fixedTemplateRepo) SetActive(ctx context.Context, id string, active bool) error {
	return nil
}

func (r *fixedTemplateRepo) MarkGenerated(ctx context.Context, id string, generatedAt time.Time, next *time.Time) error {
	return nil
}

type recordingReportRepo struct {
	created int
}

func (r *recordingReportRepo) Create(ctx context.Context, report *models.GeneratedReport) error {
	r.created++
	return nil
}

func (r *recordingReportRepo) Finalize(ctx context.Context, report *models.GeneratedReport) error {
	return nil
}

func (r *recordingReportRepo) GetByID(ctx context.Context, id string) (*models.GeneratedReport, error) {
	return nil, fmt.Errorf("report %s not found", id)
}

func (r *recordingReportRepo) List(ctx context.Context, templateID string, limit int) ([]*models.GeneratedReport, error) {
	return nil, nil
}

func (r *recordingReportRepo) FindByPeriod(ctx context.Context, templateID string, periodStart time.Time) (*models.GeneratedReport, error) {
	return nil, nil
}

type emptySource struct{}

func (emptySource) GetValue(ctx context.Context, metric string, agg models.Aggregation, start, end time.Time) (float64, error) {
	return 0, fmt.Errorf("no samples")
}

func newGenerateRouter(t *testing.T, templates map[string]*models.ReportTemplate) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)

	tplRepo := &fixedTemplateRepo{templates: templates}
	gen := reporting.NewGenerator(
		tplRepo,
		&recordingReportRepo{},
		emptySource{},
		export.NewRegistry(logger),
		notify.NewRegistry(logger),
		nil,
		logger,
	)
	sched := scheduler.New(tplRepo, gen, nil, logger, scheduler.Options{
		TickInterval:  time.Minute,
		ReportTimeout: 5 * time.Second,
	})

	h := NewHandlers(nil, nil, logger, nil, sched)
	router := gin.New()
	router.POST("/api/templates/:id/generate", h.GenerateReport)
	return router
}

func TestGenerateReport_StatusMapping(t *testing.T) {
	templates := map[string]*models.ReportTemplate{
		"dormant": {ID: "dormant", Name: "Dormant", Frequency: models.FrequencyOnDemand},
		"live":    {ID: "live", Name: "Live", Frequency: models.FrequencyOnDemand, IsActive: true},
	}

	tests := []struct {
		name       string
		templateID string
		wantStatus int
	}{
		{name: "unknown template", templateID: "missing", wantStatus: http.StatusNotFound},
		{name: "inactive template", templateID: "dormant", wantStatus: http.StatusBadRequest},
		{name: "active template", templateID: "live", wantStatus: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := newGenerateRouter(t, templates)

			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/api/templates/"+tt.templateID+"/generate", nil)
			router.ServeHTTP(w, req)

			require.Equal(t, tt.wantStatus, w.Code)
			if tt.wantStatus == http.StatusOK {
				assert.Contains(t, w.Body.String(), `"success":true`)
			} else {
				assert.Contains(t, w.Body.String(), `"success":false`)
			}
		})
	}
}
