// Package scheduler drives the engine's periodic tick: a report sweep that
// materializes due templates and an alert sweep that evaluates every active
// rule. Sweeps run concurrently within a tick; a tick that is still running
// when the next one comes due is skipped rather than stacked.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/pulsehq/insight-engine/internal/core/alerting"
	"github.com/pulsehq/insight-engine/internal/core/reporting"
	"github.com/pulsehq/insight-engine/internal/database/models"
	"github.com/pulsehq/insight-engine/internal/database/repositories"
	"github.com/pulsehq/insight-engine/internal/metrics"
)

// TriggerReport failure modes, distinguished so callers can map them to the
// right response.
var (
	ErrTemplateNotFound   = errors.New("template not found")
	ErrTemplateInactive   = errors.New("template is not active")
	ErrGenerationInFlight = errors.New("generation already in flight")
)

// Options tune the tick loop.
type Options struct {
	// TickInterval is the period between sweeps.
	TickInterval time.Duration
	// ReportTimeout bounds one template's generation run.
	ReportTimeout time.Duration
	// MaxConcurrentGenerations bounds parallel report generation per sweep.
	MaxConcurrentGenerations int
}

// TickStats is a snapshot of scheduler activity, served by the stats API.
type TickStats struct {
	Running          bool       `json:"running"`
	LastTick         *time.Time `json:"last_tick,omitempty"`
	TicksTotal       int64      `json:"ticks_total"`
	TicksSkipped     int64      `json:"ticks_skipped"`
	ReportsGenerated int64      `json:"reports_generated"`
	AlertsFired      int64      `json:"alerts_fired"`
	LastError        string     `json:"last_error,omitempty"`
}

// Scheduler owns the periodic tick and the per-template exclusivity tokens
// that prevent two generation runs of the same template from overlapping.
type Scheduler struct {
	cron      *cron.Cron
	templates repositories.TemplateRepository
	generator *reporting.Generator
	engine    *alerting.Engine
	logger    *logrus.Logger
	opts      Options

	// inFlight holds the exclusivity token per template ID.
	inFlightMu sync.Mutex
	inFlight   map[string]bool

	statsMu sync.RWMutex
	stats   TickStats

	running bool
	mu      sync.Mutex
	now     func() time.Time
}

// New creates a scheduler. Call Start to begin ticking.
func New(
	templates repositories.TemplateRepository,
	generator *reporting.Generator,
	engine *alerting.Engine,
	logger *logrus.Logger,
	opts Options,
) *Scheduler {
	if opts.MaxConcurrentGenerations <= 0 {
		opts.MaxConcurrentGenerations = 1
	}
	return &Scheduler{
		cron: cron.New(
			cron.WithChain(
				cron.SkipIfStillRunning(cron.DefaultLogger),
				cron.Recover(cron.DefaultLogger),
			),
		),
		templates: templates,
		generator: generator,
		engine:    engine,
		logger:    logger,
		opts:      opts,
		inFlight:  make(map[string]bool),
		now:       time.Now,
	}
}

// Start registers the tick job and starts the cron loop.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("scheduler is already running")
	}

	spec := fmt.Sprintf("@every %s", s.opts.TickInterval)
	if _, err := s.cron.AddFunc(spec, s.tick); err != nil {
		return fmt.Errorf("failed to register tick job: %w", err)
	}

	s.cron.Start()
	s.running = true
	s.setRunning(true)
	s.logger.WithField("tick_interval", s.opts.TickInterval.String()).Info("Scheduler started")

	return nil
}

// Stop halts the cron loop and waits for in-flight sweeps to finish.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return fmt.Errorf("scheduler is not running")
	}

	ctx := s.cron.Stop()
	select {
	case <-ctx.Done():
		s.logger.Info("All scheduled sweeps completed")
	case <-time.After(30 * time.Second):
		s.logger.Warn("Timeout waiting for scheduled sweeps to complete")
	}

	s.running = false
	s.setRunning(false)
	s.logger.Info("Scheduler stopped")

	return nil
}

// Stats returns a snapshot of scheduler activity.
func (s *Scheduler) Stats() TickStats {
	s.statsMu.RLock()
	defer s.statsMu.RUnlock()
	return s.stats
}

// tick runs one sweep cycle. The report and alert sweeps are independent
// and run concurrently; a failure in one never blocks the other.
func (s *Scheduler) tick() {
	started := s.now()
	ctx := context.Background()

	s.statsMu.Lock()
	s.stats.TicksTotal++
	s.stats.LastTick = &started
	s.statsMu.Unlock()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		s.reportSweep(ctx)
	}()
	go func() {
		defer wg.Done()
		s.alertSweep(ctx)
	}()
	wg.Wait()

	elapsed := s.now().Sub(started)
	metrics.TickDuration.Observe(elapsed.Seconds())
	s.logger.WithField("duration", elapsed.String()).Debug("Tick completed")
}

// reportSweep finds templates whose next_generation has come due and runs
// their generation with bounded parallelism. A template already generating
// holds its exclusivity token and is skipped, not queued.
func (s *Scheduler) reportSweep(ctx context.Context) {
	templates, err := s.templates.GetActive(ctx)
	if err != nil {
		s.skipTick(err, "Failed to load active templates, skipping report sweep")
		return
	}

	now := s.now()
	var wg sync.WaitGroup
	sem := make(chan struct{}, s.opts.MaxConcurrentGenerations)

	for _, template := range templates {
		metrics.TemplatesEvaluated.Inc()
		if !s.due(template, now) {
			continue
		}
		if !s.acquire(template.ID) {
			s.logger.WithField("template_id", template.ID).
				Debug("Generation already in flight, skipping template")
			continue
		}

		wg.Add(1)
		sem <- struct{}{}
		go func(template *models.ReportTemplate) {
			defer wg.Done()
			defer func() { <-sem }()
			defer s.release(template.ID)

			s.runGeneration(ctx, template)
		}(template)
	}
	wg.Wait()
}

func (s *Scheduler) due(template *models.ReportTemplate, now time.Time) bool {
	if template.Frequency == models.FrequencyOnDemand {
		return false
	}
	return template.NextGeneration != nil && !template.NextGeneration.After(now)
}

func (s *Scheduler) runGeneration(ctx context.Context, template *models.ReportTemplate) {
	runCtx, cancel := context.WithTimeout(ctx, s.opts.ReportTimeout)
	defer cancel()

	report, err := s.generator.Generate(runCtx, template)
	if err != nil {
		s.recordError(err)
		return
	}
	if report.Status == models.ReportStatusCompleted {
		s.statsMu.Lock()
		s.stats.ReportsGenerated++
		s.statsMu.Unlock()
	}
}

// TriggerReport runs an on-demand generation for one template, honoring the
// same exclusivity token the sweep uses.
func (s *Scheduler) TriggerReport(ctx context.Context, templateID string) (*models.GeneratedReport, error) {
	template, err := s.templates.GetByID(ctx, templateID)
	if err != nil {
		return nil, fmt.Errorf("template %s: %w: %v", templateID, ErrTemplateNotFound, err)
	}
	if !template.IsActive {
		return nil, fmt.Errorf("template %s: %w", templateID, ErrTemplateInactive)
	}

	if !s.acquire(templateID) {
		return nil, fmt.Errorf("template %s: %w", templateID, ErrGenerationInFlight)
	}
	defer s.release(templateID)

	runCtx, cancel := context.WithTimeout(ctx, s.opts.ReportTimeout)
	defer cancel()

	report, err := s.generator.Generate(runCtx, template)
	if err != nil {
		return report, err
	}
	if report.Status == models.ReportStatusCompleted {
		s.statsMu.Lock()
		s.stats.ReportsGenerated++
		s.statsMu.Unlock()
	}
	return report, nil
}

func (s *Scheduler) alertSweep(ctx context.Context) {
	firings, err := s.engine.EvaluateAll(ctx)
	if err != nil {
		s.skipTick(err, "Failed to run alert sweep")
		return
	}
	if len(firings) > 0 {
		s.statsMu.Lock()
		s.stats.AlertsFired += int64(len(firings))
		s.statsMu.Unlock()
	}
}

func (s *Scheduler) acquire(templateID string) bool {
	s.inFlightMu.Lock()
	defer s.inFlightMu.Unlock()
	if s.inFlight[templateID] {
		return false
	}
	s.inFlight[templateID] = true
	return true
}

func (s *Scheduler) release(templateID string) {
	s.inFlightMu.Lock()
	delete(s.inFlight, templateID)
	s.inFlightMu.Unlock()
}

// skipTick records a sweep-level failure. The tick resumes on the next
// interval with no other recovery.
func (s *Scheduler) skipTick(err error, message string) {
	metrics.TicksSkipped.Inc()
	s.recordError(err)
	s.logger.WithError(err).Error(message)
	s.statsMu.Lock()
	s.stats.TicksSkipped++
	s.statsMu.Unlock()
}

func (s *Scheduler) recordError(err error) {
	s.statsMu.Lock()
	s.stats.LastError = err.Error()
	s.statsMu.Unlock()
}

func (s *Scheduler) setRunning(running bool) {
	s.statsMu.Lock()
	s.stats.Running = running
	s.statsMu.Unlock()
}
