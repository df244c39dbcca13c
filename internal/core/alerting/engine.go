package alerting

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/pulsehq/insight-engine/internal/core/render"
	"github.com/pulsehq/insight-engine/internal/database/models"
	"github.com/pulsehq/insight-engine/internal/database/repositories"
	"github.com/pulsehq/insight-engine/internal/datasource"
	"github.com/pulsehq/insight-engine/internal/metrics"
	"github.com/pulsehq/insight-engine/internal/notify"
	"github.com/pulsehq/insight-engine/internal/websocket"
)

// EngineOptions tune how the alert engine evaluates rules.
type EngineOptions struct {
	// EvaluationWindow is the trailing period the current value is
	// aggregated over.
	EvaluationWindow time.Duration
	// DispatchTimeout bounds each individual channel send.
	DispatchTimeout time.Duration
	// MaxConcurrent bounds parallel rule evaluation per sweep.
	MaxConcurrent int
	// Business hours window, local to Location. A rule with
	// business_hours_only set is evaluated only inside [Start, End).
	BusinessHoursStart int
	BusinessHoursEnd   int
	Location           *time.Location
}

// Engine evaluates alert rules against the metric data source and
// dispatches notifications for admitted firings.
type Engine struct {
	rules          repositories.RuleRepository
	notifTemplates repositories.NotificationTemplateRepository
	firings        repositories.FiringRepository
	source         datasource.Source
	limiter        *Limiter
	channels       *notify.Registry
	hub            *websocket.Hub
	logger         *logrus.Logger
	opts           EngineOptions
	now            func() time.Time
}

// NewEngine wires an alert engine.
func NewEngine(
	rules repositories.RuleRepository,
	notifTemplates repositories.NotificationTemplateRepository,
	firings repositories.FiringRepository,
	source datasource.Source,
	limiter *Limiter,
	channels *notify.Registry,
	hub *websocket.Hub,
	logger *logrus.Logger,
	opts EngineOptions,
) *Engine {
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = 1
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	return &Engine{
		rules:          rules,
		notifTemplates: notifTemplates,
		firings:        firings,
		source:         source,
		limiter:        limiter,
		channels:       channels,
		hub:            hub,
		logger:         logger,
		opts:           opts,
		now:            time.Now,
	}
}

// Seed primes the frequency limiter's cooldown state from the persisted
// last_triggered timestamps, so a restart does not reset cooldowns.
func (e *Engine) Seed(ctx context.Context) error {
	rules, err := e.rules.GetAll(ctx)
	if err != nil {
		return fmt.Errorf("failed to load rules for limiter seed: %w", err)
	}
	for _, rule := range rules {
		if rule.LastTriggered != nil {
			e.limiter.Seed(rule.ID, *rule.LastTriggered)
		}
	}
	return nil
}

// EvaluateAll runs one evaluation sweep over all active rules with bounded
// parallelism and returns the admitted firings. Per-rule failures are
// logged and skipped; they never abort the sweep.
func (e *Engine) EvaluateAll(ctx context.Context) ([]*models.AlertFiring, error) {
	rules, err := e.rules.GetActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load active rules: %w", err)
	}

	var (
		mu      sync.Mutex
		firings []*models.AlertFiring
		wg      sync.WaitGroup
		sem     = make(chan struct{}, e.opts.MaxConcurrent)
	)

	for _, rule := range rules {
		wg.Add(1)
		sem <- struct{}{}
		go func(rule *models.AlertRule) {
			defer wg.Done()
			defer func() { <-sem }()

			metrics.RulesEvaluated.Inc()
			if firing := e.evaluateRule(ctx, rule); firing != nil {
				mu.Lock()
				firings = append(firings, firing)
				mu.Unlock()
			}
		}(rule)
	}
	wg.Wait()

	return firings, nil
}

// evaluateRule runs one rule end to end: value fetch, condition check,
// limiter admission, dispatch, audit. Returns nil when the rule did not
// produce an admitted firing.
func (e *Engine) evaluateRule(ctx context.Context, rule *models.AlertRule) *models.AlertFiring {
	now := e.now()
	log := e.logger.WithFields(logrus.Fields{
		"rule_id": rule.ID,
		"rule":    rule.Name,
		"metric":  rule.Metric,
	})

	if rule.BusinessHoursOnly && !e.inBusinessHours(now) {
		log.Debug("Outside business hours, skipping rule")
		return nil
	}

	end := now
	start := now.Add(-e.opts.EvaluationWindow)
	current, err := e.source.GetValue(ctx, rule.Metric, models.AggregationAvg, start, end)
	if err != nil {
		log.WithError(err).Warn("Current metric value unavailable, skipping rule")
		return nil
	}

	var baseline float64
	if NeedsBaseline(rule.Condition) {
		baseStart, baseEnd := e.baselineWindow(rule.Condition.Basis, start, end)
		baseline, err = e.source.GetValue(ctx, rule.Metric, models.AggregationAvg, baseStart, baseEnd)
		if err != nil {
			log.WithError(err).Warn("Baseline metric value unavailable, skipping rule")
			return nil
		}
	}

	triggered, err := EvaluateCondition(rule.Condition, current, baseline)
	if err != nil {
		log.WithError(err).Warn("Condition evaluation failed, skipping rule")
		return nil
	}
	if !triggered {
		return nil
	}

	cooldown := time.Duration(rule.Limit.CooldownMinutes) * time.Minute
	if !e.limiter.Admit(rule.ID, rule.Limit.MaxPerHour, rule.Limit.MaxPerDay, cooldown, now) {
		metrics.AlertsSuppressed.Inc()
		log.Debug("Firing suppressed by frequency limit")
		return nil
	}

	if err := e.rules.RecordTrigger(ctx, rule.ID, now); err != nil {
		log.WithError(err).Error("Failed to record rule trigger")
	}
	metrics.AlertsFired.WithLabelValues(string(rule.Severity)).Inc()

	firing := &models.AlertFiring{
		ID:             uuid.New().String(),
		RuleID:         rule.ID,
		FiredAt:        now,
		MetricValue:    current,
		Threshold:      rule.Condition.Threshold,
		UpperThreshold: rule.Condition.UpperThreshold,
		Severity:       rule.Severity,
	}
	firing.Outcomes = e.dispatch(ctx, rule, current, baseline, now, log)

	if err := e.firings.Create(ctx, firing); err != nil {
		log.WithError(err).Error("Failed to persist alert firing")
	}

	if e.hub != nil {
		e.hub.Broadcast(websocket.AlertFiredMessage(
			rule.ID, rule.Name, rule.Metric, current, rule.Condition.Threshold, string(rule.Severity),
		))
	}

	log.WithFields(logrus.Fields{
		"firing_id": firing.ID,
		"value":     current,
		"threshold": rule.Condition.Threshold,
		"severity":  rule.Severity,
		"channels":  len(firing.Outcomes),
	}).Info("Alert fired")

	return firing
}

// dispatch renders and sends the firing to every configured channel.
// Channels are attempted independently; one failure never blocks the rest.
func (e *Engine) dispatch(ctx context.Context, rule *models.AlertRule, current, baseline float64, now time.Time, log *logrus.Entry) []models.ChannelOutcome {
	vars := e.notificationVars(rule, current, baseline, now)
	outcomes := make([]models.ChannelOutcome, 0, len(rule.Channels))

	for _, binding := range rule.Channels {
		outcome := models.ChannelOutcome{
			Type:   binding.Type,
			Target: binding.Target,
		}

		subject, body := e.renderNotification(ctx, rule, binding, vars, log)
		channel, err := e.channels.Get(binding.Type)
		if err != nil {
			outcome.Error = err.Error()
			metrics.DeliveriesTotal.WithLabelValues(string(binding.Type), "failure").Inc()
			log.WithError(err).WithField("channel", binding.Type).Error("Notification channel unavailable")
			outcomes = append(outcomes, outcome)
			continue
		}

		sendCtx, cancel := context.WithTimeout(ctx, e.opts.DispatchTimeout)
		err = channel.Send(sendCtx, binding.Target, subject, body)
		cancel()

		if err != nil {
			outcome.Error = err.Error()
			metrics.DeliveriesTotal.WithLabelValues(string(binding.Type), "failure").Inc()
			log.WithError(err).WithFields(logrus.Fields{
				"channel": binding.Type,
				"target":  binding.Target,
			}).Error("Notification delivery failed")
		} else {
			outcome.Delivered = true
			metrics.DeliveriesTotal.WithLabelValues(string(binding.Type), "success").Inc()
		}
		outcomes = append(outcomes, outcome)
	}

	return outcomes
}

// renderNotification resolves the channel's notification template and
// substitutes variables. A missing template degrades to a built-in plain
// message rather than dropping the notification.
func (e *Engine) renderNotification(ctx context.Context, rule *models.AlertRule, binding models.NotificationChannel, vars map[string]string, log *logrus.Entry) (string, string) {
	subject := fmt.Sprintf("Alert: %s", rule.Name)
	body := fmt.Sprintf("Metric %s is %s (threshold %s) at %s",
		vars["metric_name"], vars["current_value"], vars["threshold_value"], vars["timestamp"])

	if binding.TemplateID == "" {
		return subject, body
	}

	template, err := e.notifTemplates.GetByID(ctx, binding.TemplateID)
	if err != nil {
		log.WithError(err).WithField("notification_template", binding.TemplateID).
			Warn("Notification template unavailable, using fallback message")
		return subject, body
	}

	subject, missingSubject := render.Render(template.Subject, vars)
	body, missingBody := render.Render(template.Body, vars)
	if len(missingSubject) > 0 || len(missingBody) > 0 {
		log.WithFields(logrus.Fields{
			"notification_template": template.ID,
			"missing":               append(missingSubject, missingBody...),
		}).Debug("Notification template references unresolved variables")
	}
	if template.UseBranding {
		subject = "[PulseHQ] " + subject
	}
	return subject, body
}

func (e *Engine) notificationVars(rule *models.AlertRule, current, baseline float64, now time.Time) map[string]string {
	vars := map[string]string{
		"rule_name":       rule.Name,
		"metric_name":     rule.Metric,
		"current_value":   fmt.Sprintf("%.2f", current),
		"threshold_value": fmt.Sprintf("%.2f", rule.Condition.Threshold),
		"severity":        string(rule.Severity),
		"timestamp":       now.Format(time.RFC3339),
	}
	if rule.Condition.UpperThreshold != nil {
		vars["upper_threshold_value"] = fmt.Sprintf("%.2f", *rule.Condition.UpperThreshold)
	}
	if NeedsBaseline(rule.Condition) && baseline != 0 {
		vars["percentage_change"] = fmt.Sprintf("%+.1f%%", (current-baseline)/baseline*100)
	}
	return vars
}

// baselineWindow shifts the evaluation window to the rule's comparison
// basis: the immediately preceding window, or the same window last year.
func (e *Engine) baselineWindow(basis models.ComparisonBasis, start, end time.Time) (time.Time, time.Time) {
	if basis == models.BasisLastYear {
		return start.AddDate(-1, 0, 0), end.AddDate(-1, 0, 0)
	}
	length := end.Sub(start)
	return start.Add(-length), start
}

func (e *Engine) inBusinessHours(now time.Time) bool {
	hour := now.In(e.opts.Location).Hour()
	return hour >= e.opts.BusinessHoursStart && hour < e.opts.BusinessHoursEnd
}
