package alerting

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pulsehq/insight-engine/internal/database/models"
	"github.com/pulsehq/insight-engine/internal/notify"
)

type fakeRuleRepo struct {
	mu       sync.Mutex
	rules    []*models.AlertRule
	triggers map[string]int
}

func (r *fakeRuleRepo) GetAll(ctx context.Context) ([]*models.AlertRule, error) {
	return r.rules, nil
}

func (r *fakeRuleRepo) GetActive(ctx context.Context) ([]*models.AlertRule, error) {
	var out []*models.AlertRule
	for _, rule := range r.rules {
		if rule.IsActive {
			out = append(out, rule)
		}
	}
	return out, nil
}

func (r *fakeRuleRepo) GetByID(ctx context.Context, id string) (*models.AlertRule, error) {
	for _, rule := range r.rules {
		if rule.ID == id {
			return rule, nil
		}
	}
	return nil, fmt.Errorf("rule %s not found", id)
}

func (r *fakeRuleRepo) Upsert(ctx context.Context, rule *models.AlertRule) error { return nil }

func (r *fakeRuleRepo) SetActive(ctx context.Context, id string, active bool) error { return nil }

func (r *fakeRuleRepo) RecordTrigger(ctx context.Context, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.triggers == nil {
		r.triggers = make(map[string]int)
	}
	r.triggers[id]++
	return nil
}

type fakeNotifTemplateRepo struct {
	templates map[string]*models.NotificationTemplate
}

func (r *fakeNotifTemplateRepo) GetAll(ctx context.Context) ([]*models.NotificationTemplate, error) {
	return nil, nil
}

func (r *fakeNotifTemplateRepo) GetByID(ctx context.Context, id string) (*models.NotificationTemplate, error) {
	t, ok := r.templates[id]
	if !ok {
		return nil, fmt.Errorf("notification template %s not found", id)
	}
	return t, nil
}

func (r *fakeNotifTemplateRepo) Upsert(ctx context.Context, template *models.NotificationTemplate) error {
	return nil
}

type fakeFiringRepo struct {
	mu      sync.Mutex
	firings []*models.AlertFiring
}

func (r *fakeFiringRepo) Create(ctx context.Context, firing *models.AlertFiring) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.firings = append(r.firings, firing)
	return nil
}

func (r *fakeFiringRepo) List(ctx context.Context, ruleID string, limit int) ([]*models.AlertFiring, error) {
	return r.firings, nil
}

type fakeMetricSource struct {
	mu     sync.Mutex
	values map[string]float64
	errs   map[string]error
}

func (s *fakeMetricSource) GetValue(ctx context.Context, metric string, agg models.Aggregation, start, end time.Time) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err, ok := s.errs[metric]; ok {
		return 0, err
	}
	if v, ok := s.values[metric+"@"+end.Format(time.RFC3339)]; ok {
		return v, nil
	}
	return s.values[metric], nil
}

type recordingChannel struct {
	mu       sync.Mutex
	ctype    models.ChannelType
	fail     bool
	sends    int
	lastSubj string
	lastBody string
	lastTo   string
}

func (c *recordingChannel) Type() models.ChannelType { return c.ctype }

func (c *recordingChannel) Send(ctx context.Context, target, subject, body string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail {
		return fmt.Errorf("channel %s down", c.ctype)
	}
	c.sends++
	c.lastTo = target
	c.lastSubj = subject
	c.lastBody = body
	return nil
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

func simpleRule() *models.AlertRule {
	return &models.AlertRule{
		ID:     "rule-1",
		Name:   "Error Rate High",
		Metric: "error_rate",
		Condition: models.Condition{
			Operator:  models.OperatorGreaterThan,
			Threshold: 5,
			Basis:     models.BasisCurrent,
		},
		Severity: models.SeverityHigh,
		Channels: []models.NotificationChannel{
			{Type: models.ChannelChat, Target: "#oncall", TemplateID: "chat-1"},
			{Type: models.ChannelMail, Target: "ops@example.com"},
		},
		IsActive: true,
	}
}

func newTestEngine(rules *fakeRuleRepo, notifs *fakeNotifTemplateRepo, firings *fakeFiringRepo, source *fakeMetricSource, channels ...notify.Channel) *Engine {
	logger := quietLogger()
	registry := notify.NewRegistry(logger)
	for _, c := range channels {
		registry.Register(c)
	}
	engine := NewEngine(rules, notifs, firings, source, NewLimiter(), registry, nil, logger, EngineOptions{
		EvaluationWindow:   time.Hour,
		DispatchTimeout:    time.Second,
		MaxConcurrent:      4,
		BusinessHoursStart: 8,
		BusinessHoursEnd:   20,
		Location:           time.UTC,
	})
	engine.now = func() time.Time { return time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC) }
	return engine
}

func TestEvaluateAll_FiresAndDispatches(t *testing.T) {
	rules := &fakeRuleRepo{rules: []*models.AlertRule{simpleRule()}}
	notifs := &fakeNotifTemplateRepo{templates: map[string]*models.NotificationTemplate{
		"chat-1": {
			ID:      "chat-1",
			Subject: "{{rule_name}}",
			Body:    "{{metric_name}} = {{current_value}} (threshold {{threshold_value}})",
		},
	}}
	firings := &fakeFiringRepo{}
	source := &fakeMetricSource{values: map[string]float64{"error_rate": 7.5}}
	chat := &recordingChannel{ctype: models.ChannelChat}
	mail := &recordingChannel{ctype: models.ChannelMail}

	engine := newTestEngine(rules, notifs, firings, source, chat, mail)

	result, err := engine.EvaluateAll(context.Background())
	require.NoError(t, err)
	require.Len(t, result, 1)

	firing := result[0]
	assert.Equal(t, "rule-1", firing.RuleID)
	assert.Equal(t, 7.5, firing.MetricValue)
	assert.Equal(t, models.SeverityHigh, firing.Severity)
	require.Len(t, firing.Outcomes, 2)
	assert.True(t, firing.Outcomes[0].Delivered)
	assert.True(t, firing.Outcomes[1].Delivered)

	assert.Equal(t, 1, chat.sends)
	assert.Equal(t, "Error Rate High", chat.lastSubj)
	assert.Equal(t, "error_rate = 7.50 (threshold 5.00)", chat.lastBody)
	assert.Equal(t, "#oncall", chat.lastTo)

	// Channel without a template gets the built-in fallback message.
	assert.Equal(t, 1, mail.sends)
	assert.Contains(t, mail.lastSubj, "Error Rate High")

	assert.Equal(t, 1, rules.triggers["rule-1"])
	require.Len(t, firings.firings, 1)
}

func TestEvaluateAll_NotTriggeredProducesNothing(t *testing.T) {
	rules := &fakeRuleRepo{rules: []*models.AlertRule{simpleRule()}}
	firings := &fakeFiringRepo{}
	source := &fakeMetricSource{values: map[string]float64{"error_rate": 2}}
	chat := &recordingChannel{ctype: models.ChannelChat}

	engine := newTestEngine(rules, &fakeNotifTemplateRepo{}, firings, source, chat)

	result, err := engine.EvaluateAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, result)
	assert.Zero(t, chat.sends)
	assert.Zero(t, rules.triggers["rule-1"])
}

func TestEvaluateAll_OneChannelFailureDoesNotBlockOthers(t *testing.T) {
	rules := &fakeRuleRepo{rules: []*models.AlertRule{simpleRule()}}
	firings := &fakeFiringRepo{}
	source := &fakeMetricSource{values: map[string]float64{"error_rate": 9}}
	chat := &recordingChannel{ctype: models.ChannelChat, fail: true}
	mail := &recordingChannel{ctype: models.ChannelMail}

	engine := newTestEngine(rules, &fakeNotifTemplateRepo{}, firings, source, chat, mail)

	result, err := engine.EvaluateAll(context.Background())
	require.NoError(t, err)
	require.Len(t, result, 1)

	outcomes := result[0].Outcomes
	require.Len(t, outcomes, 2)
	assert.False(t, outcomes[0].Delivered)
	assert.NotEmpty(t, outcomes[0].Error)
	assert.True(t, outcomes[1].Delivered)

	// trigger_count moves exactly once regardless of channel outcomes.
	assert.Equal(t, 1, rules.triggers["rule-1"])
}

func TestEvaluateAll_FrequencyLimitSuppresses(t *testing.T) {
	rule := simpleRule()
	rule.Limit = models.FrequencyLimit{MaxPerHour: 1}
	rules := &fakeRuleRepo{rules: []*models.AlertRule{rule}}
	firings := &fakeFiringRepo{}
	source := &fakeMetricSource{values: map[string]float64{"error_rate": 9}}
	chat := &recordingChannel{ctype: models.ChannelChat}
	mail := &recordingChannel{ctype: models.ChannelMail}

	engine := newTestEngine(rules, &fakeNotifTemplateRepo{}, firings, source, chat, mail)

	first, err := engine.EvaluateAll(context.Background())
	require.NoError(t, err)
	require.Len(t, first, 1)

	second, err := engine.EvaluateAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, second)

	// Suppressed firings leave no audit record and send nothing.
	assert.Len(t, firings.firings, 1)
	assert.Equal(t, 1, chat.sends)
	assert.Equal(t, 1, rules.triggers["rule-1"])
}

func TestEvaluateAll_BusinessHoursGate(t *testing.T) {
	rule := simpleRule()
	rule.BusinessHoursOnly = true
	rules := &fakeRuleRepo{rules: []*models.AlertRule{rule}}
	firings := &fakeFiringRepo{}
	source := &fakeMetricSource{values: map[string]float64{"error_rate": 9}}
	chat := &recordingChannel{ctype: models.ChannelChat}
	mail := &recordingChannel{ctype: models.ChannelMail}

	engine := newTestEngine(rules, &fakeNotifTemplateRepo{}, firings, source, chat, mail)

	// 23:00 UTC is outside the 08:00-20:00 window.
	engine.now = func() time.Time { return time.Date(2026, 4, 1, 23, 0, 0, 0, time.UTC) }
	result, err := engine.EvaluateAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, result)

	// Inside the window the same rule fires.
	engine.now = func() time.Time { return time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC) }
	result, err = engine.EvaluateAll(context.Background())
	require.NoError(t, err)
	assert.Len(t, result, 1)
}

func TestEvaluateAll_BaselineBasis(t *testing.T) {
	rule := simpleRule()
	rule.Metric = "revenue"
	rule.Condition = models.Condition{
		Operator:  models.OperatorLessThan,
		Threshold: 0.7,
		Basis:     models.BasisPrevious,
	}
	rules := &fakeRuleRepo{rules: []*models.AlertRule{rule}}
	firings := &fakeFiringRepo{}

	now := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)
	// Current window ends at now; previous window ends where current starts.
	source := &fakeMetricSource{values: map[string]float64{
		"revenue@" + now.Format(time.RFC3339):                 65,
		"revenue@" + now.Add(-time.Hour).Format(time.RFC3339): 100,
	}}
	chat := &recordingChannel{ctype: models.ChannelChat}
	mail := &recordingChannel{ctype: models.ChannelMail}

	engine := newTestEngine(rules, &fakeNotifTemplateRepo{}, firings, source, chat, mail)

	result, err := engine.EvaluateAll(context.Background())
	require.NoError(t, err)
	require.Len(t, result, 1)
	assert.Equal(t, 65.0, result[0].MetricValue)
}

func TestEvaluateAll_SourceFailureSkipsRule(t *testing.T) {
	rules := &fakeRuleRepo{rules: []*models.AlertRule{simpleRule()}}
	firings := &fakeFiringRepo{}
	source := &fakeMetricSource{errs: map[string]error{"error_rate": fmt.Errorf("store down")}}
	chat := &recordingChannel{ctype: models.ChannelChat}
	mail := &recordingChannel{ctype: models.ChannelMail}

	engine := newTestEngine(rules, &fakeNotifTemplateRepo{}, firings, source, chat, mail)

	result, err := engine.EvaluateAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, result)
	assert.Empty(t, firings.firings)
}

func TestEvaluateAll_InactiveRulesSkipped(t *testing.T) {
	rule := simpleRule()
	rule.IsActive = false
	rules := &fakeRuleRepo{rules: []*models.AlertRule{rule}}
	source := &fakeMetricSource{values: map[string]float64{"error_rate": 9}}

	engine := newTestEngine(rules, &fakeNotifTemplateRepo{}, &fakeFiringRepo{}, source)

	result, err := engine.EvaluateAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, result)
}

func TestSeed_PrimesCooldownFromPersistedState(t *testing.T) {
	now := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)
	lastTriggered := now.Add(-10 * time.Minute)

	rule := simpleRule()
	rule.Limit = models.FrequencyLimit{CooldownMinutes: 30}
	rule.LastTriggered = &lastTriggered

	rules := &fakeRuleRepo{rules: []*models.AlertRule{rule}}
	firings := &fakeFiringRepo{}
	source := &fakeMetricSource{values: map[string]float64{"error_rate": 9}}
	chat := &recordingChannel{ctype: models.ChannelChat}
	mail := &recordingChannel{ctype: models.ChannelMail}

	engine := newTestEngine(rules, &fakeNotifTemplateRepo{}, firings, source, chat, mail)
	require.NoError(t, engine.Seed(context.Background()))

	// Within the persisted cooldown nothing fires, even after a restart.
	result, err := engine.EvaluateAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, result)
}
