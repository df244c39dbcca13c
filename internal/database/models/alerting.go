package models

import "time"

// Operator compares a metric value against configured thresholds.
type Operator string

const (
	OperatorGreaterThan  Operator = "greater_than"
	OperatorLessThan     Operator = "less_than"
	OperatorEquals       Operator = "equals"
	OperatorNotEquals    Operator = "not_equals"
	OperatorBetween      Operator = "between"
	OperatorOutsideRange Operator = "outside_range"
)

// ComparisonBasis selects what the current value is measured against.
type ComparisonBasis string

const (
	BasisCurrent  ComparisonBasis = "current"
	BasisPrevious ComparisonBasis = "previous_period"
	BasisLastYear ComparisonBasis = "same_period_last_year"
)

// Condition is one alert threshold expression. UpperThreshold is required by
// between and outside_range and ignored by the other operators.
type Condition struct {
	Operator       Operator        `json:"operator"`
	Threshold      float64         `json:"threshold"`
	UpperThreshold *float64        `json:"upper_threshold,omitempty"`
	Basis          ComparisonBasis `json:"basis"`
}

// Severity ranks how urgent a rule's firings are.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// ChannelType identifies a transport channel implementation.
type ChannelType string

const (
	ChannelMail      ChannelType = "mail"
	ChannelSMS       ChannelType = "sms"
	ChannelPush      ChannelType = "push"
	ChannelChat      ChannelType = "chat"
	ChannelWebhook   ChannelType = "webhook"
	ChannelDashboard ChannelType = "dashboard"
)

// NotificationChannel binds a rule to one delivery target.
type NotificationChannel struct {
	Type       ChannelType `json:"type"`
	Target     string      `json:"target"`
	TemplateID string      `json:"template_id"`
}

// FrequencyLimit caps how often a rule may fire.
type FrequencyLimit struct {
	MaxPerHour      int `json:"max_per_hour"`
	MaxPerDay       int `json:"max_per_day"`
	CooldownMinutes int `json:"cooldown_minutes"`
}

// AlertRule is a configured threshold condition on a named metric.
// TriggerCount is monotonically non-decreasing; LastTriggered moves only on a
// firing admitted by the frequency limiter.
type AlertRule struct {
	ID                string                `json:"id" db:"id"`
	Name              string                `json:"name" db:"name"`
	Metric            string                `json:"metric" db:"metric"`
	Condition         Condition             `json:"condition"`
	Severity          Severity              `json:"severity" db:"severity"`
	Channels          []NotificationChannel `json:"channels"`
	Limit             FrequencyLimit        `json:"limit"`
	BusinessHoursOnly bool                  `json:"business_hours_only" db:"business_hours_only"`
	IsActive          bool                  `json:"is_active" db:"is_active"`
	LastTriggered     *time.Time            `json:"last_triggered,omitempty" db:"last_triggered"`
	TriggerCount      int64                 `json:"trigger_count" db:"trigger_count"`
	CreatedAt         time.Time             `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time             `json:"updated_at" db:"updated_at"`
}

// NotificationTemplate defines the rendered shape of a notification.
// Once referenced by a firing it is treated as immutable; edits take effect
// for future firings only.
type NotificationTemplate struct {
	ID               string      `json:"id" db:"id"`
	ChannelType      ChannelType `json:"channel_type" db:"channel_type"`
	Subject          string      `json:"subject" db:"subject"`
	Body             string      `json:"body" db:"body"`
	Variables        []string    `json:"variables"`
	Color            string      `json:"color" db:"color"`
	Icon             string      `json:"icon" db:"icon"`
	UseRecipientName bool        `json:"use_recipient_name" db:"use_recipient_name"`
	UseRecipientRole bool        `json:"use_recipient_role" db:"use_recipient_role"`
	UseBranding      bool        `json:"use_branding" db:"use_branding"`
	CreatedAt        time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time   `json:"updated_at" db:"updated_at"`
}

// ChannelOutcome is one per-channel delivery result of a firing.
type ChannelOutcome struct {
	Type      ChannelType `json:"type"`
	Target    string      `json:"target"`
	Delivered bool        `json:"delivered"`
	Error     string      `json:"error,omitempty"`
}

// AlertFiring is the append-only audit record of one admitted firing.
// It is created only when the frequency limiter admits the trigger.
type AlertFiring struct {
	ID             string           `json:"id" db:"id"`
	RuleID         string           `json:"rule_id" db:"rule_id"`
	FiredAt        time.Time        `json:"fired_at" db:"fired_at"`
	MetricValue    float64          `json:"metric_value" db:"metric_value"`
	Threshold      float64          `json:"threshold" db:"threshold"`
	UpperThreshold *float64         `json:"upper_threshold,omitempty" db:"upper_threshold"`
	Severity       Severity         `json:"severity" db:"severity"`
	Outcomes       []ChannelOutcome `json:"outcomes"`
}
