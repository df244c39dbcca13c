package models

import "time"

// ReportType categorizes a report template by audience.
type ReportType string

const (
	ReportTypeExecutive   ReportType = "executive"
	ReportTypeFinancial   ReportType = "financial"
	ReportTypeOperational ReportType = "operational"
	ReportTypeMarketing   ReportType = "marketing"
	ReportTypeCustomer    ReportType = "customer"
)

// Frequency determines how often a template is materialized.
type Frequency string

const (
	FrequencyDaily     Frequency = "daily"
	FrequencyWeekly    Frequency = "weekly"
	FrequencyMonthly   Frequency = "monthly"
	FrequencyQuarterly Frequency = "quarterly"
	FrequencyOnDemand  Frequency = "on_demand"
)

// Schedule describes when within a period a template runs.
// Time is a wall-clock "15:04" string interpreted in Timezone.
type Schedule struct {
	Time       string `json:"time"`
	DayOfWeek  *int   `json:"day_of_week,omitempty"`  // 0-6, Sunday = 0
	DayOfMonth *int   `json:"day_of_month,omitempty"` // 1-31, clamped to month end
	Timezone   string `json:"timezone"`
}

// DeliveryMode selects how a recipient receives a report.
type DeliveryMode string

const (
	DeliveryModeChannel   DeliveryMode = "channel"
	DeliveryModeDashboard DeliveryMode = "dashboard"
	DeliveryModeBoth      DeliveryMode = "both"
)

// Recipient is one addressee of a generated report.
type Recipient struct {
	Address string       `json:"address"`
	Name    string       `json:"name"`
	Role    string       `json:"role"`
	Mode    DeliveryMode `json:"mode"`
}

// OutputFormat controls how a metric value is displayed.
type OutputFormat string

const (
	FormatNumber     OutputFormat = "number"
	FormatCurrency   OutputFormat = "currency"
	FormatPercentage OutputFormat = "percentage"
	FormatText       OutputFormat = "text"
)

// Aggregation is the reduction applied to metric samples over a period.
type Aggregation string

const (
	AggregationSum   Aggregation = "sum"
	AggregationAvg   Aggregation = "avg"
	AggregationCount Aggregation = "count"
	AggregationMax   Aggregation = "max"
	AggregationMin   Aggregation = "min"
)

// ComparisonPeriod selects the baseline window for a metric delta.
type ComparisonPeriod string

const (
	ComparisonPrevious ComparisonPeriod = "previous_period"
	ComparisonLastYear ComparisonPeriod = "same_period_last_year"
	ComparisonNone     ComparisonPeriod = "none"
)

// MetricSpec is one metric line in a report template.
type MetricSpec struct {
	Metric      string           `json:"metric"`
	DisplayName string           `json:"display_name"`
	Format      OutputFormat     `json:"format"`
	Aggregation Aggregation      `json:"aggregation"`
	Comparison  ComparisonPeriod `json:"comparison,omitempty"`
}

// Visualization descriptors are opaque to the engine and passed through to
// export renderers untouched.
type Visualization map[string]interface{}

// ReportTemplate defines what a report contains and when it runs.
type ReportTemplate struct {
	ID             string            `json:"id" db:"id"`
	Name           string            `json:"name" db:"name"`
	Description    string            `json:"description" db:"description"`
	Type           ReportType        `json:"type" db:"report_type"`
	Frequency      Frequency         `json:"frequency" db:"frequency"`
	Schedule       Schedule          `json:"schedule"`
	Recipients     []Recipient       `json:"recipients"`
	Sources        []string          `json:"sources"`
	Metrics        []MetricSpec      `json:"metrics"`
	Visualizations []Visualization   `json:"visualizations,omitempty"`
	Filters        map[string]string `json:"filters,omitempty"`
	ExportFormats  []string          `json:"export_formats"`
	IsActive       bool              `json:"is_active" db:"is_active"`
	LastGenerated  *time.Time        `json:"last_generated,omitempty" db:"last_generated"`
	NextGeneration *time.Time        `json:"next_generation,omitempty" db:"next_generation"`
	CreatedAt      time.Time         `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at" db:"updated_at"`
}

// ReportStatus is the lifecycle state of a GeneratedReport. A report is
// created as generating and transitions exactly once to a terminal state.
type ReportStatus string

const (
	ReportStatusGenerating ReportStatus = "generating"
	ReportStatusCompleted  ReportStatus = "completed"
	ReportStatusFailed     ReportStatus = "failed"
	ReportStatusCancelled  ReportStatus = "cancelled"
)

// Terminal reports whether the status permits no further transitions.
func (s ReportStatus) Terminal() bool {
	return s == ReportStatusCompleted || s == ReportStatusFailed || s == ReportStatusCancelled
}

// MetricDelta is the comparison of a metric value against its baseline.
type MetricDelta struct {
	Baseline float64 `json:"baseline"`
	Absolute float64 `json:"absolute"`
	Percent  float64 `json:"percent"`
}

// MetricValue is one computed metric in a report summary.
type MetricValue struct {
	Metric      string       `json:"metric"`
	DisplayName string       `json:"display_name"`
	Format      OutputFormat `json:"format"`
	Value       float64      `json:"value"`
	Text        string       `json:"text,omitempty"`
	Unavailable bool         `json:"unavailable,omitempty"`
	Delta       *MetricDelta `json:"delta,omitempty"`
}

// ReportSummary is the metric snapshot captured by a generation run.
type ReportSummary struct {
	Values      []MetricValue `json:"values"`
	PartialData bool          `json:"partial_data"`
}

// DeliveryRecord tracks one delivery leg for a recipient; a recipient in
// both mode produces a channel record and a dashboard record. Delivery
// failures do not affect the report's own terminal status.
type DeliveryRecord struct {
	Address   string       `json:"address"`
	Mode      DeliveryMode `json:"mode"`
	Delivered bool         `json:"delivered"`
	Error     string       `json:"error,omitempty"`
}

// GeneratedReport is the append-only audit record of one generation run.
// Regenerating a period produces a new record, never an update to an old one.
type GeneratedReport struct {
	ID          string            `json:"id" db:"id"`
	TemplateID  string            `json:"template_id" db:"template_id"`
	GeneratedAt time.Time         `json:"generated_at" db:"generated_at"`
	PeriodStart time.Time         `json:"period_start" db:"period_start"`
	PeriodEnd   time.Time         `json:"period_end" db:"period_end"`
	Status      ReportStatus      `json:"status" db:"status"`
	Artifacts   map[string]string `json:"artifacts,omitempty"`
	Summary     ReportSummary     `json:"summary"`
	Deliveries  []DeliveryRecord  `json:"deliveries,omitempty"`
	DurationMS  int64             `json:"duration_ms" db:"duration_ms"`
	SizeBytes   int64             `json:"size_bytes" db:"size_bytes"`
	Error       string            `json:"error,omitempty" db:"error"`
}
