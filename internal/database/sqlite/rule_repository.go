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

// RuleRepository implements repositories.RuleRepository
type RuleRepository struct {
	db *sqlx.DB
}

// NewRuleRepository creates a new RuleRepository
func NewRuleRepository(db *sqlx.DB) repositories.RuleRepository {
	return &RuleRepository{db: db}
}

const ruleColumns = `id, name, metric, condition, severity, channels,
	frequency_limit, business_hours_only, is_active, last_triggered,
	trigger_count, created_at, updated_at`

func (r *RuleRepository) GetAll(ctx context.Context) ([]*models.AlertRule, error) {
	query := fmt.Sprintf(`SELECT %s FROM alert_rules ORDER BY name`, ruleColumns)
	return r.queryRules(ctx, query)
}

func (r *RuleRepository) GetActive(ctx context.Context) ([]*models.AlertRule, error) {
	query := fmt.Sprintf(`SELECT %s FROM alert_rules WHERE is_active = 1 ORDER BY name`, ruleColumns)
	return r.queryRules(ctx, query)
}

func (r *RuleRepository) GetByID(ctx context.Context, id string) (*models.AlertRule, error) {
	query := fmt.Sprintf(`SELECT %s FROM alert_rules WHERE id = ?`, ruleColumns)
	row := r.db.QueryRowContext(ctx, query, id)
	rule, err := scanRule(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("alert rule %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get alert rule: %w", err)
	}
	return rule, nil
}

func (r *RuleRepository) Upsert(ctx context.Context, rule *models.AlertRule) error {
	now := time.Now().UTC()
	if rule.CreatedAt.IsZero() {
		rule.CreatedAt = now
	}
	rule.UpdatedAt = now

	conditionJSON, _ := json.Marshal(rule.Condition)
	channelsJSON, _ := json.Marshal(rule.Channels)
	limitJSON, _ := json.Marshal(rule.Limit)

	query := `
		INSERT INTO alert_rules (
			id, name, metric, condition, severity, channels, frequency_limit,
			business_hours_only, is_active, last_triggered, trigger_count,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			name = excluded.name,
			metric = excluded.metric,
			condition = excluded.condition,
			severity = excluded.severity,
			channels = excluded.channels,
			frequency_limit = excluded.frequency_limit,
			business_hours_only = excluded.business_hours_only,
			is_active = excluded.is_active,
			updated_at = excluded.updated_at`

	_, err := r.db.ExecContext(ctx, query,
		rule.ID, rule.Name, rule.Metric, conditionJSON, rule.Severity,
		channelsJSON, limitJSON, rule.BusinessHoursOnly, rule.IsActive,
		rule.LastTriggered, rule.TriggerCount, rule.CreatedAt, rule.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert alert rule: %w", err)
	}
	return nil
}

func (r *RuleRepository) SetActive(ctx context.Context, id string, active bool) error {
	query := `UPDATE alert_rules SET is_active = ?, updated_at = ? WHERE id = ?`
	result, err := r.db.ExecContext(ctx, query, active, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to update alert rule: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("alert rule %s not found", id)
	}
	return nil
}

func (r *RuleRepository) RecordTrigger(ctx context.Context, id string, at time.Time) error {
	query := `
		UPDATE alert_rules
		SET trigger_count = trigger_count + 1, last_triggered = ?, updated_at = ?
		WHERE id = ?`
	result, err := r.db.ExecContext(ctx, query, at, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to record rule trigger: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("alert rule %s not found", id)
	}
	return nil
}

func (r *RuleRepository) queryRules(ctx context.Context, query string, args ...interface{}) ([]*models.AlertRule, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query alert rules: %w", err)
	}
	defer rows.Close()

	var rules []*models.AlertRule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan alert rule: %w", err)
		}
		rules = append(rules, rule)
	}
	return rules, rows.Err()
}

func scanRule(row rowScanner) (*models.AlertRule, error) {
	rule := &models.AlertRule{}
	var conditionJSON, channelsJSON, limitJSON []byte
	var lastTriggered sql.NullTime

	err := row.Scan(
		&rule.ID, &rule.Name, &rule.Metric, &conditionJSON, &rule.Severity,
		&channelsJSON, &limitJSON, &rule.BusinessHoursOnly, &rule.IsActive,
		&lastTriggered, &rule.TriggerCount, &rule.CreatedAt, &rule.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	json.Unmarshal(conditionJSON, &rule.Condition)
	json.Unmarshal(channelsJSON, &rule.Channels)
	json.Unmarshal(limitJSON, &rule.Limit)

	if lastTriggered.Valid {
		t := lastTriggered.Time
		rule.LastTriggered = &t
	}
	return rule, nil
}
