package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/pulsehq/insight-engine/internal/database/models"
	"github.com/pulsehq/insight-engine/internal/database/repositories"
)

// FiringRepository implements repositories.FiringRepository
type FiringRepository struct {
	db *sqlx.DB
}

// NewFiringRepository creates a new FiringRepository
func NewFiringRepository(db *sqlx.DB) repositories.FiringRepository {
	return &FiringRepository{db: db}
}

func (r *FiringRepository) Create(ctx context.Context, firing *models.AlertFiring) error {
	outcomesJSON, _ := json.Marshal(firing.Outcomes)

	query := `
		INSERT INTO alert_firings (
			id, rule_id, fired_at, metric_value, threshold, upper_threshold,
			severity, outcomes
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, query,
		firing.ID, firing.RuleID, firing.FiredAt, firing.MetricValue,
		firing.Threshold, firing.UpperThreshold, firing.Severity, outcomesJSON,
	)
	if err != nil {
		return fmt.Errorf("failed to create alert firing: %w", err)
	}
	return nil
}

func (r *FiringRepository) List(ctx context.Context, ruleID string, limit int) ([]*models.AlertFiring, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, rule_id, fired_at, metric_value, threshold, upper_threshold,
			severity, outcomes
		FROM alert_firings`
	args := []interface{}{}
	if ruleID != "" {
		query += ` WHERE rule_id = ?`
		args = append(args, ruleID)
	}
	query += ` ORDER BY fired_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query alert firings: %w", err)
	}
	defer rows.Close()

	var firings []*models.AlertFiring
	for rows.Next() {
		firing := &models.AlertFiring{}
		var outcomesJSON []byte
		var upperThreshold sql.NullFloat64

		err := rows.Scan(
			&firing.ID, &firing.RuleID, &firing.FiredAt, &firing.MetricValue,
			&firing.Threshold, &upperThreshold, &firing.Severity, &outcomesJSON,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan alert firing: %w", err)
		}

		json.Unmarshal(outcomesJSON, &firing.Outcomes)
		if upperThreshold.Valid {
			v := upperThreshold.Float64
			firing.UpperThreshold = &v
		}
		firings = append(firings, firing)
	}
	return firings, rows.Err()
}
