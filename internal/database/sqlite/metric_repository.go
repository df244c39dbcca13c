package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/pulsehq/insight-engine/internal/database/models"
	"github.com/pulsehq/insight-engine/internal/database/repositories"
)

// MetricRepository implements repositories.MetricRepository
type MetricRepository struct {
	db *sqlx.DB
}

// NewMetricRepository creates a new MetricRepository
func NewMetricRepository(db *sqlx.DB) repositories.MetricRepository {
	return &MetricRepository{db: db}
}

// Aggregate reduces the samples of a metric over [start, end) with the
// requested aggregation. A metric with no samples in the window is an error;
// callers treat it as "value unavailable".
func (r *MetricRepository) Aggregate(ctx context.Context, metric string, agg models.Aggregation, start, end time.Time) (float64, error) {
	var sqlAgg string
	switch agg {
	case models.AggregationSum:
		sqlAgg = "SUM(value)"
	case models.AggregationAvg:
		sqlAgg = "AVG(value)"
	case models.AggregationCount:
		sqlAgg = "COUNT(value)"
	case models.AggregationMax:
		sqlAgg = "MAX(value)"
	case models.AggregationMin:
		sqlAgg = "MIN(value)"
	default:
		return 0, fmt.Errorf("unknown aggregation %q", agg)
	}

	query := fmt.Sprintf(`
		SELECT %s FROM metric_samples
		WHERE metric = ? AND ts >= ? AND ts < ?`, sqlAgg)

	var value sql.NullFloat64
	if err := r.db.QueryRowContext(ctx, query, metric, start, end).Scan(&value); err != nil {
		return 0, fmt.Errorf("failed to aggregate metric %s: %w", metric, err)
	}
	if !value.Valid {
		return 0, fmt.Errorf("no samples for metric %s in window", metric)
	}
	return value.Float64, nil
}

func (r *MetricRepository) Insert(ctx context.Context, metric string, ts time.Time, value float64) error {
	query := `INSERT INTO metric_samples (metric, ts, value) VALUES (?, ?, ?)`
	if _, err := r.db.ExecContext(ctx, query, metric, ts, value); err != nil {
		return fmt.Errorf("failed to insert metric sample: %w", err)
	}
	return nil
}
