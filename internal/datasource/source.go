// Package datasource defines the metric data source collaborator. The
// engine only ever consumes (metric, aggregation, period) -> value; every
// call site treats an error as "value unavailable".
package datasource

import (
	"context"
	"time"

	"github.com/pulsehq/insight-engine/internal/database/models"
	"github.com/pulsehq/insight-engine/internal/database/repositories"
)

// Source supplies an aggregated metric value for a time period.
type Source interface {
	GetValue(ctx context.Context, metric string, agg models.Aggregation, start, end time.Time) (float64, error)
}

// dbSource aggregates raw samples persisted in the metric_samples table.
type dbSource struct {
	metrics repositories.MetricRepository
}

// NewDBSource creates a Source backed by the local sample store.
func NewDBSource(metrics repositories.MetricRepository) Source {
	return &dbSource{metrics: metrics}
}

func (s *dbSource) GetValue(ctx context.Context, metric string, agg models.Aggregation, start, end time.Time) (float64, error) {
	return s.metrics.Aggregate(ctx, metric, agg, start, end)
}
