package reporting

import (
	"time"

	"github.com/pulsehq/insight-engine/internal/database/models"
)

// periodFor resolves the data period a generation run covers. The period
// ends at the run time. It starts at the template's last successful
// generation when one exists, so consecutive runs tile the timeline
// without gaps; a first run falls back to one nominal frequency period.
func periodFor(template *models.ReportTemplate, now time.Time) (time.Time, time.Time) {
	if template.LastGenerated != nil && template.LastGenerated.Before(now) {
		return *template.LastGenerated, now
	}
	return nominalStart(template.Frequency, now), now
}

func nominalStart(frequency models.Frequency, end time.Time) time.Time {
	switch frequency {
	case models.FrequencyWeekly:
		return end.AddDate(0, 0, -7)
	case models.FrequencyMonthly:
		return end.AddDate(0, -1, 0)
	case models.FrequencyQuarterly:
		return end.AddDate(0, -3, 0)
	default:
		// daily and on_demand both cover the trailing day
		return end.AddDate(0, 0, -1)
	}
}

// baselineWindow shifts a period to its comparison baseline. previous_period
// is the window of equal length immediately preceding; same_period_last_year
// is the identical calendar window one year earlier.
func baselineWindow(comparison models.ComparisonPeriod, start, end time.Time) (time.Time, time.Time) {
	switch comparison {
	case models.ComparisonLastYear:
		return start.AddDate(-1, 0, 0), end.AddDate(-1, 0, 0)
	default:
		length := end.Sub(start)
		return start.Add(-length), start
	}
}
