package reporting

import (
	"fmt"
	"time"

	"github.com/pulsehq/insight-engine/internal/database/models"
)

// NextRun computes when a template is next due, strictly after from.
// It is pure: no clock reads, no I/O. On-demand templates are never
// auto-due; the zero time is returned for them.
//
// If from is far in the past (scheduler downtime, clock skew) the result
// still lands strictly in the future relative to from by advancing whole
// periods; it never returns a past occurrence.
func NextRun(frequency models.Frequency, schedule models.Schedule, from time.Time) (time.Time, error) {
	if frequency == models.FrequencyOnDemand {
		return time.Time{}, nil
	}

	loc, err := loadTimezone(schedule.Timezone)
	if err != nil {
		return time.Time{}, err
	}

	hour, minute, err := parseClock(schedule.Time)
	if err != nil {
		return time.Time{}, err
	}

	switch frequency {
	case models.FrequencyDaily:
		return nextDaily(from, loc, hour, minute), nil
	case models.FrequencyWeekly:
		dow := time.Monday
		if schedule.DayOfWeek != nil {
			if *schedule.DayOfWeek < 0 || *schedule.DayOfWeek > 6 {
				return time.Time{}, fmt.Errorf("day_of_week %d out of range", *schedule.DayOfWeek)
			}
			dow = time.Weekday(*schedule.DayOfWeek)
		}
		return nextWeekly(from, loc, dow, hour, minute), nil
	case models.FrequencyMonthly:
		day, err := monthDay(schedule)
		if err != nil {
			return time.Time{}, err
		}
		return nextMonthly(from, loc, day, hour, minute, 1), nil
	case models.FrequencyQuarterly:
		day, err := monthDay(schedule)
		if err != nil {
			return time.Time{}, err
		}
		return nextMonthly(from, loc, day, hour, minute, 3), nil
	default:
		return time.Time{}, fmt.Errorf("unknown frequency %q", frequency)
	}
}

func loadTimezone(name string) (*time.Location, error) {
	if name == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", name, err)
	}
	return loc, nil
}

func parseClock(value string) (hour, minute int, err error) {
	if value == "" {
		return 0, 0, nil
	}
	t, err := time.Parse("15:04", value)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid schedule time %q: %w", value, err)
	}
	return t.Hour(), t.Minute(), nil
}

func monthDay(schedule models.Schedule) (int, error) {
	if schedule.DayOfMonth == nil {
		return 1, nil
	}
	if *schedule.DayOfMonth < 1 || *schedule.DayOfMonth > 31 {
		return 0, fmt.Errorf("day_of_month %d out of range", *schedule.DayOfMonth)
	}
	return *schedule.DayOfMonth, nil
}

func nextDaily(from time.Time, loc *time.Location, hour, minute int) time.Time {
	local := from.In(loc)
	candidate := time.Date(local.Year(), local.Month(), local.Day(), hour, minute, 0, 0, loc)
	for !candidate.After(from) {
		candidate = candidate.AddDate(0, 0, 1)
	}
	return candidate
}

func nextWeekly(from time.Time, loc *time.Location, dow time.Weekday, hour, minute int) time.Time {
	local := from.In(loc)
	candidate := time.Date(local.Year(), local.Month(), local.Day(), hour, minute, 0, 0, loc)
	for !candidate.After(from) || candidate.Weekday() != dow {
		candidate = candidate.AddDate(0, 0, 1)
	}
	return candidate
}

// nextMonthly advances in stepMonths increments anchored at from's month.
// A day past the end of a month (31 in February) clamps to the month's last
// valid day rather than rolling over.
func nextMonthly(from time.Time, loc *time.Location, day, hour, minute, stepMonths int) time.Time {
	local := from.In(loc)
	year, month := local.Year(), local.Month()
	candidate := monthOccurrence(year, month, day, hour, minute, loc)
	for !candidate.After(from) {
		year, month = addMonths(year, month, stepMonths)
		candidate = monthOccurrence(year, month, day, hour, minute, loc)
	}
	return candidate
}

func monthOccurrence(year int, month time.Month, day, hour, minute int, loc *time.Location) time.Time {
	lastDay := time.Date(year, month+1, 1, 0, 0, 0, 0, loc).AddDate(0, 0, -1).Day()
	if day > lastDay {
		day = lastDay
	}
	return time.Date(year, month, day, hour, minute, 0, 0, loc)
}

func addMonths(year int, month time.Month, step int) (int, time.Month) {
	total := int(month) - 1 + step
	return year + total/12, time.Month(total%12 + 1)
}
