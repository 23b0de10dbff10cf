// Package recurrence computes the occurrence dates of a repeating
// calendar entry. Generation is pure: no store access, no clock access.
package recurrence

import (
	"fmt"
	"time"

	"github.com/studyloop/lernplan-api/internal/models"
)

const (
	// MaxIterations bounds every expansion so that malformed rules
	// (unreachable end dates, empty weekday sets) still terminate.
	MaxIterations = 365

	// MaxCount caps count-terminated series.
	MaxCount = 100
)

// Generate returns the ordered additional occurrence dates for a rule,
// excluding the start date itself: the start date is the original
// occurrence and is produced by the caller. In count mode the rule's
// Count includes the original, so at most Count-1 dates are returned.
func Generate(startDate string, rule models.RepeatRule) ([]string, error) {
	start, err := time.Parse(models.DateLayout, startDate)
	if err != nil {
		return nil, fmt.Errorf("parse start date %q: %w", startDate, err)
	}

	var end time.Time
	byDate := rule.EndMode == models.RepeatEndByDate
	if byDate {
		// A malformed end date leaves end at its zero value; every
		// candidate then exceeds it and the expansion stops immediately.
		end, _ = time.Parse(models.DateLayout, rule.EndDate)
	}

	want := rule.Count
	if want > MaxCount {
		want = MaxCount
	}
	want-- // generated dates, original excluded
	if !byDate && want <= 0 {
		return nil, nil
	}

	if rule.Type == models.RepeatCustom {
		return generateCustom(start, rule.CustomWeekdays, byDate, end, want), nil
	}

	var dates []string
	for i := 1; i <= MaxIterations; i++ {
		var candidate time.Time
		switch rule.Type {
		case models.RepeatDaily:
			candidate = start.AddDate(0, 0, i)
		case models.RepeatWeekly:
			candidate = start.AddDate(0, 0, 7*i)
		case models.RepeatMonthly:
			candidate = start.AddDate(0, i, 0)
		default:
			return nil, fmt.Errorf("unknown repeat type %q", rule.Type)
		}
		if byDate {
			if candidate.After(end) {
				break
			}
			dates = append(dates, candidate.Format(models.DateLayout))
			continue
		}
		dates = append(dates, candidate.Format(models.DateLayout))
		if len(dates) >= want {
			break
		}
	}
	return dates, nil
}

// generateCustom walks forward one day at a time collecting dates whose
// weekday is in the configured set. An empty set yields no matches and
// the walk ends at the iteration cap, returning fewer dates than a
// count-terminated rule asked for.
func generateCustom(start time.Time, weekdays []int, byDate bool, end time.Time, want int) []string {
	set := make(map[time.Weekday]struct{}, len(weekdays))
	for _, wd := range weekdays {
		if wd >= 0 && wd <= 6 {
			set[time.Weekday(wd)] = struct{}{}
		}
	}

	var dates []string
	cursor := start
	for i := 1; i <= MaxIterations; i++ {
		cursor = cursor.AddDate(0, 0, 1)
		if _, ok := set[cursor.Weekday()]; !ok {
			continue
		}
		if byDate {
			if cursor.After(end) {
				break
			}
			dates = append(dates, cursor.Format(models.DateLayout))
			continue
		}
		dates = append(dates, cursor.Format(models.DateLayout))
		if len(dates) >= want {
			break
		}
	}
	return dates
}

// ValidateRule rejects rule combinations the generator cannot expand
// meaningfully. Callers run this before touching any store.
func ValidateRule(rule models.RepeatRule) error {
	switch rule.Type {
	case models.RepeatDaily, models.RepeatWeekly, models.RepeatMonthly:
	case models.RepeatCustom:
		if len(rule.CustomWeekdays) == 0 {
			return fmt.Errorf("custom repeat requires at least one weekday")
		}
		for _, wd := range rule.CustomWeekdays {
			if wd < 0 || wd > 6 {
				return fmt.Errorf("weekday %d out of range", wd)
			}
		}
	default:
		return fmt.Errorf("unknown repeat type %q", rule.Type)
	}

	switch rule.EndMode {
	case models.RepeatEndByCount:
		if rule.Count < 1 || rule.Count > MaxCount {
			return fmt.Errorf("repeat count must be between 1 and %d", MaxCount)
		}
	case models.RepeatEndByDate:
		if _, err := time.Parse(models.DateLayout, rule.EndDate); err != nil {
			return fmt.Errorf("invalid repeat end date %q", rule.EndDate)
		}
	default:
		return fmt.Errorf("unknown repeat end mode %q", rule.EndMode)
	}
	return nil
}
