package recurrence

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studyloop/lernplan-api/internal/models"
)

func TestGenerateWeeklyByCount(t *testing.T) {
	dates, err := Generate("2025-03-03", models.RepeatRule{
		Type:    models.RepeatWeekly,
		EndMode: models.RepeatEndByCount,
		Count:   3,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"2025-03-10", "2025-03-17"}, dates)
}

func TestGenerateDailyByCount(t *testing.T) {
	dates, err := Generate("2025-03-03", models.RepeatRule{
		Type:    models.RepeatDaily,
		EndMode: models.RepeatEndByCount,
		Count:   5,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"2025-03-04", "2025-03-05", "2025-03-06", "2025-03-07"}, dates)
}

func TestGenerateDailyByEndDate(t *testing.T) {
	dates, err := Generate("2025-03-03", models.RepeatRule{
		Type:    models.RepeatDaily,
		EndMode: models.RepeatEndByDate,
		EndDate: "2025-03-06",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"2025-03-04", "2025-03-05", "2025-03-06"}, dates)
}

func TestGenerateMonthlyByCount(t *testing.T) {
	dates, err := Generate("2025-01-15", models.RepeatRule{
		Type:    models.RepeatMonthly,
		EndMode: models.RepeatEndByCount,
		Count:   4,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"2025-02-15", "2025-03-15", "2025-04-15"}, dates)
}

func TestGenerateCustomWeekdays(t *testing.T) {
	// 2025-03-03 is a Monday; Mon+Wed with count 3 yields the next
	// Wednesday and the following Monday.
	dates, err := Generate("2025-03-03", models.RepeatRule{
		Type:           models.RepeatCustom,
		CustomWeekdays: []int{1, 3},
		EndMode:        models.RepeatEndByCount,
		Count:          3,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"2025-03-05", "2025-03-10"}, dates)
}

func TestGenerateCustomByEndDate(t *testing.T) {
	dates, err := Generate("2025-03-03", models.RepeatRule{
		Type:           models.RepeatCustom,
		CustomWeekdays: []int{5}, // Fridays
		EndMode:        models.RepeatEndByDate,
		EndDate:        "2025-03-20",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"2025-03-07", "2025-03-14"}, dates)
}

func TestGenerateCountOneProducesNothing(t *testing.T) {
	dates, err := Generate("2025-03-03", models.RepeatRule{
		Type:    models.RepeatDaily,
		EndMode: models.RepeatEndByCount,
		Count:   1,
	})
	require.NoError(t, err)
	assert.Empty(t, dates)
}

func TestGenerateCustomEmptyWeekdaysTerminates(t *testing.T) {
	// Empty weekday sets cannot match; the walk ends at the iteration
	// cap and returns fewer dates than requested instead of spinning.
	dates, err := Generate("2025-03-03", models.RepeatRule{
		Type:    models.RepeatCustom,
		EndMode: models.RepeatEndByCount,
		Count:   10,
	})
	require.NoError(t, err)
	assert.Empty(t, dates)
}

func TestGenerateMalformedEndDateStopsImmediately(t *testing.T) {
	dates, err := Generate("2025-03-03", models.RepeatRule{
		Type:    models.RepeatDaily,
		EndMode: models.RepeatEndByDate,
		EndDate: "not-a-date",
	})
	require.NoError(t, err)
	assert.Empty(t, dates)
}

func TestGenerateIterationCap(t *testing.T) {
	dates, err := Generate("2025-01-01", models.RepeatRule{
		Type:    models.RepeatDaily,
		EndMode: models.RepeatEndByDate,
		EndDate: "2030-01-01",
	})
	require.NoError(t, err)
	assert.Len(t, dates, MaxIterations)
}

func TestGenerateCountCap(t *testing.T) {
	dates, err := Generate("2025-01-01", models.RepeatRule{
		Type:    models.RepeatDaily,
		EndMode: models.RepeatEndByCount,
		Count:   1000,
	})
	require.NoError(t, err)
	assert.Len(t, dates, MaxCount-1)
}

func TestGenerateBadStartDate(t *testing.T) {
	_, err := Generate("03.03.2025", models.RepeatRule{
		Type:    models.RepeatDaily,
		EndMode: models.RepeatEndByCount,
		Count:   2,
	})
	require.Error(t, err)
}

func TestValidateRule(t *testing.T) {
	cases := []struct {
		name    string
		rule    models.RepeatRule
		wantErr bool
	}{
		{"valid weekly count", models.RepeatRule{Type: models.RepeatWeekly, EndMode: models.RepeatEndByCount, Count: 5}, false},
		{"valid custom", models.RepeatRule{Type: models.RepeatCustom, CustomWeekdays: []int{1, 3}, EndMode: models.RepeatEndByCount, Count: 3}, false},
		{"valid by date", models.RepeatRule{Type: models.RepeatDaily, EndMode: models.RepeatEndByDate, EndDate: "2025-06-01"}, false},
		{"custom without weekdays", models.RepeatRule{Type: models.RepeatCustom, EndMode: models.RepeatEndByCount, Count: 3}, true},
		{"weekday out of range", models.RepeatRule{Type: models.RepeatCustom, CustomWeekdays: []int{7}, EndMode: models.RepeatEndByCount, Count: 3}, true},
		{"zero count", models.RepeatRule{Type: models.RepeatDaily, EndMode: models.RepeatEndByCount}, true},
		{"count above cap", models.RepeatRule{Type: models.RepeatDaily, EndMode: models.RepeatEndByCount, Count: 101}, true},
		{"bad end date", models.RepeatRule{Type: models.RepeatDaily, EndMode: models.RepeatEndByDate, EndDate: "June 1st"}, true},
		{"unknown type", models.RepeatRule{Type: "yearly", EndMode: models.RepeatEndByCount, Count: 2}, true},
		{"unknown end mode", models.RepeatRule{Type: models.RepeatDaily, EndMode: "forever"}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateRule(tc.rule)
			if tc.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
