package booking

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/studiofit/class-booking/internal/model"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestOccursOnOneTime(t *testing.T) {
	s := &model.ClassSession{
		StartDate:  date(2026, 3, 9),
		Recurrence: model.RecurrenceNone,
	}
	assert.True(t, OccursOn(s, date(2026, 3, 9)))
	assert.True(t, OccursOn(s, time.Date(2026, 3, 9, 18, 0, 0, 0, time.UTC)), "clock component is ignored")
	assert.False(t, OccursOn(s, date(2026, 3, 8)))
	assert.False(t, OccursOn(s, date(2026, 3, 10)))
}

func TestOccursOnDaily(t *testing.T) {
	end := date(2026, 3, 13)
	s := &model.ClassSession{
		StartDate:     date(2026, 3, 9),
		Recurrence:    model.RecurrenceDaily,
		RecurrenceEnd: &end,
	}
	assert.False(t, OccursOn(s, date(2026, 3, 8)), "before the start date")
	assert.True(t, OccursOn(s, date(2026, 3, 9)))
	assert.True(t, OccursOn(s, date(2026, 3, 11)))
	assert.True(t, OccursOn(s, date(2026, 3, 13)), "recurrence end is inclusive")
	assert.False(t, OccursOn(s, date(2026, 3, 14)))
}

func TestOccursOnWeekly(t *testing.T) {
	s := &model.ClassSession{
		StartDate:  date(2026, 3, 2), // Monday
		Recurrence: model.RecurrenceWeekly,
		DaysOfWeek: []int{1, 3}, // Mon, Wed
	}
	assert.True(t, OccursOn(s, date(2026, 3, 2)))  // Mon
	assert.True(t, OccursOn(s, date(2026, 3, 4)))  // Wed
	assert.False(t, OccursOn(s, date(2026, 3, 3))) // Tue
	assert.True(t, OccursOn(s, date(2026, 3, 11))) // Wed next week
}

func TestOccursOnWeeklyDefaultsToStartWeekday(t *testing.T) {
	s := &model.ClassSession{
		StartDate:  date(2026, 3, 2), // Monday
		Recurrence: model.RecurrenceWeekly,
	}
	assert.True(t, OccursOn(s, date(2026, 3, 9)))  // Mon
	assert.False(t, OccursOn(s, date(2026, 3, 10))) // Tue
}

func TestOccursOnMonthly(t *testing.T) {
	s := &model.ClassSession{
		StartDate:  date(2026, 1, 31),
		Recurrence: model.RecurrenceMonthly,
	}
	assert.True(t, OccursOn(s, date(2026, 1, 31)))
	assert.True(t, OccursOn(s, date(2026, 3, 31)))
	// February has no 31st; the occurrence skips rather than shifting.
	assert.False(t, OccursOn(s, date(2026, 2, 28)))
}

func TestOccurrencesExpansion(t *testing.T) {
	end := date(2026, 3, 31)
	s := &model.ClassSession{
		StartDate:     date(2026, 3, 2),
		Recurrence:    model.RecurrenceWeekly,
		DaysOfWeek:    []int{1, 5}, // Mon, Fri
		RecurrenceEnd: &end,
	}
	got := Occurrences(s, date(2026, 3, 1), date(2026, 3, 14))
	assert.Equal(t, []time.Time{
		date(2026, 3, 2),
		date(2026, 3, 6),
		date(2026, 3, 9),
		date(2026, 3, 13),
	}, got)
}

func TestOccurrencesOneTimeInWindow(t *testing.T) {
	s := &model.ClassSession{
		StartDate:  date(2026, 3, 9),
		Recurrence: model.RecurrenceNone,
	}
	assert.Len(t, Occurrences(s, date(2026, 3, 1), date(2026, 3, 31)), 1)
	assert.Empty(t, Occurrences(s, date(2026, 3, 10), date(2026, 3, 31)))
}
