package booking

import (
	"time"

	"github.com/studiofit/class-booking/internal/model"
)

func sameDate(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// OccursOn reports whether the session has an occurrence on the given
// calendar date.  The date must lie inside
// [session.StartDate, session.RecurrenceEnd] and match the recurrence
// rule; for one-time sessions only the start date itself occurs.
func OccursOn(s *model.ClassSession, date time.Time) bool {
	day := model.StartOfDay(date)
	start := model.StartOfDay(s.StartDate)
	if day.Before(start) {
		return false
	}
	if !s.IsRecurring() {
		return sameDate(day, start)
	}
	if s.RecurrenceEnd != nil && day.After(model.StartOfDay(*s.RecurrenceEnd)) {
		return false
	}
	switch s.Recurrence {
	case model.RecurrenceDaily:
		return true
	case model.RecurrenceWeekly:
		if len(s.DaysOfWeek) == 0 {
			return day.Weekday() == start.Weekday()
		}
		for _, wd := range s.DaysOfWeek {
			if int(day.Weekday()) == wd {
				return true
			}
		}
		return false
	case model.RecurrenceMonthly:
		// Months without the start day (e.g. the 31st) simply skip.
		return day.Day() == start.Day()
	}
	return false
}

// Occurrences lists the concrete occurrence dates of a session within
// [from, to], both inclusive at date granularity.  Used by schedule
// views to expand recurring templates.
func Occurrences(s *model.ClassSession, from, to time.Time) []time.Time {
	out := []time.Time{}
	day := model.StartOfDay(from)
	last := model.StartOfDay(to)
	for !day.After(last) {
		if OccursOn(s, day) {
			out = append(out, day)
		}
		day = day.AddDate(0, 0, 1)
	}
	return out
}
