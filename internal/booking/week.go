package booking

import "time"

// WeekBounds returns the Sunday-to-Saturday calendar week containing t
// as a half-open interval [start, end): start is Sunday 00:00 in t's
// location and end is the following Sunday 00:00.  The weekly quota
// counter compares effective dates against these bounds.
func WeekBounds(t time.Time) (start, end time.Time) {
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	start = day.AddDate(0, 0, -int(day.Weekday()))
	end = start.AddDate(0, 0, 7)
	return start, end
}
