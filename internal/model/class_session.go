package model

import "time"

// Recurrence describes how often a class session repeats.
type Recurrence string

const (
	RecurrenceNone    Recurrence = "NONE"
	RecurrenceDaily   Recurrence = "DAILY"
	RecurrenceWeekly  Recurrence = "WEEKLY"
	RecurrenceMonthly Recurrence = "MONTHLY"
)

// Capacity bounds enforced when a session is created or updated.
const (
	MinCapacity = 1
	MaxCapacity = 5
)

// ClassSession represents a scheduled class offering.  A session is
// either one-time (Recurrence NONE) or a template that generates a
// calendar occurrence per matching date until RecurrenceEnd.  Occupancy
// for recurring sessions is tracked per occurrence, never on the
// template as a whole.
//
// Fields:
//  ID              – primary key identifier.
//  CoachID         – staff member who owns the session.
//  Title           – display name of the class.
//  StartDate       – first (or only) occurrence date.
//  StartTime       – time of day each occurrence begins ("15:04:05").
//  DurationMin     – length of a class in minutes.
//  Capacity        – maximum confirmed occupants per occurrence (1–5).
//  Recurrence      – NONE, DAILY, WEEKLY or MONTHLY.
//  DaysOfWeek      – for WEEKLY sessions, the weekdays it runs on
//                    (0=Sunday … 6=Saturday).  Empty means the weekday
//                    of StartDate.
//  RecurrenceEnd   – last date an occurrence may fall on (nil = only
//                    bounded by requests).
//  WaitlistEnabled – whether full occurrences accept waitlisted members.
//  CreatedAt       – creation timestamp.
//  UpdatedAt       – last update timestamp.
type ClassSession struct {
	ID              uint64     // class_sessions.id
	CoachID         uint64     // class_sessions.coach_id
	Title           string     // class_sessions.title
	StartDate       time.Time  // class_sessions.start_date (date only)
	StartTime       string     // class_sessions.start_time ("HH:MM:SS")
	DurationMin     uint32     // class_sessions.duration_min
	Capacity        uint32     // class_sessions.capacity
	Recurrence      Recurrence // class_sessions.recurrence
	DaysOfWeek      []int      // class_sessions.days_of_week (csv in DB)
	RecurrenceEnd   *time.Time // class_sessions.recurrence_end (nullable)
	WaitlistEnabled bool       // class_sessions.waitlist_enabled
	CreatedAt       time.Time  // class_sessions.created_at
	UpdatedAt       time.Time  // class_sessions.updated_at
}

// IsRecurring reports whether the session generates more than one
// calendar occurrence.
func (s *ClassSession) IsRecurring() bool {
	return s.Recurrence != "" && s.Recurrence != RecurrenceNone
}

// StartOfDay returns the date part of t in t's location.
func StartOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// StartAt combines an occurrence date with the session's time of day.
// The date's own clock component is ignored.  An unparsable StartTime
// yields midnight, which keeps comparisons conservative.
func (s *ClassSession) StartAt(date time.Time) time.Time {
	day := StartOfDay(date)
	clock, err := time.Parse("15:04:05", s.StartTime)
	if err != nil {
		return day
	}
	return day.Add(time.Duration(clock.Hour())*time.Hour +
		time.Duration(clock.Minute())*time.Minute +
		time.Duration(clock.Second())*time.Second)
}
