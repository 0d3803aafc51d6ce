package booking

import "github.com/studiofit/class-booking/internal/model"

// BookOutcome classifies the result of a booking attempt.  Every value
// is an expected, user-actionable outcome; only store faults are
// reported as errors.
type BookOutcome string

const (
	OutcomeConfirmed        BookOutcome = "CONFIRMED"
	OutcomeWaitlisted       BookOutcome = "WAITLISTED"
	OutcomeAlreadyEnrolled  BookOutcome = "ALREADY_ENROLLED"
	OutcomeCapacityExceeded BookOutcome = "CAPACITY_EXCEEDED"
	OutcomeNotEntitled      BookOutcome = "NOT_ENTITLED"
	OutcomeInvalid          BookOutcome = "INVALID"
	OutcomeNotFound         BookOutcome = "NOT_FOUND"
)

// BookingResult is what Book returns for every request that reached a
// decision.
type BookingResult struct {
	Outcome BookOutcome
	// Record is set for CONFIRMED and WAITLISTED outcomes.
	Record *model.OccupancyRecord
	// Reactivated is true when a previously cancelled record was
	// brought back instead of a new one being appended.
	Reactivated bool
	// PaidWith names the entitlement charged; empty for waitlisted
	// bookings, which are not charged until promoted.
	PaidWith model.FundingSource
	// Reasons carries rejection detail (entitlement failures,
	// validation messages).
	Reasons []string
}

// CancelOutcome classifies the result of a cancellation attempt.
type CancelOutcome string

const (
	CancelOK              CancelOutcome = "CANCELLED"
	CancelNotFound        CancelOutcome = "NOT_FOUND"
	CancelPolicyViolation CancelOutcome = "POLICY_VIOLATION"
)

// CancellationResult is what Cancel returns.  RequiredHours and
// RemainingHours are populated on policy violations so the caller can
// tell the member how far outside the window they were.
type CancellationResult struct {
	Outcome        CancelOutcome
	Reason         string
	RequiredHours  int
	RemainingHours float64
	// Refunded is true when a class-pack deduction was returned.
	Refunded bool
	// Promoted is the waitlisted record confirmed into the freed seat,
	// if any.
	Promoted *model.OccupancyRecord
}
