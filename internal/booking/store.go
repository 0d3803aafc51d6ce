package booking

import (
	"context"
	"errors"
	"time"

	"github.com/studiofit/class-booking/internal/model"
)

// Sentinel errors shared between the engine and its store
// implementations.  Everything else the engine reports travels inside
// BookingResult / CancellationResult; store faults propagate as plain
// errors.
var (
	// ErrSessionNotFound is returned when the referenced class session
	// does not exist.
	ErrSessionNotFound = errors.New("session not found")
	// ErrDuplicateBooking is returned by AddOccupant when a
	// non-cancelled record already exists for the (member, instance).
	ErrDuplicateBooking = errors.New("duplicate booking")
	// ErrClassPackDepleted is returned by ConsumeClassPack when the
	// pack has no remaining classes at decrement time.
	ErrClassPackDepleted = errors.New("class pack depleted")
)

// Occupancy is the seat count of one session instance.
type Occupancy struct {
	Confirmed  int `json:"confirmed"`
	Waitlisted int `json:"waitlisted"`
}

// SessionStore is the persistence surface the session registry and the
// orchestrator need.  Implementations must make WithTx run fn inside a
// single transaction and must give SessionForUpdate single-writer
// semantics per session row, so that check-then-append sequences on one
// instance cannot interleave.
type SessionStore interface {
	// WithTx runs fn inside a transaction.  Nested calls join the
	// transaction already carried by ctx.
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error

	SessionByID(ctx context.Context, id uint64) (model.ClassSession, error)
	// SessionForUpdate loads the session and takes its row lock for the
	// remainder of the transaction.
	SessionForUpdate(ctx context.Context, id uint64) (model.ClassSession, error)

	// CountOccupancy counts non-cancelled records of one session
	// matching instanceKey.  An empty key matches the records of a
	// one-time session.
	CountOccupancy(ctx context.Context, sessionID uint64, instanceKey string) (Occupancy, error)
	// RecordForMember returns the member's record for the instance in
	// any status, or nil when none exists.
	RecordForMember(ctx context.Context, sessionID, memberID uint64, instanceKey string) (*model.OccupancyRecord, error)
	// InsertRecord appends a new occupancy record, populating ID and
	// CreatedAt.
	InsertRecord(ctx context.Context, rec *model.OccupancyRecord) error
	UpdateRecordStatus(ctx context.Context, recordID uint64, status model.OccupancyStatus) error
	// SetRecordFunding records (or clears, with an empty source) which
	// entitlement paid for the seat.
	SetRecordFunding(ctx context.Context, recordID uint64, source model.FundingSource, classPackID *uint64) error
	// WaitlistedInOrder returns the instance's waitlisted records in
	// FIFO creation order.
	WaitlistedInOrder(ctx context.Context, sessionID uint64, instanceKey string) ([]model.OccupancyRecord, error)

	// CountMemberConfirmedBetween counts the member's confirmed records
	// system-wide whose effective date (occurrence date if present,
	// else the session's start date) falls in [from, to).  This is the
	// weekly quota counter's scan; its scope is deliberately wider than
	// CountOccupancy's.
	CountMemberConfirmedBetween(ctx context.Context, memberID uint64, from, to time.Time) (int, error)
}

// EntitlementStore is the persistence surface of the entitlement
// resolver and the refund path.  ClassPackForUpdate must take the pack
// row lock so two concurrent bookings cannot double-spend one
// remaining-class count.
type EntitlementStore interface {
	// ActiveSubscription returns the member's single ACTIVE
	// subscription, or nil when there is none.
	ActiveSubscription(ctx context.Context, memberID uint64) (*model.Subscription, error)
	// BookableClassPacks lists the member's ACTIVE packs with remaining
	// classes and validity >= now, ordered soonest-expiring first.
	BookableClassPacks(ctx context.Context, memberID uint64, now time.Time) ([]model.ClassPack, error)
	ClassPackForUpdate(ctx context.Context, packID uint64) (*model.ClassPack, error)
	// ConsumeClassPack decrements the pack and writes the usage row
	// linking it to the booking; ErrClassPackDepleted when nothing is
	// left to spend.
	ConsumeClassPack(ctx context.Context, packID uint64, usage model.ClassPackUsage) error
	// RefundClassPack increments the pack and removes the usage row for
	// the given occupancy record.
	RefundClassPack(ctx context.Context, packID, recordID uint64) error
}

// Store is the full persistence surface of the engine.
type Store interface {
	SessionStore
	EntitlementStore
}
