package model

import "time"

// SubscriptionStatus enumerates the lifecycle of a subscription.
// A subscription is created PENDING on purchase intent, becomes ACTIVE
// when the payment collaborator confirms it, and leaves ACTIVE only
// through the billing-side cancellation flow, expiry or a pause.
type SubscriptionStatus string

const (
	SubscriptionPending   SubscriptionStatus = "PENDING"
	SubscriptionActive    SubscriptionStatus = "ACTIVE"
	SubscriptionCancelled SubscriptionStatus = "CANCELLED"
	SubscriptionExpired   SubscriptionStatus = "EXPIRED"
	SubscriptionPaused    SubscriptionStatus = "PAUSED"
)

// Subscription is a recurring entitlement: it permits ClassesPerWeek
// confirmed seats inside each Sunday–Saturday calendar week.  At most
// one ACTIVE subscription exists per member.  It is never decremented
// at booking time; usage is counted on demand against the current week.
//
// Fields:
//  ID                – primary key identifier.
//  MemberID          – owning member.
//  Status            – PENDING, ACTIVE, CANCELLED, EXPIRED or PAUSED.
//  ClassesPerWeek    – weekly quota of confirmed seats.
//  StartDate         – when the subscription began (or will begin).
//  CommitmentEnd     – end of the minimum-commitment period; no
//                      cancellation may take effect before this date.
//  CancelRequestedAt – when the member filed a cancellation request
//                      (nil if none); the status flip itself arrives
//                      from the billing collaborator.
type Subscription struct {
	ID                uint64             // subscriptions.id
	MemberID          uint64             // subscriptions.member_id
	Status            SubscriptionStatus // subscriptions.status
	ClassesPerWeek    uint32             // subscriptions.classes_per_week
	StartDate         time.Time          // subscriptions.start_date
	CommitmentEnd     time.Time          // subscriptions.commitment_end
	CancelRequestedAt *time.Time         // subscriptions.cancel_requested_at (nullable)
	CreatedAt         time.Time          // subscriptions.created_at
	UpdatedAt         time.Time          // subscriptions.updated_at
}
