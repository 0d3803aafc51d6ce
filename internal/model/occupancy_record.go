package model

import "time"

// OccupancyStatus enumerates the lifecycle of an occupancy record.
// Legal transitions: none -> CONFIRMED, none -> WAITLISTED,
// WAITLISTED -> CONFIRMED (promotion), CONFIRMED|WAITLISTED ->
// CANCELLED, CANCELLED -> CONFIRMED or WAITLISTED (re-booking).
type OccupancyStatus string

const (
	StatusConfirmed  OccupancyStatus = "CONFIRMED"
	StatusWaitlisted OccupancyStatus = "WAITLISTED"
	StatusCancelled  OccupancyStatus = "CANCELLED"
)

// FundingSource identifies which entitlement paid for a confirmed seat.
type FundingSource string

const (
	FundedBySubscription FundingSource = "SUBSCRIPTION"
	FundedByClassPack    FundingSource = "CLASS_PACK"
)

// OccupancyRecord is one member's seat in one session occurrence.  At
// most one non-cancelled record may exist per (member, instance key);
// re-booking reactivates the cancelled row instead of inserting a
// duplicate.
//
// Fields:
//  ID             – primary key identifier.
//  SessionID      – session this record belongs to.
//  MemberID       – member occupying (or waiting for) the seat.
//  Status         – CONFIRMED, WAITLISTED or CANCELLED.
//  InstanceKey    – stable identity of the occurrence for recurring
//                   sessions ("<session>:<YYYY-MM-DD>"); empty for
//                   one-time sessions.
//  OccurrenceDate – concrete date of the occurrence (nil for one-time
//                   sessions, whose date lives on the session itself).
//  FundedBy       – entitlement source charged for the seat; set only
//                   while the record is CONFIRMED.
//  ClassPackID    – pack that paid for the seat when FundedBy is
//                   CLASS_PACK.
//  CreatedAt      – creation timestamp; waitlist promotion is FIFO on
//                   this value.
//  UpdatedAt      – last status change.
type OccupancyRecord struct {
	ID             uint64          // occupancy_records.id
	SessionID      uint64          // occupancy_records.session_id
	MemberID       uint64          // occupancy_records.member_id
	Status         OccupancyStatus // occupancy_records.status
	InstanceKey    string          // occupancy_records.instance_key
	OccurrenceDate *time.Time      // occupancy_records.occurrence_date (nullable)
	FundedBy       FundingSource   // occupancy_records.funded_by (empty when unfunded)
	ClassPackID    *uint64         // occupancy_records.class_pack_id (nullable)
	CreatedAt      time.Time       // occupancy_records.created_at
	UpdatedAt      time.Time       // occupancy_records.updated_at
}
