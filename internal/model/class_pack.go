package model

import "time"

// ClassPackStatus enumerates the lifecycle of a class pack.  The
// status is recomputed on every mutation: DEPLETED when remaining hits
// zero, EXPIRED once past the validity date.
type ClassPackStatus string

const (
	ClassPackPending  ClassPackStatus = "PENDING"
	ClassPackActive   ClassPackStatus = "ACTIVE"
	ClassPackExpired  ClassPackStatus = "EXPIRED"
	ClassPackDepleted ClassPackStatus = "DEPLETED"
)

// ClassPack is a consumable entitlement: a prepaid bundle of classes.
// Remaining is decremented when a booking is confirmed against the
// pack and incremented back when that booking is cancelled in time.
// Invariant: 0 <= Remaining <= Total.
type ClassPack struct {
	ID         uint64          // class_packs.id
	MemberID   uint64          // class_packs.member_id
	Total      uint32          // class_packs.total_classes
	Remaining  uint32          // class_packs.remaining_classes
	ValidUntil time.Time       // class_packs.valid_until (date)
	Status     ClassPackStatus // class_packs.status
	CreatedAt  time.Time       // class_packs.created_at
	UpdatedAt  time.Time       // class_packs.updated_at
}

// RecomputeStatus derives the pack status from its counters and
// validity date.  PENDING packs stay pending until the payment
// collaborator activates them.
func (p *ClassPack) RecomputeStatus(now time.Time) {
	if p.Status == ClassPackPending {
		return
	}
	switch {
	case now.After(p.ValidUntil):
		p.Status = ClassPackExpired
	case p.Remaining == 0:
		p.Status = ClassPackDepleted
	default:
		p.Status = ClassPackActive
	}
}

// ClassPackUsage links one consumed class to the booking it paid for.
// A row is written when a pack-funded booking is confirmed and deleted
// again when that booking is cancelled within policy.
type ClassPackUsage struct {
	ID             uint64     // class_pack_usages.id
	ClassPackID    uint64     // class_pack_usages.class_pack_id
	RecordID       uint64     // class_pack_usages.record_id (occupancy record)
	SessionID      uint64     // class_pack_usages.session_id
	OccurrenceDate *time.Time // class_pack_usages.occurrence_date (nullable)
	UsedAt         time.Time  // class_pack_usages.used_at
}
