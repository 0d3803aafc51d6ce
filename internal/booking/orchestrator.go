package booking

import (
	"context"
	"errors"
	"time"

	"github.com/studiofit/class-booking/internal/clock"
	"github.com/studiofit/class-booking/internal/model"
)

// errRejected aborts the surrounding transaction while the orchestrator
// hands back a structured result instead of an error.
var errRejected = errors.New("booking rejected")

// Orchestrator drives the booking and cancellation state machine.  All
// mutations of one request run inside a single transaction holding the
// session row lock, so capacity checks and appends cannot interleave
// between concurrent requests on the same session.
type Orchestrator struct {
	store    Store
	registry *Registry
	resolver *Resolver
	policy   *NoticePolicy
	clock    clock.Clock
}

// NewOrchestrator wires the engine components over one store.
func NewOrchestrator(store Store, clk clock.Clock) *Orchestrator {
	return &Orchestrator{
		store:    store,
		registry: NewRegistry(store),
		resolver: NewResolver(store, clk),
		policy:   NewNoticePolicy(store),
		clock:    clk,
	}
}

// Resolver exposes the entitlement resolver for read-only callers
// (e.g. an entitlement preview endpoint).
func (o *Orchestrator) Resolver() *Resolver { return o.resolver }

// Policy exposes the cancellation policy engine.
func (o *Orchestrator) Policy() *NoticePolicy { return o.policy }

// BookRequest is one member's attempt to occupy a seat.
// OccurrenceDate is required for recurring sessions and ignored for
// one-time ones, whose date is fixed by the session itself.
type BookRequest struct {
	MemberID       uint64
	SessionID      uint64
	OccurrenceDate *time.Time
}

// Book validates the request, resolves an entitlement, and commits an
// occupancy record plus the matching deduction atomically.  A full
// instance yields a waitlisted, uncharged record when the session
// allows it.
func (o *Orchestrator) Book(ctx context.Context, req BookRequest) (BookingResult, error) {
	var res BookingResult
	err := o.store.WithTx(ctx, func(ctx context.Context) error {
		session, err := o.store.SessionForUpdate(ctx, req.SessionID)
		if errors.Is(err, ErrSessionNotFound) {
			res = BookingResult{Outcome: OutcomeNotFound, Reasons: []string{"session not found"}}
			return errRejected
		}
		if err != nil {
			return err
		}

		inst, effectiveDate, reason := resolveOccurrence(&session, req.OccurrenceDate)
		if reason != "" {
			res = BookingResult{Outcome: OutcomeInvalid, Reasons: []string{reason}}
			return errRejected
		}
		now := o.clock.Now()
		if !session.StartAt(effectiveDate).After(now) {
			res = BookingResult{Outcome: OutcomeInvalid, Reasons: []string{"session start is in the past"}}
			return errRejected
		}

		decision, err := o.resolver.Resolve(ctx, req.MemberID)
		var notEntitled *NotEntitledError
		if errors.As(err, &notEntitled) {
			res = BookingResult{Outcome: OutcomeNotEntitled, Reasons: notEntitled.Reasons}
			return errRejected
		}
		if err != nil {
			return err
		}

		existing, err := o.store.RecordForMember(ctx, session.ID, req.MemberID, inst.Key())
		if err != nil {
			return err
		}
		if existing != nil && existing.Status != model.StatusCancelled {
			res = BookingResult{Outcome: OutcomeAlreadyEnrolled, Record: existing,
				Reasons: []string{"already enrolled in this session"}}
			return errRejected
		}

		full, err := o.registry.IsFull(ctx, &session, inst)
		if err != nil {
			return err
		}
		status := model.StatusConfirmed
		if full {
			if !session.WaitlistEnabled {
				res = BookingResult{Outcome: OutcomeCapacityExceeded,
					Reasons: []string{"session is full and has no waitlist"}}
				return errRejected
			}
			status = model.StatusWaitlisted
		}

		var rec *model.OccupancyRecord
		reactivated := false
		if existing != nil {
			// Prior cancelled record: bring it back instead of
			// inserting a duplicate.
			if err := o.registry.Reactivate(ctx, existing, status); err != nil {
				return err
			}
			rec = existing
			reactivated = true
		} else {
			rec, err = o.registry.AddOccupant(ctx, &session, req.MemberID, status, inst)
			if err != nil {
				return err
			}
		}

		paidWith := model.FundingSource("")
		if status == model.StatusConfirmed {
			// Waitlisted members are not charged until promoted.
			if err := o.charge(ctx, decision, rec); err != nil {
				if errors.Is(err, ErrClassPackDepleted) {
					res = BookingResult{Outcome: OutcomeNotEntitled,
						Reasons: []string{"class pack depleted"}}
					return errRejected
				}
				return err
			}
			paidWith = decision.Source
		}

		res = BookingResult{
			Outcome:     outcomeFor(status),
			Record:      rec,
			Reactivated: reactivated,
			PaidWith:    paidWith,
		}
		return nil
	})
	if err != nil && !errors.Is(err, errRejected) {
		return BookingResult{}, err
	}
	return res, nil
}

// CancelRequest is one member's attempt to cancel their booking for a
// session occurrence.
type CancelRequest struct {
	MemberID       uint64
	SessionID      uint64
	OccurrenceDate *time.Time
}

// Cancel enforces the notice policy, marks the record cancelled,
// refunds a class-pack deduction, and promotes the next fundable
// waitlisted member into the freed seat.
func (o *Orchestrator) Cancel(ctx context.Context, req CancelRequest) (CancellationResult, error) {
	var res CancellationResult
	err := o.store.WithTx(ctx, func(ctx context.Context) error {
		session, err := o.store.SessionForUpdate(ctx, req.SessionID)
		if errors.Is(err, ErrSessionNotFound) {
			res = CancellationResult{Outcome: CancelNotFound, Reason: "session not found"}
			return errRejected
		}
		if err != nil {
			return err
		}

		inst, effectiveDate, reason := resolveOccurrence(&session, req.OccurrenceDate)
		if reason != "" {
			res = CancellationResult{Outcome: CancelNotFound, Reason: reason}
			return errRejected
		}

		rec, err := o.store.RecordForMember(ctx, session.ID, req.MemberID, inst.Key())
		if err != nil {
			return err
		}
		if rec == nil {
			res = CancellationResult{Outcome: CancelNotFound, Reason: "no booking for this session"}
			return errRejected
		}
		if rec.Status == model.StatusCancelled {
			res = CancellationResult{Outcome: CancelPolicyViolation, Reason: "already cancelled"}
			return errRejected
		}

		notice, err := o.policy.RequiredNotice(ctx, req.MemberID)
		if err != nil {
			return err
		}
		remaining := session.StartAt(effectiveDate).Sub(o.clock.Now()).Hours()
		if remaining < float64(notice.Hours) {
			res = CancellationResult{
				Outcome:        CancelPolicyViolation,
				Reason:         "cancellation window closed",
				RequiredHours:  notice.Hours,
				RemainingHours: remaining,
			}
			return errRejected
		}

		wasConfirmed := rec.Status == model.StatusConfirmed
		if err := o.store.UpdateRecordStatus(ctx, rec.ID, model.StatusCancelled); err != nil {
			return err
		}
		rec.Status = model.StatusCancelled

		refunded := false
		if wasConfirmed && rec.FundedBy == model.FundedByClassPack && rec.ClassPackID != nil {
			// Lock the pack before mutating the remaining count.
			if _, err := o.store.ClassPackForUpdate(ctx, *rec.ClassPackID); err != nil {
				return err
			}
			if err := o.store.RefundClassPack(ctx, *rec.ClassPackID, rec.ID); err != nil {
				return err
			}
			refunded = true
		}
		if rec.FundedBy != "" {
			if err := o.store.SetRecordFunding(ctx, rec.ID, "", nil); err != nil {
				return err
			}
			rec.FundedBy = ""
			rec.ClassPackID = nil
		}

		var promoted *model.OccupancyRecord
		if wasConfirmed {
			// A seat just freed: promote the earliest waitlisted member
			// that can still pay for it.
			promoted, err = o.promoteNext(ctx, &session, inst)
			if err != nil {
				return err
			}
		}

		res = CancellationResult{
			Outcome:        CancelOK,
			RequiredHours:  notice.Hours,
			RemainingHours: remaining,
			Refunded:       refunded,
			Promoted:       promoted,
		}
		return nil
	})
	if err != nil && !errors.Is(err, errRejected) {
		return CancellationResult{}, err
	}
	return res, nil
}

// promoteNext walks the instance's waitlist in FIFO order and confirms
// the first member whose entitlement still resolves, charging it in the
// same transaction.  Members whose entitlement fails stay waitlisted
// and the next candidate is tried, so the freed seat is neither handed
// out unpaid nor blocked by an unfundable head of queue.
func (o *Orchestrator) promoteNext(ctx context.Context, session *model.ClassSession, inst InstanceID) (*model.OccupancyRecord, error) {
	candidates, err := o.registry.Waitlisted(ctx, session.ID, inst)
	if err != nil {
		return nil, err
	}
	for i := range candidates {
		cand := &candidates[i]
		decision, err := o.resolver.Resolve(ctx, cand.MemberID)
		var notEntitled *NotEntitledError
		if errors.As(err, &notEntitled) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if err := o.registry.Promote(ctx, cand); err != nil {
			return nil, err
		}
		if err := o.charge(ctx, decision, cand); err != nil {
			if errors.Is(err, ErrClassPackDepleted) {
				// Pack drained between listing and locking: put the
				// candidate back and keep walking.
				if err := o.store.UpdateRecordStatus(ctx, cand.ID, model.StatusWaitlisted); err != nil {
					return nil, err
				}
				cand.Status = model.StatusWaitlisted
				continue
			}
			return nil, err
		}
		return cand, nil
	}
	return nil, nil
}

// charge commits the entitlement deduction for a confirmed record.
// Subscriptions are never decremented, only counted on demand, so the
// record just tags the funding source; class packs are locked,
// decremented and linked through a usage row.
func (o *Orchestrator) charge(ctx context.Context, decision Decision, rec *model.OccupancyRecord) error {
	switch decision.Source {
	case model.FundedBySubscription:
		if err := o.store.SetRecordFunding(ctx, rec.ID, model.FundedBySubscription, nil); err != nil {
			return err
		}
		rec.FundedBy = model.FundedBySubscription
		rec.ClassPackID = nil
		return nil
	case model.FundedByClassPack:
		pack, err := o.store.ClassPackForUpdate(ctx, decision.ClassPack.ID)
		if err != nil {
			return err
		}
		if pack.Remaining == 0 {
			return ErrClassPackDepleted
		}
		usage := model.ClassPackUsage{
			ClassPackID:    pack.ID,
			RecordID:       rec.ID,
			SessionID:      rec.SessionID,
			OccurrenceDate: rec.OccurrenceDate,
			UsedAt:         o.clock.Now(),
		}
		if err := o.store.ConsumeClassPack(ctx, pack.ID, usage); err != nil {
			return err
		}
		packID := pack.ID
		if err := o.store.SetRecordFunding(ctx, rec.ID, model.FundedByClassPack, &packID); err != nil {
			return err
		}
		rec.FundedBy = model.FundedByClassPack
		rec.ClassPackID = &packID
		return nil
	}
	return errors.New("unknown funding source")
}

// resolveOccurrence derives the instance identity and effective date of
// a request.  For recurring sessions the occurrence date is mandatory
// and must match the recurrence rule inside its bounds; for one-time
// sessions the session's own start date is the effective date and the
// identity stays zero.
func resolveOccurrence(session *model.ClassSession, occurrenceDate *time.Time) (InstanceID, time.Time, string) {
	if !session.IsRecurring() {
		return InstanceID{}, session.StartDate, ""
	}
	if occurrenceDate == nil {
		return InstanceID{}, time.Time{}, "occurrence_date is required for recurring sessions"
	}
	date := model.StartOfDay(*occurrenceDate)
	if !OccursOn(session, date) {
		return InstanceID{}, time.Time{}, "session has no occurrence on that date"
	}
	return NewInstanceID(session.ID, date), date, ""
}

func outcomeFor(status model.OccupancyStatus) BookOutcome {
	if status == model.StatusWaitlisted {
		return OutcomeWaitlisted
	}
	return OutcomeConfirmed
}
