package booking

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studiofit/class-booking/internal/clock"
	"github.com/studiofit/class-booking/internal/model"
)

func newEngine(store *memStore) *Orchestrator {
	return NewOrchestrator(store, clock.NewFixed(testNow))
}

// oneTimeSession adds a one-time session starting the given hours after
// testNow, rounded down to the containing date with the clock on
// StartTime.
func oneTimeSession(store *memStore, capacity uint32, waitlist bool, start time.Time) model.ClassSession {
	return store.addSession(model.ClassSession{
		CoachID:         99,
		Title:           "Reformer Pilates",
		StartDate:       model.StartOfDay(start),
		StartTime:       start.Format("15:04:05"),
		DurationMin:     60,
		Capacity:        capacity,
		Recurrence:      model.RecurrenceNone,
		WaitlistEnabled: waitlist,
	})
}

func mustBook(t *testing.T, eng *Orchestrator, memberID, sessionID uint64, occ *time.Time) BookingResult {
	t.Helper()
	res, err := eng.Book(context.Background(), BookRequest{MemberID: memberID, SessionID: sessionID, OccurrenceDate: occ})
	require.NoError(t, err)
	return res
}

func mustCancel(t *testing.T, eng *Orchestrator, memberID, sessionID uint64, occ *time.Time) CancellationResult {
	t.Helper()
	res, err := eng.Cancel(context.Background(), CancelRequest{MemberID: memberID, SessionID: sessionID, OccurrenceDate: occ})
	require.NoError(t, err)
	return res
}

func TestBookConfirmedOnSubscription(t *testing.T) {
	store := newMemStore()
	store.addSubscription(1, 3)
	sess := oneTimeSession(store, 3, false, testNow.Add(33*time.Hour))
	eng := newEngine(store)

	res := mustBook(t, eng, 1, sess.ID, nil)
	assert.Equal(t, OutcomeConfirmed, res.Outcome)
	assert.Equal(t, model.FundedBySubscription, res.PaidWith)
	require.NotNil(t, res.Record)
	assert.Equal(t, model.StatusConfirmed, res.Record.Status)
	assert.False(t, res.Reactivated)

	stored := store.record(res.Record.ID)
	assert.Equal(t, model.FundedBySubscription, stored.FundedBy)
	assert.Nil(t, stored.ClassPackID)
	assert.Empty(t, stored.InstanceKey)
}

func TestBookConfirmedOnClassPack(t *testing.T) {
	store := newMemStore()
	packID := store.addPack(1, 5, 2, date(2026, 6, 1))
	sess := oneTimeSession(store, 3, false, testNow.Add(33*time.Hour))
	eng := newEngine(store)

	res := mustBook(t, eng, 1, sess.ID, nil)
	assert.Equal(t, OutcomeConfirmed, res.Outcome)
	assert.Equal(t, model.FundedByClassPack, res.PaidWith)

	assert.Equal(t, uint32(1), store.packs[packID].Remaining)
	require.Len(t, store.usages, 1)
	assert.Equal(t, packID, store.usages[0].ClassPackID)
	assert.Equal(t, res.Record.ID, store.usages[0].RecordID)
	stored := store.record(res.Record.ID)
	require.NotNil(t, stored.ClassPackID)
	assert.Equal(t, packID, *stored.ClassPackID)
}

func TestBookLastPackClassMarksDepleted(t *testing.T) {
	store := newMemStore()
	packID := store.addPack(1, 5, 1, date(2026, 6, 1))
	sess := oneTimeSession(store, 3, false, testNow.Add(33*time.Hour))

	res := mustBook(t, newEngine(store), 1, sess.ID, nil)
	assert.Equal(t, OutcomeConfirmed, res.Outcome)
	assert.Equal(t, uint32(0), store.packs[packID].Remaining)
	assert.Equal(t, model.ClassPackDepleted, store.packs[packID].Status)
}

func TestBookSessionNotFound(t *testing.T) {
	res := mustBook(t, newEngine(newMemStore()), 1, 404, nil)
	assert.Equal(t, OutcomeNotFound, res.Outcome)
}

func TestBookPastSession(t *testing.T) {
	store := newMemStore()
	store.addSubscription(1, 3)
	sess := oneTimeSession(store, 3, false, testNow.Add(-2*time.Hour))

	res := mustBook(t, newEngine(store), 1, sess.ID, nil)
	assert.Equal(t, OutcomeInvalid, res.Outcome)
	assert.Contains(t, res.Reasons, "session start is in the past")
	assert.Empty(t, store.records)
}

func TestBookNotEntitled(t *testing.T) {
	store := newMemStore()
	sess := oneTimeSession(store, 3, false, testNow.Add(33*time.Hour))

	res := mustBook(t, newEngine(store), 1, sess.ID, nil)
	assert.Equal(t, OutcomeNotEntitled, res.Outcome)
	assert.Equal(t, []string{"no active subscription", "no valid class pack"}, res.Reasons)
	assert.Empty(t, store.records, "rejected bookings leave no record behind")
}

func TestBookAlreadyEnrolled(t *testing.T) {
	store := newMemStore()
	store.addSubscription(1, 5)
	sess := oneTimeSession(store, 3, false, testNow.Add(33*time.Hour))
	eng := newEngine(store)

	first := mustBook(t, eng, 1, sess.ID, nil)
	res := mustBook(t, eng, 1, sess.ID, nil)
	assert.Equal(t, OutcomeAlreadyEnrolled, res.Outcome)
	require.NotNil(t, res.Record)
	assert.Equal(t, first.Record.ID, res.Record.ID)
	assert.Len(t, store.records, 1)
}

func TestBookCapacityExceededWithoutWaitlist(t *testing.T) {
	store := newMemStore()
	sess := oneTimeSession(store, 1, false, testNow.Add(33*time.Hour))
	store.addSubscription(1, 5)
	store.addSubscription(2, 5)
	eng := newEngine(store)

	mustBook(t, eng, 1, sess.ID, nil)
	res := mustBook(t, eng, 2, sess.ID, nil)
	assert.Equal(t, OutcomeCapacityExceeded, res.Outcome)
	assert.Len(t, store.records, 1)
}

func TestBookWaitlistsWhenFull(t *testing.T) {
	store := newMemStore()
	sess := oneTimeSession(store, 1, true, testNow.Add(33*time.Hour))
	store.addSubscription(1, 5)
	packID := store.addPack(2, 5, 5, date(2026, 6, 1))
	eng := newEngine(store)

	mustBook(t, eng, 1, sess.ID, nil)
	res := mustBook(t, eng, 2, sess.ID, nil)
	assert.Equal(t, OutcomeWaitlisted, res.Outcome)
	assert.Equal(t, model.StatusWaitlisted, res.Record.Status)
	// Waitlisted seats are not charged until promoted.
	assert.Empty(t, res.PaidWith)
	assert.Equal(t, uint32(5), store.packs[packID].Remaining)
	assert.Empty(t, store.record(res.Record.ID).FundedBy)
}

func TestBookNeverExceedsCapacity(t *testing.T) {
	store := newMemStore()
	sess := oneTimeSession(store, 5, true, testNow.Add(33*time.Hour))
	eng := newEngine(store)

	for m := uint64(1); m <= 7; m++ {
		store.addSubscription(m, 10)
		mustBook(t, eng, m, sess.ID, nil)
	}
	occ, err := store.CountOccupancy(context.Background(), sess.ID, "")
	require.NoError(t, err)
	assert.Equal(t, 5, occ.Confirmed)
	assert.Equal(t, 2, occ.Waitlisted)
}

func TestBookReactivatesCancelledRecord(t *testing.T) {
	store := newMemStore()
	store.addSubscription(1, 5)
	sess := oneTimeSession(store, 3, false, testNow.Add(33*time.Hour))
	eng := newEngine(store)

	first := mustBook(t, eng, 1, sess.ID, nil)
	cancel := mustCancel(t, eng, 1, sess.ID, nil)
	assert.Equal(t, CancelOK, cancel.Outcome)

	res := mustBook(t, eng, 1, sess.ID, nil)
	assert.Equal(t, OutcomeConfirmed, res.Outcome)
	assert.True(t, res.Reactivated)
	assert.Equal(t, first.Record.ID, res.Record.ID)
	assert.Len(t, store.records, 1, "re-booking must not append a second row")
}

func TestBookPackDrainedBetweenResolutionAndCharge(t *testing.T) {
	store := newMemStore()
	packID := store.addPack(1, 5, 1, date(2026, 6, 1))
	sess := oneTimeSession(store, 3, false, testNow.Add(33*time.Hour))
	store.prePackLock = func(id uint64) {
		p := store.packs[id]
		p.Remaining = 0
		p.Status = model.ClassPackDepleted
		store.packs[id] = p
	}

	res := mustBook(t, newEngine(store), 1, sess.ID, nil)
	assert.Equal(t, OutcomeNotEntitled, res.Outcome)
	assert.Equal(t, []string{"class pack depleted"}, res.Reasons)
	assert.Equal(t, uint32(0), store.packs[packID].Remaining)
}

func TestBookRecurringRequiresOccurrenceDate(t *testing.T) {
	store := newMemStore()
	store.addSubscription(1, 5)
	end := date(2026, 4, 30)
	sess := store.addSession(model.ClassSession{
		CoachID: 99, Title: "Morning Yoga",
		StartDate: date(2026, 3, 2), StartTime: "07:30:00",
		DurationMin: 45, Capacity: 5,
		Recurrence: model.RecurrenceWeekly, DaysOfWeek: []int{1, 3},
		RecurrenceEnd: &end, WaitlistEnabled: true,
	})
	eng := newEngine(store)

	res := mustBook(t, eng, 1, sess.ID, nil)
	assert.Equal(t, OutcomeInvalid, res.Outcome)
	assert.Contains(t, res.Reasons, "occurrence_date is required for recurring sessions")

	offDay := date(2026, 3, 10) // Tuesday: not in DaysOfWeek
	res = mustBook(t, eng, 1, sess.ID, &offDay)
	assert.Equal(t, OutcomeInvalid, res.Outcome)
	assert.Contains(t, res.Reasons, "session has no occurrence on that date")
}

func TestBookRecurringOccupancyIsPerOccurrence(t *testing.T) {
	store := newMemStore()
	store.addSubscription(1, 5)
	store.addSubscription(2, 5)
	end := date(2026, 4, 30)
	sess := store.addSession(model.ClassSession{
		CoachID: 99, Title: "Morning Yoga",
		StartDate: date(2026, 3, 2), StartTime: "07:30:00",
		DurationMin: 45, Capacity: 1,
		Recurrence: model.RecurrenceWeekly, DaysOfWeek: []int{1},
		RecurrenceEnd: &end,
	})
	eng := newEngine(store)

	wk1 := date(2026, 3, 9)
	wk2 := date(2026, 3, 16)
	res1 := mustBook(t, eng, 1, sess.ID, &wk1)
	res2 := mustBook(t, eng, 2, sess.ID, &wk2)
	assert.Equal(t, OutcomeConfirmed, res1.Outcome)
	assert.Equal(t, OutcomeConfirmed, res2.Outcome, "a full 03-09 occurrence must not block 03-16")
	assert.Equal(t, NewInstanceID(sess.ID, wk1).Key(), res1.Record.InstanceKey)
	require.NotNil(t, res1.Record.OccurrenceDate)
	assert.True(t, sameDate(wk1, *res1.Record.OccurrenceDate))

	// Same member, same occurrence: still a duplicate.
	res3 := mustBook(t, eng, 2, sess.ID, &wk2)
	assert.Equal(t, OutcomeAlreadyEnrolled, res3.Outcome)
}

func TestCancelSubscriberWindow(t *testing.T) {
	store := newMemStore()
	store.addSubscription(1, 5)
	eng := newEngine(store)

	// 13h of notice: inside the subscriber window.
	ok := oneTimeSession(store, 3, false, testNow.Add(13*time.Hour))
	mustBook(t, eng, 1, ok.ID, nil)
	res := mustCancel(t, eng, 1, ok.ID, nil)
	assert.Equal(t, CancelOK, res.Outcome)
	assert.Equal(t, SubscriberNoticeHours, res.RequiredHours)
	assert.InDelta(t, 13, res.RemainingHours, 0.01)

	// 11h of notice: too late even for a subscriber.
	late := oneTimeSession(store, 3, false, testNow.Add(11*time.Hour))
	booked := mustBook(t, eng, 1, late.ID, nil)
	res = mustCancel(t, eng, 1, late.ID, nil)
	assert.Equal(t, CancelPolicyViolation, res.Outcome)
	assert.Equal(t, "cancellation window closed", res.Reason)
	assert.Equal(t, SubscriberNoticeHours, res.RequiredHours)
	assert.InDelta(t, 11, res.RemainingHours, 0.01)
	assert.Equal(t, model.StatusConfirmed, store.record(booked.Record.ID).Status,
		"a refused cancellation leaves the booking intact")
}

func TestCancelStandardWindow(t *testing.T) {
	store := newMemStore()
	store.addPack(1, 10, 10, date(2026, 6, 1))
	eng := newEngine(store)

	ok := oneTimeSession(store, 3, false, testNow.Add(25*time.Hour))
	mustBook(t, eng, 1, ok.ID, nil)
	res := mustCancel(t, eng, 1, ok.ID, nil)
	assert.Equal(t, CancelOK, res.Outcome)
	assert.Equal(t, StandardNoticeHours, res.RequiredHours)

	// 23h would satisfy the subscriber window but not the standard one.
	late := oneTimeSession(store, 3, false, testNow.Add(23*time.Hour))
	mustBook(t, eng, 1, late.ID, nil)
	res = mustCancel(t, eng, 1, late.ID, nil)
	assert.Equal(t, CancelPolicyViolation, res.Outcome)
	assert.Equal(t, StandardNoticeHours, res.RequiredHours)
}

func TestCancelRefundsClassPack(t *testing.T) {
	store := newMemStore()
	packID := store.addPack(1, 5, 2, date(2026, 6, 1))
	sess := oneTimeSession(store, 3, false, testNow.Add(33*time.Hour))
	eng := newEngine(store)

	booked := mustBook(t, eng, 1, sess.ID, nil)
	require.Equal(t, uint32(1), store.packs[packID].Remaining)

	res := mustCancel(t, eng, 1, sess.ID, nil)
	assert.Equal(t, CancelOK, res.Outcome)
	assert.True(t, res.Refunded)
	assert.Equal(t, uint32(2), store.packs[packID].Remaining)
	assert.Empty(t, store.usages, "the usage row is removed with the refund")

	stored := store.record(booked.Record.ID)
	assert.Equal(t, model.StatusCancelled, stored.Status)
	assert.Empty(t, stored.FundedBy)
	assert.Nil(t, stored.ClassPackID)
}

func TestCancelWaitlistedIsFreeAndPromotesNobody(t *testing.T) {
	store := newMemStore()
	sess := oneTimeSession(store, 1, true, testNow.Add(33*time.Hour))
	store.addSubscription(1, 5)
	store.addSubscription(2, 5)
	store.addSubscription(3, 5)
	eng := newEngine(store)

	mustBook(t, eng, 1, sess.ID, nil)
	mustBook(t, eng, 2, sess.ID, nil) // waitlisted
	mustBook(t, eng, 3, sess.ID, nil) // waitlisted

	res := mustCancel(t, eng, 2, sess.ID, nil)
	assert.Equal(t, CancelOK, res.Outcome)
	assert.False(t, res.Refunded)
	assert.Nil(t, res.Promoted, "no seat freed, nothing to promote")
}

func TestCancelPromotesWaitlistFIFO(t *testing.T) {
	store := newMemStore()
	sess := oneTimeSession(store, 1, true, testNow.Add(33*time.Hour))
	store.addSubscription(1, 5)
	store.addSubscription(2, 5)
	store.addSubscription(3, 5)
	eng := newEngine(store)

	mustBook(t, eng, 1, sess.ID, nil)
	second := mustBook(t, eng, 2, sess.ID, nil)
	mustBook(t, eng, 3, sess.ID, nil)

	res := mustCancel(t, eng, 1, sess.ID, nil)
	assert.Equal(t, CancelOK, res.Outcome)
	require.NotNil(t, res.Promoted)
	assert.Equal(t, second.Record.ID, res.Promoted.ID, "earliest waitlisted member wins the seat")
	assert.Equal(t, model.StatusConfirmed, res.Promoted.Status)
	// Promotion charges the seat inside the same transaction.
	assert.Equal(t, model.FundedBySubscription, store.record(second.Record.ID).FundedBy)

	occ, err := store.CountOccupancy(context.Background(), sess.ID, "")
	require.NoError(t, err)
	assert.Equal(t, 1, occ.Confirmed)
	assert.Equal(t, 1, occ.Waitlisted)
}

func TestCancelSkipsUnfundableCandidate(t *testing.T) {
	store := newMemStore()
	sess := oneTimeSession(store, 1, true, testNow.Add(33*time.Hour))
	store.addSubscription(1, 5)
	store.addSubscription(2, 1)
	store.addSubscription(3, 5)
	eng := newEngine(store)

	mustBook(t, eng, 1, sess.ID, nil)
	blocked := mustBook(t, eng, 2, sess.ID, nil) // waitlisted
	third := mustBook(t, eng, 3, sess.ID, nil)   // waitlisted

	// Member 2 spends their single weekly class elsewhere while
	// waiting, so they can no longer fund the promotion.
	other := oneTimeSession(store, 5, false, testNow.Add(30*time.Hour))
	mustBook(t, eng, 2, other.ID, nil)

	res := mustCancel(t, eng, 1, sess.ID, nil)
	require.NotNil(t, res.Promoted)
	assert.Equal(t, third.Record.ID, res.Promoted.ID)
	assert.Equal(t, model.StatusWaitlisted, store.record(blocked.Record.ID).Status,
		"an unfundable candidate keeps their waitlist spot")
}

func TestCancelPromotionRevertsOnDrainedPack(t *testing.T) {
	store := newMemStore()
	sess := oneTimeSession(store, 1, true, testNow.Add(33*time.Hour))
	store.addSubscription(1, 5)
	packID := store.addPack(2, 5, 1, date(2026, 6, 1))
	store.addSubscription(3, 5)
	eng := newEngine(store)

	mustBook(t, eng, 1, sess.ID, nil)
	blocked := mustBook(t, eng, 2, sess.ID, nil)
	third := mustBook(t, eng, 3, sess.ID, nil)

	// Member 2's pack drains in the window between resolution and the
	// charge; the promotion must roll back and move on.
	store.prePackLock = func(id uint64) {
		if id != packID {
			return
		}
		p := store.packs[id]
		p.Remaining = 0
		p.Status = model.ClassPackDepleted
		store.packs[id] = p
	}

	res := mustCancel(t, eng, 1, sess.ID, nil)
	require.NotNil(t, res.Promoted)
	assert.Equal(t, third.Record.ID, res.Promoted.ID)
	assert.Equal(t, model.StatusWaitlisted, store.record(blocked.Record.ID).Status)
	assert.Empty(t, store.record(blocked.Record.ID).FundedBy)
}

func TestCancelNotFound(t *testing.T) {
	store := newMemStore()
	store.addSubscription(1, 5)
	sess := oneTimeSession(store, 3, false, testNow.Add(33*time.Hour))
	eng := newEngine(store)

	res := mustCancel(t, eng, 1, sess.ID, nil)
	assert.Equal(t, CancelNotFound, res.Outcome)
	assert.Equal(t, "no booking for this session", res.Reason)

	res = mustCancel(t, eng, 1, 404, nil)
	assert.Equal(t, CancelNotFound, res.Outcome)
}

func TestCancelTwice(t *testing.T) {
	store := newMemStore()
	store.addSubscription(1, 5)
	sess := oneTimeSession(store, 3, false, testNow.Add(33*time.Hour))
	eng := newEngine(store)

	mustBook(t, eng, 1, sess.ID, nil)
	mustCancel(t, eng, 1, sess.ID, nil)
	res := mustCancel(t, eng, 1, sess.ID, nil)
	assert.Equal(t, CancelPolicyViolation, res.Outcome)
	assert.Equal(t, "already cancelled", res.Reason)
}

func TestFullHouseLifecycle(t *testing.T) {
	store := newMemStore()
	sess := oneTimeSession(store, 5, true, testNow.Add(48*time.Hour))
	for m := uint64(1); m <= 6; m++ {
		store.addSubscription(m, 10)
	}
	eng := newEngine(store)

	for m := uint64(1); m <= 5; m++ {
		assert.Equal(t, OutcomeConfirmed, mustBook(t, eng, m, sess.ID, nil).Outcome)
	}
	waiting := mustBook(t, eng, 6, sess.ID, nil)
	assert.Equal(t, OutcomeWaitlisted, waiting.Outcome)

	res := mustCancel(t, eng, 3, sess.ID, nil)
	assert.Equal(t, CancelOK, res.Outcome)
	require.NotNil(t, res.Promoted)
	assert.Equal(t, uint64(6), res.Promoted.MemberID)

	occ, err := store.CountOccupancy(context.Background(), sess.ID, "")
	require.NoError(t, err)
	assert.Equal(t, 5, occ.Confirmed)
	assert.Equal(t, 0, occ.Waitlisted)
}
