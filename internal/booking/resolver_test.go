package booking

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studiofit/class-booking/internal/clock"
	"github.com/studiofit/class-booking/internal/model"
)

// Monday 2026-03-02, 09:00 UTC.  The surrounding calendar week runs
// Sunday 2026-03-01 .. Saturday 2026-03-07.
var testNow = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

func TestResolvePrefersSubscription(t *testing.T) {
	store := newMemStore()
	store.addSubscription(1, 3)
	store.addPack(1, 10, 10, date(2026, 6, 1))

	dec, err := NewResolver(store, clock.NewFixed(testNow)).Resolve(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, model.FundedBySubscription, dec.Source)
	require.NotNil(t, dec.Subscription)
	assert.Nil(t, dec.ClassPack)
}

func TestResolveFallsBackToPackWhenQuotaSpent(t *testing.T) {
	store := newMemStore()
	store.addSubscription(1, 2)
	packID := store.addPack(1, 10, 10, date(2026, 6, 1))

	// Two confirmed records inside the current week exhaust the quota.
	sess := store.addSession(model.ClassSession{StartDate: date(2026, 3, 3), StartTime: "10:00:00", Capacity: 5})
	for i := 0; i < 2; i++ {
		d := date(2026, 3, 3)
		store.InsertRecord(context.Background(), &model.OccupancyRecord{
			SessionID: sess.ID, MemberID: 1, Status: model.StatusConfirmed,
			InstanceKey: "", OccurrenceDate: &d,
		})
	}

	dec, err := NewResolver(store, clock.NewFixed(testNow)).Resolve(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, model.FundedByClassPack, dec.Source)
	require.NotNil(t, dec.ClassPack)
	assert.Equal(t, packID, dec.ClassPack.ID)
}

func TestResolveCountsConfirmedOnlyInsideWeek(t *testing.T) {
	store := newMemStore()
	store.addSubscription(1, 1)
	sess := store.addSession(model.ClassSession{StartDate: date(2026, 3, 10), StartTime: "10:00:00", Capacity: 5})

	// Confirmed in NEXT week, waitlisted and cancelled this week: none
	// count against the current quota.
	next := date(2026, 3, 10)
	store.InsertRecord(context.Background(), &model.OccupancyRecord{
		SessionID: sess.ID, MemberID: 1, Status: model.StatusConfirmed, OccurrenceDate: &next,
	})
	this := date(2026, 3, 4)
	store.InsertRecord(context.Background(), &model.OccupancyRecord{
		SessionID: sess.ID, MemberID: 1, Status: model.StatusWaitlisted, OccurrenceDate: &this, InstanceKey: "a",
	})
	store.InsertRecord(context.Background(), &model.OccupancyRecord{
		SessionID: sess.ID, MemberID: 1, Status: model.StatusCancelled, OccurrenceDate: &this, InstanceKey: "b",
	})

	dec, err := NewResolver(store, clock.NewFixed(testNow)).Resolve(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, model.FundedBySubscription, dec.Source)
}

func TestResolvePicksSoonestExpiringPack(t *testing.T) {
	store := newMemStore()
	store.addPack(1, 10, 10, date(2026, 8, 1))
	soonest := store.addPack(1, 5, 2, date(2026, 4, 1))
	store.addPack(1, 10, 10, date(2026, 6, 1))

	dec, err := NewResolver(store, clock.NewFixed(testNow)).Resolve(context.Background(), 1)
	require.NoError(t, err)
	require.NotNil(t, dec.ClassPack)
	assert.Equal(t, soonest, dec.ClassPack.ID)
}

func TestResolveSkipsUnusablePacks(t *testing.T) {
	store := newMemStore()
	expired := store.addPack(1, 10, 10, date(2026, 2, 1))
	p := store.packs[expired]
	p.Status = model.ClassPackExpired
	store.packs[expired] = p
	drained := store.addPack(1, 10, 0, date(2026, 6, 1))
	pd := store.packs[drained]
	pd.Status = model.ClassPackDepleted
	store.packs[drained] = pd
	usable := store.addPack(1, 10, 1, date(2026, 6, 1))

	dec, err := NewResolver(store, clock.NewFixed(testNow)).Resolve(context.Background(), 1)
	require.NoError(t, err)
	require.NotNil(t, dec.ClassPack)
	assert.Equal(t, usable, dec.ClassPack.ID)
}

func TestResolveNotEntitledCollectsReasons(t *testing.T) {
	store := newMemStore()

	_, err := NewResolver(store, clock.NewFixed(testNow)).Resolve(context.Background(), 1)
	var notEntitled *NotEntitledError
	require.True(t, errors.As(err, &notEntitled))
	assert.Equal(t, []string{"no active subscription", "no valid class pack"}, notEntitled.Reasons)
	assert.Contains(t, notEntitled.Error(), "no active subscription")
}

func TestResolveNotEntitledWhenQuotaSpentAndNoPack(t *testing.T) {
	store := newMemStore()
	store.addSubscription(1, 1)
	sess := store.addSession(model.ClassSession{StartDate: date(2026, 3, 3), StartTime: "10:00:00", Capacity: 5})
	d := date(2026, 3, 3)
	store.InsertRecord(context.Background(), &model.OccupancyRecord{
		SessionID: sess.ID, MemberID: 1, Status: model.StatusConfirmed, OccurrenceDate: &d,
	})

	_, err := NewResolver(store, clock.NewFixed(testNow)).Resolve(context.Background(), 1)
	var notEntitled *NotEntitledError
	require.True(t, errors.As(err, &notEntitled))
	assert.Equal(t, []string{"weekly limit reached", "no valid class pack"}, notEntitled.Reasons)
}
