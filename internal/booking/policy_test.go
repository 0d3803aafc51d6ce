package booking

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studiofit/class-booking/internal/model"
)

func TestRequiredNoticeSubscriber(t *testing.T) {
	store := newMemStore()
	store.addSubscription(1, 3)

	notice, err := NewNoticePolicy(store).RequiredNotice(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, SubscriberNoticeHours, notice.Hours)
	assert.Equal(t, "subscriber", notice.MembershipType)
}

func TestRequiredNoticeStandard(t *testing.T) {
	store := newMemStore()
	// A class pack alone does not shorten the window.
	store.addPack(1, 10, 10, date(2026, 6, 1))

	notice, err := NewNoticePolicy(store).RequiredNotice(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, StandardNoticeHours, notice.Hours)
	assert.Equal(t, "standard", notice.MembershipType)
}

func TestRequiredNoticeIgnoresInactiveSubscription(t *testing.T) {
	store := newMemStore()
	store.addSubscription(1, 3)
	sub := store.subs[1]
	sub.Status = model.SubscriptionPaused
	sub.CancelRequestedAt = ptrTime(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))
	store.subs[1] = sub

	notice, err := NewNoticePolicy(store).RequiredNotice(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, StandardNoticeHours, notice.Hours)
}

func ptrTime(t time.Time) *time.Time { return &t }
