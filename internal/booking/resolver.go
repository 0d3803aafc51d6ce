package booking

import (
	"context"
	"strings"
	"time"

	"github.com/studiofit/class-booking/internal/clock"
	"github.com/studiofit/class-booking/internal/model"
)

// Decision is the ephemeral result of entitlement resolution: which
// source pays for the booking and the concrete entitlement behind it.
// It is consumed immediately by the orchestrator and never persisted.
type Decision struct {
	Source       model.FundingSource
	Subscription *model.Subscription
	ClassPack    *model.ClassPack
	Reason       string
}

// NotEntitledError carries the failure reason of every strategy that
// was tried, so callers can present actionable detail.
type NotEntitledError struct {
	Reasons []string
}

func (e *NotEntitledError) Error() string {
	return "not entitled: " + strings.Join(e.Reasons, "; ")
}

// Strategy is one way of paying for a booking.  Resolve returns a
// Decision when the strategy applies, or a nil Decision with a
// human-readable reason when it does not.  Errors are reserved for
// store faults.
type Strategy interface {
	Name() string
	Resolve(ctx context.Context, memberID uint64, now time.Time) (*Decision, string, error)
}

// Resolver tries an ordered list of strategies and returns the first
// Decision.  The default order is subscription before class pack:
// subscriptions are a flat-rate commitment the business wants utilized
// before consumable credits are spent.  New entitlement types slot in
// as additional strategies without touching the orchestrator.
type Resolver struct {
	strategies []Strategy
	clock      clock.Clock
}

// NewResolver builds a Resolver with the default strategy order.
func NewResolver(store Store, clk clock.Clock) *Resolver {
	return &Resolver{
		strategies: []Strategy{
			&subscriptionStrategy{store: store},
			&classPackStrategy{store: store},
		},
		clock: clk,
	}
}

// Resolve decides how a booking by the member would be paid for right
// now.  It fails with *NotEntitledError only when every strategy
// declined, concatenating their reasons.
func (r *Resolver) Resolve(ctx context.Context, memberID uint64) (Decision, error) {
	now := r.clock.Now()
	reasons := make([]string, 0, len(r.strategies))
	for _, s := range r.strategies {
		dec, reason, err := s.Resolve(ctx, memberID, now)
		if err != nil {
			return Decision{}, err
		}
		if dec != nil {
			return *dec, nil
		}
		reasons = append(reasons, reason)
	}
	return Decision{}, &NotEntitledError{Reasons: reasons}
}

// subscriptionStrategy admits a booking under the member's ACTIVE
// subscription as long as the current calendar week still has quota
// left.  The weekly counter scans the member's confirmed records
// system-wide by effective date; it is not the per-instance occupancy
// count.
type subscriptionStrategy struct {
	store Store
}

func (s *subscriptionStrategy) Name() string { return "subscription" }

func (s *subscriptionStrategy) Resolve(ctx context.Context, memberID uint64, now time.Time) (*Decision, string, error) {
	sub, err := s.store.ActiveSubscription(ctx, memberID)
	if err != nil {
		return nil, "", err
	}
	if sub == nil {
		return nil, "no active subscription", nil
	}
	weekStart, weekEnd := WeekBounds(now)
	used, err := s.store.CountMemberConfirmedBetween(ctx, memberID, weekStart, weekEnd)
	if err != nil {
		return nil, "", err
	}
	if used >= int(sub.ClassesPerWeek) {
		return nil, "weekly limit reached", nil
	}
	return &Decision{
		Source:       model.FundedBySubscription,
		Subscription: sub,
		Reason:       "active subscription within weekly limit",
	}, "", nil
}

// classPackStrategy spends the member's soonest-expiring valid pack, to
// minimize wastage.
type classPackStrategy struct {
	store Store
}

func (s *classPackStrategy) Name() string { return "class_pack" }

func (s *classPackStrategy) Resolve(ctx context.Context, memberID uint64, now time.Time) (*Decision, string, error) {
	packs, err := s.store.BookableClassPacks(ctx, memberID, now)
	if err != nil {
		return nil, "", err
	}
	if len(packs) == 0 {
		return nil, "no valid class pack", nil
	}
	pack := packs[0]
	return &Decision{
		Source:    model.FundedByClassPack,
		ClassPack: &pack,
		Reason:    "class pack with remaining classes",
	}, "", nil
}
