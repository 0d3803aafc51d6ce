package booking

import "context"

// Required notice windows by membership type.  Subscribers, having a
// flat-rate commitment, are granted the more flexible window.
const (
	SubscriberNoticeHours = 12
	StandardNoticeHours   = 24
)

// Notice is what the policy engine computes for a member: the minimum
// lead time before a session start within which cancellation is still
// permitted, and the membership type that produced it.
type Notice struct {
	Hours          int    `json:"hours"`
	MembershipType string `json:"membership_type"`
}

// NoticePolicy computes cancellation deadlines from the member's
// entitlement type.
type NoticePolicy struct {
	store EntitlementStore
}

// NewNoticePolicy returns a policy bound to the given store.
func NewNoticePolicy(store EntitlementStore) *NoticePolicy {
	return &NoticePolicy{store: store}
}

// RequiredNotice returns 12 hours for members with an active
// subscription and 24 hours otherwise (class-pack-funded or no
// entitlement at all).
func (p *NoticePolicy) RequiredNotice(ctx context.Context, memberID uint64) (Notice, error) {
	sub, err := p.store.ActiveSubscription(ctx, memberID)
	if err != nil {
		return Notice{}, err
	}
	if sub != nil {
		return Notice{Hours: SubscriberNoticeHours, MembershipType: "subscriber"}, nil
	}
	return Notice{Hours: StandardNoticeHours, MembershipType: "standard"}, nil
}
