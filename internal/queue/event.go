// Package queue defines message payloads exchanged over the message broker.
package queue

import "encoding/json"

// BookingConfirmedEvent is published when a member's seat in a class is
// confirmed, either directly at booking time or through a waitlist
// promotion. It contains enough information for downstream consumers to
// log, notify, or trigger analytics without querying the primary
// database.
type BookingConfirmedEvent struct {
	RecordID       uint64 `json:"record_id"`
	MemberID       uint64 `json:"member_id"`
	SessionID      uint64 `json:"session_id"`
	SessionTitle   string `json:"session_title"`
	OccurrenceDate string `json:"occurrence_date,omitempty"`
	StartTime      string `json:"start_time"`
	FundedBy       string `json:"funded_by"`
	Promoted       bool   `json:"promoted"`
	ConfirmedAt    string `json:"confirmed_at"`
}

// Billing event types carried in the BillingEnvelope.
const (
	TypePaymentConfirmed         = "payment.confirmed"
	TypeSubscriptionCancelAccept = "subscription.cancel.accepted"
)

// Purchase kinds referenced by PaymentConfirmedEvent.
const (
	PurchaseSubscription = "SUBSCRIPTION"
	PurchaseClassPack    = "CLASS_PACK"
)

// BillingEnvelope wraps every message on the billing.events queue. The
// Type field selects the payload shape; the payload itself stays raw
// until the consumer knows what to decode it into.
type BillingEnvelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// PaymentConfirmedEvent arrives from the billing system when a purchase
// has been paid. PurchaseType tells whether PurchaseID refers to a
// subscription or a class pack; the matching PENDING row is activated.
type PaymentConfirmedEvent struct {
	PurchaseType string `json:"purchase_type"`
	PurchaseID   uint64 `json:"purchase_id"`
	MemberID     uint64 `json:"member_id"`
	PaymentRef   string `json:"payment_ref"`
	ConfirmedAt  string `json:"confirmed_at"`
}

// SubscriptionCancelAcceptedEvent arrives when billing has accepted a
// member's cancellation request and stopped charging; the subscription
// row is moved to CANCELLED on receipt.
type SubscriptionCancelAcceptedEvent struct {
	SubscriptionID uint64 `json:"subscription_id"`
	MemberID       uint64 `json:"member_id"`
	EffectiveAt    string `json:"effective_at"`
}
