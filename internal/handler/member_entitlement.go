package handler

import (
	"context"
	"database/sql"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/studiofit/class-booking/internal/model"
	"github.com/studiofit/class-booking/internal/repository"
)

// EntitlementHandler exposes the member-facing subscription and class
// pack endpoints.  Purchases only create PENDING rows here; activation
// happens when the billing consumer sees the payment confirmation.
type EntitlementHandler struct {
	Subs  *repository.SubscriptionRepo
	Packs *repository.ClassPackRepo
}

func NewEntitlementHandler(subs *repository.SubscriptionRepo, packs *repository.ClassPackRepo) *EntitlementHandler {
	return &EntitlementHandler{Subs: subs, Packs: packs}
}

type subscriptionPart struct {
	ID                uint64  `json:"id"`
	Status            string  `json:"status"`
	ClassesPerWeek    uint32  `json:"classes_per_week"`
	StartDate         string  `json:"start_date"`
	CommitmentEnd     string  `json:"commitment_end"`
	CancelRequestedAt *string `json:"cancel_requested_at,omitempty"`
}

func toSubscriptionPart(s model.Subscription) subscriptionPart {
	p := subscriptionPart{
		ID:             s.ID,
		Status:         string(s.Status),
		ClassesPerWeek: s.ClassesPerWeek,
		StartDate:      s.StartDate.Format("2006-01-02"),
		CommitmentEnd:  s.CommitmentEnd.Format("2006-01-02"),
	}
	if s.CancelRequestedAt != nil {
		iso := s.CancelRequestedAt.UTC().Format(time.RFC3339)
		p.CancelRequestedAt = &iso
	}
	return p
}

// MySubscriptions lists the member's subscriptions, newest first.
func (h *EntitlementHandler) MySubscriptions(c echo.Context) error {
	memberID, err := getMemberID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	subs, err := h.Subs.ListByMember(ctx, memberID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	out := make([]subscriptionPart, 0, len(subs))
	for _, s := range subs {
		out = append(out, toSubscriptionPart(s))
	}
	return c.JSON(http.StatusOK, echo.Map{"subscriptions": out})
}

type purchaseSubscriptionReq struct {
	ClassesPerWeek   uint32 `json:"classes_per_week"`
	CommitmentMonths int    `json:"commitment_months"`
}

// PurchaseSubscription opens a PENDING subscription purchase. The
// subscription becomes bookable only after billing confirms payment.
func (h *EntitlementHandler) PurchaseSubscription(c echo.Context) error {
	memberID, err := getMemberID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req purchaseSubscriptionReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if req.ClassesPerWeek < 1 || req.ClassesPerWeek > 21 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "classes_per_week must be between 1 and 21"})
	}
	months := req.CommitmentMonths
	if months == 0 {
		months = 3
	}
	if months < 1 || months > 24 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "commitment_months must be between 1 and 24"})
	}

	now := time.Now().UTC()
	sub := model.Subscription{
		MemberID:       memberID,
		ClassesPerWeek: req.ClassesPerWeek,
		StartDate:      model.StartOfDay(now),
		CommitmentEnd:  model.StartOfDay(now).AddDate(0, months, 0),
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	if err := h.Subs.CreatePending(ctx, &sub); err != nil {
		if err == repository.ErrConflict {
			return c.JSON(http.StatusConflict, echo.Map{"error": "an open subscription already exists"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create subscription failed"})
	}
	return c.JSON(http.StatusCreated, echo.Map{"subscription": toSubscriptionPart(sub)})
}

// RequestCancelSubscription files a cancellation request for an ACTIVE
// subscription.  The subscription stays bookable; billing confirms the
// cancellation later and the status flip arrives over the broker.  The
// earliest effective date never precedes the commitment end.
func (h *EntitlementHandler) RequestCancelSubscription(c echo.Context) error {
	memberID, err := getMemberID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	subID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || subID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid subscription id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	sub, err := h.Subs.GetByIDForMember(ctx, subID, memberID)
	if err != nil {
		if err == sql.ErrNoRows {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "subscription not found"})
		}
		if err == repository.ErrForbidden {
			return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	if sub.Status != model.SubscriptionActive {
		return c.JSON(http.StatusConflict, echo.Map{"error": "only an active subscription can be cancelled"})
	}
	if sub.CancelRequestedAt != nil {
		return c.JSON(http.StatusConflict, echo.Map{"error": "cancellation already requested"})
	}

	now := time.Now().UTC()
	if err := h.Subs.MarkCancelRequested(ctx, sub.ID, now); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "request failed"})
	}
	effective := sub.CommitmentEnd
	if now.After(effective) {
		effective = model.StartOfDay(now)
	}
	return c.JSON(http.StatusAccepted, echo.Map{
		"status":             "CANCEL_REQUESTED",
		"earliest_effective": effective.Format("2006-01-02"),
	})
}

type classPackPart struct {
	ID         uint64 `json:"id"`
	Status     string `json:"status"`
	Total      uint32 `json:"total_classes"`
	Remaining  uint32 `json:"remaining_classes"`
	ValidUntil string `json:"valid_until"`
}

func toClassPackPart(p model.ClassPack) classPackPart {
	return classPackPart{
		ID:         p.ID,
		Status:     string(p.Status),
		Total:      p.Total,
		Remaining:  p.Remaining,
		ValidUntil: p.ValidUntil.Format("2006-01-02"),
	}
}

// MyClassPacks lists the member's packs, newest first.
func (h *EntitlementHandler) MyClassPacks(c echo.Context) error {
	memberID, err := getMemberID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	packs, err := h.Packs.ListByMember(ctx, memberID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	out := make([]classPackPart, 0, len(packs))
	for _, p := range packs {
		out = append(out, toClassPackPart(p))
	}
	return c.JSON(http.StatusOK, echo.Map{"class_packs": out})
}

type purchaseClassPackReq struct {
	TotalClasses uint32 `json:"total_classes"`
	ValidDays    int    `json:"valid_days"`
}

// PurchaseClassPack opens a PENDING class pack purchase.
func (h *EntitlementHandler) PurchaseClassPack(c echo.Context) error {
	memberID, err := getMemberID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req purchaseClassPackReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if req.TotalClasses < 1 || req.TotalClasses > 100 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "total_classes must be between 1 and 100"})
	}
	days := req.ValidDays
	if days == 0 {
		days = 90
	}
	if days < 1 || days > 365 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "valid_days must be between 1 and 365"})
	}

	pack := model.ClassPack{
		MemberID:   memberID,
		Total:      req.TotalClasses,
		ValidUntil: model.StartOfDay(time.Now().UTC()).AddDate(0, 0, days),
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	if err := h.Packs.CreatePending(ctx, &pack); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create class pack failed"})
	}
	return c.JSON(http.StatusCreated, echo.Map{"class_pack": toClassPackPart(pack)})
}

// PackUsage returns the spend history of one of the member's packs.
func (h *EntitlementHandler) PackUsage(c echo.Context) error {
	memberID, err := getMemberID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	packID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || packID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid class pack id"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	usage, err := h.Packs.UsageForPack(ctx, packID, memberID)
	if err != nil {
		if err == sql.ErrNoRows {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "class pack not found"})
		}
		if err == repository.ErrForbidden {
			return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	type usagePart struct {
		RecordID       uint64  `json:"record_id"`
		SessionID      uint64  `json:"session_id"`
		OccurrenceDate *string `json:"occurrence_date,omitempty"`
		UsedAt         string  `json:"used_at"`
	}
	out := make([]usagePart, 0, len(usage))
	for _, u := range usage {
		up := usagePart{RecordID: u.RecordID, SessionID: u.SessionID, UsedAt: u.UsedAt.UTC().Format(time.RFC3339)}
		if u.OccurrenceDate != nil {
			iso := u.OccurrenceDate.Format("2006-01-02")
			up.OccurrenceDate = &iso
		}
		out = append(out, up)
	}
	return c.JSON(http.StatusOK, echo.Map{"usage": out})
}
