package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/studiofit/class-booking/internal/booking"
	"github.com/studiofit/class-booking/internal/model"
	"github.com/studiofit/class-booking/internal/queue"
	"github.com/studiofit/class-booking/internal/repository"
	queue_publisher "github.com/studiofit/class-booking/internal/service"
)

// BookingHandler exposes the member-facing booking endpoints.  All
// seat mutations go through the engine; the handler's job is request
// parsing, outcome-to-status mapping and event publication.
type BookingHandler struct {
	Engine   *booking.Orchestrator
	Sessions *repository.SessionRepo
	Bookings *repository.OccupancyRepo
	Store    *repository.Store
}

func NewBookingHandler(engine *booking.Orchestrator, sessions *repository.SessionRepo, bookings *repository.OccupancyRepo, store *repository.Store) *BookingHandler {
	return &BookingHandler{Engine: engine, Sessions: sessions, Bookings: bookings, Store: store}
}

type bookReq struct {
	SessionID      uint64 `json:"session_id"`
	OccurrenceDate string `json:"occurrence_date"` // YYYY-MM-DD, recurring sessions only
}

type bookingPart struct {
	RecordID       uint64  `json:"record_id"`
	SessionID      uint64  `json:"session_id"`
	Status         string  `json:"status"`
	OccurrenceDate *string `json:"occurrence_date,omitempty"`
	FundedBy       string  `json:"funded_by,omitempty"`
	Reactivated    bool    `json:"reactivated,omitempty"`
}

// Book attempts to enroll the member in a class instance.  A full
// class with a waitlist yields a WAITLISTED booking; other non-success
// outcomes map to 4xx responses carrying the engine's reasons.
func (h *BookingHandler) Book(c echo.Context) error {
	memberID, err := getMemberID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req bookReq
	if err := c.Bind(&req); err != nil || req.SessionID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "session_id required"})
	}
	occDate, present, err := parseDateParam(req.OccurrenceDate)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "occurrence_date must be YYYY-MM-DD"})
	}
	engineReq := booking.BookRequest{MemberID: memberID, SessionID: req.SessionID}
	if present {
		engineReq.OccurrenceDate = &occDate
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	res, err := h.Engine.Book(ctx, engineReq)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "booking failed"})
	}

	switch res.Outcome {
	case booking.OutcomeConfirmed, booking.OutcomeWaitlisted:
		if res.Outcome == booking.OutcomeConfirmed {
			h.publishConfirmed(res.Record, string(res.PaidWith), false)
		}
		return c.JSON(http.StatusCreated, echo.Map{"booking": toBookingPart(res)})
	case booking.OutcomeAlreadyEnrolled:
		return c.JSON(http.StatusConflict, echo.Map{"error": "already enrolled", "reasons": res.Reasons})
	case booking.OutcomeCapacityExceeded:
		return c.JSON(http.StatusConflict, echo.Map{"error": "class is full", "reasons": res.Reasons})
	case booking.OutcomeNotEntitled:
		return c.JSON(http.StatusUnprocessableEntity, echo.Map{"error": "not entitled", "reasons": res.Reasons})
	case booking.OutcomeNotFound:
		return c.JSON(http.StatusNotFound, echo.Map{"error": "session not found"})
	default:
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid booking request", "reasons": res.Reasons})
	}
}

func toBookingPart(res booking.BookingResult) bookingPart {
	p := bookingPart{
		RecordID:    res.Record.ID,
		SessionID:   res.Record.SessionID,
		Status:      string(res.Record.Status),
		FundedBy:    string(res.PaidWith),
		Reactivated: res.Reactivated,
	}
	if res.Record.OccurrenceDate != nil {
		iso := res.Record.OccurrenceDate.Format("2006-01-02")
		p.OccurrenceDate = &iso
	}
	return p
}

// Cancel releases the member's seat for a class instance.  When a
// confirmed seat frees up, the engine may promote the head of the
// waitlist; the promoted booking is reported back and announced on the
// broker.
func (h *BookingHandler) Cancel(c echo.Context) error {
	memberID, err := getMemberID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	sessionID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || sessionID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid session id"})
	}
	occDate, present, err := parseDateParam(c.QueryParam("occurrence_date"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "occurrence_date must be YYYY-MM-DD"})
	}
	engineReq := booking.CancelRequest{MemberID: memberID, SessionID: sessionID}
	if present {
		engineReq.OccurrenceDate = &occDate
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	res, err := h.Engine.Cancel(ctx, engineReq)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "cancellation failed"})
	}

	switch res.Outcome {
	case booking.CancelOK:
		resp := echo.Map{"status": "CANCELLED", "refunded": res.Refunded}
		if res.Promoted != nil {
			h.publishConfirmed(res.Promoted, string(res.Promoted.FundedBy), true)
			resp["promoted_member_id"] = res.Promoted.MemberID
		}
		return c.JSON(http.StatusOK, resp)
	case booking.CancelNotFound:
		return c.JSON(http.StatusNotFound, echo.Map{"error": "booking not found"})
	default:
		return c.JSON(http.StatusConflict, echo.Map{
			"error":           "cancellation not allowed",
			"reason":          res.Reason,
			"required_hours":  res.RequiredHours,
			"remaining_hours": res.RemainingHours,
		})
	}
}

// publishConfirmed announces a confirmed seat on the broker.  Failures
// are ignored; the booking is already durable and the event is advisory.
func (h *BookingHandler) publishConfirmed(rec *model.OccupancyRecord, fundedBy string, promoted bool) {
	if rec == nil {
		return
	}
	ev := queue.BookingConfirmedEvent{
		RecordID:    rec.ID,
		MemberID:    rec.MemberID,
		SessionID:   rec.SessionID,
		FundedBy:    fundedBy,
		Promoted:    promoted,
		ConfirmedAt: time.Now().UTC().Format(time.RFC3339),
	}
	if rec.OccurrenceDate != nil {
		ev.OccurrenceDate = rec.OccurrenceDate.Format("2006-01-02")
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if sess, err := h.Sessions.GetByID(ctx, rec.SessionID); err == nil {
			ev.SessionTitle = sess.Title
			ev.StartTime = sess.StartTime
		}
		_ = queue_publisher.PublishBookingConfirmed(ctx, ev)
	}()
}

// MyBookings lists the member's bookings in every status, newest first.
func (h *BookingHandler) MyBookings(c echo.Context) error {
	memberID, err := getMemberID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	list, err := h.Bookings.ListByMember(ctx, memberID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"bookings": list})
}

type scheduleEntry struct {
	SessionID      uint64  `json:"session_id"`
	Title          string  `json:"title"`
	CoachID        uint64  `json:"coach_id"`
	OccurrenceDate *string `json:"occurrence_date,omitempty"`
	Date           string  `json:"date"`
	StartTime      string  `json:"start_time"`
	DurationMin    uint32  `json:"duration_min"`
	Capacity       uint32  `json:"capacity"`
	Confirmed      int     `json:"confirmed"`
	Waitlisted     int     `json:"waitlisted"`
	SpotsLeft      int     `json:"spots_left"`
	Waitlist       bool    `json:"waitlist_enabled"`
}

// Schedule expands every session's recurrence rule over a date range
// (default: the next 7 days, capped at 31) and reports live occupancy
// per instance.
func (h *BookingHandler) Schedule(c echo.Context) error {
	now := time.Now().UTC()
	from := model.StartOfDay(now)
	to := from.AddDate(0, 0, 6)
	if t, present, err := parseDateParam(c.QueryParam("from")); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "from must be YYYY-MM-DD"})
	} else if present {
		from = t
		to = from.AddDate(0, 0, 6)
	}
	if t, present, err := parseDateParam(c.QueryParam("to")); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "to must be YYYY-MM-DD"})
	} else if present {
		to = t
	}
	if to.Before(from) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "to is before from"})
	}
	if to.Sub(from) > 31*24*time.Hour {
		to = from.AddDate(0, 0, 31)
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	sessions, err := h.Sessions.ListAll(ctx)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}

	entries := make([]scheduleEntry, 0)
	for i := range sessions {
		sess := &sessions[i]
		for _, date := range booking.Occurrences(sess, from, to) {
			inst := booking.InstanceID{}
			if sess.IsRecurring() {
				inst = booking.NewInstanceID(sess.ID, date)
			}
			occ, err := h.Store.CountOccupancy(ctx, sess.ID, inst.Key())
			if err != nil {
				return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
			}
			e := scheduleEntry{
				SessionID:   sess.ID,
				Title:       sess.Title,
				CoachID:     sess.CoachID,
				Date:        date.Format("2006-01-02"),
				StartTime:   sess.StartTime,
				DurationMin: sess.DurationMin,
				Capacity:    sess.Capacity,
				Confirmed:   occ.Confirmed,
				Waitlisted:  occ.Waitlisted,
				SpotsLeft:   int(sess.Capacity) - occ.Confirmed,
				Waitlist:    sess.WaitlistEnabled,
			}
			if sess.IsRecurring() {
				iso := date.Format("2006-01-02")
				e.OccurrenceDate = &iso
			}
			entries = append(entries, e)
		}
	}
	return c.JSON(http.StatusOK, echo.Map{
		"from":     from.Format("2006-01-02"),
		"to":       to.Format("2006-01-02"),
		"schedule": entries,
	})
}

// Occupancy reports the confirmed and waitlisted counts of a single
// class instance.
func (h *BookingHandler) Occupancy(c echo.Context) error {
	sessionID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || sessionID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid session id"})
	}
	occDate, present, err := parseDateParam(c.QueryParam("occurrence_date"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "occurrence_date must be YYYY-MM-DD"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	sess, err := h.Sessions.GetByID(ctx, sessionID)
	if err != nil {
		if err == booking.ErrSessionNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "session not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	inst := booking.InstanceID{}
	if sess.IsRecurring() {
		if !present {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "occurrence_date required for recurring sessions"})
		}
		if !booking.OccursOn(sess, occDate) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "session does not occur on that date"})
		}
		inst = booking.NewInstanceID(sess.ID, occDate)
	}
	occ, err := h.Store.CountOccupancy(ctx, sess.ID, inst.Key())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"session_id": sess.ID,
		"capacity":   sess.Capacity,
		"occupancy":  occ,
		"spots_left": int(sess.Capacity) - occ.Confirmed,
	})
}

// CancellationNotice tells the member how much advance notice their
// cancellations currently require.
func (h *BookingHandler) CancellationNotice(c echo.Context) error {
	memberID, err := getMemberID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	notice, err := h.Engine.Policy().RequiredNotice(ctx, memberID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"notice": notice})
}
