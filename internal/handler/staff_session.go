package handler

import (
	"context"
	"database/sql"
	"net/http"
	"regexp"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/studiofit/class-booking/internal/booking"
	"github.com/studiofit/class-booking/internal/model"
	"github.com/studiofit/class-booking/internal/repository"
)

// StaffHandler bundles dependencies for coaches to manage their class
// sessions and inspect rosters.
type StaffHandler struct {
	Sessions *repository.SessionRepo
	Roster   *repository.OccupancyRepo
}

func NewStaffHandler(sessions *repository.SessionRepo, roster *repository.OccupancyRepo) *StaffHandler {
	if sessions == nil || roster == nil {
		panic("nil repository passed to NewStaffHandler")
	}
	return &StaffHandler{Sessions: sessions, Roster: roster}
}

type sessionReq struct {
	Title           string `json:"title"`
	StartDate       string `json:"start_date"` // YYYY-MM-DD
	StartTime       string `json:"start_time"` // HH:MM or HH:MM:SS
	DurationMin     uint32 `json:"duration_min"`
	Capacity        uint32 `json:"capacity"`
	Recurrence      string `json:"recurrence"`    // NONE | DAILY | WEEKLY | MONTHLY
	DaysOfWeek      []int  `json:"days_of_week"`  // 0=Sunday, WEEKLY only
	RecurrenceEnd   string `json:"recurrence_end"` // YYYY-MM-DD, optional
	WaitlistEnabled bool   `json:"waitlist_enabled"`
}

type sessionPart struct {
	ID              uint64  `json:"id"`
	CoachID         uint64  `json:"coach_id"`
	Title           string  `json:"title"`
	StartDate       string  `json:"start_date"`
	StartTime       string  `json:"start_time"`
	DurationMin     uint32  `json:"duration_min"`
	Capacity        uint32  `json:"capacity"`
	Recurrence      string  `json:"recurrence"`
	DaysOfWeek      []int   `json:"days_of_week,omitempty"`
	RecurrenceEnd   *string `json:"recurrence_end,omitempty"`
	WaitlistEnabled bool    `json:"waitlist_enabled"`
}

func toSessionPart(s *model.ClassSession) sessionPart {
	p := sessionPart{
		ID:              s.ID,
		CoachID:         s.CoachID,
		Title:           s.Title,
		StartDate:       s.StartDate.Format("2006-01-02"),
		StartTime:       s.StartTime,
		DurationMin:     s.DurationMin,
		Capacity:        s.Capacity,
		Recurrence:      string(s.Recurrence),
		DaysOfWeek:      s.DaysOfWeek,
		WaitlistEnabled: s.WaitlistEnabled,
	}
	if s.RecurrenceEnd != nil {
		iso := s.RecurrenceEnd.Format("2006-01-02")
		p.RecurrenceEnd = &iso
	}
	return p
}

var startTimeRe = regexp.MustCompile(`^([01]\d|2[0-3]):[0-5]\d(:[0-5]\d)?$`)

// buildSession validates a request body into a ClassSession, returning
// a client-facing message when the input is rejected.
func buildSession(req sessionReq, coachID uint64) (*model.ClassSession, string) {
	if req.Title == "" {
		return nil, "title required"
	}
	if req.Capacity < model.MinCapacity || req.Capacity > model.MaxCapacity {
		return nil, "capacity must be between 1 and 5"
	}
	startDate, err := time.Parse("2006-01-02", req.StartDate)
	if err != nil {
		return nil, "start_date must be YYYY-MM-DD"
	}
	if !startTimeRe.MatchString(req.StartTime) {
		return nil, "start_time must be HH:MM or HH:MM:SS"
	}
	startTime := req.StartTime
	if len(startTime) == 5 {
		startTime += ":00"
	}
	if req.DurationMin < 15 || req.DurationMin > 240 {
		return nil, "duration_min must be between 15 and 240"
	}
	rec := model.Recurrence(req.Recurrence)
	if rec == "" {
		rec = model.RecurrenceNone
	}
	switch rec {
	case model.RecurrenceNone, model.RecurrenceDaily, model.RecurrenceWeekly, model.RecurrenceMonthly:
	default:
		return nil, "recurrence must be NONE, DAILY, WEEKLY or MONTHLY"
	}
	if rec != model.RecurrenceWeekly && len(req.DaysOfWeek) > 0 {
		return nil, "days_of_week only applies to WEEKLY recurrence"
	}
	for _, d := range req.DaysOfWeek {
		if d < 0 || d > 6 {
			return nil, "days_of_week values must be 0 (Sunday) through 6 (Saturday)"
		}
	}
	sess := &model.ClassSession{
		CoachID:         coachID,
		Title:           req.Title,
		StartDate:       startDate.UTC(),
		StartTime:       startTime,
		DurationMin:     req.DurationMin,
		Capacity:        req.Capacity,
		Recurrence:      rec,
		DaysOfWeek:      req.DaysOfWeek,
		WaitlistEnabled: req.WaitlistEnabled,
	}
	if req.RecurrenceEnd != "" {
		if rec == model.RecurrenceNone {
			return nil, "recurrence_end only applies to recurring sessions"
		}
		end, err := time.Parse("2006-01-02", req.RecurrenceEnd)
		if err != nil {
			return nil, "recurrence_end must be YYYY-MM-DD"
		}
		if end.Before(startDate) {
			return nil, "recurrence_end is before start_date"
		}
		endUTC := end.UTC()
		sess.RecurrenceEnd = &endUTC
	}
	return sess, ""
}

// CreateSession registers a new class session for the calling coach.
func (h *StaffHandler) CreateSession(c echo.Context) error {
	coachID, err := getMemberID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req sessionReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	sess, msg := buildSession(req, coachID)
	if msg != "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": msg})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	if err := h.Sessions.Create(ctx, sess); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create session failed"})
	}
	return c.JSON(http.StatusCreated, echo.Map{"session": toSessionPart(sess)})
}

// UpdateSession rewrites a session owned by the calling coach.
// Capacity changes do not evict already confirmed members; a reduced
// capacity only throttles new bookings.
func (h *StaffHandler) UpdateSession(c echo.Context) error {
	coachID, err := getMemberID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	sessionID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || sessionID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid session id"})
	}
	var req sessionReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	sess, msg := buildSession(req, coachID)
	if msg != "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": msg})
	}
	sess.ID = sessionID

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	if err := h.Sessions.Update(ctx, sess, coachID); err != nil {
		switch err {
		case booking.ErrSessionNotFound:
			return c.JSON(http.StatusNotFound, echo.Map{"error": "session not found"})
		case repository.ErrForbidden:
			return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
		default:
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "update session failed"})
		}
	}
	return c.JSON(http.StatusOK, echo.Map{"session": toSessionPart(sess)})
}

// DeleteSession removes a session that has no active bookings.
func (h *StaffHandler) DeleteSession(c echo.Context) error {
	coachID, err := getMemberID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	sessionID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || sessionID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid session id"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	if err := h.Sessions.Delete(ctx, sessionID, coachID); err != nil {
		switch err {
		case booking.ErrSessionNotFound:
			return c.JSON(http.StatusNotFound, echo.Map{"error": "session not found"})
		case repository.ErrForbidden:
			return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
		case repository.ErrConflict:
			return c.JSON(http.StatusConflict, echo.Map{"error": "session still has active bookings"})
		default:
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "delete session failed"})
		}
	}
	return c.NoContent(http.StatusNoContent)
}

// MySessions lists the sessions coached by the caller.
func (h *StaffHandler) MySessions(c echo.Context) error {
	coachID, err := getMemberID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	sessions, err := h.Sessions.ListByCoach(ctx, coachID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	out := make([]sessionPart, 0, len(sessions))
	for i := range sessions {
		out = append(out, toSessionPart(&sessions[i]))
	}
	return c.JSON(http.StatusOK, echo.Map{"sessions": out})
}

// SessionRoster lists the confirmed and waitlisted members of one
// instance of a session owned by the calling coach.
func (h *StaffHandler) SessionRoster(c echo.Context) error {
	coachID, err := getMemberID(c)
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

	roster, err := h.Roster.RosterForCoach(ctx, sessionID, inst.Key(), coachID)
	if err != nil {
		if err == sql.ErrNoRows {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "session not found"})
		}
		if err == repository.ErrForbidden {
			return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"session_id": sessionID,
		"capacity":   sess.Capacity,
		"roster":     roster,
	})
}
