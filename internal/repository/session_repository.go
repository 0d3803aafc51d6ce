// Package repository contains data access logic for class session
// operations. This file defines repository methods for the
// class_sessions table. A ClassSession is a scheduled class that may
// repeat according to its recurrence rule; staff manage sessions they
// coach, while members only read them through the schedule.
package repository

import (
	"context"
	"database/sql"

	"github.com/studiofit/class-booking/internal/booking"
	"github.com/studiofit/class-booking/internal/model"
)

// SessionRepo manages persistence for class sessions.
type SessionRepo struct {
	db *sql.DB
}

// NewSessionRepo constructs a SessionRepo with the given DB handle.
func NewSessionRepo(db *sql.DB) *SessionRepo {
	return &SessionRepo{db: db}
}

// DB exposes the underlying sql.DB.  It allows callers to begin
// transactions spanning multiple repositories.
func (r *SessionRepo) DB() *sql.DB {
	return r.db
}

// Create inserts a new class session and assigns the generated ID back
// to the struct. The caller must have validated capacity and the
// recurrence rule beforehand. DB-default fields (timestamps) are
// populated by querying the row back after the insert.
func (r *SessionRepo) Create(ctx context.Context, s *model.ClassSession) error {
	const q = `INSERT INTO class_sessions
	           (coach_id, title, start_date, start_time, duration_min, capacity, recurrence, days_of_week, recurrence_end, waitlist_enabled)
	           VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	var recEnd interface{}
	if s.RecurrenceEnd != nil {
		recEnd = s.RecurrenceEnd.Format("2006-01-02")
	}
	res, err := r.db.ExecContext(ctx, q,
		s.CoachID, s.Title, s.StartDate.Format("2006-01-02"), s.StartTime,
		s.DurationMin, s.Capacity, s.Recurrence, formatDays(s.DaysOfWeek), recEnd,
		s.WaitlistEnabled)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	s.ID = uint64(id)
	return r.db.QueryRowContext(ctx,
		`SELECT created_at, updated_at FROM class_sessions WHERE id = ?`, s.ID,
	).Scan(&s.CreatedAt, &s.UpdatedAt)
}

// GetByID retrieves a session by its ID. It returns
// booking.ErrSessionNotFound when no matching row exists.
func (r *SessionRepo) GetByID(ctx context.Context, id uint64) (*model.ClassSession, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM class_sessions WHERE id = ?`, id)
	s, err := scanSession(row.Scan)
	if err == sql.ErrNoRows {
		return nil, booking.ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// Update rewrites the mutable fields of a session owned by the given
// coach. It returns booking.ErrSessionNotFound when the session does
// not exist and ErrForbidden when it belongs to another coach.
func (r *SessionRepo) Update(ctx context.Context, s *model.ClassSession, coachID uint64) error {
	var actualCoachID uint64
	err := r.db.QueryRowContext(ctx,
		`SELECT coach_id FROM class_sessions WHERE id = ?`, s.ID).Scan(&actualCoachID)
	if err == sql.ErrNoRows {
		return booking.ErrSessionNotFound
	}
	if err != nil {
		return err
	}
	if actualCoachID != coachID {
		return ErrForbidden
	}
	var recEnd interface{}
	if s.RecurrenceEnd != nil {
		recEnd = s.RecurrenceEnd.Format("2006-01-02")
	}
	_, err = r.db.ExecContext(ctx,
		`UPDATE class_sessions
		 SET title = ?, start_date = ?, start_time = ?, duration_min = ?, capacity = ?,
		     recurrence = ?, days_of_week = ?, recurrence_end = ?, waitlist_enabled = ?
		 WHERE id = ?`,
		s.Title, s.StartDate.Format("2006-01-02"), s.StartTime, s.DurationMin, s.Capacity,
		s.Recurrence, formatDays(s.DaysOfWeek), recEnd, s.WaitlistEnabled, s.ID)
	return err
}

// Delete removes a session owned by the given coach. Sessions that
// still carry confirmed or waitlisted records cannot be deleted; the
// caller receives ErrConflict and must cancel the bookings first.
func (r *SessionRepo) Delete(ctx context.Context, id, coachID uint64) error {
	var actualCoachID uint64
	err := r.db.QueryRowContext(ctx,
		`SELECT coach_id FROM class_sessions WHERE id = ?`, id).Scan(&actualCoachID)
	if err == sql.ErrNoRows {
		return booking.ErrSessionNotFound
	}
	if err != nil {
		return err
	}
	if actualCoachID != coachID {
		return ErrForbidden
	}
	var active int
	err = r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM occupancy_records WHERE session_id = ? AND status <> 'CANCELLED'`,
		id).Scan(&active)
	if err != nil {
		return err
	}
	if active > 0 {
		return ErrConflict
	}
	_, err = r.db.ExecContext(ctx, `DELETE FROM class_sessions WHERE id = ?`, id)
	return err
}

// ListByCoach returns all sessions created by a coach, newest first.
func (r *SessionRepo) ListByCoach(ctx context.Context, coachID uint64) ([]model.ClassSession, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+sessionColumns+` FROM class_sessions WHERE coach_id = ? ORDER BY created_at DESC, id DESC`,
		coachID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectSessions(rows)
}

// ListAll returns every session for schedule expansion.
func (r *SessionRepo) ListAll(ctx context.Context) ([]model.ClassSession, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+sessionColumns+` FROM class_sessions ORDER BY start_date ASC, start_time ASC, id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectSessions(rows)
}

func collectSessions(rows *sql.Rows) ([]model.ClassSession, error) {
	out := make([]model.ClassSession, 0)
	for rows.Next() {
		s, err := scanSession(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
