package repository

import (
	"context"
	"database/sql"
	"time"
)

// OccupancyRepo provides read models over occupancy records for the
// HTTP layer. All mutations of occupancy go through the booking
// engine; this repo only assembles display shapes such as a member's
// booking list and a coach's roster.
type OccupancyRepo struct {
	db *sql.DB
}

// NewOccupancyRepo returns an OccupancyRepo bound to the given database.
func NewOccupancyRepo(db *sql.DB) *OccupancyRepo { return &OccupancyRepo{db: db} }

// BookingDetail is a member's booking joined with its session info.
// OccurrenceDate is nil for one-time sessions; the session's own start
// date applies then.
type BookingDetail struct {
	ID             uint64  `json:"id"`
	SessionID      uint64  `json:"session_id"`
	SessionTitle   string  `json:"session_title"`
	Status         string  `json:"status"`
	OccurrenceDate *string `json:"occurrence_date,omitempty"`
	StartDate      string  `json:"start_date"`
	StartTime      string  `json:"start_time"`
	DurationMin    uint32  `json:"duration_min"`
	FundedBy       *string `json:"funded_by,omitempty"`
	ClassPackID    *uint64 `json:"class_pack_id,omitempty"`
	CreatedAt      string  `json:"created_at"`
}

// ListByMember returns all of a member's bookings in every status,
// newest first. When no bookings exist an empty slice is returned.
func (r *OccupancyRepo) ListByMember(ctx context.Context, memberID uint64) ([]BookingDetail, error) {
	const q = `SELECT o.id, o.session_id, cs.title, o.status, o.occurrence_date,
	                  cs.start_date, cs.start_time, cs.duration_min,
	                  o.funded_by, o.class_pack_id, o.created_at
	           FROM occupancy_records o
	           JOIN class_sessions cs ON cs.id = o.session_id
	           WHERE o.member_id = ?
	           ORDER BY o.created_at DESC, o.id DESC`
	rows, err := r.db.QueryContext(ctx, q, memberID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	details := make([]BookingDetail, 0)
	for rows.Next() {
		var d BookingDetail
		var occDate sql.NullTime
		var startDate time.Time
		var fundedBy sql.NullString
		var packID sql.NullInt64
		var createdAt time.Time
		if err := rows.Scan(
			&d.ID, &d.SessionID, &d.SessionTitle, &d.Status, &occDate,
			&startDate, &d.StartTime, &d.DurationMin,
			&fundedBy, &packID, &createdAt,
		); err != nil {
			return nil, err
		}
		if occDate.Valid {
			iso := occDate.Time.Format("2006-01-02")
			d.OccurrenceDate = &iso
		}
		d.StartDate = startDate.Format("2006-01-02")
		if fundedBy.Valid {
			fb := fundedBy.String
			d.FundedBy = &fb
		}
		if packID.Valid {
			pid := uint64(packID.Int64)
			d.ClassPackID = &pid
		}
		d.CreatedAt = createdAt.UTC().Format(time.RFC3339)
		details = append(details, d)
	}
	return details, rows.Err()
}

// RosterEntry is one member on an instance's roster as shown to the
// coach.
type RosterEntry struct {
	RecordID   uint64 `json:"record_id"`
	MemberID   uint64 `json:"member_id"`
	MemberName string `json:"member_name"`
	Email      string `json:"email"`
	Status     string `json:"status"`
	BookedAt   string `json:"booked_at"`
}

// RosterForCoach lists confirmed then waitlisted members of one
// instance, each group in booking order, after verifying the session
// belongs to the calling coach. It returns sql.ErrNoRows when the
// session does not exist and ErrForbidden when another coach owns it.
func (r *OccupancyRepo) RosterForCoach(ctx context.Context, sessionID uint64, instanceKey string, coachID uint64) ([]RosterEntry, error) {
	var actualCoachID uint64
	err := r.db.QueryRowContext(ctx,
		`SELECT coach_id FROM class_sessions WHERE id = ?`, sessionID).Scan(&actualCoachID)
	if err != nil {
		return nil, err
	}
	if actualCoachID != coachID {
		return nil, ErrForbidden
	}
	const q = `SELECT o.id, o.member_id, m.full_name, m.email, o.status, o.created_at
	           FROM occupancy_records o
	           JOIN members m ON m.id = o.member_id
	           WHERE o.session_id = ? AND o.instance_key = ? AND o.status <> 'CANCELLED'
	           ORDER BY FIELD(o.status, 'CONFIRMED', 'WAITLISTED'), o.created_at ASC, o.id ASC`
	rows, err := r.db.QueryContext(ctx, q, sessionID, instanceKey)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	entries := make([]RosterEntry, 0)
	for rows.Next() {
		var e RosterEntry
		var bookedAt time.Time
		if err := rows.Scan(&e.RecordID, &e.MemberID, &e.MemberName, &e.Email, &e.Status, &bookedAt); err != nil {
			return nil, err
		}
		e.BookedAt = bookedAt.UTC().Format(time.RFC3339)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
