package repository

import (
	"context"
	"database/sql"
	"strconv"
	"strings"
	"time"

	"github.com/studiofit/class-booking/internal/booking"
	"github.com/studiofit/class-booking/internal/model"
)

// Store is the MySQL implementation of the booking engine's
// persistence surface (booking.Store).  Mutating flows run inside a
// transaction started by WithTx; the transaction travels in the
// context so nested engine calls join it transparently.  Per-session
// and per-pack serialization come from SELECT ... FOR UPDATE row locks.
type Store struct {
	db *sql.DB
}

// NewStore returns a Store bound to the given database.
func NewStore(db *sql.DB) *Store { return &Store{db: db} }

// DB exposes the underlying handle for callers that manage their own
// statements (handlers running simple reads).
func (s *Store) DB() *sql.DB { return s.db }

type txKey struct{}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

func txFromContext(ctx context.Context) *sql.Tx {
	tx, _ := ctx.Value(txKey{}).(*sql.Tx)
	return tx
}

func (s *Store) q(ctx context.Context) querier {
	if tx := txFromContext(ctx); tx != nil {
		return tx
	}
	return s.db
}

// WithTx runs fn inside a transaction.  When ctx already carries one,
// fn joins it and commit/rollback stay with the outermost caller.
func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if txFromContext(ctx) != nil {
		return fn(ctx)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

const sessionColumns = `id, coach_id, title, start_date, start_time, duration_min, capacity,
       recurrence, days_of_week, recurrence_end, waitlist_enabled, created_at, updated_at`

func scanSession(scan func(dest ...interface{}) error) (model.ClassSession, error) {
	var sess model.ClassSession
	var days sql.NullString
	var recEnd sql.NullTime
	err := scan(
		&sess.ID, &sess.CoachID, &sess.Title, &sess.StartDate, &sess.StartTime,
		&sess.DurationMin, &sess.Capacity, &sess.Recurrence, &days, &recEnd,
		&sess.WaitlistEnabled, &sess.CreatedAt, &sess.UpdatedAt,
	)
	if err != nil {
		return model.ClassSession{}, err
	}
	if days.Valid {
		sess.DaysOfWeek = parseDays(days.String)
	}
	if recEnd.Valid {
		end := recEnd.Time
		sess.RecurrenceEnd = &end
	}
	return sess, nil
}

// parseDays decodes the days_of_week csv column ("0,3,5") into weekday
// numbers; malformed entries are dropped rather than failing the scan.
func parseDays(csv string) []int {
	parts := strings.Split(csv, ",")
	out := make([]int, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err == nil && n >= 0 && n <= 6 {
			out = append(out, n)
		}
	}
	return out
}

func formatDays(days []int) sql.NullString {
	if len(days) == 0 {
		return sql.NullString{}
	}
	parts := make([]string, 0, len(days))
	for _, d := range days {
		parts = append(parts, strconv.Itoa(d))
	}
	return sql.NullString{String: strings.Join(parts, ","), Valid: true}
}

// SessionByID loads a session without locking it.
func (s *Store) SessionByID(ctx context.Context, id uint64) (model.ClassSession, error) {
	row := s.q(ctx).QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM class_sessions WHERE id = ?`, id)
	sess, err := scanSession(row.Scan)
	if err == sql.ErrNoRows {
		return model.ClassSession{}, booking.ErrSessionNotFound
	}
	return sess, err
}

// SessionForUpdate loads the session and holds its row lock until the
// surrounding transaction ends.  This is the single-writer gate for all
// occupancy mutations of the session's instances.
func (s *Store) SessionForUpdate(ctx context.Context, id uint64) (model.ClassSession, error) {
	row := s.q(ctx).QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM class_sessions WHERE id = ? FOR UPDATE`, id)
	sess, err := scanSession(row.Scan)
	if err == sql.ErrNoRows {
		return model.ClassSession{}, booking.ErrSessionNotFound
	}
	return sess, err
}

// CountOccupancy counts non-cancelled records of one instance.  The
// instance key is stored as an empty string for one-time sessions, so
// the same equality match covers both shapes.
func (s *Store) CountOccupancy(ctx context.Context, sessionID uint64, instanceKey string) (booking.Occupancy, error) {
	rows, err := s.q(ctx).QueryContext(ctx,
		`SELECT status, COUNT(*) FROM occupancy_records
		 WHERE session_id = ? AND instance_key = ? AND status <> 'CANCELLED'
		 GROUP BY status`,
		sessionID, instanceKey)
	if err != nil {
		return booking.Occupancy{}, err
	}
	defer rows.Close()
	var occ booking.Occupancy
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return booking.Occupancy{}, err
		}
		switch model.OccupancyStatus(status) {
		case model.StatusConfirmed:
			occ.Confirmed = n
		case model.StatusWaitlisted:
			occ.Waitlisted = n
		}
	}
	return occ, rows.Err()
}

const recordColumns = `id, session_id, member_id, status, instance_key, occurrence_date,
       funded_by, class_pack_id, created_at, updated_at`

func scanRecord(scan func(dest ...interface{}) error) (*model.OccupancyRecord, error) {
	var rec model.OccupancyRecord
	var occDate sql.NullTime
	var fundedBy sql.NullString
	var packID sql.NullInt64
	err := scan(
		&rec.ID, &rec.SessionID, &rec.MemberID, &rec.Status, &rec.InstanceKey,
		&occDate, &fundedBy, &packID, &rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if occDate.Valid {
		d := occDate.Time
		rec.OccurrenceDate = &d
	}
	if fundedBy.Valid {
		rec.FundedBy = model.FundingSource(fundedBy.String)
	}
	if packID.Valid {
		id := uint64(packID.Int64)
		rec.ClassPackID = &id
	}
	return &rec, nil
}

// RecordForMember returns the member's record for the instance in any
// status, or nil when none exists.  Re-booking reuses cancelled rows,
// so there is at most one row per (member, instance).
func (s *Store) RecordForMember(ctx context.Context, sessionID, memberID uint64, instanceKey string) (*model.OccupancyRecord, error) {
	row := s.q(ctx).QueryRowContext(ctx,
		`SELECT `+recordColumns+` FROM occupancy_records
		 WHERE session_id = ? AND member_id = ? AND instance_key = ?
		 LIMIT 1`,
		sessionID, memberID, instanceKey)
	rec, err := scanRecord(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return rec, err
}

// InsertRecord appends a new occupancy record and reads back the
// DB-assigned id and timestamps.
func (s *Store) InsertRecord(ctx context.Context, rec *model.OccupancyRecord) error {
	var occDate interface{}
	if rec.OccurrenceDate != nil {
		occDate = rec.OccurrenceDate.Format("2006-01-02")
	}
	result, err := s.q(ctx).ExecContext(ctx,
		`INSERT INTO occupancy_records (session_id, member_id, status, instance_key, occurrence_date)
		 VALUES (?, ?, ?, ?, ?)`,
		rec.SessionID, rec.MemberID, rec.Status, rec.InstanceKey, occDate)
	if err != nil {
		return err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	rec.ID = uint64(id)
	return s.q(ctx).QueryRowContext(ctx,
		`SELECT created_at, updated_at FROM occupancy_records WHERE id = ?`, rec.ID,
	).Scan(&rec.CreatedAt, &rec.UpdatedAt)
}

// UpdateRecordStatus transitions a record; updated_at moves with it.
func (s *Store) UpdateRecordStatus(ctx context.Context, recordID uint64, status model.OccupancyStatus) error {
	_, err := s.q(ctx).ExecContext(ctx,
		`UPDATE occupancy_records SET status = ? WHERE id = ?`, status, recordID)
	return err
}

// SetRecordFunding tags (or, with an empty source, clears) the
// entitlement that paid for the seat.
func (s *Store) SetRecordFunding(ctx context.Context, recordID uint64, source model.FundingSource, classPackID *uint64) error {
	var src sql.NullString
	if source != "" {
		src = sql.NullString{String: string(source), Valid: true}
	}
	var pack sql.NullInt64
	if classPackID != nil {
		pack = sql.NullInt64{Int64: int64(*classPackID), Valid: true}
	}
	_, err := s.q(ctx).ExecContext(ctx,
		`UPDATE occupancy_records SET funded_by = ?, class_pack_id = ? WHERE id = ?`,
		src, pack, recordID)
	return err
}

// WaitlistedInOrder lists an instance's waitlist oldest-first; the id
// tiebreak keeps the order stable when two rows share a timestamp.
func (s *Store) WaitlistedInOrder(ctx context.Context, sessionID uint64, instanceKey string) ([]model.OccupancyRecord, error) {
	rows, err := s.q(ctx).QueryContext(ctx,
		`SELECT `+recordColumns+` FROM occupancy_records
		 WHERE session_id = ? AND instance_key = ? AND status = 'WAITLISTED'
		 ORDER BY created_at ASC, id ASC`,
		sessionID, instanceKey)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.OccupancyRecord
	for rows.Next() {
		rec, err := scanRecord(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

// CountMemberConfirmedBetween is the weekly quota counter's scan: it
// counts the member's confirmed records across all sessions whose
// effective date falls in [from, to).  The effective date is the
// occurrence date when present, else the session's own start date.
func (s *Store) CountMemberConfirmedBetween(ctx context.Context, memberID uint64, from, to time.Time) (int, error) {
	var n int
	err := s.q(ctx).QueryRowContext(ctx,
		`SELECT COUNT(*)
		 FROM occupancy_records o
		 JOIN class_sessions cs ON cs.id = o.session_id
		 WHERE o.member_id = ? AND o.status = 'CONFIRMED'
		   AND COALESCE(o.occurrence_date, cs.start_date) >= ?
		   AND COALESCE(o.occurrence_date, cs.start_date) < ?`,
		memberID, from.Format("2006-01-02"), to.Format("2006-01-02"),
	).Scan(&n)
	return n, err
}

const subscriptionColumns = `id, member_id, status, classes_per_week, start_date, commitment_end,
       cancel_requested_at, created_at, updated_at`

func scanSubscription(scan func(dest ...interface{}) error) (*model.Subscription, error) {
	var sub model.Subscription
	var cancelReq sql.NullTime
	err := scan(
		&sub.ID, &sub.MemberID, &sub.Status, &sub.ClassesPerWeek, &sub.StartDate,
		&sub.CommitmentEnd, &cancelReq, &sub.CreatedAt, &sub.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if cancelReq.Valid {
		t := cancelReq.Time
		sub.CancelRequestedAt = &t
	}
	return &sub, nil
}

// ActiveSubscription returns the member's single ACTIVE subscription or
// nil.  Activation keeps at most one ACTIVE row per member, so LIMIT 1
// is a formality.
func (s *Store) ActiveSubscription(ctx context.Context, memberID uint64) (*model.Subscription, error) {
	row := s.q(ctx).QueryRowContext(ctx,
		`SELECT `+subscriptionColumns+` FROM subscriptions
		 WHERE member_id = ? AND status = 'ACTIVE' LIMIT 1`, memberID)
	sub, err := scanSubscription(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return sub, err
}

const classPackColumns = `id, member_id, total_classes, remaining_classes, valid_until, status,
       created_at, updated_at`

func scanClassPack(scan func(dest ...interface{}) error) (*model.ClassPack, error) {
	var p model.ClassPack
	err := scan(
		&p.ID, &p.MemberID, &p.Total, &p.Remaining, &p.ValidUntil, &p.Status,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// BookableClassPacks lists packs that can fund a booking right now,
// soonest-expiring first so short-lived credit is spent before it is
// wasted.
func (s *Store) BookableClassPacks(ctx context.Context, memberID uint64, now time.Time) ([]model.ClassPack, error) {
	rows, err := s.q(ctx).QueryContext(ctx,
		`SELECT `+classPackColumns+` FROM class_packs
		 WHERE member_id = ? AND status = 'ACTIVE' AND remaining_classes > 0 AND valid_until >= ?
		 ORDER BY valid_until ASC, id ASC`,
		memberID, now.Format("2006-01-02"))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.ClassPack
	for rows.Next() {
		p, err := scanClassPack(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

// ClassPackForUpdate loads a pack and holds its row lock, serializing
// spend/refund per member-entitlement independently of session locks.
func (s *Store) ClassPackForUpdate(ctx context.Context, packID uint64) (*model.ClassPack, error) {
	row := s.q(ctx).QueryRowContext(ctx,
		`SELECT `+classPackColumns+` FROM class_packs WHERE id = ? FOR UPDATE`, packID)
	return scanClassPack(row.Scan)
}

// ConsumeClassPack decrements the pack and records the usage.  The
// guarded UPDATE keeps remaining >= 0 even if a caller raced past the
// row lock; zero affected rows means the pack was already drained.
func (s *Store) ConsumeClassPack(ctx context.Context, packID uint64, usage model.ClassPackUsage) error {
	result, err := s.q(ctx).ExecContext(ctx,
		`UPDATE class_packs
		 SET remaining_classes = remaining_classes - 1,
		     status = IF(remaining_classes = 0, 'DEPLETED', status)
		 WHERE id = ? AND remaining_classes > 0`, packID)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return booking.ErrClassPackDepleted
	}
	var occDate interface{}
	if usage.OccurrenceDate != nil {
		occDate = usage.OccurrenceDate.Format("2006-01-02")
	}
	_, err = s.q(ctx).ExecContext(ctx,
		`INSERT INTO class_pack_usages (class_pack_id, record_id, session_id, occurrence_date, used_at)
		 VALUES (?, ?, ?, ?, ?)`,
		usage.ClassPackID, usage.RecordID, usage.SessionID, occDate,
		usage.UsedAt.UTC().Format("2006-01-02 15:04:05"))
	return err
}

// RefundClassPack returns one class to the pack and removes the usage
// row written at booking time.  The status is recomputed: a refund can
// lift DEPLETED but never resurrect an expired pack.
func (s *Store) RefundClassPack(ctx context.Context, packID, recordID uint64) error {
	_, err := s.q(ctx).ExecContext(ctx,
		`UPDATE class_packs
		 SET remaining_classes = remaining_classes + 1,
		     status = IF(valid_until < CURDATE(), 'EXPIRED', 'ACTIVE')
		 WHERE id = ? AND remaining_classes < total_classes AND status <> 'PENDING'`, packID)
	if err != nil {
		return err
	}
	_, err = s.q(ctx).ExecContext(ctx,
		`DELETE FROM class_pack_usages WHERE class_pack_id = ? AND record_id = ?`,
		packID, recordID)
	return err
}
