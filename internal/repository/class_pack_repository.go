package repository

import (
	"context"
	"database/sql"

	"github.com/studiofit/class-booking/internal/model"
)

// ClassPackRepo manages persistence for prepaid class packs. Like
// subscriptions, packs are created PENDING and only become bookable
// once the billing system confirms payment. Spend and refund of
// individual classes happen through the Store inside booking
// transactions; this repo covers purchase and member-facing reads.
type ClassPackRepo struct {
	db *sql.DB
}

// NewClassPackRepo constructs a ClassPackRepo with the given DB handle.
func NewClassPackRepo(db *sql.DB) *ClassPackRepo {
	return &ClassPackRepo{db: db}
}

// CreatePending inserts a new PENDING pack with its full balance.
func (r *ClassPackRepo) CreatePending(ctx context.Context, p *model.ClassPack) error {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO class_packs (member_id, total_classes, remaining_classes, valid_until, status)
		 VALUES (?, ?, ?, ?, 'PENDING')`,
		p.MemberID, p.Total, p.Total, p.ValidUntil.Format("2006-01-02"))
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	p.ID = uint64(id)
	p.Remaining = p.Total
	p.Status = model.ClassPackPending
	return r.db.QueryRowContext(ctx,
		`SELECT created_at, updated_at FROM class_packs WHERE id = ?`, p.ID,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
}

// Activate flips a PENDING pack to its real status once billing has
// confirmed the payment. A pack whose validity already lapsed while
// payment was pending activates straight into EXPIRED. It returns
// sql.ErrNoRows when no pending row matched.
func (r *ClassPackRepo) Activate(ctx context.Context, id uint64) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE class_packs
		 SET status = IF(valid_until < CURDATE(), 'EXPIRED', 'ACTIVE')
		 WHERE id = ? AND status = 'PENDING'`, id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ListByMember returns all of a member's packs, newest first.
func (r *ClassPackRepo) ListByMember(ctx context.Context, memberID uint64) ([]model.ClassPack, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+classPackColumns+` FROM class_packs WHERE member_id = ? ORDER BY created_at DESC, id DESC`,
		memberID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.ClassPack, 0)
	for rows.Next() {
		p, err := scanClassPack(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

// UsageForPack returns the spend history of one pack, newest first,
// after verifying the pack belongs to the calling member. It returns
// sql.ErrNoRows when the pack does not exist and ErrForbidden when it
// belongs to someone else.
func (r *ClassPackRepo) UsageForPack(ctx context.Context, packID, memberID uint64) ([]model.ClassPackUsage, error) {
	var ownerID uint64
	err := r.db.QueryRowContext(ctx,
		`SELECT member_id FROM class_packs WHERE id = ?`, packID).Scan(&ownerID)
	if err != nil {
		return nil, err
	}
	if ownerID != memberID {
		return nil, ErrForbidden
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, class_pack_id, record_id, session_id, occurrence_date, used_at
		 FROM class_pack_usages WHERE class_pack_id = ? ORDER BY used_at DESC, id DESC`,
		packID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.ClassPackUsage, 0)
	for rows.Next() {
		var u model.ClassPackUsage
		var occDate sql.NullTime
		if err := rows.Scan(&u.ID, &u.ClassPackID, &u.RecordID, &u.SessionID, &occDate, &u.UsedAt); err != nil {
			return nil, err
		}
		if occDate.Valid {
			d := occDate.Time
			u.OccurrenceDate = &d
		}
		out = append(out, u)
	}
	return out, rows.Err()
}
