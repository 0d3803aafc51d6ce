package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/studiofit/class-booking/internal/model"
)

// SubscriptionRepo manages persistence for membership subscriptions.
// Purchases start in PENDING and only become bookable when the billing
// system confirms payment; cancellation requests are recorded here and
// the status flip to CANCELLED arrives later from billing as well.
type SubscriptionRepo struct {
	db *sql.DB
}

// NewSubscriptionRepo constructs a SubscriptionRepo with the given DB handle.
func NewSubscriptionRepo(db *sql.DB) *SubscriptionRepo {
	return &SubscriptionRepo{db: db}
}

// CreatePending inserts a new PENDING subscription. A member with a
// subscription that is already PENDING or ACTIVE cannot open another
// one; ErrConflict is returned instead.
func (r *SubscriptionRepo) CreatePending(ctx context.Context, sub *model.Subscription) error {
	var existing int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM subscriptions WHERE member_id = ? AND status IN ('PENDING','ACTIVE')`,
		sub.MemberID).Scan(&existing)
	if err != nil {
		return err
	}
	if existing > 0 {
		return ErrConflict
	}
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO subscriptions (member_id, status, classes_per_week, start_date, commitment_end)
		 VALUES (?, 'PENDING', ?, ?, ?)`,
		sub.MemberID, sub.ClassesPerWeek,
		sub.StartDate.Format("2006-01-02"), sub.CommitmentEnd.Format("2006-01-02"))
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	sub.ID = uint64(id)
	sub.Status = model.SubscriptionPending
	return r.db.QueryRowContext(ctx,
		`SELECT created_at, updated_at FROM subscriptions WHERE id = ?`, sub.ID,
	).Scan(&sub.CreatedAt, &sub.UpdatedAt)
}

// ListByMember returns all of a member's subscriptions, newest first.
func (r *SubscriptionRepo) ListByMember(ctx context.Context, memberID uint64) ([]model.Subscription, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+subscriptionColumns+` FROM subscriptions WHERE member_id = ? ORDER BY created_at DESC, id DESC`,
		memberID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.Subscription, 0)
	for rows.Next() {
		sub, err := scanSubscription(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, *sub)
	}
	return out, rows.Err()
}

// GetByIDForMember loads a subscription and verifies ownership. It
// returns sql.ErrNoRows when the subscription does not exist and
// ErrForbidden when it belongs to another member.
func (r *SubscriptionRepo) GetByIDForMember(ctx context.Context, id, memberID uint64) (*model.Subscription, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+subscriptionColumns+` FROM subscriptions WHERE id = ?`, id)
	sub, err := scanSubscription(row.Scan)
	if err != nil {
		return nil, err
	}
	if sub.MemberID != memberID {
		return nil, ErrForbidden
	}
	return sub, nil
}

// Activate flips a PENDING subscription to ACTIVE once billing has
// confirmed the payment. It returns sql.ErrNoRows when no pending row
// matched, which the consumer treats as an already-processed event.
func (r *SubscriptionRepo) Activate(ctx context.Context, id uint64) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE subscriptions SET status = 'ACTIVE' WHERE id = ? AND status = 'PENDING'`, id)
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

// MarkCancelRequested stamps the time the member asked to cancel. The
// subscription stays ACTIVE and bookable until billing confirms.
func (r *SubscriptionRepo) MarkCancelRequested(ctx context.Context, id uint64, at time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE subscriptions SET cancel_requested_at = ? WHERE id = ? AND status = 'ACTIVE'`,
		at.UTC().Format("2006-01-02 15:04:05"), id)
	return err
}

// ApplyCancellation moves an ACTIVE subscription to CANCELLED after
// billing accepts the cancellation request.
func (r *SubscriptionRepo) ApplyCancellation(ctx context.Context, id uint64) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE subscriptions SET status = 'CANCELLED' WHERE id = ? AND status = 'ACTIVE'`, id)
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
