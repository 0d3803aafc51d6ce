package booking

import (
	"context"

	"github.com/studiofit/class-booking/internal/model"
)

// Registry implements the session-registry operations over one session
// instance: occupancy counts, fullness, appending occupants,
// reactivating cancelled records and promoting waitlisted ones.  All
// mutating methods expect to run inside a transaction that already
// holds the session's row lock (see SessionStore.SessionForUpdate).
type Registry struct {
	store SessionStore
}

// NewRegistry returns a Registry bound to the given store.
func NewRegistry(store SessionStore) *Registry {
	return &Registry{store: store}
}

// GetOccupancy counts the non-cancelled records of one instance.  For
// one-time sessions the zero InstanceID matches all of the session's
// records.  No side effects.
func (r *Registry) GetOccupancy(ctx context.Context, sessionID uint64, inst InstanceID) (Occupancy, error) {
	return r.store.CountOccupancy(ctx, sessionID, inst.Key())
}

// IsFull reports whether the instance's confirmed count has reached the
// session capacity.
func (r *Registry) IsFull(ctx context.Context, session *model.ClassSession, inst InstanceID) (bool, error) {
	occ, err := r.GetOccupancy(ctx, session.ID, inst)
	if err != nil {
		return false, err
	}
	return occ.Confirmed >= int(session.Capacity), nil
}

// AddOccupant appends a new occupancy record with the given status.
// It fails with ErrDuplicateBooking when a non-cancelled record already
// exists for the (member, instance) pair.
func (r *Registry) AddOccupant(ctx context.Context, session *model.ClassSession, memberID uint64, status model.OccupancyStatus, inst InstanceID) (*model.OccupancyRecord, error) {
	existing, err := r.store.RecordForMember(ctx, session.ID, memberID, inst.Key())
	if err != nil {
		return nil, err
	}
	if existing != nil && existing.Status != model.StatusCancelled {
		return nil, ErrDuplicateBooking
	}
	rec := &model.OccupancyRecord{
		SessionID:   session.ID,
		MemberID:    memberID,
		Status:      status,
		InstanceKey: inst.Key(),
	}
	if !inst.IsZero() {
		d := inst.Date
		rec.OccurrenceDate = &d
	}
	if err := r.store.InsertRecord(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// Reactivate transitions a cancelled record back into play with the
// given status (confirmed or waitlisted, whichever capacity dictates).
func (r *Registry) Reactivate(ctx context.Context, rec *model.OccupancyRecord, status model.OccupancyStatus) error {
	if err := r.store.UpdateRecordStatus(ctx, rec.ID, status); err != nil {
		return err
	}
	rec.Status = status
	return nil
}

// Waitlisted returns the instance's waitlisted records in FIFO
// creation order.
func (r *Registry) Waitlisted(ctx context.Context, sessionID uint64, inst InstanceID) ([]model.OccupancyRecord, error) {
	return r.store.WaitlistedInOrder(ctx, sessionID, inst.Key())
}

// Promote transitions a waitlisted record to confirmed.
func (r *Registry) Promote(ctx context.Context, rec *model.OccupancyRecord) error {
	if err := r.store.UpdateRecordStatus(ctx, rec.ID, model.StatusConfirmed); err != nil {
		return err
	}
	rec.Status = model.StatusConfirmed
	return nil
}
