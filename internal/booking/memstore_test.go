package booking

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/studiofit/class-booking/internal/model"
)

// memStore is an in-memory Store used by the engine tests.  It mimics
// the persistence semantics the engine relies on: monotonic IDs and
// creation timestamps (so waitlist FIFO order is deterministic), a
// guarded class-pack decrement, and copies handed back on reads so
// callers never alias stored rows.
type memStore struct {
	sessions map[uint64]model.ClassSession
	records  []model.OccupancyRecord
	subs     map[uint64]model.Subscription // by member ID
	packs    map[uint64]model.ClassPack    // by pack ID
	usages   []model.ClassPackUsage

	nextID uint64
	seq    time.Time

	// prePackLock, when set, runs before ClassPackForUpdate resolves.
	// Tests use it to drain a pack between entitlement resolution and
	// the charge, the window a concurrent spender would hit.
	prePackLock func(packID uint64)
}

func newMemStore() *memStore {
	return &memStore{
		sessions: map[uint64]model.ClassSession{},
		subs:     map[uint64]model.Subscription{},
		packs:    map[uint64]model.ClassPack{},
		nextID:   1,
		seq:      time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func (s *memStore) id() uint64 {
	id := s.nextID
	s.nextID++
	return id
}

func (s *memStore) addSession(sess model.ClassSession) model.ClassSession {
	if sess.ID == 0 {
		sess.ID = s.id()
	}
	s.sessions[sess.ID] = sess
	return sess
}

func (s *memStore) addSubscription(memberID uint64, classesPerWeek uint32) {
	s.subs[memberID] = model.Subscription{
		ID:             s.id(),
		MemberID:       memberID,
		Status:         model.SubscriptionActive,
		ClassesPerWeek: classesPerWeek,
	}
}

func (s *memStore) addPack(memberID uint64, total, remaining uint32, validUntil time.Time) uint64 {
	id := s.id()
	s.packs[id] = model.ClassPack{
		ID:         id,
		MemberID:   memberID,
		Total:      total,
		Remaining:  remaining,
		ValidUntil: validUntil,
		Status:     model.ClassPackActive,
	}
	return id
}

func (s *memStore) record(id uint64) *model.OccupancyRecord {
	for i := range s.records {
		if s.records[i].ID == id {
			return &s.records[i]
		}
	}
	return nil
}

func (s *memStore) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func (s *memStore) SessionByID(ctx context.Context, id uint64) (model.ClassSession, error) {
	sess, ok := s.sessions[id]
	if !ok {
		return model.ClassSession{}, ErrSessionNotFound
	}
	return sess, nil
}

func (s *memStore) SessionForUpdate(ctx context.Context, id uint64) (model.ClassSession, error) {
	return s.SessionByID(ctx, id)
}

func (s *memStore) CountOccupancy(ctx context.Context, sessionID uint64, instanceKey string) (Occupancy, error) {
	var occ Occupancy
	for i := range s.records {
		r := &s.records[i]
		if r.SessionID != sessionID || r.InstanceKey != instanceKey {
			continue
		}
		switch r.Status {
		case model.StatusConfirmed:
			occ.Confirmed++
		case model.StatusWaitlisted:
			occ.Waitlisted++
		}
	}
	return occ, nil
}

func (s *memStore) RecordForMember(ctx context.Context, sessionID, memberID uint64, instanceKey string) (*model.OccupancyRecord, error) {
	for i := range s.records {
		r := s.records[i]
		if r.SessionID == sessionID && r.MemberID == memberID && r.InstanceKey == instanceKey {
			return &r, nil
		}
	}
	return nil, nil
}

func (s *memStore) InsertRecord(ctx context.Context, rec *model.OccupancyRecord) error {
	rec.ID = s.id()
	rec.CreatedAt = s.seq
	rec.UpdatedAt = s.seq
	s.seq = s.seq.Add(time.Second)
	s.records = append(s.records, *rec)
	return nil
}

func (s *memStore) UpdateRecordStatus(ctx context.Context, recordID uint64, status model.OccupancyStatus) error {
	r := s.record(recordID)
	if r == nil {
		return nil
	}
	r.Status = status
	return nil
}

func (s *memStore) SetRecordFunding(ctx context.Context, recordID uint64, source model.FundingSource, classPackID *uint64) error {
	r := s.record(recordID)
	if r == nil {
		return nil
	}
	r.FundedBy = source
	r.ClassPackID = classPackID
	return nil
}

func (s *memStore) WaitlistedInOrder(ctx context.Context, sessionID uint64, instanceKey string) ([]model.OccupancyRecord, error) {
	var out []model.OccupancyRecord
	for i := range s.records {
		r := s.records[i]
		if r.SessionID == sessionID && r.InstanceKey == instanceKey && r.Status == model.StatusWaitlisted {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *memStore) CountMemberConfirmedBetween(ctx context.Context, memberID uint64, from, to time.Time) (int, error) {
	count := 0
	for i := range s.records {
		r := s.records[i]
		if r.MemberID != memberID || r.Status != model.StatusConfirmed {
			continue
		}
		effective := r.OccurrenceDate
		if effective == nil {
			sess := s.sessions[r.SessionID]
			effective = &sess.StartDate
		}
		day := model.StartOfDay(*effective)
		if !day.Before(from) && day.Before(to) {
			count++
		}
	}
	return count, nil
}

func (s *memStore) ActiveSubscription(ctx context.Context, memberID uint64) (*model.Subscription, error) {
	sub, ok := s.subs[memberID]
	if !ok || sub.Status != model.SubscriptionActive {
		return nil, nil
	}
	return &sub, nil
}

func (s *memStore) BookableClassPacks(ctx context.Context, memberID uint64, now time.Time) ([]model.ClassPack, error) {
	day := model.StartOfDay(now)
	var out []model.ClassPack
	for _, p := range s.packs {
		if p.MemberID != memberID || p.Status != model.ClassPackActive || p.Remaining == 0 {
			continue
		}
		if p.ValidUntil.Before(day) {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].ValidUntil.Equal(out[j].ValidUntil) {
			return out[i].ValidUntil.Before(out[j].ValidUntil)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *memStore) ClassPackForUpdate(ctx context.Context, packID uint64) (*model.ClassPack, error) {
	if s.prePackLock != nil {
		s.prePackLock(packID)
	}
	p, ok := s.packs[packID]
	if !ok {
		return nil, errors.New("class pack not found")
	}
	return &p, nil
}

func (s *memStore) ConsumeClassPack(ctx context.Context, packID uint64, usage model.ClassPackUsage) error {
	p, ok := s.packs[packID]
	if !ok || p.Remaining == 0 {
		return ErrClassPackDepleted
	}
	p.Remaining--
	if p.Remaining == 0 {
		p.Status = model.ClassPackDepleted
	}
	s.packs[packID] = p
	usage.ID = s.id()
	usage.ClassPackID = packID
	s.usages = append(s.usages, usage)
	return nil
}

func (s *memStore) RefundClassPack(ctx context.Context, packID, recordID uint64) error {
	p, ok := s.packs[packID]
	if !ok || p.Remaining >= p.Total {
		return nil
	}
	p.Remaining++
	if p.Status == model.ClassPackDepleted {
		p.Status = model.ClassPackActive
	}
	s.packs[packID] = p
	for i := range s.usages {
		if s.usages[i].ClassPackID == packID && s.usages[i].RecordID == recordID {
			s.usages = append(s.usages[:i], s.usages[i+1:]...)
			break
		}
	}
	return nil
}
