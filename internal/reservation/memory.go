package reservation

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/iliyamo/pmb-exam-scheduling/internal/model"
)

// MemoryStore is an in-process Store.  Atomic units are serialized by a
// single mutex and rolled back through an undo log, which gives the same
// guarantees as the row-locking MySQL store for one process.
type MemoryStore struct {
	mu          sync.Mutex
	sessions    map[uint64]model.Session
	rooms       map[uint64]model.Room
	slots       map[uint64]model.ExamSlot
	assignments map[uint64]*uint64 // applicant id -> slot id (nil = none)
	assignedAt  map[uint64]time.Time
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions:    map[uint64]model.Session{},
		rooms:       map[uint64]model.Room{},
		slots:       map[uint64]model.ExamSlot{},
		assignments: map[uint64]*uint64{},
		assignedAt:  map[uint64]time.Time{},
	}
}

// PutSession stores reference data used for joins and ordering.
func (m *MemoryStore) PutSession(s model.Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ID] = s
}

// PutRoom stores reference data used for joins.
func (m *MemoryStore) PutRoom(r model.Room) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rooms[r.ID] = r
}

// PutSlot inserts or replaces a slot.
func (m *MemoryStore) PutSlot(s model.ExamSlot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.slots[s.ID] = s
}

// PutApplicant registers an applicant, optionally already holding a slot.
// The slot's occupancy is not adjusted.
func (m *MemoryStore) PutApplicant(applicantID uint64, slotID *uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if slotID == nil {
		m.assignments[applicantID] = nil
		return
	}
	id := *slotID
	m.assignments[applicantID] = &id
}

// Assignment returns the slot an applicant holds.
func (m *MemoryStore) Assignment(applicantID uint64) (uint64, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := m.assignments[applicantID]
	if p == nil {
		return 0, false
	}
	return *p, true
}

// GetSlot implements Store.
func (m *MemoryStore) GetSlot(_ context.Context, id uint64) (model.ExamSlot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.slots[id]
	if !ok {
		return model.ExamSlot{}, ErrNotFound
	}
	return m.joined(s), nil
}

// ListAvailable implements Store.
func (m *MemoryStore) ListAvailable(_ context.Context, periodID uint64, asOf time.Time) ([]model.ExamSlot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.ExamSlot, 0, len(m.slots))
	for _, s := range m.slots {
		if s.PeriodID != periodID || !s.IsActive || s.IsFull() || s.Date.Before(asOf) {
			continue
		}
		out = append(out, m.joined(s))
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if !a.Date.Equal(b.Date) {
			return a.Date.Before(b.Date)
		}
		if a.Session.StartsAt != b.Session.StartsAt {
			return a.Session.StartsAt < b.Session.StartsAt
		}
		return a.ID < b.ID
	})
	return out, nil
}

// Atomic implements Store.
func (m *MemoryStore) Atomic(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	tx := &memoryTx{m: m}
	if err := fn(ctx, tx); err != nil {
		for i := len(tx.undo) - 1; i >= 0; i-- {
			tx.undo[i]()
		}
		return err
	}
	return nil
}

func (m *MemoryStore) joined(s model.ExamSlot) model.ExamSlot {
	s.Session = m.sessions[s.SessionID]
	s.Room = m.rooms[s.RoomID]
	return s
}

// memoryTx runs with MemoryStore.mu held.
type memoryTx struct {
	m    *MemoryStore
	undo []func()
}

func (t *memoryTx) GetAssignment(_ context.Context, applicantID uint64) (uint64, bool, error) {
	p, ok := t.m.assignments[applicantID]
	if !ok {
		return 0, false, ErrApplicantNotFound
	}
	if p == nil {
		return 0, false, nil
	}
	return *p, true, nil
}

func (t *memoryTx) LockSlots(_ context.Context, ids ...uint64) (map[uint64]model.ExamSlot, error) {
	out := make(map[uint64]model.ExamSlot, len(ids))
	for _, id := range ids {
		if s, ok := t.m.slots[id]; ok {
			out[id] = t.m.joined(s)
		}
	}
	return out, nil
}

func (t *memoryTx) IncrementOccupied(_ context.Context, slotID uint64) error {
	s, ok := t.m.slots[slotID]
	if !ok {
		return ErrNotFound
	}
	if s.Occupied >= s.Capacity {
		return ErrCapacityExceeded
	}
	s.Occupied++
	t.m.slots[slotID] = s
	t.undo = append(t.undo, func() {
		s := t.m.slots[slotID]
		s.Occupied--
		t.m.slots[slotID] = s
	})
	return nil
}

func (t *memoryTx) DecrementOccupied(_ context.Context, slotID uint64) error {
	s, ok := t.m.slots[slotID]
	if !ok {
		return ErrNotFound
	}
	if s.Occupied <= 0 {
		return ErrInvalidState
	}
	s.Occupied--
	t.m.slots[slotID] = s
	t.undo = append(t.undo, func() {
		s := t.m.slots[slotID]
		s.Occupied++
		t.m.slots[slotID] = s
	})
	return nil
}

func (t *memoryTx) SetAssignment(_ context.Context, applicantID, slotID uint64, at time.Time) error {
	prev, existed := t.m.assignments[applicantID]
	prevAt, hadAt := t.m.assignedAt[applicantID]
	id := slotID
	t.m.assignments[applicantID] = &id
	t.m.assignedAt[applicantID] = at
	t.undo = append(t.undo, func() {
		if existed {
			t.m.assignments[applicantID] = prev
		} else {
			delete(t.m.assignments, applicantID)
		}
		if hadAt {
			t.m.assignedAt[applicantID] = prevAt
		} else {
			delete(t.m.assignedAt, applicantID)
		}
	})
	return nil
}
