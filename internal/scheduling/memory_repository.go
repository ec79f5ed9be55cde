package scheduling

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryRepository is an in-process Repository for development and tests.
// Transactions run one at a time on a copy of the state that replaces the
// live state only on commit.
type MemoryRepository struct {
	txMu  sync.Mutex
	mu    sync.RWMutex
	state *memState
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{state: newMemState()}
}

type memState struct {
	appointments map[uuid.UUID]Appointment
	limits       map[TimeSlot]SlotLimit
	blockedDates map[uuid.UUID]BlockedDate
	blockedSlots map[uuid.UUID]BlockedTimeSlot
	shifts       map[string]ShiftCapacity
	events       []EventLog
	nextEventID  int64
}

func newMemState() *memState {
	return &memState{
		appointments: make(map[uuid.UUID]Appointment),
		limits:       make(map[TimeSlot]SlotLimit),
		blockedDates: make(map[uuid.UUID]BlockedDate),
		blockedSlots: make(map[uuid.UUID]BlockedTimeSlot),
		shifts:       make(map[string]ShiftCapacity),
	}
}

func (s *memState) clone() *memState {
	c := newMemState()
	for k, v := range s.appointments {
		c.appointments[k] = copyAppointment(v)
	}
	for k, v := range s.limits {
		c.limits[k] = v
	}
	for k, v := range s.blockedDates {
		c.blockedDates[k] = v
	}
	for k, v := range s.blockedSlots {
		c.blockedSlots[k] = v
	}
	for k, v := range s.shifts {
		c.shifts[k] = v
	}
	c.events = append(c.events, s.events...)
	c.nextEventID = s.nextEventID
	return c
}

func copyAppointment(a Appointment) Appointment {
	if a.Attachment != nil {
		att := *a.Attachment
		a.Attachment = &att
	}
	if a.CompletedAt != nil {
		t := *a.CompletedAt
		a.CompletedAt = &t
	}
	if a.CanceledAt != nil {
		t := *a.CanceledAt
		a.CanceledAt = &t
	}
	if a.CanceledBy != nil {
		by := *a.CanceledBy
		a.CanceledBy = &by
	}
	return a
}

// Shared reads

func (s *memState) isDateBlocked(date string) bool {
	for _, b := range s.blockedDates {
		if b.Date == date {
			return true
		}
	}
	return false
}

func (s *memState) isTimeSlotBlocked(date string, slot TimeSlot) bool {
	for _, b := range s.blockedSlots {
		if b.Date == date && b.TimeSlot == slot {
			return true
		}
	}
	return false
}

func (s *memState) slotLimit(slot TimeSlot) (int, bool) {
	l, ok := s.limits[slot]
	return l.Limit, ok
}

func (s *memState) listSlotLimits() []SlotLimit {
	result := make([]SlotLimit, 0, len(s.limits))
	for _, l := range s.limits {
		result = append(result, l)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].TimeSlot < result[j].TimeSlot })
	return result
}

func (s *memState) countOccupying(date string, slot TimeSlot) int {
	n := 0
	for _, a := range s.appointments {
		if a.DateKey == date && a.TimeSlot == slot && a.Status.Occupying() {
			n++
		}
	}
	return n
}

// read runs fn against the committed state.
func (r *MemoryRepository) read(fn func(s *memState)) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn(r.state)
}

// write applies a single-statement change outside WithTx.
func (r *MemoryRepository) write(fn func(s *memState) error) error {
	r.txMu.Lock()
	defer r.txMu.Unlock()
	r.mu.Lock()
	defer r.mu.Unlock()
	return fn(r.state)
}

func (r *MemoryRepository) WithTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	r.txMu.Lock()
	defer r.txMu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.RLock()
	working := r.state.clone()
	r.mu.RUnlock()

	if err := fn(ctx, &memTx{s: working}); err != nil {
		return err
	}

	r.mu.Lock()
	r.state = working
	r.mu.Unlock()
	return nil
}

func (r *MemoryRepository) IsDateBlocked(_ context.Context, date string) (bool, error) {
	var blocked bool
	r.read(func(s *memState) { blocked = s.isDateBlocked(date) })
	return blocked, nil
}

func (r *MemoryRepository) IsTimeSlotBlocked(_ context.Context, date string, slot TimeSlot) (bool, error) {
	var blocked bool
	r.read(func(s *memState) { blocked = s.isTimeSlotBlocked(date, slot) })
	return blocked, nil
}

func (r *MemoryRepository) GetSlotLimit(_ context.Context, slot TimeSlot) (int, bool, error) {
	var (
		limit int
		ok    bool
	)
	r.read(func(s *memState) { limit, ok = s.slotLimit(slot) })
	return limit, ok, nil
}

func (r *MemoryRepository) CountOccupying(_ context.Context, date string, slot TimeSlot) (int, error) {
	var n int
	r.read(func(s *memState) { n = s.countOccupying(date, slot) })
	return n, nil
}

func (r *MemoryRepository) GetAppointmentByID(_ context.Context, id uuid.UUID) (*Appointment, error) {
	var (
		a  Appointment
		ok bool
	)
	r.read(func(s *memState) {
		a, ok = s.appointments[id]
		a = copyAppointment(a)
	})
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	return &a, nil
}

func (r *MemoryRepository) ListAppointmentsByDate(_ context.Context, date string) ([]Appointment, error) {
	var result []Appointment
	r.read(func(s *memState) {
		for _, a := range s.appointments {
			if a.DateKey == date {
				result = append(result, copyAppointment(a))
			}
		}
	})
	sort.Slice(result, func(i, j int) bool {
		if result[i].TimeSlot != result[j].TimeSlot {
			return result[i].TimeSlot < result[j].TimeSlot
		}
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

func (r *MemoryRepository) ListAppointmentsByCompany(_ context.Context, companyID string, limit, offset int) ([]Appointment, error) {
	var all []Appointment
	r.read(func(s *memState) {
		for _, a := range s.appointments {
			if a.CompanyID == companyID {
				all = append(all, copyAppointment(a))
			}
		}
	})
	sort.Slice(all, func(i, j int) bool {
		if !all[i].ScheduledAt.Equal(all[j].ScheduledAt) {
			return all[i].ScheduledAt.After(all[j].ScheduledAt)
		}
		return all[i].ID.String() < all[j].ID.String()
	})

	if offset >= len(all) {
		return nil, nil
	}
	all = all[offset:]
	if len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

func (r *MemoryRepository) ListArchivable(_ context.Context, before string) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	r.read(func(s *memState) {
		for _, a := range s.appointments {
			if a.DateKey >= before {
				continue
			}
			switch a.Status {
			case StatusCompleted, StatusCanceled, StatusNoShow:
				ids = append(ids, a.ID)
			}
		}
	})
	return ids, nil
}

func (r *MemoryRepository) CountOccupyingByDate(_ context.Context, date string) (map[TimeSlot]int, error) {
	counts := make(map[TimeSlot]int)
	r.read(func(s *memState) {
		for _, a := range s.appointments {
			if a.DateKey == date && a.Status.Occupying() {
				counts[a.TimeSlot]++
			}
		}
	})
	return counts, nil
}

func (r *MemoryRepository) ListSlotLimits(_ context.Context) ([]SlotLimit, error) {
	var result []SlotLimit
	r.read(func(s *memState) {
		result = s.listSlotLimits()
	})
	return result, nil
}

func (r *MemoryRepository) InsertBlockedDate(_ context.Context, b *BlockedDate) error {
	return r.write(func(s *memState) error {
		if s.isDateBlocked(b.Date) {
			return ErrDuplicate
		}
		s.blockedDates[b.ID] = *b
		return nil
	})
}

func (r *MemoryRepository) DeleteBlockedDate(_ context.Context, id uuid.UUID) error {
	return r.write(func(s *memState) error {
		if _, ok := s.blockedDates[id]; !ok {
			return ErrBlockedDateNotFound
		}
		delete(s.blockedDates, id)
		return nil
	})
}

func (r *MemoryRepository) ListBlockedDates(_ context.Context, from, to string) ([]BlockedDate, error) {
	var result []BlockedDate
	r.read(func(s *memState) {
		for _, b := range s.blockedDates {
			if from != "" && b.Date < from {
				continue
			}
			if to != "" && b.Date > to {
				continue
			}
			result = append(result, b)
		}
	})
	sort.Slice(result, func(i, j int) bool { return result[i].Date < result[j].Date })
	return result, nil
}

func (r *MemoryRepository) InsertBlockedTimeSlot(_ context.Context, b *BlockedTimeSlot) error {
	return r.write(func(s *memState) error {
		if s.isTimeSlotBlocked(b.Date, b.TimeSlot) {
			return ErrDuplicate
		}
		s.blockedSlots[b.ID] = *b
		return nil
	})
}

func (r *MemoryRepository) DeleteBlockedTimeSlot(_ context.Context, id uuid.UUID) error {
	return r.write(func(s *memState) error {
		if _, ok := s.blockedSlots[id]; !ok {
			return ErrBlockedSlotNotFound
		}
		delete(s.blockedSlots, id)
		return nil
	})
}

func (r *MemoryRepository) ListBlockedTimeSlots(_ context.Context, date string) ([]BlockedTimeSlot, error) {
	var result []BlockedTimeSlot
	r.read(func(s *memState) {
		for _, b := range s.blockedSlots {
			if b.Date == date {
				result = append(result, b)
			}
		}
	})
	sort.Slice(result, func(i, j int) bool { return result[i].TimeSlot < result[j].TimeSlot })
	return result, nil
}

func (r *MemoryRepository) GetShiftCapacity(_ context.Context, date string) (*ShiftCapacity, error) {
	var (
		c  ShiftCapacity
		ok bool
	)
	r.read(func(s *memState) { c, ok = s.shifts[date] })
	if !ok {
		return nil, nil
	}
	return &c, nil
}

// Events returns the committed event log, oldest first.
func (r *MemoryRepository) Events() []EventLog {
	var result []EventLog
	r.read(func(s *memState) { result = append(result, s.events...) })
	return result
}

// memTx works on a private copy of the state; the repository's txMu is held
// for its whole lifetime, so slot and row locks are implicit.
type memTx struct {
	s *memState
}

func (t *memTx) IsDateBlocked(_ context.Context, date string) (bool, error) {
	return t.s.isDateBlocked(date), nil
}

func (t *memTx) IsTimeSlotBlocked(_ context.Context, date string, slot TimeSlot) (bool, error) {
	return t.s.isTimeSlotBlocked(date, slot), nil
}

func (t *memTx) GetSlotLimit(_ context.Context, slot TimeSlot) (int, bool, error) {
	limit, ok := t.s.slotLimit(slot)
	return limit, ok, nil
}

func (t *memTx) CountOccupying(_ context.Context, date string, slot TimeSlot) (int, error) {
	return t.s.countOccupying(date, slot), nil
}

func (t *memTx) ListSlotLimits(_ context.Context) ([]SlotLimit, error) {
	return t.s.listSlotLimits(), nil
}

func (t *memTx) LockSlot(ctx context.Context, _ string, _ TimeSlot) error {
	return ctx.Err()
}

func (t *memTx) LockShiftCapacity(_ context.Context, defaults ShiftCapacity) (ShiftCapacity, error) {
	c, ok := t.s.shifts[defaults.Date]
	if !ok {
		c = defaults
		c.UpdatedAt = time.Now()
		t.s.shifts[c.Date] = c
	}
	return c, nil
}

func (t *memTx) SaveShiftCapacity(_ context.Context, c ShiftCapacity) error {
	c.UpdatedAt = time.Now()
	t.s.shifts[c.Date] = c
	return nil
}

func (t *memTx) InsertAppointment(_ context.Context, a *Appointment) error {
	if _, ok := t.s.appointments[a.ID]; ok {
		return ErrDuplicate
	}
	t.s.appointments[a.ID] = copyAppointment(*a)
	return nil
}

func (t *memTx) GetAppointmentForUpdate(_ context.Context, id uuid.UUID) (*Appointment, error) {
	a, ok := t.s.appointments[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	a = copyAppointment(a)
	return &a, nil
}

func (t *memTx) UpdateAppointment(_ context.Context, a *Appointment) error {
	if _, ok := t.s.appointments[a.ID]; !ok {
		return ErrAppointmentNotFound
	}
	t.s.appointments[a.ID] = copyAppointment(*a)
	return nil
}

func (t *memTx) DeleteAppointment(_ context.Context, id uuid.UUID) error {
	if _, ok := t.s.appointments[id]; !ok {
		return ErrAppointmentNotFound
	}
	delete(t.s.appointments, id)
	return nil
}

func (t *memTx) UpsertSlotLimits(_ context.Context, limits []SlotLimit) error {
	for _, l := range limits {
		t.s.limits[l.TimeSlot] = l
	}
	return nil
}

func (t *memTx) InsertEvent(_ context.Context, ev EventLog) error {
	t.s.nextEventID++
	ev.ID = t.s.nextEventID
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now()
	}
	t.s.events = append(t.s.events, ev)
	return nil
}
