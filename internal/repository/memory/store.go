// Package memory is a process-local implementation of the repository port.
// Every atomic unit holds a single store-wide mutex and rolls back to a
// snapshot on error, so it gives the same all-or-nothing behaviour as the
// postgres store for a single process.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-scheduling/internal/model"
	"github.com/jwalitptl/clinic-scheduling/internal/repository"
)

type txKey struct{}

type state struct {
	appointments map[uuid.UUID]model.Appointment
	slots        map[uuid.UUID]model.MedicalRoomTime
	shifts       map[uuid.UUID]model.ShiftWorking
	statusLogs   map[uuid.UUID][]model.AppointmentStatusLog
	diagnoses    map[uuid.UUID][]model.DiagnosisSuggestion
	positions    map[uuid.UUID][]model.Position
	outbox       map[uuid.UUID]model.OutboxEvent
}

func newState() *state {
	return &state{
		appointments: make(map[uuid.UUID]model.Appointment),
		slots:        make(map[uuid.UUID]model.MedicalRoomTime),
		shifts:       make(map[uuid.UUID]model.ShiftWorking),
		statusLogs:   make(map[uuid.UUID][]model.AppointmentStatusLog),
		diagnoses:    make(map[uuid.UUID][]model.DiagnosisSuggestion),
		positions:    make(map[uuid.UUID][]model.Position),
		outbox:       make(map[uuid.UUID]model.OutboxEvent),
	}
}

// clone copies every table. Rows are values; the only shared pointers
// (slot occupancy, outbox timestamps) are never mutated in place.
func (s *state) clone() *state {
	c := newState()
	for k, v := range s.appointments {
		c.appointments[k] = v
	}
	for k, v := range s.slots {
		c.slots[k] = v
	}
	for k, v := range s.shifts {
		c.shifts[k] = v
	}
	for k, v := range s.statusLogs {
		c.statusLogs[k] = append([]model.AppointmentStatusLog(nil), v...)
	}
	for k, v := range s.diagnoses {
		c.diagnoses[k] = append([]model.DiagnosisSuggestion(nil), v...)
	}
	for k, v := range s.positions {
		c.positions[k] = append([]model.Position(nil), v...)
	}
	for k, v := range s.outbox {
		c.outbox[k] = v
	}
	return c
}

type Store struct {
	mu sync.Mutex
	st *state
}

func NewStore() *Store {
	return &Store{st: newState()}
}

// Repositories returns the store wired behind the repository port.
func (s *Store) Repositories() *repository.Store {
	return &repository.Store{
		Tx:           s,
		Appointments: &appointmentRepository{s},
		Slots:        &slotRepository{s},
		Shifts:       &shiftRepository{s},
		StatusLogs:   &statusLogRepository{s},
		Diagnoses:    &diagnosisRepository{s},
		Staff:        &staffRepository{s},
		Outbox:       &outboxRepository{s},
	}
}

func (s *Store) inTx(ctx context.Context) bool {
	owner, _ := ctx.Value(txKey{}).(*Store)
	return owner == s
}

func (s *Store) Atomic(ctx context.Context, fn func(ctx context.Context) error) error {
	if s.inTx(ctx) {
		return fn(ctx)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.st.clone()
	defer func() {
		if p := recover(); p != nil {
			s.st = snapshot
			panic(p)
		}
	}()

	if err := fn(context.WithValue(ctx, txKey{}, s)); err != nil {
		s.st = snapshot
		return err
	}
	return nil
}

// do runs fn against the current state, joining the caller's atomic unit when there is one.
func (s *Store) do(ctx context.Context, fn func(st *state) error) error {
	if s.inTx(ctx) {
		return fn(s.st)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.st)
}

// SeedStaff registers the positions held by a staff account.
func (s *Store) SeedStaff(accountID uuid.UUID, positions ...model.Position) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.positions[accountID] = append([]model.Position(nil), positions...)
}

func (s *Store) SeedSlot(slot model.MedicalRoomTime) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.slots[slot.ID] = slot
}

func (s *Store) SeedShift(shift model.ShiftWorking) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.shifts[shift.ID] = shift
}

func sortSlots(slots []*model.MedicalRoomTime) {
	sort.Slice(slots, func(i, j int) bool {
		return slots[i].FromTime.Before(slots[j].FromTime)
	})
}

func sortShifts(shifts []*model.ShiftWorking) {
	sort.Slice(shifts, func(i, j int) bool {
		return shifts[i].FromTime.Before(shifts[j].FromTime)
	})
}
