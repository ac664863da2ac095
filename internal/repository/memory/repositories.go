package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-scheduling/internal/model"
	"github.com/jwalitptl/clinic-scheduling/internal/repository"
)

type appointmentRepository struct{ s *Store }

func (r *appointmentRepository) Create(ctx context.Context, appointment *model.Appointment) error {
	return r.s.do(ctx, func(st *state) error {
		if _, ok := st.appointments[appointment.ID]; ok {
			return fmt.Errorf("%w: appointment %s", repository.ErrDuplicate, appointment.ID)
		}
		if _, ok := st.slots[appointment.MedicalRoomTimeID]; !ok {
			return fmt.Errorf("failed to create appointment: unknown medical room time %s", appointment.MedicalRoomTimeID)
		}
		if appointment.Status != model.AppointmentStatusCancelled {
			for _, other := range st.appointments {
				if other.MedicalRoomTimeID == appointment.MedicalRoomTimeID && other.Status != model.AppointmentStatusCancelled {
					return fmt.Errorf("%w: live appointment for medical room time %s", repository.ErrDuplicate, appointment.MedicalRoomTimeID)
				}
			}
		}
		st.appointments[appointment.ID] = *appointment
		return nil
	})
}

func (r *appointmentRepository) Get(ctx context.Context, id uuid.UUID) (*model.Appointment, error) {
	var out *model.Appointment
	err := r.s.do(ctx, func(st *state) error {
		a, ok := st.appointments[id]
		if !ok {
			return repository.ErrNotFound
		}
		out = &a
		return nil
	})
	return out, err
}

func (r *appointmentRepository) CompareAndSwapStatus(ctx context.Context, id uuid.UUID, from, to model.AppointmentStatus, version int64, at time.Time) (bool, error) {
	var swapped bool
	err := r.s.do(ctx, func(st *state) error {
		a, ok := st.appointments[id]
		if !ok || a.Status != from || a.Version != version {
			return nil
		}
		a.Status = to
		a.Version++
		a.UpdatedAt = at
		st.appointments[id] = a
		swapped = true
		return nil
	})
	return swapped, err
}

func (r *appointmentRepository) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*model.Appointment, error) {
	var out []*model.Appointment
	err := r.s.do(ctx, func(st *state) error {
		for _, a := range st.appointments {
			if a.PatientID == patientID {
				a := a
				out = append(out, &a)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, err
}

type slotRepository struct{ s *Store }

func (r *slotRepository) Create(ctx context.Context, slot *model.MedicalRoomTime) error {
	return r.s.do(ctx, func(st *state) error {
		if _, ok := st.slots[slot.ID]; ok {
			return fmt.Errorf("%w: medical room time %s", repository.ErrDuplicate, slot.ID)
		}
		if !slot.Interval().Valid() {
			return fmt.Errorf("failed to create medical room time: from_time must be before to_time")
		}
		st.slots[slot.ID] = *slot
		return nil
	})
}

func (r *slotRepository) Get(ctx context.Context, id uuid.UUID) (*model.MedicalRoomTime, error) {
	var out *model.MedicalRoomTime
	err := r.s.do(ctx, func(st *state) error {
		slot, ok := st.slots[id]
		if !ok {
			return repository.ErrNotFound
		}
		out = &slot
		return nil
	})
	return out, err
}

func (r *slotRepository) Claim(ctx context.Context, slotID, appointmentID uuid.UUID) (bool, error) {
	var claimed bool
	err := r.s.do(ctx, func(st *state) error {
		slot, ok := st.slots[slotID]
		if !ok || slot.AppointmentID != nil {
			return nil
		}
		id := appointmentID
		slot.AppointmentID = &id
		slot.UpdatedAt = time.Now().UTC()
		st.slots[slotID] = slot
		claimed = true
		return nil
	})
	return claimed, err
}

func (r *slotRepository) Release(ctx context.Context, slotID, appointmentID uuid.UUID) (bool, error) {
	var released bool
	err := r.s.do(ctx, func(st *state) error {
		slot, ok := st.slots[slotID]
		if !ok || slot.AppointmentID == nil || *slot.AppointmentID != appointmentID {
			return nil
		}
		slot.AppointmentID = nil
		slot.UpdatedAt = time.Now().UTC()
		st.slots[slotID] = slot
		released = true
		return nil
	})
	return released, err
}

func (r *slotRepository) ListFree(ctx context.Context, roomID uuid.UUID, from, to time.Time) ([]*model.MedicalRoomTime, error) {
	var out []*model.MedicalRoomTime
	err := r.s.do(ctx, func(st *state) error {
		for _, slot := range st.slots {
			if slot.MedicalRoomID != roomID || slot.AppointmentID != nil {
				continue
			}
			if slot.FromTime.Before(from) || slot.ToTime.After(to) {
				continue
			}
			slot := slot
			out = append(out, &slot)
		}
		return nil
	})
	sortSlots(out)
	return out, err
}

type shiftRepository struct{ s *Store }

func (r *shiftRepository) Create(ctx context.Context, shift *model.ShiftWorking) error {
	return r.s.do(ctx, func(st *state) error {
		if !shift.Interval().Valid() {
			return fmt.Errorf("failed to create shift: from_time must be before to_time")
		}
		for _, other := range st.shifts {
			if other.DoctorID == shift.DoctorID && other.MedicalRoomID == shift.MedicalRoomID &&
				other.Interval().Overlaps(shift.Interval()) {
				return fmt.Errorf("%w: shift %s", repository.ErrOverlap, other.ID)
			}
		}
		st.shifts[shift.ID] = *shift
		return nil
	})
}

func (r *shiftRepository) FindCovering(ctx context.Context, doctorID, roomID uuid.UUID, from, to time.Time) (*model.ShiftWorking, error) {
	want := model.Interval{From: from, To: to}
	var candidates []*model.ShiftWorking
	err := r.s.do(ctx, func(st *state) error {
		for _, shift := range st.shifts {
			if shift.DoctorID == doctorID && shift.MedicalRoomID == roomID && shift.Interval().Covers(want) {
				shift := shift
				candidates = append(candidates, &shift)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, repository.ErrNotFound
	}
	sortShifts(candidates)
	return candidates[0], nil
}

func (r *shiftRepository) ListOverlapping(ctx context.Context, doctorID, roomID uuid.UUID, from, to time.Time) ([]*model.ShiftWorking, error) {
	want := model.Interval{From: from, To: to}
	var out []*model.ShiftWorking
	err := r.s.do(ctx, func(st *state) error {
		for _, shift := range st.shifts {
			if shift.DoctorID == doctorID && shift.MedicalRoomID == roomID && shift.Interval().Overlaps(want) {
				shift := shift
				out = append(out, &shift)
			}
		}
		return nil
	})
	sortShifts(out)
	return out, err
}

func (r *shiftRepository) ListByRoom(ctx context.Context, roomID uuid.UUID, from, to time.Time) ([]*model.ShiftWorking, error) {
	want := model.Interval{From: from, To: to}
	var out []*model.ShiftWorking
	err := r.s.do(ctx, func(st *state) error {
		for _, shift := range st.shifts {
			if shift.MedicalRoomID == roomID && shift.Interval().Overlaps(want) {
				shift := shift
				out = append(out, &shift)
			}
		}
		return nil
	})
	sortShifts(out)
	return out, err
}

type statusLogRepository struct{ s *Store }

func (r *statusLogRepository) Append(ctx context.Context, entry *model.AppointmentStatusLog) error {
	return r.s.do(ctx, func(st *state) error {
		if _, ok := st.appointments[entry.AppointmentID]; !ok {
			return fmt.Errorf("failed to append status log: unknown appointment %s", entry.AppointmentID)
		}
		for _, existing := range st.statusLogs[entry.AppointmentID] {
			if existing.Seq == entry.Seq {
				return fmt.Errorf("%w: status log seq %d", repository.ErrDuplicate, entry.Seq)
			}
		}
		st.statusLogs[entry.AppointmentID] = append(st.statusLogs[entry.AppointmentID], *entry)
		return nil
	})
}

func (r *statusLogRepository) Last(ctx context.Context, appointmentID uuid.UUID) (*model.AppointmentStatusLog, error) {
	var out *model.AppointmentStatusLog
	err := r.s.do(ctx, func(st *state) error {
		entries := st.statusLogs[appointmentID]
		if len(entries) == 0 {
			return repository.ErrNotFound
		}
		last := entries[len(entries)-1]
		out = &last
		return nil
	})
	return out, err
}

func (r *statusLogRepository) List(ctx context.Context, appointmentID uuid.UUID) ([]*model.AppointmentStatusLog, error) {
	var out []*model.AppointmentStatusLog
	err := r.s.do(ctx, func(st *state) error {
		for _, entry := range st.statusLogs[appointmentID] {
			entry := entry
			out = append(out, &entry)
		}
		return nil
	})
	return out, err
}

type diagnosisRepository struct{ s *Store }

func (r *diagnosisRepository) Create(ctx context.Context, suggestion *model.DiagnosisSuggestion) error {
	return r.s.do(ctx, func(st *state) error {
		if _, ok := st.appointments[suggestion.AppointmentID]; !ok {
			return fmt.Errorf("failed to create diagnosis suggestion: unknown appointment %s", suggestion.AppointmentID)
		}
		st.diagnoses[suggestion.AppointmentID] = append(st.diagnoses[suggestion.AppointmentID], *suggestion)
		return nil
	})
}

func (r *diagnosisRepository) List(ctx context.Context, appointmentID uuid.UUID) ([]*model.DiagnosisSuggestion, error) {
	var out []*model.DiagnosisSuggestion
	err := r.s.do(ctx, func(st *state) error {
		for _, suggestion := range st.diagnoses[appointmentID] {
			suggestion := suggestion
			out = append(out, &suggestion)
		}
		return nil
	})
	return out, err
}

type staffRepository struct{ s *Store }

func (r *staffRepository) ListPositions(ctx context.Context, accountID uuid.UUID) ([]model.Position, error) {
	var out []model.Position
	err := r.s.do(ctx, func(st *state) error {
		out = append(out, st.positions[accountID]...)
		return nil
	})
	return out, err
}

type outboxRepository struct{ s *Store }

func (r *outboxRepository) Create(ctx context.Context, event *model.OutboxEvent) error {
	if event == nil {
		return fmt.Errorf("event cannot be nil")
	}
	if event.Payload == nil {
		return fmt.Errorf("event payload cannot be nil")
	}
	return r.s.do(ctx, func(st *state) error {
		now := time.Now().UTC()
		if event.ID == uuid.Nil {
			event.ID = uuid.New()
		}
		event.CreatedAt = now
		event.UpdatedAt = now
		event.Status = model.OutboxStatusPending
		st.outbox[event.ID] = *event
		return nil
	})
}

func (r *outboxRepository) GetPendingEventsWithLock(ctx context.Context, limit int) ([]*model.OutboxEvent, error) {
	now := time.Now().UTC()
	var out []*model.OutboxEvent
	err := r.s.do(ctx, func(st *state) error {
		for _, event := range st.outbox {
			if event.Status != model.OutboxStatusPending && event.Status != model.OutboxStatusRetry {
				continue
			}
			if event.RetryAt != nil && event.RetryAt.After(now) {
				continue
			}
			event := event
			out = append(out, &event)
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, err
}

func (r *outboxRepository) Lease(ctx context.Context, id uuid.UUID, until time.Time) error {
	return r.s.do(ctx, func(st *state) error {
		event, ok := st.outbox[id]
		if !ok {
			return nil
		}
		event.RetryAt = &until
		event.UpdatedAt = time.Now().UTC()
		st.outbox[id] = event
		return nil
	})
}

func (r *outboxRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status model.OutboxStatus, errorMessage *string, retryAt *time.Time) error {
	return r.s.do(ctx, func(st *state) error {
		event, ok := st.outbox[id]
		if !ok {
			return nil
		}
		now := time.Now().UTC()
		event.Status = status
		event.ErrorMessage = errorMessage
		event.RetryAt = retryAt
		if status == model.OutboxStatusRetry {
			event.RetryCount++
		}
		if status == model.OutboxStatusProcessed {
			event.ProcessedAt = &now
		}
		event.UpdatedAt = now
		st.outbox[id] = event
		return nil
	})
}

func (r *outboxRepository) DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error) {
	var n int64
	err := r.s.do(ctx, func(st *state) error {
		for id, event := range st.outbox {
			if event.Status == model.OutboxStatusProcessed && event.ProcessedAt != nil && event.ProcessedAt.Before(before) {
				delete(st.outbox, id)
				n++
			}
		}
		return nil
	})
	return n, err
}
