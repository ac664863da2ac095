package slot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-scheduling/internal/model"
	"github.com/jwalitptl/clinic-scheduling/internal/repository"
	apperrors "github.com/jwalitptl/clinic-scheduling/pkg/errors"
)

// Allocator hands out MedicalRoomTime slots. Reserve and Release join the
// caller's atomic unit when ctx carries one.
type Allocator struct {
	slots  repository.SlotRepository
	shifts repository.ShiftRepository
	now    func() time.Time
}

func NewAllocator(slots repository.SlotRepository, shifts repository.ShiftRepository) *Allocator {
	return &Allocator{
		slots:  slots,
		shifts: shifts,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Reserve marks the slot occupied by appointmentID. The slot must lie inside a
// shift of its doctor in its room and must currently be free.
func (a *Allocator) Reserve(ctx context.Context, slotID, appointmentID uuid.UUID) (*model.Reservation, error) {
	slot, err := a.slots.Get(ctx, slotID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NotFound("medical room time", nil)
		}
		return nil, apperrors.Internal(fmt.Errorf("failed to get medical room time: %w", err))
	}

	shift, err := a.shifts.FindCovering(ctx, slot.DoctorID, slot.MedicalRoomID, slot.FromTime, slot.ToTime)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NoActiveShift(fmt.Sprintf(
				"no shift of doctor %s in room %s covers %s - %s",
				slot.DoctorID, slot.MedicalRoomID,
				slot.FromTime.Format(time.RFC3339), slot.ToTime.Format(time.RFC3339),
			))
		}
		return nil, apperrors.Internal(fmt.Errorf("failed to find covering shift: %w", err))
	}

	claimed, err := a.slots.Claim(ctx, slot.ID, appointmentID)
	if err != nil {
		return nil, apperrors.Internal(fmt.Errorf("failed to claim medical room time: %w", err))
	}
	if !claimed {
		return nil, apperrors.SlotConflict("medical room time is already booked", nil)
	}

	return &model.Reservation{
		MedicalRoomTimeID: slot.ID,
		AppointmentID:     appointmentID,
		ShiftID:           shift.ID,
		ReservedAt:        a.now(),
	}, nil
}

// Release frees the slot held by appointmentID. Releasing a free slot, or one
// held by another appointment, changes nothing and is not an error.
func (a *Allocator) Release(ctx context.Context, slotID, appointmentID uuid.UUID) error {
	if _, err := a.slots.Release(ctx, slotID, appointmentID); err != nil {
		return apperrors.Internal(fmt.Errorf("failed to release medical room time: %w", err))
	}
	return nil
}

// Available lists free slots of a room in [from, to] that fall inside a shift
// of the slot's doctor.
func (a *Allocator) Available(ctx context.Context, roomID uuid.UUID, from, to time.Time) ([]*model.MedicalRoomTime, error) {
	free, err := a.slots.ListFree(ctx, roomID, from, to)
	if err != nil {
		return nil, apperrors.Internal(fmt.Errorf("failed to list free slots: %w", err))
	}
	shifts, err := a.shifts.ListByRoom(ctx, roomID, from, to)
	if err != nil {
		return nil, apperrors.Internal(fmt.Errorf("failed to list shifts: %w", err))
	}

	out := make([]*model.MedicalRoomTime, 0, len(free))
	for _, s := range free {
		for _, shift := range shifts {
			if shift.DoctorID == s.DoctorID && shift.Interval().Covers(s.Interval()) {
				out = append(out, s)
				break
			}
		}
	}
	return out, nil
}
