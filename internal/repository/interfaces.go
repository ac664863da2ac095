package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-scheduling/internal/model"
)

var (
	// ErrNotFound is returned when a row addressed by id does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate is returned when a write violates a uniqueness guarantee.
	ErrDuplicate = errors.New("duplicate record")
	// ErrOverlap is returned when a write violates an interval exclusion guarantee.
	ErrOverlap = errors.New("overlapping interval")
	// ErrRetryExhausted is returned by TxManager.Atomic when transient
	// serialization failures persisted past the retry budget.
	ErrRetryExhausted = errors.New("transaction retries exhausted")
)

// All repository interfaces in one file
type (
	// TxManager runs fn as one atomic unit. Repositories called with the ctx
	// handed to fn join the same transaction. Nested calls reuse the outer unit.
	TxManager interface {
		Atomic(ctx context.Context, fn func(ctx context.Context) error) error
	}

	AppointmentRepository interface {
		Create(ctx context.Context, appointment *model.Appointment) error
		Get(ctx context.Context, id uuid.UUID) (*model.Appointment, error)
		// CompareAndSwapStatus moves the appointment from status `from` at `version`
		// to `to`, bumping the version. It reports false when the stored row no
		// longer matches.
		CompareAndSwapStatus(ctx context.Context, id uuid.UUID, from, to model.AppointmentStatus, version int64, at time.Time) (bool, error)
		ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*model.Appointment, error)
	}

	SlotRepository interface {
		Create(ctx context.Context, slot *model.MedicalRoomTime) error
		Get(ctx context.Context, id uuid.UUID) (*model.MedicalRoomTime, error)
		// Claim sets the occupancy of a free slot. It reports false when the slot
		// is already occupied.
		Claim(ctx context.Context, slotID, appointmentID uuid.UUID) (bool, error)
		// Release clears the occupancy when appointmentID holds the slot. It
		// reports whether anything was cleared.
		Release(ctx context.Context, slotID, appointmentID uuid.UUID) (bool, error)
		ListFree(ctx context.Context, roomID uuid.UUID, from, to time.Time) ([]*model.MedicalRoomTime, error)
	}

	ShiftRepository interface {
		Create(ctx context.Context, shift *model.ShiftWorking) error
		// FindCovering returns a shift of doctor in room covering [from, to], or ErrNotFound.
		FindCovering(ctx context.Context, doctorID, roomID uuid.UUID, from, to time.Time) (*model.ShiftWorking, error)
		ListOverlapping(ctx context.Context, doctorID, roomID uuid.UUID, from, to time.Time) ([]*model.ShiftWorking, error)
		ListByRoom(ctx context.Context, roomID uuid.UUID, from, to time.Time) ([]*model.ShiftWorking, error)
	}

	StatusLogRepository interface {
		Append(ctx context.Context, entry *model.AppointmentStatusLog) error
		// Last returns the newest entry of an appointment, or ErrNotFound.
		Last(ctx context.Context, appointmentID uuid.UUID) (*model.AppointmentStatusLog, error)
		List(ctx context.Context, appointmentID uuid.UUID) ([]*model.AppointmentStatusLog, error)
	}

	DiagnosisRepository interface {
		Create(ctx context.Context, suggestion *model.DiagnosisSuggestion) error
		List(ctx context.Context, appointmentID uuid.UUID) ([]*model.DiagnosisSuggestion, error)
	}

	StaffRepository interface {
		ListPositions(ctx context.Context, accountID uuid.UUID) ([]model.Position, error)
	}

	OutboxRepository interface {
		Create(ctx context.Context, event *model.OutboxEvent) error
		GetPendingEventsWithLock(ctx context.Context, limit int) ([]*model.OutboxEvent, error)
		// Lease hides a claimed event from other workers until the given time
		// without changing its status or retry count.
		Lease(ctx context.Context, id uuid.UUID, until time.Time) error
		UpdateStatus(ctx context.Context, id uuid.UUID, status model.OutboxStatus, errorMessage *string, retryAt *time.Time) error
		DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error)
	}
)

// Store bundles every repository behind one transaction manager.
type Store struct {
	Tx           TxManager
	Appointments AppointmentRepository
	Slots        SlotRepository
	Shifts       ShiftRepository
	StatusLogs   StatusLogRepository
	Diagnoses    DiagnosisRepository
	Staff        StaffRepository
	Outbox       OutboxRepository
}
