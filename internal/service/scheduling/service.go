package scheduling

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-scheduling/internal/model"
	"github.com/jwalitptl/clinic-scheduling/internal/policy"
	"github.com/jwalitptl/clinic-scheduling/internal/repository"
	"github.com/jwalitptl/clinic-scheduling/internal/service/appointment"
	"github.com/jwalitptl/clinic-scheduling/internal/service/audit"
	"github.com/jwalitptl/clinic-scheduling/internal/service/diagnosis"
	"github.com/jwalitptl/clinic-scheduling/internal/service/slot"
	apperrors "github.com/jwalitptl/clinic-scheduling/pkg/errors"
	"github.com/jwalitptl/clinic-scheduling/pkg/logger"
	"github.com/jwalitptl/clinic-scheduling/pkg/metrics"
)

const (
	MaxNotesLength  = 1000
	MaxReasonLength = 500
)

// ErrShiftOverlap is wrapped by the validation error returned when a new
// shift intersects an existing shift of the same doctor in the same room.
var ErrShiftOverlap = errors.New("shift overlaps an existing shift")

// Service is the boundary of the scheduling core.
type Service struct {
	repos     *repository.Store
	policy    *policy.Policy
	allocator *slot.Allocator
	machine   *appointment.StateMachine
	auditor   *audit.Service
	ledger    *diagnosis.Ledger
	metrics   *metrics.Metrics
	logger    *logger.Logger
	now       func() time.Time
}

func NewService(
	repos *repository.Store,
	policy *policy.Policy,
	allocator *slot.Allocator,
	machine *appointment.StateMachine,
	auditor *audit.Service,
	ledger *diagnosis.Ledger,
	metrics *metrics.Metrics,
	logger *logger.Logger,
) *Service {
	return &Service{
		repos:     repos,
		policy:    policy,
		allocator: allocator,
		machine:   machine,
		auditor:   auditor,
		ledger:    ledger,
		metrics:   metrics,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// New wires the scheduling core with its default components.
func New(repos *repository.Store, metrics *metrics.Metrics, logger *logger.Logger) *Service {
	pol := policy.Default()
	allocator := slot.NewAllocator(repos.Slots, repos.Shifts)
	auditor := audit.NewService(repos.StatusLogs)
	machine := appointment.NewStateMachine(repos, pol, auditor, allocator, metrics, logger)
	ledger := diagnosis.NewLedger(repos.Appointments, repos.Diagnoses, metrics)
	return NewService(repos, pol, allocator, machine, auditor, ledger, metrics, logger)
}

// Authorize returns Forbidden unless the policy grants action to actor.
func (s *Service) Authorize(actor model.Actor, action model.Action) error {
	if !s.policy.Allows(actor, action) {
		return apperrors.Forbidden(fmt.Sprintf("%s may not %s", actor.Role, action))
	}
	return nil
}

// BookAppointment reserves the slot and creates a PENDING appointment for the
// patient in one atomic unit.
func (s *Service) BookAppointment(ctx context.Context, actor model.Actor, slotID, patientID uuid.UUID, notes string) (*model.Appointment, error) {
	apt, err := s.book(ctx, actor, slotID, patientID, notes)
	s.metrics.Bookings.WithLabelValues(resultLabel(err)).Inc()
	if err != nil {
		if apperrors.CodeOf(err) == apperrors.ErrInternal {
			s.logger.Error(err, "Failed to book appointment",
				"medical_room_time_id", slotID.String())
		}
		return nil, err
	}

	s.logger.Info("Appointment booked",
		"appointment_id", apt.ID.String(),
		"medical_room_time_id", slotID.String(),
		"actor_id", actor.AccountID.String())
	return apt, nil
}

func (s *Service) book(ctx context.Context, actor model.Actor, slotID, patientID uuid.UUID, notes string) (*model.Appointment, error) {
	if slotID == uuid.Nil {
		return nil, apperrors.Validation("medical room time id is required", nil)
	}
	if patientID == uuid.Nil {
		return nil, apperrors.Validation("patient id is required", nil)
	}
	if len(notes) > MaxNotesLength {
		return nil, apperrors.Validation(fmt.Sprintf("notes exceed %d characters", MaxNotesLength), nil)
	}
	if err := s.Authorize(actor, model.ActionBookAppointment); err != nil {
		return nil, err
	}
	if actor.Role == model.RolePatient && actor.AccountID != patientID {
		return nil, apperrors.Forbidden("patients may only book for themselves")
	}

	apt := &model.Appointment{
		Base:              model.Base{ID: uuid.New()},
		PatientID:         patientID,
		MedicalRoomTimeID: slotID,
		Notes:             notes,
	}
	err := s.repos.Tx.Atomic(ctx, func(ctx context.Context) error {
		if _, err := s.allocator.Reserve(ctx, slotID, apt.ID); err != nil {
			return err
		}
		return s.machine.Create(ctx, apt, actor)
	})
	if err != nil {
		if errors.Is(err, repository.ErrRetryExhausted) {
			return nil, apperrors.SlotConflict("medical room time is being booked concurrently", err)
		}
		return nil, err
	}
	return apt, nil
}

// ChangeStatus moves the appointment to target on behalf of actor.
func (s *Service) ChangeStatus(ctx context.Context, actor model.Actor, appointmentID uuid.UUID, target model.AppointmentStatus, reason string) (*model.Appointment, error) {
	if appointmentID == uuid.Nil {
		return nil, apperrors.Validation("appointment id is required", nil)
	}
	if len(reason) > MaxReasonLength {
		return nil, apperrors.Validation(fmt.Sprintf("reason exceeds %d characters", MaxReasonLength), nil)
	}
	return s.machine.Transition(ctx, appointmentID, target, actor, reason)
}

func (s *Service) AddDiagnosisSuggestion(ctx context.Context, appointmentID uuid.UUID, diseaseID string, confidence float64, aiSuggested bool) (*model.DiagnosisSuggestion, error) {
	return s.ledger.Record(ctx, appointmentID, diseaseID, confidence, aiSuggested)
}

func (s *Service) ListDiagnosisSuggestions(ctx context.Context, appointmentID uuid.UUID) ([]*model.DiagnosisSuggestion, error) {
	return s.ledger.List(ctx, appointmentID)
}

// GetAppointmentHistory returns the status log of an appointment, oldest first.
func (s *Service) GetAppointmentHistory(ctx context.Context, appointmentID uuid.UUID) ([]*model.AppointmentStatusLog, error) {
	if _, err := s.GetAppointment(ctx, appointmentID); err != nil {
		return nil, err
	}
	entries, err := s.auditor.History(ctx, appointmentID)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	return entries, nil
}

func (s *Service) GetAppointment(ctx context.Context, id uuid.UUID) (*model.Appointment, error) {
	apt, err := s.repos.Appointments.Get(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NotFound("appointment", nil)
		}
		return nil, apperrors.Internal(fmt.Errorf("failed to get appointment: %w", err))
	}
	return apt, nil
}

// ListPatientAppointments returns a patient's appointments, newest first.
// Patients see only their own; everyone else needs view_history.
func (s *Service) ListPatientAppointments(ctx context.Context, actor model.Actor, patientID uuid.UUID) ([]*model.Appointment, error) {
	if patientID == uuid.Nil {
		return nil, apperrors.Validation("patient id is required", nil)
	}
	if actor.Role == model.RolePatient {
		if actor.AccountID != patientID {
			return nil, apperrors.Forbidden("patients may only list their own appointments")
		}
	} else if err := s.Authorize(actor, model.ActionViewHistory); err != nil {
		return nil, err
	}

	appointments, err := s.repos.Appointments.ListByPatient(ctx, patientID)
	if err != nil {
		return nil, apperrors.Internal(fmt.Errorf("failed to list appointments: %w", err))
	}
	if appointments == nil {
		appointments = []*model.Appointment{}
	}
	return appointments, nil
}

// CreateShift assigns a doctor to a room for an interval. Shifts of the same
// doctor in the same room never overlap.
func (s *Service) CreateShift(ctx context.Context, actor model.Actor, shift *model.ShiftWorking) (*model.ShiftWorking, error) {
	if err := s.Authorize(actor, model.ActionManageSchedule); err != nil {
		return nil, err
	}
	if shift.DoctorID == uuid.Nil || shift.MedicalRoomID == uuid.Nil {
		return nil, apperrors.Validation("doctor id and medical room id are required", nil)
	}
	if !shift.Interval().Valid() {
		return nil, apperrors.Validation("from_time must be before to_time", nil)
	}

	now := s.now()
	shift.ID = uuid.New()
	shift.CreatedAt = now
	shift.UpdatedAt = now

	err := s.repos.Tx.Atomic(ctx, func(ctx context.Context) error {
		overlapping, err := s.repos.Shifts.ListOverlapping(ctx, shift.DoctorID, shift.MedicalRoomID, shift.FromTime, shift.ToTime)
		if err != nil {
			return apperrors.Internal(fmt.Errorf("failed to list overlapping shifts: %w", err))
		}
		if len(overlapping) > 0 {
			return apperrors.Validation(fmt.Sprintf("shift overlaps shift %s", overlapping[0].ID), ErrShiftOverlap)
		}
		if err := s.repos.Shifts.Create(ctx, shift); err != nil {
			if errors.Is(err, repository.ErrOverlap) {
				return apperrors.Validation("shift overlaps an existing shift", ErrShiftOverlap)
			}
			return apperrors.Internal(fmt.Errorf("failed to create shift: %w", err))
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, repository.ErrRetryExhausted) {
			return nil, apperrors.Validation("shift overlaps a concurrently created shift", ErrShiftOverlap)
		}
		return nil, err
	}

	s.logger.Info("Shift created",
		"shift_id", shift.ID.String(),
		"doctor_id", shift.DoctorID.String(),
		"medical_room_id", shift.MedicalRoomID.String())
	return shift, nil
}

// CreateRoomTime adds a bookable slot to a room.
func (s *Service) CreateRoomTime(ctx context.Context, actor model.Actor, slot *model.MedicalRoomTime) (*model.MedicalRoomTime, error) {
	if err := s.Authorize(actor, model.ActionManageSchedule); err != nil {
		return nil, err
	}
	if slot.DoctorID == uuid.Nil || slot.MedicalRoomID == uuid.Nil {
		return nil, apperrors.Validation("doctor id and medical room id are required", nil)
	}
	if !slot.Interval().Valid() {
		return nil, apperrors.Validation("from_time must be before to_time", nil)
	}

	now := s.now()
	slot.ID = uuid.New()
	slot.AppointmentID = nil
	slot.CreatedAt = now
	slot.UpdatedAt = now

	if err := s.repos.Slots.Create(ctx, slot); err != nil {
		return nil, apperrors.Internal(fmt.Errorf("failed to create medical room time: %w", err))
	}
	return slot, nil
}

// ListAvailableSlots returns unoccupied slots of a room in [from, to] that lie
// inside a shift of their doctor.
func (s *Service) ListAvailableSlots(ctx context.Context, roomID uuid.UUID, from, to time.Time) ([]*model.MedicalRoomTime, error) {
	if roomID == uuid.Nil {
		return nil, apperrors.Validation("medical room id is required", nil)
	}
	if !from.Before(to) {
		return nil, apperrors.Validation("from must be before to", nil)
	}
	return s.allocator.Available(ctx, roomID, from, to)
}

func resultLabel(err error) string {
	if err == nil {
		return "success"
	}
	return apperrors.CodeOf(err).String()
}
