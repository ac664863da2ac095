package appointment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-scheduling/internal/model"
	"github.com/jwalitptl/clinic-scheduling/internal/policy"
	"github.com/jwalitptl/clinic-scheduling/internal/repository"
	"github.com/jwalitptl/clinic-scheduling/internal/service/audit"
	"github.com/jwalitptl/clinic-scheduling/internal/service/slot"
	apperrors "github.com/jwalitptl/clinic-scheduling/pkg/errors"
	"github.com/jwalitptl/clinic-scheduling/pkg/logger"
	"github.com/jwalitptl/clinic-scheduling/pkg/metrics"
)

// StateMachine owns appointment creation and status changes. Every status
// change, its audit entry, its outbox event and (on cancellation) the slot
// release commit together or not at all.
type StateMachine struct {
	tx           repository.TxManager
	appointments repository.AppointmentRepository
	outbox       repository.OutboxRepository
	policy       *policy.Policy
	auditor      *audit.Service
	allocator    *slot.Allocator
	metrics      *metrics.Metrics
	logger       *logger.Logger
	now          func() time.Time
}

func NewStateMachine(
	repos *repository.Store,
	policy *policy.Policy,
	auditor *audit.Service,
	allocator *slot.Allocator,
	metrics *metrics.Metrics,
	logger *logger.Logger,
) *StateMachine {
	return &StateMachine{
		tx:           repos.Tx,
		appointments: repos.Appointments,
		outbox:       repos.Outbox,
		policy:       policy,
		auditor:      auditor,
		allocator:    allocator,
		metrics:      metrics,
		logger:       logger,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// Create stores apt as a new PENDING appointment together with its first
// status log entry. It must run inside the atomic unit that reserved the slot.
func (m *StateMachine) Create(ctx context.Context, apt *model.Appointment, actor model.Actor) error {
	now := m.now()
	if apt.ID == uuid.Nil {
		apt.ID = uuid.New()
	}
	apt.RequestedBy = actor.AccountID
	apt.Status = model.AppointmentStatusPending
	apt.Version = 1
	apt.CreatedAt = now
	apt.UpdatedAt = now

	if err := m.appointments.Create(ctx, apt); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return apperrors.SlotConflict("medical room time is already booked", err)
		}
		return apperrors.Internal(fmt.Errorf("failed to create appointment: %w", err))
	}

	if err := m.auditor.Append(ctx, &model.AppointmentStatusLog{
		AppointmentID: apt.ID,
		NewStatus:     apt.Status,
		ActorID:       actor.AccountID,
		ActorRole:     actor.Role,
	}); err != nil {
		return apperrors.Internal(err)
	}

	return m.enqueue(ctx, model.EventAppointmentBooked, apt, nil, actor, now)
}

// Transition moves the appointment to target on behalf of actor.
func (m *StateMachine) Transition(ctx context.Context, id uuid.UUID, target model.AppointmentStatus, actor model.Actor, reason string) (*model.Appointment, error) {
	if !target.Valid() {
		return nil, apperrors.Validation(fmt.Sprintf("unknown status %q", target), nil)
	}

	var updated *model.Appointment
	err := m.tx.Atomic(ctx, func(ctx context.Context) error {
		apt, err := m.appointments.Get(ctx, id)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return apperrors.NotFound("appointment", nil)
			}
			return apperrors.Internal(fmt.Errorf("failed to get appointment: %w", err))
		}

		if apt.Status == target {
			return apperrors.NoOp(string(target))
		}
		if !CanTransition(apt.Status, target) {
			return apperrors.IllegalTransition(string(apt.Status), string(target))
		}
		action, _ := policy.TransitionAction(target)
		if !m.policy.Allows(actor, action) {
			return apperrors.Forbidden(fmt.Sprintf("%s may not %s", actor.Role, action))
		}
		if actor.Role == model.RolePatient && apt.PatientID != actor.AccountID {
			return apperrors.Forbidden("patients may only change their own appointments")
		}

		now := m.now()
		from := apt.Status
		swapped, err := m.appointments.CompareAndSwapStatus(ctx, apt.ID, from, target, apt.Version, now)
		if err != nil {
			return apperrors.Internal(fmt.Errorf("failed to update appointment status: %w", err))
		}
		if !swapped {
			return apperrors.Conflict("appointment was modified concurrently", nil)
		}
		apt.Status = target
		apt.Version++
		apt.UpdatedAt = now

		if err := m.auditor.Append(ctx, &model.AppointmentStatusLog{
			AppointmentID:  apt.ID,
			PreviousStatus: &from,
			NewStatus:      target,
			ActorID:        actor.AccountID,
			ActorRole:      actor.Role,
			Reason:         reason,
		}); err != nil {
			return apperrors.Internal(err)
		}

		if target == model.AppointmentStatusCancelled {
			if err := m.allocator.Release(ctx, apt.MedicalRoomTimeID, apt.ID); err != nil {
				return err
			}
		}

		if err := m.enqueue(ctx, model.EventAppointmentStatusChanged, apt, &from, actor, now); err != nil {
			return err
		}

		updated = apt
		return nil
	})
	if errors.Is(err, repository.ErrRetryExhausted) {
		err = apperrors.Conflict("appointment is being modified concurrently", err)
	}

	m.metrics.Transitions.WithLabelValues(string(target), resultLabel(err)).Inc()
	if err != nil {
		if apperrors.CodeOf(err) == apperrors.ErrInternal {
			m.logger.Error(err, "Failed to transition appointment",
				"appointment_id", id.String(),
				"target", string(target))
		}
		return nil, err
	}

	m.logger.Info("Appointment status changed",
		"appointment_id", updated.ID.String(),
		"status", string(updated.Status),
		"actor_id", actor.AccountID.String())
	return updated, nil
}

func (m *StateMachine) enqueue(ctx context.Context, eventType string, apt *model.Appointment, from *model.AppointmentStatus, actor model.Actor, at time.Time) error {
	payload, err := json.Marshal(model.StatusChangedPayload{
		AppointmentID:     apt.ID,
		MedicalRoomTimeID: apt.MedicalRoomTimeID,
		PatientID:         apt.PatientID,
		From:              from,
		To:                apt.Status,
		ActorID:           actor.AccountID,
		OccurredAt:        at,
	})
	if err != nil {
		return apperrors.Internal(fmt.Errorf("failed to marshal event payload: %w", err))
	}

	if err := m.outbox.Create(ctx, &model.OutboxEvent{
		EventType:   eventType,
		AggregateID: apt.ID,
		Payload:     payload,
	}); err != nil {
		return apperrors.Internal(fmt.Errorf("failed to enqueue %s: %w", eventType, err))
	}
	return nil
}

// resultLabel is the metrics label for an operation outcome.
func resultLabel(err error) string {
	if err == nil {
		return "success"
	}
	return apperrors.CodeOf(err).String()
}
