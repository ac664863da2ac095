package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-scheduling/internal/model"
	"github.com/jwalitptl/clinic-scheduling/internal/repository"
)

const appointmentColumns = `id, patient_id, requested_by, medical_room_time_id, status, notes, version, created_at, updated_at`

type appointmentRepository struct {
	BaseRepository
}

func NewAppointmentRepository(base BaseRepository) repository.AppointmentRepository {
	return &appointmentRepository{base}
}

func (r *appointmentRepository) Create(ctx context.Context, appointment *model.Appointment) error {
	query := `
		INSERT INTO appointments (` + appointmentColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := r.conn(ctx).ExecContext(ctx, query,
		appointment.ID,
		appointment.PatientID,
		appointment.RequestedBy,
		appointment.MedicalRoomTimeID,
		appointment.Status,
		appointment.Notes,
		appointment.Version,
		appointment.CreatedAt,
		appointment.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create appointment: %w", translate(err))
	}
	return nil
}

func (r *appointmentRepository) Get(ctx context.Context, id uuid.UUID) (*model.Appointment, error) {
	query := `SELECT ` + appointmentColumns + ` FROM appointments WHERE id = $1`

	var appointment model.Appointment
	if err := r.conn(ctx).GetContext(ctx, &appointment, query, id); err != nil {
		return nil, translate(err)
	}
	return &appointment, nil
}

func (r *appointmentRepository) CompareAndSwapStatus(ctx context.Context, id uuid.UUID, from, to model.AppointmentStatus, version int64, at time.Time) (bool, error) {
	query := `
		UPDATE appointments
		SET status = $1, version = version + 1, updated_at = $2
		WHERE id = $3 AND status = $4 AND version = $5
	`
	res, err := r.conn(ctx).ExecContext(ctx, query, to, at, id, from, version)
	if err != nil {
		return false, fmt.Errorf("failed to update appointment status: %w", translate(err))
	}
	return affected(res)
}

func (r *appointmentRepository) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*model.Appointment, error) {
	query := `
		SELECT ` + appointmentColumns + `
		FROM appointments
		WHERE patient_id = $1
		ORDER BY created_at DESC
	`
	var appointments []*model.Appointment
	if err := r.conn(ctx).SelectContext(ctx, &appointments, query, patientID); err != nil {
		return nil, fmt.Errorf("failed to list appointments: %w", err)
	}
	return appointments, nil
}
