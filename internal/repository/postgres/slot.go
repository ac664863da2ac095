package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-scheduling/internal/model"
	"github.com/jwalitptl/clinic-scheduling/internal/repository"
)

const slotColumns = `id, medical_room_id, doctor_id, from_time, to_time, appointment_id, created_at, updated_at`

type slotRepository struct {
	BaseRepository
}

func NewSlotRepository(base BaseRepository) repository.SlotRepository {
	return &slotRepository{base}
}

func (r *slotRepository) Create(ctx context.Context, slot *model.MedicalRoomTime) error {
	query := `
		INSERT INTO medical_room_times (` + slotColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := r.conn(ctx).ExecContext(ctx, query,
		slot.ID,
		slot.MedicalRoomID,
		slot.DoctorID,
		slot.FromTime,
		slot.ToTime,
		slot.AppointmentID,
		slot.CreatedAt,
		slot.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create medical room time: %w", translate(err))
	}
	return nil
}

func (r *slotRepository) Get(ctx context.Context, id uuid.UUID) (*model.MedicalRoomTime, error) {
	query := `SELECT ` + slotColumns + ` FROM medical_room_times WHERE id = $1`

	var slot model.MedicalRoomTime
	if err := r.conn(ctx).GetContext(ctx, &slot, query, id); err != nil {
		return nil, translate(err)
	}
	return &slot, nil
}

func (r *slotRepository) Claim(ctx context.Context, slotID, appointmentID uuid.UUID) (bool, error) {
	query := `
		UPDATE medical_room_times
		SET appointment_id = $1, updated_at = NOW()
		WHERE id = $2 AND appointment_id IS NULL
	`
	res, err := r.conn(ctx).ExecContext(ctx, query, appointmentID, slotID)
	if err != nil {
		return false, fmt.Errorf("failed to claim medical room time: %w", translate(err))
	}
	return affected(res)
}

func (r *slotRepository) Release(ctx context.Context, slotID, appointmentID uuid.UUID) (bool, error) {
	query := `
		UPDATE medical_room_times
		SET appointment_id = NULL, updated_at = NOW()
		WHERE id = $1 AND appointment_id = $2
	`
	res, err := r.conn(ctx).ExecContext(ctx, query, slotID, appointmentID)
	if err != nil {
		return false, fmt.Errorf("failed to release medical room time: %w", err)
	}
	return affected(res)
}

func (r *slotRepository) ListFree(ctx context.Context, roomID uuid.UUID, from, to time.Time) ([]*model.MedicalRoomTime, error) {
	query := `
		SELECT ` + slotColumns + `
		FROM medical_room_times
		WHERE medical_room_id = $1
		AND appointment_id IS NULL
		AND from_time >= $2 AND to_time <= $3
		ORDER BY from_time ASC
	`
	var slots []*model.MedicalRoomTime
	if err := r.conn(ctx).SelectContext(ctx, &slots, query, roomID, from, to); err != nil {
		return nil, fmt.Errorf("failed to list free medical room times: %w", err)
	}
	return slots, nil
}
