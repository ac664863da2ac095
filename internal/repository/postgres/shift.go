package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-scheduling/internal/model"
	"github.com/jwalitptl/clinic-scheduling/internal/repository"
)

const shiftColumns = `id, doctor_id, medical_room_id, from_time, to_time, created_at, updated_at`

type shiftRepository struct {
	BaseRepository
}

func NewShiftRepository(base BaseRepository) repository.ShiftRepository {
	return &shiftRepository{base}
}

func (r *shiftRepository) Create(ctx context.Context, shift *model.ShiftWorking) error {
	query := `
		INSERT INTO shift_workings (` + shiftColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.conn(ctx).ExecContext(ctx, query,
		shift.ID,
		shift.DoctorID,
		shift.MedicalRoomID,
		shift.FromTime,
		shift.ToTime,
		shift.CreatedAt,
		shift.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create shift: %w", translate(err))
	}
	return nil
}

func (r *shiftRepository) FindCovering(ctx context.Context, doctorID, roomID uuid.UUID, from, to time.Time) (*model.ShiftWorking, error) {
	query := `
		SELECT ` + shiftColumns + `
		FROM shift_workings
		WHERE doctor_id = $1 AND medical_room_id = $2
		AND from_time <= $3 AND to_time >= $4
		ORDER BY from_time ASC
		LIMIT 1
		FOR SHARE
	`
	var shift model.ShiftWorking
	if err := r.conn(ctx).GetContext(ctx, &shift, query, doctorID, roomID, from, to); err != nil {
		return nil, translate(err)
	}
	return &shift, nil
}

func (r *shiftRepository) ListOverlapping(ctx context.Context, doctorID, roomID uuid.UUID, from, to time.Time) ([]*model.ShiftWorking, error) {
	query := `
		SELECT ` + shiftColumns + `
		FROM shift_workings
		WHERE doctor_id = $1 AND medical_room_id = $2
		AND from_time < $4 AND to_time > $3
		ORDER BY from_time ASC
	`
	var shifts []*model.ShiftWorking
	if err := r.conn(ctx).SelectContext(ctx, &shifts, query, doctorID, roomID, from, to); err != nil {
		return nil, fmt.Errorf("failed to list overlapping shifts: %w", err)
	}
	return shifts, nil
}

func (r *shiftRepository) ListByRoom(ctx context.Context, roomID uuid.UUID, from, to time.Time) ([]*model.ShiftWorking, error) {
	query := `
		SELECT ` + shiftColumns + `
		FROM shift_workings
		WHERE medical_room_id = $1
		AND from_time < $3 AND to_time > $2
		ORDER BY from_time ASC
	`
	var shifts []*model.ShiftWorking
	if err := r.conn(ctx).SelectContext(ctx, &shifts, query, roomID, from, to); err != nil {
		return nil, fmt.Errorf("failed to list shifts: %w", err)
	}
	return shifts, nil
}
