package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-scheduling/internal/model"
	"github.com/jwalitptl/clinic-scheduling/internal/repository"
)

const statusLogColumns = `id, appointment_id, seq, previous_status, new_status, actor_id, actor_role, reason, prev_hash, hash, created_at`

// statusLogRepository never updates or deletes rows.
type statusLogRepository struct {
	BaseRepository
}

func NewStatusLogRepository(base BaseRepository) repository.StatusLogRepository {
	return &statusLogRepository{base}
}

func (r *statusLogRepository) Append(ctx context.Context, entry *model.AppointmentStatusLog) error {
	query := `
		INSERT INTO appointment_status_logs (` + statusLogColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err := r.conn(ctx).ExecContext(ctx, query,
		entry.ID,
		entry.AppointmentID,
		entry.Seq,
		entry.PreviousStatus,
		entry.NewStatus,
		entry.ActorID,
		entry.ActorRole,
		entry.Reason,
		entry.PrevHash,
		entry.Hash,
		entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to append status log: %w", translate(err))
	}
	return nil
}

func (r *statusLogRepository) Last(ctx context.Context, appointmentID uuid.UUID) (*model.AppointmentStatusLog, error) {
	query := `
		SELECT ` + statusLogColumns + `
		FROM appointment_status_logs
		WHERE appointment_id = $1
		ORDER BY seq DESC
		LIMIT 1
	`
	var entry model.AppointmentStatusLog
	if err := r.conn(ctx).GetContext(ctx, &entry, query, appointmentID); err != nil {
		return nil, translate(err)
	}
	return &entry, nil
}

func (r *statusLogRepository) List(ctx context.Context, appointmentID uuid.UUID) ([]*model.AppointmentStatusLog, error) {
	query := `
		SELECT ` + statusLogColumns + `
		FROM appointment_status_logs
		WHERE appointment_id = $1
		ORDER BY seq ASC
	`
	var entries []*model.AppointmentStatusLog
	if err := r.conn(ctx).SelectContext(ctx, &entries, query, appointmentID); err != nil {
		return nil, fmt.Errorf("failed to list status logs: %w", err)
	}
	return entries, nil
}
