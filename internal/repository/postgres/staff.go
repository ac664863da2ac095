package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-scheduling/internal/model"
	"github.com/jwalitptl/clinic-scheduling/internal/repository"
)

type staffRepository struct {
	BaseRepository
}

func NewStaffRepository(base BaseRepository) repository.StaffRepository {
	return &staffRepository{base}
}

func (r *staffRepository) ListPositions(ctx context.Context, accountID uuid.UUID) ([]model.Position, error) {
	query := `
		SELECT sp.position
		FROM staff_positions sp
		JOIN staff s ON s.id = sp.staff_id
		WHERE s.account_id = $1
		ORDER BY sp.position
	`
	var positions []model.Position
	if err := r.conn(ctx).SelectContext(ctx, &positions, query, accountID); err != nil {
		return nil, fmt.Errorf("failed to list staff positions: %w", err)
	}
	return positions, nil
}
