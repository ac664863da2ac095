package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-scheduling/internal/model"
	"github.com/jwalitptl/clinic-scheduling/internal/repository"
)

type diagnosisRepository struct {
	BaseRepository
}

func NewDiagnosisRepository(base BaseRepository) repository.DiagnosisRepository {
	return &diagnosisRepository{base}
}

func (r *diagnosisRepository) Create(ctx context.Context, suggestion *model.DiagnosisSuggestion) error {
	query := `
		INSERT INTO diagnosis_suggestions (
			id, appointment_id, disease_id, confidence, ai_suggested, created_at
		) VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := r.conn(ctx).ExecContext(ctx, query,
		suggestion.ID,
		suggestion.AppointmentID,
		suggestion.DiseaseID,
		suggestion.Confidence,
		suggestion.AISuggested,
		suggestion.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create diagnosis suggestion: %w", translate(err))
	}
	return nil
}

func (r *diagnosisRepository) List(ctx context.Context, appointmentID uuid.UUID) ([]*model.DiagnosisSuggestion, error) {
	query := `
		SELECT id, appointment_id, disease_id, confidence, ai_suggested, created_at
		FROM diagnosis_suggestions
		WHERE appointment_id = $1
		ORDER BY created_at ASC, id ASC
	`
	var suggestions []*model.DiagnosisSuggestion
	if err := r.conn(ctx).SelectContext(ctx, &suggestions, query, appointmentID); err != nil {
		return nil, fmt.Errorf("failed to list diagnosis suggestions: %w", err)
	}
	return suggestions, nil
}
