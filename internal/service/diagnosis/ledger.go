package diagnosis

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-scheduling/internal/model"
	"github.com/jwalitptl/clinic-scheduling/internal/repository"
	apperrors "github.com/jwalitptl/clinic-scheduling/pkg/errors"
	"github.com/jwalitptl/clinic-scheduling/pkg/metrics"
)

const MaxDiseaseIDLength = 64

// Ledger records advisory diagnosis suggestions. Scheduling never reads them.
type Ledger struct {
	appointments repository.AppointmentRepository
	suggestions  repository.DiagnosisRepository
	metrics      *metrics.Metrics
	now          func() time.Time
}

func NewLedger(appointments repository.AppointmentRepository, suggestions repository.DiagnosisRepository, metrics *metrics.Metrics) *Ledger {
	return &Ledger{
		appointments: appointments,
		suggestions:  suggestions,
		metrics:      metrics,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// ValidConfidence reports whether c lies in [0, 1]. NaN is rejected.
func ValidConfidence(c float64) bool {
	return !math.IsNaN(c) && c >= 0 && c <= 1
}

func (l *Ledger) Record(ctx context.Context, appointmentID uuid.UUID, diseaseID string, confidence float64, aiSuggested bool) (*model.DiagnosisSuggestion, error) {
	if !ValidConfidence(confidence) {
		return nil, apperrors.InvalidConfidence(confidence)
	}
	diseaseID = strings.TrimSpace(diseaseID)
	if diseaseID == "" {
		return nil, apperrors.Validation("disease id is required", nil)
	}
	if len(diseaseID) > MaxDiseaseIDLength {
		return nil, apperrors.Validation(fmt.Sprintf("disease id exceeds %d characters", MaxDiseaseIDLength), nil)
	}

	if err := l.ensureAppointment(ctx, appointmentID); err != nil {
		return nil, err
	}

	suggestion := &model.DiagnosisSuggestion{
		ID:            uuid.New(),
		AppointmentID: appointmentID,
		DiseaseID:     diseaseID,
		Confidence:    confidence,
		AISuggested:   aiSuggested,
		CreatedAt:     l.now(),
	}
	if err := l.suggestions.Create(ctx, suggestion); err != nil {
		return nil, apperrors.Internal(fmt.Errorf("failed to record diagnosis suggestion: %w", err))
	}

	l.metrics.DiagnosisSuggestions.Inc()
	return suggestion, nil
}

func (l *Ledger) List(ctx context.Context, appointmentID uuid.UUID) ([]*model.DiagnosisSuggestion, error) {
	if err := l.ensureAppointment(ctx, appointmentID); err != nil {
		return nil, err
	}
	suggestions, err := l.suggestions.List(ctx, appointmentID)
	if err != nil {
		return nil, apperrors.Internal(fmt.Errorf("failed to list diagnosis suggestions: %w", err))
	}
	return suggestions, nil
}

func (l *Ledger) ensureAppointment(ctx context.Context, id uuid.UUID) error {
	if _, err := l.appointments.Get(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperrors.NotFound("appointment", nil)
		}
		return apperrors.Internal(fmt.Errorf("failed to get appointment: %w", err))
	}
	return nil
}
