package model

import (
	"time"

	"github.com/google/uuid"
)

// DiagnosisSuggestion is advisory only; scheduling never reads it.
type DiagnosisSuggestion struct {
	ID            uuid.UUID `json:"id" db:"id"`
	AppointmentID uuid.UUID `json:"appointment_id" db:"appointment_id"`
	DiseaseID     string    `json:"disease_id" db:"disease_id"`
	Confidence    float64   `json:"confidence" db:"confidence"`
	AISuggested   bool      `json:"ai_suggested" db:"ai_suggested"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
}

type AddDiagnosisRequest struct {
	DiseaseID   string   `json:"disease_id" validate:"required,max=64"`
	Confidence  *float64 `json:"confidence" validate:"required"`
	AISuggested bool     `json:"ai_suggested"`
}
