package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type OutboxStatus string

const (
	OutboxStatusPending   OutboxStatus = "pending"
	OutboxStatusProcessed OutboxStatus = "processed"
	OutboxStatusRetry     OutboxStatus = "retry"
	OutboxStatusFailed    OutboxStatus = "failed"
)

// Event types written to the outbox alongside appointment changes.
const (
	EventAppointmentBooked        = "appointment.booked"
	EventAppointmentStatusChanged = "appointment.status_changed"
)

type OutboxEvent struct {
	ID           uuid.UUID       `db:"id" json:"id"`
	EventType    string          `db:"event_type" json:"event_type"`
	AggregateID  uuid.UUID       `db:"aggregate_id" json:"aggregate_id"`
	Payload      json.RawMessage `db:"payload" json:"payload"`
	Status       OutboxStatus    `db:"status" json:"status"`
	ErrorMessage *string         `db:"error_message" json:"error_message,omitempty"`
	RetryCount   int             `db:"retry_count" json:"retry_count"`
	RetryAt      *time.Time      `db:"retry_at" json:"retry_at,omitempty"`
	CreatedAt    time.Time       `db:"created_at" json:"created_at"`
	ProcessedAt  *time.Time      `db:"processed_at" json:"processed_at,omitempty"`
	UpdatedAt    time.Time       `db:"updated_at" json:"updated_at"`
}

// StatusChangedPayload is the body of EventAppointmentStatusChanged and EventAppointmentBooked.
type StatusChangedPayload struct {
	AppointmentID     uuid.UUID          `json:"appointment_id"`
	MedicalRoomTimeID uuid.UUID          `json:"medical_room_time_id"`
	PatientID         uuid.UUID          `json:"patient_id"`
	From              *AppointmentStatus `json:"from,omitempty"`
	To                AppointmentStatus  `json:"to"`
	ActorID           uuid.UUID          `json:"actor_id"`
	OccurredAt        time.Time          `json:"occurred_at"`
}
