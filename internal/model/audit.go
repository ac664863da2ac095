package model

import (
	"time"

	"github.com/google/uuid"
)

// AppointmentStatusLog is one immutable entry of an appointment's status history.
// PreviousStatus is nil for the entry written at booking time.
type AppointmentStatusLog struct {
	ID             uuid.UUID          `json:"id" db:"id"`
	AppointmentID  uuid.UUID          `json:"appointment_id" db:"appointment_id"`
	Seq            int64              `json:"seq" db:"seq"`
	PreviousStatus *AppointmentStatus `json:"previous_status,omitempty" db:"previous_status"`
	NewStatus      AppointmentStatus  `json:"new_status" db:"new_status"`
	ActorID        uuid.UUID          `json:"actor_id" db:"actor_id"`
	ActorRole      Role               `json:"actor_role" db:"actor_role"`
	Reason         string             `json:"reason,omitempty" db:"reason"`
	PrevHash       string             `json:"prev_hash" db:"prev_hash"`
	Hash           string             `json:"hash" db:"hash"`
	CreatedAt      time.Time          `json:"created_at" db:"created_at"`
}
