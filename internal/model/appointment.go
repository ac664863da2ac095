package model

import (
	"github.com/google/uuid"
)

type AppointmentStatus string

const (
	AppointmentStatusPending    AppointmentStatus = "pending"
	AppointmentStatusConfirmed  AppointmentStatus = "confirmed"
	AppointmentStatusInProgress AppointmentStatus = "in_progress"
	AppointmentStatusCompleted  AppointmentStatus = "completed"
	AppointmentStatusCancelled  AppointmentStatus = "cancelled"
	AppointmentStatusNoShow     AppointmentStatus = "no_show"
)

func (s AppointmentStatus) Valid() bool {
	switch s {
	case AppointmentStatusPending, AppointmentStatusConfirmed, AppointmentStatusInProgress,
		AppointmentStatusCompleted, AppointmentStatusCancelled, AppointmentStatusNoShow:
		return true
	}
	return false
}

// Terminal reports whether no transition leaves s.
func (s AppointmentStatus) Terminal() bool {
	switch s {
	case AppointmentStatusCompleted, AppointmentStatusCancelled, AppointmentStatusNoShow:
		return true
	}
	return false
}

type Appointment struct {
	Base
	PatientID         uuid.UUID         `db:"patient_id" json:"patient_id"`
	RequestedBy       uuid.UUID         `db:"requested_by" json:"requested_by"`
	MedicalRoomTimeID uuid.UUID         `db:"medical_room_time_id" json:"medical_room_time_id"`
	Status            AppointmentStatus `db:"status" json:"status"`
	Notes             string            `db:"notes" json:"notes,omitempty"`
	Version           int64             `db:"version" json:"version"`
}

type BookAppointmentRequest struct {
	MedicalRoomTimeID string `json:"medical_room_time_id" validate:"required,uuid"`
	PatientID         string `json:"patient_id" validate:"required,uuid"`
	Notes             string `json:"notes" validate:"max=1000"`
}

type ChangeStatusRequest struct {
	Status AppointmentStatus `json:"status" validate:"required,oneof=pending confirmed in_progress completed cancelled no_show"`
	Reason string            `json:"reason" validate:"max=500"`
}
