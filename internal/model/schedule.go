package model

import (
	"time"

	"github.com/google/uuid"
)

type MedicalRoom struct {
	Base
	Name         string    `db:"name" json:"name"`
	DepartmentID uuid.UUID `db:"department_id" json:"department_id"`
}

// MedicalRoomTime is a bookable slot. AppointmentID is the occupancy field:
// nil while the slot is free.
type MedicalRoomTime struct {
	Base
	MedicalRoomID uuid.UUID  `db:"medical_room_id" json:"medical_room_id"`
	DoctorID      uuid.UUID  `db:"doctor_id" json:"doctor_id"`
	FromTime      time.Time  `db:"from_time" json:"from_time"`
	ToTime        time.Time  `db:"to_time" json:"to_time"`
	AppointmentID *uuid.UUID `db:"appointment_id" json:"appointment_id,omitempty"`
}

func (s *MedicalRoomTime) Interval() Interval {
	return Interval{From: s.FromTime, To: s.ToTime}
}

func (s *MedicalRoomTime) Occupied() bool {
	return s.AppointmentID != nil
}

type ShiftWorking struct {
	Base
	DoctorID      uuid.UUID `db:"doctor_id" json:"doctor_id"`
	MedicalRoomID uuid.UUID `db:"medical_room_id" json:"medical_room_id"`
	FromTime      time.Time `db:"from_time" json:"from_time"`
	ToTime        time.Time `db:"to_time" json:"to_time"`
}

func (s *ShiftWorking) Interval() Interval {
	return Interval{From: s.FromTime, To: s.ToTime}
}

// Reservation is the result of a successful slot claim.
type Reservation struct {
	MedicalRoomTimeID uuid.UUID `json:"medical_room_time_id"`
	AppointmentID     uuid.UUID `json:"appointment_id"`
	ShiftID           uuid.UUID `json:"shift_id"`
	ReservedAt        time.Time `json:"reserved_at"`
}

type CreateShiftRequest struct {
	DoctorID      string    `json:"doctor_id" validate:"required,uuid"`
	MedicalRoomID string    `json:"medical_room_id" validate:"required,uuid"`
	FromTime      time.Time `json:"from_time" validate:"required"`
	ToTime        time.Time `json:"to_time" validate:"required,gtfield=FromTime"`
}

type CreateRoomTimeRequest struct {
	DoctorID string    `json:"doctor_id" validate:"required,uuid"`
	FromTime time.Time `json:"from_time" validate:"required"`
	ToTime   time.Time `json:"to_time" validate:"required,gtfield=FromTime"`
}
