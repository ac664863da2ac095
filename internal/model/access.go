package model

import "github.com/google/uuid"

// Role is the organizational access level of an account.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleStaff   Role = "staff"
	RolePatient Role = "patient"
)

func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleStaff, RolePatient:
		return true
	}
	return false
}

// Position is a clinical assignment held by a staff member.
type Position string

const (
	PositionDoctor         Position = "doctor"
	PositionReceptionist   Position = "receptionist"
	PositionDepartmentHead Position = "department_head"
	PositionMedicalStaff   Position = "medical_staff"
)

func (p Position) Valid() bool {
	switch p {
	case PositionDoctor, PositionReceptionist, PositionDepartmentHead, PositionMedicalStaff:
		return true
	}
	return false
}

// Action names an operation gated by the access policy.
type Action string

const (
	ActionBookAppointment     Action = "book_appointment"
	ActionConfirmAppointment  Action = "confirm_appointment"
	ActionStartAppointment    Action = "start_appointment"
	ActionCompleteAppointment Action = "complete_appointment"
	ActionCancelAppointment   Action = "cancel_appointment"
	ActionMarkNoShow          Action = "mark_no_show"
	ActionRecordDiagnosis     Action = "record_diagnosis"
	ActionViewHistory         Action = "view_history"
	ActionManageSchedule      Action = "manage_schedule"
)

// Actor is the authenticated caller of a core operation.
type Actor struct {
	AccountID uuid.UUID  `json:"account_id"`
	Role      Role       `json:"role"`
	Positions []Position `json:"positions,omitempty"`
}

// HasPosition reports whether the actor holds p.
func (a Actor) HasPosition(p Position) bool {
	for _, held := range a.Positions {
		if held == p {
			return true
		}
	}
	return false
}
