// Package policy holds the capability table that decides which role and
// position combinations may perform each scheduling action.
package policy

import (
	"github.com/jwalitptl/clinic-scheduling/internal/model"
)

// AnyPosition in a Grant matches every actor of the grant's role, including
// actors without positions.
const AnyPosition model.Position = "*"

// Grant allows an action to actors with Role holding Position.
type Grant struct {
	Role     model.Role
	Position model.Position
}

func (g Grant) matches(role model.Role, positions []model.Position) bool {
	if g.Role != role {
		return false
	}
	if g.Position == AnyPosition {
		return true
	}
	for _, p := range positions {
		if p == g.Position {
			return true
		}
	}
	return false
}

// Table maps every action to the grants that allow it.
type Table map[model.Action][]Grant

// DefaultTable is the clinic permission matrix.
var DefaultTable = Table{
	model.ActionBookAppointment: {
		{model.RoleAdmin, AnyPosition},
		{model.RolePatient, AnyPosition},
		{model.RoleStaff, model.PositionReceptionist},
		{model.RoleStaff, model.PositionDoctor},
	},
	model.ActionConfirmAppointment: {
		{model.RoleAdmin, AnyPosition},
		{model.RoleStaff, model.PositionReceptionist},
		{model.RoleStaff, model.PositionDoctor},
	},
	model.ActionStartAppointment: {
		{model.RoleStaff, model.PositionDoctor},
		{model.RoleStaff, model.PositionMedicalStaff},
	},
	model.ActionCompleteAppointment: {
		{model.RoleStaff, model.PositionDoctor},
	},
	model.ActionCancelAppointment: {
		{model.RoleAdmin, AnyPosition},
		{model.RolePatient, AnyPosition},
		{model.RoleStaff, model.PositionReceptionist},
		{model.RoleStaff, model.PositionDoctor},
		{model.RoleStaff, model.PositionDepartmentHead},
	},
	model.ActionMarkNoShow: {
		{model.RoleStaff, model.PositionReceptionist},
		{model.RoleStaff, model.PositionDoctor},
	},
	model.ActionRecordDiagnosis: {
		{model.RoleStaff, model.PositionDoctor},
		{model.RoleStaff, model.PositionMedicalStaff},
	},
	model.ActionViewHistory: {
		{model.RoleAdmin, AnyPosition},
		{model.RoleStaff, AnyPosition},
	},
	model.ActionManageSchedule: {
		{model.RoleAdmin, AnyPosition},
		{model.RoleStaff, model.PositionDepartmentHead},
	},
}

// Policy evaluates a Table. The zero value denies everything.
type Policy struct {
	table Table
}

func New(table Table) *Policy {
	return &Policy{table: table}
}

// Default returns a policy over DefaultTable.
func Default() *Policy {
	return New(DefaultTable)
}

// IsAllowed reports whether an actor with role and positions may perform action.
// Unknown actions are denied.
func (p *Policy) IsAllowed(role model.Role, positions []model.Position, action model.Action) bool {
	if p == nil {
		return false
	}
	for _, g := range p.table[action] {
		if g.matches(role, positions) {
			return true
		}
	}
	return false
}

// Allows is IsAllowed for an Actor.
func (p *Policy) Allows(actor model.Actor, action model.Action) bool {
	return p.IsAllowed(actor.Role, actor.Positions, action)
}

var transitionActions = map[model.AppointmentStatus]model.Action{
	model.AppointmentStatusConfirmed:  model.ActionConfirmAppointment,
	model.AppointmentStatusInProgress: model.ActionStartAppointment,
	model.AppointmentStatusCompleted:  model.ActionCompleteAppointment,
	model.AppointmentStatusCancelled:  model.ActionCancelAppointment,
	model.AppointmentStatusNoShow:     model.ActionMarkNoShow,
}

// TransitionAction returns the action that gates moving an appointment into target.
// PENDING has no action because nothing transitions into it.
func TransitionAction(target model.AppointmentStatus) (model.Action, bool) {
	a, ok := transitionActions[target]
	return a, ok
}
