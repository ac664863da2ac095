package appointment

import "github.com/jwalitptl/clinic-scheduling/internal/model"

// edges is the allowed status graph. Terminal statuses have no entry.
var edges = map[model.AppointmentStatus][]model.AppointmentStatus{
	model.AppointmentStatusPending: {
		model.AppointmentStatusConfirmed,
		model.AppointmentStatusCancelled,
	},
	model.AppointmentStatusConfirmed: {
		model.AppointmentStatusInProgress,
		model.AppointmentStatusCancelled,
		model.AppointmentStatusNoShow,
	},
	model.AppointmentStatusInProgress: {
		model.AppointmentStatusCompleted,
	},
}

// CanTransition reports whether from -> to is an edge of the status graph.
func CanTransition(from, to model.AppointmentStatus) bool {
	for _, next := range edges[from] {
		if next == to {
			return true
		}
	}
	return false
}

// NextStatuses returns the statuses reachable from s in one step.
func NextStatuses(s model.AppointmentStatus) []model.AppointmentStatus {
	return append([]model.AppointmentStatus(nil), edges[s]...)
}
