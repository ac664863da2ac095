package postgres

import (
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/clinic-scheduling/internal/repository"
)

func NewStore(db *sqlx.DB, txConfig TxConfig) *repository.Store {
	base := NewBaseRepository(db)
	return &repository.Store{
		Tx:           NewTxManager(db, txConfig),
		Appointments: NewAppointmentRepository(base),
		Slots:        NewSlotRepository(base),
		Shifts:       NewShiftRepository(base),
		StatusLogs:   NewStatusLogRepository(base),
		Diagnoses:    NewDiagnosisRepository(base),
		Staff:        NewStaffRepository(base),
		Outbox:       NewOutboxRepository(base),
	}
}
