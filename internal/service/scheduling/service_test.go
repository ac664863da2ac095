package scheduling

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/clinic-scheduling/internal/model"
	"github.com/jwalitptl/clinic-scheduling/internal/repository"
	"github.com/jwalitptl/clinic-scheduling/internal/repository/memory"
	apperrors "github.com/jwalitptl/clinic-scheduling/pkg/errors"
	"github.com/jwalitptl/clinic-scheduling/pkg/logger"
	"github.com/jwalitptl/clinic-scheduling/pkg/metrics"
)

var day = time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

type fixture struct {
	svc    *Service
	repos  *repository.Store
	admin  model.Actor
	head   model.Actor
	doctor model.Actor
	desk   model.Actor
	nurse  model.Actor
	room   uuid.UUID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	repos := memory.NewStore().Repositories()
	f := &fixture{
		svc:    New(repos, metrics.New("test"), logger.Nop()),
		repos:  repos,
		admin:  model.Actor{AccountID: uuid.New(), Role: model.RoleAdmin},
		head:   model.Actor{AccountID: uuid.New(), Role: model.RoleStaff, Positions: []model.Position{model.PositionDepartmentHead}},
		doctor: model.Actor{AccountID: uuid.New(), Role: model.RoleStaff, Positions: []model.Position{model.PositionDoctor}},
		desk:   model.Actor{AccountID: uuid.New(), Role: model.RoleStaff, Positions: []model.Position{model.PositionReceptionist}},
		nurse:  model.Actor{AccountID: uuid.New(), Role: model.RoleStaff, Positions: []model.Position{model.PositionMedicalStaff}},
		room:   uuid.New(),
	}

	_, err := f.svc.CreateShift(context.Background(), f.head, &model.ShiftWorking{
		DoctorID:      f.doctor.AccountID,
		MedicalRoomID: f.room,
		FromTime:      day.Add(8 * time.Hour),
		ToTime:        day.Add(12 * time.Hour),
	})
	require.NoError(t, err)
	return f
}

func (f *fixture) slot(t *testing.T, from time.Time) *model.MedicalRoomTime {
	t.Helper()
	s, err := f.svc.CreateRoomTime(context.Background(), f.admin, &model.MedicalRoomTime{
		MedicalRoomID: f.room,
		DoctorID:      f.doctor.AccountID,
		FromTime:      from,
		ToTime:        from.Add(30 * time.Minute),
	})
	require.NoError(t, err)
	return s
}

func patient() model.Actor {
	return model.Actor{AccountID: uuid.New(), Role: model.RolePatient}
}

func (f *fixture) liveAppointments(t *testing.T, slotID uuid.UUID, patients ...model.Actor) int {
	t.Helper()
	n := 0
	for _, p := range patients {
		list, err := f.repos.Appointments.ListByPatient(context.Background(), p.AccountID)
		require.NoError(t, err)
		for _, a := range list {
			if a.MedicalRoomTimeID == slotID && a.Status != model.AppointmentStatusCancelled {
				n++
			}
		}
	}
	return n
}

func TestDoubleBookingConflicts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := f.slot(t, day.Add(9*time.Hour))
	p, q := patient(), patient()

	apt, err := f.svc.BookAppointment(ctx, p, s.ID, p.AccountID, "first visit")
	require.NoError(t, err)
	assert.Equal(t, model.AppointmentStatusPending, apt.Status)
	assert.Equal(t, p.AccountID, apt.PatientID)

	_, err = f.svc.BookAppointment(ctx, q, s.ID, q.AccountID, "")
	assert.ErrorIs(t, err, apperrors.ErrKindSlotConflict)
	assert.Equal(t, 1, f.liveAppointments(t, s.ID, p, q))
}

func TestNurseCannotConfirmAppointment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := f.slot(t, day.Add(9*time.Hour))
	p := patient()
	apt, err := f.svc.BookAppointment(ctx, p, s.ID, p.AccountID, "")
	require.NoError(t, err)

	_, err = f.svc.ChangeStatus(ctx, f.nurse, apt.ID, model.AppointmentStatusConfirmed, "")
	assert.ErrorIs(t, err, apperrors.ErrKindForbidden)

	got, err := f.svc.GetAppointment(ctx, apt.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AppointmentStatusPending, got.Status)

	history, err := f.svc.GetAppointmentHistory(ctx, apt.ID)
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestCancellationFreesSlotForRebooking(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := f.slot(t, day.Add(9*time.Hour))
	p, q := patient(), patient()

	apt, err := f.svc.BookAppointment(ctx, p, s.ID, p.AccountID, "")
	require.NoError(t, err)
	_, err = f.svc.ChangeStatus(ctx, f.desk, apt.ID, model.AppointmentStatusConfirmed, "")
	require.NoError(t, err)
	_, err = f.svc.ChangeStatus(ctx, p, apt.ID, model.AppointmentStatusCancelled, "travelling")
	require.NoError(t, err)

	again, err := f.svc.BookAppointment(ctx, f.desk, s.ID, q.AccountID, "")
	require.NoError(t, err)
	assert.Equal(t, q.AccountID, again.PatientID)
	assert.Equal(t, f.desk.AccountID, again.RequestedBy)
	assert.Equal(t, 1, f.liveAppointments(t, s.ID, p, q))
}

func TestPatientCannotCancelAnotherPatientsBooking(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := f.slot(t, day.Add(9*time.Hour))
	p, q := patient(), patient()

	apt, err := f.svc.BookAppointment(ctx, p, s.ID, p.AccountID, "")
	require.NoError(t, err)

	_, err = f.svc.ChangeStatus(ctx, q, apt.ID, model.AppointmentStatusCancelled, "")
	assert.ErrorIs(t, err, apperrors.ErrKindForbidden)

	// the slot is still held, so the stranger cannot take it
	_, err = f.svc.BookAppointment(ctx, q, s.ID, q.AccountID, "")
	assert.ErrorIs(t, err, apperrors.ErrKindSlotConflict)
	assert.Equal(t, 1, f.liveAppointments(t, s.ID, p, q))
}

func TestCompletedAppointmentIsTerminal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := f.slot(t, day.Add(9*time.Hour))
	p := patient()
	apt, err := f.svc.BookAppointment(ctx, p, s.ID, p.AccountID, "")
	require.NoError(t, err)

	for _, step := range []struct {
		to    model.AppointmentStatus
		actor model.Actor
	}{
		{model.AppointmentStatusConfirmed, f.doctor},
		{model.AppointmentStatusInProgress, f.doctor},
		{model.AppointmentStatusCompleted, f.doctor},
	} {
		_, err := f.svc.ChangeStatus(ctx, step.actor, apt.ID, step.to, "")
		require.NoError(t, err)
	}

	_, err = f.svc.ChangeStatus(ctx, f.admin, apt.ID, model.AppointmentStatusPending, "")
	assert.ErrorIs(t, err, apperrors.ErrKindIllegalTransition)

	_, err = f.svc.ChangeStatus(ctx, f.doctor, apt.ID, model.AppointmentStatusCompleted, "")
	assert.ErrorIs(t, err, apperrors.ErrKindNoOp)
}

func TestOutOfRangeConfidenceRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := f.slot(t, day.Add(9*time.Hour))
	p := patient()
	apt, err := f.svc.BookAppointment(ctx, p, s.ID, p.AccountID, "")
	require.NoError(t, err)

	_, err = f.svc.AddDiagnosisSuggestion(ctx, apt.ID, "J06.9", 1.5, true)
	assert.ErrorIs(t, err, apperrors.ErrKindInvalidConfidence)

	got, err := f.svc.GetAppointment(ctx, apt.ID)
	require.NoError(t, err)
	assert.Equal(t, apt.Status, got.Status)
	assert.Equal(t, apt.Version, got.Version)

	suggestions, err := f.svc.ListDiagnosisSuggestions(ctx, apt.ID)
	require.NoError(t, err)
	assert.Empty(t, suggestions)

	_, err = f.svc.AddDiagnosisSuggestion(ctx, uuid.New(), "J06.9", 0.5, false)
	assert.ErrorIs(t, err, apperrors.ErrKindNotFound)
}

func TestConcurrentBookingHasOneWinner(t *testing.T) {
	f := newFixture(t)
	s := f.slot(t, day.Add(10*time.Hour))

	const callers = 16
	patients := make([]model.Actor, callers)
	errs := make([]error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		patients[i] = patient()
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.svc.BookAppointment(context.Background(), patients[i], s.ID, patients[i].AccountID, "")
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		if err == nil {
			wins++
			continue
		}
		assert.ErrorIs(t, err, apperrors.ErrKindSlotConflict)
	}
	assert.Equal(t, 1, wins)
	assert.Equal(t, 1, f.liveAppointments(t, s.ID, patients...))
}

func TestBookAppointmentValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	inShift := f.slot(t, day.Add(9*time.Hour))
	outOfShift := f.slot(t, day.Add(14*time.Hour))
	p := patient()

	tests := []struct {
		name    string
		actor   model.Actor
		slotID  uuid.UUID
		patient uuid.UUID
		kind    error
	}{
		{"missing slot id", p, uuid.Nil, p.AccountID, apperrors.ErrKindValidation},
		{"missing patient id", p, inShift.ID, uuid.Nil, apperrors.ErrKindValidation},
		{"nurse may not book", f.nurse, inShift.ID, p.AccountID, apperrors.ErrKindForbidden},
		{"patient books for someone else", p, inShift.ID, uuid.New(), apperrors.ErrKindForbidden},
		{"unknown slot", p, uuid.New(), p.AccountID, apperrors.ErrKindNotFound},
		{"slot outside every shift", p, outOfShift.ID, p.AccountID, apperrors.ErrKindNoActiveShift},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.BookAppointment(ctx, tt.actor, tt.slotID, tt.patient, "")
			assert.ErrorIs(t, err, tt.kind)
		})
	}

	// none of the failures left a reservation behind
	got, err := f.repos.Slots.Get(ctx, inShift.ID)
	require.NoError(t, err)
	assert.False(t, got.Occupied())
}

func TestCreateShift(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	doctor := f.doctor.AccountID

	t.Run("overlap rejected", func(t *testing.T) {
		_, err := f.svc.CreateShift(ctx, f.head, &model.ShiftWorking{DoctorID: doctor, MedicalRoomID: f.room, FromTime: day.Add(11 * time.Hour), ToTime: day.Add(13 * time.Hour)})
		assert.ErrorIs(t, err, apperrors.ErrKindValidation)
		assert.True(t, errors.Is(err, ErrShiftOverlap))
	})

	t.Run("adjacent shift accepted", func(t *testing.T) {
		_, err := f.svc.CreateShift(ctx, f.head, &model.ShiftWorking{DoctorID: doctor, MedicalRoomID: f.room, FromTime: day.Add(12 * time.Hour), ToTime: day.Add(16 * time.Hour)})
		assert.NoError(t, err)
	})

	t.Run("inverted interval rejected", func(t *testing.T) {
		_, err := f.svc.CreateShift(ctx, f.head, &model.ShiftWorking{DoctorID: doctor, MedicalRoomID: uuid.New(), FromTime: day.Add(10 * time.Hour), ToTime: day.Add(10 * time.Hour)})
		assert.ErrorIs(t, err, apperrors.ErrKindValidation)
		assert.False(t, errors.Is(err, ErrShiftOverlap))
	})

	t.Run("doctor may not manage schedule", func(t *testing.T) {
		_, err := f.svc.CreateShift(ctx, f.doctor, &model.ShiftWorking{DoctorID: doctor, MedicalRoomID: uuid.New(), FromTime: day, ToTime: day.Add(time.Hour)})
		assert.ErrorIs(t, err, apperrors.ErrKindForbidden)
	})

	shifts, err := f.repos.Shifts.ListOverlapping(ctx, doctor, f.room, day, day.Add(24*time.Hour))
	require.NoError(t, err)
	require.Len(t, shifts, 2)
	for i, s := range shifts {
		assert.True(t, s.Interval().Valid())
		for _, other := range shifts[i+1:] {
			assert.False(t, s.Interval().Overlaps(other.Interval()))
		}
	}
}

func TestConcurrentShiftCreationNeverOverlaps(t *testing.T) {
	f := newFixture(t)
	room := uuid.New()

	const callers = 8
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = f.svc.CreateShift(context.Background(), f.admin, &model.ShiftWorking{
				DoctorID:      f.doctor.AccountID,
				MedicalRoomID: room,
				FromTime:      day.Add(8 * time.Hour),
				ToTime:        day.Add(10 * time.Hour),
			})
		}()
	}
	wg.Wait()

	shifts, err := f.repos.Shifts.ListByRoom(context.Background(), room, day, day.Add(24*time.Hour))
	require.NoError(t, err)
	assert.Len(t, shifts, 1)
}

func TestListAvailableSlots(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	free := f.slot(t, day.Add(8*time.Hour))
	booked := f.slot(t, day.Add(9*time.Hour))
	f.slot(t, day.Add(13*time.Hour)) // outside the shift
	p := patient()
	_, err := f.svc.BookAppointment(ctx, p, booked.ID, p.AccountID, "")
	require.NoError(t, err)

	slots, err := f.svc.ListAvailableSlots(ctx, f.room, day, day.Add(24*time.Hour))
	require.NoError(t, err)
	require.Len(t, slots, 1)
	assert.Equal(t, free.ID, slots[0].ID)

	_, err = f.svc.ListAvailableSlots(ctx, f.room, day.Add(time.Hour), day)
	assert.ErrorIs(t, err, apperrors.ErrKindValidation)
}

func TestGetAppointmentHistoryUnknownAppointment(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.GetAppointmentHistory(context.Background(), uuid.New())
	assert.ErrorIs(t, err, apperrors.ErrKindNotFound)
}

func TestAuthorize(t *testing.T) {
	f := newFixture(t)

	assert.NoError(t, f.svc.Authorize(f.nurse, model.ActionRecordDiagnosis))
	assert.ErrorIs(t, f.svc.Authorize(patient(), model.ActionRecordDiagnosis), apperrors.ErrKindForbidden)
	assert.ErrorIs(t, f.svc.Authorize(f.admin, model.Action("drop_tables")), apperrors.ErrKindForbidden)
}

func TestListPatientAppointments(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p, q := patient(), patient()
	first, err := f.svc.BookAppointment(ctx, p, f.slot(t, day.Add(9*time.Hour)).ID, p.AccountID, "")
	require.NoError(t, err)
	second, err := f.svc.BookAppointment(ctx, f.desk, f.slot(t, day.Add(10*time.Hour)).ID, p.AccountID, "")
	require.NoError(t, err)

	list, err := f.svc.ListPatientAppointments(ctx, p, p.AccountID)
	require.NoError(t, err)
	ids := []uuid.UUID{}
	for _, a := range list {
		ids = append(ids, a.ID)
	}
	assert.ElementsMatch(t, []uuid.UUID{first.ID, second.ID}, ids)

	list, err = f.svc.ListPatientAppointments(ctx, f.nurse, q.AccountID)
	require.NoError(t, err)
	assert.Empty(t, list)

	_, err = f.svc.ListPatientAppointments(ctx, q, p.AccountID)
	assert.ErrorIs(t, err, apperrors.ErrKindForbidden)

	_, err = f.svc.ListPatientAppointments(ctx, f.admin, uuid.Nil)
	assert.ErrorIs(t, err, apperrors.ErrKindValidation)
}
