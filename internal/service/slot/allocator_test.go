package slot

import (
	"context"
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
)

var shiftStart = time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)

type fixture struct {
	store     *memory.Store
	repos     *repository.Store
	allocator *Allocator
	doctor    uuid.UUID
	room      uuid.UUID
}

func newFixture() *fixture {
	store := memory.NewStore()
	repos := store.Repositories()
	f := &fixture{
		store:     store,
		repos:     repos,
		allocator: NewAllocator(repos.Slots, repos.Shifts),
		doctor:    uuid.New(),
		room:      uuid.New(),
	}
	store.SeedShift(model.ShiftWorking{
		Base:          model.Base{ID: uuid.New()},
		DoctorID:      f.doctor,
		MedicalRoomID: f.room,
		FromTime:      shiftStart,
		ToTime:        shiftStart.Add(4 * time.Hour),
	})
	return f
}

func (f *fixture) slot(from time.Time, doctor uuid.UUID) model.MedicalRoomTime {
	s := model.MedicalRoomTime{
		Base:          model.Base{ID: uuid.New()},
		MedicalRoomID: f.room,
		DoctorID:      doctor,
		FromTime:      from,
		ToTime:        from.Add(30 * time.Minute),
	}
	f.store.SeedSlot(s)
	return s
}

func TestReserve(t *testing.T) {
	f := newFixture()
	s := f.slot(shiftStart.Add(time.Hour), f.doctor)
	appt := uuid.New()

	res, err := f.allocator.Reserve(context.Background(), s.ID, appt)
	require.NoError(t, err)
	assert.Equal(t, s.ID, res.MedicalRoomTimeID)
	assert.Equal(t, appt, res.AppointmentID)
	assert.NotEqual(t, uuid.Nil, res.ShiftID)

	got, err := f.repos.Slots.Get(context.Background(), s.ID)
	require.NoError(t, err)
	require.NotNil(t, got.AppointmentID)
	assert.Equal(t, appt, *got.AppointmentID)
}

func TestReserveFailures(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	outside := f.slot(shiftStart.Add(3*time.Hour+45*time.Minute), f.doctor) // runs past the shift end
	otherDoctor := f.slot(shiftStart.Add(time.Hour), uuid.New())
	taken := f.slot(shiftStart.Add(2*time.Hour), f.doctor)
	_, err := f.allocator.Reserve(ctx, taken.ID, uuid.New())
	require.NoError(t, err)

	tests := []struct {
		name   string
		slotID uuid.UUID
		kind   error
	}{
		{"unknown slot", uuid.New(), apperrors.ErrKindNotFound},
		{"slot extends past shift", outside.ID, apperrors.ErrKindNoActiveShift},
		{"doctor has no shift in room", otherDoctor.ID, apperrors.ErrKindNoActiveShift},
		{"slot already reserved", taken.ID, apperrors.ErrKindSlotConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.allocator.Reserve(ctx, tt.slotID, uuid.New())
			assert.ErrorIs(t, err, tt.kind)
		})
	}
}

func TestReleaseMakesSlotBookableAgain(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	s := f.slot(shiftStart, f.doctor)

	appt := uuid.New()
	_, err := f.allocator.Reserve(ctx, s.ID, appt)
	require.NoError(t, err)
	require.NoError(t, f.allocator.Release(ctx, s.ID, appt))

	_, err = f.allocator.Reserve(ctx, s.ID, uuid.New())
	assert.NoError(t, err)
}

func TestReleaseUnreservedSlotIsNoOp(t *testing.T) {
	f := newFixture()
	s := f.slot(shiftStart, f.doctor)

	assert.NoError(t, f.allocator.Release(context.Background(), s.ID, uuid.New()))
	assert.NoError(t, f.allocator.Release(context.Background(), uuid.New(), uuid.New()))
}

func TestReleaseByOtherAppointmentKeepsReservation(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	s := f.slot(shiftStart, f.doctor)
	holder := uuid.New()

	_, err := f.allocator.Reserve(ctx, s.ID, holder)
	require.NoError(t, err)
	require.NoError(t, f.allocator.Release(ctx, s.ID, uuid.New()))

	_, err = f.allocator.Reserve(ctx, s.ID, uuid.New())
	assert.ErrorIs(t, err, apperrors.ErrKindSlotConflict)
}

func TestConcurrentReserveHasOneWinner(t *testing.T) {
	f := newFixture()
	s := f.slot(shiftStart, f.doctor)

	const callers = 20
	errs := make([]error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.allocator.Reserve(context.Background(), s.ID, uuid.New())
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
}

func TestAvailable(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	free := f.slot(shiftStart.Add(time.Hour), f.doctor)
	f.slot(shiftStart.Add(-time.Hour), f.doctor) // before the shift
	taken := f.slot(shiftStart.Add(2*time.Hour), f.doctor)
	_, err := f.allocator.Reserve(ctx, taken.ID, uuid.New())
	require.NoError(t, err)

	slots, err := f.allocator.Available(ctx, f.room, shiftStart.Add(-2*time.Hour), shiftStart.Add(8*time.Hour))
	require.NoError(t, err)
	require.Len(t, slots, 1)
	assert.Equal(t, free.ID, slots[0].ID)
}
