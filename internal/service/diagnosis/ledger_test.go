package diagnosis

import (
	"context"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/clinic-scheduling/internal/model"
	"github.com/jwalitptl/clinic-scheduling/internal/repository"
	"github.com/jwalitptl/clinic-scheduling/internal/repository/memory"
	apperrors "github.com/jwalitptl/clinic-scheduling/pkg/errors"
	"github.com/jwalitptl/clinic-scheduling/pkg/metrics"
)

func setup(t *testing.T) (*Ledger, *repository.Store, *model.Appointment) {
	t.Helper()
	store := memory.NewStore()
	repos := store.Repositories()

	from := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	slot := model.MedicalRoomTime{Base: model.Base{ID: uuid.New()}, MedicalRoomID: uuid.New(), DoctorID: uuid.New(), FromTime: from, ToTime: from.Add(time.Hour)}
	store.SeedSlot(slot)
	apt := &model.Appointment{Base: model.Base{ID: uuid.New()}, MedicalRoomTimeID: slot.ID, Status: model.AppointmentStatusInProgress, Version: 3}
	require.NoError(t, repos.Appointments.Create(context.Background(), apt))

	return NewLedger(repos.Appointments, repos.Diagnoses, metrics.New("test")), repos, apt
}

func TestValidConfidence(t *testing.T) {
	tests := []struct {
		value float64
		want  bool
	}{
		{0, true},
		{0.42, true},
		{1, true},
		{-0.0001, false},
		{1.5, false},
		{math.NaN(), false},
		{math.Inf(1), false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ValidConfidence(tt.value), "confidence %v", tt.value)
	}
}

func TestRecord(t *testing.T) {
	ledger, _, apt := setup(t)
	ctx := context.Background()

	got, err := ledger.Record(ctx, apt.ID, "J06.9", 0.8, true)
	require.NoError(t, err)
	assert.Equal(t, "J06.9", got.DiseaseID)
	assert.True(t, got.AISuggested)

	_, err = ledger.Record(ctx, apt.ID, "J20.9", 0.3, false)
	require.NoError(t, err)

	list, err := ledger.List(ctx, apt.ID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "J06.9", list[0].DiseaseID)
	assert.Equal(t, "J20.9", list[1].DiseaseID)
}

func TestRecordInvalidConfidenceLeavesAppointmentUntouched(t *testing.T) {
	ledger, repos, apt := setup(t)
	ctx := context.Background()

	_, err := ledger.Record(ctx, apt.ID, "J06.9", 1.5, true)
	assert.ErrorIs(t, err, apperrors.ErrKindInvalidConfidence)

	stored, err := repos.Appointments.Get(ctx, apt.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AppointmentStatusInProgress, stored.Status)
	assert.Equal(t, int64(3), stored.Version)

	list, err := ledger.List(ctx, apt.ID)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestRecordErrors(t *testing.T) {
	ledger, _, apt := setup(t)
	ctx := context.Background()

	_, err := ledger.Record(ctx, uuid.New(), "J06.9", 0.5, false)
	assert.ErrorIs(t, err, apperrors.ErrKindNotFound)

	_, err = ledger.Record(ctx, apt.ID, "  ", 0.5, false)
	assert.ErrorIs(t, err, apperrors.ErrKindValidation)

	_, err = ledger.Record(ctx, apt.ID, strings.Repeat("x", MaxDiseaseIDLength+1), 0.5, false)
	assert.ErrorIs(t, err, apperrors.ErrKindValidation)

	_, err = ledger.List(ctx, uuid.New())
	assert.ErrorIs(t, err, apperrors.ErrKindNotFound)
}
