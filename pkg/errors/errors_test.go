package errors

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppErrorIsMatchesByCode(t *testing.T) {
	err := fmt.Errorf("failed to book: %w", SlotConflict("slot taken", nil))

	assert.True(t, Is(err, ErrKindSlotConflict))
	assert.False(t, Is(err, ErrKindNoActiveShift))
	assert.Equal(t, ErrSlotConflict, CodeOf(err))
}

func TestCodeOfPlainErrorIsInternal(t *testing.T) {
	assert.Equal(t, ErrInternal, CodeOf(fmt.Errorf("connection refused")))
}

func TestStatusCode(t *testing.T) {
	tests := []struct {
		err  *AppError
		want int
	}{
		{Validation("bad", nil), http.StatusBadRequest},
		{InvalidConfidence(1.5), http.StatusBadRequest},
		{Forbidden("no"), http.StatusForbidden},
		{NotFound("appointment", nil), http.StatusNotFound},
		{SlotConflict("taken", nil), http.StatusConflict},
		{IllegalTransition("completed", "pending"), http.StatusConflict},
		{NoOp("pending"), http.StatusConflict},
		{Conflict("stale", nil), http.StatusConflict},
		{NoActiveShift("none"), http.StatusUnprocessableEntity},
		{Internal(fmt.Errorf("boom")), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.err.Code.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.StatusCode())
		})
	}
}

func TestErrorMessageIncludesCause(t *testing.T) {
	err := Internal(fmt.Errorf("db down"))
	assert.Equal(t, "internal server error: db down", err.Error())
	assert.Equal(t, "transition completed -> pending is not allowed", IllegalTransition("completed", "pending").Error())
}
