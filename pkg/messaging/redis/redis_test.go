package redis

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestChannel(t *testing.T) {
	assert.Equal(t, "appointments:appointment.booked", Channel("appointments", "appointment.booked"))
}

func TestNewRedisBrokerRejectsBadURL(t *testing.T) {
	_, err := NewRedisBroker(Config{URL: "not a url"}, nil)
	assert.Error(t, err)
}
