package status

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusString(t *testing.T) {
	assert.Equal(t, "SUCCESS", SUCCESS.String())
	assert.Equal(t, "BLUEZ_NOT_READY", BLUEZ_NOT_READY.String())
}

func TestStatusOK(t *testing.T) {
	assert.True(t, SUCCESS.OK())
	assert.False(t, BLUEZ_OPERATION_FAILED.OK())
}

func TestErrorUnwrap(t *testing.T) {
	cause := errors.New("boom")
	err := New("ReadValue", BLUEZ_OPERATION_FAILED, cause)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "ReadValue")
	assert.Contains(t, err.Error(), "boom")
}

func TestFromDaemonErrorName(t *testing.T) {
	assert.Equal(t, BLUEZ_NOT_READY, FromDaemonErrorName("org.bluez.Error.NotReady"))
	assert.Equal(t, DBUS_EXECUTION_EXCEPTION, FromDaemonErrorName("org.something.Unknown"))
}
