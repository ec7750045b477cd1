package busfacade

import (
	"errors"
	"testing"

	"github.com/godbus/dbus/v5"
	"github.com/stretchr/testify/assert"

	"blecentral/status"
)

func TestMapErrNil(t *testing.T) {
	assert.Nil(t, mapErr("Connect", nil))
}

func TestMapErrDaemonError(t *testing.T) {
	err := mapErr("Connect", dbus.Error{Name: "org.bluez.Error.Failed"})
	var se *status.Error
	assert.ErrorAs(t, err, &se)
	assert.Equal(t, status.BLUEZ_OPERATION_FAILED, se.Status)
	assert.Equal(t, "Connect", se.Op)
}

func TestMapErrUnknownDaemonError(t *testing.T) {
	err := mapErr("Pair", dbus.Error{Name: "org.bluez.Error.SomethingNew"})
	var se *status.Error
	assert.ErrorAs(t, err, &se)
	assert.Equal(t, status.DBUS_EXECUTION_EXCEPTION, se.Status)
}

func TestMapErrNonDbusError(t *testing.T) {
	err := mapErr("ReadValue", errors.New("boom"))
	var se *status.Error
	assert.ErrorAs(t, err, &se)
	assert.Equal(t, status.DBUS_EXECUTION_EXCEPTION, se.Status)
}
