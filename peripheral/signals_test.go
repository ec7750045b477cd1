package peripheral

import (
	"testing"

	"github.com/godbus/dbus/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"blecentral/gatt"
)

func connectedPeripheralWithCharacteristic(t *testing.T, rec Delegate) (*Peripheral, *gatt.Characteristic) {
	t.Helper()
	p := newTestPeripheral(t, "12:34:56:65:43:21", rec)

	svc := &gatt.Service{Path: "/org/bluez/hci0/dev_12_34_56_65_43_21/service0010"}
	uuid, err := gatt.ParseUUID("2A37")
	require.NoError(t, err)
	c := &gatt.Characteristic{
		UUID:       uuid,
		Path:       svc.Path + "/char0011",
		Properties: gatt.PropRead | gatt.PropNotify,
		Service:    svc,
	}
	svc.Characteristics = []*gatt.Characteristic{c}

	p.mu.Lock()
	p.state = Connected
	p.tree = gatt.NewTree([]*gatt.Service{svc})
	p.mu.Unlock()

	return p, c
}

// TestOnCharacteristicPropertiesChangedCompletesInFlightRead covers
// scenario 4: a Value change that matches the in-flight read completes the
// queue and delivers exactly one update.
func TestOnCharacteristicPropertiesChangedCompletesInFlightRead(t *testing.T) {
	rec := newRecordingDelegate()
	p, c := connectedPeripheralWithCharacteristic(t, rec)

	p.ReadCharacteristic(c)
	require.True(t, p.cmdQueue.InFlight())

	p.OnCharacteristicPropertiesChanged(dbus.ObjectPath(c.Path), map[string]dbus.Variant{
		"Value": dbus.MakeVariant([]byte{0x01, 0x02}),
	})
	waitDrained(t, p.callbackExec)

	assert.False(t, p.cmdQueue.InFlight())
	require.Equal(t, 1, rec.charUpdateCount())
}

// TestOnCharacteristicPropertiesChangedUnsolicitedStillDelivers covers the
// notification path: a Value change with no matching in-flight read is
// still forwarded to the delegate, without touching the (idle) queue.
func TestOnCharacteristicPropertiesChangedUnsolicitedStillDelivers(t *testing.T) {
	rec := newRecordingDelegate()
	p, c := connectedPeripheralWithCharacteristic(t, rec)

	require.False(t, p.cmdQueue.InFlight())

	p.OnCharacteristicPropertiesChanged(dbus.ObjectPath(c.Path), map[string]dbus.Variant{
		"Value": dbus.MakeVariant([]byte{0xAA}),
	})
	waitDrained(t, p.callbackExec)

	assert.False(t, p.cmdQueue.InFlight())
	require.Equal(t, 1, rec.charUpdateCount())
	assert.Equal(t, []byte{0xAA}, c.Value())
}

// TestOnCharacteristicPropertiesChangedNotifyingCompletesSetNotify mirrors
// scenario 6's completion step, using a notify-capable characteristic: a
// Notifying change completes an in-flight
// SetNotify command and delivers one notification-state update.
func TestOnCharacteristicPropertiesChangedNotifyingCompletesSetNotify(t *testing.T) {
	rec := newRecordingDelegate()
	p, c := connectedPeripheralWithCharacteristic(t, rec)

	p.SetNotify(c, true)
	require.True(t, p.cmdQueue.InFlight())

	p.OnCharacteristicPropertiesChanged(dbus.ObjectPath(c.Path), map[string]dbus.Variant{
		"Notifying": dbus.MakeVariant(true),
	})
	waitDrained(t, p.callbackExec)

	assert.False(t, p.cmdQueue.InFlight())
	require.Len(t, rec.notifyUpdates, 1)
	assert.True(t, c.Notifying())
}

func TestOnDescriptorPropertiesChangedDeliversUpdate(t *testing.T) {
	rec := newRecordingDelegate()
	p := newTestPeripheral(t, "12:34:56:65:43:21", rec)

	svc := &gatt.Service{Path: "/org/bluez/hci0/dev_12_34_56_65_43_21/service0010"}
	cuuid, err := gatt.ParseUUID("2A37")
	require.NoError(t, err)
	duuid, err := gatt.ParseUUID("2902")
	require.NoError(t, err)
	c := &gatt.Characteristic{UUID: cuuid, Path: svc.Path + "/char0011", Service: svc}
	d := &gatt.Descriptor{UUID: duuid, Path: c.Path + "/desc0012", Characteristic: c}
	c.Descriptors = []*gatt.Descriptor{d}
	svc.Characteristics = []*gatt.Characteristic{c}

	p.mu.Lock()
	p.state = Connected
	p.tree = gatt.NewTree([]*gatt.Service{svc})
	p.mu.Unlock()

	p.OnDescriptorPropertiesChanged(dbus.ObjectPath(d.Path), map[string]dbus.Variant{
		"Value": dbus.MakeVariant([]byte{0x01}),
	})
	waitDrained(t, p.callbackExec)

	assert.Equal(t, []byte{0x01}, d.Value())
}
