package central

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"blecentral/gatt"
	"blecentral/peripheral"
)

func TestConnectRejectsInvalidAddress(t *testing.T) {
	m := newTestManager(t, nil)
	err := m.Connect("not-a-mac", nil)
	assert.Error(t, err)
}

func TestAutoConnectRegistersTargetAndStartsBackgroundScan(t *testing.T) {
	m := newTestManager(t, nil)
	require.NoError(t, m.AutoConnect("aa:bb:cc:dd:ee:ff", nil))

	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.autoconnect["AA:BB:CC:DD:EE:FF"]
	assert.True(t, ok)
	assert.True(t, m.autoScanActive)
}

func TestAutoConnectRejectsInvalidAddress(t *testing.T) {
	m := newTestManager(t, nil)
	err := m.AutoConnect("garbage", nil)
	assert.Error(t, err)

	m.mu.Lock()
	defer m.mu.Unlock()
	assert.Empty(t, m.autoconnect)
}

func TestAutoConnectBatchRegistersEveryTarget(t *testing.T) {
	m := newTestManager(t, nil)
	err := m.AutoConnectBatch(map[string]peripheral.ConnectCallback{
		"aa:bb:cc:dd:ee:ff": nil,
		"11:22:33:44:55:66": nil,
	})
	require.NoError(t, err)

	m.mu.Lock()
	defer m.mu.Unlock()
	assert.Len(t, m.autoconnect, 2)
}

func TestAutoConnectBatchStopsOnFirstInvalidAddress(t *testing.T) {
	m := newTestManager(t, nil)
	err := m.AutoConnectBatch(map[string]peripheral.ConnectCallback{
		"aa:bb:cc:dd:ee:ff": nil,
		"garbage":           nil,
	})
	assert.Error(t, err)
}

func TestCancelConnectionRemovesAutoconnectTargetAndNotifies(t *testing.T) {
	rec := newRecordingDelegate()
	m := newTestManager(t, rec)
	require.NoError(t, m.AutoConnect("aa:bb:cc:dd:ee:ff", nil))

	// Force the peripheral registry entry into existence the way
	// OnDeviceDiscovered would, without touching a bus.
	m.peripheralFor("AA:BB:CC:DD:EE:FF", gatt.AddressPublic)

	require.NoError(t, m.CancelConnection("aa:bb:cc:dd:ee:ff"))
	waitDrained(t, m.callbackExec)

	m.mu.Lock()
	_, stillRegistered := m.autoconnect["AA:BB:CC:DD:EE:FF"]
	m.mu.Unlock()
	assert.False(t, stillRegistered)

	_, disconnects := rec.snapshot()
	assert.Equal(t, []string{"AA:BB:CC:DD:EE:FF"}, disconnects)
}

func TestCancelConnectionRejectsInvalidAddress(t *testing.T) {
	m := newTestManager(t, nil)
	assert.Error(t, m.CancelConnection("garbage"))
}

func TestCancelConnectionUnknownPeripheralIsNoop(t *testing.T) {
	m := newTestManager(t, nil)
	assert.NoError(t, m.CancelConnection("aa:bb:cc:dd:ee:ff"))
}

func TestSetPINRejectsWrongLength(t *testing.T) {
	m := newTestManager(t, nil)
	assert.False(t, m.SetPIN("AA:BB:CC:DD:EE:FF", "12"))
	assert.False(t, m.SetPIN("AA:BB:CC:DD:EE:FF", "1234567"))
}

func TestGetPeripheralRejectsInvalidAddress(t *testing.T) {
	m := newTestManager(t, nil)
	_, err := m.GetPeripheral("garbage")
	assert.Error(t, err)
}

func TestGetPeripheralCachesSameInstance(t *testing.T) {
	m := newTestManager(t, nil)
	p1, err := m.GetPeripheral("aa:bb:cc:dd:ee:ff")
	require.NoError(t, err)
	p2, err := m.GetPeripheral("AA:BB:CC:DD:EE:FF")
	require.NoError(t, err)
	assert.Same(t, p1, p2)
	assert.Equal(t, peripheral.Disconnected, p1.State())
}
