package signalrouter

import (
	"sync"
	"testing"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"blecentral/executor"
)

type fakeCentral struct {
	adapterPath dbus.ObjectPath
	exec        *executor.Executor

	mu          sync.Mutex
	discovered  []DeviceDiscovered
	adapterProp []map[string]dbus.Variant
	unowned     []string
}

func newFakeCentral(adapterPath dbus.ObjectPath) *fakeCentral {
	return &fakeCentral{adapterPath: adapterPath, exec: executor.New("test-central", nil)}
}

func (f *fakeCentral) AdapterPath() dbus.ObjectPath         { return f.adapterPath }
func (f *fakeCentral) SignalExecutor() *executor.Executor   { return f.exec }
func (f *fakeCentral) OnDeviceDiscovered(d DeviceDiscovered) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.discovered = append(f.discovered, d)
}
func (f *fakeCentral) OnAdapterPropertiesChanged(changed map[string]dbus.Variant) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.adapterProp = append(f.adapterProp, changed)
}
func (f *fakeCentral) OnUnownedDevicePropertiesChanged(address string, changed map[string]dbus.Variant) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.unowned = append(f.unowned, address)
}

type fakePeripheral struct {
	address string
	exec    *executor.Executor

	mu           sync.Mutex
	deviceProps  []map[string]dbus.Variant
	charChanges  int
	descChanges  int
}

func newFakePeripheral(address string) *fakePeripheral {
	return &fakePeripheral{address: address, exec: executor.New("test-peripheral", nil)}
}

func (f *fakePeripheral) Address() string                       { return f.address }
func (f *fakePeripheral) SignalExecutor() *executor.Executor     { return f.exec }
func (f *fakePeripheral) OnDevicePropertiesChanged(changed map[string]dbus.Variant) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deviceProps = append(f.deviceProps, changed)
}
func (f *fakePeripheral) OnCharacteristicPropertiesChanged(path dbus.ObjectPath, changed map[string]dbus.Variant) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.charChanges++
}
func (f *fakePeripheral) OnDescriptorPropertiesChanged(path dbus.ObjectPath, changed map[string]dbus.Variant) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.descChanges++
}

func waitUntil(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition never became true")
}

func TestDispatchInterfacesAddedRoutesByAdapterPrefix(t *testing.T) {
	r := New(nil)
	c := newFakeCentral("/org/bluez/hci0")
	r.RegisterCentral(c)

	r.DispatchInterfacesAdded(DeviceDiscovered{
		Path:    "/org/bluez/hci0/dev_12_34_56_65_43_21",
		Address: "12:34:56:65:43:21",
		Name:    "Beurer BM57",
		HasName: true,
	})

	waitUntil(t, func() bool {
		c.mu.Lock()
		defer c.mu.Unlock()
		return len(c.discovered) == 1
	})
	require.Len(t, c.discovered, 1)
	assert.Equal(t, "12:34:56:65:43:21", c.discovered[0].Address)
}

func TestDispatchPropertiesChangedDeviceGoesToRegisteredPeripheral(t *testing.T) {
	r := New(nil)
	p := newFakePeripheral("12:34:56:65:43:21")
	r.RegisterPeripheral(p)

	r.DispatchPropertiesChanged("/org/bluez/hci0/dev_12_34_56_65_43_21", deviceInterface,
		map[string]dbus.Variant{"Connected": dbus.MakeVariant(true)})

	waitUntil(t, func() bool {
		p.mu.Lock()
		defer p.mu.Unlock()
		return len(p.deviceProps) == 1
	})
}

func TestDispatchPropertiesChangedDeviceFallsBackToCentralWhenUnregistered(t *testing.T) {
	r := New(nil)
	c := newFakeCentral("/org/bluez/hci0")
	r.RegisterCentral(c)

	r.DispatchPropertiesChanged("/org/bluez/hci0/dev_AA_BB_CC_DD_EE_FF", deviceInterface,
		map[string]dbus.Variant{"RSSI": dbus.MakeVariant(int16(-40))})

	waitUntil(t, func() bool {
		c.mu.Lock()
		defer c.mu.Unlock()
		return len(c.unowned) == 1
	})
	assert.Equal(t, "AA:BB:CC:DD:EE:FF", c.unowned[0])
}

func TestDispatchPropertiesChangedCharacteristicRoutesToOwningPeripheral(t *testing.T) {
	r := New(nil)
	p := newFakePeripheral("12:34:56:65:43:21")
	r.RegisterPeripheral(p)

	path := dbus.ObjectPath("/org/bluez/hci0/dev_12_34_56_65_43_21/service0010/char0011")
	r.DispatchPropertiesChanged(path, gattCharacteristicIface,
		map[string]dbus.Variant{"Value": dbus.MakeVariant([]byte{0x01, 0x02})})

	waitUntil(t, func() bool {
		p.mu.Lock()
		defer p.mu.Unlock()
		return p.charChanges == 1
	})
}

func TestDispatchPropertiesChangedDescriptorRoutesToOwningPeripheral(t *testing.T) {
	r := New(nil)
	p := newFakePeripheral("12:34:56:65:43:21")
	r.RegisterPeripheral(p)

	path := dbus.ObjectPath("/org/bluez/hci0/dev_12_34_56_65_43_21/service0010/char0011/desc0012")
	r.DispatchPropertiesChanged(path, gattDescriptorIface,
		map[string]dbus.Variant{"Value": dbus.MakeVariant([]byte{0x01})})

	waitUntil(t, func() bool {
		p.mu.Lock()
		defer p.mu.Unlock()
		return p.descChanges == 1
	})
}

func TestUnregisterRemovesRoute(t *testing.T) {
	r := New(nil)
	c := newFakeCentral("/org/bluez/hci0")
	r.RegisterCentral(c)
	r.UnregisterCentral("/org/bluez/hci0")

	r.DispatchInterfacesAdded(DeviceDiscovered{Path: "/org/bluez/hci0/dev_12_34_56_65_43_21"})

	time.Sleep(20 * time.Millisecond)
	c.mu.Lock()
	defer c.mu.Unlock()
	assert.Empty(t, c.discovered)
}
