// Package signalrouter implements spec.md §4.3: a dispatcher
// that subscribes to the broker's InterfacesAdded and PropertiesChanged
// signals and routes each one to the owning Central or Peripheral. It
// replaces the source's BluezSignalHandler global singleton (§9) with a
// router instance owned by the top-level Central Manager; Centrals and
// Peripherals register and deregister by adapter path / MAC as they are
// constructed and torn down, rather than reaching into global state.
package signalrouter

import (
	"strings"
	"sync"

	"github.com/godbus/dbus/v5"

	"blecentral/executor"
	"blecentral/gatt"
	"blecentral/internal/logging"
)

const (
	objectManagerInterface  = "org.freedesktop.DBus.ObjectManager"
	propertiesChangedMember = "org.freedesktop.DBus.Properties.PropertiesChanged"
	interfacesAddedMember   = "org.freedesktop.DBus.ObjectManager.InterfacesAdded"
	deviceInterface         = "org.bluez.Device1"
	adapterInterface        = "org.bluez.Adapter1"
	gattCharacteristicIface = "org.bluez.GattCharacteristic1"
	gattDescriptorIface     = "org.bluez.GattDescriptor1"
)

// DeviceDiscovered is the decoded form of an InterfacesAdded signal on the
// Device1 interface (§4.3).
type DeviceDiscovered struct {
	Path             dbus.ObjectPath
	Address          string
	AddressType      string
	Name             string
	HasName          bool
	RSSI             int16
	HasRSSI          bool
	ServiceUUIDs     []string
	ManufacturerData map[uint16][]byte
	ServiceData      map[string][]byte
}

// CentralSink is the subset of Central Manager behavior the router needs
// to dispatch signals to it. A Central registers one under its adapter's
// object path.
type CentralSink interface {
	AdapterPath() dbus.ObjectPath
	SignalExecutor() *executor.Executor
	OnDeviceDiscovered(d DeviceDiscovered)
	OnAdapterPropertiesChanged(changed map[string]dbus.Variant)
	OnUnownedDevicePropertiesChanged(address string, changed map[string]dbus.Variant)
}

// PeripheralSink is the subset of Peripheral behavior the router needs.
// A Peripheral registers one under its MAC when it is first created and
// deregisters on eviction.
type PeripheralSink interface {
	Address() string
	SignalExecutor() *executor.Executor
	OnDevicePropertiesChanged(changed map[string]dbus.Variant)
	OnCharacteristicPropertiesChanged(path dbus.ObjectPath, changed map[string]dbus.Variant)
	OnDescriptorPropertiesChanged(path dbus.ObjectPath, changed map[string]dbus.Variant)
}

// Router routes bus signals to the Centrals and Peripherals registered with
// it (§4.3, §9). blecentral.New creates one Router per Manager; nothing
// here limits a process to a single Router.
type Router struct {
	log *logging.Logger

	mu          sync.RWMutex
	centrals    map[dbus.ObjectPath]CentralSink
	peripherals map[string]PeripheralSink
}

// New constructs an unstarted Router.
func New(log *logging.Logger) *Router {
	if log == nil {
		log = logging.Default()
	}
	return &Router{
		log:         log.WithComponent("signalrouter"),
		centrals:    make(map[dbus.ObjectPath]CentralSink),
		peripherals: make(map[string]PeripheralSink),
	}
}

// RegisterCentral adds c to the adapter-keyed registry.
func (r *Router) RegisterCentral(c CentralSink) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.centrals[c.AdapterPath()] = c
}

// UnregisterCentral removes a previously registered Central.
func (r *Router) UnregisterCentral(adapterPath dbus.ObjectPath) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.centrals, adapterPath)
}

// RegisterPeripheral adds p to the MAC-keyed registry.
func (r *Router) RegisterPeripheral(p PeripheralSink) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.peripherals[p.Address()] = p
}

// UnregisterPeripheral removes a previously registered Peripheral.
func (r *Router) UnregisterPeripheral(address string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.peripherals, address)
}

func (r *Router) centralFor(path dbus.ObjectPath) (CentralSink, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p := string(path)
	for adapterPath, c := range r.centrals {
		if strings.HasPrefix(p, string(adapterPath)) {
			return c, true
		}
	}
	return nil, false
}

func (r *Router) peripheralFor(address string) (PeripheralSink, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.peripherals[address]
	return p, ok
}

// DispatchInterfacesAdded routes one InterfacesAdded signal (already
// decoded) to the Central owning the adapter path prefix, posting the
// delivery onto that Central's signal executor so downstream processing
// stays sequential per Central (§4.3).
func (r *Router) DispatchInterfacesAdded(d DeviceDiscovered) {
	c, ok := r.centralFor(d.Path)
	if !ok {
		r.log.Debugf("InterfacesAdded for %s matched no registered central", d.Path)
		return
	}
	c.SignalExecutor().Post(func() { c.OnDeviceDiscovered(d) })
}

// DispatchPropertiesChanged routes one PropertiesChanged signal by
// interface name, per the table in §4.3.
func (r *Router) DispatchPropertiesChanged(path dbus.ObjectPath, iface string, changed map[string]dbus.Variant) {
	switch iface {
	case adapterInterface:
		c, ok := r.centralFor(path)
		if !ok {
			return
		}
		c.SignalExecutor().Post(func() { c.OnAdapterPropertiesChanged(changed) })

	case deviceInterface:
		addr, ok := gatt.AddressFromObjectPath(string(path))
		if !ok {
			return
		}
		if p, ok := r.peripheralFor(addr); ok {
			p.SignalExecutor().Post(func() { p.OnDevicePropertiesChanged(changed) })
			return
		}
		// Not yet registered as a Peripheral: treat as a scan update and
		// forward to the owning Central instead.
		if c, ok := r.centralFor(path); ok {
			c.SignalExecutor().Post(func() { c.OnUnownedDevicePropertiesChanged(addr, changed) })
		}

	case gattCharacteristicIface:
		addr, ok := gatt.AddressFromDescendantPath(string(path))
		if !ok {
			return
		}
		if p, ok := r.peripheralFor(addr); ok {
			p.SignalExecutor().Post(func() { p.OnCharacteristicPropertiesChanged(path, changed) })
		}

	case gattDescriptorIface:
		addr, ok := gatt.AddressFromDescendantPath(string(path))
		if !ok {
			return
		}
		if p, ok := r.peripheralFor(addr); ok {
			p.SignalExecutor().Post(func() { p.OnDescriptorPropertiesChanged(path, changed) })
		}
	}
}
