package central

import (
	"blecentral/eventbus"
	"blecentral/gatt"
	"blecentral/peripheral"
	"blecentral/status"
)

// Connect implements §4.6 "connect": initiates a direct connect, a no-op
// if the peripheral is already connected or connecting. Per the resolved
// Open Question, this path stops normal scanning before issuing the bus
// connect (autoconnect's own path handles scan stop/resume separately).
func (m *Manager) Connect(rawAddr string, cb peripheral.ConnectCallback) error {
	addr, err := gatt.NormalizeAddress(rawAddr)
	if err != nil {
		return invalidArgument("address %q: %v", rawAddr, err)
	}
	p := m.peripheralFor(addr, gatt.AddressPublic)
	if p.State() != peripheral.Disconnected {
		return nil
	}

	m.mu.Lock()
	wasNormalActive := m.normalScanActive
	m.normalScanActive = false
	m.mu.Unlock()
	if wasNormalActive {
		m.cancelScanTimer()
		m.issueDiscoveryCommand(false)
	}

	p.Connect(cb)
	return nil
}

// AutoConnect implements §4.6 "auto_connect": registers addr in the
// autoconnect registry and ensures background scanning is on.
func (m *Manager) AutoConnect(rawAddr string, cb peripheral.ConnectCallback) error {
	addr, err := gatt.NormalizeAddress(rawAddr)
	if err != nil {
		return invalidArgument("address %q: %v", rawAddr, err)
	}
	m.mu.Lock()
	m.autoconnect[addr] = cb
	m.autoScanActive = true
	m.mu.Unlock()
	m.ensureScanning()
	return nil
}

// AutoConnectBatch implements §4.6 "auto_connect_batch".
func (m *Manager) AutoConnectBatch(targets map[string]peripheral.ConnectCallback) error {
	for addr, cb := range targets {
		if err := m.AutoConnect(addr, cb); err != nil {
			return err
		}
	}
	return nil
}

// tryAutoConnect checks addr against the autoconnect registry and, if
// present, performs §4.6's "Autoconnect" algorithm: stop normal scanning,
// issue connect, then resume scanning appropriately once connect has been
// issued. Returns whether addr was an autoconnect target.
func (m *Manager) tryAutoConnect(addr string) bool {
	m.mu.Lock()
	cb, ok := m.autoconnect[addr]
	if !ok {
		m.mu.Unlock()
		return false
	}
	wasNormalActive := m.normalScanActive
	m.normalScanActive = false
	m.mu.Unlock()

	if wasNormalActive {
		m.cancelScanTimer()
		m.issueDiscoveryCommand(false)
	}

	p := m.peripheralFor(addr, gatt.AddressPublic)
	p.Connect(cb)

	m.mu.Lock()
	registryNonEmpty := len(m.autoconnect) > 0
	m.mu.Unlock()

	switch {
	case registryNonEmpty:
		m.mu.Lock()
		m.autoScanActive = true
		m.mu.Unlock()
		m.ensureScanning()
	case wasNormalActive:
		m.mu.Lock()
		m.normalScanActive = true
		m.mu.Unlock()
		m.ensureScanning()
	}
	return true
}

// CancelConnection implements §4.6 "cancel_connection": if connected,
// enqueue a disconnect; if registered for autoconnect, remove it and emit
// a synthetic disconnect callback.
func (m *Manager) CancelConnection(rawAddr string) error {
	addr, err := gatt.NormalizeAddress(rawAddr)
	if err != nil {
		return invalidArgument("address %q: %v", rawAddr, err)
	}

	m.mu.Lock()
	_, wasAutoconnect := m.autoconnect[addr]
	delete(m.autoconnect, addr)
	m.mu.Unlock()

	if v, ok := m.peripherals.Load(addr); ok {
		p := v.(*peripheral.Peripheral)
		if p.State() == peripheral.Connected || p.State() == peripheral.Connecting {
			p.Disconnect()
			return nil
		}
		if wasAutoconnect {
			m.deliver(func() {
				m.delegate.OnDisconnected(p, status.SUCCESS)
				m.bus.Publish(eventbus.Event{Kind: eventbus.KindDisconnected, Address: p.Address(), Status: status.SUCCESS.String()})
			})
		}
	}
	return nil
}
