package central

import (
	"fmt"
	"strings"
	"time"

	"github.com/godbus/dbus/v5"

	"blecentral/eventbus"
	"blecentral/gatt"
	"blecentral/queue"
	"blecentral/signalrouter"
)

// filterKind names which scan_* call last configured the active filter
// (§4.6 "Public surface").
type filterKind int

const (
	filterAny filterKind = iota
	filterServices
	filterNames
	filterAddresses
)

// scanFilter is the Central's current post-filter state. The daemon only
// enforces the service-UUID filter server-side; name and address filters
// are re-checked in OnDeviceDiscovered (§4.6 "Address/name/service
// post-filter").
type scanFilter struct {
	kind      filterKind
	services  []string
	names     []string
	addresses []string
}

func (f scanFilter) matches(r gatt.ScanResult) bool {
	switch f.kind {
	case filterNames:
		for _, want := range f.names {
			if strings.Contains(r.Name, want) {
				return true
			}
		}
		return false
	case filterAddresses:
		for _, want := range f.addresses {
			if want == r.Address {
				return true
			}
		}
		return false
	default:
		// filterAny and filterServices: the service-UUID clause is
		// enforced server-side via SetDiscoveryFilter, nothing further to
		// re-check here.
		return true
	}
}

func invalidArgument(format string, args ...interface{}) error {
	return fmt.Errorf("central: invalid argument: "+format, args...)
}

// ScanAny implements §4.6 "scan_any": stop any current scan, clear every
// filter, start scanning.
func (m *Manager) ScanAny() error {
	return m.startScan(scanFilter{kind: filterAny})
}

// ScanServices implements §4.6 "scan_services". uuids must be non-empty
// (§8 boundary behavior).
func (m *Manager) ScanServices(uuids []string) error {
	if len(uuids) == 0 {
		return invalidArgument("service UUIDs must be non-empty")
	}
	return m.startScan(scanFilter{kind: filterServices, services: append([]string(nil), uuids...)})
}

// ScanNames implements §4.6 "scan_names": substring match over advertised
// name. names must be non-empty.
func (m *Manager) ScanNames(names []string) error {
	if len(names) == 0 {
		return invalidArgument("names must be non-empty")
	}
	return m.startScan(scanFilter{kind: filterNames, names: append([]string(nil), names...)})
}

// ScanAddresses implements §4.6 "scan_addresses": exact-match filter over
// MAC. addrs must be non-empty and each must be a canonical MAC.
func (m *Manager) ScanAddresses(addrs []string) error {
	if len(addrs) == 0 {
		return invalidArgument("addresses must be non-empty")
	}
	normalized := make([]string, 0, len(addrs))
	for _, a := range addrs {
		n, err := gatt.NormalizeAddress(a)
		if err != nil {
			return invalidArgument("address %q: %v", a, err)
		}
		normalized = append(normalized, n)
	}
	return m.startScan(scanFilter{kind: filterAddresses, addresses: normalized})
}

// SetRSSIThreshold implements §4.6 "set_rssi_threshold". dBm must be in
// [-127, +20] (§8 boundary behavior); applies to subsequent scans.
func (m *Manager) SetRSSIThreshold(dBm int16) error {
	if dBm < m.cfg.MinRSSI || dBm > m.cfg.MaxRSSI {
		return invalidArgument("RSSI threshold %d out of range [%d, %d]", dBm, m.cfg.MinRSSI, m.cfg.MaxRSSI)
	}
	m.mu.Lock()
	m.rssiThreshold = dBm
	m.mu.Unlock()
	return nil
}

func (m *Manager) startScan(f scanFilter) error {
	m.mu.Lock()
	m.filter = f
	m.normalScanActive = true
	m.mu.Unlock()
	m.restartDiscoverySession()
	return nil
}

// StopScan implements §4.6 "stop_scan": stops scanning and drops all
// filters. Background autoconnect scanning, if active, is left running
// (§4.6 "Autoconnect").
func (m *Manager) StopScan() {
	m.mu.Lock()
	m.normalScanActive = false
	m.filter = scanFilter{}
	autoStillActive := m.autoScanActive
	m.mu.Unlock()

	m.cancelScanTimer()
	if !autoStillActive {
		m.issueDiscoveryCommand(false)
	}
}

func (m *Manager) cancelScanTimer() {
	m.mu.Lock()
	t := m.scanTimer
	m.scanTimer = nil
	m.mu.Unlock()
	if t != nil {
		t.Cancel()
	}
}

// restartDiscoverySession re-issues the filter and (re)starts the
// time-sliced discovery window, per §4.6 "scan_any()/scan_services()/...:
// Stop current scan if active. ... Start scan."
func (m *Manager) restartDiscoverySession() {
	m.cancelScanTimer()
	m.issueDiscoveryCommand(false)
	m.startDiscoveryWindow()
}

// ensureScanning starts a discovery window only if neither scan kind is
// already running one (used by the autoconnect resumption path so it
// never stacks a second concurrent window timer).
func (m *Manager) ensureScanning() {
	m.mu.Lock()
	running := m.scanTimer != nil
	m.mu.Unlock()
	if !running {
		m.startDiscoveryWindow()
	}
}

// startDiscoveryWindow issues SetDiscoveryFilter+StartDiscovery and arms
// the window timer (§4.6 "Discovery scheduling": discover for ScanWindow,
// then pause).
func (m *Manager) startDiscoveryWindow() {
	m.issueDiscoveryCommand(true)
	handle := m.queueExec.PostDelayed(m.pauseDiscoveryWindow, m.cfg.ScanWindow)
	m.mu.Lock()
	m.scanTimer = handle
	m.mu.Unlock()
}

func (m *Manager) pauseDiscoveryWindow() {
	m.issueDiscoveryCommand(false)
	handle := m.queueExec.PostDelayed(m.resumeDiscoveryIfActive, m.cfg.ScanPause)
	m.mu.Lock()
	m.scanTimer = handle
	m.mu.Unlock()
}

func (m *Manager) resumeDiscoveryIfActive() {
	m.mu.Lock()
	active := m.normalScanActive || m.autoScanActive
	m.mu.Unlock()
	if active {
		m.startDiscoveryWindow()
	}
}

// issueDiscoveryCommand enqueues an adapter-level command that either
// re-applies the filter and starts discovery, or stops it. Adapter
// commands carry no Key (§4.5: "adapter-level commands carry no key").
func (m *Manager) issueDiscoveryCommand(start bool) {
	m.cmdQueue.Enqueue(&queue.Command{
		Tag: queue.TagDiscovering,
		Body: func() {
			var err error
			if start {
				err = m.adapter.SetDiscoveryFilter(m.buildDiscoveryFilter())
				if err == nil {
					err = m.adapter.StartDiscovery()
				}
			} else {
				err = m.adapter.StopDiscovery()
			}
			if err != nil {
				m.log.Debugf("discovery command (start=%v) failed: %v", start, err)
				m.cmdQueue.Complete()
				return
			}
			// success: completed when the Discovering PropertiesChanged
			// signal arrives (OnAdapterPropertiesChanged).
		},
	})
}

func (m *Manager) buildDiscoveryFilter() map[string]interface{} {
	m.mu.Lock()
	defer m.mu.Unlock()
	filter := map[string]interface{}{
		"Transport":     "le",
		"RSSI":          m.rssiThreshold,
		"DuplicateData": true,
	}
	if m.filter.kind == filterServices {
		filter["UUIDs"] = m.filter.services
	}
	return filter
}

// OnAdapterPropertiesChanged satisfies signalrouter.CentralSink.
func (m *Manager) OnAdapterPropertiesChanged(changed map[string]dbus.Variant) {
	if v, ok := changed["Powered"]; ok {
		if b, ok := v.Value().(bool); ok {
			if m.cmdQueue.Matches(queue.TagPowered, "") {
				m.cmdQueue.Complete()
			}
			powered := "powered_off"
			if b {
				powered = "powered_on"
			}
			m.deliver(func() {
				m.delegate.OnAdapterPoweredChanged(b)
				m.bus.Publish(eventbus.Event{Kind: eventbus.KindAdapterPoweredChanged, Status: powered})
			})
		}
	}
	if _, ok := changed["Discovering"]; ok {
		if m.cmdQueue.Matches(queue.TagDiscovering, "") {
			m.cmdQueue.Complete()
		}
	}
}

// OnDeviceDiscovered satisfies signalrouter.CentralSink (§4.3
// "InterfacesAdded ... forwards to the Central whose adapter prefixes the
// path").
func (m *Manager) OnDeviceDiscovered(d signalrouter.DeviceDiscovered) {
	scan := gatt.ScanResult{
		Address:          d.Address,
		AddressKind:      addressKindFromString(d.AddressType),
		ServiceUUIDs:     d.ServiceUUIDs,
		ManufacturerData: d.ManufacturerData,
		ServiceData:      d.ServiceData,
		LastUpdate:       time.Time{},
	}
	if d.HasName {
		scan.Name = d.Name
	}
	if d.HasRSSI {
		scan.RSSI = d.RSSI
	}

	p := m.peripheralFor(scan.Address, scan.AddressKind)
	p.ObserveScanResult(scan)

	if m.tryAutoConnect(scan.Address) {
		return
	}

	m.mu.Lock()
	active := m.normalScanActive
	passes := m.filter.matches(scan)
	m.mu.Unlock()
	if !active || !passes {
		return
	}
	m.deliver(func() {
		m.delegate.OnDiscovered(p, scan)
		m.bus.Publish(eventbus.Event{Kind: eventbus.KindDiscovered, Address: scan.Address})
	})
}

// OnUnownedDevicePropertiesChanged satisfies signalrouter.CentralSink: a
// Device PropertiesChanged signal for an address not yet registered as a
// Peripheral is treated as a scan update (§4.3).
func (m *Manager) OnUnownedDevicePropertiesChanged(address string, changed map[string]dbus.Variant) {
	p := m.peripheralFor(address, gatt.AddressPublic)
	scan, _ := p.LastScanResult()
	scan.Address = address
	updated := false
	if v, ok := changed["Name"]; ok {
		if s, ok := v.Value().(string); ok {
			scan.Name = s
			updated = true
		}
	}
	if v, ok := changed["RSSI"]; ok {
		if n, ok := v.Value().(int16); ok {
			scan.RSSI = n
			updated = true
		}
	}
	if !updated {
		return
	}
	p.ObserveScanResult(scan)

	if m.tryAutoConnect(address) {
		return
	}
	m.mu.Lock()
	active := m.normalScanActive
	passes := m.filter.matches(scan)
	m.mu.Unlock()
	if !active || !passes {
		return
	}
	m.deliver(func() {
		m.delegate.OnDiscovered(p, scan)
		m.bus.Publish(eventbus.Event{Kind: eventbus.KindDiscovered, Address: scan.Address})
	})
}

func (m *Manager) deliver(fn func()) {
	if m.callbackExec == nil {
		fn()
		return
	}
	m.callbackExec.Post(fn)
}

func addressKindFromString(s string) gatt.AddressKind {
	if s == "random" {
		return gatt.AddressRandom
	}
	return gatt.AddressPublic
}
