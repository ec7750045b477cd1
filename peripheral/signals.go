package peripheral

import (
	"github.com/godbus/dbus/v5"

	"blecentral/eventbus"
	"blecentral/gatt"
	"blecentral/queue"
	"blecentral/status"
)

// OnDevicePropertiesChanged satisfies signalrouter.PeripheralSink. It always
// runs on this Peripheral's signal executor (§4.3).
func (p *Peripheral) OnDevicePropertiesChanged(changed map[string]dbus.Variant) {
	if v, ok := changed["Connected"]; ok {
		if b, ok := v.Value().(bool); ok {
			if b {
				p.handleConnectedTrue()
			} else {
				p.handleConnectedFalse()
			}
		}
	}
	if v, ok := changed["ServicesResolved"]; ok {
		if b, ok := v.Value().(bool); ok && b {
			p.handleServicesResolved()
		}
	}
	if v, ok := changed["Paired"]; ok {
		if b, ok := v.Value().(bool); ok {
			p.handlePairedChanged(b)
		}
	}

	scan := p.currentScanResult()
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
	if updated {
		p.updateScanResult(scan)
	}
}

func (p *Peripheral) currentScanResult() gatt.ScanResult {
	if r, ok := p.LastScanResult(); ok {
		return r
	}
	return gatt.ScanResult{Address: p.address, AddressKind: p.AddressType()}
}

// OnCharacteristicPropertiesChanged satisfies signalrouter.PeripheralSink.
// Value changes either complete an in-flight read command or, when no read
// is in-flight for this characteristic, are forwarded as unsolicited
// notifications (§4.7 "read_characteristic"/"set_notify").
func (p *Peripheral) OnCharacteristicPropertiesChanged(path dbus.ObjectPath, changed map[string]dbus.Variant) {
	p.mu.RLock()
	tree := p.tree
	p.mu.RUnlock()
	c, ok := tree.CharacteristicByPath(string(path))
	if !ok {
		return
	}

	if v, ok := changed["Value"]; ok {
		if b, ok := v.Value().([]byte); ok {
			c.SetValue(b)
			if p.cmdQueue.Matches(queue.TagGattValue, c.Path) {
				p.deliver(func() {
					p.delegate.OnCharacteristicUpdate(p, c, b, status.SUCCESS)
					p.publish(eventbus.KindCharacteristicUpdate, status.SUCCESS)
				})
				p.cmdQueue.Complete()
			} else {
				p.deliver(func() {
					p.delegate.OnCharacteristicUpdate(p, c, b, status.SUCCESS)
					p.publish(eventbus.KindCharacteristicUpdate, status.SUCCESS)
				})
			}
		}
	}

	if v, ok := changed["Notifying"]; ok {
		if b, ok := v.Value().(bool); ok {
			c.SetNotifying(b)
			if p.cmdQueue.Matches(queue.TagNotifying, c.Path) {
				p.deliver(func() {
					p.delegate.OnNotificationStateUpdate(p, c, status.SUCCESS)
					p.publish(eventbus.KindNotificationStateUpdate, status.SUCCESS)
				})
				p.cmdQueue.Complete()
			}
		}
	}
}

// OnDescriptorPropertiesChanged satisfies signalrouter.PeripheralSink.
// Descriptor value changes are always unsolicited (read_descriptor/
// write_descriptor complete synchronously off the method call's own
// return, not off a signal — §4.7 "read_descriptor, write_descriptor:
// analogous"), so every Value change here is forwarded as an
// OnDescriptorUpdate notification.
func (p *Peripheral) OnDescriptorPropertiesChanged(path dbus.ObjectPath, changed map[string]dbus.Variant) {
	p.mu.RLock()
	tree := p.tree
	p.mu.RUnlock()
	d, ok := tree.DescriptorByPath(string(path))
	if !ok {
		return
	}

	if v, ok := changed["Value"]; ok {
		if b, ok := v.Value().([]byte); ok {
			d.SetValue(b)
			p.deliver(func() {
				p.delegate.OnDescriptorUpdate(p, d, b, status.SUCCESS)
				p.publish(eventbus.KindDescriptorUpdate, status.SUCCESS)
			})
		}
	}
}
