package peripheral

import (
	"github.com/godbus/dbus/v5"

	"blecentral/busfacade"
	"blecentral/eventbus"
	"blecentral/gatt"
	"blecentral/queue"
	"blecentral/status"
)

// ReadCharacteristic implements §4.7 "read_characteristic": the precondition
// is checked synchronously; ReadValue is issued on the queue and
// completion is driven by the matching Value PropertiesChanged signal
// (scenario 4), not by ReadValue's own return.
func (p *Peripheral) ReadCharacteristic(c *gatt.Characteristic) {
	if p.State() != Connected {
		p.deliver(func() {
			p.delegate.OnCharacteristicUpdate(p, c, nil, status.BLUEZ_NOT_READY)
			p.publish(eventbus.KindCharacteristicUpdate, status.BLUEZ_NOT_READY)
		})
		return
	}
	if !c.Properties.Has(gatt.PropRead) {
		p.deliver(func() {
			p.delegate.OnCharacteristicUpdate(p, c, nil, status.REQUEST_NOT_SUPPORTED)
			p.publish(eventbus.KindCharacteristicUpdate, status.REQUEST_NOT_SUPPORTED)
		})
		return
	}
	p.cmdQueue.Enqueue(&queue.Command{
		Tag: queue.TagGattValue,
		Key: c.Path,
		Body: func() {
			gc := busfacade.NewGattCharacteristic(p.conn, dbus.ObjectPath(c.Path))
			if _, err := gc.ReadValue(map[string]interface{}{}); err != nil {
				st := mapStatus(err)
				p.deliver(func() {
					p.delegate.OnCharacteristicUpdate(p, c, nil, st)
					p.publish(eventbus.KindCharacteristicUpdate, st)
				})
				p.cmdQueue.Complete()
			}
			// success: stays in-flight until the Value PropertiesChanged
			// signal arrives (see signals.go).
		},
	})
}

// WriteCharacteristic implements §4.7 "write_characteristic". bytes is
// copied defensively before enqueue so later mutation by the caller cannot
// affect the in-flight write.
func (p *Peripheral) WriteCharacteristic(c *gatt.Characteristic, data []byte, wt gatt.WriteType) {
	if p.State() != Connected {
		p.deliver(func() {
			p.delegate.OnCharacteristicWrite(p, c, status.BLUEZ_NOT_READY)
			p.publish(eventbus.KindCharacteristicWrite, status.BLUEZ_NOT_READY)
		})
		return
	}
	required := gatt.PropWrite
	if wt == gatt.WriteWithoutResponse {
		required = gatt.PropWriteWithoutResponse
	}
	if !c.Properties.Has(required) {
		p.deliver(func() {
			p.delegate.OnCharacteristicWrite(p, c, status.REQUEST_NOT_SUPPORTED)
			p.publish(eventbus.KindCharacteristicWrite, status.REQUEST_NOT_SUPPORTED)
		})
		return
	}
	payload := append([]byte(nil), data...)

	p.cmdQueue.Enqueue(&queue.Command{
		Tag: queue.TagNone,
		Key: c.Path,
		Body: func() {
			gc := busfacade.NewGattCharacteristic(p.conn, dbus.ObjectPath(c.Path))
			err := gc.WriteValue(payload, wt.BusWriteType())
			st := status.SUCCESS
			if err != nil {
				st = mapStatus(err)
			} else {
				c.SetValue(payload)
			}
			p.deliver(func() {
				p.delegate.OnCharacteristicWrite(p, c, st)
				p.publish(eventbus.KindCharacteristicWrite, st)
			})
			p.cmdQueue.Complete()
		},
	})
}

// ReadDescriptor is the descriptor analog of ReadCharacteristic (§4.7
// "read_descriptor, write_descriptor: analogous").
func (p *Peripheral) ReadDescriptor(d *gatt.Descriptor) {
	if p.State() != Connected {
		p.deliver(func() {
			p.delegate.OnDescriptorUpdate(p, d, nil, status.BLUEZ_NOT_READY)
			p.publish(eventbus.KindDescriptorUpdate, status.BLUEZ_NOT_READY)
		})
		return
	}
	p.cmdQueue.Enqueue(&queue.Command{
		Tag: queue.TagNone,
		Key: d.Path,
		Body: func() {
			gd := busfacade.NewGattDescriptor(p.conn, dbus.ObjectPath(d.Path))
			value, err := gd.ReadValue(map[string]interface{}{})
			st := status.SUCCESS
			if err != nil {
				st = mapStatus(err)
			} else {
				d.SetValue(value)
			}
			p.deliver(func() {
				p.delegate.OnDescriptorUpdate(p, d, value, st)
				p.publish(eventbus.KindDescriptorUpdate, st)
			})
			p.cmdQueue.Complete()
		},
	})
}

// WriteDescriptor is the descriptor analog of WriteCharacteristic.
func (p *Peripheral) WriteDescriptor(d *gatt.Descriptor, data []byte) {
	if p.State() != Connected {
		p.deliver(func() {
			p.delegate.OnDescriptorWrite(p, d, status.BLUEZ_NOT_READY)
			p.publish(eventbus.KindDescriptorWrite, status.BLUEZ_NOT_READY)
		})
		return
	}
	payload := append([]byte(nil), data...)
	p.cmdQueue.Enqueue(&queue.Command{
		Tag: queue.TagNone,
		Key: d.Path,
		Body: func() {
			gd := busfacade.NewGattDescriptor(p.conn, dbus.ObjectPath(d.Path))
			err := gd.WriteValue(payload, map[string]interface{}{})
			st := status.SUCCESS
			if err != nil {
				st = mapStatus(err)
			} else {
				d.SetValue(payload)
			}
			p.deliver(func() {
				p.delegate.OnDescriptorWrite(p, d, st)
				p.publish(eventbus.KindDescriptorWrite, st)
			})
			p.cmdQueue.Complete()
		},
	})
}

// SetNotify implements §4.7 "set_notify". Enabling when already notifying
// completes immediately with success without issuing a second StartNotify
// (§8 idempotence property).
func (p *Peripheral) SetNotify(c *gatt.Characteristic, enable bool) {
	if p.State() != Connected {
		p.deliver(func() {
			p.delegate.OnNotificationStateUpdate(p, c, status.BLUEZ_NOT_READY)
			p.publish(eventbus.KindNotificationStateUpdate, status.BLUEZ_NOT_READY)
		})
		return
	}
	if enable && !(c.Properties.Has(gatt.PropNotify) || c.Properties.Has(gatt.PropIndicate)) {
		p.deliver(func() {
			p.delegate.OnNotificationStateUpdate(p, c, status.REQUEST_NOT_SUPPORTED)
			p.publish(eventbus.KindNotificationStateUpdate, status.REQUEST_NOT_SUPPORTED)
		})
		return
	}
	if enable && c.Notifying() {
		p.deliver(func() {
			p.delegate.OnNotificationStateUpdate(p, c, status.SUCCESS)
			p.publish(eventbus.KindNotificationStateUpdate, status.SUCCESS)
		})
		return
	}

	method := "StartNotify"
	if !enable {
		method = "StopNotify"
	}
	p.cmdQueue.Enqueue(&queue.Command{
		Tag: queue.TagNotifying,
		Key: c.Path,
		Body: func() {
			gc := busfacade.NewGattCharacteristic(p.conn, dbus.ObjectPath(c.Path))
			var err error
			if method == "StartNotify" {
				err = gc.StartNotify()
			} else {
				err = gc.StopNotify()
			}
			if err != nil {
				st := mapStatus(err)
				p.deliver(func() {
					p.delegate.OnNotificationStateUpdate(p, c, st)
					p.publish(eventbus.KindNotificationStateUpdate, st)
				})
				p.cmdQueue.Complete()
			}
			// success: completion is driven by the Notifying property
			// change arriving (see signals.go).
		},
	})
}

func mapStatus(err error) status.Status {
	if se, ok := err.(*status.Error); ok {
		return se.Status
	}
	return status.DBUS_EXECUTION_EXCEPTION
}
