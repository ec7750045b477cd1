package signalrouter

import (
	"github.com/godbus/dbus/v5"

	"blecentral/busfacade"
)

// Subscribe adds the two match rules the router needs and starts a
// goroutine translating raw bus signals into Dispatch* calls. The
// goroutine is the "arbitrary-thread signal source" §5 describes: it does
// no work of its own beyond decoding and posting onto the right executor.
func (r *Router) Subscribe(conn *busfacade.Conn) error {
	raw := conn.Raw()

	if err := raw.AddMatchSignal(
		dbus.WithMatchInterface("org.freedesktop.DBus.ObjectManager"),
		dbus.WithMatchMember("InterfacesAdded"),
	); err != nil {
		return err
	}
	if err := raw.AddMatchSignal(
		dbus.WithMatchInterface("org.freedesktop.DBus.Properties"),
		dbus.WithMatchMember("PropertiesChanged"),
	); err != nil {
		return err
	}

	ch := make(chan *dbus.Signal, 64)
	raw.Signal(ch)

	go func() {
		for sig := range ch {
			r.handleSignal(sig)
		}
	}()
	return nil
}

func (r *Router) handleSignal(sig *dbus.Signal) {
	switch sig.Name {
	case interfacesAddedMember:
		r.handleInterfacesAdded(sig)
	case propertiesChangedMember:
		r.handlePropertiesChangedSignal(sig)
	}
}

func (r *Router) handleInterfacesAdded(sig *dbus.Signal) {
	if len(sig.Body) != 2 {
		return
	}
	path, ok := sig.Body[0].(dbus.ObjectPath)
	if !ok {
		return
	}
	ifaces, ok := sig.Body[1].(map[string]map[string]dbus.Variant)
	if !ok {
		return
	}
	props, ok := ifaces[deviceInterface]
	if !ok {
		return
	}
	r.DispatchInterfacesAdded(decodeDeviceDiscovered(path, props))
}

func (r *Router) handlePropertiesChangedSignal(sig *dbus.Signal) {
	if len(sig.Body) < 2 {
		return
	}
	iface, ok := sig.Body[0].(string)
	if !ok {
		return
	}
	changed, ok := sig.Body[1].(map[string]dbus.Variant)
	if !ok {
		return
	}
	r.DispatchPropertiesChanged(sig.Path, iface, changed)
}

// decodeDeviceDiscovered extracts the fields §4.3 names from an
// InterfacesAdded property bag on the Device1 interface. Every field is
// optional except Address; callers check HasName/HasRSSI before use.
func decodeDeviceDiscovered(path dbus.ObjectPath, props map[string]dbus.Variant) DeviceDiscovered {
	d := DeviceDiscovered{Path: path}
	if v, ok := props["Address"]; ok {
		d.Address, _ = v.Value().(string)
	}
	if v, ok := props["AddressType"]; ok {
		d.AddressType, _ = v.Value().(string)
	}
	if v, ok := props["Name"]; ok {
		if s, ok := v.Value().(string); ok {
			d.Name = s
			d.HasName = true
		}
	}
	if v, ok := props["RSSI"]; ok {
		if n, ok := v.Value().(int16); ok {
			d.RSSI = n
			d.HasRSSI = true
		}
	}
	if v, ok := props["UUIDs"]; ok {
		d.ServiceUUIDs, _ = v.Value().([]string)
	}
	if v, ok := props["ManufacturerData"]; ok {
		if raw, ok := v.Value().(map[uint16]dbus.Variant); ok {
			d.ManufacturerData = make(map[uint16][]byte, len(raw))
			for k, vv := range raw {
				if b, ok := vv.Value().([]byte); ok {
					d.ManufacturerData[k] = b
				}
			}
		}
	}
	if v, ok := props["ServiceData"]; ok {
		if raw, ok := v.Value().(map[string]dbus.Variant); ok {
			d.ServiceData = make(map[string][]byte, len(raw))
			for k, vv := range raw {
				if b, ok := vv.Value().([]byte); ok {
					d.ServiceData[k] = b
				}
			}
		}
	}
	return d
}
