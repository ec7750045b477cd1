package busfacade

import "github.com/godbus/dbus/v5"

// ManagedObjects is the raw shape returned by
// org.freedesktop.DBus.ObjectManager.GetManagedObjects: object path to
// interface name to property bag.
type ManagedObjects map[dbus.ObjectPath]map[string]map[string]dbus.Variant

// GetManagedObjects enumerates every object the daemon currently exposes.
// FindAdapter uses it to locate the adapter; the Peripheral's GATT tree is
// built with ListChildren instead.
func (c *Conn) GetManagedObjects() (ManagedObjects, error) {
	var out ManagedObjects
	call := c.object(BluezRoot).Call("org.freedesktop.DBus.ObjectManager.GetManagedObjects", 0)
	if call.Err != nil {
		return nil, mapErr("GetManagedObjects", call.Err)
	}
	if err := call.Store(&out); err != nil {
		return nil, mapErr("GetManagedObjects", err)
	}
	return out, nil
}
