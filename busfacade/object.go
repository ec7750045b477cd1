package busfacade

import (
	"fmt"

	"github.com/godbus/dbus/v5"

	"blecentral/status"
)

// object is the capability every typed wrapper embeds: an object path,
// the interface name to address on it, and a typed property accessor.
// This is the "single capability trait" spec.md §9 calls for in place of
// the source's deep adapter/device/gatt-* inheritance chain.
type object struct {
	conn  *Conn
	path  dbus.ObjectPath
	iface string
}

// Path returns the D-Bus object path.
func (o object) Path() dbus.ObjectPath { return o.path }

// getProperty fetches one property via org.freedesktop.DBus.Properties.
func (o object) getProperty(name string) (dbus.Variant, error) {
	var v dbus.Variant
	call := o.conn.object(o.path).Call("org.freedesktop.DBus.Properties.Get", 0, o.iface, name)
	if call.Err != nil {
		return dbus.Variant{}, mapErr(fmt.Sprintf("Get(%s.%s)", o.iface, name), call.Err)
	}
	if err := call.Store(&v); err != nil {
		return dbus.Variant{}, mapErr(fmt.Sprintf("Get(%s.%s)", o.iface, name), err)
	}
	return v, nil
}

// setProperty writes one property via org.freedesktop.DBus.Properties.
func (o object) setProperty(name string, value interface{}) error {
	call := o.conn.object(o.path).Call("org.freedesktop.DBus.Properties.Set", 0, o.iface, name, dbus.MakeVariant(value))
	if call.Err != nil {
		return mapErr(fmt.Sprintf("Set(%s.%s)", o.iface, name), call.Err)
	}
	return nil
}

// getString/getBool/getInt16/getUint16/getStringSlice are the explicit
// typed decodes spec.md §9 calls for: one decode per known key, isolated
// to this package so `dbus.Variant` never leaks above the facade.
func (o object) getString(name string) (string, error) {
	v, err := o.getProperty(name)
	if err != nil {
		return "", err
	}
	s, _ := v.Value().(string)
	return s, nil
}

func (o object) getBool(name string) (bool, error) {
	v, err := o.getProperty(name)
	if err != nil {
		return false, err
	}
	b, _ := v.Value().(bool)
	return b, nil
}

func (o object) getInt16(name string) (int16, error) {
	v, err := o.getProperty(name)
	if err != nil {
		return 0, err
	}
	n, _ := v.Value().(int16)
	return n, nil
}

func (o object) getUint16(name string) (uint16, error) {
	v, err := o.getProperty(name)
	if err != nil {
		return 0, err
	}
	n, _ := v.Value().(uint16)
	return n, nil
}

func (o object) getStringSlice(name string) ([]string, error) {
	v, err := o.getProperty(name)
	if err != nil {
		return nil, err
	}
	s, _ := v.Value().([]string)
	return s, nil
}

func (o object) getBytes(name string) ([]byte, error) {
	v, err := o.getProperty(name)
	if err != nil {
		return nil, err
	}
	b, _ := v.Value().([]byte)
	return b, nil
}

// call invokes a method on this object's interface and returns the raw
// *dbus.Call; callers map its error into the status taxonomy via mapErr.
func (o object) call(method string, args ...interface{}) *dbus.Call {
	call := o.conn.object(o.path).Call(o.iface+"."+method, 0, args...)
	return call
}

func (o object) callErr(method string, args ...interface{}) error {
	call := o.call(method, args...)
	if call.Err != nil {
		return mapErr(method, call.Err)
	}
	return nil
}

// mapErr translates a D-Bus error into a *status.Error, the one place
// daemon errors are classified before they can leak further up the stack
// (§7 "Propagation policy").
func mapErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if dbusErr, ok := err.(dbus.Error); ok {
		return status.New(op, status.FromDaemonErrorName(dbusErr.Name), err)
	}
	return status.New(op, status.DBUS_EXECUTION_EXCEPTION, err)
}

// ListChildren uses introspection to return the set of immediate child
// node names under path (e.g. the GATT services under a device path).
func (c *Conn) ListChildren(path dbus.ObjectPath) ([]string, error) {
	var xml string
	call := c.object(path).Call("org.freedesktop.DBus.Introspectable.Introspect", 0)
	if call.Err != nil {
		return nil, mapErr("Introspect", call.Err)
	}
	if err := call.Store(&xml); err != nil {
		return nil, mapErr("Introspect", err)
	}
	return parseIntrospectChildren(xml), nil
}
