package busfacade

import "github.com/godbus/dbus/v5"

const (
	gattServiceInterface    = "org.bluez.GattService1"
	gattCharacteristicIface = "org.bluez.GattCharacteristic1"
	gattDescriptorIface     = "org.bluez.GattDescriptor1"
)

// GattService wraps org.bluez.GattService1 (§6, read-only).
type GattService struct{ object }

func NewGattService(conn *Conn, path dbus.ObjectPath) *GattService {
	return &GattService{object{conn: conn, path: path, iface: gattServiceInterface}}
}

func (s *GattService) UUID() (string, error)  { return s.getString("UUID") }
func (s *GattService) Primary() (bool, error) { return s.getBool("Primary") }

// GattCharacteristic wraps org.bluez.GattCharacteristic1 (§6).
type GattCharacteristic struct{ object }

func NewGattCharacteristic(conn *Conn, path dbus.ObjectPath) *GattCharacteristic {
	return &GattCharacteristic{object{conn: conn, path: path, iface: gattCharacteristicIface}}
}

func (c *GattCharacteristic) UUID() (string, error)        { return c.getString("UUID") }
func (c *GattCharacteristic) Value() ([]byte, error)       { return c.getBytes("Value") }
func (c *GattCharacteristic) Notifying() (bool, error)     { return c.getBool("Notifying") }
func (c *GattCharacteristic) Flags() ([]string, error)     { return c.getStringSlice("Flags") }

// ReadValue issues GattCharacteristic1.ReadValue. options is always an
// empty map today; the signature accepts one for forward compatibility
// with the "offset" option BlueZ supports.
func (c *GattCharacteristic) ReadValue(options map[string]interface{}) ([]byte, error) {
	call := c.call("ReadValue", options)
	if call.Err != nil {
		return nil, mapErr("ReadValue", call.Err)
	}
	var out []byte
	if err := call.Store(&out); err != nil {
		return nil, mapErr("ReadValue", err)
	}
	return out, nil
}

// WriteValue issues GattCharacteristic1.WriteValue with the bus write
// option matching writeType ("request" or "command", §3).
func (c *GattCharacteristic) WriteValue(data []byte, writeTypeOption string) error {
	options := map[string]interface{}{"type": writeTypeOption}
	return c.callErr("WriteValue", data, options)
}

func (c *GattCharacteristic) StartNotify() error { return c.callErr("StartNotify") }
func (c *GattCharacteristic) StopNotify() error  { return c.callErr("StopNotify") }

// GattDescriptor wraps org.bluez.GattDescriptor1 (§6).
type GattDescriptor struct{ object }

func NewGattDescriptor(conn *Conn, path dbus.ObjectPath) *GattDescriptor {
	return &GattDescriptor{object{conn: conn, path: path, iface: gattDescriptorIface}}
}

func (d *GattDescriptor) UUID() (string, error)    { return d.getString("UUID") }
func (d *GattDescriptor) Flags() ([]string, error) { return d.getStringSlice("Flags") }

func (d *GattDescriptor) ReadValue(options map[string]interface{}) ([]byte, error) {
	call := d.call("ReadValue", options)
	if call.Err != nil {
		return nil, mapErr("ReadValue", call.Err)
	}
	var out []byte
	if err := call.Store(&out); err != nil {
		return nil, mapErr("ReadValue", err)
	}
	return out, nil
}

func (d *GattDescriptor) WriteValue(data []byte, options map[string]interface{}) error {
	return d.callErr("WriteValue", data, options)
}
