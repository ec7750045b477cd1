package busfacade

import "github.com/godbus/dbus/v5"

const deviceInterface = "org.bluez.Device1"

// Device wraps org.bluez.Device1 (§6).
type Device struct{ object }

// NewDevice wraps a device object path, e.g. one produced by
// gatt.ObjectPathForAddress.
func NewDevice(conn *Conn, path dbus.ObjectPath) *Device {
	return &Device{object{conn: conn, path: path, iface: deviceInterface}}
}

func (d *Device) Address() (string, error)         { return d.getString("Address") }
func (d *Device) AddressType() (string, error)      { return d.getString("AddressType") }
func (d *Device) Name() (string, error)             { return d.getString("Name") }
func (d *Device) Alias() (string, error)             { return d.getString("Alias") }
func (d *Device) Connected() (bool, error)          { return d.getBool("Connected") }
func (d *Device) ServicesResolved() (bool, error)   { return d.getBool("ServicesResolved") }
func (d *Device) Paired() (bool, error)              { return d.getBool("Paired") }
func (d *Device) Trusted() (bool, error)             { return d.getBool("Trusted") }
func (d *Device) Blocked() (bool, error)             { return d.getBool("Blocked") }
func (d *Device) RSSI() (int16, error)               { return d.getInt16("RSSI") }
func (d *Device) TxPower() (int16, error)            { return d.getInt16("TxPower") }
func (d *Device) UUIDs() ([]string, error)           { return d.getStringSlice("UUIDs") }
func (d *Device) AdvertisingFlags() ([]byte, error)  { return d.getBytes("AdvertisingFlags") }
func (d *Device) Appearance() (uint16, error)        { return d.getUint16("Appearance") }
func (d *Device) Class() (uint32, error) {
	v, err := d.getProperty("Class")
	if err != nil {
		return 0, err
	}
	n, _ := v.Value().(uint32)
	return n, nil
}
func (d *Device) Icon() (string, error)     { return d.getString("Icon") }
func (d *Device) Modalias() (string, error) { return d.getString("Modalias") }

// ManufacturerData decodes the {uint16: []byte} variant dictionary.
func (d *Device) ManufacturerData() (map[uint16][]byte, error) {
	v, err := d.getProperty("ManufacturerData")
	if err != nil {
		return nil, err
	}
	raw, _ := v.Value().(map[uint16]dbus.Variant)
	out := make(map[uint16][]byte, len(raw))
	for k, vv := range raw {
		if b, ok := vv.Value().([]byte); ok {
			out[k] = b
		}
	}
	return out, nil
}

// ServiceData decodes the {string: []byte} variant dictionary.
func (d *Device) ServiceData() (map[string][]byte, error) {
	v, err := d.getProperty("ServiceData")
	if err != nil {
		return nil, err
	}
	raw, _ := v.Value().(map[string]dbus.Variant)
	out := make(map[string][]byte, len(raw))
	for k, vv := range raw {
		if b, ok := vv.Value().([]byte); ok {
			out[k] = b
		}
	}
	return out, nil
}

func (d *Device) Connect() error         { return d.callErr("Connect") }
func (d *Device) Disconnect() error      { return d.callErr("Disconnect") }
func (d *Device) Pair() error            { return d.callErr("Pair") }
func (d *Device) CancelPairing() error   { return d.callErr("CancelPairing") }

// ConnectProfile/DisconnectProfile round out the Device operations table
// in §6; no §4.7 algorithm drives these automatically, but callers that
// need a specific profile (e.g. a proprietary RFCOMM/L2CAP profile beside
// GATT) can invoke them directly.
func (d *Device) ConnectProfile(uuid string) error    { return d.callErr("ConnectProfile", uuid) }
func (d *Device) DisconnectProfile(uuid string) error { return d.callErr("DisconnectProfile", uuid) }
