package busfacade

import (
	"strings"

	"github.com/godbus/dbus/v5"
)

const adapterInterface = "org.bluez.Adapter1"

// Adapter wraps org.bluez.Adapter1 (§6).
type Adapter struct{ object }

// NewAdapter wraps an already-known adapter object path.
func NewAdapter(conn *Conn, path dbus.ObjectPath) *Adapter {
	return &Adapter{object{conn: conn, path: path, iface: adapterInterface}}
}

// FindAdapter locates the sole BlueZ adapter object, per the data model's
// invariant that at most one Adapter is active in a Central's lifetime.
func FindAdapter(conn *Conn) (*Adapter, error) {
	objs, err := conn.GetManagedObjects()
	if err != nil {
		return nil, err
	}
	for path, ifaces := range objs {
		if _, ok := ifaces[adapterInterface]; !ok {
			continue
		}
		p := string(path)
		if strings.HasPrefix(p, AdapterPathPrefix) && strings.Count(p, "/") == 3 {
			return NewAdapter(conn, path), nil
		}
	}
	return nil, mapErr("FindAdapter", dbus.Error{Name: "org.bluez.Error.NotReady"})
}

func (a *Adapter) Address() (string, error)     { return a.getString("Address") }
func (a *Adapter) Name() (string, error)         { return a.getString("Name") }
func (a *Adapter) Powered() (bool, error)        { return a.getBool("Powered") }
func (a *Adapter) Discovering() (bool, error)    { return a.getBool("Discovering") }

// SetPowered requests a power state change. BlueZ applies this
// asynchronously; callers should wait for a Powered PropertiesChanged
// signal rather than assume synchronous success (§4.6).
func (a *Adapter) SetPowered(on bool) error {
	return a.setProperty("Powered", on)
}

func (a *Adapter) StartDiscovery() error { return a.callErr("StartDiscovery") }
func (a *Adapter) StopDiscovery() error  { return a.callErr("StopDiscovery") }

// SetDiscoveryFilter re-issues the scan filter dictionary, since the
// daemon does not persist filters across scan sessions (§4.6).
func (a *Adapter) SetDiscoveryFilter(filter map[string]interface{}) error {
	return a.callErr("SetDiscoveryFilter", filter)
}

// RemoveDevice erases a bonded/cached device from the daemon's registry.
func (a *Adapter) RemoveDevice(devicePath dbus.ObjectPath) error {
	return a.callErr("RemoveDevice", devicePath)
}
