// Package busfacade is the Bus Facade (spec.md §4.2): thin, typed
// wrappers over org.bluez D-Bus objects. It performs property reads,
// property writes, method calls with error mapping into the status
// taxonomy, and object-path introspection. No caching, no queueing — all
// state discipline lives in the central/peripheral/queue packages above it.
package busfacade

import (
	"fmt"

	"github.com/godbus/dbus/v5"

	"blecentral/internal/logging"
)

const (
	// BluezDest is the well-known bus name the daemon owns.
	BluezDest = "org.bluez"
	// BluezRoot is the object path GetManagedObjects is called against.
	BluezRoot = dbus.ObjectPath("/")
	// AdapterPathPrefix is the path prefix every adapter lives under.
	AdapterPathPrefix = "/org/bluez/"
)

// Conn wraps a system bus connection. All typed wrappers in this package
// are constructed from one Conn.
type Conn struct {
	raw *dbus.Conn
	log *logging.Logger
}

// Connect opens the D-Bus system bus connection the daemon listens on.
func Connect(log *logging.Logger) (*Conn, error) {
	raw, err := dbus.SystemBus()
	if err != nil {
		return nil, fmt.Errorf("busfacade: connect to system bus: %w", err)
	}
	if log == nil {
		log = logging.Default()
	}
	return &Conn{raw: raw, log: log.WithComponent("busfacade")}, nil
}

// WrapConn adapts an already-open *dbus.Conn (used by tests and by
// callers that share one bus connection across libraries).
func WrapConn(raw *dbus.Conn, log *logging.Logger) *Conn {
	if log == nil {
		log = logging.Default()
	}
	return &Conn{raw: raw, log: log.WithComponent("busfacade")}
}

// Raw exposes the underlying connection for signal subscription, which
// the signalrouter package owns.
func (c *Conn) Raw() *dbus.Conn { return c.raw }

// Close releases the bus connection.
func (c *Conn) Close() error {
	if c.raw == nil {
		return nil
	}
	return c.raw.Close()
}

func (c *Conn) object(path dbus.ObjectPath) dbus.BusObject {
	return c.raw.Object(BluezDest, path)
}
