// Package agent implements spec.md §4.4: a bus-exported pairing agent
// answering the daemon's authentication callbacks by forwarding to an
// application-supplied delegate, with a per-address PIN override settable
// via set_pin (§4.6 "set_pin").
package agent

import (
	"strconv"
	"sync"

	"github.com/godbus/dbus/v5"
	"github.com/godbus/dbus/v5/introspect"
	"github.com/godbus/dbus/v5/prop"

	"blecentral/busfacade"
	"blecentral/gatt"
	"blecentral/internal/logging"
)

// Path is the fixed object path the agent is exported on (§6).
const Path = dbus.ObjectPath("/test/agent")

const interfaceName = "org.bluez.Agent1"

// Capability is the only capability this agent advertises (§6).
const Capability = "KeyboardOnly"

// introspection describes the exported org.bluez.Agent1 object for
// org.freedesktop.DBus.Introspectable. Agent1 has no properties of its own,
// so the Properties interface is exported with an empty prop.Map, the way
// any bus-owned object here advertises itself uniformly to introspecting
// tools (busctl, d-feet) regardless of whether it happens to hold state.
var introspection = &introspect.Node{
	Name: string(Path),
	Interfaces: []introspect.Interface{
		introspect.IntrospectData,
		prop.IntrospectData,
		{
			Name: interfaceName,
			Methods: []introspect.Method{
				{Name: "Release"},
				{Name: "RequestPinCode", Args: []introspect.Arg{
					{Name: "device", Type: "o", Direction: "in"},
					{Name: "pincode", Type: "s", Direction: "out"},
				}},
				{Name: "DisplayPinCode", Args: []introspect.Arg{
					{Name: "device", Type: "o", Direction: "in"},
					{Name: "pincode", Type: "s", Direction: "in"},
				}},
				{Name: "RequestPasskey", Args: []introspect.Arg{
					{Name: "device", Type: "o", Direction: "in"},
					{Name: "passkey", Type: "u", Direction: "out"},
				}},
				{Name: "DisplayPasskey", Args: []introspect.Arg{
					{Name: "device", Type: "o", Direction: "in"},
					{Name: "passkey", Type: "u", Direction: "in"},
					{Name: "entered", Type: "q", Direction: "in"},
				}},
				{Name: "RequestConfirmation", Args: []introspect.Arg{
					{Name: "device", Type: "o", Direction: "in"},
					{Name: "passkey", Type: "u", Direction: "in"},
				}},
				{Name: "RequestAuthorization", Args: []introspect.Arg{
					{Name: "device", Type: "o", Direction: "in"},
				}},
				{Name: "AuthorizeService", Args: []introspect.Arg{
					{Name: "device", Type: "o", Direction: "in"},
					{Name: "uuid", Type: "s", Direction: "in"},
				}},
				{Name: "Cancel"},
			},
		},
	},
}

// Delegate receives the user-visible half of the pairing callbacks. All
// methods must return promptly: they run on the bus's own signal-handling
// goroutine via godbus's dispatch, same as any other exported method (§5:
// no operation here may block waiting on another executor).
type Delegate interface {
	// OnPairingStarted is called before a PIN/passkey is produced, so a UI
	// can prompt the user if no PIN was pre-stored.
	OnPairingStarted(address string)
	// PINCode supplies a PIN for address, or ok=false to reject pairing.
	PINCode(address string) (pin string, ok bool)
	// Passkey supplies a numeric passkey for address, or ok=false to reject.
	Passkey(address string) (passkey uint32, ok bool)
	// OnAuthorizationRequested is notified before RequestAuthorization
	// auto-accepts (§4.4 table: "Notify delegate then accept").
	OnAuthorizationRequested(address string)
}

// Agent is the exported pairing-callback object (§4.4).
type Agent struct {
	conn     *busfacade.Conn
	delegate Delegate
	log      *logging.Logger

	mu   sync.Mutex
	pins map[string]string
}

// New constructs an Agent bound to conn and delegate. Call Register to
// export it and make it the daemon's default agent.
func New(conn *busfacade.Conn, delegate Delegate, log *logging.Logger) *Agent {
	if log == nil {
		log = logging.Default()
	}
	return &Agent{
		conn:     conn,
		delegate: delegate,
		log:      log.WithComponent("agent"),
		pins:     make(map[string]string),
	}
}

// SetPIN stores a PIN for subsequent pairing on addr (§4.6 "set_pin"),
// overriding the delegate: RequestPinCode returns this value without
// consulting the delegate, per the idempotence property in §8.
func (a *Agent) SetPIN(addr, pin string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.pins[addr] = pin
}

func (a *Agent) storedPIN(addr string) (string, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	p, ok := a.pins[addr]
	return p, ok
}

// Register exports the agent on the bus, registers it with the daemon's
// AgentManager1 under Capability, and requests it be made the default
// agent. Registration failures are non-fatal: they are logged and Register
// still returns nil, matching §4.4's "Failures during registration are
// non-fatal (logged)".
func (a *Agent) Register() error {
	methods := map[string]interface{}{
		"Release":              a.release,
		"RequestPinCode":       a.requestPinCode,
		"DisplayPinCode":       a.displayPinCode,
		"RequestPasskey":       a.requestPasskey,
		"DisplayPasskey":       a.displayPasskey,
		"RequestConfirmation":  a.requestConfirmation,
		"RequestAuthorization": a.requestAuthorization,
		"AuthorizeService":     a.authorizeService,
		"Cancel":               a.cancel,
	}
	if err := a.conn.Raw().ExportMethodTable(methods, Path, interfaceName); err != nil {
		a.log.Warnf("export agent object failed: %v", err)
		return nil
	}
	if err := a.conn.Raw().Export(introspect.NewIntrospectable(introspection), Path, "org.freedesktop.DBus.Introspectable"); err != nil {
		a.log.Warnf("export agent introspection failed: %v", err)
	}
	if _, err := prop.Export(a.conn.Raw(), Path, prop.Map{}); err != nil {
		a.log.Warnf("export agent properties failed: %v", err)
	}

	mgr := busfacade.NewAgentManager(a.conn)
	if err := mgr.RegisterAgent(Path, Capability); err != nil {
		a.log.Warnf("RegisterAgent failed: %v", err)
		return nil
	}
	if err := mgr.RequestDefaultAgent(Path); err != nil {
		a.log.Warnf("RequestDefaultAgent failed: %v", err)
	}
	return nil
}

// Unregister removes the agent from the daemon's AgentManager1.
func (a *Agent) Unregister() error {
	mgr := busfacade.NewAgentManager(a.conn)
	return mgr.UnregisterAgent(Path)
}

func addressOf(path dbus.ObjectPath) string {
	addr, ok := gatt.AddressFromObjectPath(string(path))
	if !ok {
		return string(path)
	}
	return addr
}

func (a *Agent) requestPinCode(path dbus.ObjectPath) (string, *dbus.Error) {
	addr := addressOf(path)
	a.delegate.OnPairingStarted(addr)

	if pin, ok := a.storedPIN(addr); ok {
		return pin, nil
	}
	pin, ok := a.delegate.PINCode(addr)
	if !ok || pin == "" {
		return "", dbus.NewError("org.bluez.Error.Rejected", nil)
	}
	return pin, nil
}

func (a *Agent) displayPinCode(path dbus.ObjectPath, pincode string) *dbus.Error {
	a.log.Infof("display pin code %s for %s", pincode, addressOf(path))
	return nil
}

func (a *Agent) requestPasskey(path dbus.ObjectPath) (uint32, *dbus.Error) {
	addr := addressOf(path)
	a.delegate.OnPairingStarted(addr)

	if pin, ok := a.storedPIN(addr); ok {
		n, err := strconv.ParseUint(pin, 10, 32)
		if err != nil {
			return 0, dbus.NewError("org.bluez.Error.Rejected", nil)
		}
		return uint32(n), nil
	}
	passkey, ok := a.delegate.Passkey(addr)
	if !ok {
		return 0, dbus.NewError("org.bluez.Error.Rejected", nil)
	}
	return passkey, nil
}

func (a *Agent) displayPasskey(path dbus.ObjectPath, passkey uint32, entered uint16) *dbus.Error {
	a.log.Infof("display passkey %d (%d digits entered) for %s", passkey, entered, addressOf(path))
	return nil
}

// requestConfirmation silently accepts, matching §4.4's "currently silently
// accept; delegate extension point" — there is no numeric-comparison UI
// surface in this core.
func (a *Agent) requestConfirmation(path dbus.ObjectPath, passkey uint32) *dbus.Error {
	return nil
}

func (a *Agent) requestAuthorization(path dbus.ObjectPath) *dbus.Error {
	a.delegate.OnAuthorizationRequested(addressOf(path))
	return nil
}

func (a *Agent) authorizeService(path dbus.ObjectPath, uuid string) *dbus.Error {
	return nil
}

func (a *Agent) cancel() *dbus.Error { return nil }

func (a *Agent) release() *dbus.Error { return nil }
