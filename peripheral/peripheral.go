// Package peripheral implements spec.md §4.7: the connection and GATT
// state machine for one remote device. It translates bus property changes
// into lifecycle callbacks and owns the per-device command queue that
// linearizes its GATT operations.
package peripheral

import (
	"sync"

	"github.com/godbus/dbus/v5"

	"blecentral/busfacade"
	"blecentral/eventbus"
	"blecentral/executor"
	"blecentral/gatt"
	"blecentral/internal/config"
	"blecentral/internal/logging"
	"blecentral/queue"
	"blecentral/status"
)

// ConnectionState is one of the four states in §3/§4.7's state machine.
type ConnectionState int

const (
	Disconnected ConnectionState = iota
	Connecting
	Connected
	Disconnecting
)

func (s ConnectionState) String() string {
	switch s {
	case Disconnected:
		return "DISCONNECTED"
	case Connecting:
		return "CONNECTING"
	case Connected:
		return "CONNECTED"
	case Disconnecting:
		return "DISCONNECTING"
	default:
		return "UNKNOWN"
	}
}

// ConnectCallback is the terminal, one-shot notification for a single
// connect request (§8: "every API that accepts a callback delivers exactly
// one terminal status per command").
type ConnectCallback func(*Peripheral, status.Status)

// BondCallback is the terminal notification for a single create_bond call.
type BondCallback func(*Peripheral, status.Status)

// Delegate receives the ongoing lifecycle and GATT events for every
// Peripheral a Central manages — the CoreBluetooth-style "one delegate,
// many peripherals" shape, matching §4.7's on_* callback names.
type Delegate interface {
	OnConnected(p *Peripheral)
	OnConnectFailed(p *Peripheral, s status.Status)
	OnServicesDiscovered(p *Peripheral)
	OnServiceDiscoveryFailed(p *Peripheral, s status.Status)
	OnDisconnected(p *Peripheral, s status.Status)
	OnCharacteristicUpdate(p *Peripheral, c *gatt.Characteristic, value []byte, s status.Status)
	OnCharacteristicWrite(p *Peripheral, c *gatt.Characteristic, s status.Status)
	OnDescriptorUpdate(p *Peripheral, d *gatt.Descriptor, value []byte, s status.Status)
	OnDescriptorWrite(p *Peripheral, d *gatt.Descriptor, s status.Status)
	OnNotificationStateUpdate(p *Peripheral, c *gatt.Characteristic, s status.Status)
	OnBondingSucceeded(p *Peripheral)
	OnBondingFailed(p *Peripheral, s status.Status)
	OnBondLost(p *Peripheral)
}

// NopDelegate implements Delegate with no-ops; embed it to satisfy the
// interface while overriding only the methods a caller cares about.
type NopDelegate struct{}

func (NopDelegate) OnConnected(*Peripheral)                                       {}
func (NopDelegate) OnConnectFailed(*Peripheral, status.Status)                    {}
func (NopDelegate) OnServicesDiscovered(*Peripheral)                              {}
func (NopDelegate) OnServiceDiscoveryFailed(*Peripheral, status.Status)           {}
func (NopDelegate) OnDisconnected(*Peripheral, status.Status)                     {}
func (NopDelegate) OnCharacteristicUpdate(*Peripheral, *gatt.Characteristic, []byte, status.Status) {
}
func (NopDelegate) OnCharacteristicWrite(*Peripheral, *gatt.Characteristic, status.Status) {}
func (NopDelegate) OnDescriptorUpdate(*Peripheral, *gatt.Descriptor, []byte, status.Status) {}
func (NopDelegate) OnDescriptorWrite(*Peripheral, *gatt.Descriptor, status.Status)          {}
func (NopDelegate) OnNotificationStateUpdate(*Peripheral, *gatt.Characteristic, status.Status) {
}
func (NopDelegate) OnBondingSucceeded(*Peripheral)            {}
func (NopDelegate) OnBondingFailed(*Peripheral, status.Status) {}
func (NopDelegate) OnBondLost(*Peripheral)                     {}

// Peripheral is one remote device (§3, §4.7). Identity is its MAC.
type Peripheral struct {
	address     string
	addressType gatt.AddressKind
	adapterPath dbus.ObjectPath

	device *busfacade.Device
	conn   *busfacade.Conn

	deviceQueueExec *executor.Executor // owned: runs this peripheral's GATT/connect command bodies
	callbackExec    *executor.Executor // shared with the owning Central: delivers delegate callbacks
	signalExec      *executor.Executor // shared with the owning Central: §4.3 "dispatch on the Central's signal executor"

	cmdQueue *queue.Queue
	cfg      *config.Config
	bus      eventbus.Publisher
	log      *logging.Logger
	delegate Delegate

	mu sync.RWMutex

	state ConnectionState

	name       string
	hasName    bool
	lastScan   gatt.ScanResult
	hasScan    bool

	tree                    *gatt.Tree
	servicesResolvedHandled bool

	discoveryTimeout *executor.Handle

	connectCB ConnectCallback
	bondCB    BondCallback

	paired     bool
	everPaired bool
}

// Deps bundles the shared collaborators a Peripheral needs from its owning
// Central, so New's signature stays readable.
type Deps struct {
	Conn         *busfacade.Conn
	AdapterPath  dbus.ObjectPath
	CallbackExec *executor.Executor
	SignalExec   *executor.Executor
	Delegate     Delegate
	Config       *config.Config
	Bus          eventbus.Publisher
	Log          *logging.Logger
}

// New constructs a Peripheral for address, wiring its own device-queue
// executor and command queue. The owning Central is responsible for
// registering it with the signal router.
func New(address string, addressType gatt.AddressKind, deps Deps) *Peripheral {
	if deps.Delegate == nil {
		deps.Delegate = NopDelegate{}
	}
	if deps.Config == nil {
		deps.Config = config.Default()
	}
	if deps.Bus == nil {
		deps.Bus = eventbus.NopPublisher{}
	}
	if deps.Log == nil {
		deps.Log = logging.Default()
	}
	log := deps.Log.WithComponent("peripheral:" + address)
	devicePath := dbus.ObjectPath(gatt.ObjectPathForAddress(string(deps.AdapterPath), address))

	p := &Peripheral{
		address:         address,
		addressType:     addressType,
		adapterPath:     deps.AdapterPath,
		device:          busfacade.NewDevice(deps.Conn, devicePath),
		conn:            deps.Conn,
		callbackExec:    deps.CallbackExec,
		signalExec:      deps.SignalExec,
		cfg:             deps.Config,
		bus:             deps.Bus,
		log:             log,
		delegate:        deps.Delegate,
		state:           Disconnected,
	}
	p.deviceQueueExec = executor.New("peripheral-queue:"+address, log)
	p.cmdQueue = queue.New(p.deviceQueueExec, deps.Config.CommandRetryCap, log)
	return p
}

// Address identifies this Peripheral (§3).
func (p *Peripheral) Address() string { return p.address }

// AddressType reports public/random, cached from the most recent
// observation.
func (p *Peripheral) AddressType() gatt.AddressKind {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.addressType
}

// Name returns the advertised name, if one has been observed.
func (p *Peripheral) Name() (string, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.name, p.hasName
}

// State returns the current connection state (§3).
func (p *Peripheral) State() ConnectionState {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.state
}

// LastScanResult returns the most recently cached advertisement snapshot,
// if any has been observed.
func (p *Peripheral) LastScanResult() (gatt.ScanResult, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if !p.hasScan {
		return gatt.ScanResult{}, false
	}
	return p.lastScan.Clone(), true
}

// Services returns the GATT service tree discovered on the most recent
// connection episode, or nil if none has been resolved yet.
func (p *Peripheral) Services() []*gatt.Service {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.tree == nil {
		return nil
	}
	return p.tree.Services
}

// Characteristic looks up a characteristic by (service UUID, characteristic
// UUID), per §3's keying rule.
func (p *Peripheral) Characteristic(service, characteristic gatt.UUID) (*gatt.Characteristic, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.tree.Characteristic(service, characteristic)
}

// SignalExecutor satisfies signalrouter.PeripheralSink.
func (p *Peripheral) SignalExecutor() *executor.Executor { return p.signalExec }

// ObserveScanResult lets the owning Central record a freshly decoded
// advertisement/scan property burst for this address, before the
// Peripheral is necessarily connected.
func (p *Peripheral) ObserveScanResult(r gatt.ScanResult) {
	p.updateScanResult(r)
}

// updateScanResult is called by the Central when a new advertisement/scan
// property burst arrives for this address, before the Peripheral is
// necessarily connected.
func (p *Peripheral) updateScanResult(r gatt.ScanResult) {
	p.mu.Lock()
	p.lastScan = r
	p.hasScan = true
	if r.Name != "" {
		p.name = r.Name
		p.hasName = true
	}
	p.addressType = r.AddressKind
	p.mu.Unlock()
}

func (p *Peripheral) deliver(fn func()) {
	if p.callbackExec == nil {
		fn()
		return
	}
	p.callbackExec.Post(fn)
}

// publish mirrors a terminal delegate callback onto the configured event
// bus (§4.7's on_* callbacks, SPEC_FULL's structured-event supplement). A
// nil/Nop bus makes this a no-op.
func (p *Peripheral) publish(kind eventbus.Kind, st status.Status) {
	p.bus.Publish(eventbus.Event{Kind: kind, Address: p.address, Status: st.String()})
}

// Shutdown drains this peripheral's queue and stops its device-queue
// executor. Called by the Central during its own shutdown.
func (p *Peripheral) Shutdown() {
	p.cmdQueue.Drain()
	p.deviceQueueExec.Shutdown()
}
