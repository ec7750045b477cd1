// Package central implements spec.md §4.6: the Central Manager. It owns
// one BlueZ adapter, performs filtered/unfiltered discovery on a
// time-sliced schedule, demultiplexes adapter and device signals via the
// signal router, serializes adapter-level commands on its own queue, and
// keeps the peripheral registry (scanned / connecting / connected).
package central

import (
	"fmt"
	"sync"

	"github.com/godbus/dbus/v5"

	"blecentral/agent"
	"blecentral/busfacade"
	"blecentral/eventbus"
	"blecentral/executor"
	"blecentral/gatt"
	"blecentral/internal/config"
	"blecentral/internal/logging"
	"blecentral/peripheral"
	"blecentral/queue"
	"blecentral/signalrouter"
)

// Delegate receives Central-level events in addition to the full
// Peripheral lifecycle, matching CoreBluetooth's split between a central
// manager delegate and a peripheral delegate while keeping one object for
// callers to implement (§4.6 "on_discovered", §4.3 Adapter PropertiesChanged).
type Delegate interface {
	peripheral.Delegate
	OnDiscovered(p *peripheral.Peripheral, scan gatt.ScanResult)
	OnAdapterPoweredChanged(powered bool)
}

// NopDelegate implements Delegate with no-ops.
type NopDelegate struct{ peripheral.NopDelegate }

func (NopDelegate) OnDiscovered(*peripheral.Peripheral, gatt.ScanResult) {}
func (NopDelegate) OnAdapterPoweredChanged(bool)                        {}

// Deps bundles the Manager's external collaborators.
type Deps struct {
	Conn     *busfacade.Conn
	Delegate Delegate
	Config   *config.Config
	Bus      eventbus.Publisher
	Log      *logging.Logger

	// AgentDelegate answers pairing callbacks. If nil, a delegate that
	// rejects every PIN and passkey request is used.
	AgentDelegate agent.Delegate
}

// Manager is the Central Manager (§4.6). It owns one adapter and the three
// executors spec.md §5 assigns to every Central.
type Manager struct {
	conn        *busfacade.Conn
	adapter     *busfacade.Adapter
	adapterPath dbus.ObjectPath

	callbackExec *executor.Executor
	queueExec    *executor.Executor
	signalExec   *executor.Executor

	cmdQueue *queue.Queue
	router   *signalrouter.Router
	agent    *agent.Agent

	cfg      *config.Config
	bus      eventbus.Publisher
	log      *logging.Logger
	delegate Delegate

	peripherals sync.Map // address string -> *peripheral.Peripheral

	mu               sync.Mutex
	filter           scanFilter
	rssiThreshold    int16
	normalScanActive bool
	autoScanActive   bool
	scanTimer        *executor.Handle
	autoconnect      map[string]peripheral.ConnectCallback
}

// New opens the adapter, wires the signal router and pairing agent, and
// returns a ready-to-use Manager. Discovery is not started; call one of
// the scan_* methods.
func New(router *signalrouter.Router, deps Deps) (*Manager, error) {
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
	log := deps.Log.WithComponent("central")

	adapter, err := busfacade.FindAdapter(deps.Conn)
	if err != nil {
		return nil, fmt.Errorf("central: find adapter: %w", err)
	}

	m := &Manager{
		conn:          deps.Conn,
		adapter:       adapter,
		adapterPath:   adapter.Path(),
		cfg:           deps.Config,
		bus:           deps.Bus,
		log:           log,
		delegate:      deps.Delegate,
		rssiThreshold: deps.Config.MinRSSI,
		autoconnect:   make(map[string]peripheral.ConnectCallback),
	}
	m.callbackExec = executor.New("central-callback", log)
	m.queueExec = executor.New("central-queue", log)
	m.signalExec = executor.New("central-signal", log)
	m.cmdQueue = queue.New(m.queueExec, deps.Config.CommandRetryCap, log)

	m.router = router
	m.router.RegisterCentral(m)

	agentDelegate := deps.AgentDelegate
	if agentDelegate == nil {
		agentDelegate = rejectingAgentDelegate{}
	}
	m.agent = agent.New(m.conn, agentDelegate, log)
	if err := m.agent.Register(); err != nil {
		log.Warnf("pairing agent registration failed: %v", err)
	}

	return m, nil
}

// rejectingAgentDelegate declines every PIN and passkey request; used when
// the caller supplies no agent.Delegate of its own. The agent accepts
// confirmation and authorization requests regardless of the delegate.
type rejectingAgentDelegate struct{}

func (rejectingAgentDelegate) OnPairingStarted(string)                {}
func (rejectingAgentDelegate) PINCode(string) (string, bool)          { return "", false }
func (rejectingAgentDelegate) Passkey(string) (uint32, bool)          { return 0, false }
func (rejectingAgentDelegate) OnAuthorizationRequested(string)        {}

// AdapterPath satisfies signalrouter.CentralSink.
func (m *Manager) AdapterPath() dbus.ObjectPath { return m.adapterPath }

// SignalExecutor satisfies signalrouter.CentralSink.
func (m *Manager) SignalExecutor() *executor.Executor { return m.signalExec }

// SetPIN stores a PIN for subsequent pairing on addr, returning false
// (without storing) if its length does not match the configured PIN
// length (§4.6 "set_pin", §8 boundary behavior).
func (m *Manager) SetPIN(addr, pin string) bool {
	if len(pin) != m.cfg.PINLength {
		return false
	}
	m.agent.SetPIN(addr, pin)
	return true
}

// RemoveBond erases a device's bond via Adapter.RemoveDevice (§4.6
// "remove_bond").
func (m *Manager) RemoveBond(addr string) error {
	addr, err := gatt.NormalizeAddress(addr)
	if err != nil {
		return err
	}
	devicePath := dbus.ObjectPath(gatt.ObjectPathForAddress(string(m.adapterPath), addr))
	return m.adapter.RemoveDevice(devicePath)
}

// GetPeripheral returns the cached Peripheral for addr, constructing and
// registering one on first lookup (§4.6 "get_peripheral"). Returns an
// error if addr is not a canonical MAC (§8 boundary behavior).
func (m *Manager) GetPeripheral(addr string) (*peripheral.Peripheral, error) {
	normalized, err := gatt.NormalizeAddress(addr)
	if err != nil {
		return nil, fmt.Errorf("central: invalid address %q: %w", addr, err)
	}
	return m.peripheralFor(normalized, gatt.AddressPublic), nil
}

// peripheralFor returns the registered Peripheral for addr, constructing
// one if this is the first observation.
func (m *Manager) peripheralFor(addr string, kind gatt.AddressKind) *peripheral.Peripheral {
	if v, ok := m.peripherals.Load(addr); ok {
		return v.(*peripheral.Peripheral)
	}
	p := peripheral.New(addr, kind, peripheral.Deps{
		Conn:         m.conn,
		AdapterPath:  m.adapterPath,
		CallbackExec: m.callbackExec,
		SignalExec:   m.signalExec,
		Delegate:     m.delegate,
		Config:       m.cfg,
		Bus:          m.bus,
		Log:          m.log,
	})
	actual, loaded := m.peripherals.LoadOrStore(addr, p)
	if loaded {
		p.Shutdown()
		return actual.(*peripheral.Peripheral)
	}
	m.router.RegisterPeripheral(p)
	return p
}

// Shutdown stops scanning, drains every executor, and closes the shared
// bus connection (§4.6 "shutdown").
func (m *Manager) Shutdown() {
	m.StopScan()
	m.router.UnregisterCentral(m.adapterPath)

	m.peripherals.Range(func(key, value interface{}) bool {
		p := value.(*peripheral.Peripheral)
		m.router.UnregisterPeripheral(p.Address())
		p.Shutdown()
		return true
	})

	if err := m.agent.Unregister(); err != nil {
		m.log.Debugf("unregister agent: %v", err)
	}

	m.cmdQueue.Drain()
	m.queueExec.Shutdown()
	m.signalExec.Shutdown()
	m.callbackExec.Shutdown()

	if err := m.conn.Close(); err != nil {
		m.log.Debugf("close bus connection: %v", err)
	}
}
