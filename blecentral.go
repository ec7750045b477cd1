// Package blecentral is a thin facade over the central/peripheral/busfacade
// packages: one call opens the system bus, wires the process-wide signal
// router, registers the pairing agent, and returns a ready-to-use Central
// Manager. Most callers only need this file and the Delegate interface.
//
// Basic usage:
//
//	mgr, err := blecentral.New(myDelegate)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer mgr.Shutdown()
//
//	if err := mgr.ScanAny(); err != nil {
//	    log.Fatal(err)
//	}
package blecentral

import (
	"fmt"

	"blecentral/agent"
	"blecentral/busfacade"
	"blecentral/central"
	"blecentral/eventbus"
	"blecentral/internal/config"
	"blecentral/internal/logging"
	"blecentral/peripheral"
	"blecentral/signalrouter"
)

// Re-exported types, the way the teacher's root gobot.go re-exports
// pkg/core and pkg/robot types for ergonomic top-level imports.
type (
	Manager         = central.Manager
	Peripheral      = peripheral.Peripheral
	Delegate        = central.Delegate
	NopDelegate     = central.NopDelegate
	ConnectCallback = peripheral.ConnectCallback
	BondCallback    = peripheral.BondCallback
	AgentDelegate   = agent.Delegate
	Config          = config.Config
	Logger          = logging.Logger
)

var DefaultConfig = config.Default

// Option configures New.
type Option func(*options)

type options struct {
	config        *config.Config
	bus           eventbus.Publisher
	log           *logging.Logger
	agentDelegate agent.Delegate
}

// WithConfig overrides the default tunables (scan window/pause, RSSI
// bounds, PIN length, retry cap).
func WithConfig(cfg *config.Config) Option { return func(o *options) { o.config = cfg } }

// WithEventBus wires an eventbus.Publisher so lifecycle and scan events
// fan out to an external subscriber (e.g. NATS). Omit for no fan-out.
func WithEventBus(bus eventbus.Publisher) Option { return func(o *options) { o.bus = bus } }

// WithLogger overrides the default stderr/info logger.
func WithLogger(log *logging.Logger) Option { return func(o *options) { o.log = log } }

// WithAgentDelegate supplies PIN and passkey answers for pairing requests.
// Omit to reject every PIN and passkey request by default; confirmation and
// authorization requests are accepted either way.
func WithAgentDelegate(d agent.Delegate) Option { return func(o *options) { o.agentDelegate = d } }

// New opens the D-Bus system bus, finds the first BlueZ adapter, starts the
// signal router's subscription, and returns a ready Central Manager bound
// to delegate. Call Manager.Shutdown when done.
func New(delegate Delegate, opts ...Option) (*Manager, error) {
	o := options{config: config.Default(), log: logging.Default()}
	for _, opt := range opts {
		opt(&o)
	}

	conn, err := busfacade.Connect(o.log)
	if err != nil {
		return nil, fmt.Errorf("blecentral: %w", err)
	}

	router := signalrouter.New(o.log)
	mgr, err := central.New(router, central.Deps{
		Conn:          conn,
		Delegate:      delegate,
		Config:        o.config,
		Bus:           o.bus,
		Log:           o.log,
		AgentDelegate: o.agentDelegate,
	})
	if err != nil {
		conn.Close()
		return nil, err
	}

	if err := router.Subscribe(conn); err != nil {
		mgr.Shutdown()
		return nil, fmt.Errorf("blecentral: subscribe to bus signals: %w", err)
	}
	return mgr, nil
}
