package central

import (
	"sync"
	"testing"

	"github.com/godbus/dbus/v5"

	"blecentral/eventbus"
	"blecentral/executor"
	"blecentral/gatt"
	"blecentral/internal/config"
	"blecentral/internal/logging"
	"blecentral/peripheral"
	"blecentral/queue"
	"blecentral/signalrouter"
	"blecentral/status"
)

// newTestManager builds a Manager whose adapter/conn/agent fields are left
// nil; its router is a real signalrouter.New, which needs no bus. Tests in
// this package assert only on the synchronous validation and bookkeeping
// paths (filter state, registries, signal routing decisions). Discovery
// command bodies that the scan calls enqueue dereference the nil adapter
// when they run; the executor's panic recovery absorbs that.
func newTestManager(t *testing.T, delegate Delegate) *Manager {
	t.Helper()
	if delegate == nil {
		delegate = NopDelegate{}
	}
	cfg := config.Default()
	log := logging.Default()

	m := &Manager{
		adapterPath:   dbus.ObjectPath("/org/bluez/hci0"),
		cfg:           cfg,
		bus:           eventbus.NopPublisher{},
		log:           log,
		delegate:      delegate,
		rssiThreshold: cfg.MinRSSI,
		autoconnect:   make(map[string]peripheral.ConnectCallback),
		router:        signalrouter.New(log),
	}
	m.callbackExec = executor.New("test-callback", log)
	m.queueExec = executor.New("test-queue", log)
	m.signalExec = executor.New("test-signal", log)
	m.cmdQueue = queue.New(m.queueExec, cfg.CommandRetryCap, log)

	t.Cleanup(func() {
		m.callbackExec.Shutdown()
		m.queueExec.Shutdown()
		m.signalExec.Shutdown()
	})
	return m
}

// recordingDelegate captures Central-level callbacks for assertions.
type recordingDelegate struct {
	NopDelegate

	mu          sync.Mutex
	discovered  []gatt.ScanResult
	disconnects []string
	powered     []bool
}

func newRecordingDelegate() *recordingDelegate {
	return &recordingDelegate{}
}

func (d *recordingDelegate) OnAdapterPoweredChanged(powered bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.powered = append(d.powered, powered)
}

func (d *recordingDelegate) poweredSeen() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.powered) > 0
}

func (d *recordingDelegate) OnDiscovered(p *peripheral.Peripheral, scan gatt.ScanResult) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.discovered = append(d.discovered, scan)
}

func (d *recordingDelegate) OnDisconnected(p *peripheral.Peripheral, s status.Status) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.disconnects = append(d.disconnects, p.Address())
}

func (d *recordingDelegate) snapshot() ([]gatt.ScanResult, []string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]gatt.ScanResult(nil), d.discovered...), append([]string(nil), d.disconnects...)
}
