package peripheral

import (
	"sync"
	"testing"

	"blecentral/eventbus"
	"blecentral/executor"
	"blecentral/gatt"
	"blecentral/internal/config"
	"blecentral/internal/logging"
	"blecentral/status"
)

// newTestPeripheral builds a Peripheral whose conn field is left nil.
// Tests in this package assert only on the synchronous state-machine and
// signal-dispatch paths (mirroring central's own newTestManager
// convention). Command bodies a test enqueues (ReadCharacteristic,
// SetNotify) still run and fail on the nil conn; the executor's panic
// recovery absorbs that, and the command stays in flight until the test's
// own signal completes it.
func newTestPeripheral(t *testing.T, address string, delegate Delegate) *Peripheral {
	t.Helper()
	if delegate == nil {
		delegate = NopDelegate{}
	}
	log := logging.Default()
	callbackExec := executor.New("test-callback", log)
	signalExec := executor.New("test-signal", log)

	p := New(address, gatt.AddressPublic, Deps{
		AdapterPath:  "/org/bluez/hci0",
		CallbackExec: callbackExec,
		SignalExec:   signalExec,
		Delegate:     delegate,
		Config:       config.Default(),
		Bus:          eventbus.NopPublisher{},
		Log:          log,
	})

	t.Cleanup(func() {
		callbackExec.Shutdown()
		signalExec.Shutdown()
		p.deviceQueueExec.Shutdown()
	})
	return p
}

// recordingDelegate captures Peripheral-level callbacks for assertions.
type recordingDelegate struct {
	NopDelegate

	mu                 sync.Mutex
	connected          int
	connectFailed      []status.Status
	servicesDiscovered int
	disconnected       []status.Status
	charUpdates        []charUpdate
	notifyUpdates      []status.Status
	order              []string
}

type charUpdate struct {
	value []byte
	st    status.Status
}

func newRecordingDelegate() *recordingDelegate {
	return &recordingDelegate{}
}

func (d *recordingDelegate) OnConnected(p *Peripheral) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.connected++
	d.order = append(d.order, "connected")
}

func (d *recordingDelegate) OnConnectFailed(p *Peripheral, s status.Status) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.connectFailed = append(d.connectFailed, s)
}

func (d *recordingDelegate) OnServicesDiscovered(p *Peripheral) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.servicesDiscovered++
	d.order = append(d.order, "services_discovered")
}

func (d *recordingDelegate) OnDisconnected(p *Peripheral, s status.Status) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.disconnected = append(d.disconnected, s)
}

func (d *recordingDelegate) OnCharacteristicUpdate(p *Peripheral, c *gatt.Characteristic, value []byte, s status.Status) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.charUpdates = append(d.charUpdates, charUpdate{value: value, st: s})
}

func (d *recordingDelegate) OnNotificationStateUpdate(p *Peripheral, c *gatt.Characteristic, s status.Status) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.notifyUpdates = append(d.notifyUpdates, s)
}

func (d *recordingDelegate) snapshotOrder() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.order...)
}

func (d *recordingDelegate) charUpdateCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.charUpdates)
}

func (d *recordingDelegate) disconnectCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.disconnected)
}

func (d *recordingDelegate) connectFailedCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.connectFailed)
}
