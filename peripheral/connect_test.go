package peripheral

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"blecentral/executor"
)

// waitDrained posts a sentinel onto exec and waits for it to run, proving
// everything posted ahead of it already ran.
func waitDrained(t *testing.T, e *executor.Executor) {
	t.Helper()
	done := make(chan struct{})
	e.Post(func() { close(done) })
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("executor did not drain in time")
	}
}

func TestHandleConnectedFalseWhileConnectingFailsConnect(t *testing.T) {
	rec := newRecordingDelegate()
	p := newTestPeripheral(t, "12:34:56:65:43:21", rec)

	p.mu.Lock()
	p.state = Connecting
	p.mu.Unlock()

	p.handleConnectedFalse()
	waitDrained(t, p.callbackExec)

	assert.Equal(t, Disconnected, p.State())
	require.Equal(t, 1, rec.connectFailedCount())
}

func TestHandleConnectedFalseFromConnectedDeliversDisconnected(t *testing.T) {
	rec := newRecordingDelegate()
	p := newTestPeripheral(t, "12:34:56:65:43:21", rec)

	p.mu.Lock()
	p.state = Connected
	p.paired = true // skip the unpaired remove_device bus-call workaround
	p.mu.Unlock()

	p.handleConnectedFalse()
	waitDrained(t, p.callbackExec)

	assert.Equal(t, Disconnected, p.State())
	require.Equal(t, 1, rec.disconnectCount())
}

func TestHandleConnectedFalseFromDisconnectedIsNoop(t *testing.T) {
	rec := newRecordingDelegate()
	p := newTestPeripheral(t, "12:34:56:65:43:21", rec)

	p.handleConnectedFalse()
	waitDrained(t, p.callbackExec)

	assert.Equal(t, Disconnected, p.State())
	assert.Zero(t, rec.disconnectCount())
}

// TestServicesResolvedOrderingFiresServicesDiscoveredBeforeConnected covers
// scenario 3: connect, then Connected=true followed by ServicesResolved=true,
// expects services_discovered delivered before connected and state CONNECTED.
func TestServicesResolvedOrderingFiresServicesDiscoveredBeforeConnected(t *testing.T) {
	rec := newRecordingDelegate()
	p := newTestPeripheral(t, "12:34:56:65:43:21", rec)

	p.mu.Lock()
	p.state = Connecting
	p.mu.Unlock()

	p.handleConnectedTrue()
	p.handleServicesResolved()
	waitDrained(t, p.callbackExec)

	assert.Equal(t, Connected, p.State())
	assert.Equal(t, []string{"services_discovered", "connected"}, rec.snapshotOrder())
}

// TestServicesResolvedHandledExactlyOnce asserts the entry-rule guard:
// a second ServicesResolved=true within the same connection episode is
// ignored.
func TestServicesResolvedHandledExactlyOnce(t *testing.T) {
	rec := newRecordingDelegate()
	p := newTestPeripheral(t, "12:34:56:65:43:21", rec)

	p.mu.Lock()
	p.state = Connecting
	p.mu.Unlock()

	p.handleConnectedTrue()
	p.handleServicesResolved()
	p.handleServicesResolved()
	waitDrained(t, p.callbackExec)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	assert.Equal(t, 1, rec.servicesDiscovered)
	assert.Equal(t, 1, rec.connected)
}

func TestConnectIsNoopUnlessDisconnected(t *testing.T) {
	p := newTestPeripheral(t, "12:34:56:65:43:21", nil)
	p.mu.Lock()
	p.state = Connecting
	p.mu.Unlock()

	p.Connect(nil)

	assert.Equal(t, 0, p.cmdQueue.Len())
}
