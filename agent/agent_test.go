package agent

import (
	"testing"

	"github.com/godbus/dbus/v5"
	"github.com/stretchr/testify/assert"
)

type fakeDelegate struct {
	started  []string
	authReqs []string
	pin      string
	pinOK    bool
	passkey  uint32
	passOK   bool
}

func (f *fakeDelegate) OnPairingStarted(address string) { f.started = append(f.started, address) }
func (f *fakeDelegate) PINCode(address string) (string, bool) { return f.pin, f.pinOK }
func (f *fakeDelegate) Passkey(address string) (uint32, bool) { return f.passkey, f.passOK }
func (f *fakeDelegate) OnAuthorizationRequested(address string) {
	f.authReqs = append(f.authReqs, address)
}

const testDevicePath = dbus.ObjectPath("/org/bluez/hci0/dev_12_34_56_65_43_21")

func TestRequestPinCodeUsesStoredPINWithoutDelegate(t *testing.T) {
	d := &fakeDelegate{pin: "should-not-be-used", pinOK: true}
	a := New(nil, d, nil)
	a.SetPIN("12:34:56:65:43:21", "654321")

	pin, derr := a.requestPinCode(testDevicePath)
	assert.Nil(t, derr)
	assert.Equal(t, "654321", pin)
	assert.Equal(t, []string{"12:34:56:65:43:21"}, d.started)
}

func TestRequestPinCodeFallsBackToDelegate(t *testing.T) {
	d := &fakeDelegate{pin: "111222", pinOK: true}
	a := New(nil, d, nil)

	pin, derr := a.requestPinCode(testDevicePath)
	assert.Nil(t, derr)
	assert.Equal(t, "111222", pin)
}

func TestRequestPinCodeRejectedWhenDelegateDeclines(t *testing.T) {
	d := &fakeDelegate{pinOK: false}
	a := New(nil, d, nil)

	_, derr := a.requestPinCode(testDevicePath)
	assert.NotNil(t, derr)
}

func TestRequestPasskeyParsesStoredPIN(t *testing.T) {
	d := &fakeDelegate{}
	a := New(nil, d, nil)
	a.SetPIN("12:34:56:65:43:21", "123456")

	pk, derr := a.requestPasskey(testDevicePath)
	assert.Nil(t, derr)
	assert.Equal(t, uint32(123456), pk)
}

func TestRequestPasskeyRejectsNonNumericStoredPIN(t *testing.T) {
	d := &fakeDelegate{}
	a := New(nil, d, nil)
	a.SetPIN("12:34:56:65:43:21", "not-a-number")

	_, derr := a.requestPasskey(testDevicePath)
	assert.NotNil(t, derr)
}

func TestRequestAuthorizationNotifiesDelegateThenAccepts(t *testing.T) {
	d := &fakeDelegate{}
	a := New(nil, d, nil)

	derr := a.requestAuthorization(testDevicePath)
	assert.Nil(t, derr)
	assert.Equal(t, []string{"12:34:56:65:43:21"}, d.authReqs)
}

func TestRequestConfirmationAlwaysAccepts(t *testing.T) {
	a := New(nil, &fakeDelegate{}, nil)
	assert.Nil(t, a.requestConfirmation(testDevicePath, 123456))
}

func TestAuthorizeServiceAlwaysAccepts(t *testing.T) {
	a := New(nil, &fakeDelegate{}, nil)
	assert.Nil(t, a.authorizeService(testDevicePath, "0000180d-0000-1000-8000-00805f9b34fb"))
}

func TestCancelAndReleaseAreNoOps(t *testing.T) {
	a := New(nil, &fakeDelegate{}, nil)
	assert.Nil(t, a.cancel())
	assert.Nil(t, a.release())
}
