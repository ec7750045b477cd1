// Package status holds the error taxonomy surfaced to user callbacks
// (spec.md §7). Daemon errors are mapped to a Status at the busfacade
// boundary and never leak above it as raw D-Bus error names.
package status

import "fmt"

// Status is the closed set of outcomes a command or lifecycle event can
// report to a user callback.
type Status int

const (
	SUCCESS Status = iota
	BLUEZ_NOT_READY
	BLUEZ_OPERATION_IN_PROGRESS
	BLUEZ_OPERATION_FAILED
	BLUEZ_NOT_SUPPORTED
	CONNECTION_FAILED_ESTABLISHMENT
	READ_NOT_PERMITTED
	WRITE_NOT_PERMITTED
	REQUEST_NOT_SUPPORTED
	INSUFFICIENT_AUTHENTICATION
	INSUFFICIENT_AUTHORIZATION
	INSUFFICIENT_ENCRYPTION
	DBUS_EXECUTION_EXCEPTION
)

var names = map[Status]string{
	SUCCESS:                         "SUCCESS",
	BLUEZ_NOT_READY:                 "BLUEZ_NOT_READY",
	BLUEZ_OPERATION_IN_PROGRESS:     "BLUEZ_OPERATION_IN_PROGRESS",
	BLUEZ_OPERATION_FAILED:          "BLUEZ_OPERATION_FAILED",
	BLUEZ_NOT_SUPPORTED:             "BLUEZ_NOT_SUPPORTED",
	CONNECTION_FAILED_ESTABLISHMENT: "CONNECTION_FAILED_ESTABLISHMENT",
	READ_NOT_PERMITTED:              "READ_NOT_PERMITTED",
	WRITE_NOT_PERMITTED:             "WRITE_NOT_PERMITTED",
	REQUEST_NOT_SUPPORTED:           "REQUEST_NOT_SUPPORTED",
	INSUFFICIENT_AUTHENTICATION:     "INSUFFICIENT_AUTHENTICATION",
	INSUFFICIENT_AUTHORIZATION:      "INSUFFICIENT_AUTHORIZATION",
	INSUFFICIENT_ENCRYPTION:         "INSUFFICIENT_ENCRYPTION",
	DBUS_EXECUTION_EXCEPTION:        "DBUS_EXECUTION_EXCEPTION",
}

func (s Status) String() string {
	if n, ok := names[s]; ok {
		return n
	}
	return fmt.Sprintf("Status(%d)", int(s))
}

// OK reports whether the status represents success.
func (s Status) OK() bool { return s == SUCCESS }

// Error is a status carrying the underlying daemon error, if any. It
// implements error so it can be returned from synchronous call sites
// while still being inspectable via As/Is.
type Error struct {
	Status Status
	Op     string
	Cause  error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Status, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Status)
}

func (e *Error) Unwrap() error { return e.Cause }

// New wraps a Status and an operation name into an *Error, optionally
// chaining the daemon error that produced it.
func New(op string, s Status, cause error) *Error {
	return &Error{Op: op, Status: s, Cause: cause}
}

// daemonErrorMapping maps D-Bus error names (org.bluez.Error.*,
// org.freedesktop.DBus.Error.*) to our Status taxonomy. Anything unknown
// maps to DBUS_EXECUTION_EXCEPTION.
var daemonErrorMapping = map[string]Status{
	"org.bluez.Error.NotReady":           BLUEZ_NOT_READY,
	"org.bluez.Error.InProgress":         BLUEZ_OPERATION_IN_PROGRESS,
	"org.bluez.Error.Failed":             BLUEZ_OPERATION_FAILED,
	"org.bluez.Error.NotSupported":       BLUEZ_NOT_SUPPORTED,
	"org.bluez.Error.NotPermitted":       WRITE_NOT_PERMITTED,
	"org.bluez.Error.NotAuthorized":      INSUFFICIENT_AUTHORIZATION,
	"org.bluez.Error.NotConnected":       CONNECTION_FAILED_ESTABLISHMENT,
	"org.bluez.Error.AlreadyConnected":   SUCCESS,
	"org.bluez.Error.AlreadyExists":      BLUEZ_OPERATION_FAILED,
	"org.bluez.Error.AuthenticationFailed":    INSUFFICIENT_AUTHENTICATION,
	"org.bluez.Error.AuthenticationCanceled":  INSUFFICIENT_AUTHENTICATION,
	"org.bluez.Error.AuthenticationRejected":  INSUFFICIENT_AUTHENTICATION,
	"org.bluez.Error.AuthenticationTimeout":   INSUFFICIENT_AUTHENTICATION,
	"org.bluez.Error.ConnectionAttemptFailed": CONNECTION_FAILED_ESTABLISHMENT,
}

// FromDaemonErrorName maps a D-Bus error name to a Status, per §7's
// propagation policy: daemon errors are mapped at the Bus Facade boundary
// and never leak above it.
func FromDaemonErrorName(name string) Status {
	if s, ok := daemonErrorMapping[name]; ok {
		return s
	}
	return DBUS_EXECUTION_EXCEPTION
}
