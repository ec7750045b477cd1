package gatt

import (
	"fmt"
	"regexp"
	"strings"
)

// AddressKind is the BLE address type advertised by a peripheral.
type AddressKind int

const (
	AddressPublic AddressKind = iota
	AddressRandom
)

func (k AddressKind) String() string {
	if k == AddressRandom {
		return "random"
	}
	return "public"
}

// addressPattern matches the canonical textual MAC form: six hex bytes,
// uppercase A-F only, colon separated, exactly 17 characters (§6).
var addressPattern = regexp.MustCompile(`^[0-9A-F]{2}(:[0-9A-F]{2}){5}$`)

// ValidAddress reports whether addr is a canonical uppercase MAC string.
func ValidAddress(addr string) bool {
	return addressPattern.MatchString(addr)
}

// NormalizeAddress upper-cases addr and validates the result against the
// canonical pattern, returning an error if it does not match. Lowercase hex
// is accepted and returned in canonical uppercase form.
func NormalizeAddress(addr string) (string, error) {
	up := strings.ToUpper(addr)
	if !ValidAddress(up) {
		return "", fmt.Errorf("gatt: invalid MAC address %q", addr)
	}
	return up, nil
}

// AddressFromObjectPath extracts a MAC from a BlueZ device object path of
// the form ".../dev_XX_XX_XX_XX_XX_XX".
func AddressFromObjectPath(path string) (string, bool) {
	i := strings.LastIndex(path, "/")
	if i < 0 {
		return "", false
	}
	seg := path[i+1:]
	if !strings.HasPrefix(seg, "dev_") {
		return "", false
	}
	addr := strings.ReplaceAll(seg[len("dev_"):], "_", ":")
	addr = strings.ToUpper(addr)
	if !ValidAddress(addr) {
		return "", false
	}
	return addr, true
}

// ObjectPathForAddress builds the bond object path BlueZ exposes a device
// at, given the adapter's own object path (§6 "Bond object paths").
func ObjectPathForAddress(adapterPath, addr string) string {
	seg := strings.ReplaceAll(strings.ToUpper(addr), ":", "_")
	return adapterPath + "/dev_" + seg
}

// AddressFromDescendantPath extracts the MAC address from any path nested
// under a device object, e.g. a GattService1/GattCharacteristic1/
// GattDescriptor1 path of the form ".../dev_XX_.../serviceNNNN/charNNNN".
// Unlike AddressFromObjectPath it scans every segment, not just the last.
func AddressFromDescendantPath(path string) (string, bool) {
	for _, seg := range strings.Split(path, "/") {
		if !strings.HasPrefix(seg, "dev_") {
			continue
		}
		addr := strings.ToUpper(strings.ReplaceAll(seg[len("dev_"):], "_", ":"))
		if ValidAddress(addr) {
			return addr, true
		}
	}
	return "", false
}
