// Package gatt holds the BLE data model: UUIDs, the GATT service /
// characteristic / descriptor tree, and write types. It has no knowledge
// of D-Bus or of any particular peripheral; it is pure data plus the
// invariants spec'd for it.
package gatt

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// baseUUIDSuffix is the Bluetooth SIG base UUID, used to expand 16-bit
// short-form UUIDs ("180D") into their full 128-bit form.
const baseUUIDSuffix = "0000-1000-8000-00805f9b34fb"

// UUID is a 128-bit Bluetooth UUID. The zero value is not a valid UUID.
type UUID struct {
	uuid.UUID
}

// ParseUUID accepts a 4-character short form ("180D"), a bare 32-character
// hex form, or a full dashed 128-bit form, and returns the canonical UUID.
func ParseUUID(s string) (UUID, error) {
	switch len(s) {
	case 4:
		s = fmt.Sprintf("0000%s-%s", strings.ToLower(s), baseUUIDSuffix)
	case 32:
		s = fmt.Sprintf("%s-%s-%s-%s-%s", s[0:8], s[8:12], s[12:16], s[16:20], s[20:32])
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return UUID{}, fmt.Errorf("gatt: invalid UUID %q: %w", s, err)
	}
	return UUID{UUID: u}, nil
}

// MustParseUUID is ParseUUID but panics on error; used for package-level
// constants where the input is a known-valid literal.
func MustParseUUID(s string) UUID {
	u, err := ParseUUID(s)
	if err != nil {
		panic(err)
	}
	return u
}

// String renders the canonical lowercase dashed form.
func (u UUID) String() string {
	return u.UUID.String()
}

// IsZero reports whether u is the zero UUID.
func (u UUID) IsZero() bool {
	return u.UUID == uuid.UUID{}
}

// Well-known GATT UUIDs referenced by §9's GLOSSARY and by the command
// queue / descriptor handling (CCC descriptor controls notifications).
var (
	ClientCharacteristicConfigUUID = MustParseUUID("2902")
)
