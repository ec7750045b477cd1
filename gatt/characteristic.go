package gatt

import "sync"

// Property is one bit of a GattCharacteristic's capability set, decoded
// from the daemon's "Flags" string list (§4.7 "GATT tree construction").
type Property uint16

const (
	PropBroadcast Property = 1 << iota
	PropRead
	PropWriteWithoutResponse
	PropWrite
	PropNotify
	PropIndicate
	PropAuthenticatedSignedWrites
	PropReliableWrite
	PropWritableAuxiliaries
	PropEncryptRead
	PropEncryptWrite
	PropEncryptAuthenticatedRead
	PropEncryptAuthenticatedWrite
)

// flagNames maps the daemon's Flags strings (org.bluez.GattCharacteristic1)
// to our Property bits.
var flagNames = map[string]Property{
	"broadcast":                     PropBroadcast,
	"read":                          PropRead,
	"write-without-response":        PropWriteWithoutResponse,
	"write":                         PropWrite,
	"notify":                        PropNotify,
	"indicate":                      PropIndicate,
	"authenticated-signed-writes":   PropAuthenticatedSignedWrites,
	"reliable-write":                PropReliableWrite,
	"writable-auxiliaries":          PropWritableAuxiliaries,
	"encrypt-read":                  PropEncryptRead,
	"encrypt-write":                 PropEncryptWrite,
	"encrypt-authenticated-read":    PropEncryptAuthenticatedRead,
	"encrypt-authenticated-write":   PropEncryptAuthenticatedWrite,
}

// PropertiesFromFlags decodes the daemon's Flags string list into a
// Property bit-set. Unrecognized flags are ignored.
func PropertiesFromFlags(flags []string) Property {
	var p Property
	for _, f := range flags {
		if bit, ok := flagNames[f]; ok {
			p |= bit
		}
	}
	return p
}

func (p Property) Has(bit Property) bool { return p&bit != 0 }

// WriteType selects the BlueZ write option (§3).
type WriteType int

const (
	WriteWithResponse WriteType = iota
	WriteWithoutResponse
)

// busOption is the value BlueZ expects for WriteValue's "type" option key.
func (w WriteType) busOption() string {
	if w == WriteWithoutResponse {
		return "command"
	}
	return "request"
}

// BusWriteType exports busOption for the busfacade package without
// widening this package's surface with an unexported-type leak.
func (w WriteType) BusWriteType() string { return w.busOption() }

// Descriptor is a GATT descriptor: UUID, permission flags, cached value,
// and a back-reference to its owning characteristic.
type Descriptor struct {
	mu    sync.RWMutex
	UUID  UUID
	Path  string
	Flags []string
	value []byte

	Characteristic *Characteristic
}

func (d *Descriptor) Value() []byte {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]byte, len(d.value))
	copy(out, d.value)
	return out
}

func (d *Descriptor) SetValue(v []byte) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.value = append([]byte(nil), v...)
}

// Characteristic is a GATT characteristic: UUID, properties, cached value,
// notifying flag, descriptors, and a back-reference to its service.
type Characteristic struct {
	mu         sync.RWMutex
	UUID       UUID
	Path       string
	Properties Property
	value      []byte
	notifying  bool

	Descriptors []*Descriptor
	Service     *Service
}

func (c *Characteristic) Value() []byte {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]byte, len(c.value))
	copy(out, c.value)
	return out
}

func (c *Characteristic) SetValue(v []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.value = append([]byte(nil), v...)
}

func (c *Characteristic) Notifying() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.notifying
}

// SetNotifying mirrors the most recently observed bus value, per the
// invariant in §3 ("A Peripheral's notifying flag ... mirrors the most
// recent observed value from the bus").
func (c *Characteristic) SetNotifying(v bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.notifying = v
}

// DescriptorByUUID returns the first descriptor with the given UUID, or
// nil. "First wins" matches the service/characteristic lookup rule in §3.
func (c *Characteristic) DescriptorByUUID(u UUID) *Descriptor {
	for _, d := range c.Descriptors {
		if d.UUID.UUID == u.UUID {
			return d
		}
	}
	return nil
}

// Service is a GATT service: UUID, primary/secondary flag, and an ordered
// list of characteristics. Replaced wholesale on each service discovery.
type Service struct {
	UUID            UUID
	Path            string
	Primary         bool
	Characteristics []*Characteristic
}

// CharacteristicByUUID returns the first characteristic with the given
// UUID in this service, or nil.
func (s *Service) CharacteristicByUUID(u UUID) *Characteristic {
	for _, c := range s.Characteristics {
		if c.UUID.UUID == u.UUID {
			return c
		}
	}
	return nil
}

// Tree is the full GATT hierarchy discovered for one peripheral,
// keyed both by bus object path (for signal lookup) and by
// (service UUID, characteristic UUID) for API lookup, per §4.7.
type Tree struct {
	Services []*Service

	byPath     map[string]*Characteristic
	byPathDesc map[string]*Descriptor
	byUUID     map[serviceCharKey]*Characteristic
}

type serviceCharKey struct {
	service        UUID
	characteristic UUID
}

// NewTree builds the lookup indexes over an already-constructed service
// list. Callers (peripheral.buildGattTree) assemble Services first.
func NewTree(services []*Service) *Tree {
	t := &Tree{
		Services:   services,
		byPath:     make(map[string]*Characteristic),
		byPathDesc: make(map[string]*Descriptor),
		byUUID:     make(map[serviceCharKey]*Characteristic),
	}
	for _, svc := range services {
		for _, ch := range svc.Characteristics {
			key := serviceCharKey{service: svc.UUID, characteristic: ch.UUID}
			if _, exists := t.byUUID[key]; !exists {
				t.byUUID[key] = ch
			}
			if ch.Path != "" {
				t.byPath[ch.Path] = ch
			}
			for _, d := range ch.Descriptors {
				if d.Path != "" {
					t.byPathDesc[d.Path] = d
				}
			}
		}
	}
	return t
}

// CharacteristicByPath finds a characteristic by its D-Bus object path,
// used by the signal router to resolve PropertiesChanged events.
func (t *Tree) CharacteristicByPath(path string) (*Characteristic, bool) {
	if t == nil {
		return nil, false
	}
	c, ok := t.byPath[path]
	return c, ok
}

// DescriptorByPath finds a descriptor by its D-Bus object path.
func (t *Tree) DescriptorByPath(path string) (*Descriptor, bool) {
	if t == nil {
		return nil, false
	}
	d, ok := t.byPathDesc[path]
	return d, ok
}

// Characteristic looks up by (service UUID, characteristic UUID).
func (t *Tree) Characteristic(service, characteristic UUID) (*Characteristic, bool) {
	if t == nil {
		return nil, false
	}
	c, ok := t.byUUID[serviceCharKey{service: service, characteristic: characteristic}]
	return c, ok
}
