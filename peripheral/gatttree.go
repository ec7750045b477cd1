package peripheral

import (
	"fmt"

	"github.com/godbus/dbus/v5"

	"blecentral/busfacade"
	"blecentral/gatt"
)

// buildGattTree implements §4.7's "GATT tree construction": enumerate the
// device's child nodes, wrap each GattService1, enumerate its
// characteristics, wrap each, enumerate its descriptors. IncludedServices
// traversal is not attempted — the data model (§3) has no notion of
// included/secondary service chains, only the flat Service/Characteristic/
// Descriptor hierarchy BlueZ already exposes as nested object-path
// children, so there is nothing here that can raise the NotImplemented
// enumeration error §4.7 says to ignore.
func (p *Peripheral) buildGattTree() (*gatt.Tree, error) {
	if p.conn == nil {
		return nil, fmt.Errorf("peripheral: no bus connection for %s", p.address)
	}
	devicePath := p.device.Path()

	serviceNames, err := p.conn.ListChildren(devicePath)
	if err != nil {
		return nil, err
	}

	var services []*gatt.Service
	for _, name := range serviceNames {
		svcPath := dbus.ObjectPath(string(devicePath) + "/" + name)
		svc, err := p.buildService(svcPath)
		if err != nil {
			p.log.Debugf("skip service %s: %v", svcPath, err)
			continue
		}
		services = append(services, svc)
	}
	return gatt.NewTree(services), nil
}

func (p *Peripheral) buildService(svcPath dbus.ObjectPath) (*gatt.Service, error) {
	gs := busfacade.NewGattService(p.conn, svcPath)
	uuidStr, err := gs.UUID()
	if err != nil {
		return nil, err
	}
	uuid, err := gatt.ParseUUID(uuidStr)
	if err != nil {
		return nil, err
	}
	primary, _ := gs.Primary()
	svc := &gatt.Service{UUID: uuid, Path: string(svcPath), Primary: primary}

	charNames, err := p.conn.ListChildren(svcPath)
	if err != nil {
		return svc, nil
	}
	for _, name := range charNames {
		charPath := dbus.ObjectPath(string(svcPath) + "/" + name)
		ch, err := p.buildCharacteristic(charPath, svc)
		if err != nil {
			p.log.Debugf("skip characteristic %s: %v", charPath, err)
			continue
		}
		svc.Characteristics = append(svc.Characteristics, ch)
	}
	return svc, nil
}

func (p *Peripheral) buildCharacteristic(charPath dbus.ObjectPath, svc *gatt.Service) (*gatt.Characteristic, error) {
	gc := busfacade.NewGattCharacteristic(p.conn, charPath)
	uuidStr, err := gc.UUID()
	if err != nil {
		return nil, err
	}
	uuid, err := gatt.ParseUUID(uuidStr)
	if err != nil {
		return nil, err
	}
	flags, _ := gc.Flags()
	value, _ := gc.Value()
	notifying, _ := gc.Notifying()

	ch := &gatt.Characteristic{
		UUID:       uuid,
		Path:       string(charPath),
		Properties: gatt.PropertiesFromFlags(flags),
		Service:    svc,
	}
	ch.SetValue(value)
	ch.SetNotifying(notifying)

	descNames, err := p.conn.ListChildren(charPath)
	if err != nil {
		return ch, nil
	}
	for _, name := range descNames {
		descPath := dbus.ObjectPath(string(charPath) + "/" + name)
		d, err := p.buildDescriptor(descPath, ch)
		if err != nil {
			p.log.Debugf("skip descriptor %s: %v", descPath, err)
			continue
		}
		ch.Descriptors = append(ch.Descriptors, d)
	}
	return ch, nil
}

func (p *Peripheral) buildDescriptor(descPath dbus.ObjectPath, ch *gatt.Characteristic) (*gatt.Descriptor, error) {
	gd := busfacade.NewGattDescriptor(p.conn, descPath)
	uuidStr, err := gd.UUID()
	if err != nil {
		return nil, err
	}
	uuid, err := gatt.ParseUUID(uuidStr)
	if err != nil {
		return nil, err
	}
	flags, _ := gd.Flags()
	return &gatt.Descriptor{
		UUID:           uuid,
		Path:           string(descPath),
		Flags:          flags,
		Characteristic: ch,
	}, nil
}
