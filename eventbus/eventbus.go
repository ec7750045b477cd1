// Package eventbus is a supplemental domain-stack component: an optional
// NATS publisher that mirrors lifecycle and scan events as JSON messages,
// for deployments that want a central/peripheral activity feed outside the
// process (e.g. a fleet dashboard). Nothing in the core depends on it;
// Central and Peripheral accept a Publisher interface and default to
// NopPublisher when none is configured.
package eventbus

import (
	"encoding/json"

	"github.com/nats-io/nats.go"

	"blecentral/internal/logging"
)

// Kind names the lifecycle/scan events worth mirroring externally.
type Kind string

const (
	KindDiscovered              Kind = "discovered"
	KindAdapterPoweredChanged   Kind = "adapter_powered_changed"
	KindConnected               Kind = "connected"
	KindConnectFailed           Kind = "connect_failed"
	KindDisconnected            Kind = "disconnected"
	KindServicesDiscovered      Kind = "services_discovered"
	KindServiceDiscoveryFailed  Kind = "service_discovery_failed"
	KindCharacteristicUpdate    Kind = "characteristic_update"
	KindCharacteristicWrite     Kind = "characteristic_write"
	KindDescriptorUpdate        Kind = "descriptor_update"
	KindDescriptorWrite         Kind = "descriptor_write"
	KindNotificationStateUpdate Kind = "notification_state_update"
	KindBondingSucceeded        Kind = "bonding_succeeded"
	KindBondingFailed           Kind = "bonding_failed"
	KindBondLost                Kind = "bond_lost"
)

// Event is the JSON wire shape published to the configured subject.
type Event struct {
	Kind    Kind   `json:"kind"`
	Address string `json:"address,omitempty"`
	Status  string `json:"status,omitempty"`
}

// Publisher is the narrow interface central/peripheral depend on, so the
// NATS dependency stays confined to this package and its one real
// implementation.
type Publisher interface {
	Publish(Event)
}

// NopPublisher discards every event; it is the default when no bus URL is
// configured.
type NopPublisher struct{}

func (NopPublisher) Publish(Event) {}

// NatsPublisher publishes Events as JSON to a fixed subject on a NATS
// server, grounded on the teacher's nats Adaptor (connect-then-Publish
// shape, best-effort on failure rather than fatal).
type NatsPublisher struct {
	conn    *nats.Conn
	subject string
	log     *logging.Logger
}

// Connect dials url and returns a Publisher bound to subject. Connection
// failures are returned to the caller rather than silently degraded to a
// NopPublisher, so callers can decide whether a missing event bus should
// block startup.
func Connect(url, subject string, log *logging.Logger, opts ...nats.Option) (*NatsPublisher, error) {
	conn, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = logging.Default()
	}
	return &NatsPublisher{conn: conn, subject: subject, log: log.WithComponent("eventbus")}, nil
}

// Publish marshals ev and publishes it, logging (not failing) on error —
// the event bus is an observability side channel, never on the critical
// path of a central/peripheral operation.
func (p *NatsPublisher) Publish(ev Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		p.log.Warnf("marshal event %s: %v", ev.Kind, err)
		return
	}
	if err := p.conn.Publish(p.subject, data); err != nil {
		p.log.Warnf("publish event %s: %v", ev.Kind, err)
	}
}

// Close releases the underlying NATS connection.
func (p *NatsPublisher) Close() {
	p.conn.Close()
}
