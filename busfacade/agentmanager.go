package busfacade

import "github.com/godbus/dbus/v5"

const agentManagerInterface = "org.bluez.AgentManager1"

// AgentManagerPath is the fixed path BlueZ exposes its AgentManager1 on.
const AgentManagerPath = dbus.ObjectPath("/org/bluez")

// AgentManager wraps org.bluez.AgentManager1 (§6).
type AgentManager struct{ object }

// NewAgentManager wraps the daemon's well-known AgentManager1 object.
func NewAgentManager(conn *Conn) *AgentManager {
	return &AgentManager{object{conn: conn, path: AgentManagerPath, iface: agentManagerInterface}}
}

func (m *AgentManager) RegisterAgent(agentPath dbus.ObjectPath, capability string) error {
	return m.callErr("RegisterAgent", agentPath, capability)
}

func (m *AgentManager) UnregisterAgent(agentPath dbus.ObjectPath) error {
	return m.callErr("UnregisterAgent", agentPath)
}

func (m *AgentManager) RequestDefaultAgent(agentPath dbus.ObjectPath) error {
	return m.callErr("RequestDefaultAgent", agentPath)
}
