package peripheral

import (
	"blecentral/busfacade"
	"blecentral/eventbus"
	"blecentral/queue"
	"blecentral/status"
)

// Connect runs the algorithm in §4.7 "Connect algorithm". It is a no-op if
// the Peripheral is not currently DISCONNECTED (entry rule: "connect is
// accepted only from DISCONNECTED").
func (p *Peripheral) Connect(cb ConnectCallback) {
	p.mu.Lock()
	if p.state != Disconnected {
		p.mu.Unlock()
		return
	}
	p.state = Connecting
	p.connectCB = cb
	p.mu.Unlock()

	p.cmdQueue.Enqueue(&queue.Command{
		Tag:  queue.TagConnected,
		Key:  p.address,
		Body: p.runConnectCommand,
	})
}

// runConnectCommand is step 2 onward of §4.7's connect algorithm: the
// queued body that issues Device.Connect and handles every synchronous
// outcome. Asynchronous success is picked up later by handleConnectedTrue.
func (p *Peripheral) runConnectCommand() {
	err := p.device.Connect()
	if err == nil {
		// Connect accepted; Connected=true will arrive as a signal
		// (step 5). The command stays in-flight until then.
		return
	}

	se, ok := err.(*status.Error)
	st := status.DBUS_EXECUTION_EXCEPTION
	if ok {
		st = se.Status
	}

	if st == status.SUCCESS {
		// AlreadyConnected (step 3): short-circuit straight to CONNECTED,
		// skipping the services-discovery wait entirely.
		p.mu.Lock()
		p.state = Connected
		p.mu.Unlock()
		cb := p.takeConnectCB()
		p.deliver(func() {
			p.delegate.OnConnected(p)
			p.publish(eventbus.KindConnected, status.SUCCESS)
			if cb != nil {
				cb(p, status.SUCCESS)
			}
		})
		p.cmdQueue.Complete()
		return
	}

	// Step 4: synchronous failure.
	p.failConnect(st)
	p.cmdQueue.Complete()
}

func (p *Peripheral) takeConnectCB() ConnectCallback {
	p.mu.Lock()
	defer p.mu.Unlock()
	cb := p.connectCB
	p.connectCB = nil
	return cb
}

func (p *Peripheral) failConnect(st status.Status) {
	p.mu.Lock()
	p.state = Disconnected
	p.mu.Unlock()
	cb := p.takeConnectCB()
	p.deliver(func() {
		p.delegate.OnConnectFailed(p, st)
		p.publish(eventbus.KindConnectFailed, st)
		if cb != nil {
			cb(p, st)
		}
	})
}

// handleConnectedTrue is step 5: arm the service-discovery timeout and
// complete the in-flight connect command.
func (p *Peripheral) handleConnectedTrue() {
	p.mu.Lock()
	if p.state != Connecting {
		p.mu.Unlock()
		return
	}
	p.servicesResolvedHandled = false
	p.mu.Unlock()

	handle := p.deviceQueueExec.PostDelayed(p.serviceDiscoveryTimedOut, p.cfg.ServiceDiscoveryTimeout)
	p.mu.Lock()
	p.discoveryTimeout = handle
	p.mu.Unlock()

	if p.cmdQueue.Matches(queue.TagConnected, p.address) {
		p.cmdQueue.Complete()
	}
}

// handleServicesResolved is step 6: build the GATT tree and emit
// services_discovered then connected, exactly once per connection episode
// (entry rule in §4.7).
func (p *Peripheral) handleServicesResolved() {
	p.mu.Lock()
	if p.state != Connecting || p.servicesResolvedHandled {
		p.mu.Unlock()
		return
	}
	p.servicesResolvedHandled = true
	timeout := p.discoveryTimeout
	p.discoveryTimeout = nil
	p.mu.Unlock()
	if timeout != nil {
		timeout.Cancel()
	}

	tree, err := p.buildGattTree()
	if err != nil {
		p.log.Warnf("gatt tree construction failed: %v", err)
	}
	p.mu.Lock()
	p.tree = tree
	p.state = Connected
	p.mu.Unlock()

	cb := p.takeConnectCB()
	p.deliver(func() {
		p.delegate.OnServicesDiscovered(p)
		p.publish(eventbus.KindServicesDiscovered, status.SUCCESS)
		p.delegate.OnConnected(p)
		p.publish(eventbus.KindConnected, status.SUCCESS)
		if cb != nil {
			cb(p, status.SUCCESS)
		}
	})
}

// serviceDiscoveryTimedOut is step 7: the service-discovery timeout fired
// before ServicesResolved=true arrived.
func (p *Peripheral) serviceDiscoveryTimedOut() {
	p.mu.Lock()
	if p.state != Connecting || p.servicesResolvedHandled {
		p.mu.Unlock()
		return
	}
	p.servicesResolvedHandled = true
	wasPaired := p.everPaired
	p.mu.Unlock()

	cb := p.takeConnectCB()
	p.deliver(func() {
		p.delegate.OnServiceDiscoveryFailed(p, status.BLUEZ_OPERATION_FAILED)
		p.publish(eventbus.KindServiceDiscoveryFailed, status.BLUEZ_OPERATION_FAILED)
		if cb != nil {
			cb(p, status.BLUEZ_OPERATION_FAILED)
		}
	})

	if wasPaired {
		// BlueZ workaround (§4.7 "Failure semantics"): schedule a delayed
		// remove_device so the daemon re-learns the GATT tree on
		// reconnection, rather than forcing it synchronously here.
		p.deviceQueueExec.PostDelayed(p.removeDeviceWorkaround, 0)
	}
	p.forceDisconnect()
}

func (p *Peripheral) removeDeviceWorkaround() {
	adapter := busfacade.NewAdapter(p.conn, p.adapterPath)
	if err := adapter.RemoveDevice(p.device.Path()); err != nil {
		p.log.Debugf("remove_device workaround failed for %s: %v", p.address, err)
	}
}

// forceDisconnect issues Device.Disconnect and lets the Connected=false
// signal (or its absence) settle the state machine back to DISCONNECTED.
func (p *Peripheral) forceDisconnect() {
	p.mu.Lock()
	if p.state == Disconnected {
		p.mu.Unlock()
		return
	}
	p.state = Disconnecting
	p.mu.Unlock()
	if err := p.device.Disconnect(); err != nil {
		p.log.Debugf("force disconnect %s: %v", p.address, err)
	}
}

// Disconnect is accepted only from CONNECTED/CONNECTING (entry rule).
func (p *Peripheral) Disconnect() {
	p.mu.Lock()
	if p.state != Connected && p.state != Connecting {
		p.mu.Unlock()
		return
	}
	p.state = Disconnecting
	p.mu.Unlock()

	p.deviceQueueExec.Post(func() {
		if err := p.device.Disconnect(); err != nil {
			p.log.Debugf("disconnect %s: %v", p.address, err)
		}
	})
}

// handleConnectedFalse settles the machine into DISCONNECTED, draining the
// command queue and applying the unpaired-device cleanup workaround
// (§4.7 "Failure semantics").
func (p *Peripheral) handleConnectedFalse() {
	p.mu.Lock()
	if p.state == Disconnected {
		p.mu.Unlock()
		return
	}
	wasConnecting := p.state == Connecting
	timeout := p.discoveryTimeout
	p.discoveryTimeout = nil
	p.state = Disconnected
	p.tree = nil
	paired := p.paired
	p.mu.Unlock()

	if timeout != nil {
		timeout.Cancel()
	}
	p.cmdQueue.Drain()

	if wasConnecting {
		// An in-flight connect that never completed: the command is still
		// "in-flight" from the queue's perspective until drained, so make
		// sure the caller's callback still fires exactly once.
		p.failConnect(status.CONNECTION_FAILED_ESTABLISHMENT)
		return
	}

	p.deliver(func() {
		p.delegate.OnDisconnected(p, status.SUCCESS)
		p.publish(eventbus.KindDisconnected, status.SUCCESS)
	})

	if !paired {
		p.deviceQueueExec.Post(func() {
			adapter := busfacade.NewAdapter(p.conn, p.adapterPath)
			if err := adapter.RemoveDevice(p.device.Path()); err != nil {
				p.log.Debugf("remove unpaired device %s: %v", p.address, err)
			}
		})
	}
}
