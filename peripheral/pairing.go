package peripheral

import (
	"blecentral/eventbus"
	"blecentral/status"
)

// CreateBond issues Device.Pair, valid whether or not the device is
// currently connected (§4.7: pairing is independent of the connection
// state machine). Completion is driven by the Paired property change.
func (p *Peripheral) CreateBond(cb BondCallback) {
	p.mu.Lock()
	p.bondCB = cb
	p.mu.Unlock()

	p.deviceQueueExec.Post(func() {
		if err := p.device.Pair(); err != nil {
			se, ok := err.(*status.Error)
			st := status.DBUS_EXECUTION_EXCEPTION
			if ok {
				st = se.Status
			}
			p.failBond(st)
		}
		// success: Paired=true arrives as a signal and is handled by
		// handlePairedChanged.
	})
}

func (p *Peripheral) takeBondCB() BondCallback {
	p.mu.Lock()
	defer p.mu.Unlock()
	cb := p.bondCB
	p.bondCB = nil
	return cb
}

func (p *Peripheral) failBond(st status.Status) {
	cb := p.takeBondCB()
	p.deliver(func() {
		p.delegate.OnBondingFailed(p, st)
		p.publish(eventbus.KindBondingFailed, st)
		if cb != nil {
			cb(p, st)
		}
	})
}

// handlePairedChanged implements §4.7's pairing outcomes: a true transition
// while a create_bond is outstanding succeeds it; a false transition after
// having been paired and while still connected is reported as bond loss
// rather than a fresh failure.
func (p *Peripheral) handlePairedChanged(paired bool) {
	p.mu.Lock()
	wasPaired := p.paired
	hadRequest := p.bondCB != nil
	connected := p.state == Connected
	p.paired = paired
	if paired {
		p.everPaired = true
	}
	p.mu.Unlock()

	if paired {
		cb := p.takeBondCB()
		p.deliver(func() {
			p.delegate.OnBondingSucceeded(p)
			p.publish(eventbus.KindBondingSucceeded, status.SUCCESS)
			if cb != nil {
				cb(p, status.SUCCESS)
			}
		})
		return
	}

	if hadRequest {
		p.failBond(status.BLUEZ_OPERATION_FAILED)
		return
	}

	if wasPaired && connected {
		p.deliver(func() {
			p.delegate.OnBondLost(p)
			p.publish(eventbus.KindBondLost, status.SUCCESS)
		})
	}
}
