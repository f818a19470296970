package netwatch

import (
	"context"
	"fmt"
	"net"
	"sync/atomic"
)

// Probe reports whether the network currently looks usable.
type Probe interface {
	Online(ctx context.Context) (bool, error)
}

// InterfaceProbe reports online when any non-loopback interface is up and
// has at least one address.
type InterfaceProbe struct {
	// Interfaces lists interfaces. Defaults to net.Interfaces.
	Interfaces func() ([]net.Interface, error)

	// Addrs lists an interface's addresses. Defaults to (*net.Interface).Addrs.
	Addrs func(net.Interface) ([]net.Addr, error)
}

// Online implements Probe.
func (p InterfaceProbe) Online(ctx context.Context) (bool, error) {
	list := p.Interfaces
	if list == nil {
		list = net.Interfaces
	}
	addrs := p.Addrs
	if addrs == nil {
		addrs = func(ifc net.Interface) ([]net.Addr, error) { return ifc.Addrs() }
	}

	ifaces, err := list()
	if err != nil {
		return false, fmt.Errorf("list interfaces: %w", err)
	}

	for _, ifc := range ifaces {
		if ifc.Flags&net.FlagUp == 0 || ifc.Flags&net.FlagLoopback != 0 {
			continue
		}
		as, err := addrs(ifc)
		if err != nil {
			// One broken interface does not make the host offline
			continue
		}
		if len(as) > 0 {
			return true, nil
		}
	}
	return false, nil
}

// Manual is a Probe whose answer is set explicitly.
// The zero value reports offline.
type Manual struct {
	online atomic.Bool
}

// NewManual creates a Manual probe with the given initial state.
func NewManual(online bool) *Manual {
	m := &Manual{}
	m.online.Store(online)
	return m
}

// Set changes the reported state.
func (m *Manual) Set(online bool) {
	m.online.Store(online)
}

// Online implements Probe.
func (m *Manual) Online(context.Context) (bool, error) {
	return m.online.Load(), nil
}
