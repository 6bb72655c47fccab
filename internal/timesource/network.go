// ABOUTME: Network association collaborator for the setup phase
// ABOUTME: Reports config-mode and association events through a handler
package timesource

import (
	"context"
	"fmt"
	"log"
	"net"

	"github.com/harperreed/dualclock/internal/clockerr"
)

// SetupHandler receives network setup events. Calls are synchronous and
// happen before the render loop starts.
type SetupHandler interface {
	// OnConfigMode fires when credentials are missing and a provisioning
	// portal named portal would be needed.
	OnConfigMode(portal string)
	// OnAssociated fires once the device has usable addresses.
	OnAssociated(ips []net.IP)
}

// Network is the association collaborator the time source depends on
type Network interface {
	Associate(ctx context.Context, portal string, h SetupHandler) error
	Connected() bool
}

// HostNetwork treats any up, non-loopback IPv4 interface as an association.
// It has no provisioning portal of its own.
type HostNetwork struct {
	localIPs func() ([]net.IP, error)
}

// NewHostNetwork creates a host-backed network collaborator
func NewHostNetwork() *HostNetwork {
	return &HostNetwork{localIPs: LocalIPs}
}

// Associate checks for usable interfaces and notifies h
func (n *HostNetwork) Associate(ctx context.Context, portal string, h SetupHandler) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	ips, err := n.localIPs()
	if err != nil {
		return clockerr.New("timesource.Associate", clockerr.KindNetworkUnavailable,
			fmt.Errorf("failed to list interfaces: %w", err))
	}

	if len(ips) == 0 {
		if h != nil {
			h.OnConfigMode(portal)
		}
		return clockerr.New("timesource.Associate", clockerr.KindNetworkUnavailable,
			fmt.Errorf("no usable interface; provision via %q", portal))
	}

	if h != nil {
		h.OnAssociated(ips)
	}
	return nil
}

// Connected reports whether a usable interface is present
func (n *HostNetwork) Connected() bool {
	ips, err := n.localIPs()
	if err != nil {
		log.Printf("Failed to list interfaces: %v", err)
		return false
	}
	return len(ips) > 0
}

// LocalIPs returns the IPv4 addresses of up, non-loopback interfaces
func LocalIPs() ([]net.IP, error) {
	var ips []net.IP

	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, err
	}

	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}

		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}

		for _, addr := range addrs {
			if ipnet, ok := addr.(*net.IPNet); ok && !ipnet.IP.IsLoopback() {
				if ipnet.IP.To4() != nil {
					ips = append(ips, ipnet.IP)
				}
			}
		}
	}

	return ips, nil
}
