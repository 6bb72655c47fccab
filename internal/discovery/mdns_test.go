// ABOUTME: Tests for mDNS discovery
// ABOUTME: Uses a fake query function in place of the network
package discovery

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/hashicorp/mdns"
)

func TestNewManager(t *testing.T) {
	mgr := NewManager(Config{ServiceName: "Test Clock", Port: 8930})
	if mgr == nil {
		t.Fatal("expected manager to be created")
	}
	if mgr.config.Browse != NTPService {
		t.Errorf("expected default browse %s, got %s", NTPService, mgr.config.Browse)
	}
}

func TestFindServer(t *testing.T) {
	mgr := NewManager(Config{})
	defer mgr.Stop()

	mgr.query = func(p *mdns.QueryParam) error {
		if p.Service != NTPService {
			t.Errorf("unexpected service %s", p.Service)
		}
		p.Entries <- &mdns.ServiceEntry{
			Name:   "timehost._ntp._udp.local.",
			Host:   "timehost.local.",
			AddrV4: net.ParseIP("192.168.1.10"),
			Port:   123,
		}
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	server, err := mgr.FindServer(ctx)
	if err != nil {
		t.Fatalf("FindServer failed: %v", err)
	}
	if server.Addr() != "192.168.1.10:123" {
		t.Errorf("unexpected address %s", server.Addr())
	}
}

func TestFindServerTimeout(t *testing.T) {
	mgr := NewManager(Config{})
	defer mgr.Stop()

	mgr.query = func(p *mdns.QueryParam) error {
		return errors.New("no multicast")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if _, err := mgr.FindServer(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
}

func TestToServerInfoFallbacks(t *testing.T) {
	info := toServerInfo(&mdns.ServiceEntry{Name: "x", Host: "ntp.local."})
	if info.Host != "ntp.local" || info.Port != 123 {
		t.Errorf("unexpected info %+v", info)
	}
}

func TestAdvertiseWithoutInterfaces(t *testing.T) {
	mgr := NewManager(Config{ServiceName: "clock", Port: 8930})
	defer mgr.Stop()

	mgr.localIPs = func() ([]net.IP, error) { return nil, errors.New("boom") }
	if err := mgr.Advertise(); err == nil {
		t.Error("expected error when interfaces cannot be listed")
	}
}
