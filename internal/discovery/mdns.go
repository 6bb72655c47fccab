// ABOUTME: mDNS service discovery for the clock
// ABOUTME: Browses for local NTP servers and advertises the frame mirror
package discovery

import (
	"context"
	"fmt"
	"log"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/harperreed/dualclock/internal/timesource"
	"github.com/hashicorp/mdns"
)

// Service types
const (
	NTPService    = "_ntp._udp"
	MirrorService = "_dualclock._tcp"
)

// Config holds discovery configuration
type Config struct {
	ServiceName string // Instance name for advertisement
	Port        int    // Mirror port to advertise
	Browse      string // Service type to browse, NTPService if empty
}

// Manager handles mDNS operations
type Manager struct {
	config  Config
	ctx     context.Context
	cancel  context.CancelFunc
	servers chan *ServerInfo

	// seams for tests
	query    func(*mdns.QueryParam) error
	localIPs func() ([]net.IP, error)
}

// ServerInfo describes a discovered service
type ServerInfo struct {
	Name string
	Host string
	Port int
}

// Addr returns host:port
func (s *ServerInfo) Addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// NewManager creates a discovery manager
func NewManager(config Config) *Manager {
	if config.Browse == "" {
		config.Browse = NTPService
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Manager{
		config:   config,
		ctx:      ctx,
		cancel:   cancel,
		servers:  make(chan *ServerInfo, 10),
		query:    mdns.Query,
		localIPs: timesource.LocalIPs,
	}
}

// Advertise announces the frame mirror via mDNS until Stop
func (m *Manager) Advertise() error {
	ips, err := m.localIPs()
	if err != nil {
		return fmt.Errorf("failed to get local IPs: %w", err)
	}

	service, err := mdns.NewMDNSService(
		m.config.ServiceName,
		MirrorService,
		"",
		"",
		m.config.Port,
		ips,
		[]string{"path=/ws"},
	)
	if err != nil {
		return fmt.Errorf("failed to create service: %w", err)
	}

	server, err := mdns.NewServer(&mdns.Config{Zone: service})
	if err != nil {
		return fmt.Errorf("failed to create mdns server: %w", err)
	}

	log.Printf("Advertising mDNS service: %s on port %d (type: %s)", m.config.ServiceName, m.config.Port, MirrorService)

	go func() {
		<-m.ctx.Done()
		server.Shutdown()
	}()

	return nil
}

// Browse searches for services in the background until Stop
func (m *Manager) Browse() {
	go m.browseLoop()
}

// browseLoop queries repeatedly, publishing each answer
func (m *Manager) browseLoop() {
	for {
		select {
		case <-m.ctx.Done():
			return
		default:
		}

		entries := make(chan *mdns.ServiceEntry, 10)
		done := make(chan struct{})

		go func() {
			defer close(done)
			for entry := range entries {
				server := toServerInfo(entry)
				log.Printf("Discovered %s: %s at %s", m.config.Browse, server.Name, server.Addr())

				select {
				case m.servers <- server:
				case <-m.ctx.Done():
				}
			}
		}()

		params := &mdns.QueryParam{
			Service: m.config.Browse,
			Domain:  "local",
			Timeout: 3 * time.Second,
			Entries: entries,
		}

		if err := m.query(params); err != nil {
			log.Printf("mDNS query failed: %v", err)
		}
		close(entries)
		<-done

		// Failed queries return at once; don't spin.
		select {
		case <-m.ctx.Done():
			return
		case <-time.After(time.Second):
		}
	}
}

func toServerInfo(entry *mdns.ServiceEntry) *ServerInfo {
	host := strings.TrimSuffix(entry.Host, ".")
	if entry.AddrV4 != nil {
		host = entry.AddrV4.String()
	}
	port := entry.Port
	if port == 0 {
		port = 123
	}
	return &ServerInfo{Name: entry.Name, Host: host, Port: port}
}

// Servers returns the channel of discovered services
func (m *Manager) Servers() <-chan *ServerInfo {
	return m.servers
}

// FindServer browses until the first service answers or ctx ends
func (m *Manager) FindServer(ctx context.Context) (*ServerInfo, error) {
	m.Browse()

	select {
	case server := <-m.servers:
		return server, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("no %s service found: %w", m.config.Browse, ctx.Err())
	}
}

// Stop stops browsing and advertising
func (m *Manager) Stop() {
	m.cancel()
}
