// ABOUTME: mDNS advertisement and browsing for relay nodes
// ABOUTME: Nodes advertise _resonix._tcp, monitors browse for it
package discovery

import (
	"context"
	"fmt"
	"log"
	"net"
	"strings"
	"time"

	"github.com/hashicorp/mdns"
)

// ServiceType is the advertised DNS-SD service
const ServiceType = "_resonix._tcp"

// Config holds discovery configuration
type Config struct {
	ServiceName string
	Port        int
	// TXT records, KEY=VALUE
	Info []string
}

// Manager handles mDNS operations
type Manager struct {
	config Config
	ctx    context.Context
	cancel context.CancelFunc
	nodes  chan *NodeInfo
}

// NodeInfo describes a discovered relay node
type NodeInfo struct {
	Name string
	Host string
	Port int
	Info map[string]string
}

// Addr returns host:port
func (n *NodeInfo) Addr() string {
	return net.JoinHostPort(n.Host, fmt.Sprint(n.Port))
}

// NewManager creates a discovery manager
func NewManager(config Config) *Manager {
	ctx, cancel := context.WithCancel(context.Background())

	return &Manager{
		config: config,
		ctx:    ctx,
		cancel: cancel,
		nodes:  make(chan *NodeInfo, 10),
	}
}

// Advertise announces this node until Stop is called
func (m *Manager) Advertise() error {
	ips, err := getLocalIPs()
	if err != nil {
		return fmt.Errorf("failed to get local IPs: %w", err)
	}

	service, err := mdns.NewMDNSService(
		m.config.ServiceName,
		ServiceType,
		"",
		"",
		m.config.Port,
		ips,
		m.config.Info,
	)
	if err != nil {
		return fmt.Errorf("failed to create service: %w", err)
	}

	server, err := mdns.NewServer(&mdns.Config{Zone: service})
	if err != nil {
		return fmt.Errorf("failed to create mdns server: %w", err)
	}

	log.Printf("Advertising mDNS service: %s on port %d (type: %s)", m.config.ServiceName, m.config.Port, ServiceType)

	go func() {
		<-m.ctx.Done()
		server.Shutdown()
	}()

	return nil
}

// Browse searches for nodes until Stop is called
func (m *Manager) Browse() {
	go m.browseLoop()
}

func (m *Manager) browseLoop() {
	for {
		select {
		case <-m.ctx.Done():
			return
		default:
		}

		entries := make(chan *mdns.ServiceEntry, 10)
		go func() {
			for entry := range entries {
				node := nodeFromEntry(entry)
				if node == nil {
					continue
				}
				log.Printf("Discovered node: %s at %s", node.Name, node.Addr())

				select {
				case m.nodes <- node:
				case <-m.ctx.Done():
					return
				}
			}
		}()

		params := &mdns.QueryParam{
			Service: ServiceType,
			Domain:  "local",
			Timeout: 3 * time.Second,
			Entries: entries,
		}
		if err := mdns.Query(params); err != nil {
			log.Printf("mDNS query failed: %v", err)
		}
		close(entries)
	}
}

// Nodes returns the channel of discovered nodes
func (m *Manager) Nodes() <-chan *NodeInfo {
	return m.nodes
}

// Stop stops advertising and browsing
func (m *Manager) Stop() {
	m.cancel()
}

// Lookup browses until the first node answers or ctx is done
func Lookup(ctx context.Context) (*NodeInfo, error) {
	m := NewManager(Config{})
	defer m.Stop()
	m.Browse()

	select {
	case node := <-m.Nodes():
		return node, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("no %s node found: %w", ServiceType, ctx.Err())
	}
}

func nodeFromEntry(entry *mdns.ServiceEntry) *NodeInfo {
	if entry == nil || entry.AddrV4 == nil {
		return nil
	}
	return &NodeInfo{
		Name: entry.Name,
		Host: entry.AddrV4.String(),
		Port: entry.Port,
		Info: parseTXT(entry.InfoFields),
	}
}

// parseTXT splits KEY=VALUE records; keys without a value map to ""
func parseTXT(fields []string) map[string]string {
	info := make(map[string]string, len(fields))
	for _, f := range fields {
		k, v, _ := strings.Cut(f, "=")
		if k != "" {
			info[k] = v
		}
	}
	return info
}

// getLocalIPs returns local IPv4 addresses
func getLocalIPs() ([]net.IP, error) {
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
			if ipnet, ok := addr.(*net.IPNet); ok && !ipnet.IP.IsLoopback() && ipnet.IP.To4() != nil {
				ips = append(ips, ipnet.IP)
			}
		}
	}

	return ips, nil
}
