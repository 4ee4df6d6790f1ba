// ABOUTME: mDNS discovery of live speech gateways
// ABOUTME: Browses the local network when no live URL is configured
package discovery

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/mdns"
)

// ErrNoGateway is returned when browsing finds nothing before the timeout
var ErrNoGateway = errors.New("no speech gateway found")

// Config holds discovery configuration
type Config struct {
	// Service is the mDNS service type, e.g. _greetcast-speech._tcp
	Service string
	Timeout time.Duration
}

// Gateway describes a discovered live speech gateway
type Gateway struct {
	Name string
	Host string
	Port int
	Path string
	TLS  bool
}

// URL returns the websocket URL of the gateway
func (g Gateway) URL() string {
	scheme := "ws"
	if g.TLS {
		scheme = "wss"
	}
	return scheme + "://" + net.JoinHostPort(g.Host, strconv.Itoa(g.Port)) + g.Path
}

// Manager handles mDNS browsing
type Manager struct {
	config   Config
	ctx      context.Context
	cancel   context.CancelFunc
	gateways chan Gateway

	query func(*mdns.QueryParam) error
}

// NewManager creates a discovery manager
func NewManager(config Config) *Manager {
	if config.Timeout <= 0 {
		config.Timeout = 3 * time.Second
	}
	ctx, cancel := context.WithCancel(context.Background())

	return &Manager{
		config:   config,
		ctx:      ctx,
		cancel:   cancel,
		gateways: make(chan Gateway, 10),
		query:    mdns.Query,
	}
}

// Browse searches for gateways until Stop is called
func (m *Manager) Browse() {
	go m.browseLoop()
}

// Find browses once and returns the first gateway found
func (m *Manager) Find(ctx context.Context) (Gateway, error) {
	ctx, cancel := context.WithTimeout(ctx, m.config.Timeout)
	defer cancel()

	found := make(chan Gateway, 1)
	entries := make(chan *mdns.ServiceEntry, 10)
	go func() {
		for entry := range entries {
			gw, ok := fromEntry(entry)
			if !ok {
				continue
			}
			select {
			case found <- gw:
			default:
			}
		}
	}()

	go func() {
		defer close(entries)
		if err := m.query(m.params(entries)); err != nil {
			log.Printf("mDNS query failed: %v", err)
		}
	}()

	select {
	case gw := <-found:
		log.Printf("Discovered speech gateway: %s at %s", gw.Name, gw.URL())
		return gw, nil
	case <-ctx.Done():
		return Gateway{}, fmt.Errorf("browsing %s: %w", m.config.Service, ErrNoGateway)
	}
}

// browseLoop continuously browses for gateways
func (m *Manager) browseLoop() {
	for {
		select {
		case <-m.ctx.Done():
			close(m.gateways)
			return
		default:
		}

		entries := make(chan *mdns.ServiceEntry, 10)
		done := make(chan struct{})

		go func() {
			defer close(done)
			for entry := range entries {
				gw, ok := fromEntry(entry)
				if !ok {
					continue
				}

				log.Printf("Discovered speech gateway: %s at %s", gw.Name, gw.URL())

				select {
				case m.gateways <- gw:
				case <-m.ctx.Done():
				}
			}
		}()

		if err := m.query(m.params(entries)); err != nil {
			log.Printf("mDNS query failed: %v", err)
		}
		close(entries)
		<-done
	}
}

func (m *Manager) params(entries chan *mdns.ServiceEntry) *mdns.QueryParam {
	return &mdns.QueryParam{
		Service:             m.config.Service,
		Domain:              "local",
		Timeout:             m.config.Timeout,
		Entries:             entries,
		DisableIPv6:         true,
		WantUnicastResponse: false,
	}
}

// Gateways returns the channel of discovered gateways; closed after Stop
func (m *Manager) Gateways() <-chan Gateway {
	return m.gateways
}

// Stop stops the discovery manager
func (m *Manager) Stop() {
	m.cancel()
}

// fromEntry reads host, port and the path/tls TXT records
func fromEntry(entry *mdns.ServiceEntry) (Gateway, bool) {
	if entry == nil || entry.Port == 0 {
		return Gateway{}, false
	}

	host := ""
	switch {
	case entry.AddrV4 != nil:
		host = entry.AddrV4.String()
	case entry.AddrV6 != nil:
		host = entry.AddrV6.String()
	default:
		host = strings.TrimSuffix(entry.Host, ".")
	}
	if host == "" {
		return Gateway{}, false
	}

	gw := Gateway{Name: entry.Name, Host: host, Port: entry.Port, Path: "/"}
	for _, field := range entry.InfoFields {
		key, value, ok := strings.Cut(field, "=")
		if !ok {
			continue
		}
		switch key {
		case "path":
			if !strings.HasPrefix(value, "/") {
				value = "/" + value
			}
			gw.Path = value
		case "tls":
			gw.TLS = value == "1" || value == "true"
		}
	}
	return gw, true
}
