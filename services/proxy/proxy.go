package proxy

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"sjsage522/scoutmcp/logger"
)

// ErrNoProxy is returned when no configured proxy is working
var ErrNoProxy = errors.New("no working proxies available")

// ProxyManager interface for managing proxies
type ProxyManager interface {
	UpdateProxies(ctx context.Context) error
	GetFastestProxy() (*ProxyInfo, error)
	GetTopProxies(n int) []ProxyInfo
}

// ProxyInfo holds proxy information with latency
type ProxyInfo struct {
	Server   string        `json:"server"`
	Scheme   string        `json:"scheme"`
	Host     string        `json:"host"`
	Username string        `json:"-"`
	Password string        `json:"-"`
	Latency  time.Duration `json:"latency"`
	LastTest time.Time     `json:"last_test"`
	Working  bool          `json:"working"`
}

// Address returns host:port
func (p ProxyInfo) Address() string {
	return p.Host
}

// URL returns the proxy URL including credentials when set
func (p ProxyInfo) URL() string {
	u := url.URL{Scheme: p.Scheme, Host: p.Host}
	if p.Username != "" {
		u.User = url.UserPassword(p.Username, p.Password)
	}
	return u.String()
}

// Manager health-checks a fixed list of configured proxies and keeps them
// ordered by latency.
type Manager struct {
	configured     []ProxyInfo
	proxies        []ProxyInfo
	mutex          sync.RWMutex
	lastUpdate     time.Time
	updateInterval time.Duration
	dialTimeout    time.Duration
	concurrency    int
	log            *logger.Logger
}

// NewManager parses the configured proxy URLs. Entries without a scheme are
// treated as http proxies.
func NewManager(servers []string, username, password string) (*Manager, error) {
	m := &Manager{
		updateInterval: 30 * time.Minute,
		dialTimeout:    5 * time.Second,
		concurrency:    10,
		log:            logger.ForProxy(),
	}
	for _, server := range servers {
		info, err := parseProxy(server)
		if err != nil {
			return nil, err
		}
		info.Username = username
		info.Password = password
		m.configured = append(m.configured, info)
	}
	return m, nil
}

func parseProxy(server string) (ProxyInfo, error) {
	raw := server
	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return ProxyInfo{}, fmt.Errorf("invalid proxy %q: %w", server, err)
	}
	if parsed.Hostname() == "" || parsed.Port() == "" {
		return ProxyInfo{}, fmt.Errorf("invalid proxy %q: host and port are required", server)
	}
	switch parsed.Scheme {
	case "http", "https", "socks5":
	default:
		return ProxyInfo{}, fmt.Errorf("invalid proxy %q: unsupported scheme %s", server, parsed.Scheme)
	}
	return ProxyInfo{
		Server:  parsed.Scheme + "://" + parsed.Host,
		Scheme:  parsed.Scheme,
		Host:    parsed.Host,
		Latency: time.Hour,
	}, nil
}

// Enabled reports whether any proxy is configured
func (m *Manager) Enabled() bool {
	return len(m.configured) > 0
}

// testProxyLatency tests the latency of a single proxy
func (m *Manager) testProxyLatency(ctx context.Context, proxy *ProxyInfo) {
	testStart := time.Now()
	dialer := net.Dialer{Timeout: m.dialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", proxy.Address())
	if err != nil {
		m.log.Debug().Str("proxy", proxy.Server).Err(err).Msg("TCP connection failed")
		proxy.Working = false
		proxy.Latency = time.Hour
		return
	}
	defer conn.Close()

	if proxy.Scheme == "socks5" && !testSOCKS5Handshake(conn, proxy.Username != "") {
		m.log.Debug().Str("proxy", proxy.Server).Msg("SOCKS5 handshake failed")
		proxy.Working = false
		proxy.Latency = time.Hour
		return
	}

	proxy.Working = true
	proxy.Latency = time.Since(testStart)
	proxy.LastTest = time.Now()

	m.log.Debug().
		Str("proxy", proxy.Server).
		Dur("latency", proxy.Latency).
		Msg("Proxy working")
}

// testSOCKS5Handshake performs a basic SOCKS5 greeting
func testSOCKS5Handshake(conn net.Conn, withAuth bool) bool {
	conn.SetDeadline(time.Now().Add(3 * time.Second))
	defer conn.SetDeadline(time.Time{})

	// [VER, NMETHODS, METHODS...]; 0x00 no auth, 0x02 username/password
	authReq := []byte{0x05, 0x01, 0x00}
	if withAuth {
		authReq = []byte{0x05, 0x02, 0x00, 0x02}
	}

	if _, err := conn.Write(authReq); err != nil {
		return false
	}

	// [VER, METHOD]
	authResp := make([]byte, 2)
	if _, err := conn.Read(authResp); err != nil {
		return false
	}

	return authResp[0] == 0x05 && (authResp[1] == 0x00 || (withAuth && authResp[1] == 0x02))
}

// UpdateProxies tests every configured proxy and keeps the working ones
func (m *Manager) UpdateProxies(ctx context.Context) error {
	if !m.Enabled() {
		return nil
	}

	candidates := make([]ProxyInfo, len(m.configured))
	copy(candidates, m.configured)

	var working []ProxyInfo
	var mu sync.Mutex
	var wg sync.WaitGroup
	semaphore := make(chan struct{}, m.concurrency)

	for i := range candidates {
		wg.Add(1)
		go func(proxy *ProxyInfo) {
			defer wg.Done()
			semaphore <- struct{}{}
			defer func() { <-semaphore }()

			m.testProxyLatency(ctx, proxy)
			if proxy.Working {
				mu.Lock()
				working = append(working, *proxy)
				mu.Unlock()
			}
		}(&candidates[i])
	}
	wg.Wait()

	sort.Slice(working, func(i, j int) bool {
		return working[i].Latency < working[j].Latency
	})

	m.mutex.Lock()
	m.proxies = working
	m.lastUpdate = time.Now()
	m.mutex.Unlock()

	m.log.Info().
		Int("configured", len(candidates)).
		Int("working", len(working)).
		Msg("Updated proxy list")

	if len(working) == 0 {
		return ErrNoProxy
	}
	return nil
}

// GetFastestProxy returns the fastest working proxy
func (m *Manager) GetFastestProxy() (*ProxyInfo, error) {
	m.mutex.RLock()
	stale := time.Since(m.lastUpdate) > m.updateInterval
	m.mutex.RUnlock()

	if stale {
		m.log.Debug().Msg("Proxy list is stale, attempting to update")
		if err := m.UpdateProxies(context.Background()); err != nil {
			m.log.Warn().Err(err).Msg("Failed to update proxies")
		}
	}

	m.mutex.RLock()
	defer m.mutex.RUnlock()

	if len(m.proxies) == 0 {
		return nil, ErrNoProxy
	}

	proxy := m.proxies[0]
	return &proxy, nil
}

// GetTopProxies returns the top N fastest proxies
func (m *Manager) GetTopProxies(n int) []ProxyInfo {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	if n > len(m.proxies) {
		n = len(m.proxies)
	}

	result := make([]ProxyInfo, n)
	copy(result, m.proxies[:n])
	return result
}

// Stats returns current proxy statistics
func (m *Manager) Stats() map[string]interface{} {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	stats := map[string]interface{}{
		"configured_proxies": len(m.configured),
		"working_proxies":    len(m.proxies),
		"last_update":        m.lastUpdate,
	}

	if len(m.proxies) > 0 {
		stats["fastest_latency"] = m.proxies[0].Latency.String()
		stats["fastest_proxy"] = m.proxies[0].Server
	}

	return stats
}
