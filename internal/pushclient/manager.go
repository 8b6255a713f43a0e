package pushclient

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
)

// Manager hands out the client for one gate at a time. Asking for a
// different gate fully disconnects the previous client first.
type Manager struct {
	baseURL string
	opts    Options

	mu      sync.Mutex
	clients map[string]*Client
}

// NewManager returns a manager that builds clients for baseURL using opts
// as a template (opts.URL is ignored).
func NewManager(baseURL string, opts Options) *Manager {
	return &Manager{
		baseURL: baseURL,
		opts:    opts,
		clients: make(map[string]*Client),
	}
}

// Client returns the client for gate, creating it if needed. It does not
// connect; callers register handlers and then call Connect.
func (m *Manager) Client(gate string) (*Client, error) {
	m.mu.Lock()
	if c, ok := m.clients[gate]; ok {
		m.mu.Unlock()
		return c, nil
	}
	endpoint, err := EndpointURL(m.baseURL, gate)
	if err != nil {
		m.mu.Unlock()
		return nil, err
	}
	var stale []*Client
	for g, old := range m.clients {
		stale = append(stale, old)
		delete(m.clients, g)
	}
	opts := m.opts
	opts.URL = endpoint
	c := New(opts)
	m.clients[gate] = c
	m.mu.Unlock()

	// The new client is not connected yet, so tearing the old one down here
	// keeps the close-before-open order.
	for _, old := range stale {
		old.Disconnect()
	}
	return c, nil
}

// Active returns the current gate and its client, or "" and nil.
func (m *Manager) Active() (string, *Client) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for g, c := range m.clients {
		return g, c
	}
	return "", nil
}

// Close disconnects every client.
func (m *Manager) Close() {
	m.mu.Lock()
	clients := m.clients
	m.clients = make(map[string]*Client)
	m.mu.Unlock()
	for _, c := range clients {
		c.Disconnect()
	}
}

// EndpointURL returns <base>/ws/decisions/<gate>, mapping http(s) to ws(s).
func EndpointURL(base, gate string) (string, error) {
	if strings.TrimSpace(gate) == "" {
		return "", errors.New("pushclient: empty gate id")
	}
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("pushclient: parse base url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("pushclient: unsupported scheme %q", u.Scheme)
	}
	escaped := strings.TrimRight(u.EscapedPath(), "/") + "/ws/decisions/" + url.PathEscape(gate)
	path, err := url.PathUnescape(escaped)
	if err != nil {
		return "", fmt.Errorf("pushclient: build path: %w", err)
	}
	u.Path, u.RawPath = path, escaped
	return u.String(), nil
}
