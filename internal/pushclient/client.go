// Package pushclient keeps a resilient connection to the decision gateway
// and fans parsed events out to registered handlers.
package pushclient

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/PEI-HAZARDS/gatewatch/internal/decision"
)

type State int32

const (
	StateIdle State = iota
	StateConnecting
	StateOpen
	StateClosing
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	default:
		return "idle"
	}
}

const (
	DefaultBaseDelay   = time.Second
	DefaultMaxAttempts = 5
	DefaultDialTimeout = 10 * time.Second
)

type MessageHandler = func(decision.Event)

// Options configures a Client. Zero values fall back to the defaults above,
// gorilla/websocket, time.AfterFunc and a discarding logger.
type Options struct {
	URL         string
	Header      http.Header
	BaseDelay   time.Duration
	MaxAttempts int
	DialTimeout time.Duration
	Dialer      Dialer
	// AfterFunc schedules reconnects. It must not invoke f synchronously.
	AfterFunc AfterFunc
	Logger    *slog.Logger
}

// Client owns at most one live connection to a single endpoint.
//
// Every connection attempt runs under a generation number. Disconnect and
// Connect bump the generation, which silences goroutines and timers that
// belong to an older connection: each handler call re-checks it first.
type Client struct {
	url         string
	header      http.Header
	baseDelay   time.Duration
	maxAttempts int
	dialTimeout time.Duration
	dialer      Dialer
	afterFunc   AfterFunc
	logger      *slog.Logger

	mu          sync.Mutex
	state       State
	gen         uint64
	conn        Conn
	attempts    int
	stopRetry   func() bool
	messages    registry[MessageHandler]
	connects    registry[func()]
	disconnects registry[func()]
}

func New(opts Options) *Client {
	c := &Client{
		url:         opts.URL,
		header:      opts.Header,
		baseDelay:   opts.BaseDelay,
		maxAttempts: opts.MaxAttempts,
		dialTimeout: opts.DialTimeout,
		dialer:      opts.Dialer,
		afterFunc:   opts.AfterFunc,
		logger:      opts.Logger,
	}
	if c.baseDelay <= 0 {
		c.baseDelay = DefaultBaseDelay
	}
	if c.maxAttempts <= 0 {
		c.maxAttempts = DefaultMaxAttempts
	}
	if c.dialTimeout <= 0 {
		c.dialTimeout = DefaultDialTimeout
	}
	if c.dialer == nil {
		c.dialer = NewWebsocketDialer(c.dialTimeout)
	}
	if c.afterFunc == nil {
		c.afterFunc = timeAfterFunc
	}
	if c.logger == nil {
		c.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return c
}

func (c *Client) URL() string {
	return c.url
}

// Connect starts a connection unless one is open, in flight, or closing.
// It never reports errors; failures surface as disconnect notifications.
func (c *Client) Connect() {
	c.mu.Lock()
	if c.state != StateIdle {
		state := c.state
		c.mu.Unlock()
		c.logger.Debug("pushclient: connect ignored", "url", c.url, "state", state.String())
		return
	}
	c.cancelRetryLocked()
	c.attempts = 0
	gen := c.beginLocked()
	c.mu.Unlock()

	go c.run(gen)
}

// Disconnect tears the connection down for good: it cancels any pending
// reconnect, closes the transport, notifies disconnect handlers once if the
// connection was open, and drops every registration.
func (c *Client) Disconnect() {
	c.mu.Lock()
	wasOpen := c.state == StateOpen
	c.gen++
	c.state = StateIdle
	c.attempts = c.maxAttempts
	c.cancelRetryLocked()
	conn := c.conn
	c.conn = nil
	var final []func()
	if wasOpen {
		final = c.disconnects.snapshot()
	}
	c.messages.clear()
	c.connects.clear()
	c.disconnects.clear()
	c.mu.Unlock()

	if conn != nil {
		conn.Close()
	}
	c.logger.Info("pushclient: disconnected", "url", c.url)
	for _, h := range final {
		c.safeCall("disconnect", h)
	}
}

func (c *Client) IsConnected() bool {
	return c.State() == StateOpen
}

func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Attempts returns the number of reconnects scheduled since the last
// successful open.
func (c *Client) Attempts() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.attempts
}

// Subscribers returns the total number of registered handlers.
func (c *Client) Subscribers() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.messages.len() + c.connects.len() + c.disconnects.len()
}

func (c *Client) OnMessage(h MessageHandler) (unsubscribe func()) {
	c.mu.Lock()
	token := c.messages.add(h)
	c.mu.Unlock()
	return c.unsubscriber(func() { c.messages.remove(token) })
}

func (c *Client) OnConnect(h func()) (unsubscribe func()) {
	c.mu.Lock()
	token := c.connects.add(h)
	c.mu.Unlock()
	return c.unsubscriber(func() { c.connects.remove(token) })
}

func (c *Client) OnDisconnect(h func()) (unsubscribe func()) {
	c.mu.Lock()
	token := c.disconnects.add(h)
	c.mu.Unlock()
	return c.unsubscriber(func() { c.disconnects.remove(token) })
}

func (c *Client) unsubscriber(remove func()) func() {
	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			remove()
			c.mu.Unlock()
		})
	}
}

func (c *Client) beginLocked() uint64 {
	c.gen++
	c.state = StateConnecting
	return c.gen
}

func (c *Client) cancelRetryLocked() {
	if c.stopRetry != nil {
		c.stopRetry()
		c.stopRetry = nil
	}
}

func (c *Client) current(gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gen == gen
}

func (c *Client) run(gen uint64) {
	ctx, cancel := context.WithTimeout(context.Background(), c.dialTimeout)
	conn, err := c.dialer.Dial(ctx, c.url, c.header)
	cancel()
	if err != nil {
		if c.current(gen) {
			c.logger.Warn("pushclient: dial failed", "url", c.url, "err", err)
		}
		c.closed(gen)
		return
	}

	c.mu.Lock()
	if c.gen != gen {
		c.mu.Unlock()
		conn.Close()
		return
	}
	c.state = StateOpen
	c.conn = conn
	c.attempts = 0
	connects := c.connects.snapshot()
	c.mu.Unlock()

	c.logger.Info("pushclient: connected", "url", c.url)
	for _, h := range connects {
		if !c.current(gen) {
			break
		}
		c.safeCall("connect", h)
	}

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if c.current(gen) {
				c.logger.Warn("pushclient: connection lost", "url", c.url, "err", err)
			}
			break
		}
		e, err := decision.Parse(data)
		if err != nil {
			c.logger.Warn("pushclient: dropping malformed frame", "url", c.url, "err", err)
			continue
		}
		c.deliver(gen, e)
	}
	conn.Close()
	c.closed(gen)
}

func (c *Client) deliver(gen uint64, e decision.Event) {
	c.mu.Lock()
	if c.gen != gen {
		c.mu.Unlock()
		return
	}
	handlers := c.messages.snapshot()
	c.mu.Unlock()

	for _, h := range handlers {
		if !c.current(gen) {
			return
		}
		c.safeCall("message", func() { h(e) })
	}
}

// closed handles the end of connection generation gen that was not caused
// by Disconnect: it notifies disconnect handlers and schedules a retry.
func (c *Client) closed(gen uint64) {
	c.mu.Lock()
	if c.gen != gen {
		c.mu.Unlock()
		return
	}
	c.state = StateClosing
	c.conn = nil
	handlers := c.disconnects.snapshot()
	c.mu.Unlock()

	for _, h := range handlers {
		if !c.current(gen) {
			break
		}
		c.safeCall("disconnect", h)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen != gen {
		return
	}
	c.state = StateIdle
	if c.attempts >= c.maxAttempts {
		c.logger.Info("pushclient: reconnect attempts exhausted", "url", c.url, "attempts", c.attempts)
		return
	}
	c.attempts++
	delay := Delay(c.baseDelay, c.attempts)
	c.logger.Info("pushclient: reconnect scheduled", "url", c.url, "attempt", c.attempts, "delay", delay)
	c.stopRetry = c.afterFunc(delay, func() { c.retry(gen) })
}

func (c *Client) retry(gen uint64) {
	c.mu.Lock()
	if c.gen != gen || c.state != StateIdle {
		c.mu.Unlock()
		return
	}
	c.stopRetry = nil
	next := c.beginLocked()
	c.mu.Unlock()

	go c.run(next)
}

func (c *Client) safeCall(kind string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("pushclient: handler panicked", "url", c.url, "handler", kind, "panic", r)
		}
	}()
	fn()
}
