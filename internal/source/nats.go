// Package source carries decision frames over NATS subjects of the form
// <prefix>.<gate>.
package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/PEI-HAZARDS/gatewatch/internal/decision"
)

// DefaultPrefix is the subject prefix decision frames are published under.
const DefaultPrefix = "decisions"

// Message is one frame received from a subject.
type Message struct {
	Subject string
	Data    []byte
}

// Subject returns the subject frames for gate are published on.
func Subject(prefix, gate string) string {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return prefix + "." + gate
}

// Wildcard returns the subject matching every gate under prefix.
func Wildcard(prefix string) string {
	return Subject(prefix, "*")
}

// GateOf extracts the gate token from subject. ok is false when subject is
// not directly under prefix.
func GateOf(prefix, subject string) (gate string, ok bool) {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	rest, found := strings.CutPrefix(subject, prefix+".")
	if !found || rest == "" || strings.Contains(rest, ".") {
		return "", false
	}
	return rest, true
}

// NATSPublisher publishes decision frames.
type NATSPublisher struct {
	conn *nats.Conn
}

func NewNATSPublisher(url string, opts ...nats.Option) (*NATSPublisher, error) {
	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("connecting to NATS at %s: %w", url, err)
	}
	return &NATSPublisher{conn: nc}, nil
}

// Publish sends v on subject. []byte values are sent as is, decision
// events in the canonical envelope, anything else as JSON.
func (p *NATSPublisher) Publish(ctx context.Context, subject string, v any) error {
	var data []byte
	var err error
	switch x := v.(type) {
	case []byte:
		data = x
	case decision.Event:
		data, err = decision.Encode(x)
	default:
		data, err = json.Marshal(v)
	}
	if err != nil {
		return fmt.Errorf("marshaling frame: %w", err)
	}
	if err := p.conn.Publish(subject, data); err != nil {
		return fmt.Errorf("publishing to %s: %w", subject, err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		return p.conn.FlushTimeout(time.Until(deadline))
	}
	return p.conn.Flush()
}

func (p *NATSPublisher) Close() error {
	p.conn.Close()
	return nil
}

// NATSSubscriber receives decision frames and reconnects on its own.
type NATSSubscriber struct {
	conn *nats.Conn
}

// NewNATSSubscriber connects with unlimited reconnects. Extra options
// (e.g. disconnect/reconnect handlers) are appended.
func NewNATSSubscriber(url string, opts ...nats.Option) (*NATSSubscriber, error) {
	defaults := []nats.Option{
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
	}
	nc, err := nats.Connect(url, append(defaults, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("connecting to NATS at %s: %w", url, err)
	}
	return &NATSSubscriber{conn: nc}, nil
}

// ErrClosed is returned by Subscribe after Close.
var ErrClosed = errors.New("subscriber closed")

// Subscribe returns a channel of frames for subject (wildcards allowed).
// The channel holds 64 frames; when it is full new frames are dropped so
// the NATS client never blocks. cancel unsubscribes and closes the channel.
func (s *NATSSubscriber) Subscribe(subject string) (<-chan Message, func(), error) {
	if s.conn.IsClosed() {
		return nil, nil, ErrClosed
	}
	ch := make(chan Message, 64)

	var (
		mu     sync.Mutex
		closed bool
		once   sync.Once
	)

	sub, err := s.conn.Subscribe(subject, func(msg *nats.Msg) {
		mu.Lock()
		defer mu.Unlock()
		if closed {
			return
		}
		select {
		case ch <- Message{Subject: msg.Subject, Data: msg.Data}:
		default:
		}
	})
	if err != nil {
		close(ch)
		return nil, nil, fmt.Errorf("subscribing to %s: %w", subject, err)
	}
	// The subscription must reach the server before frames published on
	// other connections are routed to it.
	if err := s.conn.Flush(); err != nil {
		_ = sub.Unsubscribe()
		close(ch)
		return nil, nil, fmt.Errorf("flushing subscription: %w", err)
	}

	cancel := func() {
		once.Do(func() {
			_ = sub.Unsubscribe()
			mu.Lock()
			closed = true
			close(ch)
			mu.Unlock()
		})
	}
	return ch, cancel, nil
}

func (s *NATSSubscriber) Connected() bool {
	return s.conn.IsConnected()
}

func (s *NATSSubscriber) Close() error {
	s.conn.Close()
	return nil
}
