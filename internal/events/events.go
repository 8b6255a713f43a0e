// Package events defines the fan-out seam between decision sources and
// connected dashboard clients.
package events

// Frame is one canonical decision frame addressed to a gate.
type Frame struct {
	Gate string
	Data []byte
}

// Broadcaster sends frames to the clients watching a gate.
// A nil Broadcaster is safe to use: Broadcast becomes a no-op.
type Broadcaster interface {
	Broadcast(f Frame)
}

// Send delivers f through b when b is non-nil.
func Send(b Broadcaster, f Frame) {
	if b != nil {
		b.Broadcast(f)
	}
}

// Func adapts a plain function to a Broadcaster.
type Func func(Frame)

func (fn Func) Broadcast(f Frame) { fn(f) }
