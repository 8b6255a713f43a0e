package gateway

import (
	"context"
	"log/slog"

	"github.com/PEI-HAZARDS/gatewatch/internal/decision"
	"github.com/PEI-HAZARDS/gatewatch/internal/events"
	"github.com/PEI-HAZARDS/gatewatch/internal/source"
)

// Relay forwards frames from msgs to b, addressing each to the gate named
// by the last token of its subject under prefix. Frames that do not parse
// or arrive on foreign subjects are dropped with a warning. Relay returns
// when msgs is closed (nil) or ctx is done (ctx.Err()).
func Relay(ctx context.Context, prefix string, msgs <-chan source.Message, b events.Broadcaster, logger *slog.Logger) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case m, ok := <-msgs:
			if !ok {
				return nil
			}
			gate, ok := source.GateOf(prefix, m.Subject)
			if !ok {
				logger.Warn("gateway: frame on unexpected subject", "subject", m.Subject)
				continue
			}
			if _, err := decision.Parse(m.Data); err != nil {
				logger.Warn("gateway: dropping malformed frame", "gate", gate, "err", err)
				continue
			}
			events.Send(b, events.Frame{Gate: gate, Data: m.Data})
		}
	}
}
