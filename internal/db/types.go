package db

import (
	"time"

	"github.com/PEI-HAZARDS/gatewatch/internal/decision"
)

// Record is one journaled decision frame.
type Record struct {
	ID         int64
	Gate       string
	Type       decision.MessageType
	At         time.Time // event timestamp, or the receive time when the frame had none
	ReceivedAt time.Time
	Plate      string
	UNNumber   string
	KemlerCode string
	Decision   decision.Outcome
	Frame      []byte // canonical encoding of the event
}

// Event decodes the stored frame.
func (r Record) Event() (decision.Event, error) {
	return decision.Parse(r.Frame)
}

// GateCount is the number of journaled frames per gate.
type GateCount struct {
	Gate  string
	Count int
	Last  time.Time
}
