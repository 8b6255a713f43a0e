// Package feed folds decision events into the bounded lists a gate
// dashboard renders.
package feed

import (
	"fmt"
	"strings"
	"time"

	"github.com/PEI-HAZARDS/gatewatch/internal/decision"
)

type Severity int

const (
	SeverityInfo Severity = iota
	SeverityMedium
	SeverityHigh
)

func (s Severity) String() string {
	switch s {
	case SeverityHigh:
		return "high"
	case SeverityMedium:
		return "medium"
	default:
		return "info"
	}
}

type Kind string

const (
	KindPlate  Kind = "plate"
	KindHazard Kind = "hazard"
)

// Item is one derived detection row.
type Item struct {
	ID       string
	Kind     Kind
	Key      string // license plate or UN number
	TruckID  string
	Gate     string
	ImageURL string
	Decision decision.Outcome
	Severity Severity
	Alerts   []string
	At       time.Time
	Message  string
}

type Crop struct {
	ID     string
	ItemID string
	Kind   Kind
	URL    string
	Label  string
	At     time.Time
}

type Toast struct {
	ID       string
	ItemID   string
	Severity Severity
	Title    string
	Body     string
	At       time.Time
}

// SeverityOf classifies an event: hazards and rejections are high, manual
// review or any alert is medium, everything else is info.
func SeverityOf(e decision.Event) Severity {
	p := e.Payload
	switch {
	case p.HasHazard(), p.Decision == decision.OutcomeRejected:
		return SeverityHigh
	case p.Decision == decision.OutcomeManualReview, len(p.Alerts) > 0:
		return SeverityMedium
	default:
		return SeverityInfo
	}
}

// Derive returns at most one plate item and at most one hazard item for e.
// now is used when the event carries no timestamp.
func Derive(e decision.Event, newID func() string, now time.Time) []Item {
	if !e.Type.Foldable() {
		return nil
	}
	p := e.Payload
	at := e.At(now)
	sev := SeverityOf(e)

	var items []Item
	if p.LicensePlate != "" {
		items = append(items, Item{
			ID:       newID(),
			Kind:     KindPlate,
			Key:      p.LicensePlate,
			TruckID:  p.TruckID,
			Gate:     p.GateID,
			ImageURL: p.LicenseCropURL,
			Decision: p.Decision,
			Severity: sev,
			Alerts:   p.Alerts,
			At:       at,
			Message:  plateMessage(p),
		})
	}
	if p.HasHazard() {
		items = append(items, Item{
			ID:       newID(),
			Kind:     KindHazard,
			Key:      p.UNNumber,
			TruckID:  p.TruckID,
			Gate:     p.GateID,
			ImageURL: p.HazardCropURL,
			Decision: p.Decision,
			Severity: SeverityHigh,
			Alerts:   p.Alerts,
			At:       at,
			Message:  hazardMessage(p),
		})
	}
	return items
}

func plateMessage(p decision.Payload) string {
	msg := fmt.Sprintf("Truck %s: %s", p.LicensePlate, p.Decision.Label())
	if p.Reason != "" {
		msg += " (" + p.Reason + ")"
	}
	return msg
}

func hazardMessage(p decision.Payload) string {
	var parts []string
	if p.UNNumber != "" {
		parts = append(parts, "UN "+p.UNNumber)
	}
	if p.KemlerCode != "" {
		parts = append(parts, "Kemler "+p.KemlerCode)
	}
	if len(parts) == 0 {
		parts = append(parts, "unidentified")
	}
	msg := "Dangerous goods: " + strings.Join(parts, ", ")
	if p.LicensePlate != "" {
		msg += " on " + p.LicensePlate
	}
	return msg
}
