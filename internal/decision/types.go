package decision

import (
	"fmt"
	"strings"
	"time"
)

type MessageType string

const (
	TypeDecisionUpdate MessageType = "decision_update"
	TypeDetection      MessageType = "detection"
	TypeHeartbeat      MessageType = "heartbeat"
)

// Foldable reports whether events of this type carry detection data.
func (t MessageType) Foldable() bool {
	return t == TypeDecisionUpdate || t == TypeDetection
}

type Outcome string

const (
	OutcomeNone         Outcome = ""
	OutcomeAccepted     Outcome = "accepted"
	OutcomeRejected     Outcome = "rejected"
	OutcomeManualReview Outcome = "manual_review"
)

// ParseOutcome normalises s ("MANUAL_REVIEW", "manual-review", "Accepted")
// into one of the known outcomes. An empty string is OutcomeNone.
func ParseOutcome(s string) (Outcome, error) {
	norm := strings.ToLower(strings.TrimSpace(s))
	norm = strings.NewReplacer("-", "_", " ", "_").Replace(norm)
	switch Outcome(norm) {
	case OutcomeNone, OutcomeAccepted, OutcomeRejected, OutcomeManualReview:
		return Outcome(norm), nil
	}
	return OutcomeNone, fmt.Errorf("unknown decision %q", s)
}

func (o Outcome) Label() string {
	switch o {
	case OutcomeAccepted:
		return "ACCEPTED"
	case OutcomeRejected:
		return "REJECTED"
	case OutcomeManualReview:
		return "MANUAL REVIEW"
	default:
		return "-"
	}
}

// Payload is the body of a decision_update or detection frame. Every field
// is optional.
type Payload struct {
	GateID         string   `json:"gate_id,omitempty"`
	TruckID        string   `json:"truck_id,omitempty"`
	LicensePlate   string   `json:"license_plate,omitempty"`
	LicenseCropURL string   `json:"license_crop_url,omitempty"`
	HazardCropURL  string   `json:"hazard_crop_url,omitempty"`
	UNNumber       string   `json:"un_number,omitempty"`
	KemlerCode     string   `json:"kemler_code,omitempty"`
	Decision       Outcome  `json:"decision,omitempty"`
	Alerts         []string `json:"alerts,omitempty"`
	Reason         string   `json:"reason,omitempty"`
}

// HasHazard reports whether any dangerous-goods field is populated.
func (p Payload) HasHazard() bool {
	return p.UNNumber != "" || p.KemlerCode != "" || p.HazardCropURL != ""
}

// Event is an immutable decision update as delivered to subscribers.
// Timestamp is zero when the frame carried none.
type Event struct {
	Type      MessageType
	Timestamp time.Time
	Payload   Payload
}

// At returns the event timestamp, or fallback when the frame had none.
func (e Event) At(fallback time.Time) time.Time {
	if e.Timestamp.IsZero() {
		return fallback
	}
	return e.Timestamp
}
