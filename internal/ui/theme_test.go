package ui

import (
	"strings"
	"testing"

	"github.com/PEI-HAZARDS/gatewatch/internal/decision"
	"github.com/PEI-HAZARDS/gatewatch/internal/feed"
)

func TestSeverityIconsDistinct(t *testing.T) {
	hi, hiColor := SeverityIcon(feed.SeverityHigh)
	med, medColor := SeverityIcon(feed.SeverityMedium)
	info, infoColor := SeverityIcon(feed.SeverityInfo)
	if hi == med || med == info {
		t.Error("expected distinct icons per severity")
	}
	if hiColor == medColor || medColor == infoColor {
		t.Error("expected distinct colors per severity")
	}
}

func TestDecisionColor(t *testing.T) {
	if DecisionColor(decision.OutcomeRejected) != ColorError {
		t.Error("rejected should be error colored")
	}
	if DecisionColor(decision.OutcomeNone) != ColorTextMuted {
		t.Error("missing decision should be muted")
	}
}

func TestConnectionTag(t *testing.T) {
	if !strings.Contains(ConnectionTag(true), "Live") || !strings.Contains(ConnectionTag(false), "Offline") {
		t.Error("unexpected connection tags")
	}
}
