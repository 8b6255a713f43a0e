package ui

import (
	"github.com/gdamore/tcell/v2"

	"github.com/PEI-HAZARDS/gatewatch/internal/decision"
	"github.com/PEI-HAZARDS/gatewatch/internal/feed"
)

// Theme colors for the TUI.
var (
	ColorBackground      = tcell.NewHexColor(0x1e1e2e)
	ColorBackgroundPanel = tcell.NewHexColor(0x181825)
	ColorBackgroundElem  = tcell.NewHexColor(0x313244)
	ColorPrimary         = tcell.NewHexColor(0x89b4fa) // blue
	ColorAccent          = tcell.NewHexColor(0xcba6f7) // mauve
	ColorText            = tcell.NewHexColor(0xcdd6f4)
	ColorTextMuted       = tcell.NewHexColor(0x6c7086)
	ColorSuccess         = tcell.NewHexColor(0xa6e3a1) // green
	ColorWarning         = tcell.NewHexColor(0xf9e2af) // yellow
	ColorError           = tcell.NewHexColor(0xf38ba8) // red
	ColorBorder          = tcell.NewHexColor(0x45475a)
)

const (
	IconLive    = "●"
	IconOffline = "○"
	IconHigh    = "▲"
	IconMedium  = "◆"
	IconInfo    = "·"
	IconHazard  = "☢"
)

func SeverityIcon(s feed.Severity) (string, tcell.Color) {
	switch s {
	case feed.SeverityHigh:
		return IconHigh, ColorError
	case feed.SeverityMedium:
		return IconMedium, ColorWarning
	default:
		return IconInfo, ColorTextMuted
	}
}

func DecisionColor(o decision.Outcome) tcell.Color {
	switch o {
	case decision.OutcomeAccepted:
		return ColorSuccess
	case decision.OutcomeRejected:
		return ColorError
	case decision.OutcomeManualReview:
		return ColorWarning
	default:
		return ColorTextMuted
	}
}

// ConnectionTag returns the tview-markup Live/Offline indicator.
func ConnectionTag(connected bool) string {
	if connected {
		return "[green]" + IconLive + " Live[-]"
	}
	return "[red]" + IconOffline + " Offline[-]"
}
