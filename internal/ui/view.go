package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/PEI-HAZARDS/gatewatch/internal/feed"
)

// View is the single dashboard screen: header, detections table, crops and
// toasts side panels, footer.
type View struct {
	*tview.Flex
	header *tview.TextView
	table  *tview.Table
	crops  *tview.TextView
	toasts *tview.TextView
	footer *tview.TextView
}

func NewView() *View {
	v := &View{}

	v.header = tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignLeft)
	v.header.SetBackgroundColor(ColorBackgroundPanel)

	v.table = tview.NewTable().
		SetSelectable(false, false).
		SetFixed(1, 0)
	v.table.SetBackgroundColor(ColorBackground)

	v.crops = tview.NewTextView().
		SetDynamicColors(true).
		SetWrap(false)
	v.crops.SetBackgroundColor(ColorBackground)
	v.crops.SetBorder(true).SetTitle(" Crops ").SetBorderColor(ColorBorder)

	v.toasts = tview.NewTextView().
		SetDynamicColors(true).
		SetWrap(true)
	v.toasts.SetBackgroundColor(ColorBackground)
	v.toasts.SetBorder(true).SetTitle(" Alerts ").SetBorderColor(ColorBorder)

	v.footer = tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignLeft)
	v.footer.SetBackgroundColor(ColorBackgroundPanel)
	v.footer.SetText("[green]1-9[-] gate  [green]r[-] reconnect  [green]x[-] dismiss alert  [green]q[-] quit")

	side := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(v.toasts, 0, 1, false).
		AddItem(v.crops, 0, 1, false)

	separator := tview.NewBox().SetBackgroundColor(ColorBorder)

	content := tview.NewFlex().SetDirection(tview.FlexColumn).
		AddItem(v.table, 0, 65, true).
		AddItem(separator, 1, 0, false).
		AddItem(side, 0, 35, false)

	v.Flex = tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(v.header, 1, 0, false).
		AddItem(content, 0, 1, true).
		AddItem(v.footer, 1, 0, false)
	return v
}

// Render replaces the screen contents with snap. Must run on the tview
// goroutine.
func (v *View) Render(snap feed.Snapshot, now time.Time) {
	v.header.SetText(headerText(snap))
	v.renderTable(snap.Detections, now)
	v.crops.SetText(strings.Join(cropLines(snap.Crops, now), "\n"))
	v.toasts.SetText(strings.Join(toastLines(snap.Toasts, now), "\n"))
}

var columns = []string{"WHEN", "", "KIND", "PLATE / UN", "TRUCK", "DECISION", "ALERTS"}

func (v *View) renderTable(items []feed.Item, now time.Time) {
	v.table.Clear()
	for col, title := range columns {
		v.table.SetCell(0, col, tview.NewTableCell(title).
			SetTextColor(ColorPrimary).
			SetBackgroundColor(ColorBackgroundElem).
			SetSelectable(false))
	}
	if len(items) == 0 {
		v.table.SetCell(1, 0, tview.NewTableCell("waiting for decisions...").
			SetTextColor(ColorTextMuted))
		return
	}
	for i, it := range items {
		icon, sevColor := SeverityIcon(it.Severity)
		cells := []*tview.TableCell{
			tview.NewTableCell(humanize.RelTime(it.At, now, "ago", "from now")).SetTextColor(ColorTextMuted),
			tview.NewTableCell(icon).SetTextColor(sevColor),
			tview.NewTableCell(kindLabel(it.Kind)).SetTextColor(ColorAccent),
			tview.NewTableCell(orDash(it.Key)).SetTextColor(ColorText),
			tview.NewTableCell(orDash(it.TruckID)).SetTextColor(ColorTextMuted),
			tview.NewTableCell(it.Decision.Label()).SetTextColor(DecisionColor(it.Decision)),
			tview.NewTableCell(strings.Join(it.Alerts, "; ")).SetTextColor(ColorWarning).SetExpansion(1),
		}
		for col, c := range cells {
			v.table.SetCell(i+1, col, c.SetBackgroundColor(ColorBackground))
		}
	}
}

func headerText(snap feed.Snapshot) string {
	high := 0
	for _, it := range snap.Detections {
		if it.Severity == feed.SeverityHigh {
			high++
		}
	}
	return fmt.Sprintf("[blue]GATEWATCH[-]   gate [::b]%s[::-]   %s   %d recent  [red]%d high[-]",
		tview.Escape(snap.Gate), ConnectionTag(snap.Connected), len(snap.Detections), high)
}

func cropLines(crops []feed.Crop, now time.Time) []string {
	if len(crops) == 0 {
		return []string{"[gray]no crops yet[-]"}
	}
	lines := make([]string, 0, len(crops))
	for _, c := range crops {
		lines = append(lines, fmt.Sprintf("%s %s [gray]%s[-]\n  [blue]%s[-]",
			kindLabel(c.Kind), tview.Escape(orDash(c.Label)),
			humanize.RelTime(c.At, now, "ago", "from now"), tview.Escape(c.URL)))
	}
	return lines
}

func toastLines(toasts []feed.Toast, now time.Time) []string {
	if len(toasts) == 0 {
		return []string{"[gray]no alerts[-]"}
	}
	lines := make([]string, 0, len(toasts))
	for _, t := range toasts {
		color := "yellow"
		if t.Severity == feed.SeverityHigh {
			color = "red"
		}
		lines = append(lines, fmt.Sprintf("[%s::b]%s[-::-] [gray]%s[-]\n  %s",
			color, tview.Escape(t.Title), humanize.RelTime(t.At, now, "ago", "from now"), tview.Escape(t.Body)))
	}
	return lines
}

// PlainLine renders one derived item for non-interactive output.
func PlainLine(gate string, it feed.Item) string {
	line := fmt.Sprintf("%s gate=%s %-6s %-6s %s", it.At.Format(time.RFC3339), gate, it.Severity, it.Kind, it.Message)
	if len(it.Alerts) > 0 {
		line += " alerts=" + strings.Join(it.Alerts, ";")
	}
	return line
}

func kindLabel(k feed.Kind) string {
	if k == feed.KindHazard {
		return IconHazard + " hazard"
	}
	return "plate"
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// gateKey maps '1'..'9' to a gate id.
func gateKey(key tcell.Key, r rune) (string, bool) {
	if key == tcell.KeyRune && r >= '1' && r <= '9' {
		return string(r), true
	}
	return "", false
}
