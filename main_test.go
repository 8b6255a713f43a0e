package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"

	"github.com/PEI-HAZARDS/gatewatch/internal/applog"
	"github.com/PEI-HAZARDS/gatewatch/internal/config"
	"github.com/PEI-HAZARDS/gatewatch/internal/db"
	"github.com/PEI-HAZARDS/gatewatch/internal/decision"
)

func TestLoadConfigAppliesFlagAndValidates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	os.WriteFile(path, []byte(`{"gate":"5"}`), 0o644)

	c, err := loadConfig(path, "debug")
	if err != nil {
		t.Fatal(err)
	}
	if c.Gate != "5" || c.LogLevel != "debug" {
		t.Errorf("got gate %q level %q", c.Gate, c.LogLevel)
	}

	if _, err := loadConfig(path, "chatty"); err == nil {
		t.Error("expected validation error for unknown level")
	}
}

func TestClientOptions(t *testing.T) {
	c := config.Defaults()
	c.Gateway.Token = "abc"
	c.Reconnect.BaseDelay = "2s"
	opts := clientOptions(c, applog.Discard())
	if opts.BaseDelay != 2*time.Second || opts.MaxAttempts != 5 {
		t.Errorf("got %+v", opts)
	}
	if got := opts.Header.Get("Authorization"); got != "Bearer abc" {
		t.Errorf("authorization: %q", got)
	}

	c.Gateway.Token = ""
	if clientOptions(c, applog.Discard()).Header != nil {
		t.Error("expected no header without token")
	}
}

func TestEventFromFlags(t *testing.T) {
	cmd := &cobra.Command{}
	cmd.Flags().AddFlagSet(publishCmd.Flags())
	cmd.Flags().Set("plate", "AA-00-BB")
	cmd.Flags().Set("decision", "Manual-Review")
	cmd.Flags().Set("alert", "late")
	cmd.Flags().Set("alert", "no booking")
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	e, err := eventFromFlags(cmd, "3", now)
	if err != nil {
		t.Fatal(err)
	}
	if e.Type != decision.TypeDecisionUpdate || e.Payload.GateID != "3" || e.Payload.LicensePlate != "AA-00-BB" {
		t.Errorf("got %+v", e)
	}
	if e.Payload.Decision != decision.OutcomeManualReview {
		t.Errorf("decision: %q", e.Payload.Decision)
	}
	if len(e.Payload.Alerts) != 2 {
		t.Errorf("alerts: %v", e.Payload.Alerts)
	}

	cmd.Flags().Set("decision", "maybe")
	if _, err := eventFromFlags(cmd, "3", now); err == nil {
		t.Error("expected error for unknown decision")
	}
}

func TestPrintRecords(t *testing.T) {
	store, err := openDB(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()
	now := time.Now()
	store.InsertDecision("1", decision.Event{
		Type:      decision.TypeDecisionUpdate,
		Timestamp: now.Add(-time.Hour),
		Payload:   decision.Payload{LicensePlate: "AA-00-BB", UNNumber: "1203", Decision: decision.OutcomeRejected},
	})

	recs, _ := store.RecentDecisions("1", 10)
	var buf bytes.Buffer
	printRecords(&buf, recs, now)
	out := buf.String()
	for _, want := range []string{"AA-00-BB", "1203", "REJECTED", "1 hour ago"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}

	buf.Reset()
	printRecordsJSON(&buf, recs)
	if e, err := decision.Parse(bytes.TrimSpace(buf.Bytes())); err != nil || e.Payload.LicensePlate != "AA-00-BB" {
		t.Errorf("json line: %q (%v)", buf.String(), err)
	}

	buf.Reset()
	printGates(&buf, []db.GateCount{{Gate: "1", Count: 1200, Last: now}}, now)
	if !strings.Contains(buf.String(), "1,200") {
		t.Errorf("gates: %q", buf.String())
	}
}
