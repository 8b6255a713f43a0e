package db_test

import (
	"testing"
	"time"

	"github.com/PEI-HAZARDS/gatewatch/internal/db"
	"github.com/PEI-HAZARDS/gatewatch/internal/decision"
)

func openStore(t *testing.T) *db.DB {
	t.Helper()
	store, err := db.Open(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })
	if err := store.Migrate(); err != nil {
		t.Fatalf("migrate failed: %v", err)
	}
	return store
}

func TestMigrateIsIdempotent(t *testing.T) {
	store := openStore(t)
	if err := store.Migrate(); err != nil {
		t.Fatalf("second migrate failed: %v", err)
	}
}

func event(plate string, at time.Time, outcome decision.Outcome) decision.Event {
	return decision.Event{
		Type:      decision.TypeDecisionUpdate,
		Timestamp: at,
		Payload: decision.Payload{
			GateID:       "1",
			LicensePlate: plate,
			UNNumber:     "1203",
			KemlerCode:   "33",
			Decision:     outcome,
			Alerts:       []string{"adr"},
		},
	}
}

func TestInsertAndRecentDecisions(t *testing.T) {
	store := openStore(t)
	base := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)

	for i, plate := range []string{"A", "B", "C"} {
		if _, err := store.InsertDecision("1", event(plate, base.Add(time.Duration(i)*time.Minute), decision.OutcomeRejected)); err != nil {
			t.Fatal(err)
		}
	}
	store.InsertDecision("2", event("OTHER", base, decision.OutcomeAccepted))

	recs, err := store.RecentDecisions("1", 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 2 {
		t.Fatalf("expected 2 records, got %d", len(recs))
	}
	if recs[0].Plate != "C" || recs[1].Plate != "B" {
		t.Errorf("expected newest first, got %s, %s", recs[0].Plate, recs[1].Plate)
	}
	if !recs[0].At.Equal(base.Add(2 * time.Minute)) {
		t.Errorf("at: got %v", recs[0].At)
	}
	if recs[0].Decision != decision.OutcomeRejected || recs[0].KemlerCode != "33" {
		t.Errorf("columns: %+v", recs[0])
	}

	e, err := recs[0].Event()
	if err != nil {
		t.Fatal(err)
	}
	if e.Payload.LicensePlate != "C" || len(e.Payload.Alerts) != 1 {
		t.Errorf("frame round trip: %+v", e.Payload)
	}

	all, _ := store.RecentDecisions("1", 0)
	if len(all) != 3 {
		t.Errorf("limit 0 should return all, got %d", len(all))
	}
}

func TestInsertWithoutTimestampUsesReceiveTime(t *testing.T) {
	store := openStore(t)
	recv := time.Date(2026, 5, 2, 10, 0, 0, 0, time.UTC)
	store.SetNow(func() time.Time { return recv })

	store.InsertDecision("1", event("X", time.Time{}, decision.OutcomeAccepted))
	recs, _ := store.RecentDecisions("1", 1)
	if len(recs) != 1 || !recs[0].At.Equal(recv) || !recs[0].ReceivedAt.Equal(recv) {
		t.Errorf("got %+v", recs)
	}
}

func TestPruneBefore(t *testing.T) {
	store := openStore(t)
	old := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	recent := old.Add(48 * time.Hour)

	store.SetNow(func() time.Time { return old })
	store.InsertDecision("1", event("OLD", time.Time{}, decision.OutcomeAccepted))
	store.SetNow(func() time.Time { return recent })
	store.InsertDecision("1", event("NEW", time.Time{}, decision.OutcomeAccepted))

	n, err := store.PruneBefore(old.Add(24 * time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("pruned: got %d want 1", n)
	}
	recs, _ := store.RecentDecisions("1", 0)
	if len(recs) != 1 || recs[0].Plate != "NEW" {
		t.Errorf("remaining: %+v", recs)
	}
}

func TestGates(t *testing.T) {
	store := openStore(t)
	at := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)
	store.InsertDecision("2", event("A", at, decision.OutcomeAccepted))
	store.InsertDecision("1", event("B", at, decision.OutcomeAccepted))
	store.InsertDecision("1", event("C", at.Add(time.Hour), decision.OutcomeAccepted))

	gates, err := store.Gates()
	if err != nil {
		t.Fatal(err)
	}
	if len(gates) != 2 || gates[0].Gate != "1" || gates[0].Count != 2 || gates[1].Count != 1 {
		t.Fatalf("got %+v", gates)
	}
	if !gates[0].Last.Equal(at.Add(time.Hour)) {
		t.Errorf("last: got %v", gates[0].Last)
	}
}

func TestMetaAndTouch(t *testing.T) {
	store := openStore(t)
	if v, err := store.GetMeta("missing"); err != nil || v != "" {
		t.Errorf("missing key: %q, %v", v, err)
	}
	store.SetMeta("k", "v1")
	store.SetMeta("k", "v2")
	if v, _ := store.GetMeta("k"); v != "v2" {
		t.Errorf("got %q want v2", v)
	}

	if store.LastModified() != 0 {
		t.Error("expected 0 before touch")
	}
	now := time.Date(2026, 5, 3, 0, 0, 0, 0, time.UTC)
	store.SetNow(func() time.Time { return now })
	if err := store.Touch(); err != nil {
		t.Fatal(err)
	}
	if store.LastModified() != now.UnixMilli() {
		t.Errorf("last modified: got %d", store.LastModified())
	}
}
