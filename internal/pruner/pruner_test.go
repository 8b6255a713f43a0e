package pruner_test

import (
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/PEI-HAZARDS/gatewatch/internal/db"
	"github.com/PEI-HAZARDS/gatewatch/internal/decision"
	"github.com/PEI-HAZARDS/gatewatch/internal/pruner"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeStore struct {
	mu      sync.Mutex
	cutoffs []time.Time
	touched int
	err     error
	removed int64
}

func (f *fakeStore) PruneBefore(t time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cutoffs = append(f.cutoffs, t)
	return f.removed, f.err
}

func (f *fakeStore) Touch() error {
	f.mu.Lock()
	f.touched++
	f.mu.Unlock()
	return nil
}

func (f *fakeStore) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.cutoffs)
}

func TestRunOnceUsesRetentionCutoff(t *testing.T) {
	now := time.Date(2026, 6, 10, 12, 0, 0, 0, time.UTC)
	store := &fakeStore{removed: 3}
	p := pruner.NewWithClock(store, 24*time.Hour, time.Hour, discardLogger(), func() time.Time { return now })

	if n := p.RunOnce(); n != 3 {
		t.Errorf("removed: got %d want 3", n)
	}
	if len(store.cutoffs) != 1 || !store.cutoffs[0].Equal(now.Add(-24*time.Hour)) {
		t.Errorf("cutoffs: %v", store.cutoffs)
	}
	if store.touched != 1 {
		t.Errorf("expected touch after removal, got %d", store.touched)
	}
}

func TestRunOnceNothingToRemoveDoesNotTouch(t *testing.T) {
	store := &fakeStore{}
	p := pruner.New(store, time.Hour, discardLogger())
	p.RunOnce()
	if store.touched != 0 {
		t.Error("expected no touch when nothing was removed")
	}
}

func TestRunOnceLogsWarnOnError(t *testing.T) {
	var buf strings.Builder
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelWarn}))
	p := pruner.New(&fakeStore{err: errors.New("disk full")}, time.Hour, logger)
	p.RunOnce()
	if !strings.Contains(buf.String(), "disk full") {
		t.Errorf("expected warn log with error, got: %q", buf.String())
	}
}

func TestStartPrunesImmediatelyAndStops(t *testing.T) {
	store := &fakeStore{}
	p := pruner.NewWithClock(store, time.Hour, 5*time.Millisecond, discardLogger(), time.Now)
	p.Start()

	deadline := time.Now().Add(2 * time.Second)
	for store.calls() < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	p.Stop()
	p.Stop()

	if store.calls() < 2 {
		t.Errorf("expected repeated prunes, got %d", store.calls())
	}
	after := store.calls()
	time.Sleep(20 * time.Millisecond)
	if store.calls() != after {
		t.Error("pruner kept running after Stop")
	}
}

func TestPrunesJournal(t *testing.T) {
	store, err := db.Open(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()
	store.Migrate()

	now := time.Date(2026, 6, 10, 12, 0, 0, 0, time.UTC)
	store.SetNow(func() time.Time { return now.Add(-72 * time.Hour) })
	store.InsertDecision("1", decision.Event{Type: decision.TypeDetection})
	store.SetNow(func() time.Time { return now })
	store.InsertDecision("1", decision.Event{Type: decision.TypeDetection})

	p := pruner.NewWithClock(store, 48*time.Hour, time.Hour, discardLogger(), func() time.Time { return now })
	if n := p.RunOnce(); n != 1 {
		t.Errorf("removed: got %d want 1", n)
	}
	if store.LastModified() != now.UnixMilli() {
		t.Error("expected journal touched")
	}
}
