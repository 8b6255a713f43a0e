package feed

import (
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/PEI-HAZARDS/gatewatch/internal/decision"
)

// Limits caps each recent list of a Dashboard.
type Limits struct {
	Detections int
	Crops      int
	Toasts     int
}

func DefaultLimits() Limits {
	return Limits{Detections: 20, Crops: 6, Toasts: 5}
}

// Source is the subscription side of a push client.
type Source interface {
	OnMessage(h func(decision.Event)) (unsubscribe func())
	OnConnect(h func()) (unsubscribe func())
	OnDisconnect(h func()) (unsubscribe func())
	IsConnected() bool
}

// Snapshot is an immutable view of a Dashboard.
type Snapshot struct {
	Gate       string
	Connected  bool
	Detections []Item
	Crops      []Crop
	Toasts     []Toast
}

// Dashboard is the in-memory view model of one gate.
type Dashboard struct {
	gate       string
	detections *Recent[Item]
	crops      *Recent[Crop]
	toasts     *Recent[Toast]
	connected  atomic.Bool
	newID      func() string
	now        func() time.Time
	logger     *slog.Logger

	mu       sync.Mutex
	onChange func()
}

func NewDashboard(gate string, limits Limits, logger *slog.Logger) *Dashboard {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Dashboard{
		gate:       gate,
		detections: NewRecent(limits.Detections, func(it Item) string { return it.ID }),
		crops:      NewRecent(limits.Crops, func(c Crop) string { return c.ID }),
		toasts:     NewRecent(limits.Toasts, func(t Toast) string { return t.ID }),
		newID:      uuid.NewString,
		now:        time.Now,
		logger:     logger,
	}
}

// SetClock replaces the time source. Used in tests only.
func (d *Dashboard) SetClock(fn func() time.Time) {
	d.now = fn
}

func (d *Dashboard) Gate() string {
	return d.gate
}

// SetOnChange registers fn to run after every fold, dismissal or
// connectivity change.
func (d *Dashboard) SetOnChange(fn func()) {
	d.mu.Lock()
	d.onChange = fn
	d.mu.Unlock()
}

func (d *Dashboard) changed() {
	d.mu.Lock()
	fn := d.onChange
	d.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// Attach subscribes d to src and returns a function that unsubscribes it.
func (d *Dashboard) Attach(src Source) (detach func()) {
	d.connected.Store(src.IsConnected())
	unsubs := []func(){
		src.OnMessage(func(e decision.Event) { d.Fold(e) }),
		src.OnConnect(func() { d.setConnected(true) }),
		src.OnDisconnect(func() { d.setConnected(false) }),
	}
	return func() {
		for _, u := range unsubs {
			u()
		}
	}
}

func (d *Dashboard) setConnected(v bool) {
	if d.connected.Swap(v) != v {
		d.logger.Debug("feed: connectivity changed", "gate", d.gate, "connected", v)
		d.changed()
	}
}

func (d *Dashboard) Connected() bool {
	return d.connected.Load()
}

// Fold derives items from e and merges them into the recent lists. It
// returns the derived items, newest last.
func (d *Dashboard) Fold(e decision.Event) []Item {
	items := Derive(e, d.newID, d.now())
	if len(items) == 0 {
		return nil
	}

	var crops []Crop
	var toasts []Toast
	for _, it := range items {
		if it.ImageURL != "" {
			crops = append(crops, Crop{
				ID:     d.newID(),
				ItemID: it.ID,
				Kind:   it.Kind,
				URL:    it.ImageURL,
				Label:  it.Key,
				At:     it.At,
			})
		}
		if it.Severity >= SeverityMedium {
			toasts = append(toasts, Toast{
				ID:       d.newID(),
				ItemID:   it.ID,
				Severity: it.Severity,
				Title:    toastTitle(it),
				Body:     it.Message,
				At:       it.At,
			})
		}
	}

	d.detections.Prepend(items...)
	d.crops.Prepend(crops...)
	d.toasts.Prepend(toasts...)
	d.changed()
	return items
}

func toastTitle(it Item) string {
	if it.Kind == KindHazard {
		return "Hazard detected"
	}
	switch it.Decision {
	case decision.OutcomeRejected:
		return "Access rejected"
	case decision.OutcomeManualReview:
		return "Manual review needed"
	}
	return "Alert"
}

// DismissToast removes the toast with the given id.
func (d *Dashboard) DismissToast(id string) bool {
	if !d.toasts.Remove(id) {
		return false
	}
	d.changed()
	return true
}

func (d *Dashboard) Snapshot() Snapshot {
	return Snapshot{
		Gate:       d.gate,
		Connected:  d.connected.Load(),
		Detections: d.detections.Items(),
		Crops:      d.crops.Items(),
		Toasts:     d.toasts.Items(),
	}
}
