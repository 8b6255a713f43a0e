// Package pruner drops journal records older than the retention window.
package pruner

import (
	"log/slog"
	"sync"
	"time"
)

// Store is the part of the journal the pruner needs.
type Store interface {
	PruneBefore(t time.Time) (int64, error)
	Touch() error
}

type Pruner struct {
	store     Store
	retention time.Duration
	interval  time.Duration
	now       func() time.Time
	stop      chan struct{}
	stopOnce  sync.Once
	wg        sync.WaitGroup
	logger    *slog.Logger
}

func New(store Store, retention time.Duration, logger *slog.Logger) *Pruner {
	return &Pruner{
		store:     store,
		retention: retention,
		interval:  10 * time.Minute,
		now:       time.Now,
		stop:      make(chan struct{}),
		logger:    logger,
	}
}

// NewWithClock creates a Pruner with an injectable clock and interval. Used in tests.
func NewWithClock(store Store, retention, interval time.Duration, logger *slog.Logger, now func() time.Time) *Pruner {
	p := New(store, retention, logger)
	p.interval = interval
	p.now = now
	return p
}

// Start prunes once immediately, then on every tick until Stop.
func (p *Pruner) Start() {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.prune()
		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()
		for {
			select {
			case <-p.stop:
				return
			case <-ticker.C:
				p.prune()
			}
		}
	}()
}

func (p *Pruner) Stop() {
	p.stopOnce.Do(func() { close(p.stop) })
	p.wg.Wait()
}

// RunOnce runs a single prune synchronously and returns the rows removed.
func (p *Pruner) RunOnce() int64 {
	return p.prune()
}

func (p *Pruner) prune() int64 {
	cutoff := p.now().Add(-p.retention)
	n, err := p.store.PruneBefore(cutoff)
	if err != nil {
		p.logger.Warn("pruner: prune failed", "err", err)
		return 0
	}
	if n > 0 {
		p.logger.Info("pruner: removed old decisions", "count", n, "before", cutoff.Format(time.RFC3339))
		if err := p.store.Touch(); err != nil {
			p.logger.Warn("pruner: touch failed", "err", err)
		}
	}
	return n
}
