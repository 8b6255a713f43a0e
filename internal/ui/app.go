// Package ui renders a gate dashboard in the terminal.
package ui

import (
	"log/slog"
	"sync"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/PEI-HAZARDS/gatewatch/internal/feed"
	"github.com/PEI-HAZARDS/gatewatch/internal/pushclient"
)

// ClientHook is called for every client the app starts watching, before it
// connects. The returned function is called when the app stops watching it.
type ClientHook func(gate string, c *pushclient.Client) (unhook func())

type App struct {
	tapp   *tview.Application
	view   *View
	mgr    *pushclient.Manager
	limits feed.Limits
	hook   ClientHook
	logger *slog.Logger

	mu     sync.Mutex
	gate   string
	client *pushclient.Client
	dash   *feed.Dashboard
	detach func()
}

func NewApp(mgr *pushclient.Manager, limits feed.Limits, hook ClientHook, logger *slog.Logger) *App {
	a := &App{
		tapp:   tview.NewApplication(),
		view:   NewView(),
		mgr:    mgr,
		limits: limits,
		hook:   hook,
		logger: logger,
	}
	a.tapp.SetRoot(a.view, true).EnableMouse(false)
	a.tapp.SetInputCapture(a.handleKey)
	return a
}

// Run watches gate until the user quits.
func (a *App) Run(gate string) error {
	if err := a.SwitchGate(gate); err != nil {
		return err
	}

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		// Relative times drift without events, so repaint periodically.
		ticker := time.NewTicker(15 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				a.mu.Lock()
				dash := a.dash
				a.mu.Unlock()
				a.queueRender(dash)
			}
		}
	}()

	err := a.tapp.Run()
	a.mu.Lock()
	if a.detach != nil {
		a.detach()
		a.detach = nil
	}
	a.mu.Unlock()
	return err
}

// SwitchGate tears down the current gate's client and dashboard and starts
// watching gate with a fresh dashboard.
func (a *App) SwitchGate(gate string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if gate == a.gate && a.client != nil {
		return nil
	}
	if a.detach != nil {
		a.detach()
		a.detach = nil
	}

	c, err := a.mgr.Client(gate)
	if err != nil {
		return err
	}
	dash := feed.NewDashboard(gate, a.limits, a.logger)
	detach := dash.Attach(c)
	var unhook func()
	if a.hook != nil {
		unhook = a.hook(gate, c)
	}
	a.detach = func() {
		detach()
		if unhook != nil {
			unhook()
		}
	}
	dash.SetOnChange(func() { a.queueRender(dash) })

	a.gate, a.client, a.dash = gate, c, dash
	a.logger.Info("ui: watching gate", "gate", gate, "url", c.URL())
	c.Connect()
	a.queueRender(dash)
	return nil
}

// queueRender draws dash on the tview goroutine unless another gate has
// been selected in the meantime.
func (a *App) queueRender(dash *feed.Dashboard) {
	if dash == nil {
		return
	}
	snap := dash.Snapshot()
	a.tapp.QueueUpdateDraw(func() {
		a.mu.Lock()
		current := a.dash
		a.mu.Unlock()
		if current != dash {
			return
		}
		a.view.Render(snap, time.Now())
	})
}

func (a *App) handleKey(ev *tcell.EventKey) *tcell.EventKey {
	if gate, ok := gateKey(ev.Key(), ev.Rune()); ok {
		if err := a.SwitchGate(gate); err != nil {
			a.logger.Warn("ui: switch gate failed", "gate", gate, "err", err)
		}
		return nil
	}
	switch ev.Rune() {
	case 'q':
		a.tapp.Stop()
		return nil
	case 'r':
		a.mu.Lock()
		c := a.client
		a.mu.Unlock()
		if c != nil {
			a.logger.Info("ui: manual reconnect", "gate", a.gate)
			c.Connect()
		}
		return nil
	case 'x':
		a.mu.Lock()
		dash := a.dash
		a.mu.Unlock()
		if dash == nil {
			return nil
		}
		if toasts := dash.Snapshot().Toasts; len(toasts) > 0 {
			dash.DismissToast(toasts[0].ID)
		}
		return nil
	}
	return ev
}
