package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/PEI-HAZARDS/gatewatch/internal/applog"
	"github.com/PEI-HAZARDS/gatewatch/internal/config"
	"github.com/PEI-HAZARDS/gatewatch/internal/db"
	"github.com/PEI-HAZARDS/gatewatch/internal/decision"
	"github.com/PEI-HAZARDS/gatewatch/internal/feed"
	"github.com/PEI-HAZARDS/gatewatch/internal/notify"
	"github.com/PEI-HAZARDS/gatewatch/internal/pruner"
	"github.com/PEI-HAZARDS/gatewatch/internal/pushclient"
	"github.com/PEI-HAZARDS/gatewatch/internal/ui"
)

var _ feed.Source = (*pushclient.Client)(nil)

var watchCmd = &cobra.Command{
	Use:   "watch [gate]",
	Short: "Watch live decisions for a gate",
	Long: `Connects to the decision gateway and shows incoming decisions for a gate.
Uses the terminal dashboard when stdout is a terminal, one line per detection otherwise.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		plain, _ := cmd.Flags().GetBool("plain")
		noRecord, _ := cmd.Flags().GetBool("no-record")
		if u, _ := cmd.Flags().GetString("url"); u != "" {
			cfg.Gateway.URL = u
		}
		gate := cfg.Gate
		if len(args) == 1 {
			gate = args[0]
		}
		tui := !plain && term.IsTerminal(int(os.Stdout.Fd()))

		log := logger
		if tui && !fileLogged {
			// stderr would draw over the dashboard.
			log = applog.Discard()
		}

		var store *db.DB
		if cfg.Record && !noRecord {
			s, err := openDB(cfg.DBPath)
			if err != nil {
				return err
			}
			defer s.Close()
			store = s
			p := pruner.New(store, cfg.Retention(), log)
			p.Start()
			defer p.Stop()
		}
		notifier := notify.New(notify.Config{
			Enabled: cfg.Notifications.Enabled,
			Webhook: cfg.Notifications.Webhook,
			NtfyURL: cfg.Notifications.NtfyURL,
		}, log)

		mgr := pushclient.NewManager(cfg.Gateway.URL, clientOptions(cfg, log))
		defer mgr.Close()
		hook := recordHook(store, notifier, log)
		limits := feed.Limits{Detections: cfg.Feed.Detections, Crops: cfg.Feed.Crops, Toasts: cfg.Feed.Toasts}

		if tui {
			return ui.NewApp(mgr, limits, hook, log).Run(gate)
		}
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return watchPlain(ctx, cmd.OutOrStdout(), mgr, gate, limits, hook)
	},
}

func init() {
	watchCmd.Flags().Bool("plain", false, "print one line per detection instead of the dashboard")
	watchCmd.Flags().Bool("no-record", false, "do not journal received decisions")
	watchCmd.Flags().String("url", "", "gateway base URL (overrides config)")
}

func clientOptions(c config.Config, log *slog.Logger) pushclient.Options {
	opts := pushclient.Options{
		BaseDelay:   c.BaseDelay(),
		MaxAttempts: c.Reconnect.MaxAttempts,
		DialTimeout: c.DialTimeout(),
		Logger:      log,
	}
	if c.Gateway.Token != "" {
		opts.Header = http.Header{"Authorization": []string{"Bearer " + c.Gateway.Token}}
	}
	return opts
}

// recordHook journals and notifies every event a watched client receives.
func recordHook(store *db.DB, notifier *notify.Notifier, log *slog.Logger) ui.ClientHook {
	return func(gate string, c *pushclient.Client) func() {
		return c.OnMessage(func(e decision.Event) {
			if !e.Type.Foldable() {
				return
			}
			if store != nil {
				if _, err := store.InsertDecision(gate, e); err != nil {
					log.Warn("watch: journal insert failed", "gate", gate, "err", err)
				} else {
					store.Touch()
				}
			}
			go notifier.Notify(gate, e)
		})
	}
}

// watchPlain prints derived items for gate until ctx is done.
func watchPlain(ctx context.Context, w io.Writer, mgr *pushclient.Manager, gate string, limits feed.Limits, hook ui.ClientHook) error {
	c, err := mgr.Client(gate)
	if err != nil {
		return err
	}
	dash := feed.NewDashboard(gate, limits, logger)
	if hook != nil {
		defer hook(gate, c)()
	}
	defer c.OnMessage(func(e decision.Event) {
		for _, it := range dash.Fold(e) {
			fmt.Fprintln(w, ui.PlainLine(gate, it))
		}
	})()
	defer c.OnConnect(func() { fmt.Fprintf(w, "# gate %s live (%s)\n", gate, c.URL()) })()
	defer c.OnDisconnect(func() { fmt.Fprintf(w, "# gate %s offline\n", gate) })()

	c.Connect()
	<-ctx.Done()
	return nil
}
