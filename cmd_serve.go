package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/nats-io/nats.go"
	"github.com/spf13/cobra"

	"github.com/PEI-HAZARDS/gatewatch/internal/db"
	"github.com/PEI-HAZARDS/gatewatch/internal/gateway"
	"github.com/PEI-HAZARDS/gatewatch/internal/pruner"
	"github.com/PEI-HAZARDS/gatewatch/internal/source"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the decision gateway (NATS to WebSocket relay)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		noJournal, _ := cmd.Flags().GetBool("no-journal")
		if p, _ := cmd.Flags().GetInt("port"); p > 0 {
			cfg.Serve.Port = p
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		var store *db.DB
		if !noJournal {
			s, err := openDB(cfg.DBPath)
			if err != nil {
				return err
			}
			defer s.Close()
			store = s
			p := pruner.New(store, cfg.Retention(), logger)
			p.Start()
			defer p.Stop()
		}
		if cfg.Serve.JWTSecret == "" {
			logger.Warn("serve: no JWT secret configured, gateway is unauthenticated")
		}

		srv := gateway.New(store, gateway.Config{
			Host:      cfg.Serve.Host,
			Port:      cfg.Serve.Port,
			JWTSecret: cfg.Serve.JWTSecret,
		}, logger)

		sub, err := source.NewNATSSubscriber(cfg.Serve.NATSURL,
			nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
				logger.Warn("serve: nats disconnected", "err", err)
			}),
			nats.ReconnectHandler(func(nc *nats.Conn) {
				logger.Info("serve: nats reconnected", "url", nc.ConnectedUrl())
			}),
		)
		if err != nil {
			return err
		}
		defer sub.Close()

		msgs, cancel, err := sub.Subscribe(source.Wildcard(cfg.Serve.Subject))
		if err != nil {
			return err
		}
		defer cancel()

		go func() {
			if err := gateway.Relay(ctx, cfg.Serve.Subject, msgs, srv, logger); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("serve: relay stopped", "err", err)
			}
		}()

		return srv.Serve(ctx)
	},
}

func init() {
	serveCmd.Flags().Int("port", 0, "listen port (overrides config)")
	serveCmd.Flags().Bool("no-journal", false, "do not journal relayed decisions")
}
