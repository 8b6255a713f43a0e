package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/PEI-HAZARDS/gatewatch/internal/applog"
	"github.com/PEI-HAZARDS/gatewatch/internal/config"
	"github.com/PEI-HAZARDS/gatewatch/internal/db"
)

var (
	configPath string
	logLevel   string

	cfg        config.Config
	logger     *slog.Logger
	logCloser  interface{ Close() error }
	fileLogged bool
)

func openDB(path string) (*db.DB, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return nil, fmt.Errorf("create data directory: %w", err)
		}
	}
	store, err := db.Open(path)
	if err != nil {
		return nil, err
	}
	if err := store.Migrate(); err != nil {
		store.Close()
		return nil, fmt.Errorf("migrate journal: %w", err)
	}
	return store, nil
}

// loadConfig reads the config file, applies env and flag overrides and
// validates the result.
func loadConfig(path, level string) (config.Config, error) {
	c, err := config.Load(path)
	if err != nil {
		return c, fmt.Errorf("load config: %w", err)
	}
	c.ApplyEnv()
	if level != "" {
		c.LogLevel = level
	}
	if err := c.Validate(); err != nil {
		return c, fmt.Errorf("invalid config: %w", err)
	}
	return c, nil
}

var rootCmd = &cobra.Command{
	Use:           "gatewatch",
	Short:         "Live gate decision dashboard and gateway",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = loadConfig(configPath, logLevel)
		if err != nil {
			return err
		}

		l, closer, err := applog.Init(applog.InitConfig{Dir: cfg.LogDir, Level: cfg.LogLevel})
		if err != nil {
			fmt.Fprintf(os.Stderr, "warning: could not init log file: %v\n", err)
			logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: applog.ParseLevel(cfg.LogLevel)}))
			return nil
		}
		logger, logCloser, fileLogged = l, closer, true
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logCloser != nil {
			logCloser.Close()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", config.DefaultPath(), "config file (.json or .toml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")

	rootCmd.AddGroup(
		&cobra.Group{ID: "operate", Title: "Operator Commands:"},
		&cobra.Group{ID: "admin", Title: "Gateway Commands:"},
	)
	for _, c := range []*cobra.Command{watchCmd, historyCmd} {
		c.GroupID = "operate"
		rootCmd.AddCommand(c)
	}
	for _, c := range []*cobra.Command{serveCmd, tokenCmd, publishCmd} {
		c.GroupID = "admin"
		rootCmd.AddCommand(c)
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
