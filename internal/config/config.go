package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/PEI-HAZARDS/gatewatch/internal/applog"
)

type GatewayConfig struct {
	URL   string `json:"url" toml:"url"`
	Token string `json:"token" toml:"token"` // bearer JWT sent on the upgrade request
}

type ReconnectConfig struct {
	BaseDelay   string `json:"baseDelay" toml:"base_delay"`
	MaxAttempts int    `json:"maxAttempts" toml:"max_attempts"`
	DialTimeout string `json:"dialTimeout" toml:"dial_timeout"`
}

type FeedConfig struct {
	Detections int `json:"detections" toml:"detections"`
	Crops      int `json:"crops" toml:"crops"`
	Toasts     int `json:"toasts" toml:"toasts"`
}

type NotificationsConfig struct {
	Enabled bool   `json:"enabled" toml:"enabled"`
	Webhook string `json:"webhook" toml:"webhook"`
	NtfyURL string `json:"ntfy" toml:"ntfy"`
}

type ServeConfig struct {
	Host      string `json:"host" toml:"host"`
	Port      int    `json:"port" toml:"port"`
	NATSURL   string `json:"natsUrl" toml:"nats_url"`
	Subject   string `json:"subject" toml:"subject"` // prefix; gate ids are appended as the last token
	JWTSecret string `json:"jwtSecret" toml:"jwt_secret"`
	Retention string `json:"retention" toml:"retention"`
}

type Config struct {
	Gate          string              `json:"gate" toml:"gate"`
	Gateway       GatewayConfig       `json:"gateway" toml:"gateway"`
	Reconnect     ReconnectConfig     `json:"reconnect" toml:"reconnect"`
	Feed          FeedConfig          `json:"feed" toml:"feed"`
	Notifications NotificationsConfig `json:"notifications" toml:"notifications"`
	Serve         ServeConfig         `json:"serve" toml:"serve"`
	Record        bool                `json:"record" toml:"record"` // journal events received by watch
	DBPath        string              `json:"dbPath" toml:"db_path"`
	LogDir        string              `json:"logDir" toml:"log_dir"`
	LogLevel      string              `json:"logLevel" toml:"log_level"`
}

func baseDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".gatewatch")
}

func Defaults() Config {
	dir := baseDir()
	return Config{
		Gate:    "1",
		Gateway: GatewayConfig{URL: "ws://localhost:8000"},
		Reconnect: ReconnectConfig{
			BaseDelay:   "1s",
			MaxAttempts: 5,
			DialTimeout: "10s",
		},
		Feed: FeedConfig{Detections: 20, Crops: 6, Toasts: 5},
		Serve: ServeConfig{
			Host:      "0.0.0.0",
			Port:      8000,
			NATSURL:   "nats://127.0.0.1:4222",
			Subject:   "decisions",
			Retention: "168h",
		},
		Record:   true,
		DBPath:   filepath.Join(dir, "journal.db"),
		LogDir:   filepath.Join(dir, "logs"),
		LogLevel: "info",
	}
}

func DefaultPath() string {
	return filepath.Join(baseDir(), "config.json")
}

// Load reads path over the defaults. A missing file yields the defaults.
// Files ending in .toml are decoded as TOML, anything else as JSON.
func Load(path string) (Config, error) {
	cfg := Defaults()
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, err
	}
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		if _, err := toml.Decode(string(data), &cfg); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", path, err)
		}
		return cfg, nil
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

// ApplyEnv overrides fields from GATEWATCH_* environment variables.
func (c *Config) ApplyEnv() {
	c.Gateway.URL = envOrDefault("GATEWATCH_URL", c.Gateway.URL)
	c.Gate = envOrDefault("GATEWATCH_GATE", c.Gate)
	c.Gateway.Token = envOrDefault("GATEWATCH_TOKEN", c.Gateway.Token)
	c.Serve.NATSURL = envOrDefault("GATEWATCH_NATS_URL", c.Serve.NATSURL)
	c.Serve.JWTSecret = envOrDefault("GATEWATCH_JWT_SECRET", c.Serve.JWTSecret)
	c.LogLevel = envOrDefault("GATEWATCH_LOG_LEVEL", c.LogLevel)
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Gate) == "" {
		errs = append(errs, errors.New("gate is required"))
	}
	if c.Gateway.URL == "" {
		errs = append(errs, errors.New("gateway.url is required"))
	}
	for name, v := range map[string]string{
		"reconnect.baseDelay":   c.Reconnect.BaseDelay,
		"reconnect.dialTimeout": c.Reconnect.DialTimeout,
		"serve.retention":       c.Serve.Retention,
	} {
		if _, err := parsePositive(v); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}
	if c.Reconnect.MaxAttempts < 0 {
		errs = append(errs, errors.New("reconnect.maxAttempts must not be negative"))
	}
	if c.Feed.Detections < 1 || c.Feed.Crops < 1 || c.Feed.Toasts < 1 {
		errs = append(errs, errors.New("feed limits must be at least 1"))
	}
	if c.Serve.Port < 0 || c.Serve.Port > 65535 {
		errs = append(errs, fmt.Errorf("serve.port %d out of range", c.Serve.Port))
	}
	if !applog.ValidLevel(c.LogLevel) {
		errs = append(errs, fmt.Errorf("unknown log level %q", c.LogLevel))
	}
	return errors.Join(errs...)
}

func parsePositive(s string) (time.Duration, error) {
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, fmt.Errorf("must be positive, got %s", s)
	}
	return d, nil
}

// BaseDelay returns the parsed reconnect base delay, or 1s when invalid.
func (c Config) BaseDelay() time.Duration {
	return durationOr(c.Reconnect.BaseDelay, time.Second)
}

func (c Config) DialTimeout() time.Duration {
	return durationOr(c.Reconnect.DialTimeout, 10*time.Second)
}

func (c Config) Retention() time.Duration {
	return durationOr(c.Serve.Retention, 7*24*time.Hour)
}

func durationOr(s string, fallback time.Duration) time.Duration {
	d, err := parsePositive(s)
	if err != nil {
		return fallback
	}
	return d
}

func (c Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Serve.Host, c.Serve.Port)
}
