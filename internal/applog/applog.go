// Package applog configures process-wide structured logging backed by
// date-stamped files.
package applog

import (
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

const (
	DefaultPrefix  = "gatewatch"
	DefaultMaxDays = 7
)

// DailyRotator is an io.Writer that appends to <prefix>-YYYY-MM-DD.log in
// dir and switches files when the calendar day changes. Only the newest
// maxDays files are kept.
type DailyRotator struct {
	mu      sync.Mutex
	dir     string
	prefix  string
	date    string
	file    *os.File
	maxDays int
	now     func() time.Time
}

func NewDailyRotator(dir, prefix string, maxDays int) *DailyRotator {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	if maxDays < 1 {
		maxDays = DefaultMaxDays
	}
	return &DailyRotator{
		dir:     dir,
		prefix:  prefix,
		maxDays: maxDays,
		now:     time.Now,
	}
}

// SetNow replaces the time source. Used in tests only.
func (r *DailyRotator) SetNow(fn func() time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.now = fn
}

// FileName returns the file a write on day t goes to.
func (r *DailyRotator) FileName(t time.Time) string {
	return filepath.Join(r.dir, r.prefix+"-"+t.Format("2006-01-02")+".log")
}

func (r *DailyRotator) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	if day := now.Format("2006-01-02"); day != r.date {
		if err := r.openDay(now); err != nil {
			return 0, err
		}
	}
	return r.file.Write(p)
}

func (r *DailyRotator) openDay(t time.Time) error {
	if r.file != nil {
		r.file.Close()
		r.file = nil
	}
	f, err := os.OpenFile(r.FileName(t), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	r.file = f
	r.date = t.Format("2006-01-02")
	r.prune()
	return nil
}

// prune relies on the date suffix sorting lexically in day order.
func (r *DailyRotator) prune() {
	matches, err := filepath.Glob(filepath.Join(r.dir, r.prefix+"-*.log"))
	if err != nil || len(matches) <= r.maxDays {
		return
	}
	sort.Strings(matches)
	for _, f := range matches[:len(matches)-r.maxDays] {
		os.Remove(f)
	}
}

func (r *DailyRotator) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.file == nil {
		return nil
	}
	err := r.file.Close()
	r.file = nil
	r.date = ""
	return err
}

type InitConfig struct {
	Dir     string
	Level   string
	Prefix  string
	MaxDays int
	// Tee, when set, also receives every record (e.g. os.Stderr for serve).
	Tee io.Writer
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// Init installs a text slog handler over a DailyRotator as slog.Default and
// points the stdlib log package at the same file. When the log dir cannot
// be created and a Tee is configured, logging falls back to the Tee alone
// and the error is returned alongside the usable logger.
// The returned io.Closer must be closed by the caller.
func Init(cfg InitConfig) (*slog.Logger, io.Closer, error) {
	opts := &slog.HandlerOptions{Level: ParseLevel(cfg.Level)}

	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		err = fmt.Errorf("create log dir: %w", err)
		if cfg.Tee == nil {
			return nil, nil, err
		}
		logger := slog.New(slog.NewTextHandler(cfg.Tee, opts))
		slog.SetDefault(logger)
		return logger, nopCloser{}, err
	}

	rotator := NewDailyRotator(cfg.Dir, cfg.Prefix, cfg.MaxDays)
	var w io.Writer = rotator
	if cfg.Tee != nil {
		w = io.MultiWriter(rotator, cfg.Tee)
	}
	logger := slog.New(slog.NewTextHandler(w, opts))
	slog.SetDefault(logger)
	log.SetOutput(w)
	log.SetFlags(0)
	return logger, rotator, nil
}

// Discard returns a logger that drops everything.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// ParseLevel maps debug|info|warn|warning|error to a slog.Level, case
// insensitively. Anything else is info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ValidLevel reports whether s is empty or a level ParseLevel recognises.
func ValidLevel(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "debug", "info", "warn", "warning", "error":
		return true
	}
	return false
}
