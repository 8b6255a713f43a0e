package applog_test

import (
	"bytes"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/PEI-HAZARDS/gatewatch/internal/applog"
)

func day(d int) func() time.Time {
	return func() time.Time { return time.Date(2026, 3, d, 9, 30, 0, 0, time.UTC) }
}

func TestDailyRotatorWritesDatedFile(t *testing.T) {
	dir := t.TempDir()
	r := applog.NewDailyRotator(dir, "", 7)
	defer r.Close()
	r.SetNow(day(4))

	if _, err := r.Write([]byte("first\n")); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(filepath.Join(dir, "gatewatch-2026-03-04.log"))
	if err != nil {
		t.Fatalf("expected default-prefixed file: %v", err)
	}
	if string(data) != "first\n" {
		t.Errorf("contents: %q", data)
	}
}

func TestDailyRotatorSwitchesAndPrunes(t *testing.T) {
	dir := t.TempDir()
	r := applog.NewDailyRotator(dir, "gw", 2)

	for d := 1; d <= 4; d++ {
		r.SetNow(day(d))
		if _, err := r.Write([]byte("line\n")); err != nil {
			t.Fatal(err)
		}
	}
	r.Close()

	matches, _ := filepath.Glob(filepath.Join(dir, "gw-*.log"))
	if len(matches) != 2 {
		t.Fatalf("expected 2 files kept, got %v", matches)
	}
	if filepath.Base(matches[0]) != "gw-2026-03-03.log" || filepath.Base(matches[1]) != "gw-2026-03-04.log" {
		t.Errorf("wrong files kept: %v", matches)
	}
}

func TestDailyRotatorReopensAfterClose(t *testing.T) {
	dir := t.TempDir()
	r := applog.NewDailyRotator(dir, "gw", 7)
	r.SetNow(day(5))
	r.Write([]byte("a\n"))
	r.Close()
	r.Write([]byte("b\n"))
	r.Close()

	data, _ := os.ReadFile(r.FileName(day(5)()))
	if string(data) != "a\nb\n" {
		t.Errorf("expected append across close, got %q", data)
	}
}

func TestInitRedirectsStdlibAndTees(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")
	var tee bytes.Buffer
	logger, closer, err := applog.Init(applog.InitConfig{Dir: dir, Level: "debug", Tee: &tee})
	if err != nil {
		t.Fatal(err)
	}
	defer closer.Close()

	logger.Debug("pushclient: dialing", "url", "ws://gw")
	log.Print("stdlib-marker")

	name := filepath.Join(dir, "gatewatch-"+time.Now().Format("2006-01-02")+".log")
	data, err := os.ReadFile(name)
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"pushclient: dialing", "stdlib-marker"} {
		if !strings.Contains(string(data), want) {
			t.Errorf("log file missing %q: %q", want, data)
		}
		if !strings.Contains(tee.String(), want) {
			t.Errorf("tee missing %q", want)
		}
	}
}

func TestInitFallsBackToTee(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "file")
	os.WriteFile(blocker, []byte("x"), 0o644)

	var tee bytes.Buffer
	logger, closer, err := applog.Init(applog.InitConfig{Dir: filepath.Join(blocker, "logs"), Tee: &tee})
	if err == nil {
		t.Fatal("expected error when log dir cannot be created")
	}
	if logger == nil || closer == nil {
		t.Fatal("expected fallback logger")
	}
	logger.Info("still logging")
	if !strings.Contains(tee.String(), "still logging") {
		t.Errorf("tee: %q", tee.String())
	}

	if _, _, err := applog.Init(applog.InitConfig{Dir: filepath.Join(blocker, "logs")}); err == nil {
		t.Error("expected error without a tee")
	}
}

func TestParseLevel(t *testing.T) {
	cases := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"warning", slog.LevelWarn},
		{" error ", slog.LevelError},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}
	for _, tc := range cases {
		if got := applog.ParseLevel(tc.in); got != tc.want {
			t.Errorf("ParseLevel(%q): got %v want %v", tc.in, got, tc.want)
		}
	}
	if applog.ValidLevel("verbose") || !applog.ValidLevel("Warn") {
		t.Error("ValidLevel mismatch")
	}
}
