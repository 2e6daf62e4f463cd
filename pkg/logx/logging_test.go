package logx

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestWriterLoggerFields(t *testing.T) {
	var buf bytes.Buffer
	log := NewWriter(&buf, "debug").With(String("comp", "timeout"))
	log.Info("timeout fired", Uint64("id", 7), Duration("delay", 50*time.Millisecond), Err(errors.New("x")), Err(nil))
	log.Trace("dropped below level")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("got %d lines, want 1: %q", len(lines), buf.String())
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if m["message"] != "timeout fired" || m["comp"] != "timeout" || m["id"] != float64(7) {
		t.Fatalf("unexpected entry: %v", m)
	}
	if m["delay"] != "50ms" || m["err"] != "x" {
		t.Fatalf("delay/err = %v/%v", m["delay"], m["err"])
	}
	if c, _ := m["caller"].(string); !strings.HasPrefix(c, "logging_test.go:") {
		t.Fatalf("caller = %q, want the call site", c)
	}
}

func TestZeroAndNopLoggers(t *testing.T) {
	var zero Logger
	if !zero.IsZero() {
		t.Fatal("zero Logger should report IsZero")
	}
	zero.Info("no panic")
	zero.With(String("k", "v")).Warn("no panic")
	Nop().Error("no panic", Stack("  "))
	if Nop().IsZero() {
		t.Fatal("Nop should not report IsZero")
	}
}

func TestServiceApplyRetargetsLoggers(t *testing.T) {
	dir := t.TempDir()
	first := filepath.Join(dir, "first.log")
	second := filepath.Join(dir, "second.log")

	svc, log := New(Config{Level: "info", File: first})
	log = log.With(String("comp", "app"))
	log.Debug("below level")
	log.Warn("to first", String("k", "v"))

	if err := svc.Apply(Config{Level: "error", File: second}); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	log.Warn("suppressed after apply")
	log.Error("to second")
	if err := svc.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	log.Error("after close")

	read := func(path string) string {
		t.Helper()
		b, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("read %s: %v", path, err)
		}
		return string(b)
	}
	a, b := read(first), read(second)
	if !strings.Contains(a, `"to first"`) || !strings.Contains(a, `"k":"v"`) || strings.Contains(a, "below level") {
		t.Fatalf("first sink = %q", a)
	}
	if !strings.Contains(b, `"to second"`) || strings.Contains(b, "suppressed") || strings.Contains(b, "after close") {
		t.Fatalf("second sink = %q", b)
	}
}

func TestServiceApplyFallsBackOnBadFile(t *testing.T) {
	svc, _ := New(Config{Level: "disabled"})
	defer svc.Close()
	bad := filepath.Join(t.TempDir(), "missing", "x.log")
	if err := svc.Apply(Config{Level: "disabled", File: bad}); err == nil {
		t.Fatal("expected an error for an unopenable log file")
	}
}

func TestParseLevel(t *testing.T) {
	t.Parallel()
	tests := map[string]zerolog.Level{
		"trace":   zerolog.TraceLevel,
		" Debug ": zerolog.DebugLevel,
		"WARNING": zerolog.WarnLevel,
		"error":   zerolog.ErrorLevel,
		"off":     zerolog.Disabled,
		"":        zerolog.InfoLevel,
		"bogus":   zerolog.InfoLevel,
	}
	for in, want := range tests {
		if got := parseLevel(in); got != want {
			t.Fatalf("parseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}
