package xlog

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"
)

func newTestLogger(buf *bytes.Buffer, level slog.Level) *Logger {
	h := slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: level})
	return NewWithHandler(h)
}

func TestLogger_Module(t *testing.T) {
	var buf bytes.Buffer
	l := newTestLogger(&buf, slog.LevelDebug)
	child := l.Module("consensus")

	child.Info("spend parsed", "coin_id", "ab12")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("unmarshal: %v (raw: %s)", err, buf.String())
	}
	if entry["module"] != "consensus" {
		t.Fatalf("module = %v, want %q", entry["module"], "consensus")
	}
	if entry["msg"] != "spend parsed" {
		t.Fatalf("msg = %v, want %q", entry["msg"], "spend parsed")
	}
	if entry["coin_id"] != "ab12" {
		t.Fatalf("coin_id = %v, want %q", entry["coin_id"], "ab12")
	}
}

func TestLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := newTestLogger(&buf, slog.LevelWarn)
	l.Info("should not appear")
	if buf.Len() != 0 {
		t.Fatalf("expected no output below the configured level, got %q", buf.String())
	}
	l.Warn("should appear")
	if buf.Len() == 0 {
		t.Fatalf("expected output at the configured level")
	}
}

func TestDefaultLoggerModule(t *testing.T) {
	prev := Default()
	defer SetDefault(prev)

	var buf bytes.Buffer
	SetDefault(newTestLogger(&buf, slog.LevelDebug))

	Module("driver").Info("generator evaluated", "cost", 42)

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("unmarshal: %v (raw: %s)", err, buf.String())
	}
	if entry["module"] != "driver" {
		t.Fatalf("module = %v, want %q", entry["module"], "driver")
	}
}
