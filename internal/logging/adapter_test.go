package logging

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestPrintf_FormatsAtLevel(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := New(buf, "debug", "text")

	Printf(logger, slog.LevelWarn)("gateway %s after %d attempts", "reconnected", 3)

	out := buf.String()
	if !strings.Contains(out, "level=WARN") {
		t.Errorf("expected WARN level, got %q", out)
	}
	if !strings.Contains(out, "gateway reconnected after 3 attempts") {
		t.Errorf("expected formatted message, got %q", out)
	}
}

func TestPrintf_RespectsLevel(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := New(buf, "error", "text")

	Printf(logger, slog.LevelDebug)("heartbeat %d", 1)

	if buf.Len() != 0 {
		t.Errorf("expected debug output to be filtered, got %q", buf.String())
	}
}

func TestPrintf_NilLogger(t *testing.T) {
	// Should not panic
	Printf(nil, slog.LevelInfo)("hello %s", "world")
}
