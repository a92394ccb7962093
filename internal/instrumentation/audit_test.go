package instrumentation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func newBufferLogger() (*slog.Logger, *bytes.Buffer) {
	buf := &bytes.Buffer{}
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug})), buf
}

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	line := strings.TrimSpace(buf.String())
	if line == "" {
		t.Fatal("expected a log line")
	}
	var out map[string]any
	if err := json.Unmarshal([]byte(line), &out); err != nil {
		t.Fatalf("failed to decode log line %q: %v", line, err)
	}
	return out
}

func TestCommandInvocation_NewAndComplete(t *testing.T) {
	ci := NewCommandInvocation("login")
	if ci.Command != "login" {
		t.Errorf("expected command 'login', got %q", ci.Command)
	}
	if ci.StartTime.IsZero() {
		t.Error("expected StartTime to be set")
	}

	time.Sleep(time.Millisecond)
	ci.Complete(nil)

	if !ci.Success {
		t.Error("expected success")
	}
	if ci.Duration <= 0 {
		t.Error("expected positive duration")
	}
	if ci.Status() != StatusSuccess {
		t.Errorf("expected status %q, got %q", StatusSuccess, ci.Status())
	}
}

func TestCommandInvocation_CompleteWithError(t *testing.T) {
	ci := NewCommandInvocation("ask").Complete(errors.New("upstream down"))

	if ci.Success {
		t.Error("expected failure")
	}
	if ci.Error != "upstream down" {
		t.Errorf("unexpected error %q", ci.Error)
	}
	if ci.Status() != StatusError {
		t.Errorf("expected status %q, got %q", StatusError, ci.Status())
	}
}

func TestCommandInvocation_WithSpanContext_NoSpan(t *testing.T) {
	ci := NewCommandInvocation("help").WithSpanContext(context.Background())
	if ci.TraceID != "" || ci.SpanID != "" {
		t.Error("expected empty trace ids without a span")
	}
}

func TestAuditLogger_HashesUserByDefault(t *testing.T) {
	logger, buf := newBufferLogger()
	al := NewAuditLogger(logger)

	ci := NewCommandInvocation("login").WithUser("user-123", "chan-9").Complete(nil)
	al.LogCommand(ci)

	entry := decodeLine(t, buf)
	if entry["msg"] != "command_executed" {
		t.Errorf("unexpected message %v", entry["msg"])
	}
	if _, ok := entry["user"]; ok {
		t.Error("raw user identity must not be logged without IncludePII")
	}
	if entry["user_hash"] == "" || entry["user_hash"] == nil {
		t.Error("expected user_hash to be logged")
	}
	if entry["channel"] != "chan-9" {
		t.Errorf("expected channel chan-9, got %v", entry["channel"])
	}
	if strings.Contains(buf.String(), "user-123") {
		t.Error("log output leaks user identity")
	}
}

func TestAuditLogger_IncludePII(t *testing.T) {
	logger, buf := newBufferLogger()
	al := NewAuditLoggerWithConfig(logger, AuditLoggingConfig{Enabled: true, IncludePII: true})

	al.LogCommand(NewCommandInvocation("logout").WithUser("user-123", "c").Complete(errors.New("boom")))

	entry := decodeLine(t, buf)
	if entry["msg"] != "command_failed" {
		t.Errorf("unexpected message %v", entry["msg"])
	}
	if entry["user"] != "user-123" {
		t.Errorf("expected raw user, got %v", entry["user"])
	}
	if entry["error"] != "boom" {
		t.Errorf("expected error boom, got %v", entry["error"])
	}
}

func TestAuditLogger_Disabled(t *testing.T) {
	logger, buf := newBufferLogger()
	al := NewAuditLoggerWithConfig(logger, AuditLoggingConfig{Enabled: false})

	al.LogCommand(NewCommandInvocation("login").Complete(nil))
	if buf.Len() != 0 {
		t.Errorf("expected no output, got %q", buf.String())
	}
}

func TestAuditLogger_NilSafe(t *testing.T) {
	var al *AuditLogger
	al.LogCommand(NewCommandInvocation("login").Complete(nil))

	NewAuditLogger(nil).LogCommand(nil)
}
