package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
)

func TestGetCategoryFromToolName(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"chat_send_message", "Chat Tools"},
		{"chat_read_messages", "Chat Tools"},
		{"calendar_create", "Other"},
		{"", "Other"},
	}
	for _, tt := range tests {
		if got := getCategoryFromToolName(tt.name); got != tt.want {
			t.Errorf("getCategoryFromToolName(%q) = %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestGenerateToolsMarkdown(t *testing.T) {
	tool := mcp.NewTool("chat_send_message",
		mcp.WithDescription("Send a chat message"),
		mcp.WithString("text", mcp.Required(), mcp.Description("Message text")),
		mcp.WithString("channel", mcp.Description("Channel")),
	)

	md := generateToolsMarkdown([]mcp.Tool{tool}, "?")

	for _, want := range []string{
		"## Chat Commands",
		"?login <employee_id> <name>",
		"## Chat Tools",
		"- [Chat Tools](#chat-tools)",
		"### chat_send_message",
		"| `text` | string | yes | Message text |",
		"| `channel` | string | no | Channel |",
	} {
		if !strings.Contains(md, want) {
			t.Errorf("markdown missing %q", want)
		}
	}
}

func TestRunGenerateDocs(t *testing.T) {
	out := filepath.Join(t.TempDir(), "tools.md")
	if err := runGenerateDocs(out, "!"); err != nil {
		t.Fatalf("runGenerateDocs() error = %v", err)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if !strings.Contains(string(data), "### chat_read_messages") {
		t.Error("generated docs do not include chat_read_messages")
	}
}

func TestVersionCmd(t *testing.T) {
	SetVersion("1.2.3")
	t.Cleanup(func() { SetVersion("dev") })

	cmd := newVersionCmd()
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	cmd.SetArgs([]string{})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if got := buf.String(); got != "officebot version 1.2.3\n" {
		t.Errorf("version output = %q", got)
	}
}

func TestMigrateCmd(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "officebot.db")

	cmd := newMigrateCmd()
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	cmd.SetArgs([]string{"--db-path", path})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !strings.Contains(buf.String(), "schema version") {
		t.Errorf("migrate output = %q", buf.String())
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("database file not created: %v", err)
	}
}

func TestAuthURLCmd(t *testing.T) {
	t.Setenv("GOOGLE_CLIENT_ID", "")
	t.Setenv("GOOGLE_CLIENT_SECRET", "")

	cmd := newAuthURLCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{})
	if err := cmd.Execute(); err == nil {
		t.Error("auth-url without credentials expected error")
	}

	cmd = newAuthURLCmd()
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	cmd.SetArgs([]string{
		"--google-client-id", "client-id",
		"--google-client-secret", "client-secret",
		"--base-url", "https://bot.example.com",
	})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	url := buf.String()
	for _, want := range []string{"client_id=client-id", "access_type=offline", "redirect_uri=https%3A%2F%2Fbot.example.com%2Fcallback"} {
		if !strings.Contains(url, want) {
			t.Errorf("auth url %q missing %q", url, want)
		}
	}
}
