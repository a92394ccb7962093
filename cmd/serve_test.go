package cmd

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/cobra"

	"github.com/teemow/officebot/internal/config"
	"github.com/teemow/officebot/internal/db"
	"github.com/teemow/officebot/internal/google"
	"github.com/teemow/officebot/internal/server"
	"github.com/teemow/officebot/internal/tools/chat_tools"
)

func TestParseCommaSeparatedList(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []string
	}{
		{
			name:     "empty string",
			input:    "",
			expected: nil,
		},
		{
			name:     "single value",
			input:    "https://www.googleapis.com/auth/calendar.events",
			expected: []string{"https://www.googleapis.com/auth/calendar.events"},
		},
		{
			name:     "values with spaces around comma",
			input:    "openid, email",
			expected: []string{"openid", "email"},
		},
		{
			name:     "trailing and consecutive commas",
			input:    ",openid,,email,",
			expected: []string{"openid", "email"},
		},
		{
			name:     "only commas and spaces",
			input:    ",  , , ",
			expected: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := parseCommaSeparatedList(tt.input)

			if tt.expected == nil {
				if result != nil {
					t.Errorf("parseCommaSeparatedList(%q) = %v, want nil", tt.input, result)
				}
				return
			}

			if len(result) != len(tt.expected) {
				t.Fatalf("parseCommaSeparatedList(%q) = %v, want %v", tt.input, result, tt.expected)
			}
			for i, v := range result {
				if v != tt.expected[i] {
					t.Errorf("parseCommaSeparatedList(%q)[%d] = %q, want %q", tt.input, i, v, tt.expected[i])
				}
			}
		})
	}
}

func newTestServeFlags(t *testing.T, args ...string) (*cobra.Command, *configFlags) {
	t.Helper()
	flags := newConfigFlags()
	cmd := &cobra.Command{Use: "serve"}
	flags.addServe(cmd.Flags())
	flags.addDatabase(cmd.Flags())
	flags.addGoogle(cmd.Flags())
	if err := cmd.ParseFlags(args); err != nil {
		t.Fatalf("ParseFlags() error = %v", err)
	}
	return cmd, flags
}

func env(values map[string]string) config.LookupFunc {
	return func(key string) (string, bool) {
		v, ok := values[key]
		return v, ok
	}
}

func TestConfigFlags_Resolve(t *testing.T) {
	t.Run("flags override the environment", func(t *testing.T) {
		cmd, flags := newTestServeFlags(t,
			"--transport", "console",
			"--db-path", "/tmp/flag.db",
			"--intake-timeout", "90s",
			"--rate-limit", "0",
		)

		cfg, err := flags.resolve(cmd, env(map[string]string{
			"TRANSPORT":     "discord",
			"DATABASE_PATH": "/tmp/env.db",
			"DISCORD_TOKEN": "env-token",
		}))
		if err != nil {
			t.Fatalf("resolve() error = %v", err)
		}

		if cfg.Transport != config.TransportConsole {
			t.Errorf("Transport = %q, want %q", cfg.Transport, config.TransportConsole)
		}
		if cfg.Database.Path != "/tmp/flag.db" {
			t.Errorf("Database.Path = %q, want /tmp/flag.db", cfg.Database.Path)
		}
		if cfg.IntakeTimeout != 90*time.Second {
			t.Errorf("IntakeTimeout = %v, want 90s", cfg.IntakeTimeout)
		}
		if cfg.RateLimit.PerMinute != 0 {
			t.Errorf("RateLimit.PerMinute = %v, want 0", cfg.RateLimit.PerMinute)
		}
		// Untouched flags leave the environment in place.
		if cfg.DiscordToken != "env-token" {
			t.Errorf("DiscordToken = %q, want env-token", cfg.DiscordToken)
		}
	})

	t.Run("defaults do not clobber the environment", func(t *testing.T) {
		cmd, flags := newTestServeFlags(t)

		cfg, err := flags.resolve(cmd, env(map[string]string{
			"COMMAND_PREFIX": "?",
			"METRICS_ADDR":   ":9191",
		}))
		if err != nil {
			t.Fatalf("resolve() error = %v", err)
		}
		if cfg.CommandPrefix != "?" {
			t.Errorf("CommandPrefix = %q, want ?", cfg.CommandPrefix)
		}
		if cfg.Metrics.Addr != ":9191" {
			t.Errorf("Metrics.Addr = %q, want :9191", cfg.Metrics.Addr)
		}
	})

	t.Run("invalid environment", func(t *testing.T) {
		cmd, flags := newTestServeFlags(t)

		if _, err := flags.resolve(cmd, env(map[string]string{"RATE_LIMIT_BURST": "many"})); err == nil {
			t.Error("resolve() expected error for unparsable RATE_LIMIT_BURST")
		}
	})
}

func TestLoadGoogleScopes(t *testing.T) {
	cmd := &cobra.Command{Use: "serve"}
	var scopes string
	cmd.Flags().StringVar(&scopes, "google-scopes", "", "")

	t.Setenv("GOOGLE_SCOPES", "env-a,env-b")

	cfg := config.Default()
	loadGoogleScopes(cmd, &cfg, scopes)
	if len(cfg.Google.Scopes) != 2 || cfg.Google.Scopes[0] != "env-a" {
		t.Errorf("Scopes from env = %v, want [env-a env-b]", cfg.Google.Scopes)
	}

	if err := cmd.ParseFlags([]string{"--google-scopes", "flag-a"}); err != nil {
		t.Fatalf("ParseFlags() error = %v", err)
	}
	cfg = config.Default()
	loadGoogleScopes(cmd, &cfg, scopes)
	if len(cfg.Google.Scopes) != 1 || cfg.Google.Scopes[0] != "flag-a" {
		t.Errorf("Scopes from flag = %v, want [flag-a]", cfg.Google.Scopes)
	}
}

func TestNewTokenStore(t *testing.T) {
	ctx := context.Background()
	conn, err := db.OpenDSN(ctx, db.MemoryDSN(t.Name()))
	if err != nil {
		t.Fatalf("OpenDSN() error = %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	writer := db.NewWorker(conn)
	t.Cleanup(writer.Close)

	cfg := config.Default()
	store, err := newTokenStore(cfg, conn, writer)
	if err != nil {
		t.Fatalf("newTokenStore(sqlite) error = %v", err)
	}
	if _, ok := store.(*google.SQLiteStore); !ok {
		t.Errorf("newTokenStore(sqlite) = %T, want *google.SQLiteStore", store)
	}

	cfg.TokenStore = config.TokenStoreFile
	cfg.TokenFile = filepath.Join(t.TempDir(), "token.json")
	store, err = newTokenStore(cfg, conn, writer)
	if err != nil {
		t.Fatalf("newTokenStore(file) error = %v", err)
	}
	if _, ok := store.(*google.FileStore); !ok {
		t.Errorf("newTokenStore(file) = %T, want *google.FileStore", store)
	}

	cfg.TokenEncryptionKey = "dG9vLXNob3J0"
	if _, err := newTokenStore(cfg, conn, writer); err == nil {
		t.Error("newTokenStore() expected error for a short encryption key")
	}
}

func TestNewTransport(t *testing.T) {
	sc := server.NewServerContext(context.Background())
	t.Cleanup(func() { _ = sc.Shutdown() })

	cfg := config.Default()

	cfg.Transport = config.TransportConsole
	tr, err := newTransport(cfg, sc, nil)
	if err != nil {
		t.Fatalf("newTransport(console) error = %v", err)
	}
	if tr.sender == nil || tr.run == nil {
		t.Error("newTransport(console) returned an incomplete transport")
	}

	cfg.Transport = config.TransportMCP
	tr, err = newTransport(cfg, sc, nil)
	if err != nil {
		t.Fatalf("newTransport(mcp) error = %v", err)
	}
	if _, ok := tr.sender.(*chat_tools.Outbox); !ok {
		t.Errorf("newTransport(mcp) sender = %T, want *chat_tools.Outbox", tr.sender)
	}

	cfg.Transport = "irc"
	if _, err := newTransport(cfg, sc, nil); err == nil {
		t.Error("newTransport(irc) expected error")
	}
}
