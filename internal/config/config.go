package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/teemow/officebot/internal/assistant"
	"github.com/teemow/officebot/internal/db"
	"github.com/teemow/officebot/internal/google"
	"github.com/teemow/officebot/internal/intake"
	"github.com/teemow/officebot/internal/zoom"
)

// Transports.
const (
	TransportDiscord = "discord"
	TransportConsole = "console"
	TransportMCP     = "mcp"
)

// Token stores.
const (
	TokenStoreSQLite = "sqlite"
	TokenStoreFile   = "file"
)

// Defaults.
const (
	DefaultBaseURL       = "http://localhost:8000"
	DefaultHTTPAddr      = ":8000"
	DefaultMetricsAddr   = ":9090"
	DefaultTokenFile     = "token.json"
	DefaultCommandPrefix = "!"
	DefaultLogFormat     = "text"
	DefaultConsoleUser   = "console-user"
)

// RateLimitConfig bounds how many commands one author may run.
type RateLimitConfig struct {
	// PerMinute is the sustained rate; 0 disables rate limiting.
	PerMinute float64
	Burst     int
}

// MetricsConfig configures the dedicated metrics server.
type MetricsConfig struct {
	Enabled bool
	Addr    string
}

// Config is the complete process configuration.
type Config struct {
	Transport     string
	Debug         bool
	LogFormat     string
	CommandPrefix string
	ConsoleUser   string

	DiscordToken string

	Database db.Config
	Google   google.Config
	Zoom     zoom.Config
	OpenAI   assistant.Config

	HTTPAddr           string
	TokenStore         string
	TokenFile          string
	TokenEncryptionKey string

	IntakeTimeout time.Duration
	RateLimit     RateLimitConfig
	Metrics       MetricsConfig
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		Transport:     TransportDiscord,
		LogFormat:     DefaultLogFormat,
		CommandPrefix: DefaultCommandPrefix,
		ConsoleUser:   DefaultConsoleUser,
		Database:      db.Config{Path: db.DefaultPath},
		Google:        google.Config{BaseURL: DefaultBaseURL},
		OpenAI:        assistant.Config{Model: assistant.DefaultModel},
		HTTPAddr:      DefaultHTTPAddr,
		TokenStore:    TokenStoreSQLite,
		TokenFile:     DefaultTokenFile,
		IntakeTimeout: intake.DefaultStepTimeout,
		RateLimit:     RateLimitConfig{PerMinute: 20, Burst: 5},
		Metrics:       MetricsConfig{Enabled: true, Addr: DefaultMetricsAddr},
	}
}

// LookupFunc reads one environment variable. os.LookupEnv satisfies it.
type LookupFunc func(key string) (string, bool)

// LoadFromEnv reads the process environment.
func LoadFromEnv() (Config, error) {
	return Load(os.LookupEnv)
}

// Load applies the environment read through lookup on top of Default.
// Values that cannot be parsed are reported together.
func Load(lookup LookupFunc) (Config, error) {
	cfg := Default()
	l := loader{lookup: lookup}

	l.str("TRANSPORT", &cfg.Transport)
	l.boolean("DEBUG", &cfg.Debug)
	l.str("LOG_FORMAT", &cfg.LogFormat)
	l.str("COMMAND_PREFIX", &cfg.CommandPrefix)
	l.str("CONSOLE_USER", &cfg.ConsoleUser)

	l.str("DISCORD_TOKEN", &cfg.DiscordToken)

	l.str("DATABASE_PATH", &cfg.Database.Path)

	l.str("GOOGLE_CLIENT_ID", &cfg.Google.ClientID)
	l.str("GOOGLE_CLIENT_SECRET", &cfg.Google.ClientSecret)
	l.str("BASE_URL", &cfg.Google.BaseURL)

	l.str("ZOOM_CLIENT_ID", &cfg.Zoom.ClientID)
	l.str("ZOOM_CLIENT_SECRET", &cfg.Zoom.ClientSecret)
	l.str("ZOOM_ACCOUNT_ID", &cfg.Zoom.AccountID)

	l.str("OPENAI_API_KEY", &cfg.OpenAI.APIKey)
	l.str("OPENAI_MODEL", &cfg.OpenAI.Model)
	l.str("OPENAI_BASE_URL", &cfg.OpenAI.BaseURL)

	l.str("HTTP_ADDR", &cfg.HTTPAddr)
	l.str("TOKEN_STORE", &cfg.TokenStore)
	l.str("TOKEN_FILE", &cfg.TokenFile)
	l.str("TOKEN_ENCRYPTION_KEY", &cfg.TokenEncryptionKey)

	l.duration("INTAKE_TIMEOUT", &cfg.IntakeTimeout)
	l.float("RATE_LIMIT_PER_MINUTE", &cfg.RateLimit.PerMinute)
	l.integer("RATE_LIMIT_BURST", &cfg.RateLimit.Burst)
	l.boolean("METRICS_ENABLED", &cfg.Metrics.Enabled)
	l.str("METRICS_ADDR", &cfg.Metrics.Addr)

	if len(l.invalid) > 0 {
		return Config{}, &Error{Invalid: l.invalid}
	}
	return cfg, nil
}

// Validate reports every missing or inconsistent setting at once.
func (c Config) Validate() error {
	var missing, invalid []string

	switch c.Transport {
	case TransportDiscord:
		if c.DiscordToken == "" {
			missing = append(missing, "DISCORD_TOKEN")
		}
	case TransportConsole, TransportMCP:
	default:
		invalid = append(invalid, fmt.Sprintf("TRANSPORT (%q, want discord, console or mcp)", c.Transport))
	}

	if strings.TrimSpace(c.CommandPrefix) == "" || strings.ContainsFunc(c.CommandPrefix, isSpace) {
		invalid = append(invalid, "COMMAND_PREFIX (must be non-empty without spaces)")
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		invalid = append(invalid, fmt.Sprintf("LOG_FORMAT (%q, want text or json)", c.LogFormat))
	}
	if c.Database.Path == "" {
		missing = append(missing, "DATABASE_PATH")
	}

	// Optional integrations must be configured completely or not at all.
	if (c.Google.ClientID == "") != (c.Google.ClientSecret == "") {
		missing = append(missing, pickMissing(map[string]string{
			"GOOGLE_CLIENT_ID":     c.Google.ClientID,
			"GOOGLE_CLIENT_SECRET": c.Google.ClientSecret,
		}, "GOOGLE_CLIENT_ID", "GOOGLE_CLIENT_SECRET")...)
	}
	if c.Google.Configured() {
		if u, err := url.Parse(c.Google.BaseURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			invalid = append(invalid, fmt.Sprintf("BASE_URL (%q, want an absolute http(s) URL)", c.Google.BaseURL))
		}
	}
	zoomSet := map[string]string{
		"ZOOM_CLIENT_ID":     c.Zoom.ClientID,
		"ZOOM_CLIENT_SECRET": c.Zoom.ClientSecret,
		"ZOOM_ACCOUNT_ID":    c.Zoom.AccountID,
	}
	if m := pickMissing(zoomSet, "ZOOM_CLIENT_ID", "ZOOM_CLIENT_SECRET", "ZOOM_ACCOUNT_ID"); len(m) > 0 && len(m) < 3 {
		missing = append(missing, m...)
	}

	switch c.TokenStore {
	case TokenStoreSQLite:
	case TokenStoreFile:
		if c.TokenFile == "" {
			missing = append(missing, "TOKEN_FILE")
		}
	default:
		invalid = append(invalid, fmt.Sprintf("TOKEN_STORE (%q, want sqlite or file)", c.TokenStore))
	}
	if _, err := google.EncryptionKeyFromBase64(c.TokenEncryptionKey); err != nil {
		invalid = append(invalid, "TOKEN_ENCRYPTION_KEY ("+err.Error()+")")
	}

	if c.IntakeTimeout <= 0 {
		invalid = append(invalid, "INTAKE_TIMEOUT (must be positive)")
	}
	if c.RateLimit.PerMinute < 0 {
		invalid = append(invalid, "RATE_LIMIT_PER_MINUTE (must not be negative)")
	}
	if c.RateLimit.PerMinute > 0 && c.RateLimit.Burst < 1 {
		invalid = append(invalid, "RATE_LIMIT_BURST (must be at least 1)")
	}

	if len(missing) > 0 || len(invalid) > 0 {
		return &Error{Missing: missing, Invalid: invalid}
	}
	return nil
}

// EncryptionKey decodes TokenEncryptionKey. It returns nil when unset.
func (c Config) EncryptionKey() ([]byte, error) {
	return google.EncryptionKeyFromBase64(c.TokenEncryptionKey)
}

// ZoomEnabled reports whether Zoom credentials are set.
func (c Config) ZoomEnabled() bool {
	return c.Zoom.Configured()
}

// GoogleEnabled reports whether Google OAuth credentials are set.
func (c Config) GoogleEnabled() bool {
	return c.Google.Configured()
}

// AssistantEnabled reports whether an OpenAI API key is set.
func (c Config) AssistantEnabled() bool {
	return c.OpenAI.APIKey != ""
}

// Error lists the settings that prevented the configuration from loading.
type Error struct {
	Missing []string
	Invalid []string
}

func (e *Error) Error() string {
	var parts []string
	if len(e.Missing) > 0 {
		parts = append(parts, "missing required settings: "+strings.Join(e.Missing, ", "))
	}
	if len(e.Invalid) > 0 {
		parts = append(parts, "invalid settings: "+strings.Join(e.Invalid, ", "))
	}
	return "config: " + strings.Join(parts, "; ")
}

func pickMissing(values map[string]string, order ...string) []string {
	var out []string
	for _, k := range order {
		if values[k] == "" {
			out = append(out, k)
		}
	}
	return out
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\t' || r == '\n' || r == '\r'
}

type loader struct {
	lookup  LookupFunc
	invalid []string
}

func (l *loader) get(key string) (string, bool) {
	v, ok := l.lookup(key)
	v = strings.TrimSpace(v)
	return v, ok && v != ""
}

func (l *loader) str(key string, dst *string) {
	if v, ok := l.get(key); ok {
		*dst = v
	}
}

func (l *loader) boolean(key string, dst *bool) {
	if v, ok := l.get(key); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			l.invalid = append(l.invalid, key)
			return
		}
		*dst = b
	}
}

func (l *loader) integer(key string, dst *int) {
	if v, ok := l.get(key); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			l.invalid = append(l.invalid, key)
			return
		}
		*dst = n
	}
}

func (l *loader) float(key string, dst *float64) {
	if v, ok := l.get(key); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			l.invalid = append(l.invalid, key)
			return
		}
		*dst = f
	}
}

// duration accepts Go durations ("90s") and plain seconds ("90").
func (l *loader) duration(key string, dst *time.Duration) {
	if v, ok := l.get(key); ok {
		if secs, err := strconv.Atoi(v); err == nil {
			*dst = time.Duration(secs) * time.Second
			return
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			l.invalid = append(l.invalid, key)
			return
		}
		*dst = d
	}
}
