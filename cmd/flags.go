package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/teemow/officebot/internal/config"
)

// configFlags binds command-line flags to a config.Config. Only flags that
// were set explicitly override the environment.
type configFlags struct {
	values    config.Config
	overrides map[string]func(dst *config.Config)
}

func newConfigFlags() *configFlags {
	return &configFlags{
		values:    config.Default(),
		overrides: make(map[string]func(dst *config.Config)),
	}
}

func (f *configFlags) str(fs *pflag.FlagSet, name string, field func(*config.Config) *string, usage string) {
	fs.StringVar(field(&f.values), name, *field(&f.values), usage)
	f.overrides[name] = func(dst *config.Config) { *field(dst) = *field(&f.values) }
}

func (f *configFlags) boolean(fs *pflag.FlagSet, name string, field func(*config.Config) *bool, usage string) {
	fs.BoolVar(field(&f.values), name, *field(&f.values), usage)
	f.overrides[name] = func(dst *config.Config) { *field(dst) = *field(&f.values) }
}

// addDatabase registers the database flag.
func (f *configFlags) addDatabase(fs *pflag.FlagSet) {
	f.str(fs, "db-path", func(c *config.Config) *string { return &c.Database.Path },
		"SQLite database file. Can also use DATABASE_PATH env var.")
}

// addGoogle registers the Google OAuth flags.
func (f *configFlags) addGoogle(fs *pflag.FlagSet) {
	f.str(fs, "google-client-id", func(c *config.Config) *string { return &c.Google.ClientID },
		"Google OAuth client ID. Can also use GOOGLE_CLIENT_ID env var.")
	f.str(fs, "google-client-secret", func(c *config.Config) *string { return &c.Google.ClientSecret },
		"Google OAuth client secret. Can also use GOOGLE_CLIENT_SECRET env var.")
	f.str(fs, "base-url", func(c *config.Config) *string { return &c.Google.BaseURL },
		"Public base URL of the callback server; the redirect URI is <base-url>/callback. Can also use BASE_URL env var.")
}

// addServe registers every remaining serve flag.
func (f *configFlags) addServe(fs *pflag.FlagSet) {
	f.str(fs, "transport", func(c *config.Config) *string { return &c.Transport },
		"Chat transport: discord, console or mcp. Can also use TRANSPORT env var.")
	f.boolean(fs, "debug", func(c *config.Config) *bool { return &c.Debug },
		"Enable debug logging. Can also use DEBUG env var.")
	f.str(fs, "log-format", func(c *config.Config) *string { return &c.LogFormat },
		"Log format: text or json. Can also use LOG_FORMAT env var.")
	f.str(fs, "command-prefix", func(c *config.Config) *string { return &c.CommandPrefix },
		"Prefix of chat commands. Can also use COMMAND_PREFIX env var.")
	f.str(fs, "console-user", func(c *config.Config) *string { return &c.ConsoleUser },
		"User identity of console input (console transport). Can also use CONSOLE_USER env var.")
	f.str(fs, "discord-token", func(c *config.Config) *string { return &c.DiscordToken },
		"Discord bot token (discord transport). Can also use DISCORD_TOKEN env var.")

	f.str(fs, "zoom-client-id", func(c *config.Config) *string { return &c.Zoom.ClientID },
		"Zoom server-to-server OAuth client ID. Can also use ZOOM_CLIENT_ID env var.")
	f.str(fs, "zoom-client-secret", func(c *config.Config) *string { return &c.Zoom.ClientSecret },
		"Zoom client secret. Can also use ZOOM_CLIENT_SECRET env var.")
	f.str(fs, "zoom-account-id", func(c *config.Config) *string { return &c.Zoom.AccountID },
		"Zoom account ID. Can also use ZOOM_ACCOUNT_ID env var.")

	f.str(fs, "openai-api-key", func(c *config.Config) *string { return &c.OpenAI.APIKey },
		"OpenAI API key for the ask command. Can also use OPENAI_API_KEY env var.")
	f.str(fs, "openai-model", func(c *config.Config) *string { return &c.OpenAI.Model },
		"OpenAI chat model. Can also use OPENAI_MODEL env var.")
	f.str(fs, "openai-base-url", func(c *config.Config) *string { return &c.OpenAI.BaseURL },
		"OpenAI compatible API base URL. Can also use OPENAI_BASE_URL env var.")

	f.str(fs, "http-addr", func(c *config.Config) *string { return &c.HTTPAddr },
		"Address of the callback and health server. Can also use HTTP_ADDR env var.")
	f.str(fs, "token-store", func(c *config.Config) *string { return &c.TokenStore },
		"Google token store: sqlite or file. Can also use TOKEN_STORE env var.")
	f.str(fs, "token-file", func(c *config.Config) *string { return &c.TokenFile },
		"Token file (file token store). Can also use TOKEN_FILE env var.")
	f.str(fs, "token-encryption-key", func(c *config.Config) *string { return &c.TokenEncryptionKey },
		"AES-256 key for tokens at rest (32 bytes, base64 encoded). Can also use TOKEN_ENCRYPTION_KEY env var. Generate with: openssl rand -base64 32")

	fs.DurationVar(&f.values.IntakeTimeout, "intake-timeout", f.values.IntakeTimeout,
		"How long each meeting setup question waits for an answer. Can also use INTAKE_TIMEOUT env var.")
	f.overrides["intake-timeout"] = func(dst *config.Config) { dst.IntakeTimeout = f.values.IntakeTimeout }

	fs.Float64Var(&f.values.RateLimit.PerMinute, "rate-limit", f.values.RateLimit.PerMinute,
		"Commands per minute per author, 0 disables. Can also use RATE_LIMIT_PER_MINUTE env var.")
	f.overrides["rate-limit"] = func(dst *config.Config) { dst.RateLimit.PerMinute = f.values.RateLimit.PerMinute }
	fs.IntVar(&f.values.RateLimit.Burst, "rate-limit-burst", f.values.RateLimit.Burst,
		"Command burst per author. Can also use RATE_LIMIT_BURST env var.")
	f.overrides["rate-limit-burst"] = func(dst *config.Config) { dst.RateLimit.Burst = f.values.RateLimit.Burst }

	f.boolean(fs, "metrics-enabled", func(c *config.Config) *bool { return &c.Metrics.Enabled },
		"Enable the metrics server on a dedicated port. Can also use METRICS_ENABLED env var.")
	f.str(fs, "metrics-addr", func(c *config.Config) *string { return &c.Metrics.Addr },
		"Metrics server address. Can also use METRICS_ADDR env var.")
}

// resolve loads the environment and applies the flags set on cmd.
func (f *configFlags) resolve(cmd *cobra.Command, lookup config.LookupFunc) (config.Config, error) {
	cfg, err := config.Load(lookup)
	if err != nil {
		return config.Config{}, err
	}
	cmd.Flags().Visit(func(fl *pflag.Flag) {
		if apply, ok := f.overrides[fl.Name]; ok {
			apply(&cfg)
		}
	})
	return cfg, nil
}
