package cmd

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/teemow/officebot/internal/assistant"
	"github.com/teemow/officebot/internal/attendance"
	"github.com/teemow/officebot/internal/calendar"
	"github.com/teemow/officebot/internal/chat"
	"github.com/teemow/officebot/internal/config"
	"github.com/teemow/officebot/internal/db"
	"github.com/teemow/officebot/internal/discord"
	"github.com/teemow/officebot/internal/google"
	"github.com/teemow/officebot/internal/instrumentation"
	"github.com/teemow/officebot/internal/intake"
	"github.com/teemow/officebot/internal/logging"
	"github.com/teemow/officebot/internal/meeting"
	"github.com/teemow/officebot/internal/server"
	"github.com/teemow/officebot/internal/tools/chat_tools"
	"github.com/teemow/officebot/internal/zoom"
)

// shutdownTimeout bounds the graceful stop of the HTTP servers.
const shutdownTimeout = 30 * time.Second

func newServeCmd() *cobra.Command {
	flags := newConfigFlags()
	var googleScopes string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the chat bot",
		Long: `Run the chat bot on the configured transport.

Supports three transports:
  - discord: Connect to Discord with DISCORD_TOKEN (default)
  - console: Read chat lines from stdin and print replies to stdout
  - mcp: Expose the chat surface as MCP tools over stdio

The HTTP server on --http-addr serves the Google OAuth callback (/callback)
and the health probes. Every flag can also be set through the environment.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := flags.resolve(cmd, os.LookupEnv)
			if err != nil {
				return err
			}
			loadGoogleScopes(cmd, &cfg, googleScopes)
			if err := cfg.Validate(); err != nil {
				return err
			}
			return runServe(cfg)
		},
	}

	fs := cmd.Flags()
	flags.addServe(fs)
	flags.addDatabase(fs)
	flags.addGoogle(fs)
	fs.StringVar(&googleScopes, "google-scopes", "",
		"Comma-separated Google OAuth scopes (default: calendar events). Can also use GOOGLE_SCOPES env var.")

	return cmd
}

// loadGoogleScopes applies GOOGLE_SCOPES unless --google-scopes was given.
func loadGoogleScopes(cmd *cobra.Command, cfg *config.Config, flagValue string) {
	if cmd.Flags().Changed("google-scopes") {
		cfg.Google.Scopes = parseCommaSeparatedList(flagValue)
		return
	}
	if v := os.Getenv("GOOGLE_SCOPES"); v != "" {
		cfg.Google.Scopes = parseCommaSeparatedList(v)
	}
}

func runServe(cfg config.Config) error {
	shutdownCtx, cancel := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM)
	defer cancel()

	level := "info"
	if cfg.Debug {
		level = "debug"
	}
	// stdout carries the MCP protocol and the console replies.
	logger := logging.New(os.Stderr, level, cfg.LogFormat)
	slog.SetDefault(logger)

	instrConfig := instrumentation.DefaultConfig()
	instrConfig.ServiceVersion = version

	provider, err := instrumentation.NewProvider(shutdownCtx, instrConfig)
	if err != nil {
		return fmt.Errorf("failed to create instrumentation provider: %w", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := provider.Shutdown(ctx); err != nil {
			logger.Warn("error during instrumentation shutdown", logging.Err(err))
		}
	}()
	metrics := provider.Metrics()

	var metricsServer *server.MetricsServer
	if cfg.Metrics.Enabled && provider.ServesPrometheus() {
		metricsServer, err = server.NewMetricsServer(server.MetricsServerConfig{
			Addr:                    cfg.Metrics.Addr,
			InstrumentationProvider: provider,
		})
		if err != nil {
			return fmt.Errorf("failed to create metrics server: %w", err)
		}
		if err := metricsServer.Listen(); err != nil {
			return fmt.Errorf("metrics server failed to start: %w", err)
		}
		go func() {
			if err := metricsServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server stopped", logging.Err(err))
			}
		}()
		logger.Info("metrics server started", slog.String("addr", metricsServer.Addr()))
		defer shutdownHTTP(logger, "metrics", metricsServer.Shutdown)
	}

	conn, err := db.Open(shutdownCtx, cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer conn.Close()
	writer := db.NewWorker(conn)
	defer writer.Close()

	ledger := attendance.NewLedger(conn, writer,
		attendance.WithLogger(logger),
		attendance.WithMetrics(metrics))

	providers := make(map[meeting.Platform]meeting.Provider)
	var auth *google.Authenticator
	if cfg.GoogleEnabled() {
		store, err := newTokenStore(cfg, conn, writer)
		if err != nil {
			return err
		}
		auth, err = google.NewAuthenticator(cfg.Google, store,
			google.WithLogger(logger),
			google.WithMetrics(metrics))
		if err != nil {
			return err
		}
		cal, err := calendar.NewClient(auth,
			calendar.WithLogger(logger),
			calendar.WithMetrics(metrics))
		if err != nil {
			return err
		}
		providers[meeting.PlatformGoogleMeet] = cal
		logger.Info("google meet enabled", slog.String("redirect_url", auth.RedirectURL()))
	}
	if cfg.ZoomEnabled() {
		zc, err := zoom.NewClient(cfg.Zoom,
			zoom.WithLogger(logger),
			zoom.WithMetrics(metrics))
		if err != nil {
			return err
		}
		providers[meeting.PlatformZoom] = zc
		logger.Info("zoom enabled")
	}

	manager := intake.NewManager(providers,
		intake.WithStepTimeout(cfg.IntakeTimeout),
		intake.WithAuthCommand(cfg.CommandPrefix+chat.CmdAuthenticate),
		intake.WithLogger(logger),
		intake.WithMetrics(metrics))
	defer manager.Wait()

	var limiter *chat.RateLimiter
	if cfg.RateLimit.PerMinute > 0 {
		limiter = chat.NewRateLimiter(cfg.RateLimit.PerMinute, cfg.RateLimit.Burst)
		defer limiter.Stop()
	}

	sc := server.NewServerContext(shutdownCtx,
		server.WithDatabase(conn),
		server.WithMetrics(metrics),
		server.WithAuditLogger(provider.AuditLogger()),
		server.WithLogger(logger))
	defer func() {
		if err := sc.Shutdown(); err != nil {
			logger.Warn("error during server context shutdown", logging.Err(err))
		}
	}()

	health := server.NewHealthChecker(sc, server.WithVersion(version))
	if auth != nil {
		health.AddCheck(server.Check{
			Name: "google_authorization",
			Probe: func(ctx context.Context) error {
				if !auth.HasRefreshToken(ctx) {
					return meeting.ErrAuthenticationRequired
				}
				return nil
			},
		})
	}

	httpConfig := server.HTTPServerConfig{
		Addr:    cfg.HTTPAddr,
		Health:  health,
		Metrics: metrics,
		Logger:  logger,
	}
	if auth != nil {
		httpConfig.Exchanger = auth
	}
	httpServer := server.NewHTTPServer(httpConfig)
	httpErr := make(chan error, 1)
	go func() {
		if err := httpServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			httpErr <- err
		}
		close(httpErr)
	}()
	defer shutdownHTTP(logger, "http", httpServer.Shutdown)

	transport, err := newTransport(cfg, sc, logger)
	if err != nil {
		return err
	}
	if transport.probe != nil {
		health.AddCheck(server.Check{Name: cfg.Transport, Critical: true, Probe: transport.probe})
	}

	dcfg := chat.Config{
		Prefix:      cfg.CommandPrefix,
		Sender:      transport.sender,
		Ledger:      ledger,
		Intake:      manager,
		RateLimiter: limiter,
		Logger:      logger,
		Metrics:     metrics,
		Audit:       provider.AuditLogger(),
	}
	if auth != nil {
		dcfg.Authenticator = auth
	}
	if cfg.AssistantEnabled() {
		ac, err := assistant.NewClient(cfg.OpenAI, nil,
			assistant.WithLogger(logger),
			assistant.WithMetrics(metrics))
		if err != nil {
			return err
		}
		dcfg.Assistant = ac
	}
	dispatcher, err := chat.NewDispatcher(dcfg)
	if err != nil {
		return err
	}
	sc.SetMessageHandler(dispatcher.Handle)

	logger.Info("officebot started",
		slog.String("transport", cfg.Transport),
		slog.String("version", version),
		slog.String("http_addr", cfg.HTTPAddr))

	runErr := make(chan error, 1)
	go func() {
		runErr <- transport.run(sc.Context(), dispatcher.Handle)
	}()

	select {
	case err := <-runErr:
		if err != nil {
			return fmt.Errorf("%s transport stopped with error: %w", cfg.Transport, err)
		}
		return nil
	case err, ok := <-httpErr:
		if ok && err != nil {
			return fmt.Errorf("http server failed: %w", err)
		}
		return <-runErr
	case <-shutdownCtx.Done():
		logger.Info("shutdown signal received")
		// The transport observes the same context.
		return <-runErr
	}
}

// chatTransport is the running chat surface.
type chatTransport struct {
	sender chat.Sender
	run    func(ctx context.Context, handle func(context.Context, chat.Message)) error
	// probe reports the connection state, when the transport has one.
	probe func(ctx context.Context) error
}

func newTransport(cfg config.Config, sc *server.ServerContext, logger *slog.Logger) (*chatTransport, error) {
	switch cfg.Transport {
	case config.TransportDiscord:
		bot, err := discord.New(cfg.DiscordToken, discord.WithLogger(logger))
		if err != nil {
			return nil, err
		}
		return &chatTransport{sender: bot, run: bot.Run, probe: bot.Ping}, nil

	case config.TransportConsole:
		console := chat.NewConsole(os.Stdin, os.Stdout, cfg.ConsoleUser, "console")
		return &chatTransport{sender: console, run: console.Run}, nil

	case config.TransportMCP:
		outbox := chat_tools.NewOutbox()
		mcpSrv := mcpserver.NewMCPServer("officebot", version,
			mcpserver.WithToolCapabilities(true),
			mcpserver.WithRecovery(),
		)
		if err := chat_tools.RegisterChatTools(mcpSrv, sc, outbox); err != nil {
			return nil, err
		}
		return &chatTransport{
			sender: outbox,
			run: func(ctx context.Context, _ func(context.Context, chat.Message)) error {
				return runStdioServer(ctx, mcpSrv)
			},
		}, nil

	default:
		return nil, fmt.Errorf("unsupported transport type: %s (supported: discord, console, mcp)", cfg.Transport)
	}
}

// newTokenStore builds the configured Google token store.
func newTokenStore(cfg config.Config, conn *sql.DB, writer *db.Worker) (google.TokenStore, error) {
	key, err := cfg.EncryptionKey()
	if err != nil {
		return nil, err
	}
	enc, err := google.NewTokenEncryption(key)
	if err != nil {
		return nil, err
	}

	switch cfg.TokenStore {
	case config.TokenStoreFile:
		return google.NewFileStore(cfg.TokenFile, enc), nil
	default:
		return google.NewSQLiteStore(conn, writer, enc), nil
	}
}

func runStdioServer(ctx context.Context, mcpSrv *mcpserver.MCPServer) error {
	stdio := mcpserver.NewStdioServer(mcpSrv)
	if err := stdio.Listen(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("server stopped with error: %w", err)
	}
	return nil
}

func shutdownHTTP(logger *slog.Logger, name string, shutdown func(context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := shutdown(ctx); err != nil {
		logger.Warn("error during server shutdown", slog.String("server", name), logging.Err(err))
	}
}

// parseCommaSeparatedList parses a comma-separated string into a slice,
// trimming whitespace from each element and filtering out empty strings.
// Returns nil if the input is empty or contains only whitespace/commas.
func parseCommaSeparatedList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	if len(result) == 0 {
		return nil
	}
	return result
}
