package chat

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/teemow/officebot/internal/attendance"
	"github.com/teemow/officebot/internal/instrumentation"
	"github.com/teemow/officebot/internal/intake"
	"github.com/teemow/officebot/internal/logging"
)

// DefaultPrefix starts every command.
const DefaultPrefix = "!"

// Command names.
const (
	CmdLogin        = "login"
	CmdLogout       = "logout"
	CmdAuthenticate = "authenticate"
	CmdSetupMeeting = "setupmeeting"
	CmdAsk          = "ask"
	CmdHelp         = "help"
)

var knownCommands = []string{CmdLogin, CmdLogout, CmdAuthenticate, CmdSetupMeeting, CmdAsk, CmdHelp}

// Ledger records attendance transitions.
type Ledger interface {
	Login(ctx context.Context, employeeID int64, name, userIdentity string) (*attendance.Result, error)
	Logout(ctx context.Context, userIdentity string) (*attendance.Result, error)
}

// Authenticator issues Google consent URLs.
type Authenticator interface {
	AuthCodeURL() string
}

// Intake runs meeting setup conversations.
type Intake interface {
	Start(ctx context.Context, key intake.Key, replier intake.Replier) (*intake.Flow, error)
	Deliver(ctx context.Context, key intake.Key, text string) bool
}

// Assistant answers free-form questions.
type Assistant interface {
	Ask(ctx context.Context, question string) (string, error)
}

// Config wires a Dispatcher. Authenticator and Assistant are optional; the
// matching commands answer that they are not configured.
type Config struct {
	Prefix        string
	Sender        Sender
	Ledger        Ledger
	Intake        Intake
	Authenticator Authenticator
	Assistant     Assistant
	RateLimiter   *RateLimiter
	Logger        *slog.Logger
	Metrics       *instrumentation.Metrics
	Audit         *instrumentation.AuditLogger
}

// Dispatcher routes inbound messages to intake flows and commands.
type Dispatcher struct {
	prefix    string
	sender    Sender
	ledger    Ledger
	intake    Intake
	auth      Authenticator
	assistant Assistant
	limiter   *RateLimiter
	logger    *slog.Logger
	metrics   *instrumentation.Metrics
	audit     *instrumentation.AuditLogger
}

// NewDispatcher creates a Dispatcher.
func NewDispatcher(cfg Config) (*Dispatcher, error) {
	if cfg.Sender == nil {
		return nil, errors.New("chat: sender is required")
	}
	if cfg.Ledger == nil {
		return nil, errors.New("chat: ledger is required")
	}
	if cfg.Intake == nil {
		return nil, errors.New("chat: intake manager is required")
	}

	d := &Dispatcher{
		prefix:    cfg.Prefix,
		sender:    cfg.Sender,
		ledger:    cfg.Ledger,
		intake:    cfg.Intake,
		auth:      cfg.Authenticator,
		assistant: cfg.Assistant,
		limiter:   cfg.RateLimiter,
		logger:    cfg.Logger,
		metrics:   cfg.Metrics,
		audit:     cfg.Audit,
	}
	if d.prefix == "" {
		d.prefix = DefaultPrefix
	}
	if d.logger == nil {
		d.logger = slog.Default()
	}
	return d, nil
}

// Prefix returns the command prefix.
func (d *Dispatcher) Prefix() string {
	return d.prefix
}

// Handle processes one message. A reply to a running intake flow is consumed
// by the flow; anything else is parsed as a command. ctx must live as long as
// the transport: flows started by setupmeeting run under it.
func (d *Dispatcher) Handle(ctx context.Context, msg Message) {
	key := intake.Key{Author: msg.AuthorID, Channel: msg.ChannelID}
	if d.intake.Deliver(ctx, key, msg.Content) {
		return
	}

	cmd, ok := ParseCommand(d.prefix, msg.Content)
	if !ok {
		return
	}
	name := instrumentation.NormalizeCommand(cmd.Name, knownCommands)
	if name == instrumentation.CommandUnknown {
		d.logger.Debug("ignoring unknown command", logging.Command(cmd.Name), logging.Channel(msg.ChannelID))
		return
	}

	if !d.limiter.Allow(msg.AuthorID) {
		d.metrics.RecordCommandRateLimited(ctx, name)
		d.reply(ctx, msg.ChannelID, "You're sending commands too quickly. Please wait a moment and try again.")
		return
	}

	d.run(ctx, name, cmd.Args, msg)
}

func (d *Dispatcher) run(ctx context.Context, name, args string, msg Message) {
	ctx, span := instrumentation.StartCommandSpan(ctx, name, msg.ChannelID, msg.AuthorID)
	defer span.End()

	inv := instrumentation.NewCommandInvocation(name).
		WithUser(msg.AuthorID, msg.ChannelID).
		WithSpanContext(ctx)
	start := time.Now()

	reply, err := d.execute(ctx, name, args, msg)
	if reply != "" {
		d.reply(ctx, msg.ChannelID, reply)
	}

	status := instrumentation.StatusSuccess
	if err != nil {
		status = instrumentation.StatusError
		instrumentation.SetSpanError(span, err)
		d.logger.Warn("command failed",
			logging.Command(name),
			logging.Channel(msg.ChannelID),
			logging.UserHash(msg.AuthorID),
			logging.Err(err))
	} else {
		instrumentation.SetSpanSuccess(span)
	}
	d.metrics.RecordCommand(ctx, name, msg.ChannelID, status, time.Since(start))
	d.audit.LogCommand(inv.Complete(err))
}

func (d *Dispatcher) execute(ctx context.Context, name, args string, msg Message) (string, error) {
	switch name {
	case CmdLogin:
		return d.login(ctx, args, msg)
	case CmdLogout:
		return d.logout(ctx, msg)
	case CmdAuthenticate:
		return d.authenticate()
	case CmdSetupMeeting:
		return d.setupMeeting(ctx, msg)
	case CmdAsk:
		return d.ask(ctx, args)
	default:
		return d.help(), nil
	}
}

func (d *Dispatcher) reply(ctx context.Context, channelID, text string) {
	if err := d.sender.Send(ctx, channelID, text); err != nil {
		d.logger.Error("failed to send reply", logging.Channel(channelID), logging.Err(err))
	}
}

// replier binds a flow to the channel it was started in.
func (d *Dispatcher) replier(channelID string) intake.Replier {
	return intake.ReplierFunc(func(ctx context.Context, text string) error {
		return d.sender.Send(ctx, channelID, text)
	})
}
