package discord

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"unicode/utf8"

	"github.com/bwmarrin/discordgo"

	"github.com/teemow/officebot/internal/chat"
	"github.com/teemow/officebot/internal/logging"
)

// MaxMessageLength is the longest message Discord accepts, in characters.
const MaxMessageLength = 2000

// Intents are the gateway intents the bot needs: guild and direct messages
// with their content.
const Intents = discordgo.IntentsGuildMessages | discordgo.IntentsDirectMessages | discordgo.IntentMessageContent

// Error describes a failed Discord operation.
type Error struct {
	Op        string
	ChannelID string
	Err       error
}

func (e *Error) Error() string {
	if e.ChannelID == "" {
		return fmt.Sprintf("discord %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("discord %s (channel %s): %v", e.Op, e.ChannelID, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// messageSender is the part of *discordgo.Session used to reply.
type messageSender interface {
	ChannelMessageSend(channelID, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// Bot is a chat transport backed by a discordgo session.
type Bot struct {
	session   *discordgo.Session
	sender    messageSender
	logger    *slog.Logger
	connected atomic.Bool
}

// Option configures a Bot.
type Option func(*Bot)

// WithLogger sets the logger. It also receives discordgo's internal logs.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Bot) { b.logger = logger }
}

// New creates a bot for token. The connection is opened by Run.
func New(token string, opts ...Option) (*Bot, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, &Error{Op: "initialize", Err: errors.New("bot token cannot be empty")}
	}
	if !strings.HasPrefix(token, "Bot ") {
		token = "Bot " + token
	}

	session, err := discordgo.New(token)
	if err != nil {
		return nil, &Error{Op: "initialize", Err: err}
	}
	session.Identify.Intents = Intents

	b := &Bot{session: session, sender: session, logger: slog.Default()}
	for _, opt := range opts {
		opt(b)
	}

	bridgeLogs(b.logger)
	if b.logger.Enabled(context.Background(), slog.LevelDebug) {
		session.LogLevel = discordgo.LogDebug
	} else {
		session.LogLevel = discordgo.LogWarning
	}
	return b, nil
}

// Send posts text to channelID, splitting it when it exceeds
// MaxMessageLength.
func (b *Bot) Send(ctx context.Context, channelID, text string) error {
	for _, part := range chunk(text, MaxMessageLength) {
		if _, err := b.sender.ChannelMessageSend(channelID, part, discordgo.WithContext(ctx)); err != nil {
			return &Error{Op: "send", ChannelID: channelID, Err: err}
		}
	}
	return nil
}

// Run connects to the gateway and passes every message from another user to
// handle until ctx is done.
func (b *Bot) Run(ctx context.Context, handle func(context.Context, chat.Message)) error {
	remove := b.session.AddHandler(func(s *discordgo.Session, m *discordgo.MessageCreate) {
		self := ""
		if s.State != nil && s.State.User != nil {
			self = s.State.User.ID
		}
		msg, ok := toMessage(m, self)
		if !ok {
			return
		}
		handle(ctx, msg)
	})
	defer remove()
	defer b.session.AddHandler(func(_ *discordgo.Session, _ *discordgo.Connect) {
		b.connected.Store(true)
	})()
	defer b.session.AddHandler(func(_ *discordgo.Session, _ *discordgo.Disconnect) {
		b.connected.Store(false)
		b.logger.Warn("discord gateway disconnected, reconnecting", logging.Operation("discord.run"))
	})()

	if err := b.session.Open(); err != nil {
		return &Error{Op: "open", Err: err}
	}
	b.logger.Info("connected to Discord", logging.Operation("discord.run"))

	<-ctx.Done()

	b.connected.Store(false)
	if err := b.session.Close(); err != nil {
		return &Error{Op: "close", Err: err}
	}
	b.logger.Info("disconnected from Discord", logging.Operation("discord.run"))
	return nil
}

// Ping reports whether the gateway connection is up. It serves as a health
// check.
func (b *Bot) Ping(context.Context) error {
	if !b.connected.Load() {
		return &Error{Op: "ping", Err: errors.New("gateway not connected")}
	}
	return nil
}

// toMessage converts a gateway event. Messages from bots (including this one)
// and messages without text are dropped.
func toMessage(m *discordgo.MessageCreate, self string) (chat.Message, bool) {
	if m == nil || m.Message == nil || m.Author == nil {
		return chat.Message{}, false
	}
	if m.Author.Bot || m.Author.ID == self {
		return chat.Message{}, false
	}
	if strings.TrimSpace(m.Content) == "" {
		return chat.Message{}, false
	}

	return chat.Message{
		ID:         m.ID,
		AuthorID:   m.Author.ID,
		AuthorName: m.Author.Username,
		ChannelID:  m.ChannelID,
		Content:    m.Content,
		Timestamp:  m.Timestamp.UTC(),
	}, true
}

// chunk splits text into parts of at most limit runes, preferring to break
// after a newline.
func chunk(text string, limit int) []string {
	if utf8.RuneCountInString(text) <= limit {
		return []string{text}
	}

	var parts []string
	runes := []rune(text)
	for len(runes) > limit {
		cut := limit
		for i := limit - 1; i > limit/2; i-- {
			if runes[i] == '\n' {
				cut = i + 1
				break
			}
		}
		parts = append(parts, string(runes[:cut]))
		runes = runes[cut:]
	}
	if len(runes) > 0 {
		parts = append(parts, string(runes))
	}
	return parts
}
