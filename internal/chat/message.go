package chat

import (
	"context"
	"strings"
	"time"
	"unicode"
)

// Message is an inbound chat message, independent of the transport.
type Message struct {
	ID         string
	AuthorID   string
	AuthorName string
	ChannelID  string
	Content    string
	Timestamp  time.Time
}

// Sender delivers a text message to a channel.
type Sender interface {
	Send(ctx context.Context, channelID, text string) error
}

// SenderFunc adapts a function to the Sender interface.
type SenderFunc func(ctx context.Context, channelID, text string) error

// Send calls f.
func (f SenderFunc) Send(ctx context.Context, channelID, text string) error {
	return f(ctx, channelID, text)
}

// Command is a parsed prefixed command.
type Command struct {
	Name string
	Args string
}

// ParseCommand parses "<prefix><name> <args>". Names are lowercased; args
// keep their inner whitespace but are trimmed.
func ParseCommand(prefix, content string) (Command, bool) {
	content = strings.TrimSpace(content)
	if prefix == "" || !strings.HasPrefix(content, prefix) {
		return Command{}, false
	}

	rest := strings.TrimPrefix(content, prefix)
	name, args := rest, ""
	if i := strings.IndexFunc(rest, unicode.IsSpace); i >= 0 {
		name, args = rest[:i], rest[i:]
	}
	if name == "" {
		return Command{}, false
	}
	return Command{Name: strings.ToLower(name), Args: strings.TrimSpace(args)}, true
}
