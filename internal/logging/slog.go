package logging

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// Attribute keys shared by every component.
const (
	KeyOperation = "operation"
	KeyCommand   = "command"
	KeyProvider  = "provider"
	KeyChannel   = "channel"
	KeyUserHash  = "user_hash"
	KeyState     = "state"
	KeyStatus    = "status"
	KeyError     = "error"
)

// New builds a slog.Logger writing to w. level is one of debug, info, warn
// or error; format is "json" or "text". Unknown values fall back to info and
// text.
func New(w io.Writer, level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(level)}
	if strings.EqualFold(format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// ParseLevel maps a level name to a slog.Level.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// WithProvider scopes logger to one upstream provider.
func WithProvider(logger *slog.Logger, provider string) *slog.Logger {
	return logger.With(slog.String(KeyProvider, provider))
}

// Operation returns a slog attribute for the operation name.
func Operation(op string) slog.Attr {
	return slog.String(KeyOperation, op)
}

// Command returns a slog attribute for the chat command.
func Command(command string) slog.Attr {
	return slog.String(KeyCommand, command)
}

// Channel returns a slog attribute for the chat channel.
func Channel(channel string) slog.Attr {
	return slog.String(KeyChannel, channel)
}

// State returns a slog attribute for an intake flow state.
func State(state fmt.Stringer) slog.Attr {
	return slog.String(KeyState, state.String())
}

// Err returns the error attribute. A nil err yields an empty group, which
// handlers drop.
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Group("")
	}
	return slog.String(KeyError, err.Error())
}

// AnonymizeIdentity returns a hashed representation of a chat user identity.
// Entries for the same user stay correlatable without exposing the id.
func AnonymizeIdentity(identity string) string {
	if identity == "" {
		return ""
	}
	hash := sha256.Sum256([]byte(identity))
	return "user:" + hex.EncodeToString(hash[:8])
}

// UserHash returns a slog attribute with the anonymized user identity.
//
// Usage:
//
//	logger.Info("login recorded", logging.UserHash(msg.AuthorID))
func UserHash(identity string) slog.Attr {
	return slog.String(KeyUserHash, AnonymizeIdentity(identity))
}

// SanitizeToken reports only the length of token.
func SanitizeToken(token string) string {
	if token == "" {
		return "<empty>"
	}
	return fmt.Sprintf("[token:%d chars]", len(token))
}
