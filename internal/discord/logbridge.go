package discord

import (
	"log/slog"
	"sync"

	"github.com/bwmarrin/discordgo"

	"github.com/teemow/officebot/internal/logging"
)

var bridgeOnce sync.Once

// bridgeLogs routes discordgo's package-level logger to logger. Only the
// first bot's logger is installed.
func bridgeLogs(logger *slog.Logger) {
	bridgeOnce.Do(func() {
		sinks := map[int]logging.PrintfFunc{
			discordgo.LogError:         logging.Printf(logger, slog.LevelError),
			discordgo.LogWarning:       logging.Printf(logger, slog.LevelWarn),
			discordgo.LogInformational: logging.Printf(logger, slog.LevelInfo),
			discordgo.LogDebug:         logging.Printf(logger, slog.LevelDebug),
		}
		discordgo.Logger = func(msgL, _ int, format string, a ...any) {
			sinks[clampLevel(msgL)](format, a...)
		}
	})
}

func clampLevel(l int) int {
	if l < discordgo.LogError {
		return discordgo.LogError
	}
	if l > discordgo.LogDebug {
		return discordgo.LogDebug
	}
	return l
}
