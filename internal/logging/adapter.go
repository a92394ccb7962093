package logging

import (
	"context"
	"fmt"
	"log/slog"
)

// PrintfFunc is a printf-style log sink, as expected by libraries that do not
// accept a structured logger.
type PrintfFunc func(format string, args ...any)

// Printf returns a PrintfFunc that formats the message and writes it to
// logger at the given level. A nil logger uses slog.Default().
func Printf(logger *slog.Logger, level slog.Level) PrintfFunc {
	if logger == nil {
		logger = slog.Default()
	}
	return func(format string, args ...any) {
		if !logger.Enabled(context.Background(), level) {
			return
		}
		logger.Log(context.Background(), level, fmt.Sprintf(format, args...))
	}
}
