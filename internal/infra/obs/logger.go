package obs

import (
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"
)

// NewLogger uses colored text output for dev/local and JSON elsewhere.
func NewLogger(env string, level slog.Leveler) *slog.Logger {
	return newLogger(os.Stdout, env, level)
}

func newLogger(w io.Writer, env string, level slog.Leveler) *slog.Logger {
	if level == nil {
		level = slog.LevelInfo
	}
	if env == "dev" || env == "local" {
		return slog.New(tint.NewHandler(w, &tint.Options{
			Level:      level,
			TimeFormat: time.RFC3339,
			AddSource:  true,
		}))
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level:     level,
		AddSource: true,
	}))
}
