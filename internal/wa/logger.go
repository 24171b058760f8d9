package wa

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	waLog "go.mau.fi/whatsmeow/util/log"
)

// slogAdapter routes whatsmeow logs into slog, dropping lines below min.
type slogAdapter struct {
	logger *slog.Logger
	min    slog.Level
}

func newLogger(logger *slog.Logger, module, level string) waLog.Logger {
	return &slogAdapter{logger: logger.With("module", module), min: parseLevel(level)}
}

func parseLevel(level string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func (l *slogAdapter) log(level slog.Level, msg string, args []any) {
	if level < l.min {
		return
	}
	l.logger.Log(context.Background(), level, fmt.Sprintf(msg, args...))
}

func (l *slogAdapter) Debugf(msg string, args ...any) { l.log(slog.LevelDebug, msg, args) }
func (l *slogAdapter) Infof(msg string, args ...any)  { l.log(slog.LevelInfo, msg, args) }
func (l *slogAdapter) Warnf(msg string, args ...any)  { l.log(slog.LevelWarn, msg, args) }
func (l *slogAdapter) Errorf(msg string, args ...any) { l.log(slog.LevelError, msg, args) }

func (l *slogAdapter) Sub(module string) waLog.Logger {
	return &slogAdapter{logger: l.logger.With("module", module), min: l.min}
}
