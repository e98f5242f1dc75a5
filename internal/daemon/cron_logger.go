package daemon

import (
	"log/slog"

	"embymerge/internal/logging"
)

// cronLogger adapts slog to cron.Logger.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug("scheduler: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	args := append([]any{logging.Error(err), logging.String(logging.FieldEventType, "scheduler_error")}, keysAndValues...)
	l.logger.Error("scheduler: "+msg, args...)
}
