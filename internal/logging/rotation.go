package logging

import (
	"log/slog"

	"github.com/robfig/cron/v3"
)

// DailyRotationSpec rotates log files at local midnight.
const DailyRotationSpec = "@midnight"

// ScheduleDailyRotation registers a midnight rotation job for the rotator's files.
func ScheduleDailyRotation(scheduler *cron.Cron, rotator *Rotator, logger *slog.Logger) (cron.EntryID, error) {
	logger = NewComponentLogger(logger, "logging")
	return scheduler.AddFunc(DailyRotationSpec, func() {
		if err := rotator.Rotate(); err != nil {
			ErrorWithContext(logger, "log rotation failed", "log_rotation_failed",
				Error(err),
				String(FieldErrorHint, "check permissions on the log directory"),
			)
			return
		}
		logger.Debug("log files rotated", Strings("paths", rotator.Paths()))
	})
}
