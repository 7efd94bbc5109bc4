package scheduler

import (
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

type cronLogger struct {
	logger zerolog.Logger
}

// NewCronLogger adapts zerolog to the cron.Logger interface. Cron's own
// bookkeeping messages (wake, run, schedule) are logged at debug level.
func NewCronLogger(logger zerolog.Logger) cron.Logger {
	return cronLogger{logger: logger}
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug().Fields(keysAndValues).Msg("cron: " + msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error().Err(err).Fields(keysAndValues).Msg("cron: " + msg)
}
