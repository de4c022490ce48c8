// Package runlog writes run messages to both the structured log and the run's
// status event stream.
package runlog

import (
	"runtime/debug"

	"github.com/robinjoseph08/golib/logger"
	"github.com/shishobooks/jellytweak/pkg/progress"
)

const maxDataValueLen = 1024

// Logger wraps logging to both stdout and the event stream of a run.
type Logger struct {
	log     logger.Logger
	tracker *progress.Tracker
}

// New creates a Logger for the run followed by tracker.
func New(log logger.Logger, tracker *progress.Tracker) *Logger {
	return &Logger{log: log, tracker: tracker}
}

// Log returns the underlying structured logger.
func (l *Logger) Log() logger.Logger {
	return l.log
}

// Info logs an info-level message.
func (l *Logger) Info(msg string, data logger.Data) {
	l.log.Info(msg, data)
	l.publish(progress.LevelInfo, msg, data)
}

// Warn logs a warning-level message.
func (l *Logger) Warn(msg string, data logger.Data) {
	l.log.Warn(msg, data)
	l.publish(progress.LevelWarn, msg, data)
}

// Error logs an error-level message.
func (l *Logger) Error(msg string, err error, data logger.Data) {
	l.log.Err(err).Error(msg, data)
	data = withError(data, err)
	l.publish(progress.LevelError, msg, data)
}

// Fatal logs an error-level message with a stack trace (for panics).
func (l *Logger) Fatal(msg string, err error, data logger.Data) {
	data = withError(data, err)
	data["stack_trace"] = string(debug.Stack())
	l.log.Error(msg, data)
	l.publish(progress.LevelError, msg, data)
}

func withError(data logger.Data, err error) logger.Data {
	out := logger.Data{}
	for k, v := range data {
		out[k] = v
	}
	if err != nil {
		out["error"] = err.Error()
	}
	return out
}

func (l *Logger) publish(level progress.Level, msg string, data logger.Data) {
	if l.tracker == nil {
		return
	}

	var truncated map[string]interface{}
	if len(data) > 0 {
		truncated = make(map[string]interface{}, len(data))
		for k, v := range data {
			s, ok := v.(string)
			if ok && len(s) > maxDataValueLen {
				truncated[k] = truncateMiddle(s, maxDataValueLen)
			} else {
				truncated[k] = v
			}
		}
	}

	l.tracker.Message(level, msg, truncated)
}

func truncateMiddle(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	half := (maxLen - 5) / 2
	return s[:half] + " ... " + s[len(s)-half:]
}
