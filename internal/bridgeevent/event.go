// Package bridgeevent defines the non-fatal event-reporting seam used
// throughout this module: a callback threaded through constructors rather
// than a logging library import.
package bridgeevent

import (
	"log/slog"
)

// Level classifies an emitted event by severity.
type Level string

const (
	Info    Level = "info"
	Warning Level = "warning"
	Error   Level = "error"
)

// Func is called for every non-fatal occurrence a transport, store, or the
// payment middleware wants surfaced: cache evictions, decrypt failures,
// schema rejections, payment lifecycle transitions. A nil Func is valid and
// silences reporting entirely.
type Func func(level Level, event string, data map[string]interface{})

// Emit calls fn if non-nil; it exists so call sites don't need a nil check
// at every call.
func Emit(fn Func, level Level, event string, data map[string]interface{}) {
	if fn == nil {
		return
	}
	fn(level, event, data)
}

// SlogFunc adapts a Func onto log/slog, for CLI use where a human wants to
// see these events on stderr.
func SlogFunc(logger *slog.Logger) Func {
	if logger == nil {
		logger = slog.Default()
	}
	return func(level Level, event string, data map[string]interface{}) {
		args := make([]any, 0, len(data)*2)
		for k, v := range data {
			args = append(args, k, v)
		}
		switch level {
		case Error:
			logger.Error(event, args...)
		case Warning:
			logger.Warn(event, args...)
		default:
			logger.Info(event, args...)
		}
	}
}
