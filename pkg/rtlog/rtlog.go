// Package rtlog implements the logging sink of spec §6: level-filtered
// (Off/Error/Warn/Info/Debug), with a pluggable handler callback and a
// default handler that delegates to a platform-specific sink.
//
// Grounded on the zerolog usage already present in the pack
// (sacenox-symb's internal/llm.loop, haasonsaas-nexus) of reaching for a
// process-wide zerolog.Logger and calling .Warn()/.Info() straight off the
// global logger rather than threading a logger value through every call;
// rtlog keeps that shape but adds the level gate and pluggable-handler hook
// the spec requires, which the pack's direct zerolog/log calls don't need
// because they don't promise a documented severity contract to embedders.
package rtlog

import (
	"fmt"
	"runtime"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Level mirrors spec §6's severity enum.
type Level int

const (
	Off Level = iota
	LevelError
	LevelWarn
	LevelInfo
	LevelDebug
)

// Handler receives one log record. file/line/fn identify the call site
// (spec §6 "(level, file, line, func, fmt, args)"); args are already
// formatted into msg by the time Handler is called, kept available here as
// the formatted message rather than the raw fmt/args pair since Go's
// fmt.Sprintf has already done the work by the call site.
type Handler func(level Level, file string, line int, fn string, msg string)

var (
	minLevel = LevelInfo
	handler  Handler = defaultHandler
)

// SetLevel sets the minimum level that reaches the handler; below it, Log
// calls are no-ops (spec §6 "Off" disables everything).
func SetLevel(l Level) { minLevel = l }

// SetHandler installs a custom handler, replacing the default zerolog sink.
// Passing nil restores the default.
func SetHandler(h Handler) {
	if h == nil {
		h = defaultHandler
	}
	handler = h
}

// defaultHandler delegates to the process-wide zerolog logger, matching the
// pack's convention of logging straight off the global zerolog/log logger.
func defaultHandler(level Level, file string, line int, fn string, msg string) {
	var event *zerolog.Event
	switch level {
	case LevelError:
		event = log.Error()
	case LevelWarn:
		event = log.Warn()
	case LevelInfo:
		event = log.Info()
	case LevelDebug:
		event = log.Debug()
	default:
		return
	}
	event.Str("func", fn).Str("file", file).Int("line", line).Msg(msg)
}

func logAt(level Level, format string, args ...interface{}) {
	if level == Off || level > minLevel {
		return
	}
	fn, file, line := caller()
	handler(level, file, line, fn, fmt.Sprintf(format, args...))
}

func caller() (fn, file string, line int) {
	pc, file, line, ok := runtime.Caller(2)
	if !ok {
		return "unknown", "unknown", 0
	}
	if f := runtime.FuncForPC(pc); f != nil {
		fn = f.Name()
	}
	return fn, file, line
}

// Errorf logs at LevelError.
func Errorf(format string, args ...interface{}) { logAt(LevelError, format, args...) }

// Warnf logs at LevelWarn (spec §6 "Warn on duplicate tool registration and
// idempotent double-close").
func Warnf(format string, args ...interface{}) { logAt(LevelWarn, format, args...) }

// Infof logs at LevelInfo (spec §6 "Info on agent/session creation").
func Infof(format string, args ...interface{}) { logAt(LevelInfo, format, args...) }

// Debugf logs at LevelDebug.
func Debugf(format string, args ...interface{}) { logAt(LevelDebug, format, args...) }
