// Package logging adds level filtering on top of the standard log package.
package logging

import (
	"fmt"
	"log"
	"strings"
	"sync/atomic"
)

// Level represents logging severity.
type Level int32

const (
	LevelError Level = iota
	LevelWarn
	LevelInfo
	LevelDebug
	LevelTrace
)

var current atomic.Int32

func init() {
	current.Store(int32(LevelInfo))
	log.SetFlags(log.LstdFlags | log.Lmsgprefix)
}

// SetVerbosity maps a count of -v flags onto a level.
// Zero keeps the daemon default of info.
func SetVerbosity(count int) {
	switch {
	case count <= 0:
		SetLevel(LevelInfo)
	case count == 1:
		SetLevel(LevelDebug)
	default:
		SetLevel(LevelTrace)
	}
}

// SetLevel sets the most verbose level that is printed.
func SetLevel(l Level) {
	current.Store(int32(l))
}

// CurrentLevel returns the active level.
func CurrentLevel() Level {
	return Level(current.Load())
}

// String returns the lower case level name.
func (l Level) String() string {
	switch l {
	case LevelError:
		return "error"
	case LevelWarn:
		return "warn"
	case LevelInfo:
		return "info"
	case LevelDebug:
		return "debug"
	case LevelTrace:
		return "trace"
	default:
		return "unknown"
	}
}

// ParseLevel converts a level name.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(s) {
	case "error":
		return LevelError, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "info", "":
		return LevelInfo, nil
	case "debug":
		return LevelDebug, nil
	case "trace":
		return LevelTrace, nil
	default:
		return LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
}

// Enabled reports whether messages at l are printed.
func Enabled(l Level) bool {
	return l <= CurrentLevel()
}

func logf(l Level, prefix, format string, args ...any) {
	if !Enabled(l) {
		return
	}
	log.Printf("[%s] %s", prefix, fmt.Sprintf(format, args...))
}

// Errorf always prints.
func Errorf(format string, args ...any) {
	logf(LevelError, "ERROR", format, args...)
}

func Warnf(format string, args ...any) {
	logf(LevelWarn, "WARN", format, args...)
}

func Infof(format string, args ...any) {
	logf(LevelInfo, "INFO", format, args...)
}

func Debugf(format string, args ...any) {
	logf(LevelDebug, "DEBUG", format, args...)
}

// Tracef logs at trace level. The control loop uses it once per poll.
func Tracef(format string, args ...any) {
	logf(LevelTrace, "TRACE", format, args...)
}
