package plog

import (
	"fmt"
	"strings"
)

// Level mirrors slog numeric semantics and extends with Trace (-8) and Fatal (12).
// Fatal is a severity only; the engine never terminates the host process.
type Level int

const (
	LevelTrace Level = -8
	LevelDebug Level = -4
	LevelInfo  Level = 0
	LevelWarn  Level = 4
	LevelError Level = 8
	LevelFatal Level = 12
)

// levels lists every valid level in ascending severity.
var levels = [...]Level{LevelTrace, LevelDebug, LevelInfo, LevelWarn, LevelError, LevelFatal}

// Levels returns the valid levels in ascending severity.
func Levels() []Level {
	out := make([]Level, len(levels))
	copy(out, levels[:])
	return out
}

func (l Level) String() string {
	switch l {
	case LevelTrace:
		return "TRACE"
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	case LevelFatal:
		return "FATAL"
	}
	return fmt.Sprintf("LEVEL(%d)", int(l))
}

// Valid reports whether l is one of the six defined levels.
func (l Level) Valid() bool {
	for _, v := range levels {
		if v == l {
			return true
		}
	}
	return false
}

// ClampLevel maps an arbitrary value onto the nearest defined level.
// Values below Trace become Trace, values above Fatal become Fatal, and a value
// equidistant from two levels resolves to the more severe one.
func ClampLevel(l Level) Level {
	if l <= LevelTrace {
		return LevelTrace
	}
	if l >= LevelFatal {
		return LevelFatal
	}
	best := LevelTrace
	for _, v := range levels {
		if abs(int(l)-int(v)) <= abs(int(l)-int(best)) {
			best = v
		}
	}
	return best
}

// ParseLevel accepts level names case-insensitively ("warning" is an alias of "warn").
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "trace":
		return LevelTrace, nil
	case "debug":
		return LevelDebug, nil
	case "info", "":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	case "fatal":
		return LevelFatal, nil
	}
	return LevelInfo, &ConfigError{Field: "level", Reason: fmt.Sprintf("unknown level %q", s)}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
