// Package diag reports faults of the logging pipeline itself. It writes JSON
// lines to stderr through zerolog and never routes back into the engine.
package diag

import (
	"io"
	"os"
	"sync/atomic"

	"github.com/rs/zerolog"
)

var logger atomic.Pointer[zerolog.Logger]

func init() {
	SetOutput(os.Stderr)
}

// SetOutput redirects diagnostics to w (os.Stderr when nil) and returns the
// previous logger so tests can restore it.
func SetOutput(w io.Writer) *zerolog.Logger {
	if w == nil {
		w = os.Stderr
	}
	l := zerolog.New(w).With().Timestamp().Str("component", "plog").Logger()
	return logger.Swap(&l)
}

// Restore reinstalls a logger returned by SetOutput.
func Restore(l *zerolog.Logger) {
	if l != nil {
		logger.Store(l)
	}
}

// Logger returns the current diagnostics logger.
func Logger() *zerolog.Logger { return logger.Load() }

// Report logs a pipeline error.
func Report(err error) {
	if err == nil {
		return
	}
	Logger().Error().Err(err).Msg("logging pipeline fault")
}

// Warn logs a pipeline condition that is not an error, such as a forced shutdown.
func Warn(msg string, kv ...string) {
	ev := Logger().Warn()
	for i := 0; i+1 < len(kv); i += 2 {
		ev = ev.Str(kv[i], kv[i+1])
	}
	ev.Msg(msg)
}
