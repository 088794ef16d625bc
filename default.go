package plog

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/trickstertwo/plog/internal/diag"
)

// DefaultShutdownTimeout bounds draining a global logger replaced by Configure.
const DefaultShutdownTimeout = 5 * time.Second

var (
	global   atomic.Pointer[Logger]
	globalMu sync.Mutex
)

// Default returns a new synchronous Logger with a single stderr console
// channel accepting Info and above.
func Default() *Logger {
	l, err := New(Options{Mode: DispatchSync}, ChannelSpec{
		Name:      "console",
		Filter:    Threshold(LevelInfo),
		Formatter: PlainText{},
		Sink:      NewConsole(nil),
	})
	if err != nil {
		// Options and spec above are static and valid.
		panic(err)
	}
	return l
}

// L returns the global Logger, creating Default() on first use.
func L() *Logger {
	if l := global.Load(); l != nil {
		return l
	}
	globalMu.Lock()
	defer globalMu.Unlock()
	if l := global.Load(); l != nil {
		return l
	}
	l := Default()
	global.Store(l)
	return l
}

// SetGlobal replaces the global Logger without shutting down the previous
// one. A nil l restores lazy default initialization.
func SetGlobal(l *Logger) {
	globalMu.Lock()
	defer globalMu.Unlock()
	global.Store(l)
}

// Configure builds a new global Logger and drains the one it replaces.
// Only configuration errors are returned, and on error the current global is
// left untouched. Failures while draining the replaced logger go to the
// diagnostics stream.
func Configure(opts Options, specs ...ChannelSpec) error {
	l, err := New(opts, specs...)
	if err != nil {
		return err
	}
	globalMu.Lock()
	old := global.Swap(l)
	globalMu.Unlock()
	if old != nil && old.agg != l.agg {
		ctx, cancel := context.WithTimeout(context.Background(), DefaultShutdownTimeout)
		defer cancel()
		if err := old.Shutdown(ctx); err != nil {
			diag.Report(fmt.Errorf("plog: drain replaced logger: %w", err))
		}
	}
	return nil
}

// Log submits a record through the global Logger.
func Log(level Level, msg string, fields []Field, loc *Location) error {
	return L().log(3, level, msg, fields, loc)
}

// AddChannel registers a channel on the global Logger.
func AddChannel(spec ChannelSpec) (*Channel, error) { return L().AddChannel(spec) }

// RemoveChannel removes a channel from the global Logger.
func RemoveChannel(ctx context.Context, id string) error { return L().RemoveChannel(ctx, id) }

// Flush flushes the global Logger.
func Flush(ctx context.Context) error { return L().Flush(ctx) }

// Shutdown drains and closes the global Logger. It is idempotent; until the
// next Configure, logging through the global returns ErrShutdown.
func Shutdown(ctx context.Context) error {
	l := global.Load()
	if l == nil {
		return nil
	}
	return l.Shutdown(ctx)
}

// Stop force-closes the global Logger, discarding queued records.
func Stop(ctx context.Context) error {
	l := global.Load()
	if l == nil {
		return nil
	}
	return l.Stop(ctx)
}

// Current returns the global Logger without creating one.
func Current() *Logger { return global.Load() }
