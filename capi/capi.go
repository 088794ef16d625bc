// Package capi is the status-code boundary over the global plog logger.
// Every entry point takes plain values, returns a Status and never panics,
// so it can back a C-linkage export consumed by other language runtimes.
package capi

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/trickstertwo/plog"
	"github.com/trickstertwo/plog/config"
	"github.com/trickstertwo/plog/internal/diag"
)

// Status is the result of every boundary call.
type Status int32

const (
	StatusOK Status = iota
	StatusInvalidArgument
	StatusConfiguration
	StatusShutdown
	StatusDropped
	StatusNotFound
	StatusTimeout
	StatusInternal
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusInvalidArgument:
		return "invalid_argument"
	case StatusConfiguration:
		return "configuration"
	case StatusShutdown:
		return "shutdown"
	case StatusDropped:
		return "dropped"
	case StatusNotFound:
		return "not_found"
	case StatusTimeout:
		return "timeout"
	case StatusInternal:
		return "internal"
	}
	return fmt.Sprintf("Status(%d)", int32(s))
}

// Handle identifies a channel added through AddChannel. Zero is never issued.
type Handle int64

// Level ordinals used across the boundary.
const (
	LevelTrace = iota
	LevelDebug
	LevelInfo
	LevelWarn
	LevelError
	LevelFatal
)

var ordinals = [...]plog.Level{plog.LevelTrace, plog.LevelDebug, plog.LevelInfo, plog.LevelWarn, plog.LevelError, plog.LevelFatal}

// LevelFromOrdinal maps 0..5 onto Trace..Fatal, clamping values outside the range.
func LevelFromOrdinal(n int) plog.Level {
	if n < 0 {
		n = 0
	}
	if n >= len(ordinals) {
		n = len(ordinals) - 1
	}
	return ordinals[n]
}

var (
	mu      sync.Mutex
	base    = config.Default()
	handles = map[Handle]string{}
	next    Handle
)

// StatusOf classifies err.
func StatusOf(err error) Status {
	switch {
	case err == nil:
		return StatusOK
	case errors.Is(err, plog.ErrConfiguration):
		return StatusConfiguration
	case errors.Is(err, plog.ErrShutdown):
		return StatusShutdown
	case errors.Is(err, plog.ErrQueueFull):
		return StatusDropped
	case errors.Is(err, plog.ErrUnknownChannel):
		return StatusNotFound
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return StatusTimeout
	}
	return StatusInternal
}

func guard(st *Status) {
	if r := recover(); r != nil {
		diag.Report(fmt.Errorf("capi: recovered panic: %v", r))
		*st = StatusInternal
	}
}

// Log submits a record through the global logger. file may be empty; kv are
// alternating string keys and values attached as fields.
func Log(level int, msg, file string, line int, function string, kv ...string) (st Status) {
	defer guard(&st)
	if len(kv)%2 != 0 {
		return StatusInvalidArgument
	}
	var loc *plog.Location
	if file != "" {
		loc = &plog.Location{File: file, Line: line, Function: function}
	}
	var fields []plog.Field
	if len(kv) > 0 {
		fields = make([]plog.Field, 0, len(kv)/2)
		for i := 0; i < len(kv); i += 2 {
			fields = append(fields, plog.Str(kv[i], kv[i+1]))
		}
	}
	return StatusOf(plog.Log(LevelFromOrdinal(level), msg, fields, loc))
}

// Configure replaces the global logger with the pipeline described by doc,
// a YAML or JSON document. Handles issued before are invalidated.
func Configure(doc []byte) (st Status) {
	defer guard(&st)
	cfg, err := config.Parse(doc)
	if err != nil {
		diag.Report(err)
		return StatusOf(err)
	}
	opts, specs, err := cfg.Build()
	if err != nil {
		diag.Report(err)
		return StatusOf(err)
	}

	mu.Lock()
	defer mu.Unlock()
	if err := plog.Configure(opts, specs...); err != nil {
		for _, s := range specs {
			_ = s.Sink.Close()
		}
		diag.Report(err)
		return StatusOf(err)
	}
	base = *cfg
	clear(handles)
	return StatusOK
}

// AddChannel adds the single sink described by doc to the global logger.
// Level and format default to the last configured values.
func AddChannel(doc []byte) (h Handle, st Status) {
	defer guard(&st)
	sc, err := config.ParseSink(doc)
	if err != nil {
		return 0, StatusOf(err)
	}
	mu.Lock()
	defer mu.Unlock()
	spec, err := base.BuildChannel(sc)
	if err != nil {
		return 0, StatusOf(err)
	}
	ch, err := plog.AddChannel(spec)
	if err != nil {
		_ = spec.Sink.Close()
		return 0, StatusOf(err)
	}
	next++
	handles[next] = ch.ID()
	return next, StatusOK
}

// RemoveChannel flushes and closes the channel behind h, waiting at most
// timeout (DefaultTimeout when not positive).
func RemoveChannel(h Handle, timeout time.Duration) (st Status) {
	defer guard(&st)
	mu.Lock()
	id, ok := handles[h]
	delete(handles, h)
	mu.Unlock()
	if !ok {
		return StatusNotFound
	}
	ctx, cancel := withTimeout(timeout)
	defer cancel()
	return StatusOf(plog.RemoveChannel(ctx, id))
}

// Flush waits for queued records to be written and flushes every sink.
func Flush(timeout time.Duration) (st Status) {
	defer guard(&st)
	ctx, cancel := withTimeout(timeout)
	defer cancel()
	return StatusOf(plog.Flush(ctx))
}

// Shutdown drains (or, when forced, discards) queued records and closes
// every channel. Calling it again, or before any logging, returns StatusOK.
func Shutdown(forced bool, timeout time.Duration) (st Status) {
	defer guard(&st)
	ctx, cancel := withTimeout(timeout)
	defer cancel()
	var err error
	if forced {
		err = plog.Stop(ctx)
	} else {
		err = plog.Shutdown(ctx)
	}
	mu.Lock()
	clear(handles)
	mu.Unlock()
	return StatusOf(err)
}

// DroppedWrites counts records that did not reach a sink: failed writes plus
// records dropped by backpressure or a forced shutdown.
func DroppedWrites() uint64 {
	l := plog.Current()
	if l == nil {
		return 0
	}
	s := l.Stats()
	return s.WriteErrors + s.Dropped
}

// DefaultTimeout applies when a caller passes a non-positive timeout.
const DefaultTimeout = plog.DefaultShutdownTimeout

func withTimeout(d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		d = DefaultTimeout
	}
	return context.WithTimeout(context.Background(), d)
}
