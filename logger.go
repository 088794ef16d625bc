package plog

import (
	"context"
	"path/filepath"
	"runtime"
)

// Logger is the facade over an Aggregator. Child loggers created by With,
// WithTask and WithCaller share the parent's aggregator.
type Logger struct {
	agg    *Aggregator
	bound  []Field
	task   string
	caller bool
}

// New builds a Logger over a new Aggregator.
func New(opts Options, specs ...ChannelSpec) (*Logger, error) {
	agg, err := NewAggregator(opts, specs...)
	if err != nil {
		return nil, err
	}
	return &Logger{agg: agg}, nil
}

// NewWithAggregator wraps an existing Aggregator.
func NewWithAggregator(a *Aggregator) *Logger { return &Logger{agg: a} }

// Aggregator returns the underlying aggregator.
func (l *Logger) Aggregator() *Aggregator { return l.agg }

// Log submits one record. Fields bound with With precede fields. When loc is
// nil and caller capture is on, the calling location is recorded.
func (l *Logger) Log(level Level, msg string, fields []Field, loc *Location) error {
	return l.log(3, level, msg, fields, loc)
}

func (l *Logger) log(skip int, level Level, msg string, fields []Field, loc *Location) error {
	if loc == nil && l.caller {
		loc = callerLocation(skip)
	}
	return l.agg.Submit(newRecord(level, msg, l.bound, fields, loc, l.task))
}

func callerLocation(skip int) *Location {
	pc, file, line, ok := runtime.Caller(skip)
	if !ok {
		return nil
	}
	loc := &Location{File: filepath.Base(file), Line: line}
	if fn := runtime.FuncForPC(pc); fn != nil {
		loc.Function = fn.Name()
	}
	return loc
}

// Level entry points returning fluent builders.

func (l *Logger) Trace() *Event { return getEvent(l, LevelTrace) }
func (l *Logger) Debug() *Event { return getEvent(l, LevelDebug) }
func (l *Logger) Info() *Event  { return getEvent(l, LevelInfo) }
func (l *Logger) Warn() *Event  { return getEvent(l, LevelWarn) }
func (l *Logger) Error() *Event { return getEvent(l, LevelError) }
func (l *Logger) Fatal() *Event { return getEvent(l, LevelFatal) }

// With returns a child logger with bound fields.
func (l *Logger) With(fs ...Field) *Logger {
	child := *l
	child.bound = append(copyFields(make([]Field, 0, len(l.bound)+len(fs)), l.bound), fs...)
	return &child
}

// WithTask returns a child logger that stamps records with a task identity,
// such as the host runtime's thread or request id.
func (l *Logger) WithTask(task string) *Logger {
	child := *l
	child.task = task
	return &child
}

// WithCaller returns a child logger that records the source location of each call.
func (l *Logger) WithCaller() *Logger {
	child := *l
	child.caller = true
	return &child
}

// AddChannel registers a channel on the underlying aggregator.
func (l *Logger) AddChannel(spec ChannelSpec) (*Channel, error) { return l.agg.AddChannel(spec) }

// RemoveChannel detaches a channel and closes its sink.
func (l *Logger) RemoveChannel(ctx context.Context, id string) error {
	return l.agg.RemoveChannel(ctx, id)
}

// Channels returns the registered channels in order.
func (l *Logger) Channels() []*Channel { return l.agg.Channels() }

// Flush waits for queued records and flushes every sink.
func (l *Logger) Flush(ctx context.Context) error { return l.agg.Flush(ctx) }

// Shutdown drains and closes the logger. It is idempotent.
func (l *Logger) Shutdown(ctx context.Context) error { return l.agg.Shutdown(ctx) }

// Stop discards queued records and closes the logger. It is idempotent.
func (l *Logger) Stop(ctx context.Context) error { return l.agg.Stop(ctx) }

// Stats returns the aggregator counters.
func (l *Logger) Stats() Stats { return l.agg.Stats() }
