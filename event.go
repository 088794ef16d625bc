package plog

import (
	"fmt"
	"sync"
	"time"
)

// Event is a fluent builder for a single record.
// API: logger.Info().Str("from", ...).Dur("took", d).Int("n", v).Msg("state changed")
type Event struct {
	l      *Logger
	level  Level
	loc    *Location
	fields []Field
}

var eventPool = sync.Pool{
	New: func() any { return &Event{fields: make([]Field, 0, 8)} },
}

func getEvent(l *Logger, level Level) *Event {
	ev := eventPool.Get().(*Event)
	ev.l = l
	ev.level = level
	ev.loc = nil
	ev.fields = ev.fields[:0]
	return ev
}

func (e *Event) putBack() {
	// allow GC of large backing arrays by capping
	if cap(e.fields) > 128 {
		e.fields = make([]Field, 0, 8)
	}
	e.l = nil
	e.loc = nil
	e.level = 0
	eventPool.Put(e)
}

func (e *Event) Str(k, v string) *Event {
	e.fields = append(e.fields, Str(k, v))
	return e
}

func (e *Event) Int(k string, v int) *Event { return e.Int64(k, int64(v)) }

func (e *Event) Int64(k string, v int64) *Event {
	e.fields = append(e.fields, Int64(k, v))
	return e
}

func (e *Event) Uint64(k string, v uint64) *Event {
	e.fields = append(e.fields, Uint64(k, v))
	return e
}

func (e *Event) Float64(k string, v float64) *Event {
	e.fields = append(e.fields, Float64(k, v))
	return e
}

func (e *Event) Bool(k string, v bool) *Event {
	e.fields = append(e.fields, Bool(k, v))
	return e
}

func (e *Event) Dur(k string, v time.Duration) *Event {
	e.fields = append(e.fields, Dur(k, v))
	return e
}

func (e *Event) Time(k string, v time.Time) *Event {
	e.fields = append(e.fields, Time(k, v))
	return e
}

func (e *Event) Bytes(k string, v []byte) *Event {
	e.fields = append(e.fields, Bytes(k, v))
	return e
}

// Err attaches err under the "error" key; nil errors are skipped.
func (e *Event) Err(err error) *Event {
	if err == nil {
		return e
	}
	e.fields = append(e.fields, Err("error", err))
	return e
}

func (e *Event) Any(k string, v any) *Event {
	e.fields = append(e.fields, Any(k, v))
	return e
}

// Fields appends pre-built fields.
func (e *Event) Fields(fs ...Field) *Event {
	e.fields = append(e.fields, fs...)
	return e
}

// At sets an explicit source location, overriding caller capture.
func (e *Event) At(file string, line int, function string) *Event {
	e.loc = &Location{File: file, Line: line, Function: function}
	return e
}

// Msg terminates the builder and submits the record. Submission errors are
// counted by the aggregator; use Send to observe them.
func (e *Event) Msg(msg string) {
	_ = e.l.log(3, e.level, msg, e.fields, e.loc)
	e.putBack()
}

// Msgf is Msg with fmt.Sprintf formatting.
func (e *Event) Msgf(format string, args ...any) {
	_ = e.l.log(3, e.level, fmt.Sprintf(format, args...), e.fields, e.loc)
	e.putBack()
}

// Send is Msg returning the submission outcome.
func (e *Event) Send(msg string) error {
	err := e.l.log(3, e.level, msg, e.fields, e.loc)
	e.putBack()
	return err
}
