package plog

import (
	"time"

	"github.com/trickstertwo/xclock"
)

// processStart anchors the monotonic component of every Timestamp.
var processStart = time.Now()

// Timestamp pairs the wall-clock time with a monotonic offset since process start.
// Wall is for display; Mono is safe for ordering and interval arithmetic.
type Timestamp struct {
	Wall time.Time
	Mono time.Duration
}

func now() Timestamp {
	return Timestamp{Wall: xclock.Now(), Mono: time.Since(processStart)}
}

// Location is the optional source position of a log call.
type Location struct {
	File     string
	Line     int
	Function string
}

// Record is one immutable log event. After submission it is shared read-only by
// every channel; policies must not modify it.
type Record struct {
	Level    Level
	Time     Timestamp
	Task     string
	Location *Location
	Message  string
	Fields   []Field
}

// MakeRecord builds a Record stamped with the current time. It never fails:
// out-of-range levels are clamped and the fields slice is copied so the caller
// may reuse it.
func MakeRecord(level Level, message string, fields []Field, loc *Location) *Record {
	return newRecord(level, message, nil, fields, loc, "")
}

func newRecord(level Level, message string, bound, fields []Field, loc *Location, task string) *Record {
	r := &Record{
		Level:   ClampLevel(level),
		Time:    now(),
		Task:    task,
		Message: message,
	}
	if n := len(bound) + len(fields); n > 0 {
		r.Fields = make([]Field, 0, n)
		r.Fields = copyFields(r.Fields, bound)
		r.Fields = copyFields(r.Fields, fields)
	}
	if loc != nil {
		l := *loc
		r.Location = &l
	}
	return r
}

// Field returns the first field with key k.
func (r *Record) Field(k string) (Field, bool) {
	for i := range r.Fields {
		if r.Fields[i].K == k {
			return r.Fields[i], true
		}
	}
	return Field{}, false
}
