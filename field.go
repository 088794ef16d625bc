package plog

import "time"

// Kind tags which value slot of a Field is populated. Formatters switch on it
// instead of type-asserting Any.
type Kind uint8

const (
	KindString Kind = iota + 1
	KindInt64
	KindUint64
	KindFloat64
	KindBool
	KindDuration
	KindTime
	KindError
	KindBytes
	KindAny
)

// Field is one structured attribute of a Record. Only the slot selected by
// Kind is meaningful; the rest stay zero. Fields are values, so a Record owns
// its own copies once MakeRecord or a Logger has built it.
type Field struct {
	K    string
	Kind Kind

	Str     string
	Int64   int64
	Uint64  uint64
	Float64 float64
	Bool    bool
	Dur     time.Duration
	Time    time.Time
	Err     error
	Bytes   []byte
	Any     any
}

// Str, Int, Int64 and the other constructors below build Fields for
// Logger.Log, Logger.With and MakeRecord.
func Str(k, v string) Field { return Field{K: k, Kind: KindString, Str: v} }

func Int(k string, v int) Field { return Int64(k, int64(v)) }

func Int64(k string, v int64) Field { return Field{K: k, Kind: KindInt64, Int64: v} }

func Uint64(k string, v uint64) Field { return Field{K: k, Kind: KindUint64, Uint64: v} }

func Float64(k string, v float64) Field { return Field{K: k, Kind: KindFloat64, Float64: v} }

func Bool(k string, v bool) Field { return Field{K: k, Kind: KindBool, Bool: v} }

// Dur renders in Go duration notation, e.g. "1.5s".
func Dur(k string, v time.Duration) Field { return Field{K: k, Kind: KindDuration, Dur: v} }

func Time(k string, v time.Time) Field { return Field{K: k, Kind: KindTime, Time: v} }

// Err keeps the error itself; formatters call Error() at render time and
// render a nil error as null.
func Err(k string, e error) Field { return Field{K: k, Kind: KindError, Err: e} }

// Bytes does not copy b; callers must not mutate it after logging. Text
// layouts print only its length.
func Bytes(k string, b []byte) Field { return Field{K: k, Kind: KindBytes, Bytes: b} }

// Any is the fallback for values without a dedicated Kind.
func Any(k string, v any) Field { return Field{K: k, Kind: KindAny, Any: v} }

// copyFields appends src to dst, leaving dst untouched when src is empty.
func copyFields(dst, src []Field) []Field {
	if len(src) == 0 {
		return dst
	}
	return append(dst, src...)
}
