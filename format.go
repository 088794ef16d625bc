package plog

import (
	"fmt"
	"time"

	"github.com/valyala/bytebufferpool"
)

// UnsupportedValue is rendered in place of field values no formatter can represent.
const UnsupportedValue = "<unsupported>"

// Formatter renders a record into bytes. Render must be total: it never fails
// and never panics for any record. The returned slice is owned by the caller
// and carries no trailing newline.
type Formatter interface {
	Render(r *Record) []byte
}

// FormatterFunc adapts a function to Formatter.
type FormatterFunc func(r *Record) []byte

func (f FormatterFunc) Render(r *Record) []byte { return f(r) }

var renderPool bytebufferpool.Pool

// renderWith runs fn against a pooled buffer and returns an owned copy.
func renderWith(fn func(buf *bytebufferpool.ByteBuffer)) []byte {
	buf := renderPool.Get()
	defer renderPool.Put(buf)
	fn(buf)
	out := make([]byte, buf.Len())
	copy(out, buf.B)
	return out
}

// renderSafe renders r with f and degrades to the plain layout if f panics.
func renderSafe(f Formatter, r *Record) (out []byte, fault error) {
	defer func() {
		if p := recover(); p != nil {
			out, fault = PlainText{}.Render(r), panicError(p)
		}
	}()
	return f.Render(r), nil
}

// appendTextValue writes a field value in the human-readable layouts.
func appendTextValue(buf *bytebufferpool.ByteBuffer, f *Field, layout string) {
	switch f.Kind {
	case KindString:
		appendTextString(buf, f.Str)
	case KindInt64:
		appendInt64(buf, f.Int64)
	case KindUint64:
		appendUint64(buf, f.Uint64)
	case KindFloat64:
		appendFloat64(buf, f.Float64)
	case KindBool:
		appendBool(buf, f.Bool)
	case KindDuration:
		buf.B = append(buf.B, f.Dur.String()...)
	case KindTime:
		appendTime(buf, f.Time, layout)
	case KindError:
		if f.Err == nil {
			buf.B = append(buf.B, litNull...)
			return
		}
		appendQuoted(buf, f.Err.Error())
	case KindBytes:
		buf.B = append(buf.B, "len:"...)
		appendInt64(buf, int64(len(f.Bytes)))
	case KindAny:
		appendTextAny(buf, f.Any, layout)
	default:
		buf.B = append(buf.B, UnsupportedValue...)
	}
}

func appendTextAny(buf *bytebufferpool.ByteBuffer, v any, layout string) {
	switch vv := v.(type) {
	case nil:
		buf.B = append(buf.B, litNull...)
	case string:
		appendTextString(buf, vv)
	case []byte:
		buf.B = append(buf.B, "len:"...)
		appendInt64(buf, int64(len(vv)))
	case bool:
		appendBool(buf, vv)
	case int:
		appendInt64(buf, int64(vv))
	case int8:
		appendInt64(buf, int64(vv))
	case int16:
		appendInt64(buf, int64(vv))
	case int32:
		appendInt64(buf, int64(vv))
	case int64:
		appendInt64(buf, vv)
	case uint:
		appendUint64(buf, uint64(vv))
	case uint8:
		appendUint64(buf, uint64(vv))
	case uint16:
		appendUint64(buf, uint64(vv))
	case uint32:
		appendUint64(buf, uint64(vv))
	case uint64:
		appendUint64(buf, vv)
	case float32:
		appendFloat64(buf, float64(vv))
	case float64:
		appendFloat64(buf, vv)
	case time.Time:
		appendTime(buf, vv, layout)
	case time.Duration:
		buf.B = append(buf.B, vv.String()...)
	case error:
		appendQuoted(buf, vv.Error())
	case fmt.Stringer:
		appendTextString(buf, vv.String())
	default:
		buf.B = append(buf.B, UnsupportedValue...)
	}
}
