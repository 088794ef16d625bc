package plog

import (
	"math"
	"strconv"
	"time"

	json "github.com/goccy/go-json"
	"github.com/valyala/bytebufferpool"
)

// RawJSON is spliced into JSON output verbatim. It must hold valid JSON.
type RawJSON []byte

// JSON renders one object per record:
// {"ts":...,"level":"INFO","msg":...,"task":...,"caller":"file:line","func":...,<fields>}.
type JSON struct {
	// TimeLayout defaults to time.RFC3339Nano.
	TimeLayout string
}

func (j JSON) Render(r *Record) []byte {
	return renderWith(func(buf *bytebufferpool.ByteBuffer) {
		buf.B = append(buf.B, `{"ts":"`...)
		appendTime(buf, r.Time.Wall, j.TimeLayout)
		buf.B = append(buf.B, `","level":"`...)
		buf.B = append(buf.B, r.Level.String()...)
		buf.B = append(buf.B, `","msg":`...)
		appendQuoted(buf, r.Message)

		if r.Task != "" {
			buf.B = append(buf.B, `,"task":`...)
			appendQuoted(buf, r.Task)
		}
		if loc := r.Location; loc != nil {
			buf.B = append(buf.B, `,"caller":`...)
			appendQuoted(buf, loc.File+":"+strconv.Itoa(loc.Line))
			if loc.Function != "" {
				buf.B = append(buf.B, `,"func":`...)
				appendQuoted(buf, loc.Function)
			}
		}
		for i := range r.Fields {
			appendJSONField(buf, &r.Fields[i], j.TimeLayout)
		}
		buf.B = append(buf.B, '}')
	})
}

func appendJSONField(buf *bytebufferpool.ByteBuffer, f *Field, layout string) {
	buf.B = append(buf.B, ',')
	appendQuoted(buf, f.K)
	buf.B = append(buf.B, ':')

	switch f.Kind {
	case KindString:
		appendQuoted(buf, f.Str)
	case KindInt64:
		appendInt64(buf, f.Int64)
	case KindUint64:
		appendUint64(buf, f.Uint64)
	case KindFloat64:
		appendJSONFloat(buf, f.Float64)
	case KindBool:
		appendBool(buf, f.Bool)
	case KindDuration:
		appendQuoted(buf, f.Dur.String())
	case KindTime:
		buf.B = append(buf.B, '"')
		appendTime(buf, f.Time, layout)
		buf.B = append(buf.B, '"')
	case KindError:
		if f.Err == nil {
			buf.B = append(buf.B, litNull...)
			return
		}
		appendQuoted(buf, f.Err.Error())
	case KindBytes:
		appendBase64(buf, f.Bytes)
	case KindAny:
		appendJSONAny(buf, f.Any, layout)
	default:
		appendQuoted(buf, UnsupportedValue)
	}
}

func appendJSONFloat(buf *bytebufferpool.ByteBuffer, v float64) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		buf.B = append(buf.B, litNull...)
		return
	}
	buf.B = strconv.AppendFloat(buf.B, v, 'g', -1, 64)
}

func appendJSONAny(buf *bytebufferpool.ByteBuffer, v any, layout string) {
	switch vv := v.(type) {
	case nil:
		buf.B = append(buf.B, litNull...)
	case RawJSON:
		if len(vv) == 0 {
			buf.B = append(buf.B, `""`...)
			return
		}
		buf.B = append(buf.B, vv...)
	case string:
		appendQuoted(buf, vv)
	case []byte:
		appendBase64(buf, vv)
	case bool:
		appendBool(buf, vv)
	case int:
		appendInt64(buf, int64(vv))
	case int32:
		appendInt64(buf, int64(vv))
	case int64:
		appendInt64(buf, vv)
	case uint:
		appendUint64(buf, uint64(vv))
	case uint32:
		appendUint64(buf, uint64(vv))
	case uint64:
		appendUint64(buf, vv)
	case float32:
		appendJSONFloat(buf, float64(vv))
	case float64:
		appendJSONFloat(buf, vv)
	case time.Time:
		buf.B = append(buf.B, '"')
		appendTime(buf, vv, layout)
		buf.B = append(buf.B, '"')
	case time.Duration:
		appendQuoted(buf, vv.String())
	case error:
		appendQuoted(buf, vv.Error())
	default:
		data, err := json.Marshal(vv)
		if err != nil {
			appendQuoted(buf, UnsupportedValue)
			return
		}
		buf.B = append(buf.B, data...)
	}
}
