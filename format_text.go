package plog

import (
	"github.com/valyala/bytebufferpool"
)

// PlainText renders "<time> [LEVEL]: <message>".
type PlainText struct {
	// TimeLayout defaults to time.RFC3339Nano.
	TimeLayout string
}

func (p PlainText) Render(r *Record) []byte {
	return renderWith(func(buf *bytebufferpool.ByteBuffer) {
		appendTime(buf, r.Time.Wall, p.TimeLayout)
		buf.B = append(buf.B, " ["...)
		buf.B = append(buf.B, r.Level.String()...)
		buf.B = append(buf.B, "]: "...)
		buf.B = append(buf.B, r.Message...)
	})
}

// KeyValue renders "ts=<time> level=<LEVEL> msg=<message>" followed by the
// task, the source location when present, and every field as key=value in
// insertion order.
type KeyValue struct {
	// TimeLayout defaults to time.RFC3339Nano.
	TimeLayout string
}

var (
	kvTsPrefix     = []byte("ts=")
	kvLevelPrefix  = []byte(" level=")
	kvMsgPrefix    = []byte(" msg=")
	kvTaskPrefix   = []byte(" task=")
	kvCallerPrefix = []byte(" caller=")
	kvFuncPrefix   = []byte(" func=")
)

func (k KeyValue) Render(r *Record) []byte {
	return renderWith(func(buf *bytebufferpool.ByteBuffer) {
		buf.B = append(buf.B, kvTsPrefix...)
		appendTime(buf, r.Time.Wall, k.TimeLayout)

		buf.B = append(buf.B, kvLevelPrefix...)
		buf.B = append(buf.B, r.Level.String()...)

		buf.B = append(buf.B, kvMsgPrefix...)
		appendTextString(buf, r.Message)

		if r.Task != "" {
			buf.B = append(buf.B, kvTaskPrefix...)
			appendTextString(buf, r.Task)
		}
		if loc := r.Location; loc != nil {
			buf.B = append(buf.B, kvCallerPrefix...)
			appendTextString(buf, loc.File)
			buf.B = append(buf.B, ':')
			appendInt64(buf, int64(loc.Line))
			if loc.Function != "" {
				buf.B = append(buf.B, kvFuncPrefix...)
				appendTextString(buf, loc.Function)
			}
		}
		for i := range r.Fields {
			f := &r.Fields[i]
			buf.B = append(buf.B, ' ')
			buf.B = append(buf.B, f.K...)
			buf.B = append(buf.B, '=')
			appendTextValue(buf, f, k.TimeLayout)
		}
	})
}
