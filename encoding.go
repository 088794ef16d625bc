package plog

import (
	"encoding/base64"
	"math"
	"strconv"
	"time"
	"unicode/utf8"

	"github.com/valyala/bytebufferpool"
)

const hexDigits = "0123456789abcdef"

var (
	litTrue  = []byte("true")
	litFalse = []byte("false")
	litNull  = []byte("null")
)

func appendInt64(buf *bytebufferpool.ByteBuffer, v int64) { buf.B = strconv.AppendInt(buf.B, v, 10) }

func appendUint64(buf *bytebufferpool.ByteBuffer, v uint64) {
	buf.B = strconv.AppendUint(buf.B, v, 10)
}

func appendFloat64(buf *bytebufferpool.ByteBuffer, f float64) {
	switch {
	case math.IsNaN(f):
		buf.B = append(buf.B, "NaN"...)
	case math.IsInf(f, 1):
		buf.B = append(buf.B, "+Inf"...)
	case math.IsInf(f, -1):
		buf.B = append(buf.B, "-Inf"...)
	default:
		buf.B = strconv.AppendFloat(buf.B, f, 'g', -1, 64)
	}
}

func appendBool(buf *bytebufferpool.ByteBuffer, v bool) {
	if v {
		buf.B = append(buf.B, litTrue...)
		return
	}
	buf.B = append(buf.B, litFalse...)
}

func appendTime(buf *bytebufferpool.ByteBuffer, t time.Time, layout string) {
	if layout == "" {
		layout = time.RFC3339Nano
	}
	buf.B = t.AppendFormat(buf.B, layout)
}

func appendBase64(buf *bytebufferpool.ByteBuffer, data []byte) {
	buf.B = append(buf.B, '"')
	n := base64.StdEncoding.EncodedLen(len(data))
	start := len(buf.B)
	buf.B = append(buf.B, make([]byte, n)...)
	base64.StdEncoding.Encode(buf.B[start:], data)
	buf.B = append(buf.B, '"')
}

// appendQuoted writes s as a JSON string literal.
func appendQuoted(buf *bytebufferpool.ByteBuffer, s string) {
	buf.B = append(buf.B, '"')
	appendQuotedContent(buf, s)
	buf.B = append(buf.B, '"')
}

func appendQuotedContent(buf *bytebufferpool.ByteBuffer, s string) {
	start := 0
	for i := 0; i < len(s); {
		c := s[i]
		if c >= 0x20 && c != '\\' && c != '"' && c < utf8.RuneSelf {
			i++
			continue
		}
		if start < i {
			buf.B = append(buf.B, s[start:i]...)
		}
		if c < utf8.RuneSelf {
			switch c {
			case '\\', '"':
				buf.B = append(buf.B, '\\', c)
			case '\n':
				buf.B = append(buf.B, `\n`...)
			case '\r':
				buf.B = append(buf.B, `\r`...)
			case '\t':
				buf.B = append(buf.B, `\t`...)
			default:
				buf.B = append(buf.B, `\u00`...)
				buf.B = append(buf.B, hexDigits[c>>4], hexDigits[c&0xF])
			}
			i++
			start = i
			continue
		}
		r, size := utf8.DecodeRuneInString(s[i:])
		switch {
		case r == utf8.RuneError && size == 1:
			buf.B = append(buf.B, `\uFFFD`...)
		case r == '\u2028':
			buf.B = append(buf.B, `\u2028`...)
		case r == '\u2029':
			buf.B = append(buf.B, `\u2029`...)
		default:
			i += size
			continue
		}
		i += size
		start = i
	}
	if start < len(s) {
		buf.B = append(buf.B, s[start:]...)
	}
}

// appendTextString writes s bare unless it contains spaces, quotes, '=' or
// control characters, in which case it is quoted.
func appendTextString(buf *bytebufferpool.ByteBuffer, s string) {
	if s == "" {
		buf.B = append(buf.B, `""`...)
		return
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c <= 0x1F || c == ' ' || c == '"' || c == '=' || c == 0x7F {
			appendQuoted(buf, s)
			return
		}
	}
	buf.B = append(buf.B, s...)
}
