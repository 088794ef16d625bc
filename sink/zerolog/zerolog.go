// Package zerologsink delivers plog records to an rs/zerolog logger.
package zerologsink

import (
	"io"
	"os"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/trickstertwo/plog"
)

// Sink forwards each record to a zerolog logger. Fatal is written at Error
// level so zerolog never exits the process.
type Sink struct {
	l zerolog.Logger
}

func New(l zerolog.Logger) *Sink {
	return &Sink{l: l}
}

// NewJSON builds a JSON logger on w (os.Stdout if nil) filtering at min.
func NewJSON(w io.Writer, min plog.Level) *Sink {
	if w == nil {
		w = os.Stdout
	}
	return New(zerolog.New(w).Level(Level(min)))
}

// NewConsole builds a human-readable zerolog.ConsoleWriter on w.
func NewConsole(w io.Writer, min plog.Level) *Sink {
	if w == nil {
		w = os.Stdout
	}
	cw := zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339Nano, NoColor: true}
	return New(zerolog.New(cw).Level(Level(min)))
}

// Logger returns the wrapped logger.
func (s *Sink) Logger() zerolog.Logger { return s.l }

func (s *Sink) Write(r *plog.Record, _ []byte) error {
	lvl := Level(r.Level)
	if lvl < s.l.GetLevel() {
		return nil
	}
	ev := s.l.WithLevel(lvl)
	if ev == nil {
		return nil
	}
	ev.Str(zerolog.TimestampFieldName, r.Time.Wall.UTC().Format(time.RFC3339Nano))
	if r.Task != "" {
		ev.Str("task", r.Task)
	}
	if loc := r.Location; loc != nil {
		ev.Str(zerolog.CallerFieldName, loc.File+":"+strconv.Itoa(loc.Line))
		if loc.Function != "" {
			ev.Str("func", loc.Function)
		}
	}
	for i := range r.Fields {
		appendField(ev, &r.Fields[i])
	}
	ev.Msg(r.Message)
	return nil
}

func (s *Sink) Flush() error { return nil }
func (s *Sink) Close() error { return nil }

// Level maps a plog level onto zerolog.
func Level(l plog.Level) zerolog.Level {
	switch {
	case l <= plog.LevelTrace:
		return zerolog.TraceLevel
	case l <= plog.LevelDebug:
		return zerolog.DebugLevel
	case l <= plog.LevelInfo:
		return zerolog.InfoLevel
	case l <= plog.LevelWarn:
		return zerolog.WarnLevel
	default:
		return zerolog.ErrorLevel
	}
}

func appendField(e *zerolog.Event, f *plog.Field) {
	switch f.Kind {
	case plog.KindString:
		e.Str(f.K, f.Str)
	case plog.KindInt64:
		e.Int64(f.K, f.Int64)
	case plog.KindUint64:
		e.Uint64(f.K, f.Uint64)
	case plog.KindFloat64:
		e.Float64(f.K, f.Float64)
	case plog.KindBool:
		e.Bool(f.K, f.Bool)
	case plog.KindDuration:
		e.Dur(f.K, f.Dur)
	case plog.KindTime:
		e.Time(f.K, f.Time)
	case plog.KindError:
		if f.Err == nil {
			return
		}
		if f.K == "" || f.K == zerolog.ErrorFieldName {
			e.Err(f.Err)
		} else {
			e.AnErr(f.K, f.Err)
		}
	case plog.KindBytes:
		e.Bytes(f.K, f.Bytes)
	case plog.KindAny:
		e.Interface(f.K, f.Any)
	default:
		e.Interface(f.K, nil)
	}
}
