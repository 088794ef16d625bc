// Package slogsink delivers plog records to a log/slog handler.
package slogsink

import (
	"context"
	"io"
	"log/slog"
	"os"

	"github.com/trickstertwo/plog"
)

// Sink hands each record to a slog.Handler. The record's own wall time is
// used, and plog levels pass through unchanged since they share slog's scale.
type Sink struct {
	h slog.Handler
}

// New wraps h. A nil handler uses slog.Default().Handler().
func New(h slog.Handler) *Sink {
	if h == nil {
		h = slog.Default().Handler()
	}
	return &Sink{h: h}
}

// NewJSON builds a slog JSON handler on w (os.Stdout if nil).
func NewJSON(w io.Writer, min plog.Level) *Sink {
	if w == nil {
		w = os.Stdout
	}
	return New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: slog.Level(min), ReplaceAttr: levelNames}))
}

// NewText builds a slog text handler on w (os.Stdout if nil).
func NewText(w io.Writer, min plog.Level) *Sink {
	if w == nil {
		w = os.Stdout
	}
	return New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.Level(min), ReplaceAttr: levelNames}))
}

// Handler returns the wrapped handler.
func (s *Sink) Handler() slog.Handler { return s.h }

func (s *Sink) Write(r *plog.Record, _ []byte) error {
	ctx := context.Background()
	lvl := slog.Level(r.Level)
	if !s.h.Enabled(ctx, lvl) {
		return nil
	}
	sr := slog.NewRecord(r.Time.Wall, lvl, r.Message, 0)
	if r.Task != "" {
		sr.AddAttrs(slog.String("task", r.Task))
	}
	if loc := r.Location; loc != nil {
		sr.AddAttrs(slog.Group(slog.SourceKey,
			slog.String("file", loc.File),
			slog.Int("line", loc.Line),
			slog.String("function", loc.Function),
		))
	}
	for i := range r.Fields {
		sr.AddAttrs(Attr(&r.Fields[i]))
	}
	return s.h.Handle(ctx, sr)
}

func (s *Sink) Flush() error { return nil }
func (s *Sink) Close() error { return nil }

// Attr converts a plog field to a slog attribute.
func Attr(f *plog.Field) slog.Attr {
	switch f.Kind {
	case plog.KindString:
		return slog.String(f.K, f.Str)
	case plog.KindInt64:
		return slog.Int64(f.K, f.Int64)
	case plog.KindUint64:
		return slog.Uint64(f.K, f.Uint64)
	case plog.KindFloat64:
		return slog.Float64(f.K, f.Float64)
	case plog.KindBool:
		return slog.Bool(f.K, f.Bool)
	case plog.KindDuration:
		return slog.Duration(f.K, f.Dur)
	case plog.KindTime:
		return slog.Time(f.K, f.Time)
	case plog.KindError:
		if f.Err == nil {
			return slog.Attr{}
		}
		return slog.String(f.K, f.Err.Error())
	case plog.KindBytes:
		return slog.Any(f.K, f.Bytes)
	case plog.KindAny:
		return slog.Any(f.K, f.Any)
	default:
		return slog.Any(f.K, nil)
	}
}

// levelNames renders Trace and Fatal by name instead of slog's "DEBUG-4" and "ERROR+4".
func levelNames(groups []string, a slog.Attr) slog.Attr {
	if len(groups) == 0 && a.Key == slog.LevelKey {
		if lvl, ok := a.Value.Any().(slog.Level); ok {
			a.Value = slog.StringValue(plog.Level(lvl).String())
		}
	}
	return a
}
