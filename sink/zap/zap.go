// Package zapsink delivers plog records to a go.uber.org/zap logger.
package zapsink

import (
	"errors"
	"io"
	"os"
	"strconv"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/trickstertwo/plog"
)

// Sink forwards each record to a zap logger. The rendered bytes are ignored:
// zap encodes the record itself, so the channel formatter only matters to
// other sinks.
//
// Fatal records are written at Error level; zap's own Fatal would exit.
type Sink struct {
	l     *zap.Logger
	tsKey string
}

// New wraps l. A nil logger yields a no-op sink.
func New(l *zap.Logger) *Sink {
	if l == nil {
		l = zap.NewNop()
	}
	return &Sink{l: l, tsKey: "ts"}
}

// WithTimestampKey returns a copy that writes the record time under key.
func (s *Sink) WithTimestampKey(key string) *Sink {
	c := *s
	if key != "" {
		c.tsKey = key
	}
	return &c
}

// NewJSON builds a JSON zap core on w (os.Stdout if nil) filtering at min.
func NewJSON(w io.Writer, min plog.Level) *Sink {
	return newCore(w, min, false)
}

// NewConsole is NewJSON with zap's console encoder.
func NewConsole(w io.Writer, min plog.Level) *Sink {
	return newCore(w, min, true)
}

func newCore(w io.Writer, min plog.Level, console bool) *Sink {
	if w == nil {
		w = os.Stdout
	}
	encCfg := zapcore.EncoderConfig{
		LevelKey:       "level",
		MessageKey:     "message",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.RFC3339NanoTimeEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
	}
	var enc zapcore.Encoder
	if console {
		enc = zapcore.NewConsoleEncoder(encCfg)
	} else {
		enc = zapcore.NewJSONEncoder(encCfg)
	}
	core := zapcore.NewCore(enc, zapcore.AddSync(w), zap.NewAtomicLevelAt(Level(min)))
	return New(zap.New(core))
}

// Logger returns the wrapped logger.
func (s *Sink) Logger() *zap.Logger { return s.l }

func (s *Sink) Write(r *plog.Record, _ []byte) error {
	ce := s.l.Check(Level(r.Level), r.Message)
	if ce == nil {
		return nil
	}
	zfs := make([]zap.Field, 0, 4+len(r.Fields))
	zfs = append(zfs, zap.String(s.tsKey, r.Time.Wall.UTC().Format(time.RFC3339Nano)))
	if r.Task != "" {
		zfs = append(zfs, zap.String("task", r.Task))
	}
	if loc := r.Location; loc != nil {
		zfs = append(zfs, zap.String("caller", loc.File+":"+strconv.Itoa(loc.Line)))
		if loc.Function != "" {
			zfs = append(zfs, zap.String("func", loc.Function))
		}
	}
	for i := range r.Fields {
		zfs = append(zfs, Field(&r.Fields[i]))
	}
	ce.Write(zfs...)
	return nil
}

// Flush syncs the zap core. Sync failures on terminals and pipes are ignored.
func (s *Sink) Flush() error {
	if err := s.l.Sync(); err != nil && !errors.Is(err, syscall.EINVAL) && !errors.Is(err, syscall.ENOTTY) {
		return err
	}
	return nil
}

func (s *Sink) Close() error { return s.Flush() }

// Level maps a plog level onto zap. Trace folds into Debug and Fatal into Error.
func Level(l plog.Level) zapcore.Level {
	switch {
	case l <= plog.LevelDebug:
		return zapcore.DebugLevel
	case l <= plog.LevelInfo:
		return zapcore.InfoLevel
	case l <= plog.LevelWarn:
		return zapcore.WarnLevel
	default:
		return zapcore.ErrorLevel
	}
}

// Field converts a plog field to its zap equivalent.
func Field(f *plog.Field) zap.Field {
	switch f.Kind {
	case plog.KindString:
		return zap.String(f.K, f.Str)
	case plog.KindInt64:
		return zap.Int64(f.K, f.Int64)
	case plog.KindUint64:
		return zap.Uint64(f.K, f.Uint64)
	case plog.KindFloat64:
		return zap.Float64(f.K, f.Float64)
	case plog.KindBool:
		return zap.Bool(f.K, f.Bool)
	case plog.KindDuration:
		return zap.Duration(f.K, f.Dur)
	case plog.KindTime:
		return zap.Time(f.K, f.Time)
	case plog.KindError:
		if f.Err == nil {
			return zap.Skip()
		}
		if f.K == "" || f.K == "error" {
			return zap.Error(f.Err)
		}
		return zap.NamedError(f.K, f.Err)
	case plog.KindBytes:
		return zap.Binary(f.K, f.Bytes)
	case plog.KindAny:
		return zap.Any(f.K, f.Any)
	default:
		return zap.Skip()
	}
}
