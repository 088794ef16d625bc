// Package lumberjacksink is a size and age based rotating file sink backed by
// gopkg.in/natefinch/lumberjack.v2.
package lumberjacksink

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/valyala/bytebufferpool"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/trickstertwo/plog"
)

// Config mirrors lumberjack's knobs. MaxSizeMB of zero means lumberjack's
// default of 100 megabytes.
type Config struct {
	Filename   string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
	LocalTime  bool
}

// Sink writes each rendered line to a lumberjack.Logger.
type Sink struct {
	mu     sync.Mutex
	lj     *lumberjack.Logger
	closed bool
}

var bufPool bytebufferpool.Pool

// New creates the log directory if needed and returns the sink. The file
// itself is opened lazily on first write.
func New(cfg Config) (*Sink, error) {
	if cfg.Filename == "" {
		return nil, &plog.ConfigError{Field: "target", Reason: "lumberjack sink needs a file name"}
	}
	if cfg.MaxSizeMB < 0 || cfg.MaxBackups < 0 || cfg.MaxAgeDays < 0 {
		return nil, &plog.ConfigError{Field: "rotation", Reason: "limits must not be negative"}
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Filename), 0o755); err != nil {
		return nil, &plog.ConfigError{Field: "target", Reason: "failed to create log directory", Err: err}
	}
	return &Sink{lj: &lumberjack.Logger{
		Filename:   cfg.Filename,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
		Compress:   cfg.Compress,
		LocalTime:  cfg.LocalTime,
	}}, nil
}

func (s *Sink) Write(_ *plog.Record, p []byte) error {
	buf := bufPool.Get()
	defer bufPool.Put(buf)
	buf.B = append(buf.B, p...)
	buf.B = append(buf.B, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return plog.ErrSinkClosed
	}
	n, err := s.lj.Write(buf.B)
	if err != nil {
		return err
	}
	if n != len(buf.B) {
		return fmt.Errorf("failed to write the message, wrote %d bytes out of %d bytes", n, len(buf.B))
	}
	return nil
}

// Rotate forces a rotation regardless of size.
func (s *Sink) Rotate() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return plog.ErrSinkClosed
	}
	return s.lj.Rotate()
}

// Flush is a no-op: lumberjack writes straight to the file.
func (s *Sink) Flush() error { return nil }

func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if err := s.lj.Close(); err != nil && !errors.Is(err, os.ErrClosed) {
		return err
	}
	return nil
}
