package plog

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strconv"
	"sync"

	"github.com/klauspost/compress/gzip"
)

// RotationOptions configures a RotatingFile.
type RotationOptions struct {
	// MaxBytes is the size threshold of the active file. Required.
	MaxBytes int64
	// MaxArchives bounds the number of retained archives (default 5).
	MaxArchives int
	// Compress gzips archives (path.N.gz).
	Compress bool
}

const defaultMaxArchives = 5

// RotatingFile is a File that archives the active file once it would exceed
// MaxBytes. Archives are named path.1 (newest) through path.N (oldest).
// Rotation happens under the sink lock, so concurrent writers only ever see
// the file before or after a rotation.
type RotatingFile struct {
	mu     sync.Mutex
	path   string
	opts   RotationOptions
	f      *os.File
	size   int64
	closed bool
}

// NewRotatingFile opens path for appending and resumes from its current size.
func NewRotatingFile(path string, opts RotationOptions) (*RotatingFile, error) {
	if path == "" {
		return nil, &ConfigError{Field: "sink.target", Reason: "file path is empty"}
	}
	if opts.MaxBytes <= 0 {
		return nil, &ConfigError{Field: "sink.rotation.maxBytes", Reason: "must be positive"}
	}
	if opts.MaxArchives < 0 {
		return nil, &ConfigError{Field: "sink.rotation.maxArchives", Reason: "must not be negative"}
	}
	if opts.MaxArchives == 0 {
		opts.MaxArchives = defaultMaxArchives
	}
	s := &RotatingFile{path: path, opts: opts}
	if err := s.open(); err != nil {
		return nil, &ConfigError{Field: "sink.target", Reason: fmt.Sprintf("failed to create/open log file: %s", path), Err: err}
	}
	return s, nil
}

func (s *RotatingFile) open() error {
	f, err := openAppend(s.path)
	if err != nil {
		return err
	}
	st, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return err
	}
	s.f, s.size = f, st.Size()
	return nil
}

// Path returns the active file path.
func (s *RotatingFile) Path() string { return s.path }

// ArchivePath returns the path of the n-th archive (1 is the newest).
func (s *RotatingFile) ArchivePath(n int) string {
	p := s.path + "." + strconv.Itoa(n)
	if s.opts.Compress {
		p += ".gz"
	}
	return p
}

func (s *RotatingFile) Write(_ *Record, p []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSinkClosed
	}
	if s.f == nil {
		if err := s.open(); err != nil {
			return fmt.Errorf("reopen %s: %w", s.path, err)
		}
	}
	need := int64(len(p)) + 1
	if s.size > 0 && s.size+need > s.opts.MaxBytes {
		if err := s.rotate(); err != nil {
			return fmt.Errorf("rotate %s: %w", s.path, err)
		}
	}
	if err := writeLine(s.f, p); err != nil {
		return err
	}
	s.size += need
	return nil
}

// Rotate forces a rotation of a non-empty active file.
func (s *RotatingFile) Rotate() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSinkClosed
	}
	if s.size == 0 {
		return nil
	}
	return s.rotate()
}

// rotate must be called with s.mu held. The active file is reopened even when
// archiving fails so later writes still land somewhere. If reopening fails,
// s.f is left nil and the next Write retries.
func (s *RotatingFile) rotate() error {
	err := s.f.Close()
	s.f, s.size = nil, 0
	if err != nil {
		return err
	}
	archiveErr := s.archive()
	if err := s.open(); err != nil {
		return errors.Join(archiveErr, err)
	}
	return archiveErr
}

func (s *RotatingFile) archive() error {
	if err := os.Remove(s.ArchivePath(s.opts.MaxArchives)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	for n := s.opts.MaxArchives - 1; n >= 1; n-- {
		err := os.Rename(s.ArchivePath(n), s.ArchivePath(n+1))
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
	}
	if s.opts.Compress {
		return gzipFile(s.path, s.ArchivePath(1))
	}
	return os.Rename(s.path, s.ArchivePath(1))
}

// gzipFile compresses src into dst and removes src.
func gzipFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	zw := gzip.NewWriter(out)
	if _, err := io.Copy(zw, in); err != nil {
		_ = zw.Close()
		_ = out.Close()
		return err
	}
	if err := zw.Close(); err != nil {
		_ = out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	return os.Remove(src)
}

func (s *RotatingFile) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.f == nil {
		return nil
	}
	return s.f.Sync()
}

func (s *RotatingFile) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if s.f == nil {
		return nil
	}
	syncErr := s.f.Sync()
	if err := s.f.Close(); err != nil {
		return err
	}
	return syncErr
}
