package plog

import (
	"fmt"
	"os"
	"sync"
)

// File appends one line per record to a file opened once at construction.
type File struct {
	mu     sync.Mutex
	path   string
	f      *os.File
	closed bool
}

// NewFile opens (creating if needed) path for appending.
func NewFile(path string) (*File, error) {
	if path == "" {
		return nil, &ConfigError{Field: "sink.target", Reason: "file path is empty"}
	}
	f, err := openAppend(path)
	if err != nil {
		return nil, &ConfigError{Field: "sink.target", Reason: fmt.Sprintf("failed to create/open log file: %s", path), Err: err}
	}
	return &File{path: path, f: f}, nil
}

func openAppend(path string) (*os.File, error) {
	return os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
}

// Path returns the file path.
func (s *File) Path() string { return s.path }

func (s *File) Write(_ *Record, p []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSinkClosed
	}
	return writeLine(s.f, p)
}

// Flush commits written data to stable storage.
func (s *File) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	return s.f.Sync()
}

func (s *File) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	syncErr := s.f.Sync()
	if err := s.f.Close(); err != nil {
		return err
	}
	return syncErr
}
