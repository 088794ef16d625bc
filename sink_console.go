package plog

import (
	"io"
	"os"
	"sync"
)

// Console writes one line per record to an unbuffered stream, stderr by default.
type Console struct {
	mu sync.Mutex
	w  io.Writer
}

// NewConsole returns a console sink writing to w, or os.Stderr when w is nil.
func NewConsole(w io.Writer) *Console {
	if w == nil {
		w = os.Stderr
	}
	return &Console{w: w}
}

func (c *Console) Write(_ *Record, p []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return writeLine(c.w, p)
}

func (c *Console) Flush() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if s, ok := c.w.(interface{ Sync() error }); ok && c.w != os.Stderr && c.w != os.Stdout {
		return s.Sync()
	}
	return nil
}

// Close leaves the underlying stream open; the console does not own it.
func (c *Console) Close() error { return c.Flush() }
