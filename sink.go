package plog

import (
	"fmt"
	"io"
)

// Sink is the terminal destination of a channel. Implementations must be safe
// for concurrent use: the built-in sinks serialize internally.
//
// Write receives the shared record and the bytes rendered for this channel;
// neither may be modified, and p must be copied if retained.
type Sink interface {
	Write(r *Record, p []byte) error
	Flush() error
	Close() error
}

// SinkFunc adapts a function to Sink with no-op Flush and Close.
type SinkFunc func(r *Record, p []byte) error

func (f SinkFunc) Write(r *Record, p []byte) error { return f(r, p) }
func (f SinkFunc) Flush() error                    { return nil }
func (f SinkFunc) Close() error                    { return nil }

// Null discards every record.
type Null struct{}

func (Null) Write(*Record, []byte) error { return nil }
func (Null) Flush() error                { return nil }
func (Null) Close() error                { return nil }

// writeLine writes p plus a newline in a single call to w.
func writeLine(w io.Writer, p []byte) error {
	buf := renderPool.Get()
	defer renderPool.Put(buf)
	buf.B = append(buf.B, p...)
	buf.B = append(buf.B, '\n')
	n, err := w.Write(buf.B)
	if err != nil {
		return err
	}
	if n != len(buf.B) {
		return fmt.Errorf("failed to write the message, wrote %d bytes out of %d bytes", n, len(buf.B))
	}
	return nil
}
