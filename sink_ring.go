package plog

import "sync"

// RingEntry is one retained record with the line rendered for it.
type RingEntry struct {
	Record *Record
	Line   string
}

// RingBuffer retains the most recent records in memory, evicting the oldest
// once full. Writes never block and never fail.
type RingBuffer struct {
	mu    sync.Mutex
	buf   []RingEntry
	start int
	n     int
}

// NewRingBuffer returns a ring of the given capacity (minimum 1).
func NewRingBuffer(capacity int) *RingBuffer {
	if capacity < 1 {
		capacity = 1
	}
	return &RingBuffer{buf: make([]RingEntry, capacity)}
}

func (rb *RingBuffer) Write(r *Record, p []byte) error {
	e := RingEntry{Record: r, Line: string(p)}
	rb.mu.Lock()
	defer rb.mu.Unlock()
	if rb.n < len(rb.buf) {
		rb.buf[(rb.start+rb.n)%len(rb.buf)] = e
		rb.n++
		return nil
	}
	rb.buf[rb.start] = e
	rb.start = (rb.start + 1) % len(rb.buf)
	return nil
}

func (rb *RingBuffer) Flush() error { return nil }
func (rb *RingBuffer) Close() error { return nil }

// Cap returns the capacity.
func (rb *RingBuffer) Cap() int { return len(rb.buf) }

// Len returns the number of retained entries.
func (rb *RingBuffer) Len() int {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	return rb.n
}

// Entries returns the retained entries, oldest first.
func (rb *RingBuffer) Entries() []RingEntry {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	out := make([]RingEntry, rb.n)
	for i := 0; i < rb.n; i++ {
		out[i] = rb.buf[(rb.start+i)%len(rb.buf)]
	}
	return out
}

// Lines returns the retained rendered lines, oldest first.
func (rb *RingBuffer) Lines() []string {
	es := rb.Entries()
	out := make([]string, len(es))
	for i := range es {
		out[i] = es[i].Line
	}
	return out
}

// Messages returns the retained record messages, oldest first.
func (rb *RingBuffer) Messages() []string {
	es := rb.Entries()
	out := make([]string, len(es))
	for i := range es {
		out[i] = es[i].Record.Message
	}
	return out
}

// Reset discards every retained entry.
func (rb *RingBuffer) Reset() {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	clear(rb.buf)
	rb.start, rb.n = 0, 0
}
