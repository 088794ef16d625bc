package plog

import (
	"errors"
	"sync"
	"testing"
	"time"
)

// recordingSink is a Sink for tests. It records every write and can be told to
// fail, panic or block on its next write.
type recordingSink struct {
	mu      sync.Mutex
	records []*Record
	lines   []string
	flushes int
	closes  int
	err     error
	panicV  any

	// when block is non-nil the first write signals entered and waits for release.
	block   bool
	entered chan struct{}
	release chan struct{}
}

func newRecordingSink() *recordingSink { return &recordingSink{} }

func newBlockingSink() *recordingSink {
	return &recordingSink{block: true, entered: make(chan struct{}), release: make(chan struct{})}
}

func (s *recordingSink) Write(r *Record, p []byte) error {
	s.mu.Lock()
	blk := s.block
	s.block = false
	s.mu.Unlock()
	if blk {
		close(s.entered)
		<-s.release
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.panicV != nil {
		panic(s.panicV)
	}
	if s.err != nil {
		return s.err
	}
	s.records = append(s.records, r)
	s.lines = append(s.lines, string(p))
	return nil
}

func (s *recordingSink) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flushes++
	return nil
}

func (s *recordingSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closes++
	return nil
}

func (s *recordingSink) messages() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.records))
	for i, r := range s.records {
		out[i] = r.Message
	}
	return out
}

func (s *recordingSink) closeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closes
}

// waitEntered waits until a blocking sink is inside Write.
func (s *recordingSink) waitEntered(t *testing.T) {
	t.Helper()
	select {
	case <-s.entered:
	case <-time.After(5 * time.Second):
		t.Fatalf("sink write never started")
	}
}

// errorCollector is an ErrorHandler that keeps every reported error.
type errorCollector struct {
	mu   sync.Mutex
	errs []error
}

func (c *errorCollector) handle(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.errs = append(c.errs, err)
}

func (c *errorCollector) sinkErrors() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, err := range c.errs {
		var swe *SinkWriteError
		if errors.As(err, &swe) {
			n++
		}
	}
	return n
}

func (c *errorCollector) filterFaults() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, err := range c.errs {
		var ffe *FilterFaultError
		if errors.As(err, &ffe) {
			n++
		}
	}
	return n
}

func assertMessages(t *testing.T, got []string, want ...string) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("messages mismatch: got %q want %q", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("messages mismatch at %d: got %q want %q", i, got, want)
		}
	}
}

func eventually(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("condition not met in time")
		}
		time.Sleep(time.Millisecond)
	}
}

func rec(level Level, msg string, fs ...Field) *Record { return MakeRecord(level, msg, fs, nil) }
