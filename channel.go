package plog

import (
	"errors"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// ChannelSpec describes a channel to register. Filter defaults to Always and
// Formatter to PlainText; Sink is required.
type ChannelSpec struct {
	Name      string
	Filter    Filter
	Formatter Formatter
	Sink      Sink
	Disabled  bool
}

// Channel binds one filter, formatter and sink. Channels are created by an
// Aggregator and identified by a unique ID.
type Channel struct {
	id        string
	name      string
	filter    Filter
	formatter Formatter
	sink      Sink
	enabled   atomic.Bool

	// gate is held shared by in-flight writes and exclusively by retire, so a
	// sink is never closed underneath a write.
	gate   sync.RWMutex
	closed bool

	// pending counts records that hold this channel in their snapshot and
	// have not reached it yet. A detached channel accepts no new holders.
	pendMu   sync.Mutex
	pending  int
	detached bool
	idle     chan struct{}

	written  atomic.Uint64
	failed   atomic.Uint64
	filtered atomic.Uint64
}

func newChannel(spec ChannelSpec) (*Channel, error) {
	if spec.Sink == nil {
		return nil, &ConfigError{Field: "channel.sink", Reason: "sink is required"}
	}
	c := &Channel{
		id:        uuid.NewString(),
		name:      spec.Name,
		filter:    spec.Filter,
		formatter: spec.Formatter,
		sink:      spec.Sink,
	}
	if c.name == "" {
		c.name = c.id
	}
	if c.filter == nil {
		c.filter = Always
	}
	if c.formatter == nil {
		c.formatter = PlainText{}
	}
	c.enabled.Store(!spec.Disabled)
	return c, nil
}

func (c *Channel) ID() string    { return c.id }
func (c *Channel) Name() string  { return c.name }
func (c *Channel) Enabled() bool { return c.enabled.Load() }
func (c *Channel) Sink() Sink    { return c.sink }

func (c *Channel) Stats() ChannelStats {
	return ChannelStats{
		Written:  c.written.Load(),
		Failed:   c.failed.Load(),
		Filtered: c.filtered.Load(),
	}
}

// write hands p to the sink unless the channel was retired.
func (c *Channel) write(r *Record, p []byte) (written bool, err error) {
	c.gate.RLock()
	defer c.gate.RUnlock()
	if c.closed {
		return false, nil
	}
	defer func() {
		if rec := recover(); rec != nil {
			err = panicError(rec)
		}
	}()
	return true, c.sink.Write(r, p)
}

func (c *Channel) flush() (err error) {
	c.gate.RLock()
	defer c.gate.RUnlock()
	if c.closed {
		return nil
	}
	defer func() {
		if rec := recover(); rec != nil {
			err = panicError(rec)
		}
	}()
	return c.sink.Flush()
}

// hold registers one record that will be delivered to c. It fails once c has
// been detached.
func (c *Channel) hold() bool {
	c.pendMu.Lock()
	defer c.pendMu.Unlock()
	if c.detached {
		return false
	}
	c.pending++
	return true
}

func (c *Channel) release() {
	c.pendMu.Lock()
	defer c.pendMu.Unlock()
	c.pending--
	if c.pending == 0 && c.idle != nil {
		close(c.idle)
		c.idle = nil
	}
}

// detach stops new holders and returns a channel closed once every record
// already holding c has been delivered or dropped.
func (c *Channel) detach() <-chan struct{} {
	c.pendMu.Lock()
	defer c.pendMu.Unlock()
	c.detached = true
	if c.pending == 0 {
		done := make(chan struct{})
		close(done)
		return done
	}
	if c.idle == nil {
		c.idle = make(chan struct{})
	}
	return c.idle
}

// drain detaches c, waits for its pending records, then retires it.
func (c *Channel) drain() error {
	<-c.detach()
	return c.retire()
}

// retire waits for in-flight writes, then flushes and closes the sink once.
func (c *Channel) retire() (err error) {
	c.gate.Lock()
	defer c.gate.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	defer func() {
		if rec := recover(); rec != nil {
			err = panicError(rec)
		}
	}()
	return errors.Join(c.sink.Flush(), c.sink.Close())
}
