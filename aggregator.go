package plog

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// Aggregator routes each submitted record through its ordered channel list,
// either inline (DispatchSync) or on a single background worker (DispatchAsync).
type Aggregator struct {
	opts    Options
	metrics MetricsCollector
	measure bool

	// Channels: lock-free reads via atomic.Value; synchronized updates via mu.
	// Stored value is []*Channel and MUST be treated as immutable by readers.
	channels atomic.Value
	mu       sync.Mutex

	st stats

	// async only
	queue      chan job
	sendMu     sync.RWMutex // held shared by senders, exclusively to close queue
	sendClosed bool
	done       chan struct{}
	workerDone chan struct{}
	abort      atomic.Bool

	closing      atomic.Bool
	shutdownDone chan struct{}
}

type job struct {
	rec     *Record
	chans   []*Channel
	barrier chan struct{}
}

// NewAggregator validates opts and registers the given channels in order.
func NewAggregator(opts Options, specs ...ChannelSpec) (*Aggregator, error) {
	opts, err := opts.normalize()
	if err != nil {
		return nil, err
	}
	chans := make([]*Channel, 0, len(specs))
	for i, spec := range specs {
		c, err := newChannel(spec)
		if err != nil {
			return nil, fmt.Errorf("channel %d: %w", i, err)
		}
		chans = append(chans, c)
	}
	a := &Aggregator{
		opts:         opts,
		metrics:      opts.Metrics,
		shutdownDone: make(chan struct{}),
	}
	_, isNoop := opts.Metrics.(*NoopMetricsCollector)
	a.measure = !isNoop
	a.channels.Store(chans)

	if opts.Mode == DispatchAsync {
		a.queue = make(chan job, opts.QueueCapacity)
		a.done = make(chan struct{})
		a.workerDone = make(chan struct{})
		go a.run()
	}
	return a, nil
}

// Mode returns the dispatch mode.
func (a *Aggregator) Mode() DispatchMode { return a.opts.Mode }

// Stats returns a snapshot of the aggregator counters.
func (a *Aggregator) Stats() Stats { return a.st.snapshot() }

// QueueLen returns the number of records waiting for the async worker.
func (a *Aggregator) QueueLen() int { return len(a.queue) }

func (a *Aggregator) snapshot() []*Channel {
	v, _ := a.channels.Load().([]*Channel)
	return v
}

// Channels returns the registered channels in registration order.
func (a *Aggregator) Channels() []*Channel {
	cur := a.snapshot()
	out := make([]*Channel, len(cur))
	copy(out, cur)
	return out
}

// Channel returns the channel with the given id.
func (a *Aggregator) Channel(id string) (*Channel, bool) {
	for _, c := range a.snapshot() {
		if c.id == id {
			return c, true
		}
	}
	return nil, false
}

// AddChannel appends a channel. Records submitted afterwards see it; records
// already submitted do not.
func (a *Aggregator) AddChannel(spec ChannelSpec) (*Channel, error) {
	if a.closing.Load() {
		return nil, ErrShutdown
	}
	c, err := newChannel(spec)
	if err != nil {
		return nil, err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	cur := a.snapshot()
	next := make([]*Channel, len(cur), len(cur)+1)
	copy(next, cur)
	a.channels.Store(append(next, c))
	return c, nil
}

// RemoveChannel detaches a channel immediately. Records submitted before the
// call are still delivered to it; its sink is closed once they complete. ctx
// bounds the wait; on expiry the close finishes in the background and
// ctx.Err() is returned.
func (a *Aggregator) RemoveChannel(ctx context.Context, id string) error {
	a.mu.Lock()
	cur := a.snapshot()
	idx := -1
	for i, c := range cur {
		if c.id == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		a.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrUnknownChannel, id)
	}
	removed := cur[idx]
	next := make([]*Channel, 0, len(cur)-1)
	next = append(next, cur[:idx]...)
	next = append(next, cur[idx+1:]...)
	a.channels.Store(next)
	a.mu.Unlock()

	return waitCtx(ctx, removed.drain)
}

// EnableChannel resumes delivery to a channel.
func (a *Aggregator) EnableChannel(id string) error { return a.setEnabled(id, true) }

// DisableChannel pauses delivery to a channel without removing it.
func (a *Aggregator) DisableChannel(id string) error { return a.setEnabled(id, false) }

func (a *Aggregator) setEnabled(id string, on bool) error {
	c, ok := a.Channel(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownChannel, id)
	}
	c.enabled.Store(on)
	return nil
}

// Submit hands r to every channel registered at this moment. In sync mode the
// fan-out completes before Submit returns. In async mode Submit returns once r
// is queued, or ErrQueueFull if backpressure dropped it. After shutdown begins
// Submit returns ErrShutdown.
func (a *Aggregator) Submit(r *Record) error {
	if r == nil {
		return &ConfigError{Field: "record", Reason: "nil record"}
	}
	if a.closing.Load() {
		a.reject()
		return ErrShutdown
	}
	a.st.submitted.Add(1)
	chans := hold(a.snapshot())
	if a.queue == nil {
		a.dispatch(r, chans)
		return nil
	}
	if err := a.enqueue(job{rec: r, chans: chans}); err != nil {
		release(chans)
		return err
	}
	return nil
}

// hold registers a record with every channel in chans. Channels detached since
// the snapshot was taken are left out.
func hold(chans []*Channel) []*Channel {
	for i, c := range chans {
		if c.hold() {
			continue
		}
		out := make([]*Channel, i, len(chans)-1)
		copy(out, chans[:i])
		for _, rest := range chans[i+1:] {
			if rest.hold() {
				out = append(out, rest)
			}
		}
		return out
	}
	return chans
}

func release(chans []*Channel) {
	for _, c := range chans {
		c.release()
	}
}

func (a *Aggregator) enqueue(j job) error {
	a.sendMu.RLock()
	defer a.sendMu.RUnlock()
	if a.sendClosed {
		a.reject()
		return ErrShutdown
	}
	select {
	case a.queue <- j:
		return nil
	default:
	}

	switch a.opts.Backpressure {
	case BackpressureDrop:
		a.drop(DropQueueFull)
		return ErrQueueFull
	case BackpressureDropOldest:
		select {
		case old := <-a.queue:
			a.discard(old, DropEvicted)
		default:
		}
		select {
		case a.queue <- j:
			return nil
		default:
			a.drop(DropQueueFull)
			return ErrQueueFull
		}
	default:
		var timeout <-chan time.Time
		if a.opts.BlockTimeout > 0 {
			t := time.NewTimer(a.opts.BlockTimeout)
			defer t.Stop()
			timeout = t.C
		}
		select {
		case a.queue <- j:
			return nil
		case <-a.done:
			a.reject()
			return ErrShutdown
		case <-timeout:
			a.drop(DropQueueFull)
			return ErrQueueFull
		}
	}
}

func (a *Aggregator) drop(reason DropReason) {
	a.st.dropped.Add(1)
	a.metrics.Dropped(reason)
	if reason == DropQueueFull {
		a.report(ErrQueueFull)
	}
}

func (a *Aggregator) reject() {
	a.st.rejected.Add(1)
	a.metrics.Dropped(DropRejected)
}

// discard drops a queued job. Barriers are released rather than counted.
func (a *Aggregator) discard(j job, reason DropReason) {
	if j.barrier != nil {
		close(j.barrier)
		return
	}
	release(j.chans)
	a.drop(reason)
}

func (a *Aggregator) run() {
	defer close(a.workerDone)
	for j := range a.queue {
		if j.barrier != nil {
			close(j.barrier)
			continue
		}
		if a.abort.Load() {
			a.discard(j, DropAborted)
			continue
		}
		a.dispatch(j.rec, j.chans)
	}
}

// dispatch delivers r to chans in order. A failing channel never affects the
// others or the caller.
func (a *Aggregator) dispatch(r *Record, chans []*Channel) {
	for _, c := range chans {
		a.deliver(c, r)
		c.release()
	}
	a.st.processed.Add(1)
}

func (a *Aggregator) deliver(c *Channel, r *Record) {
	if !c.enabled.Load() {
		return
	}
	ok, fault := evaluate(c.filter, r)
	if fault != nil {
		a.st.filterFaults.Add(1)
		a.report(&FilterFaultError{Channel: c.name, Err: fault})
	}
	if !ok {
		c.filtered.Add(1)
		return
	}

	p, fault := renderSafe(c.formatter, r)
	if fault != nil {
		a.report(fmt.Errorf("plog: channel %s: formatter failed, plain layout used: %w", c.name, fault))
	}

	var start time.Time
	if a.measure {
		start = time.Now()
	}
	written, err := c.write(r, p)
	if err == nil && !written {
		a.drop(DropAborted)
		a.report(fmt.Errorf("plog: channel %s: closed before write: %w", c.name, ErrShutdown))
		return
	}
	if a.measure {
		a.metrics.Written(c.name, r.Level, len(p), time.Since(start), err)
	}
	if err != nil {
		c.failed.Add(1)
		a.st.writeErrors.Add(1)
		a.report(&SinkWriteError{Channel: c.name, Err: err})
		return
	}
	c.written.Add(1)
}

// report forwards err to the error handler, ignoring handler panics.
func (a *Aggregator) report(err error) {
	defer func() { _ = recover() }()
	a.opts.ErrorHandler(err)
}

// Flush waits until every record queued before the call has been dispatched,
// then flushes every sink. ctx bounds the wait.
func (a *Aggregator) Flush(ctx context.Context) error {
	if a.closing.Load() {
		return nil
	}
	if a.queue != nil {
		if err := a.barrier(ctx); err != nil {
			return err
		}
	}
	var errs []error
	for _, c := range a.snapshot() {
		if err := c.flush(); err != nil {
			errs = append(errs, &SinkWriteError{Channel: c.name, Err: err})
		}
	}
	return errors.Join(errs...)
}

func (a *Aggregator) barrier(ctx context.Context) error {
	b := make(chan struct{})
	a.sendMu.RLock()
	if a.sendClosed {
		a.sendMu.RUnlock()
		return nil
	}
	select {
	case a.queue <- job{barrier: b}:
	case <-a.done:
		a.sendMu.RUnlock()
		return nil
	case <-ctx.Done():
		a.sendMu.RUnlock()
		return ctx.Err()
	}
	a.sendMu.RUnlock()

	select {
	case <-b:
		return nil
	case <-a.workerDone:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Shutdown stops accepting records, dispatches everything already queued,
// then flushes and closes every sink. It is idempotent. If ctx expires before
// the queue drains, the remaining records are discarded and counted as dropped.
func (a *Aggregator) Shutdown(ctx context.Context) error { return a.shutdown(ctx, false) }

// Stop is a forced shutdown: queued records are discarded and counted as
// dropped instead of being written. It is idempotent.
func (a *Aggregator) Stop(ctx context.Context) error { return a.shutdown(ctx, true) }

// Closed reports whether shutdown has begun.
func (a *Aggregator) Closed() bool { return a.closing.Load() }

func (a *Aggregator) shutdown(ctx context.Context, force bool) error {
	if force {
		a.abort.Store(true)
	}
	if !a.closing.CompareAndSwap(false, true) {
		select {
		case <-a.shutdownDone:
		case <-ctx.Done():
		}
		return nil
	}
	defer close(a.shutdownDone)

	var errs []error
	if a.queue != nil {
		close(a.done)
		a.sendMu.Lock()
		a.sendClosed = true
		close(a.queue)
		a.sendMu.Unlock()

		select {
		case <-a.workerDone:
		case <-ctx.Done():
			a.abort.Store(true)
			errs = append(errs, fmt.Errorf("plog: drain queue: %w", ctx.Err()))
		}
	}

	a.mu.Lock()
	chans := a.snapshot()
	a.channels.Store([]*Channel(nil))
	a.mu.Unlock()

	err := waitCtx(ctx, func() error {
		var cerrs []error
		for _, c := range chans {
			if err := c.drain(); err != nil {
				cerrs = append(cerrs, &SinkWriteError{Channel: c.name, Err: err})
			}
		}
		return errors.Join(cerrs...)
	})
	if err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// waitCtx runs fn on its own goroutine and waits for it or ctx, whichever
// finishes first. fn always runs to completion.
func waitCtx(ctx context.Context, fn func() error) error {
	done := make(chan error, 1)
	go func() { done <- fn() }()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
