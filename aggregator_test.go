package plog

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func newTestAggregator(t *testing.T, opts Options, specs ...ChannelSpec) *Aggregator {
	t.Helper()
	a, err := NewAggregator(opts, specs...)
	if err != nil {
		t.Fatalf("new aggregator: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = a.Stop(ctx)
	})
	return a
}

func TestSyncThresholdDelivery(t *testing.T) {
	t.Parallel()

	sink := newRecordingSink()
	a := newTestAggregator(t, Options{Mode: DispatchSync}, ChannelSpec{Filter: Threshold(LevelWarn), Sink: sink})

	if err := a.Submit(rec(LevelInfo, "quiet")); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if err := a.Submit(rec(LevelError, "loud")); err != nil {
		t.Fatalf("submit: %v", err)
	}
	assertMessages(t, sink.messages(), "loud")
	if st := a.Channels()[0].Stats(); st.Written != 1 || st.Filtered != 1 {
		t.Fatalf("channel stats mismatch: %+v", st)
	}
}

func TestFanOutInRegistrationOrder(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	var order []string
	mk := func(name string) Sink {
		return SinkFunc(func(*Record, []byte) error {
			mu.Lock()
			defer mu.Unlock()
			order = append(order, name)
			return nil
		})
	}
	a := newTestAggregator(t, Options{},
		ChannelSpec{Name: "first", Sink: mk("first")},
		ChannelSpec{Name: "second", Sink: mk("second")},
		ChannelSpec{Name: "third", Sink: mk("third")},
	)
	_ = a.Submit(rec(LevelInfo, "x"))
	assertMessages(t, order, "first", "second", "third")
}

func TestFailingSinkIsIsolated(t *testing.T) {
	t.Parallel()

	var errs errorCollector
	bad := newRecordingSink()
	bad.err = errors.New("disk full")
	panicky := newRecordingSink()
	panicky.panicV = "sink bug"
	good := newRecordingSink()

	a := newTestAggregator(t, Options{ErrorHandler: errs.handle},
		ChannelSpec{Name: "bad", Sink: bad},
		ChannelSpec{Name: "panicky", Sink: panicky},
		ChannelSpec{Name: "good", Sink: good},
	)
	if err := a.Submit(rec(LevelInfo, "m")); err != nil {
		t.Fatalf("submit must not surface sink errors: %v", err)
	}
	assertMessages(t, good.messages(), "m")
	if st := a.Stats(); st.WriteErrors != 2 || st.Processed != 1 {
		t.Fatalf("stats mismatch: %+v", st)
	}
	if n := errs.sinkErrors(); n != 2 {
		t.Fatalf("expected 2 sink errors reported, got %d", n)
	}
	if st := a.Channels()[0].Stats(); st.Failed != 1 {
		t.Fatalf("bad channel stats mismatch: %+v", st)
	}
}

func TestFilterFaultAcceptsRecord(t *testing.T) {
	t.Parallel()

	var errs errorCollector
	sink := newRecordingSink()
	a := newTestAggregator(t, Options{ErrorHandler: errs.handle},
		ChannelSpec{Filter: faultyFilter{}, Sink: sink},
	)
	_ = a.Submit(rec(LevelDebug, "kept"))
	assertMessages(t, sink.messages(), "kept")
	if st := a.Stats(); st.FilterFaults != 1 {
		t.Fatalf("filter fault not counted: %+v", st)
	}
	if errs.filterFaults() != 1 {
		t.Fatalf("filter fault not reported")
	}
}

func TestFilterFaultInsideCompositeIsCounted(t *testing.T) {
	t.Parallel()

	rl, err := NewRateLimit(1, time.Second)
	if err != nil {
		t.Fatalf("NewRateLimit: %v", err)
	}
	rl.now = func() time.Time { return time.Time{} }

	var errs errorCollector
	sink := newRecordingSink()
	a := newTestAggregator(t, Options{ErrorHandler: errs.handle},
		ChannelSpec{Filter: And(rl, Always), Sink: sink},
	)
	_ = a.Submit(rec(LevelInfo, "kept"))
	assertMessages(t, sink.messages(), "kept")
	if st := a.Stats(); st.FilterFaults != 1 {
		t.Fatalf("composite filter fault not counted: %+v", st)
	}
	if errs.filterFaults() != 1 {
		t.Fatalf("composite filter fault not reported")
	}
}

func TestPanickingErrorHandlerIsIgnored(t *testing.T) {
	t.Parallel()

	bad := newRecordingSink()
	bad.err = errors.New("nope")
	a := newTestAggregator(t, Options{ErrorHandler: func(error) { panic("handler bug") }},
		ChannelSpec{Sink: bad},
	)
	if err := a.Submit(rec(LevelInfo, "x")); err != nil {
		t.Fatalf("submit: %v", err)
	}
}

func TestAsyncPerProducerOrder(t *testing.T) {
	t.Parallel()

	sink := newRecordingSink()
	a, err := NewAggregator(Options{Mode: DispatchAsync, QueueCapacity: 16, Backpressure: BackpressureBlock}, ChannelSpec{Sink: sink})
	if err != nil {
		t.Fatalf("new aggregator: %v", err)
	}

	var wg sync.WaitGroup
	for p := 0; p < 4; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				_ = a.Submit(rec(LevelInfo, fmt.Sprintf("%d:%03d", p, i)))
			}
		}(p)
	}
	wg.Wait()
	if err := a.Shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}

	msgs := sink.messages()
	if len(msgs) != 400 {
		t.Fatalf("expected 400 records, got %d", len(msgs))
	}
	last := map[byte]string{}
	for _, m := range msgs {
		if prev, ok := last[m[0]]; ok && prev > m {
			t.Fatalf("producer order violated: %s after %s", m, prev)
		}
		last[m[0]] = m
	}
}

func TestAsyncDropOnFullQueue(t *testing.T) {
	t.Parallel()

	sink := newBlockingSink()
	a := newTestAggregator(t, Options{Mode: DispatchAsync, QueueCapacity: 1, Backpressure: BackpressureDrop, ErrorHandler: func(error) {}},
		ChannelSpec{Sink: sink})

	_ = a.Submit(rec(LevelInfo, "r0"))
	sink.waitEntered(t)

	if err := a.Submit(rec(LevelInfo, "a")); err != nil {
		t.Fatalf("first submit should queue: %v", err)
	}
	if err := a.Submit(rec(LevelInfo, "b")); !errors.Is(err, ErrQueueFull) {
		t.Fatalf("expected ErrQueueFull, got %v", err)
	}
	if st := a.Stats(); st.Dropped != 1 {
		t.Fatalf("dropped mismatch: %+v", st)
	}

	close(sink.release)
	if err := a.Flush(context.Background()); err != nil {
		t.Fatalf("flush: %v", err)
	}
	assertMessages(t, sink.messages(), "r0", "a")
}

func TestAsyncDropOldest(t *testing.T) {
	t.Parallel()

	sink := newBlockingSink()
	a := newTestAggregator(t, Options{Mode: DispatchAsync, QueueCapacity: 1, Backpressure: BackpressureDropOldest},
		ChannelSpec{Sink: sink})

	_ = a.Submit(rec(LevelInfo, "r0"))
	sink.waitEntered(t)
	_ = a.Submit(rec(LevelInfo, "a"))
	if err := a.Submit(rec(LevelInfo, "b")); err != nil {
		t.Fatalf("drop-oldest should accept the newest: %v", err)
	}
	if st := a.Stats(); st.Dropped != 1 {
		t.Fatalf("dropped mismatch: %+v", st)
	}

	close(sink.release)
	if err := a.Flush(context.Background()); err != nil {
		t.Fatalf("flush: %v", err)
	}
	assertMessages(t, sink.messages(), "r0", "b")
}

func TestAsyncBlockTimeout(t *testing.T) {
	t.Parallel()

	sink := newBlockingSink()
	a := newTestAggregator(t, Options{
		Mode:          DispatchAsync,
		QueueCapacity: 1,
		Backpressure:  BackpressureBlock,
		BlockTimeout:  20 * time.Millisecond,
		ErrorHandler:  func(error) {},
	}, ChannelSpec{Sink: sink})

	_ = a.Submit(rec(LevelInfo, "r0"))
	sink.waitEntered(t)
	_ = a.Submit(rec(LevelInfo, "a"))

	start := time.Now()
	if err := a.Submit(rec(LevelInfo, "b")); !errors.Is(err, ErrQueueFull) {
		t.Fatalf("expected ErrQueueFull after timeout, got %v", err)
	}
	if time.Since(start) < 20*time.Millisecond {
		t.Fatalf("submit returned before the block timeout")
	}
	close(sink.release)
}

func TestBlockedProducerReleasedByShutdown(t *testing.T) {
	t.Parallel()

	sink := newBlockingSink()
	a := newTestAggregator(t, Options{Mode: DispatchAsync, QueueCapacity: 1, Backpressure: BackpressureBlock},
		ChannelSpec{Sink: sink})

	_ = a.Submit(rec(LevelInfo, "r0"))
	sink.waitEntered(t)
	_ = a.Submit(rec(LevelInfo, "queued"))

	blocked := make(chan error, 1)
	go func() { blocked <- a.Submit(rec(LevelInfo, "blocked")) }()

	shut := make(chan error, 1)
	go func() { shut <- a.Shutdown(context.Background()) }()

	select {
	case err := <-blocked:
		if !errors.Is(err, ErrShutdown) {
			t.Fatalf("blocked producer should be rejected, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("blocked producer was never released")
	}
	close(sink.release)
	if err := <-shut; err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	assertMessages(t, sink.messages(), "r0", "queued")
}

func TestSnapshotAtSubmission(t *testing.T) {
	t.Parallel()

	first := newBlockingSink()
	a := newTestAggregator(t, Options{Mode: DispatchAsync, QueueCapacity: 8}, ChannelSpec{Name: "first", Sink: first})

	_ = a.Submit(rec(LevelInfo, "r0"))
	first.waitEntered(t)
	_ = a.Submit(rec(LevelInfo, "before"))

	second := newRecordingSink()
	if _, err := a.AddChannel(ChannelSpec{Name: "second", Sink: second}); err != nil {
		t.Fatalf("add channel: %v", err)
	}
	_ = a.Submit(rec(LevelInfo, "after"))

	close(first.release)
	if err := a.Flush(context.Background()); err != nil {
		t.Fatalf("flush: %v", err)
	}
	assertMessages(t, first.messages(), "r0", "before", "after")
	assertMessages(t, second.messages(), "after")
}

func TestShutdownDrainsAndIsIdempotent(t *testing.T) {
	t.Parallel()

	sink := newBlockingSink()
	a, err := NewAggregator(Options{Mode: DispatchAsync, QueueCapacity: 8}, ChannelSpec{Sink: sink})
	if err != nil {
		t.Fatalf("new aggregator: %v", err)
	}
	_ = a.Submit(rec(LevelInfo, "r0"))
	sink.waitEntered(t)
	_ = a.Submit(rec(LevelInfo, "r1"))
	_ = a.Submit(rec(LevelInfo, "r2"))

	go func() {
		time.Sleep(10 * time.Millisecond)
		close(sink.release)
	}()
	if err := a.Shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	assertMessages(t, sink.messages(), "r0", "r1", "r2")

	if err := a.Shutdown(context.Background()); err != nil {
		t.Fatalf("second shutdown: %v", err)
	}
	if err := a.Stop(context.Background()); err != nil {
		t.Fatalf("stop after shutdown: %v", err)
	}
	if err := a.Submit(rec(LevelError, "late")); !errors.Is(err, ErrShutdown) {
		t.Fatalf("expected ErrShutdown, got %v", err)
	}
	if sink.closeCount() != 1 {
		t.Fatalf("sink closed %d times", sink.closeCount())
	}
	if st := a.Stats(); st.Rejected != 1 || st.Dropped != 0 {
		t.Fatalf("stats mismatch: %+v", st)
	}
	assertMessages(t, sink.messages(), "r0", "r1", "r2")
	if _, err := a.AddChannel(ChannelSpec{Sink: Null{}}); !errors.Is(err, ErrShutdown) {
		t.Fatalf("expected ErrShutdown from AddChannel, got %v", err)
	}
}

func TestSyncShutdown(t *testing.T) {
	t.Parallel()

	sink := newRecordingSink()
	a, err := NewAggregator(Options{}, ChannelSpec{Sink: sink})
	if err != nil {
		t.Fatalf("new aggregator: %v", err)
	}
	_ = a.Submit(rec(LevelInfo, "a"))
	if err := a.Shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	if err := a.Submit(rec(LevelInfo, "b")); !errors.Is(err, ErrShutdown) {
		t.Fatalf("expected ErrShutdown, got %v", err)
	}
	assertMessages(t, sink.messages(), "a")
	if sink.closeCount() != 1 {
		t.Fatalf("sink closed %d times", sink.closeCount())
	}
}

func TestStopDiscardsQueued(t *testing.T) {
	t.Parallel()

	sink := newBlockingSink()
	a, err := NewAggregator(Options{Mode: DispatchAsync, QueueCapacity: 8}, ChannelSpec{Sink: sink})
	if err != nil {
		t.Fatalf("new aggregator: %v", err)
	}
	_ = a.Submit(rec(LevelInfo, "r0"))
	sink.waitEntered(t)
	for i := 0; i < 3; i++ {
		_ = a.Submit(rec(LevelInfo, "pending"))
	}

	done := make(chan error, 1)
	go func() { done <- a.Stop(context.Background()) }()
	eventually(t, a.Closed)
	close(sink.release)

	if err := <-done; err != nil {
		t.Fatalf("stop: %v", err)
	}
	assertMessages(t, sink.messages(), "r0")
	if st := a.Stats(); st.Dropped != 3 {
		t.Fatalf("dropped mismatch: %+v", st)
	}
}

func TestShutdownTimeoutAbortsQueue(t *testing.T) {
	t.Parallel()

	sink := newBlockingSink()
	a, err := NewAggregator(Options{Mode: DispatchAsync, QueueCapacity: 8}, ChannelSpec{Sink: sink})
	if err != nil {
		t.Fatalf("new aggregator: %v", err)
	}
	_ = a.Submit(rec(LevelInfo, "r0"))
	sink.waitEntered(t)
	_ = a.Submit(rec(LevelInfo, "pending"))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := a.Shutdown(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", err)
	}
	close(sink.release)
	eventually(t, func() bool { return a.Stats().Dropped == 1 })
	eventually(t, func() bool { return sink.closeCount() == 1 })
	assertMessages(t, sink.messages(), "r0")
}

func TestRemoveChannel(t *testing.T) {
	t.Parallel()

	keep := newRecordingSink()
	gone := newRecordingSink()
	a := newTestAggregator(t, Options{}, ChannelSpec{Sink: keep}, ChannelSpec{Sink: gone})

	id := a.Channels()[1].ID()
	_ = a.Submit(rec(LevelInfo, "both"))
	if err := a.RemoveChannel(context.Background(), id); err != nil {
		t.Fatalf("remove: %v", err)
	}
	_ = a.Submit(rec(LevelInfo, "one"))

	assertMessages(t, keep.messages(), "both", "one")
	assertMessages(t, gone.messages(), "both")
	if gone.closeCount() != 1 {
		t.Fatalf("removed sink should be closed once, got %d", gone.closeCount())
	}
	if err := a.RemoveChannel(context.Background(), id); !errors.Is(err, ErrUnknownChannel) {
		t.Fatalf("expected ErrUnknownChannel, got %v", err)
	}
}

func TestRemoveChannelWaitsForInFlightWrite(t *testing.T) {
	t.Parallel()

	sink := newBlockingSink()
	a := newTestAggregator(t, Options{}, ChannelSpec{Sink: sink})
	id := a.Channels()[0].ID()

	go func() { _ = a.Submit(rec(LevelInfo, "in-flight")) }()
	sink.waitEntered(t)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := a.RemoveChannel(ctx, id); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error while write is stuck, got %v", err)
	}
	if len(a.Channels()) != 0 {
		t.Fatalf("channel should be detached immediately")
	}
	if sink.closeCount() != 0 {
		t.Fatalf("sink closed under an in-flight write")
	}

	close(sink.release)
	eventually(t, func() bool { return sink.closeCount() == 1 })
	assertMessages(t, sink.messages(), "in-flight")
}

func TestRemovedChannelReceivesEarlierRecords(t *testing.T) {
	t.Parallel()

	slow := newBlockingSink()
	ring := NewRingBuffer(8)
	a := newTestAggregator(t, Options{Mode: DispatchAsync, QueueCapacity: 8},
		ChannelSpec{Sink: slow}, ChannelSpec{Sink: ring},
	)
	id := a.Channels()[1].ID()

	_ = a.Submit(rec(LevelInfo, "r0"))
	slow.waitEntered(t)
	_ = a.Submit(rec(LevelInfo, "r1"))
	_ = a.Submit(rec(LevelInfo, "r2"))

	removed := make(chan error, 1)
	go func() { removed <- a.RemoveChannel(context.Background(), id) }()
	eventually(t, func() bool { return len(a.Channels()) == 1 })
	_ = a.Submit(rec(LevelInfo, "r3"))
	close(slow.release)

	if err := <-removed; err != nil {
		t.Fatalf("remove: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.Shutdown(ctx); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	assertMessages(t, ring.Messages(), "r0", "r1", "r2")
	assertMessages(t, slow.messages(), "r0", "r1", "r2", "r3")
	if st := a.Stats(); st.Dropped != 0 || st.Processed != 4 {
		t.Fatalf("stats mismatch: %+v", st)
	}
}

func TestRemoveChannelTimeoutKeepsPendingRecords(t *testing.T) {
	t.Parallel()

	slow := newBlockingSink()
	tail := newRecordingSink()
	a := newTestAggregator(t, Options{Mode: DispatchAsync, QueueCapacity: 8},
		ChannelSpec{Sink: slow}, ChannelSpec{Sink: tail},
	)
	id := a.Channels()[1].ID()

	_ = a.Submit(rec(LevelInfo, "r0"))
	slow.waitEntered(t)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := a.RemoveChannel(ctx, id); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", err)
	}
	if tail.closeCount() != 0 {
		t.Fatalf("sink closed with a record still pending")
	}
	close(slow.release)
	eventually(t, func() bool { return tail.closeCount() == 1 })
	assertMessages(t, tail.messages(), "r0")
	if st := a.Stats(); st.Dropped != 0 {
		t.Fatalf("dropped mismatch: %+v", st)
	}
}

func TestEnableDisableChannel(t *testing.T) {
	t.Parallel()

	sink := newRecordingSink()
	a := newTestAggregator(t, Options{}, ChannelSpec{Sink: sink, Disabled: true})
	id := a.Channels()[0].ID()

	_ = a.Submit(rec(LevelInfo, "off"))
	if err := a.EnableChannel(id); err != nil {
		t.Fatalf("enable: %v", err)
	}
	_ = a.Submit(rec(LevelInfo, "on"))
	if err := a.DisableChannel(id); err != nil {
		t.Fatalf("disable: %v", err)
	}
	_ = a.Submit(rec(LevelInfo, "off again"))
	assertMessages(t, sink.messages(), "on")

	if err := a.EnableChannel("nope"); !errors.Is(err, ErrUnknownChannel) {
		t.Fatalf("expected ErrUnknownChannel, got %v", err)
	}
}

func TestInvalidOptions(t *testing.T) {
	t.Parallel()

	cases := []struct {
		desc  string
		opts  Options
		specs []ChannelSpec
	}{
		{desc: "negative queue", opts: Options{Mode: DispatchAsync, QueueCapacity: -1}},
		{desc: "unknown mode", opts: Options{Mode: 9}},
		{desc: "unknown backpressure", opts: Options{Backpressure: 9}},
		{desc: "negative block timeout", opts: Options{BlockTimeout: -time.Second}},
		{desc: "missing sink", specs: []ChannelSpec{{Name: "x"}}},
	}
	for _, tc := range cases {
		if _, err := NewAggregator(tc.opts, tc.specs...); !errors.Is(err, ErrConfiguration) {
			t.Fatalf("%s: expected configuration error, got %v", tc.desc, err)
		}
	}
	a := newTestAggregator(t, Options{})
	if err := a.Submit(nil); !errors.Is(err, ErrConfiguration) {
		t.Fatalf("nil record: expected configuration error, got %v", err)
	}
}

type countingMetrics struct {
	written atomic.Uint64
	failed  atomic.Uint64
	dropped atomic.Uint64
}

func (m *countingMetrics) Written(_ string, _ Level, _ int, _ time.Duration, err error) {
	if err != nil {
		m.failed.Add(1)
		return
	}
	m.written.Add(1)
}

func (m *countingMetrics) Dropped(DropReason) { m.dropped.Add(1) }

func TestMetricsCollector(t *testing.T) {
	t.Parallel()

	m := &countingMetrics{}
	bad := newRecordingSink()
	bad.err = errors.New("x")
	a := newTestAggregator(t, Options{Metrics: m, ErrorHandler: func(error) {}},
		ChannelSpec{Sink: newRecordingSink()}, ChannelSpec{Sink: bad})

	_ = a.Submit(rec(LevelInfo, "x"))
	if m.written.Load() != 1 || m.failed.Load() != 1 {
		t.Fatalf("metrics mismatch: written %d failed %d", m.written.Load(), m.failed.Load())
	}
	_ = a.Shutdown(context.Background())
	_ = a.Submit(rec(LevelInfo, "late"))
	if m.dropped.Load() != 1 {
		t.Fatalf("rejected submission should be reported as dropped")
	}
}
