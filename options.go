package plog

import (
	"fmt"
	"time"

	"github.com/trickstertwo/plog/internal/diag"
)

// DispatchMode selects where channel fan-out runs.
type DispatchMode uint8

const (
	// DispatchSync fans out on the submitting goroutine before Submit returns.
	DispatchSync DispatchMode = iota + 1
	// DispatchAsync enqueues records for a single background worker.
	DispatchAsync
)

func (m DispatchMode) String() string {
	switch m {
	case DispatchSync:
		return "sync"
	case DispatchAsync:
		return "async"
	}
	return fmt.Sprintf("DispatchMode(%d)", uint8(m))
}

// Backpressure controls async submission when the queue is full.
type Backpressure uint8

const (
	// BackpressureBlock waits for space, bounded by Options.BlockTimeout when set.
	BackpressureBlock Backpressure = iota + 1
	// BackpressureDrop rejects the new record.
	BackpressureDrop
	// BackpressureDropOldest evicts the oldest queued record to make room.
	BackpressureDropOldest
)

func (b Backpressure) String() string {
	switch b {
	case BackpressureBlock:
		return "block"
	case BackpressureDrop:
		return "drop"
	case BackpressureDropOldest:
		return "drop_oldest"
	}
	return fmt.Sprintf("Backpressure(%d)", uint8(b))
}

// ErrorHandler receives pipeline errors (*SinkWriteError, *FilterFaultError,
// dropped records). It is called best-effort and must not block.
type ErrorHandler func(error)

// DefaultQueueCapacity is the async queue size used when none is configured.
const DefaultQueueCapacity = 1024

// Options configures an Aggregator.
type Options struct {
	Mode          DispatchMode
	QueueCapacity int
	Backpressure  Backpressure
	// BlockTimeout bounds BackpressureBlock waits; zero waits until space frees
	// up or shutdown begins.
	BlockTimeout time.Duration
	ErrorHandler ErrorHandler
	Metrics      MetricsCollector
}

func defaultErrorHandler(err error) { diag.Report(err) }

func (o Options) normalize() (Options, error) {
	if o.Mode == 0 {
		o.Mode = DispatchSync
	}
	if o.Mode != DispatchSync && o.Mode != DispatchAsync {
		return o, &ConfigError{Field: "dispatchMode", Reason: fmt.Sprintf("unknown mode %d", o.Mode)}
	}
	if o.QueueCapacity < 0 {
		return o, &ConfigError{Field: "queueCapacity", Reason: "must not be negative"}
	}
	if o.QueueCapacity == 0 {
		o.QueueCapacity = DefaultQueueCapacity
	}
	if o.Backpressure == 0 {
		o.Backpressure = BackpressureBlock
	}
	if o.Backpressure > BackpressureDropOldest {
		return o, &ConfigError{Field: "backpressure", Reason: fmt.Sprintf("unknown policy %d", o.Backpressure)}
	}
	if o.BlockTimeout < 0 {
		return o, &ConfigError{Field: "blockTimeout", Reason: "must not be negative"}
	}
	if o.ErrorHandler == nil {
		o.ErrorHandler = defaultErrorHandler
	}
	if o.Metrics == nil {
		o.Metrics = &NoopMetricsCollector{}
	}
	return o, nil
}
