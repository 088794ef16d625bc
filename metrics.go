package plog

import "time"

// DropReason labels why a record never reached the channels.
type DropReason string

const (
	DropQueueFull DropReason = "queue_full"
	DropEvicted   DropReason = "evicted"
	DropAborted   DropReason = "aborted"
	DropRejected  DropReason = "shutdown"
)

// MetricsCollector receives per-write and per-drop measurements.
// Implementations must be concurrency-safe.
type MetricsCollector interface {
	Written(channel string, level Level, size int, dur time.Duration, err error)
	Dropped(reason DropReason)
}

type NoopMetricsCollector struct{}

func (*NoopMetricsCollector) Written(string, Level, int, time.Duration, error) {}
func (*NoopMetricsCollector) Dropped(DropReason)                              {}
