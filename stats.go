package plog

import "sync/atomic"

type stats struct {
	submitted    atomic.Uint64
	processed    atomic.Uint64
	dropped      atomic.Uint64
	rejected     atomic.Uint64
	writeErrors  atomic.Uint64
	filterFaults atomic.Uint64
}

// Stats is a point-in-time counters snapshot of an Aggregator.
type Stats struct {
	// Submitted counts records accepted for dispatch.
	Submitted uint64
	// Processed counts records fanned out to the channel list.
	Processed uint64
	// Dropped counts records discarded by backpressure or a forced stop.
	Dropped uint64
	// Rejected counts submissions refused because shutdown had begun.
	Rejected uint64
	// WriteErrors counts failed sink writes across all channels.
	WriteErrors uint64
	// FilterFaults counts filter failures that were resolved by accepting.
	FilterFaults uint64
}

func (s *stats) snapshot() Stats {
	return Stats{
		Submitted:    s.submitted.Load(),
		Processed:    s.processed.Load(),
		Dropped:      s.dropped.Load(),
		Rejected:     s.rejected.Load(),
		WriteErrors:  s.writeErrors.Load(),
		FilterFaults: s.filterFaults.Load(),
	}
}

// ChannelStats is a point-in-time counters snapshot of one Channel.
type ChannelStats struct {
	Written  uint64
	Failed   uint64
	Filtered uint64
}
