// Package breaker guards a plog.Sink with a circuit breaker so a failing
// destination is skipped instead of retried on every record.
package breaker

import (
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/trickstertwo/plog"
	"github.com/trickstertwo/plog/internal/diag"
)

const (
	DefaultFailures    = 5
	DefaultOpenTimeout = 30 * time.Second
)

// Config tunes the breaker. Zero values take the defaults above.
type Config struct {
	Name string
	// Failures is the number of consecutive write errors that opens the circuit.
	Failures uint32
	// OpenTimeout is how long the circuit stays open before a trial write.
	OpenTimeout time.Duration
}

// Sink wraps another sink. While the circuit is open, Write returns
// gobreaker.ErrOpenState without touching the wrapped sink.
type Sink struct {
	next plog.Sink
	cb   *gobreaker.CircuitBreaker[struct{}]
}

func New(next plog.Sink, cfg Config) *Sink {
	if cfg.Failures == 0 {
		cfg.Failures = DefaultFailures
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = DefaultOpenTimeout
	}
	failures := cfg.Failures
	cb := gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: 1,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			diag.Warn("sink circuit state changed", "sink", name, "from", from.String(), "to", to.String())
		},
	})
	return &Sink{next: next, cb: cb}
}

// State reports the breaker state.
func (s *Sink) State() gobreaker.State { return s.cb.State() }

// Unwrap returns the guarded sink.
func (s *Sink) Unwrap() plog.Sink { return s.next }

func (s *Sink) Write(r *plog.Record, p []byte) error {
	_, err := s.cb.Execute(func() (struct{}, error) {
		return struct{}{}, s.next.Write(r, p)
	})
	return err
}

func (s *Sink) Flush() error { return s.next.Flush() }
func (s *Sink) Close() error { return s.next.Close() }
