package plog

import (
	"errors"
	"fmt"
)

var (
	// ErrConfiguration is matched by every *ConfigError.
	ErrConfiguration = errors.New("plog: invalid configuration")
	// ErrQueueFull is returned when an async submission is dropped by backpressure.
	ErrQueueFull = errors.New("plog: async queue full, dropping record")
	// ErrShutdown is returned for submissions made after shutdown began.
	ErrShutdown = errors.New("plog: logger is shut down")
	// ErrUnknownChannel is returned when a channel id is not registered.
	ErrUnknownChannel = errors.New("plog: unknown channel")
	// ErrSinkClosed is returned by built-in sinks written after Close.
	ErrSinkClosed = errors.New("plog: sink closed")
)

// ConfigError reports an invalid option, sink target or template.
type ConfigError struct {
	Field  string
	Reason string
	Err    error
}

func (e *ConfigError) Error() string {
	msg := "plog: invalid configuration"
	if e.Field != "" {
		msg += " for " + e.Field
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ConfigError) Is(target error) bool { return target == ErrConfiguration }
func (e *ConfigError) Unwrap() error        { return e.Err }

// SinkWriteError is reported when a channel's sink fails to accept a record.
type SinkWriteError struct {
	Channel string
	Err     error
}

func (e *SinkWriteError) Error() string {
	return fmt.Sprintf("plog: channel %s: sink write failed: %v", e.Channel, e.Err)
}

func (e *SinkWriteError) Unwrap() error { return e.Err }

// FilterFaultError is reported when a filter fails to decide. The record is
// accepted for that channel.
type FilterFaultError struct {
	Channel string
	Err     error
}

func (e *FilterFaultError) Error() string {
	return fmt.Sprintf("plog: channel %s: filter fault, record accepted: %v", e.Channel, e.Err)
}

func (e *FilterFaultError) Unwrap() error { return e.Err }

// panicError converts a recovered value into an error.
func panicError(r any) error {
	if err, ok := r.(error); ok {
		return fmt.Errorf("panic: %w", err)
	}
	return fmt.Errorf("panic: %v", r)
}
