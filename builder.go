package plog

import "time"

// ErrNoChannels is returned by Builder.Build when no channel was added.
var ErrNoChannels = &ConfigError{Field: "channels", Reason: "at least one channel is required"}

// Builder separates Logger construction from representation.
type Builder struct {
	opts   Options
	specs  []ChannelSpec
	bound  []Field
	task   string
	caller bool
}

func NewBuilder() *Builder {
	return &Builder{opts: Options{Mode: DispatchSync}}
}

func (b *Builder) WithMode(m DispatchMode) *Builder {
	b.opts.Mode = m
	return b
}

// WithAsync switches to async dispatch with the given queue capacity and policy.
func (b *Builder) WithAsync(capacity int, bp Backpressure) *Builder {
	b.opts.Mode = DispatchAsync
	b.opts.QueueCapacity = capacity
	b.opts.Backpressure = bp
	return b
}

func (b *Builder) WithBlockTimeout(d time.Duration) *Builder {
	b.opts.BlockTimeout = d
	return b
}

func (b *Builder) WithErrorHandler(h ErrorHandler) *Builder {
	b.opts.ErrorHandler = h
	return b
}

func (b *Builder) WithMetrics(m MetricsCollector) *Builder {
	b.opts.Metrics = m
	return b
}

func (b *Builder) WithFields(fs ...Field) *Builder {
	b.bound = append(b.bound, fs...)
	return b
}

func (b *Builder) WithTask(task string) *Builder {
	b.task = task
	return b
}

func (b *Builder) WithCaller() *Builder {
	b.caller = true
	return b
}

func (b *Builder) AddChannel(spec ChannelSpec) *Builder {
	b.specs = append(b.specs, spec)
	return b
}

// Build constructs the Logger.
func (b *Builder) Build() (*Logger, error) {
	if len(b.specs) == 0 {
		return nil, ErrNoChannels
	}
	l, err := New(b.opts, b.specs...)
	if err != nil {
		return nil, err
	}
	l.bound = copyFields(nil, b.bound)
	l.task = b.task
	l.caller = b.caller
	return l, nil
}
