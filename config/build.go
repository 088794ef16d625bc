package config

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/trickstertwo/plog"
	"github.com/trickstertwo/plog/sink/breaker"
	lumberjacksink "github.com/trickstertwo/plog/sink/lumberjack"
	slogsink "github.com/trickstertwo/plog/sink/slog"
	zapsink "github.com/trickstertwo/plog/sink/zap"
	zerologsink "github.com/trickstertwo/plog/sink/zerolog"
)

// DefaultRingCapacity is used by ring sinks configured without a capacity.
const DefaultRingCapacity = 256

const megabyte = 1 << 20

// Build converts c into aggregator options and one channel spec per sink.
// With no sinks configured a single stderr console channel is returned.
// Sinks opened before a later sink fails are closed again.
func (c *Config) Build() (plog.Options, []plog.ChannelSpec, error) {
	if err := c.Validate(); err != nil {
		return plog.Options{}, nil, err
	}
	opts := c.options()
	sinks := c.Sinks
	if len(sinks) == 0 {
		sinks = []SinkConfig{{Name: "console", Type: "console"}}
	}
	specs := make([]plog.ChannelSpec, 0, len(sinks))
	for i := range sinks {
		spec, err := c.channel(&sinks[i])
		if err != nil {
			for _, s := range specs {
				_ = s.Sink.Close()
			}
			return plog.Options{}, nil, fmt.Errorf("sink %d: %w", i, err)
		}
		specs = append(specs, spec)
	}
	return opts, specs, nil
}

// BuildChannel converts a single sink description using c's defaults.
func (c *Config) BuildChannel(sc *SinkConfig) (plog.ChannelSpec, error) {
	return c.channel(sc)
}

func (c *Config) options() plog.Options {
	var opts plog.Options
	switch c.DispatchMode {
	case "", "sync":
		opts.Mode = plog.DispatchSync
	case "async":
		opts.Mode = plog.DispatchAsync
	}
	switch c.Backpressure {
	case "", "block":
		opts.Backpressure = plog.BackpressureBlock
	case "drop":
		opts.Backpressure = plog.BackpressureDrop
	case "drop_oldest":
		opts.Backpressure = plog.BackpressureDropOldest
	}
	opts.QueueCapacity = c.QueueCapacity
	opts.BlockTimeout = c.BlockTimeout
	return opts
}

func (c *Config) channel(sc *SinkConfig) (plog.ChannelSpec, error) {
	minName := sc.MinLevel
	if minName == "" {
		minName = c.MinLevel
	}
	min, err := plog.ParseLevel(minName)
	if err != nil {
		return plog.ChannelSpec{}, err
	}
	formatName := sc.Format
	if formatName == "" {
		formatName = c.Format
	}
	formatter, err := ParseFormat(formatName)
	if err != nil {
		return plog.ChannelSpec{}, err
	}
	sink, err := openSink(sc, min)
	if err != nil {
		return plog.ChannelSpec{}, err
	}
	if sc.Breaker != nil {
		name := sc.Name
		if name == "" {
			name = sc.Type
		}
		sink = breaker.New(sink, breaker.Config{
			Name:        name,
			Failures:    sc.Breaker.Failures,
			OpenTimeout: sc.Breaker.OpenTimeout,
		})
	}
	return plog.ChannelSpec{
		Name:      sc.Name,
		Filter:    plog.Threshold(min),
		Formatter: formatter,
		Sink:      sink,
	}, nil
}

// ParseFormat resolves a format name. Text containing "{{" is compiled as a
// template; "" means plain.
func ParseFormat(s string) (plog.Formatter, error) {
	if strings.Contains(s, "{{") {
		t, err := plog.NewTemplate(s)
		if err != nil {
			return nil, err
		}
		return t, nil
	}
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "plain", "text":
		return plog.PlainText{}, nil
	case "kv", "keyvalue", "logfmt":
		return plog.KeyValue{}, nil
	case "json":
		return plog.JSON{}, nil
	}
	return nil, &plog.ConfigError{Field: "format", Reason: fmt.Sprintf("unknown format %q", s)}
}

func openSink(sc *SinkConfig, min plog.Level) (plog.Sink, error) {
	switch sc.Type {
	case "console":
		return plog.NewConsole(os.Stderr), nil
	case "stdout":
		return plog.NewConsole(os.Stdout), nil
	case "null":
		return plog.Null{}, nil
	case "file":
		return plog.NewFile(sc.Target)
	case "rotating":
		var ro plog.RotationOptions
		if r := sc.Rotation; r != nil {
			ro = plog.RotationOptions{MaxBytes: r.MaxBytes, MaxArchives: r.MaxArchives, Compress: r.Compress}
		}
		return plog.NewRotatingFile(sc.Target, ro)
	case "ring":
		capacity := sc.Capacity
		if capacity == 0 {
			capacity = DefaultRingCapacity
		}
		return plog.NewRingBuffer(capacity), nil
	case "lumberjack":
		cfg := lumberjacksink.Config{Filename: sc.Target}
		if r := sc.Rotation; r != nil {
			cfg.MaxSizeMB = int((r.MaxBytes + megabyte - 1) / megabyte)
			cfg.MaxBackups = r.MaxArchives
			cfg.MaxAgeDays = r.MaxAgeDays
			cfg.Compress = r.Compress
		}
		return lumberjacksink.New(cfg)
	case "zap", "zerolog", "slog":
		w, err := stream(sc.Target)
		if err != nil {
			return nil, err
		}
		switch sc.Type {
		case "zap":
			return zapsink.NewJSON(w, min), nil
		case "zerolog":
			return zerologsink.NewJSON(w, min), nil
		default:
			return slogsink.NewJSON(w, min), nil
		}
	}
	return nil, &plog.ConfigError{Field: "type", Reason: fmt.Sprintf("unknown sink type %q", sc.Type)}
}

// stream resolves the target of a bridge sink, which may only name a
// standard stream.
func stream(target string) (io.Writer, error) {
	switch strings.ToLower(target) {
	case "", "stdout":
		return os.Stdout, nil
	case "stderr":
		return os.Stderr, nil
	}
	return nil, &plog.ConfigError{Field: "target", Reason: fmt.Sprintf("bridge sinks write to stdout or stderr, got %q", target)}
}
