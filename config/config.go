// Package config loads a plog pipeline description from defaults, a YAML
// file, PLOG_* environment variables or a raw document, and turns it into
// plog.Options and channel specs.
package config

import (
	"errors"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trickstertwo/plog"
)

// Config is the whole configuration surface.
type Config struct {
	MinLevel      string        `koanf:"minLevel"`
	DispatchMode  string        `koanf:"dispatchMode" validate:"omitempty,oneof=sync async"`
	QueueCapacity int           `koanf:"queueCapacity" validate:"gte=0"`
	Backpressure  string        `koanf:"backpressure" validate:"omitempty,oneof=block drop drop_oldest"`
	BlockTimeout  time.Duration `koanf:"blockTimeout" validate:"gte=0"`
	Format        string        `koanf:"format"`
	Sinks         []SinkConfig  `koanf:"sinks" validate:"dive"`
}

// SinkConfig describes one channel. MinLevel and Format fall back to the
// top-level values when empty.
type SinkConfig struct {
	Name     string          `koanf:"name"`
	Type     string          `koanf:"type" validate:"required,oneof=console stdout file rotating ring null lumberjack zap zerolog slog"`
	Target   string          `koanf:"target" validate:"required_if=Type file,required_if=Type rotating,required_if=Type lumberjack"`
	MinLevel string          `koanf:"minLevel"`
	Format   string          `koanf:"format"`
	Capacity int             `koanf:"capacity" validate:"gte=0"`
	Rotation *RotationConfig `koanf:"rotation"`
	Breaker  *BreakerConfig  `koanf:"breaker"`
}

type RotationConfig struct {
	MaxBytes    int64 `koanf:"maxBytes" validate:"gte=0"`
	MaxArchives int   `koanf:"maxArchives" validate:"gte=0"`
	Compress    bool  `koanf:"compress"`
	MaxAgeDays  int   `koanf:"maxAgeDays" validate:"gte=0"`
}

// BreakerConfig wraps the sink in a circuit breaker.
type BreakerConfig struct {
	Failures    uint32        `koanf:"failures"`
	OpenTimeout time.Duration `koanf:"openTimeout" validate:"gte=0"`
}

// Default returns the built-in defaults: synchronous dispatch at Info with a
// single console sink added at build time when none is configured.
func Default() Config {
	return Config{
		MinLevel:      "info",
		DispatchMode:  "sync",
		QueueCapacity: plog.DefaultQueueCapacity,
		Backpressure:  "block",
		Format:        "plain",
	}
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("koanf"), ",")
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	return v
}

// Validate checks c against its struct rules and the level and format names.
// The first violation is returned as a *plog.ConfigError.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			field, _ := strings.CutPrefix(fe.Namespace(), "Config.")
			return &plog.ConfigError{Field: field, Reason: "failed on the '" + fe.Tag() + "' rule", Err: err}
		}
		return &plog.ConfigError{Field: "config", Reason: "invalid configuration", Err: err}
	}
	if _, err := plog.ParseLevel(c.MinLevel); err != nil {
		return err
	}
	for i := range c.Sinks {
		if c.Sinks[i].MinLevel == "" {
			continue
		}
		if _, err := plog.ParseLevel(c.Sinks[i].MinLevel); err != nil {
			return err
		}
	}
	return nil
}
