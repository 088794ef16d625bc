package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"github.com/trickstertwo/plog"
)

// EnvPrefix marks the environment variables read by Load.
const EnvPrefix = "PLOG_"

// envKeys maps PLOG_* suffixes to configuration keys. Sinks are file-only.
var envKeys = map[string]string{
	"min_level":      "minLevel",
	"dispatch_mode":  "dispatchMode",
	"queue_capacity": "queueCapacity",
	"backpressure":   "backpressure",
	"block_timeout":  "blockTimeout",
	"format":         "format",
}

// Load layers the defaults, the YAML file at path (skipped when path is
// empty) and PLOG_* environment variables, then validates the result.
func Load(path string) (*Config, error) {
	k, err := defaults()
	if err != nil {
		return nil, err
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, &plog.ConfigError{Field: "file", Reason: fmt.Sprintf("failed to load config file %s", path), Err: err}
		}
	}
	if err := k.Load(env.Provider(EnvPrefix, ".", envTransform), nil); err != nil {
		return nil, &plog.ConfigError{Field: "env", Reason: "failed to load environment variables", Err: err}
	}
	return unmarshal(k)
}

// Parse reads a YAML (or JSON, which is valid YAML) document on top of the
// defaults. The environment is not consulted.
func Parse(doc []byte) (*Config, error) {
	k, err := defaults()
	if err != nil {
		return nil, err
	}
	if err := k.Load(bytesProvider(doc), yaml.Parser()); err != nil {
		return nil, &plog.ConfigError{Field: "document", Reason: "malformed configuration document", Err: err}
	}
	return unmarshal(k)
}

// ParseSink reads a single sink description, as used when adding a channel
// to a running pipeline.
func ParseSink(doc []byte) (*SinkConfig, error) {
	k := koanf.New(".")
	if err := k.Load(bytesProvider(doc), yaml.Parser()); err != nil {
		return nil, &plog.ConfigError{Field: "sink", Reason: "malformed sink document", Err: err}
	}
	var sc SinkConfig
	if err := k.Unmarshal("", &sc); err != nil {
		return nil, &plog.ConfigError{Field: "sink", Reason: "failed to decode sink", Err: err}
	}
	c := Config{MinLevel: "info", Sinks: []SinkConfig{sc}}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c.Sinks[0], nil
}

func defaults() (*koanf.Koanf, error) {
	k := koanf.New(".")
	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}
	return k, nil
}

func unmarshal(k *koanf.Koanf) (*Config, error) {
	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, &plog.ConfigError{Field: "config", Reason: "failed to decode configuration", Err: err}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// envTransform turns PLOG_QUEUE_CAPACITY into queueCapacity. Unknown
// variables map to "" and are skipped.
func envTransform(key string) string {
	return envKeys[strings.ToLower(strings.TrimPrefix(key, EnvPrefix))]
}

// bytesProvider is a koanf.Provider over an in-memory document.
type bytesProvider []byte

func (b bytesProvider) ReadBytes() ([]byte, error) {
	if len(strings.TrimSpace(string(b))) == 0 {
		return nil, errors.New("empty document")
	}
	return b, nil
}

func (b bytesProvider) Read() (map[string]any, error) {
	return nil, errors.New("bytes provider does not support this method")
}

var _ koanf.Provider = bytesProvider(nil)

// LoadFromEnvFile is Load with the path taken from PLOG_CONFIG, if set.
func LoadFromEnvFile() (*Config, error) {
	return Load(os.Getenv(EnvPrefix + "CONFIG"))
}
