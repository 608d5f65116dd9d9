package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"

	"github.com/spaghettifunk/lumen/engine/core"
)

var ErrInvalidConfig = errors.New("invalid configuration")

type LogConfig struct {
	// One of debug, info, warn, error.
	Level string `toml:"level"`
	// Optional rotating log file.
	File string `toml:"file"`
	// Maximum size in megabytes before the log file is rotated.
	MaxSizeMB int `toml:"max_size_mb"`
}

type ErrorsConfig struct {
	// Maximum number of errors kept by the error queue.
	Max int `toml:"max"`
}

type ContextVersion struct {
	Major int `toml:"major"`
	Minor int `toml:"minor"`
}

type ContextConfig struct {
	// Versions tried in order until one succeeds.
	Versions []ContextVersion `toml:"versions"`
	Debug    bool             `toml:"debug"`
	// Whether new contexts join the share group of an existing one.
	Share bool `toml:"share"`
}

type PipelineConfig struct {
	// Manual sort bits of buckets created without an explicit width.
	ManualBits  uint8 `toml:"manual_bits"`
	SortProgram bool  `toml:"sort_program"`
	SortLayout  bool  `toml:"sort_layout"`
}

type WindowConfig struct {
	Name   string `toml:"name"`
	Width  uint32 `toml:"width"`
	Height uint32 `toml:"height"`
	PosX   uint32 `toml:"pos_x"`
	PosY   uint32 `toml:"pos_y"`
}

type Config struct {
	Log      LogConfig      `toml:"log"`
	Errors   ErrorsConfig   `toml:"errors"`
	Context  ContextConfig  `toml:"context"`
	Pipeline PipelineConfig `toml:"pipeline"`
	Window   WindowConfig   `toml:"window"`
}

func Default() *Config {
	return &Config{
		Log: LogConfig{
			Level:     "info",
			MaxSizeMB: 32,
		},
		Errors: ErrorsConfig{
			Max: core.DefaultMaxErrors,
		},
		Context: ContextConfig{
			Versions: []ContextVersion{
				{Major: 4, Minor: 6},
				{Major: 4, Minor: 1},
				{Major: 3, Minor: 3},
				{Major: 3, Minor: 2},
			},
			Share: true,
		},
		Pipeline: PipelineConfig{
			ManualBits:  8,
			SortProgram: true,
			SortLayout:  true,
		},
		Window: WindowConfig{
			Name:   "Lumen",
			Width:  1280,
			Height: 720,
			PosX:   100,
			PosY:   100,
		},
	}
}

// Load reads a TOML file on top of the defaults. Keys missing from the file
// keep their default value.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

func Parse(data []byte) (*Config, error) {
	cfg := Default()
	// A versions list in the file replaces the defaults instead of extending them.
	versions := cfg.Context.Versions
	cfg.Context.Versions = nil

	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if len(cfg.Context.Versions) == 0 {
		cfg.Context.Versions = versions
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if _, err := core.ParseLogLevel(c.Log.Level); err != nil {
		return fmt.Errorf("%w: log level %q", ErrInvalidConfig, c.Log.Level)
	}
	if c.Log.MaxSizeMB < 0 {
		return fmt.Errorf("%w: log max_size_mb must not be negative", ErrInvalidConfig)
	}
	if c.Errors.Max <= 0 {
		return fmt.Errorf("%w: errors max must be greater than 0", ErrInvalidConfig)
	}
	if len(c.Context.Versions) == 0 {
		return fmt.Errorf("%w: at least one context version is required", ErrInvalidConfig)
	}
	for _, v := range c.Context.Versions {
		if v.Major < 1 || v.Minor < 0 {
			return fmt.Errorf("%w: context version %d.%d", ErrInvalidConfig, v.Major, v.Minor)
		}
	}
	if c.Pipeline.ManualBits > 64 {
		return fmt.Errorf("%w: pipeline manual_bits %d exceeds 64", ErrInvalidConfig, c.Pipeline.ManualBits)
	}
	if c.Window.Width == 0 || c.Window.Height == 0 {
		return fmt.Errorf("%w: window size must be non-zero", ErrInvalidConfig)
	}
	return nil
}

// Encode writes the configuration as TOML.
func (c *Config) Encode() ([]byte, error) {
	return toml.Marshal(c)
}
