package engine

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/germanamz/mmpa/pkg/easing"
	"github.com/germanamz/mmpa/pkg/signal"
	"github.com/germanamz/mmpa/pkg/signal/wsfeed"
	"gopkg.in/yaml.v3"
)

// Storage backends.
const (
	BackendJSON   = "json"
	BackendSQLite = "sqlite"
	BackendMemory = "memory"
)

// DefaultTickRate is the render loop frequency in Hz.
const DefaultTickRate = 60

// Config is the top-level engine configuration.
type Config struct {
	DataDir  string        `yaml:"data_dir" toml:"data_dir"`
	TickRate int           `yaml:"tick_rate" toml:"tick_rate"` // Hz (default 60).
	LogLevel string        `yaml:"log_level" toml:"log_level"` // debug, info, warn or error.
	Storage  StorageConfig `yaml:"storage" toml:"storage"`
	Morph    MorphConfig   `yaml:"morph" toml:"morph"`
	Signal   SignalConfig  `yaml:"signal" toml:"signal"`
	HTTP     HTTPConfig    `yaml:"http" toml:"http"`
	Auto     AutoConfig    `yaml:"auto" toml:"auto"`

	Logger *slog.Logger     `yaml:"-" toml:"-"` // Set by the caller, not from the file.
	Now    func() time.Time `yaml:"-" toml:"-"`
}

// StorageConfig selects where anchors and sequences live.
type StorageConfig struct {
	Backend string `yaml:"backend" toml:"backend"` // json (default), sqlite or memory.
}

// MorphConfig holds defaults for morphs started without explicit settings.
type MorphConfig struct {
	DefaultDuration string `yaml:"default_duration" toml:"default_duration"` // Duration string (default "2s").
	DefaultEasing   string `yaml:"default_easing" toml:"default_easing"`
}

// SignalConfig configures the signal bus.
type SignalConfig struct {
	MixMode string          `yaml:"mix_mode" toml:"mix_mode"`
	Targets map[string]bool `yaml:"targets" toml:"targets"`
	Sources []SourceConfig  `yaml:"sources" toml:"sources"`
}

// SourceConfig describes a signal source to register.
type SourceConfig struct {
	ID        string   `yaml:"id" toml:"id"`
	Kind      string   `yaml:"kind" toml:"kind"`
	Weight    *float64 `yaml:"weight" toml:"weight"`   // Default 1.
	Enabled   *bool    `yaml:"enabled" toml:"enabled"` // Default true.
	Autostart bool     `yaml:"autostart" toml:"autostart"`
	URL       string   `yaml:"url" toml:"url"`           // websocket sources.
	Interval  string   `yaml:"interval" toml:"interval"` // sysload sources.
}

// HTTPConfig holds the control API settings.
type HTTPConfig struct {
	Addr string `yaml:"addr" toml:"addr"`
}

// AutoConfig holds auto-morph defaults. Durations are duration strings.
type AutoConfig struct {
	MinDuration  string   `yaml:"min_duration" toml:"min_duration"`
	MaxDuration  string   `yaml:"max_duration" toml:"max_duration"`
	PauseBetween string   `yaml:"pause_between" toml:"pause_between"`
	RandomEasing *bool    `yaml:"random_easing" toml:"random_easing"`
	AvoidRepeats *bool    `yaml:"avoid_repeats" toml:"avoid_repeats"`
	Pool         []string `yaml:"pool" toml:"pool"`
}

// LoadConfig reads a YAML file, or a TOML file when the path ends in .toml,
// and returns a Config. Environment variables referenced as ${VAR} or $VAR
// are expanded before parsing.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is caller-provided configuration, not user input
	if err != nil {
		return Config{}, fmt.Errorf("engine: load config: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		if err := toml.Unmarshal([]byte(expanded), &cfg); err != nil {
			return Config{}, fmt.Errorf("engine: parse config: %w", err)
		}
		return cfg, nil
	}

	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return Config{}, fmt.Errorf("engine: parse config: %w", err)
	}

	return cfg, nil
}

// Validate checks that the configuration is internally consistent.
func (c Config) Validate() error {
	if c.TickRate < 0 || c.TickRate > 1000 {
		return fmt.Errorf("engine: config: tick_rate %d out of range (1-1000)", c.TickRate)
	}

	switch c.Storage.Backend {
	case "", BackendJSON, BackendSQLite, BackendMemory:
	default:
		return fmt.Errorf("engine: config: unknown storage backend %q", c.Storage.Backend)
	}

	if _, err := parseDuration("morph.default_duration", c.Morph.DefaultDuration, 0); err != nil {
		return err
	}
	if c.Morph.DefaultEasing != "" {
		if _, ok := easing.Parse(c.Morph.DefaultEasing); !ok {
			return fmt.Errorf("engine: config: morph.default_easing: unknown easing %q", c.Morph.DefaultEasing)
		}
	}

	if c.Signal.MixMode != "" {
		if _, err := signal.ParseMixMode(c.Signal.MixMode); err != nil {
			return fmt.Errorf("engine: config: signal.mix_mode: %w", err)
		}
	}

	ids := make(map[string]struct{}, len(c.Signal.Sources))
	for _, s := range c.Signal.Sources {
		if s.ID == "" {
			return fmt.Errorf("engine: config: signal source id is required")
		}
		if _, dup := ids[s.ID]; dup {
			return fmt.Errorf("engine: config: duplicate signal source id %q", s.ID)
		}
		ids[s.ID] = struct{}{}

		if s.Kind == "" {
			return fmt.Errorf("engine: config: signal source %q: kind is required", s.ID)
		}
		if _, ok := getSourceFactory(s.Kind); !ok {
			return fmt.Errorf("engine: config: signal source %q: unknown kind %q", s.ID, s.Kind)
		}
		if s.Kind == wsfeed.Type && s.URL == "" {
			return fmt.Errorf("engine: config: signal source %q: url is required", s.ID)
		}
		if s.Weight != nil && (*s.Weight < 0 || *s.Weight > 1) {
			return fmt.Errorf("engine: config: signal source %q: weight must be within [0,1]", s.ID)
		}
		if _, err := parseDuration(fmt.Sprintf("signal source %q interval", s.ID), s.Interval, 0); err != nil {
			return err
		}
	}

	for _, f := range []struct{ field, value string }{
		{"auto.min_duration", c.Auto.MinDuration},
		{"auto.max_duration", c.Auto.MaxDuration},
		{"auto.pause_between", c.Auto.PauseBetween},
	} {
		if _, err := parseDuration(f.field, f.value, 0); err != nil {
			return err
		}
	}

	return nil
}

// parseDuration parses a non-negative duration string, returning def for an
// empty one.
func parseDuration(field, s string, def time.Duration) (time.Duration, error) {
	if s == "" {
		return def, nil
	}

	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("engine: config: %s: invalid duration %q: %w", field, s, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("engine: config: %s: duration must not be negative", field)
	}

	return d, nil
}

// ParseLogLevel maps log_level to a slog level. Unknown or empty values are
// info.
func ParseLogLevel(s string) slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}

	return l
}
