package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// OutputConfig selects the output sink the mixed stream is pushed to.
type OutputConfig struct {
	// Device is the sink id: "null", "wav:<path>" or
	// "portaudio[:<device-substring>]".
	Device string `yaml:"device"`
}

// ChannelVolumes stores the initial gain per mixer channel. Unset values
// default to unity.
type ChannelVolumes struct {
	Main  *float32 `yaml:"main"`
	Voice *float32 `yaml:"voice"`
	Alert *float32 `yaml:"alert"`
}

// MixerConfig stores the initial gain staging.
type MixerConfig struct {
	MasterVolume *float32       `yaml:"master_volume"`
	Channels     ChannelVolumes `yaml:"channels"`
}

// DuckingConfig seeds the Custom ducking preset.
type DuckingConfig struct {
	CustomLevel     *float32 `yaml:"custom_level"`
	CustomAttackMs  int      `yaml:"custom_attack_ms"`
	CustomReleaseMs int      `yaml:"custom_release_ms"`
}

// SourcesConfig configures the clip store.
type SourcesConfig struct {
	Dir       string `yaml:"dir"`
	CacheSize int    `yaml:"cache_size"`
}

// PlayoutEntry describes one source the daemon attaches at startup.
type PlayoutEntry struct {
	ID           string   `yaml:"id"`
	Type         string   `yaml:"type"` // "tone" or "clip"
	Channel      string   `yaml:"channel"`
	File         string   `yaml:"file"`         // clip only, relative to sources.dir
	FrequencyHz  float64  `yaml:"frequency_hz"` // tone only
	Volume       *float32 `yaml:"volume"`
	StartAfterMs int      `yaml:"start_after_ms"`
	DurationMs   int      `yaml:"duration_ms"` // tone only, 0 = endless
	Loop         bool     `yaml:"loop"`
	Preset       string   `yaml:"preset"` // ducking preset used by auto-duck
}

// PlayoutConfig configures the daemon's scheduled playout.
type PlayoutConfig struct {
	AutoDuck         bool           `yaml:"auto_duck"`
	SilenceReleaseMs int            `yaml:"silence_release_ms"`
	Entries          []PlayoutEntry `yaml:"entries"`
}

// Config stores the application configuration.
type Config struct {
	LogLevel string        `yaml:"log_level"`
	Output   OutputConfig  `yaml:"output"`
	Mixer    MixerConfig   `yaml:"mixer"`
	Ducking  DuckingConfig `yaml:"ducking"`
	Sources  SourcesConfig `yaml:"sources"`
	Playout  PlayoutConfig `yaml:"playout"`
}

// LoadConfig loads and validates the configuration from the given file path.
func LoadConfig(filePath string) (*Config, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

// Validate applies defaults and rejects structurally invalid entries.
// Channel and preset names are resolved by their consumers; only shape
// and ranges are checked here.
func (c *Config) Validate() error {
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.Output.Device == "" {
		c.Output.Device = "null"
	}

	if c.Ducking.CustomAttackMs < 0 || c.Ducking.CustomReleaseMs < 0 {
		return fmt.Errorf("ducking attack/release must not be negative")
	}
	if c.Ducking.CustomAttackMs == 0 {
		c.Ducking.CustomAttackMs = 250
	}
	if c.Ducking.CustomReleaseMs == 0 {
		c.Ducking.CustomReleaseMs = 1000
	}

	if c.Playout.SilenceReleaseMs <= 0 {
		c.Playout.SilenceReleaseMs = 400
	}

	for i := range c.Playout.Entries {
		e := &c.Playout.Entries[i]
		if e.ID == "" {
			return fmt.Errorf("playout entry %d: id is required", i)
		}
		if e.Channel == "" {
			return fmt.Errorf("playout entry %q: channel is required", e.ID)
		}
		switch e.Type {
		case "tone":
			if e.FrequencyHz <= 0 {
				return fmt.Errorf("playout entry %q: tone needs frequency_hz", e.ID)
			}
		case "clip":
			if e.File == "" {
				return fmt.Errorf("playout entry %q: clip needs file", e.ID)
			}
		default:
			return fmt.Errorf("playout entry %q: unknown type %q", e.ID, e.Type)
		}
		if e.StartAfterMs < 0 || e.DurationMs < 0 {
			return fmt.Errorf("playout entry %q: negative timing", e.ID)
		}
	}

	return nil
}
