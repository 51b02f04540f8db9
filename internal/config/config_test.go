package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Raikerian/go-audio-mixer/internal/config"
)

func writeConfig(t testing.TB, contents string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))

	return path
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, `
log_level: debug
output:
  device: "wav:/tmp/out.wav"
mixer:
  master_volume: 0.8
  channels:
    main: 0.9
    voice: 1.0
ducking:
  custom_level: 0.35
  custom_attack_ms: 100
  custom_release_ms: 800
sources:
  dir: ./clips
  cache_size: 16
playout:
  auto_duck: true
  silence_release_ms: 300
  entries:
    - id: bed
      type: tone
      channel: main
      frequency_hz: 220
      volume: 0.6
      loop: true
    - id: jingle
      type: clip
      channel: voice
      file: jingle.wav
      start_after_ms: 2000
      preset: dj_mode
`)

	cfg, err := config.LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "wav:/tmp/out.wav", cfg.Output.Device)
	require.NotNil(t, cfg.Mixer.MasterVolume)
	assert.InDelta(t, 0.8, *cfg.Mixer.MasterVolume, 1e-6)
	require.NotNil(t, cfg.Mixer.Channels.Main)
	assert.InDelta(t, 0.9, *cfg.Mixer.Channels.Main, 1e-6)
	assert.Nil(t, cfg.Mixer.Channels.Alert)

	require.NotNil(t, cfg.Ducking.CustomLevel)
	assert.InDelta(t, 0.35, *cfg.Ducking.CustomLevel, 1e-6)
	assert.Equal(t, 100, cfg.Ducking.CustomAttackMs)

	assert.Equal(t, "./clips", cfg.Sources.Dir)
	assert.Equal(t, 16, cfg.Sources.CacheSize)

	assert.True(t, cfg.Playout.AutoDuck)
	assert.Equal(t, 300, cfg.Playout.SilenceReleaseMs)
	require.Len(t, cfg.Playout.Entries, 2)
	assert.Equal(t, "tone", cfg.Playout.Entries[0].Type)
	assert.Equal(t, 220.0, cfg.Playout.Entries[0].FrequencyHz)
	assert.True(t, cfg.Playout.Entries[0].Loop)
	assert.Equal(t, "jingle.wav", cfg.Playout.Entries[1].File)
	assert.Equal(t, "dj_mode", cfg.Playout.Entries[1].Preset)
}

func TestLoadConfigDefaults(t *testing.T) {
	path := writeConfig(t, `{}`)

	cfg, err := config.LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "null", cfg.Output.Device)
	assert.Equal(t, 250, cfg.Ducking.CustomAttackMs)
	assert.Equal(t, 1000, cfg.Ducking.CustomReleaseMs)
	assert.Equal(t, 400, cfg.Playout.SilenceReleaseMs)
	assert.Nil(t, cfg.Mixer.MasterVolume)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := config.LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestLoadConfigBadYAML(t *testing.T) {
	path := writeConfig(t, "log_level: [unclosed")
	_, err := config.LoadConfig(path)
	require.Error(t, err)
}

func TestValidateRejectsBadEntries(t *testing.T) {
	cases := []struct {
		name string
		yaml string
	}{
		{"missing id", `
playout:
  entries:
    - type: tone
      channel: main
      frequency_hz: 100
`},
		{"missing channel", `
playout:
  entries:
    - id: a
      type: tone
      frequency_hz: 100
`},
		{"tone without frequency", `
playout:
  entries:
    - id: a
      type: tone
      channel: main
`},
		{"clip without file", `
playout:
  entries:
    - id: a
      type: clip
      channel: voice
`},
		{"unknown type", `
playout:
  entries:
    - id: a
      type: stream
      channel: main
`},
		{"negative timing", `
playout:
  entries:
    - id: a
      type: tone
      channel: main
      frequency_hz: 100
      start_after_ms: -5
`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := config.LoadConfig(writeConfig(t, tc.yaml))
			assert.Error(t, err)
		})
	}
}
