package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "EN", cfg.Defaults.Language)
	assert.Equal(t, "EN-US", cfg.Defaults.Speaker)
	assert.InDelta(t, 1.0, cfg.Defaults.Speed, 0)
	assert.Equal(t, []string{"EN"}, cfg.Preload)
	assert.Equal(t, DeviceAuto, cfg.Engine.Device)
	assert.Equal(t, EngineMelo, cfg.Engine.Provider)
	assert.Equal(t, 8080, cfg.Server.HTTPPort)
	assert.Empty(t, cfg.Melo.Worker)
	assert.Equal(t, "python3", cfg.Melo.Python)
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Setenv("MELO_DEFAULT_LANGUAGE", "es")
	t.Setenv("MELO_DEFAULT_SPEAKER", "ES")
	t.Setenv("MELO_DEFAULT_SPEED", "1.5")
	t.Setenv("MELO_PRELOAD_LANGUAGES", " en, ,es,EN")
	t.Setenv("MELO_DEVICE", "CPU")
	t.Setenv("MELO_HTTP_PORT", "9000")
	t.Setenv("MELO_WORKER_BIN", "/opt/melo/worker")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "ES", cfg.Defaults.Language)
	assert.Equal(t, "ES", cfg.Defaults.Speaker)
	assert.InDelta(t, 1.5, cfg.Defaults.Speed, 0)
	assert.Equal(t, []string{"EN", "ES"}, cfg.Preload)
	assert.Equal(t, DeviceCPU, cfg.Engine.Device)
	assert.Equal(t, 9000, cfg.Server.HTTPPort)
	assert.Equal(t, "/opt/melo/worker", cfg.Melo.Worker)
}

func TestLoad_EmptyPreloadDisablesWarmup(t *testing.T) {
	path := writeConfig(t, `
version: "1"
preload: [EN, ES]
`)
	t.Setenv("MELO_PRELOAD_LANGUAGES", "")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Empty(t, cfg.Preload)

	t.Setenv("MELO_PRELOAD_LANGUAGES", " , ")

	cfg, err = Load("")
	require.NoError(t, err)
	assert.Empty(t, cfg.Preload)
}

func TestLoad_FileThenEnvironment(t *testing.T) {
	path := writeConfig(t, `
version: "1"
engine:
  provider: piper
  device: cuda
defaults:
  language: fr
  speed: 0.8
preload: [fr, en]
piper:
  binary: /usr/bin/piper
  timeout: 45s
  voices:
    fr:
      model: fr/fr_FR/siwis/medium/fr_FR-siwis-medium.onnx
      source:
        huggingface:
          repo: rhasspy/piper-voices
          include: ["fr/fr_FR/siwis/medium/*"]
`)
	t.Setenv("MELO_DEFAULT_SPEED", "1.2")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, EnginePiper, cfg.Engine.Provider)
	assert.Equal(t, DeviceCUDA, cfg.Engine.Device)
	assert.Equal(t, "FR", cfg.Defaults.Language)
	assert.Equal(t, "EN-US", cfg.Defaults.Speaker)
	assert.InDelta(t, 1.2, cfg.Defaults.Speed, 0)
	assert.Equal(t, []string{"FR", "EN"}, cfg.Preload)
	assert.Equal(t, 45*time.Second, cfg.Piper.Timeout)

	voice, ok := cfg.Piper.Voices["FR"]
	require.True(t, ok)
	assert.True(t, voice.HasSource())

	src, err := voice.GetSource()
	require.NoError(t, err)
	assert.Equal(t, SourceTypeHuggingFace, src.Type())
}

func TestLoad_SchemaViolations(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"speed out of range", "defaults:\n  speed: 3.0\n"},
		{"unknown key", "colour: blue\n"},
		{"bad device", "engine:\n  device: tpu\n"},
		{"voice without model", "piper:\n  voices:\n    EN: {}\n"},
		{"bad duration", "melo:\n  start_timeout: soon\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			assert.ErrorContains(t, err, "validation failed")
		})
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "defaults: [unterminated\n"))
	assert.ErrorContains(t, err, "invalid YAML")
}

func TestLoad_EmptyFile(t *testing.T) {
	cfg, err := Load(writeConfig(t, ""))
	require.NoError(t, err)
	assert.Equal(t, "EN", cfg.Defaults.Language)
}

func TestLoad_EnvironmentValidation(t *testing.T) {
	tests := []struct {
		key, value, want string
	}{
		{"MELO_DEFAULT_SPEED", "5", "out of range"},
		{"MELO_DEVICE", "tpu", "unsupported device"},
		{"MELO_ENGINE", "espeak", "unsupported engine"},
		{"MELO_DEFAULT_LANGUAGE", "  ", "default language"},
		{"MELO_HTTP_PORT", "70000", "invalid HTTP port"},
		{"MELO_PYTHON", "  ", "python interpreter"},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)

			_, err := Load("")
			assert.ErrorContains(t, err, tt.want)
		})
	}
}

func TestLoad_MalformedEnvironment(t *testing.T) {
	t.Setenv("MELO_DEFAULT_SPEED", "fast")

	_, err := Load("")
	assert.ErrorContains(t, err, "failed to parse environment")
}

func TestLoadAndValidate_IgnoresEnvironment(t *testing.T) {
	t.Setenv("MELO_DEFAULT_LANGUAGE", "JP")
	path := writeConfig(t, "defaults:\n  language: es\n")

	cfg, err := LoadAndValidate(path)
	require.NoError(t, err)
	assert.Equal(t, "ES", cfg.Defaults.Language)
}
