package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// SourceType represents the type of voice model source.
type SourceType string

const (
	// SourceTypeHuggingFace represents a Hugging Face model repository source.
	SourceTypeHuggingFace SourceType = "huggingface"
)

// EngineProvider identifies the synthesis engine adapter.
type EngineProvider string

const (
	// EngineMelo drives MeloTTS through a long-lived worker process per language.
	EngineMelo EngineProvider = "melo"

	// EnginePiper drives the Piper CLI with per-language voice files.
	EnginePiper EngineProvider = "piper"
)

// Device is the compute device preference handed to the engine.
type Device string

const (
	DeviceAuto Device = "auto"
	DeviceCPU  Device = "cpu"
	DeviceCUDA Device = "cuda"
	DeviceMPS  Device = "mps"
)

const (
	// MinSpeed and MaxSpeed bound the speed factor accepted by the API.
	MinSpeed = 0.5
	MaxSpeed = 2.0
)

// Config holds the main configuration for the application.
type Config struct {
	Version  string         `json:"version"           yaml:"version"`
	Server   ServerConfig   `json:"server"            yaml:"server"`
	Engine   EngineConfig   `json:"engine"            yaml:"engine"`
	Defaults DefaultsConfig `json:"defaults"          yaml:"defaults"  envPrefix:"DEFAULT_"`
	Preload  []string       `json:"preload"           yaml:"preload"   env:"PRELOAD_LANGUAGES" envSeparator:","`
	Storage  StorageConfig  `json:"storage,omitempty" yaml:"storage,omitempty"`
	Melo     MeloConfig     `json:"melo"              yaml:"melo"`
	Piper    PiperConfig    `json:"piper"             yaml:"piper"`
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	HTTPPort int `json:"http_port" yaml:"http_port" env:"HTTP_PORT"`
}

// EngineConfig selects the engine adapter and device.
type EngineConfig struct {
	Provider EngineProvider `json:"provider" yaml:"provider" env:"ENGINE"`
	Device   Device         `json:"device"   yaml:"device"   env:"DEVICE"`
}

// DefaultsConfig holds the values used when a request omits a field.
type DefaultsConfig struct {
	Language string  `json:"language" yaml:"language" env:"LANGUAGE"`
	Speaker  string  `json:"speaker"  yaml:"speaker"  env:"SPEAKER"`
	Speed    float64 `json:"speed"    yaml:"speed"    env:"SPEED"`
}

// StorageConfig holds where downloaded voice files are kept.
type StorageConfig struct {
	ModelsDir string `json:"models_dir,omitempty" yaml:"models_dir,omitempty" env:"MODELS_PATH"`
}

// MeloConfig configures the MeloTTS worker process.
type MeloConfig struct {
	// Worker replaces the bundled worker script when set.
	Worker       string        `json:"worker,omitempty"        yaml:"worker,omitempty"        env:"WORKER_BIN"`
	Python       string        `json:"python"                  yaml:"python"                  env:"PYTHON"`
	Args         []string      `json:"args,omitempty"          yaml:"args,omitempty"`
	StartTimeout time.Duration `json:"start_timeout,omitempty" yaml:"start_timeout,omitempty"`
}

// PiperConfig configures the Piper CLI engine.
type PiperConfig struct {
	Binary  string                 `json:"binary"           yaml:"binary"  env:"PIPER_BIN"`
	Timeout time.Duration          `json:"timeout,omitempty" yaml:"timeout,omitempty"`
	Voices  map[string]VoiceConfig `json:"voices,omitempty"  yaml:"voices,omitempty"`
}

// VoiceConfig maps one language onto a Piper voice file.
type VoiceConfig struct {
	// Model is the .onnx path, relative to the downloaded source or models dir, or absolute.
	Model  string       `json:"model"            yaml:"model"`
	Source SourceConfig `json:"source,omitempty" yaml:"source,omitempty"`
}

// SourceConfig wraps optional sources (only one should be set).
type SourceConfig struct {
	HuggingFace *HuggingFaceSource `json:"huggingface,omitempty" yaml:"huggingface,omitempty"`
}

// ModelSource represents a source for a voice model.
type ModelSource interface {
	Type() SourceType
}

// HuggingFaceSource represents a Hugging Face model repository source.
type HuggingFaceSource struct {
	Repo          string   `json:"repo"                     yaml:"repo"`
	Revision      string   `json:"revision,omitempty"       yaml:"revision,omitempty"`
	RepoType      string   `json:"repo_type,omitempty"      yaml:"repo_type,omitempty"`
	Token         string   `json:"token,omitempty"          yaml:"token,omitempty"`
	Include       []string `json:"include,omitempty"        yaml:"include,omitempty"`
	Exclude       []string `json:"exclude,omitempty"        yaml:"exclude,omitempty"`
	MaxWorkers    int      `json:"max_workers,omitempty"    yaml:"max_workers,omitempty"`
	ForceDownload bool     `json:"force_download,omitempty" yaml:"force_download,omitempty"`
}

// Type returns the Hugging Face source type.
func (h HuggingFaceSource) Type() SourceType {
	return SourceTypeHuggingFace
}

// HasSource reports whether the voice needs to be fetched before use.
func (v *VoiceConfig) HasSource() bool {
	return v.Source.HuggingFace != nil
}

// GetSource returns the active source for the voice.
func (v *VoiceConfig) GetSource() (ModelSource, error) {
	if v.Source.HuggingFace != nil {
		return *v.Source.HuggingFace, nil
	}

	return nil, errors.New("no source configured for voice")
}

// NormalizeLanguage trims and upper-cases a language code.
func NormalizeLanguage(lang string) string {
	return strings.ToUpper(strings.TrimSpace(lang))
}

// Normalize cleans values that may come from loosely formatted sources such as
// comma separated environment variables.
func (c *Config) Normalize() {
	c.Defaults.Language = NormalizeLanguage(c.Defaults.Language)
	c.Defaults.Speaker = strings.TrimSpace(c.Defaults.Speaker)
	c.Engine.Device = Device(strings.ToLower(strings.TrimSpace(string(c.Engine.Device))))
	c.Engine.Provider = EngineProvider(strings.ToLower(strings.TrimSpace(string(c.Engine.Provider))))
	c.Melo.Worker = strings.TrimSpace(c.Melo.Worker)
	c.Melo.Python = strings.TrimSpace(c.Melo.Python)

	preload := make([]string, 0, len(c.Preload))
	seen := make(map[string]bool, len(c.Preload))
	for _, lang := range c.Preload {
		lang = NormalizeLanguage(lang)
		if lang == "" || seen[lang] {
			continue
		}
		seen[lang] = true
		preload = append(preload, lang)
	}
	c.Preload = preload

	if len(c.Piper.Voices) > 0 {
		voices := make(map[string]VoiceConfig, len(c.Piper.Voices))
		for lang, voice := range c.Piper.Voices {
			voices[NormalizeLanguage(lang)] = voice
		}
		c.Piper.Voices = voices
	}
}

// Validate checks cross-field constraints the schema cannot express or that
// apply to environment overrides.
func (c *Config) Validate() error {
	if c.Defaults.Language == "" {
		return errors.New("config: default language must not be empty")
	}

	if c.Defaults.Speed < MinSpeed || c.Defaults.Speed > MaxSpeed {
		return fmt.Errorf("config: default speed %.2f out of range [%.1f, %.1f]", c.Defaults.Speed, MinSpeed, MaxSpeed)
	}

	switch c.Engine.Device {
	case DeviceAuto, DeviceCPU, DeviceCUDA, DeviceMPS:
	default:
		return fmt.Errorf("config: unsupported device %q", c.Engine.Device)
	}

	switch c.Engine.Provider {
	case EngineMelo:
		if c.Melo.Worker == "" && c.Melo.Python == "" {
			return errors.New("config: melo needs either a worker command or a python interpreter")
		}
	case EnginePiper:
		if c.Piper.Binary == "" {
			return errors.New("config: piper binary must not be empty")
		}
	default:
		return fmt.Errorf("config: unsupported engine %q", c.Engine.Provider)
	}

	if c.Server.HTTPPort <= 0 || c.Server.HTTPPort > 65535 {
		return fmt.Errorf("config: invalid HTTP port %d", c.Server.HTTPPort)
	}

	return nil
}
