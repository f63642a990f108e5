package config

import (
	"os"
	"path/filepath"
	"runtime"
	"time"
)

const appName = "melo-api"

const (
	defaultHTTPPort         = 8080
	defaultMeloStartTimeout = 5 * time.Minute
	defaultPiperTimeout     = 60 * time.Second
	defaultLanguage         = "EN"
	defaultSpeaker          = "EN-US"
	defaultSpeed            = 1.0
	defaultPython           = "python3"
	defaultPiperBinary      = "piper"
)

// Default returns the configuration used when neither a config file nor
// environment variables override a value.
func Default() *Config {
	return &Config{
		Version: "1",
		Server: ServerConfig{
			HTTPPort: defaultHTTPPort,
		},
		Engine: EngineConfig{
			Provider: EngineMelo,
			Device:   DeviceAuto,
		},
		Defaults: DefaultsConfig{
			Language: defaultLanguage,
			Speaker:  defaultSpeaker,
			Speed:    defaultSpeed,
		},
		Preload: []string{defaultLanguage},
		Storage: StorageConfig{
			ModelsDir: DefaultModelsPath(),
		},
		Melo: MeloConfig{
			Python:       defaultPython,
			StartTimeout: defaultMeloStartTimeout,
		},
		Piper: PiperConfig{
			Binary:  defaultPiperBinary,
			Timeout: defaultPiperTimeout,
		},
	}
}

// DefaultConfigPath returns the default path for the melo-api config directory.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", appName, "config")
	}

	switch runtime.GOOS {
	case "windows":
		return filepath.Join(home, "AppData", "Roaming", appName)
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", appName)
	default: // Linux, BSD, etc.
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			return filepath.Join(xdg, appName)
		}
		return filepath.Join(home, ".config", appName)
	}
}

// DefaultModelsPath returns the default path for downloaded voice files.
func DefaultModelsPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", appName, "models")
	}

	switch runtime.GOOS {
	case "windows":
		return filepath.Join(home, "AppData", "Local", appName, "models")
	case "darwin":
		return filepath.Join(home, "Library", "Caches", appName, "models")
	default:
		if xdg := os.Getenv("XDG_CACHE_HOME"); xdg != "" {
			return filepath.Join(xdg, appName, "models")
		}
		return filepath.Join(home, ".cache", appName, "models")
	}
}
