package config

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"sync"

	"github.com/caarlos0/env/v11"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"go.yaml.in/yaml/v3"

	"github.com/ekisa-team/melo-api/internal/envvar"
	"github.com/ekisa-team/melo-api/internal/xfs"
)

//go:embed schema.json
var schemaJSON string

const schemaURL = "config.v1.schema.json"

var compileSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	return jsonschema.CompileString(schemaURL, schemaJSON)
})

// Load builds the effective configuration: defaults, then the YAML file at
// path (skipped when it does not exist), then MELO_* environment variables.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := loadFile(path, cfg); err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				return nil, err
			}
			slog.Debug("Config file not found, using defaults and environment", "path", path)
		}
	}

	if err := env.ParseWithOptions(cfg, env.Options{Prefix: envvar.Prefix}); err != nil {
		return nil, fmt.Errorf("config: failed to parse environment: %w", err)
	}
	// The env parser skips empty values, which would keep the default list.
	if v, ok := os.LookupEnv(envvar.MeloPreloadLanguages); ok && v == "" {
		cfg.Preload = nil
	}

	cfg.Normalize()
	cfg.Storage.ModelsDir = xfs.ExpandTilde(cfg.Storage.ModelsDir)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadAndValidate loads the YAML file at path on top of the defaults and
// validates it against the embedded schema. Environment variables are not applied.
func LoadAndValidate(path string) (*Config, error) {
	cfg := Default()
	if err := loadFile(path, cfg); err != nil {
		return nil, err
	}

	cfg.Normalize()
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: failed to read config: %w", err)
	}

	if err := validateDocument(data); err != nil {
		return err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("config: failed to unmarshal into Config struct: %w", err)
	}

	return nil
}

// validateDocument checks raw YAML against the schema. The document is
// round-tripped through JSON so numbers reach the validator as float64.
func validateDocument(data []byte) error {
	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("config: invalid YAML: %w", err)
	}
	if raw == nil {
		raw = map[string]any{}
	}

	encoded, err := json.Marshal(raw)
	if err != nil {
		return fmt.Errorf("config: failed to convert YAML document: %w", err)
	}

	var doc any
	if err := json.Unmarshal(encoded, &doc); err != nil {
		return fmt.Errorf("config: failed to convert YAML document: %w", err)
	}

	schema, err := compileSchema()
	if err != nil {
		return fmt.Errorf("config: failed to compile schema: %w", err)
	}

	if err := schema.Validate(doc); err != nil {
		return fmt.Errorf("config: validation failed: %w", err)
	}

	return nil
}
