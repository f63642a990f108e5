// Package env resolves the runtime environment the process runs in.
package env

import (
	"os"
	"strings"

	"github.com/ekisa-team/melo-api/internal/envvar"
)

// Environment is the deployment environment of the process.
type Environment string

const (
	// Development enables human readable, colored logs at debug level.
	Development Environment = "development"

	// Production enables JSON logs at info level.
	Production Environment = "production"

	// Test is used by test binaries; logs are kept quiet.
	Test Environment = "test"
)

// FromEnv reads the environment from MELO_ENV, defaulting to Development.
func FromEnv() Environment {
	return Parse(os.Getenv(envvar.MeloEnv))
}

// Parse converts a raw value into an Environment. Unknown values map to Development.
func Parse(raw string) Environment {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "prod", "production":
		return Production
	case "test":
		return Test
	default:
		return Development
	}
}

// IsProduction reports whether e is the production environment.
func (e Environment) IsProduction() bool {
	return e == Production
}
