// Package engine defines the contract between the service and the speech
// synthesis engines it delegates to.
package engine

import (
	"context"
	"io"

	"github.com/ekisa-team/melo-api/internal/config"
)

// Engine loads per-language voice models.
type Engine interface {
	// Name returns the engine identifier.
	Name() string

	// Load loads the voice model for language on the given device.
	// language is already normalized to upper case.
	Load(ctx context.Context, language string, device config.Device) (Model, error)

	// Close releases engine-wide resources. Models are closed by their owner.
	Close() error
}

// Model is a voice model bound to one language.
type Model interface {
	// Language returns the language the model was loaded for.
	Language() string

	// Speakers returns the speaker name to speaker id table.
	// The returned map must not be modified by the caller.
	Speakers() map[string]int

	// Synthesize writes WAV encoded audio for text to w.
	Synthesize(ctx context.Context, text string, speakerID int, speed float64, w io.Writer) error

	// Close releases the resources held by the model.
	Close() error
}
