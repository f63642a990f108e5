// Package source fetches voice model files from remote repositories.
package source

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/ekisa-team/melo-api/internal/config"
	"github.com/ekisa-team/melo-api/internal/engine"
)

// ErrUnsupportedSource is returned when no downloader handles a source type.
var ErrUnsupportedSource = errors.New("unsupported model source")

// Downloader fetches the files of a voice into targetDir.
type Downloader interface {
	// Download returns the directory holding the voice files and whether the
	// existing copy was reused.
	Download(ctx context.Context, voice *config.VoiceConfig, targetDir string) (path string, cached bool, err error)
}

// GetDownloader returns the downloader for a source type.
func GetDownloader(sourceType config.SourceType, runner engine.CommandRunner) (Downloader, error) {
	switch sourceType {
	case config.SourceTypeHuggingFace:
		return NewHuggingFaceDownloader(runner), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedSource, sourceType)
	}
}

// EnsureModelsDirectory creates the models directory if missing.
func EnsureModelsDirectory(path string) error {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return fmt.Errorf("failed to create models directory: %w", err)
	}
	return nil
}
