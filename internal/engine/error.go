package engine

import "errors"

// Error definitions for the engine package.
var (
	ErrUnsupportedLanguage = errors.New("language not supported by engine")
	ErrModelClosed         = errors.New("model is closed")
	ErrUnknownSpeaker      = errors.New("speaker id not known to model")
	ErrUnknownEngine       = errors.New("unknown engine provider")
)
